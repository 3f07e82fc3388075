package service

import "pixrelay/internal/core/domain"

// Guard keeps the transcoded candidate only when it is strictly smaller than the original, so the
// returned candidate never exceeds original.Size(). An empty transcode result is never preferred.
func Guard(original, transcoded domain.Candidate) domain.Candidate {
	if transcoded.Size() == 0 || transcoded.Size() >= original.Size() {
		return original
	}

	return transcoded
}
