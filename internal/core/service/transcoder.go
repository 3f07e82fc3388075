package service

import (
	"context"
	"fmt"
	"pixrelay/internal/core/domain"
	"pixrelay/internal/core/port"
	"runtime"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"
)

// Pipeline runs the local transcode recipe through a codec backend. Concurrent runs are bounded
// because every run is CPU bound.
type Pipeline struct {
	codec port.Codec
	slots *semaphore.Weighted
}

func NewPipeline(codec port.Codec, maxConcurrent int) *Pipeline {
	if maxConcurrent <= 0 {
		maxConcurrent = runtime.NumCPU()
	}

	return &Pipeline{codec: codec, slots: semaphore.NewWeighted(int64(maxConcurrent))}
}

// Transcode waits for a free slot (cancellable), then trims, downscales and encodes input. Once
// decoding has started the run is not interrupted by ctx.
func (p *Pipeline) Transcode(ctx context.Context, input domain.Candidate,
	recipe domain.TranscodeRecipe) (domain.Candidate, error) {
	if err := p.slots.Acquire(ctx, 1); err != nil {
		return domain.Candidate{}, fmt.Errorf("waiting for transcode slot: %w", err)
	}
	defer p.slots.Release(1)

	img, err := p.codec.Decode(input.Bytes())
	if err != nil {
		return domain.Candidate{}, fmt.Errorf("error decoding %s image: %w", input.MIMEType(), err)
	}
	defer img.Close()

	meta := img.Metadata()
	l := log.With().
		Str("codec", p.codec.Name()).
		Int("width", meta.Width).
		Int("height", meta.Height).
		Int("frames", meta.Frames).
		Logger()

	if recipe.Trim && meta.Frames <= 1 {
		if err := img.Trim(recipe.TrimThreshold); err != nil {
			l.Warn().Err(err).Msg("trim failed, continuing untrimmed")
		}
	}

	if recipe.Width > 0 && img.Metadata().Width > recipe.Width {
		if err := img.Resize(recipe.Width, domain.KernelLanczos3); err != nil {
			return domain.Candidate{}, fmt.Errorf("error resizing to %d px: %w", recipe.Width, err)
		}
	}

	out, err := img.Encode(recipe.EncodeParams())
	if err != nil {
		return domain.Candidate{}, fmt.Errorf("error encoding %s: %w", recipe.Format, err)
	}

	l.Debug().
		Int("inputBytes", input.Size()).
		Int("outputBytes", len(out)).
		Str("format", string(recipe.Format)).
		Msg("local transcode finished")

	return domain.NewCandidate(out, recipe.Format.MIMEType(), domain.SourceLocalTranscode), nil
}
