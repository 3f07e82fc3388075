package port

import (
	"pixrelay/internal/core/domain"
	"time"
)

type UsageRecorder interface {
	// Record counts an image delivered to chatID.
	Record(chatID int64, delivered domain.Candidate)
	// Usage returns today's counters of chatID and the time they are reset.
	Usage(chatID int64) (domain.Usage, time.Time)
}
