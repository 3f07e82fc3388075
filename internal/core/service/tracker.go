package service

import (
	"context"
	"pixrelay/internal/core/domain"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// UsageTracker keeps per chat delivery counters that reset at local midnight.
type UsageTracker struct {
	chats map[int64]domain.Usage
	mutex sync.Mutex
	now   func() time.Time
}

// NewUsageTracker starts the midnight reset loop, which stops with ctx.
func NewUsageTracker(ctx context.Context) *UsageTracker {
	ut := &UsageTracker{
		chats: make(map[int64]domain.Usage),
		now:   time.Now,
	}

	go ut.ResetDaily(ctx)

	return ut
}

func (t *UsageTracker) Record(chatID int64, delivered domain.Candidate) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	u := t.chats[chatID]
	u.Images++
	u.Bytes += int64(delivered.Size())
	if delivered.Source() == domain.SourceLocalTranscode {
		u.Local++
	}
	t.chats[chatID] = u
}

func (t *UsageTracker) Usage(chatID int64) (domain.Usage, time.Time) {
	t.mutex.Lock()
	u := t.chats[chatID]
	t.mutex.Unlock()

	return u, nextReset(t.now())
}

func (t *UsageTracker) ResetDaily(ctx context.Context) {
	for {
		reset := nextReset(t.now())
		log.Debug().Time("reset", reset).Msg("running reset timer")

		timer := time.NewTimer(reset.Sub(t.now()))
		select {
		case <-timer.C:
			log.Debug().Msg("resetting daily usage")
			t.reset()
		case <-ctx.Done():
			timer.Stop()
			log.Debug().Msg("stopping daily usage reset")
			return
		}
	}
}

func (t *UsageTracker) reset() {
	t.mutex.Lock()
	t.chats = make(map[int64]domain.Usage)
	t.mutex.Unlock()
}

func nextReset(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, now.Location())
}
