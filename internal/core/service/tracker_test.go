package service

import (
	"context"
	"pixrelay/internal/core/domain"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRecord(t *testing.T) {
	tracker := &UsageTracker{chats: make(map[int64]domain.Usage), now: time.Now}

	tests := []struct {
		name      string
		chatID    int64
		delivered domain.Candidate
		want      domain.Usage
	}{
		{
			name:      "first relay image",
			chatID:    1,
			delivered: blob(300, domain.RelaySource("wsrv")),
			want:      domain.Usage{Images: 1, Bytes: 300},
		},
		{
			name:      "local transcode adds to existing usage",
			chatID:    1,
			delivered: blob(200, domain.SourceLocalTranscode),
			want:      domain.Usage{Images: 2, Bytes: 500, Local: 1},
		},
		{
			name:      "other chat is separate",
			chatID:    2,
			delivered: blob(50, domain.SourceDirectOrigin),
			want:      domain.Usage{Images: 1, Bytes: 50},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracker.Record(tt.chatID, tt.delivered)
			got, _ := tracker.Usage(tt.chatID)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRecord_Concurrent(t *testing.T) {
	tracker := &UsageTracker{chats: make(map[int64]domain.Usage), now: time.Now}

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tracker.Record(7, blob(10, domain.SourceLocalTranscode))
		}()
	}
	wg.Wait()

	got, _ := tracker.Usage(7)
	assert.Equal(t, domain.Usage{Images: 50, Bytes: 500, Local: 50}, got)
}

func TestUsage_ResetTime(t *testing.T) {
	fixed := time.Date(2026, 3, 14, 22, 30, 0, 0, time.UTC)
	tracker := &UsageTracker{chats: make(map[int64]domain.Usage), now: func() time.Time { return fixed }}

	got, reset := tracker.Usage(99)

	assert.Equal(t, domain.Usage{}, got)
	assert.Equal(t, 90*time.Minute, reset.Sub(fixed))
}

func TestNewUsageTracker(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	tracker := NewUsageTracker(ctx)

	assert.NotNil(t, tracker.chats)
	assert.NotNil(t, tracker.now)
}

func TestReset(t *testing.T) {
	tracker := &UsageTracker{chats: map[int64]domain.Usage{1: {Images: 3}, 2: {Images: 9}}}

	tracker.reset()

	assert.Empty(t, tracker.chats)
}

func TestNextReset(t *testing.T) {
	now := time.Date(2026, 12, 31, 13, 5, 0, 0, time.UTC)
	reset := nextReset(now)

	assert.Equal(t, time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC), reset)
}
