package service

import (
	"context"
	"errors"
	"net/http"
	"pixrelay/internal/core/domain"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockAcquirer struct{ mock.Mock }

func (m *MockAcquirer) Acquire(ctx context.Context, tier domain.TierSpec,
	req domain.RequestContext) (domain.Candidate, error) {
	args := m.Called(ctx, tier, req)
	return args.Get(0).(domain.Candidate), args.Error(1)
}

type MockTranscoder struct{ mock.Mock }

func (m *MockTranscoder) Transcode(ctx context.Context, input domain.Candidate,
	recipe domain.TranscodeRecipe) (domain.Candidate, error) {
	args := m.Called(ctx, input, recipe)
	return args.Get(0).(domain.Candidate), args.Error(1)
}

func TestTierRunner_Attempt(t *testing.T) {
	original := blob(1000, domain.SourceDirectOrigin)
	relayed := blob(300, domain.RelaySource("wsrv"))

	tests := []struct {
		name       string
		tier       domain.TierSpec
		setup      func(a *MockAcquirer, tr *MockTranscoder)
		wantSource domain.SourceTag
		wantKind   domain.RejectionKind
	}{
		{
			name: "relay candidate passed through",
			tier: relayTier("wsrv", 0),
			setup: func(a *MockAcquirer, _ *MockTranscoder) {
				a.On("Acquire", mock.Anything, mock.Anything, mock.Anything).Return(relayed, nil)
			},
			wantSource: domain.RelaySource("wsrv"),
		},
		{
			name: "acquisition rejection kept",
			tier: relayTier("wsrv", 0),
			setup: func(a *MockAcquirer, _ *MockTranscoder) {
				a.On("Acquire", mock.Anything, mock.Anything, mock.Anything).
					Return(domain.Candidate{}, domain.RejectStatus("wsrv", http.StatusTooManyRequests))
			},
			wantKind: domain.KindUpstreamHTTP,
		},
		{
			name: "local transcode smaller",
			tier: localTier(),
			setup: func(a *MockAcquirer, tr *MockTranscoder) {
				a.On("Acquire", mock.Anything, mock.Anything, mock.Anything).Return(original, nil)
				tr.On("Transcode", mock.Anything, original, *localTier().Recipe).
					Return(blob(200, domain.SourceLocalTranscode), nil)
			},
			wantSource: domain.SourceLocalTranscode,
		},
		{
			name: "local transcode larger reverts to original",
			tier: localTier(),
			setup: func(a *MockAcquirer, tr *MockTranscoder) {
				a.On("Acquire", mock.Anything, mock.Anything, mock.Anything).Return(original, nil)
				tr.On("Transcode", mock.Anything, original, mock.Anything).
					Return(blob(5000, domain.SourceLocalTranscode), nil)
			},
			wantSource: domain.SourceDirectOrigin,
		},
		{
			name: "codec failure",
			tier: localTier(),
			setup: func(a *MockAcquirer, tr *MockTranscoder) {
				a.On("Acquire", mock.Anything, mock.Anything, mock.Anything).Return(original, nil)
				tr.On("Transcode", mock.Anything, original, mock.Anything).
					Return(domain.Candidate{}, errors.New("vips: unsupported image format"))
			},
			wantKind: domain.KindCodec,
		},
		{
			name: "slot wait cancelled",
			tier: localTier(),
			setup: func(a *MockAcquirer, tr *MockTranscoder) {
				a.On("Acquire", mock.Anything, mock.Anything, mock.Anything).Return(original, nil)
				tr.On("Transcode", mock.Anything, original, mock.Anything).
					Return(domain.Candidate{}, context.DeadlineExceeded)
			},
			wantKind: domain.KindTimeout,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			a := &MockAcquirer{}
			tr := &MockTranscoder{}
			tc.setup(a, tr)

			got, err := NewTierRunner(a, tr).Attempt(t.Context(), tc.tier, request(0))

			if tc.wantKind != "" {
				assert.True(t, domain.IsKind(err, tc.wantKind), "got %v", err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tc.wantSource, got.Source())
			}
			a.AssertExpectations(t)
			tr.AssertExpectations(t)
		})
	}
}

func TestTierRunner_LocalWithoutTranscoder(t *testing.T) {
	a := &MockAcquirer{}
	a.On("Acquire", mock.Anything, mock.Anything, mock.Anything).Return(blob(10, domain.SourceDirectOrigin), nil)

	_, err := NewTierRunner(a, nil).Attempt(t.Context(), localTier(), request(0))

	assert.True(t, domain.IsKind(err, domain.KindCodec))
}
