package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRejection_Error(t *testing.T) {
	assert.Equal(t, "[upstream_http_error] wsrv: status 404", RejectStatus("wsrv", 404).Error())
	assert.Equal(t, "[codec_error] local: boom", Reject(KindCodec, "local", errors.New("boom")).Error())
}

func TestRejection_Outright(t *testing.T) {
	tests := []struct {
		kind RejectionKind
		want bool
	}{
		{KindUpstreamHTTP, true},
		{KindTransport, true},
		{KindRequest, true},
		{KindTimeout, false},
		{KindInvalidContentType, false},
		{KindSizeOutOfBounds, false},
		{KindCodec, false},
		{KindPredicate, false},
	}

	for _, tc := range tests {
		t.Run(string(tc.kind), func(t *testing.T) {
			assert.Equal(t, tc.want, Reject(tc.kind, "t", errors.New("x")).Outright())
		})
	}
}

func TestAsRejection(t *testing.T) {
	original := Reject(KindTimeout, "wsrv", errors.New("slow"))
	wrapped := fmt.Errorf("attempt: %w", original)

	assert.Same(t, original, AsRejection("other", wrapped))

	plain := errors.New("connection refused")
	r := AsRejection("photon", plain)
	assert.Equal(t, KindTransport, r.Kind)
	assert.Equal(t, "photon", r.Tier)
	assert.ErrorIs(t, r, plain)
}

func TestIsKind(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", RejectStatus("wsrv", 500))

	assert.True(t, IsKind(err, KindUpstreamHTTP))
	assert.False(t, IsKind(err, KindTimeout))
	assert.False(t, IsKind(errors.New("plain"), KindTransport))
	assert.False(t, IsKind(nil, KindTransport))
}
