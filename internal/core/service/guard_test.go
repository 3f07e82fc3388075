package service

import (
	"pixrelay/internal/core/domain"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGuard(t *testing.T) {
	original := blob(1000, domain.SourceDirectOrigin)

	tests := []struct {
		name       string
		transcoded domain.Candidate
		want       domain.SourceTag
	}{
		{name: "smaller wins", transcoded: blob(400, domain.SourceLocalTranscode), want: domain.SourceLocalTranscode},
		{name: "equal keeps original", transcoded: blob(1000, domain.SourceLocalTranscode), want: domain.SourceDirectOrigin},
		{name: "larger keeps original", transcoded: blob(1200, domain.SourceLocalTranscode), want: domain.SourceDirectOrigin},
		{name: "empty keeps original", transcoded: blob(0, domain.SourceLocalTranscode), want: domain.SourceDirectOrigin},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Guard(original, tc.transcoded)

			assert.Equal(t, tc.want, got.Source())
			assert.LessOrEqual(t, got.Size(), original.Size())
		})
	}
}

func TestGuardNeverGrows(t *testing.T) {
	for orig := 1; orig < 64; orig++ {
		for trans := 0; trans < 64; trans++ {
			got := Guard(blob(orig, domain.SourceDirectOrigin), blob(trans, domain.SourceLocalTranscode))
			assert.LessOrEqual(t, got.Size(), orig)
		}
	}
}
