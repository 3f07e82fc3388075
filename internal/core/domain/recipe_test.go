package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in   string
		want Format
	}{
		{"avif", FormatAVIF},
		{"WEBP", FormatWebP},
		{"jpg", FormatJPEG},
		{" jpeg ", FormatJPEG},
		{"png", FormatPNG},
	}

	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseFormat(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	_, err := ParseFormat("bmp")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestFormat_MIMEType(t *testing.T) {
	assert.Equal(t, "image/avif", FormatAVIF.MIMEType())
	assert.Equal(t, "image/jpeg", FormatJPEG.MIMEType())
}

func TestParseChromaMode(t *testing.T) {
	for in, want := range map[string]ChromaMode{"444": ChromaFull, "4:4:4": ChromaFull, "420": ChromaSubsampled, "4:2:0": ChromaSubsampled} {
		got, err := ParseChromaMode(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := ParseChromaMode("4:1:1")
	assert.Error(t, err)
}

func TestTranscodeRecipe_EncodeParams(t *testing.T) {
	r := TranscodeRecipe{Format: FormatWebP, Width: 720, Quality: 40, Effort: 6, Chroma: ChromaSubsampled, Trim: true}

	assert.Equal(t, EncodeParams{Format: FormatWebP, Quality: 40, Effort: 6, Chroma: ChromaSubsampled}, r.EncodeParams())
}
