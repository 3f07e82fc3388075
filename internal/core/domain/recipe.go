package domain

import (
	"fmt"
	"strings"
)

type Format string

const (
	FormatAVIF Format = "avif"
	FormatWebP Format = "webp"
	FormatJPEG Format = "jpeg"
	FormatPNG  Format = "png"
)

func ParseFormat(s string) (Format, error) {
	switch f := strings.ToLower(strings.TrimSpace(s)); f {
	case "avif":
		return FormatAVIF, nil
	case "webp":
		return FormatWebP, nil
	case "jpeg", "jpg":
		return FormatJPEG, nil
	case "png":
		return FormatPNG, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, s)
	}
}

func (f Format) MIMEType() string {
	return "image/" + string(f)
}

// ChromaMode selects chroma subsampling. Full chroma keeps text legible, subsampled is smaller.
type ChromaMode string

const (
	ChromaFull       ChromaMode = "444"
	ChromaSubsampled ChromaMode = "420"
)

func ParseChromaMode(s string) (ChromaMode, error) {
	switch strings.ReplaceAll(strings.TrimSpace(s), ":", "") {
	case "444":
		return ChromaFull, nil
	case "420":
		return ChromaSubsampled, nil
	default:
		return "", fmt.Errorf("unknown chroma mode %q", s)
	}
}

type Kernel string

const KernelLanczos3 Kernel = "lanczos3"

// TranscodeRecipe is the fixed local processing configuration.
type TranscodeRecipe struct {
	Format        Format
	Width         int
	Quality       int
	Effort        int
	Chroma        ChromaMode
	Trim          bool
	TrimThreshold float64
}

func (r TranscodeRecipe) EncodeParams() EncodeParams {
	return EncodeParams{
		Format:  r.Format,
		Quality: r.Quality,
		Effort:  r.Effort,
		Chroma:  r.Chroma,
	}
}

type EncodeParams struct {
	Format  Format
	Quality int
	Effort  int
	Chroma  ChromaMode
}

type ImageMetadata struct {
	Width  int
	Height int
	Frames int
}
