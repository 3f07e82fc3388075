//go:build vips

package vips

import (
	"fmt"
	"pixrelay/internal/core/domain"
	"pixrelay/internal/core/port"
	"sync"

	"github.com/davidbyttow/govips/v2/vips"
	"github.com/rs/zerolog/log"
)

var startOnce sync.Once

// Codec wraps libvips. It is only compiled with the vips build tag since it needs cgo and the
// libvips headers.
type Codec struct{}

func New() (*Codec, error) {
	startOnce.Do(func() {
		vips.LoggingSettings(func(messageDomain string, _ vips.LogLevel, msg string) {
			log.Debug().Str("vipsDomain", messageDomain).Msg(msg)
		}, vips.LogLevelWarning)
		vips.Startup(nil)
	})

	return &Codec{}, nil
}

// Shutdown releases libvips. No codec may be used afterwards.
func Shutdown() {
	vips.Shutdown()
}

func (c *Codec) Name() string { return Name }

// Encodes checks AVIF and WebP against the modules libvips was built with.
func (c *Codec) Encodes(format domain.Format) bool {
	switch format {
	case domain.FormatAVIF:
		return vips.IsTypeSupported(vips.ImageTypeAVIF)
	case domain.FormatWebP:
		return vips.IsTypeSupported(vips.ImageTypeWEBP)
	case domain.FormatJPEG, domain.FormatPNG:
		return true
	default:
		return false
	}
}

func (c *Codec) Decode(data []byte) (port.Image, error) {
	params := vips.NewImportParams()
	params.FailOnError.Set(false)

	ref, err := vips.LoadImageFromBuffer(data, params)
	if err != nil {
		return nil, fmt.Errorf("vips decode: %w", err)
	}

	return &Image{ref: ref}, nil
}

type Image struct {
	ref *vips.ImageRef
}

func (i *Image) Metadata() domain.ImageMetadata {
	return domain.ImageMetadata{
		Width:  i.ref.Width(),
		Height: i.ref.Height(),
		Frames: max(i.ref.Pages(), 1),
	}
}

// Trim uses the top-left pixel as background, like find_trim does by default.
func (i *Image) Trim(threshold float64) error {
	point, err := i.ref.GetPoint(0, 0)
	if err != nil {
		return fmt.Errorf("vips trim: %w", err)
	}

	bg := &vips.Color{}
	if len(point) >= 3 {
		bg.R, bg.G, bg.B = uint8(point[0]), uint8(point[1]), uint8(point[2])
	} else if len(point) > 0 {
		bg.R, bg.G, bg.B = uint8(point[0]), uint8(point[0]), uint8(point[0])
	}

	left, top, width, height, err := i.ref.FindTrim(threshold, bg)
	if err != nil {
		return fmt.Errorf("vips trim: %w", err)
	}
	if width <= 0 || height <= 0 {
		return nil
	}
	if width == i.ref.Width() && height == i.ref.Height() {
		return nil
	}

	return i.ref.ExtractArea(left, top, width, height)
}

func (i *Image) Resize(width int, kernel domain.Kernel) error {
	if width <= 0 || width >= i.ref.Width() {
		return nil
	}
	if kernel != domain.KernelLanczos3 {
		return fmt.Errorf("vips resize: unsupported kernel %s", kernel)
	}

	return i.ref.Resize(float64(width)/float64(i.ref.Width()), vips.KernelLanczos3)
}

// Encode honours Chroma for JPEG only. The AVIF exporter picks its own subsampling from quality.
func (i *Image) Encode(params domain.EncodeParams) ([]byte, error) {
	var out []byte
	var err error

	switch params.Format {
	case domain.FormatAVIF:
		p := vips.NewAvifExportParams()
		p.Quality = params.Quality
		p.Effort = params.Effort
		p.StripMetadata = true
		out, _, err = i.ref.ExportAvif(p)
	case domain.FormatWebP:
		p := vips.NewWebpExportParams()
		p.Quality = params.Quality
		p.ReductionEffort = min(max(params.Effort, 0), 6)
		p.StripMetadata = true
		out, _, err = i.ref.ExportWebp(p)
	case domain.FormatJPEG:
		p := vips.NewJpegExportParams()
		p.Quality = params.Quality
		p.StripMetadata = true
		p.SubsampleMode = vips.VipsForeignSubsampleOff
		if params.Chroma == domain.ChromaSubsampled {
			p.SubsampleMode = vips.VipsForeignSubsampleOn
		}
		out, _, err = i.ref.ExportJpeg(p)
	case domain.FormatPNG:
		p := vips.NewPngExportParams()
		p.StripMetadata = true
		out, _, err = i.ref.ExportPng(p)
	default:
		return nil, fmt.Errorf("vips encode: %w: %s", domain.ErrUnsupportedFormat, params.Format)
	}
	if err != nil {
		return nil, fmt.Errorf("vips encode: %w", err)
	}

	return out, nil
}

func (i *Image) Close() {
	i.ref.Close()
}
