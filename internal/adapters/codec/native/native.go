// Package native is the pure Go codec backend. It decodes everything the standard library and
// x/image understand but only encodes JPEG and PNG.
package native

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"image/png"
	"pixrelay/internal/core/domain"
	"pixrelay/internal/core/port"

	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog/log"
	_ "golang.org/x/image/webp"
)

const Name = "native"

type Codec struct{}

func New() *Codec {
	return &Codec{}
}

func (c *Codec) Name() string { return Name }

func (c *Codec) Encodes(format domain.Format) bool {
	return format == domain.FormatJPEG || format == domain.FormatPNG
}

func (c *Codec) Decode(data []byte) (port.Image, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("native decode: %w", err)
	}

	return &Image{img: img, frames: countFrames(data)}, nil
}

func countFrames(data []byte) int {
	if !mimetype.Detect(data).Is("image/gif") {
		return 1
	}

	g, err := gif.DecodeAll(bytes.NewReader(data))
	if err != nil || len(g.Image) == 0 {
		return 1
	}

	return len(g.Image)
}

// Image keeps the first frame only, so animations are flattened on encode.
type Image struct {
	img    image.Image
	frames int
}

func (i *Image) Metadata() domain.ImageMetadata {
	b := i.img.Bounds()
	return domain.ImageMetadata{Width: b.Dx(), Height: b.Dy(), Frames: i.frames}
}

// Trim crops to the bounding box of pixels that differ from the top-left pixel by more than
// threshold on any 8 bit channel.
func (i *Image) Trim(threshold float64) error {
	box, ok := contentBounds(i.img, threshold)
	if !ok {
		log.Debug().Msg("image is uniform, nothing to trim")
		return nil
	}
	if box == i.img.Bounds() {
		return nil
	}

	i.img = imaging.Crop(i.img, box)

	return nil
}

func contentBounds(img image.Image, threshold float64) (image.Rectangle, bool) {
	b := img.Bounds()
	if b.Empty() {
		return b, false
	}

	bg := color.NRGBAModel.Convert(img.At(b.Min.X, b.Min.Y)).(color.NRGBA)
	box := image.Rectangle{Min: b.Max, Max: b.Min}
	found := false

	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			if !differs(bg, c, threshold) {
				continue
			}
			found = true
			box.Min.X = min(box.Min.X, x)
			box.Min.Y = min(box.Min.Y, y)
			box.Max.X = max(box.Max.X, x+1)
			box.Max.Y = max(box.Max.Y, y+1)
		}
	}

	return box, found
}

func differs(a, b color.NRGBA, threshold float64) bool {
	diff := func(x, y uint8) float64 {
		if x > y {
			return float64(x - y)
		}
		return float64(y - x)
	}

	return diff(a.R, b.R) > threshold || diff(a.G, b.G) > threshold ||
		diff(a.B, b.B) > threshold || diff(a.A, b.A) > threshold
}

func (i *Image) Resize(width int, kernel domain.Kernel) error {
	if width <= 0 || width >= i.img.Bounds().Dx() {
		return nil
	}
	if kernel != domain.KernelLanczos3 {
		return fmt.Errorf("native resize: unsupported kernel %s", kernel)
	}

	i.img = imaging.Resize(i.img, width, 0, imaging.Lanczos)

	return nil
}

// Encode ignores the chroma mode: the standard JPEG encoder always subsamples to 4:2:0.
func (i *Image) Encode(params domain.EncodeParams) ([]byte, error) {
	var buf bytes.Buffer

	var err error
	switch params.Format {
	case domain.FormatJPEG:
		err = imaging.Encode(&buf, i.img, imaging.JPEG, imaging.JPEGQuality(params.Quality))
	case domain.FormatPNG:
		err = imaging.Encode(&buf, i.img, imaging.PNG, imaging.PNGCompressionLevel(png.BestCompression))
	default:
		return nil, fmt.Errorf("native encode: %w: %s", domain.ErrUnsupportedFormat, params.Format)
	}
	if err != nil {
		return nil, fmt.Errorf("native encode: %w", err)
	}

	return buf.Bytes(), nil
}

func (i *Image) Close() {
	i.img = nil
}
