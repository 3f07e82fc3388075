// Package codec selects the image codec backend named in the configuration.
package codec

import (
	"fmt"
	"pixrelay/internal/adapters/codec/magick"
	"pixrelay/internal/adapters/codec/native"
	"pixrelay/internal/adapters/codec/vips"
	"pixrelay/internal/core/domain"
	"pixrelay/internal/core/port"

	"github.com/rs/zerolog/log"
)

// New returns the backend called name, failing when it cannot write format. "auto" picks the
// first of vips, magick and native that can.
func New(name string, format domain.Format) (port.Codec, error) {
	var c port.Codec
	switch name {
	case vips.Name:
		v, err := vips.New()
		if err != nil {
			return nil, err
		}
		c = v
	case magick.Name:
		m, err := magick.New()
		if err != nil {
			return nil, err
		}
		c = m
	case native.Name:
		c = native.New()
	case "", "auto":
		return auto(format)
	default:
		return nil, fmt.Errorf("%w: unknown codec backend %q", domain.ErrCodecUnavailable, name)
	}

	if !c.Encodes(format) {
		return nil, fmt.Errorf("%w: %s cannot encode %s", domain.ErrCodecUnavailable, c.Name(), format)
	}

	return c, nil
}

func auto(format domain.Format) (port.Codec, error) {
	if c, err := vips.New(); err == nil && c.Encodes(format) {
		return c, nil
	}
	if c, err := magick.New(); err == nil && c.Encodes(format) {
		return c, nil
	}

	c := native.New()
	if !c.Encodes(format) {
		return nil, fmt.Errorf("%w: no backend encodes %s, install libvips or ImageMagick or set recipe.format to jpeg or png",
			domain.ErrCodecUnavailable, format)
	}
	log.Warn().Str("format", string(format)).Msg("no external codec available, using the native codec")

	return c, nil
}
