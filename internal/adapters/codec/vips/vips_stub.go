//go:build !vips

package vips

import (
	"fmt"
	"pixrelay/internal/core/domain"
	"pixrelay/internal/core/port"
)

// Codec is unavailable in builds without the vips tag.
type Codec struct{}

func New() (*Codec, error) {
	return nil, fmt.Errorf("%w: built without the vips tag", domain.ErrCodecUnavailable)
}

func Shutdown() {}

func (c *Codec) Name() string { return Name }

func (c *Codec) Encodes(_ domain.Format) bool { return false }

func (c *Codec) Decode(_ []byte) (port.Image, error) {
	return nil, domain.ErrCodecUnavailable
}
