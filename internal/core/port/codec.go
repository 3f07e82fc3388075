package port

import "pixrelay/internal/core/domain"

type Codec interface {
	// Name identifies the backend in logs.
	Name() string
	// Decode parses an encoded image. Implementations should tolerate minor structural errors.
	Decode(data []byte) (Image, error)
	// Encodes reports whether the backend can write format.
	Encodes(format domain.Format) bool
}

// Image is a decoded image owned by a single transcode run.
type Image interface {
	Metadata() domain.ImageMetadata
	// Trim removes uniform borders whose pixels differ from the background by less than threshold.
	Trim(threshold float64) error
	// Resize scales the image to width, keeping aspect ratio. It never upscales.
	Resize(width int, kernel domain.Kernel) error
	Encode(params domain.EncodeParams) ([]byte, error)
	Close()
}
