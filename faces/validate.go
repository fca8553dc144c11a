package faces

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
)

const (
	MinImageSize = 100  // below this matching is unreliable
	MaxImageSize = 1000 // above this the image is rejected as oversized
)

func ValidateDimensions(width, height int) error {
	if width < MinImageSize || height < MinImageSize {
		return fmt.Errorf("%w: resolution %dx%d too low for secure face recognition", ErrInvalidImage, width, height)
	}
	if width > MaxImageSize || height > MaxImageSize {
		return fmt.Errorf("%w: resolution %dx%d too high, please reduce size", ErrInvalidImage, width, height)
	}
	return nil
}

// ValidateImage only decodes the image header
func ValidateImage(data []byte) (image.Config, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return cfg, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	return cfg, ValidateDimensions(cfg.Width, cfg.Height)
}
