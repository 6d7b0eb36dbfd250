package service

import (
	"bytes"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"

	_ "golang.org/x/image/webp"

	"github.com/sakif/blog/internal/apperror"
)

// ReadImage reads an uploaded image. An empty upload means "no image" and
// returns nil. Anything that is not a JPEG, PNG, GIF or WebP image is a
// validation error on the image field.
func ReadImage(r io.Reader) ([]byte, error) {
	if r == nil {
		return nil, nil
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, apperror.ValidationFailed("image", "could not read the uploaded image")
	}
	if len(data) == 0 {
		return nil, nil
	}

	if _, _, err := image.DecodeConfig(bytes.NewReader(data)); err != nil {
		return nil, apperror.ValidationFailed("image", "uploaded file is not a supported image (jpeg, png, gif, webp)")
	}
	return data, nil
}
