// Package pngenc serializes rendered icons to PNG.
package pngenc

import (
	"bytes"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// Encode returns the PNG encoding of img, with default
// compression settings. The output only depends on the pixels of img.
func Encode(img image.Image) ([]byte, error) {
	var b bytes.Buffer
	if err := imaging.Encode(&b, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encoding png: %w", err)
	}
	return b.Bytes(), nil
}

// Decode is the inverse of Encode.
func Decode(data []byte) (image.Image, error) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding png: %w", err)
	}
	return img, nil
}
