// Copyright 2025 James Ross
package imagepipeline

import (
	"bytes"
	"image"
	"image/jpeg"

	"golang.org/x/image/draw"
)

const (
	// maxWidth is the widest a stored product image is kept before being
	// downscaled. Only width is checked: images at or under this width
	// pass through untouched whatever their height.
	maxWidth = 1200

	// jpegQuality is deliberately baseline (non-progressive) per the
	// accepted deviation recorded for re-encoding; see the open
	// question resolutions for the reasoning.
	jpegQuality = 85
)

// resizeIfNeeded downscales img to maxWidth using CatmullRom resampling,
// preserving aspect ratio. Images already at or under maxWidth are
// returned unchanged; the pipeline never enlarges.
func resizeIfNeeded(img image.Image) image.Image {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	if width <= maxWidth {
		return img
	}

	newWidth := maxWidth
	newHeight := int(float64(height) * (float64(newWidth) / float64(width)))
	if newHeight < 1 {
		newHeight = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}

// encodeJPEG re-encodes img as a baseline JPEG at jpegQuality.
func encodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
