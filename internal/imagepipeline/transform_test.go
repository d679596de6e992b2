// Copyright 2025 James Ross
package imagepipeline

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResizeIfNeededPassesThroughSmallImages(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 800, 600))
	out := resizeIfNeeded(img)
	assert.Equal(t, 800, out.Bounds().Dx())
}

func TestResizeIfNeededDownscalesLargeImages(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2400, 1600))
	out := resizeIfNeeded(img)
	assert.Equal(t, maxWidth, out.Bounds().Dx())
	assert.InDelta(t, 800, out.Bounds().Dy(), 2)
}

func TestEncodeJPEGRoundTrips(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 10, 10))
	data, err := encodeJPEG(img)
	require.NoError(t, err)
	dec, err := decodeImage(data)
	require.NoError(t, err)
	assert.Equal(t, "jpeg", dec.format)
}
