// Copyright 2025 James Ross
package imagepipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeImageJPEG(t *testing.T) {
	data := testJPEG(t, 40, 30)
	dec, err := decodeImage(data)
	require.NoError(t, err)
	assert.Equal(t, "jpeg", dec.format)
	assert.Equal(t, 40, dec.img.Bounds().Dx())
	assert.Equal(t, 30, dec.img.Bounds().Dy())
}

func TestDecodeImageRejectsGarbage(t *testing.T) {
	_, err := decodeImage([]byte("not an image"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}
