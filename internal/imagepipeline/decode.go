// Copyright 2025 James Ross
package imagepipeline

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"golang.org/x/image/webp"
)

// decoded holds a decoded image plus the format name it was decoded as.
type decoded struct {
	img    image.Image
	format string
}

// decodeImage validates the body against the accepted formats (jpeg,
// png, gif, webp) and fully decodes it. Grounded on the decode/resize
// shape used by the imaging service referenced in the example pack,
// which registers the same format set before touching pixels.
func decodeImage(data []byte) (decoded, error) {
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return decoded{}, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}

	switch format {
	case "jpeg", "png", "gif":
		img, _, err := image.Decode(bytes.NewReader(data))
		if err != nil {
			return decoded{}, fmt.Errorf("imagepipeline: decode %s: %w", format, err)
		}
		return decoded{img: img, format: format}, nil
	case "webp":
		img, err := webp.Decode(bytes.NewReader(data))
		if err != nil {
			return decoded{}, fmt.Errorf("imagepipeline: decode webp: %w", err)
		}
		return decoded{img: img, format: format}, nil
	default:
		return decoded{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}
