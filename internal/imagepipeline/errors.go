// Copyright 2025 James Ross
package imagepipeline

import "errors"

// ErrUnsupportedScheme is raised when a resolved image URL is neither
// http nor https.
var ErrUnsupportedScheme = errors.New("imagepipeline: unsupported URL scheme")

// ErrTooLarge is raised when a downloaded image body exceeds the size cap.
var ErrTooLarge = errors.New("imagepipeline: image exceeds size cap")

// ErrNotImage is raised when the response content type is not image/*.
var ErrNotImage = errors.New("imagepipeline: response is not an image")

// ErrEmptyBody is raised when the response body has zero length.
var ErrEmptyBody = errors.New("imagepipeline: empty response body")

// ErrUnsupportedFormat is raised when the decoded image format is not
// one of the accepted formats.
var ErrUnsupportedFormat = errors.New("imagepipeline: unsupported image format")
