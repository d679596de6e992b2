// Copyright 2025 James Ross
package queue

import "errors"

// ErrNotFound is returned when a job id does not exist.
var ErrNotFound = errors.New("queue: job not found")

// ErrLostLease is returned when a caller tries to mutate a job it no
// longer owns: the update predicate matched zero rows because the
// lease already expired or was reaped by another worker. The caller
// must abort the pipeline silently, per the lost-lease error kind.
var ErrLostLease = errors.New("queue: lost lease")

// ErrInvalidType is a validation error raised synchronously by enqueue
// when the caller names a job type the core does not recognize.
var ErrInvalidType = errors.New("queue: invalid job type")

// ErrInvalidURL is a validation error raised synchronously by enqueue
// when target_url is not an absolute http(s) URL.
var ErrInvalidURL = errors.New("queue: invalid target url")
