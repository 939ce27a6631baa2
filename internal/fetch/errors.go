// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package fetch

import (
	"errors"
	"fmt"
)

var (
	// ErrDownloadFailed is returned once a download cannot complete.
	ErrDownloadFailed = errors.New("download failed")

	// ErrUnexpectedContentType is returned without retry when the server
	// answers with something other than a video payload.
	ErrUnexpectedContentType = fmt.Errorf("%w: unexpected content type", ErrDownloadFailed)

	// ErrTooManyRedirects is returned when the redirect chain exceeds the limit.
	ErrTooManyRedirects = fmt.Errorf("%w: too many redirects", ErrDownloadFailed)

	errIdleTimeout = errors.New("no data received within idle timeout")
)

// permanentError marks an attempt failure that must not be retried.
type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

func permanent(err error) error { return &permanentError{err: err} }

func isPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}
