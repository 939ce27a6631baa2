// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package source

import "errors"

var (
	// ErrInvalidSource is returned for references that cannot be relayed,
	// such as a drive link without a file id or an unsupported scheme.
	ErrInvalidSource = errors.New("invalid source reference")

	// ErrResolutionFailed is returned when a recognised reference could not be
	// turned into playable media (lookup or download failure).
	ErrResolutionFailed = errors.New("source resolution failed")
)
