// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package stream

import "errors"

var (
	// ErrInvalidInput is returned for start requests missing required fields.
	ErrInvalidInput = errors.New("invalid input")
	// ErrAlreadyStreaming is returned by Start unless the relay is idle.
	ErrAlreadyStreaming = errors.New("stream is already running")
	// ErrNotStreaming is returned by Stop when nothing is starting or active.
	ErrNotStreaming = errors.New("no active stream")
	// ErrProcessFault is returned when the relay process cannot be launched.
	ErrProcessFault = errors.New("relay process fault")
	// ErrStartCancelled is returned by a Start that was overtaken by Stop.
	ErrStartCancelled = errors.New("start cancelled by stop")
)
