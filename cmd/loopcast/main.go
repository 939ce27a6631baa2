// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Command loopcast relays a single video source to an RTMP endpoint.
package main

import (
	"os"

	"github.com/ManuGH/loopcast/internal/log"
	"github.com/ManuGH/loopcast/internal/version"
)

func main() {
	// safe defaults until the configuration is loaded
	log.Configure(log.Config{
		Level:   "info",
		Service: "loopcast",
		Version: version.Version,
	})

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
