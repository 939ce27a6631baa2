// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package config loads loopcast configuration with the precedence
// ENV > YAML file > defaults and validates the result.
package config
