// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package net

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

// ErrUnsupportedScheme is returned for references ffmpeg cannot open as input.
var ErrUnsupportedScheme = errors.New("unsupported source scheme")

// inputSchemes lists the URL schemes accepted as direct relay input.
var inputSchemes = map[string]bool{
	"http":  true,
	"https": true,
	"rtmp":  true,
	"rtmps": true,
	"rtsp":  true,
	"srt":   true,
	"udp":   true,
	"file":  true,
}

// SanitizeURL removes user info and query parameters for safe logging.
func SanitizeURL(rawURL string) string {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return "invalid-url-redacted"
	}
	parsedURL.User = nil
	parsedURL.RawQuery = ""
	return parsedURL.String()
}

// ValidateInputURL checks that raw is something ffmpeg can read directly:
// an absolute local path or a URL with a supported scheme and, for network
// schemes, a host.
func ValidateInputURL(raw string) error {
	s := strings.TrimSpace(raw)
	if s == "" {
		return fmt.Errorf("source reference is empty")
	}
	if filepath.IsAbs(s) {
		return nil
	}
	u, err := url.Parse(s)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	scheme := strings.ToLower(u.Scheme)
	if !inputSchemes[scheme] {
		if scheme == "" {
			return fmt.Errorf("%w: missing scheme in %q", ErrUnsupportedScheme, SanitizeURL(s))
		}
		return fmt.Errorf("%w: %q", ErrUnsupportedScheme, scheme)
	}
	if scheme == "file" {
		if u.Path == "" {
			return fmt.Errorf("file url without path")
		}
		return nil
	}
	if u.Host == "" {
		return fmt.Errorf("missing url host")
	}
	return nil
}

// ParseHTTPURL returns the parsed URL when raw is an absolute http(s) URL.
func ParseHTTPURL(raw string) (*url.URL, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, false
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return nil, false
	}
	if u.Host == "" {
		return nil, false
	}
	return u, true
}
