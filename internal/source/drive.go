// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package source

import (
	"net/url"
	"regexp"
	"strings"

	platformnet "github.com/ManuGH/loopcast/internal/platform/net"
)

// driveIDPattern matches the first run of at least 20 word characters or dashes.
var driveIDPattern = regexp.MustCompile(`[\w-]{20,}`)

// ExtractDriveID returns the drive file id contained in ref.
func ExtractDriveID(ref string) (string, bool) {
	id := driveIDPattern.FindString(ref)
	return id, id != ""
}

// DriveDownloadURL builds the direct download URL for a drive file.
func DriveDownloadURL(base, id string) string {
	q := url.Values{}
	q.Set("export", "download")
	q.Set("id", id)
	return strings.TrimRight(base, "?") + "?" + q.Encode()
}

// isDriveRef reports whether ref carries one of the drive markers, either as
// its host or anywhere in the text.
func isDriveRef(ref string, markers []string) bool {
	lower := strings.ToLower(ref)
	var host string
	if u, err := url.Parse(strings.TrimSpace(ref)); err == nil {
		host = u.Hostname()
	}
	for _, m := range markers {
		m = strings.ToLower(strings.TrimSpace(m))
		if m == "" {
			continue
		}
		if host != "" && platformnet.HostMatches(host, m) {
			return true
		}
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}
