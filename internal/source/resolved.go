// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package source

import (
	"net/url"
	"path"
	"strings"
)

// Kind classifies a source reference.
type Kind string

const (
	KindDirect   Kind = "direct"
	KindDrive    Kind = "drive"
	KindPlatform Kind = "platform"
)

// Resolved is the playable form of a source reference.
type Resolved struct {
	Kind      Kind
	Reference string // reference as supplied by the caller
	URL       string // remote media URL, empty for purely local input
	LocalPath string // downloaded file owned by the session, if any
	PublicURL string // where LocalPath is served over HTTP
	FileID    string // drive file id
	Container string // lower-case container hint ("mp4", "flv", ...), may be empty
}

// Input returns what the transcoder should read: the local file when one
// was downloaded, otherwise the URL.
func (r Resolved) Input() string {
	if r.LocalPath != "" {
		return r.LocalPath
	}
	return r.URL
}

// knownContainers maps file extensions to container hints.
var knownContainers = map[string]string{
	".mp4":  "mp4",
	".m4v":  "mp4",
	".mov":  "mov",
	".flv":  "flv",
	".ts":   "ts",
	".m2ts": "ts",
	".mkv":  "mkv",
	".webm": "webm",
}

// containerOf guesses the container of a direct reference from its scheme or
// path extension.
func containerOf(ref string) string {
	u, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	switch strings.ToLower(u.Scheme) {
	case "rtmp", "rtmps":
		return "flv"
	case "srt", "udp":
		return "ts"
	}
	return knownContainers[strings.ToLower(path.Ext(u.Path))]
}

// containerOfMime maps "video/mp4; codecs=..." to "mp4".
func containerOfMime(mimeType string) string {
	mt := strings.ToLower(strings.TrimSpace(strings.SplitN(mimeType, ";", 2)[0]))
	switch mt {
	case "video/mp4":
		return "mp4"
	case "video/webm":
		return "webm"
	case "video/x-flv":
		return "flv"
	case "video/mp2t":
		return "ts"
	case "video/x-matroska":
		return "mkv"
	}
	return ""
}
