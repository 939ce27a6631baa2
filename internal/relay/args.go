// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package relay

import "strings"

// Spec describes one relay invocation.
type Spec struct {
	Input       string // local path or URL ffmpeg reads from
	Destination string // RTMP endpoint without the key
	StreamKey   string
	Container   string // container hint of Input, may be empty
	LogLevel    string // ffmpeg -loglevel value
}

// Target returns the publish URL "<destination>/<key>".
func (s Spec) Target() string {
	return strings.TrimRight(s.Destination, "/") + "/" + s.StreamKey
}

// containers whose H.264 payload is already Annex B (or not MP4-framed).
var annexBContainers = map[string]bool{
	"flv":  true,
	"ts":   true,
	"mkv":  true,
	"webm": true,
}

// needsAnnexB reports whether the h264_mp4toannexb filter applies. Unknown
// containers get the filter.
func needsAnnexB(container string) bool {
	return !annexBContainers[strings.ToLower(container)]
}

// BuildArgs returns the ffmpeg argument vector for a looping copy relay.
func BuildArgs(s Spec) []string {
	level := s.LogLevel
	if level == "" {
		level = "info"
	}

	args := []string{
		"-hide_banner",
		"-nostdin",
		"-loglevel", level,
		// input
		"-re",
		"-stream_loop", "-1",
		"-copyts",
		"-start_at_zero",
		"-fflags", "+genpts",
		"-analyzeduration", "10M",
		"-probesize", "10M",
		"-i", s.Input,
		// video
		"-c:v", "copy",
	}
	if needsAnnexB(s.Container) {
		args = append(args, "-bsf:v", "h264_mp4toannexb")
	}
	args = append(args,
		// audio
		"-c:a", "aac",
		"-ar", "44100",
		"-ac", "2",
		"-b:a", "128k",
		// output
		"-f", "flv",
		"-flvflags", "no_duration_filesize",
		"-rtmp_buffer", "100",
		"-rtmp_live", "live",
		"-timeout", "3000000",
		"-reconnect", "1",
		"-reconnect_at_eof", "1",
		"-reconnect_streamed", "1",
		"-reconnect_delay_max", "2",
		"-avoid_negative_ts", "make_zero",
		"-fflags", "+genpts",
		"-movflags", "+faststart",
		s.Target(),
	)
	return args
}
