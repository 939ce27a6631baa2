// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package source

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/ManuGH/loopcast/internal/metrics"
	platformnet "github.com/ManuGH/loopcast/internal/platform/net"
)

// Format is one media rendition offered by a video platform.
type Format struct {
	Itag          int
	MimeType      string
	Width         int
	Height        int
	Bitrate       int
	AudioChannels int
	QualityLabel  string

	// opaque handle for the client that produced the format
	handle any
}

// HasAudioAndVideo reports whether the format is a combined rendition.
func (f Format) HasAudioAndVideo() bool {
	return f.AudioChannels > 0 && f.Height > 0 && strings.HasPrefix(strings.ToLower(f.MimeType), "video/")
}

// PlatformClient lists the formats of a platform video and turns one of them
// into a playable URL.
type PlatformClient interface {
	Formats(ctx context.Context, videoID string) ([]Format, error)
	StreamURL(ctx context.Context, videoID string, f Format) (string, error)
}

var (
	errNoCombinedFormat = errors.New("no format with both audio and video")

	platformIDPattern = regexp.MustCompile(`^[\w-]{11}$`)
	platformPathKinds = []string{"/shorts/", "/live/", "/embed/", "/v/"}
)

// PlatformVideoID returns the video id of a platform share link. It accepts
// watch, short-link, shorts, live and embed forms.
func PlatformVideoID(ref string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(ref))
	if err != nil || u.Host == "" {
		return "", false
	}
	host := u.Hostname()

	var id string
	switch {
	case platformnet.HostMatches(host, "youtu.be"):
		id = strings.SplitN(strings.TrimPrefix(u.Path, "/"), "/", 2)[0]
	case platformnet.HostMatches(host, "youtube.com") || platformnet.HostMatches(host, "youtube-nocookie.com"):
		if u.Path == "/watch" {
			id = u.Query().Get("v")
			break
		}
		for _, prefix := range platformPathKinds {
			if rest, ok := strings.CutPrefix(u.Path, prefix); ok {
				id = strings.SplitN(rest, "/", 2)[0]
				break
			}
		}
	default:
		return "", false
	}
	if !platformIDPattern.MatchString(id) {
		return "", false
	}
	return id, true
}

// SelectFormat picks the combined audio+video format with the greatest
// height, preferring the higher bitrate on ties.
func SelectFormat(formats []Format) (Format, bool) {
	var best Format
	found := false
	for _, f := range formats {
		if !f.HasAudioAndVideo() {
			continue
		}
		if !found || f.Height > best.Height || (f.Height == best.Height && f.Bitrate > best.Bitrate) {
			best = f
			found = true
		}
	}
	return best, found
}

type platformEntry struct {
	url       string
	container string
	format    Format
}

// platformResolver resolves platform links and memoises the stream URLs.
type platformResolver struct {
	client PlatformClient
	cache  *cache.Cache
}

func newPlatformResolver(client PlatformClient, ttl time.Duration) *platformResolver {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &platformResolver{
		client: client,
		cache:  cache.New(ttl, 2*ttl),
	}
}

func (p *platformResolver) resolve(ctx context.Context, videoID string) (platformEntry, error) {
	if v, ok := p.cache.Get(videoID); ok {
		metrics.IncPlatformCache("hit")
		return v.(platformEntry), nil
	}
	metrics.IncPlatformCache("miss")

	if p.client == nil {
		return platformEntry{}, errors.New("no platform client configured")
	}
	formats, err := p.client.Formats(ctx, videoID)
	if err != nil {
		return platformEntry{}, fmt.Errorf("list formats: %w", err)
	}
	f, ok := SelectFormat(formats)
	if !ok {
		return platformEntry{}, errNoCombinedFormat
	}
	streamURL, err := p.client.StreamURL(ctx, videoID, f)
	if err != nil {
		return platformEntry{}, fmt.Errorf("stream url for itag %d: %w", f.Itag, err)
	}

	entry := platformEntry{url: streamURL, container: containerOfMime(f.MimeType), format: f}
	p.cache.SetDefault(videoID, entry)
	return entry, nil
}
