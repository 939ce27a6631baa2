// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package source

import (
	"context"
	"fmt"
	"net/http"

	"github.com/kkdai/youtube/v2"
)

// YouTubeClient implements PlatformClient on top of github.com/kkdai/youtube.
type YouTubeClient struct {
	client *youtube.Client
}

// NewYouTubeClient returns a client using httpClient for all lookups.
func NewYouTubeClient(httpClient *http.Client) *YouTubeClient {
	return &YouTubeClient{client: &youtube.Client{HTTPClient: httpClient}}
}

type youtubeHandle struct {
	video  *youtube.Video
	format youtube.Format
}

// Formats lists the formats of a video.
func (c *YouTubeClient) Formats(ctx context.Context, videoID string) ([]Format, error) {
	video, err := c.client.GetVideoContext(ctx, videoID)
	if err != nil {
		return nil, err
	}
	out := make([]Format, 0, len(video.Formats))
	for _, f := range video.Formats {
		out = append(out, Format{
			Itag:          f.ItagNo,
			MimeType:      f.MimeType,
			Width:         f.Width,
			Height:        f.Height,
			Bitrate:       f.Bitrate,
			AudioChannels: f.AudioChannels,
			QualityLabel:  f.QualityLabel,
			handle:        youtubeHandle{video: video, format: f},
		})
	}
	return out, nil
}

// StreamURL returns the playable URL of a format obtained from Formats.
func (c *YouTubeClient) StreamURL(ctx context.Context, videoID string, f Format) (string, error) {
	h, ok := f.handle.(youtubeHandle)
	if !ok {
		return "", fmt.Errorf("format %d of %s was not listed by this client", f.Itag, videoID)
	}
	return c.client.GetStreamURLContext(ctx, h.video, &h.format)
}
