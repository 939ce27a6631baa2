// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package source

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/loopcast/internal/fetch"
)

type fakeDownloader struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (d *fakeDownloader) Download(_ context.Context, rawURL, dest string, _ int) error {
	d.mu.Lock()
	d.calls = append(d.calls, rawURL)
	d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	return os.WriteFile(dest, []byte("video"), 0o600)
}

func (d *fakeDownloader) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.calls)
}

type fakePlatform struct {
	mu          sync.Mutex
	formats     []Format
	err         error
	formatCalls int
}

func (p *fakePlatform) Formats(context.Context, string) ([]Format, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.formatCalls++
	return p.formats, p.err
}

func (p *fakePlatform) StreamURL(_ context.Context, id string, f Format) (string, error) {
	return "https://media.example.com/" + id + "/" + f.QualityLabel, nil
}

func newTestResolver(t *testing.T, d Downloader, p PlatformClient) (*Resolver, string) {
	t.Helper()
	dir := t.TempDir()
	return NewResolver(Config{
		TempDir:       dir,
		PublicBaseURL: "http://localhost:3000/",
	}, d, p), dir
}

func TestResolve_DriveLinkDownloads(t *testing.T) {
	d := &fakeDownloader{}
	r, dir := newTestResolver(t, d, nil)

	res, err := r.Resolve(context.Background(), "https://drive.google.com/file/d/ABCDEFGHIJKLMNOPQRST1234/view?usp=sharing")
	require.NoError(t, err)

	assert.Equal(t, KindDrive, res.Kind)
	assert.Equal(t, "ABCDEFGHIJKLMNOPQRST1234", res.FileID)
	assert.Equal(t, "https://drive.google.com/uc?export=download&id=ABCDEFGHIJKLMNOPQRST1234", res.URL)
	require.Len(t, d.calls, 1)
	assert.Equal(t, res.URL, d.calls[0])

	assert.Equal(t, dir, filepath.Dir(res.LocalPath))
	assert.True(t, strings.HasSuffix(res.LocalPath, DefaultDriveExt))
	assert.FileExists(t, res.LocalPath)
	assert.Equal(t, "http://localhost:3000/temp/"+filepath.Base(res.LocalPath), res.PublicURL)
	assert.Equal(t, res.LocalPath, res.Input())
	assert.Equal(t, "mp4", res.Container)
}

func TestResolve_DriveLinkWithoutTokenMakesNoNetworkCall(t *testing.T) {
	d := &fakeDownloader{}
	r, _ := newTestResolver(t, d, nil)

	_, err := r.Resolve(context.Background(), "https://drive.google.com/open?id=short")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidSource)
	assert.Zero(t, d.count())
}

func TestResolve_DriveDownloadFailure(t *testing.T) {
	d := &fakeDownloader{err: fetch.ErrDownloadFailed}
	r, dir := newTestResolver(t, d, nil)

	_, err := r.Resolve(context.Background(), "https://drive.google.com/file/d/ABCDEFGHIJKLMNOPQRST1234/view")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrResolutionFailed)
	assert.ErrorIs(t, err, fetch.ErrDownloadFailed)

	entries, _ := os.ReadDir(dir)
	assert.Empty(t, entries)
}

func TestResolve_DirectPassThrough(t *testing.T) {
	r, _ := newTestResolver(t, &fakeDownloader{}, nil)

	res, err := r.Resolve(context.Background(), "https://cdn.example.com/videos/loop.webm")
	require.NoError(t, err)
	assert.Equal(t, KindDirect, res.Kind)
	assert.Equal(t, "https://cdn.example.com/videos/loop.webm", res.Input())
	assert.Equal(t, "webm", res.Container)
	assert.Empty(t, res.LocalPath)
}

func TestResolve_DirectRejectsUnsupported(t *testing.T) {
	r, _ := newTestResolver(t, &fakeDownloader{}, nil)

	for _, ref := range []string{"", "ftp://example.com/a.mp4", "not a url"} {
		_, err := r.Resolve(context.Background(), ref)
		assert.ErrorIs(t, err, ErrInvalidSource, ref)
	}
}

func TestResolve_PlatformPicksBestCombinedFormat(t *testing.T) {
	p := &fakePlatform{formats: []Format{
		{Itag: 137, MimeType: "video/mp4", Height: 1080, Bitrate: 4000000, QualityLabel: "1080p"},
		{Itag: 140, MimeType: "audio/mp4", AudioChannels: 2, Bitrate: 128000},
		{Itag: 18, MimeType: "video/mp4; codecs=\"avc1\"", Height: 360, Bitrate: 500000, AudioChannels: 2, QualityLabel: "360p"},
		{Itag: 22, MimeType: "video/mp4", Height: 720, Bitrate: 1500000, AudioChannels: 2, QualityLabel: "720p"},
		{Itag: 43, MimeType: "video/webm", Height: 720, Bitrate: 900000, AudioChannels: 2, QualityLabel: "720p-webm"},
	}}
	r, _ := newTestResolver(t, &fakeDownloader{}, p)

	res, err := r.Resolve(context.Background(), "https://www.youtube.com/watch?v=dQw4w9WgXcQ&t=42")
	require.NoError(t, err)
	assert.Equal(t, KindPlatform, res.Kind)
	assert.Equal(t, "https://media.example.com/dQw4w9WgXcQ/720p", res.URL)
	assert.Equal(t, "mp4", res.Container)

	// cached
	_, err = r.Resolve(context.Background(), "https://youtu.be/dQw4w9WgXcQ")
	require.NoError(t, err)
	assert.Equal(t, 1, p.formatCalls)
}

func TestResolve_PlatformWithoutCombinedFormat(t *testing.T) {
	p := &fakePlatform{formats: []Format{
		{Itag: 137, MimeType: "video/mp4", Height: 1080},
		{Itag: 140, MimeType: "audio/mp4", AudioChannels: 2},
	}}
	r, _ := newTestResolver(t, &fakeDownloader{}, p)

	_, err := r.Resolve(context.Background(), "https://youtu.be/dQw4w9WgXcQ")
	assert.ErrorIs(t, err, ErrResolutionFailed)
}

func TestResolve_PlatformLookupError(t *testing.T) {
	p := &fakePlatform{err: errors.New("video unavailable")}
	r, _ := newTestResolver(t, &fakeDownloader{}, p)

	_, err := r.Resolve(context.Background(), "https://www.youtube.com/shorts/dQw4w9WgXcQ")
	assert.ErrorIs(t, err, ErrResolutionFailed)
}

func TestPlatformVideoID(t *testing.T) {
	tests := map[string]string{
		"https://www.youtube.com/watch?v=dQw4w9WgXcQ":            "dQw4w9WgXcQ",
		"https://m.youtube.com/watch?feature=x&v=dQw4w9WgXcQ":    "dQw4w9WgXcQ",
		"https://youtu.be/dQw4w9WgXcQ?si=abc":                    "dQw4w9WgXcQ",
		"https://youtube.com/shorts/dQw4w9WgXcQ":                 "dQw4w9WgXcQ",
		"https://www.youtube.com/live/dQw4w9WgXcQ?feature=share": "dQw4w9WgXcQ",
		"https://www.youtube.com/embed/dQw4w9WgXcQ":              "dQw4w9WgXcQ",
	}
	for in, want := range tests {
		got, ok := PlatformVideoID(in)
		require.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}

	for _, in := range []string{
		"https://notyoutube.com/watch?v=dQw4w9WgXcQ",
		"https://www.youtube.com/watch?v=short",
		"https://www.youtube.com/channel/UC123",
		"dQw4w9WgXcQ",
	} {
		_, ok := PlatformVideoID(in)
		assert.False(t, ok, in)
	}
}

func TestClassify(t *testing.T) {
	r, _ := newTestResolver(t, nil, nil)
	assert.Equal(t, KindPlatform, r.Classify("https://youtu.be/dQw4w9WgXcQ"))
	assert.Equal(t, KindDrive, r.Classify("https://DRIVE.google.com/file/d/x/view"))
	assert.Equal(t, KindDirect, r.Classify("https://cdn.example.com/a.mp4"))
}

func TestContainerOf(t *testing.T) {
	assert.Equal(t, "flv", containerOf("rtmp://origin/app/key"))
	assert.Equal(t, "ts", containerOf("srt://host:9000"))
	assert.Equal(t, "mkv", containerOf("/srv/media/a.MKV"))
	assert.Equal(t, "mp4", containerOf("https://cdn.example.com/a.mp4?sig=1"))
	assert.Equal(t, "", containerOf("https://cdn.example.com/stream"))
}
