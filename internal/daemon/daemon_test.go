// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/goleak"

	"github.com/ManuGH/loopcast/internal/config"
	"github.com/ManuGH/loopcast/internal/log"
)

func testServerConfig() ServerConfig {
	return ServerConfig{
		ListenAddr:      "127.0.0.1:0",
		ReadTimeout:     5 * time.Second,
		IdleTimeout:     30 * time.Second,
		ShutdownTimeout: 5 * time.Second,
	}
}

func noKeepAliveClient() *http.Client {
	return &http.Client{
		Timeout:   5 * time.Second,
		Transport: &http.Transport{DisableKeepAlives: true},
	}
}

func waitForAddr(t *testing.T, mgr Manager) string {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if addr := mgr.APIAddr(); addr != "" {
			return addr
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("API server did not start listening")
	return ""
}

func TestNewManager_ValidDeps(t *testing.T) {
	mgr, err := NewManager(testServerConfig(), Deps{
		Logger:     log.WithComponent("test"),
		APIHandler: http.NotFoundHandler(),
	})
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	if mgr == nil {
		t.Fatal("NewManager() returned nil manager")
	}
}

func TestNewManager_InvalidDeps(t *testing.T) {
	tests := []struct {
		name string
		deps Deps
		want error
	}{
		{"missing logger", Deps{Logger: zerolog.Nop(), APIHandler: http.NotFoundHandler()}, ErrMissingLogger},
		{"missing handler", Deps{Logger: log.WithComponent("test")}, ErrMissingAPIHandler},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewManager(testServerConfig(), tt.deps)
			if !errors.Is(err, tt.want) {
				t.Fatalf("NewManager() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestManager_StartStop_RunsHooksLIFO(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	mgr, err := NewManager(testServerConfig(), Deps{
		Logger: log.WithComponent("test"),
		APIHandler: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, "pong")
		}),
	})
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	var (
		mu    sync.Mutex
		order []string
	)
	for _, name := range []string{"first", "second", "third"} {
		mgr.RegisterShutdownHook(name, func(context.Context) error {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return nil
		})
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- mgr.Start(ctx) }()

	addr := waitForAddr(t, mgr)
	resp, err := noKeepAliveClient().Get("http://" + addr + "/")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if string(body) != "pong" {
		t.Fatalf("body = %q, want pong", body)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Start() returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("manager did not stop")
	}

	mu.Lock()
	defer mu.Unlock()
	if got := strings.Join(order, ","); got != "third,second,first" {
		t.Fatalf("hook order = %s, want third,second,first", got)
	}
}

func TestManager_HookErrorsAreJoined(t *testing.T) {
	mgr, err := NewManager(testServerConfig(), Deps{Logger: log.WithComponent("test"), APIHandler: http.NotFoundHandler()})
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	errA := errors.New("a failed")
	errB := errors.New("b failed")
	mgr.RegisterShutdownHook("a", func(context.Context) error { return errA })
	mgr.RegisterShutdownHook("b", func(context.Context) error { return errB })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- mgr.Start(ctx) }()
	waitForAddr(t, mgr)
	cancel()

	err = <-done
	if !errors.Is(err, errA) || !errors.Is(err, errB) {
		t.Fatalf("Start() error = %v, want both hook errors", err)
	}
}

func TestManager_StartTwiceAndShutdownBeforeStart(t *testing.T) {
	mgr, err := NewManager(testServerConfig(), Deps{Logger: log.WithComponent("test"), APIHandler: http.NotFoundHandler()})
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	if err := mgr.Shutdown(context.Background()); !errors.Is(err, ErrManagerNotStarted) {
		t.Fatalf("Shutdown() before start = %v, want ErrManagerNotStarted", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- mgr.Start(ctx) }()
	waitForAddr(t, mgr)

	if err := mgr.Start(ctx); !errors.Is(err, ErrManagerAlreadyStarted) {
		t.Fatalf("second Start() = %v, want ErrManagerAlreadyStarted", err)
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Start() returned %v", err)
	}
}

func TestManager_BindFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	cfg := testServerConfig()
	cfg.ListenAddr = ln.Addr().String()
	mgr, err := NewManager(cfg, Deps{Logger: log.WithComponent("test"), APIHandler: http.NotFoundHandler()})
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	if err := mgr.Start(context.Background()); err == nil || !strings.Contains(err.Error(), "failed to start API server") {
		t.Fatalf("Start() error = %v, want bind failure", err)
	}
}

func TestApp_WorkerFailureStopsServers(t *testing.T) {
	mgr, err := NewManager(testServerConfig(), Deps{Logger: log.WithComponent("test"), APIHandler: http.NotFoundHandler()})
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	boom := errors.New("boom")
	app := NewApp(log.WithComponent("test"), mgr, Worker{
		Name: "broken",
		Run: func(context.Context) error {
			waitForAddr(t, mgr)
			return boom
		},
	})

	errCh := make(chan error, 1)
	go func() { errCh <- app.Run(context.Background()) }()
	select {
	case err := <-errCh:
		if !errors.Is(err, boom) {
			t.Fatalf("Run() = %v, want boom", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("app did not stop after worker failure")
	}
}

func TestApp_MissingManager(t *testing.T) {
	if err := NewApp(log.WithComponent("test"), nil).Run(context.Background()); !errors.Is(err, ErrMissingManager) {
		t.Fatalf("Run() = %v, want ErrMissingManager", err)
	}
}

func TestBootstrap_ServesAPI(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Defaults()
	cfg.DataDir = dir
	cfg.API.ListenAddr = "127.0.0.1:0"
	cfg.API.RateLimit.Enabled = false
	cfg.Metrics.Enabled = false
	cfg.Storage.UploadDir = filepath.Join(dir, "uploads")
	cfg.Storage.TempDir = filepath.Join(dir, "temp")
	cfg.FFmpeg.Bin = "/nonexistent/ffmpeg"

	rt, err := Bootstrap(cfg, nil)
	if err != nil {
		t.Fatalf("Bootstrap() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- rt.App.Run(ctx) }()
	addr := waitForAddr(t, rt.Manager)
	client := noKeepAliveClient()

	resp, err := client.Get("http://" + addr + "/api/stream/status")
	if err != nil {
		t.Fatalf("GET status: %v", err)
	}
	var st map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	_ = resp.Body.Close()
	if st["phase"] != "idle" || st["active"] != false {
		t.Fatalf("status = %v, want idle", st)
	}

	resp, err = client.Get("http://" + addr + "/readyz")
	if err != nil {
		t.Fatalf("GET readyz: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("readyz status = %d, want 503 without ffmpeg", resp.StatusCode)
	}

	// a direct source with a missing ffmpeg binary fails at launch and leaves the relay idle
	resp, err = client.Post("http://"+addr+"/api/stream/start", "application/json",
		strings.NewReader(`{"streamKey":"k","sourceReference":"https://cdn.example/v.mp4"}`))
	if err != nil {
		t.Fatalf("POST start: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("start status = %d, want 500", resp.StatusCode)
	}
	if got := rt.Supervisor.Status().Phase; got != "idle" {
		t.Fatalf("phase after failed launch = %s, want idle", got)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("runtime did not stop")
	}
}
