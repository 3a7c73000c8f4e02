package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"testing"
	"time"
)

func newTestServer() *Server {
	return New(http.NotFoundHandler(), Config{
		Port:            0,
		ReadTimeout:     time.Second,
		WriteTimeout:    time.Second,
		ShutdownTimeout: time.Second,
	}, slog.New(slog.DiscardHandler))
}

func TestServer_ShutdownOrder(t *testing.T) {
	srv := newTestServer()

	var order []string
	for _, name := range []string{"redis", "tracing", "sentry"} {
		srv.OnShutdown(name, func(ctx context.Context) error {
			order = append(order, name)
			return nil
		})
	}

	if err := srv.Shutdown(); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}

	want := []string{"sentry", "tracing", "redis"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order[%d] = %s, want %s", i, order[i], want[i])
		}
	}
}

func TestServer_ShutdownJoinsErrors(t *testing.T) {
	srv := newTestServer()
	errRedis := errors.New("redis close failed")

	called := false
	srv.OnShutdown("redis", func(ctx context.Context) error { return errRedis })
	srv.OnShutdown("tracing", func(ctx context.Context) error {
		called = true
		return nil
	})

	err := srv.Shutdown()
	if !errors.Is(err, errRedis) {
		t.Fatalf("expected redis error, got %v", err)
	}
	if !called {
		t.Error("a failing component must not stop the others")
	}
}

func TestServer_RunStopsOnCancel(t *testing.T) {
	srv := newTestServer()

	stopped := make(chan struct{})
	srv.OnShutdown("probe", func(ctx context.Context) error {
		close(stopped)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}

	select {
	case <-stopped:
	default:
		t.Error("shutdown hook was not called")
	}
}

func TestServer_ServesUntilCancelled(t *testing.T) {
	srv := New(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}), Config{ReadTimeout: time.Second, WriteTimeout: time.Second, ShutdownTimeout: time.Second},
		slog.New(slog.DiscardHandler))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	var resp *http.Response
	deadline := time.Now().Add(5 * time.Second)
	for {
		addr := srv.Addr()
		if addr != ":0" {
			var err error
			resp, err = http.Get("http://" + addr + "/")
			if err == nil {
				break
			}
		}
		if time.Now().After(deadline) {
			t.Fatal("server never became reachable")
		}
		time.Sleep(10 * time.Millisecond)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(body) != "ok" {
		t.Errorf("body = %q, want ok", body)
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run() error = %v", err)
	}
}

func TestServer_ListenFailureRunsHooks(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	port := ln.Addr().(*net.TCPAddr).Port

	srv := New(http.NotFoundHandler(), Config{Port: port, ShutdownTimeout: time.Second}, slog.New(slog.DiscardHandler))
	srv.http.Addr = fmt.Sprintf("127.0.0.1:%d", port)

	released := false
	srv.OnShutdown("telemetry", func(ctx context.Context) error {
		released = true
		return nil
	})

	if err := srv.Run(context.Background()); err == nil {
		t.Fatal("expected listen error for a taken port")
	}
	if !released {
		t.Error("hooks must run when the listener fails")
	}
}
