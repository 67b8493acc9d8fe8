package icecast

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/grafana/dskit/backoff"
)

func testBackoff(retries int) backoff.Config {
	return backoff.Config{
		MinBackoff: time.Millisecond,
		MaxBackoff: 5 * time.Millisecond,
		MaxRetries: retries,
	}
}

func TestSourceRetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			// Kill the connection so the client sees a transport error.
			hj, ok := w.(http.Hijacker)
			if !ok {
				t.Fatal("server does not support hijacking")
			}
			conn, _, _ := hj.Hijack()
			conn.Close()
			return
		}
		_, _ = w.Write([]byte("audio"))
	}))
	defer srv.Close()

	src := NewSource(SourceConfig{URL: srv.URL, Backoff: testBackoff(5)})
	stream, err := src.Open(context.Background())
	if err != nil {
		t.Fatalf("Open after retries: %v", err)
	}
	stream.Close()

	if got := calls.Load(); got != 3 {
		t.Errorf("server saw %d requests, want 3", got)
	}
}

func TestSourceExhaustsRetries(t *testing.T) {
	src := NewSource(SourceConfig{URL: "http://127.0.0.1:1/stream", Backoff: testBackoff(3)})

	_, err := src.Open(context.Background())
	var connErr *ConnError
	if !errors.As(err, &connErr) {
		t.Fatalf("expected ConnError after exhausted retries, got %v", err)
	}
}

func TestSourceDoesNotRetryStatusErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	src := NewSource(SourceConfig{URL: srv.URL, Backoff: testBackoff(5)})
	_, err := src.Open(context.Background())

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("server saw %d requests, want 1 (no retry on 404)", got)
	}
}

func TestSourceHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	src := NewSource(SourceConfig{URL: "http://127.0.0.1:1/stream", Backoff: testBackoff(0)})

	done := make(chan error, 1)
	go func() {
		_, err := src.Open(ctx)
		done <- err
	}()

	select {
	case err := <-done:
		if err == nil {
			t.Error("expected error from canceled context")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Open did not return promptly after context cancellation")
	}
}
