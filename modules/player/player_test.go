package player

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/krperry/mediaAI/pkg/decode"
	"github.com/krperry/mediaAI/pkg/icecast"
	"github.com/krperry/mediaAI/pkg/pcm"
	"github.com/krperry/mediaAI/pkg/playback"
)

// tickReader yields one byte per millisecond, standing in for a live
// network stream. Cancellation is exercised through the session's chunk
// channel, so reads here only need to be short.
type tickReader struct {
	eofAfter int64
	read     atomic.Int64
}

func (r *tickReader) Read(p []byte) (int, error) {
	time.Sleep(time.Millisecond)
	if r.eofAfter > 0 && r.read.Load() >= r.eofAfter {
		return 0, io.EOF
	}
	if len(p) == 0 {
		return 0, nil
	}
	p[0] = 0xAA
	r.read.Add(1)
	return 1, nil
}

func (r *tickReader) Close() error { return nil }

// fakeDecoder turns every byte of input into one synthetic PCM frame, so
// pipeline pacing follows the reader and cancellation flows through it.
type fakeDecoder struct {
	r   io.Reader
	err error
}

func (d *fakeDecoder) NextFrame() (*pcm.Frame, error) {
	if d.err != nil {
		return nil, d.err
	}
	buf := make([]byte, 1)
	if _, err := d.r.Read(buf); err != nil {
		return nil, err
	}
	return &pcm.Frame{SampleRate: 44100, Channels: 2, Data: make([]byte, 64)}, nil
}

type fakeSink struct {
	mu         sync.Mutex
	opened     bool
	closed     bool
	sampleRate int
	channels   int
	frames     int
	volume     float64
	writeErr   error
}

func (s *fakeSink) Open(sampleRate, channels int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opened = true
	s.sampleRate = sampleRate
	s.channels = channels
	return nil
}

func (s *fakeSink) WriteFrame(_ *pcm.Frame) error {
	time.Sleep(2 * time.Millisecond) // device pacing
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return s.writeErr
	}
	s.frames++
	return nil
}

func (s *fakeSink) SetVolume(v float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.volume = v
}

func (s *fakeSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeSink) snapshot() fakeSink {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fakeSink{
		opened: s.opened, closed: s.closed,
		sampleRate: s.sampleRate, channels: s.channels,
		frames: s.frames, volume: s.volume,
	}
}

type testHarness struct {
	player *Player
	sinks  []*fakeSink
	opens  atomic.Int64
	mu     sync.Mutex
}

func (h *testHarness) lastSink() *fakeSink {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.sinks) == 0 {
		return nil
	}
	return h.sinks[len(h.sinks)-1]
}

func newTestPlayer(t *testing.T, open openFunc) *testHarness {
	t.Helper()

	cfg := Config{
		RingFrames:        8,
		BufferThreshold:   0.5,
		ChunkSize:         512,
		StopTimeout:       2 * time.Second,
		ConnectBackoff:    time.Millisecond,
		ConnectBackoffMax: 5 * time.Millisecond,
		ConnectRetries:    2,
		SettingsFile:      filepath.Join(t.TempDir(), "settings.json"),
	}

	p, err := New(cfg, *slog.Default(), prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	h := &testHarness{player: p}

	p.newSource = func(_ Station, _ icecast.MetadataFunc) openFunc {
		return func(ctx context.Context) (io.ReadCloser, error) {
			h.opens.Add(1)
			return open(ctx)
		}
	}
	p.newDecoder = func(r io.Reader) (frameDecoder, error) {
		return &fakeDecoder{r: r}, nil
	}
	p.newSink = func(volume float64) playback.Sink {
		s := &fakeSink{volume: volume}
		h.mu.Lock()
		h.sinks = append(h.sinks, s)
		h.mu.Unlock()
		return s
	}

	t.Cleanup(p.Stop)
	return h
}

func openTick(_ context.Context) (io.ReadCloser, error) {
	return &tickReader{}, nil
}

func waitForState(t *testing.T, ch <-chan Status, want State) Status {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case st := <-ch:
			if st.State == want {
				return st
			}
		case <-deadline:
			t.Fatalf("timed out waiting for state %v", want)
		}
	}
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

var testStation = Station{ID: "groove", Name: "Groove Salad", URL: "http://stream.example.com/groove"}

func TestPlayReachesPlaying(t *testing.T) {
	h := newTestPlayer(t, openTick)
	ch := h.player.Subscribe("t")
	defer h.player.Unsubscribe("t")

	if err := h.player.Play(testStation); err != nil {
		t.Fatalf("Play: %v", err)
	}

	if got := h.player.Status().State; got != StateBuffering {
		t.Errorf("state after Play = %v, want buffering", got)
	}

	st := waitForState(t, ch, StatePlaying)
	if st.Station == nil || st.Station.ID != "groove" {
		t.Errorf("playing status station = %+v", st.Station)
	}

	sink := h.lastSink()
	waitFor(t, func() bool { return sink.snapshot().frames > 0 }, "no frames reached the sink")
	snap := sink.snapshot()
	if snap.sampleRate != 44100 || snap.channels != 2 {
		t.Errorf("sink opened at %d/%d, want 44100/2", snap.sampleRate, snap.channels)
	}
}

func TestStopFromBufferingEmitsNothing(t *testing.T) {
	h := newTestPlayer(t, openTick)
	// A threshold the slow fake stream cannot reach within the test.
	h.player.cfg.RingFrames = 10000
	h.player.cfg.BufferThreshold = 1.0

	if err := h.player.Play(testStation); err != nil {
		t.Fatalf("Play: %v", err)
	}
	time.Sleep(50 * time.Millisecond)

	h.player.Stop()

	if got := h.player.Status().State; got != StateStopped {
		t.Errorf("state after Stop = %v, want stopped", got)
	}
	snap := h.lastSink().snapshot()
	if snap.opened || snap.frames != 0 {
		t.Errorf("sink saw output before playback started: %+v", snap)
	}
}

func TestStopIsBounded(t *testing.T) {
	h := newTestPlayer(t, openTick)
	ch := h.player.Subscribe("t")
	defer h.player.Unsubscribe("t")

	if err := h.player.Play(testStation); err != nil {
		t.Fatalf("Play: %v", err)
	}
	waitForState(t, ch, StatePlaying)

	start := time.Now()
	h.player.Stop()
	if elapsed := time.Since(start); elapsed > h.player.cfg.StopTimeout {
		t.Errorf("Stop took %v, bound is %v", elapsed, h.player.cfg.StopTimeout)
	}
	if got := h.player.Status().State; got != StateStopped {
		t.Errorf("state = %v, want stopped", got)
	}
}

func TestSwitchNoOverlap(t *testing.T) {
	h := newTestPlayer(t, openTick)
	ch := h.player.Subscribe("t")
	defer h.player.Unsubscribe("t")

	if err := h.player.Play(testStation); err != nil {
		t.Fatalf("Play: %v", err)
	}
	waitForState(t, ch, StatePlaying)
	oldSink := h.lastSink()

	next := Station{ID: "jazz", Name: "Jazz24", URL: "http://stream.example.com/jazz"}
	if err := h.player.Switch(next); err != nil {
		t.Fatalf("Switch: %v", err)
	}

	// Old session is fully torn down when Switch returns.
	old := oldSink.snapshot()
	if !old.closed {
		t.Error("old sink not closed after switch")
	}
	frozen := old.frames
	time.Sleep(50 * time.Millisecond)
	if got := oldSink.snapshot().frames; got != frozen {
		t.Errorf("old sink received %d frames after switch returned", got-frozen)
	}

	waitForState(t, ch, StatePlaying)
	if st := h.player.Status(); st.Station == nil || st.Station.ID != "jazz" {
		t.Errorf("station after switch = %+v", st.Station)
	}
}

func TestPlayHTTP404SurfacesError(t *testing.T) {
	h := newTestPlayer(t, func(_ context.Context) (io.ReadCloser, error) {
		return nil, &icecast.StatusError{URL: "http://x", Code: 404, Status: "404 Not Found"}
	})
	ch := h.player.Subscribe("t")
	defer h.player.Unsubscribe("t")

	if err := h.player.Play(testStation); err != nil {
		t.Fatalf("Play: %v", err)
	}

	st := waitForState(t, ch, StateError)
	if st.Message != "stream returned HTTP 404" {
		t.Errorf("message = %q", st.Message)
	}

	// The transport must accept a new play after an error.
	h.player.newSource = func(_ Station, _ icecast.MetadataFunc) openFunc { return openTick }
	if err := h.player.Play(testStation); err != nil {
		t.Fatalf("Play after error: %v", err)
	}
	waitForState(t, ch, StatePlaying)
}

func TestConnectionLossReconnects(t *testing.T) {
	h := newTestPlayer(t, func(_ context.Context) (io.ReadCloser, error) {
		return &tickReader{eofAfter: 20}, nil
	})
	ch := h.player.Subscribe("t")
	defer h.player.Unsubscribe("t")

	if err := h.player.Play(testStation); err != nil {
		t.Fatalf("Play: %v", err)
	}
	waitForState(t, ch, StatePlaying)

	waitFor(t, func() bool { return h.opens.Load() >= 2 }, "no reconnect after stream EOF")
}

func TestExhaustedRetriesSurfaceError(t *testing.T) {
	h := newTestPlayer(t, func(_ context.Context) (io.ReadCloser, error) {
		return nil, &icecast.ConnError{URL: "http://x", Err: fmt.Errorf("connection refused")}
	})
	ch := h.player.Subscribe("t")
	defer h.player.Unsubscribe("t")

	if err := h.player.Play(testStation); err != nil {
		t.Fatalf("Play: %v", err)
	}

	st := waitForState(t, ch, StateError)
	if st.Message == "" {
		t.Error("error status carries no message")
	}
}

func TestDecodeErrorSurfaces(t *testing.T) {
	h := newTestPlayer(t, openTick)
	h.player.newDecoder = func(_ io.Reader) (frameDecoder, error) {
		return &fakeDecoder{err: &decode.Error{Err: fmt.Errorf("bad frame header")}}, nil
	}
	ch := h.player.Subscribe("t")
	defer h.player.Unsubscribe("t")

	if err := h.player.Play(testStation); err != nil {
		t.Fatalf("Play: %v", err)
	}

	st := waitForState(t, ch, StateError)
	if st.Message != "stream decode failed: bad frame header" {
		t.Errorf("message = %q", st.Message)
	}
}

func TestDeviceErrorSurfaces(t *testing.T) {
	h := newTestPlayer(t, openTick)
	h.player.newSink = func(volume float64) playback.Sink {
		s := &fakeSink{volume: volume, writeErr: &playback.DeviceError{Err: fmt.Errorf("device gone")}}
		h.mu.Lock()
		h.sinks = append(h.sinks, s)
		h.mu.Unlock()
		return s
	}
	ch := h.player.Subscribe("t")
	defer h.player.Unsubscribe("t")

	if err := h.player.Play(testStation); err != nil {
		t.Fatalf("Play: %v", err)
	}

	st := waitForState(t, ch, StateError)
	if st.Message != "audio output failed: device gone" {
		t.Errorf("message = %q", st.Message)
	}
}

func TestSetVolumeAppliesAndPersists(t *testing.T) {
	h := newTestPlayer(t, openTick)
	ch := h.player.Subscribe("t")
	defer h.player.Unsubscribe("t")

	if err := h.player.Play(testStation); err != nil {
		t.Fatalf("Play: %v", err)
	}
	waitForState(t, ch, StatePlaying)

	h.player.SetVolume(0.3)

	sink := h.lastSink()
	waitFor(t, func() bool { return sink.snapshot().volume == 0.3 }, "volume not applied to sink")

	waitFor(t, func() bool {
		prefs, err := h.player.store.Load()
		return err == nil && prefs.Volume == 0.3
	}, "volume not persisted")

	prefs, err := h.player.store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if prefs.StationID != "groove" {
		t.Errorf("persisted station = %q, want groove", prefs.StationID)
	}
}

func TestShutdownKeepsResumeState(t *testing.T) {
	h := newTestPlayer(t, openTick)
	ch := h.player.Subscribe("t")
	defer h.player.Unsubscribe("t")

	if err := h.player.Play(testStation); err != nil {
		t.Fatalf("Play: %v", err)
	}
	waitForState(t, ch, StatePlaying)

	// Service shutdown, not a user stop.
	if err := h.player.stopping(nil); err != nil {
		t.Fatalf("stopping: %v", err)
	}

	prefs, err := h.player.store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !prefs.Autoplay {
		t.Error("clean shutdown cleared autoplay; restart would not resume")
	}
	if prefs.StationID != "groove" {
		t.Errorf("persisted station = %q, want groove", prefs.StationID)
	}

	if got := h.player.Status().State; got != StateStopped {
		t.Errorf("state after shutdown = %v, want stopped", got)
	}
	if !h.lastSink().snapshot().closed {
		t.Error("sink not closed on shutdown")
	}
}

func TestStopClearsAutoplay(t *testing.T) {
	h := newTestPlayer(t, openTick)
	ch := h.player.Subscribe("t")
	defer h.player.Unsubscribe("t")

	if err := h.player.Play(testStation); err != nil {
		t.Fatalf("Play: %v", err)
	}
	waitForState(t, ch, StatePlaying)

	h.player.Stop()

	prefs, err := h.player.store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if prefs.Autoplay {
		t.Error("user stop should clear autoplay")
	}
}

func TestPlayPersistsBeforeReturn(t *testing.T) {
	h := newTestPlayer(t, openTick)

	if err := h.player.Play(testStation); err != nil {
		t.Fatalf("Play: %v", err)
	}

	prefs, err := h.player.store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if prefs.StationID != "groove" || !prefs.Autoplay {
		t.Errorf("Play returned before persisting: %+v", prefs)
	}
}

func TestSetCategoryPersists(t *testing.T) {
	h := newTestPlayer(t, openTick)

	h.player.SetCategory("jazz")

	prefs, err := h.player.store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if prefs.Category != "jazz" {
		t.Errorf("persisted category = %q, want jazz", prefs.Category)
	}
}

func TestErrorMessageTaxonomy(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{&icecast.StatusError{Code: 403, Status: "403 Forbidden"}, "stream returned HTTP 403"},
		{&icecast.ConnError{URL: "http://x", Err: fmt.Errorf("refused")}, "connection failed: refused"},
		{&decode.Error{Err: fmt.Errorf("garbage")}, "stream decode failed: garbage"},
		{&playback.DeviceError{Err: fmt.Errorf("no device")}, "audio output failed: no device"},
		{fmt.Errorf("plain"), "plain"},
	}
	for _, tc := range cases {
		if got := errorMessage(tc.err); got != tc.want {
			t.Errorf("errorMessage(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}
