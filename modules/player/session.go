package player

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/krperry/mediaAI/pkg/decode"
	"github.com/krperry/mediaAI/pkg/pcm"
	"github.com/krperry/mediaAI/pkg/playback"
)

// Station is a named, addressable internet radio stream.
type Station struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

// openFunc opens the compressed byte stream for a session, retrying as it
// sees fit. decoderFunc builds a frame decoder over that byte stream. Both
// are injection points so sessions can be tested without a network or an
// audio device.
type (
	openFunc    func(ctx context.Context) (io.ReadCloser, error)
	decoderFunc func(r io.Reader) (frameDecoder, error)
)

type frameDecoder interface {
	NextFrame() (*pcm.Frame, error)
}

// sessionHooks carry transport transitions back to the controller.
type sessionHooks struct {
	onPlaying   func()
	onBuffering func()
	onError     func(err error)
}

// session is one live playback pipeline: a fetch goroutine feeding a chunk
// channel, a decode goroutine filling the frame ring, and a playout
// goroutine draining the ring into the sink at device pace. At most one
// session is live at a time; the controller tears one down fully before
// starting the next.
type session struct {
	station Station
	cfg     *Config
	logger  *slog.Logger
	metrics *metrics
	hooks   sessionHooks

	open       openFunc
	newDecoder decoderFunc
	sink       playback.Sink

	ring   *pcm.Ring
	chunks chan []byte

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	failOnce sync.Once
}

func newSession(st Station, cfg *Config, logger *slog.Logger, m *metrics,
	open openFunc, newDecoder decoderFunc, sink playback.Sink, hooks sessionHooks) *session {

	ctx, cancel := context.WithCancel(context.Background())
	return &session{
		station:    st,
		cfg:        cfg,
		logger:     logger.With("station", st.ID),
		metrics:    m,
		hooks:      hooks,
		open:       open,
		newDecoder: newDecoder,
		sink:       sink,
		ring:       pcm.NewRing(cfg.RingFrames),
		chunks:     make(chan []byte, 64),
		ctx:        ctx,
		cancel:     cancel,
	}
}

func (s *session) start() {
	s.wg.Add(3)
	go s.fetch()
	go s.decode()
	go s.playout()
}

// stop cancels the pipeline and waits for all three goroutines within the
// configured teardown bound.
func (s *session) stop(timeout time.Duration) error {
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.ring.Reset()
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("session teardown timed out after %s", timeout)
	}
}

func (s *session) setVolume(v float64) {
	s.sink.SetVolume(v)
}

// fail reports the first terminal error and cancels the pipeline. Later
// errors from the collapsing goroutines are dropped.
func (s *session) fail(err error) {
	s.failOnce.Do(func() {
		s.logger.Error("session failed", "err", err)
		s.hooks.onError(err)
		s.cancel()
	})
}

// fetch reads compressed chunks from the network into the chunk channel,
// reconnecting on mid-stream connection loss. The opener applies backoff
// and retry limits; when it gives up, the session fails.
func (s *session) fetch() {
	defer s.wg.Done()
	defer close(s.chunks)

	connected := false
	for {
		if s.ctx.Err() != nil {
			return
		}

		rc, err := s.open(s.ctx)
		if err != nil {
			if s.ctx.Err() != nil {
				return
			}
			s.fail(err)
			return
		}
		s.metrics.connects.Inc()
		if connected {
			s.metrics.reconnects.Inc()
		}
		connected = true

		err = s.copyChunks(rc)
		rc.Close()
		if s.ctx.Err() != nil {
			return
		}
		s.logger.Warn("stream interrupted, reconnecting", "err", err)
	}
}

func (s *session) copyChunks(rc io.Reader) error {
	buf := make([]byte, s.cfg.ChunkSize)
	for {
		n, err := rc.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			select {
			case s.chunks <- chunk:
			case <-s.ctx.Done():
				return s.ctx.Err()
			}
		}
		if err != nil {
			return err
		}
	}
}

// decode turns the chunk stream into PCM frames and pushes them into the
// ring, dropping the oldest frame when playback has fallen behind.
func (s *session) decode() {
	defer s.wg.Done()

	reader := decode.NewChunkReader(s.ctx, s.chunks)
	dec, err := s.newDecoder(reader)
	if err != nil {
		s.decodeDone(err)
		return
	}

	for {
		f, err := dec.NextFrame()
		if err != nil {
			s.decodeDone(err)
			return
		}
		if s.ring.Push(f) {
			s.metrics.framesDropped.Inc()
		}
		s.metrics.bufferFill.Set(s.ring.Fill())
	}
}

// decodeDone classifies the end of the decode loop. EOF means the chunk
// channel closed, which only happens when the fetch side already returned
// (cancellation, or a failure it has reported itself). Context errors are
// plain cancellation. Everything else is a malformed stream.
func (s *session) decodeDone(err error) {
	switch {
	case errors.Is(err, io.EOF):
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
	default:
		s.fail(err)
	}
}

// playout waits for the ring to reach the buffering threshold, opens the
// device at the stream's native rate, then drains the ring at device pace.
// An empty ring yields silence, never a stall of the device or a block on
// the producer.
func (s *session) playout() {
	defer s.wg.Done()
	defer s.sink.Close()

	first := s.awaitThreshold()
	if first == nil {
		return
	}

	if err := s.sink.Open(first.SampleRate, first.Channels); err != nil {
		s.fail(err)
		return
	}

	s.hooks.onPlaying()
	playing := true
	shape := first

	if err := s.sink.WriteFrame(first); err != nil {
		s.fail(err)
		return
	}

	for {
		select {
		case <-s.ctx.Done():
			return
		default:
		}

		f := s.ring.Pop()
		s.metrics.bufferFill.Set(s.ring.Fill())

		if f == nil {
			s.metrics.underruns.Inc()
			if playing {
				playing = false
				s.hooks.onBuffering()
			}
			f = shape.Silence()
		} else {
			shape = f
			if !playing {
				playing = true
				s.hooks.onPlaying()
			}
		}

		if err := s.sink.WriteFrame(f); err != nil {
			s.fail(err)
			return
		}
	}
}

// awaitThreshold blocks until the ring holds enough frames to start, then
// returns the first frame. Returns nil on cancellation.
func (s *session) awaitThreshold() *pcm.Frame {
	threshold := int(float64(s.ring.Cap()) * s.cfg.BufferThreshold)
	if threshold < 1 {
		threshold = 1
	}

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for s.ring.Len() < threshold {
		select {
		case <-s.ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
	return s.ring.Pop()
}
