package player

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/grafana/dskit/backoff"
	"github.com/grafana/dskit/services"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/krperry/mediaAI/pkg/decode"
	"github.com/krperry/mediaAI/pkg/icecast"
	"github.com/krperry/mediaAI/pkg/playback"
	"github.com/krperry/mediaAI/pkg/settings"
)

var module = "player"

// ResolveFunc turns a station ID into a playable station, typically backed
// by the directory module.
type ResolveFunc func(ctx context.Context, id string) (Station, error)

// Player is the transport controller: it owns the single live session and
// the state machine Stopped -> Buffering -> Playing, with Error reachable
// from Buffering and Playing. All component errors funnel here and become
// a retained user-visible message.
type Player struct {
	services.Service

	cfg     *Config
	logger  *slog.Logger
	bus     *Bus
	metrics *metrics
	store   *settings.Store
	resolve ResolveFunc

	// Factories, replaced in tests.
	newSink    func(volume float64) playback.Sink
	newSource  func(st Station, onMeta icecast.MetadataFunc) openFunc
	newDecoder decoderFunc

	// opMu serializes whole transport operations (play, stop, switch),
	// which block while a session tears down. mu guards the state fields
	// below and is only ever held briefly; session hooks take mu, so the
	// teardown wait must never happen under it.
	opMu sync.Mutex

	mu      sync.Mutex
	state   State
	message string
	title   string
	station *Station
	sess    *session
	prefs   settings.Settings
}

// New creates the player service.
func New(cfg Config, logger slog.Logger, reg prometheus.Registerer) (*Player, error) {
	if cfg.RingFrames == 0 {
		cfg.RingFrames = defaultRingFrames
	}
	if cfg.BufferThreshold == 0 {
		cfg.BufferThreshold = defaultBufferThreshold
	}
	if cfg.ChunkSize == 0 {
		cfg.ChunkSize = defaultChunkSize
	}
	if cfg.StopTimeout == 0 {
		cfg.StopTimeout = defaultStopTimeout
	}
	if cfg.SettingsFile == "" {
		cfg.SettingsFile = "settings.json"
	}

	p := &Player{
		cfg:     &cfg,
		logger:  logger.With("module", module),
		bus:     NewBus(),
		metrics: newMetrics(reg),
		store:   settings.NewStore(cfg.SettingsFile),
		prefs:   settings.Default(),
		state:   StateStopped,
	}

	p.newSink = func(volume float64) playback.Sink {
		return playback.NewPortAudioSink(volume)
	}
	p.newSource = func(st Station, onMeta icecast.MetadataFunc) openFunc {
		src := icecast.NewSource(icecast.SourceConfig{
			URL: st.URL,
			Backoff: backoff.Config{
				MinBackoff: cfg.ConnectBackoff,
				MaxBackoff: cfg.ConnectBackoffMax,
				MaxRetries: cfg.ConnectRetries,
			},
		})
		src.OnMetadata(onMeta)
		return func(ctx context.Context) (io.ReadCloser, error) {
			return src.Open(ctx)
		}
	}
	p.newDecoder = func(r io.Reader) (frameDecoder, error) {
		return decode.NewMP3(r)
	}

	p.Service = services.NewBasicService(p.starting, p.running, p.stopping)
	return p, nil
}

// SetResolver installs the station resolver used for autoplay and the
// play-by-ID API.
func (p *Player) SetResolver(fn ResolveFunc) {
	p.resolve = fn
}

func (p *Player) starting(ctx context.Context) error {
	prefs, err := p.store.Load()
	if err != nil {
		p.logger.Warn("failed to load settings", "err", err)
		prefs = settings.Default()
	}

	p.mu.Lock()
	p.prefs = prefs
	p.mu.Unlock()

	if prefs.Autoplay && prefs.StationID != "" && p.resolve != nil {
		st, err := p.resolve(ctx, prefs.StationID)
		if err != nil {
			p.logger.Warn("autoplay: station not resolvable", "station", prefs.StationID, "err", err)
			return nil
		}
		if err := p.Play(st); err != nil {
			p.logger.Warn("autoplay failed", "station", st.ID, "err", err)
		}
	}
	return nil
}

func (p *Player) running(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

// stopping is the clean-shutdown path. Unlike a user Stop it leaves the
// autoplay preference alone: preferences are persisted as they stand, so
// the next start resumes whatever was playing.
func (p *Player) stopping(_ error) error {
	p.logger.Info("stopping")

	err := p.savePrefs()

	p.opMu.Lock()
	defer p.opMu.Unlock()

	if terr := p.teardownSession(); terr != nil {
		p.logger.Error("session teardown", "err", terr)
	}

	p.mu.Lock()
	p.station = nil
	p.title = ""
	p.setStateLocked(StateStopped, "")
	p.mu.Unlock()

	return err
}

// Play tears down any live session and starts one for the station. The
// transport is in Buffering when Play returns; it moves to Playing once
// the ring buffer reaches its fill threshold.
func (p *Player) Play(st Station) error {
	p.opMu.Lock()
	defer p.opMu.Unlock()

	if err := p.teardownSession(); err != nil {
		return err
	}

	sess := p.buildSession(st)

	p.mu.Lock()
	p.sess = sess
	p.station = &st
	p.title = ""
	p.setStateLocked(StateBuffering, "")
	p.prefs.StationID = st.ID
	p.prefs.Autoplay = true
	p.mu.Unlock()

	sess.start()
	p.persistPrefs()

	p.logger.Info("playing", "station", st.ID, "url", st.URL)
	return nil
}

// Stop cancels the live session and returns the transport to Stopped.
func (p *Player) Stop() {
	p.opMu.Lock()
	defer p.opMu.Unlock()

	if err := p.teardownSession(); err != nil {
		p.logger.Error("session teardown", "err", err)
	}

	p.mu.Lock()
	p.station = nil
	p.title = ""
	p.setStateLocked(StateStopped, "")
	p.prefs.Autoplay = false
	p.mu.Unlock()

	p.persistPrefs()
}

// Switch is stop-then-play as one atomic operation: no frame from the old
// station can reach the device after it returns.
func (p *Player) Switch(st Station) error {
	return p.Play(st)
}

// SetVolume updates the playback gain and persists it.
func (p *Player) SetVolume(v float64) {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}

	p.mu.Lock()
	p.prefs.Volume = v
	if p.sess != nil {
		p.sess.setVolume(v)
	}
	p.publishLocked()
	p.mu.Unlock()

	p.persistPrefs()
}

// SetCategory records the directory category the user last browsed, so
// the next start can offer the same station list.
func (p *Player) SetCategory(category string) {
	p.mu.Lock()
	changed := p.prefs.Category != category
	if changed {
		p.prefs.Category = category
	}
	p.mu.Unlock()

	if changed {
		p.persistPrefs()
	}
}

// Status returns a snapshot of the transport.
func (p *Player) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.statusLocked()
}

// Subscribe registers a status subscriber under id.
func (p *Player) Subscribe(id string) <-chan Status {
	return p.bus.Subscribe(id)
}

// Unsubscribe removes a status subscriber.
func (p *Player) Unsubscribe(id string) {
	p.bus.Unsubscribe(id)
}

func (p *Player) buildSession(st Station) *session {
	p.mu.Lock()
	volume := p.prefs.Volume
	p.mu.Unlock()

	var sess *session

	onMeta := func(m *icecast.Metadata) {
		p.sessionTitle(sess, m.StreamTitle)
	}

	hooks := sessionHooks{
		onPlaying:   func() { p.sessionState(sess, StatePlaying, "") },
		onBuffering: func() { p.sessionState(sess, StateBuffering, "") },
		onError:     func(err error) { p.sessionState(sess, StateError, errorMessage(err)) },
	}

	sess = newSession(st, p.cfg, p.logger, p.metrics,
		p.newSource(st, onMeta), p.newDecoder, p.newSink(volume), hooks)
	return sess
}

// teardownSession detaches the current session so its late hook events are
// ignored, then waits for it to exit. Caller must hold opMu but not mu.
func (p *Player) teardownSession() error {
	p.mu.Lock()
	sess := p.sess
	p.sess = nil
	p.mu.Unlock()

	if sess == nil {
		return nil
	}
	return sess.stop(p.cfg.StopTimeout)
}

// sessionState applies a transition reported by a session, ignoring events
// from sessions that have already been replaced.
func (p *Player) sessionState(sess *session, st State, msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sess != sess {
		return
	}
	p.setStateLocked(st, msg)
}

func (p *Player) sessionTitle(sess *session, title string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sess != sess {
		return
	}
	p.title = title
	p.logger.Info("now playing", "title", title)
	p.publishLocked()
}

func (p *Player) setStateLocked(st State, msg string) {
	p.state = st
	p.message = msg
	p.metrics.state.Set(float64(st))
	p.publishLocked()
}

func (p *Player) publishLocked() {
	p.bus.Publish(p.statusLocked())
}

func (p *Player) statusLocked() Status {
	return Status{
		State:   p.state,
		Station: p.station,
		Title:   p.title,
		Message: p.message,
		Volume:  p.prefs.Volume,
	}
}

func (p *Player) savePrefs() error {
	p.mu.Lock()
	prefs := p.prefs
	p.mu.Unlock()
	return p.store.Save(prefs)
}

// persistPrefs saves synchronously; the write is a small atomic file
// replace, and a goroutine here could outlive the service.
func (p *Player) persistPrefs() {
	if err := p.savePrefs(); err != nil {
		p.logger.Warn("failed to save settings", "err", err)
	}
}

// errorMessage maps component errors to the retained user-visible message.
func errorMessage(err error) string {
	var statusErr *icecast.StatusError
	var connErr *icecast.ConnError
	var decErr *decode.Error
	var devErr *playback.DeviceError

	switch {
	case errors.As(err, &statusErr):
		return fmt.Sprintf("stream returned HTTP %d", statusErr.Code)
	case errors.As(err, &connErr):
		return fmt.Sprintf("connection failed: %v", connErr.Err)
	case errors.As(err, &decErr):
		return fmt.Sprintf("stream decode failed: %v", decErr.Err)
	case errors.As(err, &devErr):
		return fmt.Sprintf("audio output failed: %v", devErr.Err)
	default:
		return err.Error()
	}
}
