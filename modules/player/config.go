package player

import (
	"flag"
	"time"

	"github.com/zachfi/zkit/pkg/util"
)

// Ring sizing: one MP3 frame is 1152 samples, roughly 26ms at 44.1kHz, so
// 32 frames buffer around 800ms of audio. Enough to ride out network
// jitter without adding noticeable station-switch latency.
const (
	defaultRingFrames        = 32
	defaultBufferThreshold   = 0.5
	defaultChunkSize         = 8 * 1024
	defaultStopTimeout       = 5 * time.Second
	defaultConnectBackoff    = time.Second
	defaultConnectBackoffMax = 30 * time.Second
	defaultConnectRetries    = 5
)

type Config struct {
	RingFrames        int           `yaml:"ring-frames,omitempty"`
	BufferThreshold   float64       `yaml:"buffer-threshold,omitempty"`    // ring fill fraction required before playback starts
	ChunkSize         int           `yaml:"chunk-size,omitempty"`          // network read size in bytes
	StopTimeout       time.Duration `yaml:"stop-timeout,omitempty"`        // bound on session teardown
	ConnectBackoff    time.Duration `yaml:"connect-backoff,omitempty"`     // initial reconnect delay
	ConnectBackoffMax time.Duration `yaml:"connect-backoff-max,omitempty"` // cap on reconnect delay
	ConnectRetries    int           `yaml:"connect-retries,omitempty"`     // connection attempts before giving up
	SettingsFile      string        `yaml:"settings-file,omitempty"`       // path of the persisted preferences file
}

func (cfg *Config) RegisterFlagsAndApplyDefaults(prefix string, f *flag.FlagSet) {
	f.IntVar(&cfg.RingFrames, util.PrefixConfig(prefix, "ring-frames"), defaultRingFrames,
		"Frames held in the playback ring buffer. Sized to absorb a few hundred milliseconds of jitter.")
	f.Float64Var(&cfg.BufferThreshold, util.PrefixConfig(prefix, "buffer-threshold"), defaultBufferThreshold,
		"Fraction of the ring buffer that must fill before playback starts.")
	f.IntVar(&cfg.ChunkSize, util.PrefixConfig(prefix, "chunk-size"), defaultChunkSize,
		"Network read size in bytes.")
	f.DurationVar(&cfg.StopTimeout, util.PrefixConfig(prefix, "stop-timeout"), defaultStopTimeout,
		"Maximum time to wait for a session to tear down on stop or station switch.")
	f.DurationVar(&cfg.ConnectBackoff, util.PrefixConfig(prefix, "connect-backoff"), defaultConnectBackoff,
		"Initial delay before retrying a failed stream connection. Exponential backoff is used up to connect-backoff-max.")
	f.DurationVar(&cfg.ConnectBackoffMax, util.PrefixConfig(prefix, "connect-backoff-max"), defaultConnectBackoffMax,
		"Maximum delay between connection attempts.")
	f.IntVar(&cfg.ConnectRetries, util.PrefixConfig(prefix, "connect-retries"), defaultConnectRetries,
		"Connection attempts before the session fails.")
	f.StringVar(&cfg.SettingsFile, util.PrefixConfig(prefix, "settings-file"), "settings.json",
		"Path of the JSON file holding persisted playback preferences.")
}
