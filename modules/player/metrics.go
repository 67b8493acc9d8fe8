package player

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	connects      prometheus.Counter
	reconnects    prometheus.Counter
	framesDropped prometheus.Counter
	underruns     prometheus.Counter
	bufferFill    prometheus.Gauge
	state         prometheus.Gauge
}

func newMetrics(reg prometheus.Registerer) *metrics {
	return &metrics{
		connects: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: "mediaai",
			Name:      "player_connects_total",
			Help:      "Stream connections opened.",
		}),
		reconnects: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: "mediaai",
			Name:      "player_reconnects_total",
			Help:      "Reconnections after a mid-stream connection loss.",
		}),
		framesDropped: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: "mediaai",
			Name:      "player_frames_dropped_total",
			Help:      "PCM frames dropped from the ring buffer because playback fell behind.",
		}),
		underruns: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: "mediaai",
			Name:      "player_underruns_total",
			Help:      "Times the sink found the ring buffer empty and emitted silence.",
		}),
		bufferFill: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Namespace: "mediaai",
			Name:      "player_buffer_fill_ratio",
			Help:      "Current ring buffer fill fraction.",
		}),
		state: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Namespace: "mediaai",
			Name:      "player_state",
			Help:      "Transport state (0 stopped, 1 buffering, 2 playing, 3 error).",
		}),
	}
}
