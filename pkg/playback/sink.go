package playback

import (
	"fmt"
	"math"
	"sync/atomic"

	"github.com/gordonklaus/portaudio"

	"github.com/krperry/mediaAI/pkg/pcm"
)

// DeviceError is a failure of the output device. It is fatal to the
// session that hit it.
type DeviceError struct {
	Err error
}

func (e *DeviceError) Error() string { return fmt.Sprintf("output device: %v", e.Err) }
func (e *DeviceError) Unwrap() error { return e.Err }

// Sink is an audio output accepting PCM frames at the device's pace.
type Sink interface {
	Open(sampleRate, channels int) error
	WriteFrame(f *pcm.Frame) error
	SetVolume(v float64)
	Close() error
}

const defaultFramesPerBuffer = 1152

// PortAudioSink writes frames to the default output device. WriteFrame
// blocks until the device has consumed the samples, which is what paces
// the consumer side of the pipeline.
type PortAudioSink struct {
	framesPerBuffer int
	stream          *portaudio.Stream
	buf             []int16
	volume          atomic.Uint64 // float64 bits
}

// NewPortAudioSink creates an unopened sink with the given volume in [0, 1].
func NewPortAudioSink(volume float64) *PortAudioSink {
	s := &PortAudioSink{framesPerBuffer: defaultFramesPerBuffer}
	s.SetVolume(volume)
	return s
}

// SetVolume updates the playback gain. Safe to call during playback.
func (s *PortAudioSink) SetVolume(v float64) {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	s.volume.Store(math.Float64bits(v))
}

// Volume returns the current gain.
func (s *PortAudioSink) Volume() float64 {
	return math.Float64frombits(s.volume.Load())
}

// Open initializes the host API on first use and opens the default output
// stream at the given rate and channel count.
func (s *PortAudioSink) Open(sampleRate, channels int) error {
	if err := ensureInitialized(); err != nil {
		return &DeviceError{Err: err}
	}

	s.buf = make([]int16, s.framesPerBuffer*channels)
	stream, err := portaudio.OpenDefaultStream(0, channels, float64(sampleRate), s.framesPerBuffer, s.buf)
	if err != nil {
		return &DeviceError{Err: err}
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return &DeviceError{Err: err}
	}

	s.stream = stream
	return nil
}

// WriteFrame plays one frame, zero-padding a short final frame.
func (s *PortAudioSink) WriteFrame(f *pcm.Frame) error {
	if s.stream == nil {
		return &DeviceError{Err: fmt.Errorf("sink not open")}
	}

	gain := s.Volume()
	data := f.Data
	for len(data) >= 2 {
		n := toSamples(s.buf, data, gain)
		data = data[n*2:]
		if err := s.stream.Write(); err != nil {
			return &DeviceError{Err: err}
		}
	}
	return nil
}

// Close stops and releases the device stream.
func (s *PortAudioSink) Close() error {
	if s.stream == nil {
		return nil
	}
	_ = s.stream.Stop()
	err := s.stream.Close()
	s.stream = nil
	if err != nil {
		return &DeviceError{Err: err}
	}
	return nil
}
