// Package pcm holds decoded audio frames and the bounded frame ring that
// joins the decode and playback sides of a session.
package pcm

import "time"

// Frame is a block of interleaved 16-bit little-endian PCM samples.
type Frame struct {
	SampleRate int
	Channels   int
	Data       []byte
}

// Samples returns the number of sample points per channel in the frame.
func (f *Frame) Samples() int {
	if f.Channels == 0 {
		return 0
	}
	return len(f.Data) / (2 * f.Channels)
}

// Duration returns the playback duration of the frame.
func (f *Frame) Duration() time.Duration {
	if f.SampleRate == 0 {
		return 0
	}
	return time.Duration(f.Samples()) * time.Second / time.Duration(f.SampleRate)
}

// Silence returns a frame of zero samples matching the shape of f.
func (f *Frame) Silence() *Frame {
	return &Frame{
		SampleRate: f.SampleRate,
		Channels:   f.Channels,
		Data:       make([]byte, len(f.Data)),
	}
}
