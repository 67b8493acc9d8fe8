package decode

import (
	"context"
	"errors"
	"fmt"
	"io"

	mp3 "github.com/hajimehoshi/go-mp3"

	"github.com/krperry/mediaAI/pkg/pcm"
)

// samplesPerFrame matches the MP3 frame size; go-mp3 always emits 16-bit
// little-endian stereo, so one frame is samplesPerFrame * 4 bytes.
const (
	samplesPerFrame = 1152
	channels        = 2
	bytesPerSample  = 2
	frameBytes      = samplesPerFrame * channels * bytesPerSample
)

// Error is a terminal decode failure: the stream is malformed and the
// session cannot continue without reconnecting.
type Error struct {
	Err error
}

func (e *Error) Error() string { return fmt.Sprintf("decode: %v", e.Err) }
func (e *Error) Unwrap() error { return e.Err }

// MP3Decoder decodes an MP3 byte stream into fixed-size PCM frames.
type MP3Decoder struct {
	dec *mp3.Decoder
}

// NewMP3 creates a decoder over r. It blocks until the first MP3 frame
// header has been read, so the stream's sample rate is known on return.
func NewMP3(r io.Reader) (*MP3Decoder, error) {
	dec, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, classify(err)
	}
	return &MP3Decoder{dec: dec}, nil
}

// SampleRate returns the stream's native sample rate.
func (d *MP3Decoder) SampleRate() int {
	return int(d.dec.SampleRate())
}

// NextFrame returns the next PCM frame. It returns io.EOF when the stream
// ends cleanly, the context error when the underlying reader was canceled,
// and *Error for malformed data.
func (d *MP3Decoder) NextFrame() (*pcm.Frame, error) {
	buf := make([]byte, frameBytes)
	n, err := io.ReadFull(d.dec, buf)
	if n > 0 {
		return &pcm.Frame{
			SampleRate: d.SampleRate(),
			Channels:   channels,
			Data:       buf[:n],
		}, nil
	}
	if err == io.ErrUnexpectedEOF {
		err = io.EOF
	}
	return nil, classify(err)
}

// classify keeps stream-lifecycle errors (EOF, cancellation) distinct from
// malformed-data errors.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, io.EOF):
		return io.EOF
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return &Error{Err: err}
	}
}
