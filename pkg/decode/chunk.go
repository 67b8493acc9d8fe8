// Package decode turns compressed audio chunks from the network into PCM
// frames. MP3 is the supported codec.
package decode

import (
	"context"
	"io"
)

// ChunkReader adapts a channel of network chunks into an io.Reader.
// Chunk boundaries carry no meaning for the decoder: any undelivered
// remainder of a chunk is kept across Read calls, so the byte sequence the
// decoder sees is independent of how the network split it.
type ChunkReader struct {
	ctx context.Context
	ch  <-chan []byte
	rem []byte
}

// NewChunkReader returns a reader over ch. Read unblocks with the context
// error when ctx ends, and returns io.EOF once ch is closed and drained.
func NewChunkReader(ctx context.Context, ch <-chan []byte) *ChunkReader {
	return &ChunkReader{ctx: ctx, ch: ch}
}

func (r *ChunkReader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	for len(r.rem) == 0 {
		select {
		case <-r.ctx.Done():
			return 0, r.ctx.Err()
		case chunk, ok := <-r.ch:
			if !ok {
				return 0, io.EOF
			}
			r.rem = chunk
		}
	}

	n := copy(p, r.rem)
	r.rem = r.rem[n:]
	return n, nil
}
