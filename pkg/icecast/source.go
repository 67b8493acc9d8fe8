package icecast

import (
	"context"
	"errors"

	"github.com/grafana/dskit/backoff"
)

// SourceConfig configures a retrying stream source.
type SourceConfig struct {
	URL     string
	Backoff backoff.Config
}

// Source opens a station's stream, retrying transient connection failures
// with exponential backoff. HTTP status errors are permanent and returned
// without retry.
type Source struct {
	cfg        SourceConfig
	onMetadata MetadataFunc
}

// NewSource creates a source for the given stream URL.
func NewSource(cfg SourceConfig) *Source {
	return &Source{cfg: cfg}
}

// OnMetadata sets the callback installed on streams opened by this source.
func (s *Source) OnMetadata(fn MetadataFunc) {
	s.onMetadata = fn
}

// Open connects to the stream, retrying per the backoff config. It returns
// the last connection error once retries are exhausted, or the context
// error if the context ends first.
func (s *Source) Open(ctx context.Context) (*Stream, error) {
	boff := backoff.New(ctx, s.cfg.Backoff)

	var lastErr error
	for boff.Ongoing() {
		stream, err := Open(ctx, s.cfg.URL)
		if err == nil {
			stream.OnMetadata = s.onMetadata
			return stream, nil
		}

		var statusErr *StatusError
		if errors.As(err, &statusErr) {
			return nil, err
		}

		lastErr = err
		boff.Wait()
	}

	if lastErr != nil {
		return nil, lastErr
	}
	return nil, boff.Err()
}
