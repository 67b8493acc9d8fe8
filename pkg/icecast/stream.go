package icecast

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"
)

const userAgent = "mediaAI/1.0"

// MetadataFunc is called when the in-band stream metadata changes.
type MetadataFunc func(m *Metadata)

// Stream is an open ICY stream. Read returns audio bytes only; metadata
// blocks are parsed out and reported through OnMetadata.
type Stream struct {
	// Station fields reported by the server.
	Name        string
	Genre       string
	Description string
	URL         string
	Bitrate     int
	ContentType string

	// OnMetadata, if set, is invoked whenever the stream title changes.
	OnMetadata MetadataFunc

	metaint  int // audio bytes between metadata blocks, 0 when absent
	pos      int // audio bytes read since the last metadata block
	metadata *Metadata
	rc       io.ReadCloser
}

func newClient() *http.Client {
	dialer := &net.Dialer{Timeout: 5 * time.Second}
	transport := &http.Transport{
		Dial:                  dialer.Dial,
		DisableCompression:    true,
		ResponseHeaderTimeout: 10 * time.Second,
	}
	// No client timeout: the body is read for as long as playback runs.
	return &http.Client{Transport: transport}
}

// maxPlaylistHops bounds playlist-to-playlist indirection.
const maxPlaylistHops = 3

// Open connects to url and returns the stream. Playlist URLs (.pls, .m3u)
// and playlist responses (directory tune endpoints answer with a playlist
// body) are resolved to the stream URL they point at. The context governs
// the connection; closing the stream unblocks an in-flight Read.
func Open(ctx context.Context, url string) (*Stream, error) {
	return open(ctx, url, 0)
}

func open(ctx context.Context, url string, hops int) (*Stream, error) {
	resolved, err := resolvePlaylistURL(ctx, url)
	if err != nil {
		return nil, err
	}
	url = resolved

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "*/*")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Icy-MetaData", "1")

	resp, err := newClient().Do(req)
	if err != nil {
		return nil, &ConnError{URL: url, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, &StatusError{URL: url, Code: resp.StatusCode, Status: resp.Status}
	}

	// Some endpoints answer a stream URL request with a playlist body.
	if ct := resp.Header.Get("Content-Type"); isPlaylistContentType(ct) {
		data, readErr := io.ReadAll(io.LimitReader(resp.Body, maxPlaylistSize))
		resp.Body.Close()
		if readErr != nil {
			return nil, fmt.Errorf("read playlist body: %w", readErr)
		}
		if hops >= maxPlaylistHops {
			return nil, fmt.Errorf("%s: too many playlist redirections", url)
		}
		target, resolveErr := ResolveBody(string(data))
		if resolveErr != nil {
			return nil, resolveErr
		}
		return open(ctx, target, hops+1)
	}

	var bitrate int
	if raw := resp.Header.Get("icy-br"); raw != "" {
		bitrate, _ = strconv.Atoi(raw)
	}
	// Servers that ignore the Icy-MetaData request header send no metaint;
	// the stream is then pure audio and Read passes bytes through.
	metaint, _ := strconv.Atoi(resp.Header.Get("icy-metaint"))

	return &Stream{
		Name:        resp.Header.Get("icy-name"),
		Genre:       resp.Header.Get("icy-genre"),
		Description: resp.Header.Get("icy-description"),
		URL:         url,
		Bitrate:     bitrate,
		ContentType: resp.Header.Get("Content-Type"),
		metaint:     metaint,
		rc:          resp.Body,
	}, nil
}

// Read implements io.Reader, returning only audio bytes.
func (s *Stream) Read(p []byte) (int, error) {
	if s.metaint == 0 {
		return s.rc.Read(p)
	}

	if s.pos == s.metaint {
		if err := s.readMetadata(); err != nil {
			return 0, err
		}
		s.pos = 0
	}

	limit := s.metaint - s.pos
	if limit > len(p) {
		limit = len(p)
	}
	n, err := s.rc.Read(p[:limit])
	s.pos += n
	return n, err
}

// readMetadata consumes one metadata block: a length byte followed by
// length*16 bytes of NUL-padded text.
func (s *Stream) readMetadata() error {
	var lenByte [1]byte
	if _, err := io.ReadFull(s.rc, lenByte[:]); err != nil {
		return err
	}

	blockLen := int(lenByte[0]) * 16
	if blockLen == 0 {
		return nil
	}

	block := make([]byte, blockLen)
	if _, err := io.ReadFull(s.rc, block); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return err
	}

	if m := NewMetadata(block); !m.Equals(s.metadata) {
		s.metadata = m
		if s.OnMetadata != nil {
			s.OnMetadata(m)
		}
	}
	return nil
}

// Close closes the underlying connection, unblocking any pending Read.
func (s *Stream) Close() error {
	return s.rc.Close()
}
