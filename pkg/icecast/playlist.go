package icecast

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const maxPlaylistSize = 64 * 1024

// ParsePLS returns the first stream URL from a PLS playlist.
func ParsePLS(body io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(body, maxPlaylistSize))
	if err != nil {
		return "", fmt.Errorf("read playlist: %w", err)
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "File") {
			continue
		}
		if _, v, ok := strings.Cut(line, "="); ok {
			if url := strings.TrimSpace(v); url != "" {
				return url, nil
			}
		}
	}
	return "", fmt.Errorf("no stream URL found in PLS playlist")
}

// ParseM3U returns the first stream URL from an M3U playlist.
func ParseM3U(body io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(body, maxPlaylistSize))
	if err != nil {
		return "", fmt.Errorf("read playlist: %w", err)
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "http://") || strings.HasPrefix(line, "https://") {
			return line, nil
		}
	}
	return "", fmt.Errorf("no stream URL found in M3U playlist")
}

// ResolveBody extracts a stream URL from fetched playlist content, as
// returned by directory APIs that serve a playlist body rather than a
// playlist URL.
func ResolveBody(content string) (string, error) {
	trimmed := strings.TrimSpace(content)
	switch {
	case strings.Contains(trimmed, "[playlist]") || strings.Contains(trimmed, "File1="):
		return ParsePLS(strings.NewReader(trimmed))
	case strings.HasPrefix(trimmed, "#EXTM3U"):
		return ParseM3U(strings.NewReader(trimmed))
	case strings.HasPrefix(trimmed, "http://") || strings.HasPrefix(trimmed, "https://"):
		// Bare URL, possibly several lines of them.
		return ParseM3U(strings.NewReader(trimmed))
	}
	return "", fmt.Errorf("content is not a recognized playlist")
}

func isPlaylistContentType(ct string) bool {
	ct = strings.ToLower(ct)
	return strings.Contains(ct, "scpls") ||
		strings.Contains(ct, "pls+xml") ||
		strings.Contains(ct, "mpegurl")
}

func looksLikePlaylistURL(url string) bool {
	trimmed := url
	if i := strings.IndexAny(trimmed, "?#"); i >= 0 {
		trimmed = trimmed[:i]
	}
	return strings.HasSuffix(trimmed, ".pls") ||
		strings.HasSuffix(trimmed, ".m3u") ||
		strings.HasSuffix(trimmed, ".m3u8")
}

// resolvePlaylistURL fetches playlist-looking URLs and returns the stream
// URL they point at. Anything else is returned unchanged so the stream
// connection is the one that reads the body.
func resolvePlaylistURL(ctx context.Context, url string) (string, error) {
	if !looksLikePlaylistURL(url) {
		return url, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "*/*")
	req.Header.Set("User-Agent", userAgent)

	resp, err := newClient().Do(req)
	if err != nil {
		return "", &ConnError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &StatusError{URL: url, Code: resp.StatusCode, Status: resp.Status}
	}

	// Some playlist URLs answer with the stream itself.
	if resp.Header.Get("icy-metaint") != "" {
		return url, nil
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPlaylistSize))
	if err != nil {
		return "", fmt.Errorf("read playlist body: %w", err)
	}
	return ResolveBody(string(data))
}
