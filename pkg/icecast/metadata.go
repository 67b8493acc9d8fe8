package icecast

import "strings"

// Metadata is the parsed content of an in-band ICY metadata block.
type Metadata struct {
	StreamTitle string
}

// NewMetadata parses a raw metadata block. Blocks look like
// "StreamTitle='Artist - Title';StreamUrl='';" padded with NUL bytes.
func NewMetadata(raw []byte) *Metadata {
	m := &Metadata{}
	s := strings.Trim(string(raw), "\x00")
	for _, part := range strings.Split(s, ";") {
		k, v, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(k), "StreamTitle") {
			m.StreamTitle = strings.Trim(v, "'")
		}
	}
	return m
}

// Equals reports whether two metadata blocks carry the same title.
func (m *Metadata) Equals(other *Metadata) bool {
	if other == nil {
		return false
	}
	return m.StreamTitle == other.StreamTitle
}
