// Package icecast reads ICY/Icecast internet radio streams over HTTP.
//
// It resolves playlist URLs (.pls, .m3u) to the underlying stream URL,
// strips in-band ICY metadata blocks so Read returns only audio bytes, and
// classifies failures as transient connection errors or permanent HTTP
// status errors. Source adds bounded reconnect-with-backoff on top of a
// single Stream.
package icecast
