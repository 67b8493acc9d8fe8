package icecast

import "fmt"

// ConnError is a transport-level failure (DNS, dial, reset). It is
// considered transient and eligible for retry.
type ConnError struct {
	URL string
	Err error
}

func (e *ConnError) Error() string {
	return fmt.Sprintf("connect %s: %v", e.URL, e.Err)
}

func (e *ConnError) Unwrap() error { return e.Err }

// StatusError is a non-2xx HTTP response. It is permanent: retrying a 404
// or 403 is pointless, so it surfaces immediately.
type StatusError struct {
	URL    string
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %s", e.URL, e.Status)
}
