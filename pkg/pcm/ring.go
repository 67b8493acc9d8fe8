package pcm

import "sync"

// Ring is a fixed-capacity queue of frames between a single producer (the
// decoder) and a single consumer (the playback sink). When full, Push drops
// the oldest frame: a live stream is better served by staying close to
// real time than by playing every frame late.
type Ring struct {
	mu      sync.Mutex
	frames  []*Frame
	head    int
	n       int
	dropped uint64
}

// NewRing creates a ring holding up to capacity frames.
func NewRing(capacity int) *Ring {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring{frames: make([]*Frame, capacity)}
}

// Push appends a frame, dropping the oldest one if the ring is full.
// It reports whether a frame was dropped.
func (r *Ring) Push(f *Frame) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	dropped := false
	if r.n == len(r.frames) {
		r.head = (r.head + 1) % len(r.frames)
		r.n--
		r.dropped++
		dropped = true
	}

	tail := (r.head + r.n) % len(r.frames)
	r.frames[tail] = f
	r.n++
	return dropped
}

// Pop removes and returns the oldest frame, or nil if the ring is empty.
func (r *Ring) Pop() *Frame {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.n == 0 {
		return nil
	}
	f := r.frames[r.head]
	r.frames[r.head] = nil
	r.head = (r.head + 1) % len(r.frames)
	r.n--
	return f
}

// Len returns the number of buffered frames.
func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.n
}

// Cap returns the ring capacity in frames.
func (r *Ring) Cap() int {
	return len(r.frames)
}

// Fill returns the buffered fraction in [0, 1].
func (r *Ring) Fill() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return float64(r.n) / float64(len(r.frames))
}

// Dropped returns the total number of frames dropped since creation.
func (r *Ring) Dropped() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

// Reset discards all buffered frames.
func (r *Ring) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.frames {
		r.frames[i] = nil
	}
	r.head = 0
	r.n = 0
}
