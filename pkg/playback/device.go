// Package playback writes PCM frames to the host audio output device via
// PortAudio.
package playback

import (
	"sync"

	"github.com/gordonklaus/portaudio"
)

// PortAudio is initialized once for the whole process, on first sink open.
// Terminate releases it and is meant to be deferred from main.
var (
	initOnce sync.Once
	initErr  error
	initDone bool
)

func ensureInitialized() error {
	initOnce.Do(func() {
		initErr = portaudio.Initialize()
		initDone = initErr == nil
	})
	return initErr
}

// Terminate shuts down the audio host API if it was ever initialized.
func Terminate() {
	if initDone {
		_ = portaudio.Terminate()
	}
}
