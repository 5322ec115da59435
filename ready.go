package screenrec

import (
	"context"
	"sync"
	"time"
)

// waitReady blocks until track reports a decoded frame, the timeout elapses
// or ctx is done, whichever comes first. The losing watcher is always
// unregistered before returning. It reports whether the track became ready.
func waitReady(ctx context.Context, track VideoTrack, timeout time.Duration) bool {
	if track == nil {
		return false
	}
	if track.Frame() != nil {
		return true
	}

	ready := make(chan struct{})
	var once sync.Once
	cancel := track.OnReady(func() {
		once.Do(func() { close(ready) })
	})
	defer cancel()

	// A frame may have landed between the first check and registration.
	if track.Frame() != nil {
		return true
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-ready:
		return true
	case <-timer.C:
		return false
	case <-ctx.Done():
		return false
	}
}
