package screenrec

import (
	"sync"
	"time"
)

// SchedulerKind identifies how a FrameScheduler paces the draw loop.
type SchedulerKind int

const (
	SchedulerPerVideoFrame SchedulerKind = iota // Tied to the source's frame delivery
	SchedulerFixedInterval                      // Timer at a fixed rate
)

func (k SchedulerKind) String() string {
	switch k {
	case SchedulerPerVideoFrame:
		return "per-video-frame"
	case SchedulerFixedInterval:
		return "fixed-interval"
	default:
		return "unknown"
	}
}

// FrameScheduler runs a self-rescheduling draw loop.
//
// Start draws once immediately and keeps drawing until Cancel. Calling Start
// on a running scheduler restarts the loop. Cancel is idempotent and safe
// on a scheduler that never started.
type FrameScheduler interface {
	Start(draw func())
	Cancel()
	Kind() SchedulerKind
}

// loopScheduler implements FrameScheduler on top of an arm function that
// schedules one future callback and returns its canceller.
type loopScheduler struct {
	kind SchedulerKind
	arm  func(fn func()) (cancel func())

	mu      sync.Mutex
	gen     uint64
	pending func()
}

// NewIntervalScheduler paces the loop with a timer at fps frames per second.
func NewIntervalScheduler(fps int) FrameScheduler {
	if fps <= 0 {
		fps = 30
	}
	interval := time.Duration(float64(time.Second) / float64(fps))
	return &loopScheduler{
		kind: SchedulerFixedInterval,
		arm: func(fn func()) func() {
			t := time.AfterFunc(interval, fn)
			return func() { t.Stop() }
		},
	}
}

// NewFrameCallbackScheduler paces the loop with the source's own frame
// delivery.
func NewFrameCallbackScheduler(n FrameNotifier) FrameScheduler {
	return &loopScheduler{
		kind: SchedulerPerVideoFrame,
		arm:  n.OnNextFrame,
	}
}

// selectScheduler prefers a per-frame callback when track offers one.
func selectScheduler(track VideoTrack, fps int) FrameScheduler {
	if n, ok := track.(FrameNotifier); ok {
		return NewFrameCallbackScheduler(n)
	}
	return NewIntervalScheduler(fps)
}

func (s *loopScheduler) Kind() SchedulerKind { return s.kind }

func (s *loopScheduler) Start(draw func()) {
	s.mu.Lock()
	s.disarmLocked()
	s.gen++
	gen := s.gen
	s.mu.Unlock()

	s.tick(gen, draw)
}

func (s *loopScheduler) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disarmLocked()
	s.gen++
}

func (s *loopScheduler) tick(gen uint64, draw func()) {
	s.mu.Lock()
	live := gen == s.gen
	s.mu.Unlock()
	if !live {
		return
	}

	draw()

	// arm runs unlocked; its callback always fires on another goroutine.
	cancel := s.arm(func() { s.tick(gen, draw) })

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		cancel()
		return
	}
	s.pending = cancel
}

func (s *loopScheduler) disarmLocked() {
	if s.pending != nil {
		s.pending()
		s.pending = nil
	}
}
