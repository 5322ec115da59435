package screenrec

import (
	"image/color"
	"sync/atomic"
	"testing"
	"time"
)

func TestIntervalScheduler_RunsUntilCancel(t *testing.T) {
	s := NewIntervalScheduler(200)
	if s.Kind() != SchedulerFixedInterval {
		t.Errorf("Kind = %v, want fixed-interval", s.Kind())
	}

	var draws atomic.Int32
	s.Start(func() { draws.Add(1) })
	if draws.Load() != 1 {
		t.Error("Start should draw once synchronously")
	}
	eventually(t, time.Second, func() bool { return draws.Load() >= 5 }, "interval draws")

	s.Cancel()
	after := draws.Load()
	time.Sleep(50 * time.Millisecond)
	if got := draws.Load(); got > after+1 {
		t.Errorf("draws continued after Cancel: %d -> %d", after, got)
	}
	s.Cancel()
}

func TestScheduler_CancelBeforeStart(t *testing.T) {
	NewIntervalScheduler(30).Cancel()
}

func TestIntervalScheduler_RestartReplacesLoop(t *testing.T) {
	s := NewIntervalScheduler(100)
	var first, second atomic.Int32
	s.Start(func() { first.Add(1) })
	s.Start(func() { second.Add(1) })
	time.Sleep(20 * time.Millisecond)
	before := first.Load()
	time.Sleep(60 * time.Millisecond)
	s.Cancel()

	if got := first.Load(); got != before {
		t.Errorf("old loop kept drawing after restart: %d -> %d", before, got)
	}
	if second.Load() < 2 {
		t.Errorf("new loop drew %d times", second.Load())
	}
}

func TestFrameCallbackScheduler_FollowsFrames(t *testing.T) {
	feed := NewVideoFeed("v", "video", 30, nil)
	track := WithFrameCallbacks(feed)
	s := selectScheduler(track, 30)
	if s.Kind() != SchedulerPerVideoFrame {
		t.Fatalf("Kind = %v, want per-video-frame", s.Kind())
	}

	var draws atomic.Int32
	s.Start(func() { draws.Add(1) })
	time.Sleep(20 * time.Millisecond)
	if got := draws.Load(); got != 1 {
		t.Fatalf("draws without frames = %d, want 1", got)
	}

	armed := func() bool {
		feed.mu.Lock()
		defer feed.mu.Unlock()
		return len(feed.frameCbs) == 1
	}
	for i := 0; i < 3; i++ {
		eventually(t, time.Second, armed, "frame callback armed")
		feed.Push(solidImage(4, 4, color.RGBA{A: 255}))
		want := int32(i + 2)
		eventually(t, time.Second, func() bool { return draws.Load() >= want }, "frame-driven draw")
	}

	s.Cancel()
	feed.Push(solidImage(4, 4, color.RGBA{A: 255}))
	time.Sleep(20 * time.Millisecond)
	if got := draws.Load(); got != 4 {
		t.Errorf("draws after Cancel = %d, want 4", got)
	}
}

func TestSelectScheduler_FallsBackToInterval(t *testing.T) {
	feed := NewVideoFeed("v", "video", 30, nil)
	if k := selectScheduler(feed, 30).Kind(); k != SchedulerFixedInterval {
		t.Errorf("Kind = %v, want fixed-interval", k)
	}
}
