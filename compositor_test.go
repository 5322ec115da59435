package screenrec

import (
	"image"
	"image/color"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/image/draw"
)

func TestPiPLayout(t *testing.T) {
	tests := []struct {
		name        string
		w, h        int
		performance bool
		rect        image.Rectangle
		radius      int
	}{
		// pipW 480, pipH 270, margin 29.
		{"1080p quality", 1920, 1080, false, image.Rect(1411, 781, 1891, 1051), 29},
		// pipW 346, pipH 195, margin 29.
		{"1080p performance", 1920, 1080, true, image.Rect(1545, 856, 1891, 1051), 21},
		// pipW 960, pipH 540, margin 58.
		{"4k quality", 3840, 2160, false, image.Rect(2822, 1562, 3782, 2102), 58},
		// Small surfaces keep the 12px minimum margin.
		{"small", 400, 300, false, image.Rect(288, 232, 388, 288), 6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rect, radius := PiPLayout(tt.w, tt.h, tt.performance, DefaultTuning())
			if rect != tt.rect {
				t.Errorf("rect = %v, want %v", rect, tt.rect)
			}
			if radius != tt.radius {
				t.Errorf("radius = %d, want %d", radius, tt.radius)
			}
		})
	}
}

func TestPiPLayout_TuningOverride(t *testing.T) {
	tuning := DefaultTuning()
	tuning.PiPFractionQuality = 0.5
	rect, _ := PiPLayout(1000, 1000, false, tuning)
	if rect.Dx() != 500 {
		t.Errorf("width = %d, want 500", rect.Dx())
	}
}

func newTestCompositor(t *testing.T, screen VideoTrack, performance bool) (*Compositor, *ImageSurface) {
	t.Helper()
	surface := NewImageSurface(1, 1)
	c := NewCompositor(surface, screen, CompositorConfig{
		Performance:    performance,
		Tuning:         DefaultTuning(),
		FallbackWidth:  64,
		FallbackHeight: 48,
	}, quietLogger())
	t.Cleanup(c.Stop)
	return c, surface
}

func TestCompositor_DrawFrame(t *testing.T) {
	red := color.RGBA{255, 0, 0, 255}
	blue := color.RGBA{0, 0, 255, 255}

	screen := NewVideoFeed("screen", "screen", 30, nil)
	screen.Push(solidImage(400, 300, red))
	camera := NewVideoFeed("camera", "camera", 30, nil)
	camera.Push(solidImage(160, 90, blue))

	c, surface := newTestCompositor(t, screen, false)
	c.fitSurface()
	c.SetCamera(camera)
	c.DrawFrame()

	img := surface.Snapshot()
	if b := img.Bounds(); b.Dx() != 400 || b.Dy() != 300 {
		t.Fatalf("surface = %v, want 400x300", b)
	}
	if got := img.RGBAAt(10, 10); got != red {
		t.Errorf("screen pixel = %v, want red", got)
	}

	pip, _ := PiPLayout(400, 300, false, DefaultTuning())
	centre := image.Pt((pip.Min.X+pip.Max.X)/2, (pip.Min.Y+pip.Max.Y)/2)
	if got := img.RGBAAt(centre.X, centre.Y); got != blue {
		t.Errorf("overlay centre = %v, want blue", got)
	}
	// The rounded corner leaves the screen visible at the overlay's corner.
	if got := img.RGBAAt(pip.Min.X, pip.Min.Y); got != red {
		t.Errorf("overlay corner = %v, want screen showing through", got)
	}
	if c.Frames() != 1 {
		t.Errorf("Frames = %d, want 1", c.Frames())
	}
}

func TestCompositor_SkipsEndedCamera(t *testing.T) {
	red := color.RGBA{255, 0, 0, 255}
	screen := NewVideoFeed("screen", "screen", 30, nil)
	screen.Push(solidImage(400, 300, red))
	camera := NewVideoFeed("camera", "camera", 30, nil)
	camera.Push(solidImage(160, 90, color.RGBA{0, 0, 255, 255}))
	_ = camera.Close()

	c, surface := newTestCompositor(t, screen, true)
	c.fitSurface()
	c.SetCamera(camera)
	c.DrawFrame()

	pip, _ := PiPLayout(400, 300, true, DefaultTuning())
	centre := image.Pt((pip.Min.X+pip.Max.X)/2, (pip.Min.Y+pip.Max.Y)/2)
	if got := surface.Snapshot().RGBAAt(centre.X, centre.Y); got != red {
		t.Errorf("ended camera was drawn: %v", got)
	}
}

func TestCompositor_FallbackSizeUntilScreenReports(t *testing.T) {
	screen := NewVideoFeed("screen", "screen", 30, nil)
	c, surface := newTestCompositor(t, screen, true)
	c.Start()

	if w, h := surface.Size(); w != 64 || h != 48 {
		t.Errorf("surface = %dx%d, want fallback 64x48", w, h)
	}

	screen.Push(solidImage(200, 100, color.RGBA{A: 255}))
	eventually(t, time.Second, func() bool {
		w, h := surface.Size()
		return w == 200 && h == 100
	}, "surface resized to the screen")

	screen.Push(solidImage(300, 150, color.RGBA{A: 255}))
	eventually(t, time.Second, func() bool {
		w, h := surface.Size()
		return w == 300 && h == 150
	}, "surface follows a dimension change")
}

func TestCompositor_StartStopIdempotent(t *testing.T) {
	screen := NewVideoFeed("screen", "screen", 30, nil)
	screen.Push(solidImage(32, 18, color.RGBA{A: 255}))
	c, _ := newTestCompositor(t, screen, true)

	c.Start()
	c.Start()
	if c.Scheduler() == nil || c.Scheduler().Kind() != SchedulerFixedInterval {
		t.Fatal("plain feed should use the interval scheduler")
	}
	eventually(t, time.Second, func() bool { return c.Frames() >= 3 }, "interval frames")

	c.Stop()
	c.Stop()
	if c.Scheduler() != nil {
		t.Error("Scheduler() should be nil after Stop")
	}
	frames := c.Frames()
	time.Sleep(100 * time.Millisecond)
	if got := c.Frames(); got > frames+1 {
		t.Errorf("frames kept coming after Stop: %d -> %d", frames, got)
	}

	screen.mu.Lock()
	watchers := len(screen.readyCbs)
	screen.mu.Unlock()
	if watchers != 0 {
		t.Errorf("%d ready watchers left after Stop", watchers)
	}
}

type panickyTrack struct {
	*VideoFeed
}

func (panickyTrack) Frame() image.Image { panic("decoder gone") }

func TestCompositor_DrawRecoversFromPanics(t *testing.T) {
	feed := NewVideoFeed("screen", "screen", 30, nil)
	c, _ := newTestCompositor(t, panickyTrack{feed}, true)
	c.DrawFrame()
}

func TestCompositor_OnFrameAndSmoothing(t *testing.T) {
	screen := NewVideoFeed("screen", "screen", 30, nil)
	screen.Push(solidImage(16, 16, color.RGBA{A: 255}))
	var calls atomic.Int32
	surface := NewImageSurface(16, 16)
	c := NewCompositor(surface, screen, CompositorConfig{
		Performance: true,
		OnFrame:     func() { calls.Add(1) },
	}, nil)
	c.DrawFrame()
	c.DrawFrame()
	if calls.Load() != 2 {
		t.Errorf("OnFrame calls = %d, want 2", calls.Load())
	}
	// Performance mode turns smoothing off.
	surface.mu.Lock()
	nearest := surface.scaler == draw.NearestNeighbor
	surface.mu.Unlock()
	if !nearest {
		t.Error("performance mode should use nearest-neighbour scaling")
	}
}

func TestCompositor_QualityModeSmooths(t *testing.T) {
	screen := NewVideoFeed("screen", "screen", 30, nil)
	surface := NewImageSurface(16, 16)
	surface.SetSmoothing(false)
	NewCompositor(surface, screen, CompositorConfig{}, nil)
	surface.mu.Lock()
	bilinear := surface.scaler == draw.ApproxBiLinear
	surface.mu.Unlock()
	if !bilinear {
		t.Error("quality mode should use bilinear scaling")
	}
}
