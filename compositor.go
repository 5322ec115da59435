package screenrec

import (
	"image"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
)

// pipAspect is the camera overlay aspect ratio (height / width).
const pipAspect = 9.0 / 16.0

// PiPLayout returns the camera overlay rectangle and corner radius for a
// surface of w x h pixels. The overlay sits in the bottom-right corner.
func PiPLayout(w, h int, performance bool, t Tuning) (image.Rectangle, int) {
	t = t.withDefaults()
	frac := t.PiPFractionQuality
	if performance {
		frac = t.PiPFractionPerformance
	}
	pipW := int(math.Round(float64(w) * frac))
	pipH := int(math.Round(float64(pipW) * pipAspect))
	margin := max(12, int(math.Round(float64(w)*0.015)))
	x := w - pipW - margin
	y := h - pipH - margin
	radius := int(math.Round(float64(pipW) * 0.06))
	return image.Rect(x, y, x+pipW, y+pipH), radius
}

// CompositorConfig configures a Compositor.
type CompositorConfig struct {
	Performance bool
	Tuning      Tuning

	// FallbackWidth and FallbackHeight size the surface while the screen
	// source has not reported its dimensions.
	FallbackWidth  int
	FallbackHeight int

	// OnFrame, if set, is called after every drawn cycle.
	OnFrame func()
}

// Compositor draws the screen source and an optional camera overlay onto a
// Surface on a self-rescheduling loop.
type Compositor struct {
	surface Surface
	screen  VideoTrack
	config  CompositorConfig
	logger  *slog.Logger

	mu          sync.Mutex
	camera      VideoTrack
	scheduler   FrameScheduler
	readyCancel []func()
	cameraReady func()
	running     bool

	frames atomic.Uint64
}

// NewCompositor creates a compositor drawing screen onto surface.
func NewCompositor(surface Surface, screen VideoTrack, config CompositorConfig, logger *slog.Logger) *Compositor {
	if logger == nil {
		logger = slog.Default()
	}
	config.Tuning = config.Tuning.withDefaults()
	surface.SetSmoothing(!config.Performance)
	return &Compositor{
		surface: surface,
		screen:  screen,
		config:  config,
		logger:  logger,
	}
}

// Surface returns the surface drawn on.
func (c *Compositor) Surface() Surface { return c.surface }

// Frames returns the number of cycles drawn so far.
func (c *Compositor) Frames() uint64 { return c.frames.Load() }

// Scheduler returns the active frame scheduler, or nil when stopped.
func (c *Compositor) Scheduler() FrameScheduler {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.scheduler
}

// SetCamera installs the camera overlay source; nil removes it. The
// compositor does not own the track.
func (c *Compositor) SetCamera(track VideoTrack) {
	c.mu.Lock()
	if c.cameraReady != nil {
		c.cameraReady()
		c.cameraReady = nil
	}
	c.camera = track
	if track != nil && c.running {
		c.cameraReady = track.OnReady(c.fitSurface)
	}
	c.mu.Unlock()
}

// Start sizes the surface and begins the draw loop. It is a no-op while
// running.
func (c *Compositor) Start() {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return
	}
	c.running = true
	c.readyCancel = append(c.readyCancel, c.screen.OnReady(c.fitSurface))
	if c.camera != nil {
		c.cameraReady = c.camera.OnReady(c.fitSurface)
	}
	fps := c.config.Tuning.DrawFPSQuality
	if c.config.Performance {
		fps = c.config.Tuning.DrawFPSPerformance
	}
	c.scheduler = selectScheduler(c.screen, fps)
	sched := c.scheduler
	c.mu.Unlock()

	c.fitSurface()
	c.logger.Debug("compositor started", "scheduler", sched.Kind().String(), "fps", fps)
	sched.Start(c.DrawFrame)
}

// Stop cancels the draw loop and unregisters every readiness watcher.
// It is idempotent.
func (c *Compositor) Stop() {
	c.mu.Lock()
	sched := c.scheduler
	cancels := c.readyCancel
	if c.cameraReady != nil {
		cancels = append(cancels, c.cameraReady)
	}
	c.scheduler = nil
	c.readyCancel = nil
	c.cameraReady = nil
	c.running = false
	c.mu.Unlock()

	if sched != nil {
		sched.Cancel()
	}
	for _, cancel := range cancels {
		cancel()
	}
}

// fitSurface resizes the surface to the screen's decoded dimensions, or the
// configured fallback when those are unknown.
func (c *Compositor) fitSurface() {
	w, h := c.screenSize()
	if w <= 0 || h <= 0 {
		w, h = c.config.FallbackWidth, c.config.FallbackHeight
	}
	c.surface.Resize(w, h)
}

func (c *Compositor) screenSize() (int, int) {
	s := c.screen.Settings()
	if s.Width > 0 && s.Height > 0 {
		return s.Width, s.Height
	}
	if f := c.screen.Frame(); f != nil {
		b := f.Bounds()
		return b.Dx(), b.Dy()
	}
	return 0, 0
}

// DrawFrame paints one composed frame. A panic from a frame source is
// logged and swallowed so the loop keeps running.
func (c *Compositor) DrawFrame() {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Warn("compositor draw failed", "panic", r)
		}
	}()

	w, h := c.surface.Size()
	c.surface.Clear()
	if frame := c.screen.Frame(); frame != nil {
		c.surface.DrawImage(frame, image.Rect(0, 0, w, h))
	}

	c.mu.Lock()
	camera := c.camera
	c.mu.Unlock()
	if camera != nil && camera.State() == TrackStateLive {
		if frame := camera.Frame(); frame != nil {
			dst, radius := PiPLayout(w, h, c.config.Performance, c.config.Tuning)
			c.surface.DrawRoundedImage(frame, dst, radius)
		}
	}

	c.frames.Add(1)
	if c.config.OnFrame != nil {
		c.config.OnFrame()
	}
}
