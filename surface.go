package screenrec

import (
	"fmt"
	"image"
	"image/color"
	"sync"
	"time"

	"golang.org/x/image/draw"
)

// Surface is a drawing surface the compositor paints each cycle.
// Implementations must be safe for concurrent use.
type Surface interface {
	// Size returns the current pixel dimensions.
	Size() (width, height int)

	// Resize changes the dimensions. Like a canvas, resizing discards the
	// current contents; resizing to the current size is a no-op.
	Resize(width, height int)

	// Clear makes every pixel transparent.
	Clear()

	// DrawImage draws img stretched to dst.
	DrawImage(img image.Image, dst image.Rectangle)

	// DrawRoundedImage draws img stretched to dst, clipped to a rounded
	// rectangle with the given corner radius.
	DrawRoundedImage(img image.Image, dst image.Rectangle, radius int)

	// SetSmoothing selects bilinear (true) or nearest-neighbour scaling.
	SetSmoothing(on bool)
}

// StreamCapturer is implemented by surfaces that can be captured as a live
// video stream (canvas.captureStream).
type StreamCapturer interface {
	// CaptureStream returns a stream with one video track sampling the
	// surface at up to fps frames per second.
	CaptureStream(fps int) (MediaStream, error)
}

// ImageSurface is an in-memory Surface backed by an *image.RGBA.
type ImageSurface struct {
	mu     sync.Mutex
	img    *image.RGBA
	scaler draw.Interpolator
}

// NewImageSurface creates a surface of the given size. Smoothing starts on.
func NewImageSurface(width, height int) *ImageSurface {
	return &ImageSurface{
		img:    image.NewRGBA(image.Rect(0, 0, max(width, 0), max(height, 0))),
		scaler: draw.ApproxBiLinear,
	}
}

// NewImageSurfaceFactory adapts NewImageSurface to a SurfaceFactory.
func NewImageSurfaceFactory() SurfaceFactory {
	return func(width, height int) (Surface, error) {
		return NewImageSurface(width, height), nil
	}
}

func (s *ImageSurface) Size() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.img.Bounds()
	return b.Dx(), b.Dy()
}

func (s *ImageSurface) Resize(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.img.Bounds()
	if b.Dx() == width && b.Dy() == height {
		return
	}
	s.img = image.NewRGBA(image.Rect(0, 0, width, height))
}

func (s *ImageSurface) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	draw.Draw(s.img, s.img.Bounds(), image.Transparent, image.Point{}, draw.Src)
}

func (s *ImageSurface) DrawImage(img image.Image, dst image.Rectangle) {
	if img == nil || dst.Empty() {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scaler.Scale(s.img, dst, img, img.Bounds(), draw.Over, nil)
}

func (s *ImageSurface) DrawRoundedImage(img image.Image, dst image.Rectangle, radius int) {
	if img == nil || dst.Empty() {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scaler.Scale(s.img, dst, img, img.Bounds(), draw.Over, &draw.Options{
		DstMask: roundedRect{r: dst, radius: radius},
	})
}

func (s *ImageSurface) SetSmoothing(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if on {
		s.scaler = draw.ApproxBiLinear
	} else {
		s.scaler = draw.NearestNeighbor
	}
}

// Snapshot returns a copy of the current contents.
func (s *ImageSurface) Snapshot() *image.RGBA {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := image.NewRGBA(s.img.Bounds())
	copy(out.Pix, s.img.Pix)
	return out
}

// CaptureStream samples the surface on a timer and publishes each snapshot
// on a new video track. Closing the track stops the sampling.
func (s *ImageSurface) CaptureStream(fps int) (MediaStream, error) {
	if fps <= 0 {
		return nil, fmt.Errorf("capture stream: invalid frame rate %d", fps)
	}
	stop := make(chan struct{})
	feed := NewVideoFeed(NewTrackID("surface"), "surface capture", fps, func() { close(stop) })

	interval := time.Second / time.Duration(fps)
	feed.Push(s.Snapshot())
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				feed.Push(s.Snapshot())
			}
		}
	}()
	return NewMediaStream(feed), nil
}

// roundedRect is an alpha mask that is opaque inside r with corners rounded
// to radius, and transparent elsewhere. Its pixels map 1:1 to the surface.
type roundedRect struct {
	r      image.Rectangle
	radius int
}

func (m roundedRect) ColorModel() color.Model { return color.Alpha16Model }
func (m roundedRect) Bounds() image.Rectangle { return m.r }

func (m roundedRect) At(x, y int) color.Color {
	if !(image.Point{X: x, Y: y}).In(m.r) {
		return color.Transparent
	}
	rad := min(m.radius, m.r.Dx()/2, m.r.Dy()/2)
	if rad <= 0 {
		return color.Opaque
	}

	// Distance from the pixel centre to the nearest corner circle centre.
	cx, cy := x, y
	switch {
	case x < m.r.Min.X+rad:
		cx = m.r.Min.X + rad
	case x >= m.r.Max.X-rad:
		cx = m.r.Max.X - rad - 1
	}
	switch {
	case y < m.r.Min.Y+rad:
		cy = m.r.Min.Y + rad
	case y >= m.r.Max.Y-rad:
		cy = m.r.Max.Y - rad - 1
	}
	dx, dy := x-cx, y-cy
	if dx*dx+dy*dy > rad*rad {
		return color.Transparent
	}
	return color.Opaque
}
