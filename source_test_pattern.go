package screenrec

import (
	"image"
	"image/color"
	"math"
	"time"
)

// PatternType defines the type of test pattern to generate.
type PatternType int

const (
	PatternColorBars    PatternType = iota // SMPTE color bars
	PatternGradient                        // Horizontal gradient
	PatternCheckerboard                    // Checkerboard pattern
	PatternSolidColor                      // Solid color
	PatternMovingBox                       // Moving box (animated)
)

func (p PatternType) String() string {
	switch p {
	case PatternColorBars:
		return "ColorBars"
	case PatternGradient:
		return "Gradient"
	case PatternCheckerboard:
		return "Checkerboard"
	case PatternSolidColor:
		return "SolidColor"
	case PatternMovingBox:
		return "MovingBox"
	default:
		return "Unknown"
	}
}

// TestPatternConfig configures a synthetic video track.
type TestPatternConfig struct {
	Width   int         // Frame width (default: 1280)
	Height  int         // Frame height (default: 720)
	FPS     int         // Frames per second (default: 30)
	Pattern PatternType // Pattern type (default: ColorBars)
	Label   string      // Track label (default: pattern name)

	// Animated draws a moving box over static patterns. MovingBox always
	// animates.
	Animated bool

	// For SolidColor pattern
	Solid color.RGBA

	// For Checkerboard pattern
	CheckerSize int // Size of each checker square (default: 32)

	// FrameCallbacks makes the track a FrameNotifier.
	FrameCallbacks bool

	// StartDelay postpones the first frame, emulating a source that is slow
	// to report metadata.
	StartDelay time.Duration
}

// DefaultTestPatternConfig returns a default test pattern configuration.
func DefaultTestPatternConfig() TestPatternConfig {
	return TestPatternConfig{
		Width:       1280,
		Height:      720,
		FPS:         30,
		Pattern:     PatternColorBars,
		CheckerSize: 32,
	}
}

// NewTestPatternTrack starts a live video track rendering config's pattern.
// Closing the track stops the generator.
func NewTestPatternTrack(config TestPatternConfig) VideoTrack {
	if config.Width <= 0 {
		config.Width = 1280
	}
	if config.Height <= 0 {
		config.Height = 720
	}
	if config.FPS <= 0 {
		config.FPS = 30
	}
	if config.CheckerSize <= 0 {
		config.CheckerSize = 32
	}
	if config.Label == "" {
		config.Label = config.Pattern.String()
	}

	stop := make(chan struct{})
	feed := NewVideoFeed(NewTrackID("pattern"), config.Label, config.FPS, func() { close(stop) })
	go generatePattern(feed, config, stop)

	if config.FrameCallbacks {
		return WithFrameCallbacks(feed)
	}
	return feed
}

func generatePattern(feed *VideoFeed, config TestPatternConfig, stop <-chan struct{}) {
	if config.StartDelay > 0 {
		select {
		case <-stop:
			return
		case <-time.After(config.StartDelay):
		}
	}

	ticker := time.NewTicker(time.Second / time.Duration(config.FPS))
	defer ticker.Stop()

	var frameNum uint64
	for {
		feed.Push(renderPattern(config, frameNum))
		frameNum++
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
	}
}

// renderPattern draws frame frameNum of the configured pattern.
func renderPattern(config TestPatternConfig, frameNum uint64) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, config.Width, config.Height))
	switch config.Pattern {
	case PatternGradient:
		fillGradient(img)
	case PatternCheckerboard:
		fillCheckerboard(img, config.CheckerSize)
	case PatternSolidColor:
		fillSolid(img, config.Solid)
	case PatternMovingBox:
		fillSolid(img, color.RGBA{16, 16, 16, 255})
		drawMovingBox(img, frameNum)
	default:
		fillColorBars(img)
	}
	if config.Animated && config.Pattern != PatternMovingBox {
		drawMovingBox(img, frameNum)
	}
	return img
}

// SMPTE color bars (simplified 8-bar pattern)
var colorBarsRGB = [8]color.RGBA{
	{192, 192, 192, 255}, // White (75%)
	{192, 192, 0, 255},   // Yellow
	{0, 192, 192, 255},   // Cyan
	{0, 192, 0, 255},     // Green
	{192, 0, 192, 255},   // Magenta
	{192, 0, 0, 255},     // Red
	{0, 0, 192, 255},     // Blue
	{16, 16, 16, 255},    // Black
}

func fillColorBars(img *image.RGBA) {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	barWidth := max(w/8, 1)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, colorBarsRGB[min(x/barWidth, 7)])
		}
	}
}

func fillGradient(img *image.RGBA) {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := uint8((x * 255) / w)
			img.SetRGBA(x, y, color.RGBA{v, v, v, 255})
		}
	}
}

func fillCheckerboard(img *image.RGBA, size int) {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := uint8(16)
			if ((x/size)+(y/size))%2 == 0 {
				v = 235
			}
			img.SetRGBA(x, y, color.RGBA{v, v, v, 255})
		}
	}
}

func fillSolid(img *image.RGBA, c color.RGBA) {
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
}

// drawMovingBox draws a white box circling the frame centre.
func drawMovingBox(img *image.RGBA, frameNum uint64) {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	boxSize := max(min(w, h)/7, 4)
	radius := float64(min(w, h)) / 4

	angle := float64(frameNum) * 0.05 // Radians per frame
	boxX := w/2 + int(radius*math.Cos(angle)) - boxSize/2
	boxY := h/2 + int(radius*math.Sin(angle)) - boxSize/2

	white := color.RGBA{235, 235, 235, 255}
	box := image.Rect(boxX, boxY, boxX+boxSize, boxY+boxSize).Intersect(img.Rect)
	for y := box.Min.Y; y < box.Max.Y; y++ {
		for x := box.Min.X; x < box.Max.X; x++ {
			img.SetRGBA(x, y, white)
		}
	}
}
