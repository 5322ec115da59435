package screenrec

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"
)

// DefaultDesktopUserAgent is a desktop Chromium user agent.
const DefaultDesktopUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0 Safari/537.36"

// SyntheticOptions configures the software platform. The zero value is a
// desktop with every capability present.
type SyntheticOptions struct {
	UserAgent string

	// Native display size and rate; display constraints may lower them.
	ScreenWidth  int
	ScreenHeight int
	ScreenFPS    int

	// SystemAudio attaches a tone track to display captures made with audio.
	SystemAudio bool

	CameraWidth  int
	CameraHeight int

	// ReadyDelay postpones the first display frame.
	ReadyDelay time.Duration

	DenyScreen       bool
	DenyCamera       bool
	DenyMicrophone   bool
	FailDisplayAudio bool // display capture with audio fails with ErrAudioConstraint

	NoDisplayMedia     bool // hide the standard display capture API
	LegacyDisplayMedia bool // expose the legacy global display capture function
	NoMediaDevices     bool // no camera, microphone or mediaSource capture
	NoFrameCallbacks   bool
	NoSurfaces         bool
	NoSurfaceCapture   bool
	NoAudioContext     bool
	NoRecorder         bool
}

// SyntheticDevices serves test-pattern screens, cameras and tone
// microphones.
type SyntheticDevices struct {
	opts SyntheticOptions

	displayCalls atomic.Int32
	userCalls    atomic.Int32
}

// DisplayCalls returns how many display captures were requested.
func (d *SyntheticDevices) DisplayCalls() int { return int(d.displayCalls.Load()) }

// UserMediaCalls returns how many user media requests were made.
func (d *SyntheticDevices) UserMediaCalls() int { return int(d.userCalls.Load()) }

// GetUserMedia serves cameras, microphones and mediaSource screen captures.
func (d *SyntheticDevices) GetUserMedia(ctx context.Context, options UserMediaOptions) (MediaStream, error) {
	d.userCalls.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if options.Video != nil && options.Video.MediaSource != "" {
		return d.display(ctx, DisplayMediaOptions{Video: *options.Video, Audio: options.Audio})
	}

	var tracks []MediaStreamTrack
	if options.Video != nil {
		if d.opts.DenyCamera {
			return nil, fmt.Errorf("camera: %w", ErrPermissionDenied)
		}
		tracks = append(tracks, NewTestPatternTrack(TestPatternConfig{
			Width:          orDefault(d.opts.CameraWidth, 640),
			Height:         orDefault(d.opts.CameraHeight, 360),
			FPS:            30,
			Pattern:        PatternMovingBox,
			Label:          "synthetic camera",
			FrameCallbacks: !d.opts.NoFrameCallbacks,
		}))
	}
	if options.Audio != nil {
		if d.opts.DenyMicrophone {
			closeTracks(tracks)
			return nil, fmt.Errorf("microphone: %w", ErrPermissionDenied)
		}
		tone := DefaultToneConfig()
		tone.Frequency = 660
		tone.Amplitude = 0.25
		tone.Label = "synthetic microphone"
		tracks = append(tracks, NewToneTrack(tone))
	}
	return NewMediaStream(tracks...), nil
}

func (d *SyntheticDevices) display(ctx context.Context, options DisplayMediaOptions) (MediaStream, error) {
	d.displayCalls.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d.opts.DenyScreen {
		return nil, fmt.Errorf("display: %w", ErrPermissionDenied)
	}
	if options.Audio != nil && d.opts.FailDisplayAudio {
		return nil, fmt.Errorf("display: %w", ErrAudioConstraint)
	}

	w := capTo(orDefault(d.opts.ScreenWidth, 1280), options.Video.Width.Max)
	h := capTo(orDefault(d.opts.ScreenHeight, 720), options.Video.Height.Max)
	fps := capTo(orDefault(d.opts.ScreenFPS, 30), options.Video.FrameRate.Max)

	tracks := []MediaStreamTrack{NewTestPatternTrack(TestPatternConfig{
		Width:          w,
		Height:         h,
		FPS:            fps,
		Pattern:        PatternColorBars,
		Animated:       true,
		Label:          "synthetic screen",
		FrameCallbacks: !d.opts.NoFrameCallbacks,
		StartDelay:     d.opts.ReadyDelay,
	})}
	if options.Audio != nil && d.opts.SystemAudio {
		tone := DefaultToneConfig()
		tone.Label = "synthetic system audio"
		tracks = append(tracks, NewToneTrack(tone))
	}
	return NewMediaStream(tracks...), nil
}

// syntheticDisplayDevices adds the standard display capture API.
type syntheticDisplayDevices struct {
	*SyntheticDevices
}

func (d syntheticDisplayDevices) GetDisplayMedia(ctx context.Context, options DisplayMediaOptions) (MediaStream, error) {
	return d.display(ctx, options)
}

// plainSurface hides StreamCapturer from a surface.
type plainSurface struct {
	Surface
}

// NewSyntheticPlatform builds a Platform from software components: test
// pattern displays and cameras, tone microphones, the software audio graph,
// image surfaces and the WebM recorder.
func NewSyntheticPlatform(opts SyntheticOptions) (*Platform, *SyntheticDevices) {
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultDesktopUserAgent
	}
	devices := &SyntheticDevices{opts: opts}

	p := &Platform{Env: Environment{UserAgent: opts.UserAgent}}
	switch {
	case opts.NoMediaDevices:
	case opts.NoDisplayMedia:
		p.Devices = devices
	default:
		p.Devices = syntheticDisplayDevices{devices}
	}
	if opts.LegacyDisplayMedia {
		p.LegacyDisplayMedia = devices.display
	}
	if !opts.NoRecorder {
		p.Recorders = NewWebMRecorderFactory()
	}
	if !opts.NoSurfaces {
		surfaces := NewImageSurfaceFactory()
		if opts.NoSurfaceCapture {
			p.Surfaces = func(w, h int) (Surface, error) {
				s, err := surfaces(w, h)
				if err != nil {
					return nil, err
				}
				return plainSurface{s}, nil
			}
		} else {
			p.Surfaces = surfaces
		}
	}
	if !opts.NoAudioContext {
		p.AudioContexts = NewSoftwareAudioContextFactory(48000, 2)
	}
	return p, devices
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func capTo(v, limit int) int {
	if limit > 0 && v > limit {
		return limit
	}
	return v
}

func closeTracks(tracks []MediaStreamTrack) {
	for _, t := range tracks {
		_ = t.Close()
	}
}
