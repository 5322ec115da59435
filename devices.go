package screenrec

import "context"

// ConstrainInt is an "ideal/max" numeric constraint. Zero fields are omitted.
type ConstrainInt struct {
	Ideal int
	Max   int
}

// IsSet reports whether any bound is present.
func (c ConstrainInt) IsSet() bool { return c.Ideal != 0 || c.Max != 0 }

// VideoConstraints for display and camera capture.
type VideoConstraints struct {
	Width      ConstrainInt
	Height     ConstrainInt
	FrameRate  ConstrainInt
	FacingMode string // "user" or "environment"

	// MediaSource is the engine-specific capture source hint understood by
	// legacy user-media screen capture: "screen", "window" or "application".
	MediaSource string
}

// AudioConstraints for display audio and microphone capture.
type AudioConstraints struct {
	EchoCancellation bool
	NoiseSuppression bool
	SampleRate       int
}

// DisplayMediaOptions configures getDisplayMedia (screen capture).
type DisplayMediaOptions struct {
	Video VideoConstraints
	Audio *AudioConstraints // nil = no audio
}

// UserMediaOptions configures getUserMedia.
type UserMediaOptions struct {
	Video *VideoConstraints // nil = no video
	Audio *AudioConstraints // nil = no audio
}

// MediaDevices provides user media (like navigator.mediaDevices). Calls may
// block for as long as the user takes to answer a permission prompt.
type MediaDevices interface {
	// GetUserMedia returns a MediaStream with the requested camera and/or
	// microphone tracks.
	GetUserMedia(ctx context.Context, options UserMediaOptions) (MediaStream, error)
}

// DisplayMediaProvider is implemented by MediaDevices that support the
// standard display capture API.
type DisplayMediaProvider interface {
	GetDisplayMedia(ctx context.Context, options DisplayMediaOptions) (MediaStream, error)
}

// DisplayMediaFunc is a free-standing display capture entry point.
type DisplayMediaFunc func(ctx context.Context, options DisplayMediaOptions) (MediaStream, error)

// SurfaceFactory creates a drawing surface.
type SurfaceFactory func(width, height int) (Surface, error)

// AudioContextFactory creates an audio-processing context.
type AudioContextFactory func() (AudioContext, error)

// Platform bundles the capabilities a recording session is built from.
// A nil field means the capability does not exist on the platform.
type Platform struct {
	Env Environment

	// Devices provides camera and microphone capture. When it also
	// implements DisplayMediaProvider it is the standard display capture API.
	Devices MediaDevices

	// LegacyDisplayMedia is the legacy global display capture function.
	LegacyDisplayMedia DisplayMediaFunc

	Recorders     RecorderFactory
	Surfaces      SurfaceFactory
	AudioContexts AudioContextFactory
}

// Probe runs the capability prober against p.
func (p *Platform) Probe() Capabilities {
	return Probe(p.Env, p.Recorders)
}
