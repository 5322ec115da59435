package screenrec

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// mobileMaxFrameRate caps frame rate requests on mobile-class devices.
const mobileMaxFrameRate = 30

// legacyMediaSources are the capture source hints tried, in order, by the
// user-media screen capture fallback.
var legacyMediaSources = []string{"screen", "window", "application"}

// VideoConstraints returns the display capture constraints for c. Mobile
// devices get no width/height and a frame rate capped at 30; desktops request
// the configured values as both ideal and max.
func (c CaptureConfig) VideoConstraints(mobile bool) VideoConstraints {
	if mobile {
		return VideoConstraints{
			FrameRate: ConstrainInt{Ideal: min(c.FrameRate, mobileMaxFrameRate), Max: mobileMaxFrameRate},
		}
	}
	w, h := c.Resolution.Size()
	return VideoConstraints{
		Width:     ConstrainInt{Ideal: w, Max: w},
		Height:    ConstrainInt{Ideal: h, Max: h},
		FrameRate: ConstrainInt{Ideal: c.FrameRate, Max: c.FrameRate},
	}
}

// displayAudioConstraints is the audio request sent along with display capture.
func displayAudioConstraints() *AudioConstraints {
	return &AudioConstraints{
		EchoCancellation: true,
		NoiseSuppression: true,
		SampleRate:       48000,
	}
}

// captureStrategy is one display capture API.
type captureStrategy struct {
	name    string
	capture DisplayMediaFunc
}

// Acquirer obtains screen, camera and microphone streams from a Platform.
type Acquirer struct {
	platform *Platform
	logger   *slog.Logger
}

// NewAcquirer creates an acquirer for p. A nil logger uses slog.Default().
func NewAcquirer(p *Platform, logger *slog.Logger) *Acquirer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Acquirer{platform: p, logger: logger}
}

// strategies returns the display capture APIs present on the platform, in
// priority order.
func (a *Acquirer) strategies() []captureStrategy {
	var out []captureStrategy
	if dp, ok := a.platform.Devices.(DisplayMediaProvider); ok {
		out = append(out, captureStrategy{name: "display-media", capture: dp.GetDisplayMedia})
	}
	if a.platform.LegacyDisplayMedia != nil {
		out = append(out, captureStrategy{name: "legacy-display-media", capture: a.platform.LegacyDisplayMedia})
	}
	if a.platform.Devices != nil {
		out = append(out, captureStrategy{name: "user-media-source", capture: a.userMediaScreen})
	}
	return out
}

// userMediaScreen captures the screen through getUserMedia seeded with each
// capture source hint until one succeeds.
func (a *Acquirer) userMediaScreen(ctx context.Context, opts DisplayMediaOptions) (MediaStream, error) {
	var errs []error
	for _, source := range legacyMediaSources {
		vc := opts.Video
		vc.MediaSource = source
		stream, err := a.platform.Devices.GetUserMedia(ctx, UserMediaOptions{Video: &vc, Audio: opts.Audio})
		if err == nil && stream != nil {
			return stream, nil
		}
		if err == nil {
			err = errors.New("no stream returned")
		}
		errs = append(errs, fmt.Errorf("mediaSource %s: %w", source, err))
		if errors.Is(err, ErrPermissionDenied) || ctx.Err() != nil {
			break
		}
	}
	return nil, errors.Join(errs...)
}

// AcquireScreen tries every display capture API in order and returns the
// first stream obtained. A permission denial ends the chain. When every API
// fails, or none exists, the error wraps ErrCaptureUnavailable.
func (a *Acquirer) AcquireScreen(ctx context.Context, vc VideoConstraints, wantAudio bool) (MediaStream, error) {
	opts := DisplayMediaOptions{Video: vc}
	if wantAudio {
		opts.Audio = displayAudioConstraints()
	}

	strategies := a.strategies()
	if len(strategies) == 0 {
		return nil, fmt.Errorf("%w: no display capture API", ErrCaptureUnavailable)
	}

	var errs []error
	for _, s := range strategies {
		stream, err := s.capture(ctx, opts)
		if err == nil && stream != nil {
			a.logger.Debug("screen acquired", "strategy", s.name, "audio", wantAudio)
			return stream, nil
		}
		if err == nil {
			err = errors.New("no stream returned")
		}
		if errors.Is(err, ErrPermissionDenied) {
			return nil, fmt.Errorf("%s: %w", s.name, err)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%s: %w", s.name, ctxErr)
		}
		a.logger.Debug("display capture strategy failed, trying next", "strategy", s.name, "err", err)
		errs = append(errs, fmt.Errorf("%s: %w", s.name, err))
	}
	return nil, fmt.Errorf("%w: %w", ErrCaptureUnavailable, errors.Join(errs...))
}

// isAudioCaptureFailure reports whether err stems from the audio part of a
// display capture request.
func isAudioCaptureFailure(err error) bool {
	return errors.Is(err, ErrAudioConstraint) || errors.Is(err, ErrOverconstrained)
}

// AcquireScreenWithFallback acquires the screen, retrying exactly once with
// audio disabled when an audio-related failure blocked the first attempt.
func (a *Acquirer) AcquireScreenWithFallback(ctx context.Context, vc VideoConstraints, wantAudio bool) (MediaStream, error) {
	stream, err := a.AcquireScreen(ctx, vc, wantAudio)
	if err == nil || !wantAudio || !isAudioCaptureFailure(err) {
		return stream, err
	}
	a.logger.Warn("screen capture with audio failed, retrying without audio", "err", err)
	return a.AcquireScreen(ctx, vc, false)
}

// AcquireCamera opens the front-facing camera without audio. Failures are
// returned for logging only; callers continue without a camera.
func (a *Acquirer) AcquireCamera(ctx context.Context) (MediaStream, error) {
	if a.platform.Devices == nil {
		return nil, fmt.Errorf("camera: %w", ErrNotSupported)
	}
	stream, err := a.platform.Devices.GetUserMedia(ctx, UserMediaOptions{
		Video: &VideoConstraints{FacingMode: "user"},
	})
	if err != nil {
		return nil, fmt.Errorf("camera: %w", err)
	}
	if stream == nil || len(stream.GetVideoTracks()) == 0 {
		releaseStream(stream)
		return nil, fmt.Errorf("camera: %w", ErrDeviceNotFound)
	}
	return stream, nil
}

// AcquireMicrophone opens the default microphone. Like AcquireCamera, errors
// mean "continue without".
func (a *Acquirer) AcquireMicrophone(ctx context.Context) (MediaStream, error) {
	if a.platform.Devices == nil {
		return nil, fmt.Errorf("microphone: %w", ErrNotSupported)
	}
	stream, err := a.platform.Devices.GetUserMedia(ctx, UserMediaOptions{
		Audio: &AudioConstraints{},
	})
	if err != nil {
		return nil, fmt.Errorf("microphone: %w", err)
	}
	if stream == nil || len(stream.GetAudioTracks()) == 0 {
		releaseStream(stream)
		return nil, fmt.Errorf("microphone: %w", ErrDeviceNotFound)
	}
	return stream, nil
}
