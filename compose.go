package screenrec

import (
	"fmt"
	"log/slog"
)

// Composition is the recordable stream plus the pieces the session must
// release on stop.
type Composition struct {
	// Stream holds at least one video track.
	Stream MediaStream

	// CaptureTrack is the surface capture track, nil when the raw screen
	// video is recorded.
	CaptureTrack VideoTrack
}

// captureFrameRate caps the surface capture rate at min(cap, configured).
func captureFrameRate(frameRate int, performance bool, t Tuning) int {
	t = t.withDefaults()
	limit := t.CaptureFPSQuality
	if performance {
		limit = t.CaptureFPSPerformance
	}
	if frameRate <= 0 {
		return limit
	}
	return min(limit, frameRate)
}

// ComposeStream builds the recordable stream. surface is nil when the
// compositor is bypassed. When surface capture is unsupported or yields no
// video, the raw screen video tracks are used; when those are missing too
// it fails with ErrNoVideoTrack.
func ComposeStream(screen MediaStream, surface Surface, audio []AudioTrack, captureFPS int, logger *slog.Logger) (*Composition, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var tracks []MediaStreamTrack
	var capture VideoTrack

	if surface != nil {
		if sc, ok := surface.(StreamCapturer); ok {
			stream, err := sc.CaptureStream(captureFPS)
			switch {
			case err != nil:
				logger.Warn("surface capture failed, recording raw screen", "err", err)
			case firstVideoTrack(stream) == nil:
				logger.Warn("surface capture produced no video, recording raw screen")
				releaseStream(stream)
			default:
				capture = firstVideoTrack(stream)
				tracks = append(tracks, capture)
			}
		} else {
			logger.Warn("surface cannot be captured, recording raw screen")
		}
	}

	if capture == nil && screen != nil {
		for _, vt := range screen.GetVideoTracks() {
			tracks = append(tracks, vt)
		}
	}
	if len(tracks) == 0 {
		return nil, fmt.Errorf("compose: %w", ErrNoVideoTrack)
	}
	for _, at := range audio {
		tracks = append(tracks, at)
	}
	return &Composition{Stream: NewMediaStream(tracks...), CaptureTrack: capture}, nil
}
