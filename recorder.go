package screenrec

import (
	"fmt"
	"time"
)

// RecorderOptions are the encoder hints passed to a recorder.
type RecorderOptions struct {
	MimeType           string
	VideoBitsPerSecond int
	AudioBitsPerSecond int
}

// RecorderState mirrors MediaRecorder.state.
type RecorderState int

const (
	RecorderInactive RecorderState = iota
	RecorderRecording
)

func (s RecorderState) String() string {
	if s == RecorderRecording {
		return "recording"
	}
	return "inactive"
}

// Recorder encodes a stream into container bytes (like MediaRecorder).
//
// Callbacks must be registered before Start. OnDataAvailable is invoked
// once per timeslice and once more with the remainder after Stop; OnStop
// follows the final chunk. OnError reports asynchronous failures. A chunk
// buffer may be reused once OnDataAvailable returns.
type Recorder interface {
	Start(timeslice time.Duration) error
	Stop() error
	State() RecorderState
	MimeType() string
	OnDataAvailable(func(chunk []byte))
	OnStop(func())
	OnError(func(err error))
}

// RecorderFactory constructs recorders (like the MediaRecorder constructor).
type RecorderFactory interface {
	IsTypeSupported(mimeType string) bool

	// NewRecorder creates a recorder for stream. A nil opts means the
	// platform defaults.
	NewRecorder(stream MediaStream, opts *RecorderOptions) (Recorder, error)
}

// recorderOptions picks the bitrates for a session.
func recorderOptions(mimeType string, performance, mobile bool, t Tuning) RecorderOptions {
	t = t.withDefaults()
	opts := RecorderOptions{MimeType: mimeType}
	switch {
	case performance:
		opts.VideoBitsPerSecond = t.VideoBitratePerformance
	case mobile:
		opts.VideoBitsPerSecond = t.VideoBitrateMobileQuality
	default:
		opts.VideoBitsPerSecond = t.VideoBitrateQuality
	}
	if performance {
		opts.AudioBitsPerSecond = t.AudioBitratePerformance
	} else {
		opts.AudioBitsPerSecond = t.AudioBitrateQuality
	}
	return opts
}

// newRecorder constructs a recorder with opts, retrying with platform
// defaults when the options are rejected.
func newRecorder(factory RecorderFactory, stream MediaStream, opts RecorderOptions) (Recorder, bool, error) {
	if factory == nil {
		return nil, false, ErrRecorderUnavailable
	}
	rec, err := factory.NewRecorder(stream, &opts)
	if err == nil {
		return rec, false, nil
	}
	rec, err2 := factory.NewRecorder(stream, nil)
	if err2 != nil {
		return nil, true, fmt.Errorf("%w: %w", ErrRecorderUnavailable, err2)
	}
	return rec, true, nil
}
