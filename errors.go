package screenrec

import (
	"errors"
	"strings"
)

// ErrNotSupported is returned when an optional operation is not supported.
var ErrNotSupported = errors.New("operation not supported")

// Platform errors. Platform bindings return (or wrap) these so the core can
// tell a user cancellation apart from an unsupported constraint.
var (
	ErrPermissionDenied = errors.New("permission denied")
	ErrDeviceNotFound   = errors.New("device not found")
	ErrOverconstrained  = errors.New("constraints cannot be satisfied")
	ErrAudioConstraint  = errors.New("display audio capture failed")
)

// Session errors.
var (
	ErrCaptureUnavailable  = errors.New("screen capture is unavailable")
	ErrNoVideoTrack        = errors.New("no video track captured")
	ErrRecorderUnavailable = errors.New("recorder is unavailable")
	ErrEmptyArtifact       = errors.New("recording produced an empty file")
	ErrRecorderRuntime     = errors.New("recorder error")
	ErrSessionBusy         = errors.New("session is already starting or recording")
	ErrNotRecording        = errors.New("session is not recording")
	ErrStartAborted        = errors.New("start aborted")
)

// UserMessage renders err as the text shown to the person recording.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, ErrEmptyArtifact):
		return "Recording produced an empty file. Please try again and reselect the screen/window."
	case errors.Is(err, ErrRecorderRuntime):
		return "Recorder error: " + causeText(err, ErrRecorderRuntime)
	case errors.Is(err, ErrCaptureUnavailable):
		return "Screen recording failed: Screen capture API is unavailable in this browser. " +
			"Use a Chromium-based browser, Firefox, or Safari 16+ over HTTPS."
	case errors.Is(err, ErrNoVideoTrack):
		return "Screen recording failed: No video track captured. Please reselect a screen/window and try again."
	case errors.Is(err, ErrRecorderUnavailable):
		return "Screen recording failed: Recording is not supported in this browser. " +
			"Try the latest Chrome (Android) or Safari (iOS 17+)."
	case errors.Is(err, ErrPermissionDenied):
		return "Screen recording failed: permission to capture the screen was denied."
	default:
		return "Screen recording failed: " + err.Error()
	}
}

// causeText strips the sentinel prefix from a wrapped error message.
func causeText(err, sentinel error) string {
	msg := err.Error()
	prefix := sentinel.Error() + ": "
	if strings.HasPrefix(msg, prefix) {
		msg = strings.TrimPrefix(msg, prefix)
	} else if msg == sentinel.Error() {
		msg = "unknown error"
	}
	return msg
}
