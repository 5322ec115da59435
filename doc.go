// Package screenrec records a screen capture, optionally composited with a
// webcam picture-in-picture overlay and a mixed microphone/system-audio
// track, and hands back the result as an in-memory artifact.
//
// Key pieces include:
//   - Probe: mobile/Safari detection and recorder MIME type negotiation
//   - Acquirer: display capture across standard, legacy and mediaSource APIs
//   - Compositor: screen + rounded camera overlay drawn on a Surface
//   - AudioMixer: system audio and microphone merged in an AudioContext
//   - ComposeStream: the recordable stream, with raw-screen fallback
//   - Session: recorder lifecycle, artifact finalization and teardown
//
// # Architecture
//
//	Probe -> Acquirer -> Compositor (video) + AudioMixer (audio)
//	      -> ComposeStream -> Recorder -> Artifact
//
// # Platforms
//
// Everything below the core (display capture, cameras, recorders, audio
// graphs, drawing surfaces) is reached through the Platform struct. A nil
// field means the capability is missing and the core degrades around it.
// NewSyntheticPlatform assembles a software platform from test patterns,
// tone generators, image surfaces and a WebM recorder.
//
// # Configuration
//
// CaptureConfig can be loaded from YAML or TOML with LoadConfig. Tuning
// holds the overlay sizes, frame rates, bitrates and timeouts.
package screenrec
