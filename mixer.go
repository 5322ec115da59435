package screenrec

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"
)

// AudioContextState is the lifecycle state of an AudioContext.
type AudioContextState int

const (
	AudioContextRunning AudioContextState = iota
	AudioContextSuspended
	AudioContextClosed
)

func (s AudioContextState) String() string {
	switch s {
	case AudioContextRunning:
		return "running"
	case AudioContextSuspended:
		return "suspended"
	case AudioContextClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// AudioNode is a node of an audio-processing graph.
type AudioNode interface {
	Connect(dst AudioNode) error
	Disconnect() error
}

// AudioDestination is a graph output whose mix is exposed as a stream.
type AudioDestination interface {
	AudioNode
	Stream() MediaStream
}

// AudioContext is an audio-processing graph (like a Web Audio context).
type AudioContext interface {
	State() AudioContextState
	Resume(ctx context.Context) error
	CreateMediaStreamSource(stream MediaStream) (AudioNode, error)
	CreateMediaStreamDestination() (AudioDestination, error)
	Close() error
}

// AudioMixer merges screen audio and the microphone into one track.
//
// Without an AudioContext it passes the raw tracks through unmixed. The
// mixer owns the microphone stream handed to it or acquired by it; the
// screen stream stays owned by the caller.
type AudioMixer struct {
	contexts   AudioContextFactory
	acquireMic func(ctx context.Context) (MediaStream, error)
	logger     *slog.Logger

	mu          sync.Mutex
	actx        AudioContext
	dest        AudioDestination
	screenNode  AudioNode
	mic         MediaStream
	micNode     AudioNode
	passthrough bool
	built       bool
	closed      bool

	flight singleflight.Group
}

// NewAudioMixer creates a mixer. contexts may be nil (passthrough only).
// acquireMic is used by EnableMicrophone when no microphone is held.
func NewAudioMixer(contexts AudioContextFactory, acquireMic func(ctx context.Context) (MediaStream, error), logger *slog.Logger) *AudioMixer {
	if logger == nil {
		logger = slog.Default()
	}
	return &AudioMixer{contexts: contexts, acquireMic: acquireMic, logger: logger}
}

// Build creates the mix from screen's audio tracks and mic (either may be
// nil) and returns the tracks to record. Graph failures fall back to
// passthrough. The mixer takes ownership of mic.
func (m *AudioMixer) Build(ctx context.Context, screen, mic MediaStream) []AudioTrack {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.built = true
	if mic != nil && m.mic == nil {
		m.mic = mic
	} else if mic != nil && mic != m.mic {
		releaseStream(mic)
	}

	if m.contexts != nil {
		tracks, err := m.buildGraphLocked(ctx, screen)
		if err == nil {
			return tracks
		}
		m.logger.Warn("audio graph unavailable, passing tracks through", "err", err)
		m.teardownGraphLocked()
	}

	m.passthrough = true
	var tracks []AudioTrack
	if screen != nil {
		tracks = append(tracks, screen.GetAudioTracks()...)
	}
	if m.mic != nil {
		tracks = append(tracks, m.mic.GetAudioTracks()...)
	}
	return tracks
}

func (m *AudioMixer) buildGraphLocked(ctx context.Context, screen MediaStream) ([]AudioTrack, error) {
	actx, err := m.contextLocked(ctx)
	if err != nil {
		return nil, err
	}
	if m.dest == nil {
		if m.dest, err = actx.CreateMediaStreamDestination(); err != nil {
			return nil, fmt.Errorf("create destination: %w", err)
		}
	}
	if screen != nil && m.screenNode == nil {
		if audio := screen.GetAudioTracks(); len(audio) > 0 {
			tracks := make([]MediaStreamTrack, len(audio))
			for i, t := range audio {
				tracks[i] = t
			}
			node, err := m.connectLocked(NewMediaStream(tracks...))
			if err != nil {
				return nil, fmt.Errorf("screen audio: %w", err)
			}
			m.screenNode = node
		}
	}
	if m.mic != nil && m.micNode == nil {
		node, err := m.connectLocked(m.mic)
		if err != nil {
			return nil, fmt.Errorf("microphone: %w", err)
		}
		m.micNode = node
	}
	return m.dest.Stream().GetAudioTracks(), nil
}

// contextLocked returns a running context, creating one when none exists or
// the previous one was closed.
func (m *AudioMixer) contextLocked(ctx context.Context) (AudioContext, error) {
	if m.actx == nil || m.actx.State() == AudioContextClosed {
		actx, err := m.contexts()
		if err != nil {
			return nil, fmt.Errorf("create audio context: %w", err)
		}
		m.actx = actx
		m.dest = nil
		m.screenNode = nil
		m.micNode = nil
	}
	if m.actx.State() == AudioContextSuspended {
		if err := m.actx.Resume(ctx); err != nil {
			m.logger.Debug("audio context resume failed", "err", err)
		}
	}
	return m.actx, nil
}

func (m *AudioMixer) connectLocked(stream MediaStream) (AudioNode, error) {
	node, err := m.actx.CreateMediaStreamSource(stream)
	if err != nil {
		return nil, err
	}
	if err := node.Connect(m.dest); err != nil {
		return nil, err
	}
	return node, nil
}

// Passthrough reports whether the mixer is bypassing the audio graph.
func (m *AudioMixer) Passthrough() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.passthrough
}

// MicrophoneEnabled reports whether a microphone stream is held.
func (m *AudioMixer) MicrophoneEnabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mic != nil
}

// EnableMicrophone acquires the microphone if needed and connects it to the
// mix. Redundant and concurrent calls share one acquisition. In passthrough
// mode the recorded tracks cannot change, so it fails with ErrNotSupported.
func (m *AudioMixer) EnableMicrophone(ctx context.Context) error {
	_, err, _ := m.flight.Do("mic", func() (any, error) {
		return nil, m.enableMicrophone(ctx)
	})
	return err
}

func (m *AudioMixer) enableMicrophone(ctx context.Context) error {
	m.mu.Lock()
	switch {
	case m.closed:
		m.mu.Unlock()
		return fmt.Errorf("microphone: mixer closed: %w", ErrNotSupported)
	case m.built && m.passthrough:
		m.mu.Unlock()
		return fmt.Errorf("microphone: live toggle without audio graph: %w", ErrNotSupported)
	case m.mic != nil && (m.micNode != nil || !m.built):
		m.mu.Unlock()
		return nil
	}
	have := m.mic != nil
	m.mu.Unlock()

	var stream MediaStream
	if !have {
		if m.acquireMic == nil {
			return fmt.Errorf("microphone: %w", ErrNotSupported)
		}
		s, err := m.acquireMic(ctx)
		if err != nil {
			return err
		}
		stream = s
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		releaseStream(stream)
		return fmt.Errorf("microphone: mixer closed: %w", ErrNotSupported)
	}
	if stream != nil {
		if m.mic != nil {
			releaseStream(stream)
		} else {
			m.mic = stream
		}
	}
	if !m.built || m.micNode != nil {
		return nil
	}
	if _, err := m.contextLocked(ctx); err != nil {
		return m.dropMicLocked(err)
	}
	if m.dest == nil {
		return m.dropMicLocked(errors.New("audio graph has no destination"))
	}
	node, err := m.connectLocked(m.mic)
	if err != nil {
		return m.dropMicLocked(err)
	}
	m.micNode = node
	return nil
}

func (m *AudioMixer) dropMicLocked(err error) error {
	releaseStream(m.mic)
	m.mic = nil
	return fmt.Errorf("microphone: %w", err)
}

// DisableMicrophone disconnects the microphone and releases its stream.
// It is safe to call when the microphone is already off.
func (m *AudioMixer) DisableMicrophone() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.micNode != nil {
		if err := m.micNode.Disconnect(); err != nil {
			m.logger.Debug("microphone disconnect failed", "err", err)
		}
		m.micNode = nil
	}
	releaseStream(m.mic)
	m.mic = nil
}

// Close disconnects every node, closes the audio context and releases the
// microphone. It is idempotent.
func (m *AudioMixer) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	releaseStream(m.mic)
	m.mic = nil
	return m.teardownGraphLocked()
}

func (m *AudioMixer) teardownGraphLocked() error {
	for _, node := range []AudioNode{m.micNode, m.screenNode} {
		if node != nil {
			_ = node.Disconnect()
		}
	}
	m.micNode, m.screenNode = nil, nil
	var err error
	if m.dest != nil {
		releaseStream(m.dest.Stream())
		m.dest = nil
	}
	if m.actx != nil && m.actx.State() != AudioContextClosed {
		err = m.actx.Close()
	}
	m.actx = nil
	return err
}
