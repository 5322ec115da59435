package screenrec

import (
	"context"
	"fmt"
	"image"
	"io"
	"sync"
	"sync/atomic"

	"github.com/pion/webrtc/v4"
)

// Re-export pion's RTPCodecType as the track kind.
type RTPCodecType = webrtc.RTPCodecType

const (
	RTPCodecTypeUnknown = webrtc.RTPCodecTypeUnknown
	RTPCodecTypeAudio   = webrtc.RTPCodecTypeAudio
	RTPCodecTypeVideo   = webrtc.RTPCodecTypeVideo
)

// TrackState represents the state of a track.
type TrackState int

const (
	TrackStateLive  TrackState = iota // Track is producing media
	TrackStateEnded                   // Track has been stopped
)

func (s TrackState) String() string {
	switch s {
	case TrackStateLive:
		return "live"
	case TrackStateEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// MediaStreamTrack is a single live audio or video source.
// Close stops the track; calling it more than once is a no-op.
type MediaStreamTrack interface {
	io.Closer

	// ID returns the unique identifier for this track.
	ID() string

	// Kind returns the track kind (audio or video).
	Kind() RTPCodecType

	// Label returns a human-readable label for the track source.
	Label() string

	// State returns the current track state.
	State() TrackState

	// OnEnded sets a callback for when the track ends.
	OnEnded(callback func())
}

// VideoTrackSettings describes the actual video track settings.
// Zero values mean the platform has not reported them yet.
type VideoTrackSettings struct {
	Width      int
	Height     int
	FrameRate  int
	FacingMode string
}

// VideoTrack is a MediaStreamTrack that delivers decoded frames.
type VideoTrack interface {
	MediaStreamTrack

	// Settings returns the actual video settings.
	Settings() VideoTrackSettings

	// Frame returns the most recently decoded frame, or nil before the
	// first one arrived.
	Frame() image.Image

	// OnReady registers cb for "metadata/data loaded" signals. The platform
	// fires it when the first frame arrives and again whenever the decoded
	// dimensions change. The returned func unregisters cb.
	OnReady(cb func()) (cancel func())
}

// FrameNotifier is implemented by video tracks that can call back once per
// decoded frame (requestVideoFrameCallback-style).
type FrameNotifier interface {
	// OnNextFrame calls cb once, on another goroutine, when the next frame
	// is decoded.
	OnNextFrame(cb func()) (cancel func())
}

// AudioTrackSettings describes the actual audio track settings.
type AudioTrackSettings struct {
	SampleRate       int
	ChannelCount     int
	EchoCancellation bool
	NoiseSuppression bool
}

// AudioTrack is a MediaStreamTrack carrying audio.
type AudioTrack interface {
	MediaStreamTrack

	// Settings returns the actual audio settings.
	Settings() AudioTrackSettings
}

// SampleReader is implemented by audio tracks whose PCM can be pulled
// directly (software tracks).
type SampleReader interface {
	ReadSamples(ctx context.Context) (*AudioSamples, error)
}

// BaseTrack provides common functionality for tracks.
type BaseTrack struct {
	id      string
	label   string
	kind    RTPCodecType
	state   atomic.Int32
	endedCb func()
	release func()
	once    sync.Once
	mu      sync.RWMutex
}

// NewBaseTrack creates a new base track. release, if non-nil, runs exactly
// once when the track is closed.
func NewBaseTrack(id, label string, kind RTPCodecType, release func()) *BaseTrack {
	t := &BaseTrack{
		id:      id,
		label:   label,
		kind:    kind,
		release: release,
	}
	t.state.Store(int32(TrackStateLive))
	return t
}

func (t *BaseTrack) ID() string         { return t.id }
func (t *BaseTrack) Kind() RTPCodecType { return t.kind }
func (t *BaseTrack) Label() string      { return t.label }

func (t *BaseTrack) State() TrackState {
	return TrackState(t.state.Load())
}

func (t *BaseTrack) OnEnded(callback func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.endedCb = callback
}

// Close ends the track. Only the first call has an effect.
func (t *BaseTrack) Close() error {
	t.once.Do(func() {
		t.state.Store(int32(TrackStateEnded))
		if t.release != nil {
			t.release()
		}
		t.mu.RLock()
		cb := t.endedCb
		t.mu.RUnlock()
		if cb != nil {
			go cb()
		}
	})
	return nil
}

// MediaStream is a collection of tracks (like browser's MediaStream).
// Close stops every track it still holds.
type MediaStream interface {
	io.Closer

	// ID returns the unique identifier for this stream.
	ID() string

	// Active returns whether any track in the stream is live.
	Active() bool

	// GetTracks returns all tracks in the stream.
	GetTracks() []MediaStreamTrack

	// GetVideoTracks returns all video tracks.
	GetVideoTracks() []VideoTrack

	// GetAudioTracks returns all audio tracks.
	GetAudioTracks() []AudioTrack

	// AddTrack adds a track to the stream.
	AddTrack(track MediaStreamTrack)

	// RemoveTrack removes a track from the stream.
	RemoveTrack(track MediaStreamTrack)
}

// SimpleMediaStream is a basic MediaStream implementation.
type SimpleMediaStream struct {
	id     string
	tracks []MediaStreamTrack
	mu     sync.RWMutex
}

// NewMediaStream creates a new media stream holding tracks.
func NewMediaStream(tracks ...MediaStreamTrack) *SimpleMediaStream {
	s := &SimpleMediaStream{
		id:     generateStreamID(),
		tracks: make([]MediaStreamTrack, 0, len(tracks)),
	}
	for _, t := range tracks {
		if t != nil {
			s.tracks = append(s.tracks, t)
		}
	}
	return s
}

func (s *SimpleMediaStream) ID() string { return s.id }

func (s *SimpleMediaStream) Active() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.tracks {
		if t.State() == TrackStateLive {
			return true
		}
	}
	return false
}

func (s *SimpleMediaStream) GetTracks() []MediaStreamTrack {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]MediaStreamTrack, len(s.tracks))
	copy(result, s.tracks)
	return result
}

func (s *SimpleMediaStream) GetVideoTracks() []VideoTrack {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []VideoTrack
	for _, t := range s.tracks {
		if vt, ok := t.(VideoTrack); ok {
			result = append(result, vt)
		}
	}
	return result
}

func (s *SimpleMediaStream) GetAudioTracks() []AudioTrack {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []AudioTrack
	for _, t := range s.tracks {
		if at, ok := t.(AudioTrack); ok {
			result = append(result, at)
		}
	}
	return result
}

func (s *SimpleMediaStream) AddTrack(track MediaStreamTrack) {
	if track == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tracks {
		if t.ID() == track.ID() {
			return
		}
	}
	s.tracks = append(s.tracks, track)
}

func (s *SimpleMediaStream) RemoveTrack(track MediaStreamTrack) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, t := range s.tracks {
		if t.ID() == track.ID() {
			s.tracks = append(s.tracks[:i], s.tracks[i+1:]...)
			return
		}
	}
}

func (s *SimpleMediaStream) Close() error {
	s.mu.Lock()
	tracks := s.tracks
	s.tracks = nil
	s.mu.Unlock()

	var lastErr error
	for _, t := range tracks {
		if err := t.Close(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// releaseStream stops every track of stream. A nil stream is ignored.
func releaseStream(stream MediaStream) {
	if stream == nil {
		return
	}
	_ = stream.Close()
}

// firstVideoTrack returns the first video track of stream, or nil.
func firstVideoTrack(stream MediaStream) VideoTrack {
	if stream == nil {
		return nil
	}
	if vts := stream.GetVideoTracks(); len(vts) > 0 {
		return vts[0]
	}
	return nil
}

var streamCounter atomic.Uint64

func generateStreamID() string {
	return fmt.Sprintf("stream-%d", streamCounter.Add(1))
}

var trackCounter atomic.Uint64

// NewTrackID returns a process-unique track identifier with the given prefix.
func NewTrackID(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, trackCounter.Add(1))
}

// VideoFeed is a VideoTrack fed by pushing frames into it. Software sources
// (test patterns, surface capture) are built on it.
type VideoFeed struct {
	*BaseTrack

	mu        sync.Mutex
	frame     image.Image
	settings  VideoTrackSettings
	nextID    uint64
	readyCbs  map[uint64]func()
	frameCbs  map[uint64]func()
	delivered atomic.Uint64
}

// NewVideoFeed creates an empty feed. release runs once on Close.
func NewVideoFeed(id, label string, frameRate int, release func()) *VideoFeed {
	return &VideoFeed{
		BaseTrack: NewBaseTrack(id, label, RTPCodecTypeVideo, release),
		settings:  VideoTrackSettings{FrameRate: frameRate},
		readyCbs:  make(map[uint64]func()),
		frameCbs:  make(map[uint64]func()),
	}
}

// Push publishes img as the current frame. Ready callbacks fire for the first
// frame and whenever the dimensions change; pending next-frame callbacks fire
// for every frame. Frames pushed after Close are dropped.
func (f *VideoFeed) Push(img image.Image) {
	if img == nil || f.State() == TrackStateEnded {
		return
	}
	b := img.Bounds()

	f.mu.Lock()
	resized := f.frame == nil || b.Dx() != f.settings.Width || b.Dy() != f.settings.Height
	f.frame = img
	f.settings.Width, f.settings.Height = b.Dx(), b.Dy()
	var fire []func()
	if resized {
		for _, cb := range f.readyCbs {
			fire = append(fire, cb)
		}
	}
	for id, cb := range f.frameCbs {
		fire = append(fire, cb)
		delete(f.frameCbs, id)
	}
	f.mu.Unlock()

	f.delivered.Add(1)
	for _, cb := range fire {
		go cb()
	}
}

// Delivered returns the number of frames pushed so far.
func (f *VideoFeed) Delivered() uint64 { return f.delivered.Load() }

func (f *VideoFeed) Frame() image.Image {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.frame
}

func (f *VideoFeed) Settings() VideoTrackSettings {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.settings
}

func (f *VideoFeed) OnReady(cb func()) (cancel func()) {
	return f.register(f.readyCbs, cb)
}

// nextFrame registers a one-shot callback for the next pushed frame.
func (f *VideoFeed) nextFrame(cb func()) (cancel func()) {
	return f.register(f.frameCbs, cb)
}

func (f *VideoFeed) register(set map[uint64]func(), cb func()) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	id := f.nextID
	set[id] = cb
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(set, id)
	}
}

// frameCallbackFeed exposes per-frame callbacks as a FrameNotifier.
type frameCallbackFeed struct {
	*VideoFeed
}

func (f frameCallbackFeed) OnNextFrame(cb func()) (cancel func()) {
	return f.nextFrame(cb)
}

// WithFrameCallbacks wraps feed so it advertises FrameNotifier.
func WithFrameCallbacks(feed *VideoFeed) VideoTrack {
	return frameCallbackFeed{feed}
}
