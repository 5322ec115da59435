package screenrec

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var errContextClosed = errors.New("audio context is closed")

// SoftwareAudioContext is an AudioContext that sums S16 PCM pulled from
// source tracks implementing SampleReader. Sources without PCM access
// contribute silence.
type SoftwareAudioContext struct {
	sampleRate int
	channels   int
	frameSize  int

	mu    sync.Mutex
	state AudioContextState
	dests []*softwareDestination
}

// NewSoftwareAudioContext creates a running context mixing 20ms frames.
func NewSoftwareAudioContext(sampleRate, channels int) *SoftwareAudioContext {
	if sampleRate <= 0 {
		sampleRate = 48000
	}
	if channels <= 0 {
		channels = 2
	}
	return &SoftwareAudioContext{
		sampleRate: sampleRate,
		channels:   channels,
		frameSize:  sampleRate / 50,
		state:      AudioContextRunning,
	}
}

// NewSoftwareAudioContextFactory returns a factory for software contexts.
func NewSoftwareAudioContextFactory(sampleRate, channels int) AudioContextFactory {
	return func() (AudioContext, error) {
		return NewSoftwareAudioContext(sampleRate, channels), nil
	}
}

func (c *SoftwareAudioContext) State() AudioContextState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Suspend pauses the context; destinations emit silence until Resume.
func (c *SoftwareAudioContext) Suspend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == AudioContextRunning {
		c.state = AudioContextSuspended
	}
}

func (c *SoftwareAudioContext) Resume(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case AudioContextClosed:
		return errContextClosed
	case AudioContextSuspended:
		c.state = AudioContextRunning
	}
	return nil
}

func (c *SoftwareAudioContext) CreateMediaStreamSource(stream MediaStream) (AudioNode, error) {
	if stream == nil {
		return nil, errors.New("audio source: nil stream")
	}
	if c.State() == AudioContextClosed {
		return nil, errContextClosed
	}
	return &softwareSource{ctx: c, stream: stream}, nil
}

func (c *SoftwareAudioContext) CreateMediaStreamDestination() (AudioDestination, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == AudioContextClosed {
		return nil, errContextClosed
	}
	d := &softwareDestination{ctx: c, sources: make(map[*softwareSource]struct{})}
	d.track = &mixTrack{
		BaseTrack: NewBaseTrack(NewTrackID("mix"), "mixed audio", RTPCodecTypeAudio, nil),
		dest:      d,
	}
	d.stream = NewMediaStream(d.track)
	c.dests = append(c.dests, d)
	return d, nil
}

func (c *SoftwareAudioContext) Close() error {
	c.mu.Lock()
	if c.state == AudioContextClosed {
		c.mu.Unlock()
		return nil
	}
	c.state = AudioContextClosed
	dests := c.dests
	c.dests = nil
	c.mu.Unlock()

	for _, d := range dests {
		d.disconnectAll()
		_ = d.stream.Close()
	}
	return nil
}

func (c *SoftwareAudioContext) running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == AudioContextRunning
}

type softwareSource struct {
	ctx    *SoftwareAudioContext
	stream MediaStream

	mu   sync.Mutex
	dest *softwareDestination
}

func (s *softwareSource) Connect(dst AudioNode) error {
	d, ok := dst.(*softwareDestination)
	if !ok || d.ctx != s.ctx {
		return fmt.Errorf("audio source: cannot connect to %T", dst)
	}
	if s.ctx.State() == AudioContextClosed {
		return errContextClosed
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dest == d {
		return nil
	}
	if s.dest != nil {
		s.dest.remove(s)
	}
	s.dest = d
	d.add(s)
	return nil
}

func (s *softwareSource) Disconnect() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dest != nil {
		s.dest.remove(s)
		s.dest = nil
	}
	return nil
}

// read pulls one buffer from every PCM-capable live track of the source.
func (s *softwareSource) read(ctx context.Context, out *AudioSamples) {
	for _, t := range s.stream.GetAudioTracks() {
		r, ok := t.(SampleReader)
		if !ok || t.State() != TrackStateLive {
			continue
		}
		in, err := r.ReadSamples(ctx)
		if err != nil {
			continue
		}
		mixInto(out, in)
	}
}

type softwareDestination struct {
	ctx    *SoftwareAudioContext
	track  *mixTrack
	stream MediaStream

	mu      sync.Mutex
	sources map[*softwareSource]struct{}
}

func (d *softwareDestination) Connect(AudioNode) error {
	return errors.New("audio destination: has no outputs")
}

func (d *softwareDestination) Disconnect() error { return nil }

func (d *softwareDestination) Stream() MediaStream { return d.stream }

func (d *softwareDestination) add(s *softwareSource) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sources[s] = struct{}{}
}

func (d *softwareDestination) remove(s *softwareSource) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.sources, s)
}

func (d *softwareDestination) connected() []*softwareSource {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*softwareSource, 0, len(d.sources))
	for s := range d.sources {
		out = append(out, s)
	}
	return out
}

// Inputs returns the number of connected source nodes.
func (d *softwareDestination) Inputs() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.sources)
}

func (d *softwareDestination) disconnectAll() {
	for _, s := range d.connected() {
		_ = s.Disconnect()
	}
}

// mixTrack is the destination's output track.
type mixTrack struct {
	*BaseTrack
	dest *softwareDestination
}

func (t *mixTrack) Settings() AudioTrackSettings {
	return AudioTrackSettings{SampleRate: t.dest.ctx.sampleRate, ChannelCount: t.dest.ctx.channels}
}

// ReadSamples returns the next mixed frame.
func (t *mixTrack) ReadSamples(ctx context.Context) (*AudioSamples, error) {
	if t.State() == TrackStateEnded {
		return nil, errContextClosed
	}
	c := t.dest.ctx
	out := NewAudioSamples(c.sampleRate, c.channels, c.frameSize)
	if !c.running() {
		return out, nil
	}
	for _, s := range t.dest.connected() {
		s.read(ctx, out)
	}
	return out, nil
}
