package screenrec

import (
	"context"
	"errors"
	"math"
	"sync"
)

// AudioPatternType defines the type of audio test pattern.
type AudioPatternType int

const (
	AudioPatternSilence    AudioPatternType = iota // Silence
	AudioPatternSineWave                           // Sine wave tone
	AudioPatternSquareWave                         // Square wave tone
)

func (p AudioPatternType) String() string {
	switch p {
	case AudioPatternSilence:
		return "Silence"
	case AudioPatternSineWave:
		return "SineWave"
	case AudioPatternSquareWave:
		return "SquareWave"
	default:
		return "Unknown"
	}
}

// ToneConfig configures a synthetic audio track.
type ToneConfig struct {
	SampleRate int              // Sample rate (default: 48000)
	Channels   int              // Number of channels (default: 2)
	FrameSize  int              // Samples per read (default: 960 = 20ms at 48kHz)
	Pattern    AudioPatternType // Pattern type
	Frequency  float64          // Tone frequency in Hz (default: 440)
	Amplitude  float64          // Amplitude 0.0-1.0 (default: 0.5)
	Label      string
}

// DefaultToneConfig returns a 440 Hz stereo sine at 48 kHz.
func DefaultToneConfig() ToneConfig {
	return ToneConfig{
		SampleRate: 48000,
		Channels:   2,
		FrameSize:  960,
		Pattern:    AudioPatternSineWave,
		Frequency:  440.0, // A4
		Amplitude:  0.5,
	}
}

// ToneTrack is a live audio track whose samples are generated on demand.
// It implements SampleReader; pacing is left to the reader.
type ToneTrack struct {
	*BaseTrack
	config ToneConfig

	mu    sync.Mutex
	phase float64
	ts    int64
}

// NewToneTrack creates a tone track.
func NewToneTrack(config ToneConfig) *ToneTrack {
	if config.SampleRate <= 0 {
		config.SampleRate = 48000
	}
	if config.Channels <= 0 {
		config.Channels = 2
	}
	if config.FrameSize <= 0 {
		config.FrameSize = config.SampleRate / 50
	}
	if config.Frequency <= 0 {
		config.Frequency = 440.0
	}
	if config.Amplitude <= 0 {
		config.Amplitude = 0.5
	}
	config.Amplitude = min(config.Amplitude, 1.0)
	if config.Label == "" {
		config.Label = "tone"
	}
	return &ToneTrack{
		BaseTrack: NewBaseTrack(NewTrackID("tone"), config.Label, RTPCodecTypeAudio, nil),
		config:    config,
	}
}

func (t *ToneTrack) Settings() AudioTrackSettings {
	return AudioTrackSettings{SampleRate: t.config.SampleRate, ChannelCount: t.config.Channels}
}

// ReadSamples returns the next FrameSize samples of the tone.
func (t *ToneTrack) ReadSamples(ctx context.Context) (*AudioSamples, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if t.State() == TrackStateEnded {
		return nil, errors.New("tone track ended")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	c := t.config
	out := NewAudioSamples(c.SampleRate, c.Channels, c.FrameSize)
	out.Timestamp = t.ts
	t.ts += int64(out.Duration())

	if c.Pattern == AudioPatternSilence {
		return out, nil
	}
	phaseIncrement := 2.0 * math.Pi * c.Frequency / float64(c.SampleRate)
	amplitude := c.Amplitude * 32767.0
	for i := 0; i < c.FrameSize; i++ {
		v := math.Sin(t.phase)
		if c.Pattern == AudioPatternSquareWave {
			v = math.Copysign(1, v)
		}
		sample := int16(amplitude * v)
		t.phase += phaseIncrement
		if t.phase > 2*math.Pi {
			t.phase -= 2 * math.Pi
		}
		for ch := 0; ch < c.Channels; ch++ {
			out.SetSample(i, ch, sample)
		}
	}
	return out, nil
}
