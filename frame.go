package screenrec

import (
	"encoding/binary"
	"time"
)

// AudioFormat represents audio sample formats.
type AudioFormat int

const (
	AudioFormatS16 AudioFormat = iota // Signed 16-bit little-endian PCM
	AudioFormatF32                    // 32-bit float
)

func (a AudioFormat) String() string {
	switch a {
	case AudioFormatS16:
		return "S16"
	case AudioFormatF32:
		return "F32"
	default:
		return "Unknown"
	}
}

// BytesPerSample returns the number of bytes per sample for this format.
func (a AudioFormat) BytesPerSample() int {
	switch a {
	case AudioFormatS16:
		return 2
	case AudioFormatF32:
		return 4
	default:
		return 0
	}
}

// AudioSamples represents raw interleaved audio samples.
type AudioSamples struct {
	Data        []byte      // Sample data
	SampleRate  int         // Sample rate (e.g., 48000)
	Channels    int         // Number of channels (1 = mono, 2 = stereo)
	SampleCount int         // Number of samples (per channel)
	Format      AudioFormat // Sample format
	Timestamp   int64       // Capture timestamp in nanoseconds
}

// NewAudioSamples allocates a silent S16 buffer.
func NewAudioSamples(sampleRate, channels, sampleCount int) *AudioSamples {
	return &AudioSamples{
		Data:        make([]byte, sampleCount*channels*2),
		SampleRate:  sampleRate,
		Channels:    channels,
		SampleCount: sampleCount,
		Format:      AudioFormatS16,
	}
}

// Duration returns the playback length of the buffer.
func (s *AudioSamples) Duration() time.Duration {
	if s.SampleRate <= 0 {
		return 0
	}
	return time.Duration(s.SampleCount) * time.Second / time.Duration(s.SampleRate)
}

// Sample returns the S16 sample at frame i, channel ch.
func (s *AudioSamples) Sample(i, ch int) int16 {
	off := (i*s.Channels + ch) * 2
	return int16(binary.LittleEndian.Uint16(s.Data[off:]))
}

// SetSample stores v at frame i, channel ch.
func (s *AudioSamples) SetSample(i, ch int, v int16) {
	off := (i*s.Channels + ch) * 2
	binary.LittleEndian.PutUint16(s.Data[off:], uint16(v))
}

// Clone creates a deep copy of the audio samples.
func (s *AudioSamples) Clone() *AudioSamples {
	clone := &AudioSamples{
		SampleRate:  s.SampleRate,
		Channels:    s.Channels,
		SampleCount: s.SampleCount,
		Format:      s.Format,
		Timestamp:   s.Timestamp,
	}
	if s.Data != nil {
		clone.Data = make([]byte, len(s.Data))
		copy(clone.Data, s.Data)
	}
	return clone
}

// mixInto adds src onto dst with saturation. Channels are mapped modulo the
// source channel count so a mono source feeds both sides of a stereo mix.
func mixInto(dst, src *AudioSamples) {
	if src == nil || src.Format != AudioFormatS16 || src.Channels <= 0 {
		return
	}
	n := min(dst.SampleCount, src.SampleCount)
	for i := 0; i < n; i++ {
		for ch := 0; ch < dst.Channels; ch++ {
			sum := int32(dst.Sample(i, ch)) + int32(src.Sample(i, ch%src.Channels))
			dst.SetSample(i, ch, clampS16(sum))
		}
	}
}

func clampS16(v int32) int16 {
	switch {
	case v > 32767:
		return 32767
	case v < -32768:
		return -32768
	default:
		return int16(v)
	}
}
