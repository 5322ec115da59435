package screenrec

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Resolution is one of the capture resolutions offered to the user.
type Resolution string

const (
	Resolution720p  Resolution = "720p"
	Resolution1080p Resolution = "1080p"
	Resolution2K    Resolution = "2k"
	Resolution4K    Resolution = "4k"
)

// Size returns the pixel dimensions for r, or 0x0 for an unknown value.
func (r Resolution) Size() (width, height int) {
	switch r {
	case Resolution720p:
		return 1280, 720
	case Resolution1080p:
		return 1920, 1080
	case Resolution2K:
		return 2560, 1440
	case Resolution4K:
		return 3840, 2160
	default:
		return 0, 0
	}
}

// IsValid reports whether r is a known resolution.
func (r Resolution) IsValid() bool {
	w, _ := r.Size()
	return w > 0
}

// CaptureConfig is what the user picked before pressing record.
// Resolution and FrameRate are fixed once a session starts; camera and
// microphone inclusion may be toggled while recording.
type CaptureConfig struct {
	Resolution        Resolution `yaml:"resolution" toml:"resolution"`
	FrameRate         int        `yaml:"frame_rate" toml:"frame_rate"`
	IncludeCamera     bool       `yaml:"include_camera" toml:"include_camera"`
	IncludeMicrophone bool       `yaml:"include_microphone" toml:"include_microphone"`
	PerformanceMode   bool       `yaml:"performance_mode" toml:"performance_mode"`
	CompatibilityMode bool       `yaml:"compatibility_mode" toml:"compatibility_mode"`
	Tuning            Tuning     `yaml:"tuning" toml:"tuning"`
}

// Tuning holds the hand-tuned constants of the pipeline.
type Tuning struct {
	// PiP overlay width as a fraction of the surface width.
	PiPFractionPerformance float64 `yaml:"pip_fraction_performance" toml:"pip_fraction_performance"`
	PiPFractionQuality     float64 `yaml:"pip_fraction_quality" toml:"pip_fraction_quality"`

	// Timer pacing of the draw loop when no per-frame callback exists.
	DrawFPSPerformance int `yaml:"draw_fps_performance" toml:"draw_fps_performance"`
	DrawFPSQuality     int `yaml:"draw_fps_quality" toml:"draw_fps_quality"`

	// Upper bound for the surface capture frame rate.
	CaptureFPSPerformance int `yaml:"capture_fps_performance" toml:"capture_fps_performance"`
	CaptureFPSQuality     int `yaml:"capture_fps_quality" toml:"capture_fps_quality"`

	VideoBitratePerformance   int `yaml:"video_bitrate_performance" toml:"video_bitrate_performance"`
	VideoBitrateMobileQuality int `yaml:"video_bitrate_mobile_quality" toml:"video_bitrate_mobile_quality"`
	VideoBitrateQuality       int `yaml:"video_bitrate_quality" toml:"video_bitrate_quality"`
	AudioBitratePerformance   int `yaml:"audio_bitrate_performance" toml:"audio_bitrate_performance"`
	AudioBitrateQuality       int `yaml:"audio_bitrate_quality" toml:"audio_bitrate_quality"`

	ReadyTimeout Duration `yaml:"ready_timeout" toml:"ready_timeout"`
	Timeslice    Duration `yaml:"timeslice" toml:"timeslice"`
}

// Duration is a time.Duration that decodes from strings like "800ms".
type Duration time.Duration

func (d Duration) String() string { return time.Duration(d).String() }

// UnmarshalText implements encoding.TextUnmarshaler (used by toml).
func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(n *yaml.Node) error {
	return d.UnmarshalText([]byte(n.Value))
}

// DefaultTuning returns the constants the recorder shipped with.
func DefaultTuning() Tuning {
	return Tuning{
		PiPFractionPerformance:    0.18,
		PiPFractionQuality:        0.25,
		DrawFPSPerformance:        24,
		DrawFPSQuality:            60,
		CaptureFPSPerformance:     30,
		CaptureFPSQuality:         60,
		VideoBitratePerformance:   6_000_000,
		VideoBitrateMobileQuality: 10_000_000,
		VideoBitrateQuality:       16_000_000,
		AudioBitratePerformance:   160_000,
		AudioBitrateQuality:       256_000,
		ReadyTimeout:              Duration(800 * time.Millisecond),
		Timeslice:                 Duration(time.Second),
	}
}

// DefaultCaptureConfig returns the settings the recorder view opens with.
func DefaultCaptureConfig() CaptureConfig {
	return CaptureConfig{
		Resolution:        Resolution4K,
		FrameRate:         120,
		IncludeCamera:     true,
		IncludeMicrophone: true,
		PerformanceMode:   true,
		CompatibilityMode: true,
		Tuning:            DefaultTuning(),
	}
}

// withDefaults fills zero tuning fields.
func (t Tuning) withDefaults() Tuning {
	d := DefaultTuning()
	if t.PiPFractionPerformance <= 0 {
		t.PiPFractionPerformance = d.PiPFractionPerformance
	}
	if t.PiPFractionQuality <= 0 {
		t.PiPFractionQuality = d.PiPFractionQuality
	}
	if t.DrawFPSPerformance <= 0 {
		t.DrawFPSPerformance = d.DrawFPSPerformance
	}
	if t.DrawFPSQuality <= 0 {
		t.DrawFPSQuality = d.DrawFPSQuality
	}
	if t.CaptureFPSPerformance <= 0 {
		t.CaptureFPSPerformance = d.CaptureFPSPerformance
	}
	if t.CaptureFPSQuality <= 0 {
		t.CaptureFPSQuality = d.CaptureFPSQuality
	}
	if t.VideoBitratePerformance <= 0 {
		t.VideoBitratePerformance = d.VideoBitratePerformance
	}
	if t.VideoBitrateMobileQuality <= 0 {
		t.VideoBitrateMobileQuality = d.VideoBitrateMobileQuality
	}
	if t.VideoBitrateQuality <= 0 {
		t.VideoBitrateQuality = d.VideoBitrateQuality
	}
	if t.AudioBitratePerformance <= 0 {
		t.AudioBitratePerformance = d.AudioBitratePerformance
	}
	if t.AudioBitrateQuality <= 0 {
		t.AudioBitrateQuality = d.AudioBitrateQuality
	}
	if t.ReadyTimeout <= 0 {
		t.ReadyTimeout = d.ReadyTimeout
	}
	if t.Timeslice <= 0 {
		t.Timeslice = d.Timeslice
	}
	return t
}

// Validate checks that cfg is coherent. It returns a joined error listing
// every problem found.
func (c CaptureConfig) Validate() error {
	var errs []error
	if !c.Resolution.IsValid() {
		errs = append(errs, fmt.Errorf("resolution %q is invalid; valid values: 720p, 1080p, 2k, 4k", c.Resolution))
	}
	if c.FrameRate <= 0 {
		errs = append(errs, fmt.Errorf("frame_rate %d must be positive", c.FrameRate))
	}
	t := c.Tuning
	if t.PiPFractionPerformance < 0 || t.PiPFractionPerformance > 1 {
		errs = append(errs, fmt.Errorf("tuning.pip_fraction_performance %.2f is out of range [0, 1]", t.PiPFractionPerformance))
	}
	if t.PiPFractionQuality < 0 || t.PiPFractionQuality > 1 {
		errs = append(errs, fmt.Errorf("tuning.pip_fraction_quality %.2f is out of range [0, 1]", t.PiPFractionQuality))
	}
	if t.ReadyTimeout < 0 {
		errs = append(errs, fmt.Errorf("tuning.ready_timeout %s must not be negative", t.ReadyTimeout))
	}
	if t.Timeslice < 0 {
		errs = append(errs, fmt.Errorf("tuning.timeslice %s must not be negative", t.Timeslice))
	}
	return errors.Join(errs...)
}

// ConfigFormat selects the decoder used by LoadConfigFromReader.
type ConfigFormat int

const (
	ConfigFormatYAML ConfigFormat = iota
	ConfigFormatTOML
)

// LoadConfig reads a capture configuration file. Files ending in .toml are
// decoded as TOML, anything else as YAML. Missing fields keep their defaults.
func LoadConfig(path string) (CaptureConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return CaptureConfig{}, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	format := ConfigFormatYAML
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		format = ConfigFormatTOML
	}
	cfg, err := LoadConfigFromReader(f, format)
	if err != nil {
		return CaptureConfig{}, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadConfigFromReader decodes a configuration from r and validates it.
func LoadConfigFromReader(r io.Reader, format ConfigFormat) (CaptureConfig, error) {
	cfg := DefaultCaptureConfig()
	switch format {
	case ConfigFormatTOML:
		if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
			return CaptureConfig{}, fmt.Errorf("config: decode toml: %w", err)
		}
	default:
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return CaptureConfig{}, fmt.Errorf("config: decode yaml: %w", err)
		}
	}
	cfg.Tuning = cfg.Tuning.withDefaults()
	if err := cfg.Validate(); err != nil {
		return CaptureConfig{}, err
	}
	return cfg, nil
}
