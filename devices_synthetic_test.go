package screenrec

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNewSyntheticPlatform_Capabilities(t *testing.T) {
	tests := []struct {
		name         string
		opts         SyntheticOptions
		display      bool
		devices      bool
		legacy       bool
		recorders    bool
		surfaces     bool
		audio        bool
		surfaceCapts bool
	}{
		{"full desktop", SyntheticOptions{}, true, true, false, true, true, true, true},
		{"legacy only", SyntheticOptions{NoDisplayMedia: true, LegacyDisplayMedia: true}, false, true, true, true, true, true, true},
		{"bare", SyntheticOptions{NoMediaDevices: true, NoRecorder: true, NoSurfaces: true, NoAudioContext: true}, false, false, false, false, false, false, false},
		{"uncapturable surfaces", SyntheticOptions{NoSurfaceCapture: true}, true, true, false, true, true, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _ := NewSyntheticPlatform(tt.opts)
			_, display := p.Devices.(DisplayMediaProvider)
			if display != tt.display {
				t.Errorf("display API = %v, want %v", display, tt.display)
			}
			checks := []struct {
				what      string
				got, want bool
			}{
				{"devices", p.Devices != nil, tt.devices},
				{"legacy", p.LegacyDisplayMedia != nil, tt.legacy},
				{"recorders", p.Recorders != nil, tt.recorders},
				{"surfaces", p.Surfaces != nil, tt.surfaces},
				{"audio contexts", p.AudioContexts != nil, tt.audio},
			}
			for _, c := range checks {
				if c.got != c.want {
					t.Errorf("%s = %v, want %v", c.what, c.got, c.want)
				}
			}
			if p.Surfaces != nil {
				s, err := p.Surfaces(4, 4)
				if err != nil {
					t.Fatalf("Surfaces: %v", err)
				}
				if _, ok := s.(StreamCapturer); ok != tt.surfaceCapts {
					t.Errorf("surface capture = %v, want %v", ok, tt.surfaceCapts)
				}
			}
			if p.Env.UserAgent != DefaultDesktopUserAgent {
				t.Errorf("UserAgent = %q", p.Env.UserAgent)
			}
		})
	}
}

func TestSyntheticDevices_DisplayHonoursMaxConstraints(t *testing.T) {
	p, devices := NewSyntheticPlatform(SyntheticOptions{ScreenWidth: 3840, ScreenHeight: 2160, ScreenFPS: 60, SystemAudio: true})
	stream, err := p.Devices.(DisplayMediaProvider).GetDisplayMedia(context.Background(), DisplayMediaOptions{
		Video: VideoConstraints{
			Width:     ConstrainInt{Ideal: 1280, Max: 1280},
			Height:    ConstrainInt{Ideal: 720, Max: 720},
			FrameRate: ConstrainInt{Ideal: 30, Max: 30},
		},
		Audio: &AudioConstraints{},
	})
	if err != nil {
		t.Fatalf("GetDisplayMedia: %v", err)
	}
	defer releaseStream(stream)

	video := firstVideoTrack(stream)
	if st := video.Settings(); st.FrameRate != 30 {
		t.Errorf("frame rate = %d, want 30", st.FrameRate)
	}
	eventually(t, time.Second, func() bool { return video.Frame() != nil }, "first frame")
	if b := video.Frame().Bounds(); b.Dx() != 1280 || b.Dy() != 720 {
		t.Errorf("frame = %v, want 1280x720", b)
	}
	if n := len(stream.GetAudioTracks()); n != 1 {
		t.Errorf("audio tracks = %d, want system audio", n)
	}
	if devices.DisplayCalls() != 1 {
		t.Errorf("DisplayCalls = %d, want 1", devices.DisplayCalls())
	}
}

func TestSyntheticDevices_Denials(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name string
		opts SyntheticOptions
		call func(p *Platform) error
		want error
	}{
		{"screen", SyntheticOptions{DenyScreen: true}, func(p *Platform) error {
			_, err := p.Devices.(DisplayMediaProvider).GetDisplayMedia(ctx, DisplayMediaOptions{})
			return err
		}, ErrPermissionDenied},
		{"display audio", SyntheticOptions{FailDisplayAudio: true}, func(p *Platform) error {
			_, err := p.Devices.(DisplayMediaProvider).GetDisplayMedia(ctx, DisplayMediaOptions{Audio: &AudioConstraints{}})
			return err
		}, ErrAudioConstraint},
		{"camera", SyntheticOptions{DenyCamera: true}, func(p *Platform) error {
			_, err := p.Devices.GetUserMedia(ctx, UserMediaOptions{Video: &VideoConstraints{}})
			return err
		}, ErrPermissionDenied},
		{"microphone", SyntheticOptions{DenyMicrophone: true}, func(p *Platform) error {
			_, err := p.Devices.GetUserMedia(ctx, UserMediaOptions{Audio: &AudioConstraints{}})
			return err
		}, ErrPermissionDenied},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _ := NewSyntheticPlatform(tt.opts)
			if err := tt.call(p); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSyntheticDevices_UserMedia(t *testing.T) {
	p, devices := NewSyntheticPlatform(SyntheticOptions{CameraWidth: 64, CameraHeight: 36, NoDisplayMedia: true})
	ctx := context.Background()

	cam, err := p.Devices.GetUserMedia(ctx, UserMediaOptions{Video: &VideoConstraints{}, Audio: &AudioConstraints{}})
	if err != nil {
		t.Fatalf("GetUserMedia: %v", err)
	}
	defer releaseStream(cam)
	if len(cam.GetVideoTracks()) != 1 || len(cam.GetAudioTracks()) != 1 {
		t.Errorf("tracks = %d video, %d audio; want 1 and 1", len(cam.GetVideoTracks()), len(cam.GetAudioTracks()))
	}
	if _, ok := cam.GetAudioTracks()[0].(SampleReader); !ok {
		t.Error("synthetic microphone should expose PCM")
	}

	// A mediaSource hint turns the request into a screen capture.
	screen, err := p.Devices.GetUserMedia(ctx, UserMediaOptions{Video: &VideoConstraints{MediaSource: "window"}})
	if err != nil {
		t.Fatalf("mediaSource capture: %v", err)
	}
	defer releaseStream(screen)
	if firstVideoTrack(screen).Label() != "synthetic screen" {
		t.Errorf("label = %q, want the synthetic screen", firstVideoTrack(screen).Label())
	}
	if devices.UserMediaCalls() != 2 || devices.DisplayCalls() != 1 {
		t.Errorf("calls = %d user, %d display; want 2 and 1", devices.UserMediaCalls(), devices.DisplayCalls())
	}
}

func TestSyntheticDevices_CancelledContext(t *testing.T) {
	p, _ := NewSyntheticPlatform(SyntheticOptions{LegacyDisplayMedia: true})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := p.LegacyDisplayMedia(ctx, DisplayMediaOptions{}); !errors.Is(err, context.Canceled) {
		t.Errorf("legacy: err = %v, want context.Canceled", err)
	}
	if _, err := p.Devices.GetUserMedia(ctx, UserMediaOptions{}); !errors.Is(err, context.Canceled) {
		t.Errorf("user media: err = %v, want context.Canceled", err)
	}
}
