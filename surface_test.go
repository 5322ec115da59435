package screenrec

import (
	"image"
	"image/color"
	"testing"
	"time"
)

func TestImageSurface_ResizeDiscardsContents(t *testing.T) {
	s := NewImageSurface(10, 10)
	s.DrawImage(solidImage(10, 10, color.RGBA{255, 255, 255, 255}), image.Rect(0, 0, 10, 10))

	s.Resize(10, 10)
	if got := s.Snapshot().RGBAAt(5, 5); got.A == 0 {
		t.Error("resizing to the same size should keep the contents")
	}

	s.Resize(20, 5)
	if w, h := s.Size(); w != 20 || h != 5 {
		t.Fatalf("Size = %dx%d, want 20x5", w, h)
	}
	if got := s.Snapshot().RGBAAt(5, 2); got.A != 0 {
		t.Errorf("pixel after resize = %v, want transparent", got)
	}

	s.Resize(0, 7)
	if w, h := s.Size(); w != 20 || h != 5 {
		t.Errorf("invalid resize changed the surface to %dx%d", w, h)
	}
}

func TestImageSurface_Clear(t *testing.T) {
	s := NewImageSurface(4, 4)
	s.DrawImage(solidImage(4, 4, color.RGBA{1, 2, 3, 255}), image.Rect(0, 0, 4, 4))
	s.Clear()
	for _, b := range s.Snapshot().Pix {
		if b != 0 {
			t.Fatal("Clear left non-transparent pixels")
		}
	}
}

func TestImageSurface_DrawImageStretches(t *testing.T) {
	s := NewImageSurface(100, 50)
	s.SetSmoothing(false)
	green := color.RGBA{0, 255, 0, 255}
	s.DrawImage(solidImage(10, 10, green), image.Rect(0, 0, 100, 50))
	img := s.Snapshot()
	for _, p := range []image.Point{{0, 0}, {99, 49}, {50, 25}} {
		if got := img.RGBAAt(p.X, p.Y); got != green {
			t.Errorf("pixel %v = %v, want green", p, got)
		}
	}
}

func TestRoundedRect_Mask(t *testing.T) {
	m := roundedRect{r: image.Rect(10, 10, 110, 60), radius: 10}
	tests := []struct {
		x, y   int
		opaque bool
	}{
		{60, 35, true},   // centre
		{10, 10, false},  // top-left corner cut
		{109, 59, false}, // bottom-right corner cut
		{20, 10, true},   // top edge past the corner
		{10, 20, true},   // left edge past the corner
		{13, 13, true},   // inside the corner arc
		{5, 35, false},   // outside
		{110, 35, false}, // right bound is exclusive
	}
	for _, tt := range tests {
		_, _, _, a := m.At(tt.x, tt.y).RGBA()
		if got := a == 0xffff; got != tt.opaque {
			t.Errorf("At(%d,%d) opaque = %v, want %v", tt.x, tt.y, got, tt.opaque)
		}
	}

	// Radius larger than half the height is clamped.
	big := roundedRect{r: image.Rect(0, 0, 100, 20), radius: 50}
	if _, _, _, a := big.At(50, 10).RGBA(); a != 0xffff {
		t.Error("clamped radius should keep the centre opaque")
	}
	flat := roundedRect{r: image.Rect(0, 0, 10, 10)}
	if _, _, _, a := flat.At(0, 0).RGBA(); a != 0xffff {
		t.Error("zero radius should be a plain rectangle")
	}
}

func TestImageSurface_CaptureStream(t *testing.T) {
	s := NewImageSurface(8, 6)
	if _, err := s.CaptureStream(0); err == nil {
		t.Error("CaptureStream(0) should fail")
	}

	stream, err := s.CaptureStream(100)
	if err != nil {
		t.Fatalf("CaptureStream: %v", err)
	}
	tracks := stream.GetVideoTracks()
	if len(tracks) != 1 {
		t.Fatalf("video tracks = %d, want 1", len(tracks))
	}
	feed := tracks[0].(*VideoFeed)
	if st := feed.Settings(); st.Width != 8 || st.Height != 6 || st.FrameRate != 100 {
		t.Errorf("Settings = %+v, want 8x6@100", st)
	}

	red := color.RGBA{255, 0, 0, 255}
	s.SetSmoothing(false)
	s.DrawImage(solidImage(8, 6, red), image.Rect(0, 0, 8, 6))
	eventually(t, time.Second, func() bool {
		f, ok := feed.Frame().(*image.RGBA)
		return ok && f.RGBAAt(0, 0) == red
	}, "captured frame reflects the surface")

	_ = stream.Close()
	n := feed.Delivered()
	time.Sleep(50 * time.Millisecond)
	if feed.Delivered() != n {
		t.Error("capture kept sampling after the track was closed")
	}
}
