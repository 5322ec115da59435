package screenrec

import (
	"context"
	"errors"
	"image"
	"image/color"
	"sync"
	"testing"
	"time"
)

// fakeRecorder is a Recorder driven by the test.
type fakeRecorder struct {
	mu        sync.Mutex
	stream    MediaStream
	opts      *RecorderOptions
	mimeType  string
	state     RecorderState
	timeslice time.Duration
	final     []byte
	startErr  error
	stopErr   error
	stops     int
	onData    func([]byte)
	onStop    func()
	onError   func(error)
}

func (r *fakeRecorder) Start(timeslice time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.startErr != nil {
		return r.startErr
	}
	r.state = RecorderRecording
	r.timeslice = timeslice
	return nil
}

// Stop delivers the final chunk and fires OnStop synchronously.
func (r *fakeRecorder) Stop() error {
	r.mu.Lock()
	if r.stopErr != nil {
		r.mu.Unlock()
		return r.stopErr
	}
	if r.state != RecorderRecording {
		r.mu.Unlock()
		return ErrNotRecording
	}
	r.state = RecorderInactive
	r.stops++
	final, onData, onStop := r.final, r.onData, r.onStop
	r.mu.Unlock()

	if len(final) > 0 && onData != nil {
		onData(final)
	}
	if onStop != nil {
		onStop()
	}
	return nil
}

func (r *fakeRecorder) State() RecorderState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *fakeRecorder) MimeType() string { return r.mimeType }

func (r *fakeRecorder) OnDataAvailable(cb func([]byte)) { r.onData = cb }
func (r *fakeRecorder) OnStop(cb func())                { r.onStop = cb }
func (r *fakeRecorder) OnError(cb func(error))          { r.onError = cb }

func (r *fakeRecorder) emit(chunk []byte) {
	r.mu.Lock()
	cb := r.onData
	r.mu.Unlock()
	cb(chunk)
}

func (r *fakeRecorder) fail(err error) {
	r.mu.Lock()
	cb := r.onError
	r.mu.Unlock()
	cb(err)
}

// fakeRecorderFactory records every recorder it builds.
type fakeRecorderFactory struct {
	mu         sync.Mutex
	supported  func(string) bool // nil accepts everything
	rejectOpts bool
	newErr     error
	final      []byte
	stopErr    error
	recorders  []*fakeRecorder
}

func (f *fakeRecorderFactory) IsTypeSupported(mimeType string) bool {
	if f.supported == nil {
		return true
	}
	return f.supported(mimeType)
}

func (f *fakeRecorderFactory) NewRecorder(stream MediaStream, opts *RecorderOptions) (Recorder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.newErr != nil {
		return nil, f.newErr
	}
	if f.rejectOpts && opts != nil {
		return nil, errors.New("unsupported options")
	}
	rec := &fakeRecorder{stream: stream, opts: opts, final: f.final, stopErr: f.stopErr}
	if opts != nil {
		rec.mimeType = opts.MimeType
	}
	f.recorders = append(f.recorders, rec)
	return rec, nil
}

func (f *fakeRecorderFactory) last(t *testing.T) *fakeRecorder {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.recorders) == 0 {
		t.Fatal("no recorder was created")
	}
	return f.recorders[len(f.recorders)-1]
}

// fakeDevices serves user media from a function and logs every request.
type fakeDevices struct {
	mu        sync.Mutex
	userMedia func(ctx context.Context, opts UserMediaOptions) (MediaStream, error)
	calls     []UserMediaOptions
}

func (d *fakeDevices) GetUserMedia(ctx context.Context, opts UserMediaOptions) (MediaStream, error) {
	d.mu.Lock()
	d.calls = append(d.calls, opts)
	fn := d.userMedia
	d.mu.Unlock()
	if fn == nil {
		return nil, ErrDeviceNotFound
	}
	return fn(ctx, opts)
}

func (d *fakeDevices) userCalls() []UserMediaOptions {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]UserMediaOptions(nil), d.calls...)
}

// fakeDisplayDevices adds the standard display capture API.
type fakeDisplayDevices struct {
	*fakeDevices

	mu           sync.Mutex
	display      func(ctx context.Context, opts DisplayMediaOptions) (MediaStream, error)
	displayCalls []DisplayMediaOptions
}

func (d *fakeDisplayDevices) GetDisplayMedia(ctx context.Context, opts DisplayMediaOptions) (MediaStream, error) {
	d.mu.Lock()
	d.displayCalls = append(d.displayCalls, opts)
	fn := d.display
	d.mu.Unlock()
	return fn(ctx, opts)
}

func (d *fakeDisplayDevices) displays() []DisplayMediaOptions {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]DisplayMediaOptions(nil), d.displayCalls...)
}

// trackingDevices wraps a platform's devices and remembers every track it
// handed out, so tests can check they were all released.
type trackingDevices struct {
	inner MediaDevices

	mu           sync.Mutex
	tracks       []MediaStreamTrack
	cameraCalls  int
	cameraTracks []MediaStreamTrack
}

func (d *trackingDevices) keep(stream MediaStream, err error) (MediaStream, error) {
	if err == nil && stream != nil {
		d.mu.Lock()
		d.tracks = append(d.tracks, stream.GetTracks()...)
		d.mu.Unlock()
	}
	return stream, err
}

func (d *trackingDevices) GetUserMedia(ctx context.Context, opts UserMediaOptions) (MediaStream, error) {
	camera := opts.Video != nil && opts.Video.MediaSource == ""
	if camera {
		d.mu.Lock()
		d.cameraCalls++
		d.mu.Unlock()
	}
	stream, err := d.keep(d.inner.GetUserMedia(ctx, opts))
	if camera && err == nil && stream != nil {
		d.mu.Lock()
		for _, t := range stream.GetVideoTracks() {
			d.cameraTracks = append(d.cameraTracks, t)
		}
		d.mu.Unlock()
	}
	return stream, err
}

// cameraTrack returns the video track of the i-th camera acquisition.
func (d *trackingDevices) cameraTrack(i int) MediaStreamTrack {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cameraTracks[i]
}

func (d *trackingDevices) liveCameras() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, t := range d.cameraTracks {
		if t.State() == TrackStateLive {
			n++
		}
	}
	return n
}

func (d *trackingDevices) GetDisplayMedia(ctx context.Context, opts DisplayMediaOptions) (MediaStream, error) {
	return d.keep(d.inner.(DisplayMediaProvider).GetDisplayMedia(ctx, opts))
}

func (d *trackingDevices) cameras() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cameraCalls
}

func (d *trackingDevices) liveTracks() []MediaStreamTrack {
	d.mu.Lock()
	defer d.mu.Unlock()
	var live []MediaStreamTrack
	for _, t := range d.tracks {
		if t.State() == TrackStateLive {
			live = append(live, t)
		}
	}
	return live
}

// newVideoStream returns a stream with one video feed that already holds a
// w x h frame.
func newVideoStream(w, h int) (MediaStream, *VideoFeed) {
	feed := NewVideoFeed(NewTrackID("video"), "video", 30, nil)
	feed.Push(solidImage(w, h, color.RGBA{200, 0, 0, 255}))
	return NewMediaStream(feed), feed
}

func solidImage(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	fillSolid(img, c)
	return img
}

// eventually polls cond until it holds or the deadline passes.
func eventually(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting: %s", msg)
}
