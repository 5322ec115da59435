package screenrec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/jpeg"
	"math/rand/v2"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/at-wat/ebml-go/webm"
)

const (
	webmVideoCodec = "V_MJPEG"
	webmAudioCodec = "A_PCM/INT/LIT"

	// webmMaxFPS bounds software JPEG encoding.
	webmMaxFPS = 30

	webmAudioFrame = 20 * time.Millisecond
)

// WebMRecorderFactory creates software recorders writing Matroska/WebM.
// Video is stored as Motion JPEG and audio as 16-bit PCM, so only the plain
// "video/webm" type is claimed.
type WebMRecorderFactory struct{}

// NewWebMRecorderFactory returns the software recorder factory.
func NewWebMRecorderFactory() *WebMRecorderFactory { return &WebMRecorderFactory{} }

func (f *WebMRecorderFactory) IsTypeSupported(mimeType string) bool {
	return strings.EqualFold(strings.TrimSpace(mimeType), DefaultMimeType)
}

func (f *WebMRecorderFactory) NewRecorder(stream MediaStream, opts *RecorderOptions) (Recorder, error) {
	if stream == nil {
		return nil, errors.New("webm recorder: nil stream")
	}
	mimeType := DefaultMimeType
	quality := jpeg.DefaultQuality
	if opts != nil {
		if opts.MimeType != "" && !f.IsTypeSupported(opts.MimeType) {
			return nil, fmt.Errorf("webm recorder: %q: %w", opts.MimeType, ErrNotSupported)
		}
		if opts.VideoBitsPerSecond > 0 {
			quality = jpegQuality(opts.VideoBitsPerSecond)
		}
	}
	return &WebMRecorder{
		stream:   stream,
		mimeType: mimeType,
		quality:  quality,
	}, nil
}

// jpegQuality maps a bitrate hint onto a JPEG quality in [50, 95].
func jpegQuality(bps int) int {
	return min(95, max(50, 50+bps/400_000))
}

// WebMRecorderStats provides recorder statistics.
type WebMRecorderStats struct {
	VideoFrames  uint64
	AudioBlocks  uint64
	BytesWritten uint64
	Chunks       uint64
}

// WebMRecorder records the first video track and the first PCM-capable
// audio track of a stream.
type WebMRecorder struct {
	stream   MediaStream
	mimeType string
	quality  int

	state  atomic.Int32
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	buf    chunkBuffer
	stats  WebMRecorderStats
	statMu sync.Mutex

	mu      sync.Mutex
	onData  func([]byte)
	onStop  func()
	onError func(error)
}

func (r *WebMRecorder) MimeType() string { return r.mimeType }

func (r *WebMRecorder) State() RecorderState { return RecorderState(r.state.Load()) }

func (r *WebMRecorder) OnDataAvailable(cb func([]byte)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onData = cb
}

func (r *WebMRecorder) OnStop(cb func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onStop = cb
}

func (r *WebMRecorder) OnError(cb func(error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onError = cb
}

// Stats returns recorder statistics.
func (r *WebMRecorder) Stats() WebMRecorderStats {
	r.statMu.Lock()
	defer r.statMu.Unlock()
	return r.stats
}

// Start writes the container header and begins recording. Buffered bytes
// are delivered every timeslice.
func (r *WebMRecorder) Start(timeslice time.Duration) error {
	if !r.state.CompareAndSwap(int32(RecorderInactive), int32(RecorderRecording)) {
		return errors.New("webm recorder: already recording")
	}
	video := firstVideoTrack(r.stream)
	if video == nil {
		r.state.Store(int32(RecorderInactive))
		return fmt.Errorf("webm recorder: %w", ErrNoVideoTrack)
	}
	audio := firstSampleReader(r.stream)

	fps := video.Settings().FrameRate
	if fps <= 0 || fps > webmMaxFPS {
		fps = webmMaxFPS
	}
	w, h := frameSize(video)

	tracks := []webm.TrackEntry{{
		Name:            "Video",
		TrackNumber:     1,
		TrackUID:        rand.Uint64(),
		CodecID:         webmVideoCodec,
		TrackType:       1,
		DefaultDuration: uint64(time.Second / time.Duration(fps)),
		Video: &webm.Video{
			PixelWidth:  uint64(w),
			PixelHeight: uint64(h),
		},
	}}
	if audio != nil {
		s := audio.track.Settings()
		tracks = append(tracks, webm.TrackEntry{
			Name:            "Audio",
			TrackNumber:     2,
			TrackUID:        rand.Uint64(),
			CodecID:         webmAudioCodec,
			TrackType:       2,
			DefaultDuration: uint64(webmAudioFrame),
			Audio: &webm.Audio{
				SamplingFrequency: float64(max(s.SampleRate, 1)),
				Channels:          uint64(max(s.ChannelCount, 1)),
			},
		})
	}

	r.buf.closed = make(chan struct{})
	writers, err := webm.NewSimpleBlockWriter(&r.buf, tracks)
	if err != nil {
		r.state.Store(int32(RecorderInactive))
		return fmt.Errorf("webm recorder: %w", err)
	}

	r.ctx, r.cancel = context.WithCancel(context.Background())
	r.done = make(chan struct{})
	if timeslice <= 0 {
		timeslice = time.Second
	}
	go r.loop(video, audio, writers, fps, timeslice)
	return nil
}

// Stop ends recording. The remaining bytes are delivered, then OnStop fires.
func (r *WebMRecorder) Stop() error {
	if r.State() != RecorderRecording {
		return fmt.Errorf("webm recorder: %w", ErrNotRecording)
	}
	r.cancel()
	return nil
}

// Wait blocks until the recording loop has finished.
func (r *WebMRecorder) Wait() {
	if r.done != nil {
		<-r.done
	}
}

type audioInput struct {
	track  AudioTrack
	reader SampleReader
}

func firstSampleReader(stream MediaStream) *audioInput {
	for _, t := range stream.GetAudioTracks() {
		if sr, ok := t.(SampleReader); ok {
			return &audioInput{track: t, reader: sr}
		}
	}
	return nil
}

func frameSize(track VideoTrack) (int, int) {
	s := track.Settings()
	if s.Width > 0 && s.Height > 0 {
		return s.Width, s.Height
	}
	if f := track.Frame(); f != nil {
		return f.Bounds().Dx(), f.Bounds().Dy()
	}
	return 1, 1
}

func (r *WebMRecorder) loop(video VideoTrack, audio *audioInput, writers []webm.BlockWriteCloser, fps int, timeslice time.Duration) {
	defer close(r.done)

	start := time.Now()
	frameInterval := time.Second / time.Duration(fps)
	videoTick := time.NewTicker(frameInterval)
	defer videoTick.Stop()
	audioTick := time.NewTicker(webmAudioFrame)
	defer audioTick.Stop()
	slice := time.NewTicker(timeslice)
	defer slice.Stop()

	var (
		jpegBuf bytes.Buffer
		audioTS time.Duration
		failed  error
	)
	if audio == nil {
		audioTick.Stop()
	}

	writeVideo := func() error {
		frame := video.Frame()
		if frame == nil {
			return nil
		}
		jpegBuf.Reset()
		if err := jpeg.Encode(&jpegBuf, frame, &jpeg.Options{Quality: r.quality}); err != nil {
			return fmt.Errorf("encode frame: %w", err)
		}
		ts := time.Since(start).Milliseconds()
		if _, err := writers[0].Write(true, ts, jpegBuf.Bytes()); err != nil {
			return fmt.Errorf("write video block: %w", err)
		}
		r.addStats(func(s *WebMRecorderStats) { s.VideoFrames++ })
		return nil
	}

	writeAudio := func() error {
		if audio.track.State() != TrackStateLive {
			return nil
		}
		samples, err := audio.reader.ReadSamples(r.ctx)
		if err != nil || samples == nil {
			return nil
		}
		if _, err := writers[1].Write(true, audioTS.Milliseconds(), samples.Data); err != nil {
			return fmt.Errorf("write audio block: %w", err)
		}
		audioTS += samples.Duration()
		r.addStats(func(s *WebMRecorderStats) { s.AudioBlocks++ })
		return nil
	}

	if err := writeVideo(); err != nil {
		failed = err
	}
run:
	for failed == nil {
		select {
		case <-r.ctx.Done():
			break run
		case <-videoTick.C:
			failed = writeVideo()
		case <-audioTick.C:
			failed = writeAudio()
		case <-slice.C:
			r.flush()
		}
	}

	for _, w := range writers {
		_ = w.Close()
	}
	// The block writer drains asynchronously and closes the buffer last.
	select {
	case <-r.buf.closed:
	case <-time.After(time.Second):
	}
	if failed != nil {
		r.handleError(failed)
	}
	r.flush()
	r.state.Store(int32(RecorderInactive))

	r.mu.Lock()
	onStop := r.onStop
	r.mu.Unlock()
	if onStop != nil {
		onStop()
	}
}

// flush hands the buffered bytes to OnDataAvailable.
func (r *WebMRecorder) flush() {
	chunk := r.buf.Take()
	if len(chunk) == 0 {
		return
	}
	r.addStats(func(s *WebMRecorderStats) {
		s.Chunks++
		s.BytesWritten += uint64(len(chunk))
	})
	r.mu.Lock()
	cb := r.onData
	r.mu.Unlock()
	if cb != nil {
		cb(chunk)
	}
}

func (r *WebMRecorder) handleError(err error) {
	r.mu.Lock()
	cb := r.onError
	r.mu.Unlock()
	if cb != nil {
		cb(err)
	}
}

func (r *WebMRecorder) addStats(fn func(*WebMRecorderStats)) {
	r.statMu.Lock()
	fn(&r.stats)
	r.statMu.Unlock()
}

// chunkBuffer collects container bytes between timeslices.
type chunkBuffer struct {
	mu     sync.Mutex
	buf    bytes.Buffer
	once   sync.Once
	closed chan struct{}
}

func (b *chunkBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

// Close is called by the block writer once every track is closed.
func (b *chunkBuffer) Close() error {
	b.once.Do(func() {
		if b.closed != nil {
			close(b.closed)
		}
	})
	return nil
}

// Take returns and clears the buffered bytes.
func (b *chunkBuffer) Take() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.buf.Len() == 0 {
		return nil
	}
	out := bytes.Clone(b.buf.Bytes())
	b.buf.Reset()
	return out
}
