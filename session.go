package screenrec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// State is the lifecycle state of a recording session.
type State int

const (
	StateIdle      State = iota // Nothing recorded yet, or ready to retry
	StateStarting               // Acquiring streams and building the pipeline
	StateActive                 // Recorder running
	StateStopping               // Recorder draining its last data
	StateFinalized              // Artifact available
	StateFailed                 // Aborted by an error, resources released
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateActive:
		return "active"
	case StateStopping:
		return "stopping"
	case StateFinalized:
		return "finalized"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Status maps s onto the states a UI renders: idle, starting, recording
// or error.
func (s State) Status() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateActive:
		return "recording"
	case StateFailed:
		return "error"
	default:
		return "idle"
	}
}

// Preview is the live feed shown while recording. Exactly one field is set:
// Stream on the raw-screen path, Surface when composing.
type Preview struct {
	Stream  MediaStream
	Surface Surface
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics sets the instruments sessions record to.
func WithMetrics(m *Metrics) Option {
	return func(s *Session) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithTuning overrides the tuning constants of the configuration.
func WithTuning(t Tuning) Option {
	return func(s *Session) { s.cfg.Tuning = t }
}

// Session owns one recording: the acquired streams, the compositor and
// mixer, the recorder, and the resulting artifact.
type Session struct {
	platform *Platform
	acquirer *Acquirer
	logger   *slog.Logger
	metrics  *Metrics

	mu        sync.Mutex
	cfg       CaptureConfig
	caps      Capabilities
	state     State
	err       error
	done      chan struct{}
	aborted   bool
	failing   bool
	closed    bool
	counted   bool
	startedAt time.Time

	mimeType string
	chunks   [][]byte
	artifact *Artifact

	screen      MediaStream
	camera      MediaStream
	compositor  *Compositor
	mixer       *AudioMixer
	composition *Composition
	recorder    Recorder
	preview     Preview

	listeners []func(State)
	pending   []State

	cameraFlight singleflight.Group
}

// NewSession creates an idle session recording from platform.
func NewSession(platform *Platform, cfg CaptureConfig, opts ...Option) (*Session, error) {
	if platform == nil {
		return nil, errors.New("session: nil platform")
	}
	s := &Session{
		platform: platform,
		logger:   slog.Default(),
		cfg:      cfg,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.cfg.Tuning = s.cfg.Tuning.withDefaults()
	if err := s.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}
	if s.metrics == nil {
		s.metrics = defaultMetrics()
	}
	s.acquirer = NewAcquirer(platform, s.logger)
	return s, nil
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Config returns the current configuration, including live toggles.
func (s *Session) Config() CaptureConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// Capabilities returns the probe result of the last start.
func (s *Session) Capabilities() Capabilities {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.caps
}

// Err returns the error of the last recording, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Artifact returns the last finished recording, or nil.
func (s *Session) Artifact() *Artifact {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.artifact
}

// Preview returns the live preview feed while recording.
func (s *Session) Preview() Preview {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.preview
}

// Compositor returns the running compositor, nil on the raw-screen path.
func (s *Session) Compositor() *Compositor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.compositor
}

// Stream returns the stream handed to the recorder, or nil when not
// recording.
func (s *Session) Stream() MediaStream {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.composition == nil {
		return nil
	}
	return s.composition.Stream
}

// OnStateChange registers fn to be called after every state transition.
func (s *Session) OnStateChange(fn func(State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func (s *Session) setStateLocked(st State) {
	if s.state == st {
		return
	}
	s.state = st
	s.pending = append(s.pending, st)
}

// unlock releases s.mu and delivers queued state changes.
func (s *Session) unlock() {
	pending := s.pending
	s.pending = nil
	listeners := append([]func(State){}, s.listeners...)
	s.mu.Unlock()
	for _, st := range pending {
		for _, fn := range listeners {
			fn(st)
		}
	}
}

// finishLocked marks the end of a recording attempt for Wait.
func (s *Session) finishLocked() {
	if s.done == nil {
		return
	}
	select {
	case <-s.done:
	default:
		close(s.done)
	}
}

// Wait blocks until the current recording attempt ends and returns its
// artifact or error.
func (s *Session) Wait(ctx context.Context) (*Artifact, error) {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.artifact, s.err
}

// Start acquires the streams, builds the pipeline and starts the recorder.
// Any failure releases everything acquired so far and moves the session to
// Failed. It fails with ErrSessionBusy while a recording is in progress.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	switch {
	case s.closed:
		s.mu.Unlock()
		return errors.New("session: closed")
	case s.state == StateStarting || s.state == StateActive || s.state == StateStopping:
		s.mu.Unlock()
		return ErrSessionBusy
	}
	if s.artifact != nil {
		s.artifact.Release()
		s.artifact = nil
	}
	s.err = nil
	s.chunks = nil
	s.aborted = false
	s.failing = false
	s.done = make(chan struct{})
	s.setStateLocked(StateStarting)
	cfg := s.cfg
	s.unlock()

	if err := s.start(ctx, cfg); err != nil {
		return s.fail(err)
	}
	return nil
}

func (s *Session) start(ctx context.Context, cfg CaptureConfig) error {
	caps := s.platform.Probe()
	s.mu.Lock()
	s.caps = caps
	s.mu.Unlock()

	if s.platform.Recorders == nil {
		return ErrRecorderUnavailable
	}

	screen, err := s.acquirer.AcquireScreenWithFallback(ctx, cfg.VideoConstraints(caps.Mobile), !caps.Mobile)
	if err != nil {
		return fmt.Errorf("acquire screen: %w", err)
	}
	if err := s.keep(screen, func() { s.screen = screen }); err != nil {
		return err
	}

	composing := !caps.Mobile && !cfg.CompatibilityMode
	if composing && s.platform.Surfaces == nil {
		s.logger.Warn("no drawing surface available, recording raw screen")
		composing = false
	}

	camera, mic := s.acquireOptional(ctx, cfg.IncludeCamera && composing, cfg.IncludeMicrophone)
	if err := s.keep(camera, func() { s.camera = camera }); err != nil {
		releaseStream(mic)
		return err
	}

	video := firstVideoTrack(screen)
	if video != nil && !waitReady(ctx, video, time.Duration(cfg.Tuning.ReadyTimeout)) {
		s.logger.Debug("screen not ready before timeout, continuing", "timeout", cfg.Tuning.ReadyTimeout)
	}

	var surface Surface
	if composing && video != nil {
		compositor, err := s.newCompositor(cfg, caps, video)
		if err != nil {
			s.logger.Warn("surface creation failed, recording raw screen", "err", err)
		} else {
			if err := s.keep(nil, func() { s.compositor = compositor }); err != nil {
				return err
			}
			if cam := firstVideoTrack(camera); cam != nil {
				compositor.SetCamera(cam)
			}
			compositor.Start()
			surface = compositor.Surface()
		}
	}

	mixer := NewAudioMixer(s.platform.AudioContexts, s.acquirer.AcquireMicrophone, s.logger)
	if err := s.keep(mic, func() { s.mixer = mixer }); err != nil {
		return err
	}
	audio := mixer.Build(ctx, screen, mic)

	composition, err := ComposeStream(screen, surface, audio, captureFrameRate(cfg.FrameRate, cfg.PerformanceMode, cfg.Tuning), s.logger)
	if err != nil {
		return err
	}
	if err := s.keep(composition.Stream, func() { s.composition = composition }); err != nil {
		return err
	}

	opts := recorderOptions(caps.MimeType, cfg.PerformanceMode, caps.Mobile, cfg.Tuning)
	rec, retried, err := newRecorder(s.platform.Recorders, composition.Stream, opts)
	if err != nil {
		return err
	}
	if retried {
		s.logger.Warn("recorder rejected options, using platform defaults", "mime_type", opts.MimeType)
	}
	mimeType := rec.MimeType()
	if mimeType == "" {
		mimeType = caps.MimeType
	}
	// Events from a recorder that no longer belongs to the session are dropped.
	rec.OnDataAvailable(func(chunk []byte) { s.handleChunk(rec, chunk) })
	rec.OnStop(func() { s.handleRecorderStop(rec) })
	rec.OnError(func(err error) { s.handleRecorderError(rec, err) })

	s.mu.Lock()
	if s.aborted {
		s.mu.Unlock()
		return ErrStartAborted
	}
	s.recorder = rec
	s.mimeType = mimeType
	s.mu.Unlock()

	if err := rec.Start(time.Duration(cfg.Tuning.Timeslice)); err != nil {
		return fmt.Errorf("%w: start: %w", ErrRecorderUnavailable, err)
	}

	s.mu.Lock()
	if s.aborted {
		s.mu.Unlock()
		return ErrStartAborted
	}
	if surface != nil {
		s.preview = Preview{Surface: surface}
	} else {
		s.preview = Preview{Stream: composition.Stream}
	}
	s.startedAt = time.Now()
	s.counted = true
	s.setStateLocked(StateActive)
	s.unlock()

	s.metrics.recordStart(ctx)
	s.logger.Info("recording started",
		"mime_type", mimeType,
		"mobile", caps.Mobile,
		"composited", surface != nil,
		"audio_tracks", len(audio),
	)
	return nil
}

// keep stores a freshly acquired resource unless the start was aborted, in
// which case the stream is released instead.
func (s *Session) keep(stream MediaStream, store func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.aborted {
		releaseStream(stream)
		return ErrStartAborted
	}
	store()
	return nil
}

// acquireOptional fetches the camera and microphone concurrently. Failures
// turn the corresponding toggle off and are otherwise only logged.
func (s *Session) acquireOptional(ctx context.Context, wantCamera, wantMic bool) (camera, mic MediaStream) {
	var g errgroup.Group
	if wantCamera {
		g.Go(func() error {
			stream, err := s.acquirer.AcquireCamera(ctx)
			if err != nil {
				s.logger.Warn("camera unavailable, continuing without overlay", "err", err)
				s.mu.Lock()
				s.cfg.IncludeCamera = false
				s.mu.Unlock()
				return nil
			}
			camera = stream
			return nil
		})
	}
	if wantMic {
		g.Go(func() error {
			stream, err := s.acquirer.AcquireMicrophone(ctx)
			if err != nil {
				s.logger.Warn("microphone unavailable, continuing without it", "err", err)
				s.mu.Lock()
				s.cfg.IncludeMicrophone = false
				s.mu.Unlock()
				return nil
			}
			mic = stream
			return nil
		})
	}
	_ = g.Wait()
	return camera, mic
}

func (s *Session) newCompositor(cfg CaptureConfig, caps Capabilities, video VideoTrack) (*Compositor, error) {
	w, h := cfg.Resolution.Size()
	if vs := video.Settings(); vs.Width > 0 && vs.Height > 0 {
		w, h = vs.Width, vs.Height
	}
	surface, err := s.platform.Surfaces(w, h)
	if err != nil {
		return nil, err
	}
	fw, fh := cfg.Resolution.Size()
	return NewCompositor(surface, video, CompositorConfig{
		Performance:    cfg.PerformanceMode,
		Tuning:         cfg.Tuning,
		FallbackWidth:  fw,
		FallbackHeight: fh,
		OnFrame: func() {
			s.metrics.Frames.Add(context.Background(), 1)
		},
	}, s.logger), nil
}

// fail tears the session down and records err.
func (s *Session) fail(err error) error {
	// Stopping the recorder during teardown must not finalize an artifact.
	s.mu.Lock()
	s.failing = true
	s.mu.Unlock()
	s.teardown()

	s.mu.Lock()
	s.err = err
	if errors.Is(err, ErrStartAborted) {
		s.setStateLocked(StateIdle)
	} else {
		s.setStateLocked(StateFailed)
	}
	wasActive := s.counted
	s.counted = false
	started := s.startedAt
	s.finishLocked()
	s.unlock()

	if wasActive {
		s.metrics.recordEnd(context.Background(), time.Since(started))
	}
	s.metrics.recordFailure(context.Background(), failureReason(err))
	if errors.Is(err, ErrStartAborted) {
		s.logger.Info("recording start aborted")
	} else {
		s.logger.Error("recording failed", "err", err)
	}
	return err
}

// Stop ends an active recording. The draw loop and surface capture track
// are released immediately; the artifact is finalized once the recorder
// has drained. Stop during Starting aborts the start.
func (s *Session) Stop() error {
	s.mu.Lock()
	switch s.state {
	case StateStarting:
		s.aborted = true
		s.mu.Unlock()
		return nil
	case StateActive:
	default:
		s.mu.Unlock()
		return ErrNotRecording
	}
	s.setStateLocked(StateStopping)
	compositor := s.compositor
	rec := s.recorder
	var capture VideoTrack
	if s.composition != nil {
		capture = s.composition.CaptureTrack
	}
	s.unlock()

	if compositor != nil {
		compositor.Stop()
	}
	if capture != nil {
		_ = capture.Close()
	}
	if err := rec.Stop(); err != nil {
		s.logger.Warn("recorder stop failed, finalizing", "err", err)
		s.handleRecorderStop(rec)
	}
	return nil
}

func (s *Session) handleChunk(rec Recorder, chunk []byte) {
	if len(chunk) == 0 {
		return
	}
	s.mu.Lock()
	if !s.ownsLocked(rec) {
		s.mu.Unlock()
		return
	}
	s.chunks = append(s.chunks, bytes.Clone(chunk))
	s.mu.Unlock()
	s.metrics.recordChunk(context.Background(), len(chunk))
}

// handleRecorderStop finalizes the artifact once the recorder has drained.
func (s *Session) handleRecorderStop(rec Recorder) {
	s.mu.Lock()
	if s.closed || s.failing || !s.ownsLocked(rec) {
		s.mu.Unlock()
		return
	}
	artifact := NewArtifact(s.chunks, s.mimeType)
	s.chunks = nil
	s.mu.Unlock()

	s.teardown()

	s.mu.Lock()
	started := s.startedAt
	wasActive := s.counted
	s.counted = false
	if artifact.Size() == 0 {
		s.err = ErrEmptyArtifact
		s.setStateLocked(StateIdle)
	} else {
		if s.artifact != nil {
			s.artifact.Release()
		}
		s.artifact = artifact
		s.setStateLocked(StateFinalized)
	}
	s.finishLocked()
	s.unlock()

	if wasActive {
		s.metrics.recordEnd(context.Background(), time.Since(started))
	}
	if artifact.Size() == 0 {
		s.metrics.recordFailure(context.Background(), failureReason(ErrEmptyArtifact))
		s.logger.Warn("recording produced an empty file")
		return
	}
	s.logger.Info("recording finalized",
		"bytes", artifact.Size(),
		"content_type", artifact.ContentType(),
		"duration", time.Since(started).Round(time.Millisecond),
	)
}

// handleRecorderError fails the session on an asynchronous recorder error.
func (s *Session) handleRecorderError(rec Recorder, err error) {
	s.mu.Lock()
	if s.closed || s.failing || !s.ownsLocked(rec) {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	_ = s.fail(fmt.Errorf("%w: %w", ErrRecorderRuntime, err))
}

// ownsLocked reports whether rec is the recorder of the current recording.
// s.recorder stays set until teardown, so this holds through Stopping.
func (s *Session) ownsLocked(rec Recorder) bool {
	return rec != nil && rec == s.recorder && (s.state == StateActive || s.state == StateStopping)
}

// teardown releases every resource the session holds. It is idempotent.
func (s *Session) teardown() {
	s.mu.Lock()
	compositor := s.compositor
	mixer := s.mixer
	composition := s.composition
	rec := s.recorder
	screen, camera := s.screen, s.camera
	s.compositor, s.mixer, s.composition, s.recorder = nil, nil, nil, nil
	s.screen, s.camera = nil, nil
	s.preview = Preview{}
	s.mu.Unlock()

	if compositor != nil {
		compositor.Stop()
	}
	if rec != nil && rec.State() == RecorderRecording {
		_ = rec.Stop()
	}
	if composition != nil {
		if composition.CaptureTrack != nil {
			_ = composition.CaptureTrack.Close()
		}
		releaseStream(composition.Stream)
	}
	if mixer != nil {
		if err := mixer.Close(); err != nil {
			s.logger.Debug("audio context close failed", "err", err)
		}
	}
	releaseStream(camera)
	releaseStream(screen)
}

// SetCameraEnabled toggles the camera overlay. While recording with a
// compositor it acquires or releases the camera; on failure the toggle
// reverts to false and the error is returned while recording continues.
func (s *Session) SetCameraEnabled(ctx context.Context, on bool) error {
	s.mu.Lock()
	s.cfg.IncludeCamera = on
	live := s.state == StateActive && s.compositor != nil
	s.mu.Unlock()
	if !live {
		return nil
	}
	if !on {
		s.dropCamera()
		s.logger.Info("camera disabled")
		return nil
	}
	_, err, _ := s.cameraFlight.Do("camera", func() (any, error) {
		return nil, s.enableCamera(ctx)
	})
	return err
}

func (s *Session) enableCamera(ctx context.Context) error {
	s.mu.Lock()
	have := s.camera != nil
	s.mu.Unlock()
	if have {
		return nil
	}

	stream, err := s.acquirer.AcquireCamera(ctx)
	if err != nil {
		s.mu.Lock()
		s.cfg.IncludeCamera = false
		s.mu.Unlock()
		s.logger.Warn("camera unavailable", "err", err)
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.camera != nil || !s.cfg.IncludeCamera || s.state != StateActive || s.compositor == nil {
		releaseStream(stream)
		return nil
	}
	s.camera = stream
	s.compositor.SetCamera(firstVideoTrack(stream))
	s.logger.Info("camera enabled")
	return nil
}

func (s *Session) dropCamera() {
	s.mu.Lock()
	camera := s.camera
	compositor := s.compositor
	s.camera = nil
	s.mu.Unlock()
	if compositor != nil {
		compositor.SetCamera(nil)
	}
	releaseStream(camera)
}

// SetMicrophoneEnabled toggles the microphone. While recording it connects
// or disconnects the microphone in the mix; on failure the toggle reverts
// to false and the error is returned while recording continues.
func (s *Session) SetMicrophoneEnabled(ctx context.Context, on bool) error {
	s.mu.Lock()
	s.cfg.IncludeMicrophone = on
	mixer := s.mixer
	live := s.state == StateActive && mixer != nil
	s.mu.Unlock()
	if !live {
		return nil
	}
	if !on {
		mixer.DisableMicrophone()
		s.logger.Info("microphone disabled")
		return nil
	}
	if err := mixer.EnableMicrophone(ctx); err != nil {
		s.mu.Lock()
		s.cfg.IncludeMicrophone = false
		s.mu.Unlock()
		s.logger.Warn("microphone unavailable", "err", err)
		return err
	}

	s.mu.Lock()
	stillOn := s.cfg.IncludeMicrophone
	s.mu.Unlock()
	if !stillOn {
		mixer.DisableMicrophone()
		return nil
	}
	s.logger.Info("microphone enabled")
	return nil
}

// Close stops any recording, releases every resource and the artifact.
// It is idempotent.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.aborted = true
	artifact := s.artifact
	s.artifact = nil
	wasActive := s.counted
	s.counted = false
	started := s.startedAt
	s.mu.Unlock()

	s.teardown()
	if artifact != nil {
		artifact.Release()
	}

	s.mu.Lock()
	if s.state == StateActive || s.state == StateStopping {
		s.setStateLocked(StateIdle)
	}
	s.chunks = nil
	s.finishLocked()
	s.unlock()

	if wasActive {
		s.metrics.recordEnd(context.Background(), time.Since(started))
	}
	return nil
}
