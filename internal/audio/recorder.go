package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sjawhar/gestalt-coach/internal/transcribe"
)

const (
	defaultSampleRate    = 16000
	defaultChunkInterval = 5 * time.Second
)

type State string

const (
	StateIdle      State = "IDLE"
	StateRecording State = "RECORDING"
)

// ChunkTranscriber turns a short WAV chunk into interim text.
type ChunkTranscriber interface {
	TranscribeChunk(ctx context.Context, wav []byte) (string, error)
}

// LiveListener receives transcript text while a recording is in progress.
type LiveListener interface {
	LiveTranscript(text string, final bool)
}

type LiveListenerFunc func(text string, final bool)

func (f LiveListenerFunc) LiveTranscript(text string, final bool) { f(text, final) }

// LiveStream receives captured PCM as it arrives and reports transcripts to
// the listener itself.
type LiveStream interface {
	Open(ctx context.Context, sampleRate int, listener LiveListener) (io.WriteCloser, error)
}

type Options struct {
	TempDir       string
	SampleRate    int
	ChunkInterval time.Duration
	Open          Opener
	Chunks        ChunkTranscriber
	Stream        LiveStream
	Listener      LiveListener
}

// Recorder owns the microphone for one recording at a time.
type Recorder struct {
	tempDir       string
	sampleRate    int
	chunkInterval time.Duration
	open          Opener
	chunks        ChunkTranscriber
	stream        LiveStream
	listener      LiveListener

	mu      sync.Mutex
	state   State
	active  *capture
	pending bytes.Buffer

	now    func() time.Time
	wait   func(time.Duration)
	encode func(rawPath, outBase string, sampleRate int) (string, error)
}

type capture struct {
	mic        Microphone
	sampleRate int
	startedAt  time.Time
	rawPath    string
	rawFile    *os.File
	live       io.WriteCloser
	cancel     context.CancelFunc
	done       chan struct{}
	chunkDone  chan struct{}
	stopping   bool
}

func NewRecorder(opts Options) *Recorder {
	if opts.TempDir == "" {
		opts.TempDir = filepath.Join("data", "tmp")
	}
	if opts.SampleRate <= 0 {
		opts.SampleRate = defaultSampleRate
	}
	if opts.ChunkInterval <= 0 {
		opts.ChunkInterval = defaultChunkInterval
	}

	return &Recorder{
		tempDir:       opts.TempDir,
		sampleRate:    opts.SampleRate,
		chunkInterval: opts.ChunkInterval,
		open:          opts.Open,
		chunks:        opts.Chunks,
		stream:        opts.Stream,
		listener:      opts.Listener,
		state:         StateIdle,
		now:           time.Now,
		wait:          time.Sleep,
		encode:        encodeRecording,
	}
}

func (r *Recorder) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Elapsed is the duration of the recording in progress, or zero when idle.
func (r *Recorder) Elapsed() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active == nil {
		return 0
	}
	return r.now().Sub(r.active.startedAt)
}

// Start opens the microphone and begins capturing. Capture outlives ctx's
// cancellation and runs until Stop, Cancel or Close.
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == StateRecording {
		return ErrAlreadyRecording
	}
	if r.open == nil {
		return &PermissionError{Err: ErrNoMicrophone}
	}

	mic, err := r.open(r.sampleRate)
	if err != nil {
		return &PermissionError{Err: err}
	}
	if err := mic.Start(); err != nil {
		_ = mic.Close()
		return &PermissionError{Err: err}
	}

	sampleRate := mic.SampleRate()
	if sampleRate <= 0 {
		sampleRate = r.sampleRate
	}

	if err := os.MkdirAll(r.tempDir, 0o755); err != nil {
		releaseMic(mic)
		return fmt.Errorf("create temp directory: %w", err)
	}
	rawFile, err := os.CreateTemp(r.tempDir, "recording-*.pcm")
	if err != nil {
		releaseMic(mic)
		return fmt.Errorf("open raw pcm file: %w", err)
	}

	captureCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c := &capture{
		mic:        mic,
		sampleRate: sampleRate,
		startedAt:  r.now(),
		rawPath:    rawFile.Name(),
		rawFile:    rawFile,
		cancel:     cancel,
		done:       make(chan struct{}),
		chunkDone:  make(chan struct{}),
	}

	if r.stream != nil && r.listener != nil {
		live, err := r.stream.Open(captureCtx, sampleRate, r.listener)
		if err != nil {
			slog.Warn("audio: live stream unavailable", "error", err)
		} else {
			c.live = live
		}
	}

	r.pending.Reset()
	r.active = c
	r.state = StateRecording

	go func() {
		defer close(c.done)
		streamWithRetry(captureCtx, mic, &captureWriter{recorder: r, capture: c}, r.wait)
	}()

	if r.chunks != nil && r.listener != nil && c.live == nil {
		go r.chunkLoop(captureCtx, c)
	} else {
		close(c.chunkDone)
	}

	slog.Info("audio: recording started", "sample_rate", sampleRate)
	return nil
}

// Stop ends the recording in progress and returns the finished artifact.
func (r *Recorder) Stop(ctx context.Context) (transcribe.Artifact, error) {
	c, err := r.detach()
	if err != nil {
		return transcribe.Artifact{}, err
	}
	defer removeQuietly(c.rawPath)

	if err := c.rawFile.Close(); err != nil {
		return transcribe.Artifact{}, fmt.Errorf("close raw pcm file: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return transcribe.Artifact{}, err
	}

	outBase := strings.TrimSuffix(c.rawPath, filepath.Ext(c.rawPath))
	path, err := r.encode(c.rawPath, outBase, c.sampleRate)
	if err != nil {
		return transcribe.Artifact{}, err
	}
	defer removeQuietly(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return transcribe.Artifact{}, fmt.Errorf("read encoded recording: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	contentType := "audio/wav"
	if ext == ".mp3" {
		contentType = "audio/mpeg"
	}

	slog.Info("audio: recording stopped", "bytes", len(data), "duration", r.now().Sub(c.startedAt))
	return transcribe.Artifact{Name: "recording" + ext, ContentType: contentType, Data: data}, nil
}

// Cancel ends the recording in progress and discards what was captured.
func (r *Recorder) Cancel() error {
	c, err := r.detach()
	if err != nil {
		return err
	}
	_ = c.rawFile.Close()
	removeQuietly(c.rawPath)
	slog.Info("audio: recording cancelled")
	return nil
}

// Close releases the microphone if a recording is still in progress.
func (r *Recorder) Close() error {
	if err := r.Cancel(); err != nil && !errors.Is(err, ErrNotRecording) {
		return err
	}
	return nil
}

// detach halts capture and returns the state of the recording that was in
// progress. The recorder is idle afterwards.
func (r *Recorder) detach() (*capture, error) {
	r.mu.Lock()
	c := r.active
	if r.state != StateRecording || c == nil || c.stopping {
		r.mu.Unlock()
		return nil, ErrNotRecording
	}
	c.stopping = true
	r.mu.Unlock()

	c.cancel()
	if err := c.mic.Stop(); err != nil {
		slog.Warn("audio: microphone stop failed", "error", err)
	}
	<-c.done
	<-c.chunkDone
	if err := c.mic.Close(); err != nil {
		slog.Warn("audio: microphone close failed", "error", err)
	}

	r.mu.Lock()
	r.active = nil
	r.state = StateIdle
	live := c.live
	c.live = nil
	r.pending.Reset()
	r.mu.Unlock()

	if live != nil {
		if err := live.Close(); err != nil {
			slog.Warn("audio: live stream close failed", "error", err)
		}
	}
	return c, nil
}

func (r *Recorder) writePCM(c *capture, data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active != c {
		return nil
	}

	if _, err := c.rawFile.Write(data); err != nil {
		return fmt.Errorf("write raw pcm bytes: %w", err)
	}
	if r.chunks != nil {
		r.pending.Write(data)
	}
	if c.live != nil {
		if _, err := c.live.Write(data); err != nil {
			slog.Warn("audio: live stream write failed, disabling live transcript", "error", err)
			_ = c.live.Close()
			c.live = nil
		}
	}
	return nil
}

func (r *Recorder) takePending() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pending.Len() == 0 {
		return nil
	}
	out := bytes.Clone(r.pending.Bytes())
	r.pending.Reset()
	return out
}

func (r *Recorder) chunkLoop(ctx context.Context, c *capture) {
	defer close(c.chunkDone)

	ticker := time.NewTicker(r.chunkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.emitChunk(ctx, c.sampleRate)
		}
	}
}

func (r *Recorder) emitChunk(ctx context.Context, sampleRate int) {
	pcm := r.takePending()
	if len(pcm) == 0 {
		return
	}

	wav, err := wavBytes(pcm, sampleRate)
	if err != nil {
		slog.Warn("audio: chunk encoding failed", "error", err)
		return
	}

	text, err := r.chunks.TranscribeChunk(ctx, wav)
	if err != nil {
		if ctx.Err() == nil {
			slog.Warn("audio: chunk transcription failed", "error", err)
		}
		return
	}
	if text = strings.TrimSpace(text); text != "" {
		r.listener.LiveTranscript(text, false)
	}
}

type captureWriter struct {
	recorder *Recorder
	capture  *capture
}

func (w *captureWriter) Write(p []byte) (int, error) {
	if err := w.recorder.writePCM(w.capture, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// streamWithRetry keeps the microphone streaming into w, restarting after
// input overflows, until ctx is done or the stream fails.
func streamWithRetry(ctx context.Context, mic Microphone, w io.Writer, wait func(time.Duration)) {
	for {
		if ctx.Err() != nil {
			return
		}

		err := mic.Stream(w)
		if err == nil || ctx.Err() != nil {
			return
		}

		if strings.Contains(strings.ToLower(err.Error()), "overflow") {
			slog.Warn("audio: mic input overflow, restarting stream")
			wait(250 * time.Millisecond)
			continue
		}

		slog.Error("audio: mic stream error", "error", err)
		return
	}
}

func releaseMic(mic Microphone) {
	_ = mic.Stop()
	_ = mic.Close()
}

func removeQuietly(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("audio: temp file cleanup failed", "path", path, "error", err)
	}
}
