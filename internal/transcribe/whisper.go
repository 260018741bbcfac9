package transcribe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// Whisper transcribes artifacts with the OpenAI audio transcription API.
type Whisper struct {
	client  *openai.Client
	model   string
	tempDir string

	extract func(ctx context.Context, inputPath, outputPath string) error
}

// NewWhisper builds a Whisper transcriber using the default OpenAI endpoint.
func NewWhisper(apiKey, tempDir string) *Whisper {
	return NewWhisperWithConfig(openai.DefaultConfig(apiKey), tempDir)
}

func NewWhisperWithConfig(config openai.ClientConfig, tempDir string) *Whisper {
	if strings.TrimSpace(tempDir) == "" {
		tempDir = filepath.Join("data", "tmp")
	}
	return &Whisper{
		client:  openai.NewClientWithConfig(config),
		model:   openai.Whisper1,
		tempDir: tempDir,
		extract: extractAudio,
	}
}

// Transcribe submits the artifact and returns its segmented transcription.
// Temporary files created for video extraction are removed on every path.
func (w *Whisper) Transcribe(ctx context.Context, artifact Artifact) (Transcription, error) {
	if len(artifact.Data) == 0 {
		return Transcription{}, &TranscriptionError{Op: "validate", Err: ErrMissingFile}
	}

	name := artifact.Name
	if name == "" {
		name = "recording.webm"
	}
	data := artifact.Data

	if artifact.IsVideo() {
		extracted, err := w.extractFromVideo(ctx, artifact)
		if err != nil {
			return Transcription{}, &TranscriptionError{Op: "extract audio", Err: err}
		}
		data = extracted
		name = strings.TrimSuffix(filepath.Base(name), filepath.Ext(name)) + ".mp3"
	}

	resp, err := w.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    w.model,
		FilePath: name,
		Reader:   bytes.NewReader(data),
		Format:   openai.AudioResponseFormatVerboseJSON,
		TimestampGranularities: []openai.TranscriptionTimestampGranularity{
			openai.TranscriptionTimestampGranularitySegment,
		},
	})
	if err != nil {
		return Transcription{}, &TranscriptionError{Op: "whisper", Err: err}
	}

	out := Transcription{FullText: strings.TrimSpace(resp.Text), Segments: make([]Segment, 0, len(resp.Segments))}
	for _, seg := range resp.Segments {
		out.Segments = append(out.Segments, Segment{
			Text:         strings.TrimSpace(seg.Text),
			StartSeconds: seg.Start,
			EndSeconds:   seg.End,
		})
	}
	return out, nil
}

func (w *Whisper) extractFromVideo(ctx context.Context, artifact Artifact) (data []byte, err error) {
	if err := os.MkdirAll(w.tempDir, 0o755); err != nil {
		return nil, fmt.Errorf("create temp directory: %w", err)
	}

	stamp := time.Now().UnixNano()
	inputPath := filepath.Join(w.tempDir, fmt.Sprintf("temp-%d-input-%s", stamp, filepath.Base(artifact.Name)))
	outputPath := filepath.Join(w.tempDir, fmt.Sprintf("temp-%d-audio.mp3", stamp))
	defer func() {
		for _, p := range []string{inputPath, outputPath} {
			if rmErr := os.Remove(p); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
				slog.Warn("transcribe: temp file cleanup failed", "path", p, "error", rmErr)
			}
		}
	}()

	if err := os.WriteFile(inputPath, artifact.Data, 0o644); err != nil {
		return nil, fmt.Errorf("write temp input: %w", err)
	}
	if err := w.extract(ctx, inputPath, outputPath); err != nil {
		return nil, err
	}

	data, err = os.ReadFile(outputPath)
	if err != nil {
		return nil, fmt.Errorf("read extracted audio: %w", err)
	}
	return data, nil
}

// TranscribeChunk returns the plain text of a short WAV chunk. It backs the
// live transcript shown while a recording is in progress.
func (w *Whisper) TranscribeChunk(ctx context.Context, wav []byte) (string, error) {
	if len(wav) == 0 {
		return "", nil
	}
	resp, err := w.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    w.model,
		FilePath: "chunk.wav",
		Reader:   bytes.NewReader(wav),
		Format:   openai.AudioResponseFormatJSON,
	})
	if err != nil {
		return "", &TranscriptionError{Op: "whisper chunk", Err: err}
	}
	return strings.TrimSpace(resp.Text), nil
}
