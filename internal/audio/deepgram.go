package audio

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"

	api "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket/interfaces"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	client "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"
)

type liveConn interface {
	io.Writer
	Stop()
}

// DeepgramStream sends captured PCM to Deepgram's live API and forwards
// interim and final transcripts to the listener.
type DeepgramStream struct {
	apiKey   string
	model    string
	language string

	connect func(ctx context.Context, apiKey string, opts *interfaces.LiveTranscriptionOptions, cb *deepgramCallback) (liveConn, error)
}

func NewDeepgramStream(apiKey string) *DeepgramStream {
	return &DeepgramStream{
		apiKey:   apiKey,
		model:    "nova-2",
		language: "en-US",
		connect:  dialDeepgram,
	}
}

func (d *DeepgramStream) Open(ctx context.Context, sampleRate int, listener LiveListener) (io.WriteCloser, error) {
	tOptions := &interfaces.LiveTranscriptionOptions{
		Model:          d.model,
		Language:       d.language,
		Diarize:        true,
		Punctuate:      true,
		SmartFormat:    true,
		InterimResults: true,
		Encoding:       "linear16",
		SampleRate:     sampleRate,
		Channels:       1,
	}

	conn, err := d.connect(ctx, d.apiKey, tOptions, &deepgramCallback{listener: listener})
	if err != nil {
		return nil, err
	}
	return &deepgramWriter{conn: conn}, nil
}

func dialDeepgram(ctx context.Context, apiKey string, tOptions *interfaces.LiveTranscriptionOptions, cb *deepgramCallback) (liveConn, error) {
	cOptions := &interfaces.ClientOptions{EnableKeepAlive: true}
	dgClient, err := client.NewWSUsingCallback(ctx, apiKey, cOptions, tOptions, cb)
	if err != nil {
		return nil, err
	}
	if ok := dgClient.Connect(); !ok {
		return nil, errors.New("deepgram connect failed")
	}
	return dgClient, nil
}

type deepgramWriter struct {
	conn liveConn
}

func (w *deepgramWriter) Write(p []byte) (int, error) { return w.conn.Write(p) }

func (w *deepgramWriter) Close() error {
	w.conn.Stop()
	return nil
}

type deepgramCallback struct {
	listener LiveListener
}

func (c *deepgramCallback) Message(mr *api.MessageResponse) error {
	if len(mr.Channel.Alternatives) == 0 {
		return nil
	}
	text := strings.TrimSpace(mr.Channel.Alternatives[0].Transcript)
	if text == "" {
		return nil
	}
	c.listener.LiveTranscript(text, mr.IsFinal)
	return nil
}

func (c *deepgramCallback) Open(*api.OpenResponse) error {
	slog.Info("audio: connected to Deepgram")
	return nil
}

func (c *deepgramCallback) Metadata(*api.MetadataResponse) error { return nil }

func (c *deepgramCallback) SpeechStarted(*api.SpeechStartedResponse) error { return nil }

func (c *deepgramCallback) UtteranceEnd(*api.UtteranceEndResponse) error { return nil }

func (c *deepgramCallback) Close(*api.CloseResponse) error {
	slog.Info("audio: disconnected from Deepgram")
	return nil
}

func (c *deepgramCallback) Error(er *api.ErrorResponse) error {
	slog.Warn("audio: deepgram error", "code", er.ErrCode, "description", er.Description)
	return nil
}

func (c *deepgramCallback) UnhandledEvent([]byte) error { return nil }
