package main

import (
	"context"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	client "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"
	"github.com/spf13/cobra"

	"github.com/sjawhar/gestalt-coach/internal/audio"
	"github.com/sjawhar/gestalt-coach/internal/coach"
	"github.com/sjawhar/gestalt-coach/internal/config"
	"github.com/sjawhar/gestalt-coach/internal/llm"
	"github.com/sjawhar/gestalt-coach/internal/server"
	"github.com/sjawhar/gestalt-coach/internal/session"
	"github.com/sjawhar/gestalt-coach/internal/storage"
	"github.com/sjawhar/gestalt-coach/internal/takeout"
	"github.com/sjawhar/gestalt-coach/internal/transcribe"
	"github.com/sjawhar/gestalt-coach/internal/voice"
)

const framesPerBuffer = 1024

func newServeCmd(st *cliState) *cobra.Command {
	var addr string
	var noMic bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the web app and API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				st.cfg.ListenAddr = addr
			}
			return serve(cmd.Context(), st, !noMic)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides listen_addr)")
	cmd.Flags().BoolVar(&noMic, "no-mic", false, "run without the local microphone")
	return cmd
}

func serve(ctx context.Context, st *cliState, withMic bool) error {
	cfg := st.cfg
	log.Println("gestalt-coach: starting")
	for _, w := range st.warnings {
		log.Printf("warning: %s", w)
	}

	store, err := st.openStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	assets, err := fs.Sub(staticFiles, "static")
	if err != nil {
		return fmt.Errorf("static assets init failed: %w", err)
	}

	hub := server.NewHub()

	chat, err := newAgent(cfg, store, "coach", cfg.ChatModel, coach.CoachInstructions, 200)
	if err != nil {
		return err
	}
	analyst, err := newAgent(cfg, store, "analysis", cfg.AnalysisModel, coach.AnalysisInstructions, 500)
	if err != nil {
		return err
	}

	whisper := transcribe.NewWhisper(cfg.OpenAIAPIKey, cfg.TempDir)
	registry := session.NewDocumentRegistry(store, whisper, analyst, hub)

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var recorder *audio.Recorder
	if withMic {
		recorder = newRecorder(cfg, whisper, hub)
	}
	if recorder != nil {
		defer func() {
			_ = recorder.Close()
			_ = audio.Terminate()
		}()
	}

	exporter := takeout.NewExporter(cfg.ExportDir, newUploader(ctx, cfg))

	opts := server.Options{
		Static:         assets,
		Hub:            hub,
		Sessions:       registry,
		Transcriber:    whisper,
		Coach:          chat,
		Analyst:        analyst,
		Voice:          voice.NewClient(cfg.ElevenLabsAPIKey, cfg.ElevenLabsAgentID, voice.WithBaseURL(cfg.ElevenLabsBaseURL)),
		Takeout:        exporter,
		AllowedOrigins: cfg.AllowedOrigins,
		LoginPath:      cfg.LoginPath,
		AccessLog:      os.Stdout,
		Warnings:       func() []string { return st.warnings },
	}
	if recorder != nil {
		opts.Recorder = recorder
	}

	handler, err := server.Handler(opts)
	if err != nil {
		return fmt.Errorf("build http handler failed: %w", err)
	}

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errc <- err
		}
	}()
	log.Printf("gestalt-coach: web UI on http://%s", displayAddr(cfg.ListenAddr))

	select {
	case <-ctx.Done():
	case err := <-errc:
		return fmt.Errorf("http server error: %w", err)
	}

	log.Println("gestalt-coach: shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("warning: http shutdown failed: %v", err)
	}
	return nil
}

// newAgent builds a persona whose history is kept in store.
func newAgent(cfg config.Config, store *storage.SQLiteStore, name, model, instructions string, maxTokens int) (*coach.Agent, error) {
	provider, modelName, err := llm.ParseModel(model)
	if err != nil {
		return nil, fmt.Errorf("%s model: %w", name, err)
	}
	c, err := llm.NewClient(provider, cfg.APIKeyFor(provider), modelName,
		llm.WithTemperature(0.7),
		llm.WithMaxTokens(maxTokens),
	)
	if err != nil {
		return nil, fmt.Errorf("%s client: %w", name, err)
	}
	return coach.NewAgent(coach.Persona{Name: name, Instructions: instructions, Client: c}, store), nil
}

// newRecorder returns nil when PortAudio is unusable; the app then runs
// with uploads only.
func newRecorder(cfg config.Config, whisper *transcribe.Whisper, hub *server.Hub) *audio.Recorder {
	if err := audio.Initialize(); err != nil {
		log.Printf("warning: microphone unavailable, running uploads only: %v", err)
		return nil
	}

	opts := audio.Options{
		TempDir:       cfg.TempDir,
		SampleRate:    cfg.MicSampleRate,
		ChunkInterval: cfg.ParsedChunkInterval(),
		Open:          audio.PortAudioOpener(framesPerBuffer, cfg.MicSampleRates...),
		Chunks:        whisper,
		Listener:      hub,
	}
	if cfg.DeepgramAPIKey != "" {
		client.Init(client.InitLib{LogLevel: client.LogLevelDefault})
		opts.Stream = audio.NewDeepgramStream(cfg.DeepgramAPIKey)
	}
	return audio.NewRecorder(opts)
}

func newUploader(ctx context.Context, cfg config.Config) takeout.Uploader {
	if cfg.GDriveFolderID == "" {
		return nil
	}
	up, err := takeout.NewDriveUploader(ctx, cfg.GoogleCredentialsFile, cfg.GDriveFolderID)
	if err != nil {
		log.Printf("warning: gdrive upload disabled: %v", err)
		return nil
	}
	return up
}

func displayAddr(addr string) string {
	if len(addr) > 0 && addr[0] == ':' {
		return "127.0.0.1" + addr
	}
	return addr
}
