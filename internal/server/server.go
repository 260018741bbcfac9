package server

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/handlers"

	"github.com/sjawhar/gestalt-coach/internal/audio"
	"github.com/sjawhar/gestalt-coach/internal/session"
	"github.com/sjawhar/gestalt-coach/internal/takeout"
	"github.com/sjawhar/gestalt-coach/internal/transcribe"
)

// OwnerHeader carries the household id set by the gateway in front of the
// server. Requests without it share the default household.
const OwnerHeader = "X-User-ID"

// TokenCookie must be present for the protected pages to render.
const TokenCookie = "firebase-token"

const defaultMaxUploadBytes = 100 << 20

type Transcriber interface {
	Transcribe(ctx context.Context, artifact transcribe.Artifact) (transcribe.Transcription, error)
}

type Replier interface {
	Reply(ctx context.Context, conversationID, message string) (string, error)
}

type SignedURLProvider interface {
	SignedURL(ctx context.Context) (string, error)
}

type Recorder interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) (transcribe.Artifact, error)
	Cancel() error
	State() audio.State
	Elapsed() time.Duration
}

type Sessions interface {
	Get(ctx context.Context, owner string) (*session.Manager, error)
}

type Exporter interface {
	Export(ctx context.Context, kind takeout.Kind, saved session.SavedSession) (takeout.Item, error)
}

// Options wires the handler to its collaborators. Recorder and Takeout may
// be nil; their routes then answer 503.
type Options struct {
	Static      fs.FS
	Hub         *Hub
	Sessions    Sessions
	Transcriber Transcriber
	Coach       Replier
	Analyst     Replier
	Voice       SignedURLProvider
	Recorder    Recorder
	Takeout     Exporter

	AllowedOrigins []string
	LoginPath      string
	MaxUploadBytes int64
	// AccessLog receives one combined-format line per request when set.
	AccessLog io.Writer

	Warnings func() []string
	Owner    func(*http.Request) string
	NewID    func() string
	Now      func() time.Time
}

func (o *Options) defaults() error {
	if o.Static == nil {
		return errors.New("static assets are required")
	}
	if o.Hub == nil {
		o.Hub = NewHub()
	}
	if o.Sessions == nil {
		return errors.New("session registry is required")
	}
	if o.LoginPath == "" {
		o.LoginPath = "/auth/login"
	}
	if o.MaxUploadBytes <= 0 {
		o.MaxUploadBytes = defaultMaxUploadBytes
	}
	if o.Owner == nil {
		o.Owner = ownerFromHeader
	}
	if o.NewID == nil {
		o.NewID = uuid.NewString
	}
	if o.Now == nil {
		o.Now = func() time.Time { return time.Now().UTC() }
	}
	return nil
}

func Handler(opts Options) (http.Handler, error) {
	if err := opts.defaults(); err != nil {
		return nil, err
	}

	mux := http.NewServeMux()

	registerWSRoute(mux, opts.Hub, opts.Owner, opts.AllowedOrigins)
	registerAPIRoutes(mux, opts)
	registerSessionRoutes(mux, opts)

	spa := serveSPA(opts.Static)
	for _, prefix := range []string{"/coach", "/analyzer"} {
		protected := requireToken(opts.LoginPath, http.HandlerFunc(spa))
		mux.Handle(prefix, protected)
		mux.Handle(prefix+"/", protected)
	}
	mux.HandleFunc("/", spa)

	var h http.Handler = mux
	if len(opts.AllowedOrigins) > 0 {
		h = handlers.CORS(
			handlers.AllowedOrigins(opts.AllowedOrigins),
			handlers.AllowedMethods([]string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"}),
			handlers.AllowedHeaders([]string{"Content-Type", OwnerHeader, "Authorization"}),
			handlers.AllowCredentials(),
		)(h)
	}
	if opts.AccessLog != nil {
		h = handlers.CombinedLoggingHandler(opts.AccessLog, h)
	}
	return h, nil
}

// requireToken redirects to loginPath unless the auth cookie is present.
// The token itself is checked by the identity provider, not here.
func requireToken(loginPath string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie(TokenCookie)
		if err != nil || c.Value == "" {
			http.Redirect(w, r, loginPath, http.StatusTemporaryRedirect)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func ownerFromHeader(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(OwnerHeader))
}

func serveSPA(staticFS fs.FS) func(http.ResponseWriter, *http.Request) {
	fileServer := http.FileServer(http.FS(staticFS))
	return func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") || r.URL.Path == "/ws" {
			http.NotFound(w, r)
			return
		}

		if r.URL.Path == "/manifest.json" || r.URL.Path == "/manifest.webmanifest" {
			w.Header().Set("Content-Type", "application/manifest+json")
		}

		cleanPath := path.Clean(strings.TrimPrefix(r.URL.Path, "/"))
		if cleanPath == "." || cleanPath == "" {
			r.URL.Path = "/"
		} else if !strings.Contains(cleanPath, ".") {
			http.ServeFileFS(w, r, staticFS, "index.html")
			return
		} else {
			r.URL.Path = "/" + cleanPath
		}

		fileServer.ServeHTTP(w, r)
	}
}
