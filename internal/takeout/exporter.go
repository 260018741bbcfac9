package takeout

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/sjawhar/gestalt-coach/internal/session"
)

// Document is a rendered takeout handed to an Uploader.
type Document struct {
	// Name is the file name without its extension.
	Name    string
	Title   string
	Kind    Kind
	Content []byte
}

// Uploader copies a finished takeout somewhere outside the host and returns
// a link to it, if the destination has one.
type Uploader interface {
	Upload(ctx context.Context, doc Document) (string, error)
}

// Item describes one takeout written to disk.
type Item struct {
	Kind     Kind      `json:"type"`
	Title    string    `json:"title"`
	Path     string    `json:"path"`
	Uploaded bool      `json:"uploaded"`
	Link     string    `json:"link,omitempty"`
	Created  time.Time `json:"date"`
}

type Exporter struct {
	dir      string
	uploader Uploader

	mu  sync.Mutex
	now func() time.Time
}

// NewExporter writes takeouts under dir. uploader may be nil.
func NewExporter(dir string, uploader Uploader) *Exporter {
	if dir == "" {
		dir = filepath.Join("data", "takeout")
	}
	return &Exporter{dir: dir, uploader: uploader, now: time.Now}
}

// Export renders s as kind, writes it to the export directory and uploads it
// when an uploader is configured. Upload failures are logged; the local file
// is kept either way.
func (e *Exporter) Export(ctx context.Context, kind Kind, s session.SavedSession) (Item, error) {
	doc, err := Render(kind, s)
	if err != nil {
		return Item{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return Item{}, fmt.Errorf("mkdir %s: %w", e.dir, err)
	}

	created := e.now()
	name := fmt.Sprintf("%s-%s-%s.md", created.Format("2006-01-02"), slugify(s.Metadata.Name), kind)
	path := filepath.Join(e.dir, name)
	if err := os.WriteFile(path, doc, 0o644); err != nil {
		return Item{}, fmt.Errorf("write %s: %w", path, err)
	}

	item := Item{
		Kind:    kind,
		Title:   fmt.Sprintf("%s %s", s.Metadata.Name, kind),
		Path:    path,
		Created: created,
	}

	if e.uploader != nil {
		link, err := e.uploader.Upload(ctx, Document{
			Name:    strings.TrimSuffix(name, ".md"),
			Title:   item.Title,
			Kind:    kind,
			Content: doc,
		})
		if err != nil {
			slog.Warn("takeout: upload failed", "path", path, "error", err)
		} else {
			item.Uploaded, item.Link = true, link
		}
	}

	slog.Info("takeout: exported", "kind", kind, "path", path, "uploaded", item.Uploaded)
	return item, nil
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

func slugify(name string) string {
	slug := strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(name), "-"), "-")
	if slug == "" {
		return "session"
	}
	return slug
}
