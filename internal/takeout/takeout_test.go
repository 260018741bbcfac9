package takeout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"github.com/sjawhar/gestalt-coach/internal/session"
	"github.com/sjawhar/gestalt-coach/internal/transcribe"
)

func sampleSession() session.SavedSession {
	created := time.Date(2026, 10, 6, 16, 30, 0, 0, time.UTC)
	return session.SavedSession{
		Metadata: session.Metadata{Name: "Tuesday Cars!", CreatedAt: created},
		Interactions: []session.Interaction{
			{
				ID:    "a",
				Title: "Interaction 1",
				Transcription: transcribe.Transcription{
					FullText: "Roll the car",
					Segments: []transcribe.Segment{{Text: "Roll the car", StartSeconds: 0, EndSeconds: 2.4}},
				},
				Analysis:  session.Analysis{Content: "Great narration. Try fewer questions next time."},
				CreatedAt: created,
			},
			{
				ID:         "b",
				Title:      "Car ramp",
				Analysis:   session.Analysis{Content: "You applied the feedback", IsFollowUp: true},
				CreatedAt:  created.Add(10 * time.Minute),
				IsFollowUp: true,
			},
		},
	}
}

func TestParseKind(t *testing.T) {
	for raw, want := range map[string]Kind{"": KindJournal, "Task": KindTask, " appointment ": KindAppointment} {
		got, err := ParseKind(raw)
		if err != nil || got != want {
			t.Fatalf("ParseKind(%q) = %q, %v", raw, got, err)
		}
	}
	if _, err := ParseKind("poster"); !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("expected ErrUnknownKind, got %v", err)
	}
}

func TestRenderJournal(t *testing.T) {
	doc, err := Render(KindJournal, sampleSession())
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	got := string(doc)

	for _, want := range []string{
		"# Tuesday Cars!",
		"2 interaction(s)",
		"## Interaction 1\n",
		"[0:00 - 0:02] Roll the car",
		"Great narration. Try fewer questions next time.",
		"## Car ramp (follow-up)",
		"_No speech captured._",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("journal missing %q:\n%s", want, got)
		}
	}
}

func TestRenderTasksAndAppointment(t *testing.T) {
	tasks, err := Render(KindTask, sampleSession())
	if err != nil {
		t.Fatalf("Render tasks failed: %v", err)
	}
	if !strings.Contains(string(tasks), "- [ ] Interaction 1: Great narration.\n") ||
		!strings.Contains(string(tasks), "- [ ] Car ramp: You applied the feedback\n") {
		t.Fatalf("unexpected tasks:\n%s", tasks)
	}

	notes, err := Render(KindAppointment, sampleSession())
	if err != nil {
		t.Fatalf("Render appointment failed: %v", err)
	}
	if strings.Contains(string(notes), "Roll the car") {
		t.Fatal("appointment notes must not include transcripts")
	}
	if !strings.Contains(string(notes), "**Car ramp**") {
		t.Fatalf("unexpected notes:\n%s", notes)
	}
}

type uploaderMock struct {
	mu   sync.Mutex
	docs []Document
	err  error
}

func (u *uploaderMock) Upload(_ context.Context, doc Document) (string, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.err != nil {
		return "", u.err
	}
	u.docs = append(u.docs, doc)
	return "https://docs.example/" + doc.Name, nil
}

func TestExporterWritesAndUploads(t *testing.T) {
	dir := t.TempDir()
	uploader := &uploaderMock{}
	exp := NewExporter(dir, uploader)
	exp.now = func() time.Time { return time.Date(2026, 10, 7, 8, 0, 0, 0, time.UTC) }

	item, err := exp.Export(context.Background(), KindJournal, sampleSession())
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if item.Path != filepath.Join(dir, "2026-10-07-tuesday-cars-journal.md") {
		t.Fatalf("unexpected path %q", item.Path)
	}
	if !item.Uploaded || len(uploader.docs) != 1 {
		t.Fatalf("expected one upload, got %+v %v", item, uploader.docs)
	}
	sent := uploader.docs[0]
	if sent.Name != "2026-10-07-tuesday-cars-journal" || sent.Kind != KindJournal || sent.Title != "Tuesday Cars! journal" {
		t.Fatalf("unexpected uploaded document %+v", sent)
	}
	if item.Link != "https://docs.example/2026-10-07-tuesday-cars-journal" {
		t.Fatalf("expected upload link on item, got %q", item.Link)
	}
	data, err := os.ReadFile(item.Path)
	if err != nil || !strings.HasPrefix(string(data), "# Tuesday Cars!") {
		t.Fatalf("unexpected file contents %q, %v", data, err)
	}
	if string(sent.Content) != string(data) {
		t.Fatal("uploaded content differs from the file on disk")
	}
}

func TestExporterKeepsFileWhenUploadFails(t *testing.T) {
	exp := NewExporter(t.TempDir(), &uploaderMock{err: errors.New("quota exceeded")})

	item, err := exp.Export(context.Background(), KindTask, sampleSession())
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if item.Uploaded {
		t.Fatal("expected upload failure to be reported")
	}
	if _, err := os.Stat(item.Path); err != nil {
		t.Fatalf("expected local file kept: %v", err)
	}
}

func TestSlugify(t *testing.T) {
	for in, want := range map[string]string{
		"Play Session - 10/6/2026 4:30:00 PM": "play-session-10-6-2026-4-30-00-pm",
		"  ":                                  "session",
		"Émile's day":                         "mile-s-day",
	} {
		if got := slugify(in); got != want {
			t.Fatalf("slugify(%q) = %q, want %q", in, got, want)
		}
	}
}

type driveCall struct {
	method string
	query  string
	body   string
}

// fakeDrive answers the Drive files API from memory: list finds docs created
// earlier, create assigns ids, update keeps them.
func fakeDrive(t *testing.T) (*drive.Service, func() []driveCall) {
	t.Helper()
	var (
		mu    sync.Mutex
		calls []driveCall
		names = map[string]string{}
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		defer mu.Unlock()
		call := driveCall{method: r.Method, query: r.URL.Query().Get("q"), body: string(body)}
		calls = append(calls, call)

		w.Header().Set("Content-Type", "application/json")
		switch r.Method {
		case http.MethodGet:
			var files []map[string]string
			for name, id := range names {
				if strings.Contains(call.query, "name = '"+name+"'") {
					files = append(files, map[string]string{"id": id})
				}
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"files": files})
		case http.MethodPost:
			id := fmt.Sprintf("doc-%d", len(names)+1)
			for _, name := range []string{"2026-10-07-tuesday-cars-journal", "2026-10-07-tuesday-cars-task"} {
				if strings.Contains(call.body, `"name":"`+name+`"`) {
					names[name] = id
				}
			}
			_ = json.NewEncoder(w).Encode(map[string]string{"id": id, "webViewLink": "https://docs.google.com/document/d/" + id})
		case http.MethodPatch:
			id := path.Base(r.URL.Path)
			_ = json.NewEncoder(w).Encode(map[string]string{"id": id, "webViewLink": "https://docs.google.com/document/d/" + id})
		default:
			http.Error(w, "unexpected method", http.StatusMethodNotAllowed)
		}
	}))
	t.Cleanup(server.Close)

	svc, err := drive.NewService(context.Background(),
		option.WithEndpoint(server.URL+"/"),
		option.WithHTTPClient(server.Client()),
		option.WithoutAuthentication(),
	)
	if err != nil {
		t.Fatalf("drive.NewService failed: %v", err)
	}
	return svc, func() []driveCall {
		mu.Lock()
		defer mu.Unlock()
		return append([]driveCall(nil), calls...)
	}
}

func TestDriveUploaderConvertsThenReplaces(t *testing.T) {
	svc, calls := fakeDrive(t)
	uploader := newDriveUploader(svc, "folder-1")
	doc := Document{
		Name:    "2026-10-07-tuesday-cars-journal",
		Title:   "Tuesday Cars! journal",
		Kind:    KindJournal,
		Content: []byte("# Tuesday Cars!\n\nRoll the car"),
	}

	link, err := uploader.Upload(context.Background(), doc)
	if err != nil {
		t.Fatalf("first Upload failed: %v", err)
	}
	if link != "https://docs.google.com/document/d/doc-1" {
		t.Fatalf("unexpected link %q", link)
	}

	// A fresh uploader has no memory of the first one; the folder lookup
	// still finds the doc.
	again := newDriveUploader(svc, "folder-1")
	if link, err = again.Upload(context.Background(), doc); err != nil {
		t.Fatalf("second Upload failed: %v", err)
	}
	if link != "https://docs.google.com/document/d/doc-1" {
		t.Fatalf("expected the same doc replaced, got %q", link)
	}

	got := calls()
	var methods []string
	for _, c := range got {
		methods = append(methods, c.method)
	}
	if strings.Join(methods, ",") != "GET,POST,GET,PATCH" {
		t.Fatalf("expected lookup, create, lookup, replace; got %v", methods)
	}
	if !strings.Contains(got[0].query, "'folder-1' in parents") || !strings.Contains(got[0].query, "trashed = false") {
		t.Fatalf("lookup not scoped to the folder: %q", got[0].query)
	}
	create := got[1].body
	for _, want := range []string{googleDocMIME, `"gestaltTakeout":"journal"`, "folder-1", "Roll the car", markdownMIME} {
		if !strings.Contains(create, want) {
			t.Fatalf("create request missing %q:\n%s", want, create)
		}
	}
	if !strings.Contains(got[3].body, "Roll the car") {
		t.Fatalf("replace request missing content:\n%s", got[3].body)
	}
}

func TestDriveUploaderSeparatesKinds(t *testing.T) {
	svc, calls := fakeDrive(t)
	uploader := newDriveUploader(svc, "folder-1")

	for _, kind := range []Kind{KindJournal, KindTask} {
		doc := Document{Name: "2026-10-07-tuesday-cars-" + string(kind), Kind: kind, Content: []byte("# x")}
		if _, err := uploader.Upload(context.Background(), doc); err != nil {
			t.Fatalf("Upload %s failed: %v", kind, err)
		}
	}
	creates := 0
	for _, c := range calls() {
		if c.method == http.MethodPost {
			creates++
		}
	}
	if creates != 2 {
		t.Fatalf("expected one doc per kind, got %d creates", creates)
	}
}

func TestQuoteQuery(t *testing.T) {
	if got := quoteQuery(`Emile's \ day`); got != `Emile\'s \\ day` {
		t.Fatalf("unexpected escape %q", got)
	}
}
