package takeout

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const (
	markdownMIME  = "text/markdown"
	googleDocMIME = "application/vnd.google-apps.document"
	// kindProperty tags uploaded docs with their takeout kind so they can be
	// filtered in Drive.
	kindProperty = "gestaltTakeout"
)

// DriveUploader converts takeouts into Google Docs inside one Drive folder.
// A takeout whose name already exists in the folder replaces that doc, so
// exporting the same session and kind twice keeps a single copy even across
// restarts.
type DriveUploader struct {
	files    *drive.FilesService
	folderID string
	mu       sync.Mutex
}

func NewDriveUploader(ctx context.Context, credPath, folderID string) (*DriveUploader, error) {
	creds, err := os.ReadFile(credPath)
	if err != nil {
		return nil, fmt.Errorf("read drive credentials %s: %w", credPath, err)
	}
	params := google.CredentialsParams{Scopes: []string{drive.DriveFileScope}}
	c, err := google.CredentialsFromJSONWithTypeAndParams(ctx, creds, google.ServiceAccount, params)
	if err != nil {
		return nil, fmt.Errorf("parse drive credentials: %w", err)
	}
	svc, err := drive.NewService(ctx, option.WithCredentials(c))
	if err != nil {
		return nil, fmt.Errorf("create drive service: %w", err)
	}
	return newDriveUploader(svc, folderID), nil
}

func newDriveUploader(svc *drive.Service, folderID string) *DriveUploader {
	return &DriveUploader{files: svc.Files, folderID: folderID}
}

// Upload sends doc as markdown for Drive to convert and returns the doc's
// web link.
func (u *DriveUploader) Upload(ctx context.Context, doc Document) (string, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	existing, err := u.find(ctx, doc.Name)
	if err != nil {
		return "", err
	}

	meta := &drive.File{
		Description:   doc.Title,
		AppProperties: map[string]string{kindProperty: string(doc.Kind)},
	}
	media := bytes.NewReader(doc.Content)
	contentType := googleapi.ContentType(markdownMIME)

	var f *drive.File
	if existing != "" {
		f, err = u.files.Update(existing, meta).
			Media(media, contentType).
			Fields("id", "webViewLink").
			Context(ctx).Do()
		if err != nil {
			return "", fmt.Errorf("replace drive doc %s: %w", doc.Name, err)
		}
		return f.WebViewLink, nil
	}

	meta.Name = doc.Name
	meta.MimeType = googleDocMIME
	meta.Parents = []string{u.folderID}
	f, err = u.files.Create(meta).
		Media(media, contentType).
		Fields("id", "webViewLink").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("create drive doc %s: %w", doc.Name, err)
	}
	return f.WebViewLink, nil
}

// find returns the id of a live doc called name in the folder, or "".
func (u *DriveUploader) find(ctx context.Context, name string) (string, error) {
	q := fmt.Sprintf("name = '%s' and '%s' in parents and trashed = false", quoteQuery(name), quoteQuery(u.folderID))
	list, err := u.files.List().Q(q).Fields("files(id)").PageSize(1).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("look up drive doc %s: %w", name, err)
	}
	if len(list.Files) == 0 {
		return "", nil
	}
	return list.Files[0].Id, nil
}

var queryEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`)

func quoteQuery(s string) string {
	return queryEscaper.Replace(s)
}
