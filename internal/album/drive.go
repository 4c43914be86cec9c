package album

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/kozaktomas/photo-finder/internal/constants"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

var driveIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{10,}$`)

// ParseDriveFolderRef extracts the folder id from a Google Drive link.
// Accepted forms:
//
//	https://drive.google.com/drive/folders/<id>?usp=sharing
//	https://drive.google.com/file/d/<id>/view
//	https://drive.google.com/open?id=<id>
//	<id>
func ParseDriveFolderRef(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	id := ref

	switch {
	case strings.Contains(ref, "folders/"):
		_, id, _ = strings.Cut(ref, "folders/")
		id, _, _ = strings.Cut(id, "?")
		id, _, _ = strings.Cut(id, "/")
	case strings.Contains(ref, "/d/"):
		_, id, _ = strings.Cut(ref, "/d/")
		id, _, _ = strings.Cut(id, "/")
		id, _, _ = strings.Cut(id, "?")
	case strings.Contains(ref, "id="):
		u, err := url.Parse(ref)
		if err != nil {
			return "", invalidRef(ref, "malformed link")
		}
		id = u.Query().Get("id")
	}

	if !driveIDPattern.MatchString(id) {
		return "", invalidRef(ref, "no Google Drive folder id found")
	}
	return id, nil
}

// DriveSource reads image files of a Google Drive folder.
type DriveSource struct {
	srv      *drive.Service
	pageSize int64
}

// NewDriveSource creates a source using the given HTTP client, normally one
// returned by DriveCredentials.Client. Extra options are passed to the
// Drive service, tests use them to point at a fake endpoint.
func NewDriveSource(ctx context.Context, client *http.Client, opts ...option.ClientOption) (*DriveSource, error) {
	opts = append([]option.ClientOption{option.WithHTTPClient(client)}, opts...)
	srv, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating drive service: %w", err)
	}
	return &DriveSource{srv: srv, pageSize: constants.DrivePageSize}, nil
}

func (s *DriveSource) Kind() string { return KindDrive }

func (s *DriveSource) ParseRef(ref string) (string, error) {
	return ParseDriveFolderRef(ref)
}

// List returns all image files directly inside the folder, following
// nextPageToken until the listing is exhausted.
func (s *DriveSource) List(ctx context.Context, folderID string) ([]Item, error) {
	q := fmt.Sprintf("'%s' in parents and mimeType contains 'image/' and trashed = false", folderID)

	var items []Item
	pageToken := ""
	for {
		call := s.srv.Files.List().
			Q(q).
			PageSize(s.pageSize).
			Fields("nextPageToken, files(id, name)").
			SupportsAllDrives(true).
			IncludeItemsFromAllDrives(true).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		res, err := call.Do()
		if err != nil {
			return nil, err
		}
		for _, f := range res.Files {
			items = append(items, Item{ID: f.Id, Name: f.Name})
		}

		if res.NextPageToken == "" {
			return items, nil
		}
		pageToken = res.NextPageToken
	}
}

// Fetch downloads the file content unchanged.
func (s *DriveSource) Fetch(ctx context.Context, item Item) ([]byte, error) {
	resp, err := s.srv.Files.Get(item.ID).SupportsAllDrives(true).Context(ctx).Download()
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", item.Name, err)
	}
	return data, nil
}
