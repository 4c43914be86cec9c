package album

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

var imageExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".bmp", ".webp", ".tif", ".tiff"}

// DirSource reads albums from local directories. When Root is set, album
// references are resolved inside it and may not escape it.
type DirSource struct {
	Root string
}

func (s *DirSource) Kind() string { return KindDir }

func (s *DirSource) ParseRef(ref string) (string, error) {
	if strings.TrimSpace(ref) == "" {
		return "", invalidRef(ref, "empty directory")
	}

	path := filepath.Clean(ref)
	if s.Root != "" {
		if filepath.IsAbs(path) || path == ".." || strings.HasPrefix(path, ".."+string(filepath.Separator)) {
			return "", invalidRef(ref, "outside of the album root")
		}
		path = filepath.Join(s.Root, path)
	}

	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return "", invalidRef(ref, "not a directory")
	}
	return path, nil
}

// List returns the image files of the directory sorted by name.
// Subdirectories are not descended into.
func (s *DirSource) List(_ context.Context, albumID string) ([]Item, error) {
	entries, err := os.ReadDir(albumID)
	if err != nil {
		return nil, err
	}

	var items []Item
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		if !slices.Contains(imageExtensions, strings.ToLower(filepath.Ext(e.Name()))) {
			continue
		}
		items = append(items, Item{ID: filepath.Join(albumID, e.Name()), Name: e.Name()})
	}
	return items, nil
}

func (s *DirSource) Fetch(ctx context.Context, item Item) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return os.ReadFile(item.ID)
}
