// Package album provides the album sources a scan reads candidates from.
package album

import (
	"context"
	"fmt"

	"github.com/kozaktomas/photo-finder/internal/facematch"
)

// Item is one image of an album as listed by a source.
type Item struct {
	ID   string
	Name string
}

// Source lists and downloads album images. Implementations must be safe
// for concurrent Fetch calls.
type Source interface {
	// Kind returns the source name used in config and logs.
	Kind() string
	// ParseRef validates an album reference (id or link) and returns the
	// canonical id, or an error wrapping facematch.ErrInvalidAlbumReference.
	ParseRef(ref string) (string, error)
	// List returns every image item of the album, across all pages.
	List(ctx context.Context, albumID string) ([]Item, error)
	// Fetch downloads the original bytes of item.
	Fetch(ctx context.Context, item Item) ([]byte, error)
}

// Source kinds.
const (
	KindPhotoPrism = "photoprism"
	KindDrive      = "drive"
	KindDir        = "dir"
)

func invalidRef(ref, why string) error {
	return fmt.Errorf("%w: %q: %s", facematch.ErrInvalidAlbumReference, ref, why)
}
