package album

import (
	"context"
	"regexp"
	"strings"

	"github.com/kozaktomas/photo-finder/internal/constants"
	"github.com/kozaktomas/photo-finder/internal/logger"
	"github.com/kozaktomas/photo-finder/internal/photoprism"
)

var photoprismUIDPattern = regexp.MustCompile(`^[a-z0-9]{16}$`)

// PhotoPrismSource reads albums from a PhotoPrism instance.
type PhotoPrismSource struct {
	pp       *photoprism.PhotoPrism
	pageSize int
}

// NewPhotoPrismSource wraps an authenticated client.
func NewPhotoPrismSource(pp *photoprism.PhotoPrism) *PhotoPrismSource {
	return &PhotoPrismSource{pp: pp, pageSize: constants.DefaultPageSize}
}

func (s *PhotoPrismSource) Kind() string { return KindPhotoPrism }

// ParseRef accepts an album UID or a PhotoPrism album link
// (https://photos.example.com/library/albums/<uid>/view).
func (s *PhotoPrismSource) ParseRef(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if _, rest, ok := strings.Cut(ref, "/albums/"); ok {
		ref, _, _ = strings.Cut(rest, "/")
		ref, _, _ = strings.Cut(ref, "?")
	}
	if !photoprismUIDPattern.MatchString(ref) {
		return "", invalidRef(ref, "not a PhotoPrism album UID")
	}
	return ref, nil
}

// List pages through the album. Videos are skipped. An album PhotoPrism
// does not know is an invalid reference rather than a source failure.
func (s *PhotoPrismSource) List(ctx context.Context, albumID string) ([]Item, error) {
	a, err := s.pp.GetAlbum(ctx, albumID)
	if photoprism.IsNotFoundError(err) {
		return nil, invalidRef(albumID, "album not found")
	}
	if err != nil {
		return nil, err
	}
	logger.Debug("listing PhotoPrism album",
		logger.LoggerOptions{Key: "album", Data: a.Title},
		logger.LoggerOptions{Key: "photos", Data: a.PhotoCount})

	var items []Item
	for offset := 0; ; offset += s.pageSize {
		photos, err := s.pp.GetAlbumPhotos(ctx, albumID, s.pageSize, offset)
		if err != nil {
			return nil, err
		}
		for _, p := range photos {
			if p.Type == "video" {
				continue
			}
			items = append(items, Item{ID: p.UID, Name: p.DisplayName()})
		}
		if len(photos) < s.pageSize {
			return items, nil
		}
	}
}

func (s *PhotoPrismSource) Fetch(ctx context.Context, item Item) ([]byte, error) {
	data, _, err := s.pp.GetPhotoDownload(ctx, item.ID)
	return data, err
}
