package photoprism

import (
	"context"
	"net/url"
	"strconv"
)

// GetAlbum retrieves a single album by UID
func (pp *PhotoPrism) GetAlbum(ctx context.Context, albumUID string) (*Album, error) {
	return doGetJSON[Album](ctx, pp, "albums/"+url.PathEscape(albumUID))
}

// GetAlbums retrieves manual albums, optionally filtered by query.
func (pp *PhotoPrism) GetAlbums(ctx context.Context, count, offset int, query string) ([]Album, error) {
	params := url.Values{
		"count":  {strconv.Itoa(count)},
		"offset": {strconv.Itoa(offset)},
		"type":   {"album"},
		"order":  {"name"},
	}
	if query != "" {
		params.Set("q", query)
	}

	result, err := doGetJSON[[]Album](ctx, pp, "albums?"+params.Encode())
	if err != nil {
		return nil, err
	}
	return *result, nil
}

// GetAlbumPhotos retrieves one page of photos from a specific album
func (pp *PhotoPrism) GetAlbumPhotos(ctx context.Context, albumUID string, count, offset int) ([]Photo, error) {
	params := url.Values{
		"count":  {strconv.Itoa(count)},
		"offset": {strconv.Itoa(offset)},
		"s":      {albumUID},
	}
	result, err := doGetJSON[[]Photo](ctx, pp, "photos?"+params.Encode())
	if err != nil {
		return nil, err
	}
	return *result, nil
}
