package photoprism

import (
	"context"
	"errors"
	"fmt"
	"net/url"
)

// GetPhotoDetails retrieves full photo details including all metadata
func (pp *PhotoPrism) GetPhotoDetails(ctx context.Context, photoUID string) (map[string]any, error) {
	result, err := doGetJSON[map[string]any](ctx, pp, "photos/"+url.PathEscape(photoUID))
	if err != nil {
		return nil, err
	}
	return *result, nil
}

// findPrimaryFile finds the primary file map from the Files array in photo details.
func findPrimaryFile(files []any) map[string]any {
	for _, f := range files {
		file, ok := f.(map[string]any)
		if !ok {
			continue
		}
		if primary, _ := file["Primary"].(bool); primary {
			return file
		}
	}
	if first, ok := files[0].(map[string]any); ok {
		return first
	}
	return nil
}

// findPrimaryFileHash extracts the hash of the primary file from photo details.
func findPrimaryFileHash(details map[string]any) string {
	files, ok := details["Files"].([]any)
	if !ok || len(files) == 0 {
		return ""
	}
	primaryFile := findPrimaryFile(files)
	if primaryFile == nil {
		return ""
	}
	hash, _ := primaryFile["Hash"].(string)
	return hash
}

// GetPhotoDownload downloads the original primary file of a photo.
// Returns the file bytes and the content type.
func (pp *PhotoPrism) GetPhotoDownload(ctx context.Context, photoUID string) ([]byte, string, error) {
	details, err := pp.GetPhotoDetails(ctx, photoUID)
	if err != nil {
		return nil, "", fmt.Errorf("could not get photo details: %w", err)
	}

	fileHash := findPrimaryFileHash(details)
	if fileHash == "" {
		return nil, "", errors.New("could not find file hash for photo")
	}
	return pp.GetFileDownload(ctx, fileHash)
}

// GetFileDownload downloads a file by hash via /api/v1/dl/{hash} using the download token.
func (pp *PhotoPrism) GetFileDownload(ctx context.Context, fileHash string) ([]byte, string, error) {
	u := pp.parsedURL.JoinPath("dl", fileHash)
	u.RawQuery = url.Values{"t": {pp.downloadToken}}.Encode()
	return doGetRaw(ctx, pp, u.String())
}
