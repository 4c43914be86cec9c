package facematch

import "errors"

var (
	// ErrDecode marks image bytes that could not be decoded.
	ErrDecode = errors.New("cannot decode image")
	// ErrNoFaceDetected is returned when the reference capture has no face.
	ErrNoFaceDetected = errors.New("no face detected in reference image")
	// ErrEncoding marks a face region that could not be turned into an embedding.
	ErrEncoding = errors.New("cannot encode face")
	// ErrAlbumSource wraps failures of the album listing or download.
	ErrAlbumSource = errors.New("album source failed")
	// ErrInvalidAlbumReference marks a malformed album id or link.
	ErrInvalidAlbumReference = errors.New("invalid album reference")
	// ErrFaceBackend marks a detector that cannot serve any image, such as an
	// unreachable embedding service. It aborts a running scan.
	ErrFaceBackend = errors.New("face backend unavailable")
)

// IsItemError reports whether err only affects a single candidate. Any
// other error seen while classifying a candidate aborts the scan.
func IsItemError(err error) bool {
	return errors.Is(err, ErrDecode) || errors.Is(err, ErrEncoding)
}
