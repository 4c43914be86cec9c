package faces

import (
	"context"
	"fmt"

	"github.com/kozaktomas/photo-finder/internal/facematch"
)

// Detection is one face reported by a backend, in the coordinates of the
// image passed to Detect.
type Detection struct {
	Region     facematch.FaceRegion
	Descriptor facematch.Embedding
	Score      float64
}

// Backend detects faces and computes their descriptors.
// Implementations must be safe for concurrent use.
type Backend interface {
	Detect(ctx context.Context, img *Image, model facematch.DetectionModel) ([]Detection, error)
	Close() error
}

// Backend kinds accepted by NewBackend.
const (
	BackendHTTP = "http"
	BackendDlib = "dlib"
)

// NewBackend creates the backend named by kind.
func NewBackend(kind, embeddingURL, modelsDir string) (Backend, error) {
	switch kind {
	case "", BackendHTTP:
		return NewHTTPBackend(embeddingURL), nil
	case BackendDlib:
		return NewDlibBackend(modelsDir)
	}
	return nil, fmt.Errorf("unknown face backend %q", kind)
}
