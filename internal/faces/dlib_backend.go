//go:build dlib

package faces

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Kagami/go-face"
	"github.com/kozaktomas/photo-finder/internal/facematch"
)

// DlibBackend runs dlib's HOG or CNN detector and ResNet descriptor in process.
// The models directory must contain shape_predictor_5_face_landmarks.dat,
// dlib_face_recognition_resnet_model_v1.dat and, for the accurate model,
// mmod_human_face_detector.dat.
type DlibBackend struct {
	mu  sync.Mutex
	rec *face.Recognizer
}

// NewDlibBackend loads the dlib models from modelsDir.
func NewDlibBackend(modelsDir string) (Backend, error) {
	if modelsDir == "" {
		return nil, fmt.Errorf("dlib backend needs DLIB_MODELS_DIR")
	}
	rec, err := face.NewRecognizer(modelsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load models: %w", err)
	}
	return &DlibBackend{rec: rec}, nil
}

func (b *DlibBackend) Detect(ctx context.Context, img *Image, model facematch.DetectionModel) ([]Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// dlib only reads JPEG
	data, err := img.JPEG()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", facematch.ErrDecode, err)
	}

	// the recognizer is not safe for concurrent use
	b.mu.Lock()
	defer b.mu.Unlock()

	var found []face.Face
	if model == facematch.ModelAccurate {
		found, err = b.rec.RecognizeCNN(data)
	} else {
		found, err = b.rec.Recognize(data)
	}
	if err != nil {
		var loadErr face.ImageLoadError
		if errors.As(err, &loadErr) {
			return nil, fmt.Errorf("%w: %w", facematch.ErrDecode, err)
		}
		return nil, fmt.Errorf("%w: face detection failed: %w", facematch.ErrFaceBackend, err)
	}

	dets := make([]Detection, len(found))
	for i, f := range found {
		desc := make(facematch.Embedding, len(f.Descriptor))
		copy(desc, f.Descriptor[:])
		dets[i] = Detection{
			Region:     facematch.RegionFromRect(f.Rectangle),
			Descriptor: desc,
			Score:      1,
		}
	}
	return dets, nil
}

func (b *DlibBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.rec != nil {
		b.rec.Close()
		b.rec = nil
	}
	return nil
}
