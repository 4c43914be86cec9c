// Package facematch holds the face matching vocabulary shared by the scanner,
// the face backends, the album sources and the web handlers.
package facematch

import (
	"fmt"
	"math"
	"strings"
)

// EmbeddingDim is the descriptor length produced by the dlib ResNet model.
const EmbeddingDim = 128

// Embedding is a face identity signature. It is derived from exactly one
// region of one image and must not be modified after it was produced.
type Embedding []float32

// Clone returns a copy that does not share the backing array.
func (e Embedding) Clone() Embedding {
	if e == nil {
		return nil
	}
	out := make(Embedding, len(e))
	copy(out, e)
	return out
}

// ReferenceIdentity is the single face a scan is looking for.
type ReferenceIdentity struct {
	Embedding  Embedding
	Region     FaceRegion
	FacesFound int // faces detected in the reference capture, only the first is used
}

// DetectionModel selects the speed/accuracy trade-off of face detection.
type DetectionModel int

const (
	ModelFast     DetectionModel = iota // HOG
	ModelAccurate                       // CNN
)

// ParseDetectionModel accepts "fast"/"hog" and "accurate"/"cnn".
func ParseDetectionModel(s string) (DetectionModel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fast", "hog", "":
		return ModelFast, nil
	case "accurate", "cnn":
		return ModelAccurate, nil
	}
	return ModelFast, fmt.Errorf("unknown detection model %q (use fast or accurate)", s)
}

func (m DetectionModel) String() string {
	if m == ModelAccurate {
		return "accurate"
	}
	return "fast"
}

// DetectorName returns the name the detection backends use for the model.
func (m DetectionModel) DetectorName() string {
	if m == ModelAccurate {
		return "cnn"
	}
	return "hog"
}

func (m DetectionModel) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *DetectionModel) UnmarshalText(b []byte) error {
	parsed, err := ParseDetectionModel(string(b))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Tolerance is the largest embedding distance still counted as a match.
// Lower is stricter.
type Tolerance float64

const (
	DefaultTolerance      Tolerance = 0.5
	MinPracticalTolerance Tolerance = 0.4
	MaxPracticalTolerance Tolerance = 0.6
	ToleranceStep         Tolerance = 0.01
)

// Validate reports whether the tolerance lies in [0, 1].
func (t Tolerance) Validate() error {
	f := float64(t)
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 || f > 1 {
		return fmt.Errorf("tolerance %v out of range [0, 1]", f)
	}
	return nil
}

// CandidateImage is one album item. Data is never modified by the pipeline.
type CandidateImage struct {
	ID   string
	Name string
	Data []byte
}

// MatchResult is a candidate that contained at least one matching face.
type MatchResult struct {
	Candidate CandidateImage
	Index     int         // position in scan order
	Matched   []Embedding // embeddings that were within tolerance
	Distance  float64     // best distance seen
}
