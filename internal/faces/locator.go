package faces

import (
	"context"

	"github.com/kozaktomas/photo-finder/internal/constants"
	"github.com/kozaktomas/photo-finder/internal/facematch"
)

// strategy prepares the image handed to the detector. scale is the factor
// applied to the original; regions are divided by it afterwards.
type strategy interface {
	prepare(img *Image) (work *Image, scale float64)
}

// fastStrategy keeps detection cheap by capping the image size.
type fastStrategy struct {
	maxSize int
}

func (s fastStrategy) prepare(img *Image) (*Image, float64) {
	b := img.Bounds()
	longest := max(b.Dx(), b.Dy())
	if longest <= s.maxSize {
		return img, 1
	}
	scale := float64(s.maxSize) / float64(longest)
	return img.resized(scale), scale
}

// accurateStrategy upsamples small images once so small faces are found.
type accurateStrategy struct {
	upsampleBelow int
}

func (s accurateStrategy) prepare(img *Image) (*Image, float64) {
	b := img.Bounds()
	if max(b.Dx(), b.Dy()) >= s.upsampleBelow {
		return img, 1
	}
	return img.resized(2), 2
}

// Locator finds face regions using one detection model for its lifetime.
type Locator struct {
	backend  Backend
	model    facematch.DetectionModel
	strategy strategy
}

// NewLocator creates a locator for model.
func NewLocator(backend Backend, model facematch.DetectionModel) *Locator {
	var s strategy = fastStrategy{maxSize: constants.MaxImageSize}
	if model == facematch.ModelAccurate {
		s = accurateStrategy{upsampleBelow: constants.UpsampleBelow}
	}
	return &Locator{backend: backend, model: model, strategy: s}
}

func (l *Locator) Model() facematch.DetectionModel {
	return l.model
}

// Locate returns the face regions of img in detector order, in img's
// pixel coordinates.
func (l *Locator) Locate(ctx context.Context, img *Image) ([]facematch.FaceRegion, error) {
	work, scale := l.strategy.prepare(img)

	dets, err := l.backend.Detect(ctx, work, l.model)
	if err != nil {
		return nil, err
	}

	bounds := img.Bounds()
	regions := make([]facematch.FaceRegion, 0, len(dets))
	kept := make([]Detection, 0, len(dets))
	for _, d := range dets {
		r := d.Region
		if scale != 1 {
			r = r.Scale(1 / scale)
		}
		r = r.Clip(bounds)
		if r.Empty() {
			continue
		}
		d.Region = r
		regions = append(regions, r)
		kept = append(kept, d)
	}
	img.remember(kept)
	return regions, nil
}
