package faces

import (
	"context"
	"fmt"
	"image"

	"github.com/kozaktomas/photo-finder/internal/constants"
	"github.com/kozaktomas/photo-finder/internal/facematch"
)

// Encoder turns face regions into embeddings.
type Encoder struct {
	backend Backend
	model   facematch.DetectionModel
}

// NewEncoder creates an encoder. model is used when a region has to be
// re-detected on a crop.
func NewEncoder(backend Backend, model facematch.DetectionModel) *Encoder {
	return &Encoder{backend: backend, model: model}
}

// Encode returns one embedding per region, in the same order.
func (e *Encoder) Encode(ctx context.Context, img *Image, regions []facematch.FaceRegion) ([]facematch.Embedding, error) {
	out := make([]facematch.Embedding, 0, len(regions))
	bounds := img.Bounds()

	for _, r := range regions {
		if r.Empty() {
			return nil, fmt.Errorf("%w: empty region %+v", facematch.ErrEncoding, r)
		}
		if !r.In(bounds) {
			return nil, fmt.Errorf("%w: region %+v outside image %v", facematch.ErrEncoding, r, bounds)
		}

		if d, ok := img.cached(r, constants.RegionMatchIoU); ok {
			out = append(out, d.Descriptor.Clone())
			continue
		}

		emb, err := e.encodeCrop(ctx, img, r)
		if err != nil {
			return nil, err
		}
		out = append(out, emb)
	}
	return out, nil
}

// encodeCrop detects again on a padded crop around r and takes the face
// overlapping r the most.
func (e *Encoder) encodeCrop(ctx context.Context, img *Image, r facematch.FaceRegion) (facematch.Embedding, error) {
	padX, padY := r.Width()/2, r.Height()/2
	area := image.Rect(r.Left-padX, r.Top-padY, r.Right+padX, r.Bottom+padY).Intersect(img.Bounds())
	crop := img.crop(area)

	dets, err := e.backend.Detect(ctx, crop, e.model)
	if err != nil {
		return nil, fmt.Errorf("detecting on crop: %w", err)
	}

	local := facematch.FaceRegion{
		Top:    r.Top - area.Min.Y,
		Right:  r.Right - area.Min.X,
		Bottom: r.Bottom - area.Min.Y,
		Left:   r.Left - area.Min.X,
	}
	var best facematch.Embedding
	bestIoU := 0.0
	for _, d := range dets {
		if len(d.Descriptor) == 0 {
			continue
		}
		if iou := facematch.RegionIoU(d.Region, local); iou > bestIoU {
			best, bestIoU = d.Descriptor, iou
		}
	}
	if best == nil {
		return nil, fmt.Errorf("%w: no descriptor for region %+v", facematch.ErrEncoding, r)
	}
	return best.Clone(), nil
}
