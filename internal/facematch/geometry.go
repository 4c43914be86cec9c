package facematch

import "image"

// FaceRegion is a face bounding box in pixel coordinates of its source image.
// Right and Bottom are exclusive.
type FaceRegion struct {
	Top    int `json:"top"`
	Right  int `json:"right"`
	Bottom int `json:"bottom"`
	Left   int `json:"left"`
}

// RegionFromRect converts an image.Rectangle into a FaceRegion.
func RegionFromRect(r image.Rectangle) FaceRegion {
	return FaceRegion{Top: r.Min.Y, Right: r.Max.X, Bottom: r.Max.Y, Left: r.Min.X}
}

// RegionFromBBox converts a [x1, y1, x2, y2] pixel box, rounding outwards.
func RegionFromBBox(bbox []float64) (FaceRegion, bool) {
	if len(bbox) != 4 {
		return FaceRegion{}, false
	}
	return FaceRegion{
		Left:   int(bbox[0]),
		Top:    int(bbox[1]),
		Right:  int(bbox[2] + 0.999),
		Bottom: int(bbox[3] + 0.999),
	}, true
}

func (r FaceRegion) Rect() image.Rectangle {
	return image.Rect(r.Left, r.Top, r.Right, r.Bottom)
}

func (r FaceRegion) Width() int  { return r.Right - r.Left }
func (r FaceRegion) Height() int { return r.Bottom - r.Top }

// Area is zero for degenerate regions.
func (r FaceRegion) Area() int {
	if r.Empty() {
		return 0
	}
	return r.Width() * r.Height()
}

func (r FaceRegion) Empty() bool {
	return r.Right <= r.Left || r.Bottom <= r.Top
}

// In reports whether the region lies completely inside bounds.
func (r FaceRegion) In(bounds image.Rectangle) bool {
	return !r.Empty() && r.Rect().In(bounds)
}

// Clip intersects the region with bounds.
func (r FaceRegion) Clip(bounds image.Rectangle) FaceRegion {
	return RegionFromRect(r.Rect().Intersect(bounds))
}

// Scale multiplies all coordinates by f, used to map regions found on a
// resized copy back to the original image.
func (r FaceRegion) Scale(f float64) FaceRegion {
	return FaceRegion{
		Top:    int(float64(r.Top) * f),
		Right:  int(float64(r.Right)*f + 0.5),
		Bottom: int(float64(r.Bottom)*f + 0.5),
		Left:   int(float64(r.Left) * f),
	}
}

// BBox returns the region as [x1, y1, x2, y2].
func (r FaceRegion) BBox() []float64 {
	return []float64{float64(r.Left), float64(r.Top), float64(r.Right), float64(r.Bottom)}
}

// ComputeIoU calculates Intersection over Union between two bounding boxes.
// bbox1 and bbox2 are [x1, y1, x2, y2] in the same coordinate system.
func ComputeIoU(bbox1, bbox2 []float64) float64 {
	if len(bbox1) != 4 || len(bbox2) != 4 {
		return 0
	}

	x1 := max(bbox1[0], bbox2[0])
	y1 := max(bbox1[1], bbox2[1])
	x2 := min(bbox1[2], bbox2[2])
	y2 := min(bbox1[3], bbox2[3])

	if x2 <= x1 || y2 <= y1 {
		return 0
	}

	intersection := (x2 - x1) * (y2 - y1)
	area1 := (bbox1[2] - bbox1[0]) * (bbox1[3] - bbox1[1])
	area2 := (bbox2[2] - bbox2[0]) * (bbox2[3] - bbox2[1])
	union := area1 + area2 - intersection

	if union <= 0 {
		return 0
	}
	return intersection / union
}

// RegionIoU is ComputeIoU for two regions.
func RegionIoU(a, b FaceRegion) float64 {
	return ComputeIoU(a.BBox(), b.BBox())
}
