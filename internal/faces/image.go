// Package faces locates faces in images and turns them into embeddings.
// Detection itself is delegated to a Backend: the HTTP embedding service or
// dlib when built with the "dlib" tag.
package faces

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	"github.com/kozaktomas/photo-finder/internal/facematch"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Image is a decoded image together with the bytes it was decoded from.
// An Image belongs to the goroutine processing it.
type Image struct {
	Data   []byte // encoded bytes, nil for derived images until Bytes is called
	Img    image.Image
	Format string

	detections []Detection // detections in this image's coordinates
}

// Decode parses image bytes. The bytes are referenced, not copied or modified.
func Decode(data []byte) (*Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty data", facematch.ErrDecode)
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", facematch.ErrDecode, err)
	}
	return &Image{Data: data, Img: img, Format: format}, nil
}

// FromImage wraps an already decoded image.
func FromImage(img image.Image) *Image {
	return &Image{Img: img}
}

func (i *Image) Bounds() image.Rectangle {
	return i.Img.Bounds()
}

// Bytes returns encoded bytes for the image, encoding derived images as JPEG.
func (i *Image) Bytes() ([]byte, error) {
	if i.Data != nil {
		return i.Data, nil
	}
	data, err := encodeJPEG(i.Img)
	if err != nil {
		return nil, err
	}
	i.Data = data
	i.Format = "jpeg"
	return data, nil
}

// JPEG returns the image as JPEG bytes, reusing the original bytes when they
// already are JPEG.
func (i *Image) JPEG() ([]byte, error) {
	if i.Data != nil && i.Format == "jpeg" {
		return i.Data, nil
	}
	return encodeJPEG(i.Img)
}

func encodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95}); err != nil {
		return nil, fmt.Errorf("encoding jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// resized returns a copy scaled by factor.
func (i *Image) resized(factor float64) *Image {
	b := i.Bounds()
	w := max(1, int(float64(b.Dx())*factor+0.5))
	h := max(1, int(float64(b.Dy())*factor+0.5))
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), i.Img, b, draw.Src, nil)
	return FromImage(dst)
}

// crop returns the part of the image inside r, re-based to the origin.
func (i *Image) crop(r image.Rectangle) *Image {
	r = r.Intersect(i.Bounds())
	dst := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(dst, dst.Bounds(), i.Img, r.Min, draw.Src)
	return FromImage(dst)
}

func (i *Image) remember(dets []Detection) {
	i.detections = append(i.detections, dets...)
}

// cached returns the remembered detection that best overlaps region.
func (i *Image) cached(region facematch.FaceRegion, minIoU float64) (Detection, bool) {
	best, bestIoU := Detection{}, 0.0
	for _, d := range i.detections {
		if iou := facematch.RegionIoU(d.Region, region); iou > bestIoU {
			best, bestIoU = d, iou
		}
	}
	if bestIoU < minIoU || len(best.Descriptor) == 0 {
		return Detection{}, false
	}
	return best, true
}
