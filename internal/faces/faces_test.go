package faces

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"reflect"
	"sync"
	"testing"

	"github.com/kozaktomas/photo-finder/internal/facematch"
)

// fakeBackend returns detections computed by fn and records the sizes it saw.
type fakeBackend struct {
	mu    sync.Mutex
	fn    func(img *Image) []Detection
	err   error
	seen  []image.Rectangle
	calls int
}

func (f *fakeBackend) Detect(_ context.Context, img *Image, _ facematch.DetectionModel) ([]Detection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.seen = append(f.seen, img.Bounds())
	if f.err != nil {
		return nil, f.err
	}
	if f.fn == nil {
		return nil, nil
	}
	return f.fn(img), nil
}

func (f *fakeBackend) Close() error { return nil }

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, color.RGBA{uint8(x), uint8(y), 128, 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	return buf.Bytes()
}

func mustDecode(t *testing.T, data []byte) *Image {
	t.Helper()
	img, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	return img
}

func desc(v float32) facematch.Embedding {
	e := make(facematch.Embedding, facematch.EmbeddingDim)
	for i := range e {
		e[i] = v
	}
	return e
}

func TestDecode(t *testing.T) {
	data := pngBytes(t, 20, 10)
	img, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if img.Format != "png" {
		t.Errorf("Format = %q, want png", img.Format)
	}
	if img.Bounds() != image.Rect(0, 0, 20, 10) {
		t.Errorf("Bounds = %v", img.Bounds())
	}
	if &img.Data[0] != &data[0] {
		t.Error("Decode should reference the input bytes")
	}

	for _, bad := range [][]byte{nil, []byte("not an image at all")} {
		if _, err := Decode(bad); !errors.Is(err, facematch.ErrDecode) {
			t.Errorf("Decode(%q) error = %v, want ErrDecode", bad, err)
		}
	}
}

func TestImageJPEG(t *testing.T) {
	img := mustDecode(t, pngBytes(t, 8, 8))
	data, err := img.JPEG()
	if err != nil {
		t.Fatalf("JPEG: %v", err)
	}
	if detectMIMEType(data) != "image/jpeg" {
		t.Errorf("JPEG() produced %s", detectMIMEType(data))
	}
	if img.Format != "png" {
		t.Error("JPEG must not change the original format")
	}
}

func TestLocatorPreservesOrderAndClips(t *testing.T) {
	backend := &fakeBackend{fn: func(*Image) []Detection {
		return []Detection{
			{Region: facematch.FaceRegion{Top: 50, Right: 90, Bottom: 90, Left: 50}},
			{Region: facematch.FaceRegion{Top: 5, Right: 30, Bottom: 30, Left: 5}},
			{Region: facematch.FaceRegion{Top: 90, Right: 120, Bottom: 120, Left: 80}},
			{Region: facematch.FaceRegion{Top: 200, Right: 300, Bottom: 300, Left: 200}},
		}
	}}
	img := mustDecode(t, pngBytes(t, 100, 100))

	regions, err := NewLocator(backend, facematch.ModelFast).Locate(context.Background(), img)
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}

	want := []facematch.FaceRegion{
		{Top: 50, Right: 90, Bottom: 90, Left: 50},
		{Top: 5, Right: 30, Bottom: 30, Left: 5},
		{Top: 90, Right: 100, Bottom: 100, Left: 80},
	}
	if !reflect.DeepEqual(regions, want) {
		t.Errorf("Locate() = %+v, want %+v", regions, want)
	}
}

func TestLocatorFastDownscalesLargeImages(t *testing.T) {
	backend := &fakeBackend{fn: func(img *Image) []Detection {
		// one face in the middle of whatever image we get
		b := img.Bounds()
		return []Detection{{Region: facematch.FaceRegion{
			Top: b.Dy() / 4, Right: b.Dx() * 3 / 4, Bottom: b.Dy() * 3 / 4, Left: b.Dx() / 4,
		}}}
	}}
	img := FromImage(image.NewRGBA(image.Rect(0, 0, 3840, 1920)))
	img.Data = []byte("original")

	regions, err := NewLocator(backend, facematch.ModelFast).Locate(context.Background(), img)
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}
	if backend.seen[0] != image.Rect(0, 0, 1920, 960) {
		t.Errorf("detector saw %v, want 1920x960", backend.seen[0])
	}
	want := facematch.FaceRegion{Top: 480, Right: 2880, Bottom: 1440, Left: 960}
	if len(regions) != 1 || regions[0] != want {
		t.Errorf("Locate() = %+v, want %+v", regions, want)
	}
}

func TestLocatorAccurateUpsamplesSmallImages(t *testing.T) {
	backend := &fakeBackend{fn: func(*Image) []Detection {
		return []Detection{{Region: facematch.FaceRegion{Top: 20, Right: 60, Bottom: 60, Left: 20}}}
	}}
	img := mustDecode(t, pngBytes(t, 100, 80))

	regions, err := NewLocator(backend, facematch.ModelAccurate).Locate(context.Background(), img)
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}
	if backend.seen[0] != image.Rect(0, 0, 200, 160) {
		t.Errorf("detector saw %v, want 200x160", backend.seen[0])
	}
	want := facematch.FaceRegion{Top: 10, Right: 30, Bottom: 30, Left: 10}
	if len(regions) != 1 || regions[0] != want {
		t.Errorf("Locate() = %+v, want %+v", regions, want)
	}
}

func TestLocatorBackendError(t *testing.T) {
	backend := &fakeBackend{err: errors.New("service down")}
	img := mustDecode(t, pngBytes(t, 10, 10))
	if _, err := NewLocator(backend, facematch.ModelFast).Locate(context.Background(), img); err == nil {
		t.Error("expected backend error")
	}
}

func TestEncoderUsesLocatedDescriptors(t *testing.T) {
	backend := &fakeBackend{fn: func(*Image) []Detection {
		return []Detection{
			{Region: facematch.FaceRegion{Top: 0, Right: 40, Bottom: 40, Left: 0}, Descriptor: desc(0.1)},
			{Region: facematch.FaceRegion{Top: 50, Right: 90, Bottom: 90, Left: 50}, Descriptor: desc(0.2)},
		}
	}}
	img := mustDecode(t, pngBytes(t, 100, 100))
	ctx := context.Background()

	regions, err := NewLocator(backend, facematch.ModelFast).Locate(ctx, img)
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}

	enc := NewEncoder(backend, facematch.ModelFast)
	first, err := enc.Encode(ctx, img, regions)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(first) != 2 || first[0][0] != 0.1 || first[1][0] != 0.2 {
		t.Fatalf("Encode() returned wrong embeddings")
	}
	if backend.calls != 1 {
		t.Errorf("backend called %d times, want 1", backend.calls)
	}

	second, err := enc.Encode(ctx, img, regions)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Error("Encode is not deterministic")
	}

	first[0][0] = 42
	if second[0][0] != 0.1 {
		t.Error("embeddings share memory between calls")
	}
}

func TestEncoderEmptyRegions(t *testing.T) {
	backend := &fakeBackend{}
	img := mustDecode(t, pngBytes(t, 10, 10))

	embs, err := NewEncoder(backend, facematch.ModelFast).Encode(context.Background(), img, nil)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(embs) != 0 {
		t.Errorf("Encode(nil) returned %d embeddings", len(embs))
	}
	if backend.calls != 0 {
		t.Error("backend must not be called for empty regions")
	}
}

func TestEncoderInvalidRegions(t *testing.T) {
	img := mustDecode(t, pngBytes(t, 50, 50))
	enc := NewEncoder(&fakeBackend{}, facematch.ModelFast)

	tests := []struct {
		name   string
		region facematch.FaceRegion
	}{
		{"zero area", facematch.FaceRegion{Top: 10, Right: 10, Bottom: 20, Left: 10}},
		{"outside", facematch.FaceRegion{Top: 40, Right: 70, Bottom: 70, Left: 40}},
		{"negative", facematch.FaceRegion{Top: -5, Right: 10, Bottom: 10, Left: 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := enc.Encode(context.Background(), img, []facematch.FaceRegion{tt.region})
			if !errors.Is(err, facematch.ErrEncoding) {
				t.Errorf("Encode(%+v) error = %v, want ErrEncoding", tt.region, err)
			}
		})
	}
}

func TestEncoderCropFallback(t *testing.T) {
	// the crop around Top:20,Left:20 size 20 spans 10..50, so the face is at 10..30 locally
	backend := &fakeBackend{fn: func(img *Image) []Detection {
		return []Detection{
			{Region: facematch.FaceRegion{Top: 0, Right: 5, Bottom: 5, Left: 0}, Descriptor: desc(0.9)},
			{Region: facematch.FaceRegion{Top: 10, Right: 30, Bottom: 30, Left: 10}, Descriptor: desc(0.3)},
		}
	}}
	img := mustDecode(t, pngBytes(t, 100, 100))

	region := facematch.FaceRegion{Top: 20, Right: 40, Bottom: 40, Left: 20}
	embs, err := NewEncoder(backend, facematch.ModelFast).Encode(context.Background(), img, []facematch.FaceRegion{region})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if backend.seen[0] != image.Rect(0, 0, 40, 40) {
		t.Errorf("crop = %v, want 40x40", backend.seen[0])
	}
	if len(embs) != 1 || embs[0][0] != 0.3 {
		t.Errorf("Encode() picked the wrong face")
	}
}

func TestEncoderNoDescriptor(t *testing.T) {
	backend := &fakeBackend{fn: func(*Image) []Detection { return nil }}
	img := mustDecode(t, pngBytes(t, 100, 100))

	region := facematch.FaceRegion{Top: 20, Right: 40, Bottom: 40, Left: 20}
	_, err := NewEncoder(backend, facematch.ModelFast).Encode(context.Background(), img, []facematch.FaceRegion{region})
	if !errors.Is(err, facematch.ErrEncoding) {
		t.Errorf("error = %v, want ErrEncoding", err)
	}
}

func TestNewBackend(t *testing.T) {
	b, err := NewBackend("", "http://example.com", "")
	if err != nil {
		t.Fatalf("NewBackend: %v", err)
	}
	if _, ok := b.(*HTTPBackend); !ok {
		t.Errorf("default backend is %T, want *HTTPBackend", b)
	}
	if _, err := NewBackend("tensorflow", "", ""); err == nil {
		t.Error("expected error for unknown backend")
	}
}

func TestEncoderCropBackendFailure(t *testing.T) {
	backend := &fakeBackend{err: fmt.Errorf("%w: connection refused", facematch.ErrFaceBackend)}
	img := mustDecode(t, pngBytes(t, 100, 100))

	region := facematch.FaceRegion{Top: 20, Right: 40, Bottom: 40, Left: 20}
	_, err := NewEncoder(backend, facematch.ModelFast).Encode(context.Background(), img, []facematch.FaceRegion{region})
	if !errors.Is(err, facematch.ErrFaceBackend) {
		t.Errorf("error = %v, want ErrFaceBackend", err)
	}
	if errors.Is(err, facematch.ErrEncoding) {
		t.Error("backend failure reported as an encoding error")
	}
}
