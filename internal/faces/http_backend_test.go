package faces

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kozaktomas/photo-finder/internal/facematch"
)

func TestHTTPBackendDetect(t *testing.T) {
	data := pngBytes(t, 16, 16)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embed/face" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("model"); got != "cnn" {
			t.Errorf("model = %q, want cnn", got)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("FormFile: %v", err)
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer file.Close()
		if ct := header.Header.Get("Content-Type"); ct != "image/png" {
			t.Errorf("part Content-Type = %q, want image/png", ct)
		}
		body, _ := io.ReadAll(file)
		if len(body) != len(data) {
			t.Errorf("uploaded %d bytes, want %d", len(body), len(data))
		}

		_ = json.NewEncoder(w).Encode(faceResponse{
			FacesCount: 2,
			Faces: []faceDetection{
				{FaceIndex: 0, Dim: 3, Embedding: []float32{1, 2, 3}, BBox: []float64{1, 2, 8, 9}, DetScore: 0.9},
				{FaceIndex: 1, Dim: 3, Embedding: []float32{4, 5, 6}, BBox: []float64{1, 2}},
			},
		})
	}))
	defer server.Close()

	backend := NewHTTPBackend(server.URL + "/")
	dets, err := backend.Detect(context.Background(), mustDecode(t, data), facematch.ModelAccurate)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if len(dets) != 1 {
		t.Fatalf("got %d detections, want 1 (malformed bbox skipped)", len(dets))
	}
	want := facematch.FaceRegion{Top: 2, Right: 8, Bottom: 9, Left: 1}
	if dets[0].Region != want {
		t.Errorf("Region = %+v, want %+v", dets[0].Region, want)
	}
	if dets[0].Score != 0.9 || len(dets[0].Descriptor) != 3 {
		t.Errorf("unexpected detection %+v", dets[0])
	}
}

func TestHTTPBackendError(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"service unavailable", http.StatusServiceUnavailable, "model not loaded", facematch.ErrFaceBackend},
		{"internal error", http.StatusInternalServerError, "boom", facematch.ErrFaceBackend},
		{"wrong endpoint", http.StatusNotFound, "not found", facematch.ErrFaceBackend},
		{"garbage body", http.StatusOK, "<html>", facematch.ErrFaceBackend},
		{"image rejected", http.StatusUnprocessableEntity, "cannot read image", facematch.ErrDecode},
		{"image too large", http.StatusRequestEntityTooLarge, "too large", facematch.ErrDecode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			}))
			defer server.Close()

			_, err := NewHTTPBackend(server.URL).Detect(context.Background(), mustDecode(t, pngBytes(t, 4, 4)), facematch.ModelFast)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Detect() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestHTTPBackendUnreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, err := NewHTTPBackend(url).Detect(context.Background(), mustDecode(t, pngBytes(t, 4, 4)), facematch.ModelFast)
	if !errors.Is(err, facematch.ErrFaceBackend) {
		t.Errorf("Detect() error = %v, want ErrFaceBackend", err)
	}
	if facematch.IsItemError(err) {
		t.Error("an unreachable server must not be counted as a per-photo failure")
	}
}

func TestDetectMIMEType(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		expected string
	}{
		{"jpeg", []byte{0xFF, 0xD8, 0xFF, 0xE0, 0, 0, 0, 0}, "image/jpeg"},
		{"png", []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}, "image/png"},
		{"gif", []byte("GIF89a\x00\x00"), "image/gif"},
		{"webp", []byte("RIFF\x00\x00\x00\x00WEBP"), "image/webp"},
		{"short", []byte{0xFF}, "application/octet-stream"},
		{"unknown", []byte("hello world"), "application/octet-stream"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := detectMIMEType(tt.data); got != tt.expected {
				t.Errorf("detectMIMEType(%v) = %v; want %v", tt.data, got, tt.expected)
			}
		})
	}
}
