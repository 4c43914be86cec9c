package faces

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"

	"github.com/kozaktomas/photo-finder/internal/facematch"
)

const defaultEmbeddingURL = "http://localhost:8000"

// HTTPBackend detects faces using the embedding server's /embed/face endpoint.
type HTTPBackend struct {
	baseURL string
	client  *http.Client
}

// NewHTTPBackend creates a backend talking to the embedding server at baseURL.
func NewHTTPBackend(baseURL string) *HTTPBackend {
	if baseURL == "" {
		baseURL = defaultEmbeddingURL
	}
	return &HTTPBackend{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{},
	}
}

// faceDetection represents a single detected face
type faceDetection struct {
	FaceIndex int       `json:"face_index"`
	Dim       int       `json:"dim"`
	Embedding []float32 `json:"embedding"`
	BBox      []float64 `json:"bbox"` // [x1, y1, x2, y2]
	DetScore  float64   `json:"det_score"`
}

// faceResponse represents the response from the face embedding endpoint
type faceResponse struct {
	FacesCount int             `json:"faces_count"`
	Faces      []faceDetection `json:"faces"`
	Model      string          `json:"model"`
}

// Detect posts the image and converts the returned boxes into regions.
func (b *HTTPBackend) Detect(ctx context.Context, img *Image, model facematch.DetectionModel) ([]Detection, error) {
	data, err := img.Bytes()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", facematch.ErrDecode, err)
	}

	endpoint := "/embed/face?" + url.Values{"model": {model.DetectorName()}}.Encode()
	body, err := b.postMultipartImage(ctx, endpoint, data)
	if err != nil {
		return nil, err
	}

	var faceResp faceResponse
	if err := json.Unmarshal(body, &faceResp); err != nil {
		return nil, fmt.Errorf("%w: failed to parse response: %w", facematch.ErrFaceBackend, err)
	}

	dets := make([]Detection, 0, len(faceResp.Faces))
	for _, f := range faceResp.Faces {
		region, ok := facematch.RegionFromBBox(f.BBox)
		if !ok {
			continue
		}
		dets = append(dets, Detection{
			Region:     region,
			Descriptor: facematch.Embedding(f.Embedding),
			Score:      f.DetScore,
		})
	}
	return dets, nil
}

func (b *HTTPBackend) Close() error {
	b.client.CloseIdleConnections()
	return nil
}

// postMultipartImage constructs a multipart form with the image data and posts it to the given endpoint.
func (b *HTTPBackend) postMultipartImage(ctx context.Context, endpoint string, imageData []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="image.jpg"`)
	h.Set("Content-Type", detectMIMEType(imageData))
	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}

	if _, err := part.Write(imageData); err != nil {
		return nil, fmt.Errorf("failed to write image data: %w", err)
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: request failed: %w", facematch.ErrFaceBackend, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %w", facematch.ErrFaceBackend, err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
	case rejectsImage(resp.StatusCode):
		return nil, fmt.Errorf("%w: rejected by embedding server (status %d): %s",
			facematch.ErrDecode, resp.StatusCode, string(body))
	default:
		return nil, fmt.Errorf("%w: API error (status %d): %s",
			facematch.ErrFaceBackend, resp.StatusCode, string(body))
	}

	return body, nil
}

// rejectsImage reports whether status means the server refused this image
// rather than failing as a whole.
func rejectsImage(status int) bool {
	switch status {
	case http.StatusBadRequest, http.StatusRequestEntityTooLarge,
		http.StatusUnsupportedMediaType, http.StatusUnprocessableEntity:
		return true
	}
	return false
}

// detectMIMEType detects the MIME type from image data
func detectMIMEType(data []byte) string {
	if len(data) < 8 {
		return "application/octet-stream"
	}
	// JPEG: FF D8 FF
	if data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF {
		return "image/jpeg"
	}
	// PNG: 89 50 4E 47 0D 0A 1A 0A
	if data[0] == 0x89 && data[1] == 0x50 && data[2] == 0x4E && data[3] == 0x47 {
		return "image/png"
	}
	// GIF: 47 49 46 38
	if data[0] == 0x47 && data[1] == 0x49 && data[2] == 0x46 && data[3] == 0x38 {
		return "image/gif"
	}
	// WebP: 52 49 46 46 ... 57 45 42 50
	if len(data) >= 12 && data[0] == 0x52 && data[1] == 0x49 && data[2] == 0x46 && data[3] == 0x46 &&
		data[8] == 0x57 && data[9] == 0x45 && data[10] == 0x42 && data[11] == 0x50 {
		return "image/webp"
	}
	return "application/octet-stream"
}
