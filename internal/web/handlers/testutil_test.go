package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/photo-finder/internal/album"
	"github.com/kozaktomas/photo-finder/internal/config"
	"github.com/kozaktomas/photo-finder/internal/facematch"
	"github.com/kozaktomas/photo-finder/internal/faces"
)

// testConfig creates a minimal config scanning local directories under root
func testConfig(root string) *config.Config {
	return &config.Config{
		Dir:  config.DirConfig{Root: root},
		Scan: config.ScanConfig{Source: album.KindDir, Model: facematch.ModelFast, Tolerance: 0.1, Concurrency: 2},
	}
}

// colourBackend detects faces painted by faceImage: every 10px wide column
// block is one face whose identity is the green channel.
type colourBackend struct {
	calls   atomic.Int32
	release chan struct{} // when set, album photos wait for it
}

func (b *colourBackend) Detect(ctx context.Context, img *faces.Image, _ facematch.DetectionModel) ([]faces.Detection, error) {
	if b.calls.Add(1) > 1 && b.release != nil {
		select {
		case <-b.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	at := func(x int) color.NRGBA {
		return color.NRGBAModel.Convert(img.Img.At(x, 0)).(color.NRGBA)
	}
	n := int(at(0).R)
	dets := make([]faces.Detection, n)
	for k := range n {
		dets[k] = faces.Detection{
			Region:     facematch.FaceRegion{Top: 0, Right: 10*k + 10, Bottom: 10, Left: 10 * k},
			Descriptor: facematch.Embedding{float32(at(10*k).G) / 100},
		}
	}
	return dets, nil
}

func (b *colourBackend) Close() error { return nil }

// faceImage paints one face per id, see colourBackend.
func faceImage(t *testing.T, ids ...uint8) []byte {
	t.Helper()
	w := max(10, 10*len(ids))
	img := image.NewNRGBA(image.Rect(0, 0, w, 10))
	for x := range w {
		var g uint8
		if len(ids) > 0 {
			g = ids[min(x/10, len(ids)-1)]
		}
		for y := range 10 {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(len(ids)), G: g, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	return buf.Bytes()
}

// writeAlbum creates root/name with the given files
func writeAlbum(t *testing.T, root, name string, files map[string][]byte) {
	t.Helper()
	dir := filepath.Join(root, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	for file, data := range files {
		if err := os.WriteFile(filepath.Join(dir, file), data, 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

// newScanRequest builds a multipart POST /scans request. A nil reference
// leaves the file part out.
func newScanRequest(t *testing.T, reference []byte, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if reference != nil {
		part, err := mw.CreateFormFile("reference", "selfie.png")
		if err != nil {
			t.Fatal(err)
		}
		part.Write(reference)
	}
	for k, v := range fields {
		mw.WriteField(k, v)
	}
	mw.Close()

	req := httptest.NewRequest("POST", "/api/v1/scans", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// waitForJob polls until the job reaches a terminal state
func waitForJob(t *testing.T, job *ScanJob) ScanJobInfo {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if isJobTerminal(job.GetStatus()) {
			return job.Info()
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job %s did not finish, status %s", job.Info().ID, job.GetStatus())
	return ScanJobInfo{}
}

// parseJSONResponse parses a JSON response body into the target type
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertContentType checks if the response has the expected content type
func assertContentType(t *testing.T, recorder *httptest.ResponseRecorder, expected string) {
	t.Helper()
	ct := recorder.Header().Get("Content-Type")
	if ct != expected {
		t.Errorf("expected Content-Type '%s', got '%s'", expected, ct)
	}
}

// assertJSONError checks if the response is a JSON error with the expected message
func assertJSONError(t *testing.T, recorder *httptest.ResponseRecorder, expectedMessage string) {
	t.Helper()
	var result errorResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, recorder.Body.String())
	}
	if result.Error != expectedMessage {
		t.Errorf("expected error '%s', got '%s'", expectedMessage, result.Error)
	}
	if result.Status != recorder.Code {
		t.Errorf("expected status %d in body, got %d", recorder.Code, result.Status)
	}
}
