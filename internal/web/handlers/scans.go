package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/kozaktomas/photo-finder/internal/album"
	"github.com/kozaktomas/photo-finder/internal/config"
	"github.com/kozaktomas/photo-finder/internal/constants"
	"github.com/kozaktomas/photo-finder/internal/facematch"
	"github.com/kozaktomas/photo-finder/internal/faces"
	"github.com/kozaktomas/photo-finder/internal/logger"
	"github.com/kozaktomas/photo-finder/internal/scan"
)

// ScanHandler handles scan endpoints
type ScanHandler struct {
	config     *config.Config
	jobManager *JobManager
	backend    faces.Backend

	// openSource connects to an album source. The context outlives the request.
	openSource func(ctx context.Context, kind string) (album.Source, error)
}

// NewScanHandler creates a new scan handler
func NewScanHandler(cfg *config.Config, jm *JobManager, backend faces.Backend) *ScanHandler {
	return &ScanHandler{
		config:     cfg,
		jobManager: jm,
		backend:    backend,
		openSource: func(ctx context.Context, kind string) (album.Source, error) {
			return album.Open(ctx, kind, cfg)
		},
	}
}

var errDirSourceDisabled = errors.New("dir source is disabled, dir.root is not configured")

// scanRequest holds the validated form fields of a scan request.
type scanRequest struct {
	reference []byte
	album     string
	source    string
	model     facematch.DetectionModel
	tolerance facematch.Tolerance
}

func (h *ScanHandler) parseScanRequest(r *http.Request) (*scanRequest, error) {
	if err := r.ParseMultipartForm(constants.MaxUploadSize); err != nil {
		return nil, errors.New("invalid multipart form")
	}

	file, _, err := r.FormFile("reference")
	if err != nil {
		return nil, errors.New("reference image is required")
	}
	defer file.Close()
	data, err := io.ReadAll(io.LimitReader(file, constants.MaxUploadSize))
	if err != nil {
		return nil, errors.New("reading reference image failed")
	}

	req := &scanRequest{
		reference: data,
		album:     strings.TrimSpace(r.FormValue("album")),
		source:    strings.TrimSpace(r.FormValue("source")),
		model:     h.config.Scan.Model,
		tolerance: h.config.Tolerance(),
	}
	if req.album == "" {
		return nil, errors.New("album is required")
	}
	if req.source == "" {
		req.source = h.config.Scan.Source
	}
	switch req.source {
	case album.KindPhotoPrism, album.KindDrive:
	case album.KindDir:
		// without a root any server path could be scanned and downloaded
		if h.config.Dir.Root == "" {
			return nil, errDirSourceDisabled
		}
	default:
		return nil, fmt.Errorf("unknown album source %q", req.source)
	}

	if v := r.FormValue("model"); v != "" {
		if req.model, err = facematch.ParseDetectionModel(v); err != nil {
			return nil, err
		}
	}
	if v := r.FormValue("tolerance"); v != "" {
		t, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid tolerance %q", v)
		}
		req.tolerance = facematch.Tolerance(t)
	}
	if err := req.tolerance.Validate(); err != nil {
		return nil, err
	}
	return req, nil
}

// Start validates the request, computes the reference identity and starts
// the scan in the background
func (h *ScanHandler) Start(w http.ResponseWriter, r *http.Request) {
	req, err := h.parseScanRequest(r)
	if errors.Is(err, errDirSourceDisabled) {
		respondError(w, http.StatusForbidden, err.Error())
		return
	}
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	src, err := h.openSource(context.WithoutCancel(r.Context()), req.source)
	if err != nil {
		logger.Error("opening album source failed",
			logger.LoggerOptions{Key: "source", Data: req.source},
			logger.LoggerOptions{Key: "error", Data: err})
		respondError(w, http.StatusBadGateway, fmt.Sprintf("album source %s unavailable", req.source))
		return
	}
	if _, err := src.ParseRef(req.album); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	// job is assigned before the scanner reports any progress
	var job *ScanJob
	scanner := scan.New(
		faces.NewLocator(h.backend, req.model),
		faces.NewEncoder(h.backend, req.model),
		scan.WithTolerance(req.tolerance),
		scan.WithConcurrency(h.config.Scan.Concurrency),
		scan.WithProgress(func(p scan.Progress) {
			job.setProgress(p)
			job.SendEvent(JobEvent{
				Type: "progress",
				Data: map[string]any{
					"processed_photos": p.Processed,
					"total_photos":     p.Total,
					"matched":          job.scanner.Summary().Matched,
				},
			})
		}),
	)

	ref, err := scanner.SetReference(r.Context(), req.reference)
	switch {
	case errors.Is(err, facematch.ErrNoFaceDetected):
		respondError(w, http.StatusUnprocessableEntity, "no face detected in the reference image")
		return
	case errors.Is(err, facematch.ErrDecode):
		respondError(w, http.StatusBadRequest, "reference is not a supported image")
		return
	case err != nil:
		logger.Error("computing reference identity failed", logger.LoggerOptions{Key: "error", Data: err})
		respondError(w, http.StatusBadGateway, "face detection failed")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	job = h.jobManager.CreateJob(ScanJobInfo{
		ID:               uuid.New().String(),
		Source:           req.source,
		Album:            req.album,
		Model:            req.model.String(),
		Tolerance:        float64(req.tolerance),
		FacesInReference: ref.FacesFound,
	}, scanner, cancel)

	logger.Info("scan job created",
		logger.LoggerOptions{Key: "job", Data: job.info.ID},
		logger.LoggerOptions{Key: "source", Data: req.source},
		logger.LoggerOptions{Key: "album", Data: sanitizeForLog(req.album)})

	go h.runScanJob(ctx, cancel, job, src, req.album)

	respondJSON(w, http.StatusAccepted, map[string]any{
		"job_id":             job.info.ID,
		"status":             string(JobStatusPending),
		"faces_in_reference": ref.FacesFound,
	})
}

// List returns all scan jobs, newest first
func (h *ScanHandler) List(w http.ResponseWriter, r *http.Request) {
	jobs := h.jobManager.ListJobs()
	out := make([]ScanJobInfo, 0, len(jobs))
	for _, job := range jobs {
		out = append(out, job.Info())
	}
	respondJSON(w, http.StatusOK, out)
}

// lookupJob resolves the jobId URL parameter or writes an error response.
func (h *ScanHandler) lookupJob(w http.ResponseWriter, r *http.Request) *ScanJob {
	jobID := chi.URLParam(r, "jobId")
	if jobID == "" {
		respondError(w, http.StatusBadRequest, "missing job ID")
		return nil
	}

	job := h.jobManager.GetJob(jobID)
	if job == nil {
		respondError(w, http.StatusNotFound, "job not found")
		return nil
	}
	return job
}

// Status returns the status of a scan job
func (h *ScanHandler) Status(w http.ResponseWriter, r *http.Request) {
	job := h.lookupJob(w, r)
	if job == nil {
		return
	}
	respondJSON(w, http.StatusOK, job.Info())
}

// Events streams job events via SSE
func (h *ScanHandler) Events(w http.ResponseWriter, r *http.Request) {
	streamSSEEvents(w, r,
		func(id string) SSEJob {
			job := h.jobManager.GetJob(id)
			if job == nil {
				return nil
			}
			return job
		},
		func(job SSEJob) any {
			return job.(*ScanJob).Info()
		},
	)
}

// ResultItem describes one matched photo.
type ResultItem struct {
	Index      int     `json:"index"`
	AlbumIndex int     `json:"album_index"`
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Distance   float64 `json:"distance"`
	Size       int     `json:"size"`
}

// ResultsPage is one page of matched photos.
type ResultsPage struct {
	Page     int          `json:"page"`
	PageSize int          `json:"page_size"`
	Pages    int          `json:"pages"`
	Total    int          `json:"total"`
	Status   JobStatus    `json:"status"`
	Results  []ResultItem `json:"results"`
}

// Results returns a page of matched photos. Pages start at 1.
func (h *ScanHandler) Results(w http.ResponseWriter, r *http.Request) {
	job := h.lookupJob(w, r)
	if job == nil {
		return
	}

	page := 1
	if v := r.URL.Query().Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			respondError(w, http.StatusBadRequest, "invalid page")
			return
		}
		page = n
	}

	results := job.Results()
	size := constants.ResultsPageSize
	resp := ResultsPage{
		Page:     page,
		PageSize: size,
		Pages:    (len(results) + size - 1) / size,
		Total:    len(results),
		Status:   job.GetStatus(),
		Results:  []ResultItem{},
	}
	start := (page - 1) * size
	for i := start; i < len(results) && i < start+size; i++ {
		m := results[i]
		resp.Results = append(resp.Results, ResultItem{
			Index:      i,
			AlbumIndex: m.Index,
			ID:         m.Candidate.ID,
			Name:       m.Candidate.Name,
			Distance:   m.Distance,
			Size:       len(m.Candidate.Data),
		})
	}
	respondJSON(w, http.StatusOK, resp)
}

// Download returns the original bytes of a matched photo
func (h *ScanHandler) Download(w http.ResponseWriter, r *http.Request) {
	job := h.lookupJob(w, r)
	if job == nil {
		return
	}

	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || index < 0 {
		respondError(w, http.StatusBadRequest, "invalid result index")
		return
	}
	results := job.Results()
	if index >= len(results) {
		respondError(w, http.StatusNotFound, "result not found")
		return
	}

	m := results[index]
	name := facematch.SafeFileName(m.Candidate.Name, fmt.Sprintf("photo-%d", m.Index+1))
	w.Header().Set("Content-Type", http.DetectContentType(m.Candidate.Data))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	w.Header().Set("Content-Length", strconv.Itoa(len(m.Candidate.Data)))
	w.WriteHeader(http.StatusOK)
	w.Write(m.Candidate.Data)
}

// Delete cancels a running job. A finished job is removed together with its
// results.
func (h *ScanHandler) Delete(w http.ResponseWriter, r *http.Request) {
	job := h.lookupJob(w, r)
	if job == nil {
		return
	}

	if job.Cancel() {
		respondJSON(w, http.StatusOK, map[string]bool{"cancelled": true})
		return
	}
	h.jobManager.DeleteJob(job.info.ID)
	logger.Info("scan job deleted", logger.LoggerOptions{Key: "job", Data: job.info.ID})
	respondJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

// runScanJob runs the scan in the background
func (h *ScanHandler) runScanJob(ctx context.Context, cancel context.CancelFunc, job *ScanJob, src album.Source, ref string) {
	defer cancel()

	job.setRunning()
	job.SendEvent(JobEvent{Type: "started", Message: "Scan started"})

	_, summary, err := job.scanner.Run(ctx, src, ref)
	switch {
	case err == nil:
		job.finish(JobStatusCompleted, summary, "", JobEvent{Type: "completed", Data: summary})
	case ctx.Err() != nil && errors.Is(err, context.Canceled):
		job.finish(JobStatusCancelled, summary, "", JobEvent{Type: "cancelled", Message: "Scan was cancelled", Data: summary})
	default:
		msg := fmt.Sprintf("scan failed: %v", err)
		job.finish(JobStatusFailed, summary, msg, JobEvent{Type: "job_error", Message: msg, Data: summary})
	}
}
