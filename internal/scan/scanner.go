// Package scan runs the face matching pipeline over an album: it owns the
// reference identity, classifies every candidate and collects the matches.
package scan

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/kozaktomas/photo-finder/internal/album"
	"github.com/kozaktomas/photo-finder/internal/constants"
	"github.com/kozaktomas/photo-finder/internal/facematch"
	"github.com/kozaktomas/photo-finder/internal/faces"
	"github.com/kozaktomas/photo-finder/internal/logger"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrNoReference is returned by Run and Scan before SetReference succeeded.
	ErrNoReference = errors.New("no reference identity, submit a reference image first")
	// ErrAlreadyRunning is returned when a scan is started on a running Scanner.
	ErrAlreadyRunning = errors.New("scan already running")
)

// Locator finds face regions in an image.
type Locator interface {
	Locate(ctx context.Context, img *faces.Image) ([]facematch.FaceRegion, error)
}

// Encoder computes one embedding per region.
type Encoder interface {
	Encode(ctx context.Context, img *faces.Image, regions []facematch.FaceRegion) ([]facematch.Embedding, error)
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithConcurrency sets how many candidates are processed at once.
func WithConcurrency(n int) Option {
	return func(s *Scanner) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithTolerance sets the match tolerance.
func WithTolerance(t facematch.Tolerance) Option {
	return func(s *Scanner) { s.tolerance = t }
}

// WithProgress registers a callback invoked after each candidate. Calls
// are serialised and Processed never decreases.
func WithProgress(fn func(Progress)) Option {
	return func(s *Scanner) { s.onProgress = fn }
}

// Scanner holds the state of one matching session.
type Scanner struct {
	locator     Locator
	encoder     Encoder
	tolerance   facematch.Tolerance
	concurrency int
	onProgress  func(Progress)

	mu        sync.Mutex
	state     State
	reference *facematch.ReferenceIdentity
	results   []facematch.MatchResult
	progress  Progress
	summary   Summary
	err       error

	progressMu sync.Mutex
}

// New creates an idle Scanner.
func New(locator Locator, encoder Encoder, opts ...Option) *Scanner {
	s := &Scanner{
		locator:     locator,
		encoder:     encoder,
		tolerance:   facematch.DefaultTolerance,
		concurrency: constants.DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetReference computes the reference identity from an image. The first
// detected face wins. A previous reference is replaced.
func (s *Scanner) SetReference(ctx context.Context, data []byte) (*facematch.ReferenceIdentity, error) {
	if s.State() == StateRunning {
		return nil, ErrAlreadyRunning
	}

	img, err := faces.Decode(data)
	if err != nil {
		return nil, err
	}
	regions, err := s.locator.Locate(ctx, img)
	if err != nil {
		return nil, fmt.Errorf("locating faces in reference: %w", err)
	}
	if len(regions) == 0 {
		return nil, facematch.ErrNoFaceDetected
	}
	if len(regions) > 1 {
		logger.Warning("reference image contains several faces, using the first one",
			logger.LoggerOptions{Key: "faces", Data: len(regions)})
	}

	embs, err := s.encoder.Encode(ctx, img, regions[:1])
	if err != nil {
		return nil, err
	}

	ref := &facematch.ReferenceIdentity{
		Embedding:  embs[0].Clone(),
		Region:     regions[0],
		FacesFound: len(regions),
	}

	s.mu.Lock()
	s.reference = ref
	s.mu.Unlock()
	return ref, nil
}

// Reference returns the current reference identity or nil.
func (s *Scanner) Reference() *facematch.ReferenceIdentity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reference
}

// Run lists the album through src and scans every image in it. Items are
// downloaded lazily by the workers.
func (s *Scanner) Run(ctx context.Context, src album.Source, ref string) ([]facematch.MatchResult, Summary, error) {
	reference, err := s.begin()
	if err != nil {
		return nil, Summary{}, err
	}

	albumID, err := src.ParseRef(ref)
	if err != nil {
		s.reset()
		return nil, Summary{}, err
	}

	items, err := src.List(ctx, albumID)
	if errors.Is(err, facematch.ErrInvalidAlbumReference) {
		s.reset()
		return nil, Summary{}, err
	}
	if err != nil {
		err = fmt.Errorf("%w: listing %s album %s: %w", facematch.ErrAlbumSource, src.Kind(), albumID, err)
		return nil, s.finish(0, err), err
	}
	logger.Info("album listed",
		logger.LoggerOptions{Key: "source", Data: src.Kind()},
		logger.LoggerOptions{Key: "album", Data: albumID},
		logger.LoggerOptions{Key: "images", Data: len(items)})

	fetch := func(ctx context.Context, i int) (facematch.CandidateImage, error) {
		data, err := src.Fetch(ctx, items[i])
		if err != nil {
			return facematch.CandidateImage{}, fmt.Errorf("%w: downloading %s: %w", facematch.ErrAlbumSource, items[i].Name, err)
		}
		return facematch.CandidateImage{ID: items[i].ID, Name: items[i].Name, Data: data}, nil
	}
	return s.run(ctx, reference, len(items), fetch)
}

// Scan classifies candidates that are already in memory.
func (s *Scanner) Scan(ctx context.Context, candidates []facematch.CandidateImage) ([]facematch.MatchResult, Summary, error) {
	reference, err := s.begin()
	if err != nil {
		return nil, Summary{}, err
	}

	fetch := func(_ context.Context, i int) (facematch.CandidateImage, error) {
		return candidates[i], nil
	}
	return s.run(ctx, reference, len(candidates), fetch)
}

// begin moves the scanner to Running and clears the previous results.
func (s *Scanner) begin() (facematch.Embedding, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateRunning {
		return nil, ErrAlreadyRunning
	}
	if s.reference == nil {
		return nil, ErrNoReference
	}
	if err := s.tolerance.Validate(); err != nil {
		return nil, err
	}

	s.state = StateRunning
	s.results = nil
	s.progress = Progress{}
	s.summary = Summary{}
	s.err = nil
	return s.reference.Embedding, nil
}

// reset returns to Idle when a run is refused before it started.
func (s *Scanner) reset() {
	s.mu.Lock()
	s.state = StateIdle
	s.mu.Unlock()
}

func (s *Scanner) run(ctx context.Context, reference facematch.Embedding, total int,
	fetch func(context.Context, int) (facematch.CandidateImage, error)) ([]facematch.MatchResult, Summary, error) {
	s.mu.Lock()
	s.progress.Total = total
	s.summary.Total = total
	s.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for i := range total {
		// cooperative cancellation: nothing new starts once cancelled
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			// started candidates run to completion
			itemCtx := context.WithoutCancel(gctx)

			cand, err := fetch(itemCtx, i)
			if err != nil {
				return err
			}
			res, err := s.classify(itemCtx, reference, i, cand)
			if err != nil && !facematch.IsItemError(err) {
				return fmt.Errorf("classifying %s: %w", cand.Name, err)
			}
			s.record(res, cand, err)
			return nil
		})
	}

	err := g.Wait()
	if err == nil && s.Progress().Processed < total {
		err = ctx.Err()
	}
	summary := s.finish(total, err)
	return s.Results(), summary, err
}

// classify decides whether any face of cand matches reference. It stops
// at the first matching face.
func (s *Scanner) classify(ctx context.Context, reference facematch.Embedding, index int,
	cand facematch.CandidateImage) (*facematch.MatchResult, error) {
	img, err := faces.Decode(cand.Data)
	if err != nil {
		return nil, err
	}

	regions, err := s.locator.Locate(ctx, img)
	if err != nil {
		return nil, fmt.Errorf("locating faces: %w", err)
	}

	for _, r := range regions {
		embs, err := s.encoder.Encode(ctx, img, []facematch.FaceRegion{r})
		if err != nil {
			return nil, err
		}
		if _, dist, ok := facematch.FirstMatch(reference, embs, s.tolerance); ok {
			return &facematch.MatchResult{
				Candidate: cand,
				Index:     index,
				Matched:   embs,
				Distance:  dist,
			}, nil
		}
	}
	return nil, nil
}

// record stores the outcome of one candidate and reports progress.
func (s *Scanner) record(res *facematch.MatchResult, cand facematch.CandidateImage, err error) {
	if err != nil {
		logger.Debug("skipping candidate",
			logger.LoggerOptions{Key: "name", Data: cand.Name},
			logger.LoggerOptions{Key: "error", Data: err})
	}

	s.progressMu.Lock()
	defer s.progressMu.Unlock()

	s.mu.Lock()
	s.progress.Processed++
	s.summary.Scanned++
	if err != nil {
		s.summary.Skipped++
	}
	if res != nil {
		s.results = append(s.results, *res)
		s.summary.Matched++
	}
	p := s.progress
	s.mu.Unlock()

	if s.onProgress != nil {
		s.onProgress(p)
	}
}

// finish moves to Completed or, when err is set, Aborted.
func (s *Scanner) finish(total int, err error) Summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.summary.Total = total
	s.progress.Total = total
	s.err = err
	if err != nil {
		s.state = StateAborted
		s.summary.Partial = true
		logger.Error("scan aborted",
			logger.LoggerOptions{Key: "error", Data: err},
			logger.LoggerOptions{Key: "scanned", Data: s.summary.Scanned},
			logger.LoggerOptions{Key: "matched", Data: s.summary.Matched})
	} else {
		s.state = StateCompleted
		logger.Info("scan completed",
			logger.LoggerOptions{Key: "scanned", Data: s.summary.Scanned},
			logger.LoggerOptions{Key: "matched", Data: s.summary.Matched},
			logger.LoggerOptions{Key: "skipped", Data: s.summary.Skipped})
	}
	return s.summary
}

func (s *Scanner) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Scanner) Progress() Progress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progress
}

func (s *Scanner) Summary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.summary
}

// Err returns the error that aborted the last run.
func (s *Scanner) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Results returns the matches of the last run in candidate order.
func (s *Scanner) Results() []facematch.MatchResult {
	s.mu.Lock()
	out := slices.Clone(s.results)
	s.mu.Unlock()

	slices.SortFunc(out, func(a, b facematch.MatchResult) int { return a.Index - b.Index })
	return out
}
