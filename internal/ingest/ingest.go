package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/apresai/quizzify/internal/progress"
)

// maxInputSize is the maximum allowed size for a single upload (25 MB).
const maxInputSize = 25 * 1024 * 1024

// UploadedFile is one blob handed over by the upload surface. The pipeline
// only holds on to it for the duration of a single Ingest call.
type UploadedFile struct {
	Name string
	Data []byte
}

// PageRecord is one page of extracted text. Source is the original upload
// name, never the temporary path the extractor saw.
type PageRecord struct {
	Source   string
	Page     int
	Text     string
	Metadata map[string]any
}

// PageCollection is ordered by upload order, then page order within a file.
type PageCollection []PageRecord

// FailurePolicy decides what happens when a file cannot be extracted.
type FailurePolicy int

const (
	// FailFast aborts the run on the first extraction failure.
	FailFast FailurePolicy = iota
	// SkipFailed logs the failure, omits the file and keeps going.
	SkipFailed
)

func (p FailurePolicy) String() string {
	switch p {
	case SkipFailed:
		return "skip"
	default:
		return "fail-fast"
	}
}

// ParseFailurePolicy maps a flag value to a policy.
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch s {
	case "", "fail-fast":
		return FailFast, nil
	case "skip":
		return SkipFailed, nil
	default:
		return FailFast, fmt.Errorf("invalid failure policy %q: must be fail-fast or skip", s)
	}
}

// SummaryMessage is the line reported after every Ingest call.
func SummaryMessage(count int) string {
	return fmt.Sprintf("Total number of pages processed: %d", count)
}

// Pipeline turns uploaded blobs into page records. It holds per-run state and
// is not safe for concurrent use; give each interaction its own Pipeline.
type Pipeline struct {
	extractor Extractor
	policy    FailurePolicy
	tempDir   string
	report    progress.Callback
	log       *slog.Logger

	pages PageCollection
}

type Option func(*Pipeline)

// WithExtractor replaces the default extension-routed extractor.
func WithExtractor(e Extractor) Option {
	return func(p *Pipeline) { p.extractor = e }
}

func WithFailurePolicy(policy FailurePolicy) Option {
	return func(p *Pipeline) { p.policy = policy }
}

// WithTempDir sets where uploads are materialized. Empty means os.TempDir().
func WithTempDir(dir string) Option {
	return func(p *Pipeline) { p.tempDir = dir }
}

// WithReporter sets the sink that receives the page-count summary.
func WithReporter(cb progress.Callback) Option {
	return func(p *Pipeline) { p.report = cb }
}

func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.log = l }
}

func NewPipeline(opts ...Option) *Pipeline {
	p := &Pipeline{
		extractor: NewRouter(),
		policy:    FailFast,
		report:    progress.NopCallback,
		log:       slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Ingest processes files in order and appends their pages to the collection
// held by the pipeline. Every temporary file is removed before Ingest returns.
//
// Under FailFast the first failure aborts the run and the pages gathered so
// far are returned with the error. Under SkipFailed extraction failures are
// collected into a *SkippedError returned next to the full result; temp file
// I/O failures stay fatal under both policies.
func (p *Pipeline) Ingest(ctx context.Context, files []UploadedFile) (PageCollection, error) {
	start := time.Now()
	var skipped []*ExtractionError

	for i, f := range files {
		if err := ctx.Err(); err != nil {
			return p.Pages(), err
		}

		records, err := p.ingestOne(ctx, f)
		if err != nil {
			var (
				exErr  *ExtractionError
				tmpErr *TempFileError
			)
			if p.policy == SkipFailed && !errors.As(err, &tmpErr) && errors.As(err, &exErr) {
				p.log.WarnContext(ctx, "Skipping file that could not be extracted",
					"file", f.Name, "error", exErr.Err)
				skipped = append(skipped, exErr)
				continue
			}
			p.log.ErrorContext(ctx, "Ingestion failed", "file", f.Name, "error", err)
			return p.Pages(), err
		}

		p.pages = append(p.pages, records...)
		p.log.DebugContext(ctx, "Ingested file", "file", f.Name, "pages", len(records))

		p.report(progress.Event{
			Stage:   progress.StageIngest,
			Message: fmt.Sprintf("Ingested %s (%d pages)", f.Name, len(records)),
			Percent: float64(i+1) / float64(len(files)),
			Current: i + 1,
			Total:   len(files),
			Elapsed: time.Since(start),
		})
	}

	summary := SummaryMessage(len(p.pages))
	p.log.InfoContext(ctx, summary, "files", len(files), "skipped", len(skipped))
	p.report(progress.NewEvent(progress.StageIngest, summary, 1.0, start))

	if len(skipped) > 0 {
		return p.Pages(), &SkippedError{Files: skipped}
	}
	return p.Pages(), nil
}

// ingestOne materializes f on disk, extracts it and removes the temp file on
// every path out.
func (p *Pipeline) ingestOne(ctx context.Context, f UploadedFile) (records []PageRecord, err error) {
	if len(f.Data) > maxInputSize {
		return nil, &ExtractionError{
			File: f.Name,
			Err:  fmt.Errorf("file is too large (%d MB, max %d MB)", len(f.Data)/(1024*1024), maxInputSize/(1024*1024)),
		}
	}

	path, err := writeTemp(p.tempDir, f)
	if err != nil {
		return nil, err
	}
	defer func() {
		rmErr := removeTemp(path)
		if rmErr == nil {
			return
		}
		p.log.ErrorContext(ctx, "Could not remove temp file", "path", path, "error", rmErr)
		records, err = nil, errors.Join(err, rmErr)
	}()

	extracted, err := p.extractor.Extract(ctx, path)
	if err != nil {
		return nil, &ExtractionError{File: f.Name, Err: err}
	}

	records = make([]PageRecord, len(extracted))
	for i, r := range extracted {
		meta := make(map[string]any, len(r.Metadata)+1)
		for k, v := range r.Metadata {
			meta[k] = v
		}
		meta["source"] = f.Name
		r.Source = f.Name
		r.Metadata = meta
		records[i] = r
	}
	return records, nil
}

// Pages returns a copy of the collection accumulated so far.
func (p *Pipeline) Pages() PageCollection {
	out := make(PageCollection, len(p.pages))
	copy(out, p.pages)
	return out
}

// Reset drops the accumulated collection so the pipeline can start a fresh run.
func (p *Pipeline) Reset() {
	p.pages = nil
}
