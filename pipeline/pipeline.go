// Package pipeline runs listings through fetch, extraction and assembly and persists the dataset.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/aluiziolira/cardgrade/config"
	"github.com/aluiziolira/cardgrade/extract"
	"github.com/aluiziolira/cardgrade/models"
	"github.com/aluiziolira/cardgrade/scraper"
)

const tracerName = "github.com/aluiziolira/cardgrade/pipeline"

// PersistenceError reports that the final dataset could not be written. It is fatal to a run.
type PersistenceError struct {
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist dataset %s: %v", e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// ImagePairSelector resolves front and back images of a page.
type ImagePairSelector interface {
	Select(page *models.RenderedPage) (models.ImagePair, error)
}

// GradeExtractor reads the grade and price of a page.
type GradeExtractor interface {
	Extract(ctx context.Context, page *models.RenderedPage, frontURL string) models.Extraction
}

// Ledger records runs and outcomes. Ledger failures are logged and never abort a run.
type Ledger interface {
	StartRun(ctx context.Context, runID string, started time.Time, total int) error
	RecordOutcome(ctx context.Context, runID string, outcome models.Outcome) error
	FinishRun(ctx context.Context, result *models.RunResult) error
}

// Runner processes identifiers one at a time and owns the dataset while a run is in progress.
type Runner struct {
	cfg     *config.Config
	fetcher scraper.Fetcher
	images  ImagePairSelector
	grades  GradeExtractor
	writer  OutputWriter
	ledger  Ledger
	metrics *Metrics
	tracer  trace.Tracer
}

// Option customises a Runner.
type Option func(*Runner)

// WithLedger records every run in l.
func WithLedger(l Ledger) Option {
	return func(r *Runner) { r.ledger = l }
}

// WithMetrics reports to m.
func WithMetrics(m *Metrics) Option {
	return func(r *Runner) { r.metrics = m }
}

// WithTracer overrides the global tracer.
func WithTracer(t trace.Tracer) Option {
	return func(r *Runner) { r.tracer = t }
}

// NewRunner wires the per-listing stages. writer may be nil for single-listing use.
func NewRunner(cfg *config.Config, fetcher scraper.Fetcher, images ImagePairSelector, grades GradeExtractor, writer OutputWriter, opts ...Option) *Runner {
	r := &Runner{
		cfg:     cfg,
		fetcher: fetcher,
		images:  images,
		grades:  grades,
		writer:  writer,
		tracer:  otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run processes identifiers in the order given and replaces the dataset with the accepted records.
// Only a dataset write failure (*PersistenceError) or cancellation of ctx returns an error; on
// cancellation the existing dataset is left in place.
func (r *Runner) Run(ctx context.Context, identifiers []string) (*models.RunResult, error) {
	if r.writer == nil {
		return nil, errors.New("pipeline: runner has no output writer")
	}

	result := &models.RunResult{
		RunID:             uuid.NewString(),
		StartTime:         time.Now(),
		RejectedByReason:  make(map[string]int),
		FetchErrorsByType: make(map[string]int),
		Records:           make([]*models.CardRecord, 0, len(identifiers)),
	}
	logger := slog.With(slog.String("run_id", result.RunID))
	logger.Info("run started", slog.Int("identifiers", len(identifiers)))

	if r.ledger != nil {
		if err := r.ledger.StartRun(ctx, result.RunID, result.StartTime, len(identifiers)); err != nil {
			logger.Warn("run ledger unavailable", slog.Any("error", err))
		}
	}

	size := r.cfg.DedupeMaxSize
	if size <= 0 {
		size = 1
	}
	seen, err := lru.New[string, struct{}](size)
	if err != nil {
		return nil, fmt.Errorf("dedupe cache: %w", err)
	}

	// lastDone is when the previous fetched listing finished; the next one starts Delay later.
	var lastDone time.Time
	for _, id := range identifiers {
		if err := ctx.Err(); err != nil {
			return r.abort(result, logger, err)
		}

		var outcome models.Outcome
		if seen.Contains(id) {
			outcome = models.Outcome{Identifier: id, State: models.StateRejected, Reason: models.ReasonDuplicate}
		} else {
			seen.Add(id, struct{}{})
			if !lastDone.IsZero() {
				if err := pause(ctx, r.cfg.Delay-time.Since(lastDone)); err != nil {
					return r.abort(result, logger, err)
				}
			}
			outcome = r.ProcessListing(ctx, id)
			lastDone = time.Now()
			if outcome.Reason == models.ReasonCanceled {
				return r.abort(result, logger, ctx.Err())
			}
		}

		r.tally(result, logger, outcome)
		if r.ledger != nil {
			if err := r.ledger.RecordOutcome(ctx, result.RunID, outcome); err != nil {
				logger.Warn("run ledger write failed", slog.String("identifier", id), slog.Any("error", err))
			}
		}
	}

	if err := r.writer.Write(result.Records); err != nil {
		result.EndTime = time.Now()
		perr := &PersistenceError{Path: r.writer.Path(), Err: err}
		logger.Error("dataset write failed", slog.String("path", perr.Path), slog.Any("error", err))
		return result, perr
	}
	r.metrics.SetDatasetRecords(len(result.Records))

	result.EndTime = time.Now()
	if r.ledger != nil {
		if err := r.ledger.FinishRun(context.WithoutCancel(ctx), result); err != nil {
			logger.Warn("run ledger finish failed", slog.Any("error", err))
		}
	}
	logger.Info("run finished",
		slog.Int("total", result.TotalCount),
		slog.Int("accepted", result.AcceptedCount),
		slog.Int("rejected", result.RejectedCount),
		slog.String("path", r.writer.Path()),
		slog.Duration("elapsed", result.EndTime.Sub(result.StartTime)),
	)
	return result, nil
}

func (r *Runner) abort(result *models.RunResult, logger *slog.Logger, err error) (*models.RunResult, error) {
	result.EndTime = time.Now()
	logger.Warn("run aborted, dataset left unchanged",
		slog.Int("processed", result.TotalCount),
		slog.Any("error", err),
	)
	return result, fmt.Errorf("run aborted: %w", err)
}

func (r *Runner) tally(result *models.RunResult, logger *slog.Logger, o models.Outcome) {
	result.TotalCount++
	r.metrics.ObserveDuration(o.Duration)
	if o.GradeSource == extract.SourceOCR {
		result.OCRFallbacks++
		r.metrics.IncOCRFallback()
	}

	if o.Accepted() {
		result.AcceptedCount++
		result.Records = append(result.Records, o.Record)
		r.metrics.IncListing("accepted")
		logger.Info("listing assembled",
			slog.String("identifier", o.Identifier),
			slog.Int("grade", o.Record.Grade),
			slog.String("source", o.GradeSource),
		)
		return
	}

	result.RejectedCount++
	result.RejectedByReason[o.Reason]++
	result.RejectedIDs = append(result.RejectedIDs, o.Identifier)
	r.metrics.IncListing("rejected")
	r.metrics.IncRejection(o.Reason)
	if o.Reason == models.ReasonFetchError {
		label := scraper.ErrorTypeLabel(o.Err)
		result.FetchErrorsByType[label]++
		r.metrics.IncFetchError(label)
	}

	attrs := []any{
		slog.String("identifier", o.Identifier),
		slog.String("reason", o.Reason),
	}
	if o.Err != nil {
		attrs = append(attrs, slog.Any("error", o.Err))
	}
	logger.Warn("listing rejected", attrs...)
}

// ProcessListing runs one identifier through fetch, extraction and assembly under the listing
// watchdog. It always returns a terminal outcome. When the watchdog fires, the abandoned work keeps
// running in the background until its own timeouts release the browser.
func (r *Runner) ProcessListing(ctx context.Context, identifier string) models.Outcome {
	start := time.Now()
	ctx, span := r.tracer.Start(ctx, "listing", trace.WithAttributes(attribute.String("listing.id", identifier)))
	defer span.End()

	slog.Debug("listing state", slog.String("identifier", identifier), slog.String("state", string(models.StatePending)))

	// Bounded so that abandoned work cannot outlive the run indefinitely.
	work, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*r.cfg.ListingTimeout+r.cfg.NavigationTimeout)
	done := make(chan models.Outcome, 1)
	go func() {
		defer cancel()
		defer func() {
			if rec := recover(); rec != nil {
				done <- models.Outcome{
					Identifier: identifier,
					State:      models.StateRejected,
					Reason:     models.ReasonPanic,
					Err:        fmt.Errorf("listing panic: %v", rec),
				}
			}
		}()
		done <- r.runStages(work, identifier)
	}()

	watchdog := time.NewTimer(r.cfg.ListingTimeout)
	defer watchdog.Stop()

	var outcome models.Outcome
	select {
	case outcome = <-done:
	case <-watchdog.C:
		outcome = models.Outcome{
			Identifier: identifier,
			State:      models.StateRejected,
			Reason:     models.ReasonWatchdogTimeout,
			Err:        scraper.ErrTimeout{Err: fmt.Errorf("listing exceeded %s", r.cfg.ListingTimeout)},
		}
	case <-ctx.Done():
		outcome = models.Outcome{
			Identifier: identifier,
			State:      models.StateRejected,
			Reason:     models.ReasonCanceled,
			Err:        ctx.Err(),
		}
	}
	outcome.Duration = time.Since(start)

	span.SetAttributes(attribute.String("listing.state", string(outcome.State)))
	if !outcome.Accepted() {
		span.SetAttributes(attribute.String("listing.reason", outcome.Reason))
		if outcome.Err != nil {
			span.RecordError(outcome.Err)
		}
		span.SetStatus(codes.Error, outcome.Reason)
	}
	slog.Debug("listing state",
		slog.String("identifier", identifier),
		slog.String("state", string(outcome.State)),
		slog.Duration("elapsed", outcome.Duration),
	)
	return outcome
}

func (r *Runner) runStages(ctx context.Context, identifier string) models.Outcome {
	slog.Debug("listing state", slog.String("identifier", identifier), slog.String("state", string(models.StateFetching)))
	page, err := r.fetcher.Fetch(ctx, identifier)
	if err != nil {
		return models.Outcome{
			Identifier: identifier,
			State:      models.StateRejected,
			Reason:     models.ReasonFetchError,
			Err:        err,
		}
	}

	slog.Debug("listing state", slog.String("identifier", identifier), slog.String("state", string(models.StateExtracting)))
	pair, pairErr := r.images.Select(page)

	var ext models.Extraction
	if pairErr == nil {
		ext = r.grades.Extract(ctx, page, pair.FrontURL)
	} else {
		slog.Debug("listing images unusable",
			slog.String("identifier", identifier),
			slog.Int("images", len(page.Images)),
			slog.String("text", excerpt(page.Text, 200)),
			slog.Any("error", pairErr),
		)
	}
	return Assemble(identifier, pair, pairErr, ext)
}

// excerpt trims s to at most n runes for log lines.
func excerpt(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
