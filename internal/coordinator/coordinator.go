// Package coordinator implements the per-request pipeline tying the result
// cache, worker pool, and protocol layer together: validate, consult cache,
// acquire worker, run analysis, enrich, cache, emit.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Sumatoshi-tech/codepulse/internal/analysis"
	"github.com/Sumatoshi-tech/codepulse/internal/resultcache"
	"github.com/Sumatoshi-tech/codepulse/internal/worker"
)

// Validation errors. These are user-facing and are not logged as faults.
var (
	ErrEmptyCode    = errors.New("no code provided")
	ErrCodeTooLarge = errors.New("code exceeds maximum size limit")
)

// Progress checkpoints emitted during a fresh analysis.
const (
	progressInit    = 25
	progressRunning = 50
	progressFormat  = 75
	progressDone    = 100
)

// Quality score weighting, applied to the complexity and maintainability
// sub-scores.
const (
	complexityWeight      = 0.4
	maintainabilityWeight = 0.6
	maxSubScore           = 10
	maxQualityScore       = 100
)

// ProgressFunc receives ordered progress events for one request. Emitting
// to a dead connection must be a no-op in the implementation; the pipeline
// never checks delivery.
type ProgressFunc func(progress int, message string)

// Config bounds request validation.
type Config struct {
	// MaxCodeBytes is the largest accepted submission, in bytes.
	MaxCodeBytes int

	// DefaultLanguage is used when a request omits the language and
	// content detection is inconclusive.
	DefaultLanguage string
}

// Coordinator orchestrates analysis requests. Safe for concurrent use: all
// shared state lives in the pool and cache, which synchronize internally.
type Coordinator struct {
	pool   *worker.Pool
	cache  *resultcache.Cache
	logger *slog.Logger
	cfg    Config

	// now is replaceable in tests.
	now func() time.Time
}

// New creates a coordinator over the given pool and cache.
func New(pool *worker.Pool, cache *resultcache.Cache, logger *slog.Logger, cfg Config) *Coordinator {
	return &Coordinator{
		pool:   pool,
		cache:  cache,
		logger: logger.With("component", "coordinator"),
		cfg:    cfg,
		now:    time.Now,
	}
}

// IsValidationError reports whether err is a request validation failure,
// surfaced to the client without being logged as a fault.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrEmptyCode) || errors.Is(err, ErrCodeTooLarge)
}

// Analyze runs the full lint pipeline for one request. On a cache hit the
// worker is skipped entirely and the cached report is returned; otherwise
// the lint worker runs, the result is enriched and cached, and progress
// checkpoints are emitted in strict order. Exactly one of report/error is
// produced.
func (c *Coordinator) Analyze(ctx context.Context, req analysis.Request, emit ProgressFunc) (*analysis.Report, error) {
	req, err := c.validate(req)
	if err != nil {
		return nil, err
	}

	if cached := c.cache.Get(req.Code); cached != nil {
		c.logger.InfoContext(ctx, "returning cached analysis",
			"client", req.ClientID, "hash", cached.CodeHash)

		return cached, nil
	}

	emit(progressInit, "Initializing analysis...")

	// Acquisition may block on a cold worker load, hence a checkpoint on
	// both sides.
	w, err := c.pool.Get(ctx, analysis.KindLint)
	if err != nil {
		return nil, err
	}

	emit(progressRunning, "Running analysis...")

	start := c.now()

	result, err := w.Run(ctx, req)
	if err != nil {
		return nil, err
	}

	emit(progressFormat, "Processing results...")

	report := result.Report
	if report == nil {
		return nil, fmt.Errorf("%s analysis: analyzer returned no report", analysis.KindLint)
	}

	c.enrich(report, req, w.Name(), c.now().Sub(start))
	c.cache.Put(req.Code, report)

	emit(progressDone, "Analysis complete")

	return report, nil
}

// Refactor generates refactoring suggestions. Derived from mutable prior
// analysis context, so the output is not cached.
func (c *Coordinator) Refactor(ctx context.Context, req analysis.Request) ([]analysis.Suggestion, error) {
	req, err := c.validate(req)
	if err != nil {
		return nil, err
	}

	w, err := c.pool.Get(ctx, analysis.KindRefactor)
	if err != nil {
		return nil, err
	}

	result, err := w.Run(ctx, req)
	if err != nil {
		return nil, err
	}

	return result.Suggestions, nil
}

// GenerateTests generates test cases. Like Refactor, not cached.
func (c *Coordinator) GenerateTests(ctx context.Context, req analysis.Request) ([]analysis.TestCase, error) {
	req, err := c.validate(req)
	if err != nil {
		return nil, err
	}

	w, err := c.pool.Get(ctx, analysis.KindTestgen)
	if err != nil {
		return nil, err
	}

	result, err := w.Run(ctx, req)
	if err != nil {
		return nil, err
	}

	return result.TestCases, nil
}

// validate normalizes a request: code must be non-empty after trimming and
// within the size bound; a missing language is detected from content or
// defaulted.
func (c *Coordinator) validate(req analysis.Request) (analysis.Request, error) {
	req.Code = strings.TrimSpace(req.Code)
	if req.Code == "" {
		return req, ErrEmptyCode
	}

	if c.cfg.MaxCodeBytes > 0 && len(req.Code) > c.cfg.MaxCodeBytes {
		return req, fmt.Errorf("%w (%d bytes, limit %d)", ErrCodeTooLarge, len(req.Code), c.cfg.MaxCodeBytes)
	}

	req.Language = strings.ToLower(strings.TrimSpace(req.Language))
	if req.Language == "" {
		req.Language = analysis.DetectLanguage(req.Code)
	}

	if req.Language == "" {
		req.Language = c.cfg.DefaultLanguage
	}

	if req.RequestedAt.IsZero() {
		req.RequestedAt = c.now()
	}

	return req, nil
}

// enrich attaches metadata and recomputes the derived quality score.
func (c *Coordinator) enrich(report *analysis.Report, req analysis.Request, analyzerName string, elapsed time.Duration) {
	report.CodeHash = resultcache.Key(req.Code)
	report.Language = req.Language
	report.Timestamp = c.now().UTC().Format(time.RFC3339)
	report.ProcessingTimeMS = elapsed.Milliseconds()
	report.Analyzer = analyzerName

	report.Metrics.QualityScore = qualityScore(report.Metrics)
}

// qualityScore combines the complexity and maintainability sub-scores,
// weighted 40/60, clamped to [0, 100].
func qualityScore(m analysis.Metrics) int {
	complexityScore := max(0, maxSubScore-m.Complexity)

	score := int(complexityWeight*float64(complexityScore) + maintainabilityWeight*float64(m.Maintainability))

	return min(max(score, 0), maxQualityScore)
}
