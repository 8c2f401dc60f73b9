// Package rankcheck orchestrates geo-grid rank checks: it fans one provider
// query out per grid point under bounded concurrency, tolerates point-level
// failures, and reduces the completed grid into summary metrics.
package rankcheck

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/localpulse/rankgrid-cli/internal/geogrid"
	"github.com/localpulse/rankgrid-cli/internal/matcher"
	"github.com/localpulse/rankgrid-cli/internal/metrics"
	"github.com/localpulse/rankgrid-cli/internal/model"
	"github.com/localpulse/rankgrid-cli/pkg/dataforseo"
)

// Engine runs geo-grid rank checks against a ranking provider.
type Engine struct {
	client   dataforseo.Client
	policy   metrics.VisibilityPolicy
	pollOpts []dataforseo.PollOption
	device   string
	depth    int
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithVisibilityPolicy overrides the default visibility score weighting.
func WithVisibilityPolicy(p metrics.VisibilityPolicy) EngineOption {
	return func(e *Engine) {
		e.policy = p
	}
}

// WithPollOptions forwards timing options to every per-point task.
func WithPollOptions(opts ...dataforseo.PollOption) EngineOption {
	return func(e *Engine) {
		e.pollOpts = opts
	}
}

// WithDevice sets the device parameter sent to the provider.
func WithDevice(device string) EngineOption {
	return func(e *Engine) {
		e.device = device
	}
}

// WithDepth sets how many results are requested per point.
func WithDepth(depth int) EngineOption {
	return func(e *Engine) {
		e.depth = depth
	}
}

// NewEngine creates an Engine backed by the given provider client.
func NewEngine(client dataforseo.Client, opts ...EngineOption) *Engine {
	e := &Engine{
		client: client,
		policy: metrics.DefaultVisibilityPolicy(),
		device: "desktop",
		depth:  20,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Run executes one full grid check. Point-level failures never abort the
// grid; if the overall deadline elapses, whatever has completed is returned
// alongside error entries for the remainder. Only request validation fails
// the whole call, before any dispatch.
func (e *Engine) Run(ctx context.Context, req model.CheckRequest) (*model.CheckReport, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := e.policy.Validate(); err != nil {
		return nil, err
	}

	concurrency := req.Concurrency
	if concurrency <= 0 {
		concurrency = 5
	}

	points, err := geogrid.Generate(req.CenterLat, req.CenterLng, req.RadiusKM, req.GridSize, req.Shape)
	if err != nil {
		return nil, err
	}

	log := zap.L().With(
		zap.String("component", "rankcheck.engine"),
		zap.String("keyword", req.Keyword),
		zap.String("business", req.BusinessName),
	)
	log.Info("starting grid check",
		zap.Int("points", len(points)),
		zap.Int("concurrency", concurrency),
		zap.String("shape", req.Shape.String()),
	)

	started := time.Now().UTC()

	if req.Deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Deadline)
		defer cancel()
	}

	var (
		mu      sync.Mutex
		results = make([]model.GridResult, 0, len(points))
	)
	var completed, failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for _, point := range points {
		g.Go(func() error {
			res := e.checkPoint(gctx, req, point)

			mu.Lock()
			results = append(results, res)
			mu.Unlock()

			if res.Resolved() {
				completed.Add(1)
			} else {
				failed.Add(1)
				log.Warn("point query failed",
					zap.Int("point_id", point.ID),
					zap.String("error_kind", string(res.Error)),
				)
			}
			return nil // a stuck point degrades only its own result
		})
	}

	// Workers never return errors; Wait only releases the pool.
	_ = g.Wait()

	// Results arrive in completion order; key them back to grid order.
	sort.Slice(results, func(i, j int) bool {
		return results[i].Point.ID < results[j].Point.ID
	})

	report := &model.CheckReport{
		ID:             uuid.NewString(),
		Request:        req,
		Results:        results,
		Metrics:        metrics.Aggregate(results, e.policy),
		CompletionRate: float64(completed.Load()) / float64(len(points)),
		StartedAt:      started,
		Duration:       time.Since(started),
	}

	log.Info("grid check complete",
		zap.Int64("completed", completed.Load()),
		zap.Int64("failed", failed.Load()),
		zap.Float64("completion_rate", report.CompletionRate),
		zap.Float64("visibility", report.Metrics.VisibilityScore),
		zap.Duration("elapsed", report.Duration),
	)

	return report, nil
}

// checkPoint runs the full submit/poll/fetch/match cycle for one grid point.
func (e *Engine) checkPoint(ctx context.Context, req model.CheckRequest, point model.GridPoint) model.GridResult {
	res := model.GridResult{Point: point}

	// The grid deadline may already have fired while this point waited for a
	// worker slot.
	if ctx.Err() != nil {
		res.Error = model.ErrTimedOut
		return res
	}

	taskRes, err := dataforseo.RunTask(ctx, e.client, dataforseo.TaskRequest{
		Keyword: req.Keyword,
		Lat:     point.Lat,
		Lng:     point.Lng,
		Device:  e.device,
		Depth:   e.depth,
	}, e.pollOpts...)
	if err != nil {
		res.Error = classifyErr(err)
		return res
	}

	res.SearchVolume = taskRes.SearchVolume
	res.Rank = matchRank(taskRes.Items, req.BusinessName)
	return res
}

// matchRank adapts provider items to the matcher's candidate shape.
func matchRank(items []dataforseo.ResultItem, businessName string) int {
	candidates := make([]matcher.Candidate, 0, len(items))
	for _, it := range items {
		candidates = append(candidates, matcher.Candidate{Position: it.Position, Title: it.Title})
	}
	return matcher.Match(candidates, businessName)
}

// classifyErr maps client errors onto the point-level error taxonomy.
func classifyErr(err error) model.ErrorKind {
	// Cancellation wins even when it surfaces inside a submit attempt: a
	// point cut off by the grid deadline timed out, it wasn't rejected.
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return model.ErrTimedOut
	}

	var submitErr *dataforseo.SubmitError
	if errors.As(err, &submitErr) {
		return model.ErrSubmissionFailed
	}

	var malformed *dataforseo.MalformedError
	if errors.As(err, &malformed) {
		// Keep the raw payload around for diagnosis; the run itself goes on.
		zap.L().Warn("malformed provider response",
			zap.String("reason", malformed.Reason),
			zap.ByteString("raw", malformed.Raw),
		)
		return model.ErrMalformedResponse
	}

	if errors.Is(err, dataforseo.ErrNotFound) {
		// The provider expired the task before we could fetch it.
		return model.ErrTimedOut
	}

	// Remaining provider failures are terminal for the point and behave like
	// timeouts downstream.
	zap.L().Warn("point query error", zap.Error(eris.Wrap(err, "rankcheck: point query")))
	return model.ErrTimedOut
}
