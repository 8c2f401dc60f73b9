package dataforseo

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/localpulse/rankgrid-cli/internal/resilience"
)

const (
	defaultInitialWait = 15 * time.Second
	defaultBackoff     = 5 * time.Second
	defaultBackoffCap  = 30 * time.Second
	defaultDeadline    = 90 * time.Second
	// finalFetchGrace bounds the last-chance fetch issued after the task
	// deadline expires.
	finalFetchGrace = 5 * time.Second
)

// TaskState tracks one task through the submit/poll/fetch protocol.
type TaskState int

const (
	// TaskCreated means the task has been built but not yet submitted.
	TaskCreated TaskState = iota + 1
	// TaskPolling means the task is submitted and awaiting a result.
	TaskPolling
	// TaskReady means the provider signalled the result is available.
	TaskReady
	// TaskFailed means submission or fetch failed terminally.
	TaskFailed
	// TaskTimedOut means the task deadline elapsed without a usable result.
	TaskTimedOut
)

// String returns the task state name.
func (s TaskState) String() string {
	switch s {
	case TaskCreated:
		return "created"
	case TaskPolling:
		return "polling"
	case TaskReady:
		return "ready"
	case TaskFailed:
		return "failed"
	case TaskTimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

// Task is the private state machine of one in-flight rank query. Each task
// belongs to exactly one worker; no shared mutable state.
type Task struct {
	ID        string
	Keyword   string
	State     TaskState
	CreatedAt time.Time
}

// SubmitError marks a terminal failure at submit time, after the one
// permitted retry on transient network errors.
type SubmitError struct {
	Err error
}

func (e *SubmitError) Error() string {
	return "dataforseo: submit failed: " + e.Err.Error()
}

func (e *SubmitError) Unwrap() error {
	return e.Err
}

// PollOption configures RunTask timing.
type PollOption func(*pollConfig)

type pollConfig struct {
	initialWait time.Duration
	backoff     time.Duration
	backoffCap  time.Duration
	deadline    time.Duration
	retry       resilience.RetryConfig
}

func defaultPollConfig() pollConfig {
	return pollConfig{
		initialWait: defaultInitialWait,
		backoff:     defaultBackoff,
		backoffCap:  defaultBackoffCap,
		deadline:    defaultDeadline,
		retry:       resilience.DefaultRetryConfig(),
	}
}

// WithInitialWait overrides the fixed wait before the first poll. Providers
// rarely resolve faster, so polling earlier only burns quota.
func WithInitialWait(d time.Duration) PollOption {
	return func(c *pollConfig) {
		c.initialWait = d
	}
}

// WithBackoff overrides the starting poll interval and its ceiling.
func WithBackoff(start, cap time.Duration) PollOption {
	return func(c *pollConfig) {
		c.backoff = start
		c.backoffCap = cap
	}
}

// WithDeadline overrides the per-task deadline (applied only when the parent
// context carries no deadline of its own).
func WithDeadline(d time.Duration) PollOption {
	return func(c *pollConfig) {
		c.deadline = d
	}
}

// WithRetryConfig overrides the submit retry policy.
func WithRetryConfig(cfg resilience.RetryConfig) PollOption {
	return func(c *pollConfig) {
		c.retry = cfg
	}
}

// RunTask drives one query through the full protocol: submit (with a single
// transient-error retry), fixed initial wait, ready-check poll loop with
// exponential backoff, fetch. The task is abandoned on deadline; the provider
// auto-expires it, so no cancellation call is made.
//
// Error semantics for the caller: *SubmitError is a submission failure,
// context.DeadlineExceeded is a timeout, *MalformedError is a provider shape
// violation. An empty result set returns successfully.
func RunTask(ctx context.Context, c Client, req TaskRequest, opts ...PollOption) (*TaskResult, error) {
	cfg := defaultPollConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.deadline)
		defer cancel()
	}

	log := zap.L().With(zap.String("component", "dataforseo.poll"), zap.String("keyword", req.Keyword))

	task := &Task{Keyword: req.Keyword, State: TaskCreated, CreatedAt: time.Now().UTC()}

	cfg.retry.OnRetry = resilience.RetryLogger("dataforseo", "task_post")
	if cfg.retry.ShouldRetry == nil {
		cfg.retry.ShouldRetry = shouldRetrySubmit
	}
	id, err := resilience.DoVal(ctx, cfg.retry, func(ctx context.Context) (string, error) {
		return c.SubmitTask(ctx, req)
	})
	if err != nil {
		task.State = TaskFailed
		return nil, &SubmitError{Err: err}
	}
	task.ID = id
	task.State = TaskPolling
	log.Debug("task submitted", zap.String("task_id", id))

	if err := sleepCtx(ctx, cfg.initialWait); err != nil {
		return finalFetch(ctx, c, task, log)
	}

	interval := cfg.backoff
	for {
		if task.State == TaskPolling {
			ready, readyErr := c.IsReady(ctx, task.ID)
			if readyErr != nil {
				// The ready signal is a hint; fall through to a fetch attempt.
				log.Debug("ready check failed", zap.Error(readyErr))
				task.State = TaskReady
			} else if ready {
				task.State = TaskReady
			}
		}

		if task.State == TaskReady {
			res, fetchErr := c.FetchResult(ctx, task.ID)
			switch {
			case fetchErr == nil:
				log.Debug("task fetched", zap.String("task_id", task.ID), zap.Int("items", len(res.Items)))
				return res, nil
			case errors.Is(fetchErr, ErrNotReady), errors.Is(fetchErr, ErrNotFound):
				// Not ready despite the hint, or the id hasn't propagated yet.
				task.State = TaskPolling
			default:
				if ctx.Err() != nil {
					return finalFetch(ctx, c, task, log)
				}
				task.State = TaskFailed
				return nil, fetchErr
			}
		}

		if err := sleepCtx(ctx, interval); err != nil {
			return finalFetch(ctx, c, task, log)
		}

		interval *= 2
		if interval > cfg.backoffCap {
			interval = cfg.backoffCap
		}
	}
}

// shouldRetrySubmit treats provider 5xx/429 responses as transient alongside
// the usual network failures.
func shouldRetrySubmit(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return resilience.IsTransientHTTPStatus(apiErr.StatusCode)
	}
	return resilience.IsTransient(err)
}

// finalFetch makes one last-chance fetch after the deadline, since providers
// may resolve without a reliable ready signal. Failure here is a timeout.
func finalFetch(ctx context.Context, c Client, task *Task, log *zap.Logger) (*TaskResult, error) {
	cause := ctx.Err()

	if task.ID != "" {
		graceCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalFetchGrace)
		defer cancel()

		if res, err := c.FetchResult(graceCtx, task.ID); err == nil {
			task.State = TaskReady
			return res, nil
		}
	}

	task.State = TaskTimedOut
	log.Debug("task abandoned", zap.String("task_id", task.ID), zap.Duration("age", time.Since(task.CreatedAt)))
	if cause == nil {
		cause = context.DeadlineExceeded
	}
	return nil, cause
}

// sleepCtx is a cancellable timed wait.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
