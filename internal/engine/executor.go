package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sonde-dev/sonde/internal/graph"
	"github.com/sonde-dev/sonde/internal/research"
	"github.com/sonde-dev/sonde/internal/resilience"
)

// Config bounds one task's execution.
type Config struct {
	MaxQueriesPerTask  int
	SearchTimeout      time.Duration
	ParallelSearches   bool
	MaxConcurrentTasks int
}

// DefaultConfig returns execution defaults.
func DefaultConfig() Config {
	return Config{
		MaxQueriesPerTask:  3,
		SearchTimeout:      45 * time.Second,
		ParallelSearches:   true,
		MaxConcurrentTasks: 4,
	}
}

// TaskExecutor runs one task end to end: query refinement, rate-limited and
// retried searches, and findings structuring. It never returns an error; any
// unrecovered failure settles as a failed Result.
type TaskExecutor struct {
	model   research.ModelInvoker
	search  research.SearchProvider
	limiter *resilience.RateLimiter
	retry   resilience.RetryPolicy
	cfg     Config
	metrics *Metrics
}

func NewTaskExecutor(model research.ModelInvoker, search research.SearchProvider, limiter *resilience.RateLimiter, retry resilience.RetryPolicy, cfg Config, metrics *Metrics) *TaskExecutor {
	if metrics == nil {
		metrics = NewMetrics()
	}
	return &TaskExecutor{
		model:   model,
		search:  search,
		limiter: limiter,
		retry:   retry,
		cfg:     cfg,
		metrics: metrics,
	}
}

// Execute settles a single task. A failure at any step degrades to a failed
// Result and never escapes to the caller.
func (e *TaskExecutor) Execute(ctx context.Context, task graph.TaskNode) Result {
	start := time.Now()
	queries := e.refineQueries(ctx, task)

	findings, searchErrs := e.runSearches(ctx, task, queries)
	if len(findings) == 0 {
		err := fmt.Errorf("all %d searches failed: %s", len(queries), strings.Join(searchErrs, "; "))
		log.Warn().Str("task", task.Name).Err(err).Msg("task failed")
		e.metrics.RecordTask(false, time.Since(start))
		return Result{TaskID: task.ID, Status: StatusFailed, Err: err.Error()}
	}

	content, err := e.structureFindings(ctx, task, findings)
	if err != nil {
		log.Warn().Str("task", task.Name).Err(err).Msg("task failed")
		e.metrics.RecordTask(false, time.Since(start))
		return Result{TaskID: task.ID, Status: StatusFailed, Err: err.Error()}
	}

	e.metrics.RecordTask(true, time.Since(start))
	log.Info().Str("task", task.Name).Dur("took", time.Since(start)).Msg("task completed")
	return Result{TaskID: task.ID, Status: StatusSuccess, Content: content}
}

// refineQueries asks the model for focused search queries, capped at the
// configured maximum. On failure the task's own name and description serve as
// the single query; refinement is an optimization, not a gate.
func (e *TaskExecutor) refineQueries(ctx context.Context, task graph.TaskNode) []string {
	prompt := fmt.Sprintf(`Produce up to %d focused search queries for the research task below.
Respond with a JSON object: {"queries": [string]}.

Task: %s
Details: %s`, e.cfg.MaxQueriesPerTask, task.Name, task.Description)

	var out struct {
		Queries []string `json:"queries"`
	}
	if err := e.model.InvokeJSON(ctx, prompt, &out); err != nil || len(out.Queries) == 0 {
		log.Debug().Str("task", task.Name).Err(err).Msg("query refinement failed, using task as query")
		return []string{strings.TrimSpace(task.Name + " " + task.Description)}
	}
	if len(out.Queries) > e.cfg.MaxQueriesPerTask {
		out.Queries = out.Queries[:e.cfg.MaxQueriesPerTask]
	}
	return out.Queries
}

// runSearches executes every query, concurrently or sequentially per config.
// Each query failure is captured as data; one bad query never aborts its
// siblings.
func (e *TaskExecutor) runSearches(ctx context.Context, task graph.TaskNode, queries []string) ([]string, []string) {
	findings := make([]string, len(queries))
	errs := make([]string, len(queries))

	if e.cfg.ParallelSearches {
		var wg sync.WaitGroup
		for i, q := range queries {
			wg.Add(1)
			go func(i int, q string) {
				defer wg.Done()
				findings[i], errs[i] = e.searchOne(ctx, task, q)
			}(i, q)
		}
		wg.Wait()
	} else {
		for i, q := range queries {
			findings[i], errs[i] = e.searchOne(ctx, task, q)
		}
	}

	var ok, failed []string
	for i := range queries {
		if errs[i] != "" {
			failed = append(failed, errs[i])
			continue
		}
		ok = append(ok, findings[i])
	}
	return ok, failed
}

// searchOne runs a single query through admission control and the retry
// executor. Every attempt gets its own cancellation scope bounded by the
// search timeout; a timeout fails that attempt only.
func (e *TaskExecutor) searchOne(ctx context.Context, task graph.TaskNode, query string) (string, string) {
	result, err := resilience.RetryValue(ctx, e.retry, func(ctx context.Context) (string, error) {
		if err := e.limiter.Acquire(ctx); err != nil {
			return "", err
		}
		attemptCtx, cancel := context.WithTimeout(ctx, e.cfg.SearchTimeout)
		defer cancel()
		text, err := e.search.Search(attemptCtx, query)
		if err != nil {
			if attemptCtx.Err() == context.DeadlineExceeded {
				err = fmt.Errorf("search timeout after %s: %w", e.cfg.SearchTimeout, err)
			}
			return "", err
		}
		return text, nil
	})
	e.metrics.RecordSearch(err)
	if err != nil {
		log.Debug().Str("task", task.Name).Str("query", query).Err(err).Msg("search query failed")
		return "", fmt.Sprintf("query %q: %v", query, err)
	}
	return result, ""
}

// structureFindings asks the model to consolidate raw findings into the
// task's produced content.
func (e *TaskExecutor) structureFindings(ctx context.Context, task graph.TaskNode, findings []string) (string, error) {
	var b strings.Builder
	for i, f := range findings {
		fmt.Fprintf(&b, "--- Finding %d ---\n%s\n", i+1, f)
	}
	prompt := fmt.Sprintf(`Consolidate the findings below into a coherent write-up for the research task. Keep facts attributed and drop duplicates.

Task: %s
Details: %s

%s`, task.Name, task.Description, b.String())

	content, err := e.model.Invoke(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("structure findings: %w", err)
	}
	return content, nil
}
