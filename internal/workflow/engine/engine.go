// Package engine implements the Workflow Engine (spec §4.9): executes one
// job to completion against its workflow definition, driving the Node
// Strategy Registry through a predecessor-ordered DAG walk with resume,
// parallel-level merge, retry, and variable substitution.
package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/scoutgrid/orchestrator/internal/errs"
	"github.com/scoutgrid/orchestrator/internal/jobs"
	"github.com/scoutgrid/orchestrator/internal/workflow/definition"
	"github.com/scoutgrid/orchestrator/internal/workflow/registry"
)

// definitionLoader is the subset of *definition.Loader the engine needs;
// an interface so tests can supply fixed definitions without going
// through the embedded-YAML loader.
type definitionLoader interface {
	Load(workflowID string) (*definition.Definition, error)
}

// Engine executes jobs against workflow definitions.
type Engine struct {
	defs     definitionLoader
	registry *registry.Registry
	jobs     *jobs.Repository
	log      zerolog.Logger

	rateLimiter     registry.RateLimiter
	archiver        registry.Archiver
	notifier        registry.Notifier
	monitorRecorder registry.MonitorRecorder

	mu           sync.Mutex
	sharedStates map[string]*jobSharedState
}

// New wires an Engine.
func New(defs definitionLoader, reg *registry.Registry, jobRepo *jobs.Repository, log zerolog.Logger) *Engine {
	return &Engine{
		defs:         defs,
		registry:     reg,
		jobs:         jobRepo,
		log:          log.With().Str("component", "engine").Logger(),
		sharedStates: make(map[string]*jobSharedState),
	}
}

// WithRateLimiter attaches a rate limiter made available to node
// strategies via their Context.
func (e *Engine) WithRateLimiter(rl registry.RateLimiter) *Engine {
	e.rateLimiter = rl
	return e
}

// WithArchiver attaches a thumbnail archiver made available to node
// strategies via their Context.
func (e *Engine) WithArchiver(a registry.Archiver) *Engine {
	e.archiver = a
	return e
}

// WithNotifier attaches an alert notifier made available to node
// strategies via their Context.
func (e *Engine) WithNotifier(n registry.Notifier) *Engine {
	e.notifier = n
	return e
}

// WithMonitorRecorder attaches the monitor state repository made
// available to node strategies via their Context, so a monitor node can
// record its own task's completion on success.
func (e *Engine) WithMonitorRecorder(r registry.MonitorRecorder) *Engine {
	e.monitorRecorder = r
	return e
}

func (e *Engine) sharedStateFor(jobID string) *jobSharedState {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.sharedStates[jobID]
	if !ok {
		s = newJobSharedState()
		e.sharedStates[jobID] = s
	}
	return s
}

func (e *Engine) discardSharedState(jobID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.sharedStates, jobID)
}

// Execute runs job to completion (spec §4.9). It always persists the
// job's final state and always discards the job's shared state, on every
// exit path.
func (e *Engine) Execute(ctx context.Context, job *jobs.Job) error {
	defer e.discardSharedState(job.ID)

	def, err := e.defs.Load(job.WorkflowID)
	if err != nil {
		return e.fail(ctx, job, "", fmt.Errorf("engine: load definition: %w", err))
	}

	predecessors := def.Predecessors()
	executed := make(map[string]bool)
	pending := newOrderedSet()

	if job.CurrentNode != "" {
		for _, p := range predecessors[job.CurrentNode] {
			executed[p] = true
		}
		pending.add(job.CurrentNode)
	} else {
		pending.add(def.StartNode)
	}

	accumulated := mergeMaps(job.Params, job.Result)
	accumulated["job_id"] = job.ID
	accumulated["workflow_id"] = job.WorkflowID
	if job.StartedAt != nil {
		accumulated["job_started_at"] = job.StartedAt.Format(time.RFC3339)
	}

	totalNodes := len(def.Nodes)

	for !pending.empty() {
		executable := executableNodes(pending, predecessors, executed)
		if len(executable) == 0 {
			return e.fail(ctx, job, job.CurrentNode, errs.ErrDeadlock)
		}

		sort.Strings(executable)
		job.CurrentNode = executable[0]
		if err := e.jobs.Update(ctx, job); err != nil {
			return fmt.Errorf("engine: persist current node: %w", err)
		}

		results, err := e.runLevel(ctx, job, def, executable, accumulated)
		if err != nil {
			return e.fail(ctx, job, job.CurrentNode, err)
		}

		for _, nodeID := range executable {
			pending.remove(nodeID)
			executed[nodeID] = true
		}
		for _, r := range results {
			mergeInto(accumulated, r.result.Data)
			next := r.result.NextNodes
			if next == nil {
				next = def.Nodes[r.nodeID].NextNodes
			}
			for _, n := range next {
				if !executed[n] {
					pending.add(n)
				}
			}
		}

		job.Progress = float64(len(executed)) / float64(totalNodes)
		if err := e.jobs.Update(ctx, job); err != nil {
			return fmt.Errorf("engine: persist progress: %w", err)
		}
	}

	job.Status = jobs.StatusCompleted
	job.Progress = 1
	job.Result = accumulated
	now := time.Now()
	job.CompletedAt = &now
	if err := e.jobs.Update(ctx, job); err != nil {
		return fmt.Errorf("engine: persist completion: %w", err)
	}
	return nil
}

type levelResult struct {
	nodeID string
	result registry.Result
	err    error
}

// runLevel executes one DAG level: inline if a single node, concurrently
// with last-writer-wins / first-failure-wins merge otherwise.
func (e *Engine) runLevel(ctx context.Context, job *jobs.Job, def *definition.Definition, nodeIDs []string, accumulated map[string]interface{}) ([]levelResult, error) {
	if len(nodeIDs) == 1 {
		r, err := e.runNode(ctx, job, def, nodeIDs[0], accumulated)
		if err != nil {
			return nil, err
		}
		return []levelResult{{nodeID: nodeIDs[0], result: r}}, nil
	}

	ch := make(chan levelResult, len(nodeIDs))
	for _, id := range nodeIDs {
		id := id
		go func() {
			r, err := e.runNode(ctx, job, def, id, accumulated)
			ch <- levelResult{nodeID: id, result: r, err: err}
		}()
	}

	results := make([]levelResult, 0, len(nodeIDs))
	var firstErr error
	for range nodeIDs {
		r := <-ch
		if r.err != nil && firstErr == nil {
			firstErr = fmt.Errorf("node %s: %w", r.nodeID, r.err)
			continue
		}
		results = append(results, r)
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return results, nil
}

func (e *Engine) runNode(ctx context.Context, job *jobs.Job, def *definition.Definition, nodeID string, accumulated map[string]interface{}) (registry.Result, error) {
	node := def.Nodes[nodeID]

	strategy, err := e.registry.New(node.Type)
	if err != nil {
		return registry.Result{}, err
	}

	nodeCtx := &registry.Context{
		JobID:           job.ID,
		WorkflowID:      job.WorkflowID,
		NodeID:          nodeID,
		Config:          substituteConfig(node.Config, job.Params),
		Params:          job.Params,
		Input:           accumulated,
		Platform:        job.Platform,
		SharedState:     e.sharedStateFor(job.ID),
		Logger:          e.log.With().Str("job_id", job.ID).Str("node_id", nodeID).Logger(),
		RateLimiter:     e.rateLimiter,
		Archiver:        e.archiver,
		Notifier:        e.notifier,
		MonitorRecorder: e.monitorRecorder,
	}

	return retryExecute(strategy, nodeCtx, accumulated, node.Retry)
}

// retryExecute runs strategy up to retry.MaxAttempts times with linear
// backoff attempt*BackoffMS between attempts (spec §4.9 step 4.d).
func retryExecute(strategy registry.Strategy, ctx *registry.Context, input map[string]interface{}, retry *definition.Retry) (registry.Result, error) {
	maxAttempts, backoffMS := 1, 0
	if retry != nil {
		maxAttempts, backoffMS = retry.MaxAttempts, retry.BackoffMS
		if maxAttempts < 1 {
			maxAttempts = 1
		}
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result, err := strategy.Execute(ctx, input)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if attempt < maxAttempts {
			time.Sleep(time.Duration(attempt*backoffMS) * time.Millisecond)
		}
	}
	return registry.Result{}, lastErr
}

func (e *Engine) fail(ctx context.Context, job *jobs.Job, nodeID string, cause error) error {
	job.Status = jobs.StatusFailed
	job.Error = &jobs.JobError{
		Message:   cause.Error(),
		NodeID:    nodeID,
		Timestamp: time.Now(),
	}
	if err := e.jobs.Update(ctx, job); err != nil {
		e.log.Error().Err(err).Str("job_id", job.ID).Msg("failed to persist job failure")
	}
	return cause
}

func executableNodes(pending *orderedSet, predecessors map[string][]string, executed map[string]bool) []string {
	var out []string
	for _, id := range pending.items() {
		ready := true
		for _, p := range predecessors[id] {
			if !executed[p] {
				ready = false
				break
			}
		}
		if ready {
			out = append(out, id)
		}
	}
	return out
}

func mergeMaps(maps ...map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{})
	for _, m := range maps {
		mergeInto(out, m)
	}
	return out
}

func mergeInto(dst, src map[string]interface{}) {
	for k, v := range src {
		dst[k] = v
	}
}
