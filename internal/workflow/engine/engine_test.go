package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/scoutgrid/orchestrator/internal/errs"
	"github.com/scoutgrid/orchestrator/internal/jobs"
	"github.com/scoutgrid/orchestrator/internal/store"
	"github.com/scoutgrid/orchestrator/internal/workflow/definition"
	"github.com/scoutgrid/orchestrator/internal/workflow/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeLoader serves a fixed set of definitions, bypassing the embedded
// YAML loader so tests can shape arbitrary DAGs.
type fakeLoader struct {
	defs map[string]*definition.Definition
}

func (f *fakeLoader) Load(workflowID string) (*definition.Definition, error) {
	def, ok := f.defs[workflowID]
	if !ok {
		return nil, fmt.Errorf("fakeLoader: no definition for %q", workflowID)
	}
	return def, nil
}

func defFromNodes(workflowID, startNode string, nodes []definition.Node) *definition.Definition {
	def := &definition.Definition{WorkflowID: workflowID, StartNode: startNode, NodeList: nodes}
	def.Nodes = make(map[string]definition.Node, len(nodes))
	for _, n := range nodes {
		def.Nodes[n.ID] = n
	}
	return def
}

// fakeStrategy returns a fixed result after counting invocations, and
// can be made to fail a configured number of times before succeeding.
type fakeStrategy struct {
	mu          sync.Mutex
	calls       int
	failUntil   int
	data        map[string]interface{}
	delay       time.Duration
}

func (s *fakeStrategy) Execute(ctx *registry.Context, input map[string]interface{}) (registry.Result, error) {
	s.mu.Lock()
	s.calls++
	calls := s.calls
	s.mu.Unlock()

	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if calls <= s.failUntil {
		return registry.Result{}, fmt.Errorf("fakeStrategy: forced failure on call %d", calls)
	}
	return registry.Result{Data: s.data}, nil
}

func newTestEngine(t *testing.T, defs map[string]*definition.Definition) (*Engine, *jobs.Repository, *registry.Registry) {
	t.Helper()
	s := store.NewMemoryStore()
	jobRepo := jobs.NewRepository(s)
	reg := registry.New()
	e := New(&fakeLoader{defs: defs}, reg, jobRepo, zerolog.Nop())
	return e, jobRepo, reg
}

func TestEngine_LinearWorkflowCompletes(t *testing.T) {
	ctx := context.Background()
	def := defFromNodes("linear", "a", []definition.Node{
		{ID: "a", Type: "step-a", NextNodes: []string{"b"}},
		{ID: "b", Type: "step-b", NextNodes: []string{}},
	})
	e, jobRepo, reg := newTestEngine(t, map[string]*definition.Definition{"linear": def})

	reg.Register("step-a", func() registry.Strategy { return &fakeStrategy{data: map[string]interface{}{"a": 1}} })
	reg.Register("step-b", func() registry.Strategy { return &fakeStrategy{data: map[string]interface{}{"b": 2}} })

	job := &jobs.Job{ID: "job-1", WorkflowID: "linear", Platform: "p", Status: jobs.StatusRunning, CreatedAt: time.Now()}
	require.NoError(t, jobRepo.Enqueue(ctx, job))

	require.NoError(t, e.Execute(ctx, job))

	assert.Equal(t, jobs.StatusCompleted, job.Status)
	assert.Equal(t, 1.0, job.Progress)
	assert.Equal(t, 1, job.Result["a"])
	assert.Equal(t, 2, job.Result["b"])
}

// TestEngine_ParallelLevelMergesLastWriterWins is the DAG-parallel-merge
// seed scenario: two nodes at the same level both write key "shared";
// the accumulated state after the level ends up with one of them, and
// both nodes' distinct keys survive.
func TestEngine_ParallelLevelMergesLastWriterWins(t *testing.T) {
	ctx := context.Background()
	def := defFromNodes("fanout", "start", []definition.Node{
		{ID: "start", Type: "noop", NextNodes: []string{"left", "right"}},
		{ID: "left", Type: "left", NextNodes: []string{}},
		{ID: "right", Type: "right", NextNodes: []string{}},
	})
	e, jobRepo, reg := newTestEngine(t, map[string]*definition.Definition{"fanout": def})

	reg.Register("noop", func() registry.Strategy { return &fakeStrategy{} })
	reg.Register("left", func() registry.Strategy {
		return &fakeStrategy{data: map[string]interface{}{"shared": "left", "left_only": true}}
	})
	reg.Register("right", func() registry.Strategy {
		return &fakeStrategy{data: map[string]interface{}{"shared": "right", "right_only": true}}
	})

	job := &jobs.Job{ID: "job-2", WorkflowID: "fanout", Platform: "p", Status: jobs.StatusRunning, CreatedAt: time.Now()}
	require.NoError(t, jobRepo.Enqueue(ctx, job))

	require.NoError(t, e.Execute(ctx, job))

	assert.Equal(t, jobs.StatusCompleted, job.Status)
	assert.True(t, job.Result["left_only"].(bool))
	assert.True(t, job.Result["right_only"].(bool))
	assert.Contains(t, []interface{}{"left", "right"}, job.Result["shared"])
}

// TestEngine_RetryExhaustionFailsJob is the retry-exhaustion seed
// scenario: a node that always fails exhausts its retry budget and the
// job transitions to failed with the node id recorded.
func TestEngine_RetryExhaustionFailsJob(t *testing.T) {
	ctx := context.Background()
	def := defFromNodes("flaky", "only", []definition.Node{
		{ID: "only", Type: "always-fails", NextNodes: []string{}, Retry: &definition.Retry{MaxAttempts: 3, BackoffMS: 1}},
	})
	e, jobRepo, reg := newTestEngine(t, map[string]*definition.Definition{"flaky": def})

	strat := &fakeStrategy{failUntil: 99}
	reg.Register("always-fails", func() registry.Strategy { return strat })

	job := &jobs.Job{ID: "job-3", WorkflowID: "flaky", Platform: "p", Status: jobs.StatusRunning, CreatedAt: time.Now()}
	require.NoError(t, jobRepo.Enqueue(ctx, job))

	err := e.Execute(ctx, job)
	require.Error(t, err)

	assert.Equal(t, jobs.StatusFailed, job.Status)
	require.NotNil(t, job.Error)
	assert.Equal(t, "only", job.Error.NodeID)
	assert.Equal(t, 3, strat.calls, "retry budget is exhausted, not exceeded")
}

// TestEngine_RetrySucceedsWithinBudget exercises linear backoff recovery:
// a node that fails twice then succeeds must still complete the job.
func TestEngine_RetrySucceedsWithinBudget(t *testing.T) {
	ctx := context.Background()
	def := defFromNodes("recovers", "only", []definition.Node{
		{ID: "only", Type: "recovers", NextNodes: []string{}, Retry: &definition.Retry{MaxAttempts: 3, BackoffMS: 1}},
	})
	e, jobRepo, reg := newTestEngine(t, map[string]*definition.Definition{"recovers": def})

	strat := &fakeStrategy{failUntil: 2, data: map[string]interface{}{"ok": true}}
	reg.Register("recovers", func() registry.Strategy { return strat })

	job := &jobs.Job{ID: "job-4", WorkflowID: "recovers", Platform: "p", Status: jobs.StatusRunning, CreatedAt: time.Now()}
	require.NoError(t, jobRepo.Enqueue(ctx, job))

	require.NoError(t, e.Execute(ctx, job))
	assert.Equal(t, jobs.StatusCompleted, job.Status)
	assert.Equal(t, true, job.Result["ok"])
}

// TestEngine_DeadlockDetection is the deadlock-detection seed scenario:
// node "c" requires predecessor "d", but "d" is never reachable from
// start-node and so never executes. Once "start" and "a" finish, "c" is
// the only node left pending and can never become executable.
func TestEngine_DeadlockDetection(t *testing.T) {
	ctx := context.Background()
	def := defFromNodes("stuck", "start", []definition.Node{
		{ID: "start", Type: "noop", NextNodes: []string{"a", "c"}},
		{ID: "a", Type: "noop", NextNodes: []string{}},
		{ID: "c", Type: "noop", NextNodes: []string{}},
		{ID: "d", Type: "noop", NextNodes: []string{"c"}}, // orphan: nothing schedules d
	})
	e, jobRepo, reg := newTestEngine(t, map[string]*definition.Definition{"stuck": def})
	reg.Register("noop", func() registry.Strategy { return &fakeStrategy{} })

	job := &jobs.Job{ID: "job-5", WorkflowID: "stuck", Platform: "p", Status: jobs.StatusRunning, CreatedAt: time.Now()}
	require.NoError(t, jobRepo.Enqueue(ctx, job))

	err := e.Execute(ctx, job)
	require.Error(t, err)
	assert.Equal(t, jobs.StatusFailed, job.Status)
	assert.ErrorIs(t, err, errs.ErrDeadlock)
}

// TestEngine_ResumeFromCurrentNodeSkipsCompletedWork is the
// resume-idempotency seed scenario: a job persisted mid-DAG with
// current-node set resumes from that node without re-executing its
// predecessor.
func TestEngine_ResumeFromCurrentNodeSkipsCompletedWork(t *testing.T) {
	ctx := context.Background()
	def := defFromNodes("resumable", "a", []definition.Node{
		{ID: "a", Type: "step-a", NextNodes: []string{"b"}},
		{ID: "b", Type: "step-b", NextNodes: []string{}},
	})
	e, jobRepo, reg := newTestEngine(t, map[string]*definition.Definition{"resumable": def})

	var aCalls int32
	reg.Register("step-a", func() registry.Strategy {
		return strategyFunc(func(ctx *registry.Context, input map[string]interface{}) (registry.Result, error) {
			atomic.AddInt32(&aCalls, 1)
			return registry.Result{}, nil
		})
	})
	reg.Register("step-b", func() registry.Strategy {
		return &fakeStrategy{data: map[string]interface{}{"b": "done"}}
	})

	job := &jobs.Job{
		ID: "job-6", WorkflowID: "resumable", Platform: "p", Status: jobs.StatusRunning,
		CreatedAt: time.Now(), CurrentNode: "b",
	}
	require.NoError(t, jobRepo.Enqueue(ctx, job))

	require.NoError(t, e.Execute(ctx, job))

	assert.Equal(t, jobs.StatusCompleted, job.Status)
	assert.EqualValues(t, 0, aCalls, "resumed job must not re-execute the already-completed predecessor")
	assert.Equal(t, "done", job.Result["b"])
}

func TestEngine_SharedStateIsDiscardedAfterExecution(t *testing.T) {
	ctx := context.Background()
	def := defFromNodes("withstate", "only", []definition.Node{
		{ID: "only", Type: "writes-state", NextNodes: []string{}},
	})
	e, jobRepo, reg := newTestEngine(t, map[string]*definition.Definition{"withstate": def})

	reg.Register("writes-state", func() registry.Strategy {
		return strategyFunc(func(ctx *registry.Context, input map[string]interface{}) (registry.Result, error) {
			ctx.SharedState.Set("seen", true)
			return registry.Result{}, nil
		})
	})

	job := &jobs.Job{ID: "job-7", WorkflowID: "withstate", Platform: "p", Status: jobs.StatusRunning, CreatedAt: time.Now()}
	require.NoError(t, jobRepo.Enqueue(ctx, job))
	require.NoError(t, e.Execute(ctx, job))

	e.mu.Lock()
	_, stillPresent := e.sharedStates[job.ID]
	e.mu.Unlock()
	assert.False(t, stillPresent)
}

func TestEngine_VariableSubstitutionWholeTokenPreservesType(t *testing.T) {
	ctx := context.Background()
	def := defFromNodes("sub", "only", []definition.Node{
		{ID: "only", Type: "echo-config", NextNodes: []string{}, Config: map[string]interface{}{
			"limit":   "${limit}",
			"message": "hello ${platform} world",
		}},
	})
	e, jobRepo, reg := newTestEngine(t, map[string]*definition.Definition{"sub": def})

	var captured map[string]interface{}
	reg.Register("echo-config", func() registry.Strategy {
		return strategyFunc(func(ctx *registry.Context, input map[string]interface{}) (registry.Result, error) {
			captured = ctx.Config
			return registry.Result{}, nil
		})
	})

	job := &jobs.Job{
		ID: "job-8", WorkflowID: "sub", Platform: "coupang", Status: jobs.StatusRunning,
		CreatedAt: time.Now(), Params: map[string]interface{}{"limit": 42, "platform": "coupang"},
	}
	require.NoError(t, jobRepo.Enqueue(ctx, job))
	require.NoError(t, e.Execute(ctx, job))

	assert.Equal(t, 42, captured["limit"], "whole-token substitution preserves the param's original type")
	assert.Equal(t, "hello coupang world", captured["message"], "embedded substitution coerces to string")
}

// strategyFunc adapts a function to registry.Strategy.
type strategyFunc func(ctx *registry.Context, input map[string]interface{}) (registry.Result, error)

func (f strategyFunc) Execute(ctx *registry.Context, input map[string]interface{}) (registry.Result, error) {
	return f(ctx, input)
}
