// Package runner schedules agent executions: a semaphore-bounded base
// runner plus parallel, sequential, and conditional strategies on top.
package runner

import (
	"context"
	"fmt"
	"sync"

	"github.com/datatalk-ai/datatalk/agent"
	"github.com/datatalk-ai/datatalk/graph"
)

const defaultConcurrency = 10

// Runner executes agents with a bounded level of concurrency.
type Runner struct {
	maxConcurrency int
	semaphore      chan struct{}
}

// New creates a runner with the given concurrency limit.
func New(maxConcurrency int) *Runner {
	if maxConcurrency <= 0 {
		maxConcurrency = defaultConcurrency
	}
	return &Runner{
		maxConcurrency: maxConcurrency,
		semaphore:      make(chan struct{}, maxConcurrency),
	}
}

// Run executes an agent with the given input, blocking until a concurrency
// slot is available or the context is cancelled.
func (r *Runner) Run(ctx context.Context, ag *agent.Agent, input string) (*agent.Result, error) {
	if err := r.acquire(ctx); err != nil {
		return nil, err
	}
	defer r.release()

	return ag.Run(ctx, input)
}

func (r *Runner) acquire(ctx context.Context) error {
	select {
	case r.semaphore <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Runner) release() {
	<-r.semaphore
}

// RunGraph executes a graph workflow under the runner's concurrency limit.
func RunGraph[S any](ctx context.Context, r *Runner, g *graph.Graph[S], initialState S) (S, error) {
	if err := r.acquire(ctx); err != nil {
		return initialState, err
	}
	defer r.release()

	return g.Execute(ctx, initialState)
}

// Task names one agent execution with its input.
type Task struct {
	ID    string
	Agent *agent.Agent
	Input string
}

// Result carries one task's output, trace, and error.
type Result struct {
	TaskID string
	Output string
	Steps  []agent.Step
	Error  error
}

// capture folds an agent run's outcome into a task result.
func capture(taskID string, res *agent.Result, err error) *Result {
	result := &Result{TaskID: taskID, Error: err}
	if res != nil {
		result.Output = res.Output
		result.Steps = res.Steps
	}
	return result
}

// ParallelRunner fans tasks out across the base runner's slots.
type ParallelRunner struct {
	runner *Runner
}

// NewParallelRunner creates a parallel runner with the given slot count.
func NewParallelRunner(maxConcurrency int) *ParallelRunner {
	return &ParallelRunner{runner: New(maxConcurrency)}
}

// RunParallel executes all tasks concurrently and returns results in task
// order. A panicking task is reported as that task's error, not a crash.
func (pr *ParallelRunner) RunParallel(ctx context.Context, tasks []*Task) []*Result {
	results := make([]*Result, len(tasks))
	var wg sync.WaitGroup

	for i, task := range tasks {
		wg.Add(1)
		go func(index int, t *Task) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					results[index] = &Result{
						TaskID: t.ID,
						Error:  fmt.Errorf("panic in task %s: %v", t.ID, r),
					}
				}
			}()

			res, err := pr.runner.Run(ctx, t.Agent, t.Input)
			results[index] = capture(t.ID, res, err)
		}(i, task)
	}

	wg.Wait()
	return results
}

// SequentialRunner pipes each task's output into the next task's input.
type SequentialRunner struct {
	runner *Runner
}

// NewSequentialRunner creates a sequential runner.
func NewSequentialRunner() *SequentialRunner {
	return &SequentialRunner{runner: New(1)}
}

// RunSequential executes tasks in order, feeding each output forward, and
// returns the final task's result. The first failure stops the pipeline.
func (sr *SequentialRunner) RunSequential(ctx context.Context, tasks []*Task) (*Result, error) {
	if len(tasks) == 0 {
		return nil, fmt.Errorf("runner: no tasks to execute")
	}

	var lastOutput string
	for _, task := range tasks {
		input := task.Input
		if lastOutput != "" {
			input = lastOutput
		}

		res, err := sr.runner.Run(ctx, task.Agent, input)
		if err != nil {
			return &Result{TaskID: task.ID, Error: err}, err
		}
		lastOutput = res.Output
	}

	return &Result{
		TaskID: tasks[len(tasks)-1].ID,
		Output: lastOutput,
	}, nil
}

// ConditionFunc decides whether a task should run given the previous result.
type ConditionFunc func(ctx context.Context, previousResult *Result) (bool, error)

// ConditionalTask pairs a task with its gate.
type ConditionalTask struct {
	Task      *Task
	Condition ConditionFunc
}

// ConditionalRunner runs tasks whose condition passes, skipping the rest.
type ConditionalRunner struct {
	runner *Runner
}

// NewConditionalRunner creates a conditional runner.
func NewConditionalRunner() *ConditionalRunner {
	return &ConditionalRunner{runner: New(1)}
}

// RunConditional evaluates each task's condition against the previous
// executed result. A nil condition always runs. Skipped tasks leave no
// result and do not advance the previous-result pointer.
func (cr *ConditionalRunner) RunConditional(ctx context.Context, tasks []*ConditionalTask) ([]*Result, error) {
	results := make([]*Result, 0, len(tasks))
	var lastResult *Result

	for _, ctask := range tasks {
		shouldRun := true
		if ctask.Condition != nil {
			var err error
			shouldRun, err = ctask.Condition(ctx, lastResult)
			if err != nil {
				return results, fmt.Errorf("condition evaluation failed: %w", err)
			}
		}
		if !shouldRun {
			continue
		}

		res, err := cr.runner.Run(ctx, ctask.Task.Agent, ctask.Task.Input)
		result := capture(ctask.Task.ID, res, err)
		results = append(results, result)
		lastResult = result

		if err != nil {
			return results, err
		}
	}

	return results, nil
}
