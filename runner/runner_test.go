package runner

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/datatalk-ai/datatalk/agent"
	"github.com/datatalk-ai/datatalk/graph"
	"github.com/datatalk-ai/datatalk/message"
)

type echoLLM struct{}

func (m *echoLLM) Generate(ctx context.Context, req *agent.GenerateRequest) (*agent.GenerateResponse, error) {
	last := ""
	if n := len(req.Messages); n > 0 {
		last = req.Messages[n-1].Content
	}
	return &agent.GenerateResponse{
		Message: message.NewMessage(message.RoleAssistant, "echo:"+last),
	}, nil
}

func (m *echoLLM) SetTemperature(float64) {}
func (m *echoLLM) SetMaxTokens(int64)     {}
func (m *echoLLM) SetModel(string)        {}

func newEchoAgent(name string) *agent.Agent {
	return agent.New(
		agent.WithName(name),
		agent.WithProvider(&echoLLM{}),
		agent.WithMaxIterations(1),
	)
}

func TestNewRunner(t *testing.T) {
	if New(5) == nil {
		t.Errorf("New returned nil")
	}
}

func TestNewRunnerDefaultConcurrency(t *testing.T) {
	if New(0) == nil {
		t.Errorf("New with 0 concurrency returned nil")
	}
}

func TestRunnerRun(t *testing.T) {
	r := New(2)
	res, err := r.Run(context.Background(), newEchoAgent("runner-agent"), "hello")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Output != "echo:hello" {
		t.Errorf("expected echo:hello, got %q", res.Output)
	}
}

func TestRunnerRunCancelled(t *testing.T) {
	r := New(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Occupy the only slot so acquisition must wait on the cancelled context.
	r.semaphore <- struct{}{}
	defer func() { <-r.semaphore }()

	if _, err := r.Run(ctx, newEchoAgent("blocked"), "hello"); err == nil {
		t.Error("expected context error")
	}
}

func TestRunGraph(t *testing.T) {
	r := New(2)

	g := graph.NewBuilder[int]().
		AddNode("inc", func(ctx context.Context, s int) (int, error) {
			return s + 1, nil
		}).
		AddEdge("inc", graph.End).
		SetStart("inc").
		Build()

	out, err := RunGraph(context.Background(), r, g, 41)
	if err != nil {
		t.Fatalf("RunGraph failed: %v", err)
	}
	if out != 42 {
		t.Errorf("expected 42, got %d", out)
	}
}

func TestRunParallel(t *testing.T) {
	tasks := []*Task{
		{ID: "task1", Agent: newEchoAgent("Agent1"), Input: "input1"},
		{ID: "task2", Agent: newEchoAgent("Agent2"), Input: "input2"},
		{ID: "task3", Agent: newEchoAgent("Agent3"), Input: "input3"},
	}

	pr := NewParallelRunner(10)
	results := pr.RunParallel(context.Background(), tasks)

	if len(results) != len(tasks) {
		t.Fatalf("Expected %d results, got %d", len(tasks), len(results))
	}

	for i, result := range results {
		if result.TaskID != tasks[i].ID {
			t.Errorf("Result %d: expected TaskID %s, got %s", i, tasks[i].ID, result.TaskID)
		}
		if result.Error != nil {
			t.Errorf("Result %d: unexpected error %v", i, result.Error)
		}
	}
}

func TestRunParallelWithNilTasks(t *testing.T) {
	pr := NewParallelRunner(10)
	if results := pr.RunParallel(context.Background(), nil); len(results) != 0 {
		t.Errorf("Expected 0 results for nil tasks, got %d", len(results))
	}
}

func TestRunParallelWithTimeout(t *testing.T) {
	tasks := []*Task{
		{ID: "task1", Agent: newEchoAgent("TimeoutAgent"), Input: "test"},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	pr := NewParallelRunner(1)
	results := pr.RunParallel(ctx, tasks)

	if len(results) != 1 {
		t.Errorf("Expected 1 result, got %d", len(results))
	}
}

func TestRunParallelConcurrencyLimit(t *testing.T) {
	tasks := make([]*Task, 5)
	for i := 0; i < 5; i++ {
		tasks[i] = &Task{
			ID:    fmt.Sprintf("task%d", i),
			Agent: newEchoAgent(fmt.Sprintf("Agent%d", i)),
			Input: fmt.Sprintf("input%d", i),
		}
	}

	pr := NewParallelRunner(2)
	results := pr.RunParallel(context.Background(), tasks)

	if len(results) != 5 {
		t.Fatalf("Expected 5 results, got %d", len(results))
	}
	for i, result := range results {
		if result == nil {
			t.Fatalf("Result %d is nil", i)
		}
		if result.TaskID != fmt.Sprintf("task%d", i) {
			t.Errorf("Result %d: expected TaskID task%d, got %s", i, i, result.TaskID)
		}
	}
}

func TestRunSequentialChainsOutput(t *testing.T) {
	tasks := []*Task{
		{ID: "first", Agent: newEchoAgent("First"), Input: "start"},
		{ID: "second", Agent: newEchoAgent("Second")},
	}

	sr := NewSequentialRunner()
	result, err := sr.RunSequential(context.Background(), tasks)
	if err != nil {
		t.Fatalf("RunSequential failed: %v", err)
	}
	if result.TaskID != "second" {
		t.Errorf("expected final task id second, got %s", result.TaskID)
	}
	if result.Output != "echo:echo:start" {
		t.Errorf("expected chained output echo:echo:start, got %q", result.Output)
	}
}

func TestRunSequentialEmpty(t *testing.T) {
	sr := NewSequentialRunner()
	if _, err := sr.RunSequential(context.Background(), nil); err == nil {
		t.Error("expected error for empty task list")
	}
}

func TestRunConditionalSkips(t *testing.T) {
	tasks := []*ConditionalTask{
		{Task: &Task{ID: "always", Agent: newEchoAgent("Always"), Input: "a"}},
		{
			Task: &Task{ID: "never", Agent: newEchoAgent("Never"), Input: "b"},
			Condition: func(ctx context.Context, prev *Result) (bool, error) {
				return false, nil
			},
		},
	}

	cr := NewConditionalRunner()
	results, err := cr.RunConditional(context.Background(), tasks)
	if err != nil {
		t.Fatalf("RunConditional failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].TaskID != "always" {
		t.Errorf("expected task always, got %s", results[0].TaskID)
	}
}
