package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/datatalk-ai/datatalk/agent"
	"github.com/datatalk-ai/datatalk/runtime"
)

// artifactExecutor records a chart file as a side effect of running, the way
// a real code-execution tool would.
type artifactExecutor struct {
	dir      string
	filename string
}

func (e *artifactExecutor) Execute(ctx context.Context, req *runtime.Request) (*runtime.Result, error) {
	if e.filename != "" {
		path := filepath.Join(e.dir, e.filename)
		if err := os.WriteFile(path, []byte("chart"), 0o644); err != nil {
			return nil, err
		}
	}
	return &runtime.Result{
		Output: "chart saved",
		Steps: []agent.Step{
			{Action: agent.Action{Tool: "execute_python"}, Observation: "chart saved"},
		},
	}, nil
}

func TestPlotAgentVerificationAcceptsFreshArtifact(t *testing.T) {
	dir := t.TempDir()
	ag := NewPlotAgent(
		&artifactExecutor{dir: dir, filename: "sales.png"},
		WithChartsDir(dir),
		WithArtifactVerification(500*time.Millisecond),
	)

	s := NewState("plot sales")
	s.Explanation = "bar chart of sales"
	if err := ag.Step(context.Background(), s); err != nil {
		t.Fatalf("Step failed: %v", err)
	}
	if !s.IsPlot {
		t.Error("expected is_plot true when a fresh artifact exists")
	}
}

func TestPlotAgentVerificationFailsClosed(t *testing.T) {
	dir := t.TempDir()
	ag := NewPlotAgent(
		&artifactExecutor{dir: dir}, // claims success, writes nothing
		WithChartsDir(dir),
		WithArtifactVerification(200*time.Millisecond),
	)

	s := NewState("plot sales")
	s.Explanation = "bar chart of sales"
	if err := ag.Step(context.Background(), s); err != nil {
		t.Fatalf("Step failed: %v", err)
	}
	if s.IsPlot {
		t.Error("expected is_plot false when no artifact appeared")
	}
}

func TestPlotAgentVerificationIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	ag := NewPlotAgent(
		&artifactExecutor{dir: dir, filename: "notes.txt"},
		WithChartsDir(dir),
		WithArtifactVerification(200*time.Millisecond),
	)

	s := NewState("plot sales")
	if err := ag.Step(context.Background(), s); err != nil {
		t.Fatalf("Step failed: %v", err)
	}
	if s.IsPlot {
		t.Error("expected non-chart files to be ignored")
	}
}

func TestRoleAgentsReportRoles(t *testing.T) {
	if got := NewManagerAgent(&fakeExecutor{}).Role(); got != RoleDecide {
		t.Errorf("manager role = %s", got)
	}
	if got := NewQueryAgent(&fakeExecutor{}).Role(); got != RoleQuery {
		t.Errorf("query role = %s", got)
	}
	if got := NewPlotAgent(&fakeExecutor{}).Role(); got != RoleVisualize {
		t.Errorf("plot role = %s", got)
	}
}
