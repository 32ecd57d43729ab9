package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/datatalk-ai/datatalk/message"
	"github.com/datatalk-ai/datatalk/pkg/logging"
	"github.com/datatalk-ai/datatalk/runtime"
)

// Role identifies a role agent's capability.
type Role string

const (
	RoleDecide    Role = "decide"
	RoleQuery     Role = "query"
	RoleVisualize Role = "visualize"
)

// RoleAgent is one specialized participant in a turn. Step mutates only the
// state fields the role owns.
type RoleAgent interface {
	Role() Role
	Step(ctx context.Context, s *State) error
}

type threadIDKey struct{}

// withThreadID tags the turn context so role agents can attribute their
// executor calls.
func withThreadID(ctx context.Context, threadID string) context.Context {
	return context.WithValue(ctx, threadIDKey{}, threadID)
}

func threadIDFrom(ctx context.Context) string {
	if id, ok := ctx.Value(threadIDKey{}).(string); ok {
		return id
	}
	return ""
}

// ManagerAgent decides which agent handles the request next. It reads the
// accumulated agent responses and writes the routing decision, the forwarded
// explanation, and the user-facing response.
type ManagerAgent struct {
	executor runtime.Executor
	logger   *slog.Logger
}

// NewManagerAgent constructs the supervisor role over an executor.
func NewManagerAgent(executor runtime.Executor) *ManagerAgent {
	return &ManagerAgent{
		executor: executor,
		logger:   logging.WithComponent("orchestrator").With("role", "manager"),
	}
}

func (a *ManagerAgent) Role() Role { return RoleDecide }

// Step asks the supervisor for a routing decision based on the user query and
// whatever the worker agents have produced so far.
func (a *ManagerAgent) Step(ctx context.Context, s *State) error {
	instruction := "User Query:\n" + s.UserQuery
	if s.TDAgentResponse != "" {
		instruction += "\n\nTeradata Agent Response:\n" + s.TDAgentResponse
	}
	if s.PlotAgentResponse != "" {
		instruction += "\n\nPlot Agent Response:\n" + s.PlotAgentResponse
	}

	res, err := a.executor.Execute(ctx, &runtime.Request{
		ThreadID:    threadIDFrom(ctx),
		Instruction: instruction,
		History:     s.Messages,
	})
	if err != nil {
		return fmt.Errorf("manager step: %w", err)
	}

	decision, msg, explanation := parseManagerOutput(res.Output)
	if msg == "" {
		msg = res.Output
	}

	s.ManagerDecision = decision
	s.Response = msg
	s.Explanation = explanation
	s.AppendMessage(message.RoleManager, msg)

	a.logger.Info("manager decided", "decision", string(decision))
	return nil
}

// QueryAgent runs the database worker and extracts the executed SQL from its
// tool trace.
type QueryAgent struct {
	executor runtime.Executor
	logger   *slog.Logger
}

// NewQueryAgent constructs the database query role over an executor.
func NewQueryAgent(executor runtime.Executor) *QueryAgent {
	return &QueryAgent{
		executor: executor,
		logger:   logging.WithComponent("orchestrator").With("role", "query"),
	}
}

func (a *QueryAgent) Role() Role { return RoleQuery }

// Step forwards the manager's request to the database agent. Worker failures
// are captured as response text so the manager can react; they never abort
// the turn.
func (a *QueryAgent) Step(ctx context.Context, s *State) error {
	instruction := "Manager Request:\n" + s.Explanation
	if s.TDAgentResponse == "" {
		// First routing hop carries the original question for context.
		instruction = "User Query:\n" + s.UserQuery + "\n\n" + instruction
	}

	res, err := a.executor.Execute(ctx, &runtime.Request{
		ThreadID:    threadIDFrom(ctx),
		Instruction: instruction,
		History:     s.Messages,
	})
	if err != nil {
		a.logger.Warn("query agent failed", "error", err)
		s.TDAgentResponse = fmt.Sprintf("Error processing the request: %v", err)
		s.SQLQueries = ""
		return nil
	}

	s.TDAgentResponse = res.Output
	s.SQLQueries = collectSQL(res.Steps)

	a.logger.Info("query agent responded",
		"steps", len(res.Steps),
		"has_sql", s.SQLQueries != "")
	return nil
}

// PlotAgent runs the chart generation worker. A chart is assumed produced
// when the worker invoked at least one tool; with artifact verification
// enabled the claim is checked against the charts directory.
type PlotAgent struct {
	executor        runtime.Executor
	logger          *slog.Logger
	chartsDir       string
	verifyArtifacts bool
	verifyWait      time.Duration
}

// PlotOption configures a PlotAgent.
type PlotOption func(*PlotAgent)

// WithChartsDir sets the directory charts are rendered into.
func WithChartsDir(dir string) PlotOption {
	return func(a *PlotAgent) {
		a.chartsDir = dir
	}
}

// WithArtifactVerification requires a fresh chart file to appear before
// IsPlot is reported true.
func WithArtifactVerification(wait time.Duration) PlotOption {
	return func(a *PlotAgent) {
		a.verifyArtifacts = true
		if wait > 0 {
			a.verifyWait = wait
		}
	}
}

// NewPlotAgent constructs the visualization role over an executor.
func NewPlotAgent(executor runtime.Executor, opts ...PlotOption) *PlotAgent {
	a := &PlotAgent{
		executor:   executor,
		logger:     logging.WithComponent("orchestrator").With("role", "plot"),
		verifyWait: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *PlotAgent) Role() Role { return RoleVisualize }

// Step forwards the manager's request to the visualization agent and records
// whether a chart was produced.
func (a *PlotAgent) Step(ctx context.Context, s *State) error {
	start := time.Now()

	res, err := a.executor.Execute(ctx, &runtime.Request{
		ThreadID:    threadIDFrom(ctx),
		Instruction: "Manager Request: " + s.Explanation,
		History:     s.Messages,
	})
	if err != nil {
		return fmt.Errorf("plot step: %w", err)
	}

	s.PlotAgentResponse = res.Output

	produced := len(res.Steps) > 0
	if produced && a.verifyArtifacts {
		produced = a.waitForArtifact(ctx, start)
	}
	if produced {
		s.IsPlot = true
	}

	a.logger.Info("plot agent responded", "steps", len(res.Steps), "is_plot", s.IsPlot)
	return nil
}

// waitForArtifact polls the charts directory for a file created after the run
// started, giving renderers a moment to flush.
func (a *PlotAgent) waitForArtifact(ctx context.Context, since time.Time) bool {
	if a.chartsDir == "" {
		return false
	}

	deadline := time.Now().Add(a.verifyWait)
	for {
		if hasFreshArtifact(a.chartsDir, since) {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(100 * time.Millisecond):
		}
	}
}

func hasFreshArtifact(dir string, since time.Time) bool {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".png", ".svg", ".html":
		default:
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if !info.ModTime().Before(since) {
			return true
		}
	}
	return false
}
