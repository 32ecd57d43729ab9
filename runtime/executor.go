package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/datatalk-ai/datatalk/agent"
	"github.com/datatalk-ai/datatalk/message"
	"github.com/datatalk-ai/datatalk/pkg/logging"
)

// Request captures the inputs required to execute a turn.
type Request struct {
	ThreadID    string
	Instruction string
	History     []*message.Message
	Metadata    map[string]any
}

// Result captures the outcome of a single executor run.
type Result struct {
	ThreadID    string
	Output      string
	Steps       []agent.Step
	Messages    []*message.Message
	LastMessage *message.Message
	Elapsed     time.Duration
}

// Executor defines the contract for runtime executors.
type Executor interface {
	Execute(ctx context.Context, req *Request) (*Result, error)
}

// AgentExecutor wraps an agent.Agent and exposes it through the Executor
// interface. Each Execute call clones the prototype, so a single executor is
// safe for concurrent turns.
type AgentExecutor struct {
	prototype *agent.Agent
	logger    *slog.Logger
}

// NewAgentExecutor constructs a runtime executor backed by a prototype agent.
func NewAgentExecutor(prototype *agent.Agent) *AgentExecutor {
	if prototype == nil {
		panic("runtime: agent prototype cannot be nil")
	}
	return &AgentExecutor{
		prototype: prototype,
		logger:    logging.WithComponent("executor").With("executor", "agent"),
	}
}

// Execute runs the underlying agent using the provided request and
// conversation history.
func (e *AgentExecutor) Execute(ctx context.Context, req *Request) (*Result, error) {
	if req == nil {
		return nil, fmt.Errorf("runtime: request cannot be nil")
	}
	if req.Instruction == "" {
		return nil, fmt.Errorf("runtime: instruction cannot be empty")
	}

	runner := e.prototype.Clone()
	if len(req.History) > 0 {
		runner.RestoreMessages(req.History)
	}

	e.logger.Info("executor running turn", "thread_id", req.ThreadID, "history", len(req.History))
	res, err := runner.Run(ctx, req.Instruction)
	if err != nil {
		e.logger.Error("executor run failed", "thread_id", req.ThreadID, "error", err)
		return nil, err
	}
	e.logger.Info("executor run completed",
		"thread_id", req.ThreadID,
		"steps", len(res.Steps),
		"duration_ms", res.Elapsed.Milliseconds())

	messages := message.CloneMessages(runner.GetMessages())

	return &Result{
		ThreadID:    req.ThreadID,
		Output:      res.Output,
		Steps:       res.Steps,
		Messages:    messages,
		LastMessage: message.Clone(res.LastMessage),
		Elapsed:     res.Elapsed,
	}, nil
}
