package runtime

import (
	"context"
	"testing"

	"github.com/datatalk-ai/datatalk/agent"
	"github.com/datatalk-ai/datatalk/message"
)

func TestAgentExecutorExecute(t *testing.T) {
	exec := NewAgentExecutor(newTestAgent())

	req := &Request{
		ThreadID:    "thread-1",
		Instruction: "ping",
		History: []*message.Message{
			message.NewMessage(message.RoleUser, "previous question"),
			message.NewMessage(message.RoleAssistant, "previous answer"),
		},
	}

	result, err := exec.Execute(context.Background(), req)
	if err != nil {
		t.Fatalf("executor failed: %v", err)
	}

	if result.ThreadID != req.ThreadID {
		t.Fatalf("expected thread id %s, got %s", req.ThreadID, result.ThreadID)
	}
	if result.Output == "" {
		t.Fatalf("expected non-empty output")
	}
	if len(result.Messages) == 0 {
		t.Fatalf("expected messages to be captured")
	}
	if result.LastMessage == nil {
		t.Fatalf("expected last message to be captured")
	}
}

func TestAgentExecutorIsolatesPrototype(t *testing.T) {
	proto := newTestAgent()
	exec := NewAgentExecutor(proto)

	_, err := exec.Execute(context.Background(), &Request{ThreadID: "t", Instruction: "hello"})
	if err != nil {
		t.Fatalf("executor failed: %v", err)
	}

	// The prototype must not accumulate turn messages.
	for _, msg := range proto.GetMessages() {
		if msg.Role != message.RoleSystem {
			t.Fatalf("prototype leaked message with role %s", msg.Role)
		}
	}
}

func TestAgentExecutorNilRequest(t *testing.T) {
	exec := NewAgentExecutor(newTestAgent())
	if _, err := exec.Execute(context.Background(), nil); err == nil {
		t.Fatalf("expected error for nil request")
	}
}

func TestAgentExecutorEmptyInstruction(t *testing.T) {
	exec := NewAgentExecutor(newTestAgent())
	_, err := exec.Execute(context.Background(), &Request{Instruction: ""})
	if err == nil {
		t.Fatalf("expected error for empty instruction")
	}
}

func newTestAgent() *agent.Agent {
	return agent.New(
		agent.WithSystemPrompt("You are a test agent."),
		agent.WithProvider(&mockLLM{}),
		agent.WithMaxIterations(1),
	)
}

type mockLLM struct{}

func (m *mockLLM) Generate(ctx context.Context, req *agent.GenerateRequest) (*agent.GenerateResponse, error) {
	last := ""
	if n := len(req.Messages); n > 0 {
		last = req.Messages[n-1].Content
	}
	return &agent.GenerateResponse{
		Message: message.NewMessage(message.RoleAssistant, "echo:"+last),
	}, nil
}

func (m *mockLLM) SetTemperature(float64) {}
func (m *mockLLM) SetMaxTokens(int64)     {}
func (m *mockLLM) SetModel(string)        {}
