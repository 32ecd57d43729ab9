package agent

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/datatalk-ai/datatalk/message"
	"github.com/datatalk-ai/datatalk/tool"
)

// scriptedLLM serves canned responses in order; the last one repeats once
// the script runs out.
type scriptedLLM struct {
	temperature float64
	maxTokens   int64
	model       string
	responses   []*message.Message
	calls       int
}

func newScriptedLLM(responses ...*message.Message) *scriptedLLM {
	if len(responses) == 0 {
		responses = []*message.Message{message.NewMessage(message.RoleAssistant, "scripted response")}
	}
	return &scriptedLLM{
		temperature: 0.7,
		maxTokens:   2000,
		model:       "gpt-4o-mini",
		responses:   responses,
	}
}

func (m *scriptedLLM) Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error) {
	idx := m.calls
	if idx >= len(m.responses) {
		idx = len(m.responses) - 1
	}
	m.calls++
	return &GenerateResponse{Message: message.Clone(m.responses[idx])}, nil
}

func (m *scriptedLLM) SetTemperature(temp float64) { m.temperature = temp }
func (m *scriptedLLM) SetMaxTokens(max int64)      { m.maxTokens = max }
func (m *scriptedLLM) SetModel(model string)       { m.model = model }

func toolCallMessage(name string, args map[string]any) *message.Message {
	return message.NewToolCallMessage([]message.ToolCall{{
		ID:   "call-1",
		Name: name,
		Args: args,
	}})
}

func TestNewAgentDefaults(t *testing.T) {
	ag := New(
		WithName("teradata-query-agent"),
		WithSystemPrompt("You translate questions into SQL."),
	)

	if ag.name != "teradata-query-agent" {
		t.Errorf("name = %q, want teradata-query-agent", ag.name)
	}
	if ag.systemPrompt != "You translate questions into SQL." {
		t.Errorf("system prompt not applied, got %q", ag.systemPrompt)
	}
	if ag.maxIterations != 10 {
		t.Errorf("default maxIterations = %d, want 10", ag.maxIterations)
	}
	msgs := ag.GetMessages()
	if len(msgs) != 1 || msgs[0].Role != message.RoleSystem {
		t.Errorf("expected system prompt installed as first message, got %d messages", len(msgs))
	}
}

func TestAgentRunFinalAnswer(t *testing.T) {
	llm := newScriptedLLM(message.NewMessage(message.RoleAssistant, "final answer"))
	ag := New(WithProvider(llm))

	result, err := ag.Run(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Output != "final answer" {
		t.Errorf("Output = %q, want final answer", result.Output)
	}
	if len(result.Steps) != 0 {
		t.Errorf("expected empty trace, got %d steps", len(result.Steps))
	}
}

func TestAgentRunRecordsTrace(t *testing.T) {
	llm := newScriptedLLM(
		toolCallMessage("echo", map[string]any{"text": "ping"}),
		message.NewMessage(message.RoleAssistant, "done"),
	)
	ag := New(WithProvider(llm))
	err := ag.RegisterTool(&tool.Tool{
		Name:        "echo",
		Description: "echoes text",
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			return fmt.Sprintf("%v", args["text"]), nil
		},
	})
	if err != nil {
		t.Fatalf("RegisterTool failed: %v", err)
	}

	result, err := ag.Run(context.Background(), "use the tool")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Output != "done" {
		t.Errorf("Output = %q, want done", result.Output)
	}
	if len(result.Steps) != 1 {
		t.Fatalf("expected 1 trace step, got %d", len(result.Steps))
	}
	if result.Steps[0].Action.Tool != "echo" {
		t.Errorf("recorded action = %s, want echo", result.Steps[0].Action.Tool)
	}
	if result.Steps[0].Observation != "ping" {
		t.Errorf("observation = %q, want ping", result.Steps[0].Observation)
	}
}

func TestAgentRunToolErrorBecomesObservation(t *testing.T) {
	llm := newScriptedLLM(
		toolCallMessage("boom", nil),
		message.NewMessage(message.RoleAssistant, "recovered"),
	)
	ag := New(WithProvider(llm))
	_ = ag.RegisterTool(&tool.Tool{
		Name:        "boom",
		Description: "always fails",
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			return "", fmt.Errorf("database unreachable")
		},
	})

	result, err := ag.Run(context.Background(), "try it")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(result.Steps) != 1 {
		t.Fatalf("expected 1 trace step, got %d", len(result.Steps))
	}
	if !strings.Contains(result.Steps[0].Observation, "database unreachable") {
		t.Errorf("expected error folded into observation, got %q", result.Steps[0].Observation)
	}
	if result.Output != "recovered" {
		t.Errorf("expected loop to continue after tool error, got %q", result.Output)
	}
}

func TestAgentRunIterationExhaustion(t *testing.T) {
	// Provider always asks for a tool, so the loop never converges.
	llm := newScriptedLLM(toolCallMessage("echo", map[string]any{"text": "again"}))
	ag := New(WithProvider(llm), WithMaxIterations(3))
	_ = ag.RegisterTool(&tool.Tool{
		Name:        "echo",
		Description: "echoes text",
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			return "again", nil
		},
	})

	result, err := ag.Run(context.Background(), "loop")
	if err != nil {
		t.Fatalf("exhaustion must not surface as error, got: %v", err)
	}
	if !strings.Contains(result.Output, "maximum of 3 iterations") {
		t.Errorf("expected exhaustion text in output, got %q", result.Output)
	}
	if len(result.Steps) != 3 {
		t.Errorf("expected 3 trace steps, got %d", len(result.Steps))
	}
}

func TestAgentRunWithoutProvider(t *testing.T) {
	ag := New()
	if _, err := ag.Run(context.Background(), "hi"); err == nil {
		t.Errorf("expected error when no provider configured")
	}
}

func TestAgentClone(t *testing.T) {
	llm := newScriptedLLM()
	original := New(
		WithName("plot-agent"),
		WithSystemPrompt("You render charts from result sets."),
		WithMaxIterations(5),
		WithTemperature(0.5),
		WithProvider(llm),
		WithTools(true),
	)
	_ = original.RegisterTool(&tool.Tool{Name: "render_chart", Description: "renders a chart"})

	cloned := original.Clone()

	if cloned.name != original.name {
		t.Errorf("clone name = %q, want %q", cloned.name, original.name)
	}
	if cloned.systemPrompt != original.systemPrompt {
		t.Errorf("clone lost the system prompt")
	}
	if cloned.maxIterations != original.maxIterations {
		t.Errorf("clone maxIterations = %d, want %d", cloned.maxIterations, original.maxIterations)
	}
	if _, err := cloned.tools.Get("render_chart"); err != nil {
		t.Errorf("clone missing registered tool: %v", err)
	}
}

func TestRegisterToolRejectsDuplicates(t *testing.T) {
	ag := New()
	queryTool := &tool.Tool{
		Name:        "run_query",
		Description: "executes SQL against the warehouse",
	}

	if err := ag.RegisterTool(queryTool); err != nil {
		t.Errorf("RegisterTool failed: %v", err)
	}
	if err := ag.RegisterTool(queryTool); err == nil {
		t.Errorf("expected error when registering duplicate tool")
	}
}

func TestAddMiddlewareRejectsNil(t *testing.T) {
	ag := New()
	if err := ag.AddMiddleware(nil); err == nil {
		t.Errorf("expected error when adding nil middleware")
	}
}

func TestAddMessage(t *testing.T) {
	ag := New()
	ag.AddMessage(message.NewMessage(message.RoleUser, "show revenue by region"))

	found := false
	for _, m := range ag.GetMessages() {
		if m.Role == message.RoleUser && m.Text() == "show revenue by region" {
			found = true
			break
		}
	}
	if !found {
		t.Errorf("user message not found in conversation")
	}
}

func TestClearMessagesKeepsSystemPrompt(t *testing.T) {
	ag := New(WithSystemPrompt("You route analyst questions."))
	ag.AddMessage(message.NewMessage(message.RoleUser, "list databases"))

	ag.ClearMessages()

	msgs := ag.GetMessages()
	if len(msgs) != 1 || msgs[0].Role != message.RoleSystem {
		t.Errorf("expected only the system prompt after clear, got %d messages", len(msgs))
	}
}

func TestRegisterPrompt(t *testing.T) {
	ag := New()

	if err := ag.RegisterPrompt("greeting", "Hello {{.name}}"); err != nil {
		t.Errorf("RegisterPrompt failed: %v", err)
	}
	if err := ag.RegisterPrompt("", "empty"); err == nil {
		t.Errorf("expected error for empty template name")
	}
}

func TestGetMiddlewareChain(t *testing.T) {
	if New().GetMiddlewareChain() == nil {
		t.Errorf("middleware chain is nil")
	}
}

func TestAgentRestoreMessages(t *testing.T) {
	ag := New(WithSystemPrompt("default"))

	history := []*message.Message{
		message.NewMessage(message.RoleUser, "hello"),
		message.NewMessage(message.RoleAssistant, "hi there"),
	}

	ag.RestoreMessages(history)

	messages := ag.GetMessages()
	if len(messages) != 3 {
		t.Fatalf("expected 3 messages after restore (system + 2), got %d", len(messages))
	}
	if messages[0].Role != message.RoleSystem || messages[0].Text() != "default" {
		t.Errorf("expected system prompt first, got %+v", messages[0])
	}
	if messages[1].Text() != "hello" || messages[2].Text() != "hi there" {
		t.Errorf("expected history preserved in order")
	}

	ag.RestoreMessages(nil)
	messages = ag.GetMessages()
	if len(messages) != 1 || messages[0].Text() != "default" {
		t.Errorf("expected reset to system prompt only, got %d messages", len(messages))
	}
}
