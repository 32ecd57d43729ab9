package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/datatalk-ai/datatalk/agent"
	"github.com/datatalk-ai/datatalk/memory/store"
	"github.com/datatalk-ai/datatalk/message"
	"github.com/datatalk-ai/datatalk/runtime"
	"github.com/datatalk-ai/datatalk/session"
)

// fakeExecutor serves scripted results in order; the last one repeats. It
// records every request it receives.
type fakeExecutor struct {
	mu       sync.Mutex
	results  []*runtime.Result
	err      error
	requests []*runtime.Request
}

func (f *fakeExecutor) Execute(ctx context.Context, req *runtime.Request) (*runtime.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	if len(f.results) == 0 {
		return &runtime.Result{Output: ""}, nil
	}
	res := f.results[0]
	if len(f.results) > 1 {
		f.results = f.results[1:]
	}
	return res, nil
}

func (f *fakeExecutor) calls() []*runtime.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*runtime.Request, len(f.requests))
	copy(out, f.requests)
	return out
}

func managerResult(decision, msg, explanation string) *runtime.Result {
	return &runtime.Result{
		Output: fmt.Sprintf(`{"decision":%q,"message":%q,"explanation":%q}`, decision, msg, explanation),
	}
}

func newOrchestrator(t *testing.T, manager, query, plot *fakeExecutor, opts ...Option) *Orchestrator {
	t.Helper()
	o, err := New(
		NewManagerAgent(manager),
		NewQueryAgent(query),
		NewPlotAgent(plot),
		opts...,
	)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return o
}

func TestRunImmediateDone(t *testing.T) {
	manager := &fakeExecutor{results: []*runtime.Result{
		managerResult("done", "Hello! How can I help with your data?", ""),
	}}
	o := newOrchestrator(t, manager, &fakeExecutor{}, &fakeExecutor{})

	state, err := o.Run(context.Background(), "hi", "thread-1")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if !state.Done {
		t.Error("expected terminal state")
	}
	if state.ManagerDecision != DecisionDone {
		t.Errorf("expected done decision, got %s", state.ManagerDecision)
	}
	if state.Response != "Hello! How can I help with your data?" {
		t.Errorf("unexpected response %q", state.Response)
	}

	// Transcript carries the user query followed by the manager message.
	if len(state.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(state.Messages))
	}
	if state.Messages[0].Role != message.RoleUser || state.Messages[0].Content != "hi" {
		t.Errorf("expected user message first, got %+v", state.Messages[0])
	}
	if state.Messages[1].Role != message.RoleManager {
		t.Errorf("expected manager message second, got role %s", state.Messages[1].Role)
	}
}

func TestRunRoutesToQueryAgent(t *testing.T) {
	manager := &fakeExecutor{results: []*runtime.Result{
		managerResult("teradata", "Querying tables", "list all tables"),
		managerResult("done", "Here are your tables", ""),
	}}
	query := &fakeExecutor{results: []*runtime.Result{
		{
			Output: "The database has 3 tables.",
			Steps: []agent.Step{
				{
					Action:      agent.Action{Tool: "base_readQuery"},
					Observation: `{"status":"success","metadata":{"sql":"SELECT TableName FROM DBC.TablesV"}}`,
				},
			},
		},
	}}
	plot := &fakeExecutor{}

	o := newOrchestrator(t, manager, query, plot)
	state, err := o.Run(context.Background(), "what tables exist?", "thread-1")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if state.TDAgentResponse != "The database has 3 tables." {
		t.Errorf("unexpected query response %q", state.TDAgentResponse)
	}
	if !strings.Contains(state.SQLQueries, "SELECT TableName FROM DBC.TablesV") {
		t.Errorf("expected extracted SQL, got %q", state.SQLQueries)
	}
	if state.Response != "Here are your tables" {
		t.Errorf("unexpected final response %q", state.Response)
	}
	if len(plot.calls()) != 0 {
		t.Error("plot agent must not run on a teradata decision")
	}

	// First query hop carries the user's question; the manager's second call
	// sees the worker's answer.
	qc := query.calls()
	if len(qc) != 1 {
		t.Fatalf("expected 1 query call, got %d", len(qc))
	}
	if !strings.HasPrefix(qc[0].Instruction, "User Query:\nwhat tables exist?\n\nManager Request:\n") {
		t.Errorf("unexpected query instruction %q", qc[0].Instruction)
	}
	mc := manager.calls()
	if len(mc) != 2 {
		t.Fatalf("expected 2 manager calls, got %d", len(mc))
	}
	if !strings.Contains(mc[1].Instruction, "Teradata Agent Response:\nThe database has 3 tables.") {
		t.Errorf("expected worker answer in manager instruction, got %q", mc[1].Instruction)
	}
}

func TestRunRoutesToPlotAgent(t *testing.T) {
	manager := &fakeExecutor{results: []*runtime.Result{
		managerResult("plot", "Drawing", "bar chart of sales"),
		managerResult("done", "Chart is ready", ""),
	}}
	plot := &fakeExecutor{results: []*runtime.Result{
		{
			Output: "chart saved",
			Steps: []agent.Step{
				{Action: agent.Action{Tool: "execute_python"}, Observation: "chart saved"},
			},
		},
	}}
	query := &fakeExecutor{}

	o := newOrchestrator(t, manager, query, plot)
	state, err := o.Run(context.Background(), "plot the sales", "thread-1")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if !state.IsPlot {
		t.Error("expected is_plot true after a tool-invoking plot run")
	}
	if state.PlotAgentResponse != "chart saved" {
		t.Errorf("unexpected plot response %q", state.PlotAgentResponse)
	}
	if len(query.calls()) != 0 {
		t.Error("query agent must not run on a plot decision")
	}

	pc := plot.calls()
	if len(pc) != 1 {
		t.Fatalf("expected 1 plot call, got %d", len(pc))
	}
	if pc[0].Instruction != "Manager Request: bar chart of sales" {
		t.Errorf("unexpected plot instruction %q", pc[0].Instruction)
	}
}

func TestRunPlotWithoutToolCallsLeavesIsPlotFalse(t *testing.T) {
	manager := &fakeExecutor{results: []*runtime.Result{
		managerResult("plot", "Drawing", "bar chart"),
		managerResult("done", "No chart needed", ""),
	}}
	plot := &fakeExecutor{results: []*runtime.Result{
		{Output: "nothing to plot"},
	}}

	o := newOrchestrator(t, manager, &fakeExecutor{}, plot)
	state, err := o.Run(context.Background(), "plot nothing", "thread-1")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if state.IsPlot {
		t.Error("expected is_plot false when no tool was invoked")
	}
}

func TestRunMalformedManagerOutput(t *testing.T) {
	manager := &fakeExecutor{results: []*runtime.Result{
		{Output: "I am not sure"},
	}}

	o := newOrchestrator(t, manager, &fakeExecutor{}, &fakeExecutor{})
	state, err := o.Run(context.Background(), "hmm", "thread-1")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if state.ManagerDecision != DecisionDone {
		t.Errorf("expected done decision, got %s", state.ManagerDecision)
	}
	if state.Response != "I am not sure" {
		t.Errorf("expected raw text preserved, got %q", state.Response)
	}
}

func TestRunQueryAgentErrorCaptured(t *testing.T) {
	manager := &fakeExecutor{results: []*runtime.Result{
		managerResult("teradata", "Querying", "count the rows"),
		managerResult("done", "Something went wrong, sorry", ""),
	}}
	query := &fakeExecutor{err: fmt.Errorf("connection refused")}

	o := newOrchestrator(t, manager, query, &fakeExecutor{})
	state, err := o.Run(context.Background(), "count rows", "thread-1")
	if err != nil {
		t.Fatalf("expected query failure to be absorbed, got %v", err)
	}

	if !strings.Contains(state.TDAgentResponse, "connection refused") {
		t.Errorf("expected error text captured, got %q", state.TDAgentResponse)
	}
	if state.SQLQueries != "" {
		t.Errorf("expected no SQL after failure, got %q", state.SQLQueries)
	}
	if !state.Done {
		t.Error("expected the turn to finish")
	}
}

func TestRunManagerErrorPropagates(t *testing.T) {
	manager := &fakeExecutor{err: fmt.Errorf("provider outage")}

	o := newOrchestrator(t, manager, &fakeExecutor{}, &fakeExecutor{})
	if _, err := o.Run(context.Background(), "hi", "thread-1"); err == nil {
		t.Error("expected manager failure to propagate")
	}
}

func TestRunMaxHopsRecovered(t *testing.T) {
	// A confused supervisor keeps routing to teradata forever.
	manager := &fakeExecutor{results: []*runtime.Result{
		managerResult("teradata", "Still digging", "keep querying"),
	}}
	query := &fakeExecutor{results: []*runtime.Result{
		{Output: "partial data"},
	}}

	o := newOrchestrator(t, manager, query, &fakeExecutor{}, WithMaxHops(3))
	state, err := o.Run(context.Background(), "impossible request", "thread-1")
	if err != nil {
		t.Fatalf("expected hop exhaustion to be recovered, got %v", err)
	}

	if !state.Done {
		t.Error("expected terminal state after hop guard")
	}
	if state.ManagerDecision != DecisionDone {
		t.Errorf("expected forced done decision, got %s", state.ManagerDecision)
	}
	if state.Response != maxHopsMessage {
		t.Errorf("expected diagnostic response, got %q", state.Response)
	}

	last := state.Messages[len(state.Messages)-1]
	if last.Role != message.RoleManager || last.Content != maxHopsMessage {
		t.Errorf("expected diagnostic manager message appended, got %+v", last)
	}
	if state.TDAgentResponse != "partial data" {
		t.Errorf("expected partial worker output preserved, got %q", state.TDAgentResponse)
	}
}

func TestRunEmptyQuery(t *testing.T) {
	o := newOrchestrator(t, &fakeExecutor{}, &fakeExecutor{}, &fakeExecutor{})
	if _, err := o.Run(context.Background(), "", "thread-1"); err == nil {
		t.Error("expected error for empty user query")
	}
}

func TestRunResumesThreadHistory(t *testing.T) {
	sessions := session.NewManager(session.WithStore(store.NewInMemoryStore()))

	manager := &fakeExecutor{results: []*runtime.Result{
		managerResult("done", "First answer", ""),
		managerResult("done", "Second answer", ""),
	}}

	o := newOrchestrator(t, manager, &fakeExecutor{}, &fakeExecutor{},
		WithSessionManager(sessions))

	ctx := context.Background()
	if _, err := o.Run(ctx, "first question", "thread-1"); err != nil {
		t.Fatalf("first turn failed: %v", err)
	}
	state, err := o.Run(ctx, "second question", "thread-1")
	if err != nil {
		t.Fatalf("second turn failed: %v", err)
	}

	// Second turn's transcript: turn one's user+manager messages, then the
	// new pair.
	if len(state.Messages) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(state.Messages))
	}
	if state.Messages[0].Content != "first question" {
		t.Errorf("expected first turn restored, got %q", state.Messages[0].Content)
	}

	// The second manager call saw the prior turn plus the fresh user message
	// as history.
	mc := manager.calls()
	if len(mc) != 2 {
		t.Fatalf("expected 2 manager calls, got %d", len(mc))
	}
	if len(mc[1].History) != 3 {
		t.Errorf("expected 3 history messages on second turn, got %d", len(mc[1].History))
	}

	// And the transcript was persisted.
	h, err := sessions.History(ctx, "thread-1")
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if h.Len() != 4 {
		t.Errorf("expected 4 persisted messages, got %d", h.Len())
	}
}

func TestRunDistinctThreadsStayIsolated(t *testing.T) {
	sessions := session.NewManager(session.WithStore(store.NewInMemoryStore()))
	manager := &fakeExecutor{results: []*runtime.Result{
		managerResult("done", "answer", ""),
	}}

	o := newOrchestrator(t, manager, &fakeExecutor{}, &fakeExecutor{},
		WithSessionManager(sessions))

	ctx := context.Background()
	if _, err := o.Run(ctx, "alpha question", "thread-a"); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	state, err := o.Run(ctx, "beta question", "thread-b")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	for _, msg := range state.Messages {
		if strings.Contains(msg.Content, "alpha") {
			t.Errorf("thread-b transcript leaked thread-a content: %q", msg.Content)
		}
	}
}

func TestNewRequiresAllRoles(t *testing.T) {
	if _, err := New(nil, NewQueryAgent(&fakeExecutor{}), NewPlotAgent(&fakeExecutor{})); err == nil {
		t.Error("expected error for missing manager agent")
	}
}
