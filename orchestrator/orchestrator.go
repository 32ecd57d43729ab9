package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	dterrors "github.com/datatalk-ai/datatalk/errors"
	"github.com/datatalk-ai/datatalk/graph"
	"github.com/datatalk-ai/datatalk/memory"
	"github.com/datatalk-ai/datatalk/message"
	"github.com/datatalk-ai/datatalk/pkg/logging"
	"github.com/datatalk-ai/datatalk/pkg/telemetry"
	"github.com/datatalk-ai/datatalk/session"
)

// DefaultMaxHops bounds how many times the manager may route before the turn
// is forced to finish.
const DefaultMaxHops = 10

// Node names on the routing graph.
const (
	nodeManager  = "manager"
	nodeRoute    = "route"
	nodeTeradata = "teradata"
	nodePlot     = "plot"
)

// maxHopsMessage is appended to the transcript when the hop guard fires.
const maxHopsMessage = "I was unable to complete the request within the allowed number of routing steps. Here is what I have so far."

// Orchestrator composes the manager, query, and plot agents into the
// turn-level routing state machine. It is the only component exposed to the
// calling application.
type Orchestrator struct {
	agents   map[Role]RoleAgent
	sessions *session.Manager
	machine  *graph.Graph[*State]
	maxHops  int
	logger   *slog.Logger
	tracer   trace.Tracer
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithSessionManager sets the session manager used to persist thread history.
func WithSessionManager(sm *session.Manager) Option {
	return func(o *Orchestrator) {
		o.sessions = sm
	}
}

// WithMaxHops overrides the routing hop budget.
func WithMaxHops(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxHops = n
		}
	}
}

// WithLogger overrides the orchestrator logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// New wires the three role agents into the routing machine. The manager agent
// decides, the query agent talks to the database, the plot agent renders
// charts; exactly one of the workers runs per manager decision.
func New(manager, query, plot RoleAgent, opts ...Option) (*Orchestrator, error) {
	if manager == nil || query == nil || plot == nil {
		return nil, fmt.Errorf("orchestrator: all three role agents are required: %w", dterrors.ErrInvalidConfig)
	}

	o := &Orchestrator{
		agents: map[Role]RoleAgent{
			manager.Role(): manager,
			query.Role():   query,
			plot.Role():    plot,
		},
		maxHops: DefaultMaxHops,
		logger:  logging.WithComponent("orchestrator"),
		tracer:  otel.Tracer("datatalk/orchestrator"),
	}
	for _, opt := range opts {
		opt(o)
	}
	if _, ok := o.agents[RoleDecide]; !ok {
		return nil, fmt.Errorf("orchestrator: no agent provides the decide role: %w", dterrors.ErrInvalidConfig)
	}
	if _, ok := o.agents[RoleQuery]; !ok {
		return nil, fmt.Errorf("orchestrator: no agent provides the query role: %w", dterrors.ErrInvalidConfig)
	}
	if _, ok := o.agents[RoleVisualize]; !ok {
		return nil, fmt.Errorf("orchestrator: no agent provides the visualize role: %w", dterrors.ErrInvalidConfig)
	}

	o.machine = o.buildMachine()
	return o, nil
}

func (o *Orchestrator) buildMachine() *graph.Graph[*State] {
	return graph.NewBuilder[*State]().
		AddNode(nodeManager, o.stepFunc(RoleDecide)).
		AddConditionNode(nodeRoute, o.route, map[string]string{
			string(DecisionTeradata): nodeTeradata,
			string(DecisionPlot):     nodePlot,
			string(DecisionDone):     graph.End,
		}).
		AddNode(nodeTeradata, o.stepFunc(RoleQuery)).
		AddNode(nodePlot, o.stepFunc(RoleVisualize)).
		AddEdge(nodeManager, nodeRoute).
		AddEdge(nodeTeradata, nodeManager).
		AddEdge(nodePlot, nodeManager).
		SetStart(nodeManager).
		SetMaxVisits(o.maxHops).
		Build()
}

func (o *Orchestrator) stepFunc(role Role) graph.NodeFunc[*State] {
	ag := o.agents[role]
	return func(ctx context.Context, s *State) (*State, error) {
		ctx, span := o.tracer.Start(ctx, "orchestrator.step",
			trace.WithAttributes(attribute.String("role", string(ag.Role()))))
		err := ag.Step(ctx, s)
		telemetry.End(span, err)
		if err != nil {
			return s, err
		}
		return s, nil
	}
}

// route picks the next node from the manager's normalized decision. The
// parser guarantees the decision is one of the three enumerated values, so
// the dispatch is total.
func (o *Orchestrator) route(ctx context.Context, s *State) (string, error) {
	return string(s.ManagerDecision), nil
}

// Run executes one user turn for a thread. Prior history for the thread is
// restored before the machine runs and the resulting transcript is persisted
// after. Routing never fails the turn; the hop guard degrades it to a
// diagnostic answer instead.
func (o *Orchestrator) Run(ctx context.Context, userQuery, threadID string) (*State, error) {
	if userQuery == "" {
		return nil, fmt.Errorf("orchestrator: user query cannot be empty: %w", dterrors.ErrInvalidInput)
	}

	ctx, span := o.tracer.Start(ctx, "orchestrator.run",
		trace.WithAttributes(attribute.String("thread_id", threadID)))
	ctx = withThreadID(ctx, threadID)

	state := NewState(userQuery)
	if err := o.restore(ctx, threadID, state); err != nil {
		telemetry.End(span, err)
		return nil, err
	}
	state.AppendMessage(message.RoleUser, userQuery)

	o.logger.Info("turn started", "thread_id", threadID, "history", len(state.Messages)-1)

	final, err := o.machine.Execute(ctx, state)
	if err != nil {
		if !errors.Is(err, dterrors.ErrMaxHops) {
			telemetry.End(span, err)
			return nil, fmt.Errorf("orchestrator: turn failed: %w", err)
		}
		// Hop budget exhausted: finish the turn with a diagnostic answer
		// built from whatever the agents produced.
		o.logger.Warn("hop budget exhausted", "thread_id", threadID, "max_hops", o.maxHops)
		final.ManagerDecision = DecisionDone
		final.Response = maxHopsMessage
		final.AppendMessage(message.RoleManager, maxHopsMessage)
	}

	final.Done = true

	if err := o.persist(ctx, threadID, final); err != nil {
		telemetry.End(span, err)
		return nil, err
	}

	o.logger.Info("turn finished",
		"thread_id", threadID,
		"decision", string(final.ManagerDecision),
		"is_plot", final.IsPlot)
	telemetry.End(span, nil)
	return final, nil
}

func (o *Orchestrator) restore(ctx context.Context, threadID string, state *State) error {
	if o.sessions == nil || threadID == "" {
		return nil
	}
	h, err := o.sessions.History(ctx, threadID)
	if err != nil {
		return fmt.Errorf("orchestrator: restore thread %s: %w", threadID, err)
	}
	if h.Len() > 0 {
		state.Restore(h.Messages)
	}
	return nil
}

func (o *Orchestrator) persist(ctx context.Context, threadID string, state *State) error {
	if o.sessions == nil || threadID == "" {
		return nil
	}
	if _, err := o.sessions.Open(threadID); err != nil {
		return fmt.Errorf("orchestrator: open session %s: %w", threadID, err)
	}
	h := memory.NewHistory()
	h.Append(state.Messages...)
	if err := o.sessions.Replace(ctx, threadID, h); err != nil {
		return fmt.Errorf("orchestrator: persist thread %s: %w", threadID, err)
	}
	return nil
}
