// Package orchestrator routes a user's natural-language request among a
// decision-making manager agent, a database query agent, and a chart
// generation agent until a final answer is ready.
package orchestrator

import (
	"github.com/datatalk-ai/datatalk/message"
)

// Decision identifies which agent the manager routes to next.
type Decision string

const (
	DecisionTeradata Decision = "teradata"
	DecisionPlot     Decision = "plot"
	DecisionDone     Decision = "done"
)

// State is the mutable record threaded through one user turn. It is owned by
// the orchestrator and handed to exactly one role agent at a time; each agent
// writes only its own fields.
type State struct {
	// UserQuery is set once at turn start and immutable after.
	UserQuery string `json:"user_query"`

	// Messages accumulates the user's query and manager output per step.
	// Append-only within a turn.
	Messages []*message.Message `json:"messages"`

	// Manager step outputs.
	ManagerDecision Decision `json:"manager_decision"`
	Explanation     string   `json:"explanation"`
	Response        string   `json:"response"`

	// Query step outputs.
	TDAgentResponse string `json:"td_agent_response"`
	SQLQueries      string `json:"sql_queries"`

	// Visualize step outputs. IsPlot is set true when a chart was produced
	// and never reset within a turn.
	PlotAgentResponse string `json:"plot_agent_response"`
	IsPlot            bool   `json:"is_plot"`

	// Done marks the turn terminal.
	Done bool `json:"done"`
}

// NewState creates a fresh turn state for a user query.
func NewState(userQuery string) *State {
	return &State{
		UserQuery:       userQuery,
		ManagerDecision: DecisionDone,
	}
}

// Restore seeds the state with a prior thread's messages and resets all
// turn-scoped fields.
func (s *State) Restore(history []*message.Message) {
	s.Messages = message.CloneMessages(history)
	s.ManagerDecision = DecisionDone
	s.Explanation = ""
	s.Response = ""
	s.TDAgentResponse = ""
	s.SQLQueries = ""
	s.PlotAgentResponse = ""
	s.IsPlot = false
	s.Done = false
}

// AppendMessage adds a message to the turn transcript.
func (s *State) AppendMessage(role message.Role, content string) {
	s.Messages = append(s.Messages, message.NewMessage(role, content))
}
