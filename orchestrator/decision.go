package orchestrator

import (
	"encoding/json"
	"strings"
)

// managerOutput is the JSON shape the manager agent is prompted to emit.
type managerOutput struct {
	Decision    string `json:"decision"`
	Message     string `json:"message"`
	Explanation string `json:"explanation"`
}

// extractFencedJSON strips a leading ```json (or bare ```) fence line and the
// trailing fence from raw. Text without a fence is returned unchanged.
func extractFencedJSON(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}

	body := trimmed
	if idx := strings.Index(body, "\n"); idx >= 0 {
		body = body[idx+1:]
	} else {
		// Fence with no newline; drop the marker alone.
		body = strings.TrimPrefix(body, "```json")
		body = strings.TrimPrefix(body, "```")
	}
	body = strings.TrimSpace(body)
	if strings.HasSuffix(body, "```") {
		body = strings.TrimSpace(strings.TrimSuffix(body, "```"))
	}
	return body
}

// parseManagerOutput turns the manager's raw text into a routing decision
// plus the forwarded message and explanation.
//
// The decision field is matched by substring after lower-casing, with
// "teradata" taking priority over "plot" over "done"; anything unrecognized
// falls through to done. When the text is not valid JSON the parser fails
// open: the turn ends and the raw text becomes both message and explanation.
func parseManagerOutput(raw string) (Decision, string, string) {
	var out managerOutput
	if err := json.Unmarshal([]byte(extractFencedJSON(raw)), &out); err != nil {
		return DecisionDone, raw, raw
	}

	decision := DecisionDone
	lowered := strings.ToLower(out.Decision)
	switch {
	case strings.Contains(lowered, "teradata"):
		decision = DecisionTeradata
	case strings.Contains(lowered, "plot"):
		decision = DecisionPlot
	}
	return decision, out.Message, out.Explanation
}
