package orchestrator

import (
	"encoding/json"
	"strings"

	"github.com/datatalk-ai/datatalk/agent"
	"github.com/datatalk-ai/datatalk/pkg/logging"
)

// sqlWrapWidth is the column at which captured SQL statements are re-wrapped
// for display.
const sqlWrapWidth = 100

// toolObservation is the structured shape database tools report back in.
type toolObservation struct {
	Status   string `json:"status"`
	Metadata struct {
		SQL string `json:"sql"`
	} `json:"metadata"`
}

var sqlKeywords = []string{"select ", " update ", " delete ", " insert "}

// collectSQL extracts the SQL statements executed during a query agent run
// from its ordered tool trace and renders them as fenced blocks under a
// single heading. It returns "" when the trace carries no SQL.
func collectSQL(steps []agent.Step) string {
	logger := logging.WithComponent("orchestrator")

	var statements []string
	for _, step := range steps {
		obs := step.Observation
		if obs == "" {
			continue
		}

		var parsed toolObservation
		if err := json.Unmarshal([]byte(obs), &parsed); err != nil {
			// Free-text observation. The keyword check is a debug signal
			// only; it never contributes SQL blocks.
			if containsSQLKeyword(obs) {
				logger.Debug("unstructured observation mentions SQL",
					"tool", step.Action.Tool)
			}
			continue
		}
		if parsed.Status != "success" || parsed.Metadata.SQL == "" {
			continue
		}
		statements = append(statements, wrapSQL(parsed.Metadata.SQL, sqlWrapWidth))
	}

	if len(statements) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("**SQL Commands:**\n")
	for i, stmt := range statements {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString("```sql\n")
		b.WriteString(stmt)
		b.WriteString("\n```")
	}
	return b.String()
}

func containsSQLKeyword(text string) bool {
	lowered := strings.ToLower(text)
	for _, kw := range sqlKeywords {
		if strings.Contains(lowered, kw) {
			return true
		}
	}
	return false
}

// wrapSQL greedily re-wraps a statement so no line exceeds width columns.
// Words longer than the width stand on their own line.
func wrapSQL(sql string, width int) string {
	words := strings.Fields(sql)
	if len(words) == 0 {
		return ""
	}

	var lines []string
	current := words[0]
	for _, word := range words[1:] {
		if len(current)+1+len(word) <= width {
			current += " " + word
			continue
		}
		lines = append(lines, current)
		current = word
	}
	lines = append(lines, current)
	return strings.Join(lines, "\n")
}
