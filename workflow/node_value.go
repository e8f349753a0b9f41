package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/proposalforge/rfpflow/graph"
	"github.com/proposalforge/rfpflow/graph/model"
	"github.com/proposalforge/rfpflow/llm"
)

// ValuePropositionNode asks the model for 3-7 measurable value statements
// mapped to the extracted challenges, per spec §4.3. It keeps at most
// maxValueProps of them; fewer than 3 are kept as returned, and a gateway or
// parse failure yields none.
type ValuePropositionNode struct {
	Gateway *llm.Gateway
}

const minValueProps = 3
const maxValueProps = 7

const valuePropPrompt = `Given these challenges from an RFP, write between 3 and 7 measurable value proposition statements, each mapped to one of the challenges and quantified where possible. Respond with a JSON array of strings. Return ONLY the JSON array.

Challenges: %s`

func (n *ValuePropositionNode) Run(ctx context.Context, state State) graph.NodeResult[State] {
	result, err := n.Gateway.Complete(ctx, llm.CompletionRequest{
		Task:        llm.TaskDrafting,
		Messages:    []model.Message{{Role: "user", Content: fmt.Sprintf(valuePropPrompt, challengeTextSummary(state.Challenges))}},
		Temperature: 0,
	})

	var values []string
	status := LogSuccess
	if err != nil {
		status = LogWarning
	} else {
		values = parseValueProps(result.Text)
	}

	delta := State{
		ValueProps: values,
		ExecutionLog: []LogEntry{{
			Step: "value_proposition", Status: status, At: time.Now(),
		}},
	}
	return graph.NodeResult[State]{Delta: delta}
}

func parseValueProps(text string) []string {
	raw := extractJSONArray(text)
	var parsed []string
	if raw == "" || json.Unmarshal([]byte(raw), &parsed) != nil {
		return nil
	}
	if len(parsed) > maxValueProps {
		parsed = parsed[:maxValueProps]
	}
	return parsed
}
