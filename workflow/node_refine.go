package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/proposalforge/rfpflow/graph"
	"github.com/proposalforge/rfpflow/graph/model"
	"github.com/proposalforge/rfpflow/llm"
)

// RefineNode rewrites only the weak sections the critic flagged, returns
// the full draft (untouched sections carried forward), and increments
// refinement_iterations (spec §4.3).
type RefineNode struct {
	Gateway *llm.Gateway
}

const refinePrompt = `Rewrite the "%s" section of a business proposal to address this feedback: %s

Current section text:
%s

Return ONLY the improved section text, no heading.`

func (n *RefineNode) Run(ctx context.Context, state State) graph.NodeResult[State] {
	draft := make(map[string]string, len(state.ProposalDraft))
	for k, v := range state.ProposalDraft {
		draft[k] = v
	}

	suggestions := joinStrings(state.RefinementFeedback.Suggestions)
	for _, key := range state.RefinementFeedback.WeakSections {
		current, ok := draft[key]
		if !ok {
			continue
		}
		rewritten := n.rewriteSection(ctx, key, suggestions, current)
		if rewritten != "" {
			draft[key] = rewritten
		}
	}

	delta := State{
		CurrentStep:          "refine",
		ProposalDraft:        draft,
		RefinementIterations: state.RefinementIterations + 1,
		ExecutionLog: []LogEntry{{
			Step: "refine", Status: LogSuccess, At: time.Now(),
		}},
	}
	return graph.NodeResult[State]{Delta: delta, Route: graph.Goto("critic")}
}

func (n *RefineNode) rewriteSection(ctx context.Context, key, suggestions, current string) string {
	if n.Gateway == nil {
		return ""
	}
	result, err := n.Gateway.Complete(ctx, llm.CompletionRequest{
		Task:        llm.TaskRefinement,
		Messages:    []model.Message{{Role: "user", Content: fmt.Sprintf(refinePrompt, key, suggestions, current)}},
		Temperature: 0.2,
	})
	if err != nil {
		return ""
	}
	return result.Text
}
