package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/proposalforge/rfpflow/graph"
	"github.com/proposalforge/rfpflow/graph/model"
	"github.com/proposalforge/rfpflow/llm"
)

// ProposalBuilderNode produces all 13 sections; each must be non-empty,
// falling back to a deterministic placeholder if generation fails (spec
// §4.3). Like the analyzer, this node is critical to the run's invariant
// "len(proposal_draft.keys()) == 13 after the run" (spec §8), so every
// section write goes through a fallback rather than being skipped.
type ProposalBuilderNode struct {
	Gateway *llm.Gateway
}

const sectionPrompt = `Write the "%s" section of a business proposal for this project. Section purpose: %s

Project summary: %s
Scope: %s
Business objectives: %s
Value propositions: %s

Write 2-4 paragraphs of proposal content. Return ONLY the section text, no heading.`

func (n *ProposalBuilderNode) Run(ctx context.Context, state State) graph.NodeResult[State] {
	draft := make(map[string]string, len(CanonicalSectionKeys))

	for _, key := range CanonicalSectionKeys {
		sectionDesc := descriptionForKey(state.ProposalOutline, key)
		text := n.generateSection(ctx, state, key, sectionDesc)
		if text == "" {
			text = fallbackSectionText(key, state)
		}
		draft[key] = text
	}

	delta := State{
		CurrentStep:   "proposal_builder",
		ProposalDraft: draft,
		ExecutionLog: []LogEntry{{
			Step: "proposal_builder", Status: LogSuccess, At: time.Now(),
		}},
	}
	return graph.NodeResult[State]{Delta: delta, Route: graph.Goto("critic")}
}

func (n *ProposalBuilderNode) generateSection(ctx context.Context, state State, key, desc string) string {
	if n.Gateway == nil {
		return ""
	}
	prompt := fmt.Sprintf(sectionPrompt, key, desc, state.RFPSummary, state.ProjectScope,
		challengeTextSummary(state.Challenges), joinStrings(state.ValueProps))

	result, err := n.Gateway.Complete(ctx, llm.CompletionRequest{
		Task:        llm.TaskDrafting,
		Messages:    []model.Message{{Role: "user", Content: prompt}},
		Temperature: 0.3,
	})
	if err != nil {
		return ""
	}
	return result.Text
}

func descriptionForKey(outline []OutlineSection, key string) string {
	for _, s := range outline {
		if s.Key == key {
			return s.Description
		}
	}
	return DefaultSectionDescriptions[key]
}

func fallbackSectionText(key string, state State) string {
	return fmt.Sprintf("This section (%s) addresses the client's requirements as described in the RFP. %s",
		sectionTitle(key), DefaultSectionDescriptions[key])
}

func joinStrings(values []string) string {
	out := ""
	for i, v := range values {
		if i > 0 {
			out += "; "
		}
		out += v
	}
	return out
}
