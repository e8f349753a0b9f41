package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/proposalforge/rfpflow/graph"
	"github.com/proposalforge/rfpflow/graph/emit"
	"github.com/proposalforge/rfpflow/graph/model"
	"github.com/proposalforge/rfpflow/llm"
)

// OutlineGeneratorNode emits the fixed 13-section skeleton with customized
// descriptions, enforcing that every canonical key is present, filling
// missing ones from DefaultSectionDescriptions (spec §4.3).
type OutlineGeneratorNode struct {
	Gateway *llm.Gateway
	Bus     *emit.Bus
}

// DefaultSectionDescriptions backfills any canonical section the model
// omits, keyed by CanonicalSectionKeys. Taken from the original
// proposal_templates.py DEFAULT_SECTIONS table.
var DefaultSectionDescriptions = map[string]string{
	"executive_summary":          "A concise overview of the proposed solution and its value.",
	"understanding_requirements": "Demonstrates understanding of the client's stated needs.",
	"proposed_solution":          "The high-level solution being proposed.",
	"technical_approach":         "The technical methodology and architecture.",
	"implementation_plan":        "Phases, milestones, and delivery approach.",
	"team_expertise":             "Relevant team qualifications and experience.",
	"case_studies":               "Relevant past engagements and outcomes.",
	"pricing":                    "Cost structure and commercial terms.",
	"timeline":                   "Project schedule and key dates.",
	"risk_mitigation":            "Identified risks and mitigation strategies.",
	"support_maintenance":        "Post-delivery support commitments.",
	"terms_conditions":           "Contractual terms and conditions.",
	"why_us":                     "Differentiators and reasons to select this vendor.",
}

const outlinePrompt = `Given this project summary, write a one-sentence customized description for each of these 13 proposal sections: %s. Respond with a JSON object mapping section key to description. Return ONLY the JSON object.

Summary: %s`

func (n *OutlineGeneratorNode) Run(ctx context.Context, state State) graph.NodeResult[State] {
	result, err := n.Gateway.Complete(ctx, llm.CompletionRequest{
		Task:        llm.TaskStructuredOutput,
		Messages:    []model.Message{{Role: "user", Content: fmt.Sprintf(outlinePrompt, joinKeys(CanonicalSectionKeys), state.RFPSummary)}},
		Temperature: 0,
	})

	descriptions := map[string]string{}
	if err == nil {
		descriptions = parseOutlineDescriptions(result.Text)
	}

	sections := make([]OutlineSection, len(CanonicalSectionKeys))
	sectionTitles := map[string]string{}
	for i, key := range CanonicalSectionKeys {
		desc := descriptions[key]
		if desc == "" {
			desc = DefaultSectionDescriptions[key]
		}
		title := sectionTitle(key)
		sectionTitles[key] = title
		sections[i] = OutlineSection{Key: key, Title: title, Description: desc, Order: i + 1}
	}

	if n.Bus != nil {
		titles := make([]string, len(sections))
		for i, s := range sections {
			titles[i] = s.Title
		}
		n.Bus.EmitSkeleton(state.ProjectID, "outline_generator", titles)
	}

	delta := State{
		ProposalOutline: sections,
		ExecutionLog: []LogEntry{{
			Step: "outline_generator", Status: LogSuccess, At: time.Now(),
		}},
	}
	return graph.NodeResult[State]{Delta: delta, Route: graph.Goto("human_approval")}
}

func parseOutlineDescriptions(text string) map[string]string {
	raw := extractJSONObject(text)
	var parsed map[string]string
	if raw == "" || json.Unmarshal([]byte(raw), &parsed) != nil {
		return map[string]string{}
	}
	return parsed
}

func sectionTitle(key string) string {
	runes := []rune(key)
	out := make([]rune, 0, len(runes))
	capitalizeNext := true
	for _, r := range runes {
		if r == '_' {
			out = append(out, ' ')
			capitalizeNext = true
			continue
		}
		if capitalizeNext {
			out = append(out, toUpper(r))
			capitalizeNext = false
			continue
		}
		out = append(out, r)
	}
	return string(out)
}

func toUpper(r rune) rune {
	if r >= 'a' && r <= 'z' {
		return r - 32
	}
	return r
}

func joinKeys(keys []string) string {
	out := ""
	for i, k := range keys {
		if i > 0 {
			out += ", "
		}
		out += k
	}
	return out
}
