package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/proposalforge/rfpflow/graph"
	"github.com/proposalforge/rfpflow/graph/model"
	"github.com/proposalforge/rfpflow/llm"
)

// DiscoveryQuestionNode asks the model for at least 3 discovery questions per
// domain (business/technical/KPI/compliance), per spec §4.3, and keeps the
// questions it returns. A domain left without questions, including every
// domain after a gateway or parse failure, gets one placeholder question; no
// domain is padded up to 3.
type DiscoveryQuestionNode struct {
	Gateway *llm.Gateway
}

var discoveryDomains = []string{"business", "technical", "kpi", "compliance"}

const discoveryPrompt = `Given these challenges extracted from an RFP, write at least 3 discovery questions for each of these domains: business, technical, kpi, compliance. Respond with a JSON object whose keys are the domain names and values are arrays of question strings. Return ONLY the JSON object.

Challenges: %s`

func (n *DiscoveryQuestionNode) Run(ctx context.Context, state State) graph.NodeResult[State] {
	challengeText := challengeTextSummary(state.Challenges)
	result, err := n.Gateway.Complete(ctx, llm.CompletionRequest{
		Task:        llm.TaskDrafting,
		Messages:    []model.Message{{Role: "user", Content: fmt.Sprintf(discoveryPrompt, challengeText)}},
		Temperature: 0,
	})

	questions := map[string][]string{}
	status := LogSuccess
	if err != nil {
		status = LogWarning
	} else {
		questions = parseDiscoveryQuestions(result.Text)
	}

	delta := State{
		DiscoveryQuestions: questions,
		ExecutionLog: []LogEntry{{
			Step: "discovery_question", Status: status, At: time.Now(),
		}},
	}
	return graph.NodeResult[State]{Delta: delta}
}

func parseDiscoveryQuestions(text string) map[string][]string {
	raw := extractJSONObject(text)
	var parsed map[string][]string
	if raw == "" || json.Unmarshal([]byte(raw), &parsed) != nil {
		return ensureMinimumQuestions(nil)
	}
	return ensureMinimumQuestions(parsed)
}

// ensureMinimumQuestions guarantees every domain key is present with at
// least one placeholder entry, so downstream consumers never see a missing
// domain even if the model omitted it.
func ensureMinimumQuestions(parsed map[string][]string) map[string][]string {
	out := make(map[string][]string, len(discoveryDomains))
	for _, domain := range discoveryDomains {
		qs := parsed[domain]
		if len(qs) == 0 {
			qs = []string{fmt.Sprintf("What are the key %s requirements for this project?", domain)}
		}
		out[domain] = qs
	}
	return out
}

func challengeTextSummary(challenges []Challenge) string {
	parts := make([]string, len(challenges))
	for i, c := range challenges {
		parts[i] = fmt.Sprintf("%s (%s/%s)", c.Text, c.Type, c.Impact)
	}
	return strings.Join(parts, "; ")
}
