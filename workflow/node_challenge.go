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

// ChallengeExtractorNode produces up to ~12 challenges from the analyzer's
// summary and objectives, then fans out to the four parallel nodes that
// consume them (spec §4.1's canonical graph shape).
type ChallengeExtractorNode struct {
	Gateway *llm.Gateway

	// JoinNodes are the node IDs the fan-out routes to; defaults to the
	// spec's four names if unset, overridable for tests.
	JoinNodes []string
}

const maxChallenges = 12

type challengeJSON struct {
	Text     string `json:"text"`
	Type     string `json:"type"`
	Impact   string `json:"impact"`
	Category string `json:"category"`
}

const challengePrompt = `Given this project summary and business objectives, list up to 12 distinct challenges or pain points this RFP implies. Respond with a JSON array of objects, each with "text", "type" (operational/technical/financial/strategic), "impact" (low/medium/high), and "category". Return ONLY the JSON array.

Summary: %s
Objectives: %s`

func (n *ChallengeExtractorNode) Run(ctx context.Context, state State) graph.NodeResult[State] {
	objectives := strings.Join(state.BusinessObjectives, "; ")
	result, err := n.Gateway.Complete(ctx, llm.CompletionRequest{
		Task:        llm.TaskComplexReasoning,
		Messages:    []model.Message{{Role: "user", Content: fmt.Sprintf(challengePrompt, state.RFPSummary, objectives)}},
		Temperature: 0,
	})

	var challenges []Challenge
	logStatus := LogSuccess
	if err != nil {
		logStatus = LogWarning
	} else {
		challenges = parseChallenges(result.Text)
	}

	delta := State{
		CurrentStep: "challenge_extractor",
		Challenges:  challenges,
		ExecutionLog: []LogEntry{{
			Step: "challenge_extractor", Status: logStatus, At: time.Now(),
		}},
	}

	joinNodes := n.JoinNodes
	if len(joinNodes) == 0 {
		joinNodes = []string{"discovery_question", "value_proposition", "case_study_matcher", "competitor_analyzer"}
	}

	return graph.NodeResult[State]{Delta: delta, Route: graph.Fork("outline_generator", joinNodes...)}
}

func parseChallenges(text string) []Challenge {
	raw := extractJSONArray(text)
	var parsed []challengeJSON
	if raw == "" || json.Unmarshal([]byte(raw), &parsed) != nil {
		return nil
	}
	if len(parsed) > maxChallenges {
		parsed = parsed[:maxChallenges]
	}
	out := make([]Challenge, len(parsed))
	for i, c := range parsed {
		out[i] = Challenge{Text: c.Text, Type: c.Type, Impact: c.Impact, Category: c.Category}
	}
	return out
}

// extractJSONArray finds the first [...] span in text.
func extractJSONArray(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")

	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start == -1 || end == -1 || end < start {
		return ""
	}
	return text[start : end+1]
}
