package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/proposalforge/rfpflow/docproc"
	"github.com/proposalforge/rfpflow/graph"
	"github.com/proposalforge/rfpflow/graph/model"
	"github.com/proposalforge/rfpflow/llm"
	"github.com/proposalforge/rfpflow/retriever"
)

// AnalyzerNode reads rfp_text and produces the summary/overview/objectives/
// scope quartet every downstream node depends on (spec §4.3). It is the one
// critical node: its own failure halts the run (spec §4.1 failure
// semantics), so it does not swallow its own errors.
type AnalyzerNode struct {
	Gateway        *llm.Gateway
	Retriever      *retriever.Retriever
	UseLongContext bool
}

type analyzerOutput struct {
	Summary            string   `json:"summary"`
	ContextOverview    string   `json:"context_overview"`
	ProjectScope       string   `json:"project_scope"`
	BusinessObjectives []string `json:"business_objectives"`
}

const analyzerPrompt = `You are analyzing an RFP (request for proposal) document. Read the text below and respond with a JSON object containing exactly these keys: "summary" (2-3 sentence overview), "context_overview" (the client's situation and motivation), "project_scope" (what is being requested), and "business_objectives" (an array of 3-6 short strings). Return ONLY the JSON object.

%s`

func (n *AnalyzerNode) Run(ctx context.Context, state State) graph.NodeResult[State] {
	window := docproc.AnalyzerWindow(state.RFPText, n.UseLongContext)

	if docproc.NeedsRetrievalSupplement(state.RFPText, n.UseLongContext) && n.Retriever != nil {
		results, err := n.Retriever.Query(ctx, "What is this project about?", retriever.QueryOptions{
			TopK: 5, ProjectID: state.ProjectID,
		})
		if err == nil && len(results) > 0 {
			var supplement strings.Builder
			for _, r := range results {
				supplement.WriteString(r.Text)
				supplement.WriteString("\n")
			}
			window = window + "\n\n--- additional retrieved context ---\n" + supplement.String()
		}
	}

	result, err := n.Gateway.Complete(ctx, llm.CompletionRequest{
		Task:        llm.TaskAnalysis,
		Messages:    []model.Message{{Role: "user", Content: fmt.Sprintf(analyzerPrompt, window)}},
		Temperature: 0,
	})
	if err != nil {
		return graph.NodeResult[State]{Err: fmt.Errorf("analyzer: %w", err)}
	}

	out := parseAnalyzerOutput(result.Text)

	delta := State{
		CurrentStep:        "analyzer",
		RFPSummary:         out.Summary,
		ContextOverview:    out.ContextOverview,
		ProjectScope:       out.ProjectScope,
		BusinessObjectives: out.BusinessObjectives,
		ExecutionLog: []LogEntry{{
			Step: "analyzer", Status: LogSuccess, At: time.Now(),
		}},
	}

	if state.ChallengesEnabled() {
		return graph.NodeResult[State]{Delta: delta, Route: graph.Goto("challenge_extractor")}
	}
	return graph.NodeResult[State]{Delta: delta, Route: graph.Goto("proposal_builder")}
}

func parseAnalyzerOutput(text string) analyzerOutput {
	raw := extractJSONObject(text)
	var out analyzerOutput
	if raw == "" || json.Unmarshal([]byte(raw), &out) != nil {
		return analyzerOutput{
			Summary:            strings.TrimSpace(firstNWords(text, 60)),
			ContextOverview:    "",
			ProjectScope:       "",
			BusinessObjectives: nil,
		}
	}
	return out
}

// extractJSONObject finds the first {...} span in text, tolerating LLM
// responses wrapped in prose or markdown code fences.
func extractJSONObject(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end < start {
		return ""
	}
	return text[start : end+1]
}

func firstNWords(text string, n int) string {
	words := strings.Fields(text)
	if len(words) > n {
		words = words[:n]
	}
	return strings.Join(words, " ")
}
