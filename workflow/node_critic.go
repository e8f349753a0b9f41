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

// CriticScoreThreshold is the score (after normalization to [0,1]) at or
// above which the refinement loop exits (spec §4.1, §9). It is a package
// variable shared by every run in the process; neither Manager nor Config
// sets it.
var CriticScoreThreshold = 0.9

// CriticNode reviews the draft on clarity, completeness, relevance, and
// professionalism, returning a normalized score plus weak sections and
// suggestions (spec §4.3). On failure it yields a fixed 0.5 score and an
// empty report, per §4.1's failure semantics, so the refinement-loop guard
// can still fire.
type CriticNode struct {
	Gateway *llm.Gateway

	// MaxIterations mirrors the cap BuildGraph passes to
	// ShouldContinueRefinement for the "critic"→"refine"/"end" edges. Left
	// at zero, the max-iterations warning below never fires.
	MaxIterations int
}

type criticJSON struct {
	Score           float64  `json:"score"`
	Clarity         float64  `json:"clarity"`
	Completeness    float64  `json:"completeness"`
	Relevance       float64  `json:"relevance"`
	Professionalism float64  `json:"professionalism"`
	WeakSections    []string `json:"weak_sections"`
	Suggestions     []string `json:"suggestions"`
}

const criticPrompt = `Review this proposal draft on clarity, completeness, relevance, and professionalism. Score each 0-100 and give an overall score 0-100. Identify weak sections by key and give improvement suggestions. Respond with a JSON object with keys "score", "clarity", "completeness", "relevance", "professionalism" (all 0-100 numbers), "weak_sections" (array of section keys), and "suggestions" (array of strings). Return ONLY the JSON object.

Draft sections: %s`

func (n *CriticNode) Run(ctx context.Context, state State) graph.NodeResult[State] {
	if len(state.ProposalDraft) == 0 {
		return graph.NodeResult[State]{
			Delta: State{ExecutionLog: []LogEntry{{Step: "critic", Status: LogSkipped, At: time.Now()}}},
			Route: graph.Stop(),
		}
	}

	result, err := n.Gateway.Complete(ctx, llm.CompletionRequest{
		Task:        llm.TaskHighQuality,
		Messages:    []model.Message{{Role: "user", Content: fmt.Sprintf(criticPrompt, summarizeDraft(state.ProposalDraft))}},
		Temperature: 0,
	})

	var report CriticReport
	if err != nil {
		report = CriticReport{Score: 0.5}
	} else {
		report = parseCriticReport(result.Text)
	}

	executionLog := []LogEntry{{Step: "critic", Status: LogSuccess, At: time.Now()}}
	if n.MaxIterations > 0 && state.RefinementIterations >= n.MaxIterations && report.Score < CriticScoreThreshold {
		executionLog = append(executionLog, LogEntry{
			Step: "critic", Status: LogWarning, Detail: "max iterations reached", At: time.Now(),
		})
	}

	delta := State{
		CurrentStep:         "critic",
		CriticScore:         report.Score,
		RefinementFeedback:  report,
		CriticScoresHistory: []CriticReport{report},
		ExecutionLog:        executionLog,
	}

	// Route is left as the zero Next{}: the graph's conditional edges from
	// "critic" (registered in BuildGraph using ShouldContinueRefinement)
	// decide whether this continues to "refine" or "end".
	return graph.NodeResult[State]{Delta: delta}
}

func summarizeDraft(draft map[string]string) string {
	out := ""
	for _, key := range CanonicalSectionKeys {
		out += fmt.Sprintf("[%s]\n%s\n\n", key, draft[key])
	}
	return out
}

func parseCriticReport(text string) CriticReport {
	raw := extractJSONObject(text)
	var parsed criticJSON
	if raw == "" || json.Unmarshal([]byte(raw), &parsed) != nil {
		return CriticReport{Score: 0.5}
	}
	return CriticReport{
		Score:           clamp01(parsed.Score / 100),
		Clarity:         clamp01(parsed.Clarity / 100),
		Completeness:    clamp01(parsed.Completeness / 100),
		Relevance:       clamp01(parsed.Relevance / 100),
		Professionalism: clamp01(parsed.Professionalism / 100),
		WeakSections:    parsed.WeakSections,
		Suggestions:     parsed.Suggestions,
	}
}

func clamp01(v float64) float64 {
	if v <= 0 {
		return 0.01
	}
	if v > 1 {
		return 1
	}
	return v
}

// ShouldContinueRefinement implements the should_continue_refinement edge
// guard from spec §4.1 exactly: end if the draft is absent, the score meets
// the threshold, or the iteration cap is reached; otherwise refine.
func ShouldContinueRefinement(state State, maxIterations int) bool {
	if len(state.ProposalDraft) == 0 {
		return false
	}
	if state.CriticScore >= CriticScoreThreshold {
		return false
	}
	if state.RefinementIterations >= maxIterations {
		return false
	}
	return true
}
