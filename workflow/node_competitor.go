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

// CompetitorAnalyzerNode scans the RFP text for a closed list of competitor
// keywords and generates a battle card per detected competitor via LLM.
// Optional: skipped entirely when enable_competitor_analysis is off (spec
// §4.3, §6.4).
type CompetitorAnalyzerNode struct {
	Gateway    *llm.Gateway
	Enabled    bool
	Competitors []string // closed keyword list, case-insensitive substring match
}

// DefaultCompetitorKeywords is the built-in closed list used when none is
// configured.
var DefaultCompetitorKeywords = []string{
	"salesforce", "microsoft dynamics", "sap", "oracle", "servicenow",
	"workday", "hubspot", "zendesk", "pegasystems", "adobe",
}

type battleCardJSON struct {
	Weaknesses      []string `json:"weaknesses"`
	Gaps            []string `json:"gaps"`
	Recommendations []string `json:"recommendations"`
}

const battleCardPrompt = `A competing vendor named "%s" was mentioned in an RFP for a project with this summary: %s

Write a battle card against this competitor. Respond with a JSON object with keys "weaknesses", "gaps", and "recommendations", each an array of short strings. Return ONLY the JSON object.`

func (n *CompetitorAnalyzerNode) Run(ctx context.Context, state State) graph.NodeResult[State] {
	if !n.Enabled {
		return graph.NodeResult[State]{Delta: State{
			ExecutionLog: []LogEntry{{Step: "competitor_analyzer", Status: LogSkipped, At: time.Now()}},
		}}
	}

	keywords := n.Competitors
	if len(keywords) == 0 {
		keywords = DefaultCompetitorKeywords
	}

	detected := detectCompetitors(state.RFPText, keywords)

	var competitors []string
	var cards []BattleCard
	for _, competitor := range detected {
		competitors = append(competitors, competitor)

		result, err := n.Gateway.Complete(ctx, llm.CompletionRequest{
			Task:        llm.TaskAnalysis,
			Messages:    []model.Message{{Role: "user", Content: fmt.Sprintf(battleCardPrompt, competitor, state.RFPSummary)}},
			Temperature: 0,
		})
		if err != nil {
			continue
		}
		cards = append(cards, parseBattleCard(competitor, result.Text))
	}

	delta := State{
		Competitors: competitors,
		BattleCards: cards,
		ExecutionLog: []LogEntry{{
			Step: "competitor_analyzer", Status: LogSuccess, At: time.Now(),
		}},
	}
	return graph.NodeResult[State]{Delta: delta}
}

func detectCompetitors(text string, keywords []string) []string {
	lower := strings.ToLower(text)
	var found []string
	for _, k := range keywords {
		if strings.Contains(lower, strings.ToLower(k)) {
			found = append(found, k)
		}
	}
	return found
}

func parseBattleCard(competitor, text string) BattleCard {
	raw := extractJSONObject(text)
	var parsed battleCardJSON
	if raw == "" || json.Unmarshal([]byte(raw), &parsed) != nil {
		return BattleCard{Competitor: competitor}
	}
	return BattleCard{
		Competitor:      competitor,
		Weaknesses:      parsed.Weaknesses,
		Gaps:            parsed.Gaps,
		Recommendations: parsed.Recommendations,
	}
}
