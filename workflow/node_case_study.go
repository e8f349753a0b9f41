package workflow

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/proposalforge/rfpflow/graph"
	"github.com/proposalforge/rfpflow/knowledgegraph"
	"github.com/proposalforge/rfpflow/retriever"
)

// CaseStudyMatcherNode extracts entities from challenge text, asks the
// knowledge graph for matches (passing Industry to that query), complements
// with retriever semantic search scoped to the state's project, then sorts
// and dedupes by ID (spec §4.3). The retriever search applies no industry
// filter. Each match carries a Source tag naming which path produced it.
type CaseStudyMatcherNode struct {
	Graph      *knowledgegraph.Graph
	Extractor  knowledgegraph.Extractor
	Retriever  *retriever.Retriever
	TopK       int
	Industry   string // optional industry for the knowledge-graph query; BuildGraph leaves it empty
}

func (n *CaseStudyMatcherNode) Run(ctx context.Context, state State) graph.NodeResult[State] {
	topK := n.TopK
	if topK <= 0 {
		topK = 5
	}

	challengeText := challengeTextSummary(state.Challenges)

	var entityNames []string
	if n.Extractor != nil && challengeText != "" {
		entities, err := n.Extractor.Extract(ctx, challengeText)
		if err == nil {
			for _, e := range entities {
				entityNames = append(entityNames, e.Name)
			}
		}
	}

	byID := map[string]CaseStudyMatch{}

	if n.Graph != nil && len(entityNames) > 0 {
		graphMatches := n.Graph.FindMatchingCaseStudies(entityNames, n.Industry, topK)
		for _, m := range graphMatches {
			byID[m.CaseStudy.ID] = CaseStudyMatch{
				ID: m.CaseStudy.ID, Title: m.CaseStudy.Title, Industry: m.CaseStudy.Industry,
				Impact: m.CaseStudy.Impact, Description: m.CaseStudy.Description,
				Score: m.Weight, Source: "graph",
			}
		}
	}

	if n.Retriever != nil && len(byID) < topK {
		filter := retriever.QueryOptions{TopK: topK, ProjectID: state.ProjectID}
		results, err := n.Retriever.Query(ctx, challengeText, filter)
		if err == nil {
			for i, r := range results {
				id := fmt.Sprintf("rag:%d:%s", i, firstNWords(r.Text, 6))
				if _, exists := byID[id]; exists {
					continue
				}
				byID[id] = CaseStudyMatch{
					ID: id, Description: r.Text, Score: r.Score, Source: "rag",
				}
			}
		}
	}

	matches := make([]CaseStudyMatch, 0, len(byID))
	for _, m := range byID {
		matches = append(matches, m)
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if len(matches) > topK {
		matches = matches[:topK]
	}

	delta := State{
		MatchingCaseStudies: matches,
		ExecutionLog: []LogEntry{{
			Step: "case_study_matcher", Status: LogSuccess, At: time.Now(),
		}},
	}
	return graph.NodeResult[State]{Delta: delta}
}
