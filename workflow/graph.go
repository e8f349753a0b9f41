package workflow

import (
	"context"
	"errors"
	"time"

	"github.com/proposalforge/rfpflow/graph"
	"github.com/proposalforge/rfpflow/graph/emit"
	"github.com/proposalforge/rfpflow/graph/store"
	"github.com/proposalforge/rfpflow/knowledgegraph"
	"github.com/proposalforge/rfpflow/llm"
	"github.com/proposalforge/rfpflow/retriever"
)

// analyzerRetryPolicy retries the one node whose failure halts the whole run
// (AnalyzerNode, spec §4.1) when the gateway call failed for a reason that
// might clear on its own: an upstream hiccup or a breaker that was open and
// may have since recovered. Every other node swallows its own gateway
// errors and falls back, so a NodePolicy retry on them would never fire.
var analyzerRetryPolicy = graph.NodePolicy{
	RetryPolicy: &graph.RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    5 * time.Second,
		Retryable: func(err error) bool {
			var gwErr *llm.Error
			if !errors.As(err, &gwErr) {
				return false
			}
			return gwErr.Kind == llm.KindTransientUpstream || gwErr.Kind == llm.KindCircuitOpen
		},
	},
}

// endNode is the graph's sole terminal node, reached from "critic" once
// ShouldContinueRefinement returns false.
type endNode struct{}

func (endNode) Run(ctx context.Context, state State) graph.NodeResult[State] {
	return graph.NodeResult[State]{Route: graph.Stop()}
}

// GraphDeps collects every collaborator the agent nodes need. Fields left
// nil disable the corresponding optional behavior (e.g. a nil KnowledgeGraph
// makes case_study_matcher fall back to retriever-only matching).
type GraphDeps struct {
	Gateway          *llm.Gateway
	Retriever        *retriever.Retriever
	KnowledgeGraph   *knowledgegraph.Graph
	Extractor        knowledgegraph.Extractor
	Bus              *emit.Bus

	UseLongContext           bool
	RequireOutlineApproval   bool
	EnableCompetitorAnalysis bool
	MaxRefinementIterations  int
	NodeTimeoutSeconds       int
}

// BuildGraph wires the canonical graph shape from spec §4.1:
//
//	entry → analyzer
//	analyzer ─[if challenges enabled]→ challenge_extractor
//	        └[else]→ proposal_builder
//	challenge_extractor ─┬→ discovery_question   ┐
//	                     ├→ value_proposition    ├→ outline_generator
//	                     ├→ case_study_matcher   │
//	                     └→ competitor_analyzer  ┘
//	outline_generator → human_approval → proposal_builder → critic
//	critic ─[score ≥ 0.9 or iter ≥ max or no draft]→ end
//	       └[else]→ refine → critic   (cycle)
func BuildGraph(deps GraphDeps, st store.Store[State], emitter emit.Emitter) (*graph.Engine[State], error) {
	if deps.MaxRefinementIterations <= 0 {
		deps.MaxRefinementIterations = 3
	}
	nodeTimeout := 120 * time.Second
	if deps.NodeTimeoutSeconds > 0 {
		nodeTimeout = time.Duration(deps.NodeTimeoutSeconds) * time.Second
	}

	engine, err := graph.New[State](Reduce, st, emitter, graph.WithDefaultNodeTimeout(nodeTimeout))
	if err != nil {
		return nil, err
	}

	engine.Add("analyzer", &AnalyzerNode{Gateway: deps.Gateway, Retriever: deps.Retriever, UseLongContext: deps.UseLongContext}, analyzerRetryPolicy)
	engine.Add("challenge_extractor", &ChallengeExtractorNode{Gateway: deps.Gateway})
	engine.Add("discovery_question", &DiscoveryQuestionNode{Gateway: deps.Gateway})
	engine.Add("value_proposition", &ValuePropositionNode{Gateway: deps.Gateway})
	engine.Add("case_study_matcher", &CaseStudyMatcherNode{Graph: deps.KnowledgeGraph, Extractor: deps.Extractor, Retriever: deps.Retriever})
	engine.Add("competitor_analyzer", &CompetitorAnalyzerNode{Gateway: deps.Gateway, Enabled: deps.EnableCompetitorAnalysis})
	engine.Add("outline_generator", &OutlineGeneratorNode{Gateway: deps.Gateway, Bus: deps.Bus})
	engine.Add("human_approval", &HumanApprovalNode{RequireApproval: deps.RequireOutlineApproval})
	engine.Add("proposal_builder", &ProposalBuilderNode{Gateway: deps.Gateway})
	engine.Add("critic", &CriticNode{Gateway: deps.Gateway, MaxIterations: deps.MaxRefinementIterations})
	engine.Add("refine", &RefineNode{Gateway: deps.Gateway})
	engine.Add("end", endNode{})

	maxIterations := deps.MaxRefinementIterations
	engine.Connect("critic", "refine", func(s State) bool { return ShouldContinueRefinement(s, maxIterations) })
	engine.Connect("critic", "end", nil)

	engine.StartAt("analyzer")

	return engine, nil
}

// NewExtractorFromGateway is a convenience wiring helper: most callers just
// want the LLM-backed entity extractor bound to the same gateway as
// everything else.
func NewExtractorFromGateway(gateway *llm.Gateway) knowledgegraph.Extractor {
	return knowledgegraph.NewLLMExtractor(gateway)
}
