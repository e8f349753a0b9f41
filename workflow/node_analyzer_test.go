package workflow

import (
	"context"
	"testing"

	"github.com/proposalforge/rfpflow/graph/model"
	"github.com/proposalforge/rfpflow/llm"
)

func testAnalysisGateway(t *testing.T, mock model.ChatModel) *llm.Gateway {
	t.Helper()
	router := llm.NewRouter(map[llm.TaskType]llm.Route{
		llm.TaskAnalysis: {Provider: "openai", Model: "gpt-4o-mini"},
	}, llm.Route{Provider: "openai", Model: "gpt-4o-mini"})
	return llm.NewGateway(router, map[string]model.ChatModel{"openai": mock}, llm.DefaultBreakerConfig())
}

func TestAnalyzerNode_ParsesSummaryAndRoutesToChallengeExtractor(t *testing.T) {
	mock := &model.MockChatModel{Responses: []model.ChatOut{{
		Text: `{"summary": "A CRM migration.", "context_overview": "Legacy system is failing.", "project_scope": "Replace CRM.", "business_objectives": ["reduce churn", "cut costs"]}`,
	}}}
	n := &AnalyzerNode{Gateway: testAnalysisGateway(t, mock)}

	result := n.Run(context.Background(), State{RFPText: "some rfp text", SelectedTasks: map[string]bool{"challenges": true}})

	if result.Delta.RFPSummary != "A CRM migration." {
		t.Errorf("expected the parsed summary, got %q", result.Delta.RFPSummary)
	}
	if len(result.Delta.BusinessObjectives) != 2 {
		t.Errorf("expected 2 business objectives, got %+v", result.Delta.BusinessObjectives)
	}
	if result.Route.To != "challenge_extractor" {
		t.Errorf("expected to route to challenge_extractor when challenges are enabled, got %+v", result.Route)
	}
}

func TestAnalyzerNode_SkipsChallengeExtractorWhenDisabled(t *testing.T) {
	mock := &model.MockChatModel{Responses: []model.ChatOut{{Text: `{"summary": "s"}`}}}
	n := &AnalyzerNode{Gateway: testAnalysisGateway(t, mock)}

	result := n.Run(context.Background(), State{RFPText: "text", SelectedTasks: map[string]bool{"challenges": false}})

	if result.Route.To != "proposal_builder" {
		t.Errorf("expected to skip straight to proposal_builder, got %+v", result.Route)
	}
}

func TestAnalyzerNode_GatewayErrorPropagatesAsNodeErr(t *testing.T) {
	mock := &model.MockChatModel{Err: errFake("provider unavailable")}
	n := &AnalyzerNode{Gateway: testAnalysisGateway(t, mock)}

	result := n.Run(context.Background(), State{RFPText: "text"})

	if result.Err == nil {
		t.Fatal("expected the analyzer's own Gateway failure to surface as NodeResult.Err, since it is a critical node")
	}
}

func TestAnalyzerNode_UnparseableJSONFallsBackToTruncatedSummary(t *testing.T) {
	mock := &model.MockChatModel{Responses: []model.ChatOut{{Text: "not json at all, just prose describing the project briefly"}}}
	n := &AnalyzerNode{Gateway: testAnalysisGateway(t, mock)}

	result := n.Run(context.Background(), State{RFPText: "text"})

	if result.Delta.RFPSummary == "" {
		t.Error("expected a non-empty fallback summary built from the raw text")
	}
}

func TestExtractJSONObject_StripsCodeFence(t *testing.T) {
	got := extractJSONObject("```json\n{\"a\": 1}\n```")
	if got != "{\"a\": 1}" {
		t.Errorf("expected the code fence stripped, got %q", got)
	}
}

func TestExtractJSONObject_NoBracesReturnsEmpty(t *testing.T) {
	if got := extractJSONObject("no json here"); got != "" {
		t.Errorf("expected empty string when no braces are present, got %q", got)
	}
}
