package workflow

import (
	"context"
	"testing"

	"github.com/proposalforge/rfpflow/graph/model"
	"github.com/proposalforge/rfpflow/llm"
)

func testComplexReasoningGateway(t *testing.T, mock model.ChatModel) *llm.Gateway {
	t.Helper()
	router := llm.NewRouter(map[llm.TaskType]llm.Route{
		llm.TaskComplexReasoning: {Provider: "anthropic", Model: "claude-3-5-sonnet-20241022"},
	}, llm.Route{Provider: "anthropic", Model: "claude-3-5-sonnet-20241022"})
	return llm.NewGateway(router, map[string]model.ChatModel{"anthropic": mock}, llm.DefaultBreakerConfig())
}

func TestChallengeExtractorNode_ParsesAndForksToJoinNodes(t *testing.T) {
	mock := &model.MockChatModel{Responses: []model.ChatOut{{
		Text: `[{"text": "legacy data migration", "type": "technical", "impact": "high", "category": "data"}]`,
	}}}
	n := &ChallengeExtractorNode{Gateway: testComplexReasoningGateway(t, mock)}

	result := n.Run(context.Background(), State{RFPSummary: "summary", BusinessObjectives: []string{"cut costs"}})

	if len(result.Delta.Challenges) != 1 || result.Delta.Challenges[0].Text != "legacy data migration" {
		t.Errorf("expected one parsed challenge, got %+v", result.Delta.Challenges)
	}
	if result.Route.JoinTo != "outline_generator" {
		t.Errorf("expected a fork joining at outline_generator, got %+v", result.Route)
	}
	if len(result.Route.Many) != 4 {
		t.Errorf("expected the default 4-way fan-out, got %+v", result.Route.Many)
	}
}

func TestChallengeExtractorNode_CapsAtMaxChallenges(t *testing.T) {
	var items string
	for i := 0; i < 20; i++ {
		if i > 0 {
			items += ","
		}
		items += `{"text": "c", "type": "technical", "impact": "low", "category": "x"}`
	}
	mock := &model.MockChatModel{Responses: []model.ChatOut{{Text: "[" + items + "]"}}}
	n := &ChallengeExtractorNode{Gateway: testComplexReasoningGateway(t, mock)}

	result := n.Run(context.Background(), State{})

	if len(result.Delta.Challenges) != maxChallenges {
		t.Errorf("expected challenges capped at %d, got %d", maxChallenges, len(result.Delta.Challenges))
	}
}

func TestChallengeExtractorNode_GatewayErrorLogsWarningNotChallenges(t *testing.T) {
	mock := &model.MockChatModel{Err: errFake("timeout")}
	n := &ChallengeExtractorNode{Gateway: testComplexReasoningGateway(t, mock)}

	result := n.Run(context.Background(), State{})

	if result.Delta.Challenges != nil {
		t.Errorf("expected no challenges on gateway failure, got %+v", result.Delta.Challenges)
	}
	if result.Delta.ExecutionLog[0].Status != LogWarning {
		t.Errorf("expected a warning log entry, got %+v", result.Delta.ExecutionLog)
	}
}

func TestChallengeExtractorNode_CustomJoinNodes(t *testing.T) {
	mock := &model.MockChatModel{Responses: []model.ChatOut{{Text: "[]"}}}
	n := &ChallengeExtractorNode{Gateway: testComplexReasoningGateway(t, mock), JoinNodes: []string{"only_one"}}

	result := n.Run(context.Background(), State{})

	if len(result.Route.Many) != 1 || result.Route.Many[0] != "only_one" {
		t.Errorf("expected the custom join nodes to be honored, got %+v", result.Route.Many)
	}
}
