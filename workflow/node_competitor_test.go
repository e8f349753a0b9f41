package workflow

import (
	"context"
	"testing"

	"github.com/proposalforge/rfpflow/graph/model"
)

func TestCompetitorAnalyzerNode_DisabledSkips(t *testing.T) {
	n := &CompetitorAnalyzerNode{Enabled: false}
	result := n.Run(context.Background(), State{RFPText: "we currently use Salesforce"})

	if result.Delta.ExecutionLog[0].Status != LogSkipped {
		t.Errorf("expected a skipped log entry when disabled, got %+v", result.Delta.ExecutionLog)
	}
	if result.Delta.Competitors != nil {
		t.Errorf("expected no competitors detected when disabled, got %+v", result.Delta.Competitors)
	}
}

func TestCompetitorAnalyzerNode_DetectsKeywordAndBuildsBattleCard(t *testing.T) {
	mock := &model.MockChatModel{Responses: []model.ChatOut{{
		Text: `{"weaknesses": ["costly"], "gaps": ["no local support"], "recommendations": ["emphasize pricing"]}`,
	}}}
	n := &CompetitorAnalyzerNode{Enabled: true, Gateway: testAnalysisGateway(t, mock)}

	result := n.Run(context.Background(), State{RFPText: "we are evaluating Salesforce for this project", RFPSummary: "crm replacement"})

	if len(result.Delta.Competitors) != 1 || result.Delta.Competitors[0] != "salesforce" {
		t.Errorf("expected salesforce to be detected, got %+v", result.Delta.Competitors)
	}
	if len(result.Delta.BattleCards) != 1 || result.Delta.BattleCards[0].Competitor != "salesforce" {
		t.Errorf("expected a battle card for salesforce, got %+v", result.Delta.BattleCards)
	}
	if result.Delta.BattleCards[0].Weaknesses[0] != "costly" {
		t.Errorf("expected the parsed weakness, got %+v", result.Delta.BattleCards[0].Weaknesses)
	}
}

func TestCompetitorAnalyzerNode_NoKeywordsFoundProducesNoCards(t *testing.T) {
	n := &CompetitorAnalyzerNode{Enabled: true, Gateway: testAnalysisGateway(t, &model.MockChatModel{})}

	result := n.Run(context.Background(), State{RFPText: "a generic project with no vendor mentions"})

	if len(result.Delta.Competitors) != 0 {
		t.Errorf("expected no competitors detected, got %+v", result.Delta.Competitors)
	}
}

func TestCompetitorAnalyzerNode_CustomKeywordList(t *testing.T) {
	mock := &model.MockChatModel{Responses: []model.ChatOut{{Text: `{}`}}}
	n := &CompetitorAnalyzerNode{Enabled: true, Gateway: testAnalysisGateway(t, mock), Competitors: []string{"acme corp"}}

	result := n.Run(context.Background(), State{RFPText: "currently using Acme Corp software"})

	if len(result.Delta.Competitors) != 1 || result.Delta.Competitors[0] != "acme corp" {
		t.Errorf("expected the custom keyword to be matched case-insensitively, got %+v", result.Delta.Competitors)
	}
}

func TestCompetitorAnalyzerNode_BattleCardGatewayFailureSkipsCard(t *testing.T) {
	n := &CompetitorAnalyzerNode{Enabled: true, Gateway: testAnalysisGateway(t, &model.MockChatModel{Err: errFake("down")})}

	result := n.Run(context.Background(), State{RFPText: "we use SAP today"})

	if len(result.Delta.Competitors) != 1 {
		t.Errorf("expected the competitor to still be detected, got %+v", result.Delta.Competitors)
	}
	if len(result.Delta.BattleCards) != 0 {
		t.Errorf("expected no battle card when generation fails, got %+v", result.Delta.BattleCards)
	}
}
