package workflow

import (
	"context"
	"testing"
)

func TestHumanApprovalNode_ApprovalNotRequiredProceeds(t *testing.T) {
	n := &HumanApprovalNode{RequireApproval: false}
	result := n.Run(context.Background(), State{})
	if result.Route.To != "proposal_builder" {
		t.Errorf("expected to route to proposal_builder when approval isn't required, got %+v", result.Route)
	}
}

func TestHumanApprovalNode_RequiredAndNotGrantedPauses(t *testing.T) {
	n := &HumanApprovalNode{RequireApproval: true}
	result := n.Run(context.Background(), State{})
	if !result.Route.Terminal {
		t.Errorf("expected to stop when approval is required but not yet granted, got %+v", result.Route)
	}
	if len(result.Delta.ExecutionLog) != 1 || result.Delta.ExecutionLog[0].Status != LogPending {
		t.Errorf("expected a pending log entry, got %+v", result.Delta.ExecutionLog)
	}
}

func TestHumanApprovalNode_RequiredAndGrantedProceeds(t *testing.T) {
	approved := true
	n := &HumanApprovalNode{RequireApproval: true}
	result := n.Run(context.Background(), State{OutlineApproved: &approved})
	if result.Route.To != "proposal_builder" {
		t.Errorf("expected to route to proposal_builder once approved, got %+v", result.Route)
	}
	if len(result.Delta.ExecutionLog) != 1 || result.Delta.ExecutionLog[0].Status != LogSuccess {
		t.Errorf("expected a success log entry, got %+v", result.Delta.ExecutionLog)
	}
}

func TestHumanApprovalNode_RequiredAndExplicitlyDeniedPauses(t *testing.T) {
	denied := false
	n := &HumanApprovalNode{RequireApproval: true}
	result := n.Run(context.Background(), State{OutlineApproved: &denied})
	if !result.Route.Terminal {
		t.Errorf("expected to stop when approval was explicitly denied, got %+v", result.Route)
	}
}
