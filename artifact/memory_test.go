package artifact

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/proposalforge/rfpflow/workflow"
)

func TestMemoryStore_InsightsRoundTrip(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_, err := s.GetInsights(ctx, "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	want := Insights{ProjectID: "p1", RFPSummary: "summary"}
	if err := s.UpsertInsights(ctx, want); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := s.GetInsights(ctx, "p1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.RFPSummary != "summary" {
		t.Errorf("expected summary to round-trip, got %+v", got)
	}
}

func TestMemoryStore_ProposalPreservesCreatedAt(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	created := time.Now().Add(-time.Hour)

	if err := s.UpsertProposal(ctx, Proposal{ProjectID: "p1", UpdatedAt: created}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	later := time.Now()
	if err := s.UpsertProposal(ctx, Proposal{ProjectID: "p1", UpdatedAt: later}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := s.GetProposal(ctx, "p1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.CreatedAt.Equal(created) {
		t.Errorf("expected CreatedAt to be preserved across updates, got %v want %v", got.CreatedAt, created)
	}
	if !got.UpdatedAt.Equal(later) {
		t.Errorf("expected UpdatedAt to reflect latest upsert, got %v", got.UpdatedAt)
	}
}

func TestMemoryStore_ProjectArtifactsRoundTrip(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	want := ProjectArtifacts{ProjectID: "p1", BattleCards: []workflow.BattleCard{{Competitor: "Acme"}}}
	if err := s.UpsertProjectArtifacts(ctx, want); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := s.GetProjectArtifacts(ctx, "p1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got.BattleCards) != 1 || got.BattleCards[0].Competitor != "Acme" {
		t.Errorf("expected battle cards to round-trip, got %+v", got)
	}
}

func TestFromState_NoProposalWhenDraftEmpty(t *testing.T) {
	state := workflow.State{ProjectID: "p1", RFPSummary: "summary"}
	insights, proposal, artifacts := FromState(state, time.Now())

	if insights.ProjectID != "p1" || insights.RFPSummary != "summary" {
		t.Errorf("unexpected insights: %+v", insights)
	}
	if proposal != nil {
		t.Errorf("expected nil proposal when ProposalDraft is empty, got %+v", proposal)
	}
	if artifacts.ProjectID != "p1" {
		t.Errorf("unexpected artifacts: %+v", artifacts)
	}
}

func TestFromState_BuildsProposalFromDraft(t *testing.T) {
	state := workflow.State{
		ProjectID:     "p1",
		ProposalDraft: map[string]string{workflow.CanonicalSectionKeys[0]: "draft text"},
	}
	_, proposal, _ := FromState(state, time.Now())

	if proposal == nil {
		t.Fatal("expected a non-nil proposal when ProposalDraft is non-empty")
	}
	if proposal.Sections[workflow.CanonicalSectionKeys[0]] != "draft text" {
		t.Errorf("expected section text to carry over, got %+v", proposal.Sections)
	}
	if len(proposal.Sections) != len(workflow.CanonicalSectionKeys) {
		t.Errorf("expected every canonical section key to be present, got %d of %d", len(proposal.Sections), len(workflow.CanonicalSectionKeys))
	}
}
