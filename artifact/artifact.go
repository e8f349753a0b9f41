// Package artifact persists the durable records a finished (or in-flight)
// workflow run produces: one Insights record per project, one Proposal
// record with the 13 canonical sections, and battle cards/outline attached
// to the Project (spec §6.3).
package artifact

import (
	"context"
	"time"

	"github.com/proposalforge/rfpflow/workflow"
)

// Insights is the analyzer/challenge/proposition/case-study/competitor
// output for one project, persisted as it is produced.
type Insights struct {
	ProjectID           string
	RFPSummary          string
	ContextOverview     string
	ProjectScope        string
	BusinessObjectives  []string
	Challenges          []workflow.Challenge
	DiscoveryQuestions  map[string][]string
	ValueProps          []string
	MatchingCaseStudies []workflow.CaseStudyMatch
	Competitors         []string
	BattleCards         []workflow.BattleCard
	UpdatedAt           time.Time
}

// Proposal is the canonical 13-section draft for one project.
type Proposal struct {
	ProjectID string
	Sections  map[string]string // keyed by workflow.CanonicalSectionKeys
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ProjectArtifacts bundles the outline and battle cards attached directly to
// the Project record, per spec §6.3's "battle cards/outline on Project"
// layout.
type ProjectArtifacts struct {
	ProjectID       string
	ProposalOutline []workflow.OutlineSection
	BattleCards     []workflow.BattleCard
}

// Store persists and retrieves the artifacts a workflow run produces.
type Store interface {
	UpsertInsights(ctx context.Context, insights Insights) error
	GetInsights(ctx context.Context, projectID string) (Insights, error)

	UpsertProposal(ctx context.Context, proposal Proposal) error
	GetProposal(ctx context.Context, projectID string) (Proposal, error)

	UpsertProjectArtifacts(ctx context.Context, artifacts ProjectArtifacts) error
	GetProjectArtifacts(ctx context.Context, projectID string) (ProjectArtifacts, error)
}

// ErrNotFound is returned by Get* when no record exists for the project.
var ErrNotFound = notFoundError{}

type notFoundError struct{}

func (notFoundError) Error() string { return "artifact: not found" }

// FromState builds the Insights, Proposal, and ProjectArtifacts records a
// finished run's state should persist, per Manager.persist (spec §4.2).
// Proposal is built whenever the state's ProposalDraft has at least one
// entry; a canonical section key missing from the draft is stored as "".
func FromState(s workflow.State, now time.Time) (Insights, *Proposal, ProjectArtifacts) {
	insights := Insights{
		ProjectID:           s.ProjectID,
		RFPSummary:          s.RFPSummary,
		ContextOverview:     s.ContextOverview,
		ProjectScope:        s.ProjectScope,
		BusinessObjectives:  s.BusinessObjectives,
		Challenges:          s.Challenges,
		DiscoveryQuestions:  s.DiscoveryQuestions,
		ValueProps:          s.ValueProps,
		MatchingCaseStudies: s.MatchingCaseStudies,
		Competitors:         s.Competitors,
		BattleCards:         s.BattleCards,
		UpdatedAt:           now,
	}

	artifacts := ProjectArtifacts{
		ProjectID:       s.ProjectID,
		ProposalOutline: s.ProposalOutline,
		BattleCards:     s.BattleCards,
	}

	var proposal *Proposal
	if len(s.ProposalDraft) > 0 {
		sections := make(map[string]string, len(workflow.CanonicalSectionKeys))
		for _, key := range workflow.CanonicalSectionKeys {
			sections[key] = s.ProposalDraft[key]
		}
		proposal = &Proposal{ProjectID: s.ProjectID, Sections: sections, UpdatedAt: now}
	}

	return insights, proposal, artifacts
}
