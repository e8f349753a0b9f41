// Package workflow implements the RFP-to-proposal agent graph: the shared
// State record, its reducer, the agent nodes, and the Manager that owns
// runs end to end.
package workflow

import "time"

// Challenge is one extracted pain point from the RFP text.
type Challenge struct {
	Text     string
	Type     string
	Impact   string
	Category string
}

// CaseStudyMatch is a case study ranked against the current RFP's challenges.
type CaseStudyMatch struct {
	ID          string
	Title       string
	Industry    string
	Impact      string
	Description string
	Score       float64
	Source      string // "graph", "rag", or "db"
}

// BattleCard summarizes one detected competitor.
type BattleCard struct {
	Competitor      string
	Weaknesses      []string
	Gaps            []string
	Recommendations []string
}

// OutlineSection is one entry in the proposal outline skeleton.
type OutlineSection struct {
	Key         string
	Title       string
	Description string
	Order       int
}

// CriticReport is one critic pass over the draft.
type CriticReport struct {
	Score           float64 // normalized to [0,1]
	Clarity         float64
	Completeness    float64
	Relevance       float64
	Professionalism float64
	WeakSections    []string
	Suggestions     []string
}

// LogStatus is the outcome recorded for one execution_log entry.
type LogStatus string

// The statuses an execution_log entry can carry.
const (
	LogSuccess   LogStatus = "success"
	LogWarning   LogStatus = "warning"
	LogError     LogStatus = "error"
	LogPending   LogStatus = "pending"
	LogSkipped   LogStatus = "skipped"
	LogCancelled LogStatus = "cancelled"
)

// LogEntry is one append-only execution_log record.
type LogEntry struct {
	Step   string
	Status LogStatus
	Detail string
	At     time.Time
}

// CanonicalSectionKeys lists the 13 fixed proposal_draft / outline keys, in
// presentation order. Taken from the original proposal_templates.py
// DEFAULT_SECTIONS table.
var CanonicalSectionKeys = []string{
	"executive_summary",
	"understanding_requirements",
	"proposed_solution",
	"technical_approach",
	"implementation_plan",
	"team_expertise",
	"case_studies",
	"pricing",
	"timeline",
	"risk_mitigation",
	"support_maintenance",
	"terms_conditions",
	"why_us",
}

// State is the single mutable record threaded through one workflow run.
//
// Nodes never mutate it in place: a node's NodeResult.Delta is itself a
// State value holding only the fields it wants to change, identified by
// Go's zero value for that field's type (nil slice/map, empty string, nil
// pointer) meaning "untouched". Reduce folds a delta into the accumulated
// state using that convention.
type State struct {
	ProjectID     string
	RFPDocumentID string
	RFPText       string

	SelectedTasks map[string]bool
	CurrentStep   string

	RFPSummary      string
	ContextOverview string
	ProjectScope    string

	BusinessObjectives []string
	Challenges         []Challenge
	DiscoveryQuestions map[string][]string
	ValueProps         []string

	MatchingCaseStudies []CaseStudyMatch
	Competitors         []string
	BattleCards         []BattleCard

	ProposalOutline []OutlineSection
	// OutlineApproved is tri-state: nil (unset), pointing at false, or
	// pointing at true. A plain bool cannot represent "never decided".
	OutlineApproved *bool
	ApprovedAt      time.Time

	ProposalDraft map[string]string

	// CriticScore and RefinementIterations are only ever produced by the
	// critic/refine nodes, each of which sets them to a value > 0 whenever
	// it runs (score is clamped to (0,1], iterations start counting at 1),
	// so "replace iff > 0" distinguishes "this patch touched it" from "this
	// patch didn't" without a separate presence flag, matching the
	// TotalFilesReviewed/CurrentBatch counters in the teacher's reducer.
	CriticScore          float64
	RefinementFeedback   CriticReport
	RefinementIterations int
	CriticScoresHistory  []CriticReport

	ExecutionLog []LogEntry
	Errors       []string
	Warnings     []string
}

// NewState builds the initial state for a run. SelectedTasks, DiscoveryQuestions
// and ProposalDraft are initialized to empty, non-nil maps so node code never
// has to special-case a nil map on first read.
func NewState(projectID, rfpDocumentID, rfpText string, selectedTasks map[string]bool) State {
	if selectedTasks == nil {
		selectedTasks = map[string]bool{}
	}
	return State{
		ProjectID:          projectID,
		RFPDocumentID:      rfpDocumentID,
		RFPText:            rfpText,
		SelectedTasks:      selectedTasks,
		DiscoveryQuestions: map[string][]string{},
		ProposalDraft:      map[string]string{},
	}
}

// ChallengesEnabled implements the challenges_selected edge guard: true iff
// SelectedTasks["challenges"] is not explicitly false.
func (s State) ChallengesEnabled() bool {
	enabled, set := s.SelectedTasks["challenges"]
	return !set || enabled
}

// CompetitorAnalysisEnabled implements the enable_competitor_analysis gate.
func (s State) CompetitorAnalysisEnabled() bool {
	enabled, set := s.SelectedTasks["competitor_analysis"]
	return !set || enabled
}
