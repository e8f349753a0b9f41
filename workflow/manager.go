package workflow

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/proposalforge/rfpflow/graph"
	"github.com/proposalforge/rfpflow/graph/emit"
	"github.com/proposalforge/rfpflow/graph/store"
)

// RunStatus is the externally visible state of a workflow run (spec §4.2,
// §6.1). It is distinct from CurrentStep, which names the last node that
// wrote to State: RunStatus interprets CurrentStep against OutlineApproved
// and the run's error to answer "what is the caller supposed to do next".
type RunStatus string

const (
	StatusRunning         RunStatus = "running"
	StatusPendingApproval RunStatus = "pending_approval"
	StatusCompleted       RunStatus = "completed"
	StatusFailed          RunStatus = "failed"
)

// ArtifactPersister is the seam Manager.persist calls through. It is defined
// here rather than depending on package artifact directly, since artifact
// imports workflow for its record types (State, Challenge, ...) and a
// two-way import would cycle; callers wire a concrete artifact.Store behind
// this interface.
type ArtifactPersister interface {
	Persist(ctx context.Context, state State) error
}

// RunRecord is everything Manager tracks for one run beyond the bare State.
type RunRecord struct {
	RunID         string
	ProjectID     string
	RFPDocumentID string
	Status        RunStatus
	State         State
	StartedAt     time.Time
	UpdatedAt     time.Time
}

// Manager owns the lifecycle of workflow runs: starting them, resuming a run
// paused at the human-approval gate, looking up state by run or by project,
// and persisting finished artifacts (spec §4.2, §6.1). One Manager can drive
// many concurrent runs; at most one run may be active per
// (project_id, rfp_document_id) pair at a time (spec §5's single-writer
// rule), enforced here rather than in the graph engine.
type Manager struct {
	engine    *graph.Engine[State]
	store     store.Store[State]
	bus       *emit.Bus
	persister ArtifactPersister

	maxRefinementIterations int

	mu      sync.Mutex
	busy    map[string]string // "projectID/rfpDocumentID" -> runID
	byKey   map[string]string // "projectID/rfpDocumentID" -> most recent runID
	records map[string]*RunRecord
}

// NewManager wires a Manager around an already-built engine (see BuildGraph).
// persister may be nil, in which case finished runs are kept in memory only.
func NewManager(engine *graph.Engine[State], st store.Store[State], bus *emit.Bus, persister ArtifactPersister, maxRefinementIterations int) *Manager {
	if maxRefinementIterations <= 0 {
		maxRefinementIterations = 3
	}
	return &Manager{
		engine:                  engine,
		store:                   st,
		bus:                     bus,
		persister:               persister,
		maxRefinementIterations: maxRefinementIterations,
		busy:                    make(map[string]string),
		byKey:                   make(map[string]string),
		records:                 make(map[string]*RunRecord),
	}
}

func runKey(projectID, rfpDocumentID string) string {
	return projectID + "/" + rfpDocumentID
}

// StartRun begins a new run for (projectID, rfpDocumentID). It returns
// KindBusy if a run for the same pair is already active, matching spec §7's
// Busy error kind and §5's single-writer-per-document rule.
func (m *Manager) StartRun(ctx context.Context, projectID, rfpDocumentID, rfpText string, selectedTasks map[string]bool) (*RunRecord, error) {
	if strings.TrimSpace(rfpText) == "" {
		return nil, newError(KindNoExtractedText, fmt.Sprintf("no RFP text extracted for project %q document %q", projectID, rfpDocumentID), nil)
	}

	key := runKey(projectID, rfpDocumentID)

	m.mu.Lock()
	if _, active := m.busy[key]; active {
		m.mu.Unlock()
		return nil, newError(KindBusy, fmt.Sprintf("a run is already active for project %q document %q", projectID, rfpDocumentID), nil)
	}
	runID := uuid.NewString()
	m.busy[key] = runID
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		delete(m.busy, key)
		m.mu.Unlock()
	}()

	initial := NewState(projectID, rfpDocumentID, rfpText, selectedTasks)
	m.emitProgress(runID, "run_started")

	finalState, err := m.engine.Run(ctx, runID, initial)

	record := m.finishRun(ctx, runID, projectID, rfpDocumentID, finalState, err)
	return record, errorOrNil(record, err)
}

// ApproveOutline resumes a run paused at human_approval. It takes the state
// held in the Manager's in-memory record of the run, sets OutlineApproved, replays the human_approval node via
// Engine.Step (which records OutlineApproved and returns the Goto it decided
// on), then drives the rest of the graph to completion with Engine.RunFrom.
// Calling this on a run that is not pending approval is a ValidationError.
func (m *Manager) ApproveOutline(ctx context.Context, runID string, approved bool) (*RunRecord, error) {
	m.mu.Lock()
	record, ok := m.records[runID]
	m.mu.Unlock()
	if !ok {
		return nil, newError(KindNotFound, fmt.Sprintf("no run %q", runID), nil)
	}
	if record.Status != StatusPendingApproval {
		return nil, newError(KindValidationError, fmt.Sprintf("run %q is not pending approval (status=%s)", runID, record.Status), nil)
	}

	key := runKey(record.ProjectID, record.RFPDocumentID)
	m.mu.Lock()
	if _, active := m.busy[key]; active {
		m.mu.Unlock()
		return nil, newError(KindBusy, fmt.Sprintf("a run is already active for project %q document %q", record.ProjectID, record.RFPDocumentID), nil)
	}
	m.busy[key] = runID
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		delete(m.busy, key)
		m.mu.Unlock()
	}()

	state := record.State
	state.OutlineApproved = &approved
	if approved {
		state.ApprovedAt = time.Now()
	}

	merged, route, err := m.engine.Step(ctx, runID, "human_approval", state)
	if err != nil {
		updated := m.finishRun(ctx, runID, record.ProjectID, record.RFPDocumentID, merged, err)
		return updated, err
	}

	if m.bus != nil {
		m.bus.EmitOutlineApproval(runID, "human_approval", approved, time.Now())
	}

	if route.Terminal || route.To == "" {
		// Approval was withheld again; stays pending.
		updated := m.finishRun(ctx, runID, record.ProjectID, record.RFPDocumentID, merged, nil)
		return updated, nil
	}

	finalState, runErr := m.engine.RunFrom(ctx, runID, route.To, merged)
	updated := m.finishRun(ctx, runID, record.ProjectID, record.RFPDocumentID, finalState, runErr)
	return updated, errorOrNil(updated, runErr)
}

// GetState returns the tracked record for a run ID.
func (m *Manager) GetState(runID string) (*RunRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.records[runID]
	if !ok {
		return nil, newError(KindNotFound, fmt.Sprintf("no run %q", runID), nil)
	}
	return record, nil
}

// GetStateByProject returns the most recent run for (projectID, rfpDocumentID).
func (m *Manager) GetStateByProject(projectID, rfpDocumentID string) (*RunRecord, error) {
	key := runKey(projectID, rfpDocumentID)
	m.mu.Lock()
	defer m.mu.Unlock()
	runID, ok := m.byKey[key]
	if !ok {
		return nil, newError(KindNotFound, fmt.Sprintf("no run for project %q document %q", projectID, rfpDocumentID), nil)
	}
	record, ok := m.records[runID]
	if !ok {
		return nil, newError(KindNotFound, fmt.Sprintf("no run for project %q document %q", projectID, rfpDocumentID), nil)
	}
	return record, nil
}

// Subscribe streams emitted events for a run, if the Manager was built with
// a *emit.Bus. The returned cancel func must be called once the caller stops
// reading, to release the subscription.
func (m *Manager) Subscribe(runID string) (<-chan emit.Event, func(), error) {
	if m.bus == nil {
		return nil, func() {}, newError(KindInternal, "manager has no event bus configured", nil)
	}
	ch, cancel := m.bus.Subscribe(runID)
	return ch, cancel, nil
}

func (m *Manager) finishRun(ctx context.Context, runID, projectID, rfpDocumentID string, state State, runErr error) *RunRecord {
	status := m.classifyStatus(state, runErr)

	record := &RunRecord{
		RunID:         runID,
		ProjectID:     projectID,
		RFPDocumentID: rfpDocumentID,
		Status:        status,
		State:         state,
		UpdatedAt:     time.Now(),
	}

	m.mu.Lock()
	if existing, ok := m.records[runID]; ok {
		record.StartedAt = existing.StartedAt
	} else {
		record.StartedAt = record.UpdatedAt
	}
	m.records[runID] = record
	m.byKey[runKey(projectID, rfpDocumentID)] = runID
	m.mu.Unlock()

	if status == StatusPendingApproval && m.store != nil {
		if err := m.store.SaveCheckpoint(ctx, runID, state, 0); err != nil {
			m.emitProgress(runID, "checkpoint_save_failed")
		}
	}

	if status == StatusCompleted && m.persister != nil {
		if err := m.persister.Persist(ctx, state); err != nil {
			m.emitProgress(runID, "persist_failed")
		}
	}

	m.emitProgress(runID, "status:"+string(status))
	return record
}

func (m *Manager) classifyStatus(state State, runErr error) RunStatus {
	if runErr != nil {
		return StatusFailed
	}
	if state.CurrentStep == "human_approval" && (state.OutlineApproved == nil || !*state.OutlineApproved) {
		return StatusPendingApproval
	}
	return StatusCompleted
}

func (m *Manager) emitProgress(runID, note string) {
	if m.bus == nil {
		return
	}
	m.bus.Emit(emit.Event{RunID: runID, Msg: emit.MsgWorkflowProgress, Meta: map[string]interface{}{"note": note}})
}

func errorOrNil(record *RunRecord, err error) error {
	if err == nil {
		return nil
	}
	if record != nil && record.Status == StatusFailed {
		if _, ok := err.(*Error); ok {
			return err
		}
		return newError(KindInternal, "workflow run failed", err)
	}
	return err
}
