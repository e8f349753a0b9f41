package workflow

import (
	"context"
	"time"

	"github.com/proposalforge/rfpflow/graph"
)

// HumanApprovalNode makes no LLM call; it consults outline_approved. Per
// spec §9's open question on human_approval's two contradictory source
// behaviors, this module picks the blocking interpretation (Scenario S4):
// when approval is required and not yet granted, the run pauses here rather
// than proceeding to proposal_builder. Manager.ApproveOutline resumes a
// paused run by calling the engine's Step directly on this node once
// outline_approved flips true.
type HumanApprovalNode struct {
	RequireApproval bool
}

func (n *HumanApprovalNode) Run(ctx context.Context, state State) graph.NodeResult[State] {
	approved := !n.RequireApproval || (state.OutlineApproved != nil && *state.OutlineApproved)

	if approved {
		delta := State{
			CurrentStep: "human_approval",
			ExecutionLog: []LogEntry{{
				Step: "human_approval", Status: LogSuccess, At: time.Now(),
			}},
		}
		return graph.NodeResult[State]{Delta: delta, Route: graph.Goto("proposal_builder")}
	}

	delta := State{
		CurrentStep: "human_approval",
		ExecutionLog: []LogEntry{{
			Step: "human_approval", Status: LogPending, At: time.Now(),
		}},
	}
	return graph.NodeResult[State]{Delta: delta, Route: graph.Stop()}
}
