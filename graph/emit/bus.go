package emit

import (
	"context"
	"sync"
	"time"
)

// Event Msg values for the workflow-level event stream (spec §6.2). These
// ride on top of the node-level "node_start"/"node_complete"/"error"
// messages other Emitters already produce.
const (
	MsgThought         = "thought"
	MsgSkeleton        = "skeleton"
	MsgOutlineApproval = "outline_approval"
	MsgWorkflowProgress = "workflow_progress"
)

// Bus is an Emitter that fans events out to per-run subscriber channels, for
// streaming workflow progress to external clients (spec §6.2's event
// stream), while also satisfying the graph engine's Emitter contract so node
// execution events flow through the same pipe.
type Bus struct {
	mu   sync.Mutex
	subs map[string][]chan Event
}

// NewBus creates an empty event bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[string][]chan Event)}
}

// Subscribe returns a channel of events for runID and an unsubscribe func.
// The channel is buffered; a slow consumer drops events rather than
// blocking workflow execution.
func (b *Bus) Subscribe(runID string) (<-chan Event, func()) {
	ch := make(chan Event, 64)

	b.mu.Lock()
	b.subs[runID] = append(b.subs[runID], ch)
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.subs[runID]
		for i, c := range subs {
			if c == ch {
				b.subs[runID] = append(subs[:i], subs[i+1:]...)
				close(ch)
				return
			}
		}
	}
	return ch, cancel
}

// Emit implements emit.Emitter. Delivery is best-effort: a full subscriber
// buffer drops the event rather than blocking the emitting node.
func (b *Bus) Emit(event Event) {
	b.mu.Lock()
	subs := append([]chan Event(nil), b.subs[event.RunID]...)
	b.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- event:
		default:
		}
	}
}

// EmitBatch implements emit.Emitter.
func (b *Bus) EmitBatch(ctx context.Context, events []Event) error {
	for _, e := range events {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			b.Emit(e)
		}
	}
	return nil
}

// Flush implements emit.Emitter; the bus has no buffering to drain.
func (b *Bus) Flush(ctx context.Context) error { return nil }

// EmitThought publishes an agent's intermediate reasoning/progress narration.
func (b *Bus) EmitThought(runID, nodeID, text string) {
	b.Emit(Event{RunID: runID, NodeID: nodeID, Msg: MsgThought, Meta: map[string]interface{}{"text": text}})
}

// EmitSkeleton publishes a draft outline/skeleton before it is finalized.
func (b *Bus) EmitSkeleton(runID, nodeID string, sections []string) {
	b.Emit(Event{RunID: runID, NodeID: nodeID, Msg: MsgSkeleton, Meta: map[string]interface{}{"sections": sections}})
}

// EmitOutlineApproval publishes the human's decision on a generated outline,
// once that decision has actually been made (see workflow.Manager.ApproveOutline).
func (b *Bus) EmitOutlineApproval(runID, nodeID string, approved bool, at time.Time) {
	b.Emit(Event{RunID: runID, NodeID: nodeID, Msg: MsgOutlineApproval, Meta: map[string]interface{}{"approved": approved, "timestamp": at}})
}

// EmitProgress publishes coarse-grained step progress for UI progress bars.
func (b *Bus) EmitProgress(runID, nodeID string, step, total int) {
	b.Emit(Event{RunID: runID, NodeID: nodeID, Step: step, Msg: MsgWorkflowProgress, Meta: map[string]interface{}{"total": total}})
}

// Close unsubscribes and closes every channel across every run, for
// shutdown.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for runID, subs := range b.subs {
		for _, ch := range subs {
			close(ch)
		}
		delete(b.subs, runID)
	}
}
