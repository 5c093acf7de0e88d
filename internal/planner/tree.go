package planner

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"intentloop/internal/classify"
)

// Tree is the intention arena: every node lives in one flat map keyed
// by id, and parent/child links are id lists. All access goes through
// the tree so the locking story stays in one place.
type Tree struct {
	mu     sync.RWMutex
	nodes  map[string]*Intention
	rootID string
}

// NewTree returns an empty arena.
func NewTree() *Tree {
	return &Tree{nodes: make(map[string]*Intention)}
}

// AddRoot creates the root intention.
func (t *Tree) AddRoot(request, acceptance string, tag classify.Tag) *Intention {
	t.mu.Lock()
	defer t.mu.Unlock()

	in := &Intention{
		ID:         uuid.New().String(),
		Request:    request,
		Acceptance: acceptance,
		Tag:        tag,
		Status:     StatusPending,
		Depth:      0,
		CreatedAt:  time.Now(),
	}
	t.nodes[in.ID] = in
	t.rootID = in.ID
	return in
}

// AddChild creates a child intention under parentID and appends it to
// the parent's child list.
func (t *Tree) AddChild(parentID, request, acceptance string, tag classify.Tag) (*Intention, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	parent, ok := t.nodes[parentID]
	if !ok {
		return nil, fmt.Errorf("unknown parent intention %s", parentID)
	}

	in := &Intention{
		ID:         uuid.New().String(),
		ParentID:   parentID,
		Request:    request,
		Acceptance: acceptance,
		Tag:        tag,
		Status:     StatusPending,
		Depth:      parent.Depth + 1,
		CreatedAt:  time.Now(),
	}
	t.nodes[in.ID] = in
	parent.Children = append(parent.Children, in.ID)
	return in, nil
}

// Get returns an intention by id.
func (t *Tree) Get(id string) (*Intention, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	in, ok := t.nodes[id]
	return in, ok
}

// Root returns the root intention, or nil for an empty tree.
func (t *Tree) Root() *Intention {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.nodes[t.rootID]
}

// AppendCycle appends one cycle to an intention's trace.
func (t *Tree) AppendCycle(id string, c Cycle) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	in, ok := t.nodes[id]
	if !ok {
		return fmt.Errorf("unknown intention %s", id)
	}
	c.Index = len(in.Cycles)
	in.Cycles = append(in.Cycles, c)
	return nil
}

// SetStatus performs a validated status transition.
func (t *Tree) SetStatus(id string, to Status) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	in, ok := t.nodes[id]
	if !ok {
		return fmt.Errorf("unknown intention %s", id)
	}
	if !allowedTransition(in.Status, to) {
		return fmt.Errorf("disallowed transition for %s: %s -> %s", id, in.Status, to)
	}
	in.Status = to
	return nil
}

// allowedTransition encodes the status machine. Partial intentions may
// re-enter progress; terminal states are final.
func allowedTransition(from, to Status) bool {
	switch from {
	case StatusPending:
		return to == StatusInProgress
	case StatusInProgress:
		return to == StatusSucceeded || to == StatusPartial || to == StatusFailed
	case StatusPartial:
		return to == StatusInProgress
	default:
		return false
	}
}

// AllChildrenSucceeded reports whether every child of id succeeded.
// True for a childless intention.
func (t *Tree) AllChildrenSucceeded(id string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	in, ok := t.nodes[id]
	if !ok {
		return false
	}
	for _, cid := range in.Children {
		child, ok := t.nodes[cid]
		if !ok || child.Status != StatusSucceeded {
			return false
		}
	}
	return true
}

// TotalCycles counts cycles across the whole subtree rooted at id.
func (t *Tree) TotalCycles(id string) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.totalCyclesLocked(id)
}

func (t *Tree) totalCyclesLocked(id string) int {
	in, ok := t.nodes[id]
	if !ok {
		return 0
	}
	total := len(in.Cycles)
	for _, cid := range in.Children {
		total += t.totalCyclesLocked(cid)
	}
	return total
}
