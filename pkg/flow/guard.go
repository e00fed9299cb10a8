package flow

import "sync"

// Decision is the outcome of the external confirmation prompt shown when the
// user navigates away with unsaved changes.
type Decision int

const (
	DecisionDiscard Decision = iota
	DecisionSave
	DecisionStay
)

// Prompter surfaces the confirmation UI and returns the user's choice. The
// actual rendering is external; tests supply a stub.
type Prompter func() Decision

// Guard intercepts navigation-away requests. It compares the current draft
// (via the snapshot function) against the last committed snapshot and requires
// explicit confirmation before work is discarded.
type Guard struct {
	mu        sync.Mutex
	snapshot  func() string
	lastSaved string
}

// NewGuard builds a guard over a snapshot function that serializes the current
// draft state. The initial snapshot counts as committed.
func NewGuard(snapshot func() string) *Guard {
	return &Guard{snapshot: snapshot, lastSaved: snapshot()}
}

// HasUnsavedChanges reports whether the draft diverged from the last commit.
func (g *Guard) HasUnsavedChanges() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.snapshot() != g.lastSaved
}

// MarkAsSaved resets the guard's notion of "last committed" to the current
// draft. Call after a successful explicit save.
func (g *Guard) MarkAsSaved() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lastSaved = g.snapshot()
}

// ConfirmNavigation routes a navigation intent. With no unsaved changes the
// navigation proceeds immediately; otherwise the prompt decides between
// discarding, saving first, or staying.
func (g *Guard) ConfirmNavigation(prompt Prompter, onProceed, onSaveChanges, onStay func()) {
	if !g.HasUnsavedChanges() {
		onProceed()
		return
	}
	switch prompt() {
	case DecisionDiscard:
		onProceed()
	case DecisionSave:
		if onSaveChanges != nil {
			onSaveChanges()
		}
		g.MarkAsSaved()
		onProceed()
	default:
		if onStay != nil {
			onStay()
		}
	}
}
