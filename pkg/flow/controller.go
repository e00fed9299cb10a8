package flow

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"rideon/models"
)

var (
	// ErrNoSession is returned when an operation targets a user without an
	// active onboarding session.
	ErrNoSession = errors.New("flow: no active session")
	// ErrUnknownStep is returned when a caller passes a step outside the
	// fixed enumeration.
	ErrUnknownStep = errors.New("flow: unknown step")
)

// DraftStore persists session drafts locally so an interrupted flow resumes
// at its last step. Implemented by pkg/draft on BadgerDB.
type DraftStore interface {
	Save(userID uint, payload []byte) error
	Load(userID uint) ([]byte, error) // returns draft.ErrNoDraft-style not-found error
	Delete(userID uint) error
}

// CompletionFunc is invoked exactly once when a session reaches the terminal
// transition, with the final collected data.
type CompletionFunc func(userID uint, data CollectedData)

// Controller is the onboarding state machine. It owns every live session and
// is the only component allowed to mutate collected data or the completed-step
// set; all flow-position changes funnel through CanProceedToStep.
type Controller struct {
	mu         sync.Mutex
	sessions   map[uint]*session
	gate       *Gate
	drafts     DraftStore
	onComplete CompletionFunc
}

func NewController(gate *Gate, drafts DraftStore, onComplete CompletionFunc) *Controller {
	if gate == nil {
		gate = NewGate()
	}
	return &Controller{
		sessions:   map[uint]*session{},
		gate:       gate,
		drafts:     drafts,
		onComplete: onComplete,
	}
}

// StartSession opens (or re-opens) the flow for a user. Idempotent: a second
// open while a session is active returns the live session without discarding
// in-progress data. If a persisted draft exists it is restored first.
func (c *Controller) StartSession(userID uint, role string) SessionView {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.sessions[userID]; ok {
		return s.view()
	}
	s := newSession(userID, role)
	if c.drafts != nil {
		if raw, err := c.drafts.Load(userID); err == nil && len(raw) > 0 {
			if d, derr := decodeDraft(raw); derr == nil {
				s.fromDraft(d)
				log.Printf("flow: resumed draft for user=%d at step=%s", userID, s.currentStep)
			} else {
				log.Printf("flow: discarding unreadable draft for user=%d: %v", userID, derr)
			}
		}
	}
	c.sessions[userID] = s
	c.persist(s)
	return s.view()
}

// Session returns a snapshot of the live session.
func (c *Controller) Session(userID uint) (SessionView, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sessions[userID]
	if !ok {
		return SessionView{}, ErrNoSession
	}
	return s.view(), nil
}

// Staging exposes the session's staging store for the upload path and the
// requirements endpoint.
func (c *Controller) Staging(userID uint) (*StagingStore, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sessions[userID]
	if !ok {
		return nil, ErrNoSession
	}
	return s.staging, nil
}

// UpdateData merges a partial patch into the collected data. Always succeeds;
// validation only happens when the gate is consulted.
func (c *Controller) UpdateData(userID uint, patch DataPatch) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sessions[userID]
	if !ok {
		return ErrNoSession
	}
	s.data.apply(patch)
	c.persist(s)
	return nil
}

// AppendDocument commits a confirmed upload into the collected data. The
// record is owned by the session from here on and never mutated by staging.
func (c *Controller) AppendDocument(userID uint, rec models.DocumentRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sessions[userID]
	if !ok {
		return ErrNoSession
	}
	s.data.Documents = append(s.data.Documents, rec)
	c.persist(s)
	return nil
}

// SetRequirements pins the document requirement set for the session. Called
// once at entry to the document_upload step; immutable afterwards per session.
func (c *Controller) SetRequirements(userID uint, reqs []models.DocumentTypeRequirement) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sessions[userID]
	if !ok {
		return ErrNoSession
	}
	if len(s.requirements) == 0 {
		s.requirements = append([]models.DocumentTypeRequirement(nil), reqs...)
		c.persist(s)
	}
	return nil
}

// CompleteStep adds step to the completed set. Side-effect only; never moves
// the current step. The completed set only grows within one session.
func (c *Controller) CompleteStep(userID uint, step Step) error {
	if !KnownStep(step) {
		return ErrUnknownStep
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sessions[userID]
	if !ok {
		return ErrNoSession
	}
	s.completed[step] = true
	c.persist(s)
	return nil
}

// NextStep returns the step immediately following the current one; ok=false
// signals the terminal position.
func (c *Controller) NextStep(userID uint) (Step, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sessions[userID]
	if !ok {
		return "", false, ErrNoSession
	}
	next, has := nextAfter(s.currentStep)
	return next, has, nil
}

// PreviousStep returns the step immediately preceding the current one; ok=false
// when the session sits on the first step.
func (c *Controller) PreviousStep(userID uint) (Step, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sessions[userID]
	if !ok {
		return "", false, ErrNoSession
	}
	prev, has := previousBefore(s.currentStep)
	return prev, has, nil
}

// CanProceedToStep asks the gate whether the collected data satisfies the
// step's entry requirements, and surfaces the first unmet criterion.
func (c *Controller) CanProceedToStep(userID uint, step Step) (bool, string, error) {
	if !KnownStep(step) {
		return false, "", ErrUnknownStep
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sessions[userID]
	if !ok {
		return false, "", ErrNoSession
	}
	allowed, reason := c.gate.EntryAllowed(step, s.data, s.requirements)
	return allowed, reason, nil
}

// SetCurrentStep unconditionally moves the session. Callers are expected to
// have consulted CanProceedToStep first; the advance algorithm always does.
func (c *Controller) SetCurrentStep(userID uint, step Step) error {
	if !KnownStep(step) {
		return ErrUnknownStep
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sessions[userID]
	if !ok {
		return ErrNoSession
	}
	s.currentStep = step
	c.persist(s)
	return nil
}

// AdvanceResult describes the outcome of one "continue" press.
type AdvanceResult struct {
	Finalized bool          `json:"finalized"`
	Step      Step          `json:"step,omitempty"`
	Recovered bool          `json:"recovered,omitempty"`
	Data      CollectedData `json:"-"`
}

// Advance runs the step-advance algorithm: mark the active step complete,
// compute the next step, gate-check it, and either move, recover, or finalize.
//
// The recovery branch exists because step validity depends on collected data,
// which can be mutated out-of-band (a later step clearing an earlier field);
// the controller must never leave the user stranded on an unreachable step.
func (c *Controller) Advance(userID uint) (AdvanceResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sessions[userID]
	if !ok {
		return AdvanceResult{}, ErrNoSession
	}

	s.completed[s.currentStep] = true

	next, has := nextAfter(s.currentStep)
	if !has {
		return c.finalizeLocked(s), nil
	}

	if allowed, _ := c.gate.EntryAllowed(next, s.data, s.requirements); allowed {
		s.currentStep = next
		c.persist(s)
		return AdvanceResult{Step: next}, nil
	}

	// Recovery scan: jump to the earliest step that is neither completed nor
	// blocked. Bounded by the fixed step count, so it always terminates.
	log.Printf("flow: warning: user=%d cannot proceed to %s, scanning for recovery step", userID, next)
	for _, st := range stepOrder {
		if s.completed[st] {
			continue
		}
		if allowed, _ := c.gate.EntryAllowed(st, s.data, s.requirements); allowed {
			s.currentStep = st
			c.persist(s)
			return AdvanceResult{Step: st, Recovered: true}, nil
		}
	}

	// Nothing satisfiable remains: finalize rather than deadlock the user.
	return c.finalizeLocked(s), nil
}

// Abandon discards the session and its draft without firing the completion
// callback. Used when the user explicitly quits the flow.
func (c *Controller) Abandon(userID uint) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sessions[userID]
	if !ok {
		return ErrNoSession
	}
	s.staging.Clear()
	delete(c.sessions, userID)
	c.dropDraft(userID)
	return nil
}

// finalizeLocked performs the terminal transition: reset state, drop the
// draft, invoke the completion callback. Caller holds c.mu.
func (c *Controller) finalizeLocked(s *session) AdvanceResult {
	data := s.data
	s.staging.Clear()
	delete(c.sessions, s.userID)
	c.dropDraft(s.userID)
	if c.onComplete != nil {
		// callback runs outside the session map but under c.mu; keep it cheap
		c.onComplete(s.userID, data)
	}
	return AdvanceResult{Finalized: true, Data: data}
}

func (c *Controller) persist(s *session) {
	if c.drafts == nil {
		return
	}
	raw, err := encodeDraft(s.toDraft())
	if err != nil {
		log.Printf("flow: draft encode failed for user=%d: %v", s.userID, err)
		return
	}
	if err := c.drafts.Save(s.userID, raw); err != nil {
		log.Printf("flow: draft save failed for user=%d: %v", s.userID, err)
	}
}

func (c *Controller) dropDraft(userID uint) {
	if c.drafts == nil {
		return
	}
	if err := c.drafts.Delete(userID); err != nil {
		log.Printf("flow: draft delete failed for user=%d: %v", userID, err)
	}
}

// SnapshotData serializes the draft-relevant state for unsaved-change
// comparison by the guard.
func (c *Controller) SnapshotData(userID uint) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sessions[userID]
	if !ok {
		return ""
	}
	raw, err := encodeDraft(s.toDraft())
	if err != nil {
		return fmt.Sprintf("unencodable:%v", err)
	}
	return string(raw)
}
