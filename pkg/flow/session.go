package flow

import (
	"encoding/json"

	"rideon/models"
)

// CollectedData is everything the wizard has gathered so far. Mutated only
// through Controller.UpdateData / Controller.AppendDocument.
type CollectedData struct {
	FullName           string                  `json:"full_name"`
	Phone              string                  `json:"phone"`
	DateOfBirth        string                  `json:"date_of_birth"` // ISO date (2006-01-02)
	Address            string                  `json:"address"`
	HasAcceptedTerms   bool                    `json:"has_accepted_terms"`
	HasAcceptedPrivacy bool                    `json:"has_accepted_privacy"`
	Documents          []models.DocumentRecord `json:"documents"`
}

// DataPatch is a partial update to CollectedData. Nil fields are left
// untouched by the merge; no validation happens at merge time.
type DataPatch struct {
	FullName           *string `json:"full_name"`
	Phone              *string `json:"phone"`
	DateOfBirth        *string `json:"date_of_birth"`
	Address            *string `json:"address"`
	HasAcceptedTerms   *bool   `json:"has_accepted_terms"`
	HasAcceptedPrivacy *bool   `json:"has_accepted_privacy"`
}

func (d *CollectedData) apply(p DataPatch) {
	if p.FullName != nil {
		d.FullName = *p.FullName
	}
	if p.Phone != nil {
		d.Phone = *p.Phone
	}
	if p.DateOfBirth != nil {
		d.DateOfBirth = *p.DateOfBirth
	}
	if p.Address != nil {
		d.Address = *p.Address
	}
	if p.HasAcceptedTerms != nil {
		d.HasAcceptedTerms = *p.HasAcceptedTerms
	}
	if p.HasAcceptedPrivacy != nil {
		d.HasAcceptedPrivacy = *p.HasAcceptedPrivacy
	}
}

// session is the single live wizard state for one user. Lives inside the
// Controller; external code only ever sees SessionView snapshots.
type session struct {
	userID       uint
	role         string
	currentStep  Step
	completed    map[Step]bool
	data         CollectedData
	requirements []models.DocumentTypeRequirement
	staging      *StagingStore
}

func newSession(userID uint, role string) *session {
	return &session{
		userID:      userID,
		role:        role,
		currentStep: StepWelcome,
		completed:   map[Step]bool{},
		staging:     NewStagingStore(),
	}
}

// SessionView is a read-only snapshot of a session, safe to hand to handlers.
type SessionView struct {
	UserID         uint                             `json:"-"`
	Role           string                           `json:"role"`
	CurrentStep    Step                             `json:"current_step"`
	CompletedSteps []Step                           `json:"completed_steps"`
	Data           CollectedData                    `json:"data"`
	Requirements   []models.DocumentTypeRequirement `json:"requirements,omitempty"`
}

func (s *session) view() SessionView {
	v := SessionView{
		UserID:      s.userID,
		Role:        s.role,
		CurrentStep: s.currentStep,
		Data:        s.data,
	}
	// completed steps reported in flow order; membership-only semantics
	for _, st := range stepOrder {
		if s.completed[st] {
			v.CompletedSteps = append(v.CompletedSteps, st)
		}
	}
	v.Data.Documents = append([]models.DocumentRecord(nil), s.data.Documents...)
	v.Requirements = append([]models.DocumentTypeRequirement(nil), s.requirements...)
	return v
}

// draftState is the JSON shape persisted by a DraftStore so an interrupted
// flow resumes at the last current step instead of restarting from welcome.
type draftState struct {
	Role         string                           `json:"role"`
	CurrentStep  Step                             `json:"current_step"`
	Completed    []Step                           `json:"completed"`
	Data         CollectedData                    `json:"data"`
	Staged       StagedAssets                     `json:"staged"`
	Requirements []models.DocumentTypeRequirement `json:"requirements,omitempty"`
}

func (s *session) toDraft() draftState {
	d := draftState{
		Role:         s.role,
		CurrentStep:  s.currentStep,
		Data:         s.data,
		Staged:       s.staging.All(),
		Requirements: append([]models.DocumentTypeRequirement(nil), s.requirements...),
	}
	for _, st := range stepOrder {
		if s.completed[st] {
			d.Completed = append(d.Completed, st)
		}
	}
	return d
}

func encodeDraft(d draftState) ([]byte, error) {
	return json.Marshal(d)
}

func decodeDraft(raw []byte) (draftState, error) {
	var d draftState
	err := json.Unmarshal(raw, &d)
	return d, err
}

func (s *session) fromDraft(d draftState) {
	if d.Role != "" {
		s.role = d.Role
	}
	if KnownStep(d.CurrentStep) {
		s.currentStep = d.CurrentStep
	}
	for _, st := range d.Completed {
		if KnownStep(st) {
			s.completed[st] = true
		}
	}
	s.data = d.Data
	s.staging.replaceAll(d.Staged)
	s.requirements = append([]models.DocumentTypeRequirement(nil), d.Requirements...)
}
