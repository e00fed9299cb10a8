package flow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rideon/models"
)

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

// validProfilePatch fills everything the profile_setup criteria need.
func validProfilePatch() DataPatch {
	return DataPatch{
		FullName:    strPtr("Ayu Lestari"),
		Phone:       strPtr("+62 812-3456-789"),
		DateOfBirth: strPtr("1994-05-12"),
		Address:     strPtr("Jl. Sudirman No. 12, Jakarta"),
	}
}

func selfieRequirement() []models.DocumentTypeRequirement {
	return []models.DocumentTypeRequirement{
		{Type: models.DocSelfie, Required: true, Title: "Selfie"},
	}
}

func selfieRecord() models.DocumentRecord {
	return models.DocumentRecord{
		RecordID:   "rec-1",
		Type:       models.DocSelfie,
		Status:     models.DocStatusPending,
		UploadedAt: time.Now(),
	}
}

func TestStartSessionIdempotent(t *testing.T) {
	c := NewController(NewGate(), nil, nil)
	v1 := c.StartSession(7, "rider")
	assert.Equal(t, StepWelcome, v1.CurrentStep)

	require.NoError(t, c.UpdateData(7, DataPatch{FullName: strPtr("Budi")}))

	// re-entrant open must not discard in-progress data
	v2 := c.StartSession(7, "rider")
	assert.Equal(t, "Budi", v2.Data.FullName)
	assert.Equal(t, StepWelcome, v2.CurrentStep)
}

func TestHappyPathToCompletion(t *testing.T) {
	var completedFor uint
	var completedData CollectedData
	c := NewController(NewGate(), nil, func(userID uint, data CollectedData) {
		completedFor = userID
		completedData = data
	})
	c.StartSession(1, "rider")

	// welcome -> profile_setup: no prerequisites
	res, err := c.Advance(1)
	require.NoError(t, err)
	assert.Equal(t, StepProfileSetup, res.Step)

	require.NoError(t, c.UpdateData(1, validProfilePatch()))
	res, err = c.Advance(1)
	require.NoError(t, err)
	assert.Equal(t, StepKYCIntro, res.Step)

	require.NoError(t, c.UpdateData(1, DataPatch{HasAcceptedTerms: boolPtr(true), HasAcceptedPrivacy: boolPtr(true)}))
	res, err = c.Advance(1)
	require.NoError(t, err)
	assert.Equal(t, StepDocumentUpload, res.Step)

	require.NoError(t, c.SetRequirements(1, selfieRequirement()))
	allowed, reason, err := c.CanProceedToStep(1, StepDocumentReview)
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Contains(t, reason, "Selfie")

	require.NoError(t, c.AppendDocument(1, selfieRecord()))
	res, err = c.Advance(1)
	require.NoError(t, err)
	assert.Equal(t, StepDocumentReview, res.Step)

	res, err = c.Advance(1)
	require.NoError(t, err)
	assert.Equal(t, StepComplete, res.Step)

	// advancing past the last step finalizes and resets
	res, err = c.Advance(1)
	require.NoError(t, err)
	assert.True(t, res.Finalized)
	assert.Equal(t, uint(1), completedFor)
	assert.Len(t, completedData.Documents, 1)

	_, err = c.Session(1)
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestValidationFailureReason(t *testing.T) {
	c := NewController(NewGate(), nil, nil)
	c.StartSession(2, "rider")
	_, err := c.Advance(2) // welcome -> profile_setup
	require.NoError(t, err)

	require.NoError(t, c.UpdateData(2, DataPatch{FullName: strPtr("A B")}))
	allowed, reason, err := c.CanProceedToStep(2, StepKYCIntro)
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Contains(t, reason, "phone")
}

func TestCompletedStepsOnlyGrow(t *testing.T) {
	c := NewController(NewGate(), nil, nil)
	c.StartSession(3, "rider")
	require.NoError(t, c.CompleteStep(3, StepWelcome))
	require.NoError(t, c.CompleteStep(3, StepProfileSetup))
	require.NoError(t, c.CompleteStep(3, StepWelcome)) // duplicate add is a no-op

	v, err := c.Session(3)
	require.NoError(t, err)
	assert.Equal(t, []Step{StepWelcome, StepProfileSetup}, v.CompletedSteps)
	assert.True(t, KnownStep(v.CurrentStep))

	assert.ErrorIs(t, c.CompleteStep(3, Step("bogus")), ErrUnknownStep)
}

func TestNextAndPreviousStep(t *testing.T) {
	c := NewController(NewGate(), nil, nil)
	c.StartSession(4, "rider")

	next, has, err := c.NextStep(4)
	require.NoError(t, err)
	assert.True(t, has)
	assert.Equal(t, StepProfileSetup, next)

	_, has, err = c.PreviousStep(4)
	require.NoError(t, err)
	assert.False(t, has, "welcome has no predecessor")

	require.NoError(t, c.SetCurrentStep(4, StepComplete))
	_, has, err = c.NextStep(4)
	require.NoError(t, err)
	assert.False(t, has, "complete is terminal")

	prev, has, err := c.PreviousStep(4)
	require.NoError(t, err)
	assert.True(t, has)
	assert.Equal(t, StepDocumentReview, prev)
}

// TestRecoveryScan forces the state the controller should never normally
// reach: the session sits on a later step while an earlier step's data was
// cleared out-of-band. Advance must jump back instead of stranding the user.
func TestRecoveryScan(t *testing.T) {
	c := NewController(NewGate(), nil, nil)
	c.StartSession(5, "rider")
	require.NoError(t, c.CompleteStep(5, StepWelcome))
	// test-only misuse: skip straight to kyc_intro without profile data
	require.NoError(t, c.SetCurrentStep(5, StepKYCIntro))
	require.NoError(t, c.UpdateData(5, DataPatch{HasAcceptedTerms: boolPtr(true), HasAcceptedPrivacy: boolPtr(true)}))

	res, err := c.Advance(5)
	require.NoError(t, err)
	assert.True(t, res.Recovered)
	assert.Equal(t, StepProfileSetup, res.Step, "earliest not-completed satisfiable step")

	v, err := c.Session(5)
	require.NoError(t, err)
	assert.True(t, KnownStep(v.CurrentStep))
}

// TestRecoveryFinalizes covers the scan exhausting every step: rather than
// deadlocking the user the session finalizes.
func TestRecoveryFinalizes(t *testing.T) {
	fired := 0
	c := NewController(NewGate(), nil, func(uint, CollectedData) { fired++ })
	c.StartSession(6, "rider")
	// walk legitimately to kyc_intro
	_, err := c.Advance(6)
	require.NoError(t, err)
	require.NoError(t, c.UpdateData(6, validProfilePatch()))
	_, err = c.Advance(6)
	require.NoError(t, err)
	require.NoError(t, c.UpdateData(6, DataPatch{HasAcceptedTerms: boolPtr(true), HasAcceptedPrivacy: boolPtr(true)}))
	require.NoError(t, c.SetRequirements(6, selfieRequirement()))

	// out-of-band regression: a later edit clears the name
	require.NoError(t, c.UpdateData(6, DataPatch{FullName: strPtr("")}))

	res, err := c.Advance(6)
	require.NoError(t, err)
	assert.True(t, res.Finalized)
	assert.Equal(t, 1, fired)
}

func TestNoSessionErrors(t *testing.T) {
	c := NewController(NewGate(), nil, nil)
	assert.ErrorIs(t, c.UpdateData(99, DataPatch{}), ErrNoSession)
	_, err := c.Session(99)
	assert.ErrorIs(t, err, ErrNoSession)
	_, _, err = c.NextStep(99)
	assert.ErrorIs(t, err, ErrNoSession)
	_, err = c.Staging(99)
	assert.ErrorIs(t, err, ErrNoSession)
}

// memDrafts is a tiny in-memory DraftStore for controller tests; the badger
// implementation has its own tests in pkg/draft.
type memDrafts struct {
	m map[uint][]byte
}

func newMemDrafts() *memDrafts { return &memDrafts{m: map[uint][]byte{}} }

func (d *memDrafts) Save(userID uint, payload []byte) error {
	d.m[userID] = append([]byte(nil), payload...)
	return nil
}

func (d *memDrafts) Load(userID uint) ([]byte, error) {
	raw, ok := d.m[userID]
	if !ok {
		return nil, ErrNoSession // any error means "no draft" to the controller
	}
	return raw, nil
}

func (d *memDrafts) Delete(userID uint) error {
	delete(d.m, userID)
	return nil
}

func TestDraftResume(t *testing.T) {
	drafts := newMemDrafts()
	c1 := NewController(NewGate(), drafts, nil)
	c1.StartSession(10, "driver")
	require.NoError(t, c1.UpdateData(10, validProfilePatch()))
	_, err := c1.Advance(10)
	require.NoError(t, err)
	st, err := c1.Staging(10)
	require.NoError(t, err)
	st.Add(models.DocSelfie, "/tmp/selfie.jpg")
	// staged assets are part of the draft
	require.NoError(t, c1.UpdateData(10, DataPatch{})) // trigger persist after staging change

	// simulate a process restart
	c2 := NewController(NewGate(), drafts, nil)
	v := c2.StartSession(10, "rider")
	assert.Equal(t, "driver", v.Role, "role restored from draft")
	assert.Equal(t, StepProfileSetup, v.CurrentStep)
	assert.Equal(t, "Ayu Lestari", v.Data.FullName)

	st2, err := c2.Staging(10)
	require.NoError(t, err)
	assert.Equal(t, []string{"/tmp/selfie.jpg"}, st2.References(models.DocSelfie))
}

// The pinned requirement set is part of the draft: a session resumed at the
// upload step after a restart must stay blocked until the required documents
// are committed.
func TestDraftResumeKeepsRequirements(t *testing.T) {
	drafts := newMemDrafts()
	c1 := NewController(NewGate(), drafts, nil)
	c1.StartSession(12, "rider")
	_, err := c1.Advance(12)
	require.NoError(t, err)
	require.NoError(t, c1.UpdateData(12, validProfilePatch()))
	_, err = c1.Advance(12)
	require.NoError(t, err)
	require.NoError(t, c1.UpdateData(12, DataPatch{HasAcceptedTerms: boolPtr(true), HasAcceptedPrivacy: boolPtr(true)}))
	_, err = c1.Advance(12)
	require.NoError(t, err)
	require.NoError(t, c1.SetRequirements(12, selfieRequirement()))

	allowed, _, err := c1.CanProceedToStep(12, StepDocumentReview)
	require.NoError(t, err)
	require.False(t, allowed)

	// process restart
	c2 := NewController(NewGate(), drafts, nil)
	v := c2.StartSession(12, "rider")
	assert.Equal(t, StepDocumentUpload, v.CurrentStep)
	require.Len(t, v.Requirements, 1)

	allowed, reason, err := c2.CanProceedToStep(12, StepDocumentReview)
	require.NoError(t, err)
	assert.False(t, allowed, "resumed session must still be blocked without documents")
	assert.Contains(t, reason, "Selfie")

	require.NoError(t, c2.AppendDocument(12, selfieRecord()))
	allowed, _, err = c2.CanProceedToStep(12, StepDocumentReview)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestAbandonDropsDraft(t *testing.T) {
	drafts := newMemDrafts()
	c := NewController(NewGate(), drafts, nil)
	c.StartSession(11, "rider")
	require.NoError(t, c.UpdateData(11, DataPatch{FullName: strPtr("X Y")}))
	require.NoError(t, c.Abandon(11))

	_, err := c.Session(11)
	assert.ErrorIs(t, err, ErrNoSession)
	_, ok := drafts.m[11]
	assert.False(t, ok, "draft removed on abandon")

	// a fresh open starts clean
	v := c.StartSession(11, "rider")
	assert.Equal(t, "", v.Data.FullName)
}
