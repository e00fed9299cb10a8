package main

import (
	"errors"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"rideon/models"
	"rideon/pkg/flow"
	"rideon/pkg/review"

	"github.com/gin-gonic/gin"
)

// guards tracks one unsaved-changes guard per live session. Created lazily
// when a session opens; dropped when the session ends.
var (
	guardsMu sync.Mutex
	guards   = map[uint]*flow.Guard{}
)

func guardFor(userID uint) *flow.Guard {
	guardsMu.Lock()
	defer guardsMu.Unlock()
	g, ok := guards[userID]
	if !ok {
		g = flow.NewGuard(func() string { return flowCtl.SnapshotData(userID) })
		guards[userID] = g
	}
	return g
}

func dropGuard(userID uint) {
	guardsMu.Lock()
	defer guardsMu.Unlock()
	delete(guards, userID)
}

// openSession resolves the authenticated user, their role and profile, and
// opens (or resumes) the onboarding session. Re-entrant opens never discard
// in-progress data.
func openSession(c *gin.Context) (*models.User, *models.Profile, flow.SessionView, bool) {
	user, ok := getUserFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return nil, nil, flow.SessionView{}, false
	}
	roleName := "rider"
	if v, exists := c.Get("role"); exists {
		if s, ok := v.(string); ok && s != "" {
			roleName = s
		}
	}
	var profile models.Profile
	if err := db.Where("user_id = ?", user.ID).First(&profile).Error; err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "profile missing"})
		return nil, nil, flow.SessionView{}, false
	}
	view := flowCtl.StartSession(user.ID, roleName)
	guardFor(user.ID)
	return user, &profile, view, true
}

func getOnboardingHandler(c *gin.Context) {
	_, _, view, ok := openSession(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, view)
}

func updateOnboardingDataHandler(c *gin.Context) {
	user, _, _, ok := openSession(c)
	if !ok {
		return
	}
	var patch flow.DataPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := flowCtl.UpdateData(user.ID, patch); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	view, _ := flowCtl.Session(user.ID)
	c.JSON(http.StatusOK, view)
}

// advanceOnboardingHandler runs one "continue" press. A gate rejection of the
// next step is the normal validation failure: the reason is returned and
// nothing moves. The controller's internal recovery path only fires when data
// regressed out-of-band.
func advanceOnboardingHandler(c *gin.Context) {
	user, _, view, ok := openSession(c)
	if !ok {
		return
	}
	next, has, err := flowCtl.NextStep(user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if has {
		allowed, reason, err := flowCtl.CanProceedToStep(user.ID, next)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if !allowed {
			c.JSON(http.StatusConflict, gin.H{"error": "step not satisfied", "reason": reason, "step": view.CurrentStep})
			return
		}
	}
	result, err := flowCtl.Advance(user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if result.Finalized {
		dropGuard(user.ID)
		c.JSON(http.StatusOK, gin.H{"finalized": true})
		return
	}
	// pin requirements when the session reaches the upload step
	if result.Step == flow.StepDocumentUpload {
		if _, _, err := ensureRequirements(user.ID, view.Role); err != nil {
			log.Printf("requirements load failed for user=%d: %v", user.ID, err)
		}
	}
	c.JSON(http.StatusOK, gin.H{"step": result.Step, "recovered": result.Recovered})
}

func backOnboardingHandler(c *gin.Context) {
	user, _, _, ok := openSession(c)
	if !ok {
		return
	}
	prev, has, err := flowCtl.PreviousStep(user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !has {
		c.JSON(http.StatusConflict, gin.H{"error": "already at the first step"})
		return
	}
	// moving backwards is always allowed; data is retained
	if err := flowCtl.SetCurrentStep(user.ID, prev); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"step": prev})
}

func gotoOnboardingHandler(c *gin.Context) {
	user, _, _, ok := openSession(c)
	if !ok {
		return
	}
	var req struct {
		Step flow.Step `json:"step" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	allowed, reason, err := flowCtl.CanProceedToStep(user.ID, req.Step)
	if err != nil {
		if errors.Is(err, flow.ErrUnknownStep) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown step"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !allowed {
		c.JSON(http.StatusConflict, gin.H{"error": "step not reachable", "reason": reason})
		return
	}
	if err := flowCtl.SetCurrentStep(user.ID, req.Step); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"step": req.Step})
}

// ensureRequirements loads the configured requirement set for the role and
// pins it on the session. A fetch failure falls back to the built-in defaults
// so the flow is never blocked by a configuration outage. The bool reports
// whether defaults were substituted.
func ensureRequirements(userID uint, role string) ([]models.DocumentTypeRequirement, bool, error) {
	if view, err := flowCtl.Session(userID); err == nil && len(view.Requirements) > 0 {
		return view.Requirements, false, nil
	}
	usedDefaults := false
	var all []models.DocumentTypeRequirement
	if err := db.Order("id asc").Find(&all).Error; err != nil {
		log.Printf("requirement fetch failed, using defaults: %v", err)
		all = models.DefaultRequirements(role)
		usedDefaults = true
	}
	var reqs []models.DocumentTypeRequirement
	for _, r := range all {
		if r.ForRole(role) {
			reqs = append(reqs, r)
		}
	}
	if len(reqs) == 0 && !usedDefaults {
		// configured set exists but matched nothing; fall back rather than
		// presenting an empty screen
		reqs = models.DefaultRequirements(role)
		usedDefaults = true
	}
	if len(reqs) == 0 {
		return nil, usedDefaults, errors.New("no document requirements available")
	}
	if err := flowCtl.SetRequirements(userID, reqs); err != nil {
		return nil, usedDefaults, err
	}
	return reqs, usedDefaults, nil
}

func requirementsHandler(c *gin.Context) {
	user, _, view, ok := openSession(c)
	if !ok {
		return
	}
	reqs, usedDefaults, err := ensureRequirements(user.ID, view.Role)
	if err != nil {
		// distinct from "no documents required": the client offers a retry
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "requirements unavailable", "retryable": true})
		return
	}
	// staged_satisfied tells the client whether every required type has at
	// least one captured (not yet confirmed) asset
	stagedOK := false
	if staging, serr := flowCtl.Staging(user.ID); serr == nil {
		stagedOK = staging.Satisfies(reqs)
	}
	c.JSON(http.StatusOK, gin.H{"requirements": reqs, "defaults": usedDefaults, "staged_satisfied": stagedOK})
}

// stageDocumentHandler receives a captured asset and stages it locally. No
// network-facing state changes; staged work survives back/forward navigation.
func stageDocumentHandler(c *gin.Context) {
	user, _, _, ok := openSession(c)
	if !ok {
		return
	}
	docType := models.DocumentType(c.PostForm("type"))
	if !models.KnownDocumentType(docType) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown document type"})
		return
	}
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file missing"})
		return
	}
	if file.Size > 10*1024*1024 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file too large (max 10MB)"})
		return
	}
	stagingDir := filepath.Join(uploadBaseDir(), "staging", strconv.FormatUint(uint64(user.ID), 10))
	if err := os.MkdirAll(stagingDir, 0755); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "mkdir failed"})
		return
	}
	dest := filepath.Join(stagingDir, time.Now().Format("20060102T150405")+"_"+filepath.Base(file.Filename))
	if err := c.SaveUploadedFile(file, dest); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "save failed"})
		return
	}
	staging, err := flowCtl.Staging(user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	staging.Add(docType, dest)
	c.JSON(http.StatusOK, gin.H{"type": docType, "staged": len(staging.References(docType))})
}

func unstageDocumentHandler(c *gin.Context) {
	user, _, _, ok := openSession(c)
	if !ok {
		return
	}
	docType := models.DocumentType(c.Param("type"))
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad index"})
		return
	}
	staging, serr := flowCtl.Staging(user.ID)
	if serr != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": serr.Error()})
		return
	}
	refs := staging.References(docType)
	if err := staging.Remove(docType, index); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if index >= 0 && index < len(refs) {
		_ = os.Remove(refs[index])
	}
	c.JSON(http.StatusOK, gin.H{"type": docType, "staged": len(staging.References(docType))})
}

// uploadDocumentHandler confirms one staged capture: runs the upload task,
// persists the record, commits it into the session, and unstages the asset.
// A failed transfer is surfaced as-is; retry is the user re-initiating.
func uploadDocumentHandler(c *gin.Context) {
	user, profile, _, ok := openSession(c)
	if !ok {
		return
	}
	var req struct {
		Type  models.DocumentType `json:"type" binding:"required"`
		Index int                 `json:"index"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	staging, serr := flowCtl.Staging(user.ID)
	if serr != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": serr.Error()})
		return
	}
	refs := staging.References(req.Type)
	if req.Index < 0 || req.Index >= len(refs) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no staged asset at that index"})
		return
	}
	assetPath := refs[req.Index]

	rec, err := docRunner.Upload(c.Request.Context(), profile.ID, req.Type, assetPath, func(pct int) {
		log.Printf("upload progress user=%d type=%s %d%%", user.ID, req.Type, pct)
	})
	if err != nil {
		// terminal per attempt; the user re-captures if they still want it
		c.JSON(http.StatusBadGateway, gin.H{"error": "upload failed", "detail": err.Error()})
		return
	}
	if err := db.Create(&rec).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db save failed"})
		return
	}
	if err := flowCtl.AppendDocument(user.ID, rec); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	// unstage by ref, not index: concurrent stage/unstage calls shift indices
	if err := staging.RemoveRef(req.Type, assetPath); err == nil {
		_ = os.Remove(assetPath)
	}
	c.JSON(http.StatusOK, rec)
}

func listDocumentsHandler(c *gin.Context) {
	_, profile, _, ok := openSession(c)
	if !ok {
		return
	}
	var docs []models.DocumentRecord
	if err := db.Where("profile_id = ?", profile.ID).Order("id desc").Limit(100).Find(&docs).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, docs)
}

// submitVerificationHandler finalizes the review step: gate must accept the
// full data set, the profile fields are committed, and the bundle goes to the
// review backend with bounded retry. Idempotent at the data layer.
func submitVerificationHandler(c *gin.Context) {
	user, profile, view, ok := openSession(c)
	if !ok {
		return
	}
	allowed, reason, err := flowCtl.CanProceedToStep(user.ID, flow.StepComplete)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !allowed {
		c.JSON(http.StatusConflict, gin.H{"error": "submission not ready", "reason": reason})
		return
	}
	data := view.Data

	// commit profile fields; re-running with unchanged data writes the same values
	profile.FullName = data.FullName
	profile.Phone = data.Phone
	profile.DateOfBirth = data.DateOfBirth
	profile.Address = data.Address

	docIDs := make([]string, 0, len(data.Documents))
	for _, d := range data.Documents {
		docIDs = append(docIDs, d.RecordID)
	}
	ack, err := reviewClient.SubmitVerification(c.Request.Context(), review.Submission{
		ProfileID:       profile.ID,
		FullName:        data.FullName,
		Phone:           data.Phone,
		DateOfBirth:     data.DateOfBirth,
		Address:         data.Address,
		DocumentIDs:     docIDs,
		TermsAccepted:   data.HasAcceptedTerms,
		PrivacyAccepted: data.HasAcceptedPrivacy,
	})
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "submission failed", "detail": err.Error()})
		return
	}
	switch ack.Status {
	case review.StatusQueued:
		profile.VerificationStatus = "queued"
	default:
		profile.VerificationStatus = "pending"
	}
	profile.SubmissionRef = ack.Reference
	if err := db.Save(profile).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "profile update failed"})
		return
	}

	guardFor(user.ID).MarkAsSaved()
	c.JSON(http.StatusOK, gin.H{"reference": ack.Reference, "status": ack.Status, "documents": len(docIDs)})
}

func unsavedChangesHandler(c *gin.Context) {
	user, _, _, ok := openSession(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"unsaved": guardFor(user.ID).HasUnsavedChanges()})
}

// leaveOnboardingHandler routes a navigation-away intent through the guard.
// "discard" abandons the session, "save" keeps the draft and proceeds, "stay"
// does nothing.
func leaveOnboardingHandler(c *gin.Context) {
	user, _, _, ok := openSession(c)
	if !ok {
		return
	}
	var req struct {
		Decision string `json:"decision" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	var decision flow.Decision
	switch req.Decision {
	case "discard":
		decision = flow.DecisionDiscard
	case "save":
		decision = flow.DecisionSave
	case "stay":
		decision = flow.DecisionStay
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "decision must be discard, save or stay"})
		return
	}

	outcome := "stayed"
	g := guardFor(user.ID)
	g.ConfirmNavigation(
		func() flow.Decision { return decision },
		func() {
			outcome = "left"
			if decision == flow.DecisionDiscard {
				if err := flowCtl.Abandon(user.ID); err == nil {
					dropGuard(user.ID)
					outcome = "abandoned"
				}
			}
		},
		func() {
			// draft already persists on every mutation; saving here just
			// commits the guard snapshot
		},
		nil,
	)
	c.JSON(http.StatusOK, gin.H{"outcome": outcome})
}
