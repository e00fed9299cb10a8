package flow

// Step identifies one stage of the onboarding wizard.
type Step string

const (
	StepWelcome        Step = "welcome"
	StepProfileSetup   Step = "profile_setup"
	StepKYCIntro       Step = "kyc_intro"
	StepDocumentUpload Step = "document_upload"
	StepDocumentReview Step = "document_review"
	StepComplete       Step = "complete"
)

// stepOrder is the fixed linear order of the wizard. Prerequisites of a step
// are exactly the steps before it in this slice.
var stepOrder = []Step{
	StepWelcome,
	StepProfileSetup,
	StepKYCIntro,
	StepDocumentUpload,
	StepDocumentReview,
	StepComplete,
}

// Steps returns a copy of the fixed step order.
func Steps() []Step {
	out := make([]Step, len(stepOrder))
	copy(out, stepOrder)
	return out
}

// KnownStep reports whether s is a member of the fixed enumeration.
func KnownStep(s Step) bool {
	return indexOf(s) >= 0
}

func indexOf(s Step) int {
	for i, st := range stepOrder {
		if st == s {
			return i
		}
	}
	return -1
}

// nextAfter returns the step immediately following s, or false if s is the
// last step (or unknown).
func nextAfter(s Step) (Step, bool) {
	i := indexOf(s)
	if i < 0 || i >= len(stepOrder)-1 {
		return "", false
	}
	return stepOrder[i+1], true
}

// previousBefore returns the step immediately preceding s, or false if s is
// the first step (or unknown).
func previousBefore(s Step) (Step, bool) {
	i := indexOf(s)
	if i <= 0 {
		return "", false
	}
	return stepOrder[i-1], true
}
