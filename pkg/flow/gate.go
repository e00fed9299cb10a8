package flow

import (
	"regexp"
	"time"

	"github.com/go-playground/validator/v10"

	"rideon/models"
)

// Gate is the pure predicate layer deciding whether collected data satisfies a
// step's exit criteria. No side effects, no I/O.
type Gate struct {
	validate *validator.Validate
}

// lenient: optional +, 7-15 digits with spaces/dashes allowed
var phoneRE = regexp.MustCompile(`^\+?[0-9][0-9 \-]{5,18}[0-9]$`)

func NewGate() *Gate {
	return &Gate{validate: validator.New()}
}

// profileFields mirrors the profile_setup inputs for struct validation.
type profileFields struct {
	FullName string `validate:"required,min=2,max=255"`
	Address  string `validate:"required,min=8,max=512"`
}

// IsStepSatisfied reports whether data meets the step's own criteria.
// Requirements are only consulted for the document steps.
func (g *Gate) IsStepSatisfied(step Step, data CollectedData, reqs []models.DocumentTypeRequirement) bool {
	ok, _ := g.Explain(step, data, reqs)
	return ok
}

// EntryAllowed decides whether the session may move onto step: every step
// earlier in the flow order must have its criteria satisfied by the current
// data. The first step has no prerequisites. The reason names the first unmet
// criterion so the presentation layer can explain a disabled continue action.
func (g *Gate) EntryAllowed(step Step, data CollectedData, reqs []models.DocumentTypeRequirement) (bool, string) {
	i := indexOf(step)
	if i < 0 {
		return false, "unknown step"
	}
	for _, earlier := range stepOrder[:i] {
		if ok, reason := g.Explain(earlier, data, reqs); !ok {
			return false, reason
		}
	}
	return true, ""
}

// Explain evaluates the step criteria in order and returns the first unmet
// criterion as a human-readable reason, for display by the presentation layer.
func (g *Gate) Explain(step Step, data CollectedData, reqs []models.DocumentTypeRequirement) (bool, string) {
	switch step {
	case StepWelcome, StepComplete:
		return true, ""
	case StepProfileSetup:
		return g.explainProfile(data)
	case StepKYCIntro:
		if !data.HasAcceptedTerms {
			return false, "terms of service not accepted yet"
		}
		if !data.HasAcceptedPrivacy {
			return false, "privacy policy not accepted yet"
		}
		return true, ""
	case StepDocumentUpload:
		return explainDocuments(data, reqs)
	case StepDocumentReview:
		if ok, reason := explainDocuments(data, reqs); !ok {
			return false, reason
		}
		if !data.HasAcceptedTerms || !data.HasAcceptedPrivacy {
			return false, "terms and privacy consent required before review"
		}
		return true, ""
	}
	return false, "unknown step"
}

func (g *Gate) explainProfile(data CollectedData) (bool, string) {
	if err := g.validate.Var(data.FullName, "required,min=2,max=255"); err != nil {
		return false, "full name is missing or too short"
	}
	if data.Phone == "" {
		return false, "phone number is missing"
	}
	if !phoneRE.MatchString(data.Phone) {
		return false, "phone number does not look valid"
	}
	if data.DateOfBirth == "" {
		return false, "date of birth is missing"
	}
	dob, err := time.Parse("2006-01-02", data.DateOfBirth)
	if err != nil {
		return false, "date of birth must be a valid date (YYYY-MM-DD)"
	}
	if dob.After(time.Now()) {
		return false, "date of birth is in the future"
	}
	if err := g.validate.Struct(profileFields{FullName: data.FullName, Address: data.Address}); err != nil {
		return false, "address is missing or too short"
	}
	return true, ""
}

// explainDocuments checks that every required document type has at least one
// confirmed DocumentRecord in the collected data.
func explainDocuments(data CollectedData, reqs []models.DocumentTypeRequirement) (bool, string) {
	byType := map[models.DocumentType]int{}
	for _, d := range data.Documents {
		byType[d.Type]++
	}
	for _, r := range reqs {
		if !r.Required {
			continue
		}
		if byType[r.Type] == 0 {
			return false, "missing required document: " + r.Title
		}
	}
	return true, ""
}
