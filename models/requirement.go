package models

import "time"

// DocumentTypeRequirement is the externally-supplied configuration describing
// which document types a role must submit. Seeded into the DB and fetched once
// at entry to the document_upload step; immutable for the duration of a session.
type DocumentTypeRequirement struct {
	ID          uint `gorm:"primaryKey" json:"-"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Type        DocumentType `gorm:"size:32;uniqueIndex;not null" json:"type"`
	Required    bool         `gorm:"default:false" json:"required"`
	Title       string       `gorm:"size:255;not null" json:"title"`
	Description string       `gorm:"size:512" json:"description"`
	// Examples and RequiredForRoles are small ordered lists; stored as JSON columns.
	Examples         []string `gorm:"serializer:json" json:"examples"`
	RequiredForRoles []string `gorm:"serializer:json" json:"required_for_roles"`
}

// ForRole reports whether the requirement applies to the given role name.
// An empty RequiredForRoles list means the requirement applies to everyone.
func (r DocumentTypeRequirement) ForRole(role string) bool {
	if len(r.RequiredForRoles) == 0 {
		return true
	}
	for _, rr := range r.RequiredForRoles {
		if rr == role {
			return true
		}
	}
	return false
}

// DefaultRequirements is the built-in fallback used when the configured
// requirement set cannot be fetched. It covers the baseline types every role
// must provide so the flow is never fully blocked by a configuration outage.
func DefaultRequirements(role string) []DocumentTypeRequirement {
	defaults := []DocumentTypeRequirement{
		{
			Type:        DocGovernmentID,
			Required:    true,
			Title:       "Government-issued ID",
			Description: "A clear photo of a valid government-issued identity card.",
			Examples:    []string{"National ID card", "Residence permit"},
		},
		{
			Type:        DocSelfie,
			Required:    true,
			Title:       "Selfie",
			Description: "A photo of yourself holding your ID next to your face.",
			Examples:    []string{"Well-lit selfie, no sunglasses"},
		},
	}
	if role == "driver" {
		defaults = append(defaults, DocumentTypeRequirement{
			Type:             DocDriverLicense,
			Required:         true,
			Title:            "Driver license",
			Description:      "Both the front of a valid driver license.",
			Examples:         []string{"SIM A", "SIM C"},
			RequiredForRoles: []string{"driver"},
		})
	}
	return defaults
}
