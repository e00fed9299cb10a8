package models

import (
	"time"
)

// DocumentType enumerates the identity document kinds the verification flow
// accepts. Values are stored as-is in the DB and in JSON payloads.
type DocumentType string

const (
	DocGovernmentID   DocumentType = "government_id"
	DocPassport       DocumentType = "passport"
	DocDriverLicense  DocumentType = "driver_license"
	DocSelfie         DocumentType = "selfie"
	DocProofOfAddress DocumentType = "proof_of_address"
)

// KnownDocumentType reports whether t is one of the accepted document kinds.
func KnownDocumentType(t DocumentType) bool {
	switch t {
	case DocGovernmentID, DocPassport, DocDriverLicense, DocSelfie, DocProofOfAddress:
		return true
	}
	return false
}

// DocumentStatus is the review state of an uploaded document. Transitions to
// approved/rejected happen only through the admin review endpoints.
type DocumentStatus string

const (
	DocStatusPending  DocumentStatus = "pending"
	DocStatusApproved DocumentStatus = "approved"
	DocStatusRejected DocumentStatus = "rejected"
)

// DocumentRecord represents a confirmed identity-document upload belonging to
// a profile. Created once by the upload task runner; the staging store never
// mutates it afterwards.
type DocumentRecord struct {
	ID        uint `gorm:"primaryKey" json:"-"`
	CreatedAt time.Time
	UpdatedAt time.Time
	// RecordID is the opaque stable identifier handed to clients (UUID).
	RecordID    string         `gorm:"size:64;uniqueIndex;not null" json:"id"`
	ProfileID   uint           `gorm:"index;not null" json:"-"`
	Profile     Profile        `gorm:"foreignKey:ProfileID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	Type        DocumentType   `gorm:"size:32;not null;index" json:"type"`
	FileName    string         `gorm:"size:255;not null" json:"file_name"`
	StorePath   string         `gorm:"column:store_path;size:512" json:"store_path"` // public relative path (e.g. public/docs/xxx.jpg)
	ContentType string         `gorm:"size:128" json:"content_type"`
	Status      DocumentStatus `gorm:"size:16;default:pending;index" json:"status"`
	UploadedAt  time.Time      `gorm:"not null" json:"uploaded_at"`
	ReviewedAt  *time.Time     `json:"reviewed_at,omitempty"`
	ReviewedBy  *uint          `gorm:"index" json:"-"`
	// RejectionReason is set by an administrator when Status becomes rejected.
	RejectionReason string `gorm:"size:255" json:"rejection_reason,omitempty"`
	// Legibility is the OCR-derived readability score in [0,1]; 0 when the
	// scan was skipped or failed.
	Legibility float64 `json:"legibility"`
	// Mark document as failed for legibility scanning (do not delete record so admin can review)
	ScanFailed       bool   `gorm:"default:false;index" json:"-"`
	ScanFailedReason string `gorm:"size:255" json:"-"`
}
