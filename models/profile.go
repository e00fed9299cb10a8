package models

import "time"

// Profile represents a user's profile (one-to-one with User). The onboarding
// flow fills these fields during the profile_setup step and they are committed
// here on submit.
type Profile struct {
	ID        uint `gorm:"primaryKey"`
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time `gorm:"index"`
	// Active indicates whether the profile is active. Use this for soft-state
	// instead of physically deleting the record. Defaults to true.
	Active      bool   `gorm:"default:true;not null"`
	UserID      uint   `gorm:"uniqueIndex;not null"` // one-to-one relation
	User        User   `gorm:"foreignKey:UserID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	FullName    string `gorm:"size:255;not null"` // mandatory
	Phone       string `gorm:"size:64"`
	DateOfBirth string `gorm:"size:32"` // ISO date, validated by the flow gate before commit
	Address     string `gorm:"size:512"`
	// VerificationStatus tracks the overall KYC outcome: none, pending,
	// queued (submission deferred), approved, rejected.
	VerificationStatus string `gorm:"size:16;default:none"`
	SubmissionRef      string `gorm:"size:64"`
	// Documents is a one-to-many relation from Profile to DocumentRecord
	Documents []DocumentRecord `gorm:"foreignKey:ProfileID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
}
