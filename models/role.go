package models

import "time"

// Role represents user roles with numeric primary key. Riders and drivers go
// through different document requirement sets; administrators review them.
type Role struct {
	ID          uint `gorm:"primaryKey"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Name        string `gorm:"size:32;uniqueIndex;not null"`
	Description string `gorm:"size:255"`
}
