package store

import (
	"time"

	"github.com/google/uuid"
)

// Admin is an administrator account. Email is the primary key.
type Admin struct {
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	DisplayName  string    `json:"display_name"`
	Verified     bool      `json:"verified"`
	CreatedAt    time.Time `json:"created_at"`
}

// Student is a campus student record. CampusID is the human-facing numeric
// identifier and carries no uniqueness guarantee; Email is unique
// case-insensitively.
type Student struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	CampusID   int64     `json:"student_id"`
	Department string    `json:"department"`
	Email      string    `json:"email"`
	CreatedAt  time.Time `json:"created_at"`
}

// DepartmentCount is one row of the per-department enrollment breakdown.
type DepartmentCount struct {
	Department string `json:"department"`
	Count      int64  `json:"count"`
}
