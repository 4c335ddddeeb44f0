// Package cases implements the one-time submission of a completed
// assessment: case number generation, duplicate protection, and the review
// lifecycle of submitted cases.
package cases

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound    = errors.New("case not found")
	ErrDuplicate   = errors.New("case already exists for session and contact")
	ErrNumberTaken = errors.New("case number already taken")
	ErrNotComplete = errors.New("assessment not marked complete")
	ErrNoContact   = errors.New("no patient contact on final step")
)

// Case is the frozen record of one submitted assessment. Only status and
// feedback change after creation, through review.
type Case struct {
	ID             uuid.UUID       `json:"id"`
	CaseNumber     string          `json:"case_number"`
	SessionID      string          `json:"session_id"`
	PatientContact string          `json:"patient_contact"`
	Details        json.RawMessage `json:"details"`
	Status         string          `json:"status"`
	Feedback       string          `json:"feedback,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

var validStatuses = map[string]bool{
	"pending_review": true,
	"under_review":   true,
	"reviewed":       true,
}

// ValidStatus reports whether s is a known review status.
func ValidStatus(s string) bool {
	return validStatuses[s]
}

// ReferringDoctor is one entry of the static referral roster included in
// case snapshots.
type ReferringDoctor struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Specialty string `json:"specialty"`
	Clinic    string `json:"clinic"`
	Email     string `json:"email"`
}
