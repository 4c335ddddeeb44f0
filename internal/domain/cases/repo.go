package cases

import "context"

// Repository persists submitted cases in the relational store.
type Repository interface {
	Create(ctx context.Context, c *Case) error
	GetByNumber(ctx context.Context, caseNumber string) (*Case, error)
	// FindBySessionContact is the duplicate index lookup: at most one case
	// exists per (session_id, patient_contact) pair.
	FindBySessionContact(ctx context.Context, sessionID, patientContact string) (*Case, error)
	// MaxNumberForYear returns the highest numeric case-number suffix for a
	// year, ignoring legacy non-numeric suffixes. Zero when none exist.
	MaxNumberForYear(ctx context.Context, year int) (int, error)
	List(ctx context.Context, status string, limit, offset int) ([]*Case, int, error)
	UpdateReview(ctx context.Context, caseNumber, status, feedback string) error
}
