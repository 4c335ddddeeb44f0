package cases

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/careintake/intake/internal/domain/session"
)

// Service is the submission gate. A case is created exactly once per
// (session, patient contact); repeat submissions return the existing case
// number.
type Service struct {
	repo     Repository
	sessions *session.Service
	log      zerolog.Logger
}

func NewService(repo Repository, sessions *session.Service, log zerolog.Logger) *Service {
	return &Service{repo: repo, sessions: sessions, log: log}
}

// isComplete applies the completion gate: the status must carry a completion
// marker and no in-progress marker. Intermediate partial saves of the final
// step never pass this.
func isComplete(status string) bool {
	s := strings.ToLower(status)
	if strings.Contains(s, "in_progress") {
		return false
	}
	return strings.Contains(s, "completed") || strings.Contains(s, "finished")
}

func patientContact(rec *session.StepRecord) string {
	for _, key := range []string{"patient_email", "patient_phone", "patient_contact"} {
		if v := rec.FormData[key]; v != "" {
			return v
		}
	}
	return ""
}

// patientSummary assembles the fallback demographic summary from the early
// steps, used when the final step carries no prepared summary of its own.
func patientSummary(sess *session.Session) map[string]string {
	summary := make(map[string]string)
	pick := func(step int, keys ...string) {
		rec, ok := sess.Steps[step]
		if !ok || rec == nil {
			return
		}
		for _, k := range keys {
			if v := rec.FormData[k]; v != "" {
				summary[k] = v
			}
		}
	}
	pick(1, "first_name", "last_name", "gender", "date_of_birth", "patient_email", "patient_phone")
	pick(2, "temperature", "temperature_unit", "oxygen_saturation", "blood_pressure")
	if rec, ok := sess.Steps[1]; ok && rec != nil {
		if doc, found := DoctorByID(rec.FormData["referring_doctor_id"]); found {
			summary["referring_doctor"] = doc.Name
			summary["referring_clinic"] = doc.Clinic
		}
	}
	return summary
}

func (s *Service) nextCaseNumber(ctx context.Context, year int) string {
	max, err := s.repo.MaxNumberForYear(ctx, year)
	if err != nil {
		// Never block submission on a numbering lookup; fall back to a
		// random unique suffix.
		suffix := strings.ToUpper(uuid.NewString()[:8])
		s.log.Warn().Err(err).Str("suffix", suffix).Msg("case number lookup failed, using random suffix")
		return fmt.Sprintf("CASE-%d-%s", year, suffix)
	}
	return fmt.Sprintf("CASE-%d-%04d", year, max+1)
}

type caseSnapshot struct {
	FinalStep      *session.StepRecord `json:"final_step"`
	PatientSummary map[string]string   `json:"patient_summary"`
	SubmittedAt    time.Time           `json:"submitted_at"`
}

// Submit performs the one-time write of a completed assessment. Idempotent:
// a second call for the same session and contact returns the first call's
// case number.
func (s *Service) Submit(ctx context.Context, sessionID string) (string, error) {
	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return "", err
	}
	rec, ok := sess.Steps[session.LastStep]
	if !ok || rec.IsEmpty() {
		return "", ErrNotComplete
	}
	if !isComplete(rec.FormData["completion_status"]) {
		return "", ErrNotComplete
	}
	contact := patientContact(rec)
	if contact == "" {
		return "", ErrNoContact
	}

	if existing, err := s.repo.FindBySessionContact(ctx, sessionID, contact); err == nil {
		s.log.Info().
			Str("session_id", sessionID).
			Str("case_number", existing.CaseNumber).
			Msg("duplicate submission, returning existing case")
		return existing.CaseNumber, nil
	} else if !errors.Is(err, ErrNotFound) {
		return "", err
	}

	details, err := json.Marshal(caseSnapshot{
		FinalStep:      rec,
		PatientSummary: patientSummary(sess),
		SubmittedAt:    time.Now().UTC(),
	})
	if err != nil {
		return "", err
	}

	c := &Case{
		CaseNumber:     s.nextCaseNumber(ctx, time.Now().UTC().Year()),
		SessionID:      sessionID,
		PatientContact: contact,
		Details:        details,
		Status:         "pending_review",
	}
	err = s.repo.Create(ctx, c)
	if errors.Is(err, ErrNumberTaken) {
		// Another session grabbed the same number between the lookup and
		// the insert. Renumber and try once more.
		s.log.Warn().
			Str("session_id", sessionID).
			Str("case_number", c.CaseNumber).
			Msg("case number collision, renumbering")
		c.CaseNumber = s.nextCaseNumber(ctx, time.Now().UTC().Year())
		err = s.repo.Create(ctx, c)
	}
	if err != nil {
		if errors.Is(err, ErrDuplicate) {
			// Lost the race to a concurrent submit; the winner's case is
			// the canonical one.
			if existing, ferr := s.repo.FindBySessionContact(ctx, sessionID, contact); ferr == nil {
				return existing.CaseNumber, nil
			}
		}
		return "", fmt.Errorf("case write failed: %w", err)
	}

	s.log.Info().
		Str("session_id", sessionID).
		Str("case_number", c.CaseNumber).
		Msg("case submitted")
	return c.CaseNumber, nil
}

func (s *Service) Get(ctx context.Context, caseNumber string) (*Case, error) {
	return s.repo.GetByNumber(ctx, caseNumber)
}

func (s *Service) List(ctx context.Context, status string, limit, offset int) ([]*Case, int, error) {
	if status != "" && !ValidStatus(status) {
		return nil, 0, fmt.Errorf("unknown status %q", status)
	}
	return s.repo.List(ctx, status, limit, offset)
}

// Review updates a submitted case's status and feedback.
func (s *Service) Review(ctx context.Context, caseNumber, status, feedback string) error {
	if !ValidStatus(status) {
		return fmt.Errorf("unknown status %q", status)
	}
	return s.repo.UpdateReview(ctx, caseNumber, status, feedback)
}
