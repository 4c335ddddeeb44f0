// Package session implements the step-gated intake workflow: the per-session
// record of the seven intake steps, the prerequisite gate, the downstream
// invalidation cascade, and staleness tracking for cached AI output.
package session

import (
	"errors"
	"time"
)

const (
	FirstStep = 1
	LastStep  = 7
)

var (
	ErrNotFound    = errors.New("session not found")
	ErrInvalidStep = errors.New("step number out of range")
	ErrStepLocked  = errors.New("step prerequisites not met")
)

// FileMeta describes an uploaded document. Raw bytes are never stored on the
// session record.
type FileMeta struct {
	FileName    string    `json:"file_name"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	UploadedAt  time.Time `json:"uploaded_at"`
}

// StepRecord holds everything persisted for one step of one session.
type StepRecord struct {
	StepName   string              `json:"step_name"`
	FormData   map[string]string   `json:"form_data"`
	AIData     map[string]string   `json:"ai_generated_data"`
	Files      map[string]FileMeta `json:"files_uploaded"`
	Timestamp  time.Time           `json:"timestamp"`
	DataSource string              `json:"data_source"`
	Completed  bool                `json:"step_completed"`
}

// IsEmpty reports whether the record carries no data at all.
func (r *StepRecord) IsEmpty() bool {
	if r == nil {
		return true
	}
	return len(r.FormData) == 0 && len(r.AIData) == 0 && len(r.Files) == 0
}

// StepCompletion is the per-step completion summary kept alongside the
// records themselves.
type StepCompletion struct {
	Completed  bool      `json:"completed"`
	Timestamp  time.Time `json:"timestamp"`
	FieldCount int       `json:"field_count"`
	AICount    int       `json:"ai_count"`
	FileCount  int       `json:"file_count"`
}

// Session is the single mutable document for one active assessment.
// StepCompleted is the highest fully saved step and only moves backwards
// through the invalidation cascade.
type Session struct {
	ID             string                 `json:"session_id"`
	CreatedAt      time.Time              `json:"created_at"`
	StepCompleted  int                    `json:"step_completed"`
	Steps          map[int]*StepRecord    `json:"steps"`
	Completion     map[int]StepCompletion `json:"step_completion_status"`
	DataTimestamps map[int]time.Time      `json:"data_timestamps"`
	LLMTimestamps  map[int]time.Time      `json:"llm_timestamps"`
}

func NewSession(id string) *Session {
	return &Session{
		ID:             id,
		CreatedAt:      time.Now().UTC(),
		Steps:          make(map[int]*StepRecord),
		Completion:     make(map[int]StepCompletion),
		DataTimestamps: make(map[int]time.Time),
		LLMTimestamps:  make(map[int]time.Time),
	}
}

// Step returns the record for a step, initializing an empty one if needed.
func (s *Session) Step(n int) *StepRecord {
	rec, ok := s.Steps[n]
	if !ok || rec == nil {
		rec = &StepRecord{
			StepName: StepName(n),
			FormData: make(map[string]string),
			AIData:   make(map[string]string),
			Files:    make(map[string]FileMeta),
		}
		s.Steps[n] = rec
	}
	return rec
}

// CanAccess reports whether step n may be read or written. A step is
// reachable only once every earlier step has been completed.
func (s *Session) CanAccess(n int) bool {
	if n < FirstStep || n > LastStep {
		return false
	}
	return s.StepCompleted >= n-1
}

// ValidStep reports whether n is a real step number.
func ValidStep(n int) bool {
	return n >= FirstStep && n <= LastStep
}
