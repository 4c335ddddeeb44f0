package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/careintake/intake/internal/platform/llm"
)

// documentInsightsFallback is the built-in instruction used when the
// document_insights template is not available.
const documentInsightsFallback = "Extract clinically relevant findings from this medical document or photo. " +
	"List observations as plain text, one per line."

// Service owns the intake workflow rules: the step gate, the validity
// filter, per-step replace/merge policy, the invalidation cascade, and
// staleness bookkeeping. All session mutations go through a per-session lock
// so concurrent saves cannot interleave read-modify-write cycles.
type Service struct {
	repo    Repository
	llm     llm.Client
	prompts llm.PromptSource
	log     zerolog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewService(repo Repository, client llm.Client, prompts llm.PromptSource, log zerolog.Logger) *Service {
	return &Service{
		repo:    repo,
		llm:     client,
		prompts: prompts,
		log:     log,
		locks:   make(map[string]*sync.Mutex),
	}
}

func (s *Service) sessionLock(id string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.locks[id]
	if !ok {
		m = &sync.Mutex{}
		s.locks[id] = m
	}
	return m
}

// Create starts a new assessment session.
func (s *Service) Create(ctx context.Context) (*Session, error) {
	sess := NewSession(uuid.NewString())
	if err := s.repo.Put(ctx, sess); err != nil {
		return nil, err
	}
	s.log.Info().Str("session_id", sess.ID).Msg("session created")
	return sess, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Session, error) {
	return s.repo.Get(ctx, id)
}

// Delete removes a session and forgets its lock.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.locks, id)
	s.mu.Unlock()
	return nil
}

// CanAccessStep reports whether the session may read or write step n.
func (s *Service) CanAccessStep(ctx context.Context, sessionID string, step int) (bool, error) {
	if !ValidStep(step) {
		return false, ErrInvalidStep
	}
	sess, err := s.repo.Get(ctx, sessionID)
	if err != nil {
		return false, err
	}
	return sess.CanAccess(step), nil
}

// SaveStep validates, filters, and persists one step's data. Steps 1-6
// replace their containers wholesale; step 7 merges, because different
// sub-flows each contribute a subset of its fields. Editing a step below the
// current completion marker clears everything downstream.
func (s *Service) SaveStep(ctx context.Context, sessionID string, step int, formData map[string]interface{}, aiData map[string]string, files map[string]FileMeta) error {
	if !ValidStep(step) {
		return ErrInvalidStep
	}

	lock := s.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	sess, err := s.repo.Get(ctx, sessionID)
	if errors.Is(err, ErrNotFound) {
		sess = NewSession(sessionID)
	} else if err != nil {
		return err
	}
	if !sess.CanAccess(step) {
		return ErrStepLocked
	}

	filtered := FilterFormData(formData)
	now := time.Now().UTC()

	existing := sess.Steps[step]
	isEdit := !existing.IsEmpty()

	if isEdit && sess.StepCompleted > step {
		s.invalidateAfter(sess, step)
	}

	rec := sess.Step(step)
	if step == LastStep {
		for k, v := range filtered {
			rec.FormData[k] = v
		}
		for k, v := range aiData {
			rec.AIData[k] = v
		}
		for k, v := range files {
			rec.Files[k] = v
		}
	} else {
		rec.FormData = filtered
		rec.AIData = aiData
		if rec.AIData == nil {
			rec.AIData = make(map[string]string)
		}
		rec.Files = files
		if rec.Files == nil {
			rec.Files = make(map[string]FileMeta)
		}
	}
	rec.Timestamp = now
	rec.DataSource = "user_form"
	rec.Completed = true

	sess.Completion[step] = StepCompletion{
		Completed:  true,
		Timestamp:  now,
		FieldCount: len(rec.FormData),
		AICount:    len(rec.AIData),
		FileCount:  len(rec.Files),
	}
	if step > sess.StepCompleted {
		sess.StepCompleted = step
	}
	sess.DataTimestamps[step] = now

	if err := s.repo.Put(ctx, sess); err != nil {
		return fmt.Errorf("save step %d: %w", step, err)
	}
	s.log.Debug().
		Str("session_id", sessionID).
		Int("step", step).
		Int("fields", len(rec.FormData)).
		Bool("edit", isEdit).
		Msg("step saved")
	return nil
}

// invalidateAfter clears every step record strictly after the edited step
// and rewinds the completion marker to it. Downstream AI conclusions can
// never silently reference form data that has since changed.
func (s *Service) invalidateAfter(sess *Session, fromStep int) {
	for n := fromStep + 1; n <= LastStep; n++ {
		delete(sess.Steps, n)
		delete(sess.Completion, n)
		delete(sess.DataTimestamps, n)
		delete(sess.LLMTimestamps, n)
	}
	sess.StepCompleted = fromStep
	s.log.Info().
		Str("session_id", sess.ID).
		Int("from_step", fromStep).
		Msg("downstream steps invalidated")
}

// GetStep returns the record for a step, or an empty record if nothing has
// been saved yet. The gate applies to reads as well as writes.
func (s *Service) GetStep(ctx context.Context, sessionID string, step int) (*StepRecord, error) {
	if !ValidStep(step) {
		return nil, ErrInvalidStep
	}
	sess, err := s.repo.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !sess.CanAccess(step) {
		return nil, ErrStepLocked
	}
	if rec, ok := sess.Steps[step]; ok && rec != nil {
		return rec, nil
	}
	return &StepRecord{
		StepName: StepName(step),
		FormData: map[string]string{},
		AIData:   map[string]string{},
		Files:    map[string]FileMeta{},
	}, nil
}

// NeedsRegeneration reports whether step n's cached AI output is stale:
// either no generation has happened yet, or some prerequisite step's form
// data changed after the last generation.
func (s *Service) NeedsRegeneration(ctx context.Context, sessionID string, step int) (bool, error) {
	if !ValidStep(step) {
		return false, ErrInvalidStep
	}
	sess, err := s.repo.Get(ctx, sessionID)
	if err != nil {
		return false, err
	}
	return needsRegeneration(sess, step), nil
}

func needsRegeneration(sess *Session, step int) bool {
	genAt, ok := sess.LLMTimestamps[step]
	if !ok {
		return true
	}
	for _, pre := range Prerequisites(step) {
		if dataAt, ok := sess.DataTimestamps[pre]; ok && dataAt.After(genAt) {
			return true
		}
	}
	return false
}

// MarkGenerated stores freshly generated AI output for a step and stamps its
// generation time, which is what NeedsRegeneration compares against.
func (s *Service) MarkGenerated(ctx context.Context, sessionID string, step int, aiData map[string]string) error {
	if !ValidStep(step) {
		return ErrInvalidStep
	}

	lock := s.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	sess, err := s.repo.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	rec := sess.Step(step)
	for k, v := range aiData {
		rec.AIData[k] = v
	}
	rec.DataSource = "ai_generated"
	sess.LLMTimestamps[step] = time.Now().UTC()
	return s.repo.Put(ctx, sess)
}

// AnalyzeDocument sends an uploaded document image to the reasoning service
// and stores the extracted insights on the document-upload step. The raw
// image is never persisted.
func (s *Service) AnalyzeDocument(ctx context.Context, sessionID, fileName, imageDataURL string) (string, error) {
	sess, err := s.repo.Get(ctx, sessionID)
	if err != nil {
		return "", err
	}
	if !sess.CanAccess(3) {
		return "", ErrStepLocked
	}

	insights, err := s.llm.CompleteWithImage(ctx,
		s.prompts.Prompt(ctx, "document_insights", documentInsightsFallback), imageDataURL)
	if err != nil {
		return "", fmt.Errorf("document analysis: %w", err)
	}

	lock := s.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	sess, err = s.repo.Get(ctx, sessionID)
	if err != nil {
		return "", err
	}
	rec := sess.Step(3)
	rec.AIData["insights_"+fileName] = insights
	sess.LLMTimestamps[3] = time.Now().UTC()
	if err := s.repo.Put(ctx, sess); err != nil {
		return "", err
	}
	return insights, nil
}
