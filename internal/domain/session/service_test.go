package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/careintake/intake/internal/platform/llm"
)

type memRepo struct {
	mu   sync.Mutex
	data map[string]*Session
}

func newMemRepo() *memRepo {
	return &memRepo{data: make(map[string]*Session)}
}

func (m *memRepo) Get(_ context.Context, id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.data[id]
	if !ok {
		return nil, ErrNotFound
	}
	return sess, nil
}

func (m *memRepo) Put(_ context.Context, sess *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[sess.ID] = sess
	return nil
}

func (m *memRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, id)
	return nil
}

type fakeLLM struct {
	reply      string
	err        error
	seenPrompt string
}

func (f *fakeLLM) Complete(context.Context, string, string) (string, error) {
	return f.reply, f.err
}

func (f *fakeLLM) CompleteWithImage(_ context.Context, prompt string, _ string) (string, error) {
	f.seenPrompt = prompt
	return f.reply, f.err
}

// mapPrompts serves edited template text for the names it knows.
type mapPrompts map[string]string

func (p mapPrompts) Prompt(_ context.Context, name, fallback string) string {
	if t, ok := p[name]; ok {
		return t
	}
	return fallback
}

func newTestService(t *testing.T) (*Service, *memRepo) {
	t.Helper()
	repo := newMemRepo()
	svc := NewService(repo, &fakeLLM{reply: "ok"}, llm.StaticPrompts{}, zerolog.Nop())
	return svc, repo
}

// completeSteps saves steps 1..n in order with minimal data.
func completeSteps(t *testing.T, svc *Service, sessionID string, n int) {
	t.Helper()
	for i := 1; i <= n; i++ {
		err := svc.SaveStep(context.Background(), sessionID, i,
			map[string]interface{}{"field": "value"}, nil, nil)
		if err != nil {
			t.Fatalf("save step %d: %v", i, err)
		}
	}
}

func TestSaveStep_GateBlocksSkipping(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	err := svc.SaveStep(ctx, "s1", 3, map[string]interface{}{"x": "y"}, nil, nil)
	if !errors.Is(err, ErrStepLocked) {
		t.Fatalf("expected ErrStepLocked, got %v", err)
	}
}

func TestCanAccessStep(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	completeSteps(t, svc, "s1", 2)

	ok, err := svc.CanAccessStep(ctx, "s1", 3)
	if err != nil || !ok {
		t.Errorf("step 3 should be accessible with step_completed=2 (ok=%v err=%v)", ok, err)
	}
	ok, err = svc.CanAccessStep(ctx, "s1", 4)
	if err != nil || ok {
		t.Errorf("step 4 should be blocked with step_completed=2 (ok=%v err=%v)", ok, err)
	}
	if _, err := svc.CanAccessStep(ctx, "s1", 0); !errors.Is(err, ErrInvalidStep) {
		t.Errorf("step 0 should be invalid, got %v", err)
	}
}

func TestSaveStep_ReplaceForEarlySteps(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	completeSteps(t, svc, "s1", 2)
	err := svc.SaveStep(ctx, "s1", 2,
		map[string]interface{}{"new_field": "v2"}, nil, nil)
	if err != nil {
		t.Fatalf("resave: %v", err)
	}

	sess, _ := repo.Get(ctx, "s1")
	rec := sess.Steps[2]
	if len(rec.FormData) != 1 || rec.FormData["new_field"] != "v2" {
		t.Errorf("steps 1-6 must replace form_data wholesale, got %v", rec.FormData)
	}
}

func TestSaveStep_MergeForFinalStep(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	completeSteps(t, svc, "s1", 6)
	if err := svc.SaveStep(ctx, "s1", 7,
		map[string]interface{}{"patient_email": "a@b.c", "patient_name": "Ana"}, nil, nil); err != nil {
		t.Fatalf("first step-7 save: %v", err)
	}
	if err := svc.SaveStep(ctx, "s1", 7,
		map[string]interface{}{"completion_status": "completed"}, nil, nil); err != nil {
		t.Fatalf("second step-7 save: %v", err)
	}

	sess, _ := repo.Get(ctx, "s1")
	fd := sess.Steps[7].FormData
	if fd["patient_email"] != "a@b.c" {
		t.Errorf("contact fields must survive partial resaves, got %v", fd)
	}
	if fd["completion_status"] != "completed" {
		t.Errorf("new fields must be merged in, got %v", fd)
	}
}

func TestSaveStep_CascadeOnUpstreamEdit(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	completeSteps(t, svc, "s1", 5)
	err := svc.SaveStep(ctx, "s1", 2,
		map[string]interface{}{"changed": "yes"}, nil, nil)
	if err != nil {
		t.Fatalf("upstream edit: %v", err)
	}

	sess, _ := repo.Get(ctx, "s1")
	if sess.StepCompleted != 2 {
		t.Errorf("step_completed = %d, want 2", sess.StepCompleted)
	}
	for n := 3; n <= 5; n++ {
		if rec, ok := sess.Steps[n]; ok && !rec.IsEmpty() {
			t.Errorf("step %d should be cleared after cascade", n)
		}
		if _, ok := sess.Completion[n]; ok {
			t.Errorf("step %d completion entry should be cleared", n)
		}
		if _, ok := sess.DataTimestamps[n]; ok {
			t.Errorf("step %d data timestamp should be cleared", n)
		}
	}
}

func TestSaveStep_NoCascadeOnFirstSave(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	// Steps 1-2 saved; step 3 saved for the first time must not rewind.
	completeSteps(t, svc, "s1", 3)
	sess, _ := repo.Get(ctx, "s1")
	if sess.StepCompleted != 3 {
		t.Errorf("step_completed = %d, want 3", sess.StepCompleted)
	}
}

func TestSaveStep_CompletionMonotone(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	completeSteps(t, svc, "s1", 4)
	// Resaving the current step must not advance or rewind.
	if err := svc.SaveStep(ctx, "s1", 4,
		map[string]interface{}{"f": "v"}, nil, nil); err != nil {
		t.Fatalf("resave: %v", err)
	}
	sess, _ := repo.Get(ctx, "s1")
	if sess.StepCompleted != 4 {
		t.Errorf("step_completed = %d, want 4", sess.StepCompleted)
	}
}

func TestNeedsRegeneration(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	completeSteps(t, svc, "s1", 5)

	// No generation yet.
	stale, err := svc.NeedsRegeneration(ctx, "s1", 6)
	if err != nil || !stale {
		t.Fatalf("ungenerated step must be stale (stale=%v err=%v)", stale, err)
	}

	if err := svc.MarkGenerated(ctx, "s1", 6, map[string]string{"summary": "x"}); err != nil {
		t.Fatalf("mark generated: %v", err)
	}
	stale, _ = svc.NeedsRegeneration(ctx, "s1", 6)
	if stale {
		t.Error("freshly generated step must not be stale")
	}

	// Editing a prerequisite makes it stale again.
	sess, _ := repo.Get(ctx, "s1")
	sess.DataTimestamps[4] = time.Now().UTC().Add(time.Minute)
	_ = repo.Put(ctx, sess)

	stale, _ = svc.NeedsRegeneration(ctx, "s1", 6)
	if !stale {
		t.Error("upstream edit after generation must mark step stale")
	}
}

func TestGetStep(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	completeSteps(t, svc, "s1", 1)

	rec, err := svc.GetStep(ctx, "s1", 1)
	if err != nil {
		t.Fatalf("get step: %v", err)
	}
	if rec.FormData["field"] != "value" {
		t.Errorf("form data = %v", rec.FormData)
	}

	// Accessible but unsaved step returns an empty record.
	rec, err = svc.GetStep(ctx, "s1", 2)
	if err != nil {
		t.Fatalf("get empty step: %v", err)
	}
	if !rec.IsEmpty() || rec.StepName != "health_background" {
		t.Errorf("expected named empty record, got %+v", rec)
	}

	// Locked step is refused.
	if _, err := svc.GetStep(ctx, "s1", 5); !errors.Is(err, ErrStepLocked) {
		t.Errorf("expected ErrStepLocked, got %v", err)
	}
}

func TestAnalyzeDocument(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, &fakeLLM{reply: "blood pressure 140/90 noted"}, llm.StaticPrompts{}, zerolog.Nop())
	ctx := context.Background()

	completeSteps(t, svc, "s1", 2)

	insights, err := svc.AnalyzeDocument(ctx, "s1", "report.jpg", "data:image/jpeg;base64,AAAA")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if insights == "" {
		t.Fatal("expected insight text")
	}

	sess, _ := repo.Get(ctx, "s1")
	if sess.Steps[3].AIData["insights_report.jpg"] != "blood pressure 140/90 noted" {
		t.Errorf("insights not stored: %v", sess.Steps[3].AIData)
	}
	if _, ok := sess.LLMTimestamps[3]; !ok {
		t.Error("generation timestamp not recorded")
	}
}

func TestAnalyzeDocument_UsesEditedTemplate(t *testing.T) {
	repo := newMemRepo()
	client := &fakeLLM{reply: "finding"}
	prompts := mapPrompts{"document_insights": "SUMMARIZE IN GERMAN"}
	svc := NewService(repo, client, prompts, zerolog.Nop())

	completeSteps(t, svc, "s1", 2)
	if _, err := svc.AnalyzeDocument(context.Background(), "s1", "f.jpg", "data:image/jpeg;base64,AAAA"); err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if client.seenPrompt != "SUMMARIZE IN GERMAN" {
		t.Errorf("analysis used %q, want the edited template", client.seenPrompt)
	}
}

func TestAnalyzeDocument_ServiceFailure(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, &fakeLLM{err: errors.New("timeout")}, llm.StaticPrompts{}, zerolog.Nop())

	completeSteps(t, svc, "s1", 2)
	if _, err := svc.AnalyzeDocument(context.Background(), "s1", "f.jpg", "data:..."); err == nil {
		t.Fatal("expected error on reasoning service failure")
	}
}

func TestSaveStep_ConcurrentSameStep(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	completeSteps(t, svc, "s1", 1)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = svc.SaveStep(ctx, "s1", 2, map[string]interface{}{"f": "v"}, nil, nil)
		}()
	}
	wg.Wait()

	sess, _ := repo.Get(ctx, "s1")
	if sess.StepCompleted != 2 {
		t.Errorf("step_completed = %d, want 2", sess.StepCompleted)
	}
}
