package diagnosis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/careintake/intake/internal/domain/session"
	"github.com/careintake/intake/internal/platform/llm"
)

const (
	// SourceAI marks a candidate set produced by the reasoning service.
	SourceAI = "ai"
	// SourceFallback marks the deterministic generic candidate list used
	// when data is insufficient or the service response is unusable.
	SourceFallback = "fallback"

	minCodeLength = 2
)

// diagnosisPromptFallback is the built-in instruction used when the
// diagnosis_main template is not available.
const diagnosisPromptFallback = "Based on the weighted clinical data below, produce a ranked list of 4-6 candidate diagnoses."

// Builder assembles the clinical context and generates the initial ranked
// candidate set.
type Builder struct {
	sessions *session.Service
	llm      llm.Client
	prompts  llm.PromptSource
	log      zerolog.Logger
}

func NewBuilder(sessions *session.Service, client llm.Client, prompts llm.PromptSource, log zerolog.Logger) *Builder {
	return &Builder{sessions: sessions, llm: client, prompts: prompts, log: log}
}

// BuildContext assembles the weighted context from the symptom-intake,
// initial-followup, and clinical-analysis steps. The coarse early follow-up
// only earns its 10% when it actually contains answers; otherwise its share
// moves to the analysis step.
func BuildContext(step4, step5, step6 *session.StepRecord) *ClinicalContext {
	c := &ClinicalContext{
		Symptoms:        map[string]string{},
		AnalysisAnswers: map[string]string{},
		EarlyFollowUp:   map[string]string{},
		AILabels:        map[string]string{},
	}
	if step4 != nil {
		for k, v := range step4.FormData {
			c.Symptoms[k] = v
		}
		for k, v := range step4.AIData {
			c.AILabels[k] = v
		}
	}
	if step5 != nil {
		for k, v := range step5.FormData {
			c.EarlyFollowUp[k] = v
		}
	}
	if step6 != nil {
		for k, v := range step6.FormData {
			c.AnalysisAnswers[k] = v
		}
		for k, v := range step6.AIData {
			c.AILabels[k] = v
		}
	}

	c.SymptomWeight = 60
	if len(c.EarlyFollowUp) > 0 {
		c.AnalysisWeight = 30
		c.FollowUpWeight = 10
	} else {
		c.AnalysisWeight = 40
		c.FollowUpWeight = 0
	}
	return c
}

// HasSufficientData requires a primary complaint plus either follow-up
// answers or extracted findings. Anything less gets the fallback list
// without a service call.
func (c *ClinicalContext) HasSufficientData() bool {
	complaint := false
	for k, v := range c.Symptoms {
		if v != "" && (strings.Contains(k, "complaint") || strings.Contains(k, "symptom")) {
			complaint = true
			break
		}
	}
	if !complaint {
		return false
	}
	return len(c.AnalysisAnswers) > 0 || len(c.EarlyFollowUp) > 0 || len(c.AILabels) > 0
}

// FallbackCandidates is the deterministic generic list used when generation
// cannot or should not run.
func FallbackCandidates() []Candidate {
	return []Candidate{
		{Code: "R69", Title: "Illness, unspecified", Confidence: 30,
			Description: "Insufficient data for a specific differential; clinical review required."},
		{Code: "R53", Title: "Malaise and fatigue", Confidence: 25,
			Description: "General presentation without localizing findings."},
		{Code: "Z71.1", Title: "Person with feared health complaint", Confidence: 20,
			Description: "Complaint reported without corroborating findings."},
	}
}

// ValidateCandidates checks the structural contract on a generated list:
// non-empty, and every entry carries a code, a title, and a confidence in
// [0,100].
func ValidateCandidates(cands []Candidate) error {
	if len(cands) == 0 {
		return fmt.Errorf("empty candidate list")
	}
	for i, c := range cands {
		if len(c.Code) < minCodeLength {
			return fmt.Errorf("candidate %d: code too short", i)
		}
		if c.Title == "" {
			return fmt.Errorf("candidate %d: missing title", i)
		}
		if c.Confidence < 0 || c.Confidence > 100 {
			return fmt.Errorf("candidate %d: confidence %v out of range", i, c.Confidence)
		}
	}
	return nil
}

// Generate runs one reasoning-service call over the context and returns the
// validated candidate list plus its source tag. Service failures and
// malformed responses degrade to the fallback list; they are never surfaced
// as hard errors.
func (b *Builder) Generate(ctx context.Context, clinical *ClinicalContext) ([]Candidate, string) {
	if !clinical.HasSufficientData() {
		b.log.Warn().Msg("insufficient clinical data, using fallback candidates")
		return FallbackCandidates(), SourceFallback
	}

	prompt := fmt.Sprintf(`%s

%s
Respond with JSON only:
{"candidates": [{"code": "ICD-10 code", "title": "condition name", "confidence": 0-100, "description": "one sentence"}]}`,
		b.prompts.Prompt(ctx, "diagnosis_main", diagnosisPromptFallback),
		clinical.Render())

	raw, err := b.llm.Complete(ctx,
		"You are a clinical decision support assistant producing differential diagnosis candidates.", prompt)
	if err != nil {
		b.log.Warn().Err(err).Msg("candidate generation failed, using fallback")
		return FallbackCandidates(), SourceFallback
	}

	cands, err := parseCandidates(raw)
	if err != nil {
		b.log.Warn().Err(err).Msg("candidate response rejected, using fallback")
		return FallbackCandidates(), SourceFallback
	}
	return cands, SourceAI
}

func parseCandidates(raw string) ([]Candidate, error) {
	doc, err := llm.ExtractJSON(raw)
	if err != nil {
		return nil, err
	}
	var parsed struct {
		Candidates []Candidate `json:"candidates"`
	}
	if err := json.Unmarshal([]byte(doc), &parsed); err != nil {
		return nil, fmt.Errorf("decode candidates: %w", err)
	}
	if err := ValidateCandidates(parsed.Candidates); err != nil {
		return nil, err
	}
	return parsed.Candidates, nil
}

// BuildDiagnosis loads the session, assembles the weighted context, runs
// generation, and caches the result on the clinical-analysis step so the
// staleness tracker can tell when it must be redone.
func (b *Builder) BuildDiagnosis(ctx context.Context, sessionID string) ([]Candidate, string, error) {
	sess, err := b.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, "", err
	}
	if !sess.CanAccess(6) {
		return nil, "", session.ErrStepLocked
	}

	clinical := BuildContext(sess.Steps[4], sess.Steps[5], sess.Steps[6])
	cands, source := b.Generate(ctx, clinical)

	encoded, err := json.Marshal(cands)
	if err != nil {
		return nil, "", err
	}
	if err := b.sessions.MarkGenerated(ctx, sessionID, 6, map[string]string{
		"diagnosis_candidates": string(encoded),
		"diagnosis_source":     source,
	}); err != nil {
		return nil, "", err
	}
	return cands, source, nil
}

// CachedDiagnosis returns the stored candidate list if one exists and is
// still fresh relative to upstream edits.
func (b *Builder) CachedDiagnosis(ctx context.Context, sessionID string) ([]Candidate, bool, error) {
	stale, err := b.sessions.NeedsRegeneration(ctx, sessionID, 6)
	if err != nil {
		return nil, false, err
	}
	if stale {
		return nil, false, nil
	}
	sess, err := b.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, false, err
	}
	rec, ok := sess.Steps[6]
	if !ok || rec == nil {
		return nil, false, nil
	}
	raw, ok := rec.AIData["diagnosis_candidates"]
	if !ok {
		return nil, false, nil
	}
	var cands []Candidate
	if err := json.Unmarshal([]byte(raw), &cands); err != nil {
		return nil, false, nil
	}
	return cands, true, nil
}
