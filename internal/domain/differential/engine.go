package differential

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/careintake/intake/internal/domain/diagnosis"
	"github.com/careintake/intake/internal/platform/llm"
)

// topicKeywords maps each tracked clinical dimension to the words that mark
// a question as covering it. Used as a soft anti-repetition hint to the
// reasoning service, not a hard constraint.
var topicKeywords = map[string][]string{
	"timing":            {"when", "how long", "duration", "onset", "time of day"},
	"location":          {"where", "location", "area", "side", "spread"},
	"triggers":          {"trigger", "worse", "aggravate", "after eating", "exertion"},
	"relieving factors": {"relieve", "better", "improve", "rest", "medication help"},
	"family history":    {"family", "relative", "hereditary", "parent"},
	"visual findings":   {"look", "color", "swelling", "rash", "visible"},
	"sensations":        {"feel", "sensation", "sharp", "dull", "burning", "tingling"},
}

// Built-in instructions used when the corresponding templates are not
// available.
const (
	questionPromptFallback    = "Generate ONE discriminating yes/no-style question for the patient and name the single candidate code the answer is most likely to eliminate."
	eliminationPromptFallback = "Decide which SINGLE candidate code this answer rules out. The code must be one of the current candidates."
)

// Engine is stateless; candidates and history travel with each call so a
// round that fails leaves nothing to roll back.
type Engine struct {
	llm     llm.Client
	prompts llm.PromptSource
	log     zerolog.Logger
}

func NewEngine(client llm.Client, prompts llm.PromptSource, log zerolog.Logger) *Engine {
	return &Engine{llm: client, prompts: prompts, log: log}
}

// coveredTopics classifies prior questions into the tracked dimensions by
// keyword overlap.
func coveredTopics(history []EliminationEvent) []string {
	var covered []string
	for topic, words := range topicKeywords {
		if topicCovered(history, words) {
			covered = append(covered, topic)
		}
	}
	return covered
}

func topicCovered(history []EliminationEvent, words []string) bool {
	for _, ev := range history {
		q := strings.ToLower(ev.Question)
		for _, w := range words {
			if strings.Contains(q, w) {
				return true
			}
		}
	}
	return false
}

func eliminatedCodes(history []EliminationEvent) []string {
	codes := make([]string, 0, len(history))
	for _, ev := range history {
		codes = append(codes, ev.EliminatedCode)
	}
	return codes
}

func renderCandidates(cands []diagnosis.Candidate) string {
	var b strings.Builder
	for _, c := range cands {
		fmt.Fprintf(&b, "- %s: %s (confidence %.0f)\n", c.Code, c.Title, c.Confidence)
	}
	return b.String()
}

func renderHistory(history []EliminationEvent) string {
	if len(history) == 0 {
		return "(no rounds yet)\n"
	}
	var b strings.Builder
	for i, ev := range history {
		fmt.Fprintf(&b, "%d. Q: %s\n   A: %s\n   Eliminated: %s\n", i+1, ev.Question, ev.Answer, ev.EliminatedCode)
	}
	return b.String()
}

func containsCode(cands []diagnosis.Candidate, code string) bool {
	for _, c := range cands {
		if c.Code == code {
			return true
		}
	}
	return false
}

// Remove returns the candidate set without the named code. Exactly one entry
// is removed; an absent code returns the set unchanged.
func Remove(cands []diagnosis.Candidate, code string) []diagnosis.Candidate {
	out := make([]diagnosis.Candidate, 0, len(cands))
	removed := false
	for _, c := range cands {
		if !removed && c.Code == code {
			removed = true
			continue
		}
		out = append(out, c)
	}
	return out
}

func fallbackQuestion(cands []diagnosis.Candidate, reason string) *QuestionResult {
	target := cands[0]
	return &QuestionResult{
		Question: fmt.Sprintf("Do your symptoms match the typical presentation of %s? "+
			"For example, has the problem been constant rather than coming and going?", target.Title),
		TargetCode:    target.Code,
		AnswerOptions: []string{"Yes", "No", "Not sure"},
		Reasoning:     "Fallback question: " + reason,
		UsedFallback:  true,
	}
}

// GenerateQuestion produces the next differential question. Reasoning
// service failures and invalid target codes degrade to a deterministic
// fallback targeting the first remaining candidate, so a round can always
// start.
func (e *Engine) GenerateQuestion(ctx context.Context, cands []diagnosis.Candidate, clinicalContext string, history []EliminationEvent) (*QuestionResult, error) {
	if len(cands) <= TerminalSize {
		return nil, ErrConverged
	}

	covered := coveredTopics(history)
	prompt := fmt.Sprintf(`Current diagnosis candidates:
%s
Clinical context:
%s

Prior elimination rounds:
%s
Codes already eliminated (never target these): %s
Clinical dimensions already asked about (avoid these, prefer an uncovered one): %s

%s
Respond with JSON only:
{"question": "...", "target_code": "...", "answer_options": ["...", "..."], "reasoning": "..."}`,
		renderCandidates(cands), clinicalContext, renderHistory(history),
		strings.Join(eliminatedCodes(history), ", "), strings.Join(covered, ", "),
		e.prompts.Prompt(ctx, "differential_question", questionPromptFallback))

	raw, err := e.llm.Complete(ctx, "You are a clinical differential diagnosis assistant.", prompt)
	if err != nil {
		e.log.Warn().Err(err).Msg("question generation failed, using fallback")
		return fallbackQuestion(cands, "reasoning service unavailable"), nil
	}

	doc, err := llm.ExtractJSON(raw)
	if err != nil {
		e.log.Warn().Err(err).Msg("question response unparseable, using fallback")
		return fallbackQuestion(cands, "unparseable service response"), nil
	}
	var parsed QuestionResult
	if err := json.Unmarshal([]byte(doc), &parsed); err != nil || parsed.Question == "" {
		e.log.Warn().Msg("question response malformed, using fallback")
		return fallbackQuestion(cands, "malformed service response"), nil
	}

	if !containsCode(cands, parsed.TargetCode) {
		e.log.Warn().
			Str("target_code", parsed.TargetCode).
			Msg("target code not in candidate set, retargeting first candidate")
		parsed.TargetCode = cands[0].Code
		parsed.Reasoning = fmt.Sprintf("Fallback target applied (service named an unknown code). %s", parsed.Reasoning)
		parsed.UsedFallback = true
	}
	if len(parsed.AnswerOptions) == 0 {
		parsed.AnswerOptions = []string{"Yes", "No", "Not sure"}
	}
	return &parsed, nil
}

// ProcessAnswer decides which single code the answer eliminates. A transport
// failure is a retryable round failure; an invalid returned code falls back
// to the original target, then to the last candidate, so the loop always
// shrinks the set by one.
func (e *Engine) ProcessAnswer(ctx context.Context, answer, question string, cands []diagnosis.Candidate, targetCode, clinicalContext string) (*EliminationResult, error) {
	if len(cands) <= TerminalSize {
		return nil, ErrConverged
	}

	prompt := fmt.Sprintf(`Question asked: %s
Patient answer: %s
Suggested elimination target: %s

Current candidates:
%s
Clinical context:
%s
%s
Respond with JSON only:
{"eliminated_code": "...", "reasoning": "..."}`,
		question, answer, targetCode, renderCandidates(cands), clinicalContext,
		e.prompts.Prompt(ctx, "differential_elimination", eliminationPromptFallback))

	raw, err := e.llm.Complete(ctx, "You are a clinical differential diagnosis assistant.", prompt)
	if err != nil {
		return nil, fmt.Errorf("elimination round failed: %w", err)
	}

	result := &EliminationResult{}
	if doc, jerr := llm.ExtractJSON(raw); jerr == nil {
		_ = json.Unmarshal([]byte(doc), result)
	}

	if !containsCode(cands, result.EliminatedCode) {
		original := result.EliminatedCode
		if containsCode(cands, targetCode) {
			result.EliminatedCode = targetCode
		} else {
			result.EliminatedCode = cands[len(cands)-1].Code
		}
		result.UsedFallback = true
		if original == "" {
			result.Reasoning = "Fallback elimination: service gave no usable code."
		} else {
			result.Reasoning = fmt.Sprintf("Fallback elimination: service named %q which is not a current candidate.", original)
		}
		e.log.Warn().
			Str("returned_code", original).
			Str("eliminated_code", result.EliminatedCode).
			Msg("invalid elimination code, fallback applied")
	}
	return result, nil
}
