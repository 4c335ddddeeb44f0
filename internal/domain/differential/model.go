// Package differential drives the convergent elimination loop: one question,
// one answer, exactly one candidate removed per round, terminal at two
// remaining candidates.
package differential

import "errors"

// ErrConverged is returned when the candidate set is already at or below the
// terminal size and no further rounds should run.
var ErrConverged = errors.New("candidate set already converged")

// TerminalSize is the candidate count at which narrowing stops.
const TerminalSize = 2

// EliminationEvent is one entry of the append-only narrowing history.
type EliminationEvent struct {
	Question       string `json:"question"`
	Answer         string `json:"answer"`
	EliminatedCode string `json:"eliminated_code"`
	Reasoning      string `json:"reasoning"`
}

// QuestionResult is the output of one question-generation call.
type QuestionResult struct {
	Question      string   `json:"question"`
	TargetCode    string   `json:"target_code"`
	AnswerOptions []string `json:"answer_options"`
	Reasoning     string   `json:"reasoning"`
	UsedFallback  bool     `json:"used_fallback"`
}

// EliminationResult names the single code removed by one round.
type EliminationResult struct {
	EliminatedCode string `json:"eliminated_code"`
	Reasoning      string `json:"reasoning"`
	UsedFallback   bool   `json:"used_fallback"`
}
