// Package diagnosis builds the weighted clinical context from completed
// intake steps and produces the initial ranked candidate set.
package diagnosis

import (
	"fmt"
	"strings"
)

// Candidate is one diagnosis code under consideration. Candidates are only
// ever removed during narrowing, never edited in place.
type Candidate struct {
	Code        string  `json:"code"`
	Title       string  `json:"title"`
	Confidence  float64 `json:"confidence"`
	Description string  `json:"description"`
}

// ClinicalContext is the weighted input to candidate generation. Weights are
// percentages and always sum to 100.
type ClinicalContext struct {
	Symptoms        map[string]string `json:"symptoms"`
	AnalysisAnswers map[string]string `json:"analysis_answers"`
	EarlyFollowUp   map[string]string `json:"early_followup"`
	AILabels        map[string]string `json:"ai_labels"`

	SymptomWeight  int `json:"symptom_weight"`
	AnalysisWeight int `json:"analysis_weight"`
	FollowUpWeight int `json:"followup_weight"`
}

// Render produces the prompt section for the reasoning service, ordered by
// weight so the most important data leads.
func (c *ClinicalContext) Render() string {
	var b strings.Builder
	fmt.Fprintf(&b, "PRIMARY SYMPTOMS (weight %d%%):\n", c.SymptomWeight)
	writeFields(&b, c.Symptoms)
	fmt.Fprintf(&b, "\nCLINICAL ANALYSIS ANSWERS (weight %d%%):\n", c.AnalysisWeight)
	writeFields(&b, c.AnalysisAnswers)
	if c.FollowUpWeight > 0 {
		fmt.Fprintf(&b, "\nINITIAL FOLLOW-UP (weight %d%%):\n", c.FollowUpWeight)
		writeFields(&b, c.EarlyFollowUp)
	}
	if len(c.AILabels) > 0 {
		b.WriteString("\nEXTRACTED FINDINGS:\n")
		writeFields(&b, c.AILabels)
	}
	return b.String()
}

func writeFields(b *strings.Builder, fields map[string]string) {
	if len(fields) == 0 {
		b.WriteString("- (none provided)\n")
		return
	}
	for k, v := range fields {
		fmt.Fprintf(b, "- %s: %s\n", k, v)
	}
}
