package session

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// FieldClass classifies a field at the schema level. Legacy payloads encoded
// this with trailing "-A"/"-O" value suffixes; the class now lives on the
// field definition and the suffixes are stripped on the way in.
type FieldClass int

const (
	ClassGeneral FieldClass = iota
	ClassAction
	ClassOutcome
)

// FieldDef describes how one known form field is filtered.
type FieldDef struct {
	Class FieldClass
	// NegationFiltered marks free-text clinical fields where negation words
	// mean "no finding" and are dropped rather than stored.
	NegationFiltered bool
	// Availability marks yes/no fields where "no" is itself a valid clinical
	// answer and must be retained.
	Availability bool
}

var stepNames = map[int]string{
	1: "personal_information",
	2: "health_background",
	3: "document_upload",
	4: "symptom_intake",
	5: "initial_followup",
	6: "clinical_analysis",
	7: "final_report",
}

// StepName returns the canonical name for a step number, or "" if invalid.
func StepName(n int) string {
	return stepNames[n]
}

// stalePrerequisites lists, per step, the upstream steps whose form-data
// edits invalidate this step's cached AI output.
var stalePrerequisites = map[int][]int{
	3: {1, 2},
	4: {1, 2, 3},
	5: {1, 2, 3, 4},
	6: {1, 2, 3, 4, 5},
	7: {1, 2, 3, 4, 5, 6},
}

// Prerequisites returns the upstream steps that feed step n's AI output.
func Prerequisites(n int) []int {
	return stalePrerequisites[n]
}

var negationWords = map[string]bool{
	"none":           true,
	"no":             true,
	"n/a":            true,
	"na":             true,
	"nil":            true,
	"nothing":        true,
	"not applicable": true,
}

// fieldDefs holds the fields with non-default filtering behavior. Fields not
// listed here get the generic empty-value filter only.
var fieldDefs = map[string]FieldDef{
	"infection_type":        {NegationFiltered: true},
	"allergies":             {NegationFiltered: true},
	"current_medications":   {NegationFiltered: true},
	"chronic_conditions":    {NegationFiltered: true},
	"previous_surgeries":    {NegationFiltered: true},
	"family_history":        {NegationFiltered: true},
	"additional_symptoms":   {NegationFiltered: true},
	"ecg_available":         {Availability: true},
	"lab_results_available": {Availability: true},
	"imaging_available":     {Availability: true},
}

func lookupField(name string) FieldDef {
	if def, ok := fieldDefs[name]; ok {
		return def
	}
	// Naming convention for availability flags not listed explicitly.
	if strings.HasSuffix(name, "_available") {
		return FieldDef{Availability: true}
	}
	return FieldDef{}
}

// stripLegacySuffix removes the trailing "-A"/"-O" category markers some
// upstream clients still append to string values.
func stripLegacySuffix(v string) string {
	if strings.HasSuffix(v, "-A") || strings.HasSuffix(v, "-O") {
		return strings.TrimSpace(v[:len(v)-2])
	}
	return v
}

// stringifyValue converts an arbitrary decoded JSON value to its stored
// string form. Empty containers and nil return "" so the filter drops them.
func stringifyValue(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case []interface{}:
		if len(t) == 0 {
			return ""
		}
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	case map[string]interface{}:
		if len(t) == 0 {
			return ""
		}
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	default:
		return strings.TrimSpace(fmt.Sprintf("%v", t))
	}
}

// FilterFormData applies the field validity filter: empty values are dropped
// everywhere, negation words are dropped for negation-filtered fields, and
// availability fields keep "no" as a real answer.
func FilterFormData(in map[string]interface{}) map[string]string {
	out := make(map[string]string, len(in))
	for name, raw := range in {
		v := stringifyValue(raw)
		if v == "" {
			continue
		}
		v = stripLegacySuffix(v)
		if v == "" {
			continue
		}
		def := lookupField(name)
		if def.NegationFiltered && !def.Availability && negationWords[strings.ToLower(v)] {
			continue
		}
		out[name] = v
	}
	return out
}
