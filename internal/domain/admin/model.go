// Package admin manages the editable prompt templates behind the reasoning
// service calls, with per-edit backups and restore to defaults.
package admin

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound     = errors.New("prompt template not found")
	ErrEmptyContent = errors.New("template content must not be empty")
)

// Known template categories; one template drives each reasoning-service
// call site.
var validCategories = map[string]bool{
	"diagnosis":         true,
	"differential":      true,
	"document_analysis": true,
	"report":            true,
}

func ValidCategory(c string) bool {
	return validCategories[c]
}

// PromptTemplate is one editable prompt. DefaultContent is fixed at seed
// time and is what Restore returns Content to.
type PromptTemplate struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	Category       string    `json:"category"`
	Content        string    `json:"content"`
	DefaultContent string    `json:"default_content"`
	UpdatedAt      time.Time `json:"updated_at"`
	UpdatedBy      string    `json:"updated_by,omitempty"`
}

// TemplateBackup is an immutable copy of a template's content taken just
// before an edit.
type TemplateBackup struct {
	ID           uuid.UUID `json:"id"`
	TemplateName string    `json:"template_name"`
	Content      string    `json:"content"`
	CreatedAt    time.Time `json:"created_at"`
	CreatedBy    string    `json:"created_by,omitempty"`
}
