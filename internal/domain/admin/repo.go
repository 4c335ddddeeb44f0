package admin

import "context"

// Repository persists prompt templates and their edit backups.
type Repository interface {
	List(ctx context.Context, category string) ([]*PromptTemplate, error)
	GetByName(ctx context.Context, name string) (*PromptTemplate, error)
	// Update writes new content and records a backup of the previous
	// content in the same transaction.
	Update(ctx context.Context, name, content, updatedBy string) error
	// Restore resets content to the seeded default, also taking a backup.
	Restore(ctx context.Context, name, updatedBy string) error
	ListBackups(ctx context.Context, name string, limit int) ([]*TemplateBackup, error)
}
