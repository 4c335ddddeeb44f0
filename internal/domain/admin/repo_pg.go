package admin

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

const templateColumns = `id, name, category, content, default_content, updated_at, updated_by`

func (r *repoPG) List(ctx context.Context, category string) ([]*PromptTemplate, error) {
	query := `SELECT ` + templateColumns + ` FROM prompt_templates`
	args := []interface{}{}
	if category != "" {
		query += ` WHERE category = $1`
		args = append(args, category)
	}
	query += ` ORDER BY category, name`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*PromptTemplate
	for rows.Next() {
		var t PromptTemplate
		if err := rows.Scan(&t.ID, &t.Name, &t.Category, &t.Content,
			&t.DefaultContent, &t.UpdatedAt, &t.UpdatedBy); err != nil {
			return nil, err
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}

func (r *repoPG) GetByName(ctx context.Context, name string) (*PromptTemplate, error) {
	var t PromptTemplate
	err := r.pool.QueryRow(ctx,
		`SELECT `+templateColumns+` FROM prompt_templates WHERE name = $1`, name,
	).Scan(&t.ID, &t.Name, &t.Category, &t.Content, &t.DefaultContent, &t.UpdatedAt, &t.UpdatedBy)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// writeWithBackup snapshots the current content, then applies newContent,
// both inside one transaction.
func (r *repoPG) writeWithBackup(ctx context.Context, name, newContent, updatedBy string, useDefault bool) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var current, def string
	err = tx.QueryRow(ctx,
		`SELECT content, default_content FROM prompt_templates WHERE name = $1 FOR UPDATE`, name,
	).Scan(&current, &def)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO prompt_template_backups (id, template_name, content, created_by)
		VALUES ($1, $2, $3, $4)`,
		uuid.New(), name, current, updatedBy,
	); err != nil {
		return fmt.Errorf("backup write failed: %w", err)
	}

	if useDefault {
		newContent = def
	}
	if _, err := tx.Exec(ctx, `
		UPDATE prompt_templates SET content = $2, updated_at = NOW(), updated_by = $3
		WHERE name = $1`,
		name, newContent, updatedBy,
	); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *repoPG) Update(ctx context.Context, name, content, updatedBy string) error {
	return r.writeWithBackup(ctx, name, content, updatedBy, false)
}

func (r *repoPG) Restore(ctx context.Context, name, updatedBy string) error {
	return r.writeWithBackup(ctx, name, "", updatedBy, true)
}

func (r *repoPG) ListBackups(ctx context.Context, name string, limit int) ([]*TemplateBackup, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, template_name, content, created_at, created_by
		FROM prompt_template_backups
		WHERE template_name = $1
		ORDER BY created_at DESC
		LIMIT $2`, name, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*TemplateBackup
	for rows.Next() {
		var b TemplateBackup
		if err := rows.Scan(&b.ID, &b.TemplateName, &b.Content, &b.CreatedAt, &b.CreatedBy); err != nil {
			return nil, err
		}
		out = append(out, &b)
	}
	return out, rows.Err()
}
