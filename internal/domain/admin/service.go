package admin

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

type Service struct {
	repo Repository
	log  zerolog.Logger
}

func NewService(repo Repository, log zerolog.Logger) *Service {
	return &Service{repo: repo, log: log}
}

func (s *Service) List(ctx context.Context, category string) ([]*PromptTemplate, error) {
	if category != "" && !ValidCategory(category) {
		return nil, fmt.Errorf("unknown category %q", category)
	}
	return s.repo.List(ctx, category)
}

func (s *Service) Get(ctx context.Context, name string) (*PromptTemplate, error) {
	return s.repo.GetByName(ctx, name)
}

// Prompt implements llm.PromptSource: it serves the edited template content
// to the reasoning call sites, falling back to the built-in text when the
// template is missing or blank. A store outage must never block a call.
func (s *Service) Prompt(ctx context.Context, name, fallback string) string {
	t, err := s.repo.GetByName(ctx, name)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.log.Warn().Err(err).Str("template", name).Msg("prompt template lookup failed, using built-in")
		}
		return fallback
	}
	if strings.TrimSpace(t.Content) == "" {
		return fallback
	}
	return t.Content
}

// Update replaces a template's content, keeping a backup of the previous
// version.
func (s *Service) Update(ctx context.Context, name, content, updatedBy string) error {
	if strings.TrimSpace(content) == "" {
		return ErrEmptyContent
	}
	if err := s.repo.Update(ctx, name, content, updatedBy); err != nil {
		return err
	}
	s.log.Info().
		Str("template", name).
		Str("updated_by", updatedBy).
		Msg("prompt template updated")
	return nil
}

// Restore resets a template to its seeded default content.
func (s *Service) Restore(ctx context.Context, name, updatedBy string) error {
	if err := s.repo.Restore(ctx, name, updatedBy); err != nil {
		return err
	}
	s.log.Info().
		Str("template", name).
		Str("updated_by", updatedBy).
		Msg("prompt template restored to default")
	return nil
}

func (s *Service) ListBackups(ctx context.Context, name string, limit int) ([]*TemplateBackup, error) {
	if limit <= 0 || limit > 50 {
		limit = 20
	}
	return s.repo.ListBackups(ctx, name, limit)
}
