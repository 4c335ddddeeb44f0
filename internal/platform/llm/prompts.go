package llm

import "context"

// PromptSource resolves an editable prompt template by name. Implementations
// fall back to the caller-supplied default when no template is available, so
// call sites never fail on a missing row.
type PromptSource interface {
	Prompt(ctx context.Context, name, fallback string) string
}

// StaticPrompts always answers with the fallback. Used when no template
// store is wired, and in tests.
type StaticPrompts struct{}

func (StaticPrompts) Prompt(_ context.Context, _, fallback string) string {
	return fallback
}
