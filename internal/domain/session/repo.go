package session

import "context"

// Repository persists session records in a key-value backend. Writes replace
// the whole document.
type Repository interface {
	Get(ctx context.Context, id string) (*Session, error)
	Put(ctx context.Context, sess *Session) error
	Delete(ctx context.Context, id string) error
}
