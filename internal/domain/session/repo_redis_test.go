package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRepo(t *testing.T) (*RedisRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewRedisRepository(client, time.Hour), mr
}

func TestRedisRepository_RoundTrip(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	sess := NewSession("s-1")
	sess.StepCompleted = 3
	sess.Step(1).FormData["first_name"] = "Ana"
	sess.DataTimestamps[1] = time.Now().UTC().Truncate(time.Second)

	if err := repo.Put(ctx, sess); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, err := repo.Get(ctx, "s-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.StepCompleted != 3 {
		t.Errorf("step_completed = %d", got.StepCompleted)
	}
	if got.Steps[1].FormData["first_name"] != "Ana" {
		t.Errorf("form data lost: %v", got.Steps[1])
	}
	if _, ok := got.DataTimestamps[1]; !ok {
		t.Error("data timestamps lost in round trip")
	}
}

func TestRedisRepository_NotFound(t *testing.T) {
	repo, _ := newTestRepo(t)
	if _, err := repo.Get(context.Background(), "missing"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRedisRepository_Expiry(t *testing.T) {
	repo, mr := newTestRepo(t)
	ctx := context.Background()

	if err := repo.Put(ctx, NewSession("s-2")); err != nil {
		t.Fatalf("put: %v", err)
	}
	mr.FastForward(2 * time.Hour)
	if _, err := repo.Get(ctx, "s-2"); err != ErrNotFound {
		t.Fatalf("expected expiry, got %v", err)
	}
}

func TestRedisRepository_Delete(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	if err := repo.Put(ctx, NewSession("s-3")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := repo.Delete(ctx, "s-3"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := repo.Get(ctx, "s-3"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}
