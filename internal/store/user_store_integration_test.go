//go:build integration

package store

import (
	"context"
	"os"
	"testing"
	"time"

	"example.com/mastermind/internal/migrate"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	url := os.Getenv("DATABASE_URL")
	if url == "" {
		url = "postgres://mm:mm@localhost:5432/mastermind?sslmode=disable"
	}
	require.NoError(t, migrate.Up(url, nil), "migrations")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, url)
	require.NoError(t, err)
	require.NoError(t, pool.Ping(ctx), "postgres is not reachable")
	t.Cleanup(pool.Close)
	return pool
}

func TestUserStore_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	s := NewUserStore(newTestPool(t))

	u := User{
		ID:           uuid.NewString(),
		Email:        uuid.NewString() + "@example.com",
		PasswordHash: "hash",
		DisplayName:  "Alice",
	}
	require.NoError(t, s.Create(ctx, u))

	byEmail, err := s.GetByEmail(ctx, u.Email)
	require.NoError(t, err)
	assert.Equal(t, u.ID, byEmail.ID)
	assert.False(t, byEmail.CreatedAt.IsZero())

	byID, err := s.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, u.Email, byID.Email)

	dup := u
	dup.ID = uuid.NewString()
	require.ErrorIs(t, s.Create(ctx, dup), ErrEmailTaken)

	_, err = s.GetByID(ctx, uuid.NewString())
	require.ErrorIs(t, err, ErrUserNotFound)
}
