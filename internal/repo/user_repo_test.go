package repo

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/metflix/server/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// exerciseUserRepo checks the UserRepo contract shared by every backend
func exerciseUserRepo(t *testing.T, r UserRepo) {
	t.Helper()
	ctx := context.Background()
	email := uuid.NewString() + "@example.com"

	_, err := r.GetByEmail(ctx, email)
	assert.ErrorIs(t, err, ErrUserNotFound)
	_, err = r.GetByID(ctx, "not-a-uuid")
	assert.ErrorIs(t, err, ErrUserNotFound)

	u, err := r.Create(ctx, model.NewUser{Email: email, Username: "alice", PasswordHash: "h1"})
	require.NoError(t, err)
	assert.Equal(t, model.RoleUser, u.Role, "role defaults to USER")
	assert.False(t, u.IsBlocked)

	byID, err := r.GetByID(ctx, u.ID.String())
	require.NoError(t, err)
	assert.Equal(t, email, byID.Email)

	_, err = r.Create(ctx, model.NewUser{Email: email, Username: "dup", PasswordHash: "h"})
	assert.ErrorIs(t, err, ErrUserExists)

	reset, err := r.ResetPassword(ctx, email, "h2")
	require.NoError(t, err)
	assert.Equal(t, "h2", reset.PasswordHash)

	_, err = r.ResetPassword(ctx, "ghost-"+email, "h")
	assert.ErrorIs(t, err, ErrUserNotFound)

	existing, err := r.UpsertFederated(ctx, "Other Name", email)
	require.NoError(t, err)
	assert.Equal(t, u.ID, existing.ID)
	assert.Equal(t, "alice", existing.Username)

	fedEmail := "fed-" + email
	fed, err := r.UpsertFederated(ctx, "Fed", fedEmail)
	require.NoError(t, err)
	assert.Equal(t, "Fed", fed.Username)
	assert.Empty(t, fed.PasswordHash)
	assert.Equal(t, model.RoleUser, fed.Role)

	require.NoError(t, r.SetBlocked(ctx, email, true))
	blocked, err := r.GetByEmail(ctx, email)
	require.NoError(t, err)
	assert.True(t, blocked.IsBlocked)
	assert.ErrorIs(t, r.SetBlocked(ctx, "ghost-"+email, true), ErrUserNotFound)
}

func TestMemoryUserRepo(t *testing.T) {
	exerciseUserRepo(t, NewMemoryUserRepo())
}

func TestMemoryUserRepo_ConcurrentCreate(t *testing.T) {
	r := NewMemoryUserRepo()
	var created atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := r.Create(context.Background(), model.NewUser{Email: "race@example.com"}); err == nil {
				created.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), created.Load())
}

func TestMongoUserRepo(t *testing.T) {
	uri := os.Getenv("TEST_MONGO_URI")
	if uri == "" {
		t.Skip("TEST_MONGO_URI not set, skipping MongoDB integration test")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Disconnect(context.Background()) })

	database := client.Database("metflix_test_" + uuid.NewString()[:8])
	t.Cleanup(func() { _ = database.Drop(context.Background()) })

	r, err := NewMongoUserRepo(ctx, database)
	require.NoError(t, err)
	exerciseUserRepo(t, r)
}

func TestMemoryOtpRepo(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryOtpRepo()
	defer r.Close()

	now := time.Now()
	r.WithClock(func() time.Time { return now })

	_, err := r.Get(ctx, "a@example.com")
	assert.ErrorIs(t, err, ErrOtpNotFound)

	rec := model.OtpRecord{Email: "a@example.com", CodeHash: "h1", CreatedAt: now, ExpiresAt: now.Add(time.Minute)}
	require.NoError(t, r.Save(ctx, rec, time.Minute))

	rec.CodeHash = "h2"
	require.NoError(t, r.Save(ctx, rec, time.Minute))
	got, err := r.Get(ctx, "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, "h2", got.CodeHash, "save overwrites")

	now = now.Add(time.Minute)
	_, err = r.Get(ctx, "a@example.com")
	assert.ErrorIs(t, err, ErrOtpNotFound, "a record is dead at its deadline")

	now = now.Add(-time.Minute)
	require.NoError(t, r.Delete(ctx, "a@example.com"))
	_, err = r.Get(ctx, "a@example.com")
	assert.ErrorIs(t, err, ErrOtpNotFound)
	require.NoError(t, r.Delete(ctx, "a@example.com"))
}

func TestMemoryOtpRepo_Consume(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryOtpRepo()
	defer r.Close()

	now := time.Now()
	rec := model.OtpRecord{Email: "a@example.com", CodeHash: "h1", CreatedAt: now, ExpiresAt: now.Add(time.Minute)}
	require.NoError(t, r.Save(ctx, rec, time.Minute))

	ok, err := r.Consume(ctx, "a@example.com", "other")
	require.NoError(t, err)
	assert.False(t, ok, "a different hash does not consume")

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, err := r.Consume(ctx, "a@example.com", "h1"); err == nil && ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())

	_, err = r.Get(ctx, "a@example.com")
	assert.ErrorIs(t, err, ErrOtpNotFound)
}
