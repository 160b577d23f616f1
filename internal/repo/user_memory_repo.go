package repo

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/metflix/server/internal/model"
)

type memoryUserRepo struct {
	mu      sync.RWMutex
	byID    map[uuid.UUID]*model.User
	byEmail map[string]uuid.UUID
}

// NewMemoryUserRepo creates a process-local UserRepo. Data is lost on restart;
// it backs development runs without DATABASE_URL and tests.
func NewMemoryUserRepo() UserRepo {
	return &memoryUserRepo{
		byID:    make(map[uuid.UUID]*model.User),
		byEmail: make(map[string]uuid.UUID),
	}
}

func (r *memoryUserRepo) GetByID(_ context.Context, id string) (model.User, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return model.User{}, ErrUserNotFound
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.byID[uid]
	if !ok {
		return model.User{}, ErrUserNotFound
	}
	return *u, nil
}

func (r *memoryUserRepo) GetByEmail(_ context.Context, email string) (model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byEmail[email]
	if !ok {
		return model.User{}, ErrUserNotFound
	}
	return *r.byID[id], nil
}

func (r *memoryUserRepo) Create(_ context.Context, nu model.NewUser) (model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byEmail[nu.Email]; ok {
		return model.User{}, ErrUserExists
	}
	return r.insertLocked(nu), nil
}

func (r *memoryUserRepo) ResetPassword(_ context.Context, email, passwordHash string) (model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byEmail[email]
	if !ok {
		return model.User{}, ErrUserNotFound
	}
	u := r.byID[id]
	u.PasswordHash = passwordHash
	u.UpdatedAt = time.Now().UTC()
	return *u, nil
}

func (r *memoryUserRepo) UpsertFederated(_ context.Context, name, email string) (model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.byEmail[email]; ok {
		return *r.byID[id], nil
	}
	return r.insertLocked(model.NewUser{Email: email, Username: name, Role: model.RoleUser}), nil
}

func (r *memoryUserRepo) SetBlocked(_ context.Context, email string, blocked bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byEmail[email]
	if !ok {
		return ErrUserNotFound
	}
	r.byID[id].IsBlocked = blocked
	r.byID[id].UpdatedAt = time.Now().UTC()
	return nil
}

func (r *memoryUserRepo) insertLocked(nu model.NewUser) model.User {
	role := nu.Role
	if !role.Valid() {
		role = model.RoleUser
	}
	now := time.Now().UTC()
	u := &model.User{
		ID:           uuid.New(),
		Email:        nu.Email,
		Username:     nu.Username,
		PasswordHash: nu.PasswordHash,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	r.byID[u.ID] = u
	r.byEmail[u.Email] = u.ID
	return *u
}
