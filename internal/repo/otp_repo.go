package repo

import (
	"context"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/metflix/server/internal/model"
)

// OtpRepo stores at most one pending OTP per email
type OtpRepo interface {
	// Save stores rec under rec.Email for ttl, replacing any previous record.
	Save(ctx context.Context, rec model.OtpRecord, ttl time.Duration) error
	// Get returns the live record for email or ErrOtpNotFound.
	Get(ctx context.Context, email string) (model.OtpRecord, error)
	// Delete removes the record for email. Deleting a missing record is not an error.
	Delete(ctx context.Context, email string) error
	// Consume deletes the record for email only if it still holds codeHash.
	// Exactly one of several concurrent callers gets true.
	Consume(ctx context.Context, email, codeHash string) (bool, error)
}

// MemoryOtpRepo implements OtpRepo with an in-process ttlcache
type MemoryOtpRepo struct {
	mu    sync.Mutex
	cache *ttlcache.Cache[string, model.OtpRecord]
	now   func() time.Time
}

// NewMemoryOtpRepo creates an in-memory OTP store. Call Close to stop the
// expiry goroutine.
func NewMemoryOtpRepo() *MemoryOtpRepo {
	cache := ttlcache.New(
		ttlcache.WithDisableTouchOnHit[string, model.OtpRecord](),
	)
	go cache.Start()
	return &MemoryOtpRepo{cache: cache, now: time.Now}
}

// Save implements OtpRepo.Save
func (r *MemoryOtpRepo) Save(_ context.Context, rec model.OtpRecord, ttl time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache.Set(rec.Email, rec, ttl)
	return nil
}

// Get implements OtpRepo.Get. The stored expiry is checked as well so a
// record is never returned between its deadline and the next cleanup pass.
func (r *MemoryOtpRepo) Get(_ context.Context, email string) (model.OtpRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.getLocked(email)
}

func (r *MemoryOtpRepo) getLocked(email string) (model.OtpRecord, error) {
	item := r.cache.Get(email)
	if item == nil || item.IsExpired() {
		return model.OtpRecord{}, ErrOtpNotFound
	}
	rec := item.Value()
	if !r.now().Before(rec.ExpiresAt) {
		return model.OtpRecord{}, ErrOtpNotFound
	}
	return rec, nil
}

// Delete implements OtpRepo.Delete
func (r *MemoryOtpRepo) Delete(_ context.Context, email string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache.Delete(email)
	return nil
}

// Consume implements OtpRepo.Consume
func (r *MemoryOtpRepo) Consume(_ context.Context, email, codeHash string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, err := r.getLocked(email)
	if err != nil || rec.CodeHash != codeHash {
		return false, nil
	}
	r.cache.Delete(email)
	return true, nil
}

// WithClock overrides the clock used for expiry checks, used in tests
func (r *MemoryOtpRepo) WithClock(clock func() time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if clock != nil {
		r.now = clock
	}
}

// Close stops the cleanup goroutine
func (r *MemoryOtpRepo) Close() {
	r.cache.Stop()
}
