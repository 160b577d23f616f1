package tests

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/metflix/server/internal/db"
)

// CaptureMailer records every verification code instead of sending it
type CaptureMailer struct {
	mu    sync.Mutex
	codes map[string][]string
}

// NewCaptureMailer creates an empty CaptureMailer
func NewCaptureMailer() *CaptureMailer {
	return &CaptureMailer{codes: make(map[string][]string)}
}

// SendVerificationCode implements mail.Mailer
func (m *CaptureMailer) SendVerificationCode(_ context.Context, _, email, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.codes[email] = append(m.codes[email], code)
	return nil
}

// LastCode returns the most recent code sent to email
func (m *CaptureMailer) LastCode(email string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	codes := m.codes[email]
	if len(codes) == 0 {
		return ""
	}
	return codes[len(codes)-1]
}

// Sent returns how many codes were sent to email
func (m *CaptureMailer) Sent(email string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.codes[email])
}

// FakeOMDB serves a tiny OMDB-compatible catalogue. Broken ids fail with a
// provider error; "batman" searches return 12 hits.
type FakeOMDB struct {
	mu     sync.RWMutex
	broken map[string]bool
}

// Break makes lookups of ids fail until Reset
func (f *FakeOMDB) Break(ids ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.broken == nil {
		f.broken = make(map[string]bool)
	}
	for _, id := range ids {
		f.broken[id] = true
	}
}

// Reset clears broken ids
func (f *FakeOMDB) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.broken = nil
}

func (f *FakeOMDB) isBroken(id string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.broken[id]
}

func (f *FakeOMDB) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	w.Header().Set("Content-Type", "application/json")

	if id := q.Get("i"); id != "" {
		if f.isBroken(id) || !strings.HasPrefix(id, "tt") {
			_ = json.NewEncoder(w).Encode(map[string]string{"Response": "False", "Error": "Incorrect IMDb ID."})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{
			"imdbID": id, "Title": "Title " + id, "Year": "1999", "Poster": "N/A", "Type": "movie", "Response": "True",
		})
		return
	}

	switch strings.ToLower(q.Get("s")) {
	case "batman":
		hits := make([]map[string]string, 0, 12)
		for i := 0; i < 12; i++ {
			hits = append(hits, map[string]string{
				"imdbID": fmt.Sprintf("tt00000%02d", i), "Title": fmt.Sprintf("Batman %d", i), "Year": "2005", "Type": "movie",
			})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"Search": hits, "totalResults": "42", "Response": "True"})
	case "a b":
		_ = json.NewEncoder(w).Encode(map[string]string{"Response": "False", "Error": "Too many results."})
	default:
		_ = json.NewEncoder(w).Encode(map[string]string{"Response": "False", "Error": "Movie not found!"})
	}
}

// OpenTestDatabase connects to databaseURL, migrates, and empties the users
// table so each run starts clean
func OpenTestDatabase(ctx context.Context, databaseURL string) (*sql.DB, error) {
	database, err := db.Open(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	if err := db.RunMigrations(database); err != nil {
		database.Close()
		return nil, err
	}
	if err := db.TruncateUsers(database); err != nil {
		database.Close()
		return nil, err
	}
	return database, nil
}
