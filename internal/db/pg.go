package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/rs/zerolog/log"
)

// invalid_catalog_name
const pqDatabaseMissing = "3D000"

// PoolOptions sizes the Postgres connection pool
type PoolOptions struct {
	MaxOpen     int
	MaxIdle     int
	MaxLifetime time.Duration
	MaxIdleTime time.Duration
	PingTimeout time.Duration
}

// DefaultPool suits a single API instance
var DefaultPool = PoolOptions{
	MaxOpen:     25,
	MaxIdle:     5,
	MaxLifetime: 5 * time.Minute,
	MaxIdleTime: 10 * time.Minute,
	PingTimeout: 5 * time.Second,
}

func redactDSN(u *url.URL) string {
	masked := *u
	if masked.User != nil {
		masked.User = url.UserPassword(masked.User.Username(), "****")
	}
	return masked.String()
}

// Open connects to PostgreSQL with DefaultPool
func Open(ctx context.Context, databaseURL string) (*sql.DB, error) {
	return OpenWithPool(ctx, databaseURL, DefaultPool)
}

// OpenWithPool connects to PostgreSQL and fails fast if the server or the
// named database is unreachable
func OpenWithPool(ctx context.Context, databaseURL string, pool PoolOptions) (*sql.DB, error) {
	u, err := url.Parse(strings.TrimSpace(databaseURL))
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid postgres url")
	}
	name := strings.TrimPrefix(u.Path, "/")
	logger := log.With().Str("host", u.Hostname()).Str("db", name).Logger()
	logger.Info().Str("dsn", redactDSN(u)).Msg("connecting to postgres")

	database, err := sql.Open("postgres", u.String())
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	database.SetMaxOpenConns(pool.MaxOpen)
	database.SetMaxIdleConns(pool.MaxIdle)
	database.SetConnMaxLifetime(pool.MaxLifetime)
	database.SetConnMaxIdleTime(pool.MaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, pool.PingTimeout)
	defer cancel()
	if err := database.PingContext(pingCtx); err != nil {
		_ = database.Close()
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqDatabaseMissing {
			return nil, fmt.Errorf("postgres database %q does not exist on %s: %w", name, u.Hostname(), err)
		}
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	logger.Info().Msg("postgres ready")
	return database, nil
}
