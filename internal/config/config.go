package config

import (
	"fmt"
	"os"
	"strings"
)

const (
	EnvProduction  = "production"
	EnvDevelopment = "development"

	FavoritesMemory = "memory"
	FavoritesRedis  = "redis"
)

// Config holds the application configuration
type Config struct {
	Port        string
	Env         string
	CORSOrigins []string

	DatabaseURL string
	MongoDBName string
	RedisURL    string

	FavoritesBackend string

	JWTSecret string
	OTPSalt   string

	OMDBAPIKey  string
	OMDBBaseURL string

	SendGridAPIKey string
	SenderEmail    string

	GoogleClientID string

	LogLevel string
}

// IsProduction reports whether the service runs with production cookie,
// logging and error-detail settings
func (c *Config) IsProduction() bool {
	return c.Env == EnvProduction
}

// UsesMongo reports whether DATABASE_URL points at MongoDB
func (c *Config) UsesMongo() bool {
	return strings.HasPrefix(c.DatabaseURL, "mongodb://") || strings.HasPrefix(c.DatabaseURL, "mongodb+srv://")
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:             getenv("PORT", "3000"),
		Env:              strings.ToLower(getenv("APP_ENV", EnvDevelopment)),
		CORSOrigins:      splitList(getenv("CORS_ORIGINS", "http://localhost:5173")),
		DatabaseURL:      strings.TrimSpace(os.Getenv("DATABASE_URL")),
		MongoDBName:      getenv("MONGO_DB_NAME", "metflix"),
		RedisURL:         strings.TrimSpace(os.Getenv("REDIS_URL")),
		FavoritesBackend: strings.ToLower(getenv("FAVORITES_BACKEND", FavoritesMemory)),
		JWTSecret:        os.Getenv("JWT_SECRET"),
		OTPSalt:          os.Getenv("OTP_SALT"),
		OMDBAPIKey:       os.Getenv("OMDB_API_KEY"),
		OMDBBaseURL:      getenv("OMDB_BASE_URL", "http://www.omdbapi.com"),
		SendGridAPIKey:   os.Getenv("SENDGRID_API_KEY"),
		SenderEmail:      os.Getenv("SENDER_EMAIL"),
		GoogleClientID:   os.Getenv("GOOGLE_CLIENT_ID"),
		LogLevel:         os.Getenv("LOG_LEVEL"),
	}

	if cfg.Env != EnvProduction && cfg.Env != EnvDevelopment {
		return nil, fmt.Errorf("APP_ENV must be %q or %q, got %q", EnvProduction, EnvDevelopment, cfg.Env)
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable is required")
	}
	if cfg.OTPSalt == "" {
		return nil, fmt.Errorf("OTP_SALT environment variable is required")
	}

	switch cfg.FavoritesBackend {
	case FavoritesMemory:
	case FavoritesRedis:
		if cfg.RedisURL == "" {
			return nil, fmt.Errorf("FAVORITES_BACKEND=redis requires REDIS_URL")
		}
	default:
		return nil, fmt.Errorf("FAVORITES_BACKEND must be %q or %q", FavoritesMemory, FavoritesRedis)
	}

	if cfg.IsProduction() {
		required := map[string]string{
			"DATABASE_URL":     cfg.DatabaseURL,
			"OMDB_API_KEY":     cfg.OMDBAPIKey,
			"SENDGRID_API_KEY": cfg.SendGridAPIKey,
			"SENDER_EMAIL":     cfg.SenderEmail,
			"GOOGLE_CLIENT_ID": cfg.GoogleClientID,
		}
		for name, value := range required {
			if value == "" {
				return nil, fmt.Errorf("%s environment variable is required in production", name)
			}
		}
	}

	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
