package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/metflix/server/internal/auth"
	"github.com/metflix/server/internal/config"
	"github.com/metflix/server/internal/db"
	httphandler "github.com/metflix/server/internal/http"
	"github.com/metflix/server/internal/http/handlers"
	"github.com/metflix/server/internal/logger"
	"github.com/metflix/server/internal/mail"
	"github.com/metflix/server/internal/movies"
	"github.com/metflix/server/internal/omdb"
	"github.com/metflix/server/internal/repo"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

func main() {
	// Load .env from CWD or server/ so it works from repo root or server/ (env vars override)
	_ = godotenv.Load(".env")
	_ = godotenv.Load("server/.env")

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	appLogger := logger.Setup(cfg.IsProduction(), cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var closers []io.Closer
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i].Close()
		}
	}()

	userRepo, err := openUserRepo(ctx, cfg, &closers)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open user directory")
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = db.OpenRedis(ctx, cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to redis")
		}
		closers = append(closers, redisClient)
	}

	var otpRepo repo.OtpRepo
	if redisClient != nil {
		otpRepo = repo.NewRedisOtpRepo(redisClient, "otp")
	} else {
		memOtp := repo.NewMemoryOtpRepo()
		defer memOtp.Close()
		otpRepo = memOtp
	}

	favoritesRepo := repo.NewMemoryFavoritesRepo()
	if cfg.FavoritesBackend == config.FavoritesRedis {
		favoritesRepo = repo.NewRedisFavoritesRepo(redisClient)
	}
	log.Info().Str("backend", cfg.FavoritesBackend).Msg("favorites store ready")

	var mailer mail.Mailer = mail.LogMailer{}
	if cfg.SendGridAPIKey != "" {
		mailer = mail.NewSendGridMailer(cfg.SendGridAPIKey, cfg.SenderEmail)
	} else {
		log.Warn().Msg("SENDGRID_API_KEY not set, verification codes are written to the log")
	}

	var identity auth.IdentityVerifier = auth.TrustingVerifier{}
	if cfg.GoogleClientID != "" {
		identity = auth.NewGoogleVerifier(cfg.GoogleClientID)
	} else {
		log.Warn().Msg("GOOGLE_CLIENT_ID not set, federated logins are trusted without verification")
	}

	// Initialize auth services
	otpProvider := auth.NewOtpService(otpRepo, cfg.OTPSalt)
	jwtService := auth.NewJWTService(cfg.JWTSecret)
	authService := auth.NewAuthService(
		otpProvider,
		jwtService,
		userRepo,
		auth.NewBcryptHasher(bcrypt.DefaultCost),
		mailer,
		identity,
	)

	movieService := movies.NewService(omdb.NewClient(cfg.OMDBBaseURL, cfg.OMDBAPIKey), favoritesRepo)

	router := httphandler.NewRouter(ctx, httphandler.Deps{
		AuthHandler:  handlers.NewAuthHandler(authService, cfg.IsProduction()),
		MovieHandler: handlers.NewMovieHandler(movieService, cfg.IsProduction()),
		JWTService:   jwtService,
		UserRepo:     userRepo,
		Logger:       appLogger,
		CORSOrigins:  cfg.CORSOrigins,
		Production:   cfg.IsProduction(),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		log.Error().Err(err).Msg("Server failed")
	}

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

// openUserRepo picks the user directory backend from DATABASE_URL:
// MongoDB, Postgres with migrations, or in-memory in development
func openUserRepo(ctx context.Context, cfg *config.Config, closers *[]io.Closer) (repo.UserRepo, error) {
	switch {
	case cfg.UsesMongo():
		client, database, err := db.OpenMongo(ctx, cfg.DatabaseURL, cfg.MongoDBName)
		if err != nil {
			return nil, err
		}
		*closers = append(*closers, closerFunc(func() error {
			return client.Disconnect(context.Background())
		}))
		return repo.NewMongoUserRepo(ctx, database)

	case cfg.DatabaseURL != "":
		database, err := db.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		*closers = append(*closers, database)
		if err := db.RunMigrations(database); err != nil {
			return nil, err
		}
		return repo.NewUserRepo(database), nil

	default:
		log.Warn().Msg("DATABASE_URL not set, users are kept in memory")
		return repo.NewMemoryUserRepo(), nil
	}
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }
