package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config contains application-wide settings sourced from the environment.
type Config struct {
	DatabaseURL    string
	Addr           string
	JWTSecret      string
	AllowedOrigins []string

	SpotifyClientID     string
	SpotifyClientSecret string
	GeniusAccessToken   string
	GeniusLyricsURL     string
	GetSongBPMAPIKey    string

	LyricFetchRPS     float64
	LyricFetchWorkers int

	LogLevel  string
	LogFormat string

	DBConnectTimeout time.Duration
	SeedDemoData     bool
}

func loadConfig() (Config, error) {
	_ = godotenv.Load("config/local.env")

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		return Config{}, errors.New("DATABASE_URL env var is required")
	}

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		return Config{}, errors.New("JWT_SECRET env var is required")
	}

	rps, err := strconv.ParseFloat(envOrDefault("LYRIC_FETCH_RPS", "2"), 64)
	if err != nil || rps <= 0 {
		return Config{}, fmt.Errorf("invalid LYRIC_FETCH_RPS: %q", os.Getenv("LYRIC_FETCH_RPS"))
	}

	workers, err := strconv.Atoi(envOrDefault("LYRIC_FETCH_WORKERS", "3"))
	if err != nil || workers <= 0 {
		return Config{}, fmt.Errorf("invalid LYRIC_FETCH_WORKERS: %q", os.Getenv("LYRIC_FETCH_WORKERS"))
	}

	connectTimeout, err := time.ParseDuration(envOrDefault("DB_CONNECT_TIMEOUT", "30s"))
	if err != nil || connectTimeout <= 0 {
		return Config{}, fmt.Errorf("invalid DB_CONNECT_TIMEOUT: %q", os.Getenv("DB_CONNECT_TIMEOUT"))
	}

	return Config{
		DatabaseURL:    dsn,
		Addr:           fmt.Sprintf(":%s", envOrDefault("PORT", "8080")),
		JWTSecret:      secret,
		AllowedOrigins: parseAllowedOrigins(envOrDefault("CORS_ALLOWED_ORIGINS", "http://localhost:5173")),

		SpotifyClientID:     os.Getenv("SPOTIFY_CLIENT_ID"),
		SpotifyClientSecret: os.Getenv("SPOTIFY_CLIENT_SECRET"),
		GeniusAccessToken:   os.Getenv("GENIUS_ACCESS_TOKEN"),
		GeniusLyricsURL:     os.Getenv("GENIUS_LYRICS_URL"),
		GetSongBPMAPIKey:    os.Getenv("GETSONGBPM_API_KEY"),

		LyricFetchRPS:     rps,
		LyricFetchWorkers: workers,

		LogLevel:  envOrDefault("LOG_LEVEL", "info"),
		LogFormat: envOrDefault("LOG_FORMAT", "json"),

		DBConnectTimeout: connectTimeout,
		SeedDemoData:     envOrDefault("SEED_DEMO_DATA", "false") == "true",
	}, nil
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func parseAllowedOrigins(raw string) []string {
	parts := strings.Split(raw, ",")
	var origins []string
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}
