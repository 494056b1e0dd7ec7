// Package config loads application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"time"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	APIBaseURL string
	APIToken   string
	DBPath     string
	ListenAddr string

	PrescriptionsTTL time.Duration
	RemindersTTL     time.Duration
	FetchTimeout     time.Duration

	DraftMaxAge        time.Duration
	DraftSweepInterval time.Duration
}

// Load reads configuration from environment variables and returns a validated Config.
// PILLTRACK_API_BASE_URL is required. PILLTRACK_API_TOKEN is optional; without it
// requests go out unauthenticated, which some deployments allow on private networks.
// Optional variables with defaults: PILLTRACK_DB_PATH (pilltrack.db),
// PILLTRACK_LISTEN_ADDR (127.0.0.1:8080), PILLTRACK_PRESCRIPTIONS_TTL (15m),
// PILLTRACK_REMINDERS_TTL (5m), PILLTRACK_FETCH_TIMEOUT (10s),
// PILLTRACK_DRAFT_MAX_AGE (168h), PILLTRACK_DRAFT_SWEEP_INTERVAL (6h).
func Load() (*Config, error) {
	baseURL := os.Getenv("PILLTRACK_API_BASE_URL")
	if baseURL == "" {
		return nil, fmt.Errorf("PILLTRACK_API_BASE_URL is required")
	}

	token := os.Getenv("PILLTRACK_API_TOKEN")

	dbPath := "pilltrack.db"
	if v, ok := os.LookupEnv("PILLTRACK_DB_PATH"); ok {
		dbPath = v
	}

	listenAddr := "127.0.0.1:8080"
	if v, ok := os.LookupEnv("PILLTRACK_LISTEN_ADDR"); ok {
		listenAddr = v
	}

	prescriptionsTTL, err := durationEnv("PILLTRACK_PRESCRIPTIONS_TTL", 15*time.Minute)
	if err != nil {
		return nil, err
	}

	remindersTTL, err := durationEnv("PILLTRACK_REMINDERS_TTL", 5*time.Minute)
	if err != nil {
		return nil, err
	}

	fetchTimeout, err := durationEnv("PILLTRACK_FETCH_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}

	draftMaxAge, err := durationEnv("PILLTRACK_DRAFT_MAX_AGE", 7*24*time.Hour)
	if err != nil {
		return nil, err
	}

	draftSweepInterval, err := durationEnv("PILLTRACK_DRAFT_SWEEP_INTERVAL", 6*time.Hour)
	if err != nil {
		return nil, err
	}

	return &Config{
		APIBaseURL:         baseURL,
		APIToken:           token,
		DBPath:             dbPath,
		ListenAddr:         listenAddr,
		PrescriptionsTTL:   prescriptionsTTL,
		RemindersTTL:       remindersTTL,
		FetchTimeout:       fetchTimeout,
		DraftMaxAge:        draftMaxAge,
		DraftSweepInterval: draftSweepInterval,
	}, nil
}

// durationEnv parses a duration env var, falling back to def when unset.
func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def, nil
	}
	parsed, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s has invalid duration %q: %w", key, v, err)
	}
	return parsed, nil
}
