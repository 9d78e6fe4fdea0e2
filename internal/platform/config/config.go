package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config agrupa la configuración del servicio.
type Config struct {
	Addr string

	// Backend de casos (diseases/ y api/)
	CasesAPIURL     string
	CasesAPITimeout time.Duration

	// Regla de validación: exigir al menos una imagen antes de enviar.
	RequireImages bool

	MaxUploadBytes int64

	SessionCookie  string
	SessionIdleTTL time.Duration

	LogLevel  string
	LogFormat string
	AppName   string
}

// Load lee .env (si existe) y luego el entorno.
// Variables:
// - PORT (default 8080)
// - CASES_API_URL (default http://localhost:8000)
// - CASES_API_TIMEOUT (default 15s)
// - REQUIRE_IMAGES (default true)
// - MAX_UPLOAD_MB (default 32)
// - SESSION_COOKIE (default case_session)
// - SESSION_IDLE_TTL (default 30m)
// - LOG_LEVEL, LOG_FORMAT, APP_NAME
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Addr:          ":" + GetEnv("PORT", "8080"),
		CasesAPIURL:   strings.TrimRight(GetEnv("CASES_API_URL", "http://localhost:8000"), "/"),
		SessionCookie: GetEnv("SESSION_COOKIE", "case_session"),
		LogLevel:      GetEnv("LOG_LEVEL", "info"),
		LogFormat:     GetEnv("LOG_FORMAT", "text"),
		AppName:       GetEnv("APP_NAME", "cattle-case-report"),
	}

	if _, err := url.ParseRequestURI(cfg.CasesAPIURL); err != nil {
		return Config{}, fmt.Errorf("config: invalid CASES_API_URL: %w", err)
	}

	var err error
	if cfg.CasesAPITimeout, err = durationEnv("CASES_API_TIMEOUT", 15*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.SessionIdleTTL, err = durationEnv("SESSION_IDLE_TTL", 30*time.Minute); err != nil {
		return Config{}, err
	}

	if cfg.RequireImages, err = boolEnv("REQUIRE_IMAGES", true); err != nil {
		return Config{}, err
	}

	mb, err := strconv.ParseInt(GetEnv("MAX_UPLOAD_MB", "32"), 10, 64)
	if err != nil || mb <= 0 {
		return Config{}, fmt.Errorf("config: MAX_UPLOAD_MB must be a positive integer")
	}
	cfg.MaxUploadBytes = mb << 20

	return cfg, nil
}

// GetEnv devuelve la variable o el fallback si no está definida.
func GetEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	raw := GetEnv(key, "")
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("config: %s must be a positive duration (e.g. 15s)", key)
	}
	return d, nil
}

func boolEnv(key string, fallback bool) (bool, error) {
	raw := GetEnv(key, "")
	if raw == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("config: %s must be true or false", key)
	}
	return b, nil
}
