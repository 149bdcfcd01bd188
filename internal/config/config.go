package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port             string
	APIBaseURL       string
	PublicAPIBaseURL string
	JWTSecret        string
	OnboardingFee    string
	Currency         string
	ReturnBaseURL    string
	SessionTTL       time.Duration
	AllowedOrigins   []string
}

func Load() *Config {
	return &Config{
		Port:             getEnv("PORT", "8082"),
		APIBaseURL:       getEnv("API_BASE_URL", "https://integapi.koorierinc.net/qa/api"),
		PublicAPIBaseURL: getEnv("PUBLIC_API_BASE_URL", "https://integapi.koorierinc.net/qa/public/api"),
		JWTSecret:        getEnv("JWT_SECRET", "dev-secret-change-in-production"),
		OnboardingFee:    getEnv("ONBOARDING_FEE", "50.00"),
		Currency:         getEnv("CURRENCY", "CAD"),
		ReturnBaseURL:    getEnv("RETURN_BASE_URL", "http://localhost:8082"),
		SessionTTL:       time.Duration(getEnvInt("SESSION_TTL_MINUTES", 30)) * time.Minute,
		AllowedOrigins:   strings.Split(getEnv("ALLOWED_ORIGINS", "http://localhost:5173"), ","),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
