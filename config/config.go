package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // Asia/Jakarta même sans base tz sur l'hôte
)

type Config struct {
	Env         string // "local" ou "prod"
	ServiceName string
	Port        string

	// Posts Service (HTTP)
	PostsURL     string
	PostsTimeout time.Duration // 0 = pas de timeout

	// Affichage
	DisplayTZ string

	// Seul état tenu par le front : handles de preview et sessions
	PreviewStore    string // "memory" ou "redis"
	PreviewTTL      time.Duration
	PreviewMaxBytes int64
	RedisAddr       string
	SessionTTL      time.Duration

	// Infrastructure optionnelle
	NatsUrl        string // vide = events désactivés
	AllowedOrigins []string
	OtelEndpoint   string
}

// Load charge la configuration depuis l'ENV ou utilise des défauts
func Load() (*Config, error) {
	cfg := &Config{
		Env:             getEnv("APP_ENV", "local"),
		ServiceName:     getEnv("SERVICE_NAME", "captionfeed-web"),
		Port:            getEnv("PORT", "3000"),
		PostsURL:        strings.TrimRight(getEnv("POSTS_SERVICE_URL", "http://localhost:8080"), "/"),
		PostsTimeout:    getEnvDuration("POSTS_TIMEOUT", 0),
		DisplayTZ:       getEnv("DISPLAY_TZ", "Asia/Jakarta"),
		PreviewStore:    strings.ToLower(getEnv("PREVIEW_STORE", "memory")),
		PreviewTTL:      getEnvDuration("PREVIEW_TTL", 15*time.Minute),
		PreviewMaxBytes: int64(getEnvInt("PREVIEW_MAX_BYTES", 10<<20)),
		RedisAddr:       getEnv("REDIS_ADDR", "localhost:6379"),
		SessionTTL:      getEnvDuration("SESSION_TTL", 30*time.Minute),
		NatsUrl:         getEnv("NATS_URL", ""),
		AllowedOrigins:  splitList(getEnv("ALLOWED_ORIGINS", "*")),
		OtelEndpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
	}

	// Validation basique pour éviter de démarrer avec une config cassée
	u, err := url.Parse(cfg.PostsURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("POSTS_SERVICE_URL must be an absolute URL, got %q", cfg.PostsURL)
	}
	if cfg.PreviewStore != "memory" && cfg.PreviewStore != "redis" {
		return nil, fmt.Errorf("PREVIEW_STORE must be memory or redis, got %q", cfg.PreviewStore)
	}
	if _, err := time.LoadLocation(cfg.DisplayTZ); err != nil {
		return nil, fmt.Errorf("DISPLAY_TZ: %w", err)
	}
	if cfg.PreviewMaxBytes <= 0 {
		return nil, fmt.Errorf("PREVIEW_MAX_BYTES must be positive")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(strings.TrimSpace(value)); err == nil {
			return d
		}
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
