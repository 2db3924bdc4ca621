package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port     string
	Env      string
	LogLevel string

	// Redis (비어 있으면 이벤트 발행 비활성화)
	RedisURL string

	// CORS
	CORSAllowedOrigins []string

	// Settlement Gateway
	SettlementURL     string
	SettlementTimeout time.Duration

	// Session Engine
	SessionEndpoint  string
	TickRate         int
	WinScore         int
	SessionRetention time.Duration

	// Matchmaking
	PendingMatchTimeout  time.Duration
	PendingSweepInterval time.Duration

	// WebSocket inbound rate limit
	WSMessageBurst int64
	WSMessageRate  int64
}

func Load() (*Config, error) {
	// .env 파일 로드 (있는 경우)
	_ = godotenv.Load()

	port := getEnv("PORT", "8080")

	cfg := &Config{
		Port:                 port,
		Env:                  getEnv("ENV", "development"),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		RedisURL:             getEnv("REDIS_URL", ""),
		CORSAllowedOrigins:   splitList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173")),
		SettlementURL:        getEnv("SETTLEMENT_URL", ""),
		SettlementTimeout:    parseDuration(getEnv("SETTLEMENT_TIMEOUT", "5s"), 5*time.Second),
		SessionEndpoint:      getEnv("SESSION_ENDPOINT", "ws://localhost:"+port+"/api/v1/ws/session"),
		TickRate:             parseInt(getEnv("TICK_RATE", "60"), 60),
		WinScore:             parseInt(getEnv("WIN_SCORE", "5"), 5),
		SessionRetention:     parseDuration(getEnv("SESSION_RETENTION", "30s"), 30*time.Second),
		PendingMatchTimeout:  parseDuration(getEnv("PENDING_MATCH_TIMEOUT", "2m"), 2*time.Minute),
		PendingSweepInterval: parseDuration(getEnv("PENDING_SWEEP_INTERVAL", "10s"), 10*time.Second),
		WSMessageBurst:       int64(parseInt(getEnv("WS_MESSAGE_BURST", "120"), 120)),
		WSMessageRate:        int64(parseInt(getEnv("WS_MESSAGE_RATE", "60"), 60)),
	}

	return cfg, nil
}

// minTickInterval time.NewTicker는 0 이하 간격에서 panic
const minTickInterval = time.Millisecond

// TickInterval 세션 틱 간격 (최소 1ms)
func (c *Config) TickInterval() time.Duration {
	if c.TickRate <= 0 {
		return time.Second / 60
	}
	interval := time.Second / time.Duration(c.TickRate)
	if interval < minTickInterval {
		return minTickInterval
	}
	return interval
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func parseInt(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
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
