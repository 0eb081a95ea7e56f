package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Load reads the .env file named by COGSERVER_ENV (or .env by default),
// then its .secret sidecar when present. Values already in the
// environment win. All config is flat env vars read via the getters below.
func Load() error {
	envFile := os.Getenv("COGSERVER_ENV")
	if envFile == "" {
		envFile = ".env"
	}

	// Missing files are fine
	_ = godotenv.Load(envFile)
	_ = godotenv.Load(envFile + ".secret")

	return nil
}

func ServerPort() int {
	port, err := strconv.Atoi(os.Getenv("SERVER_PORT"))
	if err != nil {
		return 17034
	}
	return port
}

func ServerAddr() string {
	return fmt.Sprintf(":%d", ServerPort())
}

// CycleDuration is the wall-clock period of one cognitive cycle, from
// SERVER_CYCLE_DURATION in milliseconds. Defaults to 100ms; 0 runs cycles
// back to back.
func CycleDuration() time.Duration {
	ms, err := strconv.Atoi(os.Getenv("SERVER_CYCLE_DURATION"))
	if err != nil || ms < 0 {
		return 100 * time.Millisecond
	}
	return time.Duration(ms) * time.Millisecond
}

// DatabaseURL is opened at startup when set. sql-open works without it.
func DatabaseURL() string {
	return os.Getenv("DATABASE_URL")
}

// CachePath is opened at startup when set.
func CachePath() string {
	return os.Getenv("CACHE_PATH")
}

// APIKey guards the HTTP surface. Empty disables auth.
func APIKey() string {
	return os.Getenv("API_KEY")
}

// RateLimitRPS returns requests per second limit.
// Defaults to 100 if not set.
func RateLimitRPS() float64 {
	rps, err := strconv.ParseFloat(os.Getenv("RATE_LIMIT_RPS"), 64)
	if err != nil || rps <= 0 {
		return 100
	}
	return rps
}

// RateLimitBurst returns the burst size for rate limiting.
// Defaults to 20 if not set.
func RateLimitBurst() int {
	burst, err := strconv.Atoi(os.Getenv("RATE_LIMIT_BURST"))
	if err != nil || burst <= 0 {
		return 20
	}
	return burst
}

// LogLevel returns the log level (debug, info, warn, error).
// Defaults to "info" if not set.
func LogLevel() string {
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		return "info"
	}
	return level
}

// RequestTimeout bounds how long an HTTP handler waits for the cognitive
// loop to answer. Defaults to 10s.
func RequestTimeout() time.Duration {
	s, err := strconv.Atoi(os.Getenv("REQUEST_TIMEOUT"))
	if err != nil || s <= 0 {
		return 10 * time.Second
	}
	return time.Duration(s) * time.Second
}

// DeductionFrequency is how many cycles pass between deduction runs.
// 0 disables the agent.
func DeductionFrequency() int {
	return frequency("DEDUCTION_FREQUENCY", 10)
}

// ForgettingFrequency is how many cycles pass between forgetting runs.
// 0 disables the agent.
func ForgettingFrequency() int {
	return frequency("FORGETTING_FREQUENCY", 50)
}

// ForgettingThreshold is the confidence below which unreferenced links are
// forgotten. Defaults to 0.01.
func ForgettingThreshold() float64 {
	v, err := strconv.ParseFloat(os.Getenv("FORGETTING_THRESHOLD"), 64)
	if err != nil || v < 0 || v >= 1 {
		return 0.01
	}
	return v
}

func frequency(key string, def int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil || n < 0 {
		return def
	}
	return n
}
