package config

import (
	"errors"
	"fmt"
	"time"
)

// this holds the resolved configuration values from CLI
//
//nolint:lll // readablity
var (
	WaitForServices   string // duration to wait for other services to be ready
	LogLevel          string // sets the log level (zap log level values)
	LogFormat         string // text vs json
	LogConfig         string // path to log config file
	LogFilter         string // zapfilter rules, e.g. "debug:race info:*"
	EnableTelemetry   bool   // enable telemetry
	TelemetryEndpoint string // endpoint for telemetry, "stdout" prints to stdout
	NatsURL           string // NATS server for the relay, empty disables the relay
	GeminiAPIKey      string // api key for the Gemini commentary generator
	GeminiModel       string // Gemini model name
)

var (
	ErrInvalidTickRate = errors.New("tick rate must be positive")
	ErrInvalidMaxLaps  = errors.New("max laps must be at least 1")
)

// Config holds the race parameters used by the application
type Config struct {
	MaxLaps            int
	Seed               uint64 // 0 picks a random seed
	TickRate           int    // simulation frames per second
	MaxTickDelta       time.Duration
	CommentaryCooldown time.Duration
	CommentaryTimeout  time.Duration
	Realtime           bool          // pace frames with the wall clock
	RaceTimeout        time.Duration // simulated time after which the race is abandoned
	StandingsEvery     uint64        // relay every n-th snapshot
}

func DefaultConfig() Config {
	return Config{
		MaxLaps:            3,
		TickRate:           60,
		MaxTickDelta:       50 * time.Millisecond,
		CommentaryCooldown: 6 * time.Second,
		CommentaryTimeout:  10 * time.Second,
		RaceTimeout:        10 * time.Minute,
		StandingsEvery:     30,
	}
}

func (c *Config) Validate() error {
	if c.MaxLaps < 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidMaxLaps, c.MaxLaps)
	}
	if c.TickRate <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidTickRate, c.TickRate)
	}
	return nil
}

// FrameDelta is the duration of one frame at TickRate.
func (c *Config) FrameDelta() time.Duration {
	return time.Second / time.Duration(c.TickRate)
}

// ServiceWait parses WaitForServices, falling back to def.
func ServiceWait(def time.Duration) time.Duration {
	d, err := time.ParseDuration(WaitForServices)
	if err != nil {
		return def
	}
	return d
}
