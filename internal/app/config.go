package app

import (
	"strconv"
	"strings"
	"time"

	"navbridge/internal/observability"
	"navbridge/internal/random"
	"navbridge/internal/telemetry"
	"navbridge/logging"
)

// Config is the full runtime configuration of the server.
type Config struct {
	Logger telemetry.Logger

	ListenAddr string
	// MeshPath is loaded at startup and is the default for nav.load.
	MeshPath string
	// NavEnabled false answers every navigation native as unavailable.
	NavEnabled bool
	TickRate   int
	// Seed drives the tracker recheck jitter.
	Seed string

	CommandCapacity int
	PerActorLimit   int
	CallTimeout     time.Duration

	LogLevel    logging.Severity
	LogJSONPath string

	Observability observability.Config
}

func DefaultConfig() Config {
	return Config{
		ListenAddr:      ":8080",
		NavEnabled:      true,
		TickRate:        15,
		Seed:            random.DefaultSeed,
		CommandCapacity: 1024,
		PerActorLimit:   64,
		CallTimeout:     5 * time.Second,
		LogLevel:        logging.SeverityInfo,
	}
}

// ApplyEnv overrides cfg from the environment. Invalid values are logged and
// ignored.
func ApplyEnv(cfg Config, getenv func(string) string, logger telemetry.Logger) Config {
	if getenv == nil {
		return cfg
	}
	warn := func(key, raw string, err error) {
		if logger != nil {
			logger.Printf("invalid %s=%q: %v", key, raw, err)
		}
	}

	if raw := strings.TrimSpace(getenv("LISTEN_ADDR")); raw != "" {
		cfg.ListenAddr = raw
	}
	if raw := strings.TrimSpace(getenv("NAV_MESH_PATH")); raw != "" {
		cfg.MeshPath = raw
	}
	if raw := getenv("NAV_ENABLED"); raw != "" {
		if value, err := strconv.ParseBool(raw); err == nil {
			cfg.NavEnabled = value
		} else {
			warn("NAV_ENABLED", raw, err)
		}
	}
	if raw := getenv("TICK_RATE"); raw != "" {
		value, err := strconv.Atoi(raw)
		if err == nil && value <= 0 {
			err = strconv.ErrRange
		}
		if err == nil {
			cfg.TickRate = value
		} else {
			warn("TICK_RATE", raw, err)
		}
	}
	if raw := strings.TrimSpace(getenv("NAV_SEED")); raw != "" {
		cfg.Seed = raw
	}
	if raw := getenv("LOG_LEVEL"); raw != "" {
		if level, ok := logging.ParseSeverity(raw); ok {
			cfg.LogLevel = level
		} else if logger != nil {
			logger.Printf("invalid LOG_LEVEL=%q", raw)
		}
	}
	if raw := strings.TrimSpace(getenv("LOG_JSON_PATH")); raw != "" {
		cfg.LogJSONPath = raw
	}
	if raw := getenv("ENABLE_PPROF_TRACE"); raw != "" {
		if value, err := strconv.ParseBool(raw); err == nil {
			cfg.Observability.EnablePprofTrace = value
		} else {
			warn("ENABLE_PPROF_TRACE", raw, err)
		}
	}
	return cfg
}
