package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL string
	NATSURL     string // empty disables publishing
	RedisAddr   string // empty disables the snapshot cache
	MetricsAddr string // empty disables the metrics server
	OpsAddr     string // empty disables the ops server

	TickInterval     time.Duration
	SpeedMultiplier  float64
	ArrivalStatus    string
	WriteConcurrency int
	SnapshotTTL      time.Duration
	Seed             int64 // 0 seeds from the clock

	LogNATSSubjects  bool
	ReconcileOnStart bool
}

func Load() (*Config, error) {
	// Read .env if present; variables already in the environment win.
	_ = godotenv.Load()

	cfg := &Config{}

	// Database URL: prefer DATABASE_URL / PG_DSN, else build from PG* vars
	dsn := firstNonEmpty(
		os.Getenv("DATABASE_URL"),
		os.Getenv("PG_DSN"),
	)
	if dsn == "" {
		host := getenvDefault("PGHOST", "127.0.0.1")
		port := getenvDefault("PGPORT", "5432")
		user := getenvDefault("PGUSER", "postgres")
		pass := os.Getenv("PGPASSWORD")
		db := os.Getenv("PGDATABASE")
		if db == "" {
			return nil, errors.New("PGDATABASE or DATABASE_URL must be set")
		}
		sslmode := getenvDefault("PGSSLMODE", "disable")
		if pass != "" {
			cfg.DatabaseURL = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", urlEscape(user), urlEscape(pass), host, port, db, sslmode)
		} else {
			cfg.DatabaseURL = fmt.Sprintf("postgres://%s@%s:%s/%s?sslmode=%s", urlEscape(user), host, port, db, sslmode)
		}
	} else {
		cfg.DatabaseURL = dsn
	}

	// Optional outputs. Empty addresses disable the component. The ops
	// server defaults on, so unset and set-to-empty differ for OPS_ADDR.
	cfg.NATSURL = os.Getenv("NATS_URL")
	cfg.RedisAddr = os.Getenv("REDIS_ADDR")
	cfg.MetricsAddr = os.Getenv("METRICS_ADDR")
	if v, ok := os.LookupEnv("OPS_ADDR"); ok {
		cfg.OpsAddr = v
	} else {
		cfg.OpsAddr = ":8080"
	}

	// Tick interval
	if v := os.Getenv("TICK_INTERVAL_MS"); v != "" {
		ms, err := strconv.Atoi(v)
		if err != nil || ms <= 0 {
			return nil, fmt.Errorf("invalid TICK_INTERVAL_MS: %q", v)
		}
		cfg.TickInterval = time.Duration(ms) * time.Millisecond
	} else {
		cfg.TickInterval = 3 * time.Second
	}

	// Speed multiplier
	if v := os.Getenv("SPEED_MULTIPLIER"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 {
			return nil, fmt.Errorf("invalid SPEED_MULTIPLIER: %q", v)
		}
		cfg.SpeedMultiplier = f
	} else {
		cfg.SpeedMultiplier = 1.0
	}

	// Terminal shipment status written on arrival; validated by the domain
	// layer at startup.
	cfg.ArrivalStatus = getenvDefault("ARRIVAL_STATUS", "delivered")

	// Bound on concurrent per-vehicle writes within a tick
	if v := os.Getenv("WRITE_CONCURRENCY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid WRITE_CONCURRENCY: %q", v)
		}
		cfg.WriteConcurrency = n
	} else {
		cfg.WriteConcurrency = 16
	}

	// Snapshot TTL (seconds)
	if v := os.Getenv("SNAPSHOT_TTL_SEC"); v != "" {
		sec, err := strconv.Atoi(v)
		if err != nil || sec <= 0 {
			return nil, fmt.Errorf("invalid SNAPSHOT_TTL_SEC: %q", v)
		}
		cfg.SnapshotTTL = time.Duration(sec) * time.Second
	} else {
		cfg.SnapshotTTL = time.Minute
	}

	// Pacing jitter seed; 0 seeds from the clock
	if v := os.Getenv("SIM_SEED"); v != "" {
		seed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid SIM_SEED: %q", v)
		}
		cfg.Seed = seed
	}

	cfg.LogNATSSubjects = boolEnv("LOG_NATS_SUBJECTS", false)
	cfg.ReconcileOnStart = boolEnv("RECONCILE_ON_START", true)

	return cfg, nil
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func boolEnv(k string, def bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "t", "yes", "y", "on":
		return true
	default:
		return false
	}
}

func urlEscape(s string) string {
	// Escape the characters that break the userinfo segment of a DSN.
	r := strings.NewReplacer("@", "%40", ":", "%3A", "/", "%2F", "?", "%3F", "#", "%23")
	return r.Replace(s)
}
