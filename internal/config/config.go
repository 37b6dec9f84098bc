// Package config reads service settings from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/kdimtricp/repcoach/internal/database"
)

type Config struct {
	Port           string
	LogLevel       slog.Level
	MaxFrameSize   int64
	SnapshotDir    string
	MigrationsPath string
	ProfilesPath   string
	Database       database.Config
	Pose           PoseConfig
	MQTT           MQTTConfig
}

type PoseConfig struct {
	Command    string
	Args       []string
	Confidence float64
	Timeout    time.Duration
}

// Enabled reports whether a pose worker is configured.
func (p PoseConfig) Enabled() bool {
	return p.Command != ""
}

type MQTTConfig struct {
	Broker      string
	ClientID    string
	TopicPrefix string
}

func (m MQTTConfig) Enabled() bool {
	return m.Broker != ""
}

// Load reads envFiles (default ".env") into the process environment, without
// overriding variables already set, and then builds the config from it.
// Missing env files are ignored.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from getenv, applying defaults and validating.
func FromEnv(getenv func(string) string) (*Config, error) {
	env := func(key, def string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return def
	}

	cfg := &Config{
		Port:           env("PORT", "8080"),
		SnapshotDir:    env("SNAPSHOT_DIR", "./snapshots"),
		MigrationsPath: env("MIGRATIONS_PATH", "./migrations"),
		ProfilesPath:   env("EXERCISE_PROFILES", ""),
		MQTT: MQTTConfig{
			Broker:      env("MQTT_BROKER", ""),
			ClientID:    env("MQTT_CLIENT_ID", "repcoach"),
			TopicPrefix: env("MQTT_TOPIC_PREFIX", "repcoach"),
		},
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(env("LOG_LEVEL", "info"))); err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	var err error
	if cfg.MaxFrameSize, err = strconv.ParseInt(env("MAX_FRAME_SIZE", "5242880"), 10, 64); err != nil {
		return nil, fmt.Errorf("invalid MAX_FRAME_SIZE: %w", err)
	}

	cfg.Database.Type = env("DB_TYPE", "sqlite")
	if cfg.Database.Type == "postgres" {
		cfg.Database.Host = env("DB_HOST", "localhost")
		if cfg.Database.Port, err = strconv.Atoi(env("DB_PORT", "5432")); err != nil {
			return nil, fmt.Errorf("invalid DB_PORT: %w", err)
		}
		cfg.Database.User = env("DB_USER", "repcoach")
		cfg.Database.Password = env("DB_PASSWORD", "repcoach_dev")
		cfg.Database.Name = env("DB_NAME", "repcoach")
	} else {
		cfg.Database.SQLitePath = env("DB_PATH", "./repcoach.db")
	}

	cfg.Pose.Command = env("POSE_WORKER_CMD", "")
	cfg.Pose.Args = strings.Fields(getenv("POSE_WORKER_ARGS"))
	if cfg.Pose.Confidence, err = strconv.ParseFloat(env("POSE_CONFIDENCE", "0.5"), 64); err != nil {
		return nil, fmt.Errorf("invalid POSE_CONFIDENCE: %w", err)
	}
	timeoutMS, err := strconv.Atoi(env("POSE_TIMEOUT_MS", "2000"))
	if err != nil {
		return nil, fmt.Errorf("invalid POSE_TIMEOUT_MS: %w", err)
	}
	cfg.Pose.Timeout = time.Duration(timeoutMS) * time.Millisecond

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if port, err := strconv.Atoi(c.Port); err != nil || port <= 0 || port > 65535 {
		return fmt.Errorf("invalid PORT %q", c.Port)
	}
	if c.MaxFrameSize <= 0 {
		return fmt.Errorf("MAX_FRAME_SIZE must be positive, got %d", c.MaxFrameSize)
	}
	switch c.Database.Type {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported DB_TYPE %q (want sqlite or postgres)", c.Database.Type)
	}
	if c.Pose.Confidence < 0 || c.Pose.Confidence > 1 {
		return fmt.Errorf("POSE_CONFIDENCE must be in [0, 1], got %g", c.Pose.Confidence)
	}
	if c.Pose.Timeout <= 0 {
		return fmt.Errorf("POSE_TIMEOUT_MS must be positive")
	}
	if c.MQTT.Enabled() && c.MQTT.TopicPrefix == "" {
		return fmt.Errorf("MQTT_TOPIC_PREFIX must not be empty")
	}
	return nil
}
