// Package config resolves the instance configuration once at startup: an
// optional YAML file layered under environment variables. Formatting and
// display settings travel as explicit fields, never as shared mutable state.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Version is the software version reported by /api/config and the footer.
const Version = "v1.0.0"

// SoftwareName identifies this implementation.
const SoftwareName = "Textpile"

// StoreConfig selects and configures the key-value backend.
type StoreConfig struct {
	// Backend is one of badger, redis, sqlite, memory.
	Backend string `yaml:"backend"`

	// BadgerDir is the data directory for the badger backend.
	BadgerDir string `yaml:"badger_dir"`

	// RedisAddr, RedisPassword, RedisDB configure the redis backend.
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`

	// SQLitePath is the database file for the sqlite backend.
	SQLitePath string `yaml:"sqlite_path"`

	// ReclaimAfter, when non-zero, is passed to the backend as a per-post
	// TTL so stores with native expiry can eventually reclaim dead records.
	// Expiration as seen by readers is always computed from post metadata,
	// never from this knob.
	ReclaimAfter time.Duration `yaml:"reclaim_after"`
}

// Config holds all configuration for the instance.
type Config struct {
	// Port is the HTTP listen port.
	Port int `yaml:"port"`

	// BaseURL is the public base URL used in feeds and sitemaps. When empty
	// it is derived from each request's Host header.
	BaseURL string `yaml:"base_url"`

	// InstanceName names this instance (page titles, feed title).
	InstanceName string `yaml:"instance_name"`

	// CommunityName names the community or group using this instance.
	CommunityName string `yaml:"community_name"`

	// AdminEmail is the contact shown in the footer. Optional.
	AdminEmail string `yaml:"admin_email"`

	// DateFormat and TimeFormat are display format hints handed to clients
	// via /api/config.
	DateFormat string `yaml:"date_format"`
	TimeFormat string `yaml:"time_format"`

	// DefaultRetention is the lifespan applied to new posts: one of 1week,
	// 1month, 3months, 6months, 1year, or forever.
	DefaultRetention string `yaml:"default_retention"`

	// SubmitToken, when set, is the shared password required to add posts.
	SubmitToken string `yaml:"submit_token"`

	// AdminToken, when set, authorizes removals and the admin endpoints.
	AdminToken string `yaml:"admin_token"`

	// BasicAuthUser/BasicAuthPass, when both set, put the whole site behind
	// HTTP Basic Auth (private-community mode).
	BasicAuthUser string `yaml:"basic_auth_user"`
	BasicAuthPass string `yaml:"basic_auth_pass"`

	// PublicSourceZip advertises a source download link in the footer.
	PublicSourceZip bool `yaml:"public_source_zip"`

	Store StoreConfig `yaml:"store"`
}

// retentions maps the retention vocabulary to fixed civil approximations
// (weeks of 7 days, months of 30, years of 365) so expiresAt is
// deterministic.
var retentions = map[string]time.Duration{
	"1week":   7 * 24 * time.Hour,
	"1month":  30 * 24 * time.Hour,
	"3months": 90 * 24 * time.Hour,
	"6months": 180 * 24 * time.Hour,
	"1year":   365 * 24 * time.Hour,
	"forever": 0,
}

// RetentionDuration parses DefaultRetention. Zero means posts never expire.
func (c *Config) RetentionDuration() (time.Duration, error) {
	if c.DefaultRetention == "" {
		return 0, nil
	}
	d, ok := retentions[c.DefaultRetention]
	if !ok {
		return 0, fmt.Errorf("invalid retention %q (want 1week, 1month, 3months, 6months, 1year, or forever)", c.DefaultRetention)
	}
	return d, nil
}

func defaults() *Config {
	return &Config{
		Port:             3000,
		InstanceName:     "Textpile",
		CommunityName:    "the community",
		DateFormat:       "YYYY-MM-DD",
		TimeFormat:       "HH:mm",
		DefaultRetention: "1month",
		Store: StoreConfig{
			Backend:    "badger",
			BadgerDir:  "data/badger",
			RedisAddr:  "localhost:6379",
			SQLitePath: "data/textpile.db",
		},
	}
}

// Load builds the configuration: defaults, then the YAML file named by
// TEXTPILE_CONFIG (if any), then environment variables.
func Load() (*Config, error) {
	cfg := defaults()

	if path := os.Getenv("TEXTPILE_CONFIG"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if _, err := cfg.RetentionDuration(); err != nil {
		return nil, err
	}
	switch cfg.Store.Backend {
	case "badger", "redis", "sqlite", "memory":
	default:
		return nil, fmt.Errorf("invalid store backend %q (want badger, redis, sqlite, or memory)", cfg.Store.Backend)
	}

	return cfg, nil
}

func (c *Config) applyEnv() error {
	if p := os.Getenv("PORT"); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return fmt.Errorf("invalid PORT: %w", err)
		}
		c.Port = port
	}

	setString(&c.BaseURL, "BASE_URL")
	setString(&c.InstanceName, "INSTANCE_NAME")
	setString(&c.CommunityName, "COMMUNITY_NAME")
	setString(&c.AdminEmail, "ADMIN_EMAIL")
	setString(&c.DateFormat, "DATE_FORMAT")
	setString(&c.TimeFormat, "TIME_FORMAT")
	setString(&c.DefaultRetention, "DEFAULT_RETENTION")
	setString(&c.SubmitToken, "ADD_POST_PASSWORD")
	setString(&c.AdminToken, "ADMIN_TOKEN")
	setString(&c.BasicAuthUser, "BASIC_AUTH_USER")
	setString(&c.BasicAuthPass, "BASIC_AUTH_PASS")
	setString(&c.Store.Backend, "STORE_BACKEND")
	setString(&c.Store.BadgerDir, "BADGER_DIR")
	setString(&c.Store.RedisAddr, "REDIS_ADDR")
	setString(&c.Store.RedisPassword, "REDIS_PASSWORD")
	setString(&c.Store.SQLitePath, "SQLITE_PATH")

	if v := os.Getenv("REDIS_DB"); v != "" {
		db, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid REDIS_DB: %w", err)
		}
		c.Store.RedisDB = db
	}
	if v := os.Getenv("PUBLIC_SOURCE_ZIP"); v != "" {
		c.PublicSourceZip = v == "1" || v == "true"
	}
	if v := os.Getenv("STORE_RECLAIM_AFTER"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid STORE_RECLAIM_AFTER: %w", err)
		}
		c.Store.ReclaimAfter = d
	}

	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
