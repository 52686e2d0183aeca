package config

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"time"
)

const placeholderKey = "CHANGE_ME_IN_PRODUCTION"

// Record backends.
const (
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

type Config struct {
	AppName             string `json:"app_name"`
	ListenIP            string `json:"listen_ip"`
	ListenPort          int    `json:"listen_port"`
	SessionKey          string `json:"session_key"`
	DBPath              string `json:"db_path"`
	Backend             string `json:"backend"`
	RedisAddr           string `json:"redis_addr"`
	RedisPrefix         string `json:"redis_prefix"`
	GeminiAPIKey        string `json:"gemini_api_key"`
	GeminiModel         string `json:"gemini_model"`
	CoachTimeoutSeconds int    `json:"coach_timeout_seconds"`
	LogMode             string `json:"log_mode"`
	CatalogPath         string `json:"catalog_path"`
	SecureCookies       bool   `json:"secure_cookies"`

	// GeneratedKey is set when SessionKey was generated at load time.
	GeneratedKey bool `json:"-"`
}

var AppConfig Config

// Defaults returns the configuration used for any field left empty.
func Defaults() Config {
	return Config{
		AppName:             "Bienestar",
		ListenIP:            "127.0.0.1",
		ListenPort:          8080,
		DBPath:              "bienestar.db",
		Backend:             BackendSQLite,
		RedisPrefix:         "bienestar:",
		GeminiModel:         "gemini-2.0-flash",
		CoachTimeoutSeconds: 20,
		LogMode:             "dev",
	}
}

// ApplyDefaults fills zero-valued fields from Defaults.
func (c *Config) ApplyDefaults() {
	d := Defaults()
	if c.AppName == "" {
		c.AppName = d.AppName
	}
	if c.ListenIP == "" {
		c.ListenIP = d.ListenIP
	}
	if c.ListenPort == 0 {
		c.ListenPort = d.ListenPort
	}
	if c.DBPath == "" {
		c.DBPath = d.DBPath
	}
	if c.Backend == "" {
		c.Backend = d.Backend
	}
	if c.RedisPrefix == "" {
		c.RedisPrefix = d.RedisPrefix
	}
	if c.GeminiModel == "" {
		c.GeminiModel = d.GeminiModel
	}
	if c.CoachTimeoutSeconds <= 0 {
		c.CoachTimeoutSeconds = d.CoachTimeoutSeconds
	}
	if c.LogMode == "" {
		c.LogMode = d.LogMode
	}
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendSQLite, BackendMemory:
	case BackendRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("backend %q requires redis_addr", c.Backend)
		}
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	if c.ListenPort < 0 || c.ListenPort > 65535 {
		return fmt.Errorf("invalid listen_port %d", c.ListenPort)
	}
	return nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.ListenIP, c.ListenPort)
}

func (c *Config) CoachTimeout() time.Duration {
	return time.Duration(c.CoachTimeoutSeconds) * time.Second
}

// LoadConfig reads path into AppConfig. A missing file is only accepted
// when path is empty, in which case defaults and the environment apply.
func LoadConfig(path string) error {
	cfg := Config{}
	if path != "" {
		file, err := os.Open(path)
		if err != nil {
			return err
		}
		defer file.Close()

		decoder := json.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return fmt.Errorf("decode %s: %w", path, err)
		}
	}

	applyEnv(&cfg)
	cfg.ApplyDefaults()

	// If no key is provided or it's the placeholder, generate a secure random one
	if cfg.SessionKey == "" || cfg.SessionKey == placeholderKey {
		randomKey := make([]byte, 32)
		if _, err := rand.Read(randomKey); err != nil {
			return err
		}
		cfg.SessionKey = hex.EncodeToString(randomKey)
		cfg.GeneratedKey = true
	}

	if err := cfg.Validate(); err != nil {
		return err
	}
	AppConfig = cfg
	return nil
}

func applyEnv(c *Config) {
	if v := os.Getenv("BIENESTAR_SESSION_KEY"); v != "" {
		c.SessionKey = v
	}
	if v := os.Getenv("BIENESTAR_DB_PATH"); v != "" {
		c.DBPath = v
	}
	if v := os.Getenv("BIENESTAR_REDIS_ADDR"); v != "" {
		c.RedisAddr = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		c.GeminiAPIKey = v
	}
}
