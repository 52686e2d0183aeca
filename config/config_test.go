package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `{
		"app_name": "TestApp",
		"listen_ip": "127.0.0.1",
		"listen_port": 9090,
		"session_key": "test-session-key",
		"backend": "memory",
		"coach_timeout_seconds": 5,
		"secure_cookies": true
	}`)

	if err := LoadConfig(path); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if AppConfig.AppName != "TestApp" {
		t.Errorf("Expected AppName 'TestApp', got '%s'", AppConfig.AppName)
	}
	if AppConfig.Addr() != "127.0.0.1:9090" {
		t.Errorf("Expected addr 127.0.0.1:9090, got %s", AppConfig.Addr())
	}
	if AppConfig.SessionKey != "test-session-key" || AppConfig.GeneratedKey {
		t.Errorf("Expected SessionKey 'test-session-key', got '%s'", AppConfig.SessionKey)
	}
	if AppConfig.Backend != BackendMemory || !AppConfig.SecureCookies {
		t.Errorf("Unexpected backend/cookies: %+v", AppConfig)
	}
	if AppConfig.CoachTimeout() != 5*time.Second {
		t.Errorf("Expected coach timeout 5s, got %v", AppConfig.CoachTimeout())
	}
	if AppConfig.GeminiModel != "gemini-2.0-flash" || AppConfig.DBPath != "bienestar.db" {
		t.Errorf("Defaults not applied: %+v", AppConfig)
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("BIENESTAR_SESSION_KEY", "from-env")
	t.Setenv("BIENESTAR_DB_PATH", "/tmp/env.db")
	t.Setenv("GEMINI_API_KEY", "gk")

	path := writeConfig(t, `{"session_key": "from-file", "db_path": "file.db"}`)
	if err := LoadConfig(path); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if AppConfig.SessionKey != "from-env" || AppConfig.DBPath != "/tmp/env.db" || AppConfig.GeminiAPIKey != "gk" {
		t.Errorf("Env overrides not applied: %+v", AppConfig)
	}
}

func TestLoadConfigGeneratesKey(t *testing.T) {
	path := writeConfig(t, `{"session_key": "CHANGE_ME_IN_PRODUCTION"}`)
	if err := LoadConfig(path); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if !AppConfig.GeneratedKey || len(AppConfig.SessionKey) != 64 {
		t.Errorf("Expected a generated 64-char key, got %q", AppConfig.SessionKey)
	}
}

func TestLoadConfigWithoutFile(t *testing.T) {
	if err := LoadConfig(""); err != nil {
		t.Fatalf("LoadConfig(\"\") failed: %v", err)
	}
	if AppConfig.ListenPort != 8080 || AppConfig.Backend != BackendSQLite {
		t.Errorf("Expected defaults, got %+v", AppConfig)
	}
}

func TestLoadConfigInvalidPath(t *testing.T) {
	err := LoadConfig("non-existent-path.json")
	if err == nil {
		t.Error("LoadConfig with non-existent path should have failed")
	}
}

func TestLoadConfigInvalidJSON(t *testing.T) {
	path := writeConfig(t, `{ "invalid": json }`)
	if err := LoadConfig(path); err == nil {
		t.Error("LoadConfig with invalid JSON should have failed")
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
		ok   bool
	}{
		{"sqlite", Config{Backend: BackendSQLite}, true},
		{"redis without addr", Config{Backend: BackendRedis}, false},
		{"redis", Config{Backend: BackendRedis, RedisAddr: "localhost:6379"}, true},
		{"unknown", Config{Backend: "etcd"}, false},
		{"bad port", Config{Backend: BackendMemory, ListenPort: 70000}, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := c.cfg.Validate()
			if (err == nil) != c.ok {
				t.Errorf("Validate() = %v, want ok=%v", err, c.ok)
			}
		})
	}
}
