package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	if cfg.Dispatcher.SendTimeout != 120*time.Second {
		t.Errorf("SendTimeout = %v, want 120s", cfg.Dispatcher.SendTimeout)
	}
	if cfg.Dispatcher.FanoutLimit != 8 {
		t.Errorf("FanoutLimit = %d, want 8", cfg.Dispatcher.FanoutLimit)
	}
	if cfg.Orchestrator.Threshold != 0.3 {
		t.Errorf("Threshold = %v, want 0.3", cfg.Orchestrator.Threshold)
	}
	if cfg.History.Backend != "memory" {
		t.Errorf("History.Backend = %q, want %q", cfg.History.Backend, "memory")
	}
	if cfg.Logger.Level != "info" {
		t.Errorf("Logger.Level = %q, want %q", cfg.Logger.Level, "info")
	}
}

func TestLoadNonExistentReturnsDefaults(t *testing.T) {
	cfg, err := Load("/tmp/nonexistent-config-12345.yaml")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Dispatcher.FanoutLimit != 8 {
		t.Errorf("expected defaults, got FanoutLimit=%d", cfg.Dispatcher.FanoutLimit)
	}
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
dispatcher:
  send_timeout: 30s
  fanout_limit: 4
llm:
  providers:
    - id: "gpt-main"
      type: "openai"
      base_url: "https://api.openai.com/v1"
      api_key: "test-key"
      model: "gpt-4o-mini"
orchestrator:
  threshold: 0.5
roles:
  - role: "coder"
    adapter: "gpt-main"
logger:
  level: "debug"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Dispatcher.SendTimeout != 30*time.Second {
		t.Errorf("SendTimeout = %v, want 30s", cfg.Dispatcher.SendTimeout)
	}
	if cfg.Dispatcher.FanoutLimit != 4 {
		t.Errorf("FanoutLimit = %d, want 4", cfg.Dispatcher.FanoutLimit)
	}
	if cfg.Orchestrator.Threshold != 0.5 {
		t.Errorf("Threshold = %v, want 0.5", cfg.Orchestrator.Threshold)
	}
	if len(cfg.LLM.Providers) != 1 || cfg.LLM.Providers[0].APIKey != "test-key" {
		t.Errorf("Providers mismatch: %+v", cfg.LLM.Providers)
	}
	if len(cfg.Roles) != 1 || cfg.Roles[0].Adapter != "gpt-main" {
		t.Errorf("Roles mismatch: %+v", cfg.Roles)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("CONDUCTOR_LOGGER_LEVEL", "debug")
	t.Setenv("CONDUCTOR_SEND_TIMEOUT", "45s")
	t.Setenv("CONDUCTOR_FANOUT_LIMIT", "16")

	cfg := Defaults()
	ApplyEnvOverrides(cfg)

	if cfg.Logger.Level != "debug" {
		t.Errorf("Logger.Level = %q, want %q", cfg.Logger.Level, "debug")
	}
	if cfg.Dispatcher.SendTimeout != 45*time.Second {
		t.Errorf("SendTimeout = %v, want 45s", cfg.Dispatcher.SendTimeout)
	}
	if cfg.Dispatcher.FanoutLimit != 16 {
		t.Errorf("FanoutLimit = %d, want 16", cfg.Dispatcher.FanoutLimit)
	}
}

func TestValidateSqliteRequiresPath(t *testing.T) {
	cfg := Defaults()
	cfg.History.Backend = "sqlite"
	if err := Validate(cfg); err == nil {
		t.Error("expected error for sqlite backend without path")
	}
	cfg.History.Path = "/tmp/history.db"
	if err := Validate(cfg); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestValidateDuplicateProviderID(t *testing.T) {
	cfg := Defaults()
	cfg.LLM.Providers = []ProviderConfig{
		{ID: "a", Type: "openai", Model: "gpt-4o"},
		{ID: "a", Type: "gemini", Model: "gemini-pro"},
	}
	if err := Validate(cfg); err == nil {
		t.Error("expected error for duplicate provider id")
	}
}

func TestValidateThresholdRange(t *testing.T) {
	cfg := Defaults()
	cfg.Orchestrator.Threshold = 1.5
	if err := Validate(cfg); err == nil {
		t.Error("expected error for threshold out of range")
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	passphrase := "test-passphrase-123"
	plaintext := "sk-abcdef123456"

	encrypted, err := EncryptValue(plaintext, passphrase)
	if err != nil {
		t.Fatalf("EncryptValue: %v", err)
	}

	decrypted, err := DecryptValue(encrypted, passphrase)
	if err != nil {
		t.Fatalf("DecryptValue: %v", err)
	}

	if decrypted != plaintext {
		t.Errorf("got %q, want %q", decrypted, plaintext)
	}
}

func TestDecryptWrongPassphrase(t *testing.T) {
	encrypted, err := EncryptValue("secret", "correct-pass")
	if err != nil {
		t.Fatal(err)
	}

	_, err = DecryptValue(encrypted, "wrong-pass")
	if err == nil {
		t.Error("expected error with wrong passphrase")
	}
}

func TestDecryptSecretsInLoad(t *testing.T) {
	passphrase := "test-config-key"
	plainAPIKey := "sk-secret123456"

	encrypted, err := EncryptValue(plainAPIKey, passphrase)
	if err != nil {
		t.Fatal(err)
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
llm:
  providers:
    - id: "p1"
      type: "openai"
      model: "gpt-4o-mini"
      api_key: "enc:` + encrypted + `"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("CONDUCTOR_CONFIG_KEY", passphrase)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LLM.Providers[0].APIKey != plainAPIKey {
		t.Errorf("api_key = %q, want decrypted %q", cfg.LLM.Providers[0].APIKey, plainAPIKey)
	}
}
