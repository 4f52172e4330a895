package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	if cfg.Supervisor.WorkerTimeout != 30*time.Second {
		t.Errorf("WorkerTimeout = %v, want 30s", cfg.Supervisor.WorkerTimeout)
	}
	if cfg.Supervisor.HealthInterval != 15*time.Second {
		t.Errorf("HealthInterval = %v, want 15s", cfg.Supervisor.HealthInterval)
	}
	if cfg.Worker.Cache.Threshold != 0.7 {
		t.Errorf("Cache.Threshold = %v, want 0.7", cfg.Worker.Cache.Threshold)
	}
	if cfg.Worker.Capability != "assignment-guidance" {
		t.Errorf("Capability = %q, want %q", cfg.Worker.Capability, "assignment-guidance")
	}
	if cfg.Logger.Level != "info" {
		t.Errorf("Logger.Level = %q, want %q", cfg.Logger.Level, "info")
	}
}

func TestLoadNonExistentReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Supervisor.ID != "SupervisorAgent_Main" {
		t.Errorf("expected defaults, got Supervisor.ID=%q", cfg.Supervisor.ID)
	}
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tutorgrid.yaml")
	content := `
supervisor:
  addr: ":9000"
  worker_timeout: 5s
  agents:
    - id: coach
      name: Assignment Coach
      url: http://localhost:5020
      capabilities: [assignment-guidance]
worker:
  mode: mock
  cache:
    path: /tmp/cache.db
    threshold: 0.35
    max_entries: 100
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
	if cfg.Supervisor.Addr != ":9000" {
		t.Errorf("Addr = %q, want %q", cfg.Supervisor.Addr, ":9000")
	}
	if cfg.Supervisor.WorkerTimeout != 5*time.Second {
		t.Errorf("WorkerTimeout = %v, want 5s", cfg.Supervisor.WorkerTimeout)
	}
	if len(cfg.Supervisor.Agents) != 1 || cfg.Supervisor.Agents[0].URL != "http://localhost:5020" {
		t.Errorf("Agents mismatch: %+v", cfg.Supervisor.Agents)
	}
	if cfg.Worker.Cache.Threshold != 0.35 {
		t.Errorf("Threshold = %v, want 0.35", cfg.Worker.Cache.Threshold)
	}
	if cfg.Worker.Cache.MaxEntries != 100 {
		t.Errorf("MaxEntries = %d, want 100", cfg.Worker.Cache.MaxEntries)
	}
	// Untouched sections keep their defaults.
	if cfg.Supervisor.HealthInterval != 15*time.Second {
		t.Errorf("HealthInterval = %v, want 15s", cfg.Supervisor.HealthInterval)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("supervisor: [unclosed"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestLoadValidationFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "invalid.yaml")
	if err := os.WriteFile(path, []byte("worker:\n  cache:\n    threshold: 1.5\n"), 0600); err != nil {
		t.Fatal(err)
	}
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if _, ok := err.(*ValidationError); !ok {
		t.Errorf("err = %T, want *ValidationError", err)
	}
}

func TestLoadInsecurePermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "insecure.yaml")
	if err := os.WriteFile(path, []byte("logger:\n  level: debug\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := os.Chmod(path, 0666); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected error for insecure permissions")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("TUTORGRID_LOGGER_LEVEL", "debug")
	t.Setenv("TUTORGRID_SUPERVISOR_ADDR", ":8100")
	t.Setenv("TUTORGRID_SUPERVISOR_WORKER_TIMEOUT", "12s")
	t.Setenv("TUTORGRID_WORKER_MODE", "MOCK")
	t.Setenv("TUTORGRID_WORKER_CACHE_THRESHOLD", "0.3")
	t.Setenv("TUTORGRID_WORKER_CACHE_MAX_ENTRIES", "50")

	cfg := Defaults()
	ApplyEnvOverrides(cfg)

	if cfg.Logger.Level != "debug" {
		t.Errorf("Logger.Level = %q, want %q", cfg.Logger.Level, "debug")
	}
	if cfg.Supervisor.Addr != ":8100" {
		t.Errorf("Addr = %q, want %q", cfg.Supervisor.Addr, ":8100")
	}
	if cfg.Supervisor.WorkerTimeout != 12*time.Second {
		t.Errorf("WorkerTimeout = %v, want 12s", cfg.Supervisor.WorkerTimeout)
	}
	if cfg.Worker.Mode != "mock" {
		t.Errorf("Mode = %q, want %q", cfg.Worker.Mode, "mock")
	}
	if cfg.Worker.Cache.Threshold != 0.3 {
		t.Errorf("Threshold = %v, want 0.3", cfg.Worker.Cache.Threshold)
	}
	if cfg.Worker.Cache.MaxEntries != 50 {
		t.Errorf("MaxEntries = %d, want 50", cfg.Worker.Cache.MaxEntries)
	}
}

func TestEnvOverridesIgnoreMalformedNumbers(t *testing.T) {
	t.Setenv("TUTORGRID_WORKER_CACHE_THRESHOLD", "high")
	t.Setenv("TUTORGRID_SUPERVISOR_WORKER_TIMEOUT", "soon")

	cfg := Defaults()
	ApplyEnvOverrides(cfg)

	if cfg.Worker.Cache.Threshold != 0.7 {
		t.Errorf("Threshold = %v, want default 0.7", cfg.Worker.Cache.Threshold)
	}
	if cfg.Supervisor.WorkerTimeout != 30*time.Second {
		t.Errorf("WorkerTimeout = %v, want default 30s", cfg.Supervisor.WorkerTimeout)
	}
}

func TestEnvOverridesVendorKeyFillsEmptyOnly(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "vendor-key")

	cfg := Defaults()
	ApplyEnvOverrides(cfg)
	if cfg.Worker.Enricher.Provider.APIKey != "vendor-key" {
		t.Errorf("APIKey = %q, want vendor-key", cfg.Worker.Enricher.Provider.APIKey)
	}

	cfg = Defaults()
	cfg.Worker.Enricher.Provider.APIKey = "explicit"
	ApplyEnvOverrides(cfg)
	if cfg.Worker.Enricher.Provider.APIKey != "explicit" {
		t.Errorf("APIKey = %q, want explicit", cfg.Worker.Enricher.Provider.APIKey)
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	passphrase := "test-passphrase-123"
	plaintext := "AIza-abcdef123456"

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
	if _, err := DecryptValue(encrypted, "wrong-pass"); err == nil {
		t.Error("expected error with wrong passphrase")
	}
}

func TestDecryptValueMalformed(t *testing.T) {
	cases := map[string]string{
		"no separator": "abcdef",
		"bad salt":     "zz:00",
		"bad data":     "00:zz",
		"too short":    "00112233445566778899aabbccddeeff:00",
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := DecryptValue(in, "pass"); err == nil {
				t.Errorf("DecryptValue(%q) should fail", in)
			}
		})
	}
}

func TestDecryptSecrets(t *testing.T) {
	passphrase := "test-config-key"
	encrypted, err := EncryptValue("AIza-secret", passphrase)
	if err != nil {
		t.Fatalf("EncryptValue: %v", err)
	}

	cfg := Defaults()
	cfg.Worker.Enricher.Provider.APIKey = "enc:" + encrypted
	cfg.Worker.Embedding.APIKey = "sk-plain"

	if err := decryptSecrets(cfg, passphrase); err != nil {
		t.Fatalf("decryptSecrets: %v", err)
	}
	if cfg.Worker.Enricher.Provider.APIKey != "AIza-secret" {
		t.Errorf("Enricher APIKey = %q, want %q", cfg.Worker.Enricher.Provider.APIKey, "AIza-secret")
	}
	if cfg.Worker.Embedding.APIKey != "sk-plain" {
		t.Errorf("plain key should remain unchanged, got %q", cfg.Worker.Embedding.APIKey)
	}
}

func TestDecryptSecretsInvalidCiphertext(t *testing.T) {
	cfg := Defaults()
	cfg.Worker.Embedding.APIKey = "enc:notvalidhex"
	if err := decryptSecrets(cfg, "passphrase"); err == nil {
		t.Error("expected error for invalid ciphertext")
	}
}

func TestLoadWithConfigKey(t *testing.T) {
	passphrase := "test-load-key"
	encrypted, err := EncryptValue("AIza-loadtest", passphrase)
	if err != nil {
		t.Fatalf("EncryptValue: %v", err)
	}

	path := filepath.Join(t.TempDir(), "tutorgrid.yaml")
	content := `
worker:
  enricher:
    provider:
      api_key: "enc:` + encrypted + `"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("TUTORGRID_CONFIG_KEY", passphrase)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Worker.Enricher.Provider.APIKey != "AIza-loadtest" {
		t.Errorf("APIKey = %q, want %q", cfg.Worker.Enricher.Provider.APIKey, "AIza-loadtest")
	}
}

func TestValidatePermissions(t *testing.T) {
	dir := t.TempDir()
	for _, mode := range []os.FileMode{0600, 0644} {
		path := filepath.Join(dir, mode.String())
		if err := os.WriteFile(path, nil, 0600); err != nil {
			t.Fatal(err)
		}
		if err := os.Chmod(path, mode); err != nil {
			t.Fatal(err)
		}
		if err := validatePermissions(path); err != nil {
			t.Errorf("mode %o: unexpected error %v", mode, err)
		}
	}
	if err := validatePermissions(filepath.Join(dir, "missing")); err == nil {
		t.Error("expected stat error")
	}
}
