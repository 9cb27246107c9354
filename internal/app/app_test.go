package app

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const testConfig = `{
  "spotify": {
    "client_id": "test-client-id",
    "client_secret": "test-client-secret",
    "redirect_uri": "http://127.0.0.1:8080/callback"
  },
  "discord": {
    "token": "test-bot-token",
    "user_id": "316238373641519105"
  },
  "log": {"level": "debug"}
}`

func writeTestConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestInit_WithValidConfig_Succeeds(t *testing.T) {
	defer slog.SetDefault(slog.Default())
	path := writeTestConfig(t, testConfig)

	var buf bytes.Buffer
	cfg, closer, err := Init(&buf, path)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	defer closer.Close()

	if cfg.DiscordUserID != "316238373641519105" {
		t.Errorf("DiscordUserID = %q", cfg.DiscordUserID)
	}

	// 設定のlog.levelが反映され、JSONで出力されること
	slog.Default().Debug("init test")
	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected JSON log output, got error: %v\nraw: %s", err, buf.String())
	}
	if entry["msg"] != "init test" {
		t.Errorf("msg = %q, want %q", entry["msg"], "init test")
	}
}

func TestInit_WithLogFile_WritesBoth(t *testing.T) {
	defer slog.SetDefault(slog.Default())
	logPath := filepath.Join(t.TempDir(), "harmony.log")
	path := writeTestConfig(t, strings.Replace(testConfig, `"log": {"level": "debug"}`,
		`"log": {"level": "info", "file": "`+filepath.ToSlash(logPath)+`"}`, 1))

	var buf bytes.Buffer
	_, closer, err := Init(&buf, path)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	slog.Info("to file")
	if err := closer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("expected log file, got %v", err)
	}
	if !strings.Contains(string(data), "to file") {
		t.Errorf("log file = %q", string(data))
	}
	if !strings.Contains(buf.String(), "to file") {
		t.Errorf("writer = %q", buf.String())
	}
}

func TestInit_WithMissingConfig_ReturnsError(t *testing.T) {
	defer slog.SetDefault(slog.Default())

	var buf bytes.Buffer
	cfg, _, err := Init(&buf, filepath.Join(t.TempDir(), "missing.json"))
	if err == nil {
		t.Fatal("expected error for missing config file, got nil")
	}
	if cfg != nil {
		t.Error("expected nil config on error")
	}
}

func TestRun_WithMissingRequiredKeys_ReturnsError(t *testing.T) {
	defer slog.SetDefault(slog.Default())
	path := writeTestConfig(t, `{"spotify": {"client_id": "x"}}`)

	var buf bytes.Buffer
	for _, args := range [][]string{
		{"--config", path},
		{"serve", "--config", path},
		{"worker", "--config", path},
	} {
		err := Run(&buf, args)
		if err == nil {
			t.Fatalf("Run(%v) should fail for missing required keys", args)
		}
		if !strings.Contains(err.Error(), "discord.token") {
			t.Errorf("Run(%v) error = %v, want mention of discord.token", args, err)
		}
	}
}
