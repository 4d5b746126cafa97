package cfg

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func TestGetVersion(t *testing.T) {
	if GetVersion() == "" {
		t.Error("GetVersion should never return empty string")
	}
}

func TestParseDefaults(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "token")

	cfg, err := parse(nil)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if cfg.DiscordToken != "token" {
		t.Errorf("Expected token 'token', got '%s'", cfg.DiscordToken)
	}
	if cfg.CommandPrefix != "!" {
		t.Errorf("Expected prefix '!', got '%s'", cfg.CommandPrefix)
	}
	if cfg.Storage != StorageSQLite {
		t.Errorf("Expected storage '%s', got '%s'", StorageSQLite, cfg.Storage)
	}
	if cfg.SchedulerInterval != 900 {
		t.Errorf("Expected scheduler interval 900, got %d", cfg.SchedulerInterval)
	}
	if cfg.FetchTimeout != 30 {
		t.Errorf("Expected fetch timeout 30, got %d", cfg.FetchTimeout)
	}
	if cfg.Port != "8080" {
		t.Errorf("Expected port '8080', got '%s'", cfg.Port)
	}
	if cfg.Version == "" {
		t.Error("Expected version to be set")
	}
}

func TestParseEnvironment(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "token")
	t.Setenv("STORAGE", "redis")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("OWNER_ID", "1234")
	t.Setenv("SCHEDULER_INTERVAL", "60")

	cfg, err := parse(nil)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if cfg.Storage != StorageRedis {
		t.Errorf("Expected storage '%s', got '%s'", StorageRedis, cfg.Storage)
	}
	if cfg.RedisAddr != "redis:6379" {
		t.Errorf("Expected redis addr 'redis:6379', got '%s'", cfg.RedisAddr)
	}
	if cfg.RedisDB != 2 {
		t.Errorf("Expected redis db 2, got %d", cfg.RedisDB)
	}
	if cfg.OwnerID != "1234" {
		t.Errorf("Expected owner '1234', got '%s'", cfg.OwnerID)
	}
	if cfg.SchedulerInterval != 60 {
		t.Errorf("Expected scheduler interval 60, got %d", cfg.SchedulerInterval)
	}
}

func TestParseFlagsOverrideEnvironment(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "token")
	t.Setenv("PORT", "9000")

	cfg, err := parse([]string{"--port", "9100", "--command-prefix", "?"})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if cfg.Port != "9100" {
		t.Errorf("Expected port '9100', got '%s'", cfg.Port)
	}
	if cfg.CommandPrefix != "?" {
		t.Errorf("Expected prefix '?', got '%s'", cfg.CommandPrefix)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"missing token", map[string]string{"DISCORD_TOKEN": ""}},
		{"unknown storage", map[string]string{"DISCORD_TOKEN": "t", "STORAGE": "postgres"}},
		{"zero interval", map[string]string{"DISCORD_TOKEN": "t", "SCHEDULER_INTERVAL": "0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				if v == "" {
					t.Setenv(k, "")
					os.Unsetenv(k)
					continue
				}
				t.Setenv(k, v)
			}

			if _, err := parse(nil); err == nil {
				t.Error("Expected configuration error")
			}
		})
	}
}

func TestSetupLoggerFile(t *testing.T) {
	defer slog.SetDefault(slog.Default())

	path := filepath.Join(t.TempDir(), "logs", "postcard.log")
	closer, err := SetupLogger(&Cfg{LogFile: path, Debug: true})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	slog.Debug("Logger test", "key", "value")

	if err := closer.Close(); err != nil {
		t.Fatalf("Expected close to succeed, got: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Expected log file, got: %v", err)
	}
	if len(data) == 0 {
		t.Error("Expected log file to contain the debug record")
	}
}
