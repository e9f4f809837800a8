package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.General.DataDir == "" {
		t.Error("General.DataDir should not be empty")
	}
	if cfg.API.ListenAddr != "127.0.0.1:8000" {
		t.Errorf("API.ListenAddr = %q, want %q", cfg.API.ListenAddr, "127.0.0.1:8000")
	}
	if cfg.Serving.OCRHandler != "demo" {
		t.Errorf("Serving.OCRHandler = %q, want %q", cfg.Serving.OCRHandler, "demo")
	}
	if cfg.Captcha.Length != 4 {
		t.Errorf("Captcha.Length = %d, want 4", cfg.Captcha.Length)
	}
	if cfg.Store.Driver != "sqlite" {
		t.Errorf("Store.Driver = %q, want %q", cfg.Store.Driver, "sqlite")
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "info")
	}
}

func TestLoadFromFile(t *testing.T) {
	content := `
[general]
handlers_dir = "/custom/handlers"

[api]
listen_addr = "0.0.0.0:8080"

[serving]
ocr_handler = "transformer"
request_timeout = "45s"
`

	tmpFile, err := os.CreateTemp("", "config-*.toml")
	if err != nil {
		t.Fatalf("create temp file: %v", err)
	}
	defer os.Remove(tmpFile.Name())

	if _, err := tmpFile.WriteString(content); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	_ = tmpFile.Close()

	cfg, err := LoadFromFile(tmpFile.Name())
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}

	if cfg.General.HandlersDir != "/custom/handlers" {
		t.Errorf("General.HandlersDir = %q, want %q", cfg.General.HandlersDir, "/custom/handlers")
	}
	if cfg.API.ListenAddr != "0.0.0.0:8080" {
		t.Errorf("API.ListenAddr = %q, want %q", cfg.API.ListenAddr, "0.0.0.0:8080")
	}
	if cfg.Serving.OCRHandler != "transformer" {
		t.Errorf("Serving.OCRHandler = %q, want %q", cfg.Serving.OCRHandler, "transformer")
	}
	if cfg.Serving.RequestTimeoutD != 45*time.Second {
		t.Errorf("Serving.RequestTimeoutD = %v, want 45s", cfg.Serving.RequestTimeoutD)
	}
}

func TestLoadFromFile_ExpandHome(t *testing.T) {
	homeDir, _ := os.UserHomeDir()
	content := `
[general]
data_dir = "~/test-data"

[serving]
model_path = "~/test-models/model.json"
`
	tmpFile, err := os.CreateTemp("", "config-*.toml")
	if err != nil {
		t.Fatalf("create temp file: %v", err)
	}
	defer os.Remove(tmpFile.Name())

	if _, err := tmpFile.WriteString(content); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	_ = tmpFile.Close()

	cfg, err := LoadFromFile(tmpFile.Name())
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}

	expectedDataDir := filepath.Join(homeDir, "test-data")
	if cfg.General.DataDir != expectedDataDir {
		t.Errorf("General.DataDir = %q, want %q", cfg.General.DataDir, expectedDataDir)
	}

	expectedModelPath := filepath.Join(homeDir, "test-models", "model.json")
	if cfg.Serving.ModelPath != expectedModelPath {
		t.Errorf("Serving.ModelPath = %q, want %q", cfg.Serving.ModelPath, expectedModelPath)
	}
}

func TestLoadFromFile_NotExist(t *testing.T) {
	_, err := LoadFromFile("/nonexistent/config.toml")
	if err == nil {
		t.Error("expected error for nonexistent file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid config",
			modify:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "zero upload limit",
			modify:  func(c *Config) { c.Serving.MaxUploadMB = 0 },
			wantErr: true,
		},
		{
			name:    "zero epochs",
			modify:  func(c *Config) { c.Training.Epochs = 0 },
			wantErr: true,
		},
		{
			name:    "negative learning rate",
			modify:  func(c *Config) { c.Training.LearningRate = -0.5 },
			wantErr: true,
		},
		{
			name:    "validation split of 1",
			modify:  func(c *Config) { c.Training.ValidationSplit = 1.0 },
			wantErr: true,
		},
		{
			name:    "zero captcha width",
			modify:  func(c *Config) { c.Captcha.Width = 0 },
			wantErr: true,
		},
		{
			name:    "empty charset",
			modify:  func(c *Config) { c.Captcha.Charset = "" },
			wantErr: true,
		},
		{
			name:    "unknown store driver",
			modify:  func(c *Config) { c.Store.Driver = "postgres" },
			wantErr: true,
		},
		{
			name:    "invalid log level",
			modify:  func(c *Config) { c.Logging.Level = "verbose" },
			wantErr: true,
		},
		{
			name:    "invalid log format",
			modify:  func(c *Config) { c.Logging.Format = "xml" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)

			err := cfg.Validate()
			if tt.wantErr && err == nil {
				t.Error("expected error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("CAPTCHA_API_LISTEN", "0.0.0.0:9999")
	t.Setenv("CAPTCHA_OCR_HANDLER", "transformer")
	t.Setenv("CAPTCHA_STORE_DRIVER", "memory")
	t.Setenv("CAPTCHA_EPOCHS", "25")

	cfg := Default()
	ApplyEnvOverrides(cfg)

	if cfg.API.ListenAddr != "0.0.0.0:9999" {
		t.Errorf("API.ListenAddr = %q, want %q", cfg.API.ListenAddr, "0.0.0.0:9999")
	}
	if cfg.Serving.OCRHandler != "transformer" {
		t.Errorf("Serving.OCRHandler = %q, want %q", cfg.Serving.OCRHandler, "transformer")
	}
	if cfg.Store.Driver != "memory" {
		t.Errorf("Store.Driver = %q, want %q", cfg.Store.Driver, "memory")
	}
	if cfg.Training.Epochs != 25 {
		t.Errorf("Training.Epochs = %d, want 25", cfg.Training.Epochs)
	}
}

func TestApplyEnvOverrides_IgnoresBadNumbers(t *testing.T) {
	t.Setenv("CAPTCHA_EPOCHS", "not-a-number")

	cfg := Default()
	ApplyEnvOverrides(cfg)

	if cfg.Training.Epochs != 100 {
		t.Errorf("Training.Epochs = %d, want 100", cfg.Training.Epochs)
	}
}

func TestLoad_DefaultsWhenNoPath(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Serving.RequestTimeoutD != 30*time.Second {
		t.Errorf("Serving.RequestTimeoutD = %v, want 30s", cfg.Serving.RequestTimeoutD)
	}
}
