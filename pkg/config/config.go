package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	General  GeneralConfig  `toml:"general"`
	API      APIConfig      `toml:"api"`
	Serving  ServingConfig  `toml:"serving"`
	Training TrainingConfig `toml:"training"`
	Captcha  CaptchaConfig  `toml:"captcha"`
	Store    StoreConfig    `toml:"store"`
	Logging  LoggingConfig  `toml:"logging"`
}

type GeneralConfig struct {
	DataDir     string `toml:"data_dir"`
	HandlersDir string `toml:"handlers_dir"`
}

type APIConfig struct {
	ListenAddr string `toml:"listen_addr"`
	EnableCORS bool   `toml:"enable_cors"`
	TLSCert    string `toml:"tls_cert"`
	TLSKey     string `toml:"tls_key"`
}

type ServingConfig struct {
	ModelPath         string        `toml:"model_path"`
	PreprocessHandler string        `toml:"preprocess_handler"`
	OCRHandler        string        `toml:"ocr_handler"`
	RequestTimeout    string        `toml:"request_timeout"`
	MaxUploadMB       int           `toml:"max_upload_mb"`
	RequestTimeoutD   time.Duration `toml:"-"`
}

type TrainingConfig struct {
	OutputDir       string  `toml:"output_dir"`
	Epochs          int     `toml:"epochs"`
	BatchSize       int     `toml:"batch_size"`
	LearningRate    float64 `toml:"learning_rate"`
	ValidationSplit float64 `toml:"validation_split"`
}

type CaptchaConfig struct {
	Width      int    `toml:"width"`
	Height     int    `toml:"height"`
	Length     int    `toml:"length"`
	Charset    string `toml:"charset"`
	NoiseLines int    `toml:"noise_lines"`
	NoiseDots  int    `toml:"noise_dots"`
}

type StoreConfig struct {
	// Driver selects the run-history backend: "sqlite" or "memory".
	Driver string `toml:"driver"`
	Path   string `toml:"path"`
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
	File   string `toml:"file"`
}

func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".captcha-ocr-devkit")

	return &Config{
		General: GeneralConfig{
			DataDir:     dataDir,
			HandlersDir: "./handlers",
		},
		API: APIConfig{
			ListenAddr: "127.0.0.1:8000",
			EnableCORS: true,
			TLSCert:    "",
			TLSKey:     "",
		},
		Serving: ServingConfig{
			ModelPath:         filepath.Join(dataDir, "models", "model.json"),
			PreprocessHandler: "demo",
			OCRHandler:        "demo",
			RequestTimeout:    "30s",
			MaxUploadMB:       10,
		},
		Training: TrainingConfig{
			OutputDir:       filepath.Join(dataDir, "models"),
			Epochs:          100,
			BatchSize:       32,
			LearningRate:    0.001,
			ValidationSplit: 0.2,
		},
		Captcha: CaptchaConfig{
			Width:      160,
			Height:     60,
			Length:     4,
			Charset:    "abcdefghijklmnopqrstuvwxyz",
			NoiseLines: 4,
			NoiseDots:  80,
		},
		Store: StoreConfig{
			Driver: "sqlite",
			Path:   filepath.Join(dataDir, "runs.db"),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			File:   "",
		},
	}
}

func LoadFromFile(path string) (*Config, error) {
	expandedPath, err := expandPath(path)
	if err != nil {
		return nil, fmt.Errorf("expand path: %w", err)
	}

	data, err := os.ReadFile(expandedPath)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()
	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, fmt.Errorf("decode TOML: %w", err)
	}

	if err := cfg.postProcess(); err != nil {
		return nil, fmt.Errorf("post process config: %w", err)
	}

	return cfg, nil
}

func (c *Config) postProcess() error {
	var err error

	if c.Serving.RequestTimeoutD, err = time.ParseDuration(c.Serving.RequestTimeout); err != nil {
		return fmt.Errorf("parse serving.request_timeout: %w", err)
	}

	c.General.DataDir, err = expandPath(c.General.DataDir)
	if err != nil {
		return fmt.Errorf("expand general.data_dir: %w", err)
	}

	c.General.HandlersDir, err = expandPath(c.General.HandlersDir)
	if err != nil {
		return fmt.Errorf("expand general.handlers_dir: %w", err)
	}

	c.Serving.ModelPath, err = expandPath(c.Serving.ModelPath)
	if err != nil {
		return fmt.Errorf("expand serving.model_path: %w", err)
	}

	c.Training.OutputDir, err = expandPath(c.Training.OutputDir)
	if err != nil {
		return fmt.Errorf("expand training.output_dir: %w", err)
	}

	c.Store.Path, err = expandPath(c.Store.Path)
	if err != nil {
		return fmt.Errorf("expand store.path: %w", err)
	}

	c.Logging.File, err = expandPath(c.Logging.File)
	if err != nil {
		return fmt.Errorf("expand logging.file: %w", err)
	}

	return nil
}

func (c *Config) Validate() error {
	if c.Serving.MaxUploadMB < 1 {
		return fmt.Errorf("max_upload_mb must be at least 1, got %d", c.Serving.MaxUploadMB)
	}

	if c.Training.Epochs < 1 {
		return fmt.Errorf("epochs must be at least 1, got %d", c.Training.Epochs)
	}

	if c.Training.BatchSize < 1 {
		return fmt.Errorf("batch_size must be at least 1, got %d", c.Training.BatchSize)
	}

	if c.Training.LearningRate <= 0 {
		return fmt.Errorf("learning_rate must be positive, got %g", c.Training.LearningRate)
	}

	if c.Training.ValidationSplit < 0 || c.Training.ValidationSplit >= 1 {
		return fmt.Errorf("validation_split must be in [0, 1), got %g", c.Training.ValidationSplit)
	}

	if c.Captcha.Width < 1 || c.Captcha.Height < 1 {
		return fmt.Errorf("captcha dimensions must be positive, got %dx%d", c.Captcha.Width, c.Captcha.Height)
	}

	if c.Captcha.Length < 1 {
		return fmt.Errorf("captcha length must be at least 1, got %d", c.Captcha.Length)
	}

	if c.Captcha.Charset == "" {
		return fmt.Errorf("captcha charset cannot be empty")
	}

	validDrivers := map[string]bool{"sqlite": true, "memory": true}
	if !validDrivers[strings.ToLower(c.Store.Driver)] {
		return fmt.Errorf("invalid store driver: %s (valid: sqlite, memory)", c.Store.Driver)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid logging level: %s (valid: debug, info, warn, error)", c.Logging.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		return fmt.Errorf("invalid logging format: %s (valid: json, text)", c.Logging.Format)
	}

	return nil
}

func ApplyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CAPTCHA_DATA_DIR"); v != "" {
		cfg.General.DataDir = v
	}
	if v := os.Getenv("CAPTCHA_HANDLERS_DIR"); v != "" {
		cfg.General.HandlersDir = v
	}
	if v := os.Getenv("CAPTCHA_API_LISTEN"); v != "" {
		cfg.API.ListenAddr = v
	}
	if v := os.Getenv("CAPTCHA_API_TLS_CERT"); v != "" {
		cfg.API.TLSCert = v
	}
	if v := os.Getenv("CAPTCHA_API_TLS_KEY"); v != "" {
		cfg.API.TLSKey = v
	}
	if v := os.Getenv("CAPTCHA_MODEL_PATH"); v != "" {
		cfg.Serving.ModelPath = v
	}
	if v := os.Getenv("CAPTCHA_OCR_HANDLER"); v != "" {
		cfg.Serving.OCRHandler = v
	}
	if v := os.Getenv("CAPTCHA_PREPROCESS_HANDLER"); v != "" {
		cfg.Serving.PreprocessHandler = v
	}
	if v := os.Getenv("CAPTCHA_STORE_DRIVER"); v != "" {
		cfg.Store.Driver = v
	}
	if v := os.Getenv("CAPTCHA_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("CAPTCHA_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("CAPTCHA_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("CAPTCHA_EPOCHS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Training.Epochs = n
		}
	}
}

func expandPath(path string) (string, error) {
	if path == "" {
		return "", nil
	}

	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("get user home directory: %w", err)
		}
		return filepath.Join(homeDir, path[2:]), nil
	}

	return path, nil
}

func Load(configPath string) (*Config, error) {
	var cfg *Config
	var err error

	if configPath != "" {
		cfg, err = LoadFromFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("load config from %s: %w", configPath, err)
		}
	} else {
		cfg = Default()
	}

	ApplyEnvOverrides(cfg)

	if err := cfg.postProcess(); err != nil {
		return nil, fmt.Errorf("post process config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}
