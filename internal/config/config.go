package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Translation backends
const (
	BackendMarian = "marian"
	BackendGoogle = "google"
)

// Config represents the application configuration
type Config struct {
	Server struct {
		Port      int    `yaml:"port"`
		Host      string `yaml:"host"`
		StaticDir string `yaml:"static_dir"`
	} `yaml:"server"`

	Whisper struct {
		Python        string `yaml:"python"`
		Model         string `yaml:"model"`
		Device        string `yaml:"device"`
		FP16          bool   `yaml:"fp16"`
		MaxConcurrent int    `yaml:"max_concurrent"`
	} `yaml:"whisper"`

	FFmpeg struct {
		Path string `yaml:"path"`
	} `yaml:"ffmpeg"`

	Translation struct {
		Backend            string `yaml:"backend"`
		Python             string `yaml:"python"`
		ModelPrefix        string `yaml:"model_prefix"`
		CacheSize          int    `yaml:"cache_size"`
		LoadTimeoutSeconds int    `yaml:"load_timeout_seconds"`
		Google             struct {
			APIKey          string `yaml:"api_key"`
			CredentialsFile string `yaml:"credentials_file"`
		} `yaml:"google"`
	} `yaml:"translation"`

	Storage struct {
		TempDir       string `yaml:"temp_dir"`
		ScratchSuffix string `yaml:"scratch_suffix"`
	} `yaml:"storage"`

	Cleanup struct {
		IntervalMinutes int `yaml:"interval_minutes"`
		MaxAgeHours     int `yaml:"max_age_hours"`
	} `yaml:"cleanup"`

	Limits struct {
		MaxFileSizeMB         int `yaml:"max_file_size_mb"`
		RequestTimeoutSeconds int `yaml:"request_timeout_seconds"`
	} `yaml:"limits"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

// Default returns a configuration with every field populated.
func Default() *Config {
	var c Config
	c.Server.Host = "0.0.0.0"
	c.Server.Port = 8000

	c.Whisper.Python = "python"
	c.Whisper.Model = "base"
	c.Whisper.MaxConcurrent = 1

	c.FFmpeg.Path = "ffmpeg"

	c.Translation.Backend = BackendMarian
	c.Translation.Python = "python"
	c.Translation.ModelPrefix = "Helsinki-NLP/opus-mt"
	c.Translation.CacheSize = 8
	c.Translation.LoadTimeoutSeconds = 300

	c.Storage.TempDir = "temp"
	c.Storage.ScratchSuffix = ".mp3"

	c.Cleanup.IntervalMinutes = 30
	c.Cleanup.MaxAgeHours = 6

	c.Limits.MaxFileSizeMB = 200

	c.Log.Level = "info"
	return &c
}

// Load reads an optional .env file, the YAML file at path (a missing file
// keeps the defaults) and then applies environment overrides.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		file, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(file, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := env("HOST"); v != "" {
		c.Server.Host = v
	}
	if v := env("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PORT: invalid value %q", v)
		}
		c.Server.Port = port
	}
	if v := env("FFMPEG_PATH"); v != "" {
		c.FFmpeg.Path = v
	}
	if v := env("WHISPER_MODEL"); v != "" {
		c.Whisper.Model = v
	}
	if v := env("WHISPER_PYTHON"); v != "" {
		c.Whisper.Python = v
	}
	if v := env("TRANSLATION_BACKEND"); v != "" {
		c.Translation.Backend = strings.ToLower(v)
	}
	if v := env("GOOGLE_TRANSLATE_API_KEY"); v != "" {
		c.Translation.Google.APIKey = v
	}
	if v := env("GOOGLE_APPLICATION_CREDENTIALS"); v != "" && c.Translation.Google.CredentialsFile == "" {
		c.Translation.Google.CredentialsFile = v
	}
	if v := env("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	return nil
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var problems []string
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		problems = append(problems, fmt.Sprintf("server.port: %d out of range", c.Server.Port))
	}
	if strings.TrimSpace(c.FFmpeg.Path) == "" {
		problems = append(problems, "ffmpeg.path: must be set")
	}
	if strings.TrimSpace(c.Whisper.Python) == "" {
		problems = append(problems, "whisper.python: must be set")
	}
	if strings.TrimSpace(c.Whisper.Model) == "" {
		problems = append(problems, "whisper.model: must be set")
	}
	if c.Whisper.MaxConcurrent <= 0 {
		problems = append(problems, "whisper.max_concurrent: must be positive")
	}
	switch c.Translation.Backend {
	case BackendMarian:
		if strings.TrimSpace(c.Translation.Python) == "" {
			problems = append(problems, "translation.python: must be set for the marian backend")
		}
	case BackendGoogle:
	default:
		problems = append(problems, fmt.Sprintf("translation.backend: unsupported value %q", c.Translation.Backend))
	}
	if c.Translation.CacheSize <= 0 {
		problems = append(problems, "translation.cache_size: must be positive")
	}
	if strings.TrimSpace(c.Storage.TempDir) == "" {
		problems = append(problems, "storage.temp_dir: must be set")
	}
	if !strings.HasPrefix(c.Storage.ScratchSuffix, ".") {
		problems = append(problems, fmt.Sprintf("storage.scratch_suffix: %q must start with a dot", c.Storage.ScratchSuffix))
	}
	if c.Cleanup.IntervalMinutes <= 0 {
		problems = append(problems, "cleanup.interval_minutes: must be positive")
	}
	if c.Cleanup.MaxAgeHours <= 0 {
		problems = append(problems, "cleanup.max_age_hours: must be positive")
	}
	if c.Limits.MaxFileSizeMB <= 0 {
		problems = append(problems, "limits.max_file_size_mb: must be positive")
	}
	if c.Limits.RequestTimeoutSeconds < 0 {
		problems = append(problems, "limits.request_timeout_seconds: must not be negative")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config:\n  %s", strings.Join(problems, "\n  "))
	}
	return nil
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
