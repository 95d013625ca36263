package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"readTimeout"`
		ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
		AllowedOrigins  []string      `yaml:"allowedOrigins"`
		MaxUploadBytes  int64         `yaml:"maxUploadBytes"`
	} `yaml:"server"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`

	Mistral struct {
		APIKey        string        `yaml:"apiKey"`
		BaseURL       string        `yaml:"baseURL"`
		ChatBaseURL   string        `yaml:"chatBaseURL"`
		OCRModel      string        `yaml:"ocrModel"`
		ChatModel     string        `yaml:"chatModel"`
		Temperature   *float32      `yaml:"temperature"` // nil = 0.3
		MaxTokens     int           `yaml:"maxTokens"`
		IncludeImages bool          `yaml:"includeImages"`
		Timeout       time.Duration `yaml:"timeout"`
		RunTimeout    time.Duration `yaml:"runTimeout"`
	} `yaml:"mistral"`

	Extraction struct {
		Strategy      string `yaml:"strategy"` // hosted | local
		Pdfinfo       string `yaml:"pdfinfo"`
		Pdftotext     string `yaml:"pdftotext"`
		Pdftoppm      string `yaml:"pdftoppm"`
		Tesseract     string `yaml:"tesseract"`
		TesseractLang string `yaml:"tesseractLang"`
		DPI           int    `yaml:"dpi"`
		MaxPages      int    `yaml:"maxPages"`
		Rasterize     bool   `yaml:"rasterize"`
		OCRFallback   bool   `yaml:"ocrFallback"`
		PreviewRows   int    `yaml:"previewRows"`
	} `yaml:"extraction"`

	Minio struct {
		Enabled    bool          `yaml:"enabled"`
		Endpoint   string        `yaml:"endpoint"`
		AccessKey  string        `yaml:"accessKey"`
		SecretKey  string        `yaml:"secretKey"`
		BucketName string        `yaml:"bucketName"`
		Region     string        `yaml:"region"`
		UseSSL     bool          `yaml:"useSSL"`
		URLExpiry  time.Duration `yaml:"urlExpiry"`
	} `yaml:"minio"`

	Session struct {
		Capacity int `yaml:"capacity"`
	} `yaml:"session"`

	Auth struct {
		APIKeys map[string]string `yaml:"apiKeys"` // name -> key
	} `yaml:"auth"`

	RateLimit struct {
		Capacity        int `yaml:"capacity"`
		RefillPerMinute int `yaml:"refillPerMinute"`
	} `yaml:"rateLimit"`
}

const (
	StrategyHosted = "hosted"
	StrategyLocal  = "local"
)

// Path returns CONFIG_PATH or the default config.yaml.
func Path() string {
	if p := strings.TrimSpace(os.Getenv("CONFIG_PATH")); p != "" {
		return p
	}
	return "config.yaml"
}

// Load baca .env, lalu file config.yaml (boleh tidak ada), lalu override dari env.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	setString(&c.Mistral.APIKey, "MISTRAL_API_KEY")
	setString(&c.Log.Level, "LOG_LEVEL")
	setString(&c.Extraction.Strategy, "EXTRACTION_STRATEGY")
	setString(&c.Minio.Endpoint, "MINIO_ENDPOINT")
	setString(&c.Minio.AccessKey, "MINIO_ACCESS_KEY")
	setString(&c.Minio.SecretKey, "MINIO_SECRET_KEY")
	setString(&c.Minio.BucketName, "MINIO_BUCKET")
	if v := strings.TrimSpace(os.Getenv("PORT")); v != "" {
		if p, err := strconv.Atoi(strings.TrimPrefix(v, ":")); err == nil {
			c.Server.Port = p
		}
	}
	if c.Minio.Endpoint != "" && os.Getenv("MINIO_ENDPOINT") != "" {
		c.Minio.Enabled = true
	}
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 60 * time.Second
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 15 * time.Second
	}
	if c.Server.MaxUploadBytes == 0 {
		c.Server.MaxUploadBytes = 64 << 20
	}
	if len(c.Server.AllowedOrigins) == 0 {
		c.Server.AllowedOrigins = []string{"*"}
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Mistral.BaseURL == "" {
		c.Mistral.BaseURL = "https://api.mistral.ai/v1"
	}
	if c.Mistral.ChatBaseURL == "" {
		c.Mistral.ChatBaseURL = c.Mistral.BaseURL
	}
	if c.Mistral.OCRModel == "" {
		c.Mistral.OCRModel = "mistral-ocr-latest"
	}
	if c.Mistral.ChatModel == "" {
		c.Mistral.ChatModel = "mistral-large-latest"
	}
	if c.Mistral.Temperature == nil {
		t := float32(0.3)
		c.Mistral.Temperature = &t
	}
	if c.Mistral.MaxTokens == 0 {
		c.Mistral.MaxTokens = 4000
	}
	if c.Mistral.Timeout == 0 {
		c.Mistral.Timeout = 2 * time.Minute
	}
	if c.Mistral.RunTimeout == 0 {
		c.Mistral.RunTimeout = 10 * time.Minute
	}
	if c.Extraction.Strategy == "" {
		c.Extraction.Strategy = StrategyHosted
	}
	if c.Extraction.DPI == 0 {
		c.Extraction.DPI = 150
	}
	if c.Extraction.TesseractLang == "" {
		c.Extraction.TesseractLang = "eng"
	}
	if c.Extraction.PreviewRows == 0 {
		c.Extraction.PreviewRows = 25
	}
	if c.Minio.BucketName == "" {
		c.Minio.BucketName = "apr-staging"
	}
	if c.Minio.Region == "" {
		c.Minio.Region = "us-east-1"
	}
	if c.Minio.URLExpiry == 0 {
		c.Minio.URLExpiry = 15 * time.Minute
	}
	if c.Session.Capacity == 0 {
		c.Session.Capacity = 256
	}
	if c.RateLimit.Capacity == 0 {
		c.RateLimit.Capacity = 5
	}
	if c.RateLimit.RefillPerMinute == 0 {
		c.RateLimit.RefillPerMinute = 2
	}
}

// Validate rejects settings the service cannot start with. A missing
// Mistral key is not one of them: runs report it instead.
func (c *Config) Validate() error {
	switch c.Extraction.Strategy {
	case StrategyHosted, StrategyLocal:
	default:
		return fmt.Errorf("extraction.strategy must be %q or %q, got %q", StrategyHosted, StrategyLocal, c.Extraction.Strategy)
	}
	if c.Minio.Enabled && c.Minio.Endpoint == "" {
		return errors.New("minio.endpoint is required when minio is enabled")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	return nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}
