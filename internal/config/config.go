package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ConfigPath is the default config file location.
const ConfigPath = "config.yaml"

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port     string `yaml:"port"`
	LogLevel string `yaml:"logLevel"`

	// Data layout. All paths except DataDir are optional and derived
	// from DataDir when empty.
	DataDir     string `yaml:"dataDir"`
	PendingDir  string `yaml:"pendingDir"`
	ApprovedDir string `yaml:"approvedDir"`
	TrainingDir string `yaml:"trainingDir"`
	ReportsDir  string `yaml:"reportsDir"`
	LabelsFile  string `yaml:"labelsFile"`

	// Upload validation.
	MaxUploadBytes    int64    `yaml:"maxUploadBytes"`
	AllowedExtensions []string `yaml:"allowedExtensions"`

	// OCR sidecar.
	OCREnabled        bool    `yaml:"ocrEnabled"`
	OCRServiceURL     string  `yaml:"ocrServiceURL"`
	OCRLanguage       string  `yaml:"ocrLanguage"`
	OCRTimeoutSeconds int     `yaml:"ocrTimeoutSeconds"`
	OCRMinConfidence  float64 `yaml:"ocrMinConfidence"`

	// Reviewer auth.
	AdminToken           string `yaml:"adminToken"`
	ReviewerUsername     string `yaml:"reviewerUsername"`
	ReviewerPasswordHash string `yaml:"reviewerPasswordHash"`
	SessionSecret        string `yaml:"sessionSecret"`
	SessionTTLMinutes    int    `yaml:"sessionTtlMinutes"`

	// Upload rate limiting. Disabled when redisAddr is empty.
	RedisAddr          string   `yaml:"redisAddr"`
	RedisPassword      string   `yaml:"redisPassword"`
	UploadRateLimit    int      `yaml:"uploadRateLimit"`
	UploadRateWindowMs int      `yaml:"uploadRateWindowMs"`
	TrustedProxies     []string `yaml:"trustedProxies"`

	// Optional Postgres label store. Empty selects the JSON file store.
	DatabaseURL string `yaml:"databaseURL"`

	// Optional training bundle publishing.
	MinioEndpoint  string `yaml:"minioEndpoint"`
	MinioAccessKey string `yaml:"minioAccessKey"`
	MinioSecretKey string `yaml:"minioSecretKey"`
	MinioBucket    string `yaml:"minioBucket"`
	MinioUseSSL    bool   `yaml:"minioUseSSL"`

	// Readiness policy.
	MinApprovedSamples int `yaml:"minApprovedSamples"`
}

// Load reads config from path (defaults to config.yaml).
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	// Override with environment variables
	if v := os.Getenv("INKWELL_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("INKWELL_LABELS_FILE"); v != "" {
		cfg.LabelsFile = v
	}
	if v := os.Getenv("INKWELL_MAX_UPLOAD_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.MaxUploadBytes = n
		}
	}
	if v := os.Getenv("INKWELL_OCR_ENABLED"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			cfg.OCREnabled = enabled
		}
	}
	if v := os.Getenv("INKWELL_OCR_SERVICE_URL"); v != "" {
		cfg.OCRServiceURL = v
	}
	if v := os.Getenv("INKWELL_OCR_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.OCRTimeoutSeconds = n
		}
	}
	if v := os.Getenv("INKWELL_OCR_MIN_CONFIDENCE"); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.OCRMinConfidence = n
		}
	}
	if v := os.Getenv("INKWELL_ADMIN_TOKEN"); v != "" {
		cfg.AdminToken = v
	}
	if v := os.Getenv("INKWELL_SESSION_SECRET"); v != "" {
		cfg.SessionSecret = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.RedisPassword = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("INKWELL_MINIO_ENDPOINT"); v != "" {
		cfg.MinioEndpoint = v
	}
	if v := os.Getenv("INKWELL_MINIO_ACCESS_KEY"); v != "" {
		cfg.MinioAccessKey = v
	}
	if v := os.Getenv("INKWELL_MINIO_SECRET_KEY"); v != "" {
		cfg.MinioSecretKey = v
	}
	if v := os.Getenv("INKWELL_MINIO_BUCKET"); v != "" {
		cfg.MinioBucket = v
	}
	if v := os.Getenv("INKWELL_MIN_APPROVED_SAMPLES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MinApprovedSamples = n
		}
	}
	applyDefaults(&cfg)
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyDefaults(cfg *FileConfig) {
	if cfg.DataDir == "" {
		cfg.DataDir = "data"
	}
	if cfg.PendingDir == "" {
		cfg.PendingDir = filepath.Join(cfg.DataDir, "images")
	}
	if cfg.ApprovedDir == "" {
		cfg.ApprovedDir = filepath.Join(cfg.DataDir, "approved")
	}
	if cfg.TrainingDir == "" {
		cfg.TrainingDir = filepath.Join(cfg.DataDir, "train_data")
	}
	if cfg.ReportsDir == "" {
		cfg.ReportsDir = filepath.Join(cfg.DataDir, "reports")
	}
	if cfg.LabelsFile == "" {
		cfg.LabelsFile = filepath.Join(cfg.DataDir, "labels.json")
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 10 * 1024 * 1024
	}
	if len(cfg.AllowedExtensions) == 0 {
		cfg.AllowedExtensions = []string{".jpg", ".jpeg", ".png", ".bmp", ".tiff", ".webp"}
	}
	if cfg.OCRTimeoutSeconds <= 0 {
		cfg.OCRTimeoutSeconds = 60
	}
	if cfg.OCRMinConfidence <= 0 {
		cfg.OCRMinConfidence = 0.5
	}
	if cfg.OCRLanguage == "" {
		cfg.OCRLanguage = "en"
	}
	if cfg.SessionTTLMinutes <= 0 {
		cfg.SessionTTLMinutes = 60
	}
	if cfg.UploadRateLimit <= 0 {
		cfg.UploadRateLimit = 30
	}
	if cfg.UploadRateWindowMs <= 0 {
		cfg.UploadRateWindowMs = 60_000
	}
	if cfg.MinApprovedSamples <= 0 {
		cfg.MinApprovedSamples = 100
	}
}

func validateConfig(cfg FileConfig) error {
	if cfg.Port == "" {
		return errors.New("config: port is required (set in config.yaml)")
	}
	if cfg.AdminToken == "" {
		return errors.New("config: adminToken is required (set in config.yaml or INKWELL_ADMIN_TOKEN)")
	}
	if cfg.OCREnabled && strings.TrimSpace(cfg.OCRServiceURL) == "" {
		return errors.New("config: ocrServiceURL is required when ocrEnabled=true")
	}
	if cfg.OCRMinConfidence < 0 || cfg.OCRMinConfidence > 1 {
		return errors.New("config: ocrMinConfidence must be between 0 and 1")
	}
	if cfg.ReviewerUsername != "" && strings.TrimSpace(cfg.ReviewerPasswordHash) == "" {
		return errors.New("config: reviewerPasswordHash is required when reviewerUsername is set")
	}
	if cfg.ReviewerUsername != "" && strings.TrimSpace(cfg.SessionSecret) == "" {
		return errors.New("config: sessionSecret is required when reviewerUsername is set")
	}
	for _, ext := range cfg.AllowedExtensions {
		if !strings.HasPrefix(ext, ".") {
			return fmt.Errorf("config: allowed extension %q must start with a dot", ext)
		}
	}
	if cfg.MinioEndpoint != "" && strings.TrimSpace(cfg.MinioBucket) == "" {
		return errors.New("config: minioBucket is required when minioEndpoint is set")
	}
	return nil
}
