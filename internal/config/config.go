package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Config holds every runtime setting of the service.
type Config struct {
	Addr            string        `koanf:"addr"`
	Env             string        `koanf:"env"`
	LogLevel        string        `koanf:"log_level"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	DatabaseDSN string `koanf:"database_dsn"`
	RedisAddr   string `koanf:"redis_addr"`

	JWTSecretAdmin string        `koanf:"jwt_secret_admin"`
	JWTSecretApp   string        `koanf:"jwt_secret_app"`
	ProjectTag     string        `koanf:"project_tag"`
	TokenTTL       time.Duration `koanf:"token_ttl"`
	AIRequireAuth  bool          `koanf:"ai_require_auth"`

	BootstrapAdminEmail    string `koanf:"bootstrap_admin_email"`
	BootstrapAdminPassword string `koanf:"bootstrap_admin_password"`

	UploadsDir    string `koanf:"uploads_dir"`
	MaxUploadSize int64  `koanf:"max_upload_size"`

	OCRTessdataDir    string        `koanf:"ocr_tessdata_dir"`
	OCRLanguage       string        `koanf:"ocr_language"`
	OCRTimeout        time.Duration `koanf:"ocr_timeout"`
	OCRMaxConcurrency int64         `koanf:"ocr_max_concurrency"`

	ImageFetchTimeout     time.Duration `koanf:"image_fetch_timeout"`
	ImageFetchMaxBytes    int64         `koanf:"image_fetch_max_bytes"`
	ImageFetchInsecureTLS bool          `koanf:"image_fetch_insecure_tls"`

	FaceBackend   string        `koanf:"face_backend"`
	FaceModelsDir string        `koanf:"face_models_dir"`
	FaceGRPCAddr  string        `koanf:"face_grpc_addr"`
	FaceTimeout   time.Duration `koanf:"face_timeout"`

	AzureAccountName string `koanf:"azure_account_name"`
	AzureAccountKey  string `koanf:"azure_account_key"`
	AzureEndpoint    string `koanf:"azure_endpoint"`
	DefaultFilePath  string `koanf:"default_file_path"`
}

// Face descriptor backends.
const (
	FaceBackendDlib = "dlib"
	FaceBackendGRPC = "grpc"
)

// New returns a Config populated with defaults suitable for local development.
func New() *Config {
	return &Config{
		Addr:            ":8080",
		Env:             "development",
		LogLevel:        "info",
		ShutdownTimeout: 15 * time.Second,

		DatabaseDSN: "host=postgres user=postgres password=postgres dbname=gigwork port=5432 sslmode=disable",
		RedisAddr:   "redis:6379",

		JWTSecretAdmin: "admin",
		JWTSecretApp:   "app",
		ProjectTag:     "gigwork",
		TokenTTL:       24 * time.Hour,

		UploadsDir:    "uploads/identity",
		MaxUploadSize: 5 << 20,

		OCRTessdataDir:    "ocr-lang",
		OCRLanguage:       "mrz",
		OCRTimeout:        20 * time.Second,
		OCRMaxConcurrency: 4,

		ImageFetchTimeout:     15 * time.Second,
		ImageFetchMaxBytes:    10 << 20,
		ImageFetchInsecureTLS: true,

		FaceBackend:   FaceBackendDlib,
		FaceModelsDir: "Model",
		FaceGRPCAddr:  "face-embedder:50051",
		FaceTimeout:   30 * time.Second,

		DefaultFilePath: "default/path",
	}
}

// IsProduction reports whether the service runs with production semantics.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// Validate rejects settings the service cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if c.Addr == "" {
		errs = append(errs, errors.New("addr must not be empty"))
	}
	if c.UploadsDir == "" {
		errs = append(errs, errors.New("uploads_dir must not be empty"))
	}
	if c.MaxUploadSize <= 0 {
		errs = append(errs, fmt.Errorf("max_upload_size must be positive, got %d", c.MaxUploadSize))
	}
	if c.OCRTimeout <= 0 || c.ImageFetchTimeout <= 0 || c.FaceTimeout <= 0 {
		errs = append(errs, errors.New("ocr, image fetch and face timeouts must be positive"))
	}
	if c.OCRMaxConcurrency <= 0 {
		errs = append(errs, errors.New("ocr_max_concurrency must be positive"))
	}
	if c.JWTSecretAdmin == "" || c.JWTSecretApp == "" {
		errs = append(errs, errors.New("jwt secrets for admin and app must be set"))
	}
	switch c.FaceBackend {
	case FaceBackendDlib, FaceBackendGRPC:
	default:
		errs = append(errs, fmt.Errorf("face_backend must be %q or %q, got %q", FaceBackendDlib, FaceBackendGRPC, c.FaceBackend))
	}
	if c.IsProduction() && (c.JWTSecretAdmin == "admin" || c.JWTSecretApp == "app") {
		errs = append(errs, errors.New("default jwt secrets are not allowed in production"))
	}
	return errors.Join(errs...)
}
