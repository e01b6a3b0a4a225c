package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/local/gutterbot/internal/gutter"
)

// LoggingConfig holds logging-related configuration.
type LoggingConfig struct {
	Level      string
	Pretty     bool
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// AxiomConfig holds Axiom logging configuration.
type AxiomConfig struct {
	Send          bool
	APIKey        string
	OrgID         string
	Dataset       string
	FlushInterval time.Duration
}

// OutputConfig controls where and how split halves are written.
type OutputConfig struct {
	Dir           string
	JPEGQuality   int
	ThumbnailSize int // 0 disables thumbnails
	PDFDPI        float64
}

// OCRConfig selects the OCR engines run on each half.
type OCRConfig struct {
	Enabled        bool
	Tesseract      bool
	Cuneiform      bool
	Language       string
	CuneiformBin   string
	CuneiformLang  string
	CommandTimeout time.Duration
}

// StorageConfig defines the S3 target for published outputs.
type StorageConfig struct {
	Bucket          string
	Region          string
	Prefix          string
	AccessKeyID     string
	SecretAccessKey string
	Publish         bool
}

// WorkerConfig defines worker behavior and limits.
type WorkerConfig struct {
	Concurrency        int
	JobTimeout         time.Duration
	JobMaxAttempts     int
	RetryBaseDelay     time.Duration
	RetryJitter        time.Duration
	RetryBackoffFactor float64
	RunDispatcher      bool
}

// QueueConfig defines queue connectivity and names.
type QueueConfig struct {
	RedisURL     string
	Stream       string
	Group        string
	PollInterval time.Duration
}

// HTTPConfig holds the API listener settings.
type HTTPConfig struct {
	Port      string
	UploadDir string
	// InputDir is the only local tree /split may read sources from. Empty allows s3:// sources only.
	InputDir string

	MaxUploadMB   int64
	CleanupMaxAge time.Duration
}

// Config is the top-level configuration.
type Config struct {
	Logging   LoggingConfig
	Axiom     AxiomConfig
	Detection gutter.Config
	Profile   string
	Output    OutputConfig
	OCR       OCRConfig
	Storage   StorageConfig
	Worker    WorkerConfig
	Queue     QueueConfig
	HTTP      HTTPConfig
}

// FromEnv loads an optional .env file and then configuration from environment with sensible defaults.
func FromEnv() Config {
	_ = godotenv.Load()

	cfg := Config{}

	cfg.Logging = LoggingConfig{
		Level:      getEnv("LOG_LEVEL", "info"),
		Pretty:     parseBool(getEnv("LOG_PRETTY", devDefaultPretty())),
		File:       getEnv("LOG_FILE", "logs/gutterbot.log"),
		MaxSizeMB:  parseInt(getEnv("LOG_MAX_SIZE_MB", "100"), 100),
		MaxBackups: parseInt(getEnv("LOG_MAX_BACKUPS", "10"), 10),
		MaxAgeDays: parseInt(getEnv("LOG_MAX_AGE_DAYS", "30"), 30),
		Compress:   parseBool(getEnv("LOG_COMPRESS", "true")),
	}

	baseDataset := getEnv("AXIOM_DATASET", "dev")
	cfg.Axiom = AxiomConfig{
		Send:          parseBool(getEnv("SEND_LOGS_TO_AXIOM", "0")),
		APIKey:        getEnv("AXIOM_API_KEY", ""),
		OrgID:         getEnv("AXIOM_ORG_ID", ""),
		Dataset:       baseDataset + "_gutterbot",
		FlushInterval: parseDuration(getEnv("AXIOM_FLUSH_INTERVAL", "10s"), 10*time.Second),
	}

	cfg.Detection = detectionFromEnv(gutter.DefaultConfig())
	cfg.Profile = getEnv("DETECT_PROFILE", "")

	cfg.Output = OutputConfig{
		Dir:           getEnv("OUTPUT_DIR", "output"),
		JPEGQuality:   parseInt(getEnv("JPEG_QUALITY", "90"), 90),
		ThumbnailSize: parseInt(getEnv("OUTPUT_SIZE", "1600"), 1600),
		PDFDPI:        parseFloat(getEnv("PDF_DPI", "200"), 200),
	}

	cfg.OCR = OCRConfig{
		Enabled:        parseBool(getEnv("OCR_ENABLED", "false")),
		Tesseract:      parseBool(getEnv("OCR_TESSERACT", "true")),
		Cuneiform:      parseBool(getEnv("OCR_CUNEIFORM", "false")),
		Language:       getEnv("OCR_LANGUAGE", "eng"),
		CuneiformBin:   getEnv("CUNEIFORM_BIN", "cuneiform"),
		CuneiformLang:  getEnv("CUNEIFORM_LANGUAGE", "eng"),
		CommandTimeout: parseDuration(getEnv("OCR_TIMEOUT", "2m"), 2*time.Minute),
	}

	cfg.Storage = StorageConfig{
		Bucket:          getEnv("S3_BUCKET", ""),
		Region:          getEnv("AWS_REGION", "us-east-1"),
		Prefix:          strings.Trim(getEnv("S3_PREFIX", "splits"), "/"),
		AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
		SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
	}
	cfg.Storage.Publish = parseBool(getEnv("PUBLISH_TO_S3", "false")) && cfg.Storage.Bucket != ""

	cfg.Worker = WorkerConfig{
		Concurrency:        parseInt(getEnv("WORKER_CONCURRENCY", "4"), 4),
		JobTimeout:         parseDuration(getEnv("JOB_TIMEOUT", "5m"), 5*time.Minute),
		JobMaxAttempts:     parseInt(getEnv("JOB_MAX_ATTEMPTS", "3"), 3),
		RetryBaseDelay:     parseDuration(getEnv("RETRY_BASE_DELAY", "2s"), 2*time.Second),
		RetryJitter:        parseDuration(getEnv("RETRY_JITTER", "200ms"), 200*time.Millisecond),
		RetryBackoffFactor: parseFloat(getEnv("RETRY_BACKOFF_FACTOR", "2.0"), 2.0),
		RunDispatcher:      parseBool(getEnv("RUN_DISPATCHER", "true")),
	}
	if cfg.Worker.Concurrency < 1 {
		cfg.Worker.Concurrency = 1
	}

	cfg.Queue = QueueConfig{
		RedisURL:     getEnv("REDIS_URL", "redis://localhost:6379"),
		Stream:       getEnv("QUEUE_STREAM", "jobs:split"),
		Group:        getEnv("QUEUE_GROUP", "workers:split"),
		PollInterval: parseDuration(getEnv("QUEUE_POLL_INTERVAL", "100ms"), 100*time.Millisecond),
	}

	cfg.HTTP = HTTPConfig{
		Port:          getEnv("PORT", "8080"),
		UploadDir:     getEnv("UPLOAD_DIR", "/tmp/gutterbot"),
		InputDir:      getEnv("INPUT_DIR", ""),
		MaxUploadMB:   int64(parseInt(getEnv("MAX_UPLOAD_MB", "200"), 200)),
		CleanupMaxAge: parseDuration(getEnv("CLEANUP_MAX_AGE", "24h"), 24*time.Hour),
	}

	return cfg
}

// detectionFromEnv overrides each detection tunable that has an env var set.
// BASE_SCAN_WIDTH rescales the window steps first; explicit step vars still win.
func detectionFromEnv(d gutter.Config) gutter.Config {
	if w := parseInt(getEnv("BASE_SCAN_WIDTH", ""), 0); w > 0 {
		d = d.WithBaseScanWidth(w)
	}
	d.DarkPixelFloor = parseInt(getEnv("DARK_PIXEL_FLOOR", ""), d.DarkPixelFloor)
	d.VarianceLimit = parseInt(getEnv("VARIANCE_LIMIT", ""), d.VarianceLimit)
	d.AllowedVariances = parseInt(getEnv("ALLOWED_VARIANCES", ""), d.AllowedVariances)
	d.MinWindowWidth = parseInt(getEnv("MIN_WINDOW_WIDTH", ""), d.MinWindowWidth)
	d.VarianceRelaxStep = parseInt(getEnv("VARIANCE_RELAX_STEP", ""), d.VarianceRelaxStep)
	d.ShrinkStep = parseInt(getEnv("SHRINK_STEP", ""), d.ShrinkStep)
	d.WidenStep = parseInt(getEnv("WIDEN_STEP", ""), d.WidenStep)
	d.CapMargin = parseInt(getEnv("CAP_MARGIN", ""), d.CapMargin)
	d.Tolerance = parseInt(getEnv("DETECT_TOLERANCE", ""), d.Tolerance)
	d.ToleranceStep = parseInt(getEnv("TOLERANCE_STEP", ""), d.ToleranceStep)
	d.HitCap = parseInt(getEnv("HIT_CAP", ""), d.HitCap)
	d.StreakAnnounce = parseInt(getEnv("STREAK_ANNOUNCE", ""), d.StreakAnnounce)
	d.BandTop = parseFloat(getEnv("BAND_TOP", ""), d.BandTop)
	d.BandBottom = parseFloat(getEnv("BAND_BOTTOM", ""), d.BandBottom)
	d.MaxAdjustments = parseInt(getEnv("MAX_ADJUSTMENTS", ""), d.MaxAdjustments)
	d.MaxRestarts = parseInt(getEnv("MAX_RESTARTS", ""), d.MaxRestarts)
	d.MaxToleranceSteps = parseInt(getEnv("MAX_TOLERANCE_STEPS", ""), d.MaxToleranceSteps)
	return d
}

// Helpers
func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

func parseFloat(s string, def float64) float64 {
	if s == "" {
		return def
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return def
}

func parseBool(s string) bool {
	v := strings.ToLower(strings.TrimSpace(s))
	return v == "1" || v == "true" || v == "yes" || v == "on"
}

func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	return def
}

func devDefaultPretty() string {
	env := strings.ToLower(os.Getenv("ENVIRONMENT"))
	if env == "dev" || env == "development" || env == "local" {
		return "true"
	}
	return "false"
}
