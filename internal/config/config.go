package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// EnvPrefix namespaces every environment variable, e.g. NEA_PATHS_NEA_ROOT.
const EnvPrefix = "NEA"

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" envconfig:"SERVER"`
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Paths     PathsConfig     `yaml:"paths" envconfig:"PATHS"`
	OCR       OCRConfig       `yaml:"ocr" envconfig:"OCR"`
	Mail      MailConfig      `yaml:"mail" envconfig:"MAIL"`
	Scheduler SchedulerConfig `yaml:"scheduler" envconfig:"SCHEDULER"`
	Workbook  WorkbookConfig  `yaml:"workbook" envconfig:"WORKBOOK"`
	Telemetry TelemetryConfig `yaml:"telemetry" envconfig:"TELEMETRY"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host             string          `yaml:"host" envconfig:"HOST"`
	Port             int             `yaml:"port" envconfig:"PORT" validate:"min=1,max=65535"`
	ReadTimeout      time.Duration   `yaml:"read_timeout" envconfig:"READ_TIMEOUT" validate:"gt=0"`
	IdleTimeout      time.Duration   `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT"`
	ShutdownTimeout  time.Duration   `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
	OperationTimeout time.Duration   `yaml:"operation_timeout" envconfig:"OPERATION_TIMEOUT" validate:"gt=0"`
	RateLimit        RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// RateLimitConfig contains rate limiting configuration
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED"`
	RPS     float64 `yaml:"rps" envconfig:"RPS" validate:"gte=0"`
	Burst   int     `yaml:"burst" envconfig:"BURST" validate:"gte=0"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" validate:"oneof=debug info warn warning error"`
	Output   string `yaml:"output" envconfig:"OUTPUT" validate:"oneof=console file both"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH"`
}

// PathsConfig locates the document trees the report steps read and write.
type PathsConfig struct {
	// NEARoot holds root/{year}/{MM. MON YYYY}/ report folders.
	NEARoot string `yaml:"nea_root" envconfig:"NEA_ROOT" validate:"required"`
	// ERCRoot holds root/{year} POWER INTERRUPTIONS/ source spreadsheets.
	ERCRoot      string `yaml:"erc_root" envconfig:"ERC_ROOT" validate:"required"`
	WorkbookExt  string `yaml:"workbook_ext" envconfig:"WORKBOOK_EXT" validate:"oneof=.xlsx .xlsm"`
	DatabasePath string `yaml:"database_path" envconfig:"DATABASE_PATH" validate:"required"`
}

// OCRConfig configures PDF rendering and text recognition.
type OCRConfig struct {
	TesseractCmd string        `yaml:"tesseract_cmd" envconfig:"TESSERACT_CMD" validate:"required"`
	PdftoppmCmd  string        `yaml:"pdftoppm_cmd" envconfig:"PDFTOPPM_CMD" validate:"required"`
	DPI          int           `yaml:"dpi" envconfig:"DPI" validate:"min=72,max=1200"`
	PDFPassword  string        `yaml:"pdf_password" envconfig:"PDF_PASSWORD"`
	RegionsFile  string        `yaml:"regions_file" envconfig:"REGIONS_FILE"`
	Concurrency  int           `yaml:"concurrency" envconfig:"CONCURRENCY" validate:"min=1"`
	Timeout      time.Duration `yaml:"timeout" envconfig:"TIMEOUT" validate:"gt=0"`
}

// MailConfig configures the consolidated notification and reply polling.
type MailConfig struct {
	SenderEmail    string        `yaml:"sender_email" envconfig:"SENDER_EMAIL" validate:"omitempty,email"`
	SenderPassword string        `yaml:"sender_password" envconfig:"SENDER_PASSWORD"`
	Recipients     []string      `yaml:"recipients" envconfig:"RECIPIENTS" validate:"dive,email"`
	SMTPHost       string        `yaml:"smtp_host" envconfig:"SMTP_HOST"`
	SMTPPort       int           `yaml:"smtp_port" envconfig:"SMTP_PORT" validate:"min=1,max=65535"`
	IMAPHost       string        `yaml:"imap_host" envconfig:"IMAP_HOST"`
	IMAPPort       int           `yaml:"imap_port" envconfig:"IMAP_PORT" validate:"min=1,max=65535"`
	PollForReply   bool          `yaml:"poll_for_reply" envconfig:"POLL_FOR_REPLY"`
	PollTimeout    time.Duration `yaml:"poll_timeout" envconfig:"POLL_TIMEOUT" validate:"gt=0"`
	PollInterval   time.Duration `yaml:"poll_interval" envconfig:"POLL_INTERVAL" validate:"gt=0"`
}

// Enabled reports whether outgoing mail has enough settings to be sent.
func (m MailConfig) Enabled() bool {
	return m.SenderEmail != "" && len(m.Recipients) > 0
}

// SchedulerConfig configures cron-driven task runs.
type SchedulerConfig struct {
	Enabled         bool   `yaml:"enabled" envconfig:"ENABLED"`
	Timezone        string `yaml:"timezone" envconfig:"TIMEZONE" validate:"required"`
	DefaultSchedule string `yaml:"default_schedule" envconfig:"DEFAULT_SCHEDULE"`
	DefaultOffset   int    `yaml:"default_offset" envconfig:"DEFAULT_OFFSET" validate:"min=1"`
}

// Location resolves the scheduler timezone.
func (s SchedulerConfig) Location() (*time.Location, error) {
	return time.LoadLocation(s.Timezone)
}

// WorkbookConfig configures the spreadsheet engine guard.
type WorkbookConfig struct {
	AcquireTimeout time.Duration `yaml:"acquire_timeout" envconfig:"ACQUIRE_TIMEOUT" validate:"gt=0"`
}

// TelemetryConfig toggles tracing and metrics.
type TelemetryConfig struct {
	TraceExporter  string `yaml:"trace_exporter" envconfig:"TRACE_EXPORTER" validate:"oneof=none stdout"`
	MetricsEnabled bool   `yaml:"metrics_enabled" envconfig:"METRICS_ENABLED"`
}

// Load builds the configuration from defaults, an optional YAML file and the
// environment, in increasing order of precedence. A .env file in the working
// directory is loaded into the environment first when present.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}
	return LoadFrom(getConfigFilePath())
}

// LoadFrom is Load with an explicit config file path; an empty path skips
// the file layer.
func LoadFrom(configFile string) (*Config, error) {
	cfg := Default()

	if configFile != "" {
		if err := loadFromFile(configFile, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	cfg.resolvePaths()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// loadFromFile overlays the YAML file onto cfg; keys absent from the file
// keep their current values.
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// resolvePaths cleans configured roots so later joins are stable.
func (c *Config) resolvePaths() {
	if c.Paths.NEARoot != "" {
		c.Paths.NEARoot = filepath.Clean(c.Paths.NEARoot)
	}
	if c.Paths.ERCRoot != "" {
		c.Paths.ERCRoot = filepath.Clean(c.Paths.ERCRoot)
	}
}

// validate validates the configuration
func (c *Config) validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}
	if _, err := c.Scheduler.Location(); err != nil {
		return fmt.Errorf("invalid scheduler timezone %q: %w", c.Scheduler.Timezone, err)
	}
	if c.Logging.Output != "console" && c.Logging.FilePath == "" {
		c.Logging.FilePath = "logs/app.log"
	}
	return nil
}

// getConfigFilePath returns the path to the config file
func getConfigFilePath() string {
	if p := os.Getenv(EnvPrefix + "_CONFIG_FILE"); p != "" {
		return p
	}

	locations := []string{
		"config.yaml",
		"configs/config.yaml",
	}

	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}

	return "" // No config file found, use env vars only
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:             "0.0.0.0",
			Port:             5000,
			ReadTimeout:      15 * time.Second,
			IdleTimeout:      60 * time.Second,
			ShutdownTimeout:  30 * time.Second,
			OperationTimeout: 2 * time.Hour,
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     20,
				Burst:   40,
			},
		},
		Logging: LoggingConfig{
			Level:    "info",
			Output:   "both",
			FilePath: "logs/app.log",
		},
		Paths: PathsConfig{
			WorkbookExt:  ".xlsx",
			DatabasePath: "dashboard.sqlite",
		},
		OCR: OCRConfig{
			TesseractCmd: "tesseract",
			PdftoppmCmd:  "pdftoppm",
			DPI:          600,
			Concurrency:  4,
			Timeout:      2 * time.Minute,
		},
		Mail: MailConfig{
			SMTPHost:     "smtp.gmail.com",
			SMTPPort:     465,
			IMAPHost:     "imap.gmail.com",
			IMAPPort:     993,
			PollForReply: true,
			PollTimeout:  30 * time.Minute,
			PollInterval: 10 * time.Second,
		},
		Scheduler: SchedulerConfig{
			Enabled:         true,
			Timezone:        "Asia/Manila",
			DefaultSchedule: "0 0 28 * *",
			DefaultOffset:   1,
		},
		Workbook: WorkbookConfig{
			AcquireTimeout: 5 * time.Minute,
		},
		Telemetry: TelemetryConfig{
			TraceExporter:  "none",
			MetricsEnabled: true,
		},
	}
}
