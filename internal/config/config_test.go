package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("NEA_PATHS_NEA_ROOT", "/data/NEA/")
	t.Setenv("NEA_PATHS_ERC_ROOT", "/data/ERC")
}

// TestLoadFrom tests the layered loader with various scenarios
func TestLoadFrom(t *testing.T) {
	tests := []struct {
		name        string
		setupEnv    func(t *testing.T)
		fileContent string
		wantErr     bool
		validateCfg func(*testing.T, *Config)
	}{
		{
			name:     "defaults with required paths",
			setupEnv: setRequiredEnv,
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 5000, cfg.Server.Port)
				assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
				assert.Equal(t, 2*time.Hour, cfg.Server.OperationTimeout)
				assert.True(t, cfg.Server.RateLimit.Enabled)

				assert.Equal(t, "/data/NEA", cfg.Paths.NEARoot)
				assert.Equal(t, "/data/ERC", cfg.Paths.ERCRoot)
				assert.Equal(t, ".xlsx", cfg.Paths.WorkbookExt)
				assert.Equal(t, "dashboard.sqlite", cfg.Paths.DatabasePath)

				assert.Equal(t, 600, cfg.OCR.DPI)
				assert.Equal(t, "tesseract", cfg.OCR.TesseractCmd)
				assert.Equal(t, 4, cfg.OCR.Concurrency)

				assert.Equal(t, 30*time.Minute, cfg.Mail.PollTimeout)
				assert.Equal(t, 10*time.Second, cfg.Mail.PollInterval)
				assert.False(t, cfg.Mail.Enabled())

				assert.Equal(t, "Asia/Manila", cfg.Scheduler.Timezone)
				assert.Equal(t, "0 0 28 * *", cfg.Scheduler.DefaultSchedule)
				assert.Equal(t, 1, cfg.Scheduler.DefaultOffset)
				assert.Equal(t, 5*time.Minute, cfg.Workbook.AcquireTimeout)
				assert.Equal(t, "none", cfg.Telemetry.TraceExporter)
			},
		},
		{
			name: "environment variables override defaults",
			setupEnv: func(t *testing.T) {
				setRequiredEnv(t)
				t.Setenv("NEA_SERVER_PORT", "9090")
				t.Setenv("NEA_OCR_DPI", "300")
				t.Setenv("NEA_MAIL_SENDER_EMAIL", "reports@example.com")
				t.Setenv("NEA_MAIL_RECIPIENTS", "a@example.com,b@example.com")
				t.Setenv("NEA_MAIL_POLL_TIMEOUT", "5m")
			},
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 9090, cfg.Server.Port)
				assert.Equal(t, 300, cfg.OCR.DPI)
				assert.Equal(t, []string{"a@example.com", "b@example.com"}, cfg.Mail.Recipients)
				assert.Equal(t, 5*time.Minute, cfg.Mail.PollTimeout)
				assert.True(t, cfg.Mail.Enabled())
			},
		},
		{
			name: "config file with environment override",
			setupEnv: func(t *testing.T) {
				setRequiredEnv(t)
				t.Setenv("NEA_SERVER_PORT", "7070")
			},
			fileContent: `
server:
  port: 6060
  read_timeout: 20s
scheduler:
  default_offset: 2
ocr:
  concurrency: 8
`,
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 7070, cfg.Server.Port)
				assert.Equal(t, 20*time.Second, cfg.Server.ReadTimeout)
				assert.Equal(t, 2, cfg.Scheduler.DefaultOffset)
				assert.Equal(t, 8, cfg.OCR.Concurrency)
				assert.Equal(t, 600, cfg.OCR.DPI, "keys absent from the file keep their defaults")
			},
		},
		{
			name:    "missing report roots",
			wantErr: true,
		},
		{
			name: "invalid port number",
			setupEnv: func(t *testing.T) {
				setRequiredEnv(t)
				t.Setenv("NEA_SERVER_PORT", "99999")
			},
			wantErr: true,
		},
		{
			name: "unsupported workbook extension",
			setupEnv: func(t *testing.T) {
				setRequiredEnv(t)
				t.Setenv("NEA_PATHS_WORKBOOK_EXT", ".xls")
			},
			wantErr: true,
		},
		{
			name: "unknown timezone",
			setupEnv: func(t *testing.T) {
				setRequiredEnv(t)
				t.Setenv("NEA_SCHEDULER_TIMEZONE", "Mars/Olympus_Mons")
			},
			wantErr: true,
		},
		{
			name: "malformed recipient",
			setupEnv: func(t *testing.T) {
				setRequiredEnv(t)
				t.Setenv("NEA_MAIL_RECIPIENTS", "not-an-address")
			},
			wantErr: true,
		},
		{
			name: "zero default offset",
			setupEnv: func(t *testing.T) {
				setRequiredEnv(t)
				t.Setenv("NEA_SCHEDULER_DEFAULT_OFFSET", "0")
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.setupEnv != nil {
				tt.setupEnv(t)
			}

			configFile := ""
			if tt.fileContent != "" {
				configFile = filepath.Join(t.TempDir(), "config.yaml")
				require.NoError(t, os.WriteFile(configFile, []byte(tt.fileContent), 0644))
			}

			cfg, err := LoadFrom(configFile)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, cfg)
			if tt.validateCfg != nil {
				tt.validateCfg(t, cfg)
			}
		})
	}
}

func TestLoadFromMissingFile(t *testing.T) {
	setRequiredEnv(t)

	_, err := LoadFrom(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestSchedulerLocation(t *testing.T) {
	loc, err := Default().Scheduler.Location()
	require.NoError(t, err)
	assert.Equal(t, "Asia/Manila", loc.String())
}
