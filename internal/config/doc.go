// Package config loads the runtime configuration for the report pipeline,
// the dashboard server and the one-shot CLI.
//
// # Configuration Sources
//
// Configuration is loaded from the following sources in order of precedence:
//
//	1. Environment variables (highest priority)
//	2. A YAML configuration file (NEA_CONFIG_FILE, ./config.yaml or ./configs/config.yaml)
//	3. Default values (lowest priority)
//
// A .env file in the working directory is read into the environment before
// any of the above.
//
// # Environment Variables
//
// All environment variables follow the pattern NEA_<SECTION>_<KEY>:
//
//	NEA_PATHS_NEA_ROOT=/srv/reports/NEA
//	NEA_PATHS_ERC_ROOT=/srv/reports/ERC
//	NEA_OCR_PDF_PASSWORD=...
//	NEA_MAIL_SENDER_EMAIL=reports@example.com
//	NEA_MAIL_RECIPIENTS=a@example.com,b@example.com
//	NEA_SCHEDULER_TIMEZONE=Asia/Manila
//
// The resulting *Config is validated once and then passed by value or
// pointer into constructors; nothing reads the environment after Load.
package config
