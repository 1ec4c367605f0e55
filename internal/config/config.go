// Package config loads and defaults the honeypot's configuration surface
// via viper: built-in defaults, an optional config file, HONEYPOT_-prefixed
// environment variables, and CLI flags, in increasing priority.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the fully resolved configuration surface.
type Config struct {
	FTPPort                    int
	FTPWelcomeMessage          string
	FTPHelpMessage             string
	MaxConcurrentUsers         int
	NumberOfTriesBeforeSuccess int64
	IntervalMinutes            int
	FileUploadReal             bool
	CanBeDownloaded            bool
	FileUploadLimit            int
	FileSizeLimitGB            int
	BaseSavePath               string
	SeedFilesPath              string

	HoneynetID    int
	HoneynetToken string
	HoneynetURL   string

	VirusTotalToken     string
	VirusTotalHashURL   string
	VirusTotalResultURL string

	DatabaseDriver string // "sqlite" or "mysql"
	DatabaseDSN    string

	MetricsEnabled bool
	MetricsAddr    string

	LogLevel string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ftp_port", 2121)
	v.SetDefault("ftp_welcome_message", "Welcome to FTP server")
	v.SetDefault("ftp_help_message", "No help available.")
	v.SetDefault("max_concurrent_users", 50)
	v.SetDefault("number_of_tries_before_success", 7)
	v.SetDefault("interval", 60)
	v.SetDefault("file_upload_real", false)
	v.SetDefault("can_be_downloaded", false)
	v.SetDefault("file_upload_limit", 10)
	v.SetDefault("file_size_limit_in_gb", 1)
	v.SetDefault("base_save_path", "./data/uploads")
	v.SetDefault("seed_files_path", "./data/default_files")

	v.SetDefault("honeynet_id", 0)
	v.SetDefault("honeynet_token", "")
	v.SetDefault("honeynet_url", "https://127.0.0.1/events")

	v.SetDefault("virus_total_token", "")
	v.SetDefault("virus_total_hash_url", "https://www.virustotal.com/api/v3/files/")
	v.SetDefault("virus_total_result_url", "https://www.virustotal.com/gui/file")

	v.SetDefault("database_driver", "sqlite")
	v.SetDefault("database_dsn", "./data/honeypot.db")

	v.SetDefault("metrics_enabled", false)
	v.SetDefault("metrics_addr", "127.0.0.1:9090")

	v.SetDefault("log_level", "info")
}

// Load resolves the configuration surface. A missing or unparseable
// config file never fails the process: it is logged as a warning by the
// caller and every key falls back to its default.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("HONEYPOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("honeypot")
		v.AddConfigPath(".")
	}

	readErr := v.ReadInConfig()
	// Deliberately ignored beyond reporting to the caller: a missing or
	// malformed file must never be fatal.

	cfg := &Config{
		FTPPort:                    v.GetInt("ftp_port"),
		FTPWelcomeMessage:          v.GetString("ftp_welcome_message"),
		FTPHelpMessage:             v.GetString("ftp_help_message"),
		MaxConcurrentUsers:         v.GetInt("max_concurrent_users"),
		NumberOfTriesBeforeSuccess: v.GetInt64("number_of_tries_before_success"),
		IntervalMinutes:            v.GetInt("interval"),
		FileUploadReal:             v.GetBool("file_upload_real"),
		CanBeDownloaded:            v.GetBool("can_be_downloaded"),
		FileUploadLimit:            v.GetInt("file_upload_limit"),
		FileSizeLimitGB:            v.GetInt("file_size_limit_in_gb"),
		BaseSavePath:               v.GetString("base_save_path"),
		SeedFilesPath:              v.GetString("seed_files_path"),
		HoneynetID:                 v.GetInt("honeynet_id"),
		HoneynetToken:              v.GetString("honeynet_token"),
		HoneynetURL:                v.GetString("honeynet_url"),
		VirusTotalToken:            v.GetString("virus_total_token"),
		VirusTotalHashURL:          v.GetString("virus_total_hash_url"),
		VirusTotalResultURL:        v.GetString("virus_total_result_url"),
		DatabaseDriver:             v.GetString("database_driver"),
		DatabaseDSN:                v.GetString("database_dsn"),
		MetricsEnabled:             v.GetBool("metrics_enabled"),
		MetricsAddr:                v.GetString("metrics_addr"),
		LogLevel:                   v.GetString("log_level"),
	}

	return cfg, readErr
}

// StaleAfter is the fixed 7-day attacker-retention window. It is not
// operator-configurable, so it is a constant rather than a config key.
const StaleAfter = 7 * 24 * time.Hour
