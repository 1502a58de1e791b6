// Package config holds the process-wide configuration, backed by viper.
// Values come from a YAML config file, PT_-prefixed environment variables
// (which take precedence), and built-in defaults.
package config

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

var v *viper.Viper

// merge_title_similarity is hot-reloadable; keep it in an atomic so request
// handlers never read a half-written float.
var titleSimilarity atomic.Value

// Initialize sets up the viper configuration singleton. Should be called
// once at application startup. cfgFile may be empty, in which case only
// defaults and environment variables apply.
func Initialize(cfgFile string) error {
	v = viper.New()
	v.SetConfigType("yaml")

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	}

	// Environment variables take precedence over the config file.
	// E.g. PT_DB_URL, PT_PORT, PT_MAIL_SERVER.
	v.SetEnvPrefix("PT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault("db_url", "parlatrack.db")
	v.SetDefault("host", "127.0.0.1")
	v.SetDefault("port", 8080)
	v.SetDefault("log_file", "")
	v.SetDefault("log_level", "info")

	v.SetDefault("mail_server", "")
	v.SetDefault("mail_user", "")
	v.SetDefault("mail_password", "")
	v.SetDefault("mail_sender", "")
	v.SetDefault("mail_recipient", "")

	v.SetDefault("keyadder_key", "")
	v.SetDefault("merge_title_similarity", 0.8)
	v.SetDefault("req_limit_count", 4096)
	v.SetDefault("req_limit_interval", 2)
	v.SetDefault("per_object_scraper_log_size", 5)

	if cfgFile != "" {
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config %s: %w", cfgFile, err)
		}
	}

	titleSimilarity.Store(v.GetFloat64("merge_title_similarity"))

	return nil
}

// Watch re-reads hot-reloadable settings when the config file changes.
// onChange may be nil.
func Watch(onChange func(fsnotify.Event)) {
	if v == nil || v.ConfigFileUsed() == "" {
		return
	}
	v.OnConfigChange(func(e fsnotify.Event) {
		titleSimilarity.Store(v.GetFloat64("merge_title_similarity"))
		if onChange != nil {
			onChange(e)
		}
	})
	v.WatchConfig()
}

// DBURL returns the database location. For the SQLite store this is a file
// path.
func DBURL() string { return v.GetString("db_url") }

// Host returns the listen address.
func Host() string { return v.GetString("host") }

// Port returns the listen port.
func Port() int { return v.GetInt("port") }

// LogFile returns the rotated log file path, or "" for stderr-only logging.
func LogFile() string { return v.GetString("log_file") }

// LogLevel returns the minimum log level name.
func LogLevel() string { return v.GetString("log_level") }

// MailServer returns the SMTP host:port, or "" when mail is unconfigured.
func MailServer() string { return v.GetString("mail_server") }

// MailUser returns the SMTP username.
func MailUser() string { return v.GetString("mail_user") }

// MailPassword returns the SMTP password.
func MailPassword() string { return v.GetString("mail_password") }

// MailSender returns the From address for notifications.
func MailSender() string { return v.GetString("mail_sender") }

// MailRecipient returns the To address for notifications.
func MailRecipient() string { return v.GetString("mail_recipient") }

// KeyadderKey returns the bootstrap KeyAdder API key, or "".
func KeyadderKey() string { return v.GetString("keyadder_key") }

// MergeTitleSimilarity returns the similarity threshold above which a new
// vocabulary value is reported as a near-duplicate of an existing one.
func MergeTitleSimilarity() float64 {
	if s, ok := titleSimilarity.Load().(float64); ok {
		return s
	}
	return 0.8
}

// ReqLimitCount returns the size of the global rate-limit token bucket.
func ReqLimitCount() int { return v.GetInt("req_limit_count") }

// ReqLimitInterval returns the refill interval of the rate-limit bucket.
func ReqLimitInterval() time.Duration {
	return time.Duration(v.GetInt("req_limit_interval")) * time.Second
}

// PerObjectScraperLogSize returns the per-entity provenance log bound.
func PerObjectScraperLogSize() int { return v.GetInt("per_object_scraper_log_size") }

// SetForTesting overrides a single key. Test helper.
func SetForTesting(key string, value any) {
	if v == nil {
		_ = Initialize("")
	}
	v.Set(key, value)
	if key == "merge_title_similarity" {
		titleSimilarity.Store(v.GetFloat64(key))
	}
}
