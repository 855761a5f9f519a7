package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	AMQPURL                string
	Programs               []string
	PublishSlotStatus      bool
	AllowAccounts          bool
	AllowAccountsAtStartup bool
	ReconnectDelay         time.Duration
	ConfirmTimeout         time.Duration
	ArchivePath            string
	PostgresDSN            string
	MetricsAddr            string
	In                     string
	BatchSize              int
	LogLevel               string
}

// Load merges config file, environment variables, and flags into Config.
// Environment variables use the RELAY_ prefix and take precedence over the
// config file, so RELAY_AMQP_URL overrides a file-provided broker URI.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("RELAY")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("publish-slot-status", false)
	v.SetDefault("allow-accounts", true)
	v.SetDefault("allow-accounts-at-startup", false)
	v.SetDefault("reconnect-delay", 5*time.Second)
	v.SetDefault("confirm-timeout", time.Duration(0))
	v.SetDefault("batch-size", 64)
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := Config{
		AMQPURL:                v.GetString("amqp-url"),
		Programs:               getStringSlice(v, "program"),
		PublishSlotStatus:      v.GetBool("publish-slot-status"),
		AllowAccounts:          v.GetBool("allow-accounts"),
		AllowAccountsAtStartup: v.GetBool("allow-accounts-at-startup"),
		ReconnectDelay:         v.GetDuration("reconnect-delay"),
		ConfirmTimeout:         v.GetDuration("confirm-timeout"),
		ArchivePath:            v.GetString("archive"),
		PostgresDSN:            v.GetString("pg-dsn"),
		MetricsAddr:            v.GetString("metrics-addr"),
		In:                     v.GetString("in"),
		BatchSize:              v.GetInt("batch-size"),
		LogLevel:               v.GetString("log-level"),
	}

	return cfg, nil
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	return cleanStrings(parts)
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
