package config

import (
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config is the process-wide configuration, loaded once at startup from an
// optional yaml file plus CHATBOT_* environment overrides.
type Config struct {
	Server struct {
		Addr  string `mapstructure:"addr"`
		Token string `mapstructure:"token"`
	} `mapstructure:"server"`

	DB struct {
		Path string `mapstructure:"path"`
	} `mapstructure:"db"`

	Routing struct {
		Smart bool `mapstructure:"smart"`
	} `mapstructure:"routing"`

	System struct {
		Prompt string `mapstructure:"prompt"`
	} `mapstructure:"system"`

	// Providers allows per-provider base URL / model overrides, e.g. to point
	// the openai adapter at a self-hosted compatible endpoint.
	Providers map[string]ProviderConfig `mapstructure:"providers"`

	// Keys seeds the credential store on startup (synced, never wiped).
	Keys []KeyConfig `mapstructure:"keys"`
}

type ProviderConfig struct {
	BaseURL string            `mapstructure:"base_url"`
	Model   string            `mapstructure:"model"`
	Headers map[string]string `mapstructure:"headers"`
}

type KeyConfig struct {
	Provider string `mapstructure:"provider"`
	Secret   string `mapstructure:"secret"`
	Label    string `mapstructure:"label"`
	Limit    int64  `mapstructure:"limit"`
	Active   *bool  `mapstructure:"active"`
}

// Load reads path if it exists; a missing file is not an error so the server
// can run on defaults plus environment alone.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Every scalar key needs a default so AutomaticEnv can surface it to
	// Unmarshal even when the config file never mentions it.
	v.SetDefault("server.addr", ":7070")
	v.SetDefault("server.token", "")
	v.SetDefault("db.path", "./db/chatbot.db")
	v.SetDefault("routing.smart", false)
	v.SetDefault("system.prompt", "")

	v.SetEnvPrefix("CHATBOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if _, err := os.Stat(path); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
