package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/EditMySave/HyOS-sub001/internal/provider"
)

// Config holds all configuration for the manager.
type Config struct {
	StateDir   string          `mapstructure:"state_dir"`
	ModsDir    string          `mapstructure:"mods_dir"`
	ListenAddr string          `mapstructure:"listen_addr"`
	LogLevel   string          `mapstructure:"log_level"`
	Server     ServerConfig    `mapstructure:"server"`
	Providers  ProvidersConfig `mapstructure:"providers"`
}

// ServerConfig addresses the game server's REST plugin.
type ServerConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
}

// ProvidersConfig holds outbound settings shared by every mod provider.
type ProvidersConfig struct {
	Timeout    time.Duration  `mapstructure:"timeout"`
	RateLimit  float64        `mapstructure:"rate_limit"`
	CurseForge ProviderConfig `mapstructure:"curseforge"`
	Modtale    ProviderConfig `mapstructure:"modtale"`
	NexusMods  ProviderConfig `mapstructure:"nexusmods"`
}

// ProviderConfig holds one provider's environment key and endpoint override.
// Keys saved through the settings API take precedence over APIKey.
type ProviderConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
}

// EnvKeys returns the environment-supplied API keys by provider.
func (c *Config) EnvKeys() map[provider.ID]string {
	return map[provider.ID]string{
		provider.CurseForge: c.Providers.CurseForge.APIKey,
		provider.Modtale:    c.Providers.Modtale.APIKey,
		provider.NexusMods:  c.Providers.NexusMods.APIKey,
	}
}

// BaseURLs returns the configured endpoint overrides. Empty entries keep the
// providers' public endpoints.
func (c *Config) BaseURLs() map[provider.ID]string {
	return map[provider.ID]string{
		provider.CurseForge: c.Providers.CurseForge.BaseURL,
		provider.Modtale:    c.Providers.Modtale.BaseURL,
		provider.NexusMods:  c.Providers.NexusMods.BaseURL,
	}
}

// Load reads configuration from file, environment, and defaults.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("state_dir", "/tmp/hytale-data/.state")
	v.SetDefault("listen_addr", ":3000")
	v.SetDefault("log_level", "info")
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.client_id", "hyos-manager")
	v.SetDefault("providers.timeout", "10s")
	v.SetDefault("providers.rate_limit", 5.0)

	// Config file
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/hyos")
	}

	// Environment variables
	v.SetEnvPrefix("HYOS")
	v.AutomaticEnv()

	// Bind the variables the container already sets
	_ = v.BindEnv("state_dir", "HYOS_STATE_DIR", "HYTALE_STATE_DIR")
	_ = v.BindEnv("mods_dir", "HYOS_MODS_DIR")
	_ = v.BindEnv("listen_addr", "HYOS_LISTEN_ADDR")
	_ = v.BindEnv("log_level", "HYOS_LOG_LEVEL")
	_ = v.BindEnv("server.host", "HYTALE_SERVER_HOST")
	_ = v.BindEnv("server.port", "HYTALE_SERVER_PORT")
	_ = v.BindEnv("server.client_id", "REST_API_CLIENT_ID")
	_ = v.BindEnv("server.client_secret", "REST_API_CLIENT_SECRET")
	_ = v.BindEnv("providers.timeout", "HYOS_PROVIDERS_TIMEOUT")
	_ = v.BindEnv("providers.curseforge.api_key", "CURSEFORGE_API_KEY")
	_ = v.BindEnv("providers.modtale.api_key", "MODTALE_API_KEY")
	_ = v.BindEnv("providers.nexusmods.api_key", "NEXUSMODS_API_KEY")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// The mods directory sits next to the state directory.
	if cfg.ModsDir == "" {
		cfg.ModsDir = filepath.Join(filepath.Dir(filepath.Clean(cfg.StateDir)), "mods")
	}
	if cfg.Providers.Timeout <= 0 {
		return nil, fmt.Errorf("providers.timeout must be positive, got %s", cfg.Providers.Timeout)
	}

	return &cfg, nil
}
