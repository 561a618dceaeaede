package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envPrefix = "VOXCHAT"

// Config is shared by the chat client and the local development backend.
type Config struct {
	// Client
	ServerURL string        `mapstructure:"server_url" validate:"omitempty,url"`
	Token     string        `mapstructure:"token"`
	Timeout   time.Duration `mapstructure:"timeout" validate:"gte=0"`
	Insecure  bool          `mapstructure:"insecure"`
	CertFile  string        `mapstructure:"cert_file"`
	Device    int           `mapstructure:"device" validate:"gte=0"`
	ViewAddr  string        `mapstructure:"view_addr" validate:"omitempty,hostname_port"`

	LogLevel string `mapstructure:"log_level" validate:"oneof=debug info warn error"`

	// Development backend
	ListenAddr    string `mapstructure:"listen_addr" validate:"required"`
	RecordingsDir string `mapstructure:"recordings_dir" validate:"required"`
	WhisperPath   string `mapstructure:"whisper_path"`
	WhisperModel  string `mapstructure:"whisper_model" validate:"required_with=WhisperPath"`
	KeyFile       string `mapstructure:"key_file"`
}

// Load reads configuration from the environment (VOXCHAT_ prefix), after
// loading envFile into it. An empty envFile means an optional ./.env.
// VOXCHAT_CONFIG may name a config file that viper understands.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("failed to load env file %s: %w", envFile, err)
		}
	} else if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefault(v)

	if path := os.Getenv(envPrefix + "_CONFIG"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		slog.Debug("Loaded config file", "path", path)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func setDefault(v *viper.Viper) {
	v.SetDefault("server_url", "")
	v.SetDefault("token", "")
	v.SetDefault("timeout", 60*time.Second)
	v.SetDefault("insecure", false)
	v.SetDefault("cert_file", "")
	v.SetDefault("device", 0)
	v.SetDefault("view_addr", "")
	v.SetDefault("log_level", "debug")

	v.SetDefault("listen_addr", "localhost:8444")
	v.SetDefault("recordings_dir", "recordings")
	v.SetDefault("whisper_path", "")
	v.SetDefault("whisper_model", "")
	v.SetDefault("key_file", "")
}

// SlogLevel maps LogLevel onto slog.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelDebug
	}
}
