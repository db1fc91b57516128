package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the process configuration read at boot.
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Security SecurityConfig `mapstructure:"security"`
	Rarity   RarityConfig   `mapstructure:"rarity"`
	Discord  DiscordConfig  `mapstructure:"discord"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver" validate:"required,oneof=mysql sqlite"`
	// DSN is a MySQL DSN or a SQLite path. Empty SQLite means in-memory.
	DSN string `mapstructure:"dsn" validate:"required_if=Driver mysql"`
}

type HTTPConfig struct {
	Addr              string   `mapstructure:"addr" validate:"required"`
	AllowOrigins      []string `mapstructure:"allow_origins"`
	RequestsPerSecond float64  `mapstructure:"requests_per_second" validate:"gte=0"`
	Burst             int      `mapstructure:"burst" validate:"gte=0"`
}

type RedisConfig struct {
	// URL enables the event stream when set.
	URL string `mapstructure:"url" validate:"omitempty,url"`
}

type SecurityConfig struct {
	CredentialKey string `mapstructure:"credential_key"`
}

type RarityConfig struct {
	LegendarySource string `mapstructure:"legendary_source"`
	MythicalSource  string `mapstructure:"mythical_source"`
}

type DiscordConfig struct {
	SendEvery time.Duration `mapstructure:"send_every" validate:"gte=0"`
	SendBurst int           `mapstructure:"send_burst" validate:"gte=0"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.dsn", "")
	v.SetDefault("http.addr", ":5000")
	v.SetDefault("http.allow_origins", []string{"http://localhost:5173", "http://localhost:3000"})
	v.SetDefault("http.requests_per_second", 20.0)
	v.SetDefault("http.burst", 40)
	v.SetDefault("redis.url", "")
	v.SetDefault("security.credential_key", "")
	v.SetDefault("rarity.legendary_source", "")
	v.SetDefault("rarity.mythical_source", "")
	v.SetDefault("discord.send_every", 750*time.Millisecond)
	v.SetDefault("discord.send_burst", 3)
}

// Load reads .env, an optional catchfleet.yaml and CF_ prefixed environment
// variables, in increasing priority.
func Load(configPath string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("catchfleet")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/catchfleet")
	}
	v.SetEnvPrefix("CF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	// unprefixed names used by existing deployments
	if dsn := os.Getenv("MYSQL_DSN"); dsn != "" && v.GetString("database.dsn") == "" {
		v.Set("database.dsn", dsn)
	}
	if url := os.Getenv("REDIS_URL"); url != "" && v.GetString("redis.url") == "" {
		v.Set("redis.url", url)
	}
	if port := os.Getenv("PORT"); port != "" && os.Getenv("CF_HTTP_ADDR") == "" && !v.InConfig("http.addr") {
		v.Set("http.addr", ":"+port)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks struct tags and reports every failing field.
func Validate(cfg *Config) error {
	err := validator.New().Struct(cfg)
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		msgs = append(msgs, fmt.Sprintf("field '%s' failed validation: %s", e.Namespace(), e.Tag()))
	}
	return errors.New(strings.Join(msgs, "; "))
}
