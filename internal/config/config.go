// Package config loads process configuration from the environment, an
// optional .env file and an optional YAML config file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"heatloss-engine/internal/render"
	"heatloss-engine/internal/sampler"
	"heatloss-engine/pkg/database"
	"heatloss-engine/pkg/logging"
)

// EnvPrefix is prepended to every environment variable, e.g. HEATLOSS_SERVER_PORT
const EnvPrefix = "HEATLOSS"

// ConfigFileEnv names a YAML file whose values sit below the environment
const ConfigFileEnv = EnvPrefix + "_CONFIG"

// Catalog sources
const (
	CatalogEmbedded = "embedded"
	CatalogDir      = "dir"
	CatalogPostgres = "postgres"
)

// Config holds application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Catalog  CatalogConfig  `mapstructure:"catalog"`
	Render   RenderConfig   `mapstructure:"render"`
	Sampler  SamplerConfig  `mapstructure:"sampler"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" validate:"gt=0"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" validate:"gt=0"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
}

// DatabaseConfig holds PostgreSQL configuration. It is only used when the
// catalog source is postgres and by the migrate and seed commands.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host" validate:"required"`
	Port            int           `mapstructure:"port" validate:"min=1,max=65535"`
	User            string        `mapstructure:"user" validate:"required"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"name" validate:"required"`
	SSLMode         string        `mapstructure:"sslmode" validate:"oneof=disable allow prefer require verify-ca verify-full"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" validate:"min=1"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" validate:"min=0,ltefield=MaxOpenConns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
}

// LoggingConfig holds logger configuration
type LoggingConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
}

// CatalogConfig selects where catalogs are loaded from
type CatalogConfig struct {
	Source string `mapstructure:"source" validate:"oneof=embedded dir postgres"`
	Dir    string `mapstructure:"dir" validate:"required_if=Source dir"`
}

// RenderConfig holds solution chart defaults
type RenderConfig struct {
	Width   int    `mapstructure:"width" validate:"min=320,max=4096"`
	Height  int    `mapstructure:"height" validate:"min=240,max=4096"`
	Palette string `mapstructure:"palette"`
}

// SamplerConfig holds the wall dimension and temperature ranges
type SamplerConfig struct {
	LengthMin      float64 `mapstructure:"length_min"`
	LengthMax      float64 `mapstructure:"length_max"`
	HeightMin      float64 `mapstructure:"height_min"`
	HeightMax      float64 `mapstructure:"height_max"`
	InsideTempMin  int     `mapstructure:"inside_temp_min"`
	InsideTempMax  int     `mapstructure:"inside_temp_max"`
	OutsideTempMin int     `mapstructure:"outside_temp_min"`
	OutsideTempMax int     `mapstructure:"outside_temp_max"`
}

var validate = validator.New()

// LoadConfig reads .env (if present), the file named by HEATLOSS_CONFIG (if
// set) and HEATLOSS_* environment variables, in increasing precedence
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path := os.Getenv(ConfigFileEnv); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "heatloss")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "heatloss")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 30*time.Minute)
	v.SetDefault("database.conn_max_idle_time", 5*time.Minute)

	v.SetDefault("logging.level", "info")

	v.SetDefault("catalog.source", CatalogEmbedded)
	v.SetDefault("catalog.dir", "")

	v.SetDefault("render.width", render.DefaultWidth)
	v.SetDefault("render.height", render.DefaultHeight)
	v.SetDefault("render.palette", string(render.PaletteStandard))

	v.SetDefault("sampler.length_min", sampler.MinLengthM)
	v.SetDefault("sampler.length_max", sampler.MaxLengthM)
	v.SetDefault("sampler.height_min", sampler.MinHeightM)
	v.SetDefault("sampler.height_max", sampler.MaxHeightM)
	v.SetDefault("sampler.inside_temp_min", sampler.MinInsideTempC)
	v.SetDefault("sampler.inside_temp_max", sampler.MaxInsideTempC)
	v.SetDefault("sampler.outside_temp_min", sampler.MinOutsideTempC)
	v.SetDefault("sampler.outside_temp_max", sampler.MaxOutsideTempC)
}

// Validate checks field constraints and cross-field rules
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return err
	}
	if _, err := render.ParsePalette(c.Render.Palette); err != nil {
		return fmt.Errorf("render.palette: %w", err)
	}
	if err := c.Sampler.Ranges().Validate(); err != nil {
		return fmt.Errorf("sampler: %w", err)
	}
	return nil
}

// LogLevel returns the parsed logging level, info when unparsable
func (c *Config) LogLevel() logging.LogLevel {
	level, err := logging.ParseLevel(c.Logging.Level)
	if err != nil {
		return logging.InfoLevel
	}
	return level
}

// DB converts the database section into a connection config
func (c *DatabaseConfig) DB() *database.Config {
	return &database.Config{
		Host:            c.Host,
		Port:            c.Port,
		User:            c.User,
		Password:        c.Password,
		Database:        c.Database,
		SSLMode:         c.SSLMode,
		MaxOpenConns:    c.MaxOpenConns,
		MaxIdleConns:    c.MaxIdleConns,
		ConnMaxLifetime: c.ConnMaxLifetime,
		ConnMaxIdleTime: c.ConnMaxIdleTime,
	}
}

// Options converts the render section into renderer options
func (c *RenderConfig) Options() render.Options {
	palette, err := render.ParsePalette(c.Palette)
	if err != nil {
		palette = render.PaletteStandard
	}
	return render.Options{Width: c.Width, Height: c.Height, Palette: palette}
}

// Ranges converts the sampler section into sampling ranges
func (c *SamplerConfig) Ranges() sampler.Ranges {
	return sampler.Ranges{
		LengthM:      [2]float64{c.LengthMin, c.LengthMax},
		HeightM:      [2]float64{c.HeightMin, c.HeightMax},
		InsideTempC:  [2]int{c.InsideTempMin, c.InsideTempMax},
		OutsideTempC: [2]int{c.OutsideTempMin, c.OutsideTempMax},
	}
}
