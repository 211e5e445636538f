// Package config loads engine configuration from config files, .env files
// and the environment, and parses datasource URLs.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
)

// AppFs is the filesystem configuration is read from.
var AppFs = afero.NewOsFs()

const (
	configName = ".prisma-engine"
	envPrefix  = "PRISMA_ENGINE"
)

// Config holds the engine configuration.
type Config struct {
	// DatabaseURL is the datasource URL. DATABASE_URL is used when unset.
	DatabaseURL string
	// Driver overrides the database/sql driver chosen for the URL.
	Driver string
	// PoolCapacity overrides connection_limit when positive.
	PoolCapacity int
	// PoolTimeout overrides pool_timeout when set.
	PoolTimeout *time.Duration
	// CacheSize enables the statement cache when positive.
	CacheSize int
	// CacheTTL bounds the age of cached statements.
	CacheTTL time.Duration
	// Telemetry selects the telemetry adapter (noop, prometheus).
	Telemetry string
	// LogLevel is the minimum level of engine logs.
	LogLevel string
	// ConfigFile is the file the configuration was read from, if any.
	ConfigFile string
}

// Loader reads configuration. The zero value reads from AppFs, the working
// directory and the user's home directory.
type Loader struct {
	Fs   afero.Fs
	Dir  string
	Home string
}

// Load loads configuration with the default loader.
func Load() (*Config, error) {
	return (&Loader{}).Load()
}

// Load loads configuration from, in increasing priority: defaults,
// .prisma-engine.yaml (working directory, home, ~/.config/prisma-engine),
// .env, .env.local and PRISMA_ENGINE_* environment variables.
func (l *Loader) Load() (*Config, error) {
	fs := l.Fs
	if fs == nil {
		fs = AppFs
	}
	dir := l.Dir
	if dir == "" {
		dir = "."
	}
	home := l.Home
	if home == "" {
		h, err := homedir.Dir()
		if err != nil {
			return nil, fmt.Errorf("failed to find home directory: %w", err)
		}
		home = h
	}

	if err := loadEnvFile(fs, filepath.Join(dir, ".env"), false); err != nil {
		return nil, err
	}
	// .env.local takes priority over .env
	if err := loadEnvFile(fs, filepath.Join(dir, ".env.local"), true); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetFs(fs)
	v.SetConfigName(configName)
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)
	v.AddConfigPath(home)
	v.AddConfigPath(filepath.Join(home, ".config", "prisma-engine"))

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("database_url", "")
	v.SetDefault("driver", "")
	v.SetDefault("pool.capacity", 0)
	v.SetDefault("cache.size", 0)
	v.SetDefault("cache.ttl", 5*time.Minute)
	v.SetDefault("telemetry", "noop")
	v.SetDefault("log.level", "warn")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{
		DatabaseURL:  v.GetString("database_url"),
		Driver:       v.GetString("driver"),
		PoolCapacity: v.GetInt("pool.capacity"),
		CacheSize:    v.GetInt("cache.size"),
		CacheTTL:     v.GetDuration("cache.ttl"),
		Telemetry:    v.GetString("telemetry"),
		LogLevel:     v.GetString("log.level"),
		ConfigFile:   v.ConfigFileUsed(),
	}
	if v.IsSet("pool.timeout") {
		d := v.GetDuration("pool.timeout")
		cfg.PoolTimeout = &d
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	return cfg, nil
}

// Datasource parses DatabaseURL and applies the overrides in c.
func (c *Config) Datasource() (*Datasource, error) {
	if c.DatabaseURL == "" {
		return nil, fmt.Errorf("no datasource URL configured; set DATABASE_URL or database_url")
	}
	ds, err := ParseDatasource(c.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if c.Driver != "" {
		ds.Driver = c.Driver
	}
	if c.PoolCapacity > 0 {
		ds.Pool.Capacity = c.PoolCapacity
	}
	if c.PoolTimeout != nil {
		ds.Pool.WaitTimeout = *c.PoolTimeout
	}
	if err := ds.Pool.Validate(); err != nil {
		return nil, err
	}
	return ds, nil
}

// loadEnvFile exports the variables of a dotenv file. Existing variables
// are kept unless overload is set. A missing file is not an error.
func loadEnvFile(fs afero.Fs, path string, overload bool) error {
	f, err := fs.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	vars, err := godotenv.Parse(f)
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	for k, val := range vars {
		if _, exists := os.LookupEnv(k); exists && !overload {
			continue
		}
		if err := os.Setenv(k, val); err != nil {
			return fmt.Errorf("failed to set %s: %w", k, err)
		}
	}
	return nil
}
