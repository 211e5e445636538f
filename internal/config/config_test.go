package config

import (
	"os"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satishbabariya/prisma-engine-go/internal/core/dialect"
	"github.com/satishbabariya/prisma-engine-go/pkg/qerr"
)

func unsetOnCleanup(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoad_Defaults(t *testing.T) {
	unsetOnCleanup(t, "DATABASE_URL", "PRISMA_ENGINE_DATABASE_URL", "PRISMA_ENGINE_POOL_TIMEOUT")

	l := &Loader{Fs: afero.NewMemMapFs(), Dir: "/work", Home: "/home/dev"}
	cfg, err := l.Load()
	require.NoError(t, err)

	assert.Empty(t, cfg.DatabaseURL)
	assert.Zero(t, cfg.PoolCapacity)
	assert.Nil(t, cfg.PoolTimeout)
	assert.Equal(t, 5*time.Minute, cfg.CacheTTL)
	assert.Equal(t, "noop", cfg.Telemetry)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Empty(t, cfg.ConfigFile)

	_, err = cfg.Datasource()
	assert.Error(t, err)
}

func TestLoad_ConfigFile(t *testing.T) {
	unsetOnCleanup(t, "DATABASE_URL", "PRISMA_ENGINE_DATABASE_URL", "PRISMA_ENGINE_POOL_TIMEOUT")

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/home/dev/.config/prisma-engine/.prisma-engine.yaml", []byte(`
database_url: postgresql://localhost/shop?connection_limit=5
pool:
  capacity: 7
  timeout: 250ms
cache:
  size: 64
telemetry: prometheus
`), 0o644))

	cfg, err := (&Loader{Fs: fs, Dir: "/work", Home: "/home/dev"}).Load()
	require.NoError(t, err)
	assert.Equal(t, "/home/dev/.config/prisma-engine/.prisma-engine.yaml", cfg.ConfigFile)
	assert.Equal(t, 64, cfg.CacheSize)
	assert.Equal(t, "prometheus", cfg.Telemetry)

	ds, err := cfg.Datasource()
	require.NoError(t, err)
	assert.Equal(t, dialect.Postgres, ds.Dialect)
	assert.Equal(t, 7, ds.Pool.Capacity)
	assert.Equal(t, 250*time.Millisecond, ds.Pool.WaitTimeout)
}

func TestLoad_EnvFiles(t *testing.T) {
	unsetOnCleanup(t, "DATABASE_URL", "PRISMA_ENGINE_DATABASE_URL", "PRISMA_ENGINE_POOL_TIMEOUT", "ENGINE_TEST_ONLY_LOCAL")

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/work/.env", []byte("DATABASE_URL=file:./base.db\nENGINE_TEST_ONLY_LOCAL=base\n"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/work/.env.local", []byte("DATABASE_URL=file:./local.db\n"), 0o644))

	cfg, err := (&Loader{Fs: fs, Dir: "/work", Home: "/home/dev"}).Load()
	require.NoError(t, err)
	assert.Equal(t, "file:./local.db", cfg.DatabaseURL)
	assert.Equal(t, "base", os.Getenv("ENGINE_TEST_ONLY_LOCAL"))

	ds, err := cfg.Datasource()
	require.NoError(t, err)
	assert.Equal(t, dialect.SQLite, ds.Dialect)
	assert.Equal(t, "file:./local.db", ds.DSN)
}

func TestLoad_EnvironmentWins(t *testing.T) {
	unsetOnCleanup(t, "DATABASE_URL")
	t.Setenv("PRISMA_ENGINE_DATABASE_URL", "mysql://root@localhost/shop")
	t.Setenv("PRISMA_ENGINE_POOL_TIMEOUT", "0s")

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/work/.prisma-engine.yaml", []byte("database_url: file:./dev.db\n"), 0o644))

	cfg, err := (&Loader{Fs: fs, Dir: "/work", Home: "/home/dev"}).Load()
	require.NoError(t, err)
	assert.Equal(t, "mysql://root@localhost/shop", cfg.DatabaseURL)
	require.NotNil(t, cfg.PoolTimeout)
	assert.Zero(t, *cfg.PoolTimeout)

	ds, err := cfg.Datasource()
	require.NoError(t, err)
	assert.Equal(t, dialect.MySQL, ds.Dialect)
	assert.Zero(t, ds.Pool.WaitTimeout)
}

func TestLoad_InvalidConfigFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/work/.prisma-engine.yaml", []byte("pool: [unclosed"), 0o644))

	_, err := (&Loader{Fs: fs, Dir: "/work", Home: "/home/dev"}).Load()
	assert.Error(t, err)
}

func TestDatasource_Overrides(t *testing.T) {
	negative := -time.Second
	cfg := &Config{DatabaseURL: "postgres://localhost/shop", PoolTimeout: &negative}
	_, err := cfg.Datasource()
	assert.ErrorIs(t, err, qerr.ErrValidation)

	cfg = &Config{DatabaseURL: "postgres://localhost/shop", Driver: "pgx", PoolCapacity: 2}
	ds, err := cfg.Datasource()
	require.NoError(t, err)
	assert.Equal(t, "pgx", ds.Driver)
	assert.Equal(t, 2, ds.Pool.Capacity)
}
