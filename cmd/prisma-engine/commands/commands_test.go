package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satishbabariya/prisma-engine-go/pkg/client"
	"github.com/satishbabariya/prisma-engine-go/pkg/qerr"
)

// run executes the CLI with args and returns what it wrote to stdout.
func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(append([]string{"--no-color"}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func sqliteURL(t *testing.T) string {
	t.Helper()
	url := "sqlite:" + filepath.Join(t.TempDir(), "cli.db") + "?connection_limit=2&pool_timeout=1"
	c := client.New(client.WithDatabaseURL(url))
	require.NoError(t, c.Connect(context.Background()))
	defer c.Disconnect(context.Background())
	_, err := c.ExecuteRaw(context.Background(), `CREATE TABLE "User" (id INTEGER PRIMARY KEY, name TEXT, meta JSON)`)
	require.NoError(t, err)
	return url
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "prisma-engine version dev")
	assert.Contains(t, out, "Go Version")
}

func TestTranslateCommand(t *testing.T) {
	out, err := run(t, "", "translate", `name = "x"`, "--dialect", "postgresql")
	require.NoError(t, err)
	assert.Contains(t, out, `"name" = $1`)
	assert.Contains(t, out, `args: ["x"]`)

	out, err = run(t, "", "translate", `meta.tags[*] array_contains ["a"]`, "--all")
	require.NoError(t, err)
	for _, name := range []string{"postgres", "mysql", "sqlite", "sqlserver", "document"} {
		assert.Contains(t, out, name)
	}
	assert.Contains(t, out, "error:", "wildcard paths are not supported everywhere")

	_, err = run(t, "", "translate", `name = `, "--dialect", "sqlite")
	assert.ErrorIs(t, err, qerr.ErrValidation)

	_, err = run(t, "", "translate", `name = "x"`, "--dialect", "oracle")
	assert.Error(t, err)
}

func TestCapabilitiesCommand(t *testing.T) {
	out, err := run(t, "", "capabilities")
	require.NoError(t, err)
	assert.Contains(t, out, "array_contains")
	assert.Contains(t, out, "sqlserver")
	assert.Contains(t, out, "yes")
	assert.Contains(t, out, "no")

	out, err = run(t, "", "capabilities", "--markdown")
	require.NoError(t, err)
	assert.Contains(t, out, "capabilities")
}

func TestCapabilityMatrix(t *testing.T) {
	headers, rows := capabilityMatrix()
	assert.Equal(t, []string{"Operation", "postgres", "mysql", "sqlite", "sqlserver", "document"}, headers)
	require.NotEmpty(t, rows)
	for _, row := range rows {
		require.Len(t, row, len(headers))
		for _, cell := range row[1:] {
			assert.Contains(t, []string{"yes", "no"}, cell, row[0])
		}
	}
}

func TestQueryCommand(t *testing.T) {
	url := sqliteURL(t)

	out, err := run(t, `[
		{"operation": "create", "model": "User", "data": {"id": 1, "name": "Ada", "meta": {"tags": ["a"]}}, "jsonFields": ["meta"]},
		{"operation": "create", "model": "User", "data": {"id": 2, "name": "Bob", "meta": {"$null": "JsonNull"}}, "jsonFields": ["meta"]}
	]`, "query", "--url", url, "--isolation", "serializable")
	require.NoError(t, err)
	var batch []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &batch))
	assert.Len(t, batch, 2)

	out, err = run(t, `{"operation": "findMany", "model": "User", "filter": {"meta": {"path": ["tags"], "array_contains": ["a"]}}, "select": ["name"]}`,
		"query", "--url", url)
	require.NoError(t, err)
	var rs struct{ Rows []map[string]any }
	require.NoError(t, json.Unmarshal([]byte(out), &rs))
	require.Len(t, rs.Rows, 1)
	assert.Equal(t, "Ada", rs.Rows[0]["name"])

	out, err = run(t, `{"operation": "findMany", "model": "User", "orderBy": {"id": "asc"}, "jsonFields": ["meta"]}`,
		"query", "--url", url, "--format", "table")
	require.NoError(t, err)
	assert.Contains(t, out, "Bob")
	assert.Contains(t, out, `{"tags":["a"]}`)

	_, err = run(t, `{"operation": "findMany"}`, "query", "--url", url)
	assert.ErrorIs(t, err, qerr.ErrValidation)

	_, err = run(t, `{"operation": "findMany", "model": "User"}`, "query", "--url", url, "--isolation", "chaotic")
	assert.Error(t, err)
}

func TestBenchCommand(t *testing.T) {
	url := sqliteURL(t)

	out, err := run(t, "", "bench", "--url", url, "--concurrency", "4", "--requests", "40", "--metrics",
		"--sql", `SELECT COUNT(*) FROM "User"`)
	require.NoError(t, err)
	assert.Contains(t, out, "p95")
	assert.Contains(t, out, "max in use")
	assert.NotContains(t, out, "errors:")
	assert.Contains(t, out, "queries_total")

	_, err = run(t, "", "bench", "--url", url, "--requests", "0")
	assert.Error(t, err)
}

func TestPercentile(t *testing.T) {
	assert.Zero(t, percentile(nil, 0.5))
	var d []time.Duration
	for i := 1; i <= 10; i++ {
		d = append(d, time.Duration(i)*time.Millisecond)
	}
	assert.Equal(t, 5*time.Millisecond, percentile(d, 0.5))
	assert.Equal(t, 10*time.Millisecond, percentile(d, 1))
}
