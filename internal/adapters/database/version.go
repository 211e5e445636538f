package database

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/hashicorp/go-version"

	"github.com/satishbabariya/prisma-engine-go/internal/core/dialect"
	"github.com/satishbabariya/prisma-engine-go/pkg/qerr"
)

// Minimum server versions for the JSON functions each dialect renders.
var (
	minPostgres  = version.Must(version.NewVersion("9.4"))    // jsonb, #> and #>>
	minMySQL     = version.Must(version.NewVersion("5.7.8"))  // JSON type, JSON_EXTRACT
	minMariaDB   = version.Must(version.NewVersion("10.2.7")) // JSON_EXTRACT, JSON_CONTAINS
	minSQLite    = version.Must(version.NewVersion("3.38.0")) // -> and ->> operators
	minSQLServer = version.Must(version.NewVersion("13.0"))   // OPENJSON, JSON_VALUE, JSON_QUERY
)

var versionQueries = map[dialect.Name]string{
	dialect.Postgres:  "SHOW server_version",
	dialect.MySQL:     "SELECT VERSION()",
	dialect.SQLite:    "SELECT sqlite_version()",
	dialect.SQLServer: "SELECT CAST(SERVERPROPERTY('ProductVersion') AS nvarchar(128))",
}

var leadingVersion = regexp.MustCompile(`\d+(\.\d+){0,3}`)

// ServerVersion is a parsed database server version.
type ServerVersion struct {
	Dialect dialect.Name
	Raw     string
	Version *version.Version
	MariaDB bool
}

// ParseServerVersion parses the version string reported by a server of
// dialect d, such as "14.5 (Debian 14.5-1)" or "10.6.12-MariaDB-1".
func ParseServerVersion(d dialect.Name, raw string) (*ServerVersion, error) {
	sv := &ServerVersion{Dialect: d, Raw: raw}
	text := raw
	if d == dialect.MySQL && strings.Contains(strings.ToLower(raw), "mariadb") {
		sv.MariaDB = true
		// Replication-compatible builds prefix the real version with 5.5.5-.
		text = strings.TrimPrefix(text, "5.5.5-")
	}
	match := leadingVersion.FindString(text)
	if match == "" {
		return nil, fmt.Errorf("unrecognized %s server version %q", d, raw)
	}
	v, err := version.NewVersion(match)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s server version %q: %w", d, raw, err)
	}
	sv.Version = v
	return sv, nil
}

// Minimum returns the lowest supported version for the server's flavour.
func (sv *ServerVersion) Minimum() *version.Version {
	switch sv.Dialect {
	case dialect.Postgres:
		return minPostgres
	case dialect.MySQL:
		if sv.MariaDB {
			return minMariaDB
		}
		return minMySQL
	case dialect.SQLite:
		return minSQLite
	case dialect.SQLServer:
		return minSQLServer
	}
	return nil
}

// Check returns an UnsupportedFeature error when the server is too old
// for the JSON filters the dialect renders.
func (sv *ServerVersion) Check() error {
	minimum := sv.Minimum()
	if minimum == nil || sv.Version.GreaterThanOrEqual(minimum) {
		return nil
	}
	name := string(sv.Dialect)
	if sv.MariaDB {
		name = "mariadb"
	}
	err := qerr.Unsupported(string(sv.Dialect), "JSON filtering")
	err.Message = fmt.Sprintf("JSON filtering requires %s %s or later, server is %s", name, minimum, sv.Version)
	return err
}

func (sv *ServerVersion) String() string {
	return fmt.Sprintf("%s %s", sv.Dialect, sv.Version)
}

// CheckVersion parses raw and checks it against the dialect minimum.
func CheckVersion(d dialect.Name, raw string) error {
	sv, err := ParseServerVersion(d, raw)
	if err != nil {
		return err
	}
	return sv.Check()
}

// QueryServerVersion asks the server behind r for its version.
func QueryServerVersion(ctx context.Context, r Runner, d dialect.Name) (*ServerVersion, error) {
	query, ok := versionQueries[d]
	if !ok {
		return nil, qerr.Unsupported(string(d), "server version query")
	}
	rows, err := r.QueryContext(ctx, query)
	if err != nil {
		return nil, Classify(err)
	}
	defer rows.Close()

	var raw string
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, Classify(err)
		}
		return nil, fmt.Errorf("server returned no version")
	}
	if err := rows.Scan(&raw); err != nil {
		return nil, fmt.Errorf("failed to scan server version: %w", err)
	}
	return ParseServerVersion(d, raw)
}
