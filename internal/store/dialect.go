package store

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"hydroingest/internal/config"
)

// sqliteTimeLayout sorts lexically, so range filters work on the text column.
const sqliteTimeLayout = "2006-01-02 15:04:05.000000"

type dialect struct {
	name     string
	driver   string
	geomIn   string
	geomOut  string
	numbered bool
}

var dialects = map[string]dialect{
	config.DriverSQLite: {name: config.DriverSQLite, driver: "sqlite", geomIn: "?", geomOut: "%s"},
	config.DriverMySQL:  {name: config.DriverMySQL, driver: "mysql", geomIn: "ST_GeomFromText(?)", geomOut: "ST_AsText(%s)"},
	config.DriverPgx:    {name: config.DriverPgx, driver: "pgx", geomIn: "ST_GeomFromText(?, 4326)", geomOut: "ST_AsText(%s)", numbered: true},
}

func lookupDialect(name string) (dialect, error) {
	d, ok := dialects[name]
	if !ok {
		return dialect{}, fmt.Errorf("unsupported store driver %q", name)
	}
	return d, nil
}

// geom returns the column expression that yields WKT text for col.
func (d dialect) geom(col string) string {
	return fmt.Sprintf(d.geomOut, col)
}

// rebind rewrites "?" placeholders to "$n" for drivers that need it.
func (d dialect) rebind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// timeArg converts t to the argument form the driver stores reliably.
func (d dialect) timeArg(t time.Time) any {
	if d.name == config.DriverSQLite {
		return t.UTC().Format(sqliteTimeLayout)
	}
	return t.UTC()
}

// dsn decorates the configured DSN with per-connection settings.
func (d dialect) dsn(raw string) string {
	if d.name != config.DriverSQLite {
		return raw
	}
	sep := "?"
	if strings.Contains(raw, "?") {
		sep = "&"
	}
	return raw + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

func parseTimeString(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("empty time value")
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05.999999999", "2006-01-02 15:04:05.999999999-07:00"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time value %q", value)
}

func passedText(passed bool) string {
	if passed {
		return "1"
	}
	return "0"
}
