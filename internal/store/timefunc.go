package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/roach88/tasksync/internal/ir"
	"github.com/roach88/tasksync/internal/querysql"
)

// driverName is go-sqlite3 with querysql.TimeFunc registered on every
// connection.
const driverName = "sqlite3_tasksync"

func init() {
	sql.Register(driverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			return conn.RegisterFunc(querysql.TimeFunc, canonicalTimeValue, true)
		},
	})
}

// canonicalTimeValue backs querysql.TimeFunc. Text is parsed with parseTime
// and integers are read as Unix time, the same way the driver scans DATETIME
// columns. NULL stays NULL.
func canonicalTimeValue(v any) (any, error) {
	switch tv := v.(type) {
	case nil:
		return nil, nil
	case string:
		t, err := parseTime(tv)
		if err != nil {
			return nil, err
		}
		return ir.CanonicalTime(t), nil
	case []byte:
		t, err := parseTime(string(tv))
		if err != nil {
			return nil, err
		}
		return ir.CanonicalTime(t), nil
	case int64:
		return ir.CanonicalTime(unixTime(tv)), nil
	default:
		return nil, fmt.Errorf("%s: unsupported value %T", querysql.TimeFunc, v)
	}
}

// parseTime accepts the canonical layout, RFC 3339 and every layout the
// driver recognizes for DATETIME columns. Values without a zone are UTC.
func parseTime(s string) (time.Time, error) {
	if t, err := ir.ParseTime(s); err == nil {
		return t, nil
	}
	trimmed := strings.TrimSuffix(strings.TrimSpace(s), "Z")
	for _, layout := range sqlite3.SQLiteTimestampFormats {
		if t, err := time.ParseInLocation(layout, trimmed, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("parse time %q: unrecognized layout", s)
}

// unixTime reads seconds, or milliseconds for 13 digit values.
func unixTime(n int64) time.Time {
	if n >= 1e12 && n < 1e13 {
		return time.UnixMilli(n).UTC()
	}
	return time.Unix(n, 0).UTC()
}
