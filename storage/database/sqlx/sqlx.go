package sqlxrepos

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
	"github.com/volatiletech/strmangle"
)

// NewDB wraps an opened postgres connection pool.
func NewDB(db *sql.DB) *sqlx.DB {
	return sqlx.NewDb(db, "postgres")
}

// trapNoRowsErr maps psql "no rows" err to notFound
func trapNoRowsErr(err error, notFound error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return notFound
	}
	return errors.Wrap(err, msg)
}

// isUUID reports whether every id is a valid uuid, so that lookups by malformed ids are plain misses.
func isUUID(ids ...string) bool {
	for _, id := range ids {
		if _, err := uuid.Parse(id); err != nil {
			return false
		}
	}
	return true
}

func insertQuery(table string, cols []string) string {
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (:%s)", table, strings.Join(cols, ", "), strings.Join(cols, ", :"))
}

// upsertQuery inserts a row or updates every non key column but id and created_at when the conflict columns clash.
func upsertQuery(table string, cols, conflict []string) string {
	isKey := make(map[string]bool, len(conflict))
	for _, c := range conflict {
		isKey[c] = true
	}
	sets := make([]string, 0, len(cols))
	for _, c := range cols {
		if !isKey[c] && c != "id" && c != "created_at" {
			sets = append(sets, c+" = EXCLUDED."+c)
		}
	}
	action := "DO NOTHING"
	if len(sets) > 0 {
		action = "DO UPDATE SET " + strings.Join(sets, ", ")
	}
	return fmt.Sprintf("%s ON CONFLICT (%s) %s", insertQuery(table, cols), strings.Join(conflict, ", "), action)
}

func updateQuery(table string, cols, keys []string) string {
	sets := make([]string, 0, len(cols))
	for _, c := range cols {
		sets = append(sets, c+" = :"+c)
	}
	where := make([]string, 0, len(keys))
	for _, k := range keys {
		where = append(where, k+" = :"+k)
	}
	return fmt.Sprintf("UPDATE %s SET %s WHERE %s", table, strings.Join(sets, ", "), strings.Join(where, " AND "))
}

// selectWhere selects every column of table whose key columns equal the positional args.
func selectWhere(table string, keys ...string) string {
	return fmt.Sprintf("SELECT * FROM %s WHERE %s", table, strmangle.WhereClause(`"`, `"`, 1, keys))
}

// inClause returns `col IN ($start, ...)` for n values.
func inClause(col string, start, n int) string {
	return fmt.Sprintf("%s IN (%s)", col, strmangle.Placeholders(true, n, start, 1))
}

func stringArgs(vals []string) []interface{} {
	args := make([]interface{}, 0, len(vals))
	for _, v := range vals {
		args = append(args, v)
	}
	return args
}

func nullString(s string) null.String {
	return null.NewString(s, s != "")
}

func nullTime(t time.Time) null.Time {
	return null.NewTime(t.UTC(), !t.IsZero())
}

// jsonb maps a jsonb column to a Go value.
type jsonb[T any] struct {
	V T
}

func (j jsonb[T]) Value() (driver.Value, error) {
	b, err := json.Marshal(j.V)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (j *jsonb[T]) Scan(src interface{}) error {
	switch b := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(b, &j.V)
	case string:
		return json.Unmarshal([]byte(b), &j.V)
	default:
		return errors.Errorf("jsonb: cannot scan %T", src)
	}
}
