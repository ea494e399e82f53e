// Package querysql compiles QueryIR to parameterized SQLite SQL.
package querysql

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/roach88/tasksync/internal/ir"
	"github.com/roach88/tasksync/internal/queryir"
)

// identPattern restricts collection and field names to plain identifiers.
// They are quoted as well, but only after passing this check.
var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// TimeFunc is the SQL function the store registers on every connection to
// rewrite a stored timestamp into TimeLayout. Timestamps written by other
// tools ("2024-01-01 05:00:00", offsets other than Z) only compare
// chronologically after passing through it.
const TimeFunc = "tasksync_time"

// SQLCompiler compiles QueryIR to parameterized SQL for SQLite.
//
// CRITICAL: ALL queries include ORDER BY for deterministic results.
// CRITICAL: All values are parameterized (never interpolated).
type SQLCompiler struct {
	// Tiebreaker is appended to every ORDER BY unless the query already
	// orders by it, so records tied on every sort key arrive in a stable order.
	Tiebreaker string

	// TimeFields names the fields holding timestamps. Comparisons and sort
	// keys on them go through TimeFunc.
	TimeFields map[string]bool
}

// NewSQLCompiler creates a new SQLCompiler that breaks ties by record identity.
func NewSQLCompiler() *SQLCompiler {
	return &SQLCompiler{Tiebreaker: ir.IdentityField}
}

// Compile converts a QueryIR query to parameterized SQL.
// Returns (sql, params, error) tuple.
func (c *SQLCompiler) Compile(q queryir.Query) (string, []any, error) {
	switch query := q.(type) {
	case queryir.Select:
		return c.compileSelect(query)
	case *queryir.Select:
		if query == nil {
			return "", nil, fmt.Errorf("cannot compile nil query")
		}
		return c.compileSelect(*query)
	case nil:
		return "", nil, fmt.Errorf("cannot compile nil query")
	default:
		return "", nil, fmt.Errorf("unsupported query type: %T", q)
	}
}

// CompilePredicate compiles a predicate on its own, for use in a WHERE clause
// assembled elsewhere (counts, deletes). A nil predicate compiles to "1 = 1".
func (c *SQLCompiler) CompilePredicate(p queryir.Predicate) (string, []any, error) {
	return c.compilePredicate(p)
}

// compileSelect compiles a queryir.Select to SQL.
func (c *SQLCompiler) compileSelect(q queryir.Select) (string, []any, error) {
	from, err := QuoteIdent(q.From)
	if err != nil {
		return "", nil, fmt.Errorf("collection: %w", err)
	}

	var sb strings.Builder
	var params []any

	sb.WriteString("SELECT * FROM ")
	sb.WriteString(from)

	if q.Filter != nil {
		filterSQL, filterParams, err := c.compilePredicate(q.Filter)
		if err != nil {
			return "", nil, fmt.Errorf("compile filter: %w", err)
		}
		sb.WriteString(" WHERE ")
		sb.WriteString(filterSQL)
		params = append(params, filterParams...)
	}

	orderBy, err := c.compileOrderBy(q.OrderBy)
	if err != nil {
		return "", nil, err
	}
	sb.WriteString(" ORDER BY ")
	sb.WriteString(orderBy)

	if q.Limit > 0 {
		sb.WriteString(" LIMIT ?")
		params = append(params, q.Limit)
	}

	return sb.String(), params, nil
}

// compileOrderBy renders the sort keys followed by the tiebreaker.
// MANDATORY: every query gets at least the tiebreaker.
func (c *SQLCompiler) compileOrderBy(order []queryir.Order) (string, error) {
	parts := make([]string, 0, len(order)+1)
	hasTiebreaker := false
	for _, o := range order {
		col, err := c.column(o.Field)
		if err != nil {
			return "", fmt.Errorf("order by: %w", err)
		}
		dir := "ASC"
		if o.Descending {
			dir = "DESC"
		}
		parts = append(parts, col+" "+dir)
		if o.Field == c.Tiebreaker {
			hasTiebreaker = true
		}
	}

	if c.Tiebreaker != "" && !hasTiebreaker {
		col, err := QuoteIdent(c.Tiebreaker)
		if err != nil {
			return "", fmt.Errorf("tiebreaker: %w", err)
		}
		parts = append(parts, col+" ASC")
	}
	if len(parts) == 0 {
		return "rowid ASC", nil
	}
	return strings.Join(parts, ", "), nil
}

// compilePredicate compiles a queryir.Predicate to a WHERE clause fragment.
// CRITICAL: Values NEVER interpolated - always use ? placeholders.
func (c *SQLCompiler) compilePredicate(p queryir.Predicate) (string, []any, error) {
	switch pred := p.(type) {
	case nil:
		return "1 = 1", nil, nil
	case queryir.Equals:
		return c.compileComparison(pred.Field, "=", pred.Value)
	case queryir.Greater:
		return c.compileComparison(pred.Field, ">", pred.Value)
	case queryir.Less:
		return c.compileComparison(pred.Field, "<", pred.Value)
	case queryir.And:
		return c.compileJunction(pred.Predicates, " AND ", "1 = 1")
	case queryir.Or:
		return c.compileJunction(pred.Predicates, " OR ", "1 = 0")
	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

// compileComparison compiles "field <op> ?". On a time field both sides are
// normalized.
func (c *SQLCompiler) compileComparison(field, op string, value ir.IRValue) (string, []any, error) {
	col, err := c.column(field)
	if err != nil {
		return "", nil, err
	}
	if _, isNull := value.(ir.IRNull); isNull || value == nil {
		return "", nil, fmt.Errorf("field %q: comparison with NULL never matches", field)
	}
	param, err := IRValueToParam(value)
	if err != nil {
		return "", nil, fmt.Errorf("field %q: %w", field, err)
	}
	mark := "?"
	if c.TimeFields[field] {
		mark = TimeFunc + "(?)"
	}
	return fmt.Sprintf("%s %s %s", col, op, mark), []any{param}, nil
}

// column renders field as a quoted identifier, wrapped in TimeFunc for
// time fields.
func (c *SQLCompiler) column(field string) (string, error) {
	col, err := QuoteIdent(field)
	if err != nil {
		return "", err
	}
	if c.TimeFields[field] {
		return TimeFunc + "(" + col + ")", nil
	}
	return col, nil
}

// compileJunction joins sub-predicates with sep. A single element compiles to
// itself. In an AND, nested ORs are parenthesized; in an OR every element is.
func (c *SQLCompiler) compileJunction(preds []queryir.Predicate, sep, empty string) (string, []any, error) {
	if len(preds) == 0 {
		return empty, nil, nil
	}
	if len(preds) == 1 {
		return c.compilePredicate(preds[0])
	}

	parts := make([]string, 0, len(preds))
	var params []any
	for _, sub := range preds {
		sql, subParams, err := c.compilePredicate(sub)
		if err != nil {
			return "", nil, err
		}
		if sep == " OR " || isOr(sub) {
			sql = "(" + sql + ")"
		}
		parts = append(parts, sql)
		params = append(params, subParams...)
	}
	return strings.Join(parts, sep), params, nil
}

func isOr(p queryir.Predicate) bool {
	or, ok := p.(queryir.Or)
	return ok && len(or.Predicates) > 1
}

// QuoteIdent validates name as a plain identifier and returns it double-quoted.
func QuoteIdent(name string) (string, error) {
	if !identPattern.MatchString(name) {
		return "", fmt.Errorf("invalid identifier %q", name)
	}
	return `"` + name + `"`, nil
}

// IRValueToParam converts an ir.IRValue to a Go native type for a SQL parameter.
// Booleans bind as 0/1 and timestamps as their canonical string, matching how
// the store writes them.
func IRValueToParam(v ir.IRValue) (any, error) {
	switch val := v.(type) {
	case ir.IRBool:
		if val {
			return int64(1), nil
		}
		return int64(0), nil
	case ir.IRString, ir.IRInt, ir.IRFloat, ir.IRTime, ir.IRNull:
		return ir.ToGo(val)
	default:
		return nil, fmt.Errorf("unsupported IRValue type for SQL parameter: %T", v)
	}
}
