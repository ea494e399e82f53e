package querysql

import (
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tasksync/internal/cursor"
	"github.com/roach88/tasksync/internal/ir"
	"github.com/roach88/tasksync/internal/queryir"
)

func TestCompile_GoldenSQL(t *testing.T) {
	compiler := NewSQLCompiler()

	testCases := []struct {
		name       string
		query      queryir.Query
		wantSQL    string
		wantParams []any
	}{
		{
			name:       "select without filter",
			query:      queryir.Select{From: "stock_action", Limit: 100},
			wantSQL:    `SELECT * FROM "stock_action" ORDER BY "id" ASC LIMIT ?`,
			wantParams: []any{100},
		},
		{
			name: "filter and order",
			query: queryir.Select{
				From:    "raw_stock_action",
				Filter:  queryir.Equals{Field: "canceled", Value: ir.IRBool(false)},
				OrderBy: []queryir.Order{{Field: "update_datetime"}, {Field: "sender", Descending: true}},
				Limit:   2,
			},
			wantSQL:    `SELECT * FROM "raw_stock_action" WHERE "canceled" = ? ORDER BY "update_datetime" ASC, "sender" DESC, "id" ASC LIMIT ?`,
			wantParams: []any{int64(0), 2},
		},
		{
			name: "id already ordered",
			query: queryir.Select{
				From:    "t",
				OrderBy: []queryir.Order{{Field: "id", Descending: true}},
				Limit:   1,
			},
			wantSQL:    `SELECT * FROM "t" ORDER BY "id" DESC LIMIT ?`,
			wantParams: []any{1},
		},
		{
			name: "unbounded",
			query: &queryir.Select{
				From:   "t",
				Filter: queryir.Greater{Field: "id", Value: ir.IRInt(5)},
			},
			wantSQL:    `SELECT * FROM "t" WHERE "id" > ? ORDER BY "id" ASC`,
			wantParams: []any{int64(5)},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			sql, params, err := compiler.Compile(tc.query)
			require.NoError(t, err)

			assert.Equal(t, tc.wantSQL, sql, "SQL mismatch")
			assert.Equal(t, tc.wantParams, params, "Parameters mismatch")
		})
	}
}

func TestCompile_Junctions(t *testing.T) {
	compiler := NewSQLCompiler()
	a := queryir.Equals{Field: "a", Value: ir.IRInt(1)}
	b := queryir.Less{Field: "b", Value: ir.IRInt(2)}

	tests := []struct {
		name    string
		pred    queryir.Predicate
		wantSQL string
	}{
		{"nil", nil, "1 = 1"},
		{"empty and", queryir.And{}, "1 = 1"},
		{"empty or", queryir.Or{}, "1 = 0"},
		{"single and", queryir.And{Predicates: []queryir.Predicate{a}}, `"a" = ?`},
		{"single or", queryir.Or{Predicates: []queryir.Predicate{b}}, `"b" < ?`},
		{"and", queryir.And{Predicates: []queryir.Predicate{a, b}}, `"a" = ? AND "b" < ?`},
		{"or", queryir.Or{Predicates: []queryir.Predicate{a, b}}, `("a" = ?) OR ("b" < ?)`},
		{
			"or inside and",
			queryir.And{Predicates: []queryir.Predicate{a, queryir.Or{Predicates: []queryir.Predicate{a, b}}}},
			`"a" = ? AND (("a" = ?) OR ("b" < ?))`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, _, err := compiler.CompilePredicate(tt.pred)
			require.NoError(t, err)
			assert.Equal(t, tt.wantSQL, sql)
		})
	}
}

func TestCompile_NoStringInterpolation(t *testing.T) {
	compiler := NewSQLCompiler()
	hostile := "x' OR '1'='1"

	sql, params, err := compiler.Compile(queryir.Select{
		From:   "t",
		Filter: queryir.Equals{Field: "name", Value: ir.IRString(hostile)},
		Limit:  1,
	})
	require.NoError(t, err)

	assert.NotContains(t, sql, hostile)
	assert.Equal(t, []any{hostile, 1}, params)
}

func TestCompile_Errors(t *testing.T) {
	compiler := NewSQLCompiler()

	tests := []struct {
		name  string
		query queryir.Query
		msg   string
	}{
		{"nil query", nil, "nil query"},
		{"bad collection", queryir.Select{From: `t"; DROP TABLE tasks; --`}, "invalid identifier"},
		{"bad field", queryir.Select{From: "t", Filter: queryir.Equals{Field: "a b", Value: ir.IRInt(1)}}, "invalid identifier"},
		{"bad order field", queryir.Select{From: "t", OrderBy: []queryir.Order{{Field: "-x"}}}, "invalid identifier"},
		{"null comparison", queryir.Select{From: "t", Filter: queryir.Equals{Field: "a", Value: ir.IRNull{}}}, "NULL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := compiler.Compile(tt.query)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestIRValueToParam(t *testing.T) {
	ts := time.Date(2024, 2, 3, 4, 5, 6, 7000, time.UTC)

	tests := []struct {
		name  string
		value ir.IRValue
		want  any
	}{
		{"string", ir.IRString("a"), "a"},
		{"int", ir.IRInt(7), int64(7)},
		{"true", ir.IRBool(true), int64(1)},
		{"false", ir.IRBool(false), int64(0)},
		{"float", ir.IRFloat(0.5), 0.5},
		{"time", ir.NewIRTime(ts), "2024-02-03T04:05:06.000007Z"},
		{"null", ir.IRNull{}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := IRValueToParam(tt.value)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := IRValueToParam(nil)
	require.Error(t, err)
}

// The boundary for a two-key order with a mixed direction, compiled as the
// fetcher issues it.
func TestCompile_TwoKeyBoundaryGolden(t *testing.T) {
	orderBy := []ir.OrderKey{"update_datetime", "-sender"}
	last := ir.Cursor{
		"update_datetime": ir.NewIRTime(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)),
		"-sender":         ir.IRString("bob"),
	}

	boundary, err := cursor.Boundary(orderBy, last)
	require.NoError(t, err)

	sql, params, err := NewSQLCompiler().Compile(queryir.Select{
		From: "raw_stock_action",
		Filter: queryir.Conjoin(
			queryir.FilterEquals(ir.IRObject{"canceled": ir.IRBool(false)}),
			boundary,
		),
		OrderBy: cursor.Order(orderBy),
		Limit:   2,
	})
	require.NoError(t, err)

	ts := "2024-01-01T12:00:00.000000Z"
	assert.Equal(t, []any{int64(0), ts, ts, "bob", ts, "bob", 2}, params)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "two_key_boundary", []byte(sql))
}

func TestCompile_TimeFieldsNormalized(t *testing.T) {
	compiler := NewSQLCompiler()
	compiler.TimeFields = map[string]bool{"update_datetime": true}
	ts := ir.NewIRTime(time.Date(2024, 1, 1, 1, 0, 0, 0, time.UTC))

	sql, params, err := compiler.Compile(queryir.Select{
		From: "raw_stock_action",
		Filter: queryir.And{Predicates: []queryir.Predicate{
			queryir.Greater{Field: "update_datetime", Value: ts},
			queryir.Equals{Field: "sender", Value: ir.IRString("bob")},
		}},
		OrderBy: []queryir.Order{{Field: "update_datetime", Descending: true}},
		Limit:   3,
	})
	require.NoError(t, err)

	assert.Equal(t,
		`SELECT * FROM "raw_stock_action" WHERE tasksync_time("update_datetime") > tasksync_time(?) AND "sender" = ? `+
			`ORDER BY tasksync_time("update_datetime") DESC, "id" ASC LIMIT ?`,
		sql)
	assert.Equal(t, []any{"2024-01-01T01:00:00.000000Z", "bob", 3}, params)
}
