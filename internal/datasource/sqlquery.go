// internal/datasource/sqlquery.go
//
// Shared SQL translation for the SQL-speaking backends.
//
// Context
// -------
// Neon, PlanetScale, and Turso all take the same statement shape —
//
//	SELECT <cols> FROM <table> WHERE <k> = '<v>' AND … LIMIT n OFFSET m
//
// — differing only in identifier quoting (double quotes, backticks, or
// none).  Values are embedded as escaped string literals; the filter
// surface is equality-only, so the translation stays a single audited
// function instead of a predicate compiler.
package datasource

import (
	"fmt"
	"sort"
	"strings"
)

// quoteFunc wraps an identifier in the backend's quoting style.
type quoteFunc func(string) string

func quoteDouble(s string) string   { return `"` + s + `"` }
func quoteBacktick(s string) string { return "`" + s + "`" }
func quoteNone(s string) string     { return s }

// buildSelect renders opts into one SELECT statement.
func buildSelect(opts QueryOptions, quote quoteFunc) string {
	cols := "*"
	if len(opts.Select) > 0 {
		quoted := make([]string, len(opts.Select))
		for i, c := range opts.Select {
			quoted[i] = quote(c)
		}
		cols = strings.Join(quoted, ", ")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s%s", cols, quote(opts.Table), whereClause(opts, quote))

	if opts.OrderBy != "" {
		dir := "ASC"
		if strings.EqualFold(opts.Order, "desc") {
			dir = "DESC"
		}
		fmt.Fprintf(&b, " ORDER BY %s %s", quote(opts.OrderBy), dir)
	}
	if opts.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", opts.Limit)
	}
	if opts.Offset > 0 {
		fmt.Fprintf(&b, " OFFSET %d", opts.Offset)
	}
	return b.String()
}

// buildCount renders the matching COUNT(*) statement, dropping pagination.
func buildCount(opts QueryOptions, quote quoteFunc) string {
	return fmt.Sprintf("SELECT COUNT(*) FROM %s%s",
		quote(opts.Table), whereClause(opts, quote))
}

// whereClause renders the equality filters in deterministic key order so
// statements are stable for logs and tests.
func whereClause(opts QueryOptions, quote quoteFunc) string {
	if len(opts.Filters) == 0 {
		return ""
	}
	keys := make([]string, 0, len(opts.Filters))
	for k := range opts.Filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s = '%s'", quote(k), escapeLiteral(opts.Filters[k])))
	}
	return " WHERE " + strings.Join(parts, " AND ")
}

// escapeLiteral doubles single quotes, the one escape every SQL dialect in
// play agrees on.
func escapeLiteral(v string) string {
	return strings.ReplaceAll(v, "'", "''")
}
