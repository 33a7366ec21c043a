package odata

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// DefaultRowCount is the row count used by $skip when none is configured.
const DefaultRowCount = 100

// Compiler turns OData query parameters into SQL clauses. It holds no state
// besides configuration and is safe for concurrent use.
type Compiler struct {
	DefaultRowCount int
}

// NewCompiler returns a compiler using the given $skip row count.
func NewCompiler(rowCount int) Compiler {
	if rowCount <= 0 {
		rowCount = DefaultRowCount
	}
	return Compiler{DefaultRowCount: rowCount}
}

// Compile maps every query parameter to a clause and returns the clauses
// sorted by ID. Keys are visited in sorted order so the reported error does
// not depend on map iteration.
func (c Compiler) Compile(params map[string]string) ([]Clause, error) {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	clauses := make([]Clause, 0, len(keys))
	for _, key := range keys {
		clause, err := c.compileParam(key, params[key])
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, clause)
	}
	sortClauses(clauses)
	return clauses, nil
}

func (c Compiler) compileParam(key, value string) (Clause, error) {
	switch key {
	case "$orderby":
		return Clause{ID: ClauseOrder, Text: " order by " + value}, nil
	case "$filter":
		where, err := TranslateFilter(value)
		if err != nil {
			return Clause{}, err
		}
		return Clause{ID: ClauseWhere, Text: " where " + where}, nil
	case "$skip":
		return Clause{ID: ClauseLimit, Text: " limit " + value + "," + strconv.Itoa(c.rowCount())}, nil
	case "$select":
		return Clause{ID: ClauseSelect, Text: "select " + value}, nil
	case "$top", "$inlinecount", "$expand":
		return Clause{}, unsupportedErr("Unsupported query: " + key)
	case "$format":
		return Clause{}, unsupportedErr("Use http header to select format: " + key)
	default:
		return Clause{}, invalidErr("Invalid query: " + key)
	}
}

func (c Compiler) rowCount() int {
	if c.DefaultRowCount <= 0 {
		return DefaultRowCount
	}
	return c.DefaultRowCount
}

// SelectSQL assembles a select statement over schema.table from compiled
// clauses. A missing select clause becomes "select *".
func SelectSQL(schema, table string, clauses []Clause) string {
	all := make([]Clause, 0, len(clauses)+2)
	all = append(all, clauses...)
	all = append(all, Clause{ID: ClauseFrom, Text: " from " + schema + "." + table})
	sortClauses(all)
	if all[0].ID != ClauseSelect {
		all = append(all, Clause{ID: ClauseSelect, Text: "select *"})
		sortClauses(all)
	}
	return Join(all)
}

// Join concatenates clause texts in ID order.
func Join(clauses []Clause) string {
	sorted := make([]Clause, len(clauses))
	copy(sorted, clauses)
	sortClauses(sorted)
	var b strings.Builder
	for _, c := range sorted {
		b.WriteString(c.Text)
	}
	return b.String()
}

func sortClauses(clauses []Clause) {
	sort.SliceStable(clauses, func(i, j int) bool {
		return clauses[i].ID < clauses[j].ID
	})
}

var filterOps = map[string]string{
	"eq":  "=",
	"ne":  "<>",
	"gt":  ">",
	"ge":  ">=",
	"lt":  "<",
	"le":  "<=",
	"and": "and",
	"or":  "or",
	"not": "not",
	"add": "+",
	"sub": "-",
	"mul": "*",
	"div": "/",
	"mod": "mod",
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// TranslateFilter rewrites an OData $filter expression into a SQL where
// expression. Tokens are split on single spaces, so quoted literals that
// contain spaces are not kept together.
func TranslateFilter(expr string) (string, error) {
	if strings.Contains(expr, "(") {
		return "", unsupportedErr("Functions and groupings are not supported: " + expr)
	}
	expr = whitespaceRun.ReplaceAllString(expr, " ")
	tokens := strings.Split(expr, " ")
	for i, tok := range tokens {
		if op, ok := filterOps[strings.ToLower(tok)]; ok {
			tokens[i] = op
		}
	}
	return strings.Join(tokens, " "), nil
}
