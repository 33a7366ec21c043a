package odata

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// TableDef is the body of a create_table request.
type TableDef struct {
	TableName string   `json:"table_name"`
	Columns   []string `json:"columns"`
}

// InsertSQL builds an insert of one object; columns are emitted in sorted
// order. Values are rendered without escaping.
func InsertSQL(schema, table string, data map[string]any) (string, error) {
	if len(data) == 0 {
		return "", invalidErr("Insert requires at least one column")
	}
	cols := sortedColumns(data)
	vals := make([]string, 0, len(cols))
	for _, col := range cols {
		v, err := RenderValue(data[col])
		if err != nil {
			return "", err
		}
		vals = append(vals, v)
	}
	return "insert into " + schema + "." + table + "(" + strings.Join(cols, ",") + ") values(" + strings.Join(vals, ",") + ")", nil
}

// UpdateSQL builds an update setting every key of data, followed by the
// compiled where clause if any.
func UpdateSQL(schema, table string, data map[string]any, clauses []Clause) (string, error) {
	if len(data) == 0 {
		return "", invalidErr("Update requires at least one column")
	}
	cols := sortedColumns(data)
	sets := make([]string, 0, len(cols))
	for _, col := range cols {
		v, err := RenderValue(data[col])
		if err != nil {
			return "", err
		}
		sets = append(sets, col+"="+v)
	}
	return "update " + schema + "." + table + " set " + strings.Join(sets, ",") + Join(clauses), nil
}

// CreateTableSQL builds a create table statement inside schema.
func CreateTableSQL(schema string, def TableDef) (string, error) {
	if def.TableName == "" {
		return "", invalidErr("create_table requires table_name")
	}
	if len(def.Columns) == 0 {
		return "", invalidErr("create_table requires columns: " + def.TableName)
	}
	return "create table " + schema + "." + def.TableName + " (" + strings.Join(def.Columns, ",") + ")", nil
}

// DropTableSQL builds a drop table statement inside schema.
func DropTableSQL(schema, table string) (string, error) {
	if table == "" {
		return "", invalidErr("drop_table requires tableName")
	}
	return "drop table if exists " + schema + "." + table, nil
}

// RenderValue formats a decoded JSON value as a SQL literal.
func RenderValue(v any) (string, error) {
	switch val := v.(type) {
	case nil:
		return "null", nil
	case string:
		return "'" + val + "'", nil
	case json.Number:
		return val.String(), nil
	case float64:
		return fmt.Sprint(val), nil
	case int, int64:
		return fmt.Sprint(val), nil
	case bool:
		if val {
			return "true", nil
		}
		return "false", nil
	default:
		return "", invalidErr(fmt.Sprintf("Unsupported value type %T", v))
	}
}

func sortedColumns(data map[string]any) []string {
	cols := make([]string, 0, len(data))
	for k := range data {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return cols
}
