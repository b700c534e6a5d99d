// Package schema builds the catalog → schema → table → column tree of a
// live DuckDB connection.
package schema

import (
	"sort"
	"strings"
)

// Tree is a recursive mapping of names to either nested Trees or leaf
// values. A populated tree has the shape catalog → schema → table → column
// → type.
type Tree map[string]any

// Column is a single column of a table fragment.
type Column struct {
	Name string
	Type string
}

// Fragment builds the single-table tree {catalog:{schema:{table:{col:type}}}}.
func Fragment(catalog, schemaName, table string, cols []Column) Tree {
	leaf := Tree{}
	for _, c := range cols {
		leaf[c.Name] = c.Type
	}
	return Tree{catalog: Tree{schemaName: Tree{table: leaf}}}
}

// Merge returns the recursive union of a and b. Where both hold a nested
// mapping under the same key the mappings are merged; otherwise the value
// from b wins. Neither input is modified.
func Merge(a, b Tree) Tree {
	out := clone(a)
	for k, bv := range b {
		bt, bIsTree := asTree(bv)
		if at, ok := asTree(out[k]); ok && bIsTree {
			out[k] = Merge(at, bt)
			continue
		}
		if bIsTree {
			out[k] = clone(bt)
			continue
		}
		out[k] = bv
	}
	return out
}

func clone(t Tree) Tree {
	out := make(Tree, len(t))
	for k, v := range t {
		if sub, ok := asTree(v); ok {
			out[k] = clone(sub)
			continue
		}
		out[k] = v
	}
	return out
}

func asTree(v any) (Tree, bool) {
	switch m := v.(type) {
	case Tree:
		return m, true
	case map[string]any:
		return Tree(m), true
	default:
		return nil, false
	}
}

// Table is a flattened view of one table in the tree.
type Table struct {
	Catalog string
	Schema  string
	Name    string
	Columns []Column
}

// QualifiedName returns catalog.schema.table.
func (t Table) QualifiedName() string {
	return t.Catalog + "." + t.Schema + "." + t.Name
}

// Tables flattens the tree into tables sorted by qualified name.
// Columns are sorted by name.
func (t Tree) Tables() []Table {
	var tables []Table
	for _, catalog := range sortedKeys(t) {
		schemas, _ := asTree(t[catalog])
		for _, schemaName := range sortedKeys(schemas) {
			tbls, _ := asTree(schemas[schemaName])
			for _, name := range sortedKeys(tbls) {
				cols, _ := asTree(tbls[name])
				table := Table{Catalog: catalog, Schema: schemaName, Name: name}
				for _, col := range sortedKeys(cols) {
					typ, _ := cols[col].(string)
					table.Columns = append(table.Columns, Column{Name: col, Type: typ})
				}
				tables = append(tables, table)
			}
		}
	}
	return tables
}

func sortedKeys(t Tree) []string {
	keys := make([]string, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// mutatingKeywords trigger a schema refresh after a successful execution.
var mutatingKeywords = []string{
	"alter",
	"checkpoint",
	"copy",
	"create",
	"delete",
	"drop",
	"import",
	"use",
}

// MutatesSchema reports whether text may have changed the catalog.
// This is a case-insensitive substring test; words such as "user" or
// "created_at" match too.
func MutatesSchema(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range mutatingKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
