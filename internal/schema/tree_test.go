package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMerge(t *testing.T) {
	tests := []struct {
		name string
		a, b Tree
		want Tree
	}{
		{
			name: "sibling tables under shared schema",
			a:    Tree{"c": Tree{"s": Tree{"t1": Tree{"a": "INT"}}}},
			b:    Tree{"c": Tree{"s": Tree{"t2": Tree{"b": "TEXT"}}}},
			want: Tree{"c": Tree{"s": Tree{"t1": Tree{"a": "INT"}, "t2": Tree{"b": "TEXT"}}}},
		},
		{
			name: "leaf collision takes later value",
			a:    Tree{"c": Tree{"s": Tree{"t": Tree{"a": "INT"}}}},
			b:    Tree{"c": Tree{"s": Tree{"t": Tree{"a": "BIGINT"}}}},
			want: Tree{"c": Tree{"s": Tree{"t": Tree{"a": "BIGINT"}}}},
		},
		{
			name: "plain maps merge like trees",
			a:    Tree{"c": map[string]any{"s": map[string]any{"t": map[string]any{"a": "INT"}}}},
			b:    Tree{"c": Tree{"s2": Tree{}}},
			want: Tree{"c": Tree{"s": Tree{"t": Tree{"a": "INT"}}, "s2": Tree{}}},
		},
		{
			name: "empty inputs",
			a:    Tree{},
			b:    nil,
			want: Tree{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Merge(tt.a, tt.b))
		})
	}
}

func TestMerge_DoesNotMutateInputs(t *testing.T) {
	a := Tree{"c": Tree{"s": Tree{"t1": Tree{"a": "INT"}}}}
	b := Tree{"c": Tree{"s": Tree{"t2": Tree{"b": "TEXT"}}}}

	merged := Merge(a, b)
	merged["c"].(Tree)["s"].(Tree)["t3"] = Tree{}

	assert.Equal(t, Tree{"c": Tree{"s": Tree{"t1": Tree{"a": "INT"}}}}, a)
	assert.Equal(t, Tree{"c": Tree{"s": Tree{"t2": Tree{"b": "TEXT"}}}}, b)
}

func TestFragment(t *testing.T) {
	got := Fragment("memory", "main", "users", []Column{{"id", "INTEGER"}, {"name", "VARCHAR"}})
	assert.Equal(t, Tree{"memory": Tree{"main": Tree{"users": Tree{"id": "INTEGER", "name": "VARCHAR"}}}}, got)
}

func TestTree_Tables(t *testing.T) {
	tree := Merge(
		Fragment("db", "main", "b", []Column{{"y", "INT"}, {"x", "TEXT"}}),
		Fragment("db", "main", "a", []Column{{"id", "INT"}}),
	)

	tables := tree.Tables()
	if assert.Len(t, tables, 2) {
		assert.Equal(t, "db.main.a", tables[0].QualifiedName())
		assert.Equal(t, "db.main.b", tables[1].QualifiedName())
		assert.Equal(t, []Column{{"x", "TEXT"}, {"y", "INT"}}, tables[1].Columns)
	}
	assert.Len(t, tree, 1)
}

func TestMutatesSchema(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"CREATE TABLE t (a INT)", true},
		{"drop view v", true},
		{"Use other_db", true},
		{"COPY t TO 'out.csv'", true},
		{"ALTER TABLE t ADD COLUMN b INT", true},
		{"DELETE FROM t", true},
		{"IMPORT DATABASE 'dir'", true},
		{"CHECKPOINT", true},
		{"SELECT 1+1", false},
		{"INSERT INTO t VALUES (1)", false},
		// substring matches are accepted
		{"SELECT created_at FROM t", true},
		{"SELECT * FROM users", true},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, MutatesSchema(tt.text))
		})
	}
}
