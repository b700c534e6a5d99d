package commands

import (
	"fmt"
	"sort"
	"time"

	"github.com/leapstack-labs/meager/internal/cli/output"
	"github.com/leapstack-labs/meager/internal/history"
	"github.com/leapstack-labs/meager/internal/query"
	"github.com/leapstack-labs/meager/internal/schema"
)

// resultJSON is the machine-readable form of one statement result.
type resultJSON struct {
	Query     int        `json:"query"`
	Statement string     `json:"statement"`
	Columns   []string   `json:"columns,omitempty"`
	Rows      [][]string `json:"rows,omitempty"`
	Truncated bool       `json:"truncated,omitempty"`
	RowsOut   bool       `json:"returns_rows"`
}

// renderBatch writes every statement result in order, numbered from 1.
func renderBatch(r *output.Renderer, batch query.Batch, cached bool) error {
	if r.EffectiveMode() == output.ModeJSON {
		out := make([]resultJSON, len(batch.Results))
		for i, res := range batch.Results {
			out[i] = resultJSON{
				Query:     i + 1,
				Statement: res.Statement,
				Columns:   res.Columns,
				Rows:      res.Rows,
				Truncated: res.Truncated,
				RowsOut:   !res.Empty(),
			}
		}
		return r.JSON(out)
	}

	for i, res := range batch.Results {
		if res.Empty() {
			r.Header(3, fmt.Sprintf("query %d: No result (execution success)", i+1))
			continue
		}
		r.Header(3, fmt.Sprintf("query %d:", i+1))
		r.Table(res.Columns, res.Rows)
		if res.Truncated {
			r.Muted(fmt.Sprintf("(showing first %d rows)", len(res.Rows)))
		}
	}

	note := fmt.Sprintf("%d statement(s) in %s", len(batch.Results), batch.Duration.Round(time.Millisecond))
	if cached {
		note = fmt.Sprintf("%d statement(s) from cache", len(batch.Results))
	}
	r.Muted(note)
	return nil
}

// renderSchema writes the tables of a schema tree.
func renderSchema(r *output.Renderer, tree schema.Tree) error {
	tables := tree.Tables()
	if r.EffectiveMode() == output.ModeJSON {
		if tree == nil {
			tree = schema.Tree{}
		}
		return r.JSON(tree)
	}
	if len(tables) == 0 {
		r.Muted("(no tables)")
		return nil
	}

	rows := make([][]string, 0)
	for _, t := range tables {
		for _, c := range t.Columns {
			rows = append(rows, []string{t.QualifiedName(), c.Name, c.Type})
		}
		if len(t.Columns) == 0 {
			rows = append(rows, []string{t.QualifiedName(), "", ""})
		}
	}
	r.Table([]string{"table", "column", "type"}, rows)
	return nil
}

// renderHistory writes history entries, newest first.
func renderHistory(r *output.Renderer, entries []history.Entry) error {
	if r.EffectiveMode() == output.ModeJSON {
		if entries == nil {
			entries = []history.Entry{}
		}
		return r.JSON(entries)
	}
	if len(entries) == 0 {
		r.Muted("(no history)")
		return nil
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].ExecutedAt.After(entries[j].ExecutedAt)
	})
	rows := make([][]string, len(entries))
	for i, e := range entries {
		rows[i] = []string{
			e.ExecutedAt.Format("2006-01-02 15:04:05"),
			string(e.Status),
			firstLine(e.Query),
		}
	}
	r.Table([]string{"executed_at", "status", "query"}, rows)
	return nil
}

func firstLine(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			return s[:i] + " …"
		}
	}
	return s
}
