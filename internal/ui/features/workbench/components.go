package workbench

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/a-h/templ"

	"github.com/leapstack-labs/meager/internal/history"
	"github.com/leapstack-labs/meager/internal/query"
	"github.com/leapstack-labs/meager/internal/schema"
	"github.com/leapstack-labs/meager/internal/ui/resources"
)

const datastarScript = "https://cdn.jsdelivr.net/gh/starfederation/datastar@1.0.0/bundles/datastar.js"

// Element ids targeted by SSE patches.
const (
	appID     = "app"
	sidebarID = "sidebar"
	mainID    = "main"
	exampleID = "example"
)

// htmlWriter writes markup and keeps the first error.
type htmlWriter struct {
	w   io.Writer
	err error
}

func (h *htmlWriter) raw(s string) {
	if h.err == nil {
		_, h.err = io.WriteString(h.w, s)
	}
}

func (h *htmlWriter) rawf(format string, args ...any) {
	h.raw(fmt.Sprintf(format, args...))
}

func (h *htmlWriter) text(s string) {
	h.raw(templ.EscapeString(s))
}

// Page renders the complete document.
func Page(data PageData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		signals, err := json.Marshal(data.Signals)
		if err != nil {
			return err
		}

		h := &htmlWriter{w: w}
		h.raw("<!doctype html>\n<html lang=\"en\"><head><meta charset=\"utf-8\">")
		h.raw("<meta name=\"viewport\" content=\"width=device-width, initial-scale=1\">")
		h.rawf("<title>%s - meager</title>", templ.EscapeString(data.Title))
		h.rawf("<link rel=\"stylesheet\" href=\"%s\">", resources.StaticPath("app.css"))
		h.rawf("<script type=\"module\" src=\"%s\"></script>", datastarScript)
		h.raw("</head>")
		h.rawf("<body data-signals=\"%s\" data-init=\"@get('/updates')\">", templ.EscapeString(string(signals)))
		if data.IsDev {
			h.raw("<div data-init=\"@get('/reload', {retryMaxCount: 1000})\"></div>")
		}
		if h.err != nil {
			return h.err
		}
		if err := App(data.Sidebar, data.Main).Render(ctx, w); err != nil {
			return err
		}
		h.raw("</body></html>")
		return h.err
	})
}

// App renders the sidebar and the editor column.
func App(sidebar SidebarData, main MainData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &htmlWriter{w: w}
		h.rawf("<div id=\"%s\">", appID)
		if h.err != nil {
			return h.err
		}
		if err := Sidebar(sidebar).Render(ctx, w); err != nil {
			return err
		}
		if err := Main(main).Render(ctx, w); err != nil {
			return err
		}
		h.raw("</div>")
		return h.err
	})
}

// Sidebar renders the database form, schema tree and history list.
func Sidebar(data SidebarData) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		h := &htmlWriter{w: w}
		h.rawf("<aside id=\"%s\">", sidebarID)

		h.raw("<form class=\"database\" data-on:submit=\"@post('/api/database')\">")
		h.raw("<p>Input your local database file.</p>")
		exts := make([]string, len(data.Extensions))
		for i, e := range data.Extensions {
			exts[i] = "<b>" + templ.EscapeString(e) + "</b>"
		}
		h.rawf("<label class=\"hint\" for=\"database-path\">Note: file name should have one of these extensions: %s</label>", strings.Join(exts, ", "))
		h.rawf("<input id=\"database-path\" type=\"text\" data-bind=\"databasePath\" value=\"%s\">", templ.EscapeString(data.DatabasePath))
		h.raw("<div class=\"row\"><button type=\"submit\" class=\"primary\">Enter</button>")
		if data.Connected {
			h.raw("<button type=\"button\" data-on:click=\"@post('/api/database/close')\">Close</button>")
		}
		h.raw("</div></form>")

		if data.ConfirmPath != "" {
			h.raw("<div class=\"confirm\">")
			writeNotice(h, Notice{Level: NoticeInfo, Text: fmt.Sprintf("File '%s' does not exist. Do you want to create it?", data.ConfirmPath)})
			h.raw("<div class=\"row\">")
			h.raw("<button type=\"button\" data-on:click=\"$confirmCreate = true; @post('/api/database')\">Yes, create file</button>")
			h.raw("<button type=\"button\" data-on:click=\"$confirmCreate = false; $databasePath = ''; @post('/api/database')\">No, type another file</button>")
			h.raw("</div></div>")
		}

		for _, n := range data.Notices {
			writeNotice(h, n)
		}

		h.raw("<h2>table schema:</h2>")
		writeSchema(h, data.Tables)

		if len(data.History) > 0 {
			h.raw("<h2>history:</h2>")
			writeHistory(h, data.History)
		}

		h.raw("</aside>")
		return h.err
	})
}

// Main renders the example selector, the editor and the results.
func Main(data MainData) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		h := &htmlWriter{w: w}
		h.rawf("<main id=\"%s\">", mainID)
		h.raw("<h1>Meager SQL Editor</h1>")

		h.raw("<label class=\"hint\" for=\"example\">show example query</label>")
		writeExampleSelect(h, data.Examples, data.SelectedExample)

		h.raw("<p class=\"hint\">Run: Ctrl + Enter</p>")
		h.raw("<textarea id=\"editor\" class=\"editor\" spellcheck=\"false\" data-bind=\"sql\"")
		h.raw(" data-on:keydown=\"if (evt.ctrlKey &amp;&amp; evt.key === 'Enter') { $eventType = 'submit'; $eventId = crypto.randomUUID(); @post('/api/editor/event') }\">")
		h.text(data.EditorText)
		h.raw("</textarea>")
		h.raw("<div class=\"row\">")
		h.raw("<button type=\"button\" data-on:click=\"$eventType = 'lint-exec'; $eventId = crypto.randomUUID(); @post('/api/editor/event')\">Linter</button>")
		h.raw("<button type=\"button\" class=\"primary\" data-on:click=\"$eventType = 'submit'; $eventId = crypto.randomUUID(); @post('/api/editor/event')\">Run</button>")
		h.raw("</div>")

		if !data.Connected {
			writeNotice(h, Notice{Level: NoticeInfo, Text: "Select a database file in the sidebar to run queries."})
		}
		for _, n := range data.Notices {
			writeNotice(h, n)
		}

		if data.Results != nil {
			writeResults(h, *data.Results)
		}

		h.raw("</main>")
		return h.err
	})
}

// ExampleSelect renders the example query selector on its own, for
// patching after the catalog was reloaded.
func ExampleSelect(names []string, selected string) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		h := &htmlWriter{w: w}
		writeExampleSelect(h, names, selected)
		return h.err
	})
}

func writeExampleSelect(h *htmlWriter, names []string, selected string) {
	h.rawf("<select id=\"%s\" data-bind=\"example\" data-on:change=\"@post('/api/examples/select')\">", exampleID)
	for _, name := range names {
		attr := ""
		if name == selected {
			attr = " selected"
		}
		h.rawf("<option value=\"%s\"%s>%s</option>", templ.EscapeString(name), attr, templ.EscapeString(name))
	}
	h.raw("</select>")
}

func writeNotice(h *htmlWriter, n Notice) {
	h.rawf("<div class=\"notice notice-%s\">", n.Level)
	h.text(n.Text)
	h.raw("</div>")
}

// writeSchema renders tables as a catalog > schema > table > column tree.
func writeSchema(h *htmlWriter, tables []schema.Table) {
	if len(tables) == 0 {
		h.raw("<p class=\"hint\">(no tables)</p>")
		return
	}

	h.raw("<div class=\"schema\"><ul>")
	var catalog, schemaName string
	for i, t := range tables {
		if i == 0 || t.Catalog != catalog {
			if i > 0 {
				h.raw("</ul></li></ul></li>")
			}
			catalog, schemaName = t.Catalog, t.Schema
			h.raw("<li>")
			h.text(catalog)
			h.raw("<ul><li>")
			h.text(schemaName)
			h.raw("<ul>")
		} else if t.Schema != schemaName {
			schemaName = t.Schema
			h.raw("</ul></li><li>")
			h.text(schemaName)
			h.raw("<ul>")
		}

		h.raw("<li><details><summary>")
		h.text(t.Name)
		h.raw("</summary><ul>")
		for _, c := range t.Columns {
			h.raw("<li>")
			h.text(c.Name)
			h.raw(" <span class=\"type\">")
			h.text(c.Type)
			h.raw("</span></li>")
		}
		h.raw("</ul></details></li>")
	}
	h.raw("</ul></li></ul></li></ul></div>")
}

func writeHistory(h *htmlWriter, entries []history.Entry) {
	h.raw("<ul class=\"history\">")
	for _, e := range entries {
		h.rawf("<li class=\"status-%s\"><button type=\"button\" title=\"%s\" data-on:click=\"@post('/api/history/%s/load')\">",
			templ.EscapeString(string(e.Status)),
			templ.EscapeString(e.ExecutedAt.Format("2006-01-02 15:04:05")+" "+string(e.Status)),
			templ.EscapeString(e.ID))
		h.text(firstLine(e.Query))
		h.raw("</button></li>")
	}
	h.raw("</ul>")
}

func writeResults(h *htmlWriter, batch query.Batch) {
	h.raw("<section id=\"results\">")
	for i, res := range batch.Results {
		n := strconv.Itoa(i + 1)
		if res.Empty() {
			h.rawf("<h3>query %s: No result (execution success)</h3>", n)
			continue
		}
		h.rawf("<h3>query %s:</h3>", n)
		h.raw("<table class=\"result\"><thead><tr>")
		for _, c := range res.Columns {
			h.raw("<th>")
			h.text(c)
			h.raw("</th>")
		}
		h.raw("</tr></thead><tbody>")
		for _, row := range res.Rows {
			h.raw("<tr>")
			for _, v := range row {
				h.raw("<td>")
				h.text(v)
				h.raw("</td>")
			}
			h.raw("</tr>")
		}
		h.raw("</tbody></table>")
		if res.Truncated {
			h.rawf("<p class=\"hint\">showing first %d rows</p>", len(res.Rows))
		}
	}
	h.raw("</section>")
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " …"
	}
	return s
}
