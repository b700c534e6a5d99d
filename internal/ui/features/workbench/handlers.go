package workbench

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/sessions"
	"github.com/starfederation/datastar-go/datastar"

	"github.com/leapstack-labs/meager/internal/conn"
	"github.com/leapstack-labs/meager/internal/editor"
	"github.com/leapstack-labs/meager/internal/examples"
	"github.com/leapstack-labs/meager/internal/history"
	"github.com/leapstack-labs/meager/internal/schema"
	"github.com/leapstack-labs/meager/internal/session"
	"github.com/leapstack-labs/meager/internal/ui/notifier"
)

const (
	pageTitle    = "SQL Editor"
	cookieName   = "meager"
	sessionKey   = "session_id"
	historyLimit = 20
)

// Deps are the collaborators of the workbench handlers.
type Deps struct {
	Registry     *session.Registry
	Controller   *editor.Controller
	History      *history.Store // optional
	Examples     *examples.Source
	SessionStore sessions.Store
	Notifier     *notifier.Notifier

	// DefaultDatabase prefills the database form of new sessions.
	DefaultDatabase string
	IsDev           bool
	Logger          *slog.Logger
}

// Handlers provides HTTP handlers for the workbench page.
type Handlers struct {
	registry        *session.Registry
	controller      *editor.Controller
	history         *history.Store
	examples        *examples.Source
	sessionStore    sessions.Store
	notifier        *notifier.Notifier
	defaultDatabase string
	isDev           bool
	logger          *slog.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(deps Deps) *Handlers {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	src := deps.Examples
	if src == nil {
		src, _ = examples.NewSource("", logger)
	}
	return &Handlers{
		registry:        deps.Registry,
		controller:      deps.Controller,
		history:         deps.History,
		examples:        src,
		sessionStore:    deps.SessionStore,
		notifier:        deps.Notifier,
		defaultDatabase: deps.DefaultDatabase,
		isDev:           deps.IsDev,
		logger:          logger,
	}
}

// session returns the caller's session, issuing a new id cookie on first
// visit. It must run before the response is written.
func (h *Handlers) session(w http.ResponseWriter, r *http.Request) (*session.Session, error) {
	// A cookie that fails to decode yields a fresh session.
	cs, _ := h.sessionStore.Get(r, cookieName)
	id, _ := cs.Values[sessionKey].(string)
	if id == "" {
		id = uuid.NewString()
		cs.Values[sessionKey] = id
		if err := cs.Save(r, w); err != nil {
			return nil, fmt.Errorf("failed to save session: %w", err)
		}
	}
	return h.registry.Get(id), nil
}

// HomePage renders the workbench page with full content.
func (h *Handlers) HomePage(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(w, r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	ctx := r.Context()
	s.Lock()
	defer s.Unlock()
	defer s.ResetLatches()
	s.Touch()

	// The connection is opened lazily after a reconfigure; the first
	// render against it rebuilds the tree.
	var notices []Notice
	if s.DatabasePath() != "" && s.Schema == nil {
		if err := h.controller.RefreshSchema(ctx, s); err != nil {
			notices = append(notices, Notice{Level: NoticeError, Text: err.Error()})
		}
	}

	names := h.examples.Catalog().Names()
	selected := ""
	if len(names) > 0 {
		selected = names[0]
	}

	path := s.DatabasePath()
	if path == "" {
		path = h.defaultDatabase
	}

	data := PageData{
		Title: pageTitle,
		IsDev: h.isDev,
		Signals: Signals{
			SQL:          s.EditorText,
			DatabasePath: path,
			Example:      selected,
		},
		Sidebar: h.sidebarData(ctx, s, path, notices),
		Main:    h.mainData(s, selected, nil),
	}

	if err := Page(data).Render(ctx, w); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// Updates is the long-lived SSE endpoint of the page. It pushes the
// example selector after the catalog was reloaded.
func (h *Handlers) Updates(w http.ResponseWriter, r *http.Request) {
	sse := datastar.NewSSE(w, r)

	updates := h.notifier.Subscribe(notifier.TopicExamples, notifier.TopicShutdown)
	defer h.notifier.Unsubscribe(updates)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case topic := <-updates:
			if topic == notifier.TopicShutdown {
				return
			}
			names := h.examples.Catalog().Names()
			if err := sse.PatchElementTempl(ExampleSelect(names, "")); err != nil {
				_ = sse.ConsoleError(err)
			}
		}
	}
}

// SetDatabase validates the entered path and connects the session to it.
func (h *Handlers) SetDatabase(w http.ResponseWriter, r *http.Request) {
	// Read signals BEFORE creating SSE (SSE consumes the request body)
	var signals Signals
	if err := datastar.ReadSignals(r, &signals); err != nil {
		sse := datastar.NewSSE(w, r)
		_ = sse.ConsoleError(fmt.Errorf("failed to read signals: %w", err))
		return
	}
	s, err := h.session(w, r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	sse := datastar.NewSSE(w, r)

	ctx := r.Context()
	s.Lock()
	defer s.Unlock()
	defer s.ResetLatches()
	s.Touch()

	s.CreateConfirmed = signals.ConfirmCreate
	path := strings.TrimSpace(signals.DatabasePath)

	var (
		notices     []Notice
		confirmPath string
	)
	switch conn.Resolve(path, s.CreateConfirmed) {
	case conn.PathEmpty:
		notices = append(notices, Notice{Level: NoticeInfo, Text: "Input your local database file."})
	case conn.PathInvalid:
		notices = append(notices, Notice{Level: NoticeError, Text: "Invalid file name. Please provide a valid file name with the correct extension."})
	case conn.PathNeedsConfirmation:
		confirmPath = path
	case conn.PathReady:
		msgs, err := s.Conn().Switch(ctx, path)
		for _, msg := range msgs {
			notices = append(notices, Notice{Level: NoticeInfo, Text: msg})
		}
		if err != nil {
			notices = append(notices, Notice{Level: NoticeError, Text: err.Error()})
			break
		}
		if err := h.controller.RefreshSchema(ctx, s); err != nil {
			notices = append(notices, Notice{Level: NoticeError, Text: err.Error()})
		}
	}

	sidebar := h.sidebarData(ctx, s, path, notices)
	sidebar.ConfirmPath = confirmPath
	h.patch(sse, sidebar, h.mainData(s, signals.Example, nil))
	_ = sse.MarshalAndPatchSignals(map[string]any{
		"databasePath":  path,
		"confirmCreate": false,
	})
}

// CloseDatabase disconnects the session.
func (h *Handlers) CloseDatabase(w http.ResponseWriter, r *http.Request) {
	var signals Signals
	_ = datastar.ReadSignals(r, &signals)
	s, err := h.session(w, r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	sse := datastar.NewSSE(w, r)

	ctx := r.Context()
	s.Lock()
	defer s.Unlock()
	defer s.ResetLatches()
	s.Touch()

	msg, changed := s.Conn().Reconfigure("")
	if !changed {
		msg = s.Conn().Close()
	}

	h.patch(sse,
		h.sidebarData(ctx, s, "", []Notice{{Level: NoticeInfo, Text: msg}}),
		h.mainData(s, signals.Example, nil),
	)
	_ = sse.MarshalAndPatchSignals(map[string]any{"databasePath": ""})
}

// EditorEvent runs one render pass for an editor event.
func (h *Handlers) EditorEvent(w http.ResponseWriter, r *http.Request) {
	var signals Signals
	if err := datastar.ReadSignals(r, &signals); err != nil {
		sse := datastar.NewSSE(w, r)
		_ = sse.ConsoleError(fmt.Errorf("failed to read signals: %w", err))
		return
	}
	s, err := h.session(w, r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	sse := datastar.NewSSE(w, r)

	ctx := r.Context()
	s.Lock()
	defer s.Unlock()

	out := h.controller.Dispatch(ctx, s, editor.Event{
		Type: editor.EventType(signals.EventType),
		Text: signals.SQL,
		ID:   signals.EventID,
	})

	main := h.mainData(s, signals.Example, &out)
	main.Notices = outcomeNotices(out)

	h.patch(sse, h.sidebarData(ctx, s, s.DatabasePath(), nil), main)
	// The editor keeps its own buffer unless the text is pushed back.
	_ = sse.MarshalAndPatchSignals(map[string]any{
		"sql":       s.EditorText,
		"eventType": "",
	})
}

// SelectExample loads an example query into the editor.
func (h *Handlers) SelectExample(w http.ResponseWriter, r *http.Request) {
	var signals Signals
	if err := datastar.ReadSignals(r, &signals); err != nil {
		sse := datastar.NewSSE(w, r)
		_ = sse.ConsoleError(fmt.Errorf("failed to read signals: %w", err))
		return
	}
	s, err := h.session(w, r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	sse := datastar.NewSSE(w, r)

	text, ok := h.examples.Catalog().Lookup(signals.Example)
	if !ok {
		_ = sse.ConsoleError(fmt.Errorf("unknown example %q", signals.Example))
		return
	}

	s.Lock()
	defer s.Unlock()
	defer s.ResetLatches()
	s.Touch()
	s.EditorText = text

	if err := sse.PatchElementTempl(Main(h.mainData(s, signals.Example, nil))); err != nil {
		_ = sse.ConsoleError(err)
	}
	_ = sse.MarshalAndPatchSignals(map[string]any{"sql": text})
}

// LoadHistory loads a recorded query of the caller's session into the editor.
func (h *Handlers) LoadHistory(w http.ResponseWriter, r *http.Request) {
	var signals Signals
	_ = datastar.ReadSignals(r, &signals)
	s, err := h.session(w, r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	sse := datastar.NewSSE(w, r)

	if h.history == nil {
		_ = sse.ConsoleError(errors.New("history is disabled"))
		return
	}

	id := chi.URLParam(r, "id")
	entry, err := h.history.Get(r.Context(), id)
	if err == nil && entry.SessionID != s.ID {
		err = history.ErrNotFound
	}
	if err != nil {
		_ = sse.ConsoleError(fmt.Errorf("failed to load %s: %w", id, err))
		return
	}

	s.Lock()
	defer s.Unlock()
	defer s.ResetLatches()
	s.Touch()
	s.EditorText = entry.Query

	if err := sse.PatchElementTempl(Main(h.mainData(s, signals.Example, nil))); err != nil {
		_ = sse.ConsoleError(err)
	}
	_ = sse.MarshalAndPatchSignals(map[string]any{"sql": entry.Query})
}

// Schema returns the session's schema tree as JSON.
func (h *Handlers) Schema(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(w, r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	s.Lock()
	tree := s.Schema
	s.Unlock()
	if tree == nil {
		tree = schema.Tree{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(tree); err != nil {
		h.logger.Warn("failed to write schema", "error", err)
	}
}

// patch sends the sidebar and the editor column.
func (h *Handlers) patch(sse *datastar.ServerSentEventGenerator, sidebar SidebarData, main MainData) {
	if err := sse.PatchElementTempl(Sidebar(sidebar)); err != nil {
		_ = sse.ConsoleError(err)
	}
	if err := sse.PatchElementTempl(Main(main)); err != nil {
		_ = sse.ConsoleError(err)
	}
}

func (h *Handlers) sidebarData(ctx context.Context, s *session.Session, path string, notices []Notice) SidebarData {
	data := SidebarData{
		DatabasePath: path,
		Extensions:   conn.Extensions,
		Connected:    s.DatabasePath() != "",
		Notices:      notices,
		Tables:       s.Schema.Tables(),
	}
	if h.history != nil {
		entries, err := h.history.ListBySession(ctx, s.ID, historyLimit)
		if err != nil {
			h.logger.Warn("failed to list history", "session", s.ID, "error", err)
		}
		data.History = entries
	}
	return data
}

func (h *Handlers) mainData(s *session.Session, selected string, out *editor.Outcome) MainData {
	data := MainData{
		Examples:        h.examples.Catalog().Names(),
		SelectedExample: selected,
		EditorText:      s.EditorText,
		Connected:       s.DatabasePath() != "",
	}
	if out != nil && out.ExecErr == nil {
		data.Results = out.Batch
	}
	return data
}

// outcomeNotices describes a render pass the way the editor page reports it.
func outcomeNotices(out editor.Outcome) []Notice {
	var notices []Notice
	if out.Linted {
		notices = append(notices, Notice{Level: NoticeSuccess, Text: "linter executed!"})
	}
	if out.LintErr != nil {
		notices = append(notices, Notice{Level: NoticeError, Text: fmt.Sprintf("lint fix error: %v", out.LintErr)})
	}
	if out.CacheHit {
		notices = append(notices, Notice{Level: NoticeInfo, Text: "query cache"})
	}
	if out.Executed {
		notices = append(notices, Notice{Level: NoticeInfo, Text: "query executed"})
	}
	if out.ExecErr != nil {
		notices = append(notices, Notice{Level: NoticeError, Text: out.ExecErr.Error()})
	}
	if out.SchemaErr != nil {
		notices = append(notices, Notice{Level: NoticeError, Text: out.SchemaErr.Error()})
	}
	return notices
}
