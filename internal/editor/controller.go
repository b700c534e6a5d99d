// Package editor turns editor widget events into session state changes and
// query executions.
package editor

import (
	"context"
	"log/slog"

	"github.com/leapstack-labs/meager/internal/history"
	"github.com/leapstack-labs/meager/internal/lint"
	"github.com/leapstack-labs/meager/internal/query"
	"github.com/leapstack-labs/meager/internal/schema"
	"github.com/leapstack-labs/meager/internal/session"
)

// EventType is the kind of action the editor widget reports.
type EventType string

// Event types acted on by the controller.
const (
	EventSubmit EventType = "submit"
	EventLint   EventType = "lint-exec"
)

// Event is the payload emitted by the editor widget. The widget may
// deliver the same payload on every render; ID tells new events apart.
type Event struct {
	Type EventType `json:"type"`
	Text string    `json:"text"`
	ID   string    `json:"id"`
}

// Formatter fixes SQL text for a dialect.
type Formatter interface {
	Fix(text, dialect string) (string, error)
}

// Recorder stores executed queries.
type Recorder interface {
	Record(ctx context.Context, e history.Entry) error
}

// Outcome describes what a render pass did.
type Outcome struct {
	Linted    bool
	Submitted bool
	Ignored   bool

	// Executed is set when the database ran the batch; CacheHit when the
	// memoized results were reused instead.
	Executed bool
	CacheHit bool
	Batch    *query.Batch

	LintErr   error
	ExecErr   error
	SchemaErr error
}

// Config holds the controller's collaborators.
type Config struct {
	Formatter Formatter
	Dialect   string
	Executor  *query.Executor
	Inspector *schema.Inspector
	Recorder  Recorder // optional
	Logger    *slog.Logger
}

// Controller runs render passes for sessions.
type Controller struct {
	formatter Formatter
	dialect   string
	executor  *query.Executor
	inspector *schema.Inspector
	recorder  Recorder
	logger    *slog.Logger
}

// New creates a controller. Nil collaborators get working defaults.
func New(cfg Config) *Controller {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Formatter == nil {
		cfg.Formatter = lint.NewFormatter(lint.Options{})
	}
	if cfg.Dialect == "" {
		cfg.Dialect = lint.DefaultDialect
	}
	if cfg.Executor == nil {
		cfg.Executor = query.NewExecutor(0, cfg.Logger)
	}
	if cfg.Inspector == nil {
		cfg.Inspector = schema.NewInspector(cfg.Logger)
	}
	return &Controller{
		formatter: cfg.Formatter,
		dialect:   cfg.Dialect,
		executor:  cfg.Executor,
		inspector: cfg.Inspector,
		recorder:  cfg.Recorder,
		logger:    cfg.Logger,
	}
}

// Dispatch runs one render pass for ev. The caller holds the session lock.
//
// A submit stores the text and requests a re-render; the re-render sees
// the same payload (already consumed) plus the raised submit latch and
// executes. Both passes happen inside this call. Latches are cleared on
// return.
func (c *Controller) Dispatch(ctx context.Context, s *session.Session, ev Event) Outcome {
	defer s.ResetLatches()

	c.logger.Debug("editor event",
		"session", s.ID,
		"type", ev.Type,
		"id", ev.ID,
		"payload_id", s.EditorPayloadID,
		"lint_done", s.LintDone,
		"submit_done", s.SubmitDone,
	)

	var out Outcome
	switch {
	case c.accepts(s, ev, EventLint):
		c.lint(s, ev, &out)
	case c.accepts(s, ev, EventSubmit):
		s.EditorText = ev.Text
		s.EditorPayloadID = ev.ID
		s.SubmitDone = true
		out.Submitted = true
	default:
		out.Ignored = ev.ID != "" || ev.Type != ""
	}

	if s.SubmitDone {
		c.execute(ctx, s, &out)
	}

	s.Touch()
	c.logger.Debug("render pass done", "session", s.ID)
	return out
}

// accepts applies the event guard for one path.
func (c *Controller) accepts(s *session.Session, ev Event, typ EventType) bool {
	if ev.Type != typ || ev.Text == "" || ev.ID == s.EditorPayloadID {
		return false
	}
	if typ == EventLint {
		return !s.LintDone
	}
	return !s.SubmitDone
}

func (c *Controller) lint(s *session.Session, ev Event, out *Outcome) {
	s.LintDone = true
	s.EditorPayloadID = ev.ID
	out.Linted = true

	cleaned := lint.StripComments(ev.Text)
	fixed, err := c.formatter.Fix(cleaned, c.dialect)
	if err != nil {
		c.logger.Warn("lint failed, keeping cleaned text", "session", s.ID, "error", err)
		s.EditorText = cleaned
		out.LintErr = err
		return
	}
	s.EditorText = fixed
	c.logger.Info("linter executed", "session", s.ID)
}

func (c *Controller) execute(ctx context.Context, s *session.Session, out *Outcome) {
	text := s.EditorText
	entry := history.Entry{
		SessionID:    s.ID,
		DatabasePath: s.DatabasePath(),
		Query:        text,
	}

	if batch, ok := s.Memoized(text); ok {
		c.logger.Info("query cache", "session", s.ID)
		out.CacheHit = true
		out.Batch = &batch
		entry.Status = history.StatusCacheHit
		entry.Statements = len(batch.Results)
		c.record(ctx, entry)
		return
	}

	db, err := s.Conn().Current(ctx)
	if err != nil {
		out.ExecErr = err
		return
	}

	batch, err := c.executor.Execute(ctx, db, text)
	if err != nil {
		c.logger.Error("query failed", "session", s.ID, "error", err)
		out.ExecErr = err
		entry.Status = history.StatusFailed
		entry.Error = err.Error()
		c.record(ctx, entry)
		return
	}
	c.logger.Info("query executed", "session", s.ID, "statements", len(batch.Results), "duration", batch.Duration)
	out.Executed = true
	out.Batch = &batch

	if schema.MutatesSchema(text) {
		if err := c.refreshSchema(ctx, s, db); err != nil {
			out.SchemaErr = err
		}
	}

	s.Remember(text, batch)

	entry.Status = history.StatusExecuted
	entry.Statements = len(batch.Results)
	entry.Duration = batch.Duration
	c.record(ctx, entry)
}

// RefreshSchema reloads the session's schema tree from its connection.
// On failure the previous tree is kept.
func (c *Controller) RefreshSchema(ctx context.Context, s *session.Session) error {
	db, err := s.Conn().Current(ctx)
	if err != nil {
		return err
	}
	return c.refreshSchema(ctx, s, db)
}

func (c *Controller) refreshSchema(ctx context.Context, s *session.Session, db schema.Querier) error {
	tree, err := c.inspector.Refresh(ctx, db)
	if err != nil {
		c.logger.Warn("schema refresh failed, keeping previous tree", "session", s.ID, "error", err)
		return err
	}
	s.Schema = tree
	return nil
}

func (c *Controller) record(ctx context.Context, e history.Entry) {
	if c.recorder == nil {
		return
	}
	if err := c.recorder.Record(ctx, e); err != nil {
		c.logger.Warn("failed to record history", "error", err)
	}
}
