// Package workbench provides the SQL editor page of the UI.
package workbench

import (
	"github.com/leapstack-labs/meager/internal/history"
	"github.com/leapstack-labs/meager/internal/query"
	"github.com/leapstack-labs/meager/internal/schema"
)

// Signals are the datastar signals shared between the page and the server.
type Signals struct {
	SQL           string `json:"sql"`
	EventType     string `json:"eventType"`
	EventID       string `json:"eventId"`
	DatabasePath  string `json:"databasePath"`
	ConfirmCreate bool   `json:"confirmCreate"`
	Example       string `json:"example"`
}

// NoticeLevel selects the styling of a notice.
type NoticeLevel string

// Notice levels.
const (
	NoticeInfo    NoticeLevel = "info"
	NoticeSuccess NoticeLevel = "success"
	NoticeError   NoticeLevel = "error"
)

// Notice is a one-line status message shown for a single render.
type Notice struct {
	Level NoticeLevel
	Text  string
}

// SidebarData holds everything the sidebar renders.
type SidebarData struct {
	DatabasePath string
	Extensions   []string
	Connected    bool

	// ConfirmPath is set when the entered file does not exist yet.
	ConfirmPath string

	Notices []Notice
	Tables  []schema.Table
	History []history.Entry
}

// MainData holds everything the editor column renders.
type MainData struct {
	Examples        []string
	SelectedExample string
	EditorText      string
	Connected       bool

	Notices []Notice

	// Results is set only when this render executed or reused a batch.
	Results *query.Batch
}

// PageData is the full page.
type PageData struct {
	Title   string
	IsDev   bool
	Signals Signals
	Sidebar SidebarData
	Main    MainData
}
