package conn

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// Extensions lists the accepted database file extensions.
var Extensions = []string{".duckdb", ".ddb", ".db"}

// ErrInvalidExtension is returned for paths outside Extensions.
var ErrInvalidExtension = errors.New("invalid database file extension")

// PathStatus classifies a user-entered database path.
type PathStatus int

const (
	// PathEmpty means no path was entered.
	PathEmpty PathStatus = iota
	// PathInvalid means the extension is not accepted.
	PathInvalid
	// PathNeedsConfirmation means the file does not exist and creation was not confirmed.
	PathNeedsConfirmation
	// PathReady means the path may be opened.
	PathReady
)

func (s PathStatus) String() string {
	switch s {
	case PathEmpty:
		return "empty"
	case PathInvalid:
		return "invalid"
	case PathNeedsConfirmation:
		return "needs-confirmation"
	case PathReady:
		return "ready"
	default:
		return fmt.Sprintf("PathStatus(%d)", int(s))
	}
}

// ValidatePath checks the extension of path.
func ValidatePath(path string) error {
	ext := strings.ToLower(filepath.Ext(path))
	if !slices.Contains(Extensions, ext) {
		return fmt.Errorf("%w: %q (expected one of %s)", ErrInvalidExtension, path, strings.Join(Extensions, ", "))
	}
	return nil
}

// Exists reports whether path names an existing file.
func Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// Resolve decides whether path can be opened. A missing file is only
// ready once createConfirmed is set.
func Resolve(path string, createConfirmed bool) PathStatus {
	path = strings.TrimSpace(path)
	if path == "" {
		return PathEmpty
	}
	if ValidatePath(path) != nil {
		return PathInvalid
	}
	if Exists(path) || createConfirmed {
		return PathReady
	}
	return PathNeedsConfirmation
}
