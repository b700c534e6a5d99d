package query

import (
	"strings"

	"github.com/leapstack-labs/meager/internal/lint"
)

// Split breaks a query text into statements on ';'.
// Fragments are trimmed and empty ones dropped; order is preserved.
// The split is lexical: a ';' inside a string literal or comment also splits.
func Split(text string) []string {
	parts := strings.Split(text, ";")
	stmts := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		stmts = append(stmts, p)
	}
	return stmts
}

// rowKeywords are leading keywords of statements that produce a result set.
var rowKeywords = map[string]bool{
	"select":    true,
	"with":      true,
	"from":      true,
	"values":    true,
	"table":     true,
	"pragma":    true,
	"show":      true,
	"describe":  true,
	"summarize": true,
	"explain":   true,
	"call":      true,
	"pivot":     true,
	"unpivot":   true,
}

// ReturnsRows reports whether a statement is expected to yield rows.
func ReturnsRows(stmt string) bool {
	word := strings.ToLower(leadingWord(stmt))
	if rowKeywords[word] {
		return true
	}
	return containsWord(strings.ToLower(stmt), "returning")
}

// leadingWord returns the first word, skipping comments and opening
// parentheses. It returns "" when no word precedes a lexical error.
func leadingWord(stmt string) string {
	l := lint.NewLexer(stmt)
	for {
		tok, err := l.NextToken()
		if err != nil {
			return ""
		}
		switch tok.Kind {
		case lint.EOF:
			return ""
		case lint.LParen:
			continue
		case lint.Keyword, lint.Ident:
			return tok.Lit
		default:
			return ""
		}
	}
}

func containsWord(s, word string) bool {
	for i := 0; ; {
		idx := strings.Index(s[i:], word)
		if idx < 0 {
			return false
		}
		start := i + idx
		end := start + len(word)
		if (start == 0 || !isWordByte(s[start-1])) && (end == len(s) || !isWordByte(s[end])) {
			return true
		}
		i = end
	}
}

func isWordByte(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= '0' && b <= '9')
}
