package lint

import (
	"regexp"
	"strings"
)

var (
	lineComment  = regexp.MustCompile(`(?m)--.*$`)
	blockComment = regexp.MustCompile(`/\*[\s\S]*?\*/`)
)

// StripComments removes -- line comments and /* */ block comments, trims
// every line and drops blank lines. Comment markers inside string
// literals are removed as well.
func StripComments(text string) string {
	text = lineComment.ReplaceAllString(text, "")
	text = blockComment.ReplaceAllString(text, "")

	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}
