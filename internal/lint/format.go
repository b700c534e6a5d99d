// Package lint cleans and formats SQL text for the editor's lint action.
package lint

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// DefaultDialect is the dialect tag used by the workbench.
const DefaultDialect = "duckdb"

// Dialects lists the accepted dialect tags.
var Dialects = []string{"duckdb", "ansi"}

// Keyword case options.
const (
	CaseUpper    = "upper"
	CaseLower    = "lower"
	CasePreserve = "preserve"
)

// FormatterError is returned when text cannot be formatted. The caller
// keeps the unformatted text.
type FormatterError struct {
	Dialect string
	Pos     *Position
	Msg     string
	Err     error
}

func (e *FormatterError) Error() string {
	if e.Pos != nil {
		return fmt.Sprintf("lint failed (%s) at %s: %s", e.Dialect, e.Pos, e.Msg)
	}
	return fmt.Sprintf("lint failed (%s): %s", e.Dialect, e.Msg)
}

func (e *FormatterError) Unwrap() error {
	return e.Err
}

// Options configures a Formatter.
type Options struct {
	KeywordCase string
}

// Formatter rewrites SQL into a canonical layout.
type Formatter struct {
	opts Options
}

// NewFormatter creates a formatter. An empty KeywordCase selects CaseUpper.
func NewFormatter(opts Options) *Formatter {
	if opts.KeywordCase == "" {
		opts.KeywordCase = CaseUpper
	}
	return &Formatter{opts: opts}
}

// Fix formats text for dialect. Statements are terminated with ';', major
// clauses start on their own line and keywords are cased.
func (f *Formatter) Fix(text, dialect string) (string, error) {
	if !slices.Contains(Dialects, dialect) {
		return "", &FormatterError{Dialect: dialect, Msg: fmt.Sprintf("unsupported dialect %q", dialect)}
	}
	switch f.opts.KeywordCase {
	case CaseUpper, CaseLower, CasePreserve:
	default:
		return "", &FormatterError{Dialect: dialect, Msg: fmt.Sprintf("unknown keyword case %q", f.opts.KeywordCase)}
	}

	tokens, err := Tokenize(text)
	if err != nil {
		var se *SyntaxError
		if errors.As(err, &se) {
			pos := se.Pos
			return "", &FormatterError{Dialect: dialect, Pos: &pos, Msg: se.Msg, Err: err}
		}
		return "", &FormatterError{Dialect: dialect, Msg: err.Error(), Err: err}
	}

	var out strings.Builder
	for _, stmt := range splitStatements(tokens) {
		if err := checkBalance(stmt); err != nil {
			return "", &FormatterError{Dialect: dialect, Pos: &err.Pos, Msg: err.Msg, Err: err}
		}
		out.WriteString(f.printStatement(stmt))
		out.WriteString(";\n")
	}
	return out.String(), nil
}

// splitStatements groups tokens on ';', dropping empty statements.
func splitStatements(tokens []Token) [][]Token {
	var stmts [][]Token
	var cur []Token
	for _, tok := range tokens {
		if tok.Kind == Semicolon {
			if len(cur) > 0 {
				stmts = append(stmts, cur)
			}
			cur = nil
			continue
		}
		cur = append(cur, tok)
	}
	if len(cur) > 0 {
		stmts = append(stmts, cur)
	}
	return stmts
}

var closers = map[Kind]Kind{RParen: LParen, RBracket: LBracket, RBrace: LBrace}

func checkBalance(stmt []Token) *SyntaxError {
	var stack []Token
	for _, tok := range stmt {
		switch tok.Kind {
		case LParen, LBracket, LBrace:
			stack = append(stack, tok)
		case RParen, RBracket, RBrace:
			if len(stack) == 0 || stack[len(stack)-1].Kind != closers[tok.Kind] {
				return &SyntaxError{Pos: tok.Pos, Msg: fmt.Sprintf("unexpected %q", tok.Lit)}
			}
			stack = stack[:len(stack)-1]
		}
	}
	if len(stack) > 0 {
		open := stack[len(stack)-1]
		return &SyntaxError{Pos: open.Pos, Msg: fmt.Sprintf("unclosed %q", open.Lit)}
	}
	return nil
}

// clauseKeywords start a new line at parenthesis depth zero.
var clauseKeywords = map[string]bool{
	"select": true, "from": true, "where": true, "group": true, "order": true,
	"having": true, "qualify": true, "window": true, "limit": true, "offset": true,
	"union": true, "intersect": true, "except": true, "values": true, "set": true,
	"returning": true, "join": true,
}

// joinModifiers may precede JOIN; the line breaks before the first of them.
var joinModifiers = map[string]bool{
	"left": true, "right": true, "inner": true, "full": true, "cross": true,
	"natural": true, "positional": true, "asof": true, "anti": true, "semi": true,
	"outer": true,
}

// noBreakAfter keeps FROM on the line in DELETE FROM and IS DISTINCT FROM.
var noBreakAfter = map[string]bool{
	"delete": true, "distinct": true,
}

// callable keywords take their argument list without a space.
var callable = map[string]bool{
	"cast": true, "try_cast": true, "replace": true, "left": true, "right": true,
	"if": true, "grouping": true,
}

// valueKeywords end an expression, so a following sign is binary.
var valueKeywords = map[string]bool{
	"null": true, "true": true, "false": true, "end": true,
}

func (f *Formatter) printStatement(stmt []Token) string {
	var b strings.Builder
	depth := 0
	unaryPrev := false

	for i, tok := range stmt {
		lower := strings.ToLower(tok.Lit)
		var prev *Token
		if i > 0 {
			prev = &stmt[i-1]
		}

		if i > 0 {
			b.WriteString(f.separator(stmt, i, depth, unaryPrev))
		}

		b.WriteString(f.render(stmt, i, lower))

		unaryPrev = tok.Kind == Operator && (tok.Lit == "-" || tok.Lit == "+") && isUnaryContext(prev)

		switch tok.Kind {
		case LParen, LBracket, LBrace:
			depth++
		case RParen, RBracket, RBrace:
			depth--
		}
	}
	return b.String()
}

// render returns the token text with keyword casing applied.
func (f *Formatter) render(stmt []Token, i int, lower string) string {
	tok := stmt[i]
	if !f.isCasedWord(stmt, i, lower) {
		return tok.Lit
	}
	switch f.opts.KeywordCase {
	case CaseLower:
		return lower
	case CasePreserve:
		return tok.Lit
	default:
		return strings.ToUpper(tok.Lit)
	}
}

func (f *Formatter) isCasedWord(stmt []Token, i int, lower string) bool {
	tok := stmt[i]
	if i > 0 && (stmt[i-1].Kind == Dot || stmt[i-1].Kind == DoubleColon) {
		return false
	}
	if i+1 < len(stmt) && stmt[i+1].Kind == Dot {
		return false
	}
	switch tok.Kind {
	case Keyword:
		return true
	case Ident:
		if i == 0 || stmt[i-1].Kind != Keyword {
			return false
		}
		return contextual[strings.ToLower(stmt[i-1].Lit)][lower]
	default:
		return false
	}
}

// separator returns the whitespace placed before stmt[i].
func (f *Formatter) separator(stmt []Token, i, depth int, unaryPrev bool) string {
	tok, prev := stmt[i], stmt[i-1]

	if depth == 0 && breaksBefore(stmt, i) {
		return "\n"
	}

	switch tok.Kind {
	case Comma, RParen, RBracket, RBrace, Dot, DoubleColon:
		return ""
	}
	switch prev.Kind {
	case LParen, LBracket, LBrace, Dot, DoubleColon:
		return ""
	}
	if unaryPrev {
		return ""
	}

	switch tok.Kind {
	case LParen:
		if (prev.Kind == Ident || prev.Kind == QuotedIdent) && !followsRelationKeyword(stmt, i-1) {
			return ""
		}
		if prev.Kind == Keyword && callable[strings.ToLower(prev.Lit)] {
			return ""
		}
	case LBracket:
		switch prev.Kind {
		case Ident, QuotedIdent, RParen, RBracket:
			return ""
		}
	case Operator:
		if tok.Lit == ":" {
			return ""
		}
	}
	return " "
}

func breaksBefore(stmt []Token, i int) bool {
	tok := stmt[i]
	if tok.Kind != Keyword {
		return false
	}
	lower := strings.ToLower(tok.Lit)
	prevLower := strings.ToLower(stmt[i-1].Lit)
	if stmt[i-1].Kind == Dot || i+1 < len(stmt) && stmt[i+1].Kind == Dot {
		return false
	}

	if joinModifiers[lower] {
		if joinModifiers[prevLower] {
			return false
		}
		return startsJoin(stmt, i)
	}
	if !clauseKeywords[lower] {
		return false
	}

	switch lower {
	case "join":
		return !joinModifiers[prevLower]
	case "from":
		return !noBreakAfter[prevLower]
	case "set":
		// only the SET clause of UPDATE
		return strings.EqualFold(stmt[0].Lit, "update")
	}
	return true
}

// startsJoin reports whether stmt[i:] is a run of join modifiers ending in JOIN.
func startsJoin(stmt []Token, i int) bool {
	for j := i; j < len(stmt); j++ {
		w := strings.ToLower(stmt[j].Lit)
		if w == "join" {
			return true
		}
		if !joinModifiers[w] {
			return false
		}
	}
	return false
}

// relationKeywords precede a relation name whose column list keeps a space,
// as in CREATE TABLE t (a INT) and INSERT INTO t (a).
var relationKeywords = map[string]bool{
	"table": true, "into": true, "view": true, "exists": true,
}

// followsRelationKeyword walks back over a dotted name ending at j.
func followsRelationKeyword(stmt []Token, j int) bool {
	for j >= 0 {
		switch stmt[j].Kind {
		case Ident, QuotedIdent, Dot:
			j--
			continue
		case Keyword:
			return relationKeywords[strings.ToLower(stmt[j].Lit)]
		}
		return false
	}
	return false
}

func isUnaryContext(prev *Token) bool {
	if prev == nil {
		return true
	}
	switch prev.Kind {
	case Operator, LParen, LBracket, LBrace, Comma, DoubleColon:
		return true
	case Keyword:
		return !valueKeywords[strings.ToLower(prev.Lit)]
	}
	return false
}
