package lint

import "fmt"

// Kind classifies a token.
type Kind int

// Token kinds.
const (
	EOF Kind = iota
	Keyword
	Ident
	QuotedIdent
	String
	Number
	Param
	Operator
	Comma
	Semicolon
	Dot
	DoubleColon
	LParen
	RParen
	LBracket
	RBracket
	LBrace
	RBrace
)

var kindNames = map[Kind]string{
	EOF:         "EOF",
	Keyword:     "KEYWORD",
	Ident:       "IDENT",
	QuotedIdent: "QUOTED_IDENT",
	String:      "STRING",
	Number:      "NUMBER",
	Param:       "PARAM",
	Operator:    "OPERATOR",
	Comma:       ",",
	Semicolon:   ";",
	Dot:         ".",
	DoubleColon: "::",
	LParen:      "(",
	RParen:      ")",
	LBracket:    "[",
	RBracket:    "]",
	LBrace:      "{",
	RBrace:      "}",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Position is a location in the input.
type Position struct {
	Line   int // 1-based
	Column int // 1-based
	Offset int // 0-based byte offset
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Token is a lexical unit. Lit holds the source text verbatim, including
// quotes for strings and quoted identifiers.
type Token struct {
	Kind Kind
	Lit  string
	Pos  Position
}

// keywords are cased by the formatter. Words commonly used as column
// names (name, type, value, key, first, last) are deliberately absent.
var keywords = map[string]bool{
	"add": true, "all": true, "alter": true, "analyze": true, "and": true,
	"anti": true, "any": true, "as": true, "asc": true, "asof": true,
	"attach": true, "begin": true, "between": true, "by": true, "call": true,
	"case": true, "cast": true, "check": true, "checkpoint": true, "collate": true,
	"column": true, "commit": true, "constraint": true, "copy": true, "create": true,
	"cross": true, "cube": true, "database": true, "default": true, "delete": true,
	"desc": true, "describe": true, "detach": true, "distinct": true, "do": true,
	"drop": true, "else": true, "end": true, "escape": true, "except": true,
	"exclude": true, "exists": true, "explain": true, "export": true, "false": true,
	"fetch": true, "filter": true, "foreign": true, "from": true, "full": true,
	"function": true, "glob": true, "group": true, "grouping": true, "having": true,
	"if": true, "ilike": true, "import": true, "in": true, "index": true,
	"inner": true, "insert": true, "install": true, "intersect": true, "interval": true,
	"into": true, "is": true, "join": true, "lateral": true, "left": true,
	"like": true, "limit": true, "load": true, "macro": true, "natural": true,
	"not": true, "nothing": true, "null": true, "nulls": true, "offset": true,
	"on": true, "or": true, "order": true, "outer": true, "over": true,
	"partition": true, "pivot": true, "positional": true, "pragma": true, "primary": true,
	"qualify": true, "recursive": true, "references": true, "rename": true, "replace": true,
	"returning": true, "right": true, "rollback": true, "rollup": true, "schema": true,
	"select": true, "semi": true, "sequence": true, "set": true, "sets": true,
	"show": true, "similar": true, "summarize": true, "table": true, "temp": true,
	"temporary": true, "then": true, "to": true, "transaction": true, "true": true,
	"try_cast": true, "union": true, "unique": true, "unpivot": true, "update": true,
	"use": true, "using": true, "vacuum": true, "values": true, "view": true,
	"when": true, "where": true, "window": true, "with": true, "within": true,
}

// contextual lists words cased only when they follow a given keyword.
var contextual = map[string]map[string]bool{
	"primary": {"key": true},
	"foreign": {"key": true},
	"nulls":   {"first": true, "last": true},
	"on":      {"conflict": true},
}

// LookupIdent returns Keyword for reserved words and Ident otherwise.
// word must be lower case.
func LookupIdent(word string) Kind {
	if keywords[word] {
		return Keyword
	}
	return Ident
}
