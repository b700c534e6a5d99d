package lint

import (
	"fmt"
	"strings"
)

// Lexer tokenizes SQL input. Comments are skipped.
type Lexer struct {
	input   string
	pos     int  // current position in input
	readPos int  // reading position (after current char)
	ch      byte // current char under examination
	line    int  // current line number (1-based)
	col     int  // current column number (1-based)
}

// NewLexer creates a new Lexer for the given input.
func NewLexer(input string) *Lexer {
	l := &Lexer{
		input: input,
		line:  1,
	}
	l.readChar()
	return l
}

// SyntaxError is a lexical error at a position.
type SyntaxError struct {
	Pos Position
	Msg string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s: %s", e.Pos, e.Msg)
}

// multiOps are multi-character operators, longest first.
var multiOps = []string{"->>", "!~~", "->", "<=", ">=", "<>", "!=", "==", "||", "<<", ">>", "**", "//", ":=", "=>", "~~", "^@"}

const opChars = "+-*/%=<>!|&^~@#:?"

func (l *Lexer) readChar() {
	if l.readPos > 0 && l.pos < len(l.input) && l.input[l.pos] == '\n' {
		l.line++
		l.col = 0
	}
	if l.readPos >= len(l.input) {
		l.ch = 0 // EOF
	} else {
		l.ch = l.input[l.readPos]
	}
	l.pos = l.readPos
	l.readPos++
	l.col++
}

func (l *Lexer) peekChar() byte {
	if l.readPos >= len(l.input) {
		return 0
	}
	return l.input[l.readPos]
}

func (l *Lexer) atEOF() bool {
	return l.pos >= len(l.input)
}

func (l *Lexer) currentPos() Position {
	return Position{Line: l.line, Column: l.col, Offset: l.pos}
}

// NextToken returns the next token, or a *SyntaxError.
func (l *Lexer) NextToken() (Token, error) {
	if err := l.skipWhitespaceAndComments(); err != nil {
		return Token{}, err
	}

	pos := l.currentPos()
	if l.atEOF() {
		return Token{Kind: EOF, Pos: pos}, nil
	}

	single := func(k Kind) (Token, error) {
		lit := string(l.ch)
		l.readChar()
		return Token{Kind: k, Lit: lit, Pos: pos}, nil
	}

	switch ch := l.ch; {
	case ch == ',':
		return single(Comma)
	case ch == ';':
		return single(Semicolon)
	case ch == '(':
		return single(LParen)
	case ch == ')':
		return single(RParen)
	case ch == '[':
		return single(LBracket)
	case ch == ']':
		return single(RBracket)
	case ch == '{':
		return single(LBrace)
	case ch == '}':
		return single(RBrace)
	case ch == '.':
		if isDigit(l.peekChar()) {
			return Token{Kind: Number, Lit: l.readNumber(), Pos: pos}, nil
		}
		return single(Dot)
	case ch == ':' && l.peekChar() == ':':
		l.readChar()
		l.readChar()
		return Token{Kind: DoubleColon, Lit: "::", Pos: pos}, nil
	case ch == '\'':
		lit, err := l.readQuoted('\'', "string literal")
		return Token{Kind: String, Lit: lit, Pos: pos}, err
	case ch == '"':
		lit, err := l.readQuoted('"', "quoted identifier")
		return Token{Kind: QuotedIdent, Lit: lit, Pos: pos}, err
	case ch == '$':
		return l.readDollar(pos)
	case ch == '?':
		return single(Param)
	case isLetter(ch) || ch == '_':
		start := l.pos
		word := l.readIdentifier()
		// prefixed string literals: E'..', X'..', B'..'
		if l.ch == '\'' && len(word) == 1 && strings.ContainsRune("eExXbB", rune(word[0])) {
			if _, err := l.readQuoted('\'', "string literal"); err != nil {
				return Token{}, err
			}
			return Token{Kind: String, Lit: l.input[start:l.pos], Pos: pos}, nil
		}
		return Token{Kind: LookupIdent(strings.ToLower(word)), Lit: word, Pos: pos}, nil
	case isDigit(ch):
		return Token{Kind: Number, Lit: l.readNumber(), Pos: pos}, nil
	case strings.IndexByte(opChars, ch) >= 0:
		rest := l.input[l.pos:]
		for _, op := range multiOps {
			if strings.HasPrefix(rest, op) {
				for range op {
					l.readChar()
				}
				return Token{Kind: Operator, Lit: op, Pos: pos}, nil
			}
		}
		return single(Operator)
	default:
		return Token{}, &SyntaxError{Pos: pos, Msg: fmt.Sprintf("unexpected character %q", ch)}
	}
}

func (l *Lexer) skipWhitespaceAndComments() error {
	for {
		for l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r' || l.ch == '\f' {
			l.readChar()
		}

		if l.ch == '-' && l.peekChar() == '-' {
			for l.ch != '\n' && !l.atEOF() {
				l.readChar()
			}
			continue
		}

		if l.ch == '/' && l.peekChar() == '*' {
			pos := l.currentPos()
			l.readChar()
			l.readChar()
			for {
				if l.atEOF() {
					return &SyntaxError{Pos: pos, Msg: "unterminated block comment"}
				}
				if l.ch == '*' && l.peekChar() == '/' {
					l.readChar()
					l.readChar()
					break
				}
				l.readChar()
			}
			continue
		}

		return nil
	}
}

// readQuoted reads a literal delimited by quote. A doubled quote is an
// escaped quote. The returned literal includes the delimiters.
func (l *Lexer) readQuoted(quote byte, what string) (string, error) {
	pos := l.currentPos()
	start := l.pos
	l.readChar() // opening quote

	for {
		if l.atEOF() {
			return "", &SyntaxError{Pos: pos, Msg: "unterminated " + what}
		}
		if l.ch == quote {
			if l.peekChar() == quote {
				l.readChar()
				l.readChar()
				continue
			}
			l.readChar() // closing quote
			return l.input[start:l.pos], nil
		}
		l.readChar()
	}
}

// readDollar reads $1 / $name parameters and $tag$...$tag$ strings.
func (l *Lexer) readDollar(pos Position) (Token, error) {
	start := l.pos
	l.readChar() // '$'

	if isDigit(l.ch) {
		for isDigit(l.ch) {
			l.readChar()
		}
		return Token{Kind: Param, Lit: l.input[start:l.pos], Pos: pos}, nil
	}

	for isLetter(l.ch) || isDigit(l.ch) || l.ch == '_' {
		l.readChar()
	}
	if l.ch != '$' {
		if l.pos == start+1 {
			return Token{}, &SyntaxError{Pos: pos, Msg: "unexpected character '$'"}
		}
		return Token{Kind: Param, Lit: l.input[start:l.pos], Pos: pos}, nil
	}
	l.readChar() // closing '$' of the tag

	tag := l.input[start:l.pos]
	end := strings.Index(l.input[l.pos:], tag)
	if end < 0 {
		return Token{}, &SyntaxError{Pos: pos, Msg: "unterminated dollar-quoted string"}
	}
	stop := l.pos + end + len(tag)
	for l.pos < stop {
		l.readChar()
	}
	return Token{Kind: String, Lit: l.input[start:l.pos], Pos: pos}, nil
}

func (l *Lexer) readIdentifier() string {
	start := l.pos
	for isLetter(l.ch) || isDigit(l.ch) || l.ch == '_' {
		l.readChar()
	}
	return l.input[start:l.pos]
}

// readNumber reads integer, decimal, scientific and 1_000 style literals.
func (l *Lexer) readNumber() string {
	start := l.pos

	for isDigit(l.ch) || l.ch == '_' {
		l.readChar()
	}

	if l.ch == '.' && isDigit(l.peekChar()) {
		l.readChar()
		for isDigit(l.ch) || l.ch == '_' {
			l.readChar()
		}
	}

	if (l.ch == 'e' || l.ch == 'E') && (isDigit(l.peekChar()) || l.peekChar() == '+' || l.peekChar() == '-') {
		l.readChar()
		if l.ch == '+' || l.ch == '-' {
			l.readChar()
		}
		for isDigit(l.ch) {
			l.readChar()
		}
	}

	return l.input[start:l.pos]
}

// isLetter accepts ASCII letters and any byte of a multi-byte UTF-8 sequence.
func isLetter(ch byte) bool {
	return ch >= 'a' && ch <= 'z' || ch >= 'A' && ch <= 'Z' || ch >= 0x80
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

// Tokenize returns all tokens of input, excluding EOF.
func Tokenize(input string) ([]Token, error) {
	l := NewLexer(input)
	var tokens []Token
	for {
		tok, err := l.NextToken()
		if err != nil {
			return nil, err
		}
		if tok.Kind == EOF {
			return tokens, nil
		}
		tokens = append(tokens, tok)
	}
}
