package script

import (
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Lexer: single linear pass, line/column tracked
// ---------------------------------------------------------------------------

// Lexer tokenizes KolibriScript source. Words are ordered sequences of
// non-delimiter bytes; this is UTF-8-safe because every delimiter is ASCII.
type Lexer struct {
	input string
	pos   int
	line  int
	col   int
}

// NewLexer creates a lexer for the given input.
func NewLexer(input string) *Lexer {
	return &Lexer{input: input, line: 1, col: 1}
}

func (l *Lexer) at(off int) byte {
	if l.pos+off >= len(l.input) {
		return 0
	}
	return l.input[l.pos+off]
}

func (l *Lexer) advance(n int) {
	for i := 0; i < n && l.pos < len(l.input); i++ {
		if l.input[l.pos] == '\n' {
			l.line++
			l.col = 1
		} else {
			l.col++
		}
		l.pos++
	}
}

func (l *Lexer) token(t TokenType, lit string, line, col int) Token {
	return Token{Type: t, Literal: lit, Line: line, Column: col}
}

// NextToken returns the next token. Space, tab and CR are skipped; LF
// emits NEWLINE.
func (l *Lexer) NextToken() Token {
	for {
		c := l.at(0)
		if c == ' ' || c == '\t' || c == '\r' {
			l.advance(1)
			continue
		}
		break
	}

	line, col := l.line, l.col
	c := l.at(0)

	switch {
	case c == 0:
		return l.token(TokenEOF, "", line, col)

	case c == '\n':
		l.advance(1)
		return l.token(TokenNewline, "\n", line, col)

	case c == ':':
		l.advance(1)
		return l.token(TokenColon, ":", line, col)

	case c == '.':
		l.advance(1)
		return l.token(TokenDot, ".", line, col)

	case c == '-' && l.at(1) == '>':
		l.advance(2)
		return l.token(TokenArrow, "->", line, col)

	case c == '>' && l.at(1) == '=':
		l.advance(2)
		return l.token(TokenGreaterEq, ">=", line, col)

	case c == '<' && l.at(1) == '=':
		l.advance(2)
		return l.token(TokenLessEq, "<=", line, col)

	case c == '=' && l.at(1) == '=':
		l.advance(2)
		return l.token(TokenEqual, "==", line, col)

	case c == '!' && l.at(1) == '=':
		l.advance(2)
		return l.token(TokenNotEqual, "!=", line, col)

	case c == '>':
		l.advance(1)
		return l.token(TokenGreater, ">", line, col)

	case c == '<':
		l.advance(1)
		return l.token(TokenLess, "<", line, col)

	case c == '=':
		l.advance(1)
		return l.token(TokenAssign, "=", line, col)

	case c == '"':
		return l.readString(line, col)

	case c >= '0' && c <= '9':
		return l.readNumber(line, col)

	default:
		return l.readWord(line, col)
	}
}

// readString reads a double-quoted literal with backslash escapes. The
// token literal keeps the surrounding quotes; unterminated strings are a
// fatal diagnostic.
func (l *Lexer) readString(line, col int) Token {
	start := l.pos
	l.advance(1) // opening quote
	for {
		c := l.at(0)
		switch c {
		case 0, '\n':
			return l.token(TokenError, "unterminated string", line, col)
		case '\\':
			l.advance(2)
		case '"':
			l.advance(1)
			return l.token(TokenString, l.input[start:l.pos], line, col)
		default:
			l.advance(1)
		}
	}
}

// readNumber reads a decimal number with at most one dot.
func (l *Lexer) readNumber(line, col int) Token {
	start := l.pos
	for l.at(0) >= '0' && l.at(0) <= '9' {
		l.advance(1)
	}
	if l.at(0) == '.' && l.at(1) >= '0' && l.at(1) <= '9' {
		l.advance(1)
		for l.at(0) >= '0' && l.at(0) <= '9' {
			l.advance(1)
		}
	}
	return l.token(TokenNumber, l.input[start:l.pos], line, col)
}

// isDelimiter reports bytes that terminate a word. All are ASCII, so
// multibyte codepoints pass through words untouched.
func isDelimiter(c byte) bool {
	switch c {
	case 0, ' ', '\t', '\r', '\n', '"', ':', '.', '=', '<', '>':
		return true
	}
	return false
}

// readWord reads a run of non-delimiter bytes and classifies it as a
// keyword or identifier.
func (l *Lexer) readWord(line, col int) Token {
	start := l.pos
	for {
		c := l.at(0)
		if isDelimiter(c) {
			break
		}
		if c == '-' && l.at(1) == '>' {
			break
		}
		if c == '!' && l.at(1) == '=' {
			break
		}
		l.advance(1)
	}
	word := l.input[start:l.pos]
	if word == "" {
		// A stray byte that neither starts a token nor extends a word.
		l.advance(1)
		return l.token(TokenError, fmt.Sprintf("unexpected character %q", l.input[start:l.pos]), line, col)
	}
	if LookupKeyword(word) != KwNone {
		return l.token(TokenKeyword, word, line, col)
	}
	return l.token(TokenIdent, word, line, col)
}

// Unquote strips the surrounding quotes from a string token literal and
// processes the escapes \n, \t, \\ and \".
func Unquote(lit string) string {
	if len(lit) < 2 || lit[0] != '"' || lit[len(lit)-1] != '"' {
		return lit
	}
	inner := lit[1 : len(lit)-1]
	if !strings.ContainsRune(inner, '\\') {
		return inner
	}
	var sb strings.Builder
	for i := 0; i < len(inner); i++ {
		c := inner[i]
		if c != '\\' || i+1 >= len(inner) {
			sb.WriteByte(c)
			continue
		}
		i++
		switch inner[i] {
		case 'n':
			sb.WriteByte('\n')
		case 't':
			sb.WriteByte('\t')
		case '\\':
			sb.WriteByte('\\')
		case '"':
			sb.WriteByte('"')
		default:
			sb.WriteByte('\\')
			sb.WriteByte(inner[i])
		}
	}
	return sb.String()
}
