package script

import "testing"

func TestLexerBasicTokens(t *testing.T) {
	input := "начало:\nпоказать \"привет\"\nконец."
	lx := NewLexer(input)

	want := []struct {
		typ TokenType
		lit string
	}{
		{TokenKeyword, "начало"},
		{TokenColon, ":"},
		{TokenNewline, "\n"},
		{TokenKeyword, "показать"},
		{TokenString, "\"привет\""},
		{TokenNewline, "\n"},
		{TokenKeyword, "конец"},
		{TokenDot, "."},
		{TokenEOF, ""},
	}

	for i, w := range want {
		tok := lx.NextToken()
		if tok.Type != w.typ || tok.Literal != w.lit {
			t.Fatalf("token %d: got (%s, %q), want (%s, %q)", i, tok.Type, tok.Literal, w.typ, w.lit)
		}
	}
}

func TestLexerOperators(t *testing.T) {
	lx := NewLexer("x -> y >= <= == != > < =")
	want := []TokenType{
		TokenIdent, TokenArrow, TokenIdent,
		TokenGreaterEq, TokenLessEq, TokenEqual, TokenNotEqual,
		TokenGreater, TokenLess, TokenAssign, TokenEOF,
	}
	for i, w := range want {
		tok := lx.NextToken()
		if tok.Type != w {
			t.Fatalf("token %d: got %s, want %s", i, tok.Type, w)
		}
	}
}

func TestLexerNumbers(t *testing.T) {
	tests := []struct {
		input string
		lit   string
	}{
		{"42", "42"},
		{"3.14", "3.14"},
		{"7.", "7"}, // trailing dot is the program terminator, not a fraction
	}
	for _, tt := range tests {
		tok := NewLexer(tt.input).NextToken()
		if tok.Type != TokenNumber || tok.Literal != tt.lit {
			t.Errorf("lex %q: got (%s, %q), want (NUMBER, %q)", tt.input, tok.Type, tok.Literal, tt.lit)
		}
	}
}

func TestLexerUnterminatedString(t *testing.T) {
	tok := NewLexer("\"open").NextToken()
	if tok.Type != TokenError {
		t.Fatalf("got %s, want ERROR", tok.Type)
	}
}

func TestLexerTracksLines(t *testing.T) {
	lx := NewLexer("a\nb")
	first := lx.NextToken()
	lx.NextToken() // newline
	second := lx.NextToken()
	if first.Line != 1 || second.Line != 2 {
		t.Fatalf("lines: got %d and %d, want 1 and 2", first.Line, second.Line)
	}
}

func TestUnquote(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`"plain"`, "plain"},
		{`"a\nb"`, "a\nb"},
		{`"tab\there"`, "tab\there"},
		{`"q\"q"`, `q"q`},
		{`"back\\slash"`, `back\slash`},
	}
	for _, tt := range tests {
		if got := Unquote(tt.in); got != tt.want {
			t.Errorf("Unquote(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
