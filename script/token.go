// Package script implements KolibriScript: the lexer, recursive-descent
// parser and tree-walking interpreter for the Russian-keyword DSL that
// drives training, evaluation and reflection on a node.
package script

import "fmt"

// ---------------------------------------------------------------------------
// Token types for the KolibriScript lexer
// ---------------------------------------------------------------------------

// TokenType represents the type of a token.
type TokenType int

const (
	TokenEOF TokenType = iota
	TokenError

	TokenNewline
	TokenKeyword
	TokenIdent
	TokenString // "..." with backslash escapes
	TokenNumber // decimal, optional single dot

	TokenColon     // :
	TokenDot       // .
	TokenAssign    // =
	TokenArrow     // ->
	TokenGreater   // >
	TokenGreaterEq // >=
	TokenLess      // <
	TokenLessEq    // <=
	TokenEqual     // ==
	TokenNotEqual  // !=
)

var tokenNames = map[TokenType]string{
	TokenEOF:       "EOF",
	TokenError:     "ERROR",
	TokenNewline:   "NEWLINE",
	TokenKeyword:   "KEYWORD",
	TokenIdent:     "IDENT",
	TokenString:    "STRING",
	TokenNumber:    "NUMBER",
	TokenColon:     ":",
	TokenDot:       ".",
	TokenAssign:    "=",
	TokenArrow:     "->",
	TokenGreater:   ">",
	TokenGreaterEq: ">=",
	TokenLess:      "<",
	TokenLessEq:    "<=",
	TokenEqual:     "==",
	TokenNotEqual:  "!=",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Token(%d)", t)
}

// Token represents a lexical token. Literal is the raw source text, so
// that captured expressions reproduce the program verbatim (string tokens
// keep their quotes).
type Token struct {
	Type    TokenType
	Literal string
	Line    int
	Column  int
}

func (t Token) String() string {
	if t.Type == TokenEOF {
		return "EOF"
	}
	return fmt.Sprintf("%s(%q)", t.Type, t.Literal)
}

// ---------------------------------------------------------------------------
// Keywords
// ---------------------------------------------------------------------------

// Keyword identifies one of the fixed Russian keywords. The parser
// compares raw UTF-8 bytes; nothing is normalized.
type Keyword int

const (
	KwNone Keyword = iota
	KwNachalo
	KwKonets
	KwPeremennaya
	KwPokazat
	KwObuchit
	KwSvyaz
	KwSozdat
	KwFormulu
	KwFormula
	KwIz
	KwOtsenit
	KwNa
	KwZadache
	KwEsli
	KwTogda
	KwInache
	KwPoka
	KwDelat
	KwSokhranit
	KwV
	KwGenom
	KwOtbrosit
	KwVyzvat
	KwEvolyutsiyu
	KwRaspechatat
	KwKanvu
	KwRoy
	KwOtpravit
	KwFitness
	KwItog
	KwRezhim
)

// keywords maps the raw UTF-8 keyword text to its identity.
var keywords = map[string]Keyword{
	"начало":      KwNachalo,
	"конец":       KwKonets,
	"переменная":  KwPeremennaya,
	"показать":    KwPokazat,
	"обучить":     KwObuchit,
	"связь":       KwSvyaz,
	"создать":     KwSozdat,
	"формулу":     KwFormulu,
	"формула":     KwFormula,
	"из":          KwIz,
	"оценить":     KwOtsenit,
	"на":          KwNa,
	"задаче":      KwZadache,
	"если":        KwEsli,
	"тогда":       KwTogda,
	"иначе":       KwInache,
	"пока":        KwPoka,
	"делать":      KwDelat,
	"сохранить":   KwSokhranit,
	"в":           KwV,
	"геном":       KwGenom,
	"отбросить":   KwOtbrosit,
	"вызвать":     KwVyzvat,
	"эволюцию":    KwEvolyutsiyu,
	"распечатать": KwRaspechatat,
	"канву":       KwKanvu,
	"рой":         KwRoy,
	"отправить":   KwOtpravit,
	"фитнес":      KwFitness,
	"итог":        KwItog,
	"режим":       KwRezhim,
}

// KeywordFitness is the raw text of the fitness keyword, used by the
// evaluator's string-prefix detection.
const KeywordFitness = "фитнес"

// VarItog is the special variable receiving evaluation results.
const VarItog = "итог"

// LookupKeyword returns the keyword for a word, or KwNone.
func LookupKeyword(word string) Keyword {
	return keywords[word]
}

// KeywordTexts returns every keyword's raw text (for editor completion).
func KeywordTexts() []string {
	out := make([]string, 0, len(keywords))
	for k := range keywords {
		out = append(out, k)
	}
	return out
}
