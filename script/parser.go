package script

import (
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Parser: recursive descent over the token stream
// ---------------------------------------------------------------------------

// Parser parses KolibriScript source into a Program. Expression content is
// captured as raw token text joined by single spaces; it is evaluated by
// inspection at run time, never re-parsed.
type Parser struct {
	lexer    *Lexer
	curToken Token
	errors   []string
}

// NewParser creates a parser for the given input.
func NewParser(input string) *Parser {
	p := &Parser{lexer: NewLexer(input)}
	p.nextToken()
	return p
}

func (p *Parser) nextToken() {
	p.curToken = p.lexer.NextToken()
}

func (p *Parser) curIs(t TokenType) bool {
	return p.curToken.Type == t
}

func (p *Parser) curIsKeyword(kw Keyword) bool {
	return p.curToken.Type == TokenKeyword && LookupKeyword(p.curToken.Literal) == kw
}

func (p *Parser) errorf(format string, args ...interface{}) {
	msg := fmt.Sprintf("line %d: %s", p.curToken.Line, fmt.Sprintf(format, args...))
	p.errors = append(p.errors, msg)
}

// Errors returns accumulated parse diagnostics.
func (p *Parser) Errors() []string {
	return p.errors
}

// expectKeyword consumes the given keyword or records an error.
func (p *Parser) expectKeyword(kw Keyword, text string) bool {
	if p.curIsKeyword(kw) {
		p.nextToken()
		return true
	}
	p.errorf("expected %q, got %q", text, p.curToken.Literal)
	return false
}

func (p *Parser) expect(t TokenType) bool {
	if p.curIs(t) {
		p.nextToken()
		return true
	}
	p.errorf("expected %s, got %s", t, p.curToken.Type)
	return false
}

// skipNewlines consumes any run of NEWLINE tokens.
func (p *Parser) skipNewlines() {
	for p.curIs(TokenNewline) {
		p.nextToken()
	}
}

// skipToNewline recovers from a parse error by discarding the rest of the
// line.
func (p *Parser) skipToNewline() {
	for !p.curIs(TokenNewline) && !p.curIs(TokenEOF) {
		p.nextToken()
	}
}

// ---------------------------------------------------------------------------
// Program
// ---------------------------------------------------------------------------

// Parse parses a whole program: начало: <statements> конец.
func (p *Parser) Parse() *Program {
	prog := &Program{}

	p.skipNewlines()
	if !p.expectKeyword(KwNachalo, "начало") {
		return prog
	}
	p.expect(TokenColon)
	p.skipNewlines()

	prog.Statements = p.parseBlock(KwKonets)

	if p.expectKeyword(KwKonets, "конец") {
		p.expect(TokenDot)
	}
	return prog
}

// parseBlock parses statements until one of the stop keywords (or EOF).
// The stop keyword is left for the caller.
func (p *Parser) parseBlock(stops ...Keyword) []Stmt {
	var stmts []Stmt
	for {
		p.skipNewlines()
		if p.curIs(TokenEOF) {
			return stmts
		}
		for _, kw := range stops {
			if p.curIsKeyword(kw) {
				return stmts
			}
		}
		stmt := p.parseStatement()
		if stmt != nil {
			stmts = append(stmts, stmt)
		}
	}
}

// parseStatement dispatches on the leading keyword. Unknown statements
// record a diagnostic and skip to the next line.
func (p *Parser) parseStatement() Stmt {
	if p.curIs(TokenError) {
		p.errorf("%s", p.curToken.Literal)
		p.nextToken()
		p.skipToNewline()
		return nil
	}
	if !p.curIs(TokenKeyword) {
		p.errorf("expected statement, got %q", p.curToken.Literal)
		p.skipToNewline()
		return nil
	}

	line := p.curToken.Line
	base := stmtBase{LineNo: line}

	switch LookupKeyword(p.curToken.Literal) {
	case KwPokazat:
		p.nextToken()
		return &ShowStmt{stmtBase: base, Expr: p.parseExpressionUntil()}

	case KwPeremennaya:
		p.nextToken()
		name := p.parseName()
		if name == "" {
			return nil
		}
		p.expect(TokenAssign)
		return &VarStmt{stmtBase: base, Name: name, Expr: p.parseExpressionUntil()}

	case KwRezhim:
		p.nextToken()
		return &ModeStmt{stmtBase: base, Expr: p.parseExpressionUntil()}

	case KwObuchit:
		p.nextToken()
		p.expectKeyword(KwSvyaz, "связь")
		lhs := p.parseExpressionUntilToken(TokenArrow)
		if !p.expect(TokenArrow) {
			p.skipToNewline()
			return nil
		}
		rhs := p.parseExpressionUntil()
		return &TeachStmt{stmtBase: base, LHS: lhs, RHS: rhs}

	case KwSozdat:
		p.nextToken()
		p.expectKeyword(KwFormulu, "формулу")
		name := p.parseName()
		if name == "" {
			return nil
		}
		p.expectKeyword(KwIz, "из")
		return &CreateFormulaStmt{stmtBase: base, Name: name, Expr: p.parseExpressionUntil()}

	case KwOtsenit:
		p.nextToken()
		name := p.parseName()
		if name == "" {
			return nil
		}
		p.expectKeyword(KwNa, "на")
		p.expectKeyword(KwZadache, "задаче")
		return &EvaluateFormulaStmt{stmtBase: base, Name: name, Task: p.parseExpressionUntil()}

	case KwSokhranit:
		p.nextToken()
		name := p.parseName()
		if name == "" {
			return nil
		}
		p.expectKeyword(KwV, "в")
		p.expectKeyword(KwGenom, "геном")
		return &SaveFormulaStmt{stmtBase: base, Name: name}

	case KwOtbrosit:
		p.nextToken()
		if p.curIsKeyword(KwFormulu) {
			p.nextToken()
		}
		name := p.parseName()
		if name == "" {
			return nil
		}
		return &DropFormulaStmt{stmtBase: base, Name: name}

	case KwVyzvat:
		p.nextToken()
		p.expectKeyword(KwEvolyutsiyu, "эволюцию")
		return &EvolveStmt{stmtBase: base}

	case KwRaspechatat:
		p.nextToken()
		p.expectKeyword(KwKanvu, "канву")
		return &CanvasStmt{stmtBase: base}

	case KwRoy:
		p.nextToken()
		p.expectKeyword(KwOtpravit, "отправить")
		name := p.parseName()
		if name == "" {
			return nil
		}
		return &SwarmSendStmt{stmtBase: base, Name: name}

	case KwEsli:
		return p.parseIf(base)

	case KwPoka:
		return p.parseWhile(base)

	default:
		p.errorf("unexpected keyword %q", p.curToken.Literal)
		p.skipToNewline()
		return nil
	}
}

// parseName consumes an identifier (or the итог keyword, which is a legal
// binding target) and returns its text.
func (p *Parser) parseName() string {
	if p.curIs(TokenIdent) || p.curIsKeyword(KwItog) {
		name := p.curToken.Literal
		p.nextToken()
		return name
	}
	p.errorf("expected name, got %q", p.curToken.Literal)
	p.skipToNewline()
	return ""
}

// parseIf parses если cond тогда ... [иначе ...] конец.
func (p *Parser) parseIf(base stmtBase) Stmt {
	p.nextToken() // если
	cond := p.parseExpressionUntilKeyword(KwTogda)
	p.expectKeyword(KwTogda, "тогда")
	if p.curIs(TokenColon) {
		p.nextToken()
	}

	stmt := &IfStmt{stmtBase: base, Cond: cond}
	stmt.Then = p.parseBlock(KwInache, KwKonets)
	if p.curIsKeyword(KwInache) {
		p.nextToken()
		if p.curIs(TokenColon) {
			p.nextToken()
		}
		stmt.Else = p.parseBlock(KwKonets)
	}
	p.expectKeyword(KwKonets, "конец")
	return stmt
}

// parseWhile parses пока cond делать ... конец.
func (p *Parser) parseWhile(base stmtBase) Stmt {
	p.nextToken() // пока
	cond := p.parseExpressionUntilKeyword(KwDelat)
	p.expectKeyword(KwDelat, "делать")
	if p.curIs(TokenColon) {
		p.nextToken()
	}

	stmt := &WhileStmt{stmtBase: base, Cond: cond}
	stmt.Body = p.parseBlock(KwKonets)
	p.expectKeyword(KwKonets, "конец")
	return stmt
}

// ---------------------------------------------------------------------------
// Expression capture
// ---------------------------------------------------------------------------

// capture accumulates raw token text until stop reports true or the line
// ends. The terminating token is not consumed.
func (p *Parser) capture(stop func(Token) bool) string {
	var parts []string
	for {
		if p.curIs(TokenNewline) || p.curIs(TokenEOF) || stop(p.curToken) {
			break
		}
		if p.curIs(TokenError) {
			p.errorf("%s", p.curToken.Literal)
			p.nextToken()
			break
		}
		parts = append(parts, p.curToken.Literal)
		p.nextToken()
	}
	return strings.Join(parts, " ")
}

// parseExpressionUntil captures to the end of the line.
func (p *Parser) parseExpressionUntil() string {
	return p.capture(func(Token) bool { return false })
}

// parseExpressionUntilToken captures until a token type.
func (p *Parser) parseExpressionUntilToken(t TokenType) string {
	return p.capture(func(tok Token) bool { return tok.Type == t })
}

// parseExpressionUntilKeyword captures until a keyword boundary.
func (p *Parser) parseExpressionUntilKeyword(kw Keyword) string {
	return p.capture(func(tok Token) bool {
		return tok.Type == TokenKeyword && LookupKeyword(tok.Literal) == kw
	})
}

// Parse is the package-level convenience: parse a whole program and
// return its diagnostics.
func Parse(input string) (*Program, []string) {
	p := NewParser(input)
	prog := p.Parse()
	return prog, p.Errors()
}
