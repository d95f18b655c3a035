package script

// ---------------------------------------------------------------------------
// AST: the thirteen statement kinds of KolibriScript
// ---------------------------------------------------------------------------

// Stmt is the interface implemented by all statement nodes.
type Stmt interface {
	Line() int
	stmt() // marker method
}

type stmtBase struct {
	LineNo int
}

func (s stmtBase) Line() int { return s.LineNo }
func (s stmtBase) stmt()     {}

// ShowStmt prints an expression (показать).
type ShowStmt struct {
	stmtBase
	Expr string
}

// VarStmt assigns a variable (переменная имя = выражение).
type VarStmt struct {
	stmtBase
	Name string
	Expr string
}

// ModeStmt sets the response mode (режим).
type ModeStmt struct {
	stmtBase
	Expr string
}

// TeachStmt stores an association (обучить связь lhs -> rhs).
type TeachStmt struct {
	stmtBase
	LHS string
	RHS string
}

// CreateFormulaStmt binds a formula name (создать формулу имя из выражение).
type CreateFormulaStmt struct {
	stmtBase
	Name string
	Expr string
}

// EvaluateFormulaStmt runs the answer engine (оценить имя на задаче выражение).
type EvaluateFormulaStmt struct {
	stmtBase
	Name string
	Task string
}

// SaveFormulaStmt journals the top gene (сохранить имя в геном).
type SaveFormulaStmt struct {
	stmtBase
	Name string
}

// DropFormulaStmt removes a binding (отбросить формулу имя).
type DropFormulaStmt struct {
	stmtBase
	Name string
}

// EvolveStmt runs one pool tick (вызвать эволюцию).
type EvolveStmt struct {
	stmtBase
}

// CanvasStmt is the canvas placeholder (распечатать канву).
type CanvasStmt struct {
	stmtBase
}

// SwarmSendStmt is the swarm placeholder (рой отправить имя).
type SwarmSendStmt struct {
	stmtBase
	Name string
}

// IfStmt branches on a condition (если ... тогда ... иначе ... конец).
type IfStmt struct {
	stmtBase
	Cond string
	Then []Stmt
	Else []Stmt
}

// WhileStmt loops on a condition (пока ... делать ... конец).
type WhileStmt struct {
	stmtBase
	Cond string
	Body []Stmt
}

// Program is a parsed KolibriScript program: начало: ... конец.
type Program struct {
	Statements []Stmt
}
