package script

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/kolibri-node/kolibri/digits"
	"github.com/kolibri-node/kolibri/genome"
	"github.com/kolibri-node/kolibri/pool"
	"github.com/kolibri-node/kolibri/symbols"
)

// MaxLoopIterations caps every пока loop.
const MaxLoopIterations = 1024

// maxTaughtPerCall bounds the associations harvested by one обучить
// statement, n-grams included.
const maxTaughtPerCall = 64

// maxEventText bounds the text encoded into one event payload; 340 bytes
// of text expand to 1020 payload digits, under the 1023-digit limit.
const maxEventText = 340

var (
	// ErrRuntimeLimit indicates a loop exceeded MaxLoopIterations.
	ErrRuntimeLimit = errors.New("script: loop iteration limit exceeded")
	// ErrUnknownFormula indicates a formula name with no binding.
	ErrUnknownFormula = errors.New("script: unknown formula")
)

// ---------------------------------------------------------------------------
// Values
// ---------------------------------------------------------------------------

// ValueKind tags the variants of a Value.
type ValueKind int

const (
	KindNone ValueKind = iota
	KindString
	KindNumber
)

// Value is the interpreter's variant type.
type Value struct {
	Kind ValueKind
	Str  string
	Num  float64
}

// StringValue wraps a string.
func StringValue(s string) Value { return Value{Kind: KindString, Str: s} }

// NumberValue wraps a number.
func NumberValue(n float64) Value { return Value{Kind: KindNumber, Num: n} }

// Text renders the value for display and teaching.
func (v Value) Text() string {
	switch v.Kind {
	case KindString:
		return v.Str
	case KindNumber:
		return strconv.FormatFloat(v.Num, 'g', -1, 64)
	default:
		return ""
	}
}

// ---------------------------------------------------------------------------
// Interpreter
// ---------------------------------------------------------------------------

// Recorder receives journal events. The genome journal satisfies this.
type Recorder interface {
	Append(eventType string, payload []byte) error
}

// Binding is a named formula registered by создать формулу.
type Binding struct {
	Name        string
	Expr        string
	LastFitness float64
}

// Interp executes a parsed program against the pool, symbol table and
// journal. One interpreter owns its state for the duration of a run; there
// is no cross-goroutine sharing.
type Interp struct {
	pool    *pool.Pool
	table   *symbols.Table
	rec     Recorder
	out     io.Writer
	vars    map[string]Value
	binds   map[string]*Binding
	mode    string
	nowFunc func() int64
}

// New creates an interpreter. rec may be nil (events are then dropped),
// which tests use.
func New(p *pool.Pool, table *symbols.Table, rec Recorder, out io.Writer) *Interp {
	return &Interp{
		pool:    p,
		table:   table,
		rec:     rec,
		out:     out,
		vars:    make(map[string]Value),
		binds:   make(map[string]*Binding),
		mode:    "neutral",
		nowFunc: func() int64 { return time.Now().UnixNano() },
	}
}

// Mode returns the current response mode.
func (in *Interp) Mode() string { return in.mode }

// Var returns a variable's value.
func (in *Interp) Var(name string) (Value, bool) {
	v, ok := in.vars[name]
	return v, ok
}

// Binding returns a formula binding by name.
func (in *Interp) Binding(name string) (*Binding, bool) {
	b, ok := in.binds[name]
	return b, ok
}

// record text-encodes a message through the digit stream and appends it
// to the journal. Event recording is best-effort: a journal failure must
// not take down the statement that triggered it.
func (in *Interp) record(event, text string) {
	if in.rec == nil {
		return
	}
	if len(text) > maxEventText {
		text = text[:maxEventText]
	}
	ds, err := digits.EncodeText(text)
	if err != nil {
		return
	}
	_ = in.rec.Append(event, []byte(ds))
}

// reportError logs a recoverable statement failure and continues.
func (in *Interp) reportError(line int, err error) {
	fmt.Fprintf(in.out, "[Kolibri] Ошибка в строке %d: %v\n", line, err)
	in.record(genome.EventScriptError, fmt.Sprintf("line %d: %v", line, err))
}

// Run executes a program. Recoverable statement errors are logged as
// SCRIPT_ERROR events and skipped; only runtime-limit violations abort.
func (in *Interp) Run(prog *Program) error {
	return in.execBlock(prog.Statements)
}

func (in *Interp) execBlock(stmts []Stmt) error {
	for _, s := range stmts {
		if err := in.exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (in *Interp) exec(s Stmt) error {
	switch st := s.(type) {
	case *ShowStmt:
		v := in.evalExpr(st.Expr)
		fmt.Fprintln(in.out, v.Text())
		in.record(genome.EventScriptShow, v.Text())

	case *VarStmt:
		in.vars[st.Name] = in.evalExpr(st.Expr)

	case *ModeStmt:
		mode := asciiLower(strings.TrimSpace(in.evalExpr(st.Expr).Text()))
		if mode == "" {
			mode = "neutral"
		}
		in.mode = mode
		in.record(genome.EventScriptMode, "mode="+mode)
		fmt.Fprintf(in.out, "[Kolibri] Mode set: %s\n", mode)

	case *TeachStmt:
		lhs := in.evalExpr(st.LHS).Text()
		rhs := in.evalExpr(st.RHS).Text()
		if err := in.teach(lhs, rhs, "user"); err != nil {
			in.reportError(st.Line(), err)
			return nil
		}
		in.record(genome.EventScriptTeach, lhs+" -> "+rhs)

	case *CreateFormulaStmt:
		b, ok := in.binds[st.Name]
		if !ok {
			b = &Binding{Name: st.Name}
			in.binds[st.Name] = b
		}
		b.Expr = st.Expr
		in.record(genome.EventFormulaCreate, st.Name)

	case *EvaluateFormulaStmt:
		b, ok := in.binds[st.Name]
		if !ok {
			in.reportError(st.Line(), fmt.Errorf("%w: %s", ErrUnknownFormula, st.Name))
			return nil
		}
		task := in.evalExpr(st.Task).Text()
		answer := in.evaluateFormula(b, task)
		in.vars[VarItog] = StringValue(answer)
		in.record(genome.EventScriptEval, task)

	case *SaveFormulaStmt:
		if _, ok := in.binds[st.Name]; !ok {
			in.reportError(st.Line(), fmt.Errorf("%w: %s", ErrUnknownFormula, st.Name))
			return nil
		}
		// The gene is already a digit string; it is journaled as-is.
		if in.rec != nil {
			_ = in.rec.Append(genome.EventFormulaSave, []byte(in.pool.Best().Gene.Digits()))
		}

	case *DropFormulaStmt:
		if _, ok := in.binds[st.Name]; !ok {
			in.reportError(st.Line(), fmt.Errorf("%w: %s", ErrUnknownFormula, st.Name))
			return nil
		}
		delete(in.binds, st.Name)
		in.record(genome.EventFormulaDrop, st.Name)

	case *EvolveStmt:
		in.pool.Tick(1)
		best := in.pool.Best().Fitness
		for _, b := range in.binds {
			b.LastFitness = best
		}
		in.record(genome.EventScriptTick, fmt.Sprintf("best=%.4f", best))

	case *CanvasStmt:
		fmt.Fprintln(in.out, "[Kolibri] Canvas placeholder.")
		in.record(genome.EventScriptCanvas, "canvas")

	case *SwarmSendStmt:
		fmt.Fprintf(in.out, "[Kolibri] Swarm send queued: %s\n", st.Name)
		in.record(genome.EventScriptSwarm, st.Name)

	case *IfStmt:
		if in.evalCondition(st.Cond) {
			return in.execBlock(st.Then)
		}
		return in.execBlock(st.Else)

	case *WhileStmt:
		for i := 0; ; i++ {
			if i >= MaxLoopIterations {
				in.reportError(st.Line(), ErrRuntimeLimit)
				return ErrRuntimeLimit
			}
			if !in.evalCondition(st.Cond) {
				break
			}
			if err := in.execBlock(st.Body); err != nil {
				return err
			}
		}
	}
	return nil
}

// teach stores the direct association plus 2-gram and 3-gram harvests of
// the question, deduplicated within the call and bounded.
func (in *Interp) teach(question, answer, source string) error {
	now := in.nowFunc()
	if err := in.pool.AddAssociation(in.table, question, answer, source, now); err != nil {
		return err
	}
	taught := 1

	seen := map[string]bool{question: true}
	tokens := strings.Fields(question)
	for _, n := range []int{2, 3} {
		for i := 0; i+n <= len(tokens); i++ {
			if taught >= maxTaughtPerCall {
				return nil
			}
			gram := strings.Join(tokens[i:i+n], " ")
			if seen[gram] {
				continue
			}
			seen[gram] = true
			if err := in.pool.AddAssociation(in.table, gram, answer, "ngram", now); err != nil {
				return err
			}
			taught++
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Expression evaluation (by inspection of the captured text)
// ---------------------------------------------------------------------------

// evalExpr evaluates a captured expression blob. The blob is inspected,
// never re-parsed: quoted strings, variable names, the фитнес prefix and
// plain numbers are recognized in that order.
func (in *Interp) evalExpr(text string) Value {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return Value{}
	}
	if len(trimmed) >= 2 && trimmed[0] == '"' && trimmed[len(trimmed)-1] == '"' {
		return StringValue(Unquote(trimmed))
	}
	if v, ok := in.vars[trimmed]; ok {
		return v
	}
	if rest, ok := strings.CutPrefix(trimmed, KeywordFitness+" "); ok {
		name := strings.TrimSpace(rest)
		if b, ok := in.binds[name]; ok {
			return NumberValue(b.LastFitness)
		}
		return NumberValue(0)
	}
	if n, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return NumberValue(n)
	}
	return StringValue(trimmed)
}

// comparison operators, longest first so ">=" wins over ">".
var condOps = []string{">=", "<=", "==", "!=", ">", "<"}

// evalCondition finds the first comparison operator left-to-right, splits,
// and compares numerically. Sides that fail to produce numbers make the
// condition false.
func (in *Interp) evalCondition(text string) bool {
	idx, op := -1, ""
	for i := 0; i < len(text); i++ {
		for _, o := range condOps {
			if strings.HasPrefix(text[i:], o) {
				idx, op = i, o
				break
			}
		}
		if idx >= 0 {
			break
		}
	}
	if idx < 0 {
		return false
	}

	a, okA := in.toNumber(in.evalExpr(text[:idx]))
	b, okB := in.toNumber(in.evalExpr(text[idx+len(op):]))
	if !okA || !okB {
		return false
	}

	const eps = 1e-9
	switch op {
	case ">=":
		return a >= b
	case "<=":
		return a <= b
	case ">":
		return a > b
	case "<":
		return a < b
	case "==":
		return diff(a, b) <= eps
	case "!=":
		return diff(a, b) > eps
	}
	return false
}

func diff(a, b float64) float64 {
	if a > b {
		return a - b
	}
	return b - a
}

func (in *Interp) toNumber(v Value) (float64, bool) {
	switch v.Kind {
	case KindNumber:
		return v.Num, true
	case KindString:
		n, err := strconv.ParseFloat(strings.TrimSpace(v.Str), 64)
		return n, err == nil
	default:
		return 0, false
	}
}

// asciiLower folds ASCII letters only; mode tags are ASCII by contract.
func asciiLower(s string) string {
	out := []byte(s)
	for i, c := range out {
		if c >= 'A' && c <= 'Z' {
			out[i] = c + 'a' - 'A'
		}
	}
	return string(out)
}
