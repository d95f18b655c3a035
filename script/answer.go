package script

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/kolibri-node/kolibri/pool"
	"github.com/kolibri-node/kolibri/symbols"
)

// ---------------------------------------------------------------------------
// Answer engine
// ---------------------------------------------------------------------------

// Answer resolves a task through the five-step pipeline: exact association,
// partial association, arithmetic, synthesized answer, numeric fallback.
// Synthesized answers are taught back into the pool so repeated questions
// become exact hits.
func Answer(p *pool.Pool, tbl *symbols.Table, task string, now int64) string {
	task = strings.TrimSpace(task)
	hash := pool.HashString(task)

	// 1. Exact match, the best formula's own list first.
	best := p.Best()
	for i := range best.Associations {
		if best.Associations[i].InputHash == hash {
			return best.Associations[i].Answer
		}
	}
	if a := p.FindExact(hash); a != nil {
		return a.Answer
	}

	// 2. Longest partial overlap across the pool's memory.
	if a := findPartial(p, task); a != nil {
		return a.Answer
	}

	// 3. Plain binary arithmetic.
	if ans, ok := tryArithmetic(task); ok {
		return ans
	}

	// 4. Synthesis, once the pool has learned anything at all.
	if len(p.Associations()) > 0 || len(p.Examples()) > 0 {
		ans := synthesize(best.Gene, task)
		_ = p.AddAssociation(tbl, task, ans, "auto", now)
		return ans
	}

	// 5. Numeric fallback from the best gene.
	guess := pool.Predict(best.Gene, hash)
	return fmt.Sprintf("Kolibri is still learning; numeric guess: %d.", guess)
}

// findPartial returns the association whose question has the longest
// case-insensitive containment overlap with the task, in either direction.
func findPartial(p *pool.Pool, task string) *pool.Association {
	folded := asciiLower(task)
	assocs := p.Associations()
	bestLen := 0
	var hit *pool.Association
	for i := range assocs {
		q := asciiLower(assocs[i].Question)
		if q == "" {
			continue
		}
		overlap := 0
		if strings.Contains(folded, q) {
			overlap = len(q)
		} else if strings.Contains(q, folded) && folded != "" {
			overlap = len(folded)
		}
		if overlap > bestLen {
			bestLen = overlap
			hit = &assocs[i]
		}
	}
	return hit
}

// tryArithmetic handles tasks of the exact shape "A OP B" with OP one of
// + - * x /.
func tryArithmetic(task string) (string, bool) {
	fields := strings.Fields(task)
	if len(fields) != 3 {
		return "", false
	}
	a, errA := strconv.ParseFloat(fields[0], 64)
	b, errB := strconv.ParseFloat(fields[2], 64)
	if errA != nil || errB != nil {
		return "", false
	}

	var out float64
	switch fields[1] {
	case "+":
		out = a + b
	case "-":
		out = a - b
	case "*", "x":
		out = a * b
	case "/":
		if math.Abs(b) < 1e-9 {
			return "", false
		}
		out = a / b
	default:
		return "", false
	}
	return fmt.Sprintf("%.6g", out), true
}

// synthesize builds a deterministic pseudo-sentence from the gene and task:
// 3 to 6 words of 3 to 6 lowercase letters, first letter capitalized.
func synthesize(g pool.Gene, task string) string {
	seed := uint32(pool.HashString(task))
	for _, d := range g {
		seed = seed*31 + uint32(d)
	}
	lcg := func() uint32 {
		seed = seed*1664525 + 1013904223
		return seed >> 16
	}

	words := 3 + int(lcg()%4)
	var sb strings.Builder
	for w := 0; w < words; w++ {
		if w > 0 {
			sb.WriteByte(' ')
		}
		letters := 3 + int(lcg()%4)
		for i := 0; i < letters; i++ {
			c := byte('a' + lcg()%26)
			if w == 0 && i == 0 {
				c = c - 'a' + 'A'
			}
			sb.WriteByte(c)
		}
	}
	sb.WriteByte('.')
	return sb.String()
}

// ---------------------------------------------------------------------------
// Presentation
// ---------------------------------------------------------------------------

// CleanAnswer trims whitespace and guarantees terminal punctuation.
func CleanAnswer(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	switch s[len(s)-1] {
	case '.', '!', '?':
		return s
	}
	return s + "."
}

// ApplyMode decorates a cleaned answer according to the response mode.
func ApplyMode(mode, s string) string {
	switch mode {
	case "journal":
		return "Journal: " + s
	case "emoji":
		return s + " 🙂"
	case "analytics":
		return "• " + s
	default:
		return s
	}
}

// evaluateFormula runs the pipeline for оценить and records the result's
// fitness on the binding.
func (in *Interp) evaluateFormula(b *Binding, task string) string {
	raw := Answer(in.pool, in.table, task, in.nowFunc())
	b.LastFitness = in.pool.Best().Fitness
	return ApplyMode(in.mode, CleanAnswer(raw))
}
