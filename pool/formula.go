// Package pool implements the formula pool: a fixed population of digit
// genes under generational evolution, with multi-lane scoring, feedback,
// and an associative memory mapping question hashes to answers.
package pool

import (
	"fmt"
	"math"
)

// Fixed resource bounds.
const (
	Size                   = 24 // population size
	GeneLen                = 32 // digits per gene
	MaxExamples            = 64 // numeric training pairs
	MaxAssociations        = 64 // pool-level associations
	MaxFormulaAssociations = 32 // associations carried by one formula
	laneGroup              = 8  // evaluation group width for coherence
)

// Gene is an ordered sequence of decimal digits, each in [0,9].
type Gene [GeneLen]byte

// Association maps a question to an answer, with digit-encoded sides and
// folded FNV-1a hashes for fast lookup.
type Association struct {
	Question       string
	Answer         string
	Source         string
	Timestamp      int64
	QuestionDigits string
	AnswerDigits   string
	InputHash      int32
	OutputHash     int32
}

// Formula is one population slot: a gene plus its evaluation state.
type Formula struct {
	Gene         Gene
	Fitness      float64 // in [0,1]
	Feedback     float64 // in [-1,1]
	DriftB       float64
	DriftD       float64
	Phase        float64 // in [0, 2π)
	Associations []Association
}

// Example is one numeric training pair.
type Example struct {
	Input  int32
	Target int32
}

// ---------------------------------------------------------------------------
// Gene decoding and numeric prediction
// ---------------------------------------------------------------------------

// signedPair decodes a sign digit and two magnitude digits to [-99, 99].
// An odd sign digit flips the value negative.
func signedPair(sign, tens, ones byte) int64 {
	v := int64(tens)*10 + int64(ones)
	if sign%2 == 1 {
		return -v
	}
	return v
}

// Predict evaluates the gene's formula on an integer input. The first ten
// digits select the operator and its coefficients; the result is clamped
// to the signed 32-bit range.
func Predict(g Gene, input int32) int32 {
	op := g[0] % 4
	slope := signedPair(g[1], g[2], g[3])
	bias := signedPair(g[4], g[5], g[6])
	aux := signedPair(g[7], g[8], g[9])

	x := int64(input)
	var y int64
	switch op {
	case 0: // linear
		y = slope*x + bias
	case 1: // inverse
		y = slope*x - bias
	case 2: // residual
		m := aux
		if m == 0 {
			m = 1
		}
		y = (slope*x)%m + bias
	case 3: // quadratic
		// slope*x*x overflows int64 for large |x|; float64 keeps the sign
		// and stays exact for magnitudes inside the int32 range.
		return clampFloat(float64(slope)*float64(x)*float64(x) + float64(bias))
	}
	return clampInt32(y)
}

func clampFloat(v float64) int32 {
	if v > math.MaxInt32 {
		return math.MaxInt32
	}
	if v < math.MinInt32 {
		return math.MinInt32
	}
	return int32(v)
}

func clampInt32(v int64) int32 {
	if v > math.MaxInt32 {
		return math.MaxInt32
	}
	if v < math.MinInt32 {
		return math.MinInt32
	}
	return int32(v)
}

// Digits renders the gene as an ASCII digit string.
func (g Gene) Digits() string {
	out := make([]byte, GeneLen)
	for i, d := range g {
		out[i] = '0' + d
	}
	return string(out)
}

// ParseGene decodes a gene from its digit-string form.
func ParseGene(s string) (Gene, error) {
	var g Gene
	if len(s) != GeneLen {
		return g, fmt.Errorf("pool: gene must be %d digits, got %d", GeneLen, len(s))
	}
	for i := 0; i < GeneLen; i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return g, fmt.Errorf("pool: gene digit %d is %q", i, c)
		}
		g[i] = c - '0'
	}
	return g, nil
}

// ---------------------------------------------------------------------------
// Per-formula metrics
// ---------------------------------------------------------------------------

// digitPenalty is the sparsity term: 0.001 times the sum of non-zero digits.
func digitPenalty(g Gene) float64 {
	sum := 0
	for _, d := range g {
		sum += int(d)
	}
	return 0.001 * float64(sum)
}

// diversity is the fraction of distinct digit values present in the gene.
func diversity(g Gene) float64 {
	var seen [10]bool
	n := 0
	for _, d := range g {
		if !seen[d] {
			seen[d] = true
			n++
		}
	}
	return float64(n) / 10
}

// phase derives the formula's angle from an FNV-1a hash of the gene with
// every digit incremented by one.
func phase(g Gene) float64 {
	var shifted [GeneLen]byte
	for i, d := range g {
		shifted[i] = d + 1
	}
	h := fnv1a32(shifted[:])
	return 2 * math.Pi * float64(h%360) / 360
}

// topo is the fraction of digit positions at which two genes match.
func topo(a, b Gene) float64 {
	n := 0
	for i := 0; i < GeneLen; i++ {
		if a[i] == b[i] {
			n++
		}
	}
	return float64(n) / GeneLen
}

// fnv1a32 is the 32-bit FNV-1a hash.
func fnv1a32(data []byte) uint32 {
	h := uint32(2166136261)
	for _, b := range data {
		h ^= uint32(b)
		h *= 16777619
	}
	return h
}

// FoldHash folds a 32-bit hash to a non-negative int32.
func FoldHash(h uint32) int32 {
	return int32(h & 0x7fffffff)
}

// HashString returns the folded FNV-1a hash of a string.
func HashString(s string) int32 {
	return FoldHash(fnv1a32([]byte(s)))
}

func clamp01(v float64) float64 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
