package pool

import (
	"errors"
	"math"
	"testing"

	"github.com/kolibri-node/kolibri/symbols"
)

func geneFromDigits(digits ...byte) Gene {
	var g Gene
	copy(g[:], digits)
	return g
}

func TestPredictOps(t *testing.T) {
	tests := []struct {
		name  string
		gene  Gene
		input int32
		want  int32
	}{
		// op 0 linear: slope=+12, bias=+3 -> 12x+3
		{"linear", geneFromDigits(0, 0, 1, 2, 0, 0, 3), 5, 63},
		// odd sign digit flips negative
		{"negative slope", geneFromDigits(0, 1, 1, 2, 0, 0, 3), 5, -57},
		// op 1 inverse: slope*x - bias
		{"inverse", geneFromDigits(1, 0, 1, 0, 0, 0, 7), 4, 33},
		// op 2 residual: (slope*x) mod aux + bias, aux=5, slope=3, bias=1
		{"residual", geneFromDigits(2, 0, 0, 3, 0, 0, 1, 0, 0, 5), 4, 3},
		// aux 0 behaves as 1
		{"residual zero aux", geneFromDigits(2, 0, 0, 3, 0, 0, 1, 0, 0, 0), 4, 1},
		// op 3 quadratic: slope*x^2 + bias
		{"quadratic", geneFromDigits(3, 0, 0, 2, 0, 0, 1), 6, 73},
	}
	for _, tc := range tests {
		if got := Predict(tc.gene, tc.input); got != tc.want {
			t.Errorf("%s: Predict = %d, want %d", tc.name, got, tc.want)
		}
	}
}

func TestPredictClampsToInt32(t *testing.T) {
	// Quadratic with max slope on a large input overflows int32.
	g := geneFromDigits(3, 0, 9, 9, 0, 9, 9)
	if got := Predict(g, math.MaxInt32); got != math.MaxInt32 {
		t.Errorf("Predict overflow = %d, want MaxInt32", got)
	}
	gneg := geneFromDigits(3, 1, 9, 9, 1, 9, 9)
	if got := Predict(gneg, math.MaxInt32); got != math.MinInt32 {
		t.Errorf("Predict underflow = %d, want MinInt32", got)
	}
}

func TestPredictIsPure(t *testing.T) {
	g := geneFromDigits(3, 0, 4, 2, 1, 0, 5, 0, 1, 7)
	first := Predict(g, 123)
	for i := 0; i < 10; i++ {
		if got := Predict(g, 123); got != first {
			t.Fatalf("Predict not deterministic: %d then %d", first, got)
		}
	}
}

func TestDiversityAndPenalty(t *testing.T) {
	var zeros Gene
	if d := diversity(zeros); d != 0.1 {
		t.Errorf("diversity(zeros) = %v, want 0.1", d)
	}
	if p := digitPenalty(zeros); p != 0 {
		t.Errorf("digitPenalty(zeros) = %v, want 0", p)
	}
	var nines Gene
	for i := range nines {
		nines[i] = 9
	}
	if p := digitPenalty(nines); math.Abs(p-0.288) > 1e-12 {
		t.Errorf("digitPenalty(nines) = %v, want 0.288", p)
	}
}

func TestNewPoolIsDeterministic(t *testing.T) {
	a := New(42)
	b := New(42)
	for i := range a.formulas {
		if a.formulas[i].Gene != b.formulas[i].Gene {
			t.Fatalf("formula %d differs across equal seeds", i)
		}
	}
	c := New(43)
	same := true
	for i := range a.formulas {
		if a.formulas[i].Gene != c.formulas[i].Gene {
			same = false
			break
		}
	}
	if same {
		t.Error("different seeds produced identical pools")
	}
}

func TestTickDeterminism(t *testing.T) {
	run := func() Gene {
		p := New(7)
		p.AddExample(1, 5)
		p.AddExample(2, 8)
		p.AddExample(3, 11)
		p.Tick(5)
		return p.Best().Gene
	}
	if run() != run() {
		t.Error("Tick is not reproducible for a fixed seed")
	}
}

func TestTickEmptyPoolDoesNotCrash(t *testing.T) {
	p := New(1)
	p.Tick(3)
	if p.Best().Fitness != 0 {
		t.Errorf("best fitness with no examples = %v, want 0", p.Best().Fitness)
	}
}

func TestTickImprovesFitness(t *testing.T) {
	p := New(99)
	// Target: y = 3x + 1.
	for x := int32(0); x < 8; x++ {
		p.AddExample(x, 3*x+1)
	}
	p.Tick(1)
	first := p.Best().Fitness
	p.Tick(40)
	if p.Best().Fitness < first {
		t.Errorf("fitness regressed: %v -> %v", first, p.Best().Fitness)
	}
	if p.Best().Fitness <= 0 {
		t.Errorf("best fitness = %v, want > 0", p.Best().Fitness)
	}
}

func TestTickCopiesAssociationsIntoTop(t *testing.T) {
	p := New(3)
	tbl := symbols.New(nil)
	p.AddAssociation(tbl, "2", "4", "user", 1)
	p.Tick(1)
	best := p.Best()
	if best.Fitness != 1.0 {
		t.Errorf("best fitness after association tick = %v, want 1.0", best.Fitness)
	}
	if len(best.Associations) != 1 || best.Associations[0].Answer != "4" {
		t.Errorf("best associations = %+v", best.Associations)
	}
}

func TestProfileCounters(t *testing.T) {
	p := New(5)
	p.Tick(3)
	prof := p.Profile()
	if prof.GenerationSteps != 3 {
		t.Errorf("GenerationSteps = %d, want 3", prof.GenerationSteps)
	}
	if prof.EvaluationCalls != 4 {
		t.Errorf("EvaluationCalls = %d, want 4", prof.EvaluationCalls)
	}
}

func TestAddExampleBound(t *testing.T) {
	p := New(2)
	for i := 0; i < MaxExamples; i++ {
		if err := p.AddExample(int32(i), int32(i)); err != nil {
			t.Fatalf("AddExample[%d]: %v", i, err)
		}
	}
	if err := p.AddExample(1, 1); !errors.Is(err, ErrFullDataset) {
		t.Errorf("AddExample past bound = %v, want ErrFullDataset", err)
	}
}

func TestAddAssociationOverwriteAndEviction(t *testing.T) {
	p := New(2)
	tbl := symbols.New(nil)

	p.AddAssociation(tbl, "q", "a1", "user", 1)
	p.AddAssociation(tbl, "q", "a2", "user", 2)
	if n := len(p.Associations()); n != 1 {
		t.Fatalf("associations after overwrite = %d, want 1", n)
	}
	if p.Associations()[0].Answer != "a2" {
		t.Errorf("overwrite kept answer %q, want a2", p.Associations()[0].Answer)
	}

	p2 := New(2)
	for i := 0; i < MaxAssociations+4; i++ {
		q := string(rune('a'+i%26)) + string(rune('0'+i/26))
		p2.AddAssociation(tbl, q, "x", "user", int64(i))
	}
	if n := len(p2.Associations()); n != MaxAssociations {
		t.Errorf("associations after eviction = %d, want %d", n, MaxAssociations)
	}
	// FIFO: the oldest entries are gone.
	if p2.Associations()[0].Timestamp != 4 {
		t.Errorf("oldest surviving timestamp = %d, want 4", p2.Associations()[0].Timestamp)
	}
}

func TestAssociationDigitEncoding(t *testing.T) {
	p := New(2)
	tbl := symbols.New(nil)
	p.AddAssociation(tbl, "ab", "c", "user", 1)
	a := p.Associations()[0]
	if a.QuestionDigits != "000001" {
		t.Errorf("QuestionDigits = %q, want 000001", a.QuestionDigits)
	}
	if a.AnswerDigits != "002" {
		t.Errorf("AnswerDigits = %q, want 002", a.AnswerDigits)
	}
	if a.InputHash < 0 || a.OutputHash < 0 {
		t.Errorf("hashes not folded non-negative: %d %d", a.InputHash, a.OutputHash)
	}
}

func TestApplyPrefersAssociation(t *testing.T) {
	p := New(2)
	f := &Formula{}
	f.Associations = append(f.Associations, Association{
		InputHash:  HashString("2"),
		OutputHash: HashString("4"),
	})
	if got := p.Apply(f, HashString("2")); got != HashString("4") {
		t.Errorf("Apply association hit = %d, want output hash", got)
	}
	// A miss falls back to the numeric predictor.
	f2 := &Formula{Gene: geneFromDigits(0, 0, 0, 2, 0, 0, 1)}
	if got := p.Apply(f2, 10); got != 21 {
		t.Errorf("Apply numeric fallback = %d, want 21", got)
	}
}

func TestFeedbackBoundsAndBubble(t *testing.T) {
	p := New(11)
	p.Tick(1)
	gene := p.formulas[Size-1].Gene

	for i := 0; i < 10; i++ {
		if err := p.FeedbackGene(gene, 0.4); err != nil {
			t.Fatalf("FeedbackGene: %v", err)
		}
	}
	// Find the formula wherever it bubbled to.
	var f *Formula
	for i := range p.formulas {
		if p.formulas[i].Gene == gene {
			f = &p.formulas[i]
			break
		}
	}
	if f == nil {
		t.Fatal("fed-back formula vanished")
	}
	if f.Feedback < -1 || f.Feedback > 1 {
		t.Errorf("feedback out of bounds: %v", f.Feedback)
	}
	if f.Fitness < 0 || f.Fitness > 1 {
		t.Errorf("fitness out of bounds: %v", f.Fitness)
	}
	// With cumulative positive deltas the formula reaches the top.
	if p.formulas[0].Gene != gene {
		t.Errorf("positive feedback did not bubble formula to the top")
	}
}

func TestFeedbackUnknownGene(t *testing.T) {
	p := New(11)
	var g Gene
	for i := range g {
		g[i] = 9 // vanishingly unlikely to occur in the random pool
	}
	before := make([]Formula, Size)
	copy(before, p.formulas)
	if err := p.FeedbackGene(g, 0.5); !errors.Is(err, ErrNotFound) {
		t.Fatalf("FeedbackGene unknown = %v, want ErrNotFound", err)
	}
	for i := range before {
		if before[i].Gene != p.formulas[i].Gene || before[i].Fitness != p.formulas[i].Fitness {
			t.Fatalf("failed feedback altered state at slot %d", i)
		}
	}
}

func TestTunableSetters(t *testing.T) {
	p := New(1)

	p.SetTemperature(math.NaN())
	if p.Temperature() != 1.0 {
		t.Errorf("NaN temperature = %v, want 1.0", p.Temperature())
	}
	p.SetTemperature(5)
	if p.Temperature() != 2.0 {
		t.Errorf("high temperature = %v, want 2.0", p.Temperature())
	}
	p.SetTemperature(0.01)
	if p.Temperature() != 0.1 {
		t.Errorf("low temperature = %v, want 0.1", p.Temperature())
	}

	p.SetTopK(0)
	if p.TopK() != Size {
		t.Errorf("TopK(0) = %d, want %d", p.TopK(), Size)
	}
	p.SetTopK(Size + 5)
	if p.TopK() != Size {
		t.Errorf("TopK(oversize) = %d, want %d", p.TopK(), Size)
	}
	p.SetTopK(4)
	if p.TopK() != 4 {
		t.Errorf("TopK(4) = %d", p.TopK())
	}

	p.SetLambdaB(math.NaN())
	p.SetLambdaD(-3)
	if p.lambdaB != 0 || p.lambdaD != 0 {
		t.Errorf("lambda coercion failed: %v %v", p.lambdaB, p.lambdaD)
	}

	p.SetTargetD(7)
	if !p.hasTargetD || p.targetD != 1 {
		t.Errorf("targetD clamp failed: %v %v", p.hasTargetD, p.targetD)
	}
	p.SetTargetD(math.NaN())
	if p.hasTargetD {
		t.Error("NaN targetD did not unset")
	}
}

func TestHashStringFoldsNonNegative(t *testing.T) {
	for _, s := range []string{"", "a", "hello", "Kolibri", "\xff\xfe"} {
		if h := HashString(s); h < 0 {
			t.Errorf("HashString(%q) = %d, want non-negative", s, h)
		}
	}
}
