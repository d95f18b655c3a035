package pool

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"time"
)

var (
	// ErrFullDataset indicates the numeric example store is at capacity.
	ErrFullDataset = errors.New("pool: example dataset full")
	// ErrNotFound indicates no formula matches the requested gene.
	ErrNotFound = errors.New("pool: formula not found")
)

// Profile holds the pool's work counters.
type Profile struct {
	GenerationSteps  uint64
	EvaluationCalls  uint64
	LastGenerationMS float64
}

// Pool is the fixed-size population plus shared training data and tunables.
// It is exclusively owned by one node; no internal locking.
type Pool struct {
	rng      *rand.Rand
	formulas []Formula

	examples     []Example
	associations []Association

	lambdaB, lambdaD float64
	targetB, targetD float64
	hasTargetB       bool
	hasTargetD       bool
	coherenceGain    float64
	temperature      float64
	topK             int

	profile Profile
}

// New creates a pool of Size random genes. Given the same seed and the
// same sequence of operations, the evolved population is reproducible.
func New(seed int64) *Pool {
	p := &Pool{
		rng:         rand.New(rand.NewSource(seed)),
		formulas:    make([]Formula, Size),
		temperature: 1.0,
		topK:        Size,
	}
	for i := range p.formulas {
		for d := 0; d < GeneLen; d++ {
			p.formulas[i].Gene[d] = byte(p.rng.Intn(10))
		}
	}
	return p
}

// Profile returns a copy of the work counters.
func (p *Pool) Profile() Profile { return p.profile }

// Formulas returns the population slice for read-only inspection.
func (p *Pool) Formulas() []Formula { return p.formulas }

// Best returns a pointer to the top-ranked formula.
func (p *Pool) Best() *Formula { return &p.formulas[0] }

// AddExample appends a numeric training pair.
func (p *Pool) AddExample(input, target int32) error {
	if len(p.examples) >= MaxExamples {
		return ErrFullDataset
	}
	p.examples = append(p.examples, Example{Input: input, Target: target})
	return nil
}

// Examples returns the numeric training pairs.
func (p *Pool) Examples() []Example { return p.examples }

// Associations returns the pool-level association list, oldest first.
func (p *Pool) Associations() []Association { return p.associations }

// ---------------------------------------------------------------------------
// Tunables. Setters clamp and coerce NaNs defensively.
// ---------------------------------------------------------------------------

// SetLambdaB sets the baseline-drift penalty weight.
func (p *Pool) SetLambdaB(v float64) {
	if math.IsNaN(v) || v < 0 {
		v = 0
	}
	p.lambdaB = v
}

// SetLambdaD sets the diversity-drift penalty weight.
func (p *Pool) SetLambdaD(v float64) {
	if math.IsNaN(v) || v < 0 {
		v = 0
	}
	p.lambdaD = v
}

// SetTargetB sets the baseline target. NaN unsets it.
func (p *Pool) SetTargetB(v float64) {
	if math.IsNaN(v) {
		p.hasTargetB = false
		return
	}
	p.targetB = v
	p.hasTargetB = true
}

// SetTargetD sets the diversity target, clamped to [0,1]. NaN unsets it.
func (p *Pool) SetTargetD(v float64) {
	if math.IsNaN(v) {
		p.hasTargetD = false
		return
	}
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	p.targetD = v
	p.hasTargetD = true
}

// SetCoherenceGain sets the in-group coherence weight.
func (p *Pool) SetCoherenceGain(v float64) {
	if math.IsNaN(v) || v < 0 {
		v = 0
	}
	p.coherenceGain = v
}

// SetTemperature sets the mutation temperature, clamped to [0.1, 2.0].
func (p *Pool) SetTemperature(v float64) {
	if math.IsNaN(v) || v <= 0 {
		v = 1.0
	}
	if v < 0.1 {
		v = 0.1
	}
	if v > 2.0 {
		v = 2.0
	}
	p.temperature = v
}

// SetTopK bounds the parent selection window. Zero or out-of-range values
// reset it to the pool size.
func (p *Pool) SetTopK(k int) {
	if k <= 0 || k > Size {
		k = Size
	}
	p.topK = k
}

// Temperature returns the current mutation temperature.
func (p *Pool) Temperature() float64 { return p.temperature }

// TopK returns the current parent selection bound.
func (p *Pool) TopK() int { return p.topK }

// CoherenceGain returns the current in-group coherence weight.
func (p *Pool) CoherenceGain() float64 { return p.coherenceGain }

// ---------------------------------------------------------------------------
// Evaluation
// ---------------------------------------------------------------------------

// baselineB is the user target if set, else the mean of the training targets.
func (p *Pool) baselineB() float64 {
	if p.hasTargetB {
		return p.targetB
	}
	if len(p.examples) == 0 {
		return 0
	}
	sum := 0.0
	for _, ex := range p.examples {
		sum += float64(ex.Target)
	}
	return sum / float64(len(p.examples))
}

// baselineD is the user diversity target if set, else 0.5.
func (p *Pool) baselineD() float64 {
	if p.hasTargetD {
		return p.targetD
	}
	return 0.5
}

// laneMetrics holds the intermediate values for one formula in a sweep.
type laneMetrics struct {
	base   float64
	driftB float64
	driftD float64
	phase  float64
}

// measure computes the unadjusted metrics for one formula.
func (p *Pool) measure(f *Formula) laneMetrics {
	m := laneMetrics{phase: phase(f.Gene)}

	div := diversity(f.Gene)
	m.driftD = math.Abs(div - p.baselineD())

	if len(p.examples) == 0 {
		return m
	}
	var errSum, predSum float64
	for _, ex := range p.examples {
		pred := Predict(f.Gene, ex.Input)
		errSum += math.Abs(float64(ex.Target) - float64(pred))
		predSum += float64(pred)
	}
	m.base = 1 / (1 + errSum + digitPenalty(f.Gene))
	m.driftB = math.Abs(predSum/float64(len(p.examples)) - p.baselineB())
	return m
}

// evaluate performs one full population sweep: per-lane scoring with
// coherence shaping inside each group of up to laneGroup formulas.
func (p *Pool) evaluate() {
	metrics := make([]laneMetrics, len(p.formulas))
	for i := range p.formulas {
		metrics[i] = p.measure(&p.formulas[i])
	}

	for start := 0; start < len(p.formulas); start += laneGroup {
		end := start + laneGroup
		if end > len(p.formulas) {
			end = len(p.formulas)
		}
		for i := start; i < end; i++ {
			f := &p.formulas[i]
			m := metrics[i]
			score := m.base -
				p.lambdaB*math.Max(0, m.driftB) -
				p.lambdaD*math.Max(0, m.driftD) +
				f.Feedback
			if p.coherenceGain > 0 {
				coh := 0.0
				for j := start; j < end; j++ {
					if j == i {
						continue
					}
					coh += math.Cos(metrics[j].phase-m.phase) * topo(f.Gene, p.formulas[j].Gene)
				}
				score += p.coherenceGain * coh
			}
			f.Fitness = clamp01(score)
			f.DriftB = m.driftB
			f.DriftD = m.driftD
			f.Phase = m.phase
		}
	}
	p.profile.EvaluationCalls++
}

// sortByFitness orders the population best-first.
func (p *Pool) sortByFitness() {
	sort.SliceStable(p.formulas, func(i, j int) bool {
		return p.formulas[i].Fitness > p.formulas[j].Fitness
	})
}

// ---------------------------------------------------------------------------
// Reproduction
// ---------------------------------------------------------------------------

// reproduce overwrites every non-elite slot with a mutated crossover of
// two parents drawn from the selection window.
func (p *Pool) reproduce() {
	elite := Size / 3
	if elite < 1 {
		elite = 1
	}
	parentPool := p.topK
	if parentPool < elite {
		parentPool = elite
	}
	if parentPool > Size {
		parentPool = Size
	}

	temp := p.temperature
	if temp < 0.1 {
		temp = 0.1
	}
	if temp > 2.0 {
		temp = 2.0
	}
	mutations := int(math.Round(temp * 2))

	for i := elite; i < Size; i++ {
		a := p.rng.Intn(parentPool)
		b := p.rng.Intn(parentPool)

		child := &p.formulas[i]
		copy(child.Gene[:GeneLen/2], p.formulas[a].Gene[:GeneLen/2])
		copy(child.Gene[GeneLen/2:], p.formulas[b].Gene[GeneLen/2:])
		for m := 0; m < mutations; m++ {
			child.Gene[p.rng.Intn(GeneLen)] = byte(p.rng.Intn(10))
		}

		child.Fitness = 0
		child.Feedback = 0
		child.DriftB = 0
		child.DriftD = 0
		child.Phase = 0
		child.Associations = nil
	}
}

// Tick runs n generations of evaluate-sort-reproduce, then a final
// evaluation pass. When associations exist they are copied into the top
// formulas, which are pinned to full fitness.
func (p *Pool) Tick(n int) {
	start := time.Now()
	for g := 0; g < n; g++ {
		p.evaluate()
		p.sortByFitness()
		p.reproduce()
	}
	p.evaluate()
	p.sortByFitness()
	p.profile.GenerationSteps += uint64(n)
	p.profile.LastGenerationMS = float64(time.Since(start).Microseconds()) / 1000

	if len(p.associations) > 0 {
		top := 3
		if len(p.associations) < top {
			top = len(p.associations)
		}
		for i := 0; i < top; i++ {
			p.formulas[i].Associations = append([]Association(nil), p.associations...)
			p.formulas[i].Fitness = 1.0
		}
		p.sortByFitness()
	}
}

// Apply evaluates a formula on an input: an exact association-hash hit
// returns the stored output hash, otherwise the numeric predictor runs.
func (p *Pool) Apply(f *Formula, input int32) int32 {
	for i := range f.Associations {
		if f.Associations[i].InputHash == input {
			return f.Associations[i].OutputHash
		}
	}
	return Predict(f.Gene, input)
}

// AdoptGene installs a migrated gene over the worst slot and bubbles it
// into fitness order. Duplicates of a resident gene are ignored.
func (p *Pool) AdoptGene(g Gene, fitness float64) {
	for i := range p.formulas {
		if p.formulas[i].Gene == g {
			return
		}
	}
	idx := len(p.formulas) - 1
	p.formulas[idx] = Formula{Gene: g, Fitness: clamp01(fitness)}
	for idx > 0 && p.formulas[idx].Fitness > p.formulas[idx-1].Fitness {
		p.formulas[idx], p.formulas[idx-1] = p.formulas[idx-1], p.formulas[idx]
		idx--
	}
}

// ---------------------------------------------------------------------------
// Feedback
// ---------------------------------------------------------------------------

// FeedbackGene applies a user rating delta to the formula whose gene
// matches exactly, then bubbles the entry through its sorted neighbors.
func (p *Pool) FeedbackGene(g Gene, delta float64) error {
	idx := -1
	for i := range p.formulas {
		if p.formulas[i].Gene == g {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("%w: no gene match for feedback", ErrNotFound)
	}

	f := &p.formulas[idx]
	f.Feedback = clampSigned(f.Feedback + delta)
	f.Fitness = clamp01(f.Fitness + delta)

	// Bubble pass, not a full sort: the population is assumed sorted.
	if delta > 0 {
		for idx > 0 && p.formulas[idx].Fitness > p.formulas[idx-1].Fitness {
			p.formulas[idx], p.formulas[idx-1] = p.formulas[idx-1], p.formulas[idx]
			idx--
		}
	} else if delta < 0 {
		for idx < Size-1 && p.formulas[idx].Fitness < p.formulas[idx+1].Fitness {
			p.formulas[idx], p.formulas[idx+1] = p.formulas[idx+1], p.formulas[idx]
			idx++
		}
	}
	return nil
}

func clampSigned(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	if v < -1 {
		return -1
	}
	if v > 1 {
		return 1
	}
	return v
}
