package node

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"

	"github.com/kolibri-node/kolibri/digits"
	"github.com/kolibri-node/kolibri/genome"
	"github.com/kolibri-node/kolibri/pool"
	"github.com/kolibri-node/kolibri/script"
	"github.com/kolibri-node/kolibri/symbols"
)

var log = commonlog.GetLogger("kolibri.node")

func nowNS() int64 { return time.Now().UnixNano() }

// Options configures a node at open time. Zero values fall back to the
// defaults: a random UUID identity, seed 0 and the standing controls.
type Options struct {
	ID         string
	Seed       int64
	GenomePath string
	Key        []byte
	Controls   Controls
}

// Node owns one genome journal, one symbol table and one formula pool.
// It is not safe for concurrent use; callers serialize access.
type Node struct {
	ID       string
	journal  *genome.Journal
	table    *symbols.Table
	pool     *pool.Pool
	controls Controls
	mode     string
}

// Open loads (or creates) the journal at opts.GenomePath, rebuilds the
// symbol table from SYMBOL_MAP history, seeds the defaults and records a
// BOOT event.
func Open(opts Options) (*Node, error) {
	id := opts.ID
	if id == "" {
		id = uuid.NewString()
	}

	j, err := genome.Open(opts.GenomePath, opts.Key)
	if err != nil {
		return nil, fmt.Errorf("node: open genome: %w", err)
	}

	table := symbols.New(j)
	if err := table.Load(j); err != nil {
		j.Close()
		return nil, fmt.Errorf("node: load symbols: %w", err)
	}
	if err := table.SeedDefaults(); err != nil {
		j.Close()
		return nil, fmt.Errorf("node: seed symbols: %w", err)
	}

	n := &Node{
		ID:       id,
		journal:  j,
		table:    table,
		pool:     pool.New(opts.Seed),
		controls: opts.Controls,
		mode:     "neutral",
	}
	n.controls.Apply(n.pool)

	if err := n.record(genome.EventBoot, "node="+id); err != nil {
		j.Close()
		return nil, err
	}
	log.Infof("node %s up, genome at block %d", id, j.NextIndex())
	return n, nil
}

// OpenFromConfig opens a node from a kolibri.toml configuration.
func OpenFromConfig(cfg *Config) (*Node, error) {
	key, err := genome.LoadKey(cfg.Genome.Key, cfg.Genome.KeyFile)
	if err != nil {
		return nil, err
	}
	return Open(Options{
		ID:         cfg.Node.ID,
		Seed:       cfg.Node.Seed,
		GenomePath: cfg.GenomePath(),
		Key:        key,
		Controls:   resolveControls(cfg.Controls),
	})
}

// Close releases the journal.
func (n *Node) Close() error {
	return n.journal.Close()
}

// Pool exposes the formula pool for inspection.
func (n *Node) Pool() *pool.Pool { return n.pool }

// Symbols exposes the symbol table.
func (n *Node) Symbols() *symbols.Table { return n.table }

// Journal exposes the genome journal.
func (n *Node) Journal() *genome.Journal { return n.journal }

// Mode returns the current response mode.
func (n *Node) Mode() string { return n.mode }

// SetMode switches the response mode; empty resets to neutral.
func (n *Node) SetMode(mode string) {
	mode = strings.ToLower(strings.TrimSpace(mode))
	if mode == "" {
		mode = "neutral"
	}
	n.mode = mode
	_ = n.record(genome.EventScriptMode, "mode="+mode)
}

// record text-encodes a message and appends it to the journal.
func (n *Node) record(event, text string) error {
	ds, err := digits.EncodeText(text)
	if err != nil {
		return fmt.Errorf("node: encode event payload: %w", err)
	}
	if err := n.journal.Append(event, []byte(ds)); err != nil {
		return fmt.Errorf("node: journal %s: %w", event, err)
	}
	return nil
}

// Ask resolves a task through the answer pipeline and applies the current
// response mode.
func (n *Node) Ask(task string) (string, error) {
	if err := n.record(genome.EventAsk, task); err != nil {
		return "", err
	}
	raw := script.Answer(n.pool, n.table, task, nowNS())
	return script.ApplyMode(n.mode, script.CleanAnswer(raw)), nil
}

// Teach stores a question/answer association.
func (n *Node) Teach(question, answer string) error {
	if err := n.pool.AddAssociation(n.table, question, answer, "user", nowNS()); err != nil {
		return fmt.Errorf("node: teach: %w", err)
	}
	return n.record(genome.EventTeach, question+" -> "+answer)
}

// Note journals free-form text without touching the pool.
func (n *Node) Note(text string) error {
	return n.record(genome.EventNote, text)
}

// Evolve runs generations of the pool and journals the result.
func (n *Node) Evolve(generations int) error {
	if generations < 1 {
		generations = 1
	}
	n.pool.Tick(generations)
	return n.record(genome.EventEvolve,
		fmt.Sprintf("gen=%d best=%.4f", generations, n.pool.Best().Fitness))
}

// Feedback rates the current best formula in [-1, 1].
func (n *Node) Feedback(delta float64) error {
	if err := n.pool.FeedbackGene(n.pool.Best().Gene, delta); err != nil {
		return fmt.Errorf("node: feedback: %w", err)
	}
	return n.record(genome.EventUserFeedback, fmt.Sprintf("delta=%.3f", delta))
}

// ImportRule adopts a migrated gene from a peer.
func (n *Node) ImportRule(geneDigits string, fitness float64, origin string) error {
	g, err := pool.ParseGene(geneDigits)
	if err != nil {
		return fmt.Errorf("node: import rule: %w", err)
	}
	n.pool.AdoptGene(g, fitness)
	log.Infof("imported rule from %s (fitness %.4f)", origin, fitness)
	return n.record(genome.EventImport, "origin="+origin)
}

// DistillRule extracts the best gene for migration to peers.
func (n *Node) DistillRule() (geneDigits string, fitness float64, err error) {
	best := n.pool.Best()
	if err := n.record(genome.EventSync, fmt.Sprintf("best=%.4f", best.Fitness)); err != nil {
		return "", 0, err
	}
	return best.Gene.Digits(), best.Fitness, nil
}

// RunScript parses and executes KolibriScript source, writing program
// output to out. Parse diagnostics abort before execution.
func (n *Node) RunScript(source string, out io.Writer) error {
	prog, diags := script.Parse(source)
	if len(diags) > 0 {
		return fmt.Errorf("node: script: %s", strings.Join(diags, "; "))
	}
	in := script.New(n.pool, n.table, n.journal, out)
	return in.Run(prog)
}

// RunScriptFile executes a KolibriScript file, the bootstrap path.
func (n *Node) RunScriptFile(path string, out io.Writer) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("node: read script: %w", err)
	}
	return n.RunScript(string(src), out)
}

// Health is the node's status snapshot.
type Health struct {
	Status       string  `json:"status"`
	NodeID       string  `json:"node_id"`
	GenomeBlocks uint64  `json:"genome_blocks"`
	BestFitness  float64 `json:"best_fitness"`
	Associations int     `json:"associations"`
	Symbols      int     `json:"symbols"`
	Mode         string  `json:"mode"`
}

// Health reports the current status snapshot.
func (n *Node) Health() Health {
	return Health{
		Status:       "ok",
		NodeID:       n.ID,
		GenomeBlocks: n.journal.NextIndex(),
		BestFitness:  n.pool.Best().Fitness,
		Associations: len(n.pool.Associations()),
		Symbols:      n.table.Count(),
		Mode:         n.mode,
	}
}

// HealthJSON renders the health snapshot as a single JSON line.
func (n *Node) HealthJSON() (string, error) {
	data, err := json.Marshal(n.Health())
	if err != nil {
		return "", err
	}
	return string(data), nil
}
