// Kolibri CLI - the main entry point for running a Kolibri node
package main

import (
	"bufio"
	"flag"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/kolibri-node/kolibri/genome"
	"github.com/kolibri-node/kolibri/node"
	"github.com/kolibri-node/kolibri/server"
	"github.com/kolibri-node/kolibri/swarm"
)

func main() {
	seed := flag.Int64("seed", 0, "Deterministic seed for the formula pool")
	nodeID := flag.String("node-id", "", "Node identity (random UUID when empty)")
	genomePath := flag.String("genome", "kolibri.genome", "Path to the genome journal")
	bootstrap := flag.String("bootstrap", "", "KolibriScript file to run at startup")
	hmacKey := flag.String("hmac-key", "", "HMAC key: literal value, or @PATH to read from a file")
	verifyGenome := flag.Bool("verify-genome", false, "Verify the genome file and exit")
	autoEvolveMS := flag.Int("auto-evolve-ms", 0, "Run one evolution generation every N milliseconds")
	autoSyncMS := flag.Int("auto-sync-ms", 0, "Migrate the best rule to peers every N milliseconds")
	health := flag.Bool("health", false, "Print a one-line health JSON and exit")
	swarmListen := flag.String("swarm-listen", "", "Listen address for peer rule exchange")
	peersFlag := flag.String("peers", "", "Comma-separated peer addresses")
	serveLSP := flag.Bool("serve-lsp", false, "Start the KolibriScript language server on stdio")
	configDir := flag.String("config", "", "Directory containing kolibri.toml (flags override it)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: kolibri [options]\n\n")
		fmt.Fprintf(os.Stderr, "Starts a Kolibri node: genome journal, formula pool and REPL.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  kolibri --seed 7                        # REPL with a deterministic pool\n")
		fmt.Fprintf(os.Stderr, "  kolibri --bootstrap boot.ks             # Run a script, then the REPL\n")
		fmt.Fprintf(os.Stderr, "  kolibri --hmac-key @key.txt --verify-genome\n")
		fmt.Fprintf(os.Stderr, "  kolibri --health                        # One-line JSON status\n")
		fmt.Fprintf(os.Stderr, "  kolibri --swarm-listen :4050 --peers host:4050 --auto-sync-ms 60000\n")
		fmt.Fprintf(os.Stderr, "  kolibri --serve-lsp                     # Editor integration\n")
	}
	flag.Parse()

	if *serveLSP {
		if err := server.NewLSP().Run(); err != nil {
			fmt.Fprintf(os.Stderr, "LSP error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	keyInline, keyFile := splitKeyFlag(*hmacKey)
	key, err := genome.LoadKey(keyInline, keyFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading HMAC key: %v\n", err)
		os.Exit(1)
	}

	if *verifyGenome {
		status := genome.VerifyFile(*genomePath, key)
		fmt.Println(status)
		if status != genome.VerifyOK {
			os.Exit(1)
		}
		return
	}

	opts := node.Options{
		ID:         *nodeID,
		Seed:       *seed,
		GenomePath: *genomePath,
		Key:        key,
		Controls:   node.DefaultControls(),
	}
	if *configDir != "" {
		cfg, err := node.LoadConfig(*configDir)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		opts = optionsFromConfig(cfg, opts)
	}

	n, err := node.Open(opts)
	if err != nil {
		if *health {
			fmt.Printf("{\"status\":%q}\n", err.Error())
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
	defer n.Close()

	if *health {
		line, err := n.HealthJSON()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(line)
		return
	}

	// The node is single-threaded; background tickers and the REPL share
	// one lock.
	var mu sync.Mutex

	identity := swarm.Identity{
		NodeID:       n.ID,
		GenomeBlocks: func() uint64 { mu.Lock(); defer mu.Unlock(); return n.Journal().NextIndex() },
		BestFitness:  func() float64 { mu.Lock(); defer mu.Unlock(); return n.Pool().Best().Fitness },
	}

	if *swarmListen != "" {
		ln, err := net.Listen("tcp", *swarmListen)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		srv := swarm.NewServer(identity, lockedStore{n: n, mu: &mu}, ln)
		defer srv.Close()
		go srv.Serve()
		fmt.Printf("Swarm listening on %s\n", srv.Addr())
	}

	peers := splitPeers(*peersFlag)

	if *autoEvolveMS > 0 {
		go func() {
			for range time.Tick(time.Duration(*autoEvolveMS) * time.Millisecond) {
				mu.Lock()
				if err := n.Evolve(1); err != nil {
					fmt.Fprintf(os.Stderr, "auto-evolve: %v\n", err)
				}
				mu.Unlock()
			}
		}()
	}
	if *autoSyncMS > 0 && len(peers) > 0 {
		go func() {
			for range time.Tick(time.Duration(*autoSyncMS) * time.Millisecond) {
				syncPeers(identity, lockedStore{n: n, mu: &mu}, peers)
			}
		}()
	}

	if *bootstrap != "" {
		mu.Lock()
		err := n.RunScriptFile(*bootstrap, os.Stdout)
		mu.Unlock()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}

	runREPL(n, &mu, identity, peers)
}

// splitKeyFlag separates the --hmac-key forms: "@path" reads a file,
// anything else is the literal key.
func splitKeyFlag(v string) (inline, file string) {
	if strings.HasPrefix(v, "@") {
		return "", v[1:]
	}
	return v, ""
}

func splitPeers(v string) []string {
	if v == "" {
		return nil
	}
	var peers []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			peers = append(peers, p)
		}
	}
	return peers
}

func optionsFromConfig(cfg *node.Config, flags node.Options) node.Options {
	opts := flags
	if opts.ID == "" {
		opts.ID = cfg.Node.ID
	}
	if opts.Seed == 0 {
		opts.Seed = cfg.Node.Seed
	}
	if opts.GenomePath == "kolibri.genome" {
		opts.GenomePath = cfg.GenomePath()
	}
	opts.Controls = cfg.ResolveControls()
	return opts
}

// lockedStore serializes swarm calls into the node.
type lockedStore struct {
	n  *node.Node
	mu *sync.Mutex
}

func (s lockedStore) ImportRule(gene string, fitness float64, origin string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.n.ImportRule(gene, fitness, origin)
}

func (s lockedStore) DistillRule() (string, float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.n.DistillRule()
}

func syncPeers(id swarm.Identity, store swarm.Store, peers []string) {
	for _, addr := range peers {
		if _, err := swarm.SendRule(addr, id, store); err != nil {
			fmt.Fprintf(os.Stderr, "sync %s: %v\n", addr, err)
		}
	}
}

// runREPL starts an interactive read-eval-print loop. Plain lines are
// questions; lines starting with "начало" open a KolibriScript program
// that executes once "конец." arrives.
func runREPL(n *node.Node, mu *sync.Mutex, id swarm.Identity, peers []string) {
	fmt.Println("Kolibri REPL (type 'exit' to quit, ':help' for commands)")
	fmt.Printf("Node: %s\n", n.ID)
	fmt.Println()

	scanner := bufio.NewScanner(os.Stdin)
	lineBuffer := strings.Builder{}

	for {
		if lineBuffer.Len() == 0 {
			fmt.Print(">> ")
		} else {
			fmt.Print(".. ")
		}

		if !scanner.Scan() {
			break
		}
		line := scanner.Text()

		if lineBuffer.Len() == 0 && (line == "exit" || line == "quit") {
			break
		}

		if lineBuffer.Len() == 0 && strings.HasPrefix(line, ":") {
			handleREPLCommand(n, mu, id, peers, line)
			continue
		}

		// Script mode: accumulate until the terminating "конец."
		if lineBuffer.Len() > 0 || strings.HasPrefix(strings.TrimSpace(line), "начало") {
			if lineBuffer.Len() > 0 {
				lineBuffer.WriteString("\n")
			}
			lineBuffer.WriteString(line)

			if strings.HasSuffix(strings.TrimSpace(line), "конец.") {
				source := lineBuffer.String()
				lineBuffer.Reset()
				mu.Lock()
				err := n.RunScript(source, os.Stdout)
				mu.Unlock()
				if err != nil {
					fmt.Printf("Script error: %v\n", err)
				}
			}
			continue
		}

		if strings.TrimSpace(line) == "" {
			continue
		}

		mu.Lock()
		answer, err := n.Ask(line)
		mu.Unlock()
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			continue
		}
		fmt.Println(answer)
	}

	fmt.Println()
}

// handleREPLCommand handles REPL meta-commands
func handleREPLCommand(n *node.Node, mu *sync.Mutex, id swarm.Identity, peers []string, cmd string) {
	fields := strings.Fields(cmd)
	switch fields[0] {
	case ":help", ":h", ":?":
		fmt.Println("REPL Commands:")
		fmt.Println("  :help, :h, :?              Show this help")
		fmt.Println("  :health                    Print the health JSON line")
		fmt.Println("  :teach вопрос -> ответ     Store an association")
		fmt.Println("  :evolve [n]                Run n evolution generations (default 1)")
		fmt.Println("  :feedback delta            Rate the best formula in [-1, 1]")
		fmt.Println("  :mode name                 Set the response mode")
		fmt.Println("  :sync                      Migrate the best rule to all peers")
		fmt.Println("  exit, quit                 Exit REPL")
		fmt.Println()
		fmt.Println("Plain lines are questions. Lines starting with 'начало' open a")
		fmt.Println("KolibriScript program, executed at 'конец.'")
	case ":health":
		mu.Lock()
		line, err := n.HealthJSON()
		mu.Unlock()
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		fmt.Println(line)
	case ":teach":
		rest := strings.TrimSpace(strings.TrimPrefix(cmd, ":teach"))
		parts := strings.SplitN(rest, "->", 2)
		if len(parts) != 2 {
			fmt.Println("Usage: :teach вопрос -> ответ")
			return
		}
		q, a := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
		mu.Lock()
		err := n.Teach(q, a)
		mu.Unlock()
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		fmt.Println("Learned.")
	case ":evolve":
		gens := 1
		if len(fields) > 1 {
			if v, err := strconv.Atoi(fields[1]); err == nil {
				gens = v
			}
		}
		mu.Lock()
		err := n.Evolve(gens)
		best := n.Pool().Best().Fitness
		mu.Unlock()
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		fmt.Printf("Best fitness: %.4f\n", best)
	case ":feedback":
		if len(fields) != 2 {
			fmt.Println("Usage: :feedback delta")
			return
		}
		delta, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		mu.Lock()
		err = n.Feedback(delta)
		mu.Unlock()
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		fmt.Println("Noted.")
	case ":mode":
		if len(fields) != 2 {
			fmt.Println("Usage: :mode name")
			return
		}
		mu.Lock()
		n.SetMode(fields[1])
		mode := n.Mode()
		mu.Unlock()
		fmt.Printf("Mode: %s\n", mode)
	case ":sync":
		if len(peers) == 0 {
			fmt.Println("No peers configured.")
			return
		}
		syncPeers(id, lockedStore{n: n, mu: mu}, peers)
	default:
		fmt.Printf("Unknown command: %s (type :help for commands)\n", fields[0])
	}
}
