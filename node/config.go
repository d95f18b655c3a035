// Package node assembles a Kolibri node: configuration, the genome
// journal, the symbol table, the formula pool and the request surface the
// CLI and swarm layers call into.
package node

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents a kolibri.toml node configuration.
type Config struct {
	Node      NodeConfig      `toml:"node"`
	Genome    GenomeConfig    `toml:"genome"`
	Controls  ControlsConfig  `toml:"controls"`
	Swarm     SwarmConfig     `toml:"swarm"`
	Knowledge KnowledgeConfig `toml:"knowledge"`

	// Dir is the directory containing the kolibri.toml file (set at load
	// time).
	Dir string `toml:"-"`
}

// NodeConfig contains node identity and determinism settings.
type NodeConfig struct {
	ID   string `toml:"id"`
	Seed int64  `toml:"seed"`
}

// GenomeConfig locates the journal file and its HMAC key.
type GenomeConfig struct {
	Path    string `toml:"path"`
	Key     string `toml:"key"`
	KeyFile string `toml:"key-file"`
}

// ControlsConfig carries the evolution tunables. Unset targets stay nil.
type ControlsConfig struct {
	LambdaB     *float64 `toml:"lambda-b"`
	LambdaD     *float64 `toml:"lambda-d"`
	TargetB     *float64 `toml:"target-b"`
	TargetD     *float64 `toml:"target-d"`
	Temperature *float64 `toml:"temperature"`
	TopK        *int     `toml:"top-k"`
	CfBeam      *bool    `toml:"cf-beam"`
}

// SwarmConfig configures peer exchange.
type SwarmConfig struct {
	Listen     string   `toml:"listen"`
	Peers      []string `toml:"peers"`
	AutoSyncMS int      `toml:"auto-sync-ms"`
}

// KnowledgeConfig locates the knowledge index database.
type KnowledgeConfig struct {
	Path string `toml:"path"`
}

// LoadConfig parses a kolibri.toml file from the given directory.
func LoadConfig(dir string) (*Config, error) {
	path := filepath.Join(dir, "kolibri.toml")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var c Config
	if err := toml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	c.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	// Defaults
	if c.Genome.Path == "" {
		c.Genome.Path = "kolibri.genome"
	}
	if c.Knowledge.Path == "" {
		c.Knowledge.Path = "kolibri.db"
	}

	return &c, nil
}

// FindAndLoadConfig walks up from startDir to find a kolibri.toml file,
// then loads and returns the configuration. Returns nil if none is found.
func FindAndLoadConfig(startDir string) (*Config, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, "kolibri.toml")
		if _, err := os.Stat(path); err == nil {
			return LoadConfig(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// GenomePath returns the absolute journal path.
func (c *Config) GenomePath() string {
	if filepath.IsAbs(c.Genome.Path) {
		return c.Genome.Path
	}
	return filepath.Join(c.Dir, c.Genome.Path)
}

// KnowledgePath returns the absolute knowledge database path.
func (c *Config) KnowledgePath() string {
	if filepath.IsAbs(c.Knowledge.Path) {
		return c.Knowledge.Path
	}
	return filepath.Join(c.Dir, c.Knowledge.Path)
}
