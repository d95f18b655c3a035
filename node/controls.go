package node

import (
	"math"

	"github.com/kolibri-node/kolibri/pool"
)

// Controls is the resolved set of evolution tunables applied to a pool.
// Nil targets mean "unset".
type Controls struct {
	LambdaB     float64
	LambdaD     float64
	TargetB     *float64
	TargetD     *float64
	Temperature float64
	TopK        int
	CfBeam      bool
}

// DefaultControls returns the standing defaults.
func DefaultControls() Controls {
	return Controls{
		LambdaB:     0.25,
		LambdaD:     0.2,
		Temperature: 0.85,
		TopK:        4,
		CfBeam:      true,
	}
}

// ResolveControls overlays the configured values onto the defaults.
func (c *Config) ResolveControls() Controls {
	return resolveControls(c.Controls)
}

// resolve overlays kolibri.toml values onto the defaults.
func resolveControls(cfg ControlsConfig) Controls {
	c := DefaultControls()
	if cfg.LambdaB != nil {
		c.LambdaB = *cfg.LambdaB
	}
	if cfg.LambdaD != nil {
		c.LambdaD = *cfg.LambdaD
	}
	c.TargetB = cfg.TargetB
	c.TargetD = cfg.TargetD
	if cfg.Temperature != nil {
		c.Temperature = *cfg.Temperature
	}
	if cfg.TopK != nil {
		c.TopK = *cfg.TopK
	}
	if cfg.CfBeam != nil {
		c.CfBeam = *cfg.CfBeam
	}
	return c
}

// Apply pushes the controls into the pool. With the beam disabled the pool
// runs untuned: no drift penalties, no targets, neutral temperature, full
// parent pool.
func (c Controls) Apply(p *pool.Pool) {
	if !c.CfBeam {
		p.SetLambdaB(0)
		p.SetLambdaD(0)
		p.SetTargetB(math.NaN())
		p.SetTargetD(math.NaN())
		p.SetTemperature(1)
		p.SetTopK(pool.Size)
		p.SetCoherenceGain(0)
		return
	}

	p.SetLambdaB(c.LambdaB)
	p.SetLambdaD(c.LambdaD)
	if c.TargetB != nil {
		p.SetTargetB(*c.TargetB)
	} else {
		p.SetTargetB(math.NaN())
	}
	if c.TargetD != nil {
		p.SetTargetD(*c.TargetD)
	} else {
		p.SetTargetD(math.NaN())
	}
	p.SetTemperature(c.Temperature)
	p.SetTopK(c.TopK)

	extra := 0.0
	if c.TopK < 10 {
		extra = float64(10-c.TopK) * 0.01
	}
	p.SetCoherenceGain(p.Temperature()*0.05 + extra)
}
