package metrics

import "github.com/tinytelemetry/logsift/internal/model"

// Config bounds the ranked outputs and tunes spike detection.
// Zero fields fall back to the model defaults.
type Config struct {
	TopN            int
	SlowRequests    int
	SpikeSigma      float64
	SpikeMinSamples int64
}

func (c Config) withDefaults() Config {
	if c.TopN <= 0 {
		c.TopN = model.DefaultTopN
	}
	if c.SlowRequests <= 0 {
		c.SlowRequests = model.DefaultSlowRequests
	}
	if c.SpikeSigma <= 0 {
		c.SpikeSigma = model.DefaultSpikeSigma
	}
	if c.SpikeMinSamples <= 0 {
		c.SpikeMinSamples = model.DefaultSpikeMinSamples
	}
	return c
}
