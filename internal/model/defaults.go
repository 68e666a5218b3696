package model

// Shared defaults used by the analyzer, the CLI and the HTTP API.
const (
	DefaultTopN             = 10
	DefaultSlowRequests     = 10
	DefaultSpikeSigma       = 2.0
	DefaultSpikeMinSamples  = 10
	DefaultSampleLines      = 10
	DefaultSecondsThreshold = 1000.0
	DefaultMaxLineBytes     = 1024 * 1024
	DefaultFallbackAfter    = 5
)
