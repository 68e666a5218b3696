package model

import "time"

// Record is one normalized log line.
// It is built once per parsed line and never mutated afterwards.
type Record struct {
	Timestamp         time.Time // Zero value = unknown
	ClientAddress     string
	Method            string
	Endpoint          string
	Protocol          string
	Referer           string
	UserAgent         string
	StatusCode        int
	ResponseSizeBytes int64
	HasResponseSize   bool
	ResponseTimeMs    float64
	HasResponseTime   bool
	SourceFile        string
	SourceLine        int64
}

// RankedCount is a key and its frequency.
// Lists of RankedCount are ordered by count descending, then key ascending.
type RankedCount struct {
	Key   string `json:"key" yaml:"key"`
	Count int64  `json:"count" yaml:"count"`
}

// SlowRequest is the identifying part of a Record retained by the slow-request tracker.
type SlowRequest struct {
	Timestamp      time.Time `json:"timestamp" yaml:"timestamp"`
	ClientAddress  string    `json:"client_address" yaml:"client_address"`
	Method         string    `json:"method,omitempty" yaml:"method,omitempty"`
	Endpoint       string    `json:"endpoint" yaml:"endpoint"`
	StatusCode     int       `json:"status_code" yaml:"status_code"`
	ResponseTimeMs float64   `json:"response_time_ms" yaml:"response_time_ms"`
	SourceFile     string    `json:"source_file,omitempty" yaml:"source_file,omitempty"`
	SourceLine     int64     `json:"source_line,omitempty" yaml:"source_line,omitempty"`
}

// HourBucket counts requests within one UTC hour.
type HourBucket struct {
	HourStart time.Time `json:"hour_start" yaml:"hour_start"`
	Count     int64     `json:"count" yaml:"count"`
}

// ErrorRatePoint is the error rate of one UTC hour.
// IsSpike is derived from the whole series when a snapshot is taken.
type ErrorRatePoint struct {
	HourStart        time.Time `json:"hour_start" yaml:"hour_start"`
	TotalCount       int64     `json:"total_count" yaml:"total_count"`
	ErrorCount       int64     `json:"error_count" yaml:"error_count"`
	ErrorRatePercent float64   `json:"error_rate_percent" yaml:"error_rate_percent"`
	IsSpike          bool      `json:"is_spike" yaml:"is_spike"`
}

// StatusClass is the count and share of one status class.
type StatusClass struct {
	Count   int64   `json:"count" yaml:"count"`
	Percent float64 `json:"percent" yaml:"percent"`
}

// StatusDistribution groups records by status class.
type StatusDistribution struct {
	Status2xx StatusClass `json:"2xx" yaml:"2xx"`
	Status3xx StatusClass `json:"3xx" yaml:"3xx"`
	Status4xx StatusClass `json:"4xx" yaml:"4xx"`
	Status5xx StatusClass `json:"5xx" yaml:"5xx"`
	Other     StatusClass `json:"other" yaml:"other"`
}

// ResponseTimeSummary summarizes all records that carried a response time.
type ResponseTimeSummary struct {
	Count  int64   `json:"count" yaml:"count"`
	MinMs  float64 `json:"min_ms" yaml:"min_ms"`
	MeanMs float64 `json:"mean_ms" yaml:"mean_ms"`
	MaxMs  float64 `json:"max_ms" yaml:"max_ms"`
}

// Metrics is a read-only snapshot of an accumulator.
type Metrics struct {
	TotalLines         int64               `json:"total_lines" yaml:"total_lines"`
	TotalRequests      int64               `json:"total_requests" yaml:"total_requests"`
	SkippedLines       int64               `json:"skipped_lines" yaml:"skipped_lines"`
	FilteredOut        int64               `json:"filtered_out" yaml:"filtered_out"`
	UniqueClients      int                 `json:"unique_clients" yaml:"unique_clients"`
	UniqueEndpoints    int                 `json:"unique_endpoints" yaml:"unique_endpoints"`
	TotalResponseBytes int64               `json:"total_response_bytes" yaml:"total_response_bytes"`
	StatusDistribution StatusDistribution  `json:"status_distribution" yaml:"status_distribution"`
	ResponseTime       ResponseTimeSummary `json:"response_time" yaml:"response_time"`
	TopClients         []RankedCount       `json:"top_clients" yaml:"top_clients"`
	TopEndpoints       []RankedCount       `json:"top_endpoints" yaml:"top_endpoints"`
	TopMethods         []RankedCount       `json:"top_methods" yaml:"top_methods"`
	SlowRequests       []SlowRequest       `json:"slow_requests" yaml:"slow_requests"`
	RequestsPerHour    []HourBucket        `json:"requests_per_hour" yaml:"requests_per_hour"`
	ErrorRates         []ErrorRatePoint    `json:"error_rates" yaml:"error_rates"`
}

// StdinPath names standard input in a list of input paths.
const StdinPath = "-"

// FileState is the processing state of one input file.
type FileState string

const (
	FilePending    FileState = "pending"
	FileProcessing FileState = "processing"
	FileCompleted  FileState = "completed"
	FileFailed     FileState = "failed"
	FileCancelled  FileState = "cancelled"
)

// FileReport is the result of analyzing one file.
type FileReport struct {
	Path    string    `json:"path" yaml:"path"`
	Format  string    `json:"format" yaml:"format"`
	State   FileState `json:"state" yaml:"state"`
	Error   string    `json:"error,omitempty" yaml:"error,omitempty"`
	Metrics Metrics   `json:"metrics" yaml:"metrics"`
}

// Report is the result of one analysis run.
// It is assembled once and treated as immutable by every consumer.
type Report struct {
	RunID       string        `json:"run_id" yaml:"run_id"`
	AnalyzedAt  time.Time     `json:"analyzed_at" yaml:"analyzed_at"`
	Duration    time.Duration `json:"duration_ns" yaml:"duration_ns"`
	Workers     int           `json:"workers" yaml:"workers"`
	FailedFiles int           `json:"failed_files" yaml:"failed_files"`
	Files       []FileReport  `json:"files" yaml:"files"`
	Aggregate   Metrics       `json:"aggregate" yaml:"aggregate"`
}
