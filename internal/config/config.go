package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Environment keys recognized by both Lambda functions.
const (
	EnvEndpoint     = "SUMO_ENDPOINT"
	EnvLogFormat    = "LOG_FORMAT"
	EnvIncludeInfo  = "INCLUDE_LOG_INFO"
	EnvStreamPrefix = "LOG_STREAM_PREFIX"
	EnvNumWorkers   = "NUM_OF_WORKERS"
	EnvQueueURL     = "TASK_QUEUE_URL"
	EnvExtractPath  = "MESSAGE_EXTRACT_PATH"
)

// DefaultNumWorkers bounds the drain pool when NUM_OF_WORKERS is unset.
const DefaultNumWorkers = 4

// LogFormat selects how log events are rendered before shipping.
type LogFormat int

const (
	// FormatOthers wraps each event as a structured JSON record.
	FormatOthers LogFormat = iota
	// FormatVPCRaw passes VPC flow log lines through unmodified.
	FormatVPCRaw
	// FormatVPCJSON re-serializes each message as compact JSON.
	FormatVPCJSON
)

// ParseLogFormat maps the LOG_FORMAT value to a LogFormat. An empty value
// selects FormatOthers.
func ParseLogFormat(s string) (LogFormat, error) {
	switch s {
	case "", "Others":
		return FormatOthers, nil
	case "VPC-RAW":
		return FormatVPCRaw, nil
	case "VPC-JSON":
		return FormatVPCJSON, nil
	}
	return FormatOthers, fmt.Errorf("unknown %s %q (expected VPC-RAW, VPC-JSON or Others)", EnvLogFormat, s)
}

func (f LogFormat) String() string {
	switch f {
	case FormatVPCRaw:
		return "VPC-RAW"
	case FormatVPCJSON:
		return "VPC-JSON"
	default:
		return "Others"
	}
}

// Config holds the per-deployment settings. It is built once at cold start
// and never mutated afterwards.
type Config struct {
	// Endpoint is the backend collector URL, or a Secrets Manager ARN that
	// resolves to one.
	Endpoint string
	// Format selects the record rendering mode.
	Format LogFormat
	// IncludeLogInfo injects logGroup/logStream fields under FormatOthers.
	IncludeLogInfo bool
	// StreamPrefixes, when non-empty, restricts shipping to events whose
	// log stream name starts with one of the prefixes.
	StreamPrefixes []string
	// NumWorkers bounds the drain worker pool.
	NumWorkers int
	// QueueURL addresses the dead-letter task queue.
	QueueURL string
	// ExtractPath is an optional JMESPath applied to JSON messages under
	// FormatOthers; empty disables extraction.
	ExtractPath string
}

// FromEnv collects configuration from the process environment.
func FromEnv() (Config, error) {
	format, err := ParseLogFormat(os.Getenv(EnvLogFormat))
	if err != nil {
		return Config{}, err
	}

	workers := DefaultNumWorkers
	if v := os.Getenv(EnvNumWorkers); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return Config{}, fmt.Errorf("invalid %s %q (expected positive integer)", EnvNumWorkers, v)
		}
		workers = n
	}

	return Config{
		Endpoint:       strings.TrimSpace(os.Getenv(EnvEndpoint)),
		Format:         format,
		IncludeLogInfo: strings.EqualFold(os.Getenv(EnvIncludeInfo), "true"),
		StreamPrefixes: ParsePrefixCSV(os.Getenv(EnvStreamPrefix)),
		NumWorkers:     workers,
		QueueURL:       strings.TrimSpace(os.Getenv(EnvQueueURL)),
		ExtractPath:    strings.TrimSpace(os.Getenv(EnvExtractPath)),
	}, nil
}

// Validate checks the settings both functions depend on.
func (c Config) Validate() error {
	if c.Endpoint == "" {
		return fmt.Errorf("%s is required", EnvEndpoint)
	}
	if c.QueueURL == "" {
		return fmt.Errorf("%s is required", EnvQueueURL)
	}
	if c.NumWorkers <= 0 {
		return fmt.Errorf("%s must be positive", EnvNumWorkers)
	}
	return nil
}

// ParsePrefixCSV turns a comma-separated prefix string into a slice,
// trimming whitespace and dropping empties.
func ParsePrefixCSV(csv string) []string {
	if csv == "" {
		return nil
	}
	var prefixes []string
	for _, p := range strings.Split(csv, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			prefixes = append(prefixes, p)
		}
	}
	return prefixes
}
