package transform

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/jmespath/go-jmespath"

	"github.com/cwship/cloudwatch-sumo-shipper/internal/config"
	"github.com/cwship/cloudwatch-sumo-shipper/internal/model"
)

// Transformer turns decoded subscription payloads into backend-ready
// records. The same inputs always render byte-identical output.
type Transformer struct {
	format         config.LogFormat
	includeLogInfo bool
	prefixes       []string
	extract        *jmespath.JMESPath
	logger         *log.Logger
}

// New builds a Transformer from the deployment configuration. The optional
// extract path is compiled once here.
func New(cfg config.Config, logger *log.Logger) (*Transformer, error) {
	t := &Transformer{
		format:         cfg.Format,
		includeLogInfo: cfg.IncludeLogInfo,
		prefixes:       cfg.StreamPrefixes,
		logger:         logger,
	}
	if cfg.ExtractPath != "" {
		jp, err := jmespath.Compile(cfg.ExtractPath)
		if err != nil {
			return nil, fmt.Errorf("compile %s: %w", config.EnvExtractPath, err)
		}
		t.extract = jp
	}
	return t, nil
}

// Decode decompresses and parses a raw subscription payload. A failure here
// is fatal for the invocation and is surfaced to the caller.
func (t *Transformer) Decode(raw events.CloudwatchLogsRawData) (model.LogBatch, error) {
	data, err := raw.Parse()
	if err != nil {
		return model.LogBatch{}, fmt.Errorf("decode subscription payload: %w", err)
	}
	return model.BatchFromCloudwatchLogs(data), nil
}

// Transform renders a batch into shippable records. A nil result with a nil
// error means there is nothing to ship (control message, or every event
// filtered out); it is not an error.
func (t *Transformer) Transform(batch model.LogBatch) ([]model.ShippableRecord, error) {
	if batch.IsControl() {
		return nil, nil
	}

	var records []model.ShippableRecord
	for _, ev := range batch.Events {
		if !t.streamAllowed(ev.LogStream) {
			continue
		}
		rec, ok, err := t.render(ev)
		if err != nil {
			return nil, err
		}
		if ok {
			records = append(records, rec)
		}
	}
	return records, nil
}

// streamAllowed applies the prefix allow-list. Matching is exact-prefix and
// case-sensitive; an empty list admits everything.
func (t *Transformer) streamAllowed(stream string) bool {
	if len(t.prefixes) == 0 {
		return true
	}
	for _, p := range t.prefixes {
		if strings.HasPrefix(stream, p) {
			return true
		}
	}
	return false
}

func (t *Transformer) render(ev model.LogEvent) (model.ShippableRecord, bool, error) {
	switch t.format {
	case config.FormatVPCRaw:
		return model.ShippableRecord(ev.Message), true, nil
	case config.FormatVPCJSON:
		return t.renderVPCJSON(ev)
	default:
		return t.renderStructured(ev)
	}
}

// renderVPCJSON re-serializes the message as compact JSON. A message that
// does not parse is dropped with a warning; the rest of the batch proceeds.
func (t *Transformer) renderVPCJSON(ev model.LogEvent) (model.ShippableRecord, bool, error) {
	var parsed map[string]any
	if err := json.Unmarshal([]byte(ev.Message), &parsed); err != nil {
		t.logger.Printf("WARN: dropping unparseable VPC-JSON event %s from %s/%s: %v",
			ev.ID, ev.LogGroup, ev.LogStream, err)
		return nil, false, nil
	}
	out, err := json.Marshal(parsed)
	if err != nil {
		return nil, false, fmt.Errorf("marshal VPC-JSON record: %w", err)
	}
	return out, true, nil
}

type structuredRecord struct {
	ID        string `json:"id,omitempty"`
	Timestamp int64  `json:"timestamp"`
	Message   string `json:"message"`
	LogGroup  string `json:"logGroup,omitempty"`
	LogStream string `json:"logStream,omitempty"`
}

func (t *Transformer) renderStructured(ev model.LogEvent) (model.ShippableRecord, bool, error) {
	rec := structuredRecord{
		ID:        ev.ID,
		Timestamp: ev.Timestamp,
		Message:   ev.Message,
	}
	if t.includeLogInfo {
		rec.LogGroup = ev.LogGroup
		rec.LogStream = ev.LogStream
	}
	if t.extract != nil {
		if v, ok := extractValue(t.extract, ev.Message); ok {
			rec.Message = v
		}
	}
	out, err := json.Marshal(rec)
	if err != nil {
		return nil, false, fmt.Errorf("marshal record: %w", err)
	}
	return out, true, nil
}
