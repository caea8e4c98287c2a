package model

import (
	"encoding/json"
	"fmt"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"
)

// MessageType values carried in the subscription envelope.
const (
	MessageTypeData    = "DATA_MESSAGE"
	MessageTypeControl = "CONTROL_MESSAGE"
)

// LogEvent is a single log line from a subscription payload.
type LogEvent struct {
	ID        string
	Timestamp int64 // epoch milliseconds
	Message   string
	LogGroup  string
	LogStream string
}

// LogBatch is one decoded subscription payload.
type LogBatch struct {
	MessageType         string
	Owner               string
	LogGroup            string
	LogStream           string
	SubscriptionFilters []string
	Events              []LogEvent
}

// IsControl reports whether the batch is a health-check message carrying no
// log data.
func (b LogBatch) IsControl() bool {
	return b.MessageType == MessageTypeControl
}

// BatchFromCloudwatchLogs converts a parsed subscription payload into a
// LogBatch, stamping each event with its owning group and stream.
func BatchFromCloudwatchLogs(data events.CloudwatchLogsData) LogBatch {
	batch := LogBatch{
		MessageType:         data.MessageType,
		Owner:               data.Owner,
		LogGroup:            data.LogGroup,
		LogStream:           data.LogStream,
		SubscriptionFilters: data.SubscriptionFilters,
	}
	for _, e := range data.LogEvents {
		batch.Events = append(batch.Events, LogEvent{
			ID:        e.ID,
			Timestamp: e.Timestamp,
			Message:   e.Message,
			LogGroup:  data.LogGroup,
			LogStream: data.LogStream,
		})
	}
	return batch
}

// ShippableRecord is one rendered backend wire-format unit.
type ShippableRecord []byte

// TaskEnvelope wraps an undelivered subscription payload on the dead-letter
// queue. The compressed payload is carried unchanged so a drain worker can
// replay it through the same decode path as a live invocation. ID traces one
// batch across redeliveries; messages enqueued by older shippers carry the
// bare awslogs shape without it.
type TaskEnvelope struct {
	ID      string                       `json:"id,omitempty"`
	AWSLogs events.CloudwatchLogsRawData `json:"awslogs"`
}

// NewTaskEnvelope wraps a raw payload for enqueueing, assigning a fresh ID.
func NewTaskEnvelope(raw events.CloudwatchLogsRawData) TaskEnvelope {
	return TaskEnvelope{ID: uuid.NewString(), AWSLogs: raw}
}

// Encode renders the envelope as a queue message body.
func (e TaskEnvelope) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// ParseTaskEnvelope decodes a queue message body.
func ParseTaskEnvelope(body []byte) (TaskEnvelope, error) {
	var env TaskEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return TaskEnvelope{}, fmt.Errorf("parse task envelope: %w", err)
	}
	if env.AWSLogs.Data == "" {
		return TaskEnvelope{}, fmt.Errorf("task envelope missing awslogs data")
	}
	return env, nil
}
