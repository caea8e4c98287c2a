package main

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/cwship/cloudwatch-sumo-shipper/cmd"
	"github.com/cwship/cloudwatch-sumo-shipper/internal/client"
	"github.com/cwship/cloudwatch-sumo-shipper/internal/config"
	"github.com/cwship/cloudwatch-sumo-shipper/internal/model"
	"github.com/cwship/cloudwatch-sumo-shipper/internal/shipper"
	"github.com/cwship/cloudwatch-sumo-shipper/internal/transform"
)

type mockSQSAPI struct {
	sendInputs []*sqs.SendMessageInput
	sendErr    error
}

func (m *mockSQSAPI) SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	m.sendInputs = append(m.sendInputs, params)
	if m.sendErr != nil {
		return nil, m.sendErr
	}
	return &sqs.SendMessageOutput{MessageId: aws.String("mid")}, nil
}

func (m *mockSQSAPI) ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	return &sqs.ReceiveMessageOutput{}, nil
}

func (m *mockSQSAPI) DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	return &sqs.DeleteMessageOutput{}, nil
}

func (m *mockSQSAPI) GetQueueAttributes(ctx context.Context, params *sqs.GetQueueAttributesInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueAttributesOutput, error) {
	return &sqs.GetQueueAttributesOutput{}, nil
}

func subscriptionEvent(t *testing.T, messageType string, messages ...string) events.CloudwatchLogsEvent {
	t.Helper()
	data := events.CloudwatchLogsData{
		MessageType: messageType,
		Owner:       "123456789012",
		LogGroup:    "g",
		LogStream:   "s",
	}
	for i, m := range messages {
		data.LogEvents = append(data.LogEvents, events.CloudwatchLogsLogEvent{
			ID: "e", Timestamp: int64(1700000000000 + i), Message: m,
		})
	}
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(raw); err != nil {
		t.Fatalf("gzip payload: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close gzip: %v", err)
	}
	return events.CloudwatchLogsEvent{
		AWSLogs: events.CloudwatchLogsRawData{Data: base64.StdEncoding.EncodeToString(buf.Bytes())},
	}
}

func testApp(t *testing.T, endpoint string, mock *mockSQSAPI) *cmd.App {
	t.Helper()
	logger := log.New(io.Discard, "", 0)
	cfg := config.Config{Endpoint: endpoint, NumWorkers: 1, QueueURL: "https://sqs.example/q"}
	tr, err := transform.New(cfg, logger)
	if err != nil {
		t.Fatalf("transform.New: %v", err)
	}
	return &cmd.App{
		Config:      cfg,
		Logger:      logger,
		Transformer: tr,
		Shipper:     shipper.New(endpoint),
		Queue:       client.NewTaskQueue(mock, cfg.QueueURL),
	}
}

func TestHandlerShipsWithoutDeadLettering(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	mock := &mockSQSAPI{}
	h := handler(testApp(t, srv.URL, mock))
	if err := h(context.Background(), subscriptionEvent(t, model.MessageTypeData, "one", "two")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Errorf("collector called %d times, want 1", calls)
	}
	if len(mock.sendInputs) != 0 {
		t.Errorf("successful batch was dead-lettered %d times", len(mock.sendInputs))
	}
}

func TestHandlerDeadLettersFailedBatchOnce(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	mock := &mockSQSAPI{}
	event := subscriptionEvent(t, model.MessageTypeData, "a", "b", "c", "d", "e")
	h := handler(testApp(t, srv.URL, mock))

	// Delivery failure is recovered asynchronously; the invocation succeeds.
	if err := h(context.Background(), event); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(mock.sendInputs) != 1 {
		t.Fatalf("expected exactly one dead-letter enqueue, got %d", len(mock.sendInputs))
	}

	// The envelope wraps the whole original payload, not individual records.
	env, err := model.ParseTaskEnvelope([]byte(aws.ToString(mock.sendInputs[0].MessageBody)))
	if err != nil {
		t.Fatalf("enqueued body is not a task envelope: %v", err)
	}
	if env.ID == "" {
		t.Errorf("envelope has no id")
	}
	if env.AWSLogs.Data != event.AWSLogs.Data {
		t.Errorf("envelope payload does not match the original event")
	}
}

func TestHandlerSurfacesEnqueueFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	mock := &mockSQSAPI{sendErr: context.DeadlineExceeded}
	h := handler(testApp(t, srv.URL, mock))
	if err := h(context.Background(), subscriptionEvent(t, model.MessageTypeData, "a")); err == nil {
		t.Fatalf("expected error when the batch can be neither shipped nor dead-lettered")
	}
}

func TestHandlerControlMessage(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()

	mock := &mockSQSAPI{}
	h := handler(testApp(t, srv.URL, mock))
	if err := h(context.Background(), subscriptionEvent(t, model.MessageTypeControl, "CWL CONTROL MESSAGE")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 0 || len(mock.sendInputs) != 0 {
		t.Errorf("control message reached collector (%d) or queue (%d)", calls, len(mock.sendInputs))
	}
}

func TestHandlerMalformedPayload(t *testing.T) {
	mock := &mockSQSAPI{}
	h := handler(testApp(t, "http://127.0.0.1:0", mock))
	event := events.CloudwatchLogsEvent{AWSLogs: events.CloudwatchLogsRawData{Data: "!!not base64!!"}}
	if err := h(context.Background(), event); err == nil {
		t.Fatalf("expected malformed payload to surface an error")
	}
	if len(mock.sendInputs) != 0 {
		t.Errorf("malformed payload was dead-lettered")
	}
}
