package client

import (
	"context"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// MaxReceiveBatch is the queue's maximum receive count per poll.
const MaxReceiveBatch = 10

// QueueAPI is the subset of the SQS API the task queue uses.
type QueueAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
	GetQueueAttributes(ctx context.Context, params *sqs.GetQueueAttributesInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueAttributesOutput, error)
}

// Task is one claimed dead-letter message. ReceiveCount reflects how many
// times the queue has handed it out; the queue owns retry accounting.
type Task struct {
	MessageID     string
	ReceiptHandle string
	ReceiveCount  int
	Body          []byte
}

// TaskQueue wraps the dead-letter queue with the enqueue/receive/delete
// operations the shipping path needs. Visibility handling stays with SQS: a
// message that is never deleted becomes visible again on its own.
type TaskQueue struct {
	client QueueAPI
	url    string
}

// NewTaskQueue builds a TaskQueue on an existing SQS client.
func NewTaskQueue(client QueueAPI, url string) *TaskQueue {
	return &TaskQueue{client: client, url: url}
}

// NewTaskQueueFromConfig loads AWS configuration from the default sources
// and returns a TaskQueue for the given queue URL.
func NewTaskQueueFromConfig(ctx context.Context, url string) (*TaskQueue, error) {
	if url == "" {
		return nil, fmt.Errorf("queue url required")
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, err
	}
	return NewTaskQueue(sqs.NewFromConfig(cfg), url), nil
}

// Enqueue appends one message body to the queue.
func (q *TaskQueue) Enqueue(ctx context.Context, body []byte) error {
	_, err := q.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(q.url),
		MessageBody: aws.String(string(body)),
	})
	if err != nil {
		return fmt.Errorf("enqueue task: %w", err)
	}
	return nil
}

// ApproximateDepth reports the queue's approximate visible message count.
// The value is eventually consistent and may under- or over-count.
func (q *TaskQueue) ApproximateDepth(ctx context.Context) (int, error) {
	out, err := q.client.GetQueueAttributes(ctx, &sqs.GetQueueAttributesInput{
		QueueUrl:       aws.String(q.url),
		AttributeNames: []types.QueueAttributeName{types.QueueAttributeNameApproximateNumberOfMessages},
	})
	if err != nil {
		return 0, fmt.Errorf("query queue depth: %w", err)
	}
	raw := out.Attributes[string(types.QueueAttributeNameApproximateNumberOfMessages)]
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("parse queue depth %q: %w", raw, err)
	}
	return n, nil
}

// Receive claims up to max messages. max is capped at MaxReceiveBatch.
func (q *TaskQueue) Receive(ctx context.Context, max int32) ([]Task, error) {
	if max <= 0 || max > MaxReceiveBatch {
		max = MaxReceiveBatch
	}
	out, err := q.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(q.url),
		MaxNumberOfMessages: max,
		MessageSystemAttributeNames: []types.MessageSystemAttributeName{
			types.MessageSystemAttributeNameApproximateReceiveCount,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("receive tasks: %w", err)
	}
	tasks := make([]Task, 0, len(out.Messages))
	for _, m := range out.Messages {
		t := Task{
			MessageID:     aws.ToString(m.MessageId),
			ReceiptHandle: aws.ToString(m.ReceiptHandle),
			Body:          []byte(aws.ToString(m.Body)),
		}
		if rc := m.Attributes[string(types.MessageSystemAttributeNameApproximateReceiveCount)]; rc != "" {
			if n, err := strconv.Atoi(rc); err == nil {
				t.ReceiveCount = n
			}
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

// Delete acknowledges one claimed message. Deleting is idempotent-safe: an
// already-deleted handle is not an application error.
func (q *TaskQueue) Delete(ctx context.Context, receiptHandle string) error {
	_, err := q.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(q.url),
		ReceiptHandle: aws.String(receiptHandle),
	})
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return nil
}
