package drain

import (
	"context"
	"log"
	"sync"

	"github.com/cwship/cloudwatch-sumo-shipper/internal/client"
)

// Queue is the subset of the task queue the drainer uses.
type Queue interface {
	ApproximateDepth(ctx context.Context) (int, error)
	Receive(ctx context.Context, max int32) ([]client.Task, error)
	Delete(ctx context.Context, receiptHandle string) error
}

// Processor replays one claimed message body. A nil return means the batch
// was delivered (or there was nothing left to deliver) and the message can
// be acknowledged.
type Processor interface {
	Process(ctx context.Context, task client.Task) error
}

// Stats summarizes one drain cycle.
type Stats struct {
	Workers  int
	Received int
	Acked    int
	Left     int
}

// Drainer fans dead-letter messages out to a bounded worker pool once per
// timer invocation.
type Drainer struct {
	queue     Queue
	processor Processor
	workers   int
	batchSize int32
	logger    *log.Logger
}

// New builds a Drainer with the configured worker bound.
func New(queue Queue, processor Processor, workers int, logger *log.Logger) *Drainer {
	if workers <= 0 {
		workers = 1
	}
	return &Drainer{
		queue:     queue,
		processor: processor,
		workers:   workers,
		batchSize: client.MaxReceiveBatch,
		logger:    logger,
	}
}

// Run executes one drain cycle: it sizes the pool from the approximate
// queue depth, lets each worker claim and resolve one batch, and waits for
// all of them. An empty queue is a no-op. Messages whose processing fails
// are left unacknowledged for the queue to redeliver after their visibility
// timeout.
func (d *Drainer) Run(ctx context.Context) (Stats, error) {
	depth, err := d.queue.ApproximateDepth(ctx)
	if err != nil {
		return Stats{}, err
	}
	if depth == 0 {
		return Stats{}, nil
	}

	// The depth is approximate; workers simply process whatever their one
	// receive returns, which may be more or less than the estimate implies.
	workers := (depth + int(d.batchSize) - 1) / int(d.batchSize)
	if workers > d.workers {
		workers = d.workers
	}

	statsCh := make(chan Stats, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			statsCh <- d.runWorker(ctx, id)
		}(i + 1)
	}
	wg.Wait()
	close(statsCh)

	total := Stats{Workers: workers}
	for s := range statsCh {
		total.Received += s.Received
		total.Acked += s.Acked
		total.Left += s.Left
	}
	return total, nil
}

// runWorker performs a single poll cycle: claim up to one batch, resolve
// each message independently, exit. Queue-level failures end the worker
// early; unresolved messages stay queued for a later cycle.
func (d *Drainer) runWorker(ctx context.Context, id int) Stats {
	var stats Stats

	tasks, err := d.queue.Receive(ctx, d.batchSize)
	if err != nil {
		d.logger.Printf("ERROR: worker %d: receive failed: %v", id, err)
		return stats
	}
	if len(tasks) == 0 {
		return stats
	}
	stats.Received = len(tasks)

	for i, task := range tasks {
		if ctx.Err() != nil {
			// Out of time for this invocation. Unprocessed messages
			// reappear once their visibility timeout expires.
			stats.Left += len(tasks) - i
			return stats
		}
		if err := d.processor.Process(ctx, task); err != nil {
			d.logger.Printf("WARN: worker %d: message %s (receive %d) left for retry: %v",
				id, task.MessageID, task.ReceiveCount, err)
			stats.Left++
			continue
		}
		if err := d.queue.Delete(ctx, task.ReceiptHandle); err != nil {
			d.logger.Printf("ERROR: worker %d: delete of %s failed: %v", id, task.MessageID, err)
			stats.Left++
			continue
		}
		stats.Acked++
	}
	return stats
}
