package drain

import (
	"context"
	"log"

	"github.com/cwship/cloudwatch-sumo-shipper/internal/client"
	"github.com/cwship/cloudwatch-sumo-shipper/internal/model"
	"github.com/cwship/cloudwatch-sumo-shipper/internal/shipper"
	"github.com/cwship/cloudwatch-sumo-shipper/internal/transform"
)

// Replayer reprocesses one dead-lettered envelope through the same
// transform and ship path as a live subscription invocation.
type Replayer struct {
	transformer *transform.Transformer
	shipper     *shipper.Shipper
	logger      *log.Logger
}

// NewReplayer wires the replay path.
func NewReplayer(t *transform.Transformer, s *shipper.Shipper, logger *log.Logger) *Replayer {
	return &Replayer{transformer: t, shipper: s, logger: logger}
}

// Process parses the envelope, re-renders the batch and ships it. An
// envelope that renders to nothing (a dead-lettered control message, or a
// batch the current prefix filter excludes) returns nil so the message is
// acknowledged instead of cycling through the queue forever.
func (r *Replayer) Process(ctx context.Context, task client.Task) error {
	env, err := model.ParseTaskEnvelope(task.Body)
	if err != nil {
		return err
	}
	batch, err := r.transformer.Decode(env.AWSLogs)
	if err != nil {
		return err
	}
	records, err := r.transformer.Transform(batch)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		r.logger.Printf("INFO: envelope %s from %s/%s rendered no records, acking",
			env.ID, batch.LogGroup, batch.LogStream)
		return nil
	}
	return r.shipper.Ship(ctx, records)
}
