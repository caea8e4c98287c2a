package main

import (
	"context"
	"fmt"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/cwship/cloudwatch-sumo-shipper/cmd"
	"github.com/cwship/cloudwatch-sumo-shipper/internal/model"
)

// handler ships one subscription payload. Delivery failure is not an
// invocation failure: the payload is dead-lettered for the drain cycle and
// the invocation succeeds.
func handler(app *cmd.App) func(ctx context.Context, event events.CloudwatchLogsEvent) error {
	return func(ctx context.Context, event events.CloudwatchLogsEvent) error {
		batch, err := app.Transformer.Decode(event.AWSLogs)
		if err != nil {
			app.Logger.Printf("ERROR: %v", err)
			return err
		}
		records, err := app.Transformer.Transform(batch)
		if err != nil {
			app.Logger.Printf("ERROR: %v", err)
			return err
		}
		if len(records) == 0 {
			app.Logger.Printf("INFO: nothing to ship for %s/%s (%s)",
				batch.LogGroup, batch.LogStream, batch.MessageType)
			return nil
		}

		if err := app.Shipper.Ship(ctx, records); err != nil {
			app.Logger.Printf("WARN: ship failed for %s/%s, dead-lettering: %v",
				batch.LogGroup, batch.LogStream, err)
			env := model.NewTaskEnvelope(event.AWSLogs)
			body, mErr := env.Encode()
			if mErr != nil {
				return fmt.Errorf("encode task envelope: %w", mErr)
			}
			if qErr := app.Queue.Enqueue(ctx, body); qErr != nil {
				// Nowhere left to put the batch; surface so the platform
				// retries the whole invocation.
				return fmt.Errorf("dead-letter after ship failure: %w", qErr)
			}
			app.Logger.Printf("INFO: dead-lettered envelope %s (%d records)", env.ID, len(records))
			return nil
		}

		app.Logger.Printf("INFO: shipped %d records for %s/%s", len(records), batch.LogGroup, batch.LogStream)
		return nil
	}
}

func main() {
	app, err := cmd.Bootstrap(context.Background())
	if err != nil {
		panic(err)
	}
	lambda.Start(handler(app))
}
