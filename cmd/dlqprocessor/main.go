package main

import (
	"context"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/cwship/cloudwatch-sumo-shipper/cmd"
	"github.com/cwship/cloudwatch-sumo-shipper/internal/drain"
)

// handler runs one drain cycle per schedule tick.
func handler(app *cmd.App, drainer *drain.Drainer) func(ctx context.Context, event events.CloudWatchEvent) error {
	return func(ctx context.Context, event events.CloudWatchEvent) error {
		stats, err := drainer.Run(ctx)
		if err != nil {
			app.Logger.Printf("ERROR: drain cycle failed: %v", err)
			return err
		}
		if stats.Workers == 0 {
			app.Logger.Printf("INFO: queue empty, nothing to drain")
			return nil
		}
		app.Logger.Printf("INFO: drain cycle done: workers=%d received=%d acked=%d left=%d",
			stats.Workers, stats.Received, stats.Acked, stats.Left)
		return nil
	}
}

func main() {
	ctx := context.Background()
	app, err := cmd.Bootstrap(ctx)
	if err != nil {
		panic(err)
	}
	replayer := drain.NewReplayer(app.Transformer, app.Shipper, app.Logger)
	drainer := drain.New(app.Queue, replayer, app.Config.NumWorkers, app.Logger)
	lambda.Start(handler(app, drainer))
}
