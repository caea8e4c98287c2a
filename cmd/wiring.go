package cmd

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/cwship/cloudwatch-sumo-shipper/internal/client"
	"github.com/cwship/cloudwatch-sumo-shipper/internal/config"
	"github.com/cwship/cloudwatch-sumo-shipper/internal/shipper"
	"github.com/cwship/cloudwatch-sumo-shipper/internal/transform"
)

// App holds the components both Lambda functions share, built once at cold
// start.
type App struct {
	Config      config.Config
	Logger      *log.Logger
	Transformer *transform.Transformer
	Shipper     *shipper.Shipper
	Queue       *client.TaskQueue
}

// Bootstrap loads configuration from the environment, resolves the
// collector endpoint and constructs the pipeline components.
func Bootstrap(ctx context.Context) (*App, error) {
	logger := log.New(os.Stdout, "", log.LstdFlags|log.LUTC)

	cfg, err := config.FromEnv()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if client.IsSecretARN(cfg.Endpoint) {
		secrets, err := client.NewSecretsClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("create secrets client: %w", err)
		}
		endpoint, err := client.ResolveEndpoint(ctx, secrets, cfg.Endpoint)
		if err != nil {
			return nil, err
		}
		cfg.Endpoint = endpoint
	}

	transformer, err := transform.New(cfg, logger)
	if err != nil {
		return nil, err
	}

	queue, err := client.NewTaskQueueFromConfig(ctx, cfg.QueueURL)
	if err != nil {
		return nil, fmt.Errorf("create task queue: %w", err)
	}

	return &App{
		Config:      cfg,
		Logger:      logger,
		Transformer: transformer,
		Shipper:     shipper.New(cfg.Endpoint),
		Queue:       queue,
	}, nil
}
