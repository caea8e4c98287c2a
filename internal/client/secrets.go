package client

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// SecretsAPI is the subset of the Secrets Manager API used for endpoint
// resolution.
type SecretsAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// NewSecretsClient loads AWS configuration from the default sources and
// returns a Secrets Manager client.
func NewSecretsClient(ctx context.Context) (*secretsmanager.Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, err
	}
	return secretsmanager.NewFromConfig(cfg), nil
}

// IsSecretARN reports whether the endpoint value is a Secrets Manager ARN
// rather than a literal URL.
func IsSecretARN(value string) bool {
	return strings.HasPrefix(value, "arn:") && strings.Contains(value, ":secretsmanager:")
}

// ResolveEndpoint returns the collector URL for the configured endpoint
// value, fetching it from Secrets Manager when the value is an ARN.
func ResolveEndpoint(ctx context.Context, api SecretsAPI, value string) (string, error) {
	if !IsSecretARN(value) {
		return value, nil
	}
	out, err := api.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(value),
	})
	if err != nil {
		return "", fmt.Errorf("resolve endpoint secret: %w", err)
	}
	secret := aws.ToString(out.SecretString)
	if secret == "" {
		return "", fmt.Errorf("endpoint secret %s is empty", value)
	}
	return secret, nil
}
