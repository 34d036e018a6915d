package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"mindlog-agent/handler"
	"mindlog-agent/internal/config"
	"mindlog-agent/internal/credentials"
	"mindlog-agent/internal/integrations/paramstore"
	"mindlog-agent/internal/providers"
	"mindlog-agent/internal/repository"
	"mindlog-agent/internal/usecase"
)

func main() {
	ctx := context.Background()

	// ---- Configuration (read only here) ----
	cfg := config.FromEnv()
	cfg.ParamPrefix = mustEnv("PARAM_PREFIX")
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}
	logger := slog.Default()

	// ---- AWS SDK config ----
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		slog.Error("failed to load AWS config", "err", err)
		os.Exit(1)
	}

	// ---- Clients ----
	ssmClient, err := paramstore.New(awsssm.NewFromConfig(awsCfg))
	if err != nil {
		slog.Error("failed to create SSM client", "err", err)
		os.Exit(1)
	}
	ssmKeys, err := credentials.NewParamStore(ssmClient, cfg.ParamPrefix)
	if err != nil {
		slog.Error("failed to create credentials source", "err", err)
		os.Exit(1)
	}
	if err := ssmKeys.Preload(ctx, config.ProviderGemini, config.ProviderKimi); err != nil {
		// Keys are read one by one on first use instead.
		slog.Warn("failed to preload provider tokens", "err", err)
	}
	keys := credentials.Chain{credentials.NewEnv(), ssmKeys}

	registry, err := providers.New(cfg, keys, providers.Options{Logger: logger})
	if err != nil {
		slog.Error("failed to create AI providers", "err", err)
		os.Exit(1)
	}

	opts := []usecase.Option{
		usecase.WithMaxTextLength(cfg.MaxTextLength),
		usecase.WithMaxHistory(cfg.MaxHistory),
		usecase.WithLogger(logger),
	}
	if cfg.StateTable != "" {
		stateClient, err := repository.New(awsdynamodb.NewFromConfig(awsCfg), cfg.StateTable)
		if err != nil {
			slog.Error("failed to create state client", "err", err)
			os.Exit(1)
		}
		opts = append(opts, usecase.WithStore(stateClient))
	}

	// ---- Handler ----
	svc, err := usecase.NewService(registry.Service(), opts...)
	if err != nil {
		slog.Error("failed to create journal service", "err", err)
		os.Exit(1)
	}

	h, err := handler.NewHandler(svc)
	if err != nil {
		slog.Error("failed to create handler", "err", err)
		os.Exit(1)
	}

	slog.Info("journal assistant ready", "provider", registry.Active(), "state_table", cfg.StateTable != "")
	lambda.Start(h.Handle)
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		slog.Error("required environment variable is not set", "key", key)
		os.Exit(1)
	}
	return v
}
