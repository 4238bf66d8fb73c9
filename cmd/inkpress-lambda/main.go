// Package main runs the blog API as an AWS Lambda function behind an API
// Gateway HTTP API (payload format 2.0). Backends are connected once per
// execution environment and reused across invocations.
package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/awslabs/aws-lambda-go-api-proxy/httpadapter"

	"inkpress/internal/app"
	"inkpress/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(app.NewLogger(cfg, os.Stdout))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	a, err := app.New(ctx, cfg)
	cancel()
	if err != nil {
		slog.Error("failed to initialize application", "error", err)
		os.Exit(1)
	}

	slog.Info("lambda handler ready", "env", cfg.Env, "table", cfg.Table.Backend)
	lambda.Start(httpadapter.NewV2(a.Handler).ProxyWithContext)
}
