package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"skill-analytics/handler"
	"skill-analytics/internal/config"
	"skill-analytics/internal/dialog"
	"skill-analytics/internal/integrations/chatbase"
	"skill-analytics/internal/integrations/paramstore"
	"skill-analytics/internal/repository"
	"skill-analytics/internal/skill"
	"skill-analytics/internal/telemetry"
	"skill-analytics/internal/tracker"
)

const serviceName = "skill-analytics"

func main() {
	ctx := context.Background()

	// ---- Configuration (read only here) ----
	cfg, err := config.Load()
	if err != nil {
		fatal("failed to load configuration", err)
	}

	if cfg.TracingEnabled {
		shutdown, err := telemetry.InitTracer(serviceName)
		if err != nil {
			fatal("failed to initialize tracing", err)
		}
		defer func() { _ = shutdown(ctx) }()
	}

	// ---- AWS SDK config ----
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		fatal("failed to load AWS config", err)
	}

	// ---- Analytics ----
	apiKey := cfg.Chatbase.APIKey
	if apiKey == "" {
		ssmClient, err := paramstore.New(awsssm.NewFromConfig(awsCfg))
		if err != nil {
			fatal("failed to create SSM client", err)
		}
		apiKey, err = ssmClient.GetSecret(ctx, cfg.Chatbase.APIKeyParam)
		if err != nil {
			fatal("failed to resolve chatbase api key", err)
		}
	}

	var chatbaseOpts []chatbase.Option
	if cfg.Chatbase.BaseURL != "" {
		chatbaseOpts = append(chatbaseOpts, chatbase.WithBaseURL(cfg.Chatbase.BaseURL))
	}

	var trackerOpts []tracker.Option
	if cfg.FailedBatchTable != "" {
		failedBatches, err := repository.New(awsdynamodb.NewFromConfig(awsCfg), cfg.FailedBatchTable)
		if err != nil {
			fatal("failed to create failed batch repository", err)
		}
		trackerOpts = append(trackerOpts, tracker.WithFailureRecorder(failedBatches))
	}

	t, err := tracker.New(tracker.Config{
		APIKey:          apiKey,
		Platform:        cfg.Chatbase.Platform,
		SuppressSending: cfg.Chatbase.SuppressSending,
		IgnoreUsers:     cfg.Chatbase.IgnoreUsers,
	}, chatbase.NewClient(chatbaseOpts...), trackerOpts...)
	if err != nil {
		fatal("failed to create tracker", err)
	}

	// ---- Skill ----
	app := skill.NewApp()
	dialog.Register(app)
	t.Register(app)

	h, err := handler.NewHandler(app, handler.WithSkillID(cfg.SkillID))
	if err != nil {
		fatal("failed to create handler", err)
	}

	lambda.Start(h.Handle)
}

func fatal(msg string, err error) {
	slog.Error(msg, "err", err)
	os.Exit(1)
}
