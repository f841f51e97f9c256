package main

import (
	"context"
	"log/slog"
	"os"
	"strconv"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"github.com/krish7x/store-agent/handler"
	"github.com/krish7x/store-agent/internal/integrations/llm"
	"github.com/krish7x/store-agent/internal/integrations/paramstore"
	"github.com/krish7x/store-agent/internal/productdb"
	"github.com/krish7x/store-agent/internal/repository"
	"github.com/krish7x/store-agent/internal/usecase"
)

func main() {
	ctx := context.Background()

	// ---- Configuration (read only here) ----
	stateTable := mustEnv("STATE_TABLE")
	paramPrefix := mustEnv("PARAM_PREFIX")
	productDSN := mustEnv("PRODUCT_DB_DSN")
	model := os.Getenv("LLM_MODEL")
	maxQuestionLen := envInt("MAX_QUERY_LENGTH", 300)

	// ---- AWS SDK config ----
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		slog.Error("failed to load AWS config", "err", err)
		os.Exit(1)
	}

	// ---- Clients ----
	ssmClient, err := paramstore.New(awsssm.NewFromConfig(cfg))
	if err != nil {
		slog.Error("failed to create SSM client", "err", err)
		os.Exit(1)
	}
	dynamoClient := awsdynamodb.NewFromConfig(cfg)
	historyClient, err := repository.New(dynamoClient, stateTable)
	if err != nil {
		slog.Error("failed to create history client", "err", err)
		os.Exit(1)
	}

	productClient, err := productdb.Open(productDSN)
	if err != nil {
		slog.Error("failed to open product database", "err", err)
		os.Exit(1)
	}

	llmClient, err := llm.NewClient(ssmClient, paramPrefix, llm.WithModel(model))
	if err != nil {
		slog.Error("failed to create LLM client", "err", err)
		os.Exit(1)
	}

	// ---- Handler ----
	chatService, err := usecase.NewChatService(ssmClient, llmClient, productClient, historyClient, paramPrefix, maxQuestionLen)
	if err != nil {
		slog.Error("failed to create chat service", "err", err)
		os.Exit(1)
	}

	h, err := handler.NewHandler(chatService)
	if err != nil {
		slog.Error("failed to create handler", "err", err)
		os.Exit(1)
	}

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

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
