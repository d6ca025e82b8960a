package mcpserver

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/mark3labs/mcp-go/server"

	"github.com/apresai/quizzify/internal/chunk"
	"github.com/apresai/quizzify/internal/config"
	"github.com/apresai/quizzify/internal/embed"
	"github.com/apresai/quizzify/internal/llm"
	"github.com/apresai/quizzify/internal/observability"
	"github.com/apresai/quizzify/internal/pipeline"
	"github.com/apresai/quizzify/internal/quiz"
	"github.com/apresai/quizzify/internal/vectorstore"
)

// Server is the MCP server for quiz generation.
type Server struct {
	cfg      config.MCP
	mcp      *server.MCPServer
	tasks    *TaskManager
	handlers *Handlers
	log      *slog.Logger
}

// New creates and configures the MCP server. ctx bounds the lifetime of
// background tasks.
func New(ctx context.Context, cfg *config.Config, version string, logger *slog.Logger) (*Server, error) {
	awsCfg, err := observability.LoadAWSConfig(ctx, cfg.MCP.AWSRegion)
	if err != nil {
		return nil, err
	}

	// Fetch secrets if running in AWS
	if cfg.MCP.SecretPrefix != "" {
		if err := loadSecrets(ctx, awsCfg, cfg.MCP.SecretPrefix, logger); err != nil {
			logger.Warn("Failed to load secrets from Secrets Manager, falling back to env vars",
				"error", err)
		}
	}

	if cfg.MCP.S3Bucket == "" {
		return nil, fmt.Errorf("S3_BUCKET environment variable is required")
	}
	// DATABASE_URL may have arrived through Secrets Manager.
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	ddbClient := dynamodb.NewFromConfig(awsCfg)
	s3Client := s3.NewFromConfig(awsCfg)

	store := NewStore(ddbClient, cfg.MCP.TableName)
	storage := NewStorage(s3Client, cfg.MCP.S3Bucket, cfg.MCP.CDNBaseURL)
	backend := &pgBackend{
		databaseURL:    cfg.DatabaseURL,
		table:          cfg.VectorTable,
		embeddingModel: cfg.EmbeddingModel,
		log:            logger,
	}
	taskMgr := NewTaskManager(ctx, store, storage, backend, cfg.MCP.MaxTasks, logger)
	taskMgr.SetMaxConsecutiveFailures(cfg.MaxConsecutiveFailures)
	handlers := NewHandlers(taskMgr, store, logger)

	mcpServer := server.NewMCPServer(
		"quizzify",
		version,
		server.WithToolCapabilities(true),
	)

	tools := ToolDefs()
	mcpServer.AddTool(tools[0], handlers.HandleGenerateQuiz)
	mcpServer.AddTool(tools[1], handlers.HandleGetQuiz)
	mcpServer.AddTool(tools[2], handlers.HandleListQuizzes)

	return &Server{
		cfg:      cfg.MCP,
		mcp:      mcpServer,
		tasks:    taskMgr,
		handlers: handlers,
		log:      logger,
	}, nil
}

// Start runs the HTTP MCP server until ctx is cancelled, then waits for
// running tasks to record their final state.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	s.log.Info("Starting MCP server", "addr", addr)

	httpServer := server.NewStreamableHTTPServer(s.mcp,
		server.WithStateLess(true),
	)

	errCh := make(chan error, 1)
	go func() { errCh <- httpServer.Start(addr) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Info("Shutting down MCP server", "running_tasks", s.tasks.Running())
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := httpServer.Shutdown(shutdownCtx)
	s.tasks.Wait()
	return err
}

// pgBackend gives every task its own pgvector collection, named after the
// task ID, so concurrent jobs never read each other's chunks.
type pgBackend struct {
	databaseURL    string
	table          string
	embeddingModel string
	log            *slog.Logger
}

func (b *pgBackend) Open(ctx context.Context, taskID, model string) (pipeline.Index, quiz.Model, func(), error) {
	m, err := llm.New(ctx, model)
	if err != nil {
		return nil, nil, nil, err
	}

	embedder, err := embed.NewGemini(ctx, b.embeddingModel, b.log)
	if err != nil {
		closeModel(m)
		return nil, nil, nil, err
	}

	store, err := vectorstore.OpenPG(ctx, b.databaseURL, b.table, taskID, embed.Dimensions)
	if err != nil {
		embedder.Close()
		closeModel(m)
		return nil, nil, nil, err
	}

	coll := vectorstore.NewCollection(store, embedder, chunk.NewSplitter(), b.log.With("collection", taskID))
	release := func() {
		resetCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := store.Reset(resetCtx); err != nil {
			b.log.Warn("Failed to drop task collection", "collection", taskID, "error", err)
		}
		store.Close()
		embedder.Close()
		closeModel(m)
	}
	return coll, m, release, nil
}

func closeModel(m llm.Model) {
	if c, ok := m.(io.Closer); ok {
		c.Close()
	}
}

// loadSecrets fetches API keys from Secrets Manager and sets them as env vars.
func loadSecrets(ctx context.Context, cfg aws.Config, prefix string, logger *slog.Logger) error {
	client := secretsmanager.NewFromConfig(cfg)

	secrets := map[string]string{
		"ANTHROPIC_API_KEY": prefix + "ANTHROPIC_API_KEY",
		"GEMINI_API_KEY":    prefix + "GEMINI_API_KEY",
		"DATABASE_URL":      prefix + "DATABASE_URL",
	}

	for envVar, secretID := range secrets {
		// Skip if already set in environment
		if os.Getenv(envVar) != "" {
			continue
		}

		result, err := client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
			SecretId: &secretID,
		})
		if err != nil {
			logger.Info("Secret not found", "secret_id", secretID, "error", err)
			continue
		}
		if result.SecretString != nil {
			os.Setenv(envVar, *result.SecretString)
			logger.Info("Loaded secret", "secret_id", secretID)
		}
	}

	return nil
}
