package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/user"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/spf13/cobra"

	"github.com/apresai/quizzify/internal/config"
	"github.com/apresai/quizzify/internal/mcpserver"
	"github.com/apresai/quizzify/internal/observability"
	"github.com/apresai/quizzify/internal/quiz"
)

var flagPublishOwner string

var publishCmd = &cobra.Command{
	Use:   "publish <quiz.json>",
	Short: "Publish a saved quiz to the quiz bucket and job table",
	Long:  "Upload a quiz JSON file to S3 and record it in DynamoDB so it is listed by the MCP server alongside generated quizzes.",
	Args:  cobra.ExactArgs(1),
	RunE:  runPublish,
}

func init() {
	rootCmd.AddCommand(publishCmd)
	defaultOwner := "quizzify"
	if u, err := user.Current(); err == nil && u.Username != "" {
		defaultOwner = u.Username
	}
	publishCmd.Flags().StringVar(&flagPublishOwner, "owner", defaultOwner, "Quiz owner")
}

// publisher is what runPublish needs from the job table and the bucket.
type publisher struct {
	store   mcpserver.JobStore
	storage mcpserver.ArtifactStorage
}

func runPublish(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := config.Load(genFlags.configPath)
	if err != nil {
		return err
	}
	if cfg.MCP.S3Bucket == "" {
		return fmt.Errorf("S3_BUCKET is required to publish")
	}

	awsCfg, err := observability.LoadAWSConfig(ctx, cfg.MCP.AWSRegion)
	if err != nil {
		return err
	}
	p := publisher{
		store:   mcpserver.NewStore(dynamodb.NewFromConfig(awsCfg), cfg.MCP.TableName),
		storage: mcpserver.NewStorage(s3.NewFromConfig(awsCfg), cfg.MCP.S3Bucket, cfg.MCP.CDNBaseURL),
	}

	url, err := p.publish(ctx, args[0], flagPublishOwner, func(format string, a ...any) {
		fmt.Fprintf(cmd.OutOrStdout(), format, a...)
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "\nPublished: %s\n", url)
	return nil
}

func (p publisher) publish(ctx context.Context, path, owner string, printf func(string, ...any)) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("cannot access file: %w", err)
	}
	if info.Size() == 0 {
		return "", fmt.Errorf("file is empty: %s", path)
	}

	q, err := quiz.LoadQuiz(path)
	if err != nil {
		return "", err
	}
	if len(q.Questions) == 0 {
		return "", quiz.ErrEmptyQuiz
	}
	if q.ID == "" {
		if q.ID, err = quiz.NewQuizID(); err != nil {
			return "", err
		}
	}
	printf("Quiz: %s (%s, %d questions)\n", q.ID, q.Topic, len(q.Questions))

	data, err := json.Marshal(q)
	if err != nil {
		return "", fmt.Errorf("marshal quiz: %w", err)
	}

	printf("Recording quiz...")
	req := mcpserver.GenerateRequest{Topic: q.Topic, NumQuestions: q.Requested, Owner: owner}
	if err := publishRetry(ctx, func() error { return p.store.CreateJob(ctx, q.ID, owner, req) }); err != nil {
		printf(" failed\n")
		return "", fmt.Errorf("create quiz record: %w", err)
	}
	printf(" ok\n")

	printf("Uploading quiz...")
	var key, url string
	err = publishRetry(ctx, func() error {
		var uerr error
		key, url, uerr = p.storage.Upload(ctx, q.ID, data)
		return uerr
	})
	if err != nil {
		printf(" failed\n")
		_ = p.store.FailJob(ctx, q.ID, err.Error())
		return "", fmt.Errorf("upload quiz: %w", err)
	}
	printf(" done\n")

	printf("Confirming publication...")
	if err := publishRetry(ctx, func() error { return p.store.CompleteJob(ctx, q.ID, q, string(data), key, url) }); err != nil {
		printf(" failed\n")
		return "", fmt.Errorf("confirm quiz (file was uploaded but not recorded): %w", err)
	}
	printf(" done\n")
	return url, nil
}

// publishBackoffs are the waits between attempts; len+1 attempts are made.
var publishBackoffs = []time.Duration{1 * time.Second, 2 * time.Second}

func publishRetry(ctx context.Context, fn func() error) error {
	for attempt := 0; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		if attempt >= len(publishBackoffs) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(publishBackoffs[attempt]):
		}
	}
}
