package mcpserver

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/apresai/quizzify/internal/quiz"
)

// JobStatus represents the state of a quiz generation job.
type JobStatus string

const (
	JobStatusSubmitted  JobStatus = "submitted"
	JobStatusIngesting  JobStatus = "ingesting"
	JobStatusIndexing   JobStatus = "indexing"
	JobStatusGenerating JobStatus = "generating"
	JobStatusUploading  JobStatus = "uploading"
	JobStatusComplete   JobStatus = "complete"
	JobStatusFailed     JobStatus = "failed"
)

// QuizItem is the DynamoDB record for a quiz job.
type QuizItem struct {
	PK              string   `dynamodbav:"PK"`
	SK              string   `dynamodbav:"SK"`
	GSI1PK          string   `dynamodbav:"GSI1PK"`
	GSI1SK          string   `dynamodbav:"GSI1SK"`
	QuizID          string   `dynamodbav:"quizId"`
	Topic           string   `dynamodbav:"topic,omitempty"`
	Owner           string   `dynamodbav:"owner"`
	Files           []string `dynamodbav:"files,omitempty,stringset"`
	Status          string   `dynamodbav:"status"`
	ProgressPercent float64  `dynamodbav:"progressPercent,omitempty"`
	StageMessage    string   `dynamodbav:"stageMessage,omitempty"`
	ErrorMessage    string   `dynamodbav:"errorMessage,omitempty"`
	Model           string   `dynamodbav:"model,omitempty"`
	Requested       int      `dynamodbav:"requested,omitempty"`
	QuestionCount   int      `dynamodbav:"questionCount,omitempty"`
	Shortfall       bool     `dynamodbav:"shortfall,omitempty"`
	QuizJSON        string   `dynamodbav:"quizJson,omitempty"`
	QuizKey         string   `dynamodbav:"quizKey,omitempty"`
	QuizURL         string   `dynamodbav:"quizUrl,omitempty"`
	CreatedAt       string   `dynamodbav:"createdAt"`
}

// dynamoAPI is the subset of the DynamoDB client the store uses.
type dynamoAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// Store handles DynamoDB operations for quiz jobs.
type Store struct {
	client    dynamoAPI
	tableName string
}

// NewStore creates a DynamoDB store.
func NewStore(client dynamoAPI, tableName string) *Store {
	return &Store{client: client, tableName: tableName}
}

func itemKey(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: "QUIZ#" + id},
		"SK": &types.AttributeValueMemberS{Value: "METADATA"},
	}
}

// CreateJob inserts a new quiz job with status=submitted.
func (s *Store) CreateJob(ctx context.Context, id, owner string, req GenerateRequest) error {
	now := time.Now().UTC().Format(time.RFC3339)
	files := make([]string, 0, len(req.Files)+len(req.URLs))
	for _, f := range req.Files {
		files = append(files, f.Name)
	}
	files = append(files, req.URLs...)

	item := QuizItem{
		PK:        "QUIZ#" + id,
		SK:        "METADATA",
		GSI1PK:    "QUIZZES",
		GSI1SK:    now + "#" + id,
		QuizID:    id,
		Topic:     req.Topic,
		Owner:     owner,
		Files:     dedupe(files),
		Status:    string(JobStatusSubmitted),
		Model:     req.Model,
		Requested: req.NumQuestions,
		CreatedAt: now,
	}

	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("marshal job item: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           &s.tableName,
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	})
	if err != nil {
		return fmt.Errorf("put job item: %w", err)
	}
	return nil
}

// UpdateProgress updates the job's status, progress percent, and stage message.
func (s *Store) UpdateProgress(ctx context.Context, id string, status JobStatus, percent float64, message string) error {
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        &s.tableName,
		Key:              itemKey(id),
		UpdateExpression: aws.String("SET #status = :status, progressPercent = :pct, stageMessage = :msg"),
		ExpressionAttributeNames: map[string]string{
			"#status": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":status": &types.AttributeValueMemberS{Value: string(status)},
			":pct":    &types.AttributeValueMemberN{Value: fmt.Sprintf("%.2f", percent)},
			":msg":    &types.AttributeValueMemberS{Value: message},
		},
	})
	if err != nil {
		return fmt.Errorf("update progress: %w", err)
	}
	return nil
}

// CompleteJob marks the job as complete and stores the quiz.
func (s *Store) CompleteJob(ctx context.Context, id string, q *quiz.Quiz, quizJSON, quizKey, quizURL string) error {
	msg := "Complete"
	if q.Shortfall() {
		msg = fmt.Sprintf("Complete: %d of %d questions", len(q.Questions), q.Requested)
	}

	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        &s.tableName,
		Key:              itemKey(id),
		UpdateExpression: aws.String("SET #status = :status, progressPercent = :pct, stageMessage = :msg, topic = :topic, questionCount = :qc, shortfall = :sf, quizJson = :qj, quizKey = :qkey, quizUrl = :qurl"),
		ExpressionAttributeNames: map[string]string{
			"#status": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":status": &types.AttributeValueMemberS{Value: string(JobStatusComplete)},
			":pct":    &types.AttributeValueMemberN{Value: "1.00"},
			":msg":    &types.AttributeValueMemberS{Value: msg},
			":topic":  &types.AttributeValueMemberS{Value: q.Topic},
			":qc":     &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", len(q.Questions))},
			":sf":     &types.AttributeValueMemberBOOL{Value: q.Shortfall()},
			":qj":     &types.AttributeValueMemberS{Value: quizJSON},
			":qkey":   &types.AttributeValueMemberS{Value: quizKey},
			":qurl":   &types.AttributeValueMemberS{Value: quizURL},
		},
	})
	if err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	return nil
}

// FailJob marks the job as failed with an error message.
func (s *Store) FailJob(ctx context.Context, id, errMsg string) error {
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        &s.tableName,
		Key:              itemKey(id),
		UpdateExpression: aws.String("SET #status = :status, errorMessage = :err, stageMessage = :msg"),
		ExpressionAttributeNames: map[string]string{
			"#status": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":status": &types.AttributeValueMemberS{Value: string(JobStatusFailed)},
			":err":    &types.AttributeValueMemberS{Value: errMsg},
			":msg":    &types.AttributeValueMemberS{Value: "Failed: " + errMsg},
		},
	})
	if err != nil {
		return fmt.Errorf("fail job: %w", err)
	}
	return nil
}

// GetQuiz retrieves a single quiz job by ID. A missing job is (nil, nil).
func (s *Store) GetQuiz(ctx context.Context, id string) (*QuizItem, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: &s.tableName,
		Key:       itemKey(id),
	})
	if err != nil {
		return nil, fmt.Errorf("get quiz: %w", err)
	}
	if result.Item == nil {
		return nil, nil
	}

	var item QuizItem
	if err := attributevalue.UnmarshalMap(result.Item, &item); err != nil {
		return nil, fmt.Errorf("unmarshal quiz: %w", err)
	}
	return &item, nil
}

// ListQuizzes returns quiz jobs ordered by creation time (newest first) via GSI1.
func (s *Store) ListQuizzes(ctx context.Context, limit int, cursor string) ([]QuizItem, string, error) {
	if limit <= 0 {
		limit = 20
	}

	input := &dynamodb.QueryInput{
		TableName:              &s.tableName,
		IndexName:              aws.String("GSI1"),
		KeyConditionExpression: aws.String("GSI1PK = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: "QUIZZES"},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(int32(limit)),
	}

	if cursor != "" {
		// cursor is the full GSI1SK value ({timestamp}#{id})
		parts := strings.SplitN(cursor, "#", 2)
		if len(parts) != 2 || parts[1] == "" {
			return nil, "", fmt.Errorf("invalid cursor format")
		}
		key := itemKey(parts[1])
		key["GSI1PK"] = &types.AttributeValueMemberS{Value: "QUIZZES"}
		key["GSI1SK"] = &types.AttributeValueMemberS{Value: cursor}
		input.ExclusiveStartKey = key
	}

	result, err := s.client.Query(ctx, input)
	if err != nil {
		return nil, "", fmt.Errorf("list quizzes: %w", err)
	}

	var items []QuizItem
	if err := attributevalue.UnmarshalListOfMaps(result.Items, &items); err != nil {
		return nil, "", fmt.Errorf("unmarshal quiz list: %w", err)
	}

	var nextCursor string
	if result.LastEvaluatedKey != nil {
		if gsi1sk, ok := result.LastEvaluatedKey["GSI1SK"].(*types.AttributeValueMemberS); ok {
			nextCursor = gsi1sk.Value
		}
	}

	return items, nextCursor, nil
}

// dedupe keeps the first occurrence of each value. DynamoDB string sets
// reject duplicates.
func dedupe(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := values[:0]
	for _, v := range values {
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
