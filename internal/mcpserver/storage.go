package mcpserver

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Storage handles S3 uploads for quiz JSON artifacts.
type Storage struct {
	client     s3API
	bucket     string
	cdnBaseURL string // e.g. "https://quizzes.example.com"; empty means s3:// URLs
}

// NewStorage creates an S3 storage handler.
func NewStorage(client s3API, bucket, cdnBaseURL string) *Storage {
	return &Storage{client: client, bucket: bucket, cdnBaseURL: strings.TrimRight(cdnBaseURL, "/")}
}

// Upload stores a quiz document and returns its S3 key and URL.
func (s *Storage) Upload(ctx context.Context, quizID string, data []byte) (key, url string, err error) {
	key = "quizzes/" + quizID + ".json"

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        &s.bucket,
		Key:           &key,
		Body:          bytes.NewReader(data),
		ContentType:   aws.String("application/json"),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return "", "", fmt.Errorf("upload to s3: %w", err)
	}

	if s.cdnBaseURL == "" {
		return key, fmt.Sprintf("s3://%s/%s", s.bucket, key), nil
	}
	return key, s.cdnBaseURL + "/" + key, nil
}
