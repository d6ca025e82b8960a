// Mark quiz jobs that were left in a running state (for example by a server
// that was killed before it could record the failure) as failed.
//
// Usage:
//
//	go run ./scripts/sweep-stale-jobs --dry-run          # preview changes
//	go run ./scripts/sweep-stale-jobs                     # apply changes
//	go run ./scripts/sweep-stale-jobs --max-age 30m       # custom cutoff
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/apresai/quizzify/internal/mcpserver"
	"github.com/apresai/quizzify/internal/observability"
)

func main() {
	tableName := flag.String("table", "quizzify-jobs", "DynamoDB table name")
	region := flag.String("region", "us-east-1", "AWS region")
	maxAge := flag.Duration("max-age", time.Hour, "Jobs created longer ago than this and not finished are marked failed")
	dryRun := flag.Bool("dry-run", false, "Preview changes without writing")
	flag.Parse()

	ctx := context.Background()
	cfg, err := observability.LoadAWSConfig(ctx, *region)
	if err != nil {
		log.Fatalf("load aws config: %v", err)
	}
	client := dynamodb.NewFromConfig(cfg)
	store := mcpserver.NewStore(client, *tableName)

	cutoff := time.Now().UTC().Add(-*maxAge).Format(time.RFC3339)
	fmt.Printf("Table: %s | Cutoff: %s | Dry run: %v\n", *tableName, cutoff, *dryRun)

	paginator := dynamodb.NewScanPaginator(client, &dynamodb.ScanInput{
		TableName:        tableName,
		FilterExpression: aws.String("begins_with(PK, :prefix) AND #s IN (:submitted, :ingesting, :indexing, :generating, :uploading) AND createdAt < :cutoff"),
		ExpressionAttributeNames: map[string]string{
			"#s": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":prefix":     &types.AttributeValueMemberS{Value: "QUIZ#"},
			":submitted":  &types.AttributeValueMemberS{Value: string(mcpserver.JobStatusSubmitted)},
			":ingesting":  &types.AttributeValueMemberS{Value: string(mcpserver.JobStatusIngesting)},
			":indexing":   &types.AttributeValueMemberS{Value: string(mcpserver.JobStatusIndexing)},
			":generating": &types.AttributeValueMemberS{Value: string(mcpserver.JobStatusGenerating)},
			":uploading":  &types.AttributeValueMemberS{Value: string(mcpserver.JobStatusUploading)},
			":cutoff":     &types.AttributeValueMemberS{Value: cutoff},
		},
	})

	var scanned, swept int
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			log.Fatalf("scan: %v", err)
		}
		for _, item := range page.Items {
			scanned++
			id := strings.TrimPrefix(attrStr(item, "PK"), "QUIZ#")
			action := "FAIL"
			if *dryRun {
				action = "DRY-RUN"
			}
			fmt.Printf("[%s] %s: status=%s created=%s\n", action, id, attrStr(item, "status"), attrStr(item, "createdAt"))

			if *dryRun {
				swept++
				continue
			}
			if err := store.FailJob(ctx, id, "job abandoned: no progress since "+attrStr(item, "createdAt")); err != nil {
				log.Printf("ERROR failing %s: %v", id, err)
				continue
			}
			swept++
		}
	}

	fmt.Printf("\nDone. Matched: %d, Marked failed: %d\n", scanned, swept)
	if *dryRun {
		fmt.Println("(dry run, no changes written)")
	}
}

func attrStr(item map[string]types.AttributeValue, key string) string {
	if v, ok := item[key].(*types.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}
