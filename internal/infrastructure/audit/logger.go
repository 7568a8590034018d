// Package audit persists the payment diagnostic log to DynamoDB.
package audit

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"github.com/k10r/paymill-shopware/internal/orchestrator"
)

const (
	defaultWriteTimeout = 3 * time.Second

	// ProcessIDIndex is the GSI grouping the entries of one attempt.
	ProcessIDIndex = "process_id-index"
)

// API is the part of *dynamodb.Client the audit logger needs.
type API interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

type entryItem struct {
	ID        string `dynamodbav:"id"`
	ProcessID string `dynamodbav:"process_id"`
	Message   string `dynamodbav:"message"`
	Detail    string `dynamodbav:"detail,omitempty"`
	CreatedAt string `dynamodbav:"created_at"`
}

// Entry is one stored diagnostic line.
type Entry struct {
	ID        string
	ProcessID string
	Message   string
	Detail    string
	CreatedAt time.Time
}

// DynamoLogger writes one item per log entry.
//
// Table requirements:
//   - PK: id (string)
//   - GSI: process_id-index (PK: process_id, SK: created_at)
type DynamoLogger struct {
	api       API
	tableName string
	timeout   time.Duration
	now       func() time.Time
}

var _ orchestrator.Logger = (*DynamoLogger)(nil)

func NewDynamoLogger(api API, tableName string) *DynamoLogger {
	return &DynamoLogger{
		api:       api,
		tableName: tableName,
		timeout:   defaultWriteTimeout,
		now:       time.Now,
	}
}

func (l *DynamoLogger) Log(processID, message, detail string) error {
	item := entryItem{
		ID:        uuid.NewString(),
		ProcessID: processID,
		Message:   message,
		Detail:    detail,
		CreatedAt: l.now().UTC().Format(time.RFC3339Nano),
	}

	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("marshal audit entry: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
	defer cancel()

	_, err = l.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(l.tableName),
		Item:      av,
	})
	if err != nil {
		return fmt.Errorf("put audit entry: %w", err)
	}
	return nil
}

// ListByProcessID returns the entries of one attempt, oldest first.
func (l *DynamoLogger) ListByProcessID(ctx context.Context, processID string) ([]Entry, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(l.tableName),
		IndexName:              aws.String(ProcessIDIndex),
		KeyConditionExpression: aws.String("process_id = :pid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pid": &types.AttributeValueMemberS{Value: processID},
		},
	}

	var entries []Entry
	for {
		out, err := l.api.Query(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("query audit entries: %w", err)
		}
		for _, raw := range out.Items {
			var it entryItem
			if err := attributevalue.UnmarshalMap(raw, &it); err != nil {
				return nil, fmt.Errorf("unmarshal audit entry: %w", err)
			}
			entries = append(entries, fromEntryItem(it))
		}
		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CreatedAt.Before(entries[j].CreatedAt)
	})
	return entries, nil
}

func fromEntryItem(it entryItem) Entry {
	createdAt, _ := time.Parse(time.RFC3339Nano, it.CreatedAt)
	return Entry{
		ID:        it.ID,
		ProcessID: it.ProcessID,
		Message:   it.Message,
		Detail:    it.Detail,
		CreatedAt: createdAt,
	}
}
