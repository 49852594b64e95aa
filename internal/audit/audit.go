// Package audit keeps a per-company usage trail in DynamoDB.
package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Event types.
const (
	EventUpload          = "upload"
	EventAnalyze         = "analyze"
	EventReportGenerated = "report_generated"
)

// Event is one usage log item. The table is keyed by company_id (partition)
// and sk (sort), where sk is the RFC 3339 timestamp followed by the event id.
type Event struct {
	CompanyID  string            `json:"company_id" dynamodbav:"company_id"`
	SortKey    string            `json:"-" dynamodbav:"sk"`
	ID         string            `json:"id" dynamodbav:"id"`
	EventType  string            `json:"event_type" dynamodbav:"event_type"`
	OccurredAt time.Time         `json:"occurred_at" dynamodbav:"occurred_at"`
	Details    map[string]string `json:"details,omitempty" dynamodbav:"details,omitempty"`
}

// DynamoAPI is the part of the DynamoDB client the log uses.
type DynamoAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// Log writes events. Without a table name events only go to the logger.
type Log struct {
	client DynamoAPI
	table  string
	logger *zap.Logger
	now    func() time.Time
}

func NewLog(client DynamoAPI, table string, logger *zap.Logger) *Log {
	return &Log{
		client: client,
		table:  table,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Record stores an event for the company.
func (l *Log) Record(ctx context.Context, companyID uuid.UUID, eventType string, details map[string]string) error {
	now := l.now()
	id := uuid.New().String()
	event := Event{
		CompanyID:  companyID.String(),
		SortKey:    now.Format(time.RFC3339Nano) + "#" + id,
		ID:         id,
		EventType:  eventType,
		OccurredAt: now,
		Details:    details,
	}

	if l.client == nil || l.table == "" {
		l.logger.Debug("Audit event", zap.String("company_id", event.CompanyID), zap.String("event", eventType))
		return nil
	}

	item, err := attributevalue.MarshalMap(event)
	if err != nil {
		return fmt.Errorf("failed to marshal audit event: %w", err)
	}
	if _, err := l.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(l.table),
		Item:      item,
	}); err != nil {
		return fmt.Errorf("failed to store audit event: %w", err)
	}
	return nil
}

// Recent returns the newest events of a company, newest first.
func (l *Log) Recent(ctx context.Context, companyID uuid.UUID, limit int32) ([]Event, error) {
	if l.client == nil || l.table == "" {
		return []Event{}, nil
	}

	out, err := l.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(l.table),
		KeyConditionExpression: aws.String("company_id = :c"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":c": &types.AttributeValueMemberS{Value: companyID.String()},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(limit),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query audit events: %w", err)
	}

	events := []Event{}
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &events); err != nil {
		return nil, fmt.Errorf("failed to unmarshal audit events: %w", err)
	}
	return events, nil
}
