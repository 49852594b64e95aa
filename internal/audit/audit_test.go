package audit

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type MockDynamo struct {
	mock.Mock
}

func (m *MockDynamo) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dynamodb.PutItemOutput), args.Error(1)
}

func (m *MockDynamo) Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dynamodb.QueryOutput), args.Error(1)
}

func TestRecordPutsItem(t *testing.T) {
	client := new(MockDynamo)
	log := NewLog(client, "usage_logs", zap.NewNop())
	fixed := time.Date(2024, 4, 5, 10, 0, 0, 0, time.UTC)
	log.now = func() time.Time { return fixed }
	companyID := uuid.New()

	var stored Event
	client.On("PutItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.PutItemInput) bool {
		return aws.ToString(in.TableName) == "usage_logs"
	})).Run(func(args mock.Arguments) {
		in := args.Get(1).(*dynamodb.PutItemInput)
		require.NoError(t, attributevalue.UnmarshalMap(in.Item, &stored))
	}).Return(&dynamodb.PutItemOutput{}, nil)

	err := log.Record(context.Background(), companyID, EventUpload, map[string]string{"filename": "factura.pdf"})
	require.NoError(t, err)

	assert.Equal(t, companyID.String(), stored.CompanyID)
	assert.Equal(t, EventUpload, stored.EventType)
	assert.Equal(t, "factura.pdf", stored.Details["filename"])
	assert.True(t, fixed.Equal(stored.OccurredAt))
	assert.Contains(t, stored.SortKey, "2024-04-05T10:00:00Z#")
}

func TestRecordWithoutTable(t *testing.T) {
	client := new(MockDynamo)
	log := NewLog(client, "", zap.NewNop())

	require.NoError(t, log.Record(context.Background(), uuid.New(), EventAnalyze, nil))
	client.AssertNotCalled(t, "PutItem", mock.Anything, mock.Anything)
}

func TestRecent(t *testing.T) {
	client := new(MockDynamo)
	log := NewLog(client, "usage_logs", zap.NewNop())
	companyID := uuid.New()

	item, err := attributevalue.MarshalMap(Event{CompanyID: companyID.String(), ID: "e1", EventType: EventReportGenerated})
	require.NoError(t, err)

	client.On("Query", mock.Anything, mock.MatchedBy(func(in *dynamodb.QueryInput) bool {
		v, ok := in.ExpressionAttributeValues[":c"].(*types.AttributeValueMemberS)
		return ok && v.Value == companyID.String() && !aws.ToBool(in.ScanIndexForward)
	})).Return(&dynamodb.QueryOutput{Items: []map[string]types.AttributeValue{item}}, nil)

	events, err := log.Recent(context.Background(), companyID, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, EventReportGenerated, events[0].EventType)
}
