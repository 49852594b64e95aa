// Package notifications tells operators about missing emission factors.
package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"go.uber.org/zap"
)

// SNSAPI is the part of the SNS client the publisher uses.
type SNSAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// Publisher sends factor gap alerts to an SNS topic. With no topic configured
// alerts are only logged.
type Publisher struct {
	client   SNSAPI
	topicARN string
	logger   *zap.Logger
}

func NewPublisher(client SNSAPI, topicARN string, logger *zap.Logger) *Publisher {
	return &Publisher{
		client:   client,
		topicARN: topicARN,
		logger:   logger,
	}
}

// PublishFactorGaps sends one message per document.
func (p *Publisher) PublishFactorGaps(ctx context.Context, alert FactorGapAlert) error {
	if len(alert.Gaps) == 0 {
		return nil
	}
	alert.Event = EventFactorGap

	if p.client == nil || p.topicARN == "" {
		p.logger.Warn("Factor gaps detected, no alert topic configured",
			zap.String("document_id", alert.DocumentID.String()),
			zap.Int("gaps", len(alert.Gaps)))
		return nil
	}

	body, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("failed to encode alert: %w", err)
	}

	out, err := p.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(p.topicARN),
		Subject:  aws.String(fmt.Sprintf("Missing emission factors (%d)", len(alert.Gaps))),
		Message:  aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"event": {DataType: aws.String("String"), StringValue: aws.String(EventFactorGap)},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to publish factor gap alert: %w", err)
	}

	p.logger.Info("Published factor gap alert",
		zap.String("document_id", alert.DocumentID.String()),
		zap.String("message_id", aws.ToString(out.MessageId)))
	return nil
}
