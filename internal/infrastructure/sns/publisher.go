// Package sns publishes account recovery events to an SNS topic. A
// subscriber owns delivery (email, SMS); this service never sends mail.
package sns

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/rohansroy/giterdone/internal/domain"
)

// API is the subset of the SNS client the publisher uses.
type API interface {
	Publish(ctx context.Context, in *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// RecoveryEvent is the message body subscribers receive.
type RecoveryEvent struct {
	Email       string    `json:"email"`
	RecoveryURL string    `json:"recovery_url"`
	IssuedAt    time.Time `json:"issued_at"`
}

// RecoveryPublisher sends RecoveryEvent messages to one topic.
type RecoveryPublisher struct {
	client   API
	topicARN string
	now      func() time.Time
}

func NewRecoveryPublisher(client API, topicARN string) *RecoveryPublisher {
	return &RecoveryPublisher{client: client, topicARN: topicARN, now: time.Now}
}

// NewClient builds an SNS client, pointing at endpoint when set (LocalStack).
func NewClient(awsCfg aws.Config, endpoint string) *sns.Client {
	var opts []func(*sns.Options)
	if endpoint != "" {
		opts = append(opts, func(o *sns.Options) { o.BaseEndpoint = aws.String(endpoint) })
	}
	return sns.NewFromConfig(awsCfg, opts...)
}

func (p *RecoveryPublisher) NotifyRecovery(ctx context.Context, email, recoveryURL string) error {
	body, err := json.Marshal(RecoveryEvent{Email: email, RecoveryURL: recoveryURL, IssuedAt: p.now().UTC()})
	if err != nil {
		return fmt.Errorf("marshal recovery event: %w", err)
	}
	_, err = p.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(p.topicARN),
		Message:  aws.String(string(body)),
		Subject:  aws.String("Account recovery"),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"event": {DataType: aws.String("String"), StringValue: aws.String("account_recovery")},
		},
	})
	if err != nil {
		return domain.Infra("sns.publish_recovery", err)
	}
	return nil
}
