package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rohansroy/giterdone/internal/domain"
)

// ChallengeRepo stores pending WebAuthn challenges. DynamoDB TTL removes
// abandoned items eventually; Take enforces expiry exactly.
type ChallengeRepo struct {
	client    API
	tableName string
	now       func() time.Time
}

func NewChallengeRepo(client API, tableName string) *ChallengeRepo {
	return &ChallengeRepo{client: client, tableName: tableName, now: time.Now}
}

// Put stores c, replacing any earlier challenge under the same key.
func (r *ChallengeRepo) Put(ctx context.Context, c *domain.Challenge) error {
	item, err := attributevalue.MarshalMap(c)
	if err != nil {
		return fmt.Errorf("marshal challenge: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	if err != nil {
		return infra("challenges.put", err)
	}
	return nil
}

// Take deletes the challenge and returns what was stored. Only one caller
// can observe a given challenge.
func (r *ChallengeRepo) Take(ctx context.Context, key string) (*domain.Challenge, error) {
	out, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:    aws.String(r.tableName),
		Key:          strKey(attrChallengeKey, key),
		ReturnValues: types.ReturnValueAllOld,
	})
	if err != nil {
		return nil, infra("challenges.take", err)
	}
	if len(out.Attributes) == 0 {
		return nil, fmt.Errorf("challenge %s: %w", key, domain.ErrChallengeExpired)
	}
	var c domain.Challenge
	if err := attributevalue.UnmarshalMap(out.Attributes, &c); err != nil {
		return nil, fmt.Errorf("unmarshal challenge: %w", err)
	}
	if c.Expired(r.now()) {
		return nil, fmt.Errorf("challenge %s: %w", key, domain.ErrChallengeExpired)
	}
	return &c, nil
}
