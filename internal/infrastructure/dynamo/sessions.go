package dynamo

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rohansroy/giterdone/internal/domain"
)

// SessionRepo provides typed DynamoDB operations for the sessions table.
type SessionRepo struct {
	client    API
	tableName string
	now       func() time.Time
}

func NewSessionRepo(client API, tableName string) *SessionRepo {
	return &SessionRepo{client: client, tableName: tableName, now: time.Now}
}

func (r *SessionRepo) Put(ctx context.Context, s *domain.Session) error {
	item, err := attributevalue.MarshalMap(s)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	if err != nil {
		return infra("sessions.put", err)
	}
	return nil
}

// GetByRefreshHash looks up an enabled session by the hash of its refresh token.
func (r *SessionRepo) GetByRefreshHash(ctx context.Context, hash string) (*domain.Session, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String(indexRefreshToken),
		KeyConditionExpression: aws.String("refresh_token_hash = :rt"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":rt": &types.AttributeValueMemberS{Value: hash},
		},
	})
	if err != nil {
		return nil, infra("sessions.get_by_refresh_hash", err)
	}
	if len(out.Items) == 0 {
		return nil, fmt.Errorf("session not found: %w", domain.ErrNotFound)
	}
	var s domain.Session
	if err := attributevalue.UnmarshalMap(out.Items[0], &s); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	if !s.Enable {
		return nil, fmt.Errorf("session disabled: %w", domain.ErrNotFound)
	}
	return &s, nil
}

// Rotate swaps the refresh hash only if the session still carries oldHash
// and is enabled. The GSI is eventually consistent, so the condition is
// what guarantees a refresh token is accepted once.
func (r *SessionRepo) Rotate(ctx context.Context, sessionID, oldHash, newHash string, newExpiry int64) error {
	ue, err := buildUpdateExpr(map[string]interface{}{
		fieldRefreshTokenHash: newHash,
		fieldRefreshExpiresAt: newExpiry,
		attrUpdatedAt:         r.now().UTC(),
	})
	if err != nil {
		return err
	}
	ue.merge(
		map[string]string{"#old": fieldRefreshTokenHash, "#en": fieldEnable},
		map[string]types.AttributeValue{
			":old": &types.AttributeValueMemberS{Value: oldHash},
			":t":   &types.AttributeValueMemberBOOL{Value: true},
		},
	)
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey(attrSessionID, sessionID),
		UpdateExpression:          aws.String(ue.Expr),
		ConditionExpression:       aws.String("#old = :old AND #en = :t"),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	})
	if isConditionFailed(err) {
		return fmt.Errorf("rotate session %s: %w", sessionID, domain.ErrInvalidOrExpired)
	}
	if err != nil {
		return infra("sessions.rotate", err)
	}
	return nil
}

// Revoke disables a single session. Revoking an unknown session is not an error.
func (r *SessionRepo) Revoke(ctx context.Context, sessionID string) error {
	ue, err := buildUpdateExpr(map[string]interface{}{
		fieldEnable:   false,
		attrUpdatedAt: r.now().UTC(),
	})
	if err != nil {
		return err
	}
	ue.merge(map[string]string{"#sid": attrSessionID}, nil)
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey(attrSessionID, sessionID),
		UpdateExpression:          aws.String(ue.Expr),
		ConditionExpression:       aws.String("attribute_exists(#sid)"),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	})
	if err != nil && !isConditionFailed(err) {
		return infra("sessions.revoke", err)
	}
	return nil
}

// RevokeByUser disables every session of a user across all index pages. It
// keeps going after a failed item and reports the first error.
func (r *SessionRepo) RevokeByUser(ctx context.Context, userID string) error {
	pages := dynamodb.NewQueryPaginator(r.client, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String(indexUserID),
		KeyConditionExpression: aws.String("user_id = :uid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uid": &types.AttributeValueMemberS{Value: userID},
		},
	})
	var firstErr error
	for pages.HasMorePages() {
		out, err := pages.NextPage(ctx)
		if err != nil {
			return infra("sessions.revoke_by_user", err)
		}
		for _, item := range out.Items {
			sidAttr, ok := item[attrSessionID].(*types.AttributeValueMemberS)
			if !ok {
				continue
			}
			if err := r.Revoke(ctx, sidAttr.Value); err != nil {
				slog.Warn("failed to revoke session", "session_id", sidAttr.Value, "user_id", userID, "err", err)
				if firstErr == nil {
					firstErr = err
				}
			}
		}
	}
	return firstErr
}
