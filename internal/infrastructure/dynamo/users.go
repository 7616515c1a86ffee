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

// UserRepo provides typed DynamoDB operations for the users table.
// Email uniqueness is enforced with a sentinel item keyed EMAIL#<address>
// written in the same transaction as the user.
type UserRepo struct {
	client    API
	tableName string
	now       func() time.Time
}

func NewUserRepo(client API, tableName string) *UserRepo {
	return &UserRepo{client: client, tableName: tableName, now: time.Now}
}

func (r *UserRepo) Create(ctx context.Context, u *domain.User) error {
	item, err := attributevalue.MarshalMap(u)
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}
	lock := map[string]types.AttributeValue{
		attrUserID: &types.AttributeValueMemberS{Value: emailLockPrefix + u.Email},
		"owner_id": &types.AttributeValueMemberS{Value: u.UserID},
	}
	notExists := aws.String("attribute_not_exists(user_id)")
	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Put: &types.Put{TableName: aws.String(r.tableName), Item: lock, ConditionExpression: notExists}},
			{Put: &types.Put{TableName: aws.String(r.tableName), Item: item, ConditionExpression: notExists}},
		},
	})
	if isTransactionCanceled(err) {
		return fmt.Errorf("create user %s: %w", u.Email, domain.ErrEmailTaken)
	}
	if err != nil {
		return infra("users.create", err)
	}
	return nil
}

func (r *UserRepo) Get(ctx context.Context, userID string) (*domain.User, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            strKey(attrUserID, userID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, infra("users.get", err)
	}
	if out.Item == nil {
		return nil, fmt.Errorf("user %s: %w", userID, domain.ErrUserNotFound)
	}
	return unmarshalUser(out.Item)
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		IndexName:                 aws.String(indexEmail),
		KeyConditionExpression:    aws.String("#a = :v"),
		ExpressionAttributeNames:  map[string]string{"#a": attrEmail},
		ExpressionAttributeValues: map[string]types.AttributeValue{":v": &types.AttributeValueMemberS{Value: domain.NormalizeEmail(email)}},
		Limit:                     aws.Int32(1),
	})
	if err != nil {
		return nil, infra("users.get_by_email", err)
	}
	if len(out.Items) == 0 {
		return nil, fmt.Errorf("user %s: %w", email, domain.ErrUserNotFound)
	}
	return unmarshalUser(out.Items[0])
}

// SetCredential writes the method and both credential attributes in one
// update so a reader never sees a mix of the two variants.
func (r *UserRepo) SetCredential(ctx context.Context, userID string, c domain.Credential) error {
	updates := map[string]interface{}{fieldAuthMethod: string(c.Method())}
	switch c := c.(type) {
	case domain.Password:
		updates[fieldPasswordHash] = c.Hash
		updates[fieldPasskey] = nil
	case domain.Passkey:
		updates[fieldPasswordHash] = nil
		if c.Key != nil {
			updates[fieldPasskey] = c.Key
		} else {
			updates[fieldPasskey] = nil
		}
	}
	_, err := r.update(ctx, "users.set_credential", userID, updates)
	return err
}

// SetTOTP stores the secret and enabled flag. An empty secret removes it.
func (r *UserRepo) SetTOTP(ctx context.Context, userID, secret string, enabled bool) error {
	updates := map[string]interface{}{fieldTOTPEnabled: enabled}
	if secret == "" {
		updates[fieldTOTPSecret] = nil
	} else {
		updates[fieldTOTPSecret] = secret
	}
	_, err := r.update(ctx, "users.set_totp", userID, updates)
	return err
}

func (r *UserRepo) RecordLogin(ctx context.Context, userID string, at time.Time) error {
	_, err := r.update(ctx, "users.record_login", userID, map[string]interface{}{fieldLastLoginAt: at.UTC()})
	return err
}

// UpdateProfile applies the non-nil fields of req and returns the new record.
func (r *UserRepo) UpdateProfile(ctx context.Context, userID string, req domain.UpdateProfileRequest) (*domain.User, error) {
	updates := map[string]interface{}{}
	if req.FirstName != nil {
		updates[fieldFirstName] = *req.FirstName
	}
	if req.LastName != nil {
		updates[fieldLastName] = *req.LastName
	}
	if req.Age != nil {
		updates[fieldAge] = *req.Age
	}
	if req.Birthday != nil {
		updates[fieldBirthday] = *req.Birthday
	}
	if req.AvatarStyle != nil {
		updates[fieldAvatarStyle] = *req.AvatarStyle
	}
	if len(updates) == 0 {
		return r.Get(ctx, userID)
	}
	return r.update(ctx, "users.update_profile", userID, updates)
}

// AdvanceSignCount stores a new signature counter only if it is strictly
// greater than the stored one for the same credential. Two concurrent
// assertions carrying the same counter cannot both succeed.
func (r *UserRepo) AdvanceSignCount(ctx context.Context, userID string, credentialID []byte, count uint32) error {
	now, err := attributevalue.Marshal(r.now().UTC())
	if err != nil {
		return fmt.Errorf("marshal updated_at: %w", err)
	}
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 strKey(attrUserID, userID),
		UpdateExpression:    aws.String("SET #pk.#sc = :n, #ua = :ua"),
		ConditionExpression: aws.String("#am = :passkey AND #pk.#cid = :cid AND #pk.#sc < :n"),
		ExpressionAttributeNames: map[string]string{
			"#pk":  fieldPasskey,
			"#sc":  "sign_count",
			"#cid": "credential_id",
			"#am":  fieldAuthMethod,
			"#ua":  attrUpdatedAt,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":n":       &types.AttributeValueMemberN{Value: fmt.Sprint(count)},
			":cid":     &types.AttributeValueMemberB{Value: credentialID},
			":passkey": &types.AttributeValueMemberS{Value: string(domain.AuthMethodPasskey)},
			":ua":      now,
		},
	})
	if isConditionFailed(err) {
		return fmt.Errorf("advance sign count to %d: %w", count, domain.ErrReplaySuspected)
	}
	if err != nil {
		return infra("users.advance_sign_count", err)
	}
	return nil
}

// Delete removes the user and releases its email reservation.
func (r *UserRepo) Delete(ctx context.Context, userID string) error {
	u, err := r.Get(ctx, userID)
	if err != nil {
		return err
	}
	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Delete: &types.Delete{TableName: aws.String(r.tableName), Key: strKey(attrUserID, userID)}},
			{Delete: &types.Delete{TableName: aws.String(r.tableName), Key: strKey(attrUserID, emailLockPrefix+u.Email)}},
		},
	})
	if err != nil {
		return infra("users.delete", err)
	}
	return nil
}

// update applies updates to an existing user and returns the stored result.
func (r *UserRepo) update(ctx context.Context, op, userID string, updates map[string]interface{}) (*domain.User, error) {
	updates[attrUpdatedAt] = r.now().UTC()
	ue, err := buildUpdateExpr(updates)
	if err != nil {
		return nil, err
	}
	ue.merge(map[string]string{"#pkey": attrUserID}, nil)
	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey(attrUserID, userID),
		UpdateExpression:          aws.String(ue.Expr),
		ConditionExpression:       aws.String("attribute_exists(#pkey)"),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
		ReturnValues:              types.ReturnValueAllNew,
	})
	if isConditionFailed(err) {
		return nil, fmt.Errorf("user %s: %w", userID, domain.ErrUserNotFound)
	}
	if err != nil {
		return nil, infra(op, err)
	}
	return unmarshalUser(out.Attributes)
}

func unmarshalUser(item map[string]types.AttributeValue) (*domain.User, error) {
	var u domain.User
	if err := attributevalue.UnmarshalMap(item, &u); err != nil {
		return nil, fmt.Errorf("unmarshal user: %w", err)
	}
	return &u, nil
}
