package domain

import "time"

type ChallengePurpose string

const (
	PurposeRegistration   ChallengePurpose = "registration"
	PurposeAuthentication ChallengePurpose = "authentication"
)

// Challenge is a pending WebAuthn ceremony. It lives in a TTL store and
// is consumed exactly once.
// ExpiresAt is a Unix timestamp used as DynamoDB TTL.
type Challenge struct {
	Key       string           `json:"key" dynamodbav:"challenge_key"`
	Purpose   ChallengePurpose `json:"purpose" dynamodbav:"purpose"`
	Value     string           `json:"value" dynamodbav:"value"`     // base64url
	Session   []byte           `json:"session" dynamodbav:"session"` // serialized ceremony state
	ExpiresAt int64            `json:"expires_at" dynamodbav:"expires_at"`
}

// ChallengeKey scopes a challenge to one flow for one email.
func ChallengeKey(purpose ChallengePurpose, email string) string {
	return string(purpose) + ":" + NormalizeEmail(email)
}

func (c *Challenge) Expired(now time.Time) bool {
	return now.Unix() >= c.ExpiresAt
}
