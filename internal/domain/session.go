package domain

import "time"

// Session backs a refresh token. Only the SHA-256 of the token is stored.
type Session struct {
	SessionID        string    `json:"id" dynamodbav:"session_id"`
	UserID           string    `json:"user_id" dynamodbav:"user_id"`
	RefreshTokenHash string    `json:"-" dynamodbav:"refresh_token_hash"`
	RefreshExpiresAt int64     `json:"-" dynamodbav:"refresh_expires_at"`
	Enable           bool      `json:"enable" dynamodbav:"enable"`
	CreatedAt        time.Time `json:"created" dynamodbav:"created_at"`
	UpdatedAt        time.Time `json:"updated" dynamodbav:"updated_at"`
}

// Tokens is the bearer pair handed to the client.
type Tokens struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}
