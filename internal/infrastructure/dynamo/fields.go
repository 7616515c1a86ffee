package dynamo

// DynamoDB attribute names used in key and update expressions across all repos.
const (
	attrUserID    = "user_id"
	attrEmail     = "email"
	attrUpdatedAt = "updated_at"

	fieldAuthMethod   = "auth_method"
	fieldPasswordHash = "password_hash"
	fieldPasskey      = "passkey"
	fieldTOTPSecret   = "totp_secret"
	fieldTOTPEnabled  = "totp_enabled"
	fieldLastLoginAt  = "last_login_at"
	fieldFirstName    = "first_name"
	fieldLastName     = "last_name"
	fieldAge          = "age"
	fieldBirthday     = "birthday"
	fieldAvatarStyle  = "avatar_style"

	attrSessionID         = "session_id"
	fieldEnable           = "enable"
	fieldRefreshTokenHash = "refresh_token_hash"
	fieldRefreshExpiresAt = "refresh_expires_at"

	attrChallengeKey = "challenge_key"
	fieldExpiresAt   = "expires_at"

	indexEmail        = "email-index"
	indexUserID       = "user_id-index"
	indexRefreshToken = "refresh_token_hash-index"

	// emailLockPrefix marks the sentinel item that reserves an address.
	emailLockPrefix = "EMAIL#"
)
