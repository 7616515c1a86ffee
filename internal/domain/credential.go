package domain

// Credential is the primary proof of identity a user authenticates with.
// It is one of Password or Passkey; callers switch on the concrete type.
type Credential interface {
	Method() AuthMethod
	credential()
}

// Password holds a bcrypt hash. An empty hash never verifies.
type Password struct {
	Hash string
}

func (Password) Method() AuthMethod { return AuthMethodPassword }
func (Password) credential()        {}

// Passkey holds the enrolled WebAuthn credential. Key is nil while
// enrollment is pending, e.g. right after recovery switched the account.
type Passkey struct {
	Key *PasskeyCredential
}

func (Passkey) Method() AuthMethod { return AuthMethodPasskey }
func (Passkey) credential()        {}

// PasskeyCredential is the stored public key material of a WebAuthn credential.
type PasskeyCredential struct {
	CredentialID   []byte   `json:"credential_id" dynamodbav:"credential_id"`
	PublicKey      []byte   `json:"public_key" dynamodbav:"public_key"`
	SignCount      uint32   `json:"sign_count" dynamodbav:"sign_count"`
	AAGUID         []byte   `json:"aaguid,omitempty" dynamodbav:"aaguid,omitempty"`
	Format         string   `json:"format" dynamodbav:"format"`
	CredentialType string   `json:"credential_type" dynamodbav:"credential_type"`
	UserVerified   bool     `json:"user_verified" dynamodbav:"user_verified"`
	BackupEligible bool     `json:"backup_eligible" dynamodbav:"backup_eligible"`
	BackedUp       bool     `json:"backed_up" dynamodbav:"backed_up"`
	DeviceType     string   `json:"device_type" dynamodbav:"device_type"`
	Transports     []string `json:"transports,omitempty" dynamodbav:"transports,omitempty"`
	Attachment     string   `json:"attachment,omitempty" dynamodbav:"attachment,omitempty"`
}

// Credential derives the active variant from AuthMethod. Storage belonging
// to the other variant is ignored.
func (u *User) Credential() Credential {
	switch u.AuthMethod {
	case AuthMethodPasskey:
		return Passkey{Key: u.Passkey}
	default:
		return Password{Hash: u.PasswordHash}
	}
}

// SetCredential switches the user to c's method and clears the storage of
// the other variant.
func (u *User) SetCredential(c Credential) {
	switch c := c.(type) {
	case Password:
		u.AuthMethod = AuthMethodPassword
		u.PasswordHash = c.Hash
		u.Passkey = nil
	case Passkey:
		u.AuthMethod = AuthMethodPasskey
		u.PasswordHash = ""
		u.Passkey = c.Key
	}
}
