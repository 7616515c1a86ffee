// Package auth composes the credential verifiers into the login,
// registration and recovery flows. It decides which proofs are required
// before a session is issued.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/rohansroy/giterdone/internal/application/passkey"
	"github.com/rohansroy/giterdone/internal/domain"
	"github.com/rohansroy/giterdone/internal/pkg/id"
	"github.com/rohansroy/giterdone/internal/pkg/metrics"
	"github.com/rohansroy/giterdone/internal/pkg/validate"
)

// RecoveryAckMessage is returned whether or not the email is registered.
const RecoveryAckMessage = "If an account exists for this email, recovery instructions have been sent."

// decoyPassword is hashed once and compared against on unknown emails so
// those logins cost the same bcrypt work as real ones.
const decoyPassword = "decoy-Password-1"

// Result is the outcome of a flow that authenticates a user. Tokens is nil
// when the caller was already authenticated.
type Result struct {
	User   *domain.User
	Tokens *domain.Tokens
}

// RecoveryAck is the uniform answer to a recovery request. Token and URL
// are only filled when token exposure is enabled.
type RecoveryAck struct {
	Message     string
	Token       string
	RecoveryURL string
}

type Service interface {
	Register(ctx context.Context, req domain.RegisterRequest) (*Result, error)
	// CheckMethod returns nil for unknown emails.
	CheckMethod(ctx context.Context, email string) (*domain.AuthMethod, error)
	LoginPassword(ctx context.Context, req domain.PasswordLoginRequest) (*Result, error)
	BeginPasskeyLogin(ctx context.Context, email string) (*protocol.CredentialAssertion, error)
	CompletePasskeyLogin(ctx context.Context, email string, response []byte, totpCode string) (*Result, error)
	// BeginPasskeyRegistration enrolls for actorID when set, otherwise for
	// email as a new user or a pending passkey enrollment.
	BeginPasskeyRegistration(ctx context.Context, email, actorID string) (*protocol.CredentialCreation, error)
	CompletePasskeyRegistration(ctx context.Context, email string, response []byte, totpCode, actorID string) (*Result, error)
	RequestRecovery(ctx context.Context, email string) (*RecoveryAck, error)
	ConfirmRecovery(ctx context.Context, req domain.RecoveryConfirmRequest) (*domain.User, error)
}

type userStore interface {
	Create(ctx context.Context, u *domain.User) error
	Get(ctx context.Context, userID string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	SetCredential(ctx context.Context, userID string, c domain.Credential) error
	RecordLogin(ctx context.Context, userID string, at time.Time) error
	AdvanceSignCount(ctx context.Context, userID string, credentialID []byte, count uint32) error
}

// challengeStore holds pending WebAuthn challenges. Take must be atomic.
type challengeStore interface {
	Put(ctx context.Context, c *domain.Challenge) error
	Take(ctx context.Context, key string) (*domain.Challenge, error)
}

type passwordVerifier interface {
	Hash(plaintext string) (string, error)
	Verify(u *domain.User, plaintext string) bool
}

type totpChecker interface {
	Check(u *domain.User, code string) bool
}

type passkeyEngine interface {
	BeginRegistration(handle []byte, email, displayName string, existing *domain.PasskeyCredential) (*protocol.CredentialCreation, *domain.Challenge, error)
	CompleteRegistration(ch *domain.Challenge, body []byte) (*domain.PasskeyCredential, error)
	BeginAuthentication(handle []byte, email string, stored *domain.PasskeyCredential) (*protocol.CredentialAssertion, *domain.Challenge, error)
	CompleteAuthentication(ch *domain.Challenge, body []byte, handle []byte, stored *domain.PasskeyCredential) (uint32, error)
}

type sessionIssuer interface {
	Issue(ctx context.Context, u *domain.User) (*domain.Tokens, error)
	RevokeUser(ctx context.Context, userID string) error
}

type recoveryTokens interface {
	Issue(userID string) (string, error)
	Redeem(token string) (string, error)
}

type recoveryNotifier interface {
	NotifyRecovery(ctx context.Context, email, recoveryURL string) error
}

type service struct {
	users       userStore
	challenges  challengeStore
	passwords   passwordVerifier
	totp        totpChecker
	passkeys    passkeyEngine
	sessions    sessionIssuer
	recovery    recoveryTokens
	notifier    recoveryNotifier
	recoveryURL string
	exposeToken bool
	now         func() time.Time

	decoyOnce sync.Once
	decoy     *domain.User
}

type ServiceDeps struct {
	UserRepo      userStore
	ChallengeRepo challengeStore
	Passwords     passwordVerifier
	TOTP          totpChecker
	Passkeys      passkeyEngine
	Sessions      sessionIssuer
	Recovery      recoveryTokens
	// Notifier is optional; without one recovery tokens are only exposed
	// in the response (when ExposeRecoveryToken is set).
	Notifier            recoveryNotifier
	RecoveryURLBase     string
	ExposeRecoveryToken bool
	Now                 func() time.Time
}

func NewService(deps ServiceDeps) Service {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		users:       deps.UserRepo,
		challenges:  deps.ChallengeRepo,
		passwords:   deps.Passwords,
		totp:        deps.TOTP,
		passkeys:    deps.Passkeys,
		sessions:    deps.Sessions,
		recovery:    deps.Recovery,
		notifier:    deps.Notifier,
		recoveryURL: deps.RecoveryURLBase,
		exposeToken: deps.ExposeRecoveryToken,
		now:         now,
	}
}

func (s *service) Register(ctx context.Context, req domain.RegisterRequest) (res *Result, err error) {
	defer func() { metrics.Observe(metrics.FlowRegister, err) }()

	var cred domain.Credential
	switch req.AuthMethod {
	case domain.AuthMethodPassword:
		hash, err := s.passwords.Hash(req.Password)
		if err != nil {
			return nil, err
		}
		cred = domain.Password{Hash: hash}
	case domain.AuthMethodPasskey:
		cred = domain.Passkey{}
	default:
		return nil, fmt.Errorf("auth_method %q: %w", req.AuthMethod, domain.ErrBadRequest)
	}
	u := domain.NewUser(id.NewUserID(), req.Email, cred, s.now().UTC())
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	tokens, err := s.sessions.Issue(ctx, u)
	if err != nil {
		return nil, err
	}
	slog.Info("user registered", "user_id", u.UserID, "auth_method", u.AuthMethod)
	return &Result{User: u, Tokens: tokens}, nil
}

func (s *service) CheckMethod(ctx context.Context, email string) (*domain.AuthMethod, error) {
	u, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, domain.ErrUserNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	method := u.AuthMethod
	return &method, nil
}

func (s *service) LoginPassword(ctx context.Context, req domain.PasswordLoginRequest) (res *Result, err error) {
	defer func() { metrics.Observe(metrics.FlowLoginPassword, err) }()

	u, err := s.users.GetByEmail(ctx, req.Email)
	if errors.Is(err, domain.ErrUserNotFound) {
		s.passwords.Verify(s.decoyUser(), req.Password)
		return nil, fmt.Errorf("login %s: %w", req.Email, domain.ErrInvalidCredentials)
	}
	if err != nil {
		return nil, err
	}
	switch u.Credential().(type) {
	case domain.Passkey:
		return nil, fmt.Errorf("password login: %w", &domain.WrongMethodError{Method: u.AuthMethod})
	case domain.Password:
		if !s.passwords.Verify(u, req.Password) {
			return nil, fmt.Errorf("login %s: %w", u.UserID, domain.ErrInvalidCredentials)
		}
	}
	if err := s.totpGate(u, req.TOTPCode); err != nil {
		return nil, err
	}
	return s.finishLogin(ctx, u)
}

func (s *service) BeginPasskeyLogin(ctx context.Context, email string) (*protocol.CredentialAssertion, error) {
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil && !errors.Is(err, domain.ErrUserNotFound) {
		return nil, err
	}
	var (
		handle []byte
		stored *domain.PasskeyCredential
	)
	if u != nil {
		switch c := u.Credential().(type) {
		case domain.Password:
			return nil, fmt.Errorf("passkey login: %w", &domain.WrongMethodError{Method: u.AuthMethod})
		case domain.Passkey:
			if c.Key != nil {
				handle, stored = id.UserHandle(u.UserID), c.Key
			}
		}
	}
	assertion, ch, err := s.passkeys.BeginAuthentication(handle, email, stored)
	if err != nil {
		return nil, err
	}
	if err := s.challenges.Put(ctx, ch); err != nil {
		return nil, err
	}
	return assertion, nil
}

func (s *service) CompletePasskeyLogin(ctx context.Context, email string, response []byte, totpCode string) (res *Result, err error) {
	defer func() { metrics.Observe(metrics.FlowLoginPasskey, err) }()

	ch, err := s.challenges.Take(ctx, domain.ChallengeKey(domain.PurposeAuthentication, email))
	if err != nil {
		return nil, err
	}
	// Unknown emails and accounts without a key fail like a bad assertion.
	u, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, domain.ErrUserNotFound) {
		return nil, fmt.Errorf("passkey login %s: unknown email: %w", email, domain.ErrAssertionInvalid)
	}
	if err != nil {
		return nil, err
	}
	var key *domain.PasskeyCredential
	switch c := u.Credential().(type) {
	case domain.Password:
		return nil, fmt.Errorf("passkey login: %w", &domain.WrongMethodError{Method: u.AuthMethod})
	case domain.Passkey:
		if c.Key == nil {
			return nil, fmt.Errorf("passkey login %s: no passkey enrolled: %w", u.UserID, domain.ErrAssertionInvalid)
		}
		key = c.Key
	}
	count, err := s.passkeys.CompleteAuthentication(ch, response, id.UserHandle(u.UserID), key)
	if err != nil {
		if errors.Is(err, domain.ErrReplaySuspected) {
			slog.Warn("passkey counter did not advance", "user_id", u.UserID, "stored", key.SignCount)
		}
		return nil, err
	}
	if count > 0 {
		if err := s.users.AdvanceSignCount(ctx, u.UserID, key.CredentialID, count); err != nil {
			if errors.Is(err, domain.ErrReplaySuspected) {
				metrics.RecordWebAuthnFailure("replay_race")
				slog.Warn("concurrent passkey assertion rejected", "user_id", u.UserID, "count", count)
			}
			return nil, err
		}
		key.SignCount = count
	}
	if err := s.totpGate(u, totpCode); err != nil {
		return nil, err
	}
	return s.finishLogin(ctx, u)
}

func (s *service) BeginPasskeyRegistration(ctx context.Context, email, actorID string) (*protocol.CredentialCreation, error) {
	var (
		handle   []byte
		existing *domain.PasskeyCredential
	)
	if actorID != "" {
		actor, err := s.users.Get(ctx, actorID)
		if err != nil {
			return nil, err
		}
		email, handle, existing = actor.Email, id.UserHandle(actor.UserID), actor.Passkey
	} else {
		u, err := s.users.GetByEmail(ctx, email)
		switch {
		case errors.Is(err, domain.ErrUserNotFound):
			handle = id.UserHandle(id.NewUserID())
		case err != nil:
			return nil, err
		case pendingPasskey(u):
			handle = id.UserHandle(u.UserID)
		default:
			return nil, fmt.Errorf("enroll passkey for %s: %w", email, domain.ErrEmailTaken)
		}
	}
	creation, ch, err := s.passkeys.BeginRegistration(handle, domain.NormalizeEmail(email), "", existing)
	if err != nil {
		return nil, err
	}
	if err := s.challenges.Put(ctx, ch); err != nil {
		return nil, err
	}
	return creation, nil
}

// CompletePasskeyRegistration verifies the attestation in both modes. An
// authenticated caller gets the passkey set on their own account without
// new tokens. Otherwise the passkey may only create the user or finish a
// pending enrollment, and a session is issued. Finishing a pending
// enrollment on an account with TOTP enabled requires a valid code.
func (s *service) CompletePasskeyRegistration(ctx context.Context, email string, response []byte, totpCode, actorID string) (res *Result, err error) {
	defer func() { metrics.Observe(metrics.FlowPasskeyEnroll, err) }()

	if actorID != "" {
		actor, err := s.users.Get(ctx, actorID)
		if err != nil {
			return nil, err
		}
		email = actor.Email
	}
	email = domain.NormalizeEmail(email)
	ch, err := s.challenges.Take(ctx, domain.ChallengeKey(domain.PurposeRegistration, email))
	if err != nil {
		return nil, err
	}
	handle, err := passkey.Handle(ch)
	if err != nil {
		return nil, err
	}
	key, err := s.passkeys.CompleteRegistration(ch, response)
	if err != nil {
		return nil, err
	}
	userID := id.UserIDFromHandle(handle)

	if actorID != "" {
		if userID != actorID {
			return nil, fmt.Errorf("challenge issued for another user: %w", domain.ErrAttestationInvalid)
		}
		if err := s.users.SetCredential(ctx, userID, domain.Passkey{Key: key}); err != nil {
			return nil, err
		}
		u, err := s.users.Get(ctx, userID)
		if err != nil {
			return nil, err
		}
		return &Result{User: u}, nil
	}

	u, err := s.users.Get(ctx, userID)
	switch {
	case errors.Is(err, domain.ErrUserNotFound):
		u = domain.NewUser(userID, email, domain.Passkey{Key: key}, s.now().UTC())
		if err := s.users.Create(ctx, u); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	case pendingPasskey(u):
		if err := s.totpGate(u, totpCode); err != nil {
			return nil, err
		}
		if err := s.users.SetCredential(ctx, userID, domain.Passkey{Key: key}); err != nil {
			return nil, err
		}
		u.SetCredential(domain.Passkey{Key: key})
	default:
		return nil, fmt.Errorf("enroll passkey for %s: %w", email, domain.ErrEmailTaken)
	}
	return s.finishLogin(ctx, u)
}

// RequestRecovery answers identically for known and unknown emails. Unknown
// emails get a token for a random id that can never be redeemed.
func (s *service) RequestRecovery(ctx context.Context, email string) (ack *RecoveryAck, err error) {
	defer func() { metrics.Observe(metrics.FlowRecovery, err) }()

	u, err := s.users.GetByEmail(ctx, email)
	if err != nil && !errors.Is(err, domain.ErrUserNotFound) {
		return nil, err
	}
	subject := id.NewUserID()
	if u != nil {
		subject = u.UserID
	}
	token, err := s.recovery.Issue(subject)
	if err != nil {
		return nil, err
	}
	link := s.recoveryLink(token)
	if u != nil && s.notifier != nil {
		if err := s.notifier.NotifyRecovery(ctx, u.Email, link); err != nil {
			slog.Error("recovery notification failed", "user_id", u.UserID, "err", err)
		}
	}
	ack = &RecoveryAck{Message: RecoveryAckMessage}
	if s.exposeToken {
		ack.Token, ack.RecoveryURL = token, link
	}
	return ack, nil
}

// ConfirmRecovery replaces the primary credential and ends every session of
// the user. The TOTP factor is left as it was.
func (s *service) ConfirmRecovery(ctx context.Context, req domain.RecoveryConfirmRequest) (u *domain.User, err error) {
	defer func() { metrics.Observe(metrics.FlowRecovery, err) }()

	userID, err := s.recovery.Redeem(req.Token)
	if err != nil {
		return nil, err
	}
	if _, err := s.users.Get(ctx, userID); err != nil {
		return nil, err
	}
	var cred domain.Credential
	switch req.NewAuthMethod {
	case domain.AuthMethodPassword:
		if err := validate.Password(req.Password); err != nil {
			return nil, fmt.Errorf("%s: %w", err.Error(), domain.ErrPolicyViolation)
		}
		hash, err := s.passwords.Hash(req.Password)
		if err != nil {
			return nil, err
		}
		cred = domain.Password{Hash: hash}
	case domain.AuthMethodPasskey:
		cred = domain.Passkey{}
	default:
		return nil, fmt.Errorf("new_auth_method %q: %w", req.NewAuthMethod, domain.ErrBadRequest)
	}
	if err := s.users.SetCredential(ctx, userID, cred); err != nil {
		return nil, err
	}
	if err := s.sessions.RevokeUser(ctx, userID); err != nil {
		return nil, err
	}
	slog.Info("account recovered", "user_id", userID, "auth_method", cred.Method())
	return s.users.Get(ctx, userID)
}

// totpGate runs after the primary credential has been accepted.
func (s *service) totpGate(u *domain.User, code string) error {
	if !u.TOTPEnabled {
		return nil
	}
	if code == "" {
		return fmt.Errorf("login %s: %w", u.UserID, domain.ErrTotpRequired)
	}
	if !s.totp.Check(u, code) {
		return fmt.Errorf("login %s: totp: %w", u.UserID, domain.ErrInvalidCredentials)
	}
	return nil
}

func (s *service) finishLogin(ctx context.Context, u *domain.User) (*Result, error) {
	now := s.now().UTC()
	if err := s.users.RecordLogin(ctx, u.UserID, now); err != nil {
		return nil, err
	}
	u.LastLoginAt = &now
	tokens, err := s.sessions.Issue(ctx, u)
	if err != nil {
		return nil, err
	}
	return &Result{User: u, Tokens: tokens}, nil
}

func (s *service) recoveryLink(token string) string {
	if s.recoveryURL == "" {
		return ""
	}
	return s.recoveryURL + "?token=" + url.QueryEscape(token)
}

func (s *service) decoyUser() *domain.User {
	s.decoyOnce.Do(func() {
		hash, err := s.passwords.Hash(decoyPassword)
		if err != nil {
			hash = ""
		}
		s.decoy = &domain.User{AuthMethod: domain.AuthMethodPassword, PasswordHash: hash}
	})
	return s.decoy
}

func pendingPasskey(u *domain.User) bool {
	_, ok := u.Credential().(domain.Passkey)
	return ok && !u.HasPasskey()
}
