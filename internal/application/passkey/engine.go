// Package passkey runs the two WebAuthn ceremonies (registration and
// authentication) on top of go-webauthn. It holds no state: ceremony data
// travels in a domain.Challenge that the caller stores and hands back.
package passkey

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/rohansroy/giterdone/internal/domain"
	"github.com/rohansroy/giterdone/internal/pkg/metrics"
)

const (
	deviceSingle = "single_device"
	deviceMulti  = "multi_device"
)

// Config describes the relying party.
type Config struct {
	RPID         string
	RPName       string
	Origins      []string
	ChallengeTTL time.Duration
}

// Engine verifies attestations and assertions for one relying party.
type Engine struct {
	wa  *webauthn.WebAuthn
	ttl time.Duration
	now func() time.Time
}

func NewEngine(cfg Config) (*Engine, error) {
	wa, err := webauthn.New(&webauthn.Config{
		RPID:          cfg.RPID,
		RPDisplayName: cfg.RPName,
		RPOrigins:     cfg.Origins,
		AuthenticatorSelection: protocol.AuthenticatorSelection{
			ResidentKey:      protocol.ResidentKeyRequirementPreferred,
			UserVerification: protocol.VerificationPreferred,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("configure webauthn: %w", err)
	}
	ttl := cfg.ChallengeTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Engine{wa: wa, ttl: ttl, now: time.Now}, nil
}

// BeginRegistration returns creation options for the given user handle.
// existing, when set, is excluded so the same authenticator isn't enrolled twice.
func (e *Engine) BeginRegistration(handle []byte, email, displayName string, existing *domain.PasskeyCredential) (*protocol.CredentialCreation, *domain.Challenge, error) {
	if displayName == "" {
		displayName = email
	}
	u := &account{handle: handle, name: email, displayName: displayName}
	var opts []webauthn.RegistrationOption
	if existing != nil {
		opts = append(opts, webauthn.WithExclusions([]protocol.CredentialDescriptor{descriptor(existing)}))
	}
	creation, session, err := e.wa.BeginRegistration(u, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("begin registration: %w", err)
	}
	ch, err := e.challenge(domain.PurposeRegistration, email, session)
	if err != nil {
		return nil, nil, err
	}
	return creation, ch, nil
}

// CompleteRegistration verifies an attestation against ch. The returned
// credential belongs to the user handle the ceremony was started for; see
// Handle.
func (e *Engine) CompleteRegistration(ch *domain.Challenge, body []byte) (*domain.PasskeyCredential, error) {
	session, err := e.session(ch, domain.PurposeRegistration)
	if err != nil {
		return nil, err
	}
	parsed, err := protocol.ParseCredentialCreationResponseBytes(body)
	if err != nil {
		metrics.RecordWebAuthnFailure("attestation_malformed")
		return nil, fmt.Errorf("parse attestation: %v: %w", err, domain.ErrAttestationInvalid)
	}
	cred, err := e.wa.CreateCredential(&account{handle: session.UserID}, *session, parsed)
	if err != nil {
		metrics.RecordWebAuthnFailure("attestation")
		return nil, fmt.Errorf("verify attestation: %v: %w", err, domain.ErrAttestationInvalid)
	}
	return fromWebAuthn(cred), nil
}

// BeginAuthentication returns assertion options. With a stored credential
// the allow-list names it; without one the options are discoverable and
// reveal nothing about the account.
func (e *Engine) BeginAuthentication(handle []byte, email string, stored *domain.PasskeyCredential) (*protocol.CredentialAssertion, *domain.Challenge, error) {
	var (
		assertion *protocol.CredentialAssertion
		session   *webauthn.SessionData
		err       error
	)
	if stored == nil {
		assertion, session, err = e.wa.BeginDiscoverableLogin(webauthn.WithUserVerification(protocol.VerificationPreferred))
	} else {
		assertion, session, err = e.wa.BeginLogin(&account{handle: handle, name: email, key: stored},
			webauthn.WithUserVerification(protocol.VerificationPreferred))
	}
	if err != nil {
		return nil, nil, fmt.Errorf("begin authentication: %w", err)
	}
	ch, err := e.challenge(domain.PurposeAuthentication, email, session)
	if err != nil {
		return nil, nil, err
	}
	return assertion, ch, nil
}

// CompleteAuthentication verifies an assertion by the stored credential and
// returns the counter the authenticator reported. A counter that does not
// move past the stored one is rejected unless the authenticator keeps no
// counter at all (both zero).
func (e *Engine) CompleteAuthentication(ch *domain.Challenge, body []byte, handle []byte, stored *domain.PasskeyCredential) (uint32, error) {
	session, err := e.session(ch, domain.PurposeAuthentication)
	if err != nil {
		return 0, err
	}
	if stored == nil {
		return 0, fmt.Errorf("no credential enrolled: %w", domain.ErrAssertionInvalid)
	}
	parsed, err := protocol.ParseCredentialRequestResponseBytes(body)
	if err != nil {
		metrics.RecordWebAuthnFailure("assertion_malformed")
		return 0, fmt.Errorf("parse assertion: %v: %w", err, domain.ErrAssertionInvalid)
	}
	if _, err := e.wa.ValidateLogin(&account{handle: handle, key: stored}, *session, parsed); err != nil {
		metrics.RecordWebAuthnFailure("assertion")
		return 0, fmt.Errorf("verify assertion: %v: %w", err, domain.ErrAssertionInvalid)
	}
	reported := parsed.Response.AuthenticatorData.Counter
	if reported == 0 && stored.SignCount == 0 {
		return 0, nil
	}
	if reported <= stored.SignCount {
		metrics.RecordWebAuthnFailure("replay")
		return 0, fmt.Errorf("counter %d not above %d: %w", reported, stored.SignCount, domain.ErrReplaySuspected)
	}
	return reported, nil
}

// Handle returns the user handle a registration challenge was issued for.
func Handle(ch *domain.Challenge) ([]byte, error) {
	var session webauthn.SessionData
	if err := json.Unmarshal(ch.Session, &session); err != nil {
		return nil, fmt.Errorf("decode ceremony state: %v: %w", err, domain.ErrChallengeExpired)
	}
	return session.UserID, nil
}

func (e *Engine) challenge(purpose domain.ChallengePurpose, email string, session *webauthn.SessionData) (*domain.Challenge, error) {
	raw, err := json.Marshal(session)
	if err != nil {
		return nil, fmt.Errorf("encode ceremony state: %w", err)
	}
	return &domain.Challenge{
		Key:       domain.ChallengeKey(purpose, email),
		Purpose:   purpose,
		Value:     session.Challenge,
		Session:   raw,
		ExpiresAt: e.now().Add(e.ttl).Unix(),
	}, nil
}

func (e *Engine) session(ch *domain.Challenge, purpose domain.ChallengePurpose) (*webauthn.SessionData, error) {
	if ch == nil || ch.Purpose != purpose || ch.Expired(e.now()) {
		return nil, fmt.Errorf("%s challenge: %w", purpose, domain.ErrChallengeExpired)
	}
	var session webauthn.SessionData
	if err := json.Unmarshal(ch.Session, &session); err != nil {
		return nil, fmt.Errorf("decode ceremony state: %v: %w", err, domain.ErrChallengeExpired)
	}
	return &session, nil
}
