package passkey

import (
	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/rohansroy/giterdone/internal/domain"
)

// account adapts a user to webauthn.User for the duration of one ceremony.
type account struct {
	handle      []byte
	name        string
	displayName string
	key         *domain.PasskeyCredential
}

func (a *account) WebAuthnID() []byte { return a.handle }

func (a *account) WebAuthnName() string { return a.name }

func (a *account) WebAuthnDisplayName() string {
	if a.displayName == "" {
		return a.name
	}
	return a.displayName
}

func (a *account) WebAuthnCredentials() []webauthn.Credential {
	if a.key == nil {
		return nil
	}
	return []webauthn.Credential{toWebAuthn(a.key)}
}

func descriptor(p *domain.PasskeyCredential) protocol.CredentialDescriptor {
	return protocol.CredentialDescriptor{
		Type:         protocol.PublicKeyCredentialType,
		CredentialID: p.CredentialID,
		Transport:    transports(p.Transports),
	}
}

func transports(in []string) []protocol.AuthenticatorTransport {
	out := make([]protocol.AuthenticatorTransport, 0, len(in))
	for _, t := range in {
		out = append(out, protocol.AuthenticatorTransport(t))
	}
	return out
}

func toWebAuthn(p *domain.PasskeyCredential) webauthn.Credential {
	return webauthn.Credential{
		ID:              p.CredentialID,
		PublicKey:       p.PublicKey,
		AttestationType: p.Format,
		Transport:       transports(p.Transports),
		Flags: webauthn.CredentialFlags{
			UserPresent:    true,
			UserVerified:   p.UserVerified,
			BackupEligible: p.BackupEligible,
			BackupState:    p.BackedUp,
		},
		Authenticator: webauthn.Authenticator{
			AAGUID:     p.AAGUID,
			SignCount:  p.SignCount,
			Attachment: protocol.AuthenticatorAttachment(p.Attachment),
		},
	}
}

func fromWebAuthn(c *webauthn.Credential) *domain.PasskeyCredential {
	ts := make([]string, 0, len(c.Transport))
	for _, t := range c.Transport {
		ts = append(ts, string(t))
	}
	deviceType := deviceSingle
	if c.Flags.BackupEligible {
		deviceType = deviceMulti
	}
	return &domain.PasskeyCredential{
		CredentialID:   c.ID,
		PublicKey:      c.PublicKey,
		SignCount:      c.Authenticator.SignCount,
		AAGUID:         c.Authenticator.AAGUID,
		Format:         c.AttestationType,
		CredentialType: string(protocol.PublicKeyCredentialType),
		UserVerified:   c.Flags.UserVerified,
		BackupEligible: c.Flags.BackupEligible,
		BackedUp:       c.Flags.BackupState,
		DeviceType:     deviceType,
		Transports:     ts,
		Attachment:     string(c.Authenticator.Attachment),
	}
}
