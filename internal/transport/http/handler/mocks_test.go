package handler

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/rohansroy/giterdone/internal/application/auth"
	"github.com/rohansroy/giterdone/internal/application/totp"
	"github.com/rohansroy/giterdone/internal/domain"
	jwtinfra "github.com/rohansroy/giterdone/internal/infrastructure/jwt"
	"github.com/rohansroy/giterdone/internal/transport/http/middleware"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockAuthSvc struct{ mock.Mock }

func (m *mockAuthSvc) result(args mock.Arguments) (*auth.Result, error) {
	if res, _ := args.Get(0).(*auth.Result); res != nil {
		return res, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAuthSvc) Register(ctx context.Context, req domain.RegisterRequest) (*auth.Result, error) {
	return m.result(m.Called(ctx, req))
}

func (m *mockAuthSvc) CheckMethod(ctx context.Context, email string) (*domain.AuthMethod, error) {
	args := m.Called(ctx, email)
	if am, _ := args.Get(0).(*domain.AuthMethod); am != nil {
		return am, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAuthSvc) LoginPassword(ctx context.Context, req domain.PasswordLoginRequest) (*auth.Result, error) {
	return m.result(m.Called(ctx, req))
}

func (m *mockAuthSvc) BeginPasskeyLogin(ctx context.Context, email string) (*protocol.CredentialAssertion, error) {
	args := m.Called(ctx, email)
	if a, _ := args.Get(0).(*protocol.CredentialAssertion); a != nil {
		return a, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAuthSvc) CompletePasskeyLogin(ctx context.Context, email string, response []byte, totpCode string) (*auth.Result, error) {
	return m.result(m.Called(ctx, email, response, totpCode))
}

func (m *mockAuthSvc) BeginPasskeyRegistration(ctx context.Context, email, actorID string) (*protocol.CredentialCreation, error) {
	args := m.Called(ctx, email, actorID)
	if c, _ := args.Get(0).(*protocol.CredentialCreation); c != nil {
		return c, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAuthSvc) CompletePasskeyRegistration(ctx context.Context, email string, response []byte, totpCode, actorID string) (*auth.Result, error) {
	return m.result(m.Called(ctx, email, response, totpCode, actorID))
}

func (m *mockAuthSvc) RequestRecovery(ctx context.Context, email string) (*auth.RecoveryAck, error) {
	args := m.Called(ctx, email)
	if a, _ := args.Get(0).(*auth.RecoveryAck); a != nil {
		return a, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAuthSvc) ConfirmRecovery(ctx context.Context, req domain.RecoveryConfirmRequest) (*domain.User, error) {
	args := m.Called(ctx, req)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

type mockTOTPSvc struct{ mock.Mock }

func (m *mockTOTPSvc) Enroll(ctx context.Context, userID string) (*totp.Enrollment, error) {
	args := m.Called(ctx, userID)
	if e, _ := args.Get(0).(*totp.Enrollment); e != nil {
		return e, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockTOTPSvc) Verify(ctx context.Context, userID, code string) error {
	return m.Called(ctx, userID, code).Error(0)
}

func (m *mockTOTPSvc) Disable(ctx context.Context, userID, code string) error {
	return m.Called(ctx, userID, code).Error(0)
}

func (m *mockTOTPSvc) Check(u *domain.User, code string) bool {
	return m.Called(u, code).Bool(0)
}

type mockPasswordSvc struct{ mock.Mock }

func (m *mockPasswordSvc) Hash(plaintext string) (string, error) {
	args := m.Called(plaintext)
	return args.String(0), args.Error(1)
}

func (m *mockPasswordSvc) Verify(u *domain.User, plaintext string) bool {
	return m.Called(u, plaintext).Bool(0)
}

func (m *mockPasswordSvc) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	return m.Called(ctx, userID, oldPassword, newPassword).Error(0)
}

type mockSessionSvc struct{ mock.Mock }

func (m *mockSessionSvc) Issue(ctx context.Context, u *domain.User) (*domain.Tokens, error) {
	args := m.Called(ctx, u)
	if t, _ := args.Get(0).(*domain.Tokens); t != nil {
		return t, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockSessionSvc) Refresh(ctx context.Context, refreshToken string) (*domain.Tokens, error) {
	args := m.Called(ctx, refreshToken)
	if t, _ := args.Get(0).(*domain.Tokens); t != nil {
		return t, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockSessionSvc) Revoke(ctx context.Context, sessionID string) error {
	return m.Called(ctx, sessionID).Error(0)
}

func (m *mockSessionSvc) RevokeUser(ctx context.Context, userID string) error {
	return m.Called(ctx, userID).Error(0)
}

type mockUserSvc struct{ mock.Mock }

func (m *mockUserSvc) Get(ctx context.Context, userID string) (*domain.User, error) {
	args := m.Called(ctx, userID)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockUserSvc) Update(ctx context.Context, userID string, req domain.UpdateProfileRequest) (*domain.User, error) {
	args := m.Called(ctx, userID, req)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

// --- helpers ---

// newTestJWTProvider returns a provider around a fresh in-memory RSA key.
func newTestJWTProvider(t *testing.T) *jwtinfra.Provider {
	t.Helper()
	privKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return jwtinfra.NewProviderFromKeys(privKey, &privKey.PublicKey, 15*time.Minute)
}

// bearerReq builds a request with a signed Bearer token for the given user and method.
func bearerReq(t *testing.T, p *jwtinfra.Provider, method, target, userID, authMethod string, body []byte) *http.Request {
	t.Helper()
	token, err := p.Sign(userID, "sess1", authMethod)
	require.NoError(t, err)
	r := jsonReq(method, target, body)
	r.Header.Set("Authorization", "Bearer "+token)
	return r
}

func jsonReq(method, target string, body []byte) *http.Request {
	if body == nil {
		return httptest.NewRequest(method, target, nil)
	}
	r := httptest.NewRequest(method, target, bytes.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	return r
}

// serveAuthed wraps the handler with middleware.Auth before serving.
func serveAuthed(p *jwtinfra.Provider, h http.Handler, w http.ResponseWriter, r *http.Request) {
	middleware.Auth(p)(h).ServeHTTP(w, r)
}

func testUser(method domain.AuthMethod) *domain.User {
	return &domain.User{
		UserID:       "u1",
		Email:        "a@x.com",
		AuthMethod:   method,
		PasswordHash: "$2a$10$secret",
		TOTPSecret:   "JBSWY3DPEHPK3PXP",
		CreatedAt:    time.Unix(0, 0).UTC(),
	}
}
