package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/descope/virtualwebauthn"
	"github.com/rohansroy/giterdone/internal/application/passkey"
	"github.com/rohansroy/giterdone/internal/application/password"
	"github.com/rohansroy/giterdone/internal/application/recovery"
	"github.com/rohansroy/giterdone/internal/application/session"
	"github.com/rohansroy/giterdone/internal/application/totp"
	jwtinfra "github.com/rohansroy/giterdone/internal/infrastructure/jwt"
	"github.com/rohansroy/giterdone/internal/infrastructure/memory"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var testRP = virtualwebauthn.RelyingParty{Name: "Giterdone", ID: "localhost", Origin: "http://localhost:3000"}

var (
	keyOnce sync.Once
	rsaKey  *rsa.PrivateKey
)

func signingKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	keyOnce.Do(func() {
		var err error
		rsaKey, err = rsa.GenerateKey(rand.Reader, 2048)
		require.NoError(t, err)
	})
	return rsaKey
}

type mockNotifier struct{ mock.Mock }

func (m *mockNotifier) NotifyRecovery(ctx context.Context, email, recoveryURL string) error {
	return m.Called(ctx, email, recoveryURL).Error(0)
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// harness wires the orchestrator to the in-memory stores and the real
// verifiers, so flows run end to end.
type harness struct {
	svc        Service
	users      *memory.UserStore
	sessions   *memory.SessionStore
	sessionSvc session.Service
	totp       totp.Service
	jwt        *jwtinfra.Provider
	notifier   *mockNotifier
	recovery   *clock
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	users := memory.NewUserStore()
	sessions := memory.NewSessionStore()
	key := signingKey(t)
	provider := jwtinfra.NewProviderFromKeys(key, &key.PublicKey, 15*time.Minute)
	engine, err := passkey.NewEngine(passkey.Config{
		RPID:         testRP.ID,
		RPName:       testRP.Name,
		Origins:      []string{testRP.Origin},
		ChallengeTTL: 5 * time.Minute,
	})
	require.NoError(t, err)

	h := &harness{
		users:    users,
		sessions: sessions,
		jwt:      provider,
		notifier: new(mockNotifier),
		recovery: &clock{t: time.Now()},
	}
	h.sessionSvc = session.NewService(session.ServiceDeps{
		SessionRepo: sessions,
		UserRepo:    users,
		JWTProvider: provider,
		RefreshTTL:  7 * 24 * time.Hour,
	})
	h.totp = totp.NewService(totp.ServiceDeps{UserRepo: users, Issuer: "Giterdone"})
	h.svc = NewService(ServiceDeps{
		UserRepo:      users,
		ChallengeRepo: memory.NewChallengeStore(),
		Passwords:     password.NewService(password.ServiceDeps{UserRepo: users, Cost: bcrypt.MinCost}),
		TOTP:          h.totp,
		Passkeys:      engine,
		Sessions:      h.sessionSvc,
		Recovery: recovery.NewService(recovery.ServiceDeps{
			Secret: "test-recovery-secret",
			MaxAge: time.Hour,
			Now:    h.recovery.now,
		}),
		Notifier:            h.notifier,
		RecoveryURLBase:     "http://localhost:3000/account-recovery/confirm",
		ExposeRecoveryToken: true,
	})
	return h
}

type device struct {
	auth virtualwebauthn.Authenticator
	cred virtualwebauthn.Credential
}

func newDevice() *device {
	return &device{auth: virtualwebauthn.NewAuthenticator(), cred: virtualwebauthn.NewCredential(virtualwebauthn.KeyTypeEC2)}
}

// enroll runs both registration steps through the orchestrator.
func (h *harness) enroll(t *testing.T, email, actorID string, d *device) (*Result, error) {
	t.Helper()
	return h.enrollWithCode(t, email, "", actorID, d)
}

func (h *harness) enrollWithCode(t *testing.T, email, totpCode, actorID string, d *device) (*Result, error) {
	t.Helper()
	ctx := context.Background()
	creation, err := h.svc.BeginPasskeyRegistration(ctx, email, actorID)
	if err != nil {
		return nil, err
	}
	optionsJSON, err := json.Marshal(creation.Response)
	require.NoError(t, err)
	opts, err := virtualwebauthn.ParseAttestationOptions(string(optionsJSON))
	require.NoError(t, err)
	body := virtualwebauthn.CreateAttestationResponse(testRP, d.auth, d.cred, *opts)

	res, err := h.svc.CompletePasskeyRegistration(ctx, email, []byte(body), totpCode, actorID)
	if err == nil {
		d.auth.AddCredential(d.cred)
	}
	return res, err
}

// assertion starts a passkey login and signs it with d.
func (h *harness) assertion(t *testing.T, email string, d *device) []byte {
	t.Helper()
	assertion, err := h.svc.BeginPasskeyLogin(context.Background(), email)
	require.NoError(t, err)
	optionsJSON, err := json.Marshal(assertion.Response)
	require.NoError(t, err)
	opts, err := virtualwebauthn.ParseAssertionOptions(string(optionsJSON))
	require.NoError(t, err)
	return []byte(virtualwebauthn.CreateAssertionResponse(testRP, d.auth, d.cred, *opts))
}
