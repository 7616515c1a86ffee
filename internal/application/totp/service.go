package totp

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image/png"
	"time"

	"github.com/pquerna/otp"
	pqtotp "github.com/pquerna/otp/totp"
	"github.com/rohansroy/giterdone/internal/domain"
)

const (
	qrSize    = 200
	codeDigit = 6
)

var validateOpts = pqtotp.ValidateOpts{
	Period:    30,
	Skew:      1,
	Digits:    otp.DigitsSix,
	Algorithm: otp.AlgorithmSHA1,
}

// Enrollment is what a user needs to add the account to an authenticator app.
type Enrollment struct {
	Secret          string `json:"secret"`
	ProvisioningURI string `json:"provisioning_uri"`
	QRCode          string `json:"qr_code"`
}

// Service drives the second-factor lifecycle: none, pending, enabled.
type Service interface {
	Enroll(ctx context.Context, userID string) (*Enrollment, error)
	Verify(ctx context.Context, userID, code string) error
	Disable(ctx context.Context, userID, code string) error
	// Check validates code against an already loaded user. It never mutates.
	Check(u *domain.User, code string) bool
}

type userStore interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
	SetTOTP(ctx context.Context, userID, secret string, enabled bool) error
}

type service struct {
	repo   userStore
	issuer string
	now    func() time.Time
}

type ServiceDeps struct {
	UserRepo userStore
	Issuer   string
	Now      func() time.Time
}

func NewService(deps ServiceDeps) Service {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &service{repo: deps.UserRepo, issuer: deps.Issuer, now: now}
}

// Enroll always issues a fresh secret and leaves the factor disabled until
// Verify succeeds. Re-enrolling an enabled factor starts over.
func (s *service) Enroll(ctx context.Context, userID string) (*Enrollment, error) {
	u, err := s.repo.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	key, err := pqtotp.Generate(pqtotp.GenerateOpts{
		Issuer:      s.issuer,
		AccountName: u.Email,
		Period:      validateOpts.Period,
		Digits:      validateOpts.Digits,
		Algorithm:   validateOpts.Algorithm,
	})
	if err != nil {
		return nil, fmt.Errorf("generate totp secret: %w", err)
	}
	qr, err := qrDataURI(key)
	if err != nil {
		return nil, err
	}
	if err := s.repo.SetTOTP(ctx, userID, key.Secret(), false); err != nil {
		return nil, err
	}
	return &Enrollment{Secret: key.Secret(), ProvisioningURI: key.URL(), QRCode: qr}, nil
}

func (s *service) Verify(ctx context.Context, userID, code string) error {
	u, err := s.repo.Get(ctx, userID)
	if err != nil {
		return err
	}
	if u.TOTPSecret == "" {
		return fmt.Errorf("verify totp: %w", domain.ErrNotEnrolled)
	}
	if !s.Check(u, code) {
		return fmt.Errorf("verify totp: %w", domain.ErrInvalidCode)
	}
	return s.repo.SetTOTP(ctx, userID, u.TOTPSecret, true)
}

func (s *service) Disable(ctx context.Context, userID, code string) error {
	u, err := s.repo.Get(ctx, userID)
	if err != nil {
		return err
	}
	if !u.TOTPEnabled {
		return fmt.Errorf("disable totp: %w", domain.ErrNotEnabled)
	}
	if !s.Check(u, code) {
		return fmt.Errorf("disable totp: %w", domain.ErrInvalidCode)
	}
	return s.repo.SetTOTP(ctx, userID, "", false)
}

func (s *service) Check(u *domain.User, code string) bool {
	if !wellFormed(code) || u.TOTPSecret == "" {
		return false
	}
	ok, err := pqtotp.ValidateCustom(code, u.TOTPSecret, s.now().UTC(), validateOpts)
	return err == nil && ok
}

// wellFormed rejects anything but exactly six ASCII digits before the
// secret is consulted.
func wellFormed(code string) bool {
	if len(code) != codeDigit {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}

func qrDataURI(key *otp.Key) (string, error) {
	img, err := key.Image(qrSize, qrSize)
	if err != nil {
		return "", fmt.Errorf("render totp qr code: %w", err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("encode totp qr code: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
