package security

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const backupCodeCount = 8

var totpCodePattern = regexp.MustCompile(`^\d{6}$`)

// TOTPEnrollment carries the generated secret and its otpauth provisioning URI.
type TOTPEnrollment struct {
	Secret          string
	ProvisioningURI string
}

// TOTPManager generates and verifies time-based one-time passwords for
// two-factor enrollment.
type TOTPManager struct {
	issuer string
	now    func() time.Time
}

// NewTOTPManager builds a manager labelling provisioning URIs with issuer.
func NewTOTPManager(issuer string) *TOTPManager {
	return &TOTPManager{issuer: issuer, now: time.Now}
}

// WithClock overrides the time source, primarily for tests.
func (m *TOTPManager) WithClock(clock func() time.Time) {
	if clock != nil {
		m.now = clock
	}
}

// GenerateEnrollment creates a fresh secret for the account. Nothing is
// persisted; the secret only becomes active once a code is verified.
func (m *TOTPManager) GenerateEnrollment(accountEmail string) (*TOTPEnrollment, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      m.issuer,
		AccountName: accountEmail,
	})
	if err != nil {
		return nil, fmt.Errorf("generate totp secret: %w", err)
	}

	return &TOTPEnrollment{
		Secret:          key.Secret(),
		ProvisioningURI: key.URL(),
	}, nil
}

// VerifyCode checks a six digit code against the secret, accepting one
// 30-second step of clock drift in either direction. Codes that are not
// exactly six digits are rejected before the TOTP primitive runs.
func (m *TOTPManager) VerifyCode(code, secret string) bool {
	code = strings.TrimSpace(code)
	if !totpCodePattern.MatchString(code) {
		return false
	}

	ok, err := totp.ValidateCustom(code, secret, m.now().UTC(), totp.ValidateOpts{
		Period:    30,
		Skew:      1,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && ok
}

// GenerateBackupCodes produces the eight single-use recovery codes handed out
// when two-factor is enabled. Each code is four random bytes rendered as
// uppercase hex.
func GenerateBackupCodes() ([]string, error) {
	codes := make([]string, 0, backupCodeCount)
	for i := 0; i < backupCodeCount; i++ {
		buf := make([]byte, 4)
		if _, err := rand.Read(buf); err != nil {
			return nil, fmt.Errorf("generate backup code: %w", err)
		}
		codes = append(codes, strings.ToUpper(hex.EncodeToString(buf)))
	}
	return codes, nil
}
