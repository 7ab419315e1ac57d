package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

var defaultOpts = totp.ValidateOpts{
	Period:    30,
	Skew:      1,
	Digits:    otp.DigitsSix,
	Algorithm: otp.AlgorithmSHA1,
}

// parseSecret accepts a base32 secret (spaces allowed) or an otpauth:// URL,
// whose period, digits and algorithm override the defaults.
func parseSecret(secret string) (string, totp.ValidateOpts, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return "", totp.ValidateOpts{}, fmt.Errorf("totp secret cannot be empty")
	}

	opts := defaultOpts
	if !strings.HasPrefix(secret, "otpauth://") {
		return strings.ToUpper(strings.ReplaceAll(secret, " ", "")), opts, nil
	}

	key, err := otp.NewKeyFromURL(secret)
	if err != nil {
		return "", totp.ValidateOpts{}, fmt.Errorf("invalid otpauth url: %w", err)
	}
	if key.Type() != "totp" {
		return "", totp.ValidateOpts{}, fmt.Errorf("otpauth url is %s, not totp", key.Type())
	}
	if p := key.Period(); p > 0 {
		opts.Period = uint(p)
	}
	if d := key.Digits(); d > 0 {
		opts.Digits = d
	}
	opts.Algorithm = key.Algorithm()
	return key.Secret(), opts, nil
}

// GenerateTOTP returns the code valid at t.
func GenerateTOTP(secret string, t time.Time) (string, error) {
	clean, opts, err := parseSecret(secret)
	if err != nil {
		return "", err
	}

	passcode, err := totp.GenerateCodeCustom(clean, t.UTC(), opts)
	if err != nil {
		return "", fmt.Errorf("failed to generate totp code: %w", err)
	}
	return passcode, nil
}
