// Package auth talks to the identity provider and reports failures as AuthError.
package auth

import (
	"context"
	"errors"
	"strings"
	"unicode"
)

// Identity is the provider's view of a signed-in account.
type Identity struct {
	UID           string `json:"uid"`
	Email         string `json:"email,omitempty"`
	DisplayName   string `json:"displayName,omitempty"`
	PhoneNumber   string `json:"phoneNumber,omitempty"`
	ProviderID    string `json:"providerId,omitempty"`
	EmailVerified bool   `json:"emailVerified"`
}

// Session is a provider session that can be cached and later observed again.
type Session struct {
	IDToken      string   `json:"idToken"`
	RefreshToken string   `json:"refreshToken,omitempty"`
	Identity     Identity `json:"identity"`
}

// FederatedCredential is a credential issued by an external identity provider.
type FederatedCredential struct {
	// ProviderID is e.g. "google.com".
	ProviderID  string
	IDToken     string
	AccessToken string
	// RequestURI is the URI the credential was obtained for. Defaults to http://localhost.
	RequestURI string
}

// PhoneChallenge is the outcome of a phone sign-in start: an SMS code was sent.
type PhoneChallenge struct {
	PhoneNumber string
	SessionInfo string
}

// Provider is the identity provider surface used by the session holder.
type Provider interface {
	SignInWithEmail(ctx context.Context, email, password string) (*Session, error)
	SignUpWithEmail(ctx context.Context, email, password string) (*Session, error)
	SignInFederated(ctx context.Context, cred FederatedCredential) (*Session, error)
	SendPhoneCode(ctx context.Context, phoneNumber, challengeToken string) (*PhoneChallenge, error)
	SendPasswordReset(ctx context.Context, email string) error
	SendEmailVerification(ctx context.Context, idToken string) error
	Lookup(ctx context.Context, idToken string) (*Identity, error)
}

// Challenger produces an anti-abuse challenge token for one phone sign-in attempt.
type Challenger interface {
	Challenge(ctx context.Context) (string, error)
}

// ChallengerFunc adapts a function to Challenger.
type ChallengerFunc func(ctx context.Context) (string, error)

// Challenge calls f.
func (f ChallengerFunc) Challenge(ctx context.Context) (string, error) {
	return f(ctx)
}

// StaticChallenger returns a token solved out of band, e.g. on a verification page.
type StaticChallenger string

// Challenge returns the token, failing when it is empty.
func (s StaticChallenger) Challenge(context.Context) (string, error) {
	if strings.TrimSpace(string(s)) == "" {
		return "", NewAuthError(CodeMissingChallenge, errors.New("empty challenge token"))
	}
	return string(s), nil
}

// ValidatePhoneNumber checks for E.164 form: a plus sign followed by 8 to 15 digits.
func ValidatePhoneNumber(phone string) error {
	digits, ok := strings.CutPrefix(phone, "+")
	if !ok || len(digits) < 8 || len(digits) > 15 {
		return NewAuthError(CodeInvalidPhoneNumber, nil)
	}
	for _, r := range digits {
		if !unicode.IsDigit(r) {
			return NewAuthError(CodeInvalidPhoneNumber, nil)
		}
	}
	return nil
}
