package auth

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"google.golang.org/api/identitytoolkit/v3"
	"google.golang.org/api/option"

	"gitlab.com/yelinaung/moniclear/internal/logger"
)

const (
	oobPasswordReset = "PASSWORD_RESET"
	oobVerifyEmail   = "VERIFY_EMAIL"
	defaultIdPURI    = "http://localhost"
	minPasswordLen   = 6
)

var (
	emailValidate     *validator.Validate
	emailValidateOnce sync.Once
)

func validateEmail(email string) error {
	emailValidateOnce.Do(func() {
		emailValidate = validator.New()
	})
	if err := emailValidate.Var(email, "required,email"); err != nil {
		return NewAuthError(CodeInvalidEmail, err)
	}
	return nil
}

// IdentityToolkit is a Provider backed by the Identity Toolkit relying-party API.
type IdentityToolkit struct {
	rp *identitytoolkit.RelyingpartyService
}

var _ Provider = (*IdentityToolkit)(nil)

// NewIdentityToolkit creates a provider client authenticated with apiKey.
func NewIdentityToolkit(ctx context.Context, apiKey string, opts ...option.ClientOption) (*IdentityToolkit, error) {
	if apiKey == "" {
		return nil, errors.New("identity api key is required")
	}
	opts = append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	svc, err := identitytoolkit.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create identity client: %w", err)
	}
	return &IdentityToolkit{rp: svc.Relyingparty}, nil
}

// SignInWithEmail verifies an email and password.
func (p *IdentityToolkit) SignInWithEmail(ctx context.Context, email, password string) (*Session, error) {
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	resp, err := p.rp.VerifyPassword(&identitytoolkit.IdentitytoolkitRelyingpartyVerifyPasswordRequest{
		Email:             email,
		Password:          password,
		ReturnSecureToken: true,
	}).Context(ctx).Do()
	if err != nil {
		return nil, toAuthError(err)
	}

	session := &Session{
		IDToken:      resp.IdToken,
		RefreshToken: resp.RefreshToken,
		Identity: Identity{
			UID:         resp.LocalId,
			Email:       resp.Email,
			DisplayName: resp.DisplayName,
			ProviderID:  "password",
		},
	}
	// verifyPassword does not report verification status.
	if identity, err := p.Lookup(ctx, resp.IdToken); err == nil {
		session.Identity = *identity
	} else {
		logger.Log.Warn().Err(err).
			Str("identity_hash", logger.HashIdentity(resp.LocalId)).
			Msg("Failed to look up signed-in account")
	}
	return session, nil
}

// SignUpWithEmail creates a password account.
func (p *IdentityToolkit) SignUpWithEmail(ctx context.Context, email, password string) (*Session, error) {
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if len(password) < minPasswordLen {
		return nil, NewAuthError(CodeWeakPassword, nil)
	}
	resp, err := p.rp.SignupNewUser(&identitytoolkit.IdentitytoolkitRelyingpartySignupNewUserRequest{
		Email:    email,
		Password: password,
	}).Context(ctx).Do()
	if err != nil {
		return nil, toAuthError(err)
	}
	return &Session{
		IDToken:      resp.IdToken,
		RefreshToken: resp.RefreshToken,
		Identity: Identity{
			UID:         resp.LocalId,
			Email:       resp.Email,
			DisplayName: resp.DisplayName,
			ProviderID:  "password",
		},
	}, nil
}

// SignInFederated exchanges an external IdP credential for a session.
func (p *IdentityToolkit) SignInFederated(ctx context.Context, cred FederatedCredential) (*Session, error) {
	if cred.ProviderID == "" || (cred.IDToken == "" && cred.AccessToken == "") {
		return nil, NewAuthError(CodeInvalidCredential, errors.New("incomplete federated credential"))
	}
	body := url.Values{}
	body.Set("providerId", cred.ProviderID)
	if cred.IDToken != "" {
		body.Set("id_token", cred.IDToken)
	}
	if cred.AccessToken != "" {
		body.Set("access_token", cred.AccessToken)
	}
	requestURI := cred.RequestURI
	if requestURI == "" {
		requestURI = defaultIdPURI
	}

	resp, err := p.rp.VerifyAssertion(&identitytoolkit.IdentitytoolkitRelyingpartyVerifyAssertionRequest{
		PostBody:          body.Encode(),
		RequestUri:        requestURI,
		ReturnSecureToken: true,
	}).Context(ctx).Do()
	if err != nil {
		return nil, toAuthError(err)
	}
	if resp.ErrorMessage != "" {
		return nil, &AuthError{Code: CodeInvalidCredential, Message: resp.ErrorMessage}
	}
	return &Session{
		IDToken:      resp.IdToken,
		RefreshToken: resp.RefreshToken,
		Identity: Identity{
			UID:           resp.LocalId,
			Email:         resp.Email,
			DisplayName:   resp.DisplayName,
			ProviderID:    resp.ProviderId,
			EmailVerified: resp.EmailVerified,
		},
	}, nil
}

// SendPhoneCode asks the provider to text a sign-in code to phoneNumber.
func (p *IdentityToolkit) SendPhoneCode(ctx context.Context, phoneNumber, challengeToken string) (*PhoneChallenge, error) {
	if err := ValidatePhoneNumber(phoneNumber); err != nil {
		return nil, err
	}
	if challengeToken == "" {
		return nil, NewAuthError(CodeMissingChallenge, nil)
	}
	resp, err := p.rp.SendVerificationCode(&identitytoolkit.IdentitytoolkitRelyingpartySendVerificationCodeRequest{
		PhoneNumber:    phoneNumber,
		RecaptchaToken: challengeToken,
	}).Context(ctx).Do()
	if err != nil {
		return nil, toAuthError(err)
	}
	return &PhoneChallenge{PhoneNumber: phoneNumber, SessionInfo: resp.SessionInfo}, nil
}

// SendPasswordReset emails a password reset link.
func (p *IdentityToolkit) SendPasswordReset(ctx context.Context, email string) error {
	if err := validateEmail(email); err != nil {
		return err
	}
	_, err := p.rp.GetOobConfirmationCode(&identitytoolkit.Relyingparty{
		Kind:        "identitytoolkit#relyingparty",
		RequestType: oobPasswordReset,
		Email:       email,
	}).Context(ctx).Do()
	return toAuthError(err)
}

// SendEmailVerification emails a verification link to the signed-in account.
func (p *IdentityToolkit) SendEmailVerification(ctx context.Context, idToken string) error {
	if idToken == "" {
		return NewAuthError(CodeSessionExpired, nil)
	}
	_, err := p.rp.GetOobConfirmationCode(&identitytoolkit.Relyingparty{
		Kind:        "identitytoolkit#relyingparty",
		RequestType: oobVerifyEmail,
		IdToken:     idToken,
	}).Context(ctx).Do()
	return toAuthError(err)
}

// Lookup resolves an id token to the current account state.
func (p *IdentityToolkit) Lookup(ctx context.Context, idToken string) (*Identity, error) {
	if idToken == "" {
		return nil, NewAuthError(CodeSessionExpired, nil)
	}
	resp, err := p.rp.GetAccountInfo(&identitytoolkit.IdentitytoolkitRelyingpartyGetAccountInfoRequest{
		IdToken: idToken,
	}).Context(ctx).Do()
	if err != nil {
		return nil, toAuthError(err)
	}
	if len(resp.Users) == 0 {
		return nil, NewAuthError(CodeUserNotFound, nil)
	}
	u := resp.Users[0]
	identity := &Identity{
		UID:           u.LocalId,
		Email:         u.Email,
		DisplayName:   u.DisplayName,
		PhoneNumber:   u.PhoneNumber,
		EmailVerified: u.EmailVerified,
	}
	if len(u.ProviderUserInfo) > 0 {
		providers := make([]string, 0, len(u.ProviderUserInfo))
		for _, info := range u.ProviderUserInfo {
			providers = append(providers, info.ProviderId)
		}
		identity.ProviderID = strings.Join(providers, ",")
	}
	return identity, nil
}
