package auth

import (
	"context"
	"errors"
	"net"
	"net/url"
	"strings"

	"google.golang.org/api/googleapi"
)

// Error codes reported by AuthError.
const (
	CodeUserNotFound         = "auth/user-not-found"
	CodeWrongPassword        = "auth/wrong-password"
	CodeInvalidCredential    = "auth/invalid-credential"
	CodeEmailAlreadyInUse    = "auth/email-already-in-use"
	CodeWeakPassword         = "auth/weak-password"
	CodeInvalidEmail         = "auth/invalid-email"
	CodeTooManyRequests      = "auth/too-many-requests"
	CodeNetworkRequestFailed = "auth/network-request-failed"
	CodeInvalidPhoneNumber   = "auth/invalid-phone-number"
	CodeMissingChallenge     = "auth/missing-verification-token"
	CodeSessionExpired       = "auth/user-token-expired"
	CodeCancelled            = "auth/cancelled"
	CodeInternal             = "auth/internal-error"
)

var friendlyMessages = map[string]string{
	CodeUserNotFound:         "No account found with this email.",
	CodeWrongPassword:        "Incorrect password. Please try again.",
	CodeInvalidCredential:    "Invalid email or password.",
	CodeEmailAlreadyInUse:    "An account with this email already exists.",
	CodeWeakPassword:         "Password should be at least 6 characters.",
	CodeInvalidEmail:         "Please enter a valid email address.",
	CodeTooManyRequests:      "Too many attempts. Please try again later.",
	CodeNetworkRequestFailed: "Network error. Please check your connection.",
	CodeInvalidPhoneNumber:   "Please enter a phone number in international format, e.g. +6591234567.",
	CodeMissingChallenge:     "Verification challenge was not completed.",
	CodeSessionExpired:       "Your session has expired. Please sign in again.",
	CodeCancelled:            "The request was cancelled.",
}

// providerCodes maps identity provider error messages to error codes.
var providerCodes = map[string]string{
	"EMAIL_NOT_FOUND":             CodeUserNotFound,
	"USER_NOT_FOUND":              CodeUserNotFound,
	"INVALID_PASSWORD":            CodeWrongPassword,
	"INVALID_LOGIN_CREDENTIALS":   CodeInvalidCredential,
	"INVALID_IDP_RESPONSE":        CodeInvalidCredential,
	"EMAIL_EXISTS":                CodeEmailAlreadyInUse,
	"WEAK_PASSWORD":               CodeWeakPassword,
	"INVALID_EMAIL":               CodeInvalidEmail,
	"MISSING_EMAIL":               CodeInvalidEmail,
	"TOO_MANY_ATTEMPTS_TRY_LATER": CodeTooManyRequests,
	"INVALID_PHONE_NUMBER":        CodeInvalidPhoneNumber,
	"MISSING_PHONE_NUMBER":        CodeInvalidPhoneNumber,
	"CAPTCHA_CHECK_FAILED":        CodeMissingChallenge,
	"MISSING_RECAPTCHA_TOKEN":     CodeMissingChallenge,
	"INVALID_ID_TOKEN":            CodeSessionExpired,
	"TOKEN_EXPIRED":               CodeSessionExpired,
	"USER_DISABLED":               CodeInvalidCredential,
}

// AuthError is the single failure shape of every credential operation.
type AuthError struct {
	Code    string
	Message string
	Err     error
}

func (e *AuthError) Error() string {
	return e.Message
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// NewAuthError builds an AuthError with the friendly message for code.
func NewAuthError(code string, err error) *AuthError {
	msg, ok := friendlyMessages[code]
	if !ok {
		msg = "Authentication failed."
		if err != nil {
			msg = err.Error()
		}
	}
	return &AuthError{Code: code, Message: msg, Err: err}
}

// IsCode reports whether err is an AuthError with the given code.
func IsCode(err error, code string) bool {
	var ae *AuthError
	return errors.As(err, &ae) && ae.Code == code
}

// toAuthError maps provider and transport failures onto AuthError.
func toAuthError(err error) error {
	if err == nil {
		return nil
	}

	var ae *AuthError
	if errors.As(err, &ae) {
		return ae
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return NewAuthError(CodeCancelled, err)
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		if code, ok := providerCodes[providerReason(gerr)]; ok {
			return NewAuthError(code, err)
		}
		return &AuthError{Code: CodeInternal, Message: providerMessage(gerr), Err: err}
	}

	var netErr net.Error
	var urlErr *url.Error
	if errors.As(err, &netErr) || errors.As(err, &urlErr) {
		return NewAuthError(CodeNetworkRequestFailed, err)
	}

	return &AuthError{Code: CodeInternal, Message: err.Error(), Err: err}
}

// providerReason extracts the leading reason token, e.g. "WEAK_PASSWORD" from
// "WEAK_PASSWORD : Password should be at least 6 characters".
func providerReason(gerr *googleapi.Error) string {
	msg := strings.TrimSpace(gerr.Message)
	if i := strings.IndexAny(msg, " :"); i >= 0 {
		msg = msg[:i]
	}
	return msg
}

func providerMessage(gerr *googleapi.Error) string {
	if gerr.Message != "" {
		return gerr.Message
	}
	return "Authentication failed."
}
