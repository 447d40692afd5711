package core

import "fmt"

// Category is the closed error taxonomy. Every failure surfaced by the
// runtime carries exactly one of these.
type Category string

const (
	CategoryAuthentication Category = "authentication"
	CategorySession        Category = "session"
	CategoryAuthorization  Category = "authorization"
	CategoryUser           Category = "user"
	CategoryOAuth          Category = "oauth"
	CategoryOTP            Category = "otp"
	CategorySigner         Category = "signer"
	CategoryRecovery       Category = "recovery"
	CategoryTransaction    Category = "transaction"
	CategoryRequest        Category = "request"
	CategoryInvalidParams  Category = "invalid_params"
)

// Error is the value type all runtime failures are normalized into. Code is
// stable and machine-readable; Message is for humans.
type Error struct {
	Category Category
	Code     string
	Message  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches errors by stable code, so classified copies of a sentinel still
// satisfy errors.Is against it.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// WithMessage returns a copy of the error carrying a different description.
func (e *Error) WithMessage(msg string) *Error {
	return &Error{Category: e.Category, Code: e.Code, Message: msg}
}

// NewError builds a classified error.
func NewError(cat Category, code, msg string) *Error {
	return &Error{Category: cat, Code: code, Message: msg}
}

var (
	ErrInvalidCredentials = NewError(CategoryAuthentication, "invalid_credentials", "invalid email or password")
	ErrMalformedToken     = NewError(CategoryAuthentication, "malformed_token", "access token could not be decoded")
	ErrTokenExpired       = NewError(CategoryAuthentication, "token_expired", "access token has expired")
	ErrEmailNotVerified   = NewError(CategoryAuthentication, "email_not_verified", "email address is not verified")

	ErrNotLoggedIn     = NewError(CategorySession, "not_logged_in", "no authentication found")
	ErrAlreadyLoggedIn = NewError(CategorySession, "already_logged_in", "a session already exists")
	ErrRefreshFailed   = NewError(CategorySession, "refresh_failed", "session refresh failed")

	ErrEcosystemForbidden = NewError(CategoryAuthorization, "ecosystem_forbidden", "user is not authorized for this ecosystem")

	ErrUserNotFound      = NewError(CategoryUser, "user_not_found", "user not found")
	ErrUserAlreadyExists = NewError(CategoryUser, "user_already_exists", "user already exists")
	ErrUserValidation    = NewError(CategoryUser, "user_validation", "user data failed validation")

	ErrOAuthNotConfigured = NewError(CategoryOAuth, "oauth_not_configured", "oauth provider is not configured")
	ErrOAuthInvalidToken  = NewError(CategoryOAuth, "oauth_invalid_token", "oauth token is invalid")
	ErrOAuthAlreadyLinked = NewError(CategoryOAuth, "oauth_already_linked", "provider is already linked")
	ErrOAuthNotReady      = NewError(CategoryOAuth, "oauth_not_ready", "oauth flow has not completed yet")
	ErrOAuthTimeout       = NewError(CategoryOAuth, "oauth_timeout", "timed out waiting for oauth completion")

	ErrOTPInvalid    = NewError(CategoryOTP, "otp_invalid", "one-time code is invalid or expired")
	ErrOTPSendFailed = NewError(CategoryOTP, "otp_send_failed", "one-time code could not be sent")

	ErrMissingSigner = NewError(CategorySigner, "missing_signer", "no signer configured")

	ErrMissingRecovery   = NewError(CategoryRecovery, "missing_recovery", "recovery secret is required")
	ErrIncorrectRecovery = NewError(CategoryRecovery, "incorrect_recovery", "recovery secret is incorrect")

	ErrTransactionRejected = NewError(CategoryTransaction, "transaction_rejected", "the operation was rejected")

	ErrRequestFailed = NewError(CategoryRequest, "request_failed", "request failed")

	ErrInvalidParams    = NewError(CategoryInvalidParams, "invalid_params", "invalid parameters")
	ErrMissingChallenge = NewError(CategoryInvalidParams, "missing_challenge", "no stored verifier or state for this confirmation")
	ErrStateMismatch    = NewError(CategoryInvalidParams, "state_mismatch", "provided state does not match stored state")
	ErrUnsupportedGrant = NewError(CategoryInvalidParams, "unsupported_grant", "permission or policy type is not supported by this account implementation")
)
