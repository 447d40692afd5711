package backend

import (
	"encoding/json"
	"net/http"

	"github.com/vaultline/vaultline/core"
)

// errorEnvelope is the API's error payload. Newer endpoints nest the detail
// under "error"; older ones put message and code at the top level.
type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// codeMap routes stable API error codes to runtime sentinels. Codes win over
// HTTP status: a 400 carrying "otp_invalid" is an OTP failure, not a generic
// bad request.
var codeMap = map[string]*core.Error{
	"invalid_credentials":  core.ErrInvalidCredentials,
	"token_expired":        core.ErrTokenExpired,
	"malformed_token":      core.ErrMalformedToken,
	"email_not_verified":   core.ErrEmailNotVerified,
	"refresh_failed":       core.ErrRefreshFailed,
	"ecosystem_forbidden":  core.ErrEcosystemForbidden,
	"user_not_found":       core.ErrUserNotFound,
	"user_already_exists":  core.ErrUserAlreadyExists,
	"validation_error":     core.ErrUserValidation,
	"oauth_not_configured": core.ErrOAuthNotConfigured,
	"oauth_invalid_token":  core.ErrOAuthInvalidToken,
	"oauth_already_linked": core.ErrOAuthAlreadyLinked,
	"otp_invalid":          core.ErrOTPInvalid,
	"otp_send_failed":      core.ErrOTPSendFailed,
	"missing_recovery":     core.ErrMissingRecovery,
	"incorrect_recovery":   core.ErrIncorrectRecovery,
	"transaction_rejected": core.ErrTransactionRejected,
	"invalid_params":       core.ErrInvalidParams,
}

// classify turns an API error response into a runtime error. The payload's
// stable code is matched first; otherwise the HTTP status decides.
func classify(status int, body []byte) error {
	var env errorEnvelope
	_ = json.Unmarshal(body, &env)

	code := env.Error.Code
	if code == "" {
		code = env.Code
	}
	message := env.Error.Message
	if message == "" {
		message = env.Message
	}

	if sentinel, ok := codeMap[code]; ok {
		if message != "" {
			return sentinel.WithMessage(message)
		}
		return sentinel
	}

	var sentinel *core.Error
	switch status {
	case http.StatusUnauthorized:
		sentinel = core.ErrInvalidCredentials
	case http.StatusForbidden:
		sentinel = core.ErrEcosystemForbidden
	case http.StatusNotFound:
		sentinel = core.ErrUserNotFound
	case http.StatusConflict:
		sentinel = core.ErrUserAlreadyExists
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		sentinel = core.ErrUserValidation
	default:
		sentinel = core.ErrRequestFailed
	}

	if message != "" {
		return sentinel.WithMessage(message)
	}
	return sentinel
}
