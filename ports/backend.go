package ports

import (
	"context"

	"github.com/vaultline/vaultline/core"
)

// AuthAPI is the authentication resource of the backend service.
type AuthAPI interface {
	LoginEmailPassword(ctx context.Context, email, password, ecosystem string) (*core.AuthResult, error)
	SignupEmailPassword(ctx context.Context, email, password, name, ecosystem string) (*core.AuthResult, error)
	RegisterGuest(ctx context.Context) (*core.AuthResult, error)
	LoginWithIDToken(ctx context.Context, provider, token string) (*core.AuthResult, error)
	AuthenticateThirdParty(ctx context.Context, provider, token, tokenType string) (string, error)

	InitOAuth(ctx context.Context, provider, redirectTo string, usePolling bool, ecosystem string) (*core.OAuthInit, error)
	// PollOAuth performs a single completion check. It returns
	// core.ErrOAuthNotReady while the provider flow is still in progress.
	PollOAuth(ctx context.Context, key string) (*core.AuthResult, error)

	InitSIWE(ctx context.Context, address string) (*core.SIWEChallenge, error)
	AuthenticateSIWE(ctx context.Context, signature, message, walletClientType, connectorType string) (*core.AuthResult, error)

	Refresh(ctx context.Context, refreshToken string) (*core.AuthResult, error)
	Logout(ctx context.Context, auth *core.Authentication) error

	RequestResetPassword(ctx context.Context, email, redirectURL string, challenge core.PKCEChallenge) error
	ResetPassword(ctx context.Context, email, password, state, verifier string) error
	RequestEmailVerification(ctx context.Context, email, redirectURL string, challenge core.PKCEChallenge) error
	VerifyEmail(ctx context.Context, email, state, verifier string) error

	RequestEmailOTP(ctx context.Context, email, otpType string) error
	LoginWithEmailOTP(ctx context.Context, email, otp string) (*core.AuthResult, error)
	RequestSMSOTP(ctx context.Context, phoneNumber string) error
	LoginWithSMSOTP(ctx context.Context, phoneNumber, code string) (*core.AuthResult, error)

	LinkOAuth(ctx context.Context, auth *core.Authentication, provider, redirectTo string, usePolling bool) (*core.OAuthInit, error)
	UnlinkOAuth(ctx context.Context, auth *core.Authentication, provider string) error
	LinkEmail(ctx context.Context, auth *core.Authentication, email, password string) error
	UnlinkEmail(ctx context.Context, auth *core.Authentication, email string) error
	InitLinkSIWE(ctx context.Context, auth *core.Authentication, address string) (*core.SIWEChallenge, error)
	LinkWallet(ctx context.Context, auth *core.Authentication, signature, message, walletClientType, connectorType string) error
	UnlinkWallet(ctx context.Context, auth *core.Authentication, address string) error
}

// IntentsAPI is the transaction-intent resource of the backend service.
type IntentsAPI interface {
	Create(ctx context.Context, auth *core.Authentication, req core.CreateIntentRequest) (*core.TransactionIntent, error)
	Get(ctx context.Context, auth *core.Authentication, id string) (*core.TransactionIntent, error)
	SubmitSignature(ctx context.Context, auth *core.Authentication, id, signature string) (*core.TransactionIntent, error)
	EstimateGas(ctx context.Context, auth *core.Authentication, req core.CreateIntentRequest) (*core.GasEstimate, error)
}

// SessionsAPI is the session-grant resource of the backend service.
type SessionsAPI interface {
	Create(ctx context.Context, auth *core.Authentication, req core.CreateGrantRequest) (*core.SessionGrant, error)
	Revoke(ctx context.Context, auth *core.Authentication, req core.RevokeGrantRequest) (*core.SessionGrant, error)
	SubmitSignature(ctx context.Context, auth *core.Authentication, id, signature string) (*core.SessionGrant, error)
}

// AccountsAPI is the accounts resource of the backend service.
type AccountsAPI interface {
	Get(ctx context.Context, auth *core.Authentication, id string) (*core.Account, error)
}

// AssetsAPI exposes the backend's wallet asset index.
type AssetsAPI interface {
	Assets(ctx context.Context, auth *core.Authentication, address string, q core.AssetQuery) ([]core.Asset, error)
}
