// Package auth owns the authentication lifecycle: sign-in and sign-up across
// every supported method, token refresh, account linking, and teardown. It is
// the only writer of the persisted authentication record.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/vaultline/vaultline/core"
	"github.com/vaultline/vaultline/credentials"
	"github.com/vaultline/vaultline/ports"
)

const (
	// expirySkew is how close to expiry a token is still treated as expired,
	// so a request started now does not die mid-flight.
	expirySkew = 30 * time.Second

	defaultPollAttempts = 600
	defaultPollInterval = 500 * time.Millisecond
)

// Manager drives every authentication flow against the backend and keeps the
// persisted credential records consistent with the outcome.
type Manager struct {
	repo      *credentials.Repository
	api       ports.AuthAPI
	events    ports.EventPublisher
	signer    ports.Signer
	ecosystem string
	logger    *slog.Logger

	pollAttempts int
	pollInterval time.Duration
}

// Option configures the Manager.
type Option func(*Manager)

// WithLogger sets a structured logger for the manager.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithEcosystem scopes authentication to a whitelabel ecosystem.
func WithEcosystem(ecosystem string) Option {
	return func(m *Manager) { m.ecosystem = ecosystem }
}

// WithPollPolicy overrides the OAuth completion poll budget.
func WithPollPolicy(attempts int, interval time.Duration) Option {
	return func(m *Manager) {
		m.pollAttempts = attempts
		m.pollInterval = interval
	}
}

// NewManager creates an authentication manager.
func NewManager(repo *credentials.Repository, api ports.AuthAPI, events ports.EventPublisher, signer ports.Signer, opts ...Option) *Manager {
	m := &Manager{
		repo:   repo,
		api:    api,
		events: events,
		signer: signer,
		logger: slog.Default(),

		pollAttempts: defaultPollAttempts,
		pollInterval: defaultPollInterval,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Authentication returns the persisted authentication record, or
// core.ErrNotLoggedIn when there is none.
func (m *Manager) Authentication(ctx context.Context) (*core.Authentication, error) {
	auth, err := m.repo.Authentication(ctx)
	if err != nil {
		return nil, err
	}
	if auth == nil {
		return nil, core.ErrNotLoggedIn
	}
	return auth, nil
}

// requireLoggedOut guards the flows that establish a brand new session. The
// stored session must be torn down with Logout before another sign-in.
func (m *Manager) requireLoggedOut(ctx context.Context) error {
	auth, err := m.repo.Authentication(ctx)
	if err != nil {
		return err
	}
	if auth != nil {
		return core.ErrAlreadyLoggedIn
	}
	return nil
}

// adopt persists the session described by res. Signing in as a different user
// than the stored one tears the previous session down first, signer included.
func (m *Manager) adopt(ctx context.Context, res *core.AuthResult) error {
	if res.AccessToken == "" {
		// The backend demanded a follow-up action instead of issuing tokens.
		return nil
	}

	next := &core.Authentication{
		Kind:         core.AuthKindSession,
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
		UserID:       res.UserID,
	}

	prev, err := m.repo.Authentication(ctx)
	if err != nil {
		return err
	}
	if prev != nil && !prev.SameUser(next) {
		m.teardown(ctx, prev)
	}

	return m.repo.SaveAuthentication(ctx, next)
}

// teardown clears every trace of the previous session. Failures are logged
// and ignored; a half-dead signer must not block a new sign-in.
func (m *Manager) teardown(ctx context.Context, prev *core.Authentication) {
	if err := m.signer.Disconnect(ctx); err != nil {
		m.logger.Warn("signer disconnect failed during teardown", "error", err)
	}
	if err := m.repo.Clear(ctx); err != nil {
		m.logger.Warn("credential clear failed during teardown", "error", err)
	}
	if err := m.events.PublishSessionCleared(ctx, prev.UserID); err != nil {
		m.logger.Warn("session cleared event failed", "error", err)
	}
}

// Login authenticates with email and password.
func (m *Manager) Login(ctx context.Context, email, password string) (*core.AuthResult, error) {
	if err := m.requireLoggedOut(ctx); err != nil {
		return nil, err
	}
	res, err := m.api.LoginEmailPassword(ctx, email, password, m.ecosystem)
	if err != nil {
		return nil, err
	}
	if err := m.adopt(ctx, res); err != nil {
		return nil, err
	}
	return res, nil
}

// Signup registers a new email/password user. The result may carry a
// required action instead of tokens when email verification is enforced.
func (m *Manager) Signup(ctx context.Context, email, password, name string) (*core.AuthResult, error) {
	if err := m.requireLoggedOut(ctx); err != nil {
		return nil, err
	}
	res, err := m.api.SignupEmailPassword(ctx, email, password, name, m.ecosystem)
	if err != nil {
		return nil, err
	}
	if err := m.adopt(ctx, res); err != nil {
		return nil, err
	}
	return res, nil
}

// SignUpGuest creates an anonymous account.
func (m *Manager) SignUpGuest(ctx context.Context) (*core.AuthResult, error) {
	if err := m.requireLoggedOut(ctx); err != nil {
		return nil, err
	}
	res, err := m.api.RegisterGuest(ctx)
	if err != nil {
		return nil, err
	}
	if err := m.adopt(ctx, res); err != nil {
		return nil, err
	}
	return res, nil
}

// LoginWithIDToken exchanges a provider-issued id token for a session.
func (m *Manager) LoginWithIDToken(ctx context.Context, provider, token string) (*core.AuthResult, error) {
	if err := m.requireLoggedOut(ctx); err != nil {
		return nil, err
	}
	res, err := m.api.LoginWithIDToken(ctx, provider, token)
	if err != nil {
		return nil, err
	}
	if err := m.adopt(ctx, res); err != nil {
		return nil, err
	}
	return res, nil
}

// StoreThirdPartyAuth verifies an externally issued token with the backend
// and persists it as the active authentication. Third-party records carry no
// refresh token; the embedding app owns their renewal.
func (m *Manager) StoreThirdPartyAuth(ctx context.Context, provider, token, tokenType string) (*core.Authentication, error) {
	userID, err := m.api.AuthenticateThirdParty(ctx, provider, token, tokenType)
	if err != nil {
		return nil, err
	}

	next := &core.Authentication{
		Kind:                core.AuthKindThirdParty,
		AccessToken:         token,
		UserID:              userID,
		ThirdPartyProvider:  provider,
		ThirdPartyTokenType: tokenType,
	}

	prev, err := m.repo.Authentication(ctx)
	if err != nil {
		return nil, err
	}
	if prev != nil && !prev.SameUser(next) {
		m.teardown(ctx, prev)
	}

	if err := m.repo.SaveAuthentication(ctx, next); err != nil {
		return nil, err
	}
	return next, nil
}

// InitOAuth starts a provider OAuth flow and returns the authorization URL
// plus the key to poll completion with.
func (m *Manager) InitOAuth(ctx context.Context, provider, redirectTo string, usePolling bool) (*core.OAuthInit, error) {
	if err := m.requireLoggedOut(ctx); err != nil {
		return nil, err
	}
	return m.api.InitOAuth(ctx, provider, redirectTo, usePolling, m.ecosystem)
}

// PollOAuth waits for the user to finish the provider flow in their browser.
// It polls until the backend reports completion, a hard failure occurs, or
// the attempt budget runs out.
func (m *Manager) PollOAuth(ctx context.Context, key string) (*core.AuthResult, error) {
	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()

	for attempt := 0; attempt < m.pollAttempts; attempt++ {
		res, err := m.api.PollOAuth(ctx, key)
		if err == nil {
			if err := m.adopt(ctx, res); err != nil {
				return nil, err
			}
			return res, nil
		}
		if !errors.Is(err, core.ErrOAuthNotReady) {
			return nil, err
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}

	return nil, core.ErrOAuthTimeout
}

// InitSIWE fetches the nonce for a sign-in-with-wallet challenge.
func (m *Manager) InitSIWE(ctx context.Context, address string) (*core.SIWEChallenge, error) {
	return m.api.InitSIWE(ctx, address)
}

// AuthenticateSIWE completes a sign-in-with-wallet flow with the signed
// message.
func (m *Manager) AuthenticateSIWE(ctx context.Context, signature, message, walletClientType, connectorType string) (*core.AuthResult, error) {
	if err := m.requireLoggedOut(ctx); err != nil {
		return nil, err
	}
	res, err := m.api.AuthenticateSIWE(ctx, signature, message, walletClientType, connectorType)
	if err != nil {
		return nil, err
	}
	if err := m.adopt(ctx, res); err != nil {
		return nil, err
	}
	return res, nil
}

// RequestResetPassword starts a password reset. The PKCE exchange is
// persisted before the request leaves, so a crash cannot orphan the email.
func (m *Manager) RequestResetPassword(ctx context.Context, email, redirectURL string) error {
	state, challenge, err := newChallenge()
	if err != nil {
		return err
	}
	if err := m.repo.SaveChallenge(ctx, state); err != nil {
		return err
	}
	return m.api.RequestResetPassword(ctx, email, redirectURL, challenge)
}

// ResetPassword completes a password reset with the state from the emailed
// link. The stored challenge is consumed on success.
func (m *Manager) ResetPassword(ctx context.Context, email, password, state string) error {
	verifier, err := m.consumeChallenge(ctx, state)
	if err != nil {
		return err
	}
	if err := m.api.ResetPassword(ctx, email, password, state, verifier); err != nil {
		return err
	}
	return m.repo.ClearChallenge(ctx)
}

// RequestEmailVerification sends a verification email.
func (m *Manager) RequestEmailVerification(ctx context.Context, email, redirectURL string) error {
	state, challenge, err := newChallenge()
	if err != nil {
		return err
	}
	if err := m.repo.SaveChallenge(ctx, state); err != nil {
		return err
	}
	return m.api.RequestEmailVerification(ctx, email, redirectURL, challenge)
}

// VerifyEmail completes email verification with the state from the emailed
// link.
func (m *Manager) VerifyEmail(ctx context.Context, email, state string) error {
	verifier, err := m.consumeChallenge(ctx, state)
	if err != nil {
		return err
	}
	if err := m.api.VerifyEmail(ctx, email, state, verifier); err != nil {
		return err
	}
	return m.repo.ClearChallenge(ctx)
}

// consumeChallenge validates state against the stored PKCE exchange and
// returns its verifier.
func (m *Manager) consumeChallenge(ctx context.Context, state string) (string, error) {
	stored, err := m.repo.Challenge(ctx)
	if err != nil {
		return "", err
	}
	if stored == nil {
		return "", core.ErrMissingChallenge
	}
	if stored.State != state {
		return "", core.ErrStateMismatch
	}
	return stored.Verifier, nil
}

// RequestEmailOTP sends a one-time code to an email address.
func (m *Manager) RequestEmailOTP(ctx context.Context, email, otpType string) error {
	return m.api.RequestEmailOTP(ctx, email, otpType)
}

// LoginWithEmailOTP signs in with an emailed one-time code.
func (m *Manager) LoginWithEmailOTP(ctx context.Context, email, otp string) (*core.AuthResult, error) {
	if err := m.requireLoggedOut(ctx); err != nil {
		return nil, err
	}
	res, err := m.api.LoginWithEmailOTP(ctx, email, otp)
	if err != nil {
		return nil, err
	}
	if err := m.adopt(ctx, res); err != nil {
		return nil, err
	}
	return res, nil
}

// RequestSMSOTP sends a one-time code over SMS.
func (m *Manager) RequestSMSOTP(ctx context.Context, phoneNumber string) error {
	return m.api.RequestSMSOTP(ctx, phoneNumber)
}

// LoginWithSMSOTP signs in with an SMS one-time code.
func (m *Manager) LoginWithSMSOTP(ctx context.Context, phoneNumber, code string) (*core.AuthResult, error) {
	if err := m.requireLoggedOut(ctx); err != nil {
		return nil, err
	}
	res, err := m.api.LoginWithSMSOTP(ctx, phoneNumber, code)
	if err != nil {
		return nil, err
	}
	if err := m.adopt(ctx, res); err != nil {
		return nil, err
	}
	return res, nil
}

// LinkOAuth attaches a provider identity to the logged-in user.
func (m *Manager) LinkOAuth(ctx context.Context, provider, redirectTo string, usePolling bool) (*core.OAuthInit, error) {
	auth, err := m.Authentication(ctx)
	if err != nil {
		return nil, err
	}
	return m.api.LinkOAuth(ctx, auth, provider, redirectTo, usePolling)
}

// UnlinkOAuth detaches a provider identity from the logged-in user.
func (m *Manager) UnlinkOAuth(ctx context.Context, provider string) error {
	auth, err := m.Authentication(ctx)
	if err != nil {
		return err
	}
	return m.api.UnlinkOAuth(ctx, auth, provider)
}

// LinkEmail attaches an email/password credential to the logged-in user.
func (m *Manager) LinkEmail(ctx context.Context, email, password string) error {
	auth, err := m.Authentication(ctx)
	if err != nil {
		return err
	}
	return m.api.LinkEmail(ctx, auth, email, password)
}

// UnlinkEmail detaches an email credential from the logged-in user.
func (m *Manager) UnlinkEmail(ctx context.Context, email string) error {
	auth, err := m.Authentication(ctx)
	if err != nil {
		return err
	}
	return m.api.UnlinkEmail(ctx, auth, email)
}

// InitLinkWallet fetches the nonce for linking an external wallet.
func (m *Manager) InitLinkWallet(ctx context.Context, address string) (*core.SIWEChallenge, error) {
	auth, err := m.Authentication(ctx)
	if err != nil {
		return nil, err
	}
	return m.api.InitLinkSIWE(ctx, auth, address)
}

// LinkWallet attaches an external wallet to the logged-in user.
func (m *Manager) LinkWallet(ctx context.Context, signature, message, walletClientType, connectorType string) error {
	auth, err := m.Authentication(ctx)
	if err != nil {
		return err
	}
	return m.api.LinkWallet(ctx, auth, signature, message, walletClientType, connectorType)
}

// UnlinkWallet detaches an external wallet from the logged-in user.
func (m *Manager) UnlinkWallet(ctx context.Context, address string) error {
	auth, err := m.Authentication(ctx)
	if err != nil {
		return err
	}
	return m.api.UnlinkWallet(ctx, auth, address)
}

// ValidateAndRefresh returns an authentication whose access token is good for
// at least the expiry skew, refreshing it first when it is not. Passing force
// skips the local expiry check. Third-party tokens are returned as-is; their
// renewal belongs to the embedding app.
func (m *Manager) ValidateAndRefresh(ctx context.Context, force bool) (*core.Authentication, error) {
	auth, err := m.Authentication(ctx)
	if err != nil {
		return nil, err
	}

	if auth.Kind == core.AuthKindThirdParty {
		return auth, nil
	}

	if !force {
		expired, decodeErr := tokenExpired(auth.AccessToken)
		switch {
		case decodeErr != nil && auth.RefreshToken == "":
			// Nothing to refresh with; surface the decode failure.
			return nil, decodeErr
		case decodeErr != nil:
			// An unreadable access token is refreshed like an expired one.
			m.logger.Debug("access token undecodable, refreshing", "error", decodeErr)
		case !expired:
			return auth, nil
		}
	}

	res, err := m.api.Refresh(ctx, auth.RefreshToken)
	if err != nil {
		return nil, core.ErrRefreshFailed.WithMessage(err.Error())
	}

	auth.AccessToken = res.AccessToken
	if res.RefreshToken != "" {
		auth.RefreshToken = res.RefreshToken
	}
	if res.UserID != "" {
		auth.UserID = res.UserID
	}

	if err := m.repo.SaveAuthentication(ctx, auth); err != nil {
		return nil, err
	}
	if err := m.events.PublishTokenRefreshed(ctx, auth.UserID); err != nil {
		m.logger.Warn("token refreshed event failed", "error", err)
	}

	return auth, nil
}

// tokenExpired decides locally whether the access token needs a refresh. The
// token is decoded without signature verification; the backend remains the
// authority and will reject a forged one anyway.
func tokenExpired(accessToken string) (bool, error) {
	token, _, err := jwt.NewParser().ParseUnverified(accessToken, jwt.MapClaims{})
	if err != nil {
		return false, core.ErrMalformedToken.WithMessage(err.Error())
	}

	exp, err := token.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false, core.ErrMalformedToken.WithMessage("token has no expiration")
	}

	return time.Now().Add(expirySkew).After(exp.Time), nil
}

// GetAccessToken returns a currently valid access token.
func (m *Manager) GetAccessToken(ctx context.Context) (string, error) {
	auth, err := m.ValidateAndRefresh(ctx, false)
	if err != nil {
		return "", err
	}
	return auth.AccessToken, nil
}

// Logout revokes the backend session, tears down the signer and wipes all
// persisted credentials. Backend and signer failures do not stop the local
// wipe.
func (m *Manager) Logout(ctx context.Context) error {
	auth, err := m.Authentication(ctx)
	if err != nil {
		return err
	}

	if auth.Kind == core.AuthKindSession {
		if err := m.api.Logout(ctx, auth); err != nil {
			m.logger.Warn("backend logout failed", "error", err)
		}
	}
	if err := m.signer.Disconnect(ctx); err != nil {
		m.logger.Warn("signer disconnect failed", "error", err)
	}
	if err := m.repo.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear credentials: %w", err)
	}
	if err := m.events.PublishSessionCleared(ctx, auth.UserID); err != nil {
		m.logger.Warn("session cleared event failed", "error", err)
	}

	return nil
}
