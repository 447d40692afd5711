package backend

import (
	"context"
	"errors"
	"net/http"

	"github.com/vaultline/vaultline/core"
	"github.com/vaultline/vaultline/ports"
)

type authAPI struct {
	c *Client
}

var _ ports.AuthAPI = (*authAPI)(nil)

type playerDTO struct {
	ID string `json:"id"`
}

type authResponseDTO struct {
	Player       playerDTO `json:"player"`
	Token        string    `json:"token"`
	RefreshToken string    `json:"refreshToken"`
	Action       string    `json:"action,omitempty"`
}

func (d *authResponseDTO) toResult() *core.AuthResult {
	return &core.AuthResult{
		UserID:         d.Player.ID,
		AccessToken:    d.Token,
		RefreshToken:   d.RefreshToken,
		RequiredAction: d.Action,
	}
}

type oauthOptionsDTO struct {
	RedirectTo string `json:"redirectTo,omitempty"`
	UsePooling bool   `json:"usePooling,omitempty"`
}

func (a *authAPI) LoginEmailPassword(ctx context.Context, email, password, ecosystem string) (*core.AuthResult, error) {
	body := map[string]string{"email": email, "password": password}
	if ecosystem != "" {
		body["ecosystemGame"] = ecosystem
	}

	var resp authResponseDTO
	if err := a.c.do(ctx, http.MethodPost, "/iam/v1/password/login", nil, nil, body, &resp); err != nil {
		return nil, err
	}
	return resp.toResult(), nil
}

func (a *authAPI) SignupEmailPassword(ctx context.Context, email, password, name, ecosystem string) (*core.AuthResult, error) {
	body := map[string]string{"email": email, "password": password, "name": name}
	if ecosystem != "" {
		body["ecosystemGame"] = ecosystem
	}

	var resp authResponseDTO
	if err := a.c.do(ctx, http.MethodPost, "/iam/v1/password/signup", nil, nil, body, &resp); err != nil {
		return nil, err
	}
	return resp.toResult(), nil
}

func (a *authAPI) RegisterGuest(ctx context.Context) (*core.AuthResult, error) {
	var resp authResponseDTO
	if err := a.c.do(ctx, http.MethodPost, "/iam/v1/guest/signup", nil, nil, struct{}{}, &resp); err != nil {
		return nil, err
	}
	return resp.toResult(), nil
}

func (a *authAPI) LoginWithIDToken(ctx context.Context, provider, token string) (*core.AuthResult, error) {
	body := map[string]string{"provider": provider, "token": token}

	var resp authResponseDTO
	if err := a.c.do(ctx, http.MethodPost, "/iam/v1/oauth/token", nil, nil, body, &resp); err != nil {
		return nil, err
	}
	return resp.toResult(), nil
}

func (a *authAPI) AuthenticateThirdParty(ctx context.Context, provider, token, tokenType string) (string, error) {
	body := map[string]string{"provider": provider, "token": token, "tokenType": tokenType}

	var resp struct {
		ID string `json:"id"`
	}
	if err := a.c.do(ctx, http.MethodPost, "/iam/v1/third_party/authenticate", nil, nil, body, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

func (a *authAPI) InitOAuth(ctx context.Context, provider, redirectTo string, usePolling bool, ecosystem string) (*core.OAuthInit, error) {
	body := map[string]any{
		"provider": provider,
		"options":  oauthOptionsDTO{RedirectTo: redirectTo, UsePooling: usePolling},
	}
	if ecosystem != "" {
		body["ecosystemGame"] = ecosystem
	}

	var resp struct {
		URL string `json:"url"`
		Key string `json:"key"`
	}
	if err := a.c.do(ctx, http.MethodPost, "/iam/v1/oauth/init", nil, nil, body, &resp); err != nil {
		return nil, err
	}
	return &core.OAuthInit{URL: resp.URL, Key: resp.Key}, nil
}

func (a *authAPI) PollOAuth(ctx context.Context, key string) (*core.AuthResult, error) {
	var resp authResponseDTO
	err := a.c.do(ctx, http.MethodGet, "/iam/v1/oauth/poll/"+key, nil, nil, nil, &resp)
	if err != nil {
		// The poll endpoint answers 404 until the provider flow completes.
		if errors.Is(err, core.ErrUserNotFound) {
			return nil, core.ErrOAuthNotReady
		}
		return nil, err
	}
	return resp.toResult(), nil
}

func (a *authAPI) InitSIWE(ctx context.Context, address string) (*core.SIWEChallenge, error) {
	body := map[string]string{"address": address}

	var resp struct {
		Address   string `json:"address"`
		Nonce     string `json:"nonce"`
		ExpiresAt int64  `json:"expiresAt"`
	}
	if err := a.c.do(ctx, http.MethodPost, "/iam/v1/siwe/init", nil, nil, body, &resp); err != nil {
		return nil, err
	}
	return &core.SIWEChallenge{Address: resp.Address, Nonce: resp.Nonce, ExpiresAt: resp.ExpiresAt}, nil
}

func (a *authAPI) AuthenticateSIWE(ctx context.Context, signature, message, walletClientType, connectorType string) (*core.AuthResult, error) {
	body := map[string]string{
		"signature":        signature,
		"message":          message,
		"walletClientType": walletClientType,
		"connectorType":    connectorType,
	}

	var resp authResponseDTO
	if err := a.c.do(ctx, http.MethodPost, "/iam/v1/siwe/authenticate", nil, nil, body, &resp); err != nil {
		return nil, err
	}
	return resp.toResult(), nil
}

func (a *authAPI) Refresh(ctx context.Context, refreshToken string) (*core.AuthResult, error) {
	body := map[string]string{"refreshToken": refreshToken}

	var resp authResponseDTO
	if err := a.c.do(ctx, http.MethodPost, "/iam/v1/sessions/refresh", nil, nil, body, &resp); err != nil {
		return nil, err
	}
	return resp.toResult(), nil
}

func (a *authAPI) Logout(ctx context.Context, auth *core.Authentication) error {
	return a.c.do(ctx, http.MethodPost, "/iam/v1/sessions/logout", auth, nil, struct{}{}, nil)
}

func (a *authAPI) RequestResetPassword(ctx context.Context, email, redirectURL string, challenge core.PKCEChallenge) error {
	body := map[string]any{
		"email":       email,
		"redirectUrl": redirectURL,
		"challenge":   challenge,
	}
	return a.c.do(ctx, http.MethodPost, "/iam/v1/password/reset/request", nil, nil, body, nil)
}

func (a *authAPI) ResetPassword(ctx context.Context, email, password, state, verifier string) error {
	body := map[string]string{
		"email":    email,
		"password": password,
		"state":    state,
		"verifier": verifier,
	}
	return a.c.do(ctx, http.MethodPost, "/iam/v1/password/reset", nil, nil, body, nil)
}

func (a *authAPI) RequestEmailVerification(ctx context.Context, email, redirectURL string, challenge core.PKCEChallenge) error {
	body := map[string]any{
		"email":       email,
		"redirectUrl": redirectURL,
		"challenge":   challenge,
	}
	return a.c.do(ctx, http.MethodPost, "/iam/v1/email/verify/request", nil, nil, body, nil)
}

func (a *authAPI) VerifyEmail(ctx context.Context, email, state, verifier string) error {
	body := map[string]string{"email": email, "state": state, "verifier": verifier}
	return a.c.do(ctx, http.MethodPost, "/iam/v1/email/verify", nil, nil, body, nil)
}

func (a *authAPI) RequestEmailOTP(ctx context.Context, email, otpType string) error {
	body := map[string]string{"email": email, "type": otpType}
	return a.c.do(ctx, http.MethodPost, "/iam/v1/otp/email/request", nil, nil, body, nil)
}

func (a *authAPI) LoginWithEmailOTP(ctx context.Context, email, otp string) (*core.AuthResult, error) {
	body := map[string]string{"email": email, "otp": otp}

	var resp authResponseDTO
	if err := a.c.do(ctx, http.MethodPost, "/iam/v1/otp/email/login", nil, nil, body, &resp); err != nil {
		return nil, err
	}
	return resp.toResult(), nil
}

func (a *authAPI) RequestSMSOTP(ctx context.Context, phoneNumber string) error {
	body := map[string]string{"phoneNumber": phoneNumber}
	return a.c.do(ctx, http.MethodPost, "/iam/v1/otp/sms/request", nil, nil, body, nil)
}

func (a *authAPI) LoginWithSMSOTP(ctx context.Context, phoneNumber, code string) (*core.AuthResult, error) {
	body := map[string]string{"phoneNumber": phoneNumber, "otp": code}

	var resp authResponseDTO
	if err := a.c.do(ctx, http.MethodPost, "/iam/v1/otp/sms/login", nil, nil, body, &resp); err != nil {
		return nil, err
	}
	return resp.toResult(), nil
}

func (a *authAPI) LinkOAuth(ctx context.Context, auth *core.Authentication, provider, redirectTo string, usePolling bool) (*core.OAuthInit, error) {
	body := map[string]any{
		"provider": provider,
		"options":  oauthOptionsDTO{RedirectTo: redirectTo, UsePooling: usePolling},
	}

	var resp struct {
		URL string `json:"url"`
		Key string `json:"key"`
	}
	if err := a.c.do(ctx, http.MethodPost, "/iam/v1/oauth/link", auth, nil, body, &resp); err != nil {
		return nil, err
	}
	return &core.OAuthInit{URL: resp.URL, Key: resp.Key}, nil
}

func (a *authAPI) UnlinkOAuth(ctx context.Context, auth *core.Authentication, provider string) error {
	body := map[string]string{"provider": provider}
	return a.c.do(ctx, http.MethodPost, "/iam/v1/oauth/unlink", auth, nil, body, nil)
}

func (a *authAPI) LinkEmail(ctx context.Context, auth *core.Authentication, email, password string) error {
	body := map[string]string{"email": email, "password": password}
	return a.c.do(ctx, http.MethodPost, "/iam/v1/email/link", auth, nil, body, nil)
}

func (a *authAPI) UnlinkEmail(ctx context.Context, auth *core.Authentication, email string) error {
	body := map[string]string{"email": email}
	return a.c.do(ctx, http.MethodPost, "/iam/v1/email/unlink", auth, nil, body, nil)
}

func (a *authAPI) InitLinkSIWE(ctx context.Context, auth *core.Authentication, address string) (*core.SIWEChallenge, error) {
	body := map[string]string{"address": address}

	var resp struct {
		Address   string `json:"address"`
		Nonce     string `json:"nonce"`
		ExpiresAt int64  `json:"expiresAt"`
	}
	if err := a.c.do(ctx, http.MethodPost, "/iam/v1/siwe/link/init", auth, nil, body, &resp); err != nil {
		return nil, err
	}
	return &core.SIWEChallenge{Address: resp.Address, Nonce: resp.Nonce, ExpiresAt: resp.ExpiresAt}, nil
}

func (a *authAPI) LinkWallet(ctx context.Context, auth *core.Authentication, signature, message, walletClientType, connectorType string) error {
	body := map[string]string{
		"signature":        signature,
		"message":          message,
		"walletClientType": walletClientType,
		"connectorType":    connectorType,
	}
	return a.c.do(ctx, http.MethodPost, "/iam/v1/siwe/link", auth, nil, body, nil)
}

func (a *authAPI) UnlinkWallet(ctx context.Context, auth *core.Authentication, address string) error {
	body := map[string]string{"address": address}
	return a.c.do(ctx, http.MethodPost, "/iam/v1/siwe/unlink", auth, nil, body, nil)
}
