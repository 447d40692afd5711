package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaultline/vaultline/adapters/storage"
	"github.com/vaultline/vaultline/core"
	"github.com/vaultline/vaultline/credentials"
	"github.com/vaultline/vaultline/ports"
)

// stubAuthAPI overrides only the endpoints a test exercises; calling
// anything else panics through the embedded nil interface.
type stubAuthAPI struct {
	ports.AuthAPI

	loginFn      func(ctx context.Context, email, password, ecosystem string) (*core.AuthResult, error)
	refreshFn    func(ctx context.Context, refreshToken string) (*core.AuthResult, error)
	pollFn       func(ctx context.Context, key string) (*core.AuthResult, error)
	resetFn      func(ctx context.Context, email, password, state, verifier string) error
	logoutFn     func(ctx context.Context, auth *core.Authentication) error
	thirdPartyFn func(ctx context.Context, provider, token, tokenType string) (string, error)
}

func (s *stubAuthAPI) LoginEmailPassword(ctx context.Context, email, password, ecosystem string) (*core.AuthResult, error) {
	return s.loginFn(ctx, email, password, ecosystem)
}

func (s *stubAuthAPI) Refresh(ctx context.Context, refreshToken string) (*core.AuthResult, error) {
	return s.refreshFn(ctx, refreshToken)
}

func (s *stubAuthAPI) PollOAuth(ctx context.Context, key string) (*core.AuthResult, error) {
	return s.pollFn(ctx, key)
}

func (s *stubAuthAPI) ResetPassword(ctx context.Context, email, password, state, verifier string) error {
	return s.resetFn(ctx, email, password, state, verifier)
}

func (s *stubAuthAPI) Logout(ctx context.Context, auth *core.Authentication) error {
	if s.logoutFn != nil {
		return s.logoutFn(ctx, auth)
	}
	return nil
}

func (s *stubAuthAPI) AuthenticateThirdParty(ctx context.Context, provider, token, tokenType string) (string, error) {
	return s.thirdPartyFn(ctx, provider, token, tokenType)
}

type recordingPublisher struct {
	mu        sync.Mutex
	cleared   []string
	refreshed []string
}

func (p *recordingPublisher) PublishSessionCleared(ctx context.Context, userID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cleared = append(p.cleared, userID)
	return nil
}

func (p *recordingPublisher) PublishTokenRefreshed(ctx context.Context, userID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.refreshed = append(p.refreshed, userID)
	return nil
}

func (p *recordingPublisher) PublishAccountSwitched(ctx context.Context, address string) error {
	return nil
}

func (p *recordingPublisher) PublishConnected(ctx context.Context, chainID uint64) error {
	return nil
}

type recordingSigner struct {
	ports.Signer

	mu          sync.Mutex
	disconnects int
}

func (s *recordingSigner) Disconnect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disconnects++
	return nil
}

type fixture struct {
	manager *Manager
	repo    *credentials.Repository
	api     *stubAuthAPI
	events  *recordingPublisher
	signer  *recordingSigner
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()

	repo := credentials.NewRepository(storage.NewMemoryStore())
	api := &stubAuthAPI{}
	events := &recordingPublisher{}
	signer := &recordingSigner{}

	return &fixture{
		manager: NewManager(repo, api, events, signer, opts...),
		repo:    repo,
		api:     api,
		events:  events,
		signer:  signer,
	}
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "pl_1",
		"exp": exp.Unix(),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

func TestLoginPersistsSession(t *testing.T) {
	f := newFixture(t)
	f.api.loginFn = func(ctx context.Context, email, password, ecosystem string) (*core.AuthResult, error) {
		return &core.AuthResult{UserID: "pl_1", AccessToken: "at", RefreshToken: "rt"}, nil
	}

	res, err := f.manager.Login(context.Background(), "a@b.c", "pw")
	require.NoError(t, err)
	assert.Equal(t, "pl_1", res.UserID)

	auth, err := f.manager.Authentication(context.Background())
	require.NoError(t, err)
	assert.Equal(t, core.AuthKindSession, auth.Kind)
	assert.Equal(t, "at", auth.AccessToken)
	assert.Equal(t, "rt", auth.RefreshToken)
}

func TestLoginWhileLoggedInFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.repo.SaveAuthentication(ctx, &core.Authentication{
		Kind: core.AuthKindSession, AccessToken: "at", UserID: "pl_1",
	}))

	loginCalls := 0
	f.api.loginFn = func(ctx context.Context, email, password, ecosystem string) (*core.AuthResult, error) {
		loginCalls++
		return &core.AuthResult{UserID: "pl_2", AccessToken: "at2"}, nil
	}

	_, err := f.manager.Login(ctx, "a@b.c", "pw")
	assert.True(t, errors.Is(err, core.ErrAlreadyLoggedIn))
	assert.Zero(t, loginCalls, "the backend is never consulted while a session exists")

	auth, err := f.manager.Authentication(ctx)
	require.NoError(t, err)
	assert.Equal(t, "pl_1", auth.UserID, "the stored session survives untouched")
}

func TestGuestAndOAuthInitWhileLoggedInFail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.repo.SaveAuthentication(ctx, &core.Authentication{
		Kind: core.AuthKindSession, AccessToken: "at", UserID: "pl_1",
	}))

	_, err := f.manager.SignUpGuest(ctx)
	assert.True(t, errors.Is(err, core.ErrAlreadyLoggedIn))

	_, err = f.manager.InitOAuth(ctx, "google", "https://app.example/cb", true)
	assert.True(t, errors.Is(err, core.ErrAlreadyLoggedIn))
}

func TestThirdPartyAuthAsDifferentUserTearsDownPreviousSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.repo.SaveAuthentication(ctx, &core.Authentication{
		Kind: core.AuthKindSession, AccessToken: "old", UserID: "pl_old",
	}))
	require.NoError(t, f.repo.SaveAccount(ctx, &core.Account{ID: "acc_old", Address: "0xold"}))

	f.api.thirdPartyFn = func(ctx context.Context, provider, token, tokenType string) (string, error) {
		return "pl_new", nil
	}

	_, err := f.manager.StoreThirdPartyAuth(ctx, "firebase", "ext-token", "idToken")
	require.NoError(t, err)

	assert.Equal(t, 1, f.signer.disconnects)
	assert.Equal(t, []string{"pl_old"}, f.events.cleared)

	account, err := f.repo.Account(ctx)
	require.NoError(t, err)
	assert.Nil(t, account)

	auth, err := f.manager.Authentication(ctx)
	require.NoError(t, err)
	assert.Equal(t, "pl_new", auth.UserID)
}

func TestThirdPartyAuthSameUserKeepsAccountRecord(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.repo.SaveAuthentication(ctx, &core.Authentication{
		Kind: core.AuthKindSession, AccessToken: "old", UserID: "pl_1",
	}))
	require.NoError(t, f.repo.SaveAccount(ctx, &core.Account{ID: "acc_1", Address: "0xabc"}))

	f.api.thirdPartyFn = func(ctx context.Context, provider, token, tokenType string) (string, error) {
		return "pl_1", nil
	}

	_, err := f.manager.StoreThirdPartyAuth(ctx, "firebase", "ext-token", "idToken")
	require.NoError(t, err)

	assert.Zero(t, f.signer.disconnects)

	account, err := f.repo.Account(ctx)
	require.NoError(t, err)
	require.NotNil(t, account)
	assert.Equal(t, "acc_1", account.ID)
}

func TestValidateAndRefreshSkipsFreshToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	token := signedToken(t, time.Now().Add(time.Hour))
	require.NoError(t, f.repo.SaveAuthentication(ctx, &core.Authentication{
		Kind: core.AuthKindSession, AccessToken: token, RefreshToken: "rt", UserID: "pl_1",
	}))

	refreshCalls := 0
	f.api.refreshFn = func(ctx context.Context, refreshToken string) (*core.AuthResult, error) {
		refreshCalls++
		return nil, errors.New("unexpected")
	}

	auth, err := f.manager.ValidateAndRefresh(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, token, auth.AccessToken)
	assert.Zero(t, refreshCalls)
	assert.Empty(t, f.events.refreshed)
}

func TestValidateAndRefreshRenewsExpiringToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Inside the 30 second skew, so treated as expired.
	token := signedToken(t, time.Now().Add(10*time.Second))
	require.NoError(t, f.repo.SaveAuthentication(ctx, &core.Authentication{
		Kind: core.AuthKindSession, AccessToken: token, RefreshToken: "rt", UserID: "pl_1",
	}))

	f.api.refreshFn = func(ctx context.Context, refreshToken string) (*core.AuthResult, error) {
		assert.Equal(t, "rt", refreshToken)
		return &core.AuthResult{UserID: "pl_1", AccessToken: "at2", RefreshToken: "rt2"}, nil
	}

	auth, err := f.manager.ValidateAndRefresh(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, "at2", auth.AccessToken)
	assert.Equal(t, "rt2", auth.RefreshToken)
	assert.Equal(t, []string{"pl_1"}, f.events.refreshed)

	stored, err := f.repo.Authentication(ctx)
	require.NoError(t, err)
	assert.Equal(t, "at2", stored.AccessToken)
}

func TestValidateAndRefreshRecoversFromGarbageToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.repo.SaveAuthentication(ctx, &core.Authentication{
		Kind: core.AuthKindSession, AccessToken: "not-a-jwt", RefreshToken: "rt", UserID: "pl_1",
	}))

	refreshCalls := 0
	f.api.refreshFn = func(ctx context.Context, refreshToken string) (*core.AuthResult, error) {
		refreshCalls++
		assert.Equal(t, "rt", refreshToken)
		return &core.AuthResult{UserID: "pl_1", AccessToken: "at2", RefreshToken: "rt2"}, nil
	}

	auth, err := f.manager.ValidateAndRefresh(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 1, refreshCalls, "an unreadable token is refreshed like an expired one")
	assert.Equal(t, "at2", auth.AccessToken)

	stored, err := f.repo.Authentication(ctx)
	require.NoError(t, err)
	assert.Equal(t, "at2", stored.AccessToken)
}

func TestValidateAndRefreshMalformedTokenWithoutRefreshToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.repo.SaveAuthentication(ctx, &core.Authentication{
		Kind: core.AuthKindSession, AccessToken: "not-a-jwt", UserID: "pl_1",
	}))

	_, err := f.manager.ValidateAndRefresh(ctx, false)
	assert.True(t, errors.Is(err, core.ErrMalformedToken))
}

func TestValidateAndRefreshWrapsBackendFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	token := signedToken(t, time.Now().Add(-time.Minute))
	require.NoError(t, f.repo.SaveAuthentication(ctx, &core.Authentication{
		Kind: core.AuthKindSession, AccessToken: token, RefreshToken: "rt", UserID: "pl_1",
	}))

	f.api.refreshFn = func(ctx context.Context, refreshToken string) (*core.AuthResult, error) {
		return nil, core.ErrInvalidCredentials
	}

	_, err := f.manager.ValidateAndRefresh(ctx, false)
	assert.True(t, errors.Is(err, core.ErrRefreshFailed))
}

func TestValidateAndRefreshThirdPartyPassesThrough(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.repo.SaveAuthentication(ctx, &core.Authentication{
		Kind: core.AuthKindThirdParty, AccessToken: "external", UserID: "pl_1",
	}))

	auth, err := f.manager.ValidateAndRefresh(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, "external", auth.AccessToken)
}

func TestPollOAuthAdoptsSessionOnceReady(t *testing.T) {
	f := newFixture(t, WithPollPolicy(10, time.Millisecond))
	ctx := context.Background()

	calls := 0
	f.api.pollFn = func(ctx context.Context, key string) (*core.AuthResult, error) {
		calls++
		if calls < 4 {
			return nil, core.ErrOAuthNotReady
		}
		return &core.AuthResult{UserID: "pl_1", AccessToken: "at"}, nil
	}

	res, err := f.manager.PollOAuth(ctx, "key-1")
	require.NoError(t, err)
	assert.Equal(t, "at", res.AccessToken)
	assert.Equal(t, 4, calls)

	auth, err := f.manager.Authentication(ctx)
	require.NoError(t, err)
	assert.Equal(t, "pl_1", auth.UserID)
}

func TestPollOAuthTimesOutAfterBudget(t *testing.T) {
	f := newFixture(t, WithPollPolicy(5, time.Millisecond))

	calls := 0
	f.api.pollFn = func(ctx context.Context, key string) (*core.AuthResult, error) {
		calls++
		return nil, core.ErrOAuthNotReady
	}

	_, err := f.manager.PollOAuth(context.Background(), "key-1")
	assert.True(t, errors.Is(err, core.ErrOAuthTimeout))
	assert.Equal(t, 5, calls)
}

func TestPollOAuthStopsOnHardFailure(t *testing.T) {
	f := newFixture(t, WithPollPolicy(10, time.Millisecond))

	f.api.pollFn = func(ctx context.Context, key string) (*core.AuthResult, error) {
		return nil, core.ErrOAuthInvalidToken
	}

	_, err := f.manager.PollOAuth(context.Background(), "key-1")
	assert.True(t, errors.Is(err, core.ErrOAuthInvalidToken))
}

func TestResetPasswordRequiresStoredChallenge(t *testing.T) {
	f := newFixture(t)

	err := f.manager.ResetPassword(context.Background(), "a@b.c", "new-pw", "state-1")
	assert.True(t, errors.Is(err, core.ErrMissingChallenge))
}

func TestResetPasswordRejectsForeignState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.repo.SaveChallenge(ctx, &core.ChallengeState{State: "state-1", Verifier: "v-1"}))

	err := f.manager.ResetPassword(ctx, "a@b.c", "new-pw", "state-2")
	assert.True(t, errors.Is(err, core.ErrStateMismatch))
}

func TestResetPasswordConsumesChallenge(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.repo.SaveChallenge(ctx, &core.ChallengeState{State: "state-1", Verifier: "v-1"}))

	f.api.resetFn = func(ctx context.Context, email, password, state, verifier string) error {
		assert.Equal(t, "state-1", state)
		assert.Equal(t, "v-1", verifier)
		return nil
	}

	require.NoError(t, f.manager.ResetPassword(ctx, "a@b.c", "new-pw", "state-1"))

	stored, err := f.repo.Challenge(ctx)
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestLogoutClearsEverything(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.repo.SaveAuthentication(ctx, &core.Authentication{
		Kind: core.AuthKindSession, AccessToken: "at", UserID: "pl_1",
	}))
	require.NoError(t, f.repo.SaveAccount(ctx, &core.Account{ID: "acc_1"}))

	require.NoError(t, f.manager.Logout(ctx))

	assert.Equal(t, 1, f.signer.disconnects)
	assert.Equal(t, []string{"pl_1"}, f.events.cleared)

	_, err := f.manager.Authentication(ctx)
	assert.True(t, errors.Is(err, core.ErrNotLoggedIn))
}

func TestLogoutWithoutSession(t *testing.T) {
	f := newFixture(t)

	err := f.manager.Logout(context.Background())
	assert.True(t, errors.Is(err, core.ErrNotLoggedIn))
}
