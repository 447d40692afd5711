package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaultline/vaultline/core"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(srv.URL, "pk_test_123", WithEcosystem("acme"))
	require.NoError(t, err)
	return c
}

func TestSessionAuthHeaders(t *testing.T) {
	var got http.Header
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		_ = json.NewEncoder(w).Encode(map[string]any{"player": map[string]string{"id": "pl_1"}})
	})

	auth := &core.Authentication{Kind: core.AuthKindSession, AccessToken: "tok", UserID: "pl_1"}
	err := c.do(context.Background(), http.MethodPost, "/iam/v1/sessions/logout", auth, nil, struct{}{}, nil)
	require.NoError(t, err)

	assert.Equal(t, "Bearer tok", got.Get("authorization"))
	assert.Equal(t, "pk_test_123", got.Get("x-project-key"))
	assert.Equal(t, "acme", got.Get("x-game"))
	assert.Empty(t, got.Get("x-player-token"))
}

func TestThirdPartyAuthHeaders(t *testing.T) {
	var got http.Header
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.Write([]byte(`{}`))
	})

	auth := &core.Authentication{
		Kind:                core.AuthKindThirdParty,
		AccessToken:         "ext-token",
		ThirdPartyProvider:  "firebase",
		ThirdPartyTokenType: "idToken",
	}
	err := c.do(context.Background(), http.MethodGet, "/v1/accounts/acc_1", auth, nil, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, "Bearer pk_test_123", got.Get("authorization"))
	assert.Equal(t, "ext-token", got.Get("x-player-token"))
	assert.Equal(t, "firebase", got.Get("x-auth-provider"))
	assert.Equal(t, "idToken", got.Get("x-token-type"))
}

func TestDoClassifiesErrorResponses(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"code":"token_expired","message":"expired"}}`))
	})

	err := c.do(context.Background(), http.MethodGet, "/v1/accounts/acc_1", nil, nil, nil, nil)

	assert.True(t, errors.Is(err, core.ErrTokenExpired))
}

func TestPollOAuthNotReadyOn404(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{}`))
	})

	_, err := c.Auth().PollOAuth(context.Background(), "key-1")

	assert.True(t, errors.Is(err, core.ErrOAuthNotReady))
}

func TestPollOAuthReturnsResultOnceReady(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/iam/v1/oauth/poll/key-1", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"player":       map[string]string{"id": "pl_9"},
			"token":        "at",
			"refreshToken": "rt",
		})
	})

	res, err := c.Auth().PollOAuth(context.Background(), "key-1")

	require.NoError(t, err)
	assert.Equal(t, "pl_9", res.UserID)
	assert.Equal(t, "at", res.AccessToken)
	assert.Equal(t, "rt", res.RefreshToken)
}
