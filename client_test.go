package vaultline

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaultline/vaultline/adapters/signerproxy"
	"github.com/vaultline/vaultline/adapters/storage"
	"github.com/vaultline/vaultline/core"
	"github.com/vaultline/vaultline/credentials"
	"github.com/vaultline/vaultline/ports"
	"github.com/vaultline/vaultline/provider"
)

func testSignerHandler(t *testing.T) signerproxy.Handler {
	t.Helper()

	account := core.Account{
		ID:          "acc_1",
		Address:     "0x1111111111111111111111111111111111111111",
		ChainID:     137,
		AccountType: core.AccountTypeSmart,
	}
	accountJSON, err := json.Marshal(account)
	require.NoError(t, err)

	return func(env signerproxy.Envelope) signerproxy.Envelope {
		switch env.Action {
		case "create", "configure", "recover":
			return signerproxy.Envelope{Payload: accountJSON}
		case "sign":
			return signerproxy.Envelope{Payload: json.RawMessage(`{"signature":"0xsigned"}`)}
		case "export":
			return signerproxy.Envelope{Payload: json.RawMessage(`{"privateKey":"0xkey"}`)}
		case "disconnect":
			return signerproxy.Envelope{}
		default:
			return signerproxy.Envelope{Error: "unexpected action " + env.Action}
		}
	}
}

func thirdPartyAuth() *core.Authentication {
	return &core.Authentication{
		Kind:                core.AuthKindThirdParty,
		AccessToken:         "ext-token",
		UserID:              "pl_1",
		ThirdPartyProvider:  "firebase",
		ThirdPartyTokenType: "idToken",
	}
}

func newTestClient(t *testing.T, store ports.Store) *Client {
	t.Helper()

	client, err := New("http://127.0.0.1:0", "pk_test", signerproxy.NewLoopback(testSignerHandler(t)),
		WithStore(store),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Shutdown(context.Background()) })

	return client
}

func TestStateProgression(t *testing.T) {
	store := storage.NewMemoryStore()
	client := newTestClient(t, store)
	ctx := context.Background()

	assert.Equal(t, StateUnauthenticated, client.State(ctx))

	repo := credentials.NewRepository(store)
	require.NoError(t, repo.SaveAuthentication(ctx, thirdPartyAuth()))
	assert.Equal(t, StateAuthenticated, client.State(ctx))

	account, err := client.CreateSigner(ctx, ports.ProvisionRequest{ChainID: 137})
	require.NoError(t, err)
	assert.Equal(t, "acc_1", account.ID)

	assert.Equal(t, StateReady, client.State(ctx))
}

func TestCreateSignerRequiresLogin(t *testing.T) {
	client := newTestClient(t, storage.NewMemoryStore())

	_, err := client.CreateSigner(context.Background(), ports.ProvisionRequest{ChainID: 137})

	assert.ErrorIs(t, err, core.ErrNotLoggedIn)
}

func TestCreateSignerPersistsAccountAndConfig(t *testing.T) {
	store := storage.NewMemoryStore()
	client := newTestClient(t, store)
	ctx := context.Background()

	repo := credentials.NewRepository(store)
	require.NoError(t, repo.SaveAuthentication(ctx, thirdPartyAuth()))

	_, err := client.CreateSigner(ctx, ports.ProvisionRequest{ChainID: 137})
	require.NoError(t, err)

	account, err := repo.Account(ctx)
	require.NoError(t, err)
	require.NotNil(t, account)
	assert.Equal(t, "0x1111111111111111111111111111111111111111", account.Address)

	cfg, err := repo.SignerConfig(ctx)
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, uint64(137), cfg.ChainID)

	result, err := client.Provider().Request(ctx, provider.Request{Method: "eth_accounts"})
	require.NoError(t, err)
	assert.Equal(t, []string{account.Address}, result)
}

func TestSignMessageRoutesThroughProvider(t *testing.T) {
	store := storage.NewMemoryStore()
	client := newTestClient(t, store)
	ctx := context.Background()

	repo := credentials.NewRepository(store)
	require.NoError(t, repo.SaveAuthentication(ctx, thirdPartyAuth()))
	_, err := client.CreateSigner(ctx, ports.ProvisionRequest{ChainID: 137})
	require.NoError(t, err)

	signature, err := client.SignMessage(ctx, "0xdeadbeef")
	require.NoError(t, err)
	assert.Equal(t, "0xsigned", signature)
}

func TestSignMessageWithoutWallet(t *testing.T) {
	client := newTestClient(t, storage.NewMemoryStore())

	_, err := client.SignMessage(context.Background(), "0xdeadbeef")

	assert.ErrorIs(t, err, core.ErrMissingSigner)
}

func TestExportPrivateKey(t *testing.T) {
	store := storage.NewMemoryStore()
	client := newTestClient(t, store)
	ctx := context.Background()

	repo := credentials.NewRepository(store)
	require.NoError(t, repo.SaveAuthentication(ctx, thirdPartyAuth()))

	key, err := client.ExportPrivateKey(ctx)
	require.NoError(t, err)
	assert.Equal(t, "0xkey", key)
}

func TestWatchStateReportsTransitions(t *testing.T) {
	store := storage.NewMemoryStore()
	client := newTestClient(t, store)
	ctx := context.Background()

	states := make(chan EmbeddedState, 8)
	client.WatchState(func(s EmbeddedState) { states <- s })

	waitFor := func(want EmbeddedState) {
		t.Helper()
		deadline := time.After(3 * time.Second)
		for {
			select {
			case s := <-states:
				if s == want {
					return
				}
			case <-deadline:
				t.Fatalf("state %v was never observed", want)
			}
		}
	}

	waitFor(StateUnauthenticated)

	repo := credentials.NewRepository(store)
	require.NoError(t, repo.SaveAuthentication(ctx, thirdPartyAuth()))
	waitFor(StateAuthenticated)

	_, err := client.CreateSigner(ctx, ports.ProvisionRequest{ChainID: 137})
	require.NoError(t, err)
	waitFor(StateReady)
}

func TestRefreshAccountPullsBackendRecord(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/accounts/acc_1", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(core.Account{
			ID:                 "acc_1",
			Address:            "0x1111111111111111111111111111111111111111",
			ChainID:            137,
			AccountType:        core.AccountTypeSmart,
			ImplementationType: "UPGRADEABLE_V6",
		})
	}))
	defer server.Close()

	store := storage.NewMemoryStore()
	client, err := New(server.URL, "pk_test", signerproxy.NewLoopback(testSignerHandler(t)),
		WithStore(store),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Shutdown(context.Background()) })

	ctx := context.Background()
	repo := credentials.NewRepository(store)
	require.NoError(t, repo.SaveAuthentication(ctx, thirdPartyAuth()))
	require.NoError(t, repo.SaveAccount(ctx, &core.Account{
		ID:          "acc_1",
		Address:     "0x1111111111111111111111111111111111111111",
		ChainID:     137,
		AccountType: core.AccountTypeSmart,
	}))

	account, err := client.RefreshAccount(ctx)
	require.NoError(t, err)
	assert.Equal(t, "UPGRADEABLE_V6", account.ImplementationType)

	stored, err := repo.Account(ctx)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "UPGRADEABLE_V6", stored.ImplementationType, "the refreshed record is persisted")
}

func TestRefreshAccountWithoutWallet(t *testing.T) {
	store := storage.NewMemoryStore()
	client := newTestClient(t, store)
	ctx := context.Background()

	repo := credentials.NewRepository(store)
	require.NoError(t, repo.SaveAuthentication(ctx, thirdPartyAuth()))

	_, err := client.RefreshAccount(ctx)
	assert.ErrorIs(t, err, core.ErrMissingSigner)
}

func TestWithChainEndpointRegistersCustomChain(t *testing.T) {
	client, err := New("http://127.0.0.1:0", "pk_test", signerproxy.NewLoopback(testSignerHandler(t)),
		WithStore(storage.NewMemoryStore()),
		WithChainEndpoint(31337, "http://127.0.0.1:8545"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Shutdown(context.Background()) })

	reader, err := client.chains.Reader(31337)
	require.NoError(t, err)
	assert.Equal(t, uint64(31337), reader.ChainID())

	_, err = client.chains.Reader(999999)
	assert.Error(t, err)
}

func TestShutdownStopsSigner(t *testing.T) {
	store := storage.NewMemoryStore()
	client := newTestClient(t, store)
	ctx := context.Background()

	repo := credentials.NewRepository(store)
	require.NoError(t, repo.SaveAuthentication(ctx, thirdPartyAuth()))
	_, err := client.CreateSigner(ctx, ports.ProvisionRequest{ChainID: 137})
	require.NoError(t, err)

	require.NoError(t, client.Shutdown(ctx))

	_, err = client.SignMessage(ctx, "0xdeadbeef")
	assert.Error(t, err)
}
