package credentials

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaultline/vaultline/adapters/storage"
	"github.com/vaultline/vaultline/core"
)

func TestAuthenticationRoundTrip(t *testing.T) {
	repo := NewRepository(storage.NewMemoryStore())
	ctx := context.Background()

	auth, err := repo.Authentication(ctx)
	require.NoError(t, err)
	assert.Nil(t, auth, "empty store reads as logged out")

	require.NoError(t, repo.SaveAuthentication(ctx, &core.Authentication{
		Kind:        core.AuthKindSession,
		AccessToken: "at",
		UserID:      "pl_1",
	}))

	auth, err = repo.Authentication(ctx)
	require.NoError(t, err)
	require.NotNil(t, auth)
	assert.Equal(t, "pl_1", auth.UserID)
	assert.Equal(t, "at", auth.AccessToken)
}

func TestMalformedRecordReadsAsAbsent(t *testing.T) {
	store := storage.NewMemoryStore()
	repo := NewRepository(store)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "vaultline.account", "{not json"))

	account, err := repo.Account(ctx)
	require.NoError(t, err)
	assert.Nil(t, account)
}

func TestChallengeLifecycle(t *testing.T) {
	repo := NewRepository(storage.NewMemoryStore())
	ctx := context.Background()

	ch, err := repo.Challenge(ctx)
	require.NoError(t, err)
	assert.Nil(t, ch)

	require.NoError(t, repo.SaveChallenge(ctx, &core.ChallengeState{
		State:    "state-token",
		Verifier: "verifier-token",
	}))

	ch, err = repo.Challenge(ctx)
	require.NoError(t, err)
	require.NotNil(t, ch)
	assert.Equal(t, "state-token", ch.State)
	assert.Equal(t, "verifier-token", ch.Verifier)

	require.NoError(t, repo.ClearChallenge(ctx))

	ch, err = repo.Challenge(ctx)
	require.NoError(t, err)
	assert.Nil(t, ch)

	// Clearing twice is fine; challenges are single use.
	require.NoError(t, repo.ClearChallenge(ctx))
}

func TestClearWipesEveryRecord(t *testing.T) {
	repo := NewRepository(storage.NewMemoryStore())
	ctx := context.Background()

	require.NoError(t, repo.SaveAuthentication(ctx, &core.Authentication{AccessToken: "at"}))
	require.NoError(t, repo.SaveAccount(ctx, &core.Account{ID: "acc_1", Address: "0xabc"}))
	require.NoError(t, repo.SaveSignerConfig(ctx, &core.SignerConfig{ChainID: 137}))
	require.NoError(t, repo.SaveChallenge(ctx, &core.ChallengeState{State: "s", Verifier: "v"}))

	require.NoError(t, repo.Clear(ctx))

	auth, err := repo.Authentication(ctx)
	require.NoError(t, err)
	assert.Nil(t, auth)

	account, err := repo.Account(ctx)
	require.NoError(t, err)
	assert.Nil(t, account)

	cfg, err := repo.SignerConfig(ctx)
	require.NoError(t, err)
	assert.Nil(t, cfg)

	ch, err := repo.Challenge(ctx)
	require.NoError(t, err)
	assert.Nil(t, ch)
}

func TestSaveReplacesWholeRecord(t *testing.T) {
	repo := NewRepository(storage.NewMemoryStore())
	ctx := context.Background()

	require.NoError(t, repo.SaveAccount(ctx, &core.Account{
		ID:      "acc_1",
		Address: "0xabc",
		ChainID: 137,
		Salt:    "0x01",
	}))
	require.NoError(t, repo.SaveAccount(ctx, &core.Account{
		ID:      "acc_2",
		Address: "0xdef",
		ChainID: 8453,
	}))

	account, err := repo.Account(ctx)
	require.NoError(t, err)
	require.NotNil(t, account)
	assert.Equal(t, "acc_2", account.ID)
	assert.Empty(t, account.Salt, "stale fields do not survive a replace")
}
