// Package credentials persists the runtime's authentication, account and
// signer records on top of a flat key-value store. Records are stored as
// whole JSON documents and replaced atomically on every write.
package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vaultline/vaultline/core"
	"github.com/vaultline/vaultline/ports"
)

const (
	keyAuthentication = "vaultline.authentication"
	keyAccount        = "vaultline.account"
	keySigner         = "vaultline.signer"
	keyPKCEState      = "vaultline.pkce_state"
	keyPKCEVerifier   = "vaultline.pkce_verifier"
)

// Repository reads and writes credential records. A missing or malformed
// record reads as nil rather than an error, so stale state from an older
// build never wedges the runtime.
type Repository struct {
	store ports.Store
}

// NewRepository creates a repository over the given store.
func NewRepository(store ports.Store) *Repository {
	return &Repository{store: store}
}

func getRecord[T any](ctx context.Context, s ports.Store, key string) (*T, error) {
	raw, err := s.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}

	var rec T
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		// Unreadable records are treated as absent.
		return nil, nil
	}

	return &rec, nil
}

func setRecord(ctx context.Context, s ports.Store, key string, rec any) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}

	if err := s.Set(ctx, key, string(payload)); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}

	return nil
}

// Authentication returns the stored authentication record, or nil when
// nobody is logged in.
func (r *Repository) Authentication(ctx context.Context) (*core.Authentication, error) {
	return getRecord[core.Authentication](ctx, r.store, keyAuthentication)
}

// SaveAuthentication replaces the stored authentication record.
func (r *Repository) SaveAuthentication(ctx context.Context, auth *core.Authentication) error {
	return setRecord(ctx, r.store, keyAuthentication, auth)
}

// Account returns the active account record, or nil when none is selected.
func (r *Repository) Account(ctx context.Context) (*core.Account, error) {
	return getRecord[core.Account](ctx, r.store, keyAccount)
}

// SaveAccount replaces the active account record.
func (r *Repository) SaveAccount(ctx context.Context, account *core.Account) error {
	return setRecord(ctx, r.store, keyAccount, account)
}

// SignerConfig returns the persisted signer configuration, or nil when the
// signer has never been configured on this device.
func (r *Repository) SignerConfig(ctx context.Context) (*core.SignerConfig, error) {
	return getRecord[core.SignerConfig](ctx, r.store, keySigner)
}

// SaveSignerConfig replaces the persisted signer configuration.
func (r *Repository) SaveSignerConfig(ctx context.Context, cfg *core.SignerConfig) error {
	return setRecord(ctx, r.store, keySigner, cfg)
}

// SaveChallenge persists an in-flight PKCE exchange. It must be stored
// before the request that uses it leaves the process.
func (r *Repository) SaveChallenge(ctx context.Context, ch *core.ChallengeState) error {
	if err := r.store.Set(ctx, keyPKCEState, ch.State); err != nil {
		return fmt.Errorf("failed to write %s: %w", keyPKCEState, err)
	}
	if err := r.store.Set(ctx, keyPKCEVerifier, ch.Verifier); err != nil {
		return fmt.Errorf("failed to write %s: %w", keyPKCEVerifier, err)
	}
	return nil
}

// Challenge returns the stored PKCE exchange, or nil when none is pending.
func (r *Repository) Challenge(ctx context.Context) (*core.ChallengeState, error) {
	state, err := r.store.Get(ctx, keyPKCEState)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", keyPKCEState, err)
	}

	verifier, err := r.store.Get(ctx, keyPKCEVerifier)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", keyPKCEVerifier, err)
	}

	return &core.ChallengeState{State: state, Verifier: verifier}, nil
}

// ClearChallenge removes any pending PKCE exchange. Challenges are single
// use; callers clear them right after a successful confirmation.
func (r *Repository) ClearChallenge(ctx context.Context) error {
	if err := r.store.Delete(ctx, keyPKCEState); err != nil && !errors.Is(err, ports.ErrNotFound) {
		return fmt.Errorf("failed to delete %s: %w", keyPKCEState, err)
	}
	if err := r.store.Delete(ctx, keyPKCEVerifier); err != nil && !errors.Is(err, ports.ErrNotFound) {
		return fmt.Errorf("failed to delete %s: %w", keyPKCEVerifier, err)
	}
	return nil
}

// Clear wipes every credential record. Used on logout and when a different
// user signs in.
func (r *Repository) Clear(ctx context.Context) error {
	keys := []string{keyAuthentication, keyAccount, keySigner, keyPKCEState, keyPKCEVerifier}
	for _, key := range keys {
		if err := r.store.Delete(ctx, key); err != nil && !errors.Is(err, ports.ErrNotFound) {
			return fmt.Errorf("failed to delete %s: %w", key, err)
		}
	}
	return nil
}
