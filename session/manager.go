// Package session manages delegated signing authority: granting scoped
// permissions to a secondary signer and revoking them again.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/vaultline/vaultline/core"
	"github.com/vaultline/vaultline/credentials"
	"github.com/vaultline/vaultline/ports"
)

// TokenSource supplies a currently valid authentication.
type TokenSource interface {
	ValidateAndRefresh(ctx context.Context, force bool) (*core.Authentication, error)
}

// Manager creates and revokes session grants for the active account.
type Manager struct {
	api    ports.SessionsAPI
	signer ports.Signer
	repo   *credentials.Repository
	tokens TokenSource
	policy core.SignaturePolicy
	logger *slog.Logger
}

// Option configures the Manager.
type Option func(*Manager)

// WithLogger sets a structured logger for the manager.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithSignaturePolicy overrides how grant hashes are presented to the signer.
func WithSignaturePolicy(p core.SignaturePolicy) Option {
	return func(m *Manager) { m.policy = p }
}

// NewManager creates a session grant manager.
func NewManager(api ports.SessionsAPI, signer ports.Signer, repo *credentials.Repository, tokens TokenSource, opts ...Option) *Manager {
	m := &Manager{
		api:    api,
		signer: signer,
		repo:   repo,
		tokens: tokens,
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// validatePermissions rejects permission shapes the account implementation
// cannot express before anything reaches the backend.
func validatePermissions(perms []core.Permission) error {
	if len(perms) == 0 {
		return core.ErrInvalidParams.WithMessage("at least one permission is required")
	}
	for _, p := range perms {
		switch p.Type {
		case core.PermissionContractCall, core.PermissionERC20Transfer,
			core.PermissionERC721Transfer, core.PermissionERC1155Transfer:
		case core.PermissionNativeTokenTransfer, core.PermissionRateLimit, core.PermissionGasLimit:
			return core.ErrUnsupportedGrant.WithMessage(fmt.Sprintf("permission %q is not supported", p.Type))
		default:
			return core.ErrUnsupportedGrant.WithMessage(fmt.Sprintf("unknown permission %q", p.Type))
		}
		if p.Data.Address == "" {
			return core.ErrInvalidParams.WithMessage(fmt.Sprintf("permission %q names no target contract", p.Type))
		}
		for _, policy := range p.Policies {
			switch policy.Type {
			case core.PolicyCallLimit:
			case core.PolicyTokenAllowance, core.PolicyGasLimit, core.PolicyRateLimit:
				return core.ErrUnsupportedGrant.WithMessage(fmt.Sprintf("policy %q is not supported", policy.Type))
			default:
				return core.ErrUnsupportedGrant.WithMessage(fmt.Sprintf("unknown policy %q", policy.Type))
			}
		}
	}
	return nil
}

// signerAddress resolves the secondary signer the grant is for. Multi-key
// signer references cannot be expressed by this account implementation.
func signerAddress(params core.GrantParams) (string, error) {
	if params.Signer != nil && params.Signer.Kind == core.GrantSignerKeys {
		return "", core.ErrUnsupportedGrant.WithMessage("multi-key signers are not supported")
	}
	if addrs := params.Signer.Addresses(); len(addrs) > 0 {
		return addrs[0], nil
	}
	if params.Account != "" {
		return params.Account, nil
	}
	return "", core.ErrInvalidParams.WithMessage("grant names no signer")
}

// whitelist collects the distinct target contracts across all permissions.
func whitelist(perms []core.Permission) []string {
	seen := make(map[string]struct{}, len(perms))
	var list []string
	for _, p := range perms {
		if _, dup := seen[p.Data.Address]; dup {
			continue
		}
		seen[p.Data.Address] = struct{}{}
		list = append(list, p.Data.Address)
	}
	return list
}

// callLimit extracts the tightest call-limit policy, or 0 for unlimited.
func callLimit(perms []core.Permission) int64 {
	var limit int64
	for _, p := range perms {
		for _, policy := range p.Policies {
			if policy.Type != core.PolicyCallLimit {
				continue
			}
			raw, ok := policy.Data["limit"]
			if !ok {
				continue
			}
			var value int64
			switch v := raw.(type) {
			case float64:
				value = int64(v)
			case int:
				value = int64(v)
			case int64:
				value = v
			default:
				continue
			}
			if limit == 0 || value < limit {
				limit = value
			}
		}
	}
	return limit
}

// Grant requests delegated signing authority and completes the backend's
// signature round trip when one is demanded. Unsupported permission shapes
// fail before any network call.
func (m *Manager) Grant(ctx context.Context, params core.GrantParams) (*core.GrantResult, error) {
	if err := validatePermissions(params.Permissions); err != nil {
		return nil, err
	}
	if params.ExpirySeconds <= 0 {
		return nil, core.ErrInvalidParams.WithMessage("grant expiry must be positive")
	}

	address, err := signerAddress(params)
	if err != nil {
		return nil, err
	}

	auth, err := m.tokens.ValidateAndRefresh(ctx, false)
	if err != nil {
		return nil, err
	}
	account, err := m.repo.Account(ctx)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, core.ErrMissingSigner.WithMessage("no active account")
	}

	now := time.Now().Unix()
	req := core.CreateGrantRequest{
		Address:    address,
		ChainID:    account.ChainID,
		ValidAfter: now,
		ValidUntil: now + params.ExpirySeconds,
		Optimistic: true,
		Whitelist:  whitelist(params.Permissions),
		Limit:      callLimit(params.Permissions),
		Account:    account.ID,
	}

	grant, err := m.api.Create(ctx, auth, req)
	if err != nil {
		return nil, err
	}

	if grant.NextAction != nil && grant.NextAction.Payload.SignableHash != "" {
		grant, err = m.completeSignature(ctx, auth, account, grant)
		if err != nil {
			return nil, err
		}
	}

	m.logger.Info("session grant registered",
		"grant_id", grant.ID,
		"signer", address,
		"valid_until", grant.ValidUntil,
	)

	// The permissions context doubles as the revocation handle: it names the
	// session signer the backend registered.
	permissionsContext := grant.SignerAddress
	if permissionsContext == "" {
		permissionsContext = address
	}

	return &core.GrantResult{
		Expiry:             grant.ValidUntil,
		GrantedPermissions: params.Permissions,
		PermissionsContext: permissionsContext,
	}, nil
}

// completeSignature signs the backend-computed grant hash and submits it
// verbatim.
func (m *Manager) completeSignature(ctx context.Context, auth *core.Authentication, account *core.Account, grant *core.SessionGrant) (*core.SessionGrant, error) {
	raw := m.policy.UseRawSignature(account.ChainID, account.ImplementationType)

	signature, err := m.signer.Sign(ctx, ports.SignRequest{
		Payload:  grant.NextAction.Payload.SignableHash,
		Arrayify: !raw,
		Hash:     !raw,
	})
	if err != nil {
		return nil, err
	}

	return m.api.SubmitSignature(ctx, auth, grant.ID, signature)
}

// Revoke withdraws a previously granted session. An empty permissions
// context means nothing was registered with the backend: only the local
// signer link is torn down and no network call is made.
func (m *Manager) Revoke(ctx context.Context, permissionsContext string) error {
	if permissionsContext == "" {
		return m.signer.Disconnect(ctx)
	}

	auth, err := m.tokens.ValidateAndRefresh(ctx, false)
	if err != nil {
		return err
	}
	account, err := m.repo.Account(ctx)
	if err != nil {
		return err
	}
	if account == nil {
		return core.ErrMissingSigner.WithMessage("no active account")
	}

	req := core.RevokeGrantRequest{
		Address: permissionsContext,
		ChainID: account.ChainID,
		Account: account.ID,
	}

	grant, err := m.api.Revoke(ctx, auth, req)
	if err != nil {
		return err
	}

	if grant.NextAction != nil && grant.NextAction.Payload.SignableHash != "" {
		if _, err := m.completeSignature(ctx, auth, account, grant); err != nil {
			return err
		}
	}

	m.logger.Info("session grant revoked", "grant_id", grant.ID)
	return nil
}
