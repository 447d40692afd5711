// Package vaultline is the embedded wallet client runtime: it composes the
// backend API client, the credential store, the remote signer proxy and the
// wallet provider into a single entry point an application embeds.
package vaultline

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/vaultline/vaultline/adapters/backend"
	"github.com/vaultline/vaultline/adapters/chain"
	"github.com/vaultline/vaultline/adapters/events"
	"github.com/vaultline/vaultline/adapters/signerproxy"
	"github.com/vaultline/vaultline/adapters/storage"
	"github.com/vaultline/vaultline/auth"
	"github.com/vaultline/vaultline/core"
	"github.com/vaultline/vaultline/credentials"
	"github.com/vaultline/vaultline/delegation"
	"github.com/vaultline/vaultline/ports"
	"github.com/vaultline/vaultline/provider"
	"github.com/vaultline/vaultline/session"
)

// Client is the embedded wallet runtime.
type Client struct {
	store    ports.Store
	pubsub   *gochannel.GoChannel
	backend  *backend.Client
	signer   *signerproxy.Proxy
	chains   *chain.Pool
	repo     *credentials.Repository
	auth     *auth.Manager
	sessions *session.Manager
	provider *provider.Provider
	watcher  *stateWatcher
	logger   *slog.Logger

	ecosystem      string
	policyID       string
	signPolicy     core.SignaturePolicy
	httpClient     *http.Client
	chainEndpoints map[uint64]string
}

// Option configures the Client.
type Option func(*Client)

// WithStore overrides the credential store. Defaults to an in-memory store;
// pass a redis-backed store for persistence across restarts.
func WithStore(store ports.Store) Option {
	return func(c *Client) { c.store = store }
}

// WithLogger sets a structured logger shared by every component.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithEcosystem scopes every backend call to an ecosystem game.
func WithEcosystem(ecosystem string) Option {
	return func(c *Client) { c.ecosystem = ecosystem }
}

// WithHTTPClient overrides the HTTP client used for backend calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithSponsorPolicy attaches a gas sponsorship policy to every transaction.
func WithSponsorPolicy(policyID string) Option {
	return func(c *Client) { c.policyID = policyID }
}

// WithSignaturePolicy extends the set of chains and account implementations
// that sign raw hashes.
func WithSignaturePolicy(p core.SignaturePolicy) Option {
	return func(c *Client) { c.signPolicy = p }
}

// WithChainEndpoint routes read calls for chainID through endpoint instead of
// the built-in public RPC. May be repeated for several chains.
func WithChainEndpoint(chainID uint64, endpoint string) Option {
	return func(c *Client) {
		if c.chainEndpoints == nil {
			c.chainEndpoints = make(map[uint64]string)
		}
		c.chainEndpoints[chainID] = endpoint
	}
}

// New creates a wallet runtime talking to the backend at baseURL and to the
// remote signer over transport.
func New(baseURL, projectKey string, transport signerproxy.Transport, opts ...Option) (*Client, error) {
	c := &Client{
		store:  storage.NewMemoryStore(),
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}

	backendOpts := []backend.Option{backend.WithLogger(c.logger)}
	if c.ecosystem != "" {
		backendOpts = append(backendOpts, backend.WithEcosystem(c.ecosystem))
	}
	if c.httpClient != nil {
		backendOpts = append(backendOpts, backend.WithHTTPClient(c.httpClient))
	}

	api, err := backend.NewClient(baseURL, projectKey, backendOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create backend client: %w", err)
	}
	c.backend = api

	c.pubsub = gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	publisher := events.NewWatermillPublisher(c.pubsub)

	c.signer = signerproxy.NewProxy(transport, signerproxy.WithLogger(c.logger))

	chainOpts := []chain.Option{chain.WithLogger(c.logger)}
	for chainID, endpoint := range c.chainEndpoints {
		chainOpts = append(chainOpts, chain.WithEndpoint(chainID, endpoint))
	}
	c.chains = chain.NewPool(chainOpts...)
	c.repo = credentials.NewRepository(c.store)

	authOpts := []auth.Option{auth.WithLogger(c.logger)}
	if c.ecosystem != "" {
		authOpts = append(authOpts, auth.WithEcosystem(c.ecosystem))
	}
	c.auth = auth.NewManager(c.repo, api.Auth(), publisher, c.signer, authOpts...)

	c.sessions = session.NewManager(api.Sessions(), c.signer, c.repo, c.auth,
		session.WithLogger(c.logger),
		session.WithSignaturePolicy(c.signPolicy),
	)

	providerOpts := []provider.Option{
		provider.WithLogger(c.logger),
		provider.WithSignaturePolicy(c.signPolicy),
	}
	if c.policyID != "" {
		providerOpts = append(providerOpts, provider.WithSponsorPolicy(c.policyID))
	}
	c.provider = provider.New(provider.Deps{
		Repo:       c.repo,
		Tokens:     c.auth,
		Signer:     c.signer,
		Chains:     c.chains,
		Intents:    api.Intents(),
		Assets:     api.Assets(),
		Grants:     c.sessions,
		Authorizer: delegation.NewAuthorizer(c.chains, c.signer, delegation.WithLogger(c.logger)),
		Events:     publisher,
		Subscriber: c.pubsub,
	}, providerOpts...)

	c.watcher = newStateWatcher(c.repo, c.logger)

	return c, nil
}

// Auth exposes the authentication surface.
func (c *Client) Auth() *auth.Manager { return c.auth }

// Sessions exposes the session grant surface.
func (c *Client) Sessions() *session.Manager { return c.sessions }

// Provider exposes the wallet provider surface.
func (c *Client) Provider() *provider.Provider { return c.provider }

// ConfigureSigner restores the remote signer from an existing wallet and
// persists the resulting account.
func (c *Client) ConfigureSigner(ctx context.Context, req ports.ProvisionRequest) (*core.Account, error) {
	return c.provision(ctx, req, c.signer.Configure)
}

// CreateSigner provisions a fresh wallet on the remote signer and persists
// the resulting account.
func (c *Client) CreateSigner(ctx context.Context, req ports.ProvisionRequest) (*core.Account, error) {
	return c.provision(ctx, req, c.signer.Create)
}

// RecoverSigner recovers the remote signer's wallet with the recovery secret
// and persists the resulting account.
func (c *Client) RecoverSigner(ctx context.Context, req ports.ProvisionRequest) (*core.Account, error) {
	return c.provision(ctx, req, c.signer.Recover)
}

func (c *Client) provision(ctx context.Context, req ports.ProvisionRequest, op func(context.Context, ports.ProvisionRequest) (*core.Account, error)) (*core.Account, error) {
	if _, err := c.auth.ValidateAndRefresh(ctx, false); err != nil {
		return nil, err
	}

	account, err := op(ctx, req)
	if err != nil {
		return nil, err
	}

	if err := c.repo.SaveAccount(ctx, account); err != nil {
		return nil, err
	}
	if err := c.repo.SaveSignerConfig(ctx, &core.SignerConfig{ChainID: account.ChainID}); err != nil {
		return nil, err
	}

	c.logger.Info("signer provisioned", "address", account.Address, "chain_id", account.ChainID)
	return account, nil
}

// RefreshAccount re-fetches the active account's backend record and persists
// it, picking up server-side changes such as a completed deployment or a new
// implementation address.
func (c *Client) RefreshAccount(ctx context.Context) (*core.Account, error) {
	auth, err := c.auth.ValidateAndRefresh(ctx, false)
	if err != nil {
		return nil, err
	}

	stored, err := c.repo.Account(ctx)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, core.ErrMissingSigner
	}

	account, err := c.backend.Accounts().Get(ctx, auth, stored.ID)
	if err != nil {
		return nil, err
	}
	if err := c.repo.SaveAccount(ctx, account); err != nil {
		return nil, err
	}
	return account, nil
}

// SignMessage signs a personal message with the active account, applying the
// account implementation's signature envelope.
func (c *Client) SignMessage(ctx context.Context, message string) (string, error) {
	account, err := c.repo.Account(ctx)
	if err != nil {
		return "", err
	}
	if account == nil {
		return "", core.ErrMissingSigner
	}

	result, err := c.provider.Request(ctx, provider.Request{
		Method: "personal_sign",
		Params: []any{message, account.Address},
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

// SignTypedData signs an EIP-712 document with the active account.
func (c *Client) SignTypedData(ctx context.Context, typedData any) (string, error) {
	account, err := c.repo.Account(ctx)
	if err != nil {
		return "", err
	}
	if account == nil {
		return "", core.ErrMissingSigner
	}

	result, err := c.provider.Request(ctx, provider.Request{
		Method: "eth_signTypedData_v4",
		Params: []any{account.Address, typedData},
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

// ExportPrivateKey asks the remote signer to reveal the wallet's private key.
func (c *Client) ExportPrivateKey(ctx context.Context) (string, error) {
	if _, err := c.auth.ValidateAndRefresh(ctx, false); err != nil {
		return "", err
	}
	return c.signer.Export(ctx)
}

// SetRecoveryMethod changes how the remote signer's wallet is recovered.
func (c *Client) SetRecoveryMethod(ctx context.Context, req ports.RecoveryRequest) error {
	if _, err := c.auth.ValidateAndRefresh(ctx, false); err != nil {
		return err
	}
	return c.signer.SetRecoveryMethod(ctx, req)
}

// Logout tears down the session: backend, signer and local credentials.
func (c *Client) Logout(ctx context.Context) error {
	return c.auth.Logout(ctx)
}

// State reports the runtime's current readiness.
func (c *Client) State(ctx context.Context) EmbeddedState {
	return c.watcher.current(ctx)
}

// WatchState invokes handler whenever the runtime's readiness changes. The
// watcher stops on Shutdown.
func (c *Client) WatchState(handler func(EmbeddedState)) {
	c.watcher.watch(handler)
}

// Shutdown releases every resource the runtime holds. The client is unusable
// afterwards.
func (c *Client) Shutdown(ctx context.Context) error {
	c.watcher.stop()
	c.provider.Close()
	c.chains.Close()

	if err := c.signer.Close(); err != nil {
		c.logger.Warn("signer close failed", "error", err)
	}
	if err := c.pubsub.Close(); err != nil {
		return fmt.Errorf("failed to close event bus: %w", err)
	}
	return nil
}
