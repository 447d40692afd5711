// Package provider implements the wallet provider protocol: a single request
// entry point routing JSON-RPC-shaped methods over the embedded wallet. Each
// method declares its preconditions in the dispatch table, so no handler runs
// without the account, session and signer state it needs.
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/vaultline/vaultline/core"
	"github.com/vaultline/vaultline/credentials"
	"github.com/vaultline/vaultline/delegation"
	"github.com/vaultline/vaultline/ports"
)

// TokenSource supplies a currently valid authentication.
type TokenSource interface {
	ValidateAndRefresh(ctx context.Context, force bool) (*core.Authentication, error)
}

// Grants is the session permission surface the provider delegates to.
type Grants interface {
	Grant(ctx context.Context, params core.GrantParams) (*core.GrantResult, error)
	Revoke(ctx context.Context, permissionsContext string) error
}

// Request is one provider call.
type Request struct {
	Method string `json:"method"`
	Params []any  `json:"params,omitempty"`
}

// callContext carries the state resolved by the preconditions for a handler.
type callContext struct {
	auth    *core.Authentication
	account *core.Account
}

type handlerFunc func(ctx context.Context, call *callContext, params []any) (any, error)

// entry pairs a handler with its preconditions. needsAuth implies a session
// refresh before the handler runs, so stale tokens never reach the backend.
type entry struct {
	needsAuth    bool
	needsAccount bool
	handler      handlerFunc
}

// Provider is the wallet provider dispatcher.
type Provider struct {
	repo       *credentials.Repository
	tokens     TokenSource
	signer     ports.Signer
	chains     ports.ChainReaders
	intents    ports.IntentsAPI
	assets     ports.AssetsAPI
	grants     Grants
	authorizer *delegation.Authorizer
	events     ports.EventPublisher
	subscriber message.Subscriber
	policy     core.SignaturePolicy
	policyID   string
	logger     *slog.Logger

	table     map[string]entry
	listeners *listenerSet
}

// Option configures the Provider.
type Option func(*Provider)

// WithLogger sets a structured logger for the provider.
func WithLogger(l *slog.Logger) Option {
	return func(p *Provider) { p.logger = l }
}

// WithSignaturePolicy overrides how payload hashes are presented to the
// signer.
func WithSignaturePolicy(policy core.SignaturePolicy) Option {
	return func(p *Provider) { p.policy = policy }
}

// WithSponsorPolicy attaches a backend gas sponsorship policy to every
// transaction intent.
func WithSponsorPolicy(policyID string) Option {
	return func(p *Provider) { p.policyID = policyID }
}

// Deps bundles the collaborators the provider composes.
type Deps struct {
	Repo       *credentials.Repository
	Tokens     TokenSource
	Signer     ports.Signer
	Chains     ports.ChainReaders
	Intents    ports.IntentsAPI
	Assets     ports.AssetsAPI
	Grants     Grants
	Authorizer *delegation.Authorizer
	Events     ports.EventPublisher
	Subscriber message.Subscriber
}

// New creates a provider over the given collaborators.
func New(deps Deps, opts ...Option) *Provider {
	p := &Provider{
		repo:       deps.Repo,
		tokens:     deps.Tokens,
		signer:     deps.Signer,
		chains:     deps.Chains,
		intents:    deps.Intents,
		assets:     deps.Assets,
		grants:     deps.Grants,
		authorizer: deps.Authorizer,
		events:     deps.Events,
		subscriber: deps.Subscriber,
		logger:     slog.Default(),
		listeners:  newListenerSet(),
	}
	for _, o := range opts {
		o(p)
	}

	p.table = map[string]entry{
		"eth_accounts":        {handler: p.ethAccounts},
		"eth_requestAccounts": {needsAuth: true, handler: p.ethRequestAccounts},
		"eth_chainId":         {needsAccount: true, handler: p.ethChainID},

		"eth_sendTransaction": {needsAuth: true, needsAccount: true, handler: p.ethSendTransaction},
		"eth_estimateGas":     {needsAuth: true, needsAccount: true, handler: p.ethEstimateGas},
		"wallet_sendCalls":    {needsAuth: true, needsAccount: true, handler: p.walletSendCalls},

		"wallet_getCallsStatus":  {needsAuth: true, needsAccount: true, handler: p.walletGetCallsStatus},
		"wallet_showCallsStatus": {handler: p.walletShowCallsStatus},

		"personal_sign":        {needsAuth: true, needsAccount: true, handler: p.personalSign},
		"eth_signTypedData":    {needsAuth: true, needsAccount: true, handler: p.signTypedData},
		"eth_signTypedData_v4": {needsAuth: true, needsAccount: true, handler: p.signTypedData},

		"wallet_switchEthereumChain": {needsAuth: true, needsAccount: true, handler: p.switchChain},
		"wallet_addEthereumChain":    {handler: p.addChain},
		"wallet_getCapabilities":     {needsAccount: true, handler: p.getCapabilities},
		"wallet_getAssets":           {needsAuth: true, needsAccount: true, handler: p.getAssets},

		"wallet_grantPermissions":  {needsAuth: true, needsAccount: true, handler: p.grantPermissions},
		"wallet_revokePermissions": {needsAuth: true, needsAccount: true, handler: p.revokePermissions},
	}

	for _, method := range passthroughMethods {
		p.table[method] = entry{needsAccount: true, handler: p.passthrough(method)}
	}

	return p
}

// passthroughMethods are read-only queries forwarded verbatim to the chain.
var passthroughMethods = []string{
	"eth_blockNumber",
	"eth_call",
	"eth_feeHistory",
	"eth_gasPrice",
	"eth_getBalance",
	"eth_getBlockByHash",
	"eth_getBlockByNumber",
	"eth_getCode",
	"eth_getLogs",
	"eth_getStorageAt",
	"eth_getTransactionByHash",
	"eth_getTransactionCount",
	"eth_getTransactionReceipt",
	"eth_maxPriorityFeePerGas",
	"net_version",
}

// Request dispatches one provider call. Every failure leaves as *RPCError.
func (p *Provider) Request(ctx context.Context, req Request) (any, error) {
	ent, ok := p.table[req.Method]
	if !ok {
		return nil, rpcErrorf(CodeUnsupportedMethod, "method %q is not supported", req.Method)
	}

	call := &callContext{}

	if ent.needsAccount {
		account, err := p.repo.Account(ctx)
		if err != nil {
			return nil, asRPCError(err)
		}
		if account == nil {
			return nil, rpcErrorf(CodeUnauthorized, "no wallet configured, call eth_requestAccounts first")
		}
		call.account = account
	}

	if ent.needsAuth {
		auth, err := p.tokens.ValidateAndRefresh(ctx, false)
		if err != nil {
			return nil, asRPCError(err)
		}
		call.auth = auth
	}

	p.logger.Debug("provider dispatch", "method", req.Method)

	result, err := ent.handler(ctx, call, req.Params)
	if err != nil {
		return nil, asRPCError(err)
	}
	return result, nil
}

// decodeParam re-decodes the i-th positional parameter into a typed shape.
func decodeParam[T any](params []any, i int) (T, error) {
	var out T
	if i >= len(params) {
		return out, rpcErrorf(CodeInvalidParams, "missing parameter %d", i)
	}

	raw, err := json.Marshal(params[i])
	if err != nil {
		return out, rpcErrorf(CodeInvalidParams, "parameter %d is not encodable", i)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, rpcErrorf(CodeInvalidParams, "parameter %d: %v", i, err)
	}
	return out, nil
}

// reader returns the read-only connection for the call's account chain.
func (p *Provider) reader(call *callContext) (ports.ChainReader, error) {
	reader, err := p.chains.Reader(call.account.ChainID)
	if err != nil {
		return nil, fmt.Errorf("no connection for chain %d: %w", call.account.ChainID, err)
	}
	return reader, nil
}

// passthrough forwards a read method verbatim.
func (p *Provider) passthrough(method string) handlerFunc {
	return func(ctx context.Context, call *callContext, params []any) (any, error) {
		reader, err := p.reader(call)
		if err != nil {
			return nil, err
		}

		var result json.RawMessage
		if err := reader.Call(ctx, &result, method, params...); err != nil {
			return nil, err
		}
		return result, nil
	}
}
