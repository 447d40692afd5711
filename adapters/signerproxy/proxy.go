// Package signerproxy implements the signer port against an isolated signer
// process reached over a message transport. Key material never crosses the
// transport; only operation requests and their results do.
package signerproxy

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vaultline/vaultline/core"
	"github.com/vaultline/vaultline/ports"
)

// Envelope is one message on the signer transport. Requests and responses
// share the shape and are correlated by ID.
type Envelope struct {
	ID      string          `json:"id"`
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Transport moves envelopes between the runtime and the signer process.
type Transport interface {
	Send(ctx context.Context, env Envelope) error
	Receive() <-chan Envelope
	Close() error
}

// Signer actions understood by the remote process.
const (
	actionSign        = "sign"
	actionConfigure   = "configure"
	actionCreate      = "create"
	actionRecover     = "recover"
	actionExport      = "export"
	actionSwitchChain = "switch_chain"
	actionSetRecovery = "set_recovery"
	actionDisconnect  = "disconnect"
)

const defaultCallTimeout = 60 * time.Second

// Proxy is the runtime-side endpoint of the signer transport. It correlates
// responses to in-flight requests and enforces a per-call timeout.
type Proxy struct {
	transport Transport
	timeout   time.Duration
	logger    *slog.Logger

	mu      sync.Mutex
	pending map[string]chan Envelope
	closed  bool
	done    chan struct{}
}

// Option configures the Proxy.
type Option func(*Proxy)

// WithTimeout sets the per-call response deadline.
func WithTimeout(d time.Duration) Option {
	return func(p *Proxy) { p.timeout = d }
}

// WithLogger sets a structured logger for the proxy.
func WithLogger(l *slog.Logger) Option {
	return func(p *Proxy) { p.logger = l }
}

// NewProxy starts a proxy over the given transport.
func NewProxy(transport Transport, opts ...Option) *Proxy {
	p := &Proxy{
		transport: transport,
		timeout:   defaultCallTimeout,
		logger:    slog.Default(),
		pending:   make(map[string]chan Envelope),
		done:      make(chan struct{}),
	}
	for _, o := range opts {
		o(p)
	}

	go p.dispatch()

	return p
}

var _ ports.Signer = (*Proxy)(nil)

// dispatch routes incoming envelopes to their waiting callers. Responses with
// no waiter are dropped; the caller timed out already.
func (p *Proxy) dispatch() {
	for {
		select {
		case <-p.done:
			return
		case env, ok := <-p.transport.Receive():
			if !ok {
				return
			}

			p.mu.Lock()
			ch, exists := p.pending[env.ID]
			if exists {
				delete(p.pending, env.ID)
			}
			p.mu.Unlock()

			if exists {
				ch <- env
			} else {
				p.logger.Debug("dropping uncorrelated signer response", "id", env.ID)
			}
		}
	}
}

// call performs one request/response round trip over the transport.
func (p *Proxy) call(ctx context.Context, action string, payload, out any) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return core.ErrMissingSigner.WithMessage("signer transport is closed")
	}

	id := uuid.NewString()
	ch := make(chan Envelope, 1)
	p.pending[id] = ch
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		delete(p.pending, id)
		p.mu.Unlock()
	}()

	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal signer request: %w", err)
		}
		raw = data
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if err := p.transport.Send(ctx, Envelope{ID: id, Action: action, Payload: raw}); err != nil {
		return fmt.Errorf("failed to send signer request: %w", err)
	}

	select {
	case <-ctx.Done():
		return core.ErrMissingSigner.WithMessage("signer did not respond: " + ctx.Err().Error())
	case resp := <-ch:
		if resp.Error != "" {
			return classifySignerError(resp.Error)
		}
		if out != nil && len(resp.Payload) > 0 {
			if err := json.Unmarshal(resp.Payload, out); err != nil {
				return fmt.Errorf("failed to decode signer response: %w", err)
			}
		}
		return nil
	}
}

// classifySignerError maps transport-level error strings onto the runtime
// taxonomy. Recovery failures keep their identity so callers can prompt again.
func classifySignerError(msg string) error {
	switch msg {
	case "missing_recovery":
		return core.ErrMissingRecovery
	case "incorrect_recovery":
		return core.ErrIncorrectRecovery
	default:
		return core.ErrMissingSigner.WithMessage(msg)
	}
}

// Sign asks the signer to sign the payload.
func (p *Proxy) Sign(ctx context.Context, req ports.SignRequest) (string, error) {
	var resp struct {
		Signature string `json:"signature"`
	}
	if err := p.call(ctx, actionSign, req, &resp); err != nil {
		return "", err
	}
	return resp.Signature, nil
}

// Configure restores an existing wallet on this device.
func (p *Proxy) Configure(ctx context.Context, req ports.ProvisionRequest) (*core.Account, error) {
	var account core.Account
	if err := p.call(ctx, actionConfigure, req, &account); err != nil {
		return nil, err
	}
	return &account, nil
}

// Create provisions a brand new wallet.
func (p *Proxy) Create(ctx context.Context, req ports.ProvisionRequest) (*core.Account, error) {
	var account core.Account
	if err := p.call(ctx, actionCreate, req, &account); err != nil {
		return nil, err
	}
	return &account, nil
}

// Recover restores a wallet from its recovery secret.
func (p *Proxy) Recover(ctx context.Context, req ports.ProvisionRequest) (*core.Account, error) {
	var account core.Account
	if err := p.call(ctx, actionRecover, req, &account); err != nil {
		return nil, err
	}
	return &account, nil
}

// Export returns the wallet's private key for user-initiated export.
func (p *Proxy) Export(ctx context.Context) (string, error) {
	var resp struct {
		PrivateKey string `json:"privateKey"`
	}
	if err := p.call(ctx, actionExport, nil, &resp); err != nil {
		return "", err
	}
	return resp.PrivateKey, nil
}

// SwitchChain re-provisions the signer for a different chain.
func (p *Proxy) SwitchChain(ctx context.Context, chainID uint64) (*core.Account, error) {
	req := map[string]uint64{"chainId": chainID}

	var account core.Account
	if err := p.call(ctx, actionSwitchChain, req, &account); err != nil {
		return nil, err
	}
	return &account, nil
}

// SetRecoveryMethod changes how the wallet can be recovered.
func (p *Proxy) SetRecoveryMethod(ctx context.Context, req ports.RecoveryRequest) error {
	return p.call(ctx, actionSetRecovery, req, nil)
}

// Disconnect tears down the signer state on the remote side.
func (p *Proxy) Disconnect(ctx context.Context) error {
	return p.call(ctx, actionDisconnect, nil, nil)
}

// Close stops the proxy and the underlying transport. In-flight calls fail
// with their timeout.
func (p *Proxy) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	close(p.done)
	return p.transport.Close()
}
