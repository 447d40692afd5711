// Package chain provides read-only JSON-RPC access to the chains the wallet
// operates on. Connections are cached per chain id and dialed lazily.
package chain

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/vaultline/vaultline/ports"
)

// defaultEndpoints covers the chains the wallet supports out of the box.
// Register overrides or extends this set.
var defaultEndpoints = map[uint64]string{
	1:         "https://eth.llamarpc.com",
	10:        "https://mainnet.optimism.io",
	137:       "https://polygon-rpc.com",
	8453:      "https://mainnet.base.org",
	42161:     "https://arb1.arbitrum.io/rpc",
	11155111:  "https://rpc.sepolia.org",
	84532:     "https://sepolia.base.org",
	300:       "https://sepolia.era.zksync.dev",
	324:       "https://mainnet.era.zksync.io",
	2741:      "https://api.mainnet.abs.xyz",
	11124:     "https://api.testnet.abs.xyz",
	50104:     "https://rpc.sophon.xyz",
	531050104: "https://rpc.testnet.sophon.xyz",
}

// Pool hands out cached read-only connections keyed by chain id.
type Pool struct {
	mu        sync.Mutex
	endpoints map[uint64]string
	readers   map[uint64]*reader
	logger    *slog.Logger
}

// Option configures the Pool.
type Option func(*Pool)

// WithLogger sets a structured logger for the pool.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pool) { p.logger = l }
}

// WithEndpoint overrides or adds the RPC endpoint for a chain.
func WithEndpoint(chainID uint64, endpoint string) Option {
	return func(p *Pool) { p.endpoints[chainID] = endpoint }
}

// NewPool creates a connection pool seeded with the default endpoint table.
func NewPool(opts ...Option) *Pool {
	endpoints := make(map[uint64]string, len(defaultEndpoints))
	for id, ep := range defaultEndpoints {
		endpoints[id] = ep
	}

	p := &Pool{
		endpoints: endpoints,
		readers:   make(map[uint64]*reader),
		logger:    slog.Default(),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

var _ ports.ChainReaders = (*Pool)(nil)

// Reader returns the cached connection for chainID, dialing it first if
// needed.
func (p *Pool) Reader(chainID uint64) (ports.ChainReader, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if r, ok := p.readers[chainID]; ok {
		return r, nil
	}

	endpoint, ok := p.endpoints[chainID]
	if !ok {
		return nil, fmt.Errorf("chain: no endpoint registered for chain %d", chainID)
	}

	client, err := rpc.Dial(endpoint)
	if err != nil {
		return nil, fmt.Errorf("chain: failed to dial chain %d: %w", chainID, err)
	}

	p.logger.Debug("dialed chain endpoint", "chain_id", chainID)

	r := &reader{chainID: chainID, client: client}
	p.readers[chainID] = r
	return r, nil
}

// Register sets the endpoint for a chain. An existing connection for that
// chain is dropped so the next Reader call dials the new endpoint.
func (p *Pool) Register(chainID uint64, endpoint string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.endpoints[chainID] = endpoint
	if r, ok := p.readers[chainID]; ok {
		r.client.Close()
		delete(p.readers, chainID)
	}
}

// Release drops the cached connection for a chain.
func (p *Pool) Release(chainID uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if r, ok := p.readers[chainID]; ok {
		r.client.Close()
		delete(p.readers, chainID)
	}
}

// Close drops every cached connection.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for id, r := range p.readers {
		r.client.Close()
		delete(p.readers, id)
	}
}

// reader is one chain's read-only connection.
type reader struct {
	chainID uint64
	client  *rpc.Client
}

var _ ports.ChainReader = (*reader)(nil)

func (r *reader) ChainID() uint64 { return r.chainID }

func (r *reader) CodeAt(ctx context.Context, address string) ([]byte, error) {
	var code hexutil.Bytes
	err := r.client.CallContext(ctx, &code, "eth_getCode", common.HexToAddress(address), "latest")
	if err != nil {
		return nil, fmt.Errorf("chain: eth_getCode failed: %w", err)
	}
	return code, nil
}

func (r *reader) PendingNonceAt(ctx context.Context, address string) (uint64, error) {
	var nonce hexutil.Uint64
	err := r.client.CallContext(ctx, &nonce, "eth_getTransactionCount", common.HexToAddress(address), "pending")
	if err != nil {
		return 0, fmt.Errorf("chain: eth_getTransactionCount failed: %w", err)
	}
	return uint64(nonce), nil
}

func (r *reader) Call(ctx context.Context, result any, method string, params ...any) error {
	if err := r.client.CallContext(ctx, result, method, params...); err != nil {
		return fmt.Errorf("chain: %s failed: %w", method, err)
	}
	return nil
}
