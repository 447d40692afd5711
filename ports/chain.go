package ports

import "context"

// ChainReader is a read-only connection to one chain's RPC endpoint. It never
// signs or mutates state.
type ChainReader interface {
	ChainID() uint64

	// CodeAt returns the contract code deployed at address.
	CodeAt(ctx context.Context, address string) ([]byte, error)

	// PendingNonceAt returns the next transaction nonce for address.
	PendingNonceAt(ctx context.Context, address string) (uint64, error)

	// Call forwards an arbitrary read method verbatim and decodes the result
	// into result.
	Call(ctx context.Context, result any, method string, params ...any) error
}

// ChainReaders hands out cached ChainReader connections keyed by chain id.
// Connections are constructed lazily; switching chains releases the old
// connection and constructs a fresh one rather than mutating it in place.
type ChainReaders interface {
	Reader(chainID uint64) (ChainReader, error)
	Register(chainID uint64, endpoint string)
	Release(chainID uint64)
	Close()
}
