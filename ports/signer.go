package ports

import (
	"context"

	"github.com/vaultline/vaultline/core"
)

// SignRequest describes one signing operation for the remote signer.
type SignRequest struct {
	// Payload is the hex-encoded message or hash to sign.
	Payload string

	// Arrayify asks the signer to interpret the payload as raw bytes.
	Arrayify bool

	// Hash asks the signer to apply the EIP-191 personal-message envelope
	// before signing. Cleared for chain families that verify raw hashes.
	Hash bool
}

// ProvisionRequest configures, creates or recovers the remote signer's wallet.
type ProvisionRequest struct {
	ChainID           uint64
	RecoveryPassword  string
	EncryptionSession string
}

// RecoveryRequest changes the signer's recovery method.
type RecoveryRequest struct {
	Method            string
	RecoveryPassword  string
	EncryptionSession string
}

// Signer is the capability boundary to the isolated remote signer process.
// The runtime never sees key material; it only requests operations over this
// narrow surface.
type Signer interface {
	Sign(ctx context.Context, req SignRequest) (string, error)
	Configure(ctx context.Context, req ProvisionRequest) (*core.Account, error)
	Create(ctx context.Context, req ProvisionRequest) (*core.Account, error)
	Recover(ctx context.Context, req ProvisionRequest) (*core.Account, error)
	Export(ctx context.Context) (string, error)
	SwitchChain(ctx context.Context, chainID uint64) (*core.Account, error)
	SetRecoveryMethod(ctx context.Context, req RecoveryRequest) error
	Disconnect(ctx context.Context) error
}
