// Package delegation implements EIP-7702 account delegation: detecting
// whether an EOA already carries delegated code and producing signed
// authorization tuples when it does not.
package delegation

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/vaultline/vaultline/ports"
)

// delegationPrefix marks EIP-7702 delegation designators in account code.
var delegationPrefix = []byte{0xef, 0x01, 0x00}

// authorizationMagic prefixes the RLP payload of an authorization hash.
const authorizationMagic = 0x05

// IsDelegatedCode reports whether account code is an EIP-7702 delegation
// designator.
func IsDelegatedCode(code []byte) bool {
	return len(code) == len(delegationPrefix)+common.AddressLength &&
		bytes.HasPrefix(code, delegationPrefix)
}

// DelegatedTo extracts the designated implementation address, or the zero
// address when the code is not a delegation designator.
func DelegatedTo(code []byte) common.Address {
	if !IsDelegatedCode(code) {
		return common.Address{}
	}
	return common.BytesToAddress(code[len(delegationPrefix):])
}

// SignedAuthorization is a signed EIP-7702 authorization tuple.
type SignedAuthorization struct {
	ChainID uint64
	Address common.Address
	Nonce   uint64
	R       [32]byte
	S       [32]byte
	YParity uint8
}

// Serialize renders the signature in the compact form the backend attaches
// to the delegating transaction: r, s and the parity bit, hex encoded.
func (a *SignedAuthorization) Serialize() string {
	var buf [65]byte
	copy(buf[0:32], a.R[:])
	copy(buf[32:64], a.S[:])
	buf[64] = a.YParity
	return "0x" + hex.EncodeToString(buf[:])
}

// AuthorizationHash computes the digest an EOA signs to delegate to address:
// keccak256(0x05 || rlp([chainID, address, nonce])).
func AuthorizationHash(chainID uint64, address common.Address, nonce uint64) (common.Hash, error) {
	payload, err := rlp.EncodeToBytes([]any{chainID, address, nonce})
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to encode authorization: %w", err)
	}
	return common.BytesToHash(crypto.Keccak256(append([]byte{authorizationMagic}, payload...))), nil
}

// Authorizer prepares delegation authorizations for the embedded wallet.
type Authorizer struct {
	chains ports.ChainReaders
	signer ports.Signer
	logger *slog.Logger
}

// Option configures the Authorizer.
type Option func(*Authorizer)

// WithLogger sets a structured logger for the authorizer.
func WithLogger(l *slog.Logger) Option {
	return func(a *Authorizer) { a.logger = l }
}

// NewAuthorizer creates an authorizer over the given chain pool and signer.
func NewAuthorizer(chains ports.ChainReaders, signer ports.Signer, opts ...Option) *Authorizer {
	a := &Authorizer{
		chains: chains,
		signer: signer,
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// IsDelegated reports whether the account already carries a delegation
// designator on the given chain.
func (a *Authorizer) IsDelegated(ctx context.Context, chainID uint64, account string) (bool, error) {
	reader, err := a.chains.Reader(chainID)
	if err != nil {
		return false, err
	}
	code, err := reader.CodeAt(ctx, account)
	if err != nil {
		return false, err
	}
	return IsDelegatedCode(code), nil
}

// PrepareAndSign produces a signed authorization delegating account to
// implementation. It returns nil when the account already delegates there.
// Code and nonce are fetched concurrently; the nonce is the pending one, so
// the authorization stays valid when bundled with the delegating transaction.
func (a *Authorizer) PrepareAndSign(ctx context.Context, chainID uint64, account, implementation string) (*SignedAuthorization, error) {
	reader, err := a.chains.Reader(chainID)
	if err != nil {
		return nil, err
	}

	type codeResult struct {
		code []byte
		err  error
	}
	type nonceResult struct {
		nonce uint64
		err   error
	}

	codeCh := make(chan codeResult, 1)
	nonceCh := make(chan nonceResult, 1)

	go func() {
		code, err := reader.CodeAt(ctx, account)
		codeCh <- codeResult{code, err}
	}()
	go func() {
		nonce, err := reader.PendingNonceAt(ctx, account)
		nonceCh <- nonceResult{nonce, err}
	}()

	codeRes := <-codeCh
	nonceRes := <-nonceCh
	if codeRes.err != nil {
		return nil, fmt.Errorf("failed to read account code: %w", codeRes.err)
	}
	if nonceRes.err != nil {
		return nil, fmt.Errorf("failed to read account nonce: %w", nonceRes.err)
	}

	target := common.HexToAddress(implementation)
	if DelegatedTo(codeRes.code) == target {
		a.logger.Debug("account already delegated", "account", account, "chain_id", chainID)
		return nil, nil
	}

	hash, err := AuthorizationHash(chainID, target, nonceRes.nonce)
	if err != nil {
		return nil, err
	}

	// 7702 authorization digests are signed as-is, without the EIP-191
	// envelope.
	signature, err := a.signer.Sign(ctx, ports.SignRequest{
		Payload:  hash.Hex(),
		Arrayify: false,
		Hash:     false,
	})
	if err != nil {
		return nil, err
	}

	auth := &SignedAuthorization{
		ChainID: chainID,
		Address: target,
		Nonce:   nonceRes.nonce,
	}
	if err := auth.applySignature(signature); err != nil {
		return nil, err
	}

	return auth, nil
}

// applySignature splits a 65 byte r||s||v signature into the tuple fields,
// normalizing legacy v values to a parity bit.
func (a *SignedAuthorization) applySignature(signature string) error {
	raw, err := hex.DecodeString(strings.TrimPrefix(signature, "0x"))
	if err != nil {
		return fmt.Errorf("failed to decode signature: %w", err)
	}
	if len(raw) != 65 {
		return fmt.Errorf("unexpected signature length %d", len(raw))
	}

	copy(a.R[:], raw[0:32])
	copy(a.S[:], raw[32:64])

	v := raw[64]
	if v >= 27 {
		v -= 27
	}
	if v > 1 {
		return fmt.Errorf("unexpected recovery id %d", raw[64])
	}
	a.YParity = v

	return nil
}
