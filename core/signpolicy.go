package core

// rawSignChainIDs lists the chains whose verifiers expect a signature over
// the raw hash, without the EIP-191 personal-message envelope.
var rawSignChainIDs = map[uint64]struct{}{
	300:       {}, // zksync sepolia
	324:       {}, // zksync era
	2741:      {}, // abstract
	11124:     {}, // abstract testnet
	50104:     {}, // sophon
	531050104: {}, // sophon testnet
}

// SignaturePolicy decides how payload hashes are presented to the signer per
// chain and account implementation. The zero value carries the built-in
// defaults.
type SignaturePolicy struct {
	// RawSignChainIDs extends the built-in raw-hash chain set.
	RawSignChainIDs []uint64

	// RawSignImplementationTypes lists account implementations that verify
	// raw hashes regardless of chain.
	RawSignImplementationTypes []string
}

// UseRawSignature reports whether signatures for the given chain and account
// implementation must skip the personal-message envelope.
func (p SignaturePolicy) UseRawSignature(chainID uint64, implementationType string) bool {
	if _, ok := rawSignChainIDs[chainID]; ok {
		return true
	}
	for _, id := range p.RawSignChainIDs {
		if id == chainID {
			return true
		}
	}
	for _, t := range p.RawSignImplementationTypes {
		if t != "" && t == implementationType {
			return true
		}
	}
	return false
}
