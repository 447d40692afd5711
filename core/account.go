package core

// AccountType classifies how the on-chain account executes.
type AccountType string

const (
	// AccountTypeEOA is a plain externally owned account.
	AccountTypeEOA AccountType = "eoa"

	// AccountTypeSmart is a contract account driven through the bundler.
	AccountTypeSmart AccountType = "smart"

	// AccountTypeDelegated is an EOA that adopts contract code through an
	// EIP-7702 authorization.
	AccountTypeDelegated AccountType = "delegated"
)

// Account represents the on-chain address controlled through the embedded
// wallet. Address is immutable for the lifetime of the record; the record is
// replaced wholesale on account switch and cleared on logout.
type Account struct {
	ID                    string      `json:"id"`
	Address               string      `json:"address"`
	ChainID               uint64      `json:"chainId"`
	OwnerAddress          string      `json:"ownerAddress,omitempty"`
	AccountType           AccountType `json:"accountType"`
	ImplementationType    string      `json:"implementationType,omitempty"`
	ImplementationAddress string      `json:"implementationAddress,omitempty"`
	FactoryAddress        string      `json:"factoryAddress,omitempty"`
	Salt                  string      `json:"salt,omitempty"`
}

// SignerConfig is the persisted descriptor of how the remote signer was
// configured, so the runtime can restore it across restarts.
type SignerConfig struct {
	ChainID        uint64 `json:"chainId"`
	RecoveryMethod string `json:"recoveryMethod,omitempty"`
	DeviceID       string `json:"deviceId,omitempty"`
}
