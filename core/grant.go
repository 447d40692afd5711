package core

// PermissionType identifies a requested permission shape.
type PermissionType string

// Supported permission types for this account implementation.
const (
	PermissionContractCall    PermissionType = "contract-call"
	PermissionERC20Transfer   PermissionType = "erc20-token-transfer"
	PermissionERC721Transfer  PermissionType = "erc721-token-transfer"
	PermissionERC1155Transfer PermissionType = "erc1155-token-transfer"
)

// Permission types the account implementation cannot express. Requests using
// them fail client-side before any network call.
const (
	PermissionNativeTokenTransfer PermissionType = "native-token-transfer"
	PermissionRateLimit           PermissionType = "rate-limit"
	PermissionGasLimit            PermissionType = "gas-limit"
)

// PolicyType identifies a policy attached to a permission.
type PolicyType string

const (
	PolicyCallLimit      PolicyType = "call-limit"
	PolicyTokenAllowance PolicyType = "token-allowance"
	PolicyGasLimit       PolicyType = "gas-limit"
	PolicyRateLimit      PolicyType = "rate-limit"
)

// Policy constrains a permission.
type Policy struct {
	Type PolicyType `json:"type"`
	// Data is policy-specific; for call-limit it holds {"limit": n}.
	Data map[string]any `json:"data,omitempty"`
}

// Permission is one requested capability in a grant.
type Permission struct {
	Type     PermissionType `json:"type"`
	Required bool           `json:"required,omitempty"`
	// Data holds the permitted target contract for contract and token
	// transfer permissions.
	Data     PermissionTarget `json:"data"`
	Policies []Policy         `json:"policies,omitempty"`
}

// PermissionTarget names the contract a permission applies to.
type PermissionTarget struct {
	Address string `json:"address"`
}

// GrantSignerKind distinguishes the delegated signer reference shapes.
type GrantSignerKind string

const (
	GrantSignerKey     GrantSignerKind = "key"
	GrantSignerAccount GrantSignerKind = "account"
	GrantSignerKeys    GrantSignerKind = "keys"
)

// GrantSigner references the secondary signer receiving the authority.
type GrantSigner struct {
	Kind GrantSignerKind `json:"type"`
	// ID is the signer address for key and account kinds.
	ID string `json:"id"`
	// IDs lists the signer addresses for the keys kind.
	IDs []string `json:"ids,omitempty"`
}

// Addresses returns every signer address the reference names.
func (s *GrantSigner) Addresses() []string {
	if s == nil {
		return nil
	}
	if s.Kind == GrantSignerKeys {
		return s.IDs
	}
	if s.ID == "" {
		return nil
	}
	return []string{s.ID}
}

// GrantParams is a request for delegated signing authority.
type GrantParams struct {
	// ExpirySeconds is the requested lifetime from now.
	ExpirySeconds int64        `json:"expiry"`
	Signer        *GrantSigner `json:"signer,omitempty"`
	// Account is an alternative plain-address signer reference.
	Account     string       `json:"account,omitempty"`
	Permissions []Permission `json:"permissions"`
}

// SessionGrant represents delegated signing authority as tracked by the
// backend. A grant is not usable until IsActive is true, which may require
// completing a signature round-trip first.
type SessionGrant struct {
	ID            string      `json:"id"`
	SignerAddress string      `json:"address"`
	ValidAfter    int64       `json:"validAfter"`
	ValidUntil    int64       `json:"validUntil"`
	Whitelist     []string    `json:"whitelist,omitempty"`
	CallLimit     int64       `json:"limit,omitempty"`
	IsActive      bool        `json:"isActive"`
	NextAction    *NextAction `json:"nextAction,omitempty"`
}

// CreateGrantRequest is the backend submission shape for a grant.
type CreateGrantRequest struct {
	Address    string   `json:"address"`
	ChainID    uint64   `json:"chainId"`
	ValidAfter int64    `json:"validAfter"`
	ValidUntil int64    `json:"validUntil"`
	Optimistic bool     `json:"optimistic"`
	Whitelist  []string `json:"whitelist,omitempty"`
	Player     string   `json:"player,omitempty"`
	Limit      int64    `json:"limit,omitempty"`
	Account    string   `json:"account,omitempty"`
	Policy     string   `json:"policy,omitempty"`
}

// RevokeGrantRequest is the backend submission shape for a revocation.
type RevokeGrantRequest struct {
	Address string `json:"address"`
	ChainID uint64 `json:"chainId"`
	Account string `json:"account,omitempty"`
	Policy  string `json:"policy,omitempty"`
}

// GrantResult is the normalized outcome handed back to callers. The
// PermissionsContext is the opaque handle for later revocation.
type GrantResult struct {
	Expiry             int64        `json:"expiry"`
	GrantedPermissions []Permission `json:"grantedPermissions"`
	PermissionsContext string       `json:"permissionsContext"`
}
