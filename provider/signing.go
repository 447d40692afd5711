package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/vaultline/vaultline/core"
	"github.com/vaultline/vaultline/ports"
)

// Account implementations whose on-chain validator checks a typed-data
// envelope around the message hash instead of the bare EIP-191 digest.
var upgradeableImplementations = map[string]struct{}{
	"UPGRADEABLE_V5":        {},
	"UPGRADEABLE_V6":        {},
	"ZKSYNC_UPGRADEABLE_V1": {},
	"ZKSYNC_UPGRADEABLE_V2": {},
}

// Implementations that can be deployed counterfactually and therefore need
// the ERC-6492 wrapper while undeployed.
var counterfactualImplementations = map[string]struct{}{
	"UPGRADEABLE_V5": {},
	"UPGRADEABLE_V6": {},
}

var erc6492Magic = common.HexToHash("0x6492649264926492649264926492649264926492649264926492649264926492")

func isUpgradeable(implementationType string) bool {
	_, ok := upgradeableImplementations[implementationType]
	return ok
}

func (p *Provider) personalSign(ctx context.Context, call *callContext, params []any) (any, error) {
	message, err := decodeParam[string](params, 0)
	if err != nil {
		return nil, err
	}
	address, err := decodeParam[string](params, 1)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(address, call.account.Address) {
		return nil, rpcErrorf(CodeUnauthorized, "address %s is not the active account", address)
	}

	if isUpgradeable(call.account.ImplementationType) {
		digest := common.BytesToHash(accounts.TextHash(messageBytes(message)))
		return p.signWrapped(ctx, call.account, digest)
	}

	// Plain accounts sign the message with the standard personal envelope
	// applied by the signer itself.
	return p.signer.Sign(ctx, ports.SignRequest{Payload: message, Arrayify: true, Hash: true})
}

// messageBytes interprets a personal_sign message parameter, which may be
// hex-encoded bytes or a plain UTF-8 string.
func messageBytes(message string) []byte {
	if strings.HasPrefix(message, "0x") {
		if raw, err := hexutil.Decode(message); err == nil {
			return raw
		}
	}
	return []byte(message)
}

func (p *Provider) signTypedData(ctx context.Context, call *callContext, params []any) (any, error) {
	address, err := decodeParam[string](params, 0)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(address, call.account.Address) {
		return nil, rpcErrorf(CodeUnauthorized, "address %s is not the active account", address)
	}

	typedData, err := decodeTypedData(params, 1)
	if err != nil {
		return nil, err
	}

	digest, err := typedDataDigest(typedData)
	if err != nil {
		return nil, rpcErrorf(CodeInvalidParams, "invalid typed data: %v", err)
	}

	if isUpgradeable(call.account.ImplementationType) {
		return p.signWrapped(ctx, call.account, digest)
	}

	return p.signer.Sign(ctx, ports.SignRequest{Payload: digest.Hex(), Arrayify: false, Hash: false})
}

// decodeTypedData accepts the typed-data parameter either as an object or as
// a JSON string, both of which appear in the wild.
func decodeTypedData(params []any, i int) (apitypes.TypedData, error) {
	if i < len(params) {
		if s, ok := params[i].(string); ok {
			var td apitypes.TypedData
			if err := json.Unmarshal([]byte(s), &td); err != nil {
				return apitypes.TypedData{}, rpcErrorf(CodeInvalidParams, "typed data: %v", err)
			}
			return td, nil
		}
	}
	return decodeParam[apitypes.TypedData](params, i)
}

func typedDataDigest(td apitypes.TypedData) (common.Hash, error) {
	digest, _, err := apitypes.TypedDataAndHash(td)
	if err != nil {
		return common.Hash{}, err
	}
	return common.BytesToHash(digest), nil
}

// signWrapped signs a digest on behalf of an upgradeable smart account: the
// digest is folded into the account's typed-data envelope, signed raw, and
// wrapped per ERC-6492 when the account may not be deployed yet.
func (p *Provider) signWrapped(ctx context.Context, account *core.Account, digest common.Hash) (string, error) {
	envelope := apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": []apitypes.Type{
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
				{Name: "verifyingContract", Type: "address"},
			},
			"VaultlineMessage": []apitypes.Type{
				{Name: "hashedMessage", Type: "bytes32"},
			},
		},
		PrimaryType: "VaultlineMessage",
		Domain: apitypes.TypedDataDomain{
			Name:              "Vaultline",
			Version:           "0.5",
			ChainId:           math.NewHexOrDecimal256(int64(account.ChainID)),
			VerifyingContract: account.Address,
		},
		Message: apitypes.TypedDataMessage{
			"hashedMessage": digest.Hex(),
		},
	}

	wrapped, err := typedDataDigest(envelope)
	if err != nil {
		return "", fmt.Errorf("failed to hash signature envelope: %w", err)
	}

	signature, err := p.signer.Sign(ctx, ports.SignRequest{Payload: wrapped.Hex(), Arrayify: false, Hash: false})
	if err != nil {
		return "", err
	}

	if _, counterfactual := counterfactualImplementations[account.ImplementationType]; counterfactual &&
		account.FactoryAddress != "" && account.Salt != "" {
		return erc6492Wrap(account, signature)
	}

	return signature, nil
}

// erc6492Wrap encodes the signature with the factory deployment call so
// verifiers can validate it before the account contract exists.
func erc6492Wrap(account *core.Account, signature string) (string, error) {
	addressTy, err := abi.NewType("address", "", nil)
	if err != nil {
		return "", err
	}
	bytes32Ty, err := abi.NewType("bytes32", "", nil)
	if err != nil {
		return "", err
	}
	boolTy, err := abi.NewType("bool", "", nil)
	if err != nil {
		return "", err
	}
	bytesTy, err := abi.NewType("bytes", "", nil)
	if err != nil {
		return "", err
	}

	selector := crypto.Keccak256([]byte("createAccountWithNonce(address,bytes32,bool)"))[:4]
	deployArgs := abi.Arguments{{Type: addressTy}, {Type: bytes32Ty}, {Type: boolTy}}
	encoded, err := deployArgs.Pack(common.HexToAddress(account.OwnerAddress), common.HexToHash(account.Salt), false)
	if err != nil {
		return "", fmt.Errorf("failed to encode factory call: %w", err)
	}
	factoryCalldata := append(selector, encoded...)

	rawSig, err := hexutil.Decode(signature)
	if err != nil {
		return "", fmt.Errorf("failed to decode signature: %w", err)
	}

	metadataArgs := abi.Arguments{{Type: addressTy}, {Type: bytesTy}, {Type: bytesTy}}
	metadata, err := metadataArgs.Pack(common.HexToAddress(account.FactoryAddress), factoryCalldata, rawSig)
	if err != nil {
		return "", fmt.Errorf("failed to encode wrapper: %w", err)
	}

	return hexutil.Encode(append(metadata, erc6492Magic.Bytes()...)), nil
}
