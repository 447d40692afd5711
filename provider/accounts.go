package provider

import (
	"context"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/vaultline/vaultline/core"
)

func (p *Provider) ethAccounts(ctx context.Context, call *callContext, params []any) (any, error) {
	account, err := p.repo.Account(ctx)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return []string{}, nil
	}
	return []string{account.Address}, nil
}

func (p *Provider) ethRequestAccounts(ctx context.Context, call *callContext, params []any) (any, error) {
	account, err := p.repo.Account(ctx)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, rpcErrorf(CodeUnauthorized, "no wallet configured for this session")
	}

	if err := p.events.PublishConnected(ctx, account.ChainID); err != nil {
		p.logger.Warn("connect event failed", "error", err)
	}

	return []string{account.Address}, nil
}

func (p *Provider) ethChainID(ctx context.Context, call *callContext, params []any) (any, error) {
	return hexutil.EncodeUint64(call.account.ChainID), nil
}

// parseChainID accepts both EIP-695 hex quantities and plain decimals.
func parseChainID(s string) (uint64, error) {
	if strings.HasPrefix(s, "0x") {
		id, err := hexutil.DecodeUint64(s)
		if err != nil {
			return 0, rpcErrorf(CodeInvalidParams, "invalid chain id %q", s)
		}
		return id, nil
	}
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, rpcErrorf(CodeInvalidParams, "invalid chain id %q", s)
	}
	return id, nil
}

func (p *Provider) switchChain(ctx context.Context, call *callContext, params []any) (any, error) {
	param, err := decodeParam[struct {
		ChainID string `json:"chainId"`
	}](params, 0)
	if err != nil {
		return nil, err
	}

	chainID, err := parseChainID(param.ChainID)
	if err != nil {
		return nil, err
	}
	if chainID == call.account.ChainID {
		return nil, nil
	}

	account, err := p.signer.SwitchChain(ctx, chainID)
	if err != nil {
		return nil, err
	}
	if err := p.repo.SaveAccount(ctx, account); err != nil {
		return nil, err
	}

	// Drop the old chain's connection; the new one dials lazily on first use.
	p.chains.Release(call.account.ChainID)

	if !strings.EqualFold(account.Address, call.account.Address) {
		if err := p.events.PublishAccountSwitched(ctx, account.Address); err != nil {
			p.logger.Warn("account switched event failed", "error", err)
		}
	}
	if err := p.events.PublishConnected(ctx, chainID); err != nil {
		p.logger.Warn("connect event failed", "error", err)
	}

	p.logger.Info("switched chain", "chain_id", chainID, "address", account.Address)
	return nil, nil
}

func (p *Provider) addChain(ctx context.Context, call *callContext, params []any) (any, error) {
	param, err := decodeParam[struct {
		ChainID string   `json:"chainId"`
		RPCURLs []string `json:"rpcUrls"`
	}](params, 0)
	if err != nil {
		return nil, err
	}

	chainID, err := parseChainID(param.ChainID)
	if err != nil {
		return nil, err
	}
	if len(param.RPCURLs) == 0 {
		return nil, rpcErrorf(CodeInvalidParams, "at least one RPC URL is required")
	}

	p.chains.Register(chainID, param.RPCURLs[0])
	return nil, nil
}

// getCapabilities returns the static per-chain capability descriptor. It is
// informational, not negotiated.
func (p *Provider) getCapabilities(ctx context.Context, call *callContext, params []any) (any, error) {
	chainHex := hexutil.EncodeUint64(call.account.ChainID)

	supportsBatch := call.account.AccountType != core.AccountTypeEOA

	return map[string]any{
		chainHex: map[string]any{
			"atomicBatch": map[string]any{
				"supported": supportsBatch,
			},
			"paymasterService": map[string]any{
				"supported": p.policyID != "",
			},
			"permissions": map[string]any{
				"supported": true,
				"permissionTypes": []core.PermissionType{
					core.PermissionContractCall,
					core.PermissionERC20Transfer,
					core.PermissionERC721Transfer,
					core.PermissionERC1155Transfer,
				},
			},
		},
	}, nil
}

func (p *Provider) getAssets(ctx context.Context, call *callContext, params []any) (any, error) {
	var query core.AssetQuery
	if len(params) > 0 {
		q, err := decodeParam[core.AssetQuery](params, 0)
		if err != nil {
			return nil, err
		}
		query = q
	}

	assets, err := p.assets.Assets(ctx, call.auth, call.account.Address, query)
	if err != nil {
		return nil, err
	}
	return assets, nil
}
