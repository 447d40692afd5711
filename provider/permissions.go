package provider

import (
	"context"

	"github.com/vaultline/vaultline/core"
)

func (p *Provider) grantPermissions(ctx context.Context, call *callContext, params []any) (any, error) {
	grantParams, err := decodeParam[core.GrantParams](params, 0)
	if err != nil {
		return nil, err
	}

	result, err := p.grants.Grant(ctx, grantParams)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (p *Provider) revokePermissions(ctx context.Context, call *callContext, params []any) (any, error) {
	param, err := decodeParam[struct {
		PermissionsContext string `json:"permissionsContext"`
	}](params, 0)
	if err != nil {
		return nil, err
	}

	if err := p.grants.Revoke(ctx, param.PermissionsContext); err != nil {
		return nil, err
	}
	return nil, nil
}
