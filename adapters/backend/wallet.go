package backend

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/vaultline/vaultline/core"
	"github.com/vaultline/vaultline/ports"
)

type intentsAPI struct {
	c *Client
}

var _ ports.IntentsAPI = (*intentsAPI)(nil)

func (a *intentsAPI) Create(ctx context.Context, auth *core.Authentication, req core.CreateIntentRequest) (*core.TransactionIntent, error) {
	var resp core.TransactionIntent
	if err := a.c.do(ctx, http.MethodPost, "/v1/transaction_intents", auth, nil, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (a *intentsAPI) Get(ctx context.Context, auth *core.Authentication, id string) (*core.TransactionIntent, error) {
	var resp core.TransactionIntent
	if err := a.c.do(ctx, http.MethodGet, "/v1/transaction_intents/"+id, auth, nil, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (a *intentsAPI) SubmitSignature(ctx context.Context, auth *core.Authentication, id, signature string) (*core.TransactionIntent, error) {
	body := map[string]string{"signature": signature}

	var resp core.TransactionIntent
	if err := a.c.do(ctx, http.MethodPost, "/v1/transaction_intents/"+id+"/signature", auth, nil, body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (a *intentsAPI) EstimateGas(ctx context.Context, auth *core.Authentication, req core.CreateIntentRequest) (*core.GasEstimate, error) {
	var resp core.GasEstimate
	if err := a.c.do(ctx, http.MethodPost, "/v1/transaction_intents/estimate_gas_cost", auth, nil, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

type sessionsAPI struct {
	c *Client
}

var _ ports.SessionsAPI = (*sessionsAPI)(nil)

func (a *sessionsAPI) Create(ctx context.Context, auth *core.Authentication, req core.CreateGrantRequest) (*core.SessionGrant, error) {
	var resp core.SessionGrant
	if err := a.c.do(ctx, http.MethodPost, "/v1/sessions", auth, nil, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (a *sessionsAPI) Revoke(ctx context.Context, auth *core.Authentication, req core.RevokeGrantRequest) (*core.SessionGrant, error) {
	var resp core.SessionGrant
	if err := a.c.do(ctx, http.MethodPost, "/v1/sessions/revoke", auth, nil, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (a *sessionsAPI) SubmitSignature(ctx context.Context, auth *core.Authentication, id, signature string) (*core.SessionGrant, error) {
	body := map[string]string{"signature": signature}

	var resp core.SessionGrant
	if err := a.c.do(ctx, http.MethodPost, "/v1/sessions/"+id+"/signature", auth, nil, body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

type accountsAPI struct {
	c *Client
}

var _ ports.AccountsAPI = (*accountsAPI)(nil)

func (a *accountsAPI) Get(ctx context.Context, auth *core.Authentication, id string) (*core.Account, error) {
	var resp core.Account
	if err := a.c.do(ctx, http.MethodGet, "/v1/accounts/"+id, auth, nil, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

type assetsAPI struct {
	c *Client
}

var _ ports.AssetsAPI = (*assetsAPI)(nil)

func (a *assetsAPI) Assets(ctx context.Context, auth *core.Authentication, address string, q core.AssetQuery) ([]core.Asset, error) {
	query := url.Values{}
	for _, id := range q.ChainFilter {
		query.Add("chainFilter", strconv.FormatUint(id, 10))
	}
	if q.AssetFilter != "" {
		query.Set("assetFilter", q.AssetFilter)
	}
	for _, t := range q.AssetTypes {
		query.Add("assetTypeFilter", t)
	}
	if q.IncludePrices {
		query.Set("includePrices", "true")
	}

	var resp struct {
		Assets []core.Asset `json:"assets"`
	}
	if err := a.c.do(ctx, http.MethodGet, "/v1/accounts/"+address+"/assets", auth, query, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Assets, nil
}
