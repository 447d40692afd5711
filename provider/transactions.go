package provider

import (
	"context"

	"github.com/vaultline/vaultline/core"
	"github.com/vaultline/vaultline/ports"
)

type txParams struct {
	From  string `json:"from,omitempty"`
	To    string `json:"to,omitempty"`
	Data  string `json:"data,omitempty"`
	Value string `json:"value,omitempty"`
}

func (t txParams) interaction() core.Interaction {
	return core.Interaction{To: t.To, Data: t.Data, Value: t.Value}
}

// submitIntent runs the submit → sign pending hash → finalize sequence. The
// finalize call never happens before the signature completes. Delegated
// accounts whose code does not yet carry the implementation designator get a
// one-time authorization bundled with the intent.
func (p *Provider) submitIntent(ctx context.Context, call *callContext, req core.CreateIntentRequest) (*core.TransactionIntent, error) {
	if call.account.AccountType == core.AccountTypeDelegated {
		authorization, err := p.authorizer.PrepareAndSign(ctx, call.account.ChainID, call.account.Address, call.account.ImplementationAddress)
		if err != nil {
			return nil, err
		}
		if authorization != nil {
			req.Authorization = authorization.Serialize()
		}
	}

	intent, err := p.intents.Create(ctx, call.auth, req)
	if err != nil {
		return nil, err
	}

	if intent.NextAction == nil || intent.NextAction.Payload.SignableHash == "" {
		return intent, nil
	}

	raw := p.policy.UseRawSignature(call.account.ChainID, call.account.ImplementationType)
	signature, err := p.signer.Sign(ctx, ports.SignRequest{
		Payload:  intent.NextAction.Payload.SignableHash,
		Arrayify: !raw,
		Hash:     !raw,
	})
	if err != nil {
		return nil, err
	}

	return p.intents.SubmitSignature(ctx, call.auth, intent.ID, signature)
}

func (p *Provider) ethSendTransaction(ctx context.Context, call *callContext, params []any) (any, error) {
	tx, err := decodeParam[txParams](params, 0)
	if err != nil {
		return nil, err
	}
	if tx.To == "" {
		return nil, rpcErrorf(CodeInvalidParams, "transaction requires a target address")
	}

	req := core.CreateIntentRequest{
		Account:      call.account.ID,
		Policy:       p.policyID,
		ChainID:      call.account.ChainID,
		Interactions: []core.Interaction{tx.interaction()},
	}

	intent, err := p.submitIntent(ctx, call, req)
	if err != nil {
		return nil, err
	}

	if intent.Response != nil {
		if intent.Response.Status == 0 {
			msg := intent.Response.Error
			if msg == "" {
				msg = "transaction reverted"
			}
			return nil, rpcErrorf(CodeTransactionRejected, "%s", msg)
		}
		return intent.Response.TransactionHash, nil
	}

	// Still pending; the intent id is the handle to poll with.
	return intent.ID, nil
}

func (p *Provider) ethEstimateGas(ctx context.Context, call *callContext, params []any) (any, error) {
	tx, err := decodeParam[txParams](params, 0)
	if err != nil {
		return nil, err
	}
	if tx.To == "" {
		return nil, rpcErrorf(CodeInvalidParams, "estimate requires a target address")
	}

	estimate, err := p.intents.EstimateGas(ctx, call.auth, core.CreateIntentRequest{
		Account:      call.account.ID,
		Policy:       p.policyID,
		ChainID:      call.account.ChainID,
		Interactions: []core.Interaction{tx.interaction()},
	})
	if err != nil {
		return nil, err
	}
	return estimate.EstimatedTXGas, nil
}

type sendCallsParams struct {
	Version      string         `json:"version,omitempty"`
	From         string         `json:"from,omitempty"`
	ChainID      string         `json:"chainId,omitempty"`
	Calls        []txParams     `json:"calls"`
	Capabilities map[string]any `json:"capabilities,omitempty"`
}

func (p *Provider) walletSendCalls(ctx context.Context, call *callContext, params []any) (any, error) {
	batch, err := decodeParam[sendCallsParams](params, 0)
	if err != nil {
		return nil, err
	}
	if len(batch.Calls) == 0 {
		return nil, rpcErrorf(CodeInvalidParams, "at least one call is required")
	}

	interactions := make([]core.Interaction, 0, len(batch.Calls))
	for i, c := range batch.Calls {
		if c.To == "" {
			return nil, rpcErrorf(CodeInvalidParams, "call %d has no target address", i)
		}
		interactions = append(interactions, c.interaction())
	}

	req := core.CreateIntentRequest{
		Account:      call.account.ID,
		Policy:       p.policyID,
		ChainID:      call.account.ChainID,
		Interactions: interactions,
	}

	intent, err := p.submitIntent(ctx, call, req)
	if err != nil {
		return nil, err
	}

	return map[string]string{"id": intent.ID}, nil
}

func (p *Provider) walletGetCallsStatus(ctx context.Context, call *callContext, params []any) (any, error) {
	id, err := decodeParam[string](params, 0)
	if err != nil {
		return nil, err
	}

	intent, err := p.intents.Get(ctx, call.auth, id)
	if err != nil {
		return nil, err
	}

	status := map[string]any{
		"version": "1.0",
		"id":      intent.ID,
	}

	// No response means the bundle is still in flight; callers must not
	// assume confirmation.
	if intent.Response == nil {
		status["status"] = "PENDING"
		return status, nil
	}

	receiptStatus := "0x1"
	if intent.Response.Status == 0 {
		receiptStatus = "0x0"
	}

	status["status"] = "CONFIRMED"
	status["receipts"] = []map[string]any{{
		"transactionHash": intent.Response.TransactionHash,
		"status":          receiptStatus,
		"blockNumber":     intent.Response.BlockNumber,
		"gasUsed":         intent.Response.GasUsed,
		"logs":            intent.Response.Logs,
	}}

	return status, nil
}

// walletShowCallsStatus is accepted for protocol completeness; a headless
// runtime has no surface to show anything on.
func (p *Provider) walletShowCallsStatus(ctx context.Context, call *callContext, params []any) (any, error) {
	if id, err := decodeParam[string](params, 0); err == nil {
		p.logger.Info("call status display requested", "bundle_id", id)
	}
	return nil, nil
}
