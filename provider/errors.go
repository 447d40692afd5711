package provider

import (
	"errors"
	"fmt"

	"github.com/vaultline/vaultline/core"
)

// EIP-1193 / EIP-1474 error codes surfaced by the provider.
const (
	CodeUnauthorized        = 4100
	CodeUnsupportedMethod   = 4200
	CodeInvalidParams       = -32602
	CodeInternal            = -32603
	CodeTransactionRejected = -32003
)

// RPCError is the provider-surface error shape. Callers match on Code.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// Is matches RPC errors by code.
func (e *RPCError) Is(target error) bool {
	t, ok := target.(*RPCError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

func rpcErrorf(code int, format string, args ...any) *RPCError {
	return &RPCError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// asRPCError funnels any failure into the provider's error surface. Domain
// errors keep their meaning; everything else becomes an internal error.
func asRPCError(err error) *RPCError {
	var rpcErr *RPCError
	if errors.As(err, &rpcErr) {
		return rpcErr
	}

	var domainErr *core.Error
	if errors.As(err, &domainErr) {
		switch {
		case errors.Is(err, core.ErrTransactionRejected):
			return &RPCError{Code: CodeTransactionRejected, Message: domainErr.Message}
		case domainErr.Category == core.CategoryInvalidParams:
			return &RPCError{Code: CodeInvalidParams, Message: domainErr.Message}
		case domainErr.Category == core.CategorySession,
			domainErr.Category == core.CategoryAuthentication,
			domainErr.Category == core.CategorySigner:
			return &RPCError{Code: CodeUnauthorized, Message: domainErr.Message}
		default:
			return &RPCError{Code: CodeInternal, Message: domainErr.Message}
		}
	}

	return &RPCError{Code: CodeInternal, Message: err.Error()}
}
