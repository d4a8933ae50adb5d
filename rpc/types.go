package rpc

import (
	"encoding/json"
	"errors"
	"net/http"

	"paylinkchain/core"
	"paylinkchain/native/common"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeServerError    = -32000
	codeUnauthorized   = -32001
	codeUnavailable    = -32003
	codeContractError  = -32050
)

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      interface{}       `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`

	status int
}

func (e *RPCError) Error() string { return e.Message }

// ContractErrorData is attached to codeContractError responses so clients can
// branch on the stable numeric code.
type ContractErrorData struct {
	Code  uint32 `json:"code"`
	Kind  string `json:"kind"`
	Field string `json:"field,omitempty"`
}

func invalidParams(message string, data interface{}) *RPCError {
	return &RPCError{Code: codeInvalidParams, Message: message, Data: data, status: http.StatusBadRequest}
}

func serverError(message string) *RPCError {
	return &RPCError{Code: codeServerError, Message: message, status: http.StatusInternalServerError}
}

// toRPCError maps node and contract failures onto the wire. Internal causes
// are never rendered.
func toRPCError(err error) *RPCError {
	if err == nil {
		return nil
	}
	var rpcErr *RPCError
	if errors.As(err, &rpcErr) {
		return rpcErr
	}
	if errors.Is(err, core.ErrInvalidCall) {
		return invalidParams("invalid call", err.Error())
	}
	var ce *common.Error
	if !errors.As(err, &ce) {
		return serverError("internal error")
	}
	data := ContractErrorData{Code: ce.Code(), Kind: ce.Kind.String()}
	if ce.Kind == common.KindInternal {
		return &RPCError{Code: codeContractError, Message: ce.Kind.String(), Data: data, status: http.StatusInternalServerError}
	}
	data.Field = ce.Field
	return &RPCError{Code: codeContractError, Message: ce.Error(), Data: data, status: statusForKind(ce.Kind)}
}

func statusForKind(kind common.Kind) int {
	switch {
	case kind == common.KindEscrowNotFound:
		return http.StatusNotFound
	case kind == common.KindUnauthorized || kind == common.KindAlreadyInitialized:
		return http.StatusForbidden
	case kind >= 300 && kind < 400:
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}

func writeError(w http.ResponseWriter, id interface{}, rpcErr *RPCError) {
	status := rpcErr.status
	if status <= 0 {
		status = http.StatusBadRequest
	}
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: rpcErr})
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	_ = json.NewEncoder(w).Encode(RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result})
}
