package rpc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"paylinkchain/observability"
	"paylinkchain/rpc/middleware"
)

type methodHandler func(r *http.Request, req *RPCRequest) (interface{}, error)

func (s *Server) methodTable() map[string]methodHandler {
	return map[string]methodHandler{
		"paylink_submitCall":       s.handleSubmitCall,
		"paylink_createCommitment": s.handleCreateCommitment,
		"paylink_verifyCommitment": s.handleVerifyCommitment,
		"paylink_verifyProof":      s.handleVerifyProof,
		"paylink_commitmentState":  s.handleCommitmentState,
		"paylink_escrowDetails":    s.handleEscrowDetails,
		"paylink_escrowCount":      s.handleEscrowCount,
		"paylink_getPrivacy":       s.handleGetPrivacy,
		"paylink_privacyStatus":    s.handlePrivacyStatus,
		"paylink_privacyHistory":   s.handlePrivacyHistory,
		"paylink_getAdmin":         s.handleGetAdmin,
		"paylink_isPaused":         s.handleIsPaused,
		"paylink_code":             s.handleCode,
		"paylink_nonce":            s.handleNonce,
		"paylink_balance":          s.handleBalance,
		"paylink_events":           s.handleEvents,
		"paylink_mint":             s.handleMint,
		"health_check":             s.handleHealthCheck,
	}
}

// handle decodes one JSON-RPC envelope and routes it to the method table.
func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	defer func() {
		_ = reader.Close()
	}()

	w.Header().Set("Content-Type", "application/json")

	body, err := io.ReadAll(reader)
	if err != nil {
		rpcErr := &RPCError{Code: codeInvalidRequest, Message: "failed to read request body", status: http.StatusBadRequest}
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			rpcErr.Message = fmt.Sprintf("request body exceeds %d bytes", maxRequestBytes)
			rpcErr.status = http.StatusRequestEntityTooLarge
		}
		writeError(w, nil, rpcErr)
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		writeError(w, nil, &RPCError{Code: codeInvalidRequest, Message: "request body required"})
		return
	}

	req := &RPCRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		writeError(w, nil, &RPCError{Code: codeParseError, Message: "invalid JSON payload", Data: err.Error()})
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, req.ID, &RPCError{Code: codeInvalidRequest, Message: "unsupported jsonrpc version", Data: req.JSONRPC})
		return
	}
	if req.Method == "" {
		writeError(w, req.ID, &RPCError{Code: codeInvalidRequest, Message: "method required"})
		return
	}
	handler, ok := s.methods[req.Method]
	if !ok {
		writeError(w, req.ID, &RPCError{Code: codeMethodNotFound, Message: "method not found", Data: req.Method, status: http.StatusNotFound})
		return
	}

	start := time.Now()
	result, err := handler(r, req)
	status := http.StatusOK
	if err != nil {
		rpcErr := toRPCError(err)
		status = rpcErr.status
		if status <= 0 {
			status = http.StatusBadRequest
		}
		if status >= http.StatusInternalServerError {
			s.logger.ErrorContext(r.Context(), "rpc method failed",
				slog.String("method", req.Method),
				slog.String("request_id", middleware.RequestIDFrom(r.Context())),
				slog.Any("error", err))
		}
		writeError(w, req.ID, rpcErr)
	} else {
		writeResult(w, req.ID, result)
	}
	observability.ModuleMetrics().Observe("jsonrpc_method", req.Method, status, time.Since(start))
}

func writeJSON(w http.ResponseWriter, v interface{}) error {
	return json.NewEncoder(w).Encode(v)
}
