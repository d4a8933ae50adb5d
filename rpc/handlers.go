package rpc

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"paylinkchain/core/types"
	"paylinkchain/native/escrow"
	"paylinkchain/native/privacy"
	"paylinkchain/native/token"
	"paylinkchain/rpc/middleware"
	"paylinkchain/storage/eventlog"
)

type commitmentParams struct {
	Commitment string `json:"commitment"`
	Owner      string `json:"owner"`
	Amount     string `json:"amount"`
	Salt       string `json:"salt"`
}

type detailsParams struct {
	Commitment string `json:"commitment"`
	Viewer     string `json:"viewer,omitempty"`
}

type accountParams struct {
	Account string `json:"account"`
	Token   string `json:"token,omitempty"`
}

type eventsParams struct {
	Type       string `json:"type,omitempty"`
	Commitment string `json:"commitment,omitempty"`
	Account    string `json:"account,omitempty"`
	AfterSeq   uint64 `json:"afterSeq,omitempty"`
	Limit      int    `json:"limit,omitempty"`
}

type mintParams struct {
	Token  string `json:"token"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

type escrowJSON struct {
	Commitment string  `json:"commitment"`
	Token      string  `json:"token"`
	Amount     *string `json:"amount,omitempty"`
	Owner      *string `json:"owner,omitempty"`
	Status     string  `json:"status"`
	CreatedAt  uint64  `json:"createdAt"`
	ExpiresAt  uint64  `json:"expiresAt,omitempty"`
	Expired    bool    `json:"expired"`
	Hidden     bool    `json:"hidden"`
}

type privacyStatusJSON struct {
	Level   uint32 `json:"level"`
	Enabled bool   `json:"enabled"`
}

type privacyChangeJSON struct {
	Level     uint32 `json:"level"`
	Timestamp uint64 `json:"timestamp"`
}

type adminJSON struct {
	Admin       string `json:"admin,omitempty"`
	Initialized bool   `json:"initialized"`
}

type codeJSON struct {
	Hash    string `json:"hash"`
	Version uint64 `json:"version"`
}

type balanceJSON struct {
	Token   string `json:"token"`
	Account string `json:"account"`
	Balance string `json:"balance"`
}

func formatEscrow(view *escrow.View) escrowJSON {
	out := escrowJSON{
		Commitment: hex.EncodeToString(view.Commitment[:]),
		Token:      view.Token.String(),
		Status:     view.Status.String(),
		CreatedAt:  view.CreatedAt,
		ExpiresAt:  view.ExpiresAt,
		Expired:    view.Expired,
		Hidden:     view.Hidden,
	}
	if view.Amount != nil {
		amount := view.Amount.String()
		out.Amount = &amount
	}
	if view.Owner != nil {
		owner := view.Owner.String()
		out.Owner = &owner
	}
	return out
}

func formatHistory(history []privacy.Change) []privacyChangeJSON {
	out := make([]privacyChangeJSON, 0, len(history))
	for _, change := range history {
		out = append(out, privacyChangeJSON{Level: change.Level, Timestamp: change.Timestamp})
	}
	return out
}

func (s *Server) handleSubmitCall(r *http.Request, req *RPCRequest) (interface{}, error) {
	if len(req.Params) != 1 {
		return nil, invalidParams("signed call required", nil)
	}
	var call types.Call
	if err := json.Unmarshal(req.Params[0], &call); err != nil {
		return nil, invalidParams("invalid call format", err.Error())
	}
	if len(call.Signature) == 0 {
		return nil, invalidParams("call must be signed", nil)
	}
	return s.node.Execute(r.Context(), &call)
}

func (s *Server) handleCreateCommitment(_ *http.Request, req *RPCRequest) (interface{}, error) {
	var params commitmentParams
	if err := decodeParams(req, &params); err != nil {
		return nil, err
	}
	owner, err := parseAddress("owner", params.Owner)
	if err != nil {
		return nil, err
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		return nil, err
	}
	salt, err := parseSalt(params.Salt)
	if err != nil {
		return nil, err
	}
	c, err := s.node.CreateCommitment(owner, amount, salt)
	if err != nil {
		return nil, err
	}
	return map[string]string{"commitment": hex.EncodeToString(c[:])}, nil
}

func (s *Server) handleVerifyCommitment(_ *http.Request, req *RPCRequest) (interface{}, error) {
	var params commitmentParams
	if err := decodeParams(req, &params); err != nil {
		return nil, err
	}
	c, err := parseCommitment(params.Commitment)
	if err != nil {
		return nil, err
	}
	owner, err := parseAddress("owner", params.Owner)
	if err != nil {
		return nil, err
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		return nil, err
	}
	salt, err := parseSalt(params.Salt)
	if err != nil {
		return nil, err
	}
	return s.node.VerifyCommitment(c, owner, amount, salt), nil
}

func (s *Server) handleVerifyProof(_ *http.Request, req *RPCRequest) (interface{}, error) {
	var params commitmentParams
	if err := decodeParams(req, &params); err != nil {
		return nil, err
	}
	owner, err := parseAddress("owner", params.Owner)
	if err != nil {
		return nil, err
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		return nil, err
	}
	salt, err := parseSalt(params.Salt)
	if err != nil {
		return nil, err
	}
	return s.node.VerifyProof(amount, salt, owner), nil
}

func (s *Server) handleCommitmentState(_ *http.Request, req *RPCRequest) (interface{}, error) {
	var params detailsParams
	if err := decodeParams(req, &params); err != nil {
		return nil, err
	}
	c, err := parseCommitment(params.Commitment)
	if err != nil {
		return nil, err
	}
	status, err := s.node.CommitmentState(c)
	if err != nil {
		return nil, err
	}
	return map[string]string{"status": status.String()}, nil
}

func (s *Server) handleEscrowDetails(_ *http.Request, req *RPCRequest) (interface{}, error) {
	var params detailsParams
	if err := decodeParams(req, &params); err != nil {
		return nil, err
	}
	c, err := parseCommitment(params.Commitment)
	if err != nil {
		return nil, err
	}
	viewer, err := parseOptionalAddress("viewer", params.Viewer)
	if err != nil {
		return nil, err
	}
	view, err := s.node.EscrowDetails(c, viewer)
	if err != nil {
		return nil, err
	}
	return formatEscrow(view), nil
}

func (s *Server) handleEscrowCount(*http.Request, *RPCRequest) (interface{}, error) {
	return s.node.EscrowCount()
}

func (s *Server) accountParam(req *RPCRequest) (accountParams, error) {
	var params accountParams
	if err := decodeParams(req, &params); err != nil {
		return params, err
	}
	return params, nil
}

func (s *Server) handleGetPrivacy(_ *http.Request, req *RPCRequest) (interface{}, error) {
	params, err := s.accountParam(req)
	if err != nil {
		return nil, err
	}
	account, err := parseAddress("account", params.Account)
	if err != nil {
		return nil, err
	}
	return s.node.GetPrivacy(account)
}

func (s *Server) handlePrivacyStatus(_ *http.Request, req *RPCRequest) (interface{}, error) {
	params, err := s.accountParam(req)
	if err != nil {
		return nil, err
	}
	account, err := parseAddress("account", params.Account)
	if err != nil {
		return nil, err
	}
	level, enabled, err := s.node.PrivacyStatus(account)
	if err != nil {
		return nil, err
	}
	return privacyStatusJSON{Level: level, Enabled: enabled}, nil
}

func (s *Server) handlePrivacyHistory(_ *http.Request, req *RPCRequest) (interface{}, error) {
	params, err := s.accountParam(req)
	if err != nil {
		return nil, err
	}
	account, err := parseAddress("account", params.Account)
	if err != nil {
		return nil, err
	}
	history, err := s.node.PrivacyHistory(account)
	if err != nil {
		return nil, err
	}
	return formatHistory(history), nil
}

func (s *Server) handleGetAdmin(*http.Request, *RPCRequest) (interface{}, error) {
	admin, ok, err := s.node.Admin()
	if err != nil {
		return nil, err
	}
	return adminJSON{Admin: admin.String(), Initialized: ok}, nil
}

func (s *Server) handleIsPaused(*http.Request, *RPCRequest) (interface{}, error) {
	return s.node.IsPaused()
}

func (s *Server) handleCode(*http.Request, *RPCRequest) (interface{}, error) {
	code, err := s.node.Code()
	if err != nil {
		return nil, err
	}
	return codeJSON{Hash: hex.EncodeToString(code.Hash[:]), Version: code.Version}, nil
}

func (s *Server) handleNonce(_ *http.Request, req *RPCRequest) (interface{}, error) {
	params, err := s.accountParam(req)
	if err != nil {
		return nil, err
	}
	account, err := parseAddress("account", params.Account)
	if err != nil {
		return nil, err
	}
	return s.node.Nonce(account)
}

func (s *Server) handleBalance(_ *http.Request, req *RPCRequest) (interface{}, error) {
	params, err := s.accountParam(req)
	if err != nil {
		return nil, err
	}
	account, err := parseAddress("account", params.Account)
	if err != nil {
		return nil, err
	}
	tokenAddr, err := parseToken(params.Token)
	if err != nil {
		return nil, err
	}
	balance, err := s.node.Balance(tokenAddr, account)
	if err != nil {
		return nil, err
	}
	return balanceJSON{Token: tokenAddr.String(), Account: account.String(), Balance: balance.String()}, nil
}

func (s *Server) handleEvents(r *http.Request, req *RPCRequest) (interface{}, error) {
	if s.history == nil {
		return nil, &RPCError{Code: codeUnavailable, Message: "event history disabled", status: http.StatusServiceUnavailable}
	}
	var params eventsParams
	if len(req.Params) > 0 {
		if err := decodeParams(req, &params); err != nil {
			return nil, err
		}
	}
	return s.history.List(r.Context(), eventlog.Query{
		Type:       params.Type,
		Commitment: params.Commitment,
		Account:    params.Account,
		AfterSeq:   params.AfterSeq,
		Limit:      params.Limit,
	})
}

func (s *Server) handleMint(r *http.Request, req *RPCRequest) (interface{}, error) {
	subject, err := s.operator.Verify(r, OperatorScope)
	if err != nil {
		status := http.StatusUnauthorized
		if errors.Is(err, middleware.ErrInsufficientScope) {
			status = http.StatusForbidden
		}
		return nil, &RPCError{Code: codeUnauthorized, Message: err.Error(), status: status}
	}
	var params mintParams
	if err := decodeParams(req, &params); err != nil {
		return nil, err
	}
	tokenAddr, err := parseToken(params.Token)
	if err != nil {
		return nil, err
	}
	to, err := parseAddress("to", params.To)
	if err != nil {
		return nil, err
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		return nil, err
	}
	if err := s.node.Mint(r.Context(), tokenAddr, to, amount); err != nil {
		if errors.Is(err, token.ErrInvalidAmount) || errors.Is(err, token.ErrOverflow) {
			return nil, invalidParams("mint rejected", err.Error())
		}
		return nil, err
	}
	s.logger.InfoContext(r.Context(), "operator mint",
		slog.String("operator", subject),
		slog.String("request_id", middleware.RequestIDFrom(r.Context())))
	return true, nil
}

func (s *Server) handleHealthCheck(r *http.Request, _ *RPCRequest) (interface{}, error) {
	return s.node.HealthCheck(r.Context())
}
