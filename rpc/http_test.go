package rpc

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"

	"paylinkchain/core"
	"paylinkchain/core/events"
	"paylinkchain/core/types"
	"paylinkchain/crypto"
	"paylinkchain/rpc/middleware"
	"paylinkchain/storage"
	"paylinkchain/storage/eventlog"
)

const (
	testChainID  = 77
	testSecret   = "ops-secret"
	testIssuer   = "paylink-ops"
	testTokenTag = "usdp"
)

type testEnv struct {
	node    *core.Node
	server  *Server
	http    *httptest.Server
	stream  *events.Broadcaster
	history *eventlog.Store
	token   crypto.Address
}

type testResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code    int             `json:"code"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	} `json:"error"`
}

func newTestEnv(t *testing.T, withHistory bool) *testEnv {
	t.Helper()
	env := &testEnv{stream: events.NewBroadcaster(16)}
	fanout := events.Fanout{env.stream}
	var history EventHistory
	if withHistory {
		store, err := eventlog.Open(filepath.Join(t.TempDir(), "events.db"))
		require.NoError(t, err)
		t.Cleanup(func() { _ = store.Close() })
		env.history = store
		history = store
		fanout = append(fanout, store)
	}
	node, err := core.NewNode(storage.NewMemDB(), core.Options{ChainID: testChainID, Emitter: fanout})
	require.NoError(t, err)
	env.node = node
	env.server = NewServer(node, history, env.stream, Config{
		Operator: middleware.AuthConfig{HMACSecret: testSecret, Issuer: testIssuer},
	})
	env.http = httptest.NewServer(env.server.Handler())
	t.Cleanup(env.http.Close)

	token, err := parseToken(testTokenTag)
	require.NoError(t, err)
	env.token = token
	return env
}

func (e *testEnv) post(t *testing.T, method string, params interface{}, header http.Header) (int, testResponse) {
	t.Helper()
	envelope := map[string]interface{}{"jsonrpc": "2.0", "id": 1, "method": method}
	if params != nil {
		envelope["params"] = []interface{}{params}
	}
	body, err := json.Marshal(envelope)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, e.http.URL+"/", bytes.NewReader(body))
	require.NoError(t, err)
	for k, v := range header {
		req.Header[k] = v
	}
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	var out testResponse
	require.NoError(t, json.NewDecoder(res.Body).Decode(&out))
	return res.StatusCode, out
}

func (e *testEnv) submit(t *testing.T, key *crypto.PrivateKey, method string, args interface{}) (int, testResponse) {
	t.Helper()
	nonce, err := e.node.Nonce(key.PubKey().Address())
	require.NoError(t, err)
	call, err := types.NewCall(testChainID, nonce, method, args)
	require.NoError(t, err)
	require.NoError(t, call.Sign(key))
	return e.post(t, "paylink_submitCall", call, nil)
}

func (e *testEnv) operatorHeader(t *testing.T, scopes ...string) http.Header {
	t.Helper()
	token, err := middleware.IssueToken(testSecret, testIssuer, "ops", scopes, time.Minute)
	require.NoError(t, err)
	return http.Header{"Authorization": []string{"Bearer " + token}}
}

func newTestKey(t *testing.T) (*crypto.PrivateKey, crypto.Address) {
	t.Helper()
	key, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	return key, key.PubKey().Address()
}

func TestEnvelopeErrors(t *testing.T) {
	env := newTestEnv(t, false)

	res, err := http.Post(env.http.URL+"/", "application/json", strings.NewReader("{not json"))
	require.NoError(t, err)
	var out testResponse
	require.NoError(t, json.NewDecoder(res.Body).Decode(&out))
	res.Body.Close()
	require.Equal(t, http.StatusBadRequest, res.StatusCode)
	require.Equal(t, codeParseError, out.Error.Code)

	status, resp := env.post(t, "paylink_unknown", nil, nil)
	require.Equal(t, http.StatusNotFound, status)
	require.Equal(t, codeMethodNotFound, resp.Error.Code)

	status, resp = env.post(t, "paylink_commitmentState", map[string]string{"commitment": "abcd"}, nil)
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, codeInvalidParams, resp.Error.Code)
}

func TestDepositAndQueryOverRPC(t *testing.T) {
	env := newTestEnv(t, true)
	key, owner := newTestKey(t)

	status, resp := env.post(t, "paylink_mint", map[string]string{
		"token": testTokenTag, "to": owner.String(), "amount": "500",
	}, env.operatorHeader(t, OperatorScope))
	require.Equal(t, http.StatusOK, status, "mint failed: %+v", resp.Error)

	salt := []byte("order-9")
	status, resp = env.submit(t, key, types.MethodDeposit, types.DepositArgs{
		Token: env.token, Amount: big.NewInt(120), Owner: owner, Salt: salt, Timeout: 3600,
	})
	require.Equal(t, http.StatusOK, status, "deposit failed: %+v", resp.Error)
	var receipt core.Receipt
	require.NoError(t, json.Unmarshal(resp.Result, &receipt))
	require.Len(t, receipt.Commitment, 64)

	status, resp = env.post(t, "paylink_createCommitment", map[string]string{
		"owner": owner.String(), "amount": "120", "salt": hex.EncodeToString(salt),
	}, nil)
	require.Equal(t, http.StatusOK, status)
	var created map[string]string
	require.NoError(t, json.Unmarshal(resp.Result, &created))
	require.Equal(t, receipt.Commitment, created["commitment"])

	_, resp = env.post(t, "paylink_commitmentState", map[string]string{"commitment": receipt.Commitment}, nil)
	var state map[string]string
	require.NoError(t, json.Unmarshal(resp.Result, &state))
	require.Equal(t, "pending", state["status"])

	_, resp = env.post(t, "paylink_verifyProof", map[string]string{
		"owner": owner.String(), "amount": "120", "salt": hex.EncodeToString(salt),
	}, nil)
	require.JSONEq(t, "true", string(resp.Result))

	_, resp = env.post(t, "paylink_escrowDetails", map[string]string{"commitment": receipt.Commitment}, nil)
	var details escrowJSON
	require.NoError(t, json.Unmarshal(resp.Result, &details))
	require.False(t, details.Hidden)
	require.NotNil(t, details.Amount)
	require.Equal(t, "120", *details.Amount)

	_, resp = env.post(t, "paylink_balance", map[string]string{"account": owner.String(), "token": testTokenTag}, nil)
	var balance balanceJSON
	require.NoError(t, json.Unmarshal(resp.Result, &balance))
	require.Equal(t, "380", balance.Balance)

	_, resp = env.post(t, "paylink_events", map[string]interface{}{"commitment": receipt.Commitment}, nil)
	var history []eventlog.Entry
	require.NoError(t, json.Unmarshal(resp.Result, &history))
	require.Len(t, history, 1)
	require.Equal(t, "escrow.deposited", history[0].Event.Type)

	_, resp = env.post(t, "health_check", nil, nil)
	var health core.Health
	require.NoError(t, json.Unmarshal(resp.Result, &health))
	require.Equal(t, uint64(1), health.EscrowCount)
}

func TestContractErrorMapping(t *testing.T) {
	env := newTestEnv(t, false)
	key, owner := newTestKey(t)

	status, resp := env.submit(t, key, types.MethodWithdraw, types.WithdrawArgs{
		To: owner, Amount: big.NewInt(1), Salt: []byte("missing"),
	})
	require.Equal(t, http.StatusNotFound, status)
	require.Equal(t, codeContractError, resp.Error.Code)
	var data ContractErrorData
	require.NoError(t, json.Unmarshal(resp.Error.Data, &data))
	require.Equal(t, uint32(302), data.Code)
	require.Equal(t, "EscrowNotFound", data.Kind)

	status, resp = env.submit(t, key, types.MethodEnablePrivacy, types.EnablePrivacyArgs{Account: owner, Level: 9})
	require.Equal(t, http.StatusBadRequest, status)
	require.NoError(t, json.Unmarshal(resp.Error.Data, &data))
	require.Equal(t, uint32(102), data.Code)

	unsigned, err := types.NewCall(testChainID, 0, types.MethodSetPrivacy, types.SetPrivacyArgs{Owner: owner, Enabled: true})
	require.NoError(t, err)
	status, resp = env.post(t, "paylink_submitCall", unsigned, nil)
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, codeInvalidParams, resp.Error.Code)
}

func TestMintRequiresOperatorScope(t *testing.T) {
	env := newTestEnv(t, false)
	_, holder := newTestKey(t)
	params := map[string]string{"token": testTokenTag, "to": holder.String(), "amount": "10"}

	status, resp := env.post(t, "paylink_mint", params, nil)
	require.Equal(t, http.StatusUnauthorized, status)
	require.Equal(t, codeUnauthorized, resp.Error.Code)

	status, _ = env.post(t, "paylink_mint", params, env.operatorHeader(t, "paylink:read"))
	require.Equal(t, http.StatusForbidden, status)

	status, _ = env.post(t, "paylink_mint", map[string]string{"token": testTokenTag, "to": holder.String(), "amount": "0"}, env.operatorHeader(t, OperatorScope))
	require.Equal(t, http.StatusBadRequest, status)

	balance, err := env.node.Balance(env.token, holder)
	require.NoError(t, err)
	require.Zero(t, balance.Sign())
}

func TestEventsDisabledWithoutHistory(t *testing.T) {
	env := newTestEnv(t, false)
	status, resp := env.post(t, "paylink_events", nil, nil)
	require.Equal(t, http.StatusServiceUnavailable, status)
	require.Equal(t, codeUnavailable, resp.Error.Code)
}

func TestHealthzAndRequestID(t *testing.T) {
	env := newTestEnv(t, false)
	res, err := http.Get(env.http.URL + "/healthz")
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.NotEmpty(t, res.Header.Get(middleware.RequestIDHeader))
	var health core.Health
	require.NoError(t, json.NewDecoder(res.Body).Decode(&health))
	require.Equal(t, "ok", health.Status)
	require.Equal(t, uint64(testChainID), health.ChainID)
}

func TestEventStreamDeliversCommittedEvents(t *testing.T) {
	env := newTestEnv(t, false)
	key, owner := newTestKey(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	wsURL := "ws" + strings.TrimPrefix(env.http.URL, "http") + "/ws/events?type=privacy.toggled"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	deadline := time.Now().Add(2 * time.Second)
	for env.stream.Subscribers() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("websocket subscriber never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	status, resp := env.submit(t, key, types.MethodSetPrivacy, types.SetPrivacyArgs{Owner: owner, Enabled: true})
	require.Equal(t, http.StatusOK, status, "set privacy failed: %+v", resp.Error)

	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	var evt types.Event
	require.NoError(t, json.Unmarshal(data, &evt))
	require.Equal(t, "privacy.toggled", evt.Type)
}

func newStreamServer(t *testing.T, env *testEnv, cfg Config) string {
	t.Helper()
	srv := httptest.NewServer(NewServer(env.node, nil, env.stream, cfg).Handler())
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/events"
}

func TestEventStreamOriginCheck(t *testing.T) {
	env := newTestEnv(t, false)
	wsURL := newStreamServer(t, env, Config{WSOrigins: []string{"wallet.example"}})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, res, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPHeader: http.Header{"Origin": []string{"https://evil.example"}},
	})
	require.Error(t, err)
	require.NotNil(t, res)
	require.Equal(t, http.StatusForbidden, res.StatusCode)

	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPHeader: http.Header{"Origin": []string{"https://wallet.example"}},
	})
	require.NoError(t, err)
	conn.Close(websocket.StatusNormalClosure, "")
}

func TestEventStreamConnectionCap(t *testing.T) {
	env := newTestEnv(t, false)
	wsURL := newStreamServer(t, env, Config{MaxStreams: 1})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	first, _, err := websocket.Dial(ctx, wsURL, nil)
	require.NoError(t, err)
	defer first.Close(websocket.StatusNormalClosure, "")

	_, res, err := websocket.Dial(ctx, wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, res)
	require.Equal(t, http.StatusServiceUnavailable, res.StatusCode)
}

func TestEventStreamRateLimited(t *testing.T) {
	env := newTestEnv(t, false)
	wsURL := newStreamServer(t, env, Config{RateLimit: middleware.RateLimit{RatePerSecond: 0.01, Burst: 1}})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	_, res, err := websocket.Dial(ctx, wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, res)
	require.Equal(t, http.StatusTooManyRequests, res.StatusCode)
}
