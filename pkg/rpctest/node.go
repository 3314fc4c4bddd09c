// Package rpctest provides an in-process Ethereum JSON-RPC node for tests.
// It answers the handful of methods a contract client needs and records every request.
package rpctest

import (
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
)

// JSON-RPC error codes.
const (
	ErrCodeParseError        = -32700
	ErrCodeInvalidRequest    = -32600
	ErrCodeMethodNotFound    = -32601
	ErrCodeInvalidParams     = -32602
	ErrCodeInternal          = -32603
	ErrCodeServer            = -32000
	ErrCodeExecutionReverted = 3
)

// ClientVersion is reported by web3_clientVersion.
const ClientVersion = "ethcontract-rpctest/v0.1.0"

// Request represents a JSON-RPC request.
type Request struct {
	Jsonrpc string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

// Response represents a JSON-RPC response.
type Response struct {
	Jsonrpc string       `json:"jsonrpc"`
	ID      interface{}  `json:"id"`
	Result  interface{}  `json:"result,omitempty"`
	Error   *ErrorObject `json:"error,omitempty"`
}

// ErrorObject represents a JSON-RPC error.
type ErrorObject struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Call is an eth_call received by the node.
type Call struct {
	To    common.Address
	Data  []byte
	Block string
}

type callResult struct {
	ret    []byte
	revert []byte
	failed bool
}

// Node implements the read and write subset of the Ethereum JSON-RPC API.
type Node struct {
	chainID  *big.Int
	pool     *Pool
	results  map[[4]byte]callResult
	failures map[string]*ErrorObject
	calls    []Call
	requests []string

	mu sync.RWMutex
}

// NewNode creates a node for chainID.
func NewNode(chainID *big.Int) *Node {
	return &Node{
		chainID:  new(big.Int).Set(chainID),
		pool:     NewPool(chainID),
		results:  make(map[[4]byte]callResult),
		failures: make(map[string]*ErrorObject),
	}
}

// Pool returns the node's transaction pool.
func (n *Node) Pool() *Pool {
	return n.pool
}

// SetCallResult makes eth_call return ret for calls whose data starts with selector.
// Calls with an unknown selector return empty data.
func (n *Node) SetCallResult(selector []byte, ret []byte) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.results[toSelector(selector)] = callResult{ret: common.CopyBytes(ret)}
}

// SetCallRevert makes eth_call fail with an execution reverted error carrying data.
func (n *Node) SetCallRevert(selector []byte, data []byte) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.results[toSelector(selector)] = callResult{revert: common.CopyBytes(data), failed: true}
}

// Fail makes every request for method fail with the given error until Recover is called.
func (n *Node) Fail(method string, code int, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.failures[method] = &ErrorObject{Code: code, Message: message}
}

// Recover removes an injected failure for method.
func (n *Node) Recover(method string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	delete(n.failures, method)
}

// Calls returns the eth_call requests received so far.
func (n *Node) Calls() []Call {
	n.mu.RLock()
	defer n.mu.RUnlock()

	out := make([]Call, len(n.calls))
	copy(out, n.calls)
	return out
}

// Requests returns the method names of all requests received so far.
func (n *Node) Requests() []string {
	n.mu.RLock()
	defer n.mu.RUnlock()

	out := make([]string, len(n.requests))
	copy(out, n.requests)
	return out
}

// RequestCount returns how many requests for method were received.
func (n *Node) RequestCount(method string) int {
	n.mu.RLock()
	defer n.mu.RUnlock()

	count := 0
	for _, m := range n.requests {
		if m == method {
			count++
		}
	}
	return count
}

// ServeHTTP handles HTTP requests.
func (n *Node) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	body, err := io.ReadAll(r.Body)
	if err != nil {
		n.writeError(w, nil, &ErrorObject{Code: ErrCodeParseError, Message: "Failed to read request body"})
		return
	}

	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		n.writeError(w, nil, &ErrorObject{Code: ErrCodeParseError, Message: "Parse error"})
		return
	}
	if req.Method == "" {
		n.writeError(w, req.ID, &ErrorObject{Code: ErrCodeInvalidRequest, Message: "Invalid request"})
		return
	}

	result, rpcErr := n.handleMethod(req.Method, req.Params)
	if rpcErr != nil {
		n.writeError(w, req.ID, rpcErr)
		return
	}

	// A nil result must be sent as "null" rather than omitted
	var resp interface{}
	if result == nil {
		resp = struct {
			Jsonrpc string      `json:"jsonrpc"`
			ID      interface{} `json:"id"`
			Result  interface{} `json:"result"`
		}{
			Jsonrpc: "2.0",
			ID:      req.ID,
		}
	} else {
		resp = Response{
			Jsonrpc: "2.0",
			ID:      req.ID,
			Result:  result,
		}
	}

	json.NewEncoder(w).Encode(resp)
}

func (n *Node) writeError(w http.ResponseWriter, id interface{}, rpcErr *ErrorObject) {
	json.NewEncoder(w).Encode(Response{
		Jsonrpc: "2.0",
		ID:      id,
		Error:   rpcErr,
	})
}

func (n *Node) handleMethod(method string, params json.RawMessage) (interface{}, *ErrorObject) {
	n.mu.Lock()
	n.requests = append(n.requests, method)
	failure := n.failures[method]
	n.mu.Unlock()

	if failure != nil {
		return nil, failure
	}

	switch method {
	case "eth_chainId":
		return (*hexutil.Big)(n.chainID).String(), nil
	case "net_version":
		return n.chainID.String(), nil
	case "web3_clientVersion":
		return ClientVersion, nil
	case "eth_getTransactionCount":
		return n.ethGetTransactionCount(params)
	case "eth_call":
		return n.ethCall(params)
	case "eth_sendRawTransaction":
		return n.ethSendRawTransaction(params)
	case "eth_getTransactionByHash":
		return n.ethGetTransactionByHash(params)
	default:
		return nil, &ErrorObject{
			Code:    ErrCodeMethodNotFound,
			Message: fmt.Sprintf("the method %s does not exist/is not available", method),
		}
	}
}

// eth_getTransactionCount returns the latest or pending nonce of an account.
func (n *Node) ethGetTransactionCount(params json.RawMessage) (interface{}, *ErrorObject) {
	var args []interface{}
	if err := json.Unmarshal(params, &args); err != nil || len(args) < 2 {
		return nil, &ErrorObject{Code: ErrCodeInvalidParams, Message: "Invalid params"}
	}

	addrStr, ok := args[0].(string)
	if !ok || !common.IsHexAddress(addrStr) {
		return nil, &ErrorObject{Code: ErrCodeInvalidParams, Message: "Invalid address"}
	}
	addr := common.HexToAddress(addrStr)

	switch args[1] {
	case "pending":
		return hexutil.EncodeUint64(n.pool.PendingNonce(addr)), nil
	case "latest", "safe", "finalized", "earliest":
		return hexutil.EncodeUint64(n.pool.Nonce(addr)), nil
	default:
		return nil, &ErrorObject{Code: ErrCodeInvalidParams, Message: "Invalid block tag"}
	}
}

// eth_call returns the canned result registered for the call's selector.
func (n *Node) ethCall(params json.RawMessage) (interface{}, *ErrorObject) {
	var args []interface{}
	if err := json.Unmarshal(params, &args); err != nil || len(args) < 1 {
		return nil, &ErrorObject{Code: ErrCodeInvalidParams, Message: "Invalid params"}
	}

	callArgs, ok := args[0].(map[string]interface{})
	if !ok {
		return nil, &ErrorObject{Code: ErrCodeInvalidParams, Message: "Invalid call args"}
	}

	toStr, ok := callArgs["to"].(string)
	if !ok || !common.IsHexAddress(toStr) {
		return nil, &ErrorObject{Code: ErrCodeInvalidParams, Message: "Missing to address"}
	}

	// Newer clients send "input", older ones "data".
	dataStr, ok := callArgs["input"].(string)
	if !ok {
		dataStr, _ = callArgs["data"].(string)
	}
	data, err := hexutil.Decode(dataStr)
	if err != nil && dataStr != "" {
		return nil, &ErrorObject{Code: ErrCodeInvalidParams, Message: "Invalid call data"}
	}

	block := "latest"
	if len(args) > 1 {
		if tag, ok := args[1].(string); ok {
			block = tag
		}
	}

	n.mu.Lock()
	n.calls = append(n.calls, Call{To: common.HexToAddress(toStr), Data: data, Block: block})
	result, found := n.results[toSelector(data)]
	n.mu.Unlock()

	if !found || len(data) < 4 {
		return "0x", nil
	}
	if result.failed {
		return nil, &ErrorObject{
			Code:    ErrCodeExecutionReverted,
			Message: "execution reverted",
			Data:    hexutil.Encode(result.revert),
		}
	}
	return hexutil.Encode(result.ret), nil
}

// eth_sendRawTransaction decodes, verifies and records a signed transaction.
func (n *Node) ethSendRawTransaction(params json.RawMessage) (interface{}, *ErrorObject) {
	var args []interface{}
	if err := json.Unmarshal(params, &args); err != nil || len(args) < 1 {
		return nil, &ErrorObject{Code: ErrCodeInvalidParams, Message: "Invalid params"}
	}

	rawTxStr, ok := args[0].(string)
	if !ok {
		return nil, &ErrorObject{Code: ErrCodeInvalidParams, Message: "Invalid raw transaction"}
	}

	rawTx, err := hexutil.Decode(rawTxStr)
	if err != nil {
		return nil, &ErrorObject{Code: ErrCodeInvalidParams, Message: "Invalid raw transaction"}
	}

	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(rawTx); err != nil {
		return nil, &ErrorObject{Code: ErrCodeInvalidParams, Message: "Failed to decode transaction"}
	}

	if tx.Protected() && tx.ChainId().Cmp(n.chainID) != 0 {
		return nil, &ErrorObject{Code: ErrCodeServer, Message: "invalid chain id for signer"}
	}

	if _, err := n.pool.Add(tx); err != nil {
		return nil, &ErrorObject{Code: ErrCodeServer, Message: err.Error()}
	}

	return tx.Hash().Hex(), nil
}

// eth_getTransactionByHash returns a pending transaction or null.
func (n *Node) ethGetTransactionByHash(params json.RawMessage) (interface{}, *ErrorObject) {
	var args []interface{}
	if err := json.Unmarshal(params, &args); err != nil || len(args) < 1 {
		return nil, &ErrorObject{Code: ErrCodeInvalidParams, Message: "Invalid params"}
	}

	hashStr, ok := args[0].(string)
	if !ok {
		return nil, &ErrorObject{Code: ErrCodeInvalidParams, Message: "Invalid transaction hash"}
	}

	tx := n.pool.Get(common.HexToHash(hashStr))
	if tx == nil {
		return nil, nil
	}
	return tx, nil
}

func toSelector(data []byte) [4]byte {
	var sel [4]byte
	copy(sel[:], data)
	return sel
}
