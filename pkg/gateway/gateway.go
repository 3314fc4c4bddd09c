// Package gateway sends single-shot JSON-RPC requests to an Ethereum node.
package gateway

import (
	"context"
	"math/big"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"
)

// DefaultTimeout is the HTTP timeout used by Dial when none is given.
const DefaultTimeout = time.Second

// Block tags accepted by the node.
const (
	BlockLatest  = "latest"
	BlockPending = "pending"
)

// RPCClient is the transport the gateway issues requests through.
// *rpc.Client from go-ethereum satisfies it.
type RPCClient interface {
	CallContext(ctx context.Context, result interface{}, method string, args ...interface{}) error
	Close()
}

// Dial connects to host and returns a client whose HTTP requests time out after timeout.
// A non-positive timeout selects DefaultTimeout.
func Dial(ctx context.Context, host string, timeout time.Duration) (*rpc.Client, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	client, err := rpc.DialOptions(ctx, host, rpc.WithHTTPClient(&http.Client{Timeout: timeout}))
	if err != nil {
		return nil, &RPCError{Method: "dial", Message: err.Error(), Err: err}
	}
	return client, nil
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithLogger sets the logger used for request tracing.
func WithLogger(logger *zap.Logger) Option {
	return func(g *Gateway) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithMetrics enables request metrics.
func WithMetrics(m *Metrics) Option {
	return func(g *Gateway) {
		g.metrics = m
	}
}

// Gateway issues eth_call, eth_sendRawTransaction and eth_getTransactionCount.
// It does not interpret ABI data.
type Gateway struct {
	client  RPCClient
	logger  *zap.Logger
	metrics *Metrics
}

// New creates a gateway over client.
func New(client RPCClient, opts ...Option) *Gateway {
	g := &Gateway{
		client: client,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Call executes a read-only call against to with the given call data at the latest block.
func (g *Gateway) Call(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	arg := map[string]interface{}{
		"to":   to,
		"data": hexutil.Bytes(data),
	}

	var result hexutil.Bytes
	if err := g.do(ctx, &result, "eth_call", arg, BlockLatest); err != nil {
		return nil, err
	}
	return result, nil
}

// SendRaw broadcasts a 0x-prefixed signed transaction and returns the hash reported by the node.
func (g *Gateway) SendRaw(ctx context.Context, signedTx string) (common.Hash, error) {
	var hash common.Hash
	if err := g.do(ctx, &hash, "eth_sendRawTransaction", signedTx); err != nil {
		return common.Hash{}, err
	}
	return hash, nil
}

// TransactionCount returns the number of transactions sent from addr at block.
func (g *Gateway) TransactionCount(ctx context.Context, addr common.Address, block string) (*big.Int, error) {
	var count hexutil.Big
	if err := g.do(ctx, &count, "eth_getTransactionCount", addr, block); err != nil {
		return nil, err
	}
	return count.ToInt(), nil
}

// Close closes the underlying client.
func (g *Gateway) Close() {
	g.client.Close()
}

func (g *Gateway) do(ctx context.Context, result interface{}, method string, args ...interface{}) error {
	start := time.Now()
	err := g.client.CallContext(ctx, result, method, args...)
	g.metrics.observe(method, start, err)

	if err != nil {
		g.logger.Debug("rpc request failed",
			zap.String("method", method),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return wrapError(method, err)
	}

	g.logger.Debug("rpc request",
		zap.String("method", method),
		zap.Duration("elapsed", time.Since(start)),
	)
	return nil
}
