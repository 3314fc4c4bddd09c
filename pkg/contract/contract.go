// Package contract binds one deployed smart contract and exposes read and write calls.
//
// A Contract is bound to a single chain id, address and ABI. Read performs an eth_call
// and decodes the result; Write signs an EIP-155 legacy transaction and broadcasts it.
// Private keys are passed per call and never retained.
package contract

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/stable-net/ethcontract-go/pkg/calldata"
	"github.com/stable-net/ethcontract-go/pkg/gateway"
	"github.com/stable-net/ethcontract-go/pkg/keys"
	"github.com/stable-net/ethcontract-go/pkg/nonce"
	"github.com/stable-net/ethcontract-go/pkg/txbuilder"
)

// ErrInvalidArgument is returned for construction parameters that cannot bind a contract.
var ErrInvalidArgument = errors.New("invalid argument")

// Option configures a Contract.
type Option func(*options)

type options struct {
	logger   *zap.Logger
	nonces   nonce.Source
	registry prometheus.Registerer
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithNonceSource replaces the default pending-count resolver, e.g. with a nonce.Sequencer.
func WithNonceSource(source nonce.Source) Option {
	return func(o *options) {
		o.nonces = source
	}
}

// WithMetrics registers RPC request metrics on reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(o *options) {
		o.registry = reg
	}
}

// WriteOption adjusts a single write.
type WriteOption func(*writeOptions)

type writeOptions struct {
	gasLimit *big.Int
}

// WithGasLimit overrides txbuilder.DefaultGasLimit for one write.
func WithGasLimit(limit *big.Int) WriteOption {
	return func(o *writeOptions) {
		o.gasLimit = limit
	}
}

// Contract is safe for concurrent use. Concurrent writes from one key may observe the
// same pending nonce unless a nonce.Sequencer is configured.
type Contract struct {
	address common.Address
	chainID *big.Int
	encoder *calldata.Encoder
	gateway *gateway.Gateway
	nonces  nonce.Source
	logger  *zap.Logger
}

// New binds the contract at address on chainID, issuing requests through client.
func New(client gateway.RPCClient, chainID *big.Int, address common.Address, abiJSON string, opts ...Option) (*Contract, error) {
	if client == nil {
		return nil, fmt.Errorf("%w: nil rpc client", ErrInvalidArgument)
	}
	if chainID == nil || chainID.Sign() <= 0 {
		return nil, fmt.Errorf("%w: chain id must be positive", ErrInvalidArgument)
	}

	encoder, err := calldata.NewEncoder(abiJSON)
	if err != nil {
		return nil, err
	}

	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	gwOpts := []gateway.Option{gateway.WithLogger(o.logger)}
	if o.registry != nil {
		gwOpts = append(gwOpts, gateway.WithMetrics(gateway.NewMetrics(o.registry)))
	}
	gw := gateway.New(client, gwOpts...)

	nonces := o.nonces
	if nonces == nil {
		nonces = nonce.NewResolver(gw)
	}

	return &Contract{
		address: address,
		chainID: new(big.Int).Set(chainID),
		encoder: encoder,
		gateway: gw,
		nonces:  nonces,
		logger:  o.logger.With(zap.String("contract", address.Hex())),
	}, nil
}

// Dial connects to host over HTTP and binds the contract. A non-positive timeout
// selects gateway.DefaultTimeout.
func Dial(ctx context.Context, host string, chainID *big.Int, address common.Address, abiJSON string, timeout time.Duration, opts ...Option) (*Contract, error) {
	client, err := gateway.Dial(ctx, host, timeout)
	if err != nil {
		return nil, err
	}

	c, err := New(client, chainID, address, abiJSON, opts...)
	if err != nil {
		client.Close()
		return nil, err
	}
	return c, nil
}

// Address returns the bound contract address.
func (c *Contract) Address() common.Address {
	return c.address
}

// ChainID returns a copy of the bound chain id.
func (c *Contract) ChainID() *big.Int {
	return new(big.Int).Set(c.chainID)
}

// Encoder returns the ABI encoder of the contract.
func (c *Contract) Encoder() *calldata.Encoder {
	return c.encoder
}

// Close releases the transport.
func (c *Contract) Close() {
	c.gateway.Close()
}

// Read invokes a constant method at the latest block and returns its decoded outputs in order.
func (c *Contract) Read(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	data, err := c.encoder.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", method, err)
	}

	ret, err := c.gateway.Call(ctx, c.address, data)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", method, err)
	}

	values, err := c.encoder.Unpack(method, ret)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", method, err)
	}

	c.logger.Debug("contract read", zap.String("method", method), zap.Int("outputs", len(values)))
	return values, nil
}

// Write signs a transaction invoking method with args and broadcasts it.
// It returns the transaction hash reported by the node. Write is not idempotent.
//
// With a nonce source that tracks reservations (nonce.Sequencer), a nonce is handed
// back when the write fails before broadcast or the node rejects it. If a later nonce
// was already reserved by a concurrent write, the source's state for the sender is
// reset instead. Transport errors keep the reservation.
func (c *Contract) Write(ctx context.Context, method string, args []interface{}, privateKey string, gasPrice *big.Int, opts ...WriteOption) (common.Hash, error) {
	env, signed, err := c.SignWrite(ctx, method, args, privateKey, gasPrice, opts...)
	if err != nil {
		return common.Hash{}, err
	}

	hash, err := c.gateway.SendRaw(ctx, signed.Raw)
	if err != nil {
		if gateway.Rejected(err) {
			c.release(env.From, env.Nonce.ToInt())
		}
		return common.Hash{}, fmt.Errorf("write %s: %w", method, err)
	}

	c.logger.Debug("contract write",
		zap.String("method", method),
		zap.String("from", env.From.Hex()),
		zap.Stringer("nonce", env.Nonce),
		zap.String("tx", hash.Hex()),
	)
	return hash, nil
}

// SignWrite runs the write pipeline up to signing without broadcasting.
// Call data is encoded before the nonce is reserved from the configured source, so
// argument errors never reach the node.
func (c *Contract) SignWrite(ctx context.Context, method string, args []interface{}, privateKey string, gasPrice *big.Int, opts ...WriteOption) (*txbuilder.Envelope, *txbuilder.SignedTx, error) {
	var wo writeOptions
	for _, opt := range opts {
		opt(&wo)
	}

	key, err := keys.ParsePrivateKey(privateKey)
	if err != nil {
		return nil, nil, fmt.Errorf("write %s: %w", method, err)
	}
	from := keys.Address(key)

	data, err := c.encoder.Pack(method, args...)
	if err != nil {
		return nil, nil, fmt.Errorf("write %s: %w", method, err)
	}

	n, err := c.nonces.Next(ctx, from)
	if err != nil {
		return nil, nil, fmt.Errorf("write %s: nonce: %w", method, err)
	}

	env, signed, err := c.sign(data, key, n, gasPrice, wo.gasLimit)
	if err != nil {
		c.release(from, n)
		return nil, nil, fmt.Errorf("write %s: %w", method, err)
	}
	return env, signed, nil
}

// Broadcast submits a transaction produced by SignWrite.
func (c *Contract) Broadcast(ctx context.Context, signed *txbuilder.SignedTx) (common.Hash, error) {
	if signed == nil {
		return common.Hash{}, fmt.Errorf("%w: nil transaction", txbuilder.ErrSigning)
	}
	return c.gateway.SendRaw(ctx, signed.Raw)
}

func (c *Contract) sign(data []byte, key *ecdsa.PrivateKey, n, gasPrice, gasLimit *big.Int) (*txbuilder.Envelope, *txbuilder.SignedTx, error) {
	env, err := txbuilder.Build(txbuilder.Params{
		From:     keys.Address(key),
		To:       c.address,
		ChainID:  c.chainID,
		Nonce:    n,
		GasLimit: gasLimit,
		GasPrice: gasPrice,
		Data:     data,
	})
	if err != nil {
		return nil, nil, err
	}

	signed, err := txbuilder.Sign(env, key)
	if err != nil {
		return nil, nil, err
	}
	return env, signed, nil
}

// release hands n back to sources that track reservations. When n is not the latest
// reservation the source cannot close the gap itself, so its local state for from is
// reset and the next write resynchronizes with the node's pending count.
func (c *Contract) release(from common.Address, n *big.Int) {
	r, ok := c.nonces.(interface {
		Release(addr common.Address, nonce *big.Int) bool
	})
	if !ok {
		return
	}
	if r.Release(from, n) {
		c.logger.Debug("nonce released", zap.String("from", from.Hex()), zap.Stringer("nonce", n))
		return
	}

	if rs, ok := c.nonces.(interface{ Reset(addr common.Address) }); ok {
		rs.Reset(from)
		c.logger.Debug("nonce state reset", zap.String("from", from.Hex()), zap.Stringer("nonce", n))
	}
}
