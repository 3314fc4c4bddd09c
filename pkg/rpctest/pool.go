package rpctest

import (
	"errors"
	"math/big"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Common errors.
var (
	ErrNonceTooLow    = errors.New("nonce too low")
	ErrNonceTooHigh   = errors.New("nonce too high")
	ErrTxAlreadyKnown = errors.New("already known")
	ErrInvalidSender  = errors.New("invalid sender")
)

type txEntry struct {
	tx   *types.Transaction
	from common.Address
}

// Pool records raw transactions accepted by the node.
// Nothing is ever mined: the latest nonce of an account only changes through SetNonce.
type Pool struct {
	signer        types.Signer
	pending       map[common.Hash]*txEntry
	order         []*txEntry
	nonces        map[common.Address]uint64
	pendingNonces map[common.Address]uint64 // next expected nonce per address
	mu            sync.RWMutex
}

// NewPool creates a pool that accepts transactions signed for chainID.
func NewPool(chainID *big.Int) *Pool {
	return &Pool{
		signer:        types.LatestSignerForChainID(chainID),
		pending:       make(map[common.Hash]*txEntry),
		nonces:        make(map[common.Address]uint64),
		pendingNonces: make(map[common.Address]uint64),
	}
}

// Add validates the signature and nonce of tx and records it.
func (p *Pool) Add(tx *types.Transaction) (common.Address, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	from, err := types.Sender(p.signer, tx)
	if err != nil {
		return common.Address{}, ErrInvalidSender
	}

	if _, exists := p.pending[tx.Hash()]; exists {
		return from, ErrTxAlreadyKnown
	}

	expected := p.pendingNonceLocked(from)
	if tx.Nonce() < expected {
		return from, ErrNonceTooLow
	}
	if tx.Nonce() > expected {
		return from, ErrNonceTooHigh
	}

	entry := &txEntry{tx: tx, from: from}
	p.pending[tx.Hash()] = entry
	p.order = append(p.order, entry)
	p.pendingNonces[from] = tx.Nonce() + 1

	return from, nil
}

// Get retrieves a transaction by hash.
func (p *Pool) Get(hash common.Hash) *types.Transaction {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if entry, exists := p.pending[hash]; exists {
		return entry.tx
	}
	return nil
}

// Transactions returns every accepted transaction in arrival order.
func (p *Pool) Transactions() []*types.Transaction {
	p.mu.RLock()
	defer p.mu.RUnlock()

	txs := make([]*types.Transaction, len(p.order))
	for i, entry := range p.order {
		txs[i] = entry.tx
	}
	return txs
}

// PendingFrom returns the transactions sent by addr ordered by nonce.
func (p *Pool) PendingFrom(addr common.Address) []*types.Transaction {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var txs []*types.Transaction
	for _, entry := range p.order {
		if entry.from == addr {
			txs = append(txs, entry.tx)
		}
	}

	sort.Slice(txs, func(i, j int) bool {
		return txs[i].Nonce() < txs[j].Nonce()
	})
	return txs
}

// Nonce returns the latest (confirmed) nonce of addr.
func (p *Pool) Nonce(addr common.Address) uint64 {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.nonces[addr]
}

// PendingNonce returns the next expected nonce for addr, counting accepted transactions.
func (p *Pool) PendingNonce(addr common.Address) uint64 {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.pendingNonceLocked(addr)
}

// SetNonce sets the latest nonce of addr. A pending nonce below it is raised to match.
func (p *Pool) SetNonce(addr common.Address, nonce uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.nonces[addr] = nonce
	if p.pendingNonces[addr] < nonce {
		p.pendingNonces[addr] = nonce
	}
}

// Count returns the number of accepted transactions.
func (p *Pool) Count() int {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return len(p.order)
}

// Clear drops all transactions and nonce state.
func (p *Pool) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.pending = make(map[common.Hash]*txEntry)
	p.order = nil
	p.nonces = make(map[common.Address]uint64)
	p.pendingNonces = make(map[common.Address]uint64)
}

func (p *Pool) pendingNonceLocked(addr common.Address) uint64 {
	if n, ok := p.pendingNonces[addr]; ok {
		return n
	}
	return p.nonces[addr]
}
