// Package nonce resolves the next transaction sequence number for an account.
package nonce

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/stable-net/ethcontract-go/pkg/gateway"
)

// Source returns the next usable nonce for an address.
type Source interface {
	Next(ctx context.Context, addr common.Address) (*big.Int, error)
}

// Counter queries a node for transaction counts.
type Counter interface {
	TransactionCount(ctx context.Context, addr common.Address, block string) (*big.Int, error)
}

// Resolver reads the pending transaction count from the node on every call.
// It holds no state; concurrent writers from the same address can observe the same value.
type Resolver struct {
	counter Counter
}

// NewResolver creates a resolver backed by counter.
func NewResolver(counter Counter) *Resolver {
	return &Resolver{counter: counter}
}

// Next returns the pending-inclusive transaction count for addr.
func (r *Resolver) Next(ctx context.Context, addr common.Address) (*big.Int, error) {
	return r.counter.TransactionCount(ctx, addr, gateway.BlockPending)
}

// Sequencer serializes nonce allocation per address on top of another Source.
// It hands out max(remote, local) and remembers the next local value, so rapid
// successive writes through the same Sequencer never collide.
type Sequencer struct {
	source Source
	next   map[common.Address]*big.Int
	locks  map[common.Address]*addrLock
	mu     sync.Mutex
}

// addrLock serializes Next for one address. Entries are dropped once no caller holds
// or waits on them, so locks only tracks addresses with a reservation in progress.
type addrLock struct {
	sync.Mutex
	refs int
}

// NewSequencer wraps source.
func NewSequencer(source Source) *Sequencer {
	return &Sequencer{
		source: source,
		next:   make(map[common.Address]*big.Int),
		locks:  make(map[common.Address]*addrLock),
	}
}

// Next returns the next nonce for addr and reserves it.
func (s *Sequencer) Next(ctx context.Context, addr common.Address) (*big.Int, error) {
	lock := s.acquire(addr)
	defer s.release(addr, lock)

	remote, err := s.source.Next(ctx, addr)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	nonce := new(big.Int).Set(remote)
	if local, ok := s.next[addr]; ok && local.Cmp(nonce) > 0 {
		nonce.Set(local)
	}
	s.next[addr] = new(big.Int).Add(nonce, big.NewInt(1))

	return nonce, nil
}

// Release returns nonce to the pool when the transaction using it was never broadcast.
// Only the most recently reserved nonce can be released.
func (s *Sequencer) Release(addr common.Address, nonce *big.Int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	local, ok := s.next[addr]
	if !ok || nonce == nil {
		return false
	}

	if new(big.Int).Add(nonce, big.NewInt(1)).Cmp(local) != 0 {
		return false
	}
	s.next[addr] = new(big.Int).Set(nonce)
	return true
}

// Pending returns the next nonce the sequencer would hand out locally, or nil.
func (s *Sequencer) Pending(addr common.Address) *big.Int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if local, ok := s.next[addr]; ok {
		return new(big.Int).Set(local)
	}
	return nil
}

// Reset forgets local state for addr.
func (s *Sequencer) Reset(addr common.Address) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.next, addr)
}

func (s *Sequencer) acquire(addr common.Address) *addrLock {
	s.mu.Lock()
	lock, ok := s.locks[addr]
	if !ok {
		lock = new(addrLock)
		s.locks[addr] = lock
	}
	lock.refs++
	s.mu.Unlock()

	lock.Lock()
	return lock
}

func (s *Sequencer) release(addr common.Address, lock *addrLock) {
	lock.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	lock.refs--
	if lock.refs == 0 {
		delete(s.locks, addr)
	}
}
