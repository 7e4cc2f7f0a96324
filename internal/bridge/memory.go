package bridge

import (
	"context"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// In-memory component implementations. Used by tests and by single-node
// deployments that run without a database.

// MemoryReplayGuard is a mutex-protected processed-identifier set.
type MemoryReplayGuard struct {
	mu        sync.Mutex
	processed map[common.Hash]struct{}
}

func NewMemoryReplayGuard() *MemoryReplayGuard {
	return &MemoryReplayGuard{processed: make(map[common.Hash]struct{})}
}

func (g *MemoryReplayGuard) IsProcessed(ctx context.Context, id common.Hash) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.processed[id]
	return ok, nil
}

// MarkProcessed inserts id, failing ErrAlreadyProcessed on a duplicate. The
// check and insert happen under one lock acquisition.
func (g *MemoryReplayGuard) MarkProcessed(ctx context.Context, id common.Hash) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.processed[id]; ok {
		return ErrAlreadyProcessed
	}
	g.processed[id] = struct{}{}
	return nil
}

// MemoryNonceLedger keeps per-user counters in a map.
type MemoryNonceLedger struct {
	mu     sync.Mutex
	nonces map[string]uint64
}

func NewMemoryNonceLedger() *MemoryNonceLedger {
	return &MemoryNonceLedger{nonces: make(map[string]uint64)}
}

func (l *MemoryNonceLedger) Next(ctx context.Context, user string) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	key := strings.ToLower(user)
	l.nonces[key]++
	return l.nonces[key], nil
}

func (l *MemoryNonceLedger) Current(ctx context.Context, user string) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.nonces[strings.ToLower(user)], nil
}

// MemoryState holds the locked balance and pause flag.
type MemoryState struct {
	mu     sync.Mutex
	locked *big.Int
	paused bool
}

func NewMemoryState() *MemoryState {
	return &MemoryState{locked: new(big.Int)}
}

func (s *MemoryState) LockedBalance(ctx context.Context) (*big.Int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return new(big.Int).Set(s.locked), nil
}

func (s *MemoryState) SetLockedBalance(ctx context.Context, balance *big.Int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.locked = new(big.Int).Set(balance)
	return nil
}

func (s *MemoryState) Paused(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused, nil
}

func (s *MemoryState) SetPaused(ctx context.Context, paused bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = paused
	return nil
}

// MemoryRoleStore maps role -> set of principals.
type MemoryRoleStore struct {
	mu    sync.Mutex
	roles map[string]map[string]struct{}
}

func NewMemoryRoleStore() *MemoryRoleStore {
	return &MemoryRoleStore{roles: make(map[string]map[string]struct{})}
}

func (s *MemoryRoleStore) Grant(ctx context.Context, role, principal string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.roles[role] == nil {
		s.roles[role] = make(map[string]struct{})
	}
	s.roles[role][strings.ToLower(principal)] = struct{}{}
	return nil
}

func (s *MemoryRoleStore) Revoke(ctx context.Context, role, principal string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.roles[role] != nil {
		delete(s.roles[role], strings.ToLower(principal))
	}
	return nil
}

func (s *MemoryRoleStore) Has(ctx context.Context, role, principal string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.roles[role] == nil {
		return false, nil
	}
	_, ok := s.roles[role][strings.ToLower(principal)]
	return ok, nil
}
