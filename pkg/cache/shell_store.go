package cache

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/eclipse-tractusx/industry-core-hub-discovery/pkg/types"
)

// DefaultShellStoreCapacity bounds the process-wide shell store. Shell
// descriptors are immutable documents keyed by UUID and can accumulate
// without bound across BPNs and DTRs; an LRU cap keeps memory bounded
// without needing a TTL sweep.
const DefaultShellStoreCapacity = 50_000

// ShellStore is the process-wide cache of shell descriptors, shared
// across all DTRs and BPNs: the same shellID surfacing from two
// different DTRs is the same logical shell, last-writer-wins.
type ShellStore struct {
	mu    sync.Mutex
	cache *lru.Cache[string, types.ShellDescriptor]
}

// NewShellStore creates a ShellStore with the given capacity, or
// DefaultShellStoreCapacity if capacity <= 0.
func NewShellStore(capacity int) *ShellStore {
	if capacity <= 0 {
		capacity = DefaultShellStoreCapacity
	}
	c, _ := lru.New[string, types.ShellDescriptor](capacity)
	return &ShellStore{cache: c}
}

// Get returns the cached shell descriptor for shellID, if present.
func (s *ShellStore) Get(shellID string) (types.ShellDescriptor, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache.Get(shellID)
}

// Put installs or overwrites the shell descriptor for shellID.
func (s *ShellStore) Put(shellID string, shell types.ShellDescriptor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Add(shellID, shell)
}

// Len returns the number of shell descriptors currently cached.
func (s *ShellStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache.Len()
}
