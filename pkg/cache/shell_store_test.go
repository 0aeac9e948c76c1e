package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/eclipse-tractusx/industry-core-hub-discovery/pkg/types"
)

func TestShellStorePutGet(t *testing.T) {
	s := NewShellStore(10)
	shell := types.ShellDescriptor{ShellID: "shell-1", Raw: map[string]any{"idShort": "Motor"}}

	s.Put(shell.ShellID, shell)

	got, ok := s.Get("shell-1")
	assert.True(t, ok)
	assert.Equal(t, shell, got)
}

func TestShellStoreMissingKey(t *testing.T) {
	s := NewShellStore(10)
	_, ok := s.Get("missing")
	assert.False(t, ok)
}

func TestShellStoreEvictsAtCapacity(t *testing.T) {
	s := NewShellStore(2)

	s.Put("a", types.ShellDescriptor{ShellID: "a"})
	s.Put("b", types.ShellDescriptor{ShellID: "b"})
	s.Put("c", types.ShellDescriptor{ShellID: "c"})

	assert.Equal(t, 2, s.Len())
	_, ok := s.Get("a")
	assert.False(t, ok, "oldest entry should have been evicted")
}

func TestShellStoreOverwriteIsLastWriterWins(t *testing.T) {
	s := NewShellStore(10)
	s.Put("shell-1", types.ShellDescriptor{ShellID: "shell-1", Raw: map[string]any{"v": 1}})
	s.Put("shell-1", types.ShellDescriptor{ShellID: "shell-1", Raw: map[string]any{"v": 2}})

	got, ok := s.Get("shell-1")
	assert.True(t, ok)
	assert.Equal(t, 2, got.Raw["v"])
}
