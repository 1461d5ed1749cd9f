package symbols

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLRUCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRUCache[string, int](2)
	var evicted []string
	c.OnEvict(func(k string, _ int) { evicted = append(evicted, k) })

	c.Put("a", 1)
	c.Put("b", 2)
	_, _ = c.Get("a")
	c.Put("c", 3)

	_, ok := c.Get("b")
	assert.False(t, ok)
	assert.Equal(t, []string{"b"}, evicted)
	assert.Equal(t, []string{"c", "a"}, c.Keys(), "most recently used first")

	c.Put("a", 10)
	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 10, v)

	assert.True(t, c.Remove("a"))
	assert.False(t, c.Remove("a"))
	c.Clear()
	assert.Equal(t, 0, c.Len())
}

func TestLRUCache_MinimumCapacity(t *testing.T) {
	c := NewLRUCache[int, int](0)
	c.Put(1, 1)
	c.Put(2, 2)
	assert.Equal(t, []int{2}, c.Keys())
}

func TestScanCache_ServesOnlyFreshEntries(t *testing.T) {
	mtimes := map[string]int64{"a.cbl": 5, "copy/X.cpy": 9}
	modTime := func(p string) int64 { return mtimes[p] }

	c := NewScanCache(4)
	c.Put(&FileSymbols{Path: "a.cbl", ModTime: 5, Copybooks: []CopybookDep{{Path: "copy/X.cpy", ModTime: 9}}})

	got, ok := c.Get("a.cbl", modTime)
	require.True(t, ok)
	assert.Equal(t, "a.cbl", got.Path)

	mtimes["copy/X.cpy"] = 10
	_, ok = c.Get("a.cbl", modTime)
	assert.False(t, ok, "copybook change must invalidate the entry")
	assert.Equal(t, 0, c.Len())
}

func TestScanCache_SourceChangeAndAbort(t *testing.T) {
	mtimes := map[string]int64{"a.cbl": 5}
	modTime := func(p string) int64 { return mtimes[p] }

	c := NewScanCache(4)
	c.Put(&FileSymbols{Path: "b.cbl", ModTime: 1, Aborted: true})
	c.Put(nil)
	assert.Equal(t, 0, c.Len())

	c.Put(&FileSymbols{Path: "a.cbl", ModTime: 5})
	mtimes["a.cbl"] = 6
	_, ok := c.Get("a.cbl", modTime)
	assert.False(t, ok)

	c.Put(&FileSymbols{Path: "a.cbl", ModTime: 6})
	c.Invalidate("a.cbl")
	_, ok = c.Get("a.cbl", modTime)
	assert.False(t, ok)
}

func TestScanCache_Clear(t *testing.T) {
	c := NewScanCache(4)
	c.Put(&FileSymbols{Path: "a.cbl", ModTime: 1})
	c.Put(&FileSymbols{Path: "b.cbl", ModTime: 1})
	c.Clear()
	assert.Equal(t, 0, c.Len())

	f := &FileSymbols{Path: "a.cbl", ModTime: 1}
	assert.True(t, f.Current(func(string) int64 { return 1 }))
	assert.False(t, (&FileSymbols{Path: "a.cbl"}).Current(func(string) int64 { return 0 }))
}
