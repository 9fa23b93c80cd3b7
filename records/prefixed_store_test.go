package records

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrefixedStorePrefixes(t *testing.T) {
	st := NewPrefixedStore[string, string](Config{MaxBlocks: 1})

	require.NoError(t, st.InsertPrefix("aba", "abaa", NewOnchain(NewTime(1), []byte{1})))
	require.NoError(t, st.InsertPrefix("aba", "aba", NewOnchain(NewTime(1), []byte{1})))
	require.NoError(t, st.InsertPrefix("abc", "aba", NewOnchain(NewTime(1), []byte{1})))
	require.NoError(t, st.InsertPrefix("abc", "abaa", NewOnchain(NewTime(1), []byte{1})))
	require.NoError(t, st.InsertPrefix("abcd", "aba", NewOnchain(NewTime(1), []byte{1})))

	keys := st.PrefixedKeys("aba")
	require.Len(t, keys, 2)
	sort.Strings(keys)
	assert.Equal(t, "aba", keys[0])
	assert.Equal(t, "abaa", keys[1])

	assert.Len(t, st.PrefixedKeys("abcd"), 1)
	assert.Len(t, st.PrefixedKeys("no"), 0)
}

func TestPrefixedStoreDuplicateWithinPrefix(t *testing.T) {
	st := NewPrefixedStore[string, string](Config{MaxBlocks: 1})
	require.NoError(t, st.InsertPrefix("p", "k", NewOnchain(NewTime(1), []byte{1})))
	err := st.InsertPrefix("p", "k", NewOnchain(NewTime(1), []byte{2}))
	assert.Error(t, err)
}

func TestPrefixedStoreGetPrefixBlind(t *testing.T) {
	st := NewPrefixedStore[string, string](Config{MaxBlocks: 5})
	require.NoError(t, st.InsertPrefix("para1", "hash1", NewOnchain(NewTime(1), []byte{9})))

	e, ok := st.Get("hash1")
	require.True(t, ok)
	assert.Equal(t, []byte{9}, e.Data)

	e, ok = st.GetPrefix("para1", "hash1")
	require.True(t, ok)
	assert.Equal(t, []byte{9}, e.Data)

	_, ok = st.GetPrefix("para2", "hash1")
	assert.False(t, ok)
}

func TestPrefixedStorePrune(t *testing.T) {
	st := NewPrefixedStore[int, string](Config{MaxBlocks: 2})
	for idx := 0; idx < 1000; idx++ {
		require.NoError(t, st.InsertPrefix("p", idx, NewOnchain(NewTime(uint32(idx/10)), []byte{byte(idx)})))
	}
	assert.Equal(t, 20, st.Len())
}
