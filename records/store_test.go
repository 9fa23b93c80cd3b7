package records

import (
	"errors"
	"testing"

	"github.com/chainwatch/paratracer/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlainStoreItWorks(t *testing.T) {
	st := NewPlainStore[string](Config{MaxBlocks: 1})

	require.NoError(t, st.Insert("key1", NewOnchain(NewTime(1), []byte{1})))
	require.NoError(t, st.Insert("key100", NewOffchain(NewTime(1), []byte{2})))

	a, ok := st.Get("key1")
	require.True(t, ok)
	assert.Equal(t, Onchain, a.Source)
	assert.Equal(t, []byte{1}, a.Data)

	b, ok := st.Get("key100")
	require.True(t, ok)
	assert.Equal(t, Offchain, b.Source)
	assert.Equal(t, []byte{2}, b.Data)

	_, ok = st.Get("key2")
	assert.False(t, ok)

	// This insert prunes the previous bucket at block #1.
	require.NoError(t, st.Insert("key2", NewOnchain(NewTime(100), []byte{100})))
	c, ok := st.Get("key2")
	require.True(t, ok)
	assert.Equal(t, []byte{100}, c.Data)

	_, ok = st.Get("key1")
	assert.False(t, ok)
	_, ok = st.Get("key100")
	assert.False(t, ok)
}

// TestPlainStorePrune is scenario S2: inserting 1000 entries across 100
// distinct block buckets (10 keys/block) into a store bounded to 2 blocks
// leaves exactly 20 entries (10 keys/block * 2 max blocks).
func TestPlainStorePrune(t *testing.T) {
	st := NewPlainStore[int](Config{MaxBlocks: 2})

	for idx := 0; idx < 1000; idx++ {
		require.NoError(t, st.Insert(idx, NewOnchain(NewTime(uint32(idx/10)), []byte{byte(idx)})))
	}

	assert.Equal(t, 20, st.Len())
}

// TestPlainStoreDuplicate is scenario S3: a duplicate insert is rejected,
// the original value is retained, and an explicit Replace succeeds.
func TestPlainStoreDuplicate(t *testing.T) {
	st := NewPlainStore[string](Config{MaxBlocks: 1})

	require.NoError(t, st.Insert("key", NewOnchain(NewTime(1), []byte{1})))

	err := st.Insert("key", NewOnchain(NewTime(1), []byte{2}))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.Duplicate))

	a, ok := st.Get("key")
	require.True(t, ok)
	assert.Equal(t, []byte{1}, a.Data)

	_, replaced := st.Replace("key", NewOnchain(NewTime(1), []byte{2}))
	assert.True(t, replaced)

	a, ok = st.Get("key")
	require.True(t, ok)
	assert.Equal(t, []byte{2}, a.Data)
}

func TestPlainStoreReplaceMissingFails(t *testing.T) {
	st := NewPlainStore[string](Config{MaxBlocks: 1})
	_, replaced := st.Replace("missing", NewOnchain(NewTime(1), []byte{1}))
	assert.False(t, replaced)
}
