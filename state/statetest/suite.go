// Package statetest holds a conformance suite every state.Backend must pass.
package statetest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tarungka/rewind/state"
)

// Factory returns a fresh, empty, open backend. Cleanup is registered on t.
type Factory func(t *testing.T) state.Backend

// Run exercises the ordering, uniqueness and pruning contract of a backend.
func Run(t *testing.T, newBackend Factory) {
	t.Run("InsertGet", func(t *testing.T) {
		b := newBackend(t)
		require.NoError(t, b.Insert(5, []byte("five")))

		got, err := b.Get(5)
		require.NoError(t, err)
		assert.Equal(t, []byte("five"), got)

		_, err = b.Get(6)
		assert.ErrorIs(t, err, state.ErrKeyNotFound)
	})

	t.Run("InsertExisting", func(t *testing.T) {
		b := newBackend(t)
		require.NoError(t, b.Insert(5, []byte("first")))

		err := b.Insert(5, []byte("second"))
		assert.ErrorIs(t, err, state.ErrKeyExists)

		got, err := b.Get(5)
		require.NoError(t, err)
		assert.Equal(t, []byte("first"), got, "existing value must be left unchanged")
	})

	t.Run("ValuesAreCopied", func(t *testing.T) {
		b := newBackend(t)
		v := []byte("abc")
		require.NoError(t, b.Insert(1, v))
		v[0] = 'z'

		got, err := b.Get(1)
		require.NoError(t, err)
		assert.Equal(t, []byte("abc"), got)
		got[0] = 'y'

		again, err := b.Get(1)
		require.NoError(t, err)
		assert.Equal(t, []byte("abc"), again)
	})

	t.Run("Floor", func(t *testing.T) {
		b := newBackend(t)
		for _, k := range []uint64{10, 20, 30, 256, 257} {
			require.NoError(t, b.Insert(k, state.EncodeKey(k)))
		}

		tests := []struct {
			name   string
			target uint64
			found  uint64
			ok     bool
		}{
			{name: "below all", target: 9, ok: false},
			{name: "exact first", target: 10, found: 10, ok: true},
			{name: "between", target: 25, found: 20, ok: true},
			{name: "exact middle", target: 30, found: 30, ok: true},
			{name: "byte boundary", target: 256, found: 256, ok: true},
			{name: "between byte boundary", target: 255, found: 30, ok: true},
			{name: "above all", target: 1 << 40, found: 257, ok: true},
			{name: "max", target: ^uint64(0), found: 257, ok: true},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				found, v, ok, err := b.Floor(tt.target)
				require.NoError(t, err)
				assert.Equal(t, tt.ok, ok)
				if tt.ok {
					assert.Equal(t, tt.found, found)
					assert.Equal(t, state.EncodeKey(tt.found), v)
				}
			})
		}
	})

	t.Run("FloorEmpty", func(t *testing.T) {
		b := newBackend(t)
		_, _, ok, err := b.Floor(100)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("DeleteAbove", func(t *testing.T) {
		b := newBackend(t)
		for _, k := range []uint64{1, 2, 3, 4, 5} {
			require.NoError(t, b.Insert(k, []byte{byte(k)}))
		}

		n, err := b.DeleteAbove(3)
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		keys, err := b.Keys()
		require.NoError(t, err)
		assert.Equal(t, []uint64{1, 2, 3}, keys)

		n, err = b.DeleteAbove(3)
		require.NoError(t, err)
		assert.Equal(t, 0, n)

		n, err = b.DeleteAbove(^uint64(0))
		require.NoError(t, err)
		assert.Equal(t, 0, n)

		// a removed key may be inserted again
		require.NoError(t, b.Insert(4, []byte("again")))
	})

	t.Run("DeleteAll", func(t *testing.T) {
		b := newBackend(t)
		for _, k := range []uint64{7, 8} {
			require.NoError(t, b.Insert(k, nil))
		}
		require.NoError(t, b.DeleteAll())

		keys, err := b.Keys()
		require.NoError(t, err)
		assert.Empty(t, keys)
		require.NoError(t, b.Insert(7, []byte("x")))
	})

	t.Run("KeysAscending", func(t *testing.T) {
		b := newBackend(t)
		for _, k := range []uint64{300, 2, 1 << 33, 15} {
			require.NoError(t, b.Insert(k, []byte("v")))
		}
		keys, err := b.Keys()
		require.NoError(t, err)
		assert.Equal(t, []uint64{2, 15, 300, 1 << 33}, keys)
	})
}
