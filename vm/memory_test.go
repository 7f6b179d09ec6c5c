package vm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemoryStructMemberRoundTrip(t *testing.T) {
	m := NewMemory()
	m.AllocStruct(1, 8)
	require.NoError(t, m.StoreStructMember(1, 0, 0xAABBCCDD))
	v, err := m.LoadStructMember(1, 0)
	require.NoError(t, err)
	require.Equal(t, uint32(0xAABBCCDD), v)
}

// TestMemoryBitFieldPacking: two adjacent bit-fields in the same word
// must not clobber each other.
func TestMemoryBitFieldPacking(t *testing.T) {
	m := NewMemory()
	m.AllocStruct(1, 4)
	require.NoError(t, m.StoreStructMemberBit(1, 0, 0, 4, 0xF))
	require.NoError(t, m.StoreStructMemberBit(1, 0, 4, 4, 0x3))

	lo, err := m.LoadStructMemberBit(1, 0, 0, 4)
	require.NoError(t, err)
	require.Equal(t, uint32(0xF), lo)

	hi, err := m.LoadStructMemberBit(1, 0, 4, 4)
	require.NoError(t, err)
	require.Equal(t, uint32(0x3), hi)
}

// TestMemoryUnionOverlap: writing a struct member and reading
// overlapping byte-range members observes the
// little-endian byte view of the same storage, since a union's fields all
// share offset 0.
func TestMemoryUnionOverlap(t *testing.T) {
	m := NewMemory()
	m.AllocStruct(1, 4)
	require.NoError(t, m.StoreStructMember(1, 0, 0x01020304))

	b0, err := m.LoadStructMemberBit(1, 0, 0, 8)
	require.NoError(t, err)
	require.Equal(t, uint32(0x04), b0)

	b1, err := m.LoadStructMemberBit(1, 0, 8, 8)
	require.NoError(t, err)
	require.Equal(t, uint32(0x03), b1)
}

func TestMemoryArrayBoundsError(t *testing.T) {
	m := NewMemory()
	m.AllocArray(1, 4)
	require.NoError(t, m.StoreArrayElem(1, 3, 99))
	_, err := m.LoadArrayElem(1, 3)
	require.NoError(t, err)

	_, err = m.LoadArrayElem(1, 4)
	require.Error(t, err)
}

func TestMemoryHasArrayDistinguishesFromScalar(t *testing.T) {
	m := NewMemory()
	m.Store(1, 42)
	require.False(t, m.HasArray(1))

	m.AllocArray(2, 3)
	require.True(t, m.HasArray(2))
}

func TestFloatBitsRoundTrip(t *testing.T) {
	require.Equal(t, float32(3.5), bitsToFloat(floatBits(3.5)))
}
