package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Result Tests
// =============================================================================

func record(step, addr string) Record {
	return Record{
		Step:         step,
		Template:     step,
		Finalization: Finalization{Address: Address(addr), Confirmations: 1},
	}
}

func TestResult_RecordAndLookup(t *testing.T) {
	r := NewResult()
	require.NoError(t, r.Record(record("X", "addrX")))
	require.NoError(t, r.Record(record("Y", "addrY")))

	addr, ok := r.Address("X")
	require.True(t, ok)
	assert.Equal(t, Address("addrX"), addr)

	_, ok = r.Address("Z")
	assert.False(t, ok)

	assert.Equal(t, 2, r.Len())
	assert.Equal(t, map[string]Address{"X": "addrX", "Y": "addrY"}, r.Addresses())
}

func TestResult_RecordsInInsertionOrder(t *testing.T) {
	r := NewResult()
	require.NoError(t, r.Record(record("B", "b")))
	require.NoError(t, r.Record(record("A", "a")))

	records := r.Records()
	require.Len(t, records, 2)
	assert.Equal(t, "B", records[0].Step)
	assert.Equal(t, "A", records[1].Step)
}

func TestResult_DuplicateWriteIsInvariantViolation(t *testing.T) {
	r := NewResult()
	require.NoError(t, r.Record(record("X", "addrX")))

	err := r.Record(record("X", "other"))
	assert.ErrorIs(t, err, ErrInvariantViolation)

	// First write wins and is never mutated
	addr, _ := r.Address("X")
	assert.Equal(t, Address("addrX"), addr)
	assert.Equal(t, 1, r.Len())
}

func TestResult_RejectsIncompleteRecords(t *testing.T) {
	r := NewResult()
	assert.ErrorIs(t, r.Record(record("", "addr")), ErrInvariantViolation)
	assert.ErrorIs(t, r.Record(record("X", "")), ErrInvariantViolation)
	assert.Equal(t, 0, r.Len())
}

func TestResult_NilSafe(t *testing.T) {
	var r *Result
	assert.Equal(t, 0, r.Len())
	assert.Nil(t, r.Records())
	assert.Empty(t, r.Addresses())
	_, ok := r.Get("X")
	assert.False(t, ok)
}
