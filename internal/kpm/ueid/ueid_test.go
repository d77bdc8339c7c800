package ueid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethpandaops/e2kpm/internal/kpm/telemetry"
)

func TestIndexTranslator(t *testing.T) {
	tr := IndexTranslator{}

	idx, ok := tr.ToIndex("17")
	require.True(t, ok)
	assert.Equal(t, telemetry.UEIndex(17), idx)

	id, ok := tr.ToID(17)
	require.True(t, ok)
	assert.Equal(t, ID("17"), id)

	for _, bad := range []ID{"", "-1", "abc", "1024", "70000"} {
		_, ok := tr.ToIndex(bad)
		assert.False(t, ok, string(bad))
	}

	_, ok = tr.ToID(telemetry.MaxNofUEs)
	assert.False(t, ok)
}

func TestMapTranslator_BindUnbind(t *testing.T) {
	m := NewMapTranslator()

	require.True(t, m.Bind("imsi-1", 4))
	require.True(t, m.Bind("imsi-2", 5))

	idx, ok := m.ToIndex("imsi-1")
	require.True(t, ok)
	assert.Equal(t, telemetry.UEIndex(4), idx)

	// Rebinding an index drops the old identity.
	require.True(t, m.Bind("imsi-3", 4))

	_, ok = m.ToIndex("imsi-1")
	assert.False(t, ok)

	id, ok := m.ToID(4)
	require.True(t, ok)
	assert.Equal(t, ID("imsi-3"), id)
	assert.Equal(t, 2, m.Len())

	m.Unbind(4)
	_, ok = m.ToID(4)
	assert.False(t, ok)
	assert.Equal(t, 1, m.Len())

	assert.False(t, m.Bind("", 1))
	assert.False(t, m.Bind("x", telemetry.MaxNofUEs))
}

func TestMapTranslator_BindRNTIs(t *testing.T) {
	m := NewMapTranslator()

	report := telemetry.SchedulerCellMetrics{
		UEs: []telemetry.SchedulerUEMetrics{
			{UEIndex: 0, RNTI: 0x4601},
			{UEIndex: 1, RNTI: 0x4602},
		},
	}

	assert.Equal(t, 2, m.BindRNTIs(report))
	assert.Equal(t, 0, m.BindRNTIs(report))

	idx, ok := m.ToIndex(RNTIID(0x4602))
	require.True(t, ok)
	assert.Equal(t, telemetry.UEIndex(1), idx)
}

func TestProto(t *testing.T) {
	id := ID("001010123456789")
	assert.Equal(t, id, FromProto(id.Proto()))
	assert.Equal(t, ID(""), FromProto(nil))
}
