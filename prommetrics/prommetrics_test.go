package prommetrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := New(reg, "")
	require.NoError(t, err)

	c.RecordLoad(3, time.Millisecond, nil)
	c.RecordLoad(0, time.Millisecond, errors.New("boom"))
	c.RecordWrite(100, time.Millisecond, nil)
	c.RecordWrite(20, time.Millisecond, nil)
	c.RecordCompaction(2)
	c.RecordRecovery(7, time.Second, nil)

	assert.InDelta(t, 120, testutil.ToFloat64(c.bytesWritten), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(c.compactions), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(c.foldedLevels), 0)
	assert.InDelta(t, 7, testutil.ToFloat64(c.recoveredCommits), 0)
	assert.Equal(t, 4, testutil.CollectAndCount(c.opLatency))

	n, err := testutil.GatherAndCount(reg, "revindex_written_bytes_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestNew_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(reg, "x")
	require.NoError(t, err)
	_, err = New(reg, "x")
	assert.Error(t, err)
}
