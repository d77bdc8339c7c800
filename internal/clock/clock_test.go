package clock

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLog() logrus.FieldLogger {
	log := logrus.New()
	log.SetLevel(logrus.DebugLevel)

	return log
}

var origin = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func TestNew_ValidParams(t *testing.T) {
	clk, err := New(testLog(), origin, time.Second, 10)
	require.NoError(t, err)
	assert.NotNil(t, clk)
	assert.Equal(t, time.Second, clk.Period())
}

func TestNew_ZeroPeriod(t *testing.T) {
	_, err := New(testLog(), origin, 0, 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "period must be > 0")
}

func TestNew_ZeroPeriodsPerReport(t *testing.T) {
	_, err := New(testLog(), origin, time.Second, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "periodsPerReport must be > 0")
}

func TestPeriodStartTime(t *testing.T) {
	clk, err := New(testLog(), origin, 10*time.Second, 6)
	require.NoError(t, err)

	tests := []struct {
		period uint64
		want   time.Time
	}{
		{period: 0, want: origin},
		{period: 1, want: origin.Add(10 * time.Second)},
		{period: 6, want: origin.Add(time.Minute)},
		{period: 360, want: origin.Add(time.Hour)},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, clk.PeriodStartTime(tt.period),
			"period %d", tt.period)
	}
}

func TestReportOf(t *testing.T) {
	clk, err := New(testLog(), origin, time.Second, 10)
	require.NoError(t, err)

	assert.Equal(t, uint64(0), clk.ReportOf(9))
	assert.Equal(t, uint64(1), clk.ReportOf(10))
	assert.Equal(t, uint64(12), clk.ReportOf(129))
}

func TestCurrentPeriod(t *testing.T) {
	start := time.Now().Add(-100 * time.Second)

	clk, err := New(testLog(), start, 10*time.Second, 6)
	require.NoError(t, err)

	assert.InDelta(t, 10, clk.CurrentPeriod(), 1)
}

func TestOnPeriodChanged(t *testing.T) {
	start := time.Now().Add(-1 * time.Second)

	clk, err := New(testLog(), start, time.Second, 10)
	require.NoError(t, err)

	periodCh := make(chan uint64, 1)
	clk.OnPeriodChanged(func(period uint64) {
		select {
		case periodCh <- period:
		default:
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, clk.Start(ctx))
	defer clk.Stop()

	select {
	case period := <-periodCh:
		assert.Greater(t, period, uint64(0))
	case <-ctx.Done():
		t.Fatal("timed out waiting for period change")
	}
}

func TestMillisIntoPeriod(t *testing.T) {
	start := time.Now().Add(-5 * time.Second)

	clk, err := New(testLog(), start, 10*time.Second, 6)
	require.NoError(t, err)

	assert.InDelta(t, 5000, clk.MillisIntoPeriod(), 500)
}

func TestStopIdempotent(t *testing.T) {
	clk, err := New(testLog(), time.Now(), time.Second, 10)
	require.NoError(t, err)

	assert.NoError(t, clk.Stop())
	assert.NoError(t, clk.Stop())
}
