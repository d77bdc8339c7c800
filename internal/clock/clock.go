// Package clock provides the KPM granularity-period wall clock. A period is
// one granularity interval; a report groups periodsPerReport periods.
package clock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethpandaops/ethwallclock"
	"github.com/sirupsen/logrus"
)

// PeriodChangedFunc is called when the wall clock advances to a new
// granularity period.
type PeriodChangedFunc func(period uint64)

// Clock ticks granularity periods relative to a fixed origin.
type Clock interface {
	// Start begins the clock, subscribing to period changes.
	Start(ctx context.Context) error
	// Stop terminates the clock.
	Stop() error
	// CurrentPeriod returns the current granularity period number.
	CurrentPeriod() uint64
	// PeriodStartTime returns the wall-clock start time of the given period.
	PeriodStartTime(period uint64) time.Time
	// ReportOf returns the reporting period the given period belongs to.
	ReportOf(period uint64) uint64
	// MillisIntoPeriod returns how many milliseconds have elapsed
	// in the current period.
	MillisIntoPeriod() uint64
	// Period returns the granularity period duration.
	Period() time.Duration
	// OnPeriodChanged registers a callback for period transitions.
	OnPeriodChanged(fn PeriodChangedFunc)
}

type clock struct {
	log              logrus.FieldLogger
	origin           time.Time
	period           time.Duration
	periodsPerReport uint64
	wallclock        *ethwallclock.EthereumBeaconChain

	mu        sync.RWMutex
	callbacks []PeriodChangedFunc
}

// New creates a new Clock. origin is the start of period zero.
func New(
	log logrus.FieldLogger,
	origin time.Time,
	period time.Duration,
	periodsPerReport uint64,
) (Clock, error) {
	if period <= 0 {
		return nil, fmt.Errorf("period must be > 0")
	}

	if periodsPerReport == 0 {
		return nil, fmt.Errorf("periodsPerReport must be > 0")
	}

	wc := ethwallclock.NewEthereumBeaconChain(origin, period, periodsPerReport)

	return &clock{
		log:              log.WithField("component", "clock"),
		origin:           origin,
		period:           period,
		periodsPerReport: periodsPerReport,
		wallclock:        wc,
		callbacks:        make([]PeriodChangedFunc, 0, 4),
	}, nil
}

func (c *clock) Start(_ context.Context) error {
	// ethwallclock calls this in a new goroutine on each slot change.
	c.wallclock.OnSlotChanged(func(slot ethwallclock.Slot) {
		period := slot.Number()

		c.log.WithField("period", period).
			Debug("Granularity period changed")

		c.mu.RLock()
		callbacks := c.callbacks
		c.mu.RUnlock()

		for _, fn := range callbacks {
			fn(period)
		}
	})

	c.log.WithFields(logrus.Fields{
		"origin":             c.origin,
		"period":             c.period,
		"periods_per_report": c.periodsPerReport,
	}).Info("Clock started")

	return nil
}

func (c *clock) Stop() error {
	if c.wallclock != nil {
		c.wallclock.Stop()
	}

	return nil
}

func (c *clock) CurrentPeriod() uint64 {
	return c.wallclock.Slots().Current().Number()
}

func (c *clock) PeriodStartTime(period uint64) time.Time {
	return c.origin.Add(time.Duration(period) * c.period)
}

func (c *clock) ReportOf(period uint64) uint64 {
	return period / c.periodsPerReport
}

func (c *clock) MillisIntoPeriod() uint64 {
	current := c.wallclock.Slots().Current()
	elapsed := time.Since(current.TimeWindow().Start())

	return uint64(elapsed.Milliseconds())
}

func (c *clock) Period() time.Duration {
	return c.period
}

func (c *clock) OnPeriodChanged(fn PeriodChangedFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.callbacks = append(c.callbacks, fn)
}
