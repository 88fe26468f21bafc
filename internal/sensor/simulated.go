package sensor

import (
	"context"
	"math/rand/v2"
	"sync/atomic"
	"time"
)

// SimulatedManager emits a synthetic cumulative step count at a fixed interval.
type SimulatedManager struct {
	*registry

	interval time.Duration
	maxStep  int
	total    atomic.Int64
}

// NewSimulatedManager starts counting at start and adds between 0 and maxStep steps per tick.
func NewSimulatedManager(interval time.Duration, start, maxStep int) *SimulatedManager {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if maxStep <= 0 {
		maxStep = 20
	}
	m := &SimulatedManager{
		registry: newRegistry(StepCounter("simulated step counter"), true),
		interval: interval,
		maxStep:  maxStep,
	}
	m.total.Store(int64(start))
	return m
}

// Serve implements suture.Service.
func (m *SimulatedManager) Serve(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			m.Tick(now)
		}
	}
}

// Tick advances the counter once and delivers the reading. Ticks while no listener is
// registered still advance the counter, as the hardware keeps counting while the screen is paused.
func (m *SimulatedManager) Tick(now time.Time) {
	total := m.total.Add(int64(rand.IntN(m.maxStep + 1)))
	if m.registered() == 0 {
		return
	}
	m.dispatch(Event{
		Sensor:    m.sensor,
		Values:    []float32{float32(total)},
		Accuracy:  3,
		Timestamp: now,
	})
}

func (m *SimulatedManager) String() string {
	return "sensor-simulated"
}
