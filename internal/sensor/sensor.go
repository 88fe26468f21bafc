// Package sensor models the device step-counter sensor and the managers that deliver its events.
package sensor

import (
	"errors"
	"sync"
	"time"
)

// Type identifies a sensor kind.
type Type string

// TypeStepCounter is the cumulative step counter since the device last rebooted.
const TypeStepCounter Type = "step_counter"

// ErrNoSensor is returned by Register when the manager has no sensor of the requested type.
var ErrNoSensor = errors.New("sensor not available")

// Sensor describes a hardware sensor.
type Sensor struct {
	Type Type
	Name string
}

// Event is a single sensor reading.
type Event struct {
	Sensor    Sensor
	Values    []float32
	Accuracy  int
	Timestamp time.Time
}

// Listener receives sensor callbacks. Callbacks run on the manager's delivery goroutine and
// must not block on I/O.
type Listener interface {
	OnSensorChanged(Event)
	OnAccuracyChanged(Sensor, int)
}

// Manager looks up sensors and routes their events to listeners.
type Manager interface {
	DefaultSensor(Type) (Sensor, bool)
	Register(Listener, Sensor) error
	Unregister(Listener)
}

// Normalize extracts the step count from a step-counter event. The first value is truncated
// toward zero; other sensor types and empty events are rejected.
func Normalize(ev Event) (int, bool) {
	if ev.Sensor.Type != TypeStepCounter || len(ev.Values) == 0 {
		return 0, false
	}
	return int(ev.Values[0]), true
}

// StepCounter is the sensor every manager in this package exposes when a step counter exists.
func StepCounter(name string) Sensor {
	if name == "" {
		name = "step counter"
	}
	return Sensor{Type: TypeStepCounter, Name: name}
}

// registry is the listener bookkeeping shared by the managers.
type registry struct {
	sensor    Sensor
	available bool

	mu        sync.RWMutex
	listeners map[Listener]Sensor
}

func newRegistry(s Sensor, available bool) *registry {
	return &registry{sensor: s, available: available, listeners: make(map[Listener]Sensor)}
}

func (r *registry) DefaultSensor(t Type) (Sensor, bool) {
	if !r.available || t != r.sensor.Type {
		return Sensor{}, false
	}
	return r.sensor, true
}

func (r *registry) Register(l Listener, s Sensor) error {
	if !r.available || s.Type != r.sensor.Type {
		return ErrNoSensor
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners[l] = s
	return nil
}

func (r *registry) Unregister(l Listener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.listeners, l)
}

func (r *registry) snapshot() []Listener {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Listener, 0, len(r.listeners))
	for l := range r.listeners {
		out = append(out, l)
	}
	return out
}

func (r *registry) registered() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.listeners)
}

func (r *registry) dispatch(ev Event) {
	for _, l := range r.snapshot() {
		l.OnSensorChanged(ev)
	}
}

func (r *registry) dispatchAccuracy(s Sensor, accuracy int) {
	for _, l := range r.snapshot() {
		l.OnAccuracyChanged(s, accuracy)
	}
}

// Unavailable is a Manager for devices without a step counter.
type Unavailable struct{}

func (Unavailable) DefaultSensor(Type) (Sensor, bool) { return Sensor{}, false }

func (Unavailable) Register(Listener, Sensor) error { return ErrNoSensor }

func (Unavailable) Unregister(Listener) {}
