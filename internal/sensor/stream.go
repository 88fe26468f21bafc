package sensor

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/thejerf/suture/v4"

	"example.com/stepcount/internal/logging"
)

// wireEvent is one newline-delimited JSON line, e.g.
//
//	{"type":"step_counter","values":[42.0],"accuracy":3}
//	{"type":"step_counter","kind":"accuracy","accuracy":1}
type wireEvent struct {
	Type      Type      `json:"type"`
	Kind      string    `json:"kind,omitempty"`
	Values    []float32 `json:"values"`
	Accuracy  int       `json:"accuracy"`
	Timestamp int64     `json:"timestamp_ms,omitempty"`
}

const kindAccuracy = "accuracy"

// StreamManager replays sensor events read from a newline-delimited JSON stream, such as a
// recorded trace or a pipe from a device bridge. Every decoded event goes to every registered
// listener; events that arrive while no listener is registered are dropped.
type StreamManager struct {
	*registry

	name   string
	r      io.Reader
	logger zerolog.Logger
	now    func() time.Time
}

// NewStreamManager returns a manager exposing a step counter whose events come from r.
// name labels the source in logs.
func NewStreamManager(name string, r io.Reader) *StreamManager {
	return &StreamManager{
		registry: newRegistry(StepCounter(name), true),
		name:     name,
		r:        r,
		logger:   logging.Component("sensor-stream"),
		now:      time.Now,
	}
}

// Serve implements suture.Service. It returns suture.ErrDoNotRestart once the stream is exhausted.
func (m *StreamManager) Serve(ctx context.Context) error {
	lines := make(chan []byte)
	readErr := make(chan error, 1)

	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(m.r)
		for scanner.Scan() {
			line := bytes.Clone(scanner.Bytes())
			select {
			case lines <- line:
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			if c, ok := m.r.(io.Closer); ok {
				_ = c.Close()
			}
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				var err error
				select {
				case err = <-readErr:
				default:
				}
				if err != nil {
					return fmt.Errorf("read sensor stream %s: %w", m.name, err)
				}
				m.logger.Info().Str("source", m.name).Msg("sensor stream exhausted")
				return suture.ErrDoNotRestart
			}
			m.handleLine(line)
		}
	}
}

func (m *StreamManager) handleLine(line []byte) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return
	}

	var we wireEvent
	if err := json.Unmarshal(line, &we); err != nil {
		m.logger.Warn().Err(err).Str("source", m.name).Msg("skipping malformed sensor line")
		return
	}

	s := Sensor{Type: we.Type, Name: m.sensor.Name}
	if we.Kind == kindAccuracy {
		m.dispatchAccuracy(s, we.Accuracy)
		return
	}

	ts := m.now()
	if we.Timestamp > 0 {
		ts = time.UnixMilli(we.Timestamp)
	}
	m.dispatch(Event{Sensor: s, Values: we.Values, Accuracy: we.Accuracy, Timestamp: ts})
}

func (m *StreamManager) String() string {
	return "sensor-stream(" + m.name + ")"
}
