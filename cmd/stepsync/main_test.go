package main

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/stepcount/internal/config"
	"example.com/stepcount/internal/domain"
	"example.com/stepcount/internal/logging"
	"example.com/stepcount/internal/permission"
	"example.com/stepcount/internal/screen"
	"example.com/stepcount/internal/sensor"
	"example.com/stepcount/internal/supervisor"
)

type emptyStore struct{}

func (emptyStore) All(context.Context) ([]domain.StepCount, error) { return nil, nil }
func (emptyStore) Latest(context.Context) (*domain.StepCount, error) { return nil, nil }

type recordingSubmitter struct {
	mu     sync.Mutex
	counts []int
}

func (r *recordingSubmitter) Submit(_ context.Context, count int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts = append(r.counts, count)
	return nil
}

func (r *recordingSubmitter) snapshot() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.counts...)
}

func TestStartScreenDeliversEveryStreamedEvent(t *testing.T) {
	trace := `{"type":"step_counter","values":[42.0]}
{"type":"step_counter","values":[57.0]}
`
	manager := sensor.NewStreamManager("trace", strings.NewReader(trace))
	submitter := &recordingSubmitter{}
	view := screen.NewTextView(nil)

	tree := supervisor.New("stepsync-test", logging.NewSlogLogger("supervisor"), supervisor.TreeConfig{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := tree.ServeBackground(ctx)

	scr := screen.New(screen.Config{
		Display:           view,
		Sensors:           manager,
		Permissions:       permission.Static{Grant: true},
		RequirePermission: true,
		Store:             emptyStore{},
		Sync:              submitter,
		StartupView:       screen.ViewAll,
	})
	require.NoError(t, startScreen(ctx, scr, tree, manager))

	require.Eventually(t, func() bool {
		return len(submitter.snapshot()) == 2
	}, 2*time.Second, 10*time.Millisecond)
	require.Equal(t, []int{42, 57}, submitter.snapshot())
	require.Equal(t, screen.FormatSteps(57), view.Text())

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("supervisor tree did not stop")
	}
}

func TestStartScreenWithoutSourceOnlyRenders(t *testing.T) {
	tree := supervisor.New("stepsync-test", logging.NewSlogLogger("supervisor"), supervisor.TreeConfig{})
	view := screen.NewTextView(nil)
	scr := screen.New(screen.Config{
		Display:     view,
		Sensors:     sensor.Unavailable{},
		Permissions: permission.Static{Grant: true},
		Store:       emptyStore{},
		Sync:        &recordingSubmitter{},
	})

	require.NoError(t, startScreen(context.Background(), scr, tree, nil))
	require.Equal(t, screen.MsgSensorUnavailable, view.Text())
}

func TestSensorManagerSources(t *testing.T) {
	manager, source, err := sensorManager(config.SensorConfig{Source: "none"})
	require.NoError(t, err)
	require.Nil(t, source)
	_, ok := manager.DefaultSensor(sensor.TypeStepCounter)
	require.False(t, ok)

	manager, source, err = sensorManager(config.SensorConfig{Source: "simulated", Interval: time.Second})
	require.NoError(t, err)
	require.NotNil(t, source)
	_, ok = manager.DefaultSensor(sensor.TypeStepCounter)
	require.True(t, ok)

	_, _, err = sensorManager(config.SensorConfig{Source: "/does/not/exist.ndjson"})
	require.Error(t, err)
}
