package screen

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"example.com/stepcount/internal/domain"
	"example.com/stepcount/internal/permission"
	"example.com/stepcount/internal/sensor"
	"example.com/stepcount/internal/sink/restapi"
)

type fakeManager struct {
	available  bool
	registered []sensor.Listener
}

func (m *fakeManager) DefaultSensor(t sensor.Type) (sensor.Sensor, bool) {
	if !m.available || t != sensor.TypeStepCounter {
		return sensor.Sensor{}, false
	}
	return sensor.StepCounter("fake"), true
}

func (m *fakeManager) Register(l sensor.Listener, _ sensor.Sensor) error {
	m.registered = append(m.registered, l)
	return nil
}

func (m *fakeManager) Unregister(l sensor.Listener) {
	out := m.registered[:0]
	for _, r := range m.registered {
		if r != l {
			out = append(out, r)
		}
	}
	m.registered = out
}

type fakeStore struct {
	counts []domain.StepCount
	err    error
}

func (s *fakeStore) All(context.Context) ([]domain.StepCount, error) {
	return s.counts, s.err
}

func (s *fakeStore) Latest(context.Context) (*domain.StepCount, error) {
	if s.err != nil || len(s.counts) == 0 {
		return nil, s.err
	}
	last := s.counts[len(s.counts)-1]
	return &last, nil
}

type fakeRemote struct {
	payloads []restapi.Payload
	err      error
}

func (r *fakeRemote) ListStepCounts(context.Context) ([]restapi.Payload, error) {
	return r.payloads, r.err
}

type fakeSync struct {
	mu     sync.Mutex
	counts []int
}

func (f *fakeSync) Submit(_ context.Context, count int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts = append(f.counts, count)
	return nil
}

type fixture struct {
	view    *TextView
	manager *fakeManager
	store   *fakeStore
	sync    *fakeSync
	screen  *Screen
}

func newFixture(t *testing.T, available bool, perms permission.Checker, view StartupView) *fixture {
	t.Helper()
	f := &fixture{
		view:    NewTextView(nil),
		manager: &fakeManager{available: available},
		store:   &fakeStore{counts: []domain.StepCount{{ID: 1, Count: 10}, {ID: 2, Count: 25}}},
		sync:    &fakeSync{},
	}
	f.screen = New(Config{
		Display:           f.view,
		Sensors:           f.manager,
		Permissions:       perms,
		RequirePermission: true,
		Store:             f.store,
		Remote:            &fakeRemote{payloads: []restapi.Payload{{ID: 7, Count: 142}}},
		Sync:              f.sync,
		StartupView:       view,
	})
	return f
}

func stepEvent(v float32) sensor.Event {
	return sensor.Event{Sensor: sensor.StepCounter("fake"), Values: []float32{v}}
}

func TestCreateWithoutSensor(t *testing.T) {
	f := newFixture(t, false, permission.Static{Grant: true}, ViewAll)

	require.NoError(t, f.screen.Create(context.Background()))
	require.NoError(t, f.screen.Resume())

	require.Equal(t, MsgSensorUnavailable, f.view.Text())
	require.Empty(t, f.manager.registered)
	require.Empty(t, f.sync.counts)
}

func TestCreatePermissionDenied(t *testing.T) {
	f := newFixture(t, true, permission.Static{Grant: false}, ViewAll)

	require.NoError(t, f.screen.Create(context.Background()))
	require.NoError(t, f.screen.Resume())

	require.Equal(t, MsgPermissionDenied, f.view.Text())
	require.Empty(t, f.manager.registered)
}

func TestCreatePermissionNotRequired(t *testing.T) {
	f := newFixture(t, true, permission.Static{Grant: false}, ViewAll)
	f.screen.cfg.RequirePermission = false

	require.NoError(t, f.screen.Create(context.Background()))
	require.NoError(t, f.screen.Resume())
	require.Len(t, f.manager.registered, 1)
}

func TestCreateListsAllLocalRecords(t *testing.T) {
	var out bytes.Buffer
	f := newFixture(t, true, permission.Static{Grant: true}, ViewAll)
	f.screen.cfg.Display = NewTextView(&out)

	require.NoError(t, f.screen.Create(context.Background()))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Equal(t, MsgInitialized, lines[0])
	require.Equal(t, "All Steps:\nID: 1, Steps: 10\nID: 2, Steps: 25", strings.Join(lines[1:], "\n"))
}

func TestCreateLatestSeedsCount(t *testing.T) {
	f := newFixture(t, true, permission.Static{Grant: true}, ViewLatest)

	require.NoError(t, f.screen.Create(context.Background()))
	require.Equal(t, "Steps: 25", f.view.Text())
	require.Equal(t, 25, f.screen.StepCount())
}

func TestCreateRemoteListing(t *testing.T) {
	f := newFixture(t, true, permission.Static{Grant: true}, ViewRemote)

	require.NoError(t, f.screen.Create(context.Background()))
	require.Equal(t, "All Steps:\nID: 7, Steps: 142", f.view.Text())
}

func TestCreateStoreFailureKeepsInitMessage(t *testing.T) {
	f := newFixture(t, true, permission.Static{Grant: true}, ViewAll)
	f.store.err = errors.New("locked")

	require.NoError(t, f.screen.Create(context.Background()))
	require.Equal(t, MsgInitialized, f.view.Text())
}

func TestSensorEventUpdatesDisplayAndSubmits(t *testing.T) {
	f := newFixture(t, true, permission.Static{Grant: true}, ViewAll)
	require.NoError(t, f.screen.Create(context.Background()))
	require.NoError(t, f.screen.Resume())
	require.Len(t, f.manager.registered, 1)

	f.screen.OnSensorChanged(stepEvent(42.0))
	f.screen.OnSensorChanged(sensor.Event{Sensor: sensor.Sensor{Type: "accelerometer"}, Values: []float32{9.8}})
	f.screen.OnAccuracyChanged(sensor.StepCounter("fake"), 1)

	require.Equal(t, "Steps: 42", f.view.Text())
	require.Equal(t, 42, f.screen.StepCount())
	require.Equal(t, []int{42}, f.sync.counts)
}

func TestPauseUnregistersAndResumeRegistersOnce(t *testing.T) {
	f := newFixture(t, true, permission.Static{Grant: true}, ViewAll)
	require.NoError(t, f.screen.Create(context.Background()))

	require.NoError(t, f.screen.Resume())
	require.NoError(t, f.screen.Resume())
	require.Len(t, f.manager.registered, 1)

	f.screen.Pause()
	require.Empty(t, f.manager.registered)

	require.NoError(t, f.screen.Resume())
	require.Len(t, f.manager.registered, 1)
}

func TestFormatListingEmpty(t *testing.T) {
	require.Equal(t, "All Steps:\n", FormatListing(nil))
}
