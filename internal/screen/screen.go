// Package screen wires the step-counter sensor, the permission boundary and the sync
// orchestrator behind a single text display.
package screen

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"example.com/stepcount/internal/domain"
	"example.com/stepcount/internal/logging"
	"example.com/stepcount/internal/observability"
	"example.com/stepcount/internal/permission"
	"example.com/stepcount/internal/sensor"
	"example.com/stepcount/internal/sink/restapi"
)

// StartupView selects what Create shows once the step counter is ready.
type StartupView string

const (
	// ViewAll lists every local record.
	ViewAll StartupView = "all"
	// ViewLatest shows the most recent local count and resumes counting from it.
	ViewLatest StartupView = "latest"
	// ViewRemote lists the records held by the step-count API.
	ViewRemote StartupView = "remote"
)

// LocalStore is the read side of the local store.
type LocalStore interface {
	All(ctx context.Context) ([]domain.StepCount, error)
	Latest(ctx context.Context) (*domain.StepCount, error)
}

// RemoteLister reads the records held by the API.
type RemoteLister interface {
	ListStepCounts(ctx context.Context) ([]restapi.Payload, error)
}

// Submitter hands a count to the background sync.
type Submitter interface {
	Submit(ctx context.Context, count int) error
}

// Config collects the screen's collaborators.
type Config struct {
	Display           Display
	Sensors           sensor.Manager
	Permissions       permission.Checker
	RequirePermission bool
	Store             LocalStore
	Remote            RemoteLister
	Sync              Submitter
	StartupView       StartupView
}

// Screen follows the create, resume, pause lifecycle of the step-count screen and implements
// sensor.Listener.
type Screen struct {
	cfg    Config
	logger zerolog.Logger

	mu         sync.Mutex
	ctx        context.Context
	sensor     sensor.Sensor
	hasSensor  bool
	permitted  bool
	registered bool
	stepCount  int
}

var _ sensor.Listener = (*Screen)(nil)

// New returns a screen; call Create before Resume.
func New(cfg Config) *Screen {
	if cfg.StartupView == "" {
		cfg.StartupView = ViewAll
	}
	return &Screen{cfg: cfg, logger: logging.Component("screen"), ctx: context.Background()}
}

// Create looks up the step counter, resolves the permission and renders the startup view.
// Without a step counter the screen only shows a message and never registers for events.
// A denied permission is final for the screen's lifetime.
func (s *Screen) Create(ctx context.Context) error {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	sn, ok := s.cfg.Sensors.DefaultSensor(sensor.TypeStepCounter)
	if !ok {
		s.logger.Warn().Msg("no step counter sensor")
		s.cfg.Display.SetText(MsgSensorUnavailable)
		return nil
	}

	granted, err := s.resolvePermission(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.sensor = sn
	s.hasSensor = true
	s.permitted = granted
	s.mu.Unlock()

	if !granted {
		s.logger.Warn().Str("permission", string(permission.ActivityRecognition)).Msg("permission denied")
		s.cfg.Display.SetText(MsgPermissionDenied)
		return nil
	}

	s.cfg.Display.SetText(MsgInitialized)
	s.renderStartupView(ctx)
	return nil
}

func (s *Screen) resolvePermission(ctx context.Context) (bool, error) {
	if !s.cfg.RequirePermission {
		return true, nil
	}
	perm := permission.ActivityRecognition
	if s.cfg.Permissions.Granted(perm) {
		return true, nil
	}
	granted, err := s.cfg.Permissions.Request(ctx, perm)
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		s.logger.Error().Err(err).Msg("permission request failed")
		return false, nil
	}
	return granted, nil
}

func (s *Screen) renderStartupView(ctx context.Context) {
	switch s.cfg.StartupView {
	case ViewLatest:
		latest, err := s.cfg.Store.Latest(ctx)
		if err != nil {
			s.logger.Error().Err(err).Msg("failed to load latest step count")
			return
		}
		if latest == nil {
			return
		}
		s.mu.Lock()
		s.stepCount = latest.Count
		s.mu.Unlock()
		s.cfg.Display.SetText(FormatSteps(latest.Count))

	case ViewRemote:
		if s.cfg.Remote == nil {
			return
		}
		payloads, err := s.cfg.Remote.ListStepCounts(ctx)
		if err != nil {
			s.logger.Error().Err(err).Msg("failed to load step counts from API")
			return
		}
		counts := make([]domain.StepCount, 0, len(payloads))
		for _, p := range payloads {
			counts = append(counts, domain.StepCount{ID: p.ID, Count: p.Count})
		}
		s.cfg.Display.SetText(FormatListing(counts))

	default:
		counts, err := s.cfg.Store.All(ctx)
		if err != nil {
			s.logger.Error().Err(err).Msg("failed to load step counts")
			return
		}
		s.cfg.Display.SetText(FormatListing(counts))
	}
}

// Resume starts receiving step-counter events.
func (s *Screen) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasSensor || !s.permitted || s.registered {
		return nil
	}
	if err := s.cfg.Sensors.Register(s, s.sensor); err != nil {
		return fmt.Errorf("register step counter listener: %w", err)
	}
	s.registered = true
	s.logger.Debug().Str("sensor", s.sensor.Name).Msg("listener registered")
	return nil
}

// Pause stops receiving step-counter events.
func (s *Screen) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.registered {
		return
	}
	s.cfg.Sensors.Unregister(s)
	s.registered = false
	s.logger.Debug().Msg("listener unregistered")
}

// StepCount returns the last count shown.
func (s *Screen) StepCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stepCount
}

// OnSensorChanged shows the new count and hands it to the background sync.
func (s *Screen) OnSensorChanged(ev sensor.Event) {
	count, ok := sensor.Normalize(ev)
	if !ok {
		return
	}
	observability.RecordSensorEvent()

	s.mu.Lock()
	s.stepCount = count
	ctx := s.ctx
	s.mu.Unlock()

	s.cfg.Display.SetText(FormatSteps(count))

	ctx = logging.ContextWithNewCorrelationID(ctx)
	if err := s.cfg.Sync.Submit(ctx, count); err != nil {
		logging.Ctx(ctx, s.logger).Warn().Err(err).Int("count", count).Msg("step count not submitted for sync")
	}
}

// OnAccuracyChanged is ignored.
func (s *Screen) OnAccuracyChanged(sensor.Sensor, int) {}
