package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/thejerf/suture/v4"

	"example.com/stepcount/internal/config"
	"example.com/stepcount/internal/logging"
	"example.com/stepcount/internal/orchestrator"
	"example.com/stepcount/internal/permission"
	"example.com/stepcount/internal/screen"
	"example.com/stepcount/internal/sensor"
	"example.com/stepcount/internal/sink/firebase"
	"example.com/stepcount/internal/sink/restapi"
	"example.com/stepcount/internal/store/sqlite"
	"example.com/stepcount/internal/supervisor"
)

func main() {
	if err := run(); err != nil {
		logging.Fatal().Err(err).Msg("stepsync failed")
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logging.Init(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format, Caller: cfg.Logging.Caller})
	logger := logging.Component("stepsync")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := sqlite.Open(ctx, sqlite.Config{Path: cfg.Store.Path})
	if err != nil {
		return fmt.Errorf("open step count store: %w", err)
	}
	defer store.Close()

	apiClient := restapi.NewClient(cfg.API.BaseURL,
		restapi.WithTimeout(cfg.API.Timeout),
		restapi.WithToken(cfg.API.Token),
	)
	targets := []orchestrator.Target{
		{Name: "api", Publisher: restapi.NewPublisher(apiClient, cfg.API.CountOffset)},
	}
	if cfg.Firebase.DatabaseURL != "" {
		sink, err := firebase.NewFromConfig(ctx, firebase.Config{
			DatabaseURL:     cfg.Firebase.DatabaseURL,
			CredentialsFile: cfg.Firebase.CredentialsFile,
			Path:            cfg.Firebase.Path,
		})
		if err != nil {
			return fmt.Errorf("init firebase sink: %w", err)
		}
		targets = append(targets, orchestrator.Target{Name: "firebase", Publisher: sink, Detached: true})
	} else {
		logger.Info().Msg("firebase.database_url not set, document sink disabled")
	}

	orch := orchestrator.New(store,
		orchestrator.WithWorkers(cfg.Sync.Workers),
		orchestrator.WithQueueSize(cfg.Sync.QueueSize),
		orchestrator.WithTargets(targets...),
	)

	manager, source, err := sensorManager(cfg.Sensor)
	if err != nil {
		return err
	}

	tree := supervisor.New("stepsync", logging.NewSlogLogger("supervisor"), supervisor.TreeConfig{})
	tree.AddDataService(orch)
	if cfg.Metrics.Address != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		tree.AddAPIService(supervisor.NewHTTPService("metrics", &http.Server{
			Addr:              cfg.Metrics.Address,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}, 5*time.Second))
	}

	// The tree outlives ctx so the screen is paused before the workers drain.
	treeCtx, stopTree := context.WithCancel(context.Background())
	defer stopTree()
	treeDone := tree.ServeBackground(treeCtx)

	scr := screen.New(screen.Config{
		Display:           screen.NewTextView(os.Stdout),
		Sensors:           manager,
		Permissions:       permissionChecker(cfg.Permission),
		RequirePermission: cfg.Permission.Required,
		Store:             store,
		Remote:            apiClient,
		Sync:              orch,
		StartupView:       screen.StartupView(cfg.Screen.StartupView),
	})
	if err := startScreen(ctx, scr, tree, source); err != nil {
		return err
	}
	logger.Info().Str("sensor_source", cfg.Sensor.Source).Str("store", cfg.Store.Path).Msg("stepsync running")

	<-ctx.Done()
	logger.Info().Msg("shutting down")
	scr.Pause()
	stopTree()

	if err := <-treeDone; err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("supervisor: %w", err)
	}
	return nil
}

// startScreen runs Create and Resume, then attaches the sensor source to the running tree.
// A source added earlier could emit before the screen's listener is registered, and those
// events would be dropped.
func startScreen(ctx context.Context, scr *screen.Screen, tree *supervisor.Tree, source suture.Service) error {
	if err := scr.Create(ctx); err != nil {
		return fmt.Errorf("create screen: %w", err)
	}
	if err := scr.Resume(); err != nil {
		return err
	}
	if source != nil {
		tree.AddIngestService(source)
	}
	return nil
}

// sensorManager maps sensor.source to a manager and, when the manager produces events on its
// own, the service that drives it.
func sensorManager(cfg config.SensorConfig) (sensor.Manager, suture.Service, error) {
	switch cfg.Source {
	case "", "none":
		return sensor.Unavailable{}, nil, nil
	case "simulated":
		m := sensor.NewSimulatedManager(cfg.Interval, 0, 20)
		return m, m, nil
	case "-":
		m := sensor.NewStreamManager("stdin", os.Stdin)
		return m, m, nil
	default:
		f, err := os.Open(cfg.Source)
		if err != nil {
			return nil, nil, fmt.Errorf("open sensor source: %w", err)
		}
		m := sensor.NewStreamManager(cfg.Source, f)
		return m, m, nil
	}
}

func permissionChecker(cfg config.PermissionConfig) permission.Checker {
	if cfg.Mode == "prompt" {
		return permission.NewPrompt(os.Stdin, os.Stdout)
	}
	return permission.Static{Grant: cfg.Granted}
}
