package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/stepcount/internal/api"
	"example.com/stepcount/internal/auth"
	"example.com/stepcount/internal/config"
	"example.com/stepcount/internal/consumer"
	"example.com/stepcount/internal/domain"
	"example.com/stepcount/internal/logging"
	"example.com/stepcount/internal/outbox"
	persistence "example.com/stepcount/internal/persistence/postgres"
	"example.com/stepcount/internal/sink/firebase"
	"example.com/stepcount/internal/supervisor"
	httptransport "example.com/stepcount/internal/transport/http"
)

func main() {
	if err := run(); err != nil {
		logging.Fatal().Err(err).Msg("stepcount-api failed")
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logging.Init(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format, Caller: cfg.Logging.Caller})
	logger := logging.Component("stepcount-api")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.Postgres.URL)
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	defer pool.Close()

	repo := persistence.NewRepository(pool, cfg.Kafka.Topic)
	if err := repo.Migrate(ctx); err != nil {
		return err
	}

	producer := outbox.NewKafkaProducer(cfg.Kafka.Brokers)
	defer func() {
		if err := producer.Close(); err != nil {
			logger.Warn().Err(err).Msg("close kafka producer")
		}
	}()
	dispatcher := outbox.NewDispatcher(pool, producer, cfg.Outbox.PollInterval, cfg.Outbox.BatchSize)

	tree := supervisor.New("stepcount-api", logging.NewSlogLogger("supervisor"), supervisor.DefaultTreeConfig())
	tree.AddDataService(dispatcher)

	if cfg.Mirror.Enabled {
		sink, err := firebase.NewFromConfig(ctx, firebase.Config{
			DatabaseURL:     cfg.Mirror.FirebaseDatabaseURL,
			CredentialsFile: cfg.Mirror.CredentialsFile,
			Path:            cfg.Mirror.Path,
		})
		if err != nil {
			return fmt.Errorf("init firebase mirror: %w", err)
		}
		reader := consumer.NewKafkaReader(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.Topic)
		tree.AddIngestService(consumer.NewProcessor(reader, consumer.NewMirrorHandler(sink)))
		logger.Info().Str("database_url", cfg.Mirror.FirebaseDatabaseURL).Msg("firebase mirror enabled")
	}

	handler := api.NewHandler(domain.NewService(repo))
	authCfg := auth.Config{Secret: cfg.Auth.Secret, Issuer: cfg.Auth.Issuer}
	if !authCfg.Enabled() {
		logger.Warn().Msg("auth.secret not set, bearer authentication disabled")
	}
	server := httptransport.NewServer(cfg.Server, httptransport.NewRouter(cfg.Server, authCfg, handler))
	tree.AddAPIService(supervisor.NewHTTPService("http", server, cfg.Server.ShutdownTimeout))

	logger.Info().Str("addr", cfg.Server.Address).Str("topic", cfg.Kafka.Topic).Msg("stepcount-api listening")
	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("supervisor: %w", err)
	}
	logger.Info().Msg("stepcount-api stopped")
	return nil
}
