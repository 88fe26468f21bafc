// Package firebase mirrors step counts into a Firebase Realtime Database list.
package firebase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	fb "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/db"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"

	"example.com/stepcount/internal/domain"
	"example.com/stepcount/internal/logging"
	"example.com/stepcount/internal/syncerr"
)

const component = "firebase"

// DefaultPath is the list every document is appended to.
const DefaultPath = "stepCounts"

// Document is the stored form of a step count. The database assigns the key.
type Document struct {
	Count int `json:"count"`
}

// Pusher appends v under path and returns the generated key.
type Pusher interface {
	Push(ctx context.Context, path string, v any) (string, error)
}

// dbPusher adapts *db.Client to Pusher.
type dbPusher struct {
	client *db.Client
}

func (p dbPusher) Push(ctx context.Context, path string, v any) (string, error) {
	ref, err := p.client.NewRef(path).Push(ctx, v)
	if err != nil {
		return "", err
	}
	return ref.Key, nil
}

// Config locates the database.
type Config struct {
	DatabaseURL     string
	CredentialsFile string
	Path            string
}

// Sink appends one document per step count.
type Sink struct {
	pusher Pusher
	path   string
	logger zerolog.Logger
}

// New builds a sink over an existing Pusher. An empty path selects DefaultPath.
func New(p Pusher, path string) *Sink {
	if strings.TrimSpace(path) == "" {
		path = DefaultPath
	}
	return &Sink{pusher: p, path: path, logger: logging.Component(component)}
}

// NewFromConfig initialises a Firebase app and its database client. Without a credentials
// file, application default credentials are used.
func NewFromConfig(ctx context.Context, cfg Config) (*Sink, error) {
	if cfg.DatabaseURL == "" {
		return nil, syncerr.NewValidationError(syncerr.OpOpen, errors.New("firebase database url is required"))
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	app, err := fb.NewApp(ctx, &fb.Config{DatabaseURL: cfg.DatabaseURL}, opts...)
	if err != nil {
		return nil, syncerr.NewNetworkError(syncerr.OpOpen, component, fmt.Errorf("init app: %w", err))
	}
	client, err := app.Database(ctx)
	if err != nil {
		return nil, syncerr.NewNetworkError(syncerr.OpOpen, component, fmt.Errorf("init database client: %w", err))
	}
	return New(dbPusher{client: client}, cfg.Path), nil
}

// Publish appends {count} for sc. The local id is not sent.
func (s *Sink) Publish(ctx context.Context, sc domain.StepCount) error {
	key, err := s.pusher.Push(ctx, s.path, Document{Count: sc.Count})
	if err != nil {
		logging.Ctx(ctx, s.logger).Debug().Err(err).Str("path", s.path).Int("count", sc.Count).Msg("document push failed")
		return syncerr.NewNetworkError(syncerr.OpPush, component, err)
	}
	logging.Ctx(ctx, s.logger).Debug().Str("path", s.path).Str("key", key).Int("count", sc.Count).Msg("document pushed")
	return nil
}
