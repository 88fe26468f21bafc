package restapi

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"example.com/stepcount/internal/domain"
	"example.com/stepcount/internal/logging"
)

// DefaultCountOffset is added to every observed count before it is posted.
const DefaultCountOffset = 100

// Publisher mirrors locally observed step counts to the API.
type Publisher struct {
	client *Client
	offset int
	logger zerolog.Logger
}

// NewPublisher wraps client. offset is added to each observed count.
func NewPublisher(client *Client, offset int) *Publisher {
	return &Publisher{
		client: client,
		offset: offset,
		logger: logging.Component("restapi"),
	}
}

// Payload is what Publish sends for sc: a server-assigned id and the offset count.
func (p *Publisher) Payload(sc domain.StepCount) Payload {
	return Payload{ID: 0, Count: sc.Count + p.offset}
}

// Publish posts sc once. Failures are logged and returned; nothing is retried.
func (p *Publisher) Publish(ctx context.Context, sc domain.StepCount) error {
	logger := logging.Ctx(ctx, p.logger)
	payload := p.Payload(sc)

	created, err := p.client.AddStepCount(ctx, payload)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			logger.Error().
				Int("status", apiErr.StatusCode).
				Str("body", apiErr.Body).
				Int("count", payload.Count).
				Msg("step count API rejected record")
		} else {
			logger.Error().Err(err).Int("count", payload.Count).Msg("failed to reach step count API")
		}
		return err
	}

	logger.Info().
		Int64("remote_id", created.ID).
		Int("count", created.Count).
		Msg("step count added to API")
	return nil
}
