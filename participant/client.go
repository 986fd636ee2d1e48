// Package participant implements the client side of a federated run: it
// registers with the coordinator, trains on request, evaluates global models
// and returns once the final model arrives.
package participant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/0x6flab/namegenerator"
	"github.com/absmach/fedavg/pkg/codec"
	"github.com/absmach/fedavg/pkg/fl"
	"github.com/absmach/fedavg/pkg/transport"
)

var (
	ErrRejected = errors.New("registration rejected by coordinator")
	ErrTraining = errors.New("local training failed")
	ErrNoModel  = errors.New("connection ended before the final model arrived")
)

type Client struct {
	id        string
	conn      transport.Conn
	trainer   Trainer
	keepalive time.Duration
	logger    *slog.Logger
}

// NewClient wraps an established connection. An empty id is replaced by a
// generated name. A non-positive keepalive disables pings.
func NewClient(id string, conn transport.Conn, trainer Trainer, keepalive time.Duration, logger *slog.Logger) *Client {
	if id == "" {
		id = namegenerator.NewGenerator().Generate()
	}

	return &Client{
		id:        id,
		conn:      conn,
		trainer:   trainer,
		keepalive: keepalive,
		logger:    logger.With(slog.String("participant_id", id)),
	}
}

func (c *Client) ID() string {
	return c.id
}

// Run takes part in a single run and returns the final global model.
func (c *Client) Run(ctx context.Context) (fl.GlobalModel, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	info := codec.Info{Samples: c.trainer.Samples(), Dimension: c.trainer.Dimension()}
	if err := c.conn.Send(ctx, codec.NewRegister(c.id, info)); err != nil {
		return fl.GlobalModel{}, fmt.Errorf("failed to register: %w", err)
	}

	if c.keepalive > 0 {
		go c.startKeepalive(ctx)
	}

	for {
		msg, err := c.conn.Receive(ctx)
		switch {
		case errors.Is(err, transport.ErrDecode):
			c.logger.WarnContext(ctx, "discarding undecodable message", slog.Any("error", err))

			continue
		case errors.Is(err, transport.ErrClosed):
			return fl.GlobalModel{}, errors.Join(ErrNoModel, err)
		case err != nil:
			return fl.GlobalModel{}, err
		}

		switch msg.Type {
		case codec.Registered:
			c.logger.InfoContext(ctx, "registered with coordinator",
				slog.Int("n_samples", info.Samples),
				slog.Int("dimension", info.Dimension),
			)
		case codec.Rejected:
			return fl.GlobalModel{}, fmt.Errorf("%w: %s", ErrRejected, msg.Reason)
		case codec.Train:
			if err := c.train(ctx, msg.Model()); err != nil {
				return fl.GlobalModel{}, err
			}
		case codec.Evaluate:
			c.evaluate(ctx, msg.Model())
		case codec.Done:
			model := msg.Model().Clone()
			c.logger.InfoContext(ctx, "received final model", slog.Int("round", model.Round))

			return model, nil
		case codec.Ping:
			if err := c.conn.Send(ctx, codec.Message{Type: codec.Pong}); err != nil {
				return fl.GlobalModel{}, err
			}
		case codec.Pong:
		default:
			c.logger.WarnContext(ctx, "ignoring unexpected message", slog.String("type", string(msg.Type)))
		}
	}
}

func (c *Client) train(ctx context.Context, global fl.GlobalModel) error {
	start := time.Now()
	update, err := c.trainer.Train(ctx, global.Parameters)
	if err != nil {
		return errors.Join(ErrTraining, err)
	}
	update.ParticipantID = c.id
	update.Round = global.Round

	c.logger.InfoContext(ctx, "trained local model",
		slog.Int("round", global.Round),
		slog.Float64("local_accuracy", update.LocalAccuracy),
		slog.Duration("duration", time.Since(start)),
	)

	return c.conn.Send(ctx, codec.NewUpdate(update))
}

// evaluate answers an evaluation request. A failed evaluation is only logged;
// the coordinator leaves silent participants out of the average.
func (c *Client) evaluate(ctx context.Context, global fl.GlobalModel) {
	acc, err := c.trainer.Evaluate(ctx, global.Parameters)
	if err != nil {
		c.logger.WarnContext(ctx, "failed to evaluate global model",
			slog.Int("round", global.Round),
			slog.Any("error", err),
		)

		return
	}

	c.logger.InfoContext(ctx, "evaluated global model",
		slog.Int("round", global.Round),
		slog.Float64("global_accuracy", acc),
	)

	eval := fl.Evaluation{ParticipantID: c.id, Round: global.Round, Accuracy: acc}
	if err := c.conn.Send(ctx, codec.NewEvaluation(eval)); err != nil {
		c.logger.WarnContext(ctx, "failed to send evaluation", slog.Any("error", err))
	}
}

func (c *Client) startKeepalive(ctx context.Context) {
	ticker := time.NewTicker(c.keepalive)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.conn.Send(ctx, codec.Message{Type: codec.Ping}); err != nil {
				if ctx.Err() == nil {
					c.logger.WarnContext(ctx, "failed to send keepalive", slog.Any("error", err))
				}

				return
			}
		}
	}
}
