package coordinator_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/absmach/fedavg/coordinator"
	"github.com/absmach/fedavg/pkg/codec"
	"github.com/absmach/fedavg/pkg/fl"
	"github.com/absmach/fedavg/pkg/transport"
	"github.com/stretchr/testify/require"
)

type responder func(p *fakeParticipant, msg codec.Message) []codec.Message

type fakeParticipant struct {
	id      string
	conn    transport.Conn
	respond responder

	registered chan struct{}
	final      chan fl.GlobalModel
	rejected   chan string
	once       sync.Once
}

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newAggregator(t *testing.T, quota, dim int) *coordinator.Aggregator {
	t.Helper()

	agg := coordinator.NewAggregator(coordinator.AggregatorConfig{
		Quota:       quota,
		Dimension:   dim,
		SendTimeout: time.Second,
	}, newLogger())
	t.Cleanup(func() { agg.Close() })

	return agg
}

// connect admits a fake participant over an in-memory pipe.
func connect(t *testing.T, agg *coordinator.Aggregator, id string, info codec.Info, respond responder) (*fakeParticipant, error) {
	t.Helper()

	server, client := transport.Pipe(codec.JSON{})
	p := &fakeParticipant{
		id:         id,
		conn:       client,
		respond:    respond,
		registered: make(chan struct{}),
		final:      make(chan fl.GlobalModel, 1),
		rejected:   make(chan string, 1),
	}
	go p.run()
	t.Cleanup(func() { client.Close() })

	if _, err := agg.Admit(id, server, info); err != nil {
		server.Close()

		return p, err
	}

	select {
	case <-p.registered:
	case <-time.After(time.Second):
		require.FailNow(t, "participant was not acknowledged", id)
	}

	return p, nil
}

func (p *fakeParticipant) run() {
	ctx := context.Background()
	for {
		msg, err := p.conn.Receive(ctx)
		if err != nil {
			return
		}

		switch msg.Type {
		case codec.Registered:
			p.once.Do(func() { close(p.registered) })
		case codec.Rejected:
			p.rejected <- msg.Reason

			return
		case codec.Done:
			p.final <- msg.Model()

			return
		default:
			if p.respond == nil {
				continue
			}
			for _, reply := range p.respond(p, msg) {
				if err := p.conn.Send(ctx, reply); err != nil {
					return
				}
			}
		}
	}
}

// trainer answers every training and evaluation request with fixed values.
func trainer(samples int, params []float64, accuracy float64) responder {
	return func(p *fakeParticipant, msg codec.Message) []codec.Message {
		switch msg.Type {
		case codec.Train:
			return []codec.Message{codec.NewUpdate(fl.ModelUpdate{
				ParticipantID: p.id,
				Round:         msg.Round,
				Parameters:    params,
				SampleCount:   samples,
				LocalAccuracy: accuracy,
			})}
		case codec.Evaluate:
			return []codec.Message{codec.NewEvaluation(fl.Evaluation{
				ParticipantID: p.id,
				Round:         msg.Round,
				Accuracy:      accuracy,
			})}
		}

		return nil
	}
}

// until answers like next up to and including round last, then goes silent.
func until(last int, next responder) responder {
	return func(p *fakeParticipant, msg codec.Message) []codec.Message {
		if msg.Round > last {
			return nil
		}

		return next(p, msg)
	}
}

func silent() responder {
	return func(*fakeParticipant, codec.Message) []codec.Message {
		return nil
	}
}

func sessionState(agg *coordinator.Aggregator, id string) coordinator.SessionInfo {
	for _, s := range agg.Sessions() {
		if s.ID == id {
			return s
		}
	}

	return coordinator.SessionInfo{}
}
