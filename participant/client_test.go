package participant_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/absmach/fedavg/coordinator"
	"github.com/absmach/fedavg/participant"
	"github.com/absmach/fedavg/pkg/codec"
	"github.com/absmach/fedavg/pkg/fl"
	"github.com/absmach/fedavg/pkg/storage"
	"github.com/absmach/fedavg/pkg/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubTrainer struct {
	mu       sync.Mutex
	samples  int
	params   []float64
	accuracy float64
	trainErr error
	evalErr  error
	seen     [][]float64
}

func (s *stubTrainer) Train(_ context.Context, global []float64) (fl.ModelUpdate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seen = append(s.seen, append([]float64(nil), global...))
	if s.trainErr != nil {
		return fl.ModelUpdate{}, s.trainErr
	}

	return fl.ModelUpdate{
		Parameters:    append([]float64(nil), s.params...),
		SampleCount:   s.samples,
		LocalAccuracy: s.accuracy,
	}, nil
}

func (s *stubTrainer) Evaluate(context.Context, []float64) (float64, error) {
	return s.accuracy, s.evalErr
}

func (s *stubTrainer) Samples() int {
	return s.samples
}

func (s *stubTrainer) Dimension() int {
	return len(s.params)
}

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func receive(t *testing.T, conn transport.Conn) codec.Message {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	msg, err := conn.Receive(ctx)
	require.NoError(t, err)

	return msg
}

func send(t *testing.T, conn transport.Conn, msg codec.Message) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, conn.Send(ctx, msg))
}

type outcome struct {
	model fl.GlobalModel
	err   error
}

func start(t *testing.T, id string, tr participant.Trainer, keepalive time.Duration) (transport.Conn, <-chan outcome) {
	t.Helper()

	server, client := transport.Pipe(codec.JSON{})
	t.Cleanup(func() {
		server.Close()
		client.Close()
	})

	done := make(chan outcome, 1)
	c := participant.NewClient(id, client, tr, keepalive, newLogger())
	go func() {
		model, err := c.Run(context.Background())
		done <- outcome{model: model, err: err}
	}()

	return server, done
}

func wait(t *testing.T, done <-chan outcome) outcome {
	t.Helper()

	select {
	case out := <-done:
		return out
	case <-time.After(2 * time.Second):
		require.FailNow(t, "client did not return")

		return outcome{}
	}
}

func TestClientExchange(t *testing.T) {
	t.Parallel()

	tr := &stubTrainer{samples: 40, params: []float64{1, 2}, accuracy: 0.75}
	server, done := start(t, "alice", tr, 0)

	reg := receive(t, server)
	assert.Equal(t, codec.Register, reg.Type)
	assert.Equal(t, "alice", reg.ParticipantID)
	require.NotNil(t, reg.Info)
	assert.Equal(t, codec.Info{Samples: 40, Dimension: 2}, *reg.Info)

	send(t, server, codec.Message{Type: codec.Registered})
	send(t, server, codec.NewTrain(fl.GlobalModel{Round: 1, Parameters: []float64{0, 0}}))

	upd := receive(t, server)
	assert.Equal(t, codec.Update, upd.Type)
	require.NotNil(t, upd.Update)
	assert.Equal(t, fl.ModelUpdate{
		ParticipantID: "alice",
		Round:         1,
		Parameters:    []float64{1, 2},
		SampleCount:   40,
		LocalAccuracy: 0.75,
	}, *upd.Update)

	send(t, server, codec.NewEvaluate(fl.GlobalModel{Round: 1, Parameters: []float64{1, 2}}))
	eval := receive(t, server)
	assert.Equal(t, codec.Evaluation, eval.Type)
	require.NotNil(t, eval.Evaluation)
	assert.Equal(t, fl.Evaluation{ParticipantID: "alice", Round: 1, Accuracy: 0.75}, *eval.Evaluation)

	send(t, server, codec.Message{Type: codec.Ping})
	assert.Equal(t, codec.Pong, receive(t, server).Type)

	send(t, server, codec.NewDone(fl.GlobalModel{Round: 1, Parameters: []float64{1, 2}}))

	out := wait(t, done)
	require.NoError(t, out.err)
	assert.Equal(t, fl.GlobalModel{Round: 1, Parameters: []float64{1, 2}}, out.model)
	assert.Equal(t, [][]float64{{0, 0}}, tr.seen)
}

func TestClientFailures(t *testing.T) {
	t.Parallel()

	errBoom := errors.New("boom")

	cases := []struct {
		desc    string
		trainer *stubTrainer
		script  func(t *testing.T, server transport.Conn)
		err     error
	}{
		{
			desc:    "rejected registration",
			trainer: &stubTrainer{samples: 1, params: []float64{0}},
			script: func(t *testing.T, server transport.Conn) {
				send(t, server, codec.NewRejected("session full"))
			},
			err: participant.ErrRejected,
		},
		{
			desc:    "training error",
			trainer: &stubTrainer{samples: 1, params: []float64{0}, trainErr: errBoom},
			script: func(t *testing.T, server transport.Conn) {
				send(t, server, codec.NewTrain(fl.GlobalModel{Round: 1, Parameters: []float64{0}}))
			},
			err: participant.ErrTraining,
		},
		{
			desc:    "coordinator hangs up",
			trainer: &stubTrainer{samples: 1, params: []float64{0}},
			script: func(t *testing.T, server transport.Conn) {
				require.NoError(t, server.Close())
			},
			err: participant.ErrNoModel,
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			t.Parallel()

			server, done := start(t, "bob", tc.trainer, 0)
			assert.Equal(t, codec.Register, receive(t, server).Type)
			tc.script(t, server)

			out := wait(t, done)
			assert.ErrorIs(t, out.err, tc.err)
		})
	}
}

func TestClientSkipsFailedEvaluation(t *testing.T) {
	t.Parallel()

	tr := &stubTrainer{samples: 5, params: []float64{1}, evalErr: errors.New("no data")}
	server, done := start(t, "carol", tr, 0)
	receive(t, server)

	send(t, server, codec.NewEvaluate(fl.GlobalModel{Round: 1, Parameters: []float64{1}}))
	send(t, server, codec.Message{Type: codec.Ping})
	assert.Equal(t, codec.Pong, receive(t, server).Type)

	send(t, server, codec.NewDone(fl.GlobalModel{Round: 1, Parameters: []float64{1}}))
	require.NoError(t, wait(t, done).err)
}

func TestClientKeepalive(t *testing.T) {
	t.Parallel()

	tr := &stubTrainer{samples: 5, params: []float64{1}}
	server, done := start(t, "dave", tr, 10*time.Millisecond)
	receive(t, server)

	assert.Equal(t, codec.Ping, receive(t, server).Type)

	send(t, server, codec.NewDone(fl.GlobalModel{Round: 0, Parameters: []float64{1}}))
	require.NoError(t, wait(t, done).err)
}

func TestClientGeneratesID(t *testing.T) {
	t.Parallel()

	_, client := transport.Pipe(codec.JSON{})
	defer client.Close()

	c := participant.NewClient("", client, &stubTrainer{}, 0, newLogger())
	assert.NotEmpty(t, c.ID())
}

func TestClientsAgainstCoordinator(t *testing.T) {
	t.Parallel()

	cfg := coordinator.RunConfig{
		ExpectedParticipants: 2,
		Rounds:               2,
		RoundTimeout:         2 * time.Second,
		RegistrationTimeout:  2 * time.Second,
		Evaluate:             true,
		EvaluationTimeout:    time.Second,
	}
	agg := coordinator.NewAggregator(coordinator.AggregatorConfig{Quota: 2, SendTimeout: time.Second}, newLogger())
	defer agg.Close()
	srv := coordinator.NewServer(agg, time.Second, newLogger())
	orch := coordinator.NewOrchestrator("run-1", cfg, agg, storage.Sequenced(storage.NewInMemoryHistory()), nil, newLogger())

	trainers := map[string]*stubTrainer{
		"alice": {samples: 100, params: []float64{0, 4}, accuracy: 0.5},
		"bob":   {samples: 300, params: []float64{4, 0}, accuracy: 0.9},
	}

	results := make(chan outcome, len(trainers))
	for id, tr := range trainers {
		server, client := transport.Pipe(codec.CBOR{})
		defer client.Close()

		go func() {
			_ = srv.Handshake(context.Background(), server)
		}()
		go func() {
			model, err := participant.NewClient(id, client, tr, 0, newLogger()).Run(context.Background())
			results <- outcome{model: model, err: err}
		}()
	}

	res, err := orch.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, fl.GlobalModel{Round: 2, Parameters: []float64{3, 1}}, res.Model)
	require.Len(t, res.History, 2)
	assert.InDelta(t, 0.7, res.History[1].AvgGlobalAccuracy, 1e-12)

	for range trainers {
		out := wait(t, results)
		require.NoError(t, out.err)
		assert.Equal(t, res.Model, out.model)
	}
	assert.Equal(t, [][]float64{{0, 0}, {3, 1}}, trainers["alice"].seen)
}
