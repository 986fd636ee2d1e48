package middleware_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/absmach/fedavg/coordinator"
	"github.com/absmach/fedavg/coordinator/middleware"
	"github.com/absmach/fedavg/coordinator/mocks"
	pkgerrors "github.com/absmach/fedavg/pkg/errors"
	"github.com/absmach/fedavg/pkg/fl"
	"github.com/go-kit/kit/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
)

func TestLoggingMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	svc := new(mocks.MockService)
	svc.On("GetRound", mock.Anything, 1).Return(fl.RoundRecord{Round: 1, Participants: []string{"a", "b"}}, nil)
	svc.On("GetRound", mock.Anything, 2).Return(fl.RoundRecord{}, pkgerrors.ErrNotFound)

	lm := middleware.Logging(logger, svc)
	ctx := context.Background()

	cases := []struct {
		desc  string
		round int
		level string
		msg   string
		err   error
	}{
		{desc: "successful call", round: 1, level: "INFO", msg: "Get round completed successfully"},
		{desc: "failed call", round: 2, level: "WARN", msg: "Get round failed", err: pkgerrors.ErrNotFound},
	}

	for _, tc := range cases {
		buf.Reset()
		_, err := lm.GetRound(ctx, tc.round)
		assert.ErrorIs(t, err, tc.err, tc.desc)

		var entry map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry), tc.desc)
		assert.Equal(t, tc.level, entry["level"], tc.desc)
		assert.Equal(t, tc.msg, entry["msg"], tc.desc)
		assert.Contains(t, entry, "duration", tc.desc)
	}
}

// spy records label values across With calls.
type spy struct {
	methods map[string]int
	labels  []string
}

func newSpy() *spy {
	return &spy{methods: make(map[string]int)}
}

func (s *spy) With(labelValues ...string) metrics.Counter {
	return &spy{methods: s.methods, labels: labelValues}
}

func (s *spy) Add(float64) {
	s.record()
}

func (s *spy) Observe(float64) {
	s.record()
}

func (s *spy) record() {
	if len(s.labels) == 2 {
		s.methods[s.labels[1]]++
	}
}

type histogramSpy struct {
	*spy
}

func (h histogramSpy) With(labelValues ...string) metrics.Histogram {
	return histogramSpy{&spy{methods: h.methods, labels: labelValues}}
}

func TestMetricsMiddleware(t *testing.T) {
	counter := newSpy()
	latency := histogramSpy{newSpy()}

	svc := new(mocks.MockService)
	svc.On("ListSessions", mock.Anything).Return([]coordinator.SessionInfo{}, nil)
	svc.On("GetModel", mock.Anything).Return(fl.GlobalModel{}, errors.New("boom"))

	mm := middleware.Metrics(counter, latency, svc)
	_, err := mm.ListSessions(context.Background())
	require.NoError(t, err)
	_, err = mm.GetModel(context.Background())
	assert.Error(t, err)

	assert.Equal(t, map[string]int{"list-sessions": 1, "get-model": 1}, counter.methods)
	assert.Equal(t, map[string]int{"list-sessions": 1, "get-model": 1}, latency.methods)
	svc.AssertExpectations(t)
}

func TestTracingMiddleware(t *testing.T) {
	svc := new(mocks.MockService)
	res := coordinator.Result{RunID: "run-1", History: []fl.RoundRecord{{Round: 1}}}
	svc.On("Run", mock.Anything).Return(res, nil)
	svc.On("ListRounds", mock.Anything, uint64(0), uint64(5)).Return(coordinator.RoundPage{Limit: 5}, nil)

	tm := middleware.Tracing(noop.NewTracerProvider().Tracer("test"), svc)

	got, err := tm.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, res, got)

	page, err := tm.ListRounds(context.Background(), 0, 5)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), page.Limit)
	svc.AssertExpectations(t)
}
