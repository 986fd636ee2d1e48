package api_test

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/absmach/fedavg/coordinator"
	"github.com/absmach/fedavg/coordinator/api"
	"github.com/absmach/fedavg/coordinator/mocks"
	pkgerrors "github.com/absmach/fedavg/pkg/errors"
	"github.com/absmach/fedavg/pkg/fl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T) (*httptest.Server, *mocks.MockService) {
	t.Helper()

	svc := new(mocks.MockService)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ts := httptest.NewServer(api.MakeHandler(svc, logger, "test-instance"))
	t.Cleanup(ts.Close)

	return ts, svc
}

func get(t *testing.T, ts *httptest.Server, path string, out any) int {
	t.Helper()

	res, err := http.Get(ts.URL + path)
	require.NoError(t, err)
	defer res.Body.Close()

	if out != nil {
		require.NoError(t, json.NewDecoder(res.Body).Decode(out))
	}

	return res.StatusCode
}

func TestListRounds(t *testing.T) {
	ts, svc := newServer(t)

	page := coordinator.RoundPage{
		Offset: 2,
		Limit:  5,
		Total:  3,
		Rounds: []fl.RoundRecord{{Round: 3, Participants: []string{"alice", "bob"}, Parameters: []float64{1}}},
	}
	svc.On("ListRounds", mock.Anything, uint64(2), uint64(5)).Return(page, nil)
	svc.On("ListRounds", mock.Anything, uint64(0), uint64(10)).Return(coordinator.RoundPage{Limit: 10, Rounds: []fl.RoundRecord{}}, nil)

	cases := []struct {
		desc   string
		query  string
		status int
		total  uint64
	}{
		{desc: "list with offset and limit", query: "?offset=2&limit=5", status: http.StatusOK, total: 3},
		{desc: "list with defaults", query: "", status: http.StatusOK},
		{desc: "list with limit above maximum", query: "?limit=1000", status: http.StatusBadRequest},
		{desc: "list with invalid offset", query: "?offset=abc", status: http.StatusBadRequest},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			var body coordinator.RoundPage
			status := get(t, ts, "/rounds"+tc.query, &body)
			assert.Equal(t, tc.status, status)
			if tc.status == http.StatusOK {
				assert.Equal(t, tc.total, body.Total)
			}
		})
	}
}

func TestGetRound(t *testing.T) {
	ts, svc := newServer(t)

	rec := fl.RoundRecord{
		Round:            2,
		Participants:     []string{"alice", "bob"},
		Parameters:       []float64{3, 0},
		TotalSamples:     400,
		AvgLocalAccuracy: 0.6,
		CompletedAt:      time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	svc.On("GetRound", mock.Anything, 2).Return(rec, nil)
	svc.On("GetRound", mock.Anything, 9).Return(fl.RoundRecord{}, pkgerrors.ErrNotFound)

	cases := []struct {
		desc   string
		path   string
		status int
	}{
		{desc: "get existing round", path: "/rounds/2", status: http.StatusOK},
		{desc: "get missing round", path: "/rounds/9", status: http.StatusNotFound},
		{desc: "get round zero", path: "/rounds/0", status: http.StatusBadRequest},
		{desc: "get non numeric round", path: "/rounds/latest", status: http.StatusBadRequest},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			var body map[string]any
			status := get(t, ts, tc.path, &body)
			assert.Equal(t, tc.status, status)
			if tc.status == http.StatusOK {
				assert.Equal(t, float64(2), body["participant_count"])
				assert.Equal(t, float64(400), body["total_samples"])
			}
		})
	}
}

func TestGetModel(t *testing.T) {
	ts, svc := newServer(t)
	svc.On("GetModel", mock.Anything).Return(fl.GlobalModel{Round: 4, Parameters: []float64{0.5, 1.5}}, nil).Once()
	svc.On("GetModel", mock.Anything).Return(fl.GlobalModel{}, pkgerrors.ErrNotFound).Once()

	var body map[string]any
	assert.Equal(t, http.StatusOK, get(t, ts, "/model", &body))
	assert.Equal(t, float64(4), body["round"])
	assert.Equal(t, float64(2), body["dimension"])

	assert.Equal(t, http.StatusNotFound, get(t, ts, "/model", nil))
}

func TestStatusAndSessions(t *testing.T) {
	ts, svc := newServer(t)
	svc.On("Status", mock.Anything).Return(coordinator.RunStatus{RunID: "run-1", Phase: coordinator.PhaseRunning, Round: 2, Rounds: 5}, nil)
	svc.On("ListSessions", mock.Anything).Return([]coordinator.SessionInfo{
		{ID: "alice", State: coordinator.UpdateReceived.String(), LastSeenRound: 2},
		{ID: "bob", State: coordinator.Disconnected.String(), Reason: coordinator.ErrParticipantTimeout.Error()},
	}, nil)

	var status coordinator.RunStatus
	assert.Equal(t, http.StatusOK, get(t, ts, "/status", &status))
	assert.Equal(t, coordinator.PhaseRunning, status.Phase)
	assert.Equal(t, 2, status.Round)

	var sessions struct {
		Total    int                       `json:"total"`
		Sessions []coordinator.SessionInfo `json:"sessions"`
	}
	assert.Equal(t, http.StatusOK, get(t, ts, "/sessions", &sessions))
	assert.Equal(t, 2, sessions.Total)
	assert.Equal(t, "bob", sessions.Sessions[1].ID)
}

func TestHealth(t *testing.T) {
	ts, _ := newServer(t)

	res, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
}
