package sdk

import (
	"strconv"
	"time"
)

const (
	statusEndpoint   = "/status"
	roundsEndpoint   = "/rounds"
	modelEndpoint    = "/model"
	sessionsEndpoint = "/sessions"
)

type Status struct {
	RunID        string    `json:"run_id"`
	Phase        string    `json:"phase"`
	Round        int       `json:"round"`
	Rounds       int       `json:"rounds"`
	Expected     int       `json:"expected_participants"`
	Active       int       `json:"active_participants"`
	Dimension    int       `json:"dimension"`
	StoppedEarly bool      `json:"stopped_early"`
	Reason       string    `json:"reason,omitempty"`
	StartedAt    time.Time `json:"started_at,omitzero"`
	CompletedAt  time.Time `json:"completed_at,omitzero"`
}

type Round struct {
	Round             int       `json:"round"`
	Participants      []string  `json:"participants"`
	ParticipantCount  int       `json:"participant_count,omitempty"`
	Parameters        []float64 `json:"parameters"`
	TotalSamples      int       `json:"total_samples"`
	AvgLocalAccuracy  float64   `json:"avg_local_accuracy"`
	AvgGlobalAccuracy float64   `json:"avg_global_accuracy"`
	Evaluations       int       `json:"evaluations"`
	StartedAt         time.Time `json:"started_at"`
	CompletedAt       time.Time `json:"completed_at"`
}

type RoundPage struct {
	Offset uint64  `json:"offset"`
	Limit  uint64  `json:"limit"`
	Total  uint64  `json:"total"`
	Rounds []Round `json:"rounds"`
}

type Model struct {
	Round      int       `json:"round"`
	Parameters []float64 `json:"parameters"`
	Dimension  int       `json:"dimension"`
}

type Session struct {
	ID            string    `json:"id"`
	Handle        string    `json:"handle"`
	State         string    `json:"state"`
	LastSeenRound int       `json:"last_seen_round"`
	Samples       int       `json:"n_samples"`
	RemoteAddr    string    `json:"remote_addr"`
	ConnectedAt   time.Time `json:"connected_at"`
	Reason        string    `json:"reason,omitempty"`
}

type SessionPage struct {
	Total    int       `json:"total"`
	Sessions []Session `json:"sessions"`
}

func (sdk *fedSDK) Status() (Status, error) {
	var s Status
	if err := sdk.get(statusEndpoint, nil, &s); err != nil {
		return Status{}, err
	}

	return s, nil
}

func (sdk *fedSDK) ListRounds(offset, limit uint64) (RoundPage, error) {
	var page RoundPage
	if err := sdk.get(roundsEndpoint, pageQuery(offset, limit), &page); err != nil {
		return RoundPage{}, err
	}

	return page, nil
}

func (sdk *fedSDK) GetRound(round int) (Round, error) {
	var r Round
	if err := sdk.get(roundsEndpoint+"/"+strconv.Itoa(round), nil, &r); err != nil {
		return Round{}, err
	}

	return r, nil
}

func (sdk *fedSDK) GetModel() (Model, error) {
	var m Model
	if err := sdk.get(modelEndpoint, nil, &m); err != nil {
		return Model{}, err
	}

	return m, nil
}

func (sdk *fedSDK) ListSessions() (SessionPage, error) {
	var page SessionPage
	if err := sdk.get(sessionsEndpoint, nil, &page); err != nil {
		return SessionPage{}, err
	}

	return page, nil
}
