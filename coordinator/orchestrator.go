package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/absmach/fedavg/pkg/fl"
	"github.com/absmach/fedavg/pkg/storage"
)

type Phase string

const (
	PhaseIdle        Phase = "idle"
	PhaseRegistering Phase = "registering"
	PhaseRunning     Phase = "running"
	PhaseCompleted   Phase = "completed"
	PhaseFailed      Phase = "failed"
	PhaseCancelled   Phase = "cancelled"
)

const (
	ReasonMaxRounds = "max_rounds"
	ReasonConverged = "converged"
)

type RunStatus struct {
	RunID        string    `json:"run_id"`
	Phase        Phase     `json:"phase"`
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

// Result is what a run reports when it terminates. On failure History holds
// every round completed before the failure.
type Result struct {
	RunID        string           `json:"run_id"`
	Model        fl.GlobalModel   `json:"model"`
	History      []fl.RoundRecord `json:"history"`
	StoppedEarly bool             `json:"stopped_early"`
	Reason       string           `json:"reason"`
}

// Orchestrator sequences the rounds of a single run.
type Orchestrator struct {
	runID     string
	cfg       RunConfig
	agg       *Aggregator
	history   storage.HistoryRepository
	notifier  Notifier
	criterion fl.Criterion
	logger    *slog.Logger

	started atomic.Bool
	mu      sync.RWMutex
	status  RunStatus
}

func NewOrchestrator(runID string, cfg RunConfig, agg *Aggregator, history storage.HistoryRepository, notifier Notifier, logger *slog.Logger) *Orchestrator {
	if notifier == nil {
		notifier = NewNoopNotifier()
	}

	return &Orchestrator{
		runID:     runID,
		cfg:       cfg,
		agg:       agg,
		history:   history,
		notifier:  notifier,
		criterion: cfg.Criterion(),
		logger:    logger,
		status: RunStatus{
			RunID:    runID,
			Phase:    PhaseIdle,
			Rounds:   cfg.Rounds,
			Expected: cfg.ExpectedParticipants,
		},
	}
}

// Run waits for the expected participants and drives them through the
// configured rounds. It can be called once.
func (o *Orchestrator) Run(ctx context.Context) (Result, error) {
	if !o.started.CompareAndSwap(false, true) {
		return Result{}, ErrRunInProgress
	}

	res := Result{RunID: o.runID, History: []fl.RoundRecord{}}
	if err := o.cfg.Validate(); err != nil {
		return o.fail(ctx, res, err)
	}

	o.update(func(s *RunStatus) {
		s.Phase = PhaseRegistering
		s.StartedAt = time.Now()
	})
	if err := o.agg.WaitForParticipants(ctx, o.cfg.ExpectedParticipants, o.cfg.RegistrationTimeout); err != nil {
		return o.fail(ctx, res, err)
	}

	dim := o.agg.Dimension()
	if dim == 0 {
		return o.fail(ctx, res, ErrUnknownDimension)
	}
	model := fl.GlobalModel{Parameters: make([]float64, dim)}
	o.agg.Publish(model)
	res.Model = model.Clone()

	o.update(func(s *RunStatus) {
		s.Phase = PhaseRunning
		s.Dimension = dim
	})
	o.logger.InfoContext(ctx, "run started",
		slog.String("run_id", o.runID),
		slog.Int("participants", o.agg.Active()),
		slog.Int("rounds", o.cfg.Rounds),
		slog.Int("dimension", dim),
	)

	res.Reason = ReasonMaxRounds
	for round := 1; round <= o.cfg.Rounds; round++ {
		rec, next, err := o.runRound(ctx, round, model)
		if err != nil {
			return o.fail(ctx, res, fmt.Errorf("round %d: %w", round, err))
		}
		if err := o.history.Append(ctx, rec); err != nil {
			return o.fail(ctx, res, fmt.Errorf("round %d: failed to record history: %w", round, err))
		}

		previous := model.Parameters
		model = next
		o.agg.Publish(model)
		res.History = append(res.History, rec)
		res.Model = model.Clone()
		o.update(func(s *RunStatus) { s.Round = round })

		o.logger.InfoContext(ctx, "round completed",
			slog.Int("round", round),
			slog.Int("participants", rec.ParticipantCount()),
			slog.Int("total_samples", rec.TotalSamples),
			slog.Float64("avg_local_accuracy", rec.AvgLocalAccuracy),
			slog.Float64("avg_global_accuracy", rec.AvgGlobalAccuracy),
		)
		if err := o.notifier.RoundCompleted(ctx, o.runID, rec); err != nil {
			o.logger.WarnContext(ctx, "failed to notify round completion", slog.Int("round", round), slog.Any("error", err))
		}

		if o.criterion != nil && round < o.cfg.Rounds && o.criterion.Met(previous, res.History) {
			res.StoppedEarly = true
			res.Reason = ReasonConverged

			break
		}
	}

	delivered := o.agg.Finish(ctx, model)
	o.update(func(s *RunStatus) {
		s.Phase = PhaseCompleted
		s.StoppedEarly = res.StoppedEarly
		s.Reason = res.Reason
		s.CompletedAt = time.Now()
	})
	o.logger.InfoContext(ctx, "run completed",
		slog.String("run_id", o.runID),
		slog.Int("rounds", len(res.History)),
		slog.String("reason", res.Reason),
		slog.Int("final_model_delivered", delivered),
	)
	if err := o.notifier.RunCompleted(ctx, res); err != nil {
		o.logger.WarnContext(ctx, "failed to notify run completion", slog.Any("error", err))
	}

	return res, nil
}

func (o *Orchestrator) runRound(ctx context.Context, round int, model fl.GlobalModel) (fl.RoundRecord, fl.GlobalModel, error) {
	started := time.Now()

	o.agg.BroadcastRound(ctx, round, model)
	updates, err := o.agg.CollectUpdates(ctx, round, o.cfg.RoundTimeout)
	if err != nil {
		return fl.RoundRecord{}, fl.GlobalModel{}, err
	}
	if len(updates) == 0 {
		return fl.RoundRecord{}, fl.GlobalModel{}, fl.ErrEmptyRound
	}

	next, err := o.agg.Aggregate(updates)
	if err != nil {
		return fl.RoundRecord{}, fl.GlobalModel{}, err
	}

	var evaluations []fl.Evaluation
	if o.cfg.Evaluate {
		evaluations, err = o.agg.EvaluateGlobal(ctx, round, next, o.cfg.EvaluationTimeout)
		if err != nil {
			return fl.RoundRecord{}, fl.GlobalModel{}, err
		}
	}

	// An interrupted round is never committed.
	if err := ctx.Err(); err != nil {
		return fl.RoundRecord{}, fl.GlobalModel{}, err
	}

	rec, err := newRoundRecord(round, next, updates, evaluations, started, time.Now())
	if err != nil {
		return fl.RoundRecord{}, fl.GlobalModel{}, err
	}

	return rec, next, nil
}

func newRoundRecord(round int, model fl.GlobalModel, updates []fl.ModelUpdate, evaluations []fl.Evaluation, started, completed time.Time) (fl.RoundRecord, error) {
	total, err := fl.TotalSamples(updates)
	if err != nil {
		return fl.RoundRecord{}, err
	}

	participants := make([]string, 0, len(updates))
	var local float64
	for _, u := range updates {
		participants = append(participants, u.ParticipantID)
		local += u.LocalAccuracy
	}
	slices.Sort(participants)

	rec := fl.RoundRecord{
		Round:            round,
		Participants:     participants,
		Parameters:       slices.Clone(model.Parameters),
		TotalSamples:     total,
		AvgLocalAccuracy: local / float64(len(updates)),
		Evaluations:      len(evaluations),
		StartedAt:        started,
		CompletedAt:      completed,
	}
	if len(evaluations) > 0 {
		var global float64
		for _, e := range evaluations {
			global += e.Accuracy
		}
		rec.AvgGlobalAccuracy = global / float64(len(evaluations))
	}

	return rec, nil
}

func (o *Orchestrator) fail(ctx context.Context, res Result, err error) (Result, error) {
	phase := PhaseFailed
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		phase = PhaseCancelled
	}
	res.Reason = err.Error()

	o.update(func(s *RunStatus) {
		s.Phase = phase
		s.Reason = res.Reason
		s.CompletedAt = time.Now()
	})
	o.logger.WarnContext(ctx, "run aborted",
		slog.String("run_id", o.runID),
		slog.Int("completed_rounds", len(res.History)),
		slog.Any("error", err),
	)
	if nerr := o.notifier.RunCompleted(context.WithoutCancel(ctx), res); nerr != nil {
		o.logger.WarnContext(ctx, "failed to notify run completion", slog.Any("error", nerr))
	}

	return res, err
}

func (o *Orchestrator) update(fn func(*RunStatus)) {
	o.mu.Lock()
	defer o.mu.Unlock()

	fn(&o.status)
}

func (o *Orchestrator) Status() RunStatus {
	o.mu.RLock()
	status := o.status
	o.mu.RUnlock()

	status.Active = o.agg.Active()

	return status
}

func (o *Orchestrator) RunID() string {
	return o.runID
}
