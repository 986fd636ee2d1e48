package coordinator

import (
	"context"
	"time"

	"github.com/absmach/fedavg/pkg/fl"
	"github.com/absmach/fedavg/pkg/mqtt"
)

// Notifier announces run progress to external observers.
type Notifier interface {
	RoundCompleted(ctx context.Context, runID string, rec fl.RoundRecord) error
	RunCompleted(ctx context.Context, res Result) error
}

type RoundNotification struct {
	RunID             string    `json:"run_id"`
	Round             int       `json:"round"`
	NextRound         int       `json:"next_round"`
	Participants      []string  `json:"participants"`
	TotalSamples      int       `json:"total_samples"`
	AvgLocalAccuracy  float64   `json:"avg_local_accuracy"`
	AvgGlobalAccuracy float64   `json:"avg_global_accuracy"`
	Evaluations       int       `json:"evaluations"`
	CompletedAt       time.Time `json:"completed_at"`
}

type RunNotification struct {
	RunID        string    `json:"run_id"`
	Rounds       int       `json:"rounds"`
	FinalRound   int       `json:"final_round"`
	Parameters   []float64 `json:"parameters"`
	StoppedEarly bool      `json:"stopped_early"`
	Reason       string    `json:"reason"`
}

type mqttNotifier struct {
	pubsub    mqtt.PubSub
	baseTopic string
}

func NewMQTTNotifier(pubsub mqtt.PubSub, baseTopic string) Notifier {
	return &mqttNotifier{
		pubsub:    pubsub,
		baseTopic: baseTopic,
	}
}

func (n *mqttNotifier) RoundCompleted(ctx context.Context, runID string, rec fl.RoundRecord) error {
	return n.pubsub.Publish(ctx, mqtt.RoundsTopic(n.baseTopic), RoundNotification{
		RunID:             runID,
		Round:             rec.Round,
		NextRound:         rec.Round + 1,
		Participants:      rec.Participants,
		TotalSamples:      rec.TotalSamples,
		AvgLocalAccuracy:  rec.AvgLocalAccuracy,
		AvgGlobalAccuracy: rec.AvgGlobalAccuracy,
		Evaluations:       rec.Evaluations,
		CompletedAt:       rec.CompletedAt,
	})
}

func (n *mqttNotifier) RunCompleted(ctx context.Context, res Result) error {
	return n.pubsub.Publish(ctx, mqtt.RunsTopic(n.baseTopic), RunNotification{
		RunID:        res.RunID,
		Rounds:       len(res.History),
		FinalRound:   res.Model.Round,
		Parameters:   res.Model.Parameters,
		StoppedEarly: res.StoppedEarly,
		Reason:       res.Reason,
	})
}

type noopNotifier struct{}

func NewNoopNotifier() Notifier {
	return noopNotifier{}
}

func (noopNotifier) RoundCompleted(context.Context, string, fl.RoundRecord) error {
	return nil
}

func (noopNotifier) RunCompleted(context.Context, Result) error {
	return nil
}
