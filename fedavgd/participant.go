package fedavgd

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"os"

	"github.com/0x6flab/namegenerator"
	"github.com/absmach/fedavg"
	"github.com/absmach/fedavg/participant"
	"github.com/absmach/fedavg/participant/logreg"
	"github.com/absmach/fedavg/pkg/codec"
	"github.com/absmach/fedavg/pkg/fl"
	"github.com/absmach/fedavg/pkg/transport"
)

type ParticipantConfig struct {
	LogLevel    string             `env:"PARTICIPANT_LOG_LEVEL"   envDefault:"info"`
	ConfigFile  string             `env:"PARTICIPANT_CONFIG_FILE"`
	Participant participant.Config `envPrefix:"PARTICIPANT_"`
}

// StartParticipant trains against the coordinator until the run completes and
// returns the final global model.
func StartParticipant(ctx context.Context, cfg ParticipantConfig) (fl.GlobalModel, error) {
	logger, err := NewLogger(cfg.LogLevel)
	if err != nil {
		return fl.GlobalModel{}, err
	}

	pcfg := cfg.Participant
	if cfg.ConfigFile != "" {
		file, err := fedavg.LoadConfig(cfg.ConfigFile)
		if err != nil {
			return fl.GlobalModel{}, err
		}
		file.ApplyParticipant(&pcfg)
	}
	if err := pcfg.Validate(); err != nil {
		return fl.GlobalModel{}, fmt.Errorf("invalid config: %w", err)
	}
	if pcfg.ID == "" {
		pcfg.ID = namegenerator.NewGenerator().Generate()
	}

	trainer, err := NewTrainer(pcfg)
	if err != nil {
		return fl.GlobalModel{}, err
	}

	wire, err := codec.New(pcfg.Codec)
	if err != nil {
		return fl.GlobalModel{}, err
	}

	dctx, cancel := context.WithTimeout(ctx, pcfg.DialTimeout)
	defer cancel()
	conn, err := transport.Dial(dctx, pcfg.CoordinatorAddress, wire)
	if err != nil {
		return fl.GlobalModel{}, err
	}
	defer conn.Close()

	logger.Info("connected to coordinator",
		slog.String("participant_id", pcfg.ID),
		slog.String("address", pcfg.CoordinatorAddress),
		slog.Int("n_samples", trainer.Samples()),
	)

	return participant.NewClient(pcfg.ID, conn, trainer, pcfg.KeepaliveInterval, logger).Run(ctx)
}

// NewTrainer loads the CSV partition, or generates a synthetic one seeded by
// the participant id, and holds out the test fraction.
func NewTrainer(cfg participant.Config) (*logreg.Trainer, error) {
	var (
		data logreg.Dataset
		err  error
	)
	switch cfg.DataPath {
	case "":
		h := fnv.New64a()
		_, _ = h.Write([]byte(cfg.ID))
		data, err = logreg.Synthetic(cfg.SyntheticSamples, cfg.SyntheticFeatures, h.Sum64())
	default:
		f, ferr := os.Open(cfg.DataPath)
		if ferr != nil {
			return nil, fmt.Errorf("failed to open dataset: %w", ferr)
		}
		defer f.Close()
		data, err = logreg.LoadCSV(f)
	}
	if err != nil {
		return nil, err
	}

	train, test, err := data.Split(cfg.TestFraction, cfg.Seed)
	if err != nil {
		return nil, err
	}

	return logreg.New(train, test, logreg.Options{
		Epochs:       cfg.Epochs,
		LearningRate: cfg.LearningRate,
	})
}
