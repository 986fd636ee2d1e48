package fedavgd

import (
	"context"
	"log/slog"

	"github.com/absmach/supermq/pkg/server"
	"github.com/caarlos0/env/v11"
	"github.com/spf13/cobra"
)

var (
	coordinatorCfg CoordinatorConfig
	participantCfg ParticipantConfig
)

func NewCoordinatorCmd() *cobra.Command {
	cmd := cobra.Command{
		Use:   "coordinator [start]",
		Short: "Coordinator management",
		Long:  `Start a FedAvg coordinator for a single run.`,
	}

	if err := env.Parse(&coordinatorCfg); err != nil {
		slog.Warn("failed to load coordinator defaults from environment", slog.Any("error", err))
	}

	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start coordinator",
		Long:  `Start coordinator, wait for participants and run every round.`,
		Run: func(cmd *cobra.Command, _ []string) {
			httpCfg := server.Config{Port: DefHTTPPort}
			if err := env.ParseWithOptions(&httpCfg, env.Options{Prefix: EnvPrefixHTTP}); err != nil {
				cmd.PrintErrf("failed to load HTTP server configuration: %s\n", err)

				return
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			if err := StartCoordinator(ctx, cancel, coordinatorCfg, httpCfg); err != nil {
				cmd.PrintErrf("failed to run coordinator: %s\n", err)
			}
		},
	}
	cmd.AddCommand(startCmd)

	flags := cmd.PersistentFlags()
	flags.StringVarP(&coordinatorCfg.LogLevel, "log-level", "l", coordinatorCfg.LogLevel, "Log level")
	flags.StringVarP(&coordinatorCfg.Address, "address", "a", coordinatorCfg.Address, "Participant listen address")
	flags.StringVarP(&coordinatorCfg.Codec, "codec", "c", coordinatorCfg.Codec, "Wire codec (json or cbor)")
	flags.StringVarP(&coordinatorCfg.ConfigFile, "config", "f", coordinatorCfg.ConfigFile, "TOML run file")
	flags.IntVarP(&coordinatorCfg.Run.ExpectedParticipants, "participants", "n", coordinatorCfg.Run.ExpectedParticipants, "Expected participants")
	flags.IntVarP(&coordinatorCfg.Run.Rounds, "rounds", "r", coordinatorCfg.Run.Rounds, "Number of rounds")
	flags.DurationVarP(&coordinatorCfg.Run.RoundTimeout, "round-timeout", "t", coordinatorCfg.Run.RoundTimeout, "Round timeout")
	flags.StringVarP(&coordinatorCfg.Storage.Type, "storage", "s", coordinatorCfg.Storage.Type, "History storage (memory, file or badger)")

	return &cmd
}

func NewParticipantCmd() *cobra.Command {
	cmd := cobra.Command{
		Use:   "participant [start]",
		Short: "Participant management",
		Long:  `Start a participant that trains a logistic regression model.`,
	}

	if err := env.Parse(&participantCfg); err != nil {
		slog.Warn("failed to load participant defaults from environment", slog.Any("error", err))
	}

	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start participant",
		Long:  `Start participant and train until the run completes.`,
		Run: func(cmd *cobra.Command, _ []string) {
			model, err := StartParticipant(cmd.Context(), participantCfg)
			if err != nil {
				cmd.PrintErrf("participant failed: %s\n", err)

				return
			}
			cmd.Printf("final model after round %d: %v\n", model.Round, model.Parameters)
		},
	}
	cmd.AddCommand(startCmd)

	p := &participantCfg.Participant
	flags := cmd.PersistentFlags()
	flags.StringVarP(&participantCfg.LogLevel, "log-level", "l", participantCfg.LogLevel, "Log level")
	flags.StringVarP(&participantCfg.ConfigFile, "config", "f", participantCfg.ConfigFile, "TOML run file")
	flags.StringVarP(&p.ID, "id", "i", p.ID, "Participant ID")
	flags.StringVarP(&p.CoordinatorAddress, "coordinator", "a", p.CoordinatorAddress, "Coordinator address")
	flags.StringVarP(&p.Codec, "codec", "c", p.Codec, "Wire codec (json or cbor)")
	flags.StringVarP(&p.DataPath, "data", "d", p.DataPath, "CSV partition, synthetic data when empty")
	flags.IntVarP(&p.Epochs, "epochs", "e", p.Epochs, "Local epochs per round")
	flags.Float64VarP(&p.LearningRate, "learning-rate", "r", p.LearningRate, "Learning rate")

	return &cmd
}
