package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/absmach/fedavg/fedavgd"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const pathEnv = ".env"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if _, err := os.Stat(pathEnv); err == nil {
		_ = godotenv.Load(pathEnv)
	}

	cfg := fedavgd.ParticipantConfig{}
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("failed to load configuration : %s", err.Error())
	}

	model, err := fedavgd.StartParticipant(ctx, cfg)
	if err != nil {
		slog.Error("participant exited with error", slog.Any("error", err))
		os.Exit(1)
	}

	slog.Info("run completed",
		slog.Int("round", model.Round),
		slog.Any("parameters", model.Parameters),
	)
}
