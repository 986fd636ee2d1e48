package main

import (
	"context"
	"log"
	"os"

	"github.com/absmach/fedavg/fedavgd"
	"github.com/absmach/supermq/pkg/server"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const pathEnv = ".env"

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if _, err := os.Stat(pathEnv); err == nil {
		_ = godotenv.Load(pathEnv)
	}

	cfg := fedavgd.CoordinatorConfig{}
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("failed to load configuration : %s", err.Error())
	}

	httpServerConfig := server.Config{Port: fedavgd.DefHTTPPort}
	if err := env.ParseWithOptions(&httpServerConfig, env.Options{Prefix: fedavgd.EnvPrefixHTTP}); err != nil {
		log.Fatalf("failed to load HTTP server configuration : %s", err.Error())
	}

	if err := fedavgd.StartCoordinator(ctx, cancel, cfg, httpServerConfig); err != nil {
		log.Fatal(err)
	}
}
