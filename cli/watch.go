package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"sync"
	"syscall"

	"github.com/absmach/fedavg/pkg/mqtt"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var mqttCfg = mqtt.Config{
	URL:       "tcp://localhost:1883",
	QoS:       1,
	BaseTopic: "fedavg",
}

// newPubSub is swapped in tests.
var newPubSub = func(cfg mqtt.Config) (mqtt.PubSub, error) {
	return mqtt.NewPubSub(cfg, slog.Default())
}

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch rounds",
		Long:  `Print round notifications from the broker until the run completes.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 0 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := watch(ctx, *cmd); err != nil {
				logErrorCmd(*cmd, err)
			}
		},
	}

	cmd.Flags().StringVarP(&mqttCfg.URL, "mqtt-address", "m", mqttCfg.URL, "MQTT broker address")
	cmd.Flags().StringVarP(&mqttCfg.BaseTopic, "base-topic", "t", mqttCfg.BaseTopic, "Base topic")
	cmd.Flags().StringVar(&mqttCfg.Username, "mqtt-username", mqttCfg.Username, "MQTT username")
	cmd.Flags().StringVar(&mqttCfg.Password, "mqtt-password", mqttCfg.Password, "MQTT password")

	return cmd
}

func watch(ctx context.Context, cmd cobra.Command) error {
	cfg := mqttCfg
	if cfg.ClientID == "" {
		cfg.ClientID = "fedavg-cli-" + uuid.NewString()
	}

	ps, err := newPubSub(cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to broker: %w", err)
	}
	defer func() {
		_ = ps.Disconnect(context.Background())
	}()

	done := make(chan struct{})
	var once sync.Once
	rounds, runs := mqtt.RoundsTopic(cfg.BaseTopic), mqtt.RunsTopic(cfg.BaseTopic)

	if err := ps.Subscribe(ctx, rounds, func(_ string, msg map[string]any) error {
		logJSONCmd(cmd, msg)

		return nil
	}); err != nil {
		return err
	}
	if err := ps.Subscribe(ctx, runs, func(_ string, msg map[string]any) error {
		logJSONCmd(cmd, msg)
		once.Do(func() { close(done) })

		return nil
	}); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
	case <-done:
	}

	for _, topic := range []string{rounds, runs} {
		if err := ps.Unsubscribe(context.Background(), topic); err != nil {
			return err
		}
	}

	return nil
}
