package main

import (
	"log"

	"github.com/absmach/fedavg/cli"
	"github.com/absmach/fedavg/fedavgd"
	"github.com/absmach/fedavg/pkg/sdk"
	"github.com/spf13/cobra"
)

func main() {
	coordinatorURL := cli.DefCoordinatorURL

	rootCmd := &cobra.Command{
		Use:   "fedavg-cli",
		Short: "FedAvg CLI",
		Long:  `FedAvg CLI is a command line interface for running and inspecting federated averaging runs.`,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			sdkConf := sdk.Config{
				CoordinatorURL:  coordinatorURL,
				TLSVerification: cli.DefTLSVerification,
			}
			s := sdk.NewSDK(sdkConf)
			cli.SetSDK(s)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&coordinatorURL, "coordinator-url", "u", coordinatorURL, "Coordinator monitoring API URL")

	rootCmd.AddCommand(
		cli.NewStatusCmd(),
		cli.NewRoundsCmd(),
		cli.NewModelCmd(),
		cli.NewSessionsCmd(),
		fedavgd.NewCoordinatorCmd(),
		fedavgd.NewParticipantCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
