package cli

import (
	"strconv"

	"github.com/absmach/fedavg/pkg/sdk"
	"github.com/spf13/cobra"
)

var (
	DefCoordinatorURL         = "http://localhost:9090"
	DefTLSVerification        = false
	defOffset          uint64 = 0
	defLimit           uint64 = 10
)

var fsdk sdk.SDK

func SetSDK(s sdk.SDK) {
	fsdk = s
}

func NewStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Run status",
		Long:  `Show the phase and progress of the current run.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 0 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			s, err := fsdk.Status()
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, s)
		},
	}
}

func NewRoundsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rounds [list|view|watch]",
		Short: "Round history",
		Long:  `List, view and watch completed rounds.`,
	}

	var offset, limit uint64

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List rounds",
		Long:  `List completed rounds in ascending order.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 0 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			page, err := fsdk.ListRounds(offset, limit)
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, page)
		},
	}
	listCmd.Flags().Uint64VarP(&offset, "offset", "o", defOffset, "Offset")
	listCmd.Flags().Uint64VarP(&limit, "limit", "l", defLimit, "Limit")

	viewCmd := &cobra.Command{
		Use:   "view <round>",
		Short: "View round",
		Long:  `View the record of a completed round.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 1 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			round, err := strconv.Atoi(args[0])
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}

			r, err := fsdk.GetRound(round)
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, r)
		},
	}

	cmd.AddCommand(listCmd, viewCmd, newWatchCmd())

	return cmd
}

func NewModelCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "model [view]",
		Short: "Global model",
		Long:  `View the current global model.`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "view",
		Short: "View model",
		Long:  `View the current global model and its round.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 0 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			m, err := fsdk.GetModel()
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, m)
		},
	})

	return cmd
}

func NewSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions [list]",
		Short: "Participant sessions",
		Long:  `List participant sessions of the run.`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List sessions",
		Long:  `List every participant session with its state.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 0 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			page, err := fsdk.ListSessions()
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, page)
		},
	})

	return cmd
}
