package cmd

import (
	"log/slog"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"caseflow/internal/bootstrap/logging"
	"caseflow/internal/errs"
	"caseflow/internal/usecase/caseconsole"
)

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Start the case board console",
	RunE: withApp(func(cmd *cobra.Command, rt *runtime) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		operator, _ := cmd.Flags().GetString("operator")
		status, _ := cmd.Flags().GetString("status")
		assignee, _ := cmd.Flags().GetString("assignee")
		refreshInterval, _ := cmd.Flags().GetDuration("refresh-interval")
		if refreshInterval <= 0 {
			refreshInterval = 5 * time.Second
		}

		changes := rt.Broker.Subscribe()
		defer rt.Broker.Unsubscribe(changes)

		model := caseconsole.NewBoardModel(ctx, rt.Cases, caseconsole.BoardOptions{
			Operator:        operator,
			StatusFilter:    status,
			AssigneeID:      assignee,
			RefreshInterval: refreshInterval,
			Changes:         changes,
		})

		program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
		if _, err := program.Run(); err != nil {
			return errs.Wrap(err, "run case console")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(consoleCmd)
	consoleCmd.Flags().String("operator", "", "Operator id recorded on console actions")
	consoleCmd.Flags().String("status", "", "Comma separated status filter")
	consoleCmd.Flags().String("assignee", "", "Assignee id filter")
	consoleCmd.Flags().Duration("refresh-interval", 5*time.Second, "Auto refresh interval")
}
