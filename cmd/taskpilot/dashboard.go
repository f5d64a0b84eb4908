package main

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/sandeepkv93/taskpilot/internal/dashboard"
	"github.com/sandeepkv93/taskpilot/internal/nudge"
)

func dashboardCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Open the terminal dashboard",
		Long: `Open the terminal dashboard with priority, energy and stale panes.

Press / for the command palette and ? for help. Logs go to log.file when it
is set and are discarded otherwise.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := commandContext(cmd)
			defer stop()

			a, err := bootstrap(ctx, opts, bootOptions{quietStderr: true})
			if err != nil {
				return err
			}
			defer a.close()

			nudges := nudge.NewEngine(a.cfg.Dashboard.NudgeBuffer)
			nudges.Start()
			defer nudges.Stop()

			m := dashboard.New(a.svc, a.cfg.Dashboard,
				dashboard.WithNudges(nudges),
				dashboard.WithNotifier(dashboard.ExecDesktopNotifier{}),
				dashboard.WithLogger(a.logger.Named("dashboard")),
			)
			_, err = tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
			return err
		},
	}
}
