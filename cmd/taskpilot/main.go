// Command taskpilot scores, matches and tracks TickTick tasks with an LLM
// breakdown. It runs the HTTP API, the terminal dashboard and one-shot commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

type rootOptions struct {
	configPath string
	jsonOut    bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "taskpilot",
		Short:         "Prioritize TickTick tasks with an Eisenhower score and LLM breakdowns",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", os.Getenv("TASKPILOT_CONFIG"), "path to a YAML config file")
	root.PersistentFlags().BoolVar(&opts.jsonOut, "json", false, "print results as JSON")

	root.AddCommand(
		serveCmd(opts),
		dashboardCmd(opts),
		syncCmd(opts),
		analyzeCmd(opts),
		topCmd(opts),
		energyCmd(opts),
		staleCmd(opts),
		unstuckCmd(opts),
		vagueCmd(opts),
		clarifyCmd(opts),
		dailyCmd(opts),
		logEnergyCmd(opts),
		energyPatternsCmd(opts),
		linkCmd(opts),
		doneCmd(opts),
		backfillCmd(opts),
		migrateCmd(opts),
	)
	return root
}
