package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/sandeepkv93/taskpilot/internal/analyzer"
	"github.com/sandeepkv93/taskpilot/internal/model"
	"github.com/sandeepkv93/taskpilot/internal/service"
)

func limitFlag(cmd *cobra.Command, def int) *int {
	n := new(int)
	cmd.Flags().IntVarP(n, "limit", "n", def, "maximum number of tasks")
	return n
}

func topCmd(opts *rootOptions) *cobra.Command {
	var limit *int
	cmd := &cobra.Command{
		Use:   "top",
		Short: "Show the highest priority open tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := commandContext(cmd)
			defer stop()
			a, err := bootstrap(ctx, opts, bootOptions{})
			if err != nil {
				return err
			}
			defer a.close()

			items, err := a.svc.Top(ctx, *limit)
			if err != nil {
				return err
			}
			if opts.jsonOut {
				return printJSON(cmd.OutOrStdout(), items)
			}
			w := table(cmd.OutOrStdout(), "ID", "QUADRANT", "SCORE", "ENERGY", "EST", "TITLE")
			for _, s := range items {
				row(w, s.Insight.ExternalTaskID, string(s.Result.Quadrant), fmt.Sprintf("%.1f", s.Result.Score),
					string(s.Insight.EnergyLevel), minutes(s.Insight.EstimatedMinutes), s.Insight.Title)
			}
			return w.Flush()
		},
	}
	limit = limitFlag(cmd, service.DefaultTopLimit)
	return cmd
}

func energyCmd(opts *rootOptions) *cobra.Command {
	var limit *int
	cmd := &cobra.Command{
		Use:   "energy [low|medium|high]",
		Short: "Show open tasks that fit an energy level, or the suggested level for now",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var level model.EnergyLevel
			if len(args) == 1 {
				parsed, err := model.ParseEnergyLevel(args[0])
				if err != nil {
					return err
				}
				level = parsed
			}
			ctx, stop := commandContext(cmd)
			defer stop()
			a, err := bootstrap(ctx, opts, bootOptions{})
			if err != nil {
				return err
			}
			defer a.close()

			if level == "" {
				rec, err := a.svc.CurrentEnergy(ctx)
				if err != nil {
					return err
				}
				level = rec.Level
				if !opts.jsonOut {
					fmt.Fprintf(cmd.OutOrStdout(), "suggested energy: %s (%s, %s)\n", rec.Level, rec.DayPart, rec.Basis)
				}
			}

			items, err := a.svc.MatchEnergy(ctx, level, *limit)
			if err != nil {
				return err
			}
			if opts.jsonOut {
				return printJSON(cmd.OutOrStdout(), items)
			}
			w := table(cmd.OutOrStdout(), "ID", "FIT", "ENERGY", "SCORE", "EST", "TITLE")
			for _, m := range items {
				fit := "exact"
				if !m.Exact() {
					fit = "±" + strconv.Itoa(m.Distance)
				}
				row(w, m.Insight.ExternalTaskID, fit, string(m.Insight.EnergyLevel), fmt.Sprintf("%.1f", m.Result.Score),
					minutes(m.Insight.EstimatedMinutes), m.Insight.Title)
			}
			return w.Flush()
		},
	}
	limit = limitFlag(cmd, service.DefaultEnergyLimit)
	return cmd
}

func staleCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stale",
		Short: "Show open tasks older than the staleness threshold, longest open first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := commandContext(cmd)
			defer stop()
			a, err := bootstrap(ctx, opts, bootOptions{})
			if err != nil {
				return err
			}
			defer a.close()

			items, err := a.svc.Stale(ctx)
			if err != nil {
				return err
			}
			if opts.jsonOut {
				return printJSON(cmd.OutOrStdout(), items)
			}
			w := table(cmd.OutOrStdout(), "ID", "DAYS", "SCORE", "TITLE", "TINY STEP")
			for _, s := range items {
				step := "-"
				if s.Insight.Unstuck != nil {
					step = s.Insight.Unstuck.TinyFirstStep
				}
				row(w, s.Insight.ExternalTaskID, strconv.Itoa(s.Days()), fmt.Sprintf("%.1f", s.Insight.PriorityScore), s.Insight.Title, step)
			}
			return w.Flush()
		},
	}
}

func linkCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "link TASK_ID",
		Short: "Print the TickTick deep link for a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := commandContext(cmd)
			defer stop()
			a, err := bootstrap(ctx, opts, bootOptions{})
			if err != nil {
				return err
			}
			defer a.close()

			link := a.svc.ResolveLink(ctx, args[0])
			if opts.jsonOut {
				return printJSON(cmd.OutOrStdout(), link)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s\t(%s)\n", link.URL, link.Source)
			return err
		},
	}
}

func doneCmd(opts *rootOptions) *cobra.Command {
	var upstream bool
	cmd := &cobra.Command{
		Use:   "done TASK_ID",
		Short: "Mark a task complete, optionally in TickTick too",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := commandContext(cmd)
			defer stop()
			a, err := bootstrap(ctx, opts, bootOptions{})
			if err != nil {
				return err
			}
			defer a.close()

			err = a.svc.MarkComplete(ctx, args[0], upstream)
			if errors.Is(err, service.ErrUpstream) {
				fmt.Fprintf(cmd.OutOrStdout(), "completed %s locally\n", args[0])
				return err
			}
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "completed %s\n", args[0])
			return err
		},
	}
	cmd.Flags().BoolVar(&upstream, "upstream", false, "also complete the task in TickTick")
	return cmd
}

func syncCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Pull tasks from TickTick and analyze new or changed ones",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := commandContext(cmd)
			defer stop()
			a, err := bootstrap(ctx, opts, bootOptions{})
			if err != nil {
				return err
			}
			defer a.close()

			report, err := a.svc.Sync(ctx)
			if err != nil {
				return err
			}
			if opts.jsonOut {
				return printJSON(cmd.OutOrStdout(), report)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "listed %d, refreshed %d, completed %d, kept done %d\n",
				report.Listed, report.Refreshed, report.Completed, report.KeptDone)
			if report.Unstuck+report.UnstuckFailed > 0 {
				fmt.Fprintf(out, "unstuck help for %d stale task(s), %d failed\n", report.Unstuck, report.UnstuckFailed)
			}
			printReport(out, report.Analysis)
			return nil
		},
	}
}

func analyzeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "analyze TASK_ID...",
		Short: "Re-analyze specific TickTick tasks",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := commandContext(cmd)
			defer stop()
			a, err := bootstrap(ctx, opts, bootOptions{})
			if err != nil {
				return err
			}
			defer a.close()
			if err := a.cfg.RequireTickTick(); err != nil {
				return err
			}
			if err := a.cfg.RequireOpenRouter(); err != nil {
				return err
			}

			if len(args) == 1 {
				task, err := a.ticktick.GetTask(ctx, args[0])
				if err != nil {
					return err
				}
				in, err := a.analyzer.Analyze(ctx, task)
				if err != nil {
					return err
				}
				if opts.jsonOut {
					return printJSON(cmd.OutOrStdout(), in)
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%.1f\t%s\n", in.ExternalTaskID, in.Quadrant, in.PriorityScore, in.FirstStep)
				return err
			}

			tasks := make([]model.SourceTask, 0, len(args))
			for _, id := range args {
				task, err := a.ticktick.GetTask(ctx, id)
				if err != nil {
					return err
				}
				tasks = append(tasks, task)
			}
			report, err := a.analyzer.AnalyzeAll(ctx, tasks)
			if opts.jsonOut {
				if jerr := printJSON(cmd.OutOrStdout(), report); jerr != nil {
					return jerr
				}
				return err
			}
			printReport(cmd.OutOrStdout(), report)
			return err
		},
	}
}

func backfillCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "backfill",
		Short: "Fill in missing project ids from TickTick",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := commandContext(cmd)
			defer stop()
			a, err := bootstrap(ctx, opts, bootOptions{})
			if err != nil {
				return err
			}
			defer a.close()

			report, err := a.svc.BackfillProjectIDs(ctx)
			if err != nil {
				return err
			}
			if opts.jsonOut {
				return printJSON(cmd.OutOrStdout(), report)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "total %d, updated %d, already had %d, still missing %d\n",
				report.Total, report.Updated, report.AlreadyHad, report.StillMissing)
			return err
		},
	}
}

func printReport(w io.Writer, r analyzer.Report) {
	fmt.Fprintf(w, "run %s: %d task(s), %d succeeded, %d failed, %d skipped in %s\n",
		r.RunID, r.Total, r.Succeeded, r.Failed, r.Skipped, r.Duration.Round(time.Millisecond))
	if r.TimedOut {
		fmt.Fprintln(w, "batch timed out; skipped tasks will be retried on the next sync")
	}
	for _, item := range r.FailedItems() {
		fmt.Fprintf(w, "  failed %s: %s\n", item.TaskID, item.Error)
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func table(w io.Writer, headers ...string) *tabwriter.Writer {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	row(tw, headers...)
	return tw
}

func row(w io.Writer, cells ...string) {
	for i, c := range cells {
		if i > 0 {
			fmt.Fprint(w, "\t")
		}
		fmt.Fprint(w, c)
	}
	fmt.Fprintln(w)
}

func minutes(n int) string {
	return strconv.Itoa(n) + "m"
}
