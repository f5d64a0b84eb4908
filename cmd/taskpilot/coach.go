package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sandeepkv93/taskpilot/internal/clarity"
	"github.com/sandeepkv93/taskpilot/internal/model"
)

func unstuckCmd(opts *rootOptions) *cobra.Command {
	var refresh bool
	cmd := &cobra.Command{
		Use:   "unstuck TASK_ID",
		Short: "Show coaching for a stale task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := commandContext(cmd)
			defer stop()
			a, err := bootstrap(ctx, opts, bootOptions{})
			if err != nil {
				return err
			}
			defer a.close()

			help, err := a.svc.Unstuck(ctx, args[0], refresh)
			if err != nil {
				return err
			}
			if opts.jsonOut {
				return printJSON(cmd.OutOrStdout(), help)
			}
			printUnstuck(cmd.OutOrStdout(), help)
			return nil
		},
	}
	cmd.Flags().BoolVar(&refresh, "refresh", false, "ask again instead of showing the stored help")
	return cmd
}

func printUnstuck(w io.Writer, help model.Unstuck) {
	fmt.Fprintf(w, "open %d day(s)\n", help.DaysOpen)
	fmt.Fprintf(w, "tiny first step: %s\n", help.TinyFirstStep)
	if len(help.Blockers) > 0 {
		fmt.Fprintln(w, "likely blockers:")
		for _, b := range help.Blockers {
			fmt.Fprintf(w, "  - %s\n", b)
		}
	}
	if len(help.Questions) > 0 {
		fmt.Fprintln(w, "ask yourself:")
		for _, q := range help.Questions {
			fmt.Fprintf(w, "  - %s\n", q)
		}
	}
	if help.Reframe != "" {
		fmt.Fprintf(w, "reframe: %s\n", help.Reframe)
	}
	if help.Encouragement != "" {
		fmt.Fprintln(w, help.Encouragement)
	}
}

func vagueCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "vague",
		Short: "Show open tasks that need clarifying",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := commandContext(cmd)
			defer stop()
			a, err := bootstrap(ctx, opts, bootOptions{})
			if err != nil {
				return err
			}
			defer a.close()

			items, err := a.svc.Vague(ctx)
			if err != nil {
				return err
			}
			if opts.jsonOut {
				return printJSON(cmd.OutOrStdout(), items)
			}
			w := table(cmd.OutOrStdout(), "ID", "REASONS", "TITLE")
			for _, v := range items {
				row(w, v.Insight.ExternalTaskID, reasons(v.Reasons), v.Insight.Title)
			}
			return w.Flush()
		},
	}
}

func reasons(rs []clarity.Reason) string {
	parts := make([]string, 0, len(rs))
	for _, r := range rs {
		parts = append(parts, string(r))
	}
	return strings.Join(parts, ",")
}

func clarifyCmd(opts *rootOptions) *cobra.Command {
	var answers []string
	cmd := &cobra.Command{
		Use:   "clarify TASK_ID",
		Short: "Show clarifying questions for a vague task, or answer them",
		Long: "Without --answer, prints the questions, asking the reasoning service the first time.\n" +
			"--answer N=text answers question N (1-based) and may be repeated.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := commandContext(cmd)
			defer stop()
			a, err := bootstrap(ctx, opts, bootOptions{})
			if err != nil {
				return err
			}
			defer a.close()

			report, err := a.svc.ClarifyingQuestions(ctx, args[0])
			if err != nil {
				return err
			}
			if len(answers) > 0 {
				byQuestion, err := parseAnswers(answers, report.Questions)
				if err != nil {
					return err
				}
				saved, err := a.svc.SaveClarifyingAnswers(ctx, args[0], byQuestion)
				if err != nil {
					return err
				}
				report.Answers = saved.Answers
			}
			if opts.jsonOut {
				return printJSON(cmd.OutOrStdout(), report)
			}
			out := cmd.OutOrStdout()
			if !report.Vague && len(report.Questions) == 0 {
				_, err = fmt.Fprintf(out, "%s looks clear enough\n", report.TaskID)
				return err
			}
			for i, q := range report.Questions {
				fmt.Fprintf(out, "%d. %s\n", i+1, q)
				if ans := report.Answers[q]; ans != "" {
					fmt.Fprintf(out, "   -> %s\n", ans)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringArrayVarP(&answers, "answer", "a", nil, "answer as N=text")
	return cmd
}

// parseAnswers maps "N=text" onto the Nth question.
func parseAnswers(raw, questions []string) (map[string]string, error) {
	out := make(map[string]string, len(raw))
	for _, r := range raw {
		num, text, ok := strings.Cut(r, "=")
		if !ok {
			return nil, fmt.Errorf("answer %q must look like N=text", r)
		}
		n, err := strconv.Atoi(strings.TrimSpace(num))
		if err != nil || n < 1 || n > len(questions) {
			return nil, fmt.Errorf("answer %q: question number must be 1..%d", r, len(questions))
		}
		out[questions[n-1]] = text
	}
	return out, nil
}

func dailyCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "daily",
		Short: "Show today's review: suggested energy, top priorities, due today, stale and vague tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := commandContext(cmd)
			defer stop()
			a, err := bootstrap(ctx, opts, bootOptions{})
			if err != nil {
				return err
			}
			defer a.close()

			r, err := a.svc.Daily(ctx)
			if err != nil {
				return err
			}
			if opts.jsonOut {
				return printJSON(cmd.OutOrStdout(), r)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s  %d open task(s), suggested energy %s (%s)\n\n", r.Date, r.OpenTasks, r.Energy.Level, r.Energy.Basis)

			fmt.Fprintln(out, "top priorities")
			w := table(out, "ID", "QUADRANT", "SCORE", "TITLE")
			for _, s := range r.Top {
				row(w, s.Insight.ExternalTaskID, string(s.Result.Quadrant), fmt.Sprintf("%.1f", s.Result.Score), s.Insight.Title)
			}
			if err := w.Flush(); err != nil {
				return err
			}

			if len(r.DueToday) > 0 {
				fmt.Fprintln(out, "\ndue today")
				w = table(out, "ID", "DUE", "TITLE")
				for _, s := range r.DueToday {
					row(w, s.Insight.ExternalTaskID, s.Insight.DueAt.Local().Format("15:04"), s.Insight.Title)
				}
				if err := w.Flush(); err != nil {
					return err
				}
			}
			if len(r.Stale) > 0 {
				fmt.Fprintf(out, "\nstale (%d)\n", r.StaleTotal)
				w = table(out, "ID", "DAYS", "TITLE")
				for _, s := range r.Stale {
					row(w, s.Insight.ExternalTaskID, strconv.Itoa(s.Days()), s.Insight.Title)
				}
				if err := w.Flush(); err != nil {
					return err
				}
			}
			if len(r.Vague) > 0 {
				fmt.Fprintf(out, "\nneeds clarifying (%d)\n", r.VagueTotal)
				w = table(out, "ID", "REASONS", "TITLE")
				for _, v := range r.Vague {
					row(w, v.Insight.ExternalTaskID, reasons(v.Reasons), v.Insight.Title)
				}
				return w.Flush()
			}
			return nil
		},
	}
}

func logEnergyCmd(opts *rootOptions) *cobra.Command {
	var focus string
	cmd := &cobra.Command{
		Use:   "log-energy low|medium|high",
		Short: "Record how much energy you have right now",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			level, err := model.ParseEnergyLevel(args[0])
			if err != nil {
				return err
			}
			f, err := model.ParseFocusQuality(focus)
			if err != nil {
				return err
			}
			ctx, stop := commandContext(cmd)
			defer stop()
			a, err := bootstrap(ctx, opts, bootOptions{})
			if err != nil {
				return err
			}
			defer a.close()

			logged, err := a.svc.LogEnergy(ctx, level, f)
			if err != nil {
				return err
			}
			if opts.jsonOut {
				return printJSON(cmd.OutOrStdout(), logged)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "logged %s energy for %s %s\n", logged.Level, logged.Weekday, logged.DayPart)
			return err
		},
	}
	cmd.Flags().StringVar(&focus, "focus", "", "focus quality: scattered, okay or sharp")
	return cmd
}

func energyPatternsCmd(opts *rootOptions) *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "energy-patterns",
		Short: "Summarise logged energy by time of day",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := commandContext(cmd)
			defer stop()
			a, err := bootstrap(ctx, opts, bootOptions{})
			if err != nil {
				return err
			}
			defer a.close()

			p, err := a.svc.EnergyPatterns(ctx, days)
			if err != nil {
				return err
			}
			if opts.jsonOut {
				return printJSON(cmd.OutOrStdout(), p)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d reading(s) over %d day(s)\n", p.Samples, p.Days)
			w := table(cmd.OutOrStdout(), "WHEN", "USUAL", "LOW", "MEDIUM", "HIGH")
			for _, slot := range p.ByDayPart {
				row(w, string(slot.DayPart), string(slot.MostCommon),
					strconv.Itoa(slot.Distribution[model.EnergyLow]),
					strconv.Itoa(slot.Distribution[model.EnergyMedium]),
					strconv.Itoa(slot.Distribution[model.EnergyHigh]))
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVar(&days, "days", 0, "days of history to include (default from config)")
	return cmd
}
