package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/cleared-dev/spendwise/internal/export"
	"github.com/cleared-dev/spendwise/internal/id"
	"github.com/cleared-dev/spendwise/internal/importer"
	"github.com/cleared-dev/spendwise/internal/model"
	"github.com/cleared-dev/spendwise/internal/pipeline"
	"github.com/cleared-dev/spendwise/internal/runlog"
)

type analyzeOptions struct {
	format     string
	goal       string
	window     int
	period     string
	trace      bool
	output     string
	exportPath string
	logDir     string
	progress   bool
}

func newAnalyzeCommand(a *app) *cobra.Command {
	var opts analyzeOptions

	cmd := &cobra.Command{
		Use:   "analyze [file]",
		Short: "Categorise a transaction file and report insights",
		Long: `Runs the insight pipeline over a ledger file (or stdin when the file
is omitted or "-") and prints the categorised report.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "-"
			if len(args) > 0 {
				path = args[0]
			}
			return a.runAnalyze(cmd, path, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.format, "format", pipeline.DefaultFormat, "input format ("+strings.Join(importer.DefaultRegistry().Formats(), ", ")+")")
	f.StringVar(&opts.goal, "goal", "0", "savings goal for the period")
	f.IntVar(&opts.window, "window", 0, "what-if window in days (default: period profile)")
	f.StringVar(&opts.period, "period", "", "reporting period (week, month)")
	f.BoolVar(&opts.trace, "trace", false, "include every intermediate stage output")
	f.StringVarP(&opts.output, "output", "o", "text", "output format (text, json)")
	f.StringVar(&opts.exportPath, "export", "", "write categorised rows to this CSV file")
	f.StringVar(&opts.logDir, "log-dir", "", "append a run record to <dir>/runs.csv")
	f.BoolVar(&opts.progress, "progress", true, "show a step progress bar on stderr")

	return cmd
}

func readInput(cmd *cobra.Command, path string) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	return string(data), nil
}

func (a *app) runAnalyze(cmd *cobra.Command, path string, opts analyzeOptions) error {
	if opts.output != "text" && opts.output != "json" {
		return fmt.Errorf("unknown output format %q", opts.output)
	}
	goal, err := decimal.NewFromString(opts.goal)
	if err != nil {
		return fmt.Errorf("parsing goal %q: %w", opts.goal, err)
	}
	raw, err := readInput(cmd, path)
	if err != nil {
		return err
	}

	p, err := a.buildPipeline(nil)
	if err != nil {
		return err
	}

	in := pipeline.Input{
		RawText:    raw,
		Goal:       goal,
		WindowDays: opts.window,
		Period:     model.Period(opts.period),
		Format:     opts.format,
	}

	var bar *progressbar.ProgressBar
	if opts.progress {
		bar = newStepBar(cmd.ErrOrStderr())
	}
	st, runErr := streamRun(cmd.Context(), p, in, bar)

	if opts.logDir != "" {
		if err := runlog.Append(opts.logDir, runlog.FromState(st, runErr, time.Now())); err != nil {
			a.log.Warn("could not write run log", "dir", opts.logDir, "error", err)
		}
	}
	if runErr != nil {
		return runErr
	}

	report, err := pipeline.BuildReport(st, opts.trace)
	if err != nil {
		return err
	}
	a.log.Debug("analysis complete", "run", id.Short(st.RunID), "rows", len(st.Rows))
	if opts.exportPath != "" {
		if err := export.WriteFile(opts.exportPath, report.CategorizedRows); err != nil {
			return fmt.Errorf("exporting rows: %w", err)
		}
		a.log.Info("exported rows", "path", opts.exportPath, "rows", len(report.CategorizedRows))
	}

	out := cmd.OutOrStdout()
	if opts.output == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	return renderReport(out, report)
}

// streamRun consumes the run's events, advancing bar once per finished step.
func streamRun(ctx context.Context, p *pipeline.Pipeline, in pipeline.Input, bar *progressbar.ProgressBar) (*pipeline.State, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	for ev := range p.Stream(ctx, in) {
		switch ev.Kind {
		case pipeline.EventStepStart:
			if bar != nil {
				bar.Describe(string(ev.Step))
			}
		case pipeline.EventStepComplete:
			if bar != nil {
				_ = bar.Add(1)
			}
		case pipeline.EventError:
			if bar != nil {
				_ = bar.Exit()
			}
			return ev.State, ev.Err
		case pipeline.EventComplete:
			if bar != nil {
				_ = bar.Finish()
			}
			return ev.State, nil
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return nil, errors.New("pipeline stopped without a terminal event")
}

func newStepBar(w io.Writer) *progressbar.ProgressBar {
	return progressbar.NewOptions(len(pipeline.Steps),
		progressbar.OptionSetWriter(w),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(30),
		progressbar.OptionSetDescription("starting"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() { fmt.Fprintln(w) }),
	)
}
