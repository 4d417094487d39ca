package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/trelay/railstream/cli/render"
	"github.com/trelay/railstream/cli/tui"
	"github.com/trelay/railstream/client"
	"github.com/trelay/railstream/stations"
	"github.com/trelay/railstream/stream"
	"github.com/trelay/railstream/types"
)

// AnalyzeCommand returns the analyze command: run one streaming analysis
// session against a server and render the result.
func AnalyzeCommand() *cli.Command {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:     "from",
			Usage:    "Origin CRS code, e.g. BTN",
			Required: true,
		},
		&cli.StringFlag{
			Name:     "to",
			Usage:    "Destination CRS code, e.g. VIC",
			Required: true,
		},
		&cli.StringFlag{
			Name:  "from-time",
			Usage: "Departure window start, HHMM",
			Value: "0000",
		},
		&cli.StringFlag{
			Name:  "to-time",
			Usage: "Departure window end, HHMM",
			Value: "2359",
		},
		&cli.StringFlag{
			Name:     "from-date",
			Usage:    "Date range start, YYYY-MM-DD",
			Required: true,
		},
		&cli.StringFlag{
			Name:     "to-date",
			Usage:    "Date range end, YYYY-MM-DD",
			Required: true,
		},
		&cli.StringFlag{
			Name:  "days",
			Usage: "Day pattern: WEEKDAY, SATURDAY, or SUNDAY",
			Value: types.DaysWeekday,
		},
		&cli.StringSliceFlag{
			Name:  "toc",
			Usage: "Restrict to operator codes (repeatable)",
		},
		&cli.StringSliceFlag{
			Name:  "tolerance",
			Usage: "Upstream delay tolerance bands (repeatable)",
		},
		&cli.BoolFlag{
			Name:  "tui",
			Usage: "Interactive progress view",
		},
		&cli.BoolFlag{
			Name:  "quiet",
			Usage: "Suppress progress output",
		},
		ServerFlag,
	}
	flags = append(flags, OutputFlags()...)

	return &cli.Command{
		Name:   "analyze",
		Usage:  "Analyze delays for a route and date range",
		Flags:  flags,
		Action: analyzeAction,
	}
}

func analyzeAction(c *cli.Context) error {
	renderer, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	baseURL, err := serverURL(c, cfg)
	if err != nil {
		return cli.Exit(err.Error(), exitFailure)
	}

	cl, err := client.New(client.Config{
		BaseURL: baseURL,
		Headers: cfg.Client.Headers,
	})
	if err != nil {
		return err
	}

	req := &types.AnalysisRequest{
		FromLoc:   strings.ToUpper(c.String("from")),
		ToLoc:     strings.ToUpper(c.String("to")),
		FromTime:  c.String("from-time"),
		ToTime:    c.String("to-time"),
		FromDate:  c.String("from-date"),
		ToDate:    c.String("to-date"),
		Days:      strings.ToUpper(c.String("days")),
		TOCFilter: c.StringSlice("toc"),
		Tolerance: c.StringSlice("tolerance"),
	}
	if err := req.Validate(); err != nil {
		return cli.Exit(err.Error(), exitFailure)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var sub stream.Subscriber
	if !c.Bool("tui") && !c.Bool("quiet") && isStderrTTY() {
		sub = progressPrinter()
	}
	session, err := cl.Analyze(ctx, req, sub)
	if err != nil {
		return cli.Exit(err.Error(), exitFailure)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		session.Cancel()
	}()

	var outcome types.Outcome
	if c.Bool("tui") {
		dir := stations.Default()
		route := dir.Name(req.FromLoc) + " → " + dir.Name(req.ToLoc)
		outcome, err = tui.Run(route, session)
	} else {
		outcome, err = session.Wait(ctx)
	}
	if err != nil {
		return cli.Exit(err.Error(), exitFailure)
	}

	switch outcome.Status {
	case types.OutcomeSuccess:
		result, err := resultFromOutcome(outcome)
		if err != nil {
			return err
		}
		if err := renderer.Render(result); err != nil {
			return err
		}
		return nil
	case types.OutcomeCancelled:
		return cli.Exit("analysis cancelled", exitCancelled)
	default:
		return cli.Exit(outcome.Message, exitFailure)
	}
}

// progressPrinter writes progress lines to stderr, overwriting countable
// ticks in place.
func progressPrinter() stream.Subscriber {
	return stream.SubscriberFuncs{
		Progress: func(p types.ProgressSnapshot) {
			if p.Total > 0 {
				fmt.Fprintf(os.Stderr, "\r%s: %d/%d (%.0f%%)", p.Step, p.Current, p.Total, p.Percent())
				if p.Current == p.Total {
					fmt.Fprintln(os.Stderr)
				}
				return
			}
			fmt.Fprintf(os.Stderr, "%s: %s\n", p.Step, p.Message)
		},
	}
}

// resultFromOutcome decodes the opaque complete payload back into the
// typed result.
func resultFromOutcome(outcome types.Outcome) (*types.AnalysisResult, error) {
	raw, err := json.Marshal(outcome.Result)
	if err != nil {
		return nil, fmt.Errorf("decode result: %w", err)
	}
	var result types.AnalysisResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decode result: %w", err)
	}
	return &result, nil
}
