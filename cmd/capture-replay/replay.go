package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Gibo2706/BudgetTrackerV2-sub000/cmd/api"
	"github.com/Gibo2706/BudgetTrackerV2-sub000/internal/domain/capture/dedup"
	"github.com/Gibo2706/BudgetTrackerV2-sub000/internal/domain/capture/rates"
	"github.com/Gibo2706/BudgetTrackerV2-sub000/internal/domain/capture/repository"
	"github.com/Gibo2706/BudgetTrackerV2-sub000/internal/domain/capture/rules"
	"github.com/Gibo2706/BudgetTrackerV2-sub000/internal/domain/capture/service"
	"github.com/Gibo2706/BudgetTrackerV2-sub000/internal/domain/common"
	"github.com/Gibo2706/BudgetTrackerV2-sub000/pkg/config"
)

type replayOptions struct {
	dbPath     string
	smsPackage string
	since      time.Time
	dryRun     bool
}

type replaySummary struct {
	Read      int
	Skipped   int
	Malformed int
	Outcomes  map[service.Outcome]int
	Stored    map[common.SourceKind]int
}

func newReplayCmd(v *viper.Viper) *cobra.Command {
	var (
		opts  replayOptions
		since string
	)

	cmd := &cobra.Command{
		Use:   "replay [backup.xml]",
		Short: "Replay an SMS backup export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(v)
			if err != nil {
				return err
			}
			captureCfg, err := config.CaptureFromViper(v)
			if err != nil {
				return err
			}
			if since != "" {
				opts.since, err = time.ParseInLocation(time.DateOnly, since, time.Local)
				if err != nil {
					return fmt.Errorf("invalid --since %q, expected YYYY-MM-DD: %w", since, err)
				}
			}

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open backup: %w", err)
			}
			defer f.Close()

			summary, err := runReplay(cmd.Context(), opts, *captureCfg, logger, f, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			return summary.write(cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.dbPath, "db", "capture.db", "SQLite database path")
	cmd.Flags().StringVar(&opts.smsPackage, "sms-package", "com.google.android.apps.messaging", "package name reported for replayed messages")
	cmd.Flags().StringVar(&since, "since", "", "only replay messages received on or after this date (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "parse and print candidates without storing them")
	cmd.Flags().Int("workers", 0, "worker goroutines (0 = GOMAXPROCS)")
	cmd.Flags().Bool("strict", false, "serialise dedup check and insert")
	_ = v.BindPFlag("CAPTURE_WORKERS", cmd.Flags().Lookup("workers"))
	_ = v.BindPFlag("CAPTURE_STRICT_DEDUP", cmd.Flags().Lookup("strict"))
	return cmd
}

func runReplay(ctx context.Context, opts replayOptions, cfg config.CaptureConfig, logger *slog.Logger, in io.Reader, out io.Writer) (*replaySummary, error) {
	tables, err := rules.LoadFile(cfg.RulesFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load capture rules: %w", err)
	}
	rateTable, err := rates.NewTable(cfg.HomeCurrency, cfg.Rates)
	if err != nil {
		return nil, fmt.Errorf("failed to build rate table: %w", err)
	}
	pipeline, err := api.BuildPipeline(tables, rateTable, cfg, logger)
	if err != nil {
		return nil, err
	}

	reader := newBackupReader(in, opts.smsPackage, opts.since)
	summary := &replaySummary{
		Outcomes: make(map[service.Outcome]int),
		Stored:   make(map[common.SourceKind]int),
	}

	if opts.dryRun {
		err = dryRun(reader, pipeline, summary, out)
	} else {
		err = replayInto(ctx, opts.dbPath, reader, pipeline, cfg, logger, summary)
	}
	summary.Skipped = reader.skipped
	summary.Malformed = reader.malformed
	return summary, err
}

func dryRun(reader *backupReader, pipeline *service.Pipeline, summary *replaySummary, out io.Writer) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "POSTED\tAMOUNT\tTYPE\tCATEGORY\tDESCRIPTION")

	for {
		event, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		summary.Read++

		candidate, outcome, err := pipeline.Parse(event)
		if err != nil {
			outcome = service.OutcomeFailed
		}
		summary.Outcomes[outcome]++
		if candidate == nil {
			continue
		}
		fmt.Fprintf(tw, "%s\t%s %s\t%s\t%s\t%s\n",
			candidate.Timestamp.Format(time.DateTime),
			candidate.Amount.StringFixed(2), candidate.Currency,
			candidate.Type, candidate.Category, candidate.Description,
		)
	}
	return tw.Flush()
}

func replayInto(ctx context.Context, dbPath string, reader *backupReader, pipeline *service.Pipeline, cfg config.CaptureConfig, logger *slog.Logger, summary *replaySummary) error {
	repo, err := repository.NewSQLiteCaptureRepository(ctx, dbPath, logger)
	if err != nil {
		return err
	}
	defer repo.Close()

	svc := service.NewCaptureService(
		pipeline,
		dedup.New(repo, api.DedupConfig(cfg), logger),
		repo,
		service.NewLogAcknowledger(logger),
		service.Config{StrictDedup: cfg.StrictDedup},
		logger,
	)

	dispatcher := service.NewDispatcher(svc, cfg.Workers, cfg.QueueSize, logger)
	var mu sync.Mutex
	dispatcher.OnResult(func(_ common.NotificationEvent, outcome service.Outcome, _ error) {
		mu.Lock()
		summary.Outcomes[outcome]++
		mu.Unlock()
	})
	dispatcher.Start(ctx)

	var readErr error
	for {
		event, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			readErr = err
			break
		}
		if err := dispatcher.SubmitWait(ctx, event); err != nil {
			readErr = err
			break
		}
		summary.Read++
	}
	dispatcher.Close()
	if readErr != nil {
		return readErr
	}

	summary.Stored, err = repo.CountBySource(ctx)
	return err
}

func (s *replaySummary) write(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "messages read\t%d\n", s.Read)
	fmt.Fprintf(tw, "messages skipped\t%d\n", s.Skipped)
	fmt.Fprintf(tw, "messages malformed\t%d\n", s.Malformed)

	outcomes := make([]string, 0, len(s.Outcomes))
	for o := range s.Outcomes {
		outcomes = append(outcomes, string(o))
	}
	sort.Strings(outcomes)
	for _, o := range outcomes {
		fmt.Fprintf(tw, "outcome %s\t%d\n", o, s.Outcomes[service.Outcome(o)])
	}
	sources := make([]string, 0, len(s.Stored))
	for source := range s.Stored {
		sources = append(sources, string(source))
	}
	sort.Strings(sources)
	for _, source := range sources {
		fmt.Fprintf(tw, "stored from %s\t%d\n", source, s.Stored[common.SourceKind(source)])
	}
	return tw.Flush()
}
