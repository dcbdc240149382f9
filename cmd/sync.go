package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/doge-tracker/internal/fetch"
	"github.com/sells-group/doge-tracker/internal/pipeline"
	"github.com/sells-group/doge-tracker/internal/resilience"
	"github.com/sells-group/doge-tracker/internal/store"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Fetch the full contract listing and reconcile it into the dataset",
	Long: `Fetch every page of the DOGE savings contract listing and reconcile it
against the stored dataset, classifying records as inserted, updated,
deleted, or unchanged. Deletion markers are only set when the whole
listing was fetched; a failed run leaves the dataset untouched.

Use --source browser to fetch through headless Chrome instead of direct
HTTP, and --skip-if-current to end early when the source total matches
the stored record count.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		source, _ := cmd.Flags().GetString("source")
		if source == "" {
			source = cfg.Source
		}
		skipIfCurrent, _ := cmd.Flags().GetBool("skip-if-current")

		lock, err := store.AcquireRunLock(cfg.Paths.Lock)
		if err != nil {
			return err
		}
		defer lock.Release() //nolint:errcheck

		fetcher, cleanup, err := buildFetcher(source)
		if err != nil {
			return err
		}
		defer cleanup()

		st := store.NewCSVStore(cfg.Paths.Dataset, cfg.Paths.RawLog)
		runLog := store.NewRunLog(cfg.Paths.RunLog)

		driver := pipeline.New(fetcher, st, runLog, pipeline.Options{
			Source:        source,
			Cooldown:      time.Duration(cfg.API.CooldownSecs) * time.Second,
			MaxCooldowns:  cfg.API.MaxCooldowns,
			SkipIfCurrent: skipIfCurrent || cfg.API.SkipIfCurrent,
		})

		run, err := driver.Run(ctx)
		if err != nil {
			zap.L().Error("sync failed",
				zap.Int("pages_processed", run.Pages),
				zap.Error(err),
			)
			return eris.Wrap(err, "sync")
		}

		fmt.Printf("Sync complete: %d inserted, %d updated, %d deleted, %d unchanged",
			run.Inserted, run.Updated, run.Deleted, run.Unchanged)
		if run.Skipped > 0 {
			fmt.Printf(" (%d malformed records skipped)", run.Skipped)
		}
		fmt.Println()
		return nil
	},
}

func init() {
	syncCmd.Flags().String("source", "", "fetch backend: api or browser (default from config)")
	syncCmd.Flags().Bool("skip-if-current", false, "skip the run when the source total matches the stored count")
	rootCmd.AddCommand(syncCmd)
}

// buildFetcher selects the fetch backend by configuration; the pipeline
// itself never branches on the retrieval strategy.
func buildFetcher(source string) (fetch.Fetcher, func(), error) {
	retry := resilience.DefaultRetryConfig()
	retry.MaxAttempts = cfg.API.MaxRetries
	retry.InitialBackoff = time.Duration(cfg.API.InitialBackoffMs) * time.Millisecond
	retry.MaxBackoff = time.Duration(cfg.API.MaxBackoffMs) * time.Millisecond
	retry.Multiplier = cfg.API.BackoffMultiplier

	switch source {
	case "api":
		f := fetch.NewAPIFetcher(fetch.APIOptions{
			BaseURL:   cfg.API.BaseURL,
			UserAgent: cfg.API.UserAgent,
			PerPage:   cfg.API.PerPage,
			Timeout:   time.Duration(cfg.API.TimeoutSecs) * time.Second,
			Retry:     retry,
			Limiter:   rate.NewLimiter(rate.Limit(cfg.API.RatePerSec), 1),
		})
		return f, func() {}, nil
	case "browser":
		f := fetch.NewBrowserFetcher(fetch.BrowserOptions{
			SiteURL: cfg.API.SiteURL,
			BaseURL: cfg.API.BaseURL,
			PerPage: cfg.API.PerPage,
			Timeout: time.Duration(cfg.API.BrowserTimeoutSecs) * time.Second,
			Retry:   retry,
		})
		return f, f.Close, nil
	default:
		return nil, nil, eris.Errorf("unknown source %q (valid: api, browser)", source)
	}
}
