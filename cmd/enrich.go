package main

import (
	"encoding/csv"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/sells-group/doge-tracker/internal/enrich"
	"github.com/sells-group/doge-tracker/internal/model"
	"github.com/sells-group/doge-tracker/internal/store"
)

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Scrape FPDS detail pages for contracting office and classification fields",
	Long: `For every stored record with an FPDS link, fetch the FPDS detail page and
extract the contracting office agency name, contracting office name, NAICS
code, and PSC code. Writes the dataset plus the extracted columns to the
enriched CSV path. Records without a link, and pages that fail to load,
keep empty enrichment columns.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st := store.NewCSVStore(cfg.Paths.Dataset, cfg.Paths.RawLog)
		snapshot, err := st.Load(ctx)
		if err != nil {
			return err
		}
		if snapshot.Len() == 0 {
			return eris.New("enrich: dataset is empty, run sync first")
		}

		scraper := enrich.New(enrich.Options{
			MaxWorkers: cfg.Enrich.MaxWorkers,
			Timeout:    time.Duration(cfg.Enrich.TimeoutSecs) * time.Second,
			Limiter:    rate.NewLimiter(rate.Limit(cfg.Enrich.RatePerSec), 1),
			UserAgent:  cfg.API.UserAgent,
		})

		records := snapshot.Records()
		enrichments, err := scraper.EnrichAll(ctx, records)
		if err != nil {
			return eris.Wrap(err, "enrich")
		}

		if err := writeEnriched(cfg.Paths.Enriched, records, enrichments); err != nil {
			return err
		}

		fmt.Printf("Enriched %d of %d records -> %s\n", len(enrichments), len(records), cfg.Paths.Enriched)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(enrichCmd)
}

// writeEnriched writes the dataset columns plus enrichment columns with the
// same temp-and-rename discipline as the store.
func writeEnriched(path string, records []model.ContractRecord, enrichments map[string]enrich.Enrichment) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrapf(err, "enrich: create dir %s", dir)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return eris.Wrap(err, "enrich: create temp file")
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) //nolint:errcheck

	w := csv.NewWriter(tmp)
	header := append(append([]string{}, model.DatasetHeader...), enrich.Header()...)
	if err := w.Write(header); err != nil {
		tmp.Close() //nolint:errcheck
		return eris.Wrap(err, "enrich: write header")
	}
	for _, rec := range records {
		row := append(rec.CSVRow(), enrichments[rec.PIID].CSVRow()...)
		if err := w.Write(row); err != nil {
			tmp.Close() //nolint:errcheck
			return eris.Wrapf(err, "enrich: write row %s", rec.PIID)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close() //nolint:errcheck
		return eris.Wrap(err, "enrich: flush")
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrap(err, "enrich: close temp file")
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return eris.Wrapf(err, "enrich: replace %s", path)
	}
	return nil
}
