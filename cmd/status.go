package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sells-group/doge-tracker/internal/store"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the dataset and recent runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st := store.NewCSVStore(cfg.Paths.Dataset, cfg.Paths.RawLog)
		snapshot, err := st.Load(ctx)
		if err != nil {
			return err
		}

		fmt.Printf("Dataset: %s\n", cfg.Paths.Dataset)
		fmt.Printf("  %d records (%d active, %d marked deleted)\n\n",
			snapshot.Len(), snapshot.ActiveLen(), snapshot.Len()-snapshot.ActiveLen())

		runs, err := store.NewRunLog(cfg.Paths.RunLog).List(ctx)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("No runs recorded.")
			return nil
		}

		limit, _ := cmd.Flags().GetInt("limit")
		if limit > 0 && len(runs) > limit {
			runs = runs[:limit]
		}

		fmt.Println("Recent runs:")
		for _, r := range runs {
			line := fmt.Sprintf("  %s  %-8s  %s  pages=%d +%d ~%d -%d =%d",
				r.StartedAt.Format("2006-01-02 15:04:05"), r.Status, r.Source,
				r.Pages, r.Inserted, r.Updated, r.Deleted, r.Unchanged)
			if r.Skipped > 0 {
				line += fmt.Sprintf(" skipped=%d", r.Skipped)
			}
			if r.Error != "" {
				line += "  error: " + r.Error
			}
			fmt.Println(line)
		}
		return nil
	},
}

func init() {
	statusCmd.Flags().Int("limit", 10, "number of runs to show")
	rootCmd.AddCommand(statusCmd)
}
