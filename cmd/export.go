package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/doge-tracker/internal/export"
	"github.com/sells-group/doge-tracker/internal/report"
	"github.com/sells-group/doge-tracker/internal/store"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the analyst report as a formatted Excel workbook",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st := store.NewCSVStore(cfg.Paths.Dataset, cfg.Paths.RawLog)
		snapshot, err := st.Load(ctx)
		if err != nil {
			return err
		}
		if snapshot.Len() == 0 {
			return eris.New("export: dataset is empty, run sync first")
		}

		out, _ := cmd.Flags().GetString("out")
		if out == "" {
			out = cfg.Paths.Export
		}

		rows := report.Build(snapshot.Records())
		if err := export.WriteXLSX(out, cfg.Export.SheetName, rows); err != nil {
			return err
		}

		fmt.Printf("Exported %d rows -> %s\n", len(rows), out)
		return nil
	},
}

func init() {
	exportCmd.Flags().String("out", "", "output path (default from config)")
	rootCmd.AddCommand(exportCmd)
}
