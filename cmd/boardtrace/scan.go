package main

import (
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"boardtrace/internal/board"
)

func newScanCmd(a *app) *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan the operational store for duplicate barcodes",
		Long: `Checks every top and bottom barcode for duplicates within each column
and across both, and writes a CSV report when violations are found.
Finding duplicates is a successful scan, not an error.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log := a.cfg, a.log
			ctx := cmd.Context()

			if err := cfg.ValidateBoard(); err != nil {
				return configErr(err)
			}
			if cfg.DBSSLCA != "" {
				if err := board.RegisterMySQLCA(cfg.DBSSLCA); err != nil {
					return configErr(err)
				}
			}

			store, err := board.OpenSQLStore(ctx, cfg.DBDriver, cfg.BoardDSN())
			if err != nil {
				return connectErr(fmt.Errorf("operational store: %w", err))
			}
			defer store.Close()

			rows, err := store.SelectAll(ctx)
			if err != nil {
				return passErr(err)
			}

			violations := board.ScanDuplicates(rows)
			log.Info("duplicate scan finished",
				zap.Int("rows", len(rows)),
				zap.Int("duplicate_values", len(violations)))

			if len(violations) == 0 {
				color.Green("OK: No duplicates found in %d rows", len(rows))
				return nil
			}

			if outPath == "" {
				outPath = fmt.Sprintf("db_board_number_duplicates_%s.csv",
					time.Now().Format("20060102_150405"))
			}
			f, err := os.Create(outPath)
			if err != nil {
				return passErr(fmt.Errorf("creating report: %w", err))
			}
			defer f.Close()
			if err := board.WriteViolationsCSV(f, violations); err != nil {
				return passErr(fmt.Errorf("writing report: %w", err))
			}

			color.Yellow("Found %d duplicated values in %d rows", len(violations), len(rows))
			fmt.Printf("Report written to %s\n", outPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&outPath, "out", "", "report file path (default: timestamped name in the working directory)")

	return cmd
}
