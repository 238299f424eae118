package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"boardtrace/internal/board"
	"boardtrace/internal/ingest"
)

func newIngestCmd(a *app) *cobra.Command {
	var (
		file     string
		sheet    string
		startRow int
		profile  string
		truncate bool
		dryRun   bool
	)

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Upload a workbook or CSV export into the operational store",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg
			ctx := cmd.Context()

			prof, ok := ingest.ProfileByName(profile)
			if !ok {
				return configErr(fmt.Errorf("unknown profile %q (want boards or asm)", profile))
			}
			if startRow > 0 {
				prof.StartRow = startRow
			}
			if cmd.Flags().Changed("truncate") {
				prof.Truncate = truncate
			}

			// The ingest path has its own logrus logger, separate from the
			// zap logger the resolver and orchestrator share.
			log := logrus.New()
			if cfg.LogFormat == "json" {
				log.SetFormatter(&logrus.JSONFormatter{})
			} else {
				log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
			}

			rows, err := ingest.ReadRows(file, sheet, prof.StartRow, log)
			if err != nil {
				return passErr(err)
			}
			payloads := ingest.BuildPayloads(prof, rows, log)
			if len(payloads) == 0 {
				return passErr(fmt.Errorf("no data rows found in %s", file))
			}

			if dryRun {
				color.Yellow("Dry run: %d rows would be uploaded into %s", len(payloads), prof.Table)
				fmt.Println("First payload:")
				for _, col := range ingest.Columns(payloads[:1]) {
					fmt.Printf("  %-40s %v\n", col, payloads[0][col])
				}
				return nil
			}

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

			if prof.Truncate {
				log.WithField("table", prof.Table).Warn("truncating before upload")
				if err := store.Truncate(ctx, prof.Table); err != nil {
					return passErr(fmt.Errorf("truncating %s: %w", prof.Table, err))
				}
			}

			columns := ingest.Columns(payloads)
			if err := store.BulkUpsert(ctx, prof.Table, columns, ingest.Values(payloads, columns)); err != nil {
				return passErr(fmt.Errorf("uploading into %s: %w", prof.Table, err))
			}

			color.Green("Uploaded %d rows into %s", len(payloads), prof.Table)
			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "workbook or CSV export to upload")
	cmd.Flags().StringVar(&sheet, "sheet", "", "sheet name (workbooks only, default: first sheet)")
	cmd.Flags().IntVar(&startRow, "start-row", 0, "1-based first data row (default: profile setting)")
	cmd.Flags().StringVar(&profile, "profile", "boards", "export shape: boards or asm")
	cmd.Flags().BoolVar(&truncate, "truncate", false, "wipe the target table before uploading")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "parse and report without touching the store")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}
