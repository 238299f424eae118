package main

import (
	"fmt"

	"github.com/common-nighthawk/go-figure"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"boardtrace/internal/config"
	"boardtrace/internal/logging"
)

var version = "dev"

type app struct {
	cfg *config.Config
	log *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	var noBanner bool

	root := &cobra.Command{
		Use:           "boardtrace",
		Short:         "Reconciles circuit board records against the trace store",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			log, err := logging.New(cfg.LogLevel, cfg.LogFormat, cfg.LogFile)
			if err != nil {
				return configErr(err)
			}
			a.cfg = cfg
			a.log = log
			if !noBanner {
				printBanner()
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
	}

	root.PersistentFlags().BoolVar(&noBanner, "no-banner", false, "suppress the startup banner")

	root.AddCommand(newBackfillCmd(a))
	root.AddCommand(newScanCmd(a))
	root.AddCommand(newIngestCmd(a))
	root.AddCommand(newProbeCmd(a))

	return root
}

func printBanner() {
	banner := figure.NewFigure("BOARDTRACE", "slant", true)
	fmt.Printf("%s\n%s\n\n",
		color.CyanString(banner.String()),
		color.GreenString("board record reconciliation %s", version))
}
