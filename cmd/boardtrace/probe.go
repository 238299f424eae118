package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"boardtrace/internal/barcode"
	"boardtrace/internal/board"
	"boardtrace/internal/trace"
)

func newProbeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "probe <barcode>",
		Short: "Look up a single barcode against the trace store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg
			ctx := cmd.Context()

			if err := cfg.ValidateTrace(); err != nil {
				return configErr(err)
			}

			store, err := trace.OpenSQLStore(ctx, cfg.TraceDSN())
			if err != nil {
				return connectErr(fmt.Errorf("trace store: %w", err))
			}
			defer store.Close()

			candidates := barcode.Candidates(args[0])
			if len(candidates) == 0 {
				return configErr(fmt.Errorf("empty barcode"))
			}

			resolver := trace.NewResolver(store, trace.ResolverOptions{Logger: a.log})
			resolved, err := resolver.Resolve(ctx, candidates)
			if err != nil {
				return passErr(err)
			}

			for _, cand := range candidates {
				rec, ok := resolved[cand]
				if !ok {
					color.Red("%s: not found", cand)
					continue
				}
				color.Green("%s: found", cand)
				if t := rec.AssembledAt(); t != nil {
					fmt.Printf("  assembled: %s\n", t.Format("2006-01-02 15:04:05"))
				} else {
					fmt.Printf("  assembled: (no timestamp)\n")
				}
				fmt.Printf("  lot:       %s\n", rec.Lot)
				fmt.Printf("  type:      %s\n", board.BoardTypeSuffix(rec.BoardType))
			}
			return nil
		},
	}
	return cmd
}
