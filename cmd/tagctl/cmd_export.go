package main

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/Tag-UCSD/image-tagger/internal/app"
)

func newExportCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "export [image_id...]",
		Short: "Export BN snapshot rows; every registered image when no id is given",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]int64, 0, len(args))
			for _, a := range args {
				id, err := parseImageID(a)
				if err != nil {
					return err
				}
				ids = append(ids, id)
			}
			return opts.withService(cmd, func(ctx context.Context, svc *app.Service) error {
				rows, err := svc.Export(ctx, ids)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if opts.json() {
					return writeJSON(out, rows)
				}

				binField := make(map[string]string)
				for _, e := range svc.Catalog() {
					binField[e.Key] = e.BinField()
				}
				var cells []table.Row
				for _, row := range rows {
					for _, k := range slices.Sorted(maps.Keys(row.Indices)) {
						cells = append(cells, table.Row{row.ImageID, k, floatCell(row.Indices[k]), stringCell(row.Bins[binField[k]])})
					}
					cells = append(cells, table.Row{row.ImageID, "agreement_score", floatCell(row.AgreementScore), stringCell(row.IRRBin)})
				}
				renderTable(out, []string{"IMAGE", "INDEX", "VALUE", "BIN"}, cells, 1, 3)
				return nil
			})
		},
	}
}

func newCodebookCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "codebook",
		Short: "Describe the snapshot columns",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withService(cmd, func(_ context.Context, svc *app.Service) error {
				cb, err := svc.Codebook()
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if opts.json() {
					return writeJSON(out, cb)
				}

				rows := make([]table.Row, len(cb.Variables))
				for i, v := range cb.Variables {
					states := nullCell
					if len(v.States) > 0 {
						states = strings.Join(v.States, "/")
					}
					rows[i] = table.Row{v.Name, v.Role, v.VarType, states, v.Description}
				}
				fmt.Fprintf(out, "source %s, generated %s\n", cb.Source, cb.GeneratedAt.Format(time.RFC3339))
				renderTable(out, []string{"NAME", "ROLE", "TYPE", "STATES", "DESCRIPTION"}, rows)
				return nil
			})
		},
	}
}
