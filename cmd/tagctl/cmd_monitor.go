package main

import (
	"context"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/Tag-UCSD/image-tagger/internal/app"
)

func newInspectCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <image_id>",
		Short: "Show the consolidated view of one image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseImageID(args[0])
			if err != nil {
				return err
			}
			return opts.withService(cmd, func(ctx context.Context, svc *app.Service) error {
				p, err := svc.Inspect(ctx, id)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if opts.json() {
					return writeJSON(out, p)
				}

				fmt.Fprintf(out, "image %d %s: %d features, %d validations, agreement %s (%s)\n",
					p.Image.ID, p.Image.Filename, len(p.Features), len(p.Validations),
					floatCell(p.BN.IRR), stringCell(p.BN.IRRBin))
				rows := make([]table.Row, len(p.Tags))
				for i, t := range p.Tags {
					rows[i] = table.Row{t.Key, t.Label, floatCell(&t.RawValue), stringCell(t.Bin), t.Status}
				}
				renderTable(out, []string{"INDEX", "LABEL", "VALUE", "BIN", "STATUS"}, rows, 3)
				return nil
			})
		},
	}
}

func newIRRCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "irr <image_id>",
		Short: "Show inter-rater agreement for one image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseImageID(args[0])
			if err != nil {
				return err
			}
			return opts.withService(cmd, func(ctx context.Context, svc *app.Service) error {
				res, err := svc.IRR(ctx, id)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if opts.json() {
					return writeJSON(out, res)
				}

				fmt.Fprintf(out, "image %d: %d raters, agreement %s, %d conflicts\n",
					res.ImageID, len(res.Raters), floatCell(res.AgreementScore), res.ConflictCount)
				rows := make([]table.Row, len(res.Keys))
				for i, k := range res.Keys {
					rows[i] = table.Row{k.Key, k.Raters, k.Majority, k.Agreeing, floatCell(&k.Agreement)}
				}
				renderTable(out, []string{"ATTRIBUTE", "RATERS", "MAJORITY", "AGREEING", "AGREEMENT"}, rows, 2, 4, 5)
				return nil
			})
		},
	}
}
