package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/Tag-UCSD/image-tagger/internal/app"
	"github.com/Tag-UCSD/image-tagger/internal/domain/catalog"
)

func newCatalogCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Check and describe the attribute catalog",
	}
	cmd.AddCommand(newCatalogValidateCmd(opts), newCatalogGlossaryCmd(opts))
	return cmd
}

type validateReport struct {
	Valid      bool                      `json:"valid"`
	Entries    int                       `json:"entries"`
	Candidates int                       `json:"candidates"`
	Violations []catalog.SchemaViolation `json:"violations"`
	Error      string                    `json:"error,omitempty"`
}

func newCatalogValidateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Run the startup gate against the catalog and rule overrides",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.config(cmd)
			if err != nil {
				return err
			}
			cat, gateErr := app.CheckCatalog(cfg)
			if cat == nil {
				return gateErr
			}

			report := validateReport{
				Valid:      gateErr == nil,
				Entries:    cat.Len(),
				Candidates: len(cat.CandidateBNKeys()),
				Violations: []catalog.SchemaViolation{},
			}
			var violations catalog.Violations
			if errors.As(gateErr, &violations) {
				report.Violations = violations
			} else if gateErr != nil {
				report.Error = gateErr.Error()
			}

			out := cmd.OutOrStdout()
			switch {
			case opts.json():
				if err := writeJSON(out, report); err != nil {
					return err
				}
			case len(report.Violations) > 0:
				rows := make([]table.Row, len(report.Violations))
				for i, v := range report.Violations {
					rows[i] = table.Row{v.Key, v.Field, v.Message}
				}
				renderTable(out, []string{"KEY", "FIELD", "PROBLEM"}, rows)
			case report.Valid:
				fmt.Fprintf(out, "catalog ok: %d entries, %d candidate indices\n", report.Entries, report.Candidates)
			}
			return gateErr
		},
	}
}

func newCatalogGlossaryCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "glossary",
		Short: "Describe every candidate BN index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.config(cmd)
			if err != nil {
				return err
			}
			cat, _, err := app.BuildCatalog(cfg)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			glossary := cat.Glossary()
			if opts.json() {
				return writeJSON(out, glossary)
			}

			rows := make([]table.Row, 0, len(glossary))
			for _, k := range cat.CandidateBNKeys() {
				g := glossary[k]
				bins := nullCell
				if g.Bins != nil {
					bins = strings.Join(g.Bins.Values, "/")
				}
				rows = append(rows, table.Row{k, g.Label, g.Type, bins, strings.Join(g.Tags, ",")})
			}
			renderTable(out, []string{"KEY", "LABEL", "TYPE", "BINS", "TAGS"}, rows)
			return nil
		},
	}
}
