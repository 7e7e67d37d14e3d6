package main

import (
	"fmt"
	"io"
	"os"

	"buyer_crm_backend/internal/leads/query"

	"github.com/spf13/cobra"
)

type exportOptions struct {
	actorOptions
	out      string
	criteria query.Criteria
}

func newExportCmd() *cobra.Command {
	var opts exportOptions

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the leads visible to an owner as CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			who, err := opts.identity()
			if err != nil {
				return err
			}

			s, err := openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			var w io.Writer = cmd.OutOrStdout()
			if opts.out != "" && opts.out != "-" {
				f, err := os.Create(opts.out)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}

			n, err := s.module.QueryService().Export(cmd.Context(), opts.criteria, who, w)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "exported %d leads\n", n)
			return nil
		},
	}

	opts.register(cmd)
	f := cmd.Flags()
	f.StringVar(&opts.out, "out", "-", "Output file, - for stdout")
	f.StringVar(&opts.criteria.City, "city", "", "Filter by city")
	f.StringVar(&opts.criteria.PropertyType, "property-type", "", "Filter by property type")
	f.StringVar(&opts.criteria.Status, "status", "", "Filter by status")
	f.StringVar(&opts.criteria.Timeline, "timeline", "", "Filter by timeline label, e.g. 0-3m")
	f.StringVar(&opts.criteria.Search, "search", "", "Match name, phone or email")
	f.StringVar(&opts.criteria.SortBy, "sort", "", "Sort field (default updatedAt)")
	f.StringVar(&opts.criteria.SortOrder, "direction", "", "asc or desc (default desc)")

	return cmd
}
