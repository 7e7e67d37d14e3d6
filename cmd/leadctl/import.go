package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"buyer_crm_backend/internal/leads/importer"
	"buyer_crm_backend/platform/apperr"

	"github.com/spf13/cobra"
)

type importOptions struct {
	actorOptions
	file string
}

func newImportCmd() *cobra.Command {
	var opts importOptions

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import one batch of leads from a CSV or JSON file",
		Long: "Import validates every row first and commits the whole file in one transaction.\n" +
			"A file is at most 200 rows; any invalid row rejects the file.",
		RunE: func(cmd *cobra.Command, args []string) error {
			who, err := opts.identity()
			if err != nil {
				return err
			}

			f, err := os.Open(opts.file)
			if err != nil {
				return err
			}
			defer f.Close()

			rows, err := readRows(opts.file, f)
			if err != nil {
				return err
			}

			s, err := openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			result, err := s.module.Importer().ImportBatch(cmd.Context(), rows, who)
			if err != nil {
				printRowErrors(cmd.ErrOrStderr(), err)
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d leads\n", result.Imported)
			return nil
		},
	}

	opts.register(cmd)
	cmd.Flags().StringVar(&opts.file, "file", "", "CSV or JSON file to import (required)")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

// readRows picks the decoder by file extension. Anything but .json is read as CSV.
func readRows(name string, r io.Reader) ([]importer.RawImportRow, error) {
	if !strings.EqualFold(filepath.Ext(name), ".json") {
		return importer.ParseCSV(r)
	}

	dec := json.NewDecoder(r)
	dec.UseNumber()
	var rows []importer.RawImportRow
	if err := dec.Decode(&rows); err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	return rows, nil
}

func printRowErrors(w io.Writer, err error) {
	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		return
	}
	rowErrors, ok := appErr.Details.([]importer.RowError)
	if !ok {
		return
	}
	for _, re := range rowErrors {
		for _, fe := range re.Errors {
			fmt.Fprintf(w, "row %d: %s: %s\n", re.Row, fe.Path, fe.Message)
		}
	}
}
