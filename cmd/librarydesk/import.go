// cmd/librarydesk/import.go
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/metric/noop"

	"librarydesk/internal/activity"
	"librarydesk/internal/catalog"
)

func newImportCmd(root *rootOptions) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "import-books",
		Short: "Create books from a CSV file (title,author,genre,isbn,total_copies)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := root.load()
			if err != nil {
				return err
			}

			f, err := os.Open(file)
			if err != nil {
				return err
			}
			defer f.Close()

			db, err := openStore(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer db.Close()
			if err := db.Migrate(cmd.Context()); err != nil {
				return err
			}

			inventory, err := catalog.NewInventory(noop.NewMeterProvider())
			if err != nil {
				return err
			}
			svc := catalog.NewService(db, inventory, activity.NewLog(db, logger))

			report, err := catalog.ImportCSV(cmd.Context(), svc, f)
			out := cmd.OutOrStdout()
			for _, rej := range report.Rejected {
				fmt.Fprintf(out, "skipped %v\n", rej)
			}
			fmt.Fprintf(out, "imported %d books, skipped %d rows\n", len(report.Imported), len(report.Rejected))
			if err != nil {
				return err
			}
			if len(report.Imported) == 0 && len(report.Rejected) > 0 {
				return errors.New("no rows imported")
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "CSV file to import")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
