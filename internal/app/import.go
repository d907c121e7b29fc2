package app

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/witanage/CW-Budget-sub000/internal/importer"
)

var errNoDatabase = errors.New("database.dsn not configured")

// ImportCSV bulk-loads a bank-exported CSV file into the rate store.
func (a *App) ImportCSV(ctx context.Context, opts ImportOptions) error {
	raw, err := os.ReadFile(opts.Path)
	if err != nil {
		return fmt.Errorf("read csv file: %w", err)
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errNoDatabase
	}
	defer closeStore()

	csvImporter := importer.New(store, a.Logger)
	summary, err := csvImporter.Import(ctx, string(raw))
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "parsed %d rows: %d imported, %d skipped\n",
		summary.TotalParsed, summary.SuccessCount, summary.ErrorCount)
	return nil
}
