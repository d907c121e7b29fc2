package app

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"
)

// Show prints recent rate observations.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errNoDatabase
	}
	defer closeStore()

	observations, err := store.ListRecentObservations(ctx, opts.Limit)
	if err != nil {
		return err
	}
	if len(observations) == 0 {
		fmt.Fprintln(os.Stdout, "no observations found")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Date\tSource\tBuy\tSell\tMid\tRecorded (UTC)")

	for _, obs := range observations {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%s\t%s\n",
			obs.Date.Format("2006-01-02"),
			obs.Source,
			obs.BuyRate.StringFixed(4),
			obs.SellRate.StringFixed(4),
			obs.MidRate().StringFixed(4),
			obs.RecordedAt.UTC().Format(time.RFC3339),
		)
	}

	writer.Flush()
	return nil
}
