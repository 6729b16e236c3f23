package cli

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/raoulx24/wandering-echo/internal/backup"
)

func printReport(w io.Writer, r *backup.Report) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SUBVOLUME\tSNAPSHOT\tSTATE\tBASE\tDELIVERED\tELAPSED")
	for _, u := range r.Units {
		base := "full"
		if u.Parent != nil {
			base = u.Parent.Name()
		}
		delivered := "-"
		switch {
		case u.DeliveryErr != nil:
			delivered = "failed"
		case u.Delivered != "":
			delivered = humanize.Bytes(uint64(u.DeliveredBytes))
		}
		name := u.Snapshot.Name()
		if name == "" {
			name = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			u.Subvolume.Location(), name, u.State, base, delivered, u.Elapsed.Round(time.Millisecond))
	}
	_ = tw.Flush()

	for _, u := range r.Failed() {
		fmt.Fprintf(w, "error: %s (%s): %v\n", u.Subvolume.Location(), u.FailedIn, u.Err)
	}
	for _, u := range r.Warnings() {
		fmt.Fprintf(w, "warning: %s not delivered: %v\n", u.Subvolume.Location(), u.DeliveryErr)
	}
	fmt.Fprintf(w, "%d backed up, %d failed, %s delivered in %s\n",
		len(r.Succeeded()), len(r.Failed()), humanize.Bytes(uint64(r.DeliveredBytes())), r.Duration().Round(time.Second))
}
