package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/juju/errors"
	"github.com/spf13/cobra"

	echoerrors "github.com/raoulx24/wandering-echo/internal/errors"
)

func newRemoteCmd(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remote",
		Short: "Inspect the off-host destination",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List delivered send streams",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := o.build()
			if err != nil {
				return err
			}
			defer a.Close()
			if a.remote == nil {
				return echoerrors.Newf(echoerrors.NotConfigured, "no remote destination configured")
			}

			files, err := a.remote.List(cmd.Context())
			if err != nil {
				return errors.Annotate(err, "listing remote")
			}
			tw := tabwriter.NewWriter(o.stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tSIZE\tMODIFIED")
			for _, f := range files {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", f.Name, humanize.Bytes(uint64(f.Size)), humanize.Time(f.Modified))
			}
			return tw.Flush()
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "delete <name>...",
		Short: "Delete delivered send streams",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := o.build()
			if err != nil {
				return err
			}
			defer a.Close()
			if a.remote == nil {
				return echoerrors.Newf(echoerrors.NotConfigured, "no remote destination configured")
			}
			for _, name := range args {
				if err := a.remote.Delete(cmd.Context(), name); err != nil {
					return errors.Annotatef(err, "deleting %s", name)
				}
				fmt.Fprintln(o.stdout, "deleted", name)
			}
			return nil
		},
	})
	return cmd
}
