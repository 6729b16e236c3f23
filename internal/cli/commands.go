package cli

import (
	"fmt"
	"strconv"

	"github.com/juju/errors"
	"github.com/spf13/cobra"

	"github.com/raoulx24/wandering-echo/internal/retention"
)

func newBackupCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:     "backup",
		Short:   "Snapshot every configured subvolume and back it up",
		Args:    cobra.NoArgs,
		PreRunE: asRoot(o),
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := o.build()
			if err != nil {
				return err
			}
			defer a.Close()

			report, err := a.lifecycle.Backup(cmd.Context())
			if report != nil && len(report.Units) > 0 {
				printReport(o.stdout, report)
			}
			if err != nil {
				return err
			}
			if !report.OK() {
				return ErrUnitsFailed
			}
			return nil
		},
	}
}

func newDeleteCacheCmd(o *options) *cobra.Command {
	var keep int
	cmd := &cobra.Command{
		Use:   "delete_cache <alsoDeleteBackups>",
		Short: "Delete snapshots, and backups too when the argument is true",
		Args: func(cmd *cobra.Command, args []string) error {
			if err := cobra.ExactArgs(1)(cmd, args); err != nil {
				return err
			}
			if _, err := strconv.ParseBool(args[0]); err != nil {
				return fmt.Errorf("invalid argument %q: want true or false", args[0])
			}
			return nil
		},
		PreRunE: asRoot(o),
		RunE: func(cmd *cobra.Command, args []string) error {
			alsoBackups, _ := strconv.ParseBool(args[0])
			guard := retention.All
			if keep > 0 {
				guard = retention.KeepNewest(keep)
			}

			a, err := o.build()
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.lifecycle.Purge(cmd.Context(), alsoBackups, guard)
			fmt.Fprintf(o.stdout, "Deleted %d snapshots and %d backups\n", len(res.Snapshots), len(res.Backups))
			return err
		},
	}
	cmd.Flags().IntVar(&keep, "keep", 0, "Keep the newest N per subvolume (0 deletes all)")
	return cmd
}

func newSystemResetCmd(o *options) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:     "system_reset",
		Short:   "Forget the saved configuration",
		Args:    cobra.NoArgs,
		PreRunE: asRoot(o),
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := o.build()
			if err != nil {
				return err
			}
			defer a.Close()

			if !yes {
				ok, err := a.prompt.Confirm("System reset", "Discard the saved subvolumes and backup history?")
				if err != nil {
					return errors.Trace(err)
				}
				if !ok {
					fmt.Fprintln(o.stdout, "Nothing changed")
					return nil
				}
			}
			return a.lifecycle.Reset(cmd.Context())
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}

func newConfigureCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:     "configure",
		Short:   "Choose subvolumes and the backup destination",
		Args:    cobra.NoArgs,
		PreRunE: asRoot(o),
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := o.build()
			if err != nil {
				return err
			}
			defer a.Close()
			return a.lifecycle.Configure(cmd.Context())
		},
	}
}

func newVersionCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Args:  cobra.NoArgs,
		Run: func(*cobra.Command, []string) {
			fmt.Fprintln(o.stdout, "Wandering Echo", Version)
		},
	}
}
