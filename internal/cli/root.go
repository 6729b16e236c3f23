// Package cli is the wandering-echo command line.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/juju/errors"
	"github.com/spf13/cobra"

	"github.com/raoulx24/wandering-echo/internal/btrfs"
	"github.com/raoulx24/wandering-echo/internal/config"
	"github.com/raoulx24/wandering-echo/internal/picker"
)

// Version is set at build time.
var Version = "0.1-dev"

// ErrUnitsFailed means the run finished but some subvolumes were not
// backed up.
const ErrUnitsFailed = errors.ConstError("some subvolumes were not backed up")

func init() {
	// Backup, BACKUP and backup are the same command.
	cobra.EnableCaseInsensitive = true
}

type options struct {
	stdin       io.Reader
	stdout      io.Writer
	stderr      io.Writer
	configPath  string
	requireRoot func() error
}

// build wires the application with the terminal picker.
func (o *options) build() (*app, error) {
	return newApp(o.configPath, picker.NewTerminal(o.stdin, o.stdout))
}

// NewRootCmd returns the root command wired to the given stdio.
func NewRootCmd(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	return newRootCmd(&options{
		stdin:       stdin,
		stdout:      stdout,
		stderr:      stderr,
		requireRoot: btrfs.RequireRoot,
	})
}

func newRootCmd(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "wandering-echo <command>",
		Short:         "Snapshot btrfs subvolumes and send them to a backup destination",
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				fmt.Fprintf(o.stderr, "Command not recognized: %s\n", strings.Join(args, " "))
			}
			return cmd.Usage()
		},
	}
	cmd.SetIn(o.stdin)
	cmd.SetOut(o.stdout)
	cmd.SetErr(o.stderr)

	cmd.PersistentFlags().StringVar(&o.configPath, "config", config.DefaultPath, "Path to the settings file")

	cmd.AddCommand(newBackupCmd(o))
	cmd.AddCommand(newDeleteCacheCmd(o))
	cmd.AddCommand(newSystemResetCmd(o))
	cmd.AddCommand(newConfigureCmd(o))
	cmd.AddCommand(newDaemonCmd(o))
	cmd.AddCommand(newRemoteCmd(o))
	cmd.AddCommand(newVersionCmd(o))
	return cmd
}

// asRoot guards commands that touch the host.
func asRoot(o *options) func(*cobra.Command, []string) error {
	return func(*cobra.Command, []string) error {
		return o.requireRoot()
	}
}

// ExitCode maps a command error to the process exit status.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrUnitsFailed):
		return 2
	default:
		return 1
	}
}

// Execute runs the CLI with the process stdio and returns the exit code.
func Execute(ctx context.Context) int {
	root := NewRootCmd(os.Stdin, os.Stdout, os.Stderr)
	err := root.ExecuteContext(ctx)
	if err != nil && !errors.Is(err, ErrUnitsFailed) {
		fmt.Fprintln(os.Stderr, "error:", err)
	}
	return ExitCode(err)
}
