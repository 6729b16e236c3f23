package btrfs

import (
	"bytes"
	"context"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/juju/errors"

	echoerrors "github.com/raoulx24/wandering-echo/internal/errors"
	"github.com/raoulx24/wandering-echo/internal/logging"
)

// Commander runs host commands. Run is for short commands with a small
// output; Pipe and Stream carry send streams and may run for hours.
type Commander interface {
	Run(ctx context.Context, name string, args ...string) (string, error)
	Pipe(ctx context.Context, producer, consumer []string) error
	Stream(ctx context.Context, w io.Writer, name string, args ...string) error
}

// Runner is the Commander backed by os/exec. A command that outlives its
// budget is killed and reported as Timeout.
type Runner struct {
	// CommandTimeout bounds Run. Zero means no bound.
	CommandTimeout time.Duration
	// TransferTimeout bounds Pipe and Stream. Zero means no bound.
	TransferTimeout time.Duration
	Logger          logging.Logger
}

// waitDelay bounds how long Wait lingers on output pipes held open by
// grandchildren after a kill.
const waitDelay = 5 * time.Second

func withBudget(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func describe(argv []string) string {
	return strings.Join(argv, " ")
}

// classify turns a failed command into an error of the right kind.
func classify(parent, ctx context.Context, budget time.Duration, argv []string, err error, stderr string) error {
	if parent.Err() != nil {
		return errors.Annotatef(parent.Err(), "%s interrupted", describe(argv))
	}
	if ctx.Err() == context.DeadlineExceeded {
		return echoerrors.Newf(echoerrors.Timeout, "%s killed after %s", describe(argv), budget)
	}
	msg := strings.TrimSpace(stderr)
	if msg == "" {
		msg = err.Error()
	}
	return echoerrors.Newf(echoerrors.IOFailure, "%s: %s", describe(argv), msg)
}

func (r *Runner) log() logging.Logger {
	if r.Logger == nil {
		return logging.Nop()
	}
	return r.Logger
}

// Run executes name and returns its trimmed standard output.
func (r *Runner) Run(parent context.Context, name string, args ...string) (string, error) {
	ctx, cancel := withBudget(parent, r.CommandTimeout)
	defer cancel()

	argv := append([]string{name}, args...)
	r.log().Debug("running command", "cmd", describe(argv))

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = waitDelay
	if err := cmd.Run(); err != nil {
		return "", classify(parent, ctx, r.CommandTimeout, argv, err, stderr.String())
	}
	return strings.TrimSpace(stdout.String()), nil
}

// Stream executes name with its standard output copied to w.
func (r *Runner) Stream(parent context.Context, w io.Writer, name string, args ...string) error {
	ctx, cancel := withBudget(parent, r.TransferTimeout)
	defer cancel()

	argv := append([]string{name}, args...)
	r.log().Debug("streaming command", "cmd", describe(argv))

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = w
	cmd.Stderr = &stderr
	cmd.WaitDelay = waitDelay
	if err := cmd.Run(); err != nil {
		return classify(parent, ctx, r.TransferTimeout, argv, err, stderr.String())
	}
	return nil
}

// Pipe connects the producer's standard output to the consumer's standard
// input through an OS pipe and waits for both. If either side fails the
// other is killed.
func (r *Runner) Pipe(parent context.Context, producer, consumer []string) error {
	if len(producer) == 0 || len(consumer) == 0 {
		return errors.New("pipe needs a producer and a consumer")
	}
	ctx, cancel := withBudget(parent, r.TransferTimeout)
	defer cancel()

	r.log().Debug("piping commands", "producer", describe(producer), "consumer", describe(consumer))

	pr, pw, err := os.Pipe()
	if err != nil {
		return echoerrors.Mark(errors.Annotate(err, "creating pipe"), echoerrors.IOFailure)
	}

	var prodErr, consErr bytes.Buffer
	prod := exec.CommandContext(ctx, producer[0], producer[1:]...)
	prod.Stdout = pw
	prod.Stderr = &prodErr
	prod.WaitDelay = waitDelay
	cons := exec.CommandContext(ctx, consumer[0], consumer[1:]...)
	cons.Stdin = pr
	cons.Stderr = &consErr
	cons.WaitDelay = waitDelay

	if err := cons.Start(); err != nil {
		pr.Close()
		pw.Close()
		return classify(parent, ctx, r.TransferTimeout, consumer, err, "")
	}
	if err := prod.Start(); err != nil {
		pr.Close()
		pw.Close()
		cancel()
		_ = cons.Wait()
		return classify(parent, ctx, r.TransferTimeout, producer, err, "")
	}
	// the children hold their own ends now
	pr.Close()
	pw.Close()

	type exit struct {
		argv   []string
		err    error
		stderr *bytes.Buffer
	}
	done := make(chan exit, 2)
	go func() { done <- exit{producer, prod.Wait(), &prodErr} }()
	go func() { done <- exit{consumer, cons.Wait(), &consErr} }()

	// the first side to fail is the cause; the other one is killed
	var failed *exit
	for i := 0; i < 2; i++ {
		e := <-done
		if e.err != nil && failed == nil {
			failed = &e
			cancel()
		}
	}
	if failed != nil {
		return classify(parent, ctx, r.TransferTimeout, failed.argv, failed.err, failed.stderr.String())
	}
	return nil
}

var _ Commander = (*Runner)(nil)

