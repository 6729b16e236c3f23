package remote

import (
	"context"
	"io"
	"path/filepath"

	"github.com/juju/errors"

	"github.com/raoulx24/wandering-echo/internal/logging"
)

// Sender writes the send stream of a snapshot, incremental against parent
// when parent is not empty.
type Sender interface {
	Send(ctx context.Context, snapshot, parent string, w io.Writer) error
}

// Deliverer streams snapshots to a destination without staging them on
// local disk.
type Deliverer struct {
	sender Sender
	dest   Destination
	log    logging.Logger
}

func NewDeliverer(sender Sender, dest Destination, log logging.Logger) *Deliverer {
	return &Deliverer{sender: sender, dest: dest, log: log}
}

// StreamName is the object name a snapshot is stored under.
func StreamName(snapshot, parent string) string {
	name := filepath.Base(snapshot)
	if parent != "" {
		return name + ".incr.btrfs"
	}
	return name + ".btrfs"
}

// Deliver sends snapshot to the destination and returns the object name and
// the number of bytes stored.
func (d *Deliverer) Deliver(ctx context.Context, snapshot, parent string) (string, int64, error) {
	name := StreamName(snapshot, parent)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	pr, pw := io.Pipe()
	sendDone := make(chan error, 1)
	go func() {
		err := d.sender.Send(ctx, snapshot, parent, pw)
		pw.CloseWithError(err)
		sendDone <- err
	}()

	n, uploadErr := d.dest.Upload(ctx, name, pr)
	// unblock the sender if the upload stopped reading early
	pr.CloseWithError(io.ErrClosedPipe)
	if uploadErr != nil {
		cancel()
	}
	sendErr := <-sendDone

	switch {
	case sendErr != nil && (uploadErr == nil || errors.Is(uploadErr, sendErr)):
		return name, n, errors.Annotatef(sendErr, "sending %s", filepath.Base(snapshot))
	case uploadErr != nil:
		return name, n, errors.Annotatef(uploadErr, "delivering to %s", d.dest.Type())
	}
	d.log.Info("backup delivered", "object", name, "destination", d.dest.Type(), "bytes", n)
	return name, n, nil
}
