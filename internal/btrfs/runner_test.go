package btrfs_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/juju/errors"
	gc "gopkg.in/check.v1"

	"github.com/raoulx24/wandering-echo/internal/btrfs"
	echoerrors "github.com/raoulx24/wandering-echo/internal/errors"
)

type runnerSuite struct {
	runner *btrfs.Runner
}

var _ = gc.Suite(&runnerSuite{})

func (s *runnerSuite) SetUpTest(c *gc.C) {
	s.runner = &btrfs.Runner{CommandTimeout: 5 * time.Second, TransferTimeout: 5 * time.Second}
}

func (s *runnerSuite) TestRunTrimsOutput(c *gc.C) {
	out, err := s.runner.Run(context.Background(), "sh", "-c", "echo '  hello  '")
	c.Assert(err, gc.IsNil)
	c.Check(out, gc.Equals, "hello")
}

func (s *runnerSuite) TestRunFailureCarriesStderr(c *gc.C) {
	_, err := s.runner.Run(context.Background(), "sh", "-c", "echo 'not a subvolume' >&2; exit 1")
	c.Check(err, gc.ErrorMatches, "sh -c .*: not a subvolume")
	c.Check(errors.Is(err, echoerrors.IOFailure), gc.Equals, true)
}

func (s *runnerSuite) TestRunTimeoutKills(c *gc.C) {
	s.runner.CommandTimeout = 50 * time.Millisecond
	start := time.Now()
	_, err := s.runner.Run(context.Background(), "sleep", "10")
	c.Check(errors.Is(err, echoerrors.Timeout), gc.Equals, true)
	c.Check(err, gc.ErrorMatches, "sleep 10 killed after 50ms")
	c.Check(time.Since(start) < 5*time.Second, gc.Equals, true)
}

func (s *runnerSuite) TestRunInterrupted(c *gc.C) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, err := s.runner.Run(ctx, "sleep", "10")
	c.Check(errors.Is(err, context.Canceled), gc.Equals, true)
	c.Check(errors.Is(err, echoerrors.Timeout), gc.Equals, false)
}

func (s *runnerSuite) TestStream(c *gc.C) {
	var buf bytes.Buffer
	c.Assert(s.runner.Stream(context.Background(), &buf, "printf", "send-stream"), gc.IsNil)
	c.Check(buf.String(), gc.Equals, "send-stream")
}

func (s *runnerSuite) TestPipe(c *gc.C) {
	out := filepath.Join(c.MkDir(), "received")
	err := s.runner.Pipe(context.Background(),
		[]string{"printf", "incremental"},
		[]string{"sh", "-c", "cat > " + out},
	)
	c.Assert(err, gc.IsNil)
	data, err := os.ReadFile(out)
	c.Assert(err, gc.IsNil)
	c.Check(string(data), gc.Equals, "incremental")
}

func (s *runnerSuite) TestPipeConsumerFailure(c *gc.C) {
	err := s.runner.Pipe(context.Background(),
		[]string{"sh", "-c", "sleep 0.2; yes | head -c 1000000"},
		[]string{"sh", "-c", "echo 'ERROR: cannot find parent subvolume' >&2; exit 1"},
	)
	c.Check(err, gc.ErrorMatches, ".*ERROR: cannot find parent subvolume")
	c.Check(errors.Is(err, echoerrors.IOFailure), gc.Equals, true)
}

func (s *runnerSuite) TestPipeProducerFailure(c *gc.C) {
	err := s.runner.Pipe(context.Background(),
		[]string{"sh", "-c", "echo 'ERROR: not a read-only subvolume' >&2; exit 1"},
		[]string{"sh", "-c", "cat > /dev/null"},
	)
	c.Check(err, gc.ErrorMatches, ".*ERROR: not a read-only subvolume")
}

func (s *runnerSuite) TestPipeTimeout(c *gc.C) {
	s.runner.TransferTimeout = 50 * time.Millisecond
	err := s.runner.Pipe(context.Background(),
		[]string{"sleep", "10"},
		[]string{"sh", "-c", "cat > /dev/null"},
	)
	c.Check(errors.Is(err, echoerrors.Timeout), gc.Equals, true)
}
