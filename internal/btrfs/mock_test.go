package btrfs_test

import (
	"context"
	"io"
	"strings"

	gc "gopkg.in/check.v1"
)

// mockRunCommand replays scripted responses and checks commands are issued
// in the expected order.
type mockRunCommand struct {
	c        *gc.C
	commands []*expectedCommand
}

type expectedCommand struct {
	argv   string
	output string
	err    error
}

func (m *mockRunCommand) expect(argv ...string) *expectedCommand {
	cmd := &expectedCommand{argv: strings.Join(argv, " ")}
	m.commands = append(m.commands, cmd)
	return cmd
}

func (e *expectedCommand) respond(output string, err error) {
	e.output = output
	e.err = err
}

func (m *mockRunCommand) next(argv string) *expectedCommand {
	m.c.Assert(m.commands, gc.Not(gc.HasLen), 0, gc.Commentf("unexpected command %q", argv))
	expect := m.commands[0]
	m.commands = m.commands[1:]
	m.c.Assert(argv, gc.Equals, expect.argv)
	return expect
}

func (m *mockRunCommand) Run(_ context.Context, name string, args ...string) (string, error) {
	e := m.next(strings.Join(append([]string{name}, args...), " "))
	return e.output, e.err
}

func (m *mockRunCommand) Pipe(_ context.Context, producer, consumer []string) error {
	e := m.next(strings.Join(producer, " ") + " | " + strings.Join(consumer, " "))
	return e.err
}

func (m *mockRunCommand) Stream(_ context.Context, w io.Writer, name string, args ...string) error {
	e := m.next(strings.Join(append([]string{name}, args...), " "))
	if e.err != nil {
		return e.err
	}
	_, err := io.WriteString(w, e.output)
	return err
}

func (m *mockRunCommand) assertDrained() {
	m.c.Assert(m.commands, gc.HasLen, 0)
}
