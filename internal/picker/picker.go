// Package picker asks the operator for directories and confirmations on a
// terminal.
package picker

//go:generate mockgen -destination=mocks/picker_mock.go -package=mocks . Picker

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/juju/errors"

	echoerrors "github.com/raoulx24/wandering-echo/internal/errors"
)

// Picker is the interactive side of configuration.
type Picker interface {
	// ChooseDirectory returns the chosen directory, or false when the
	// operator gave none.
	ChooseDirectory(prompt string) (string, bool, error)
	Confirm(title, prompt string) (bool, error)
}

type Terminal struct {
	in  *bufio.Reader
	out io.Writer

	title  *color.Color
	prompt *color.Color
	warn   *color.Color
}

func NewTerminal(in io.Reader, out io.Writer) *Terminal {
	return &Terminal{
		in:     bufio.NewReader(in),
		out:    out,
		title:  color.New(color.FgCyan, color.Bold),
		prompt: color.New(color.FgGreen),
		warn:   color.New(color.FgYellow),
	}
}

func (t *Terminal) readLine() (string, error) {
	line, err := t.in.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", errors.Trace(err)
	}
	if err == io.EOF && line == "" {
		return "", io.EOF
	}
	return strings.TrimSpace(line), nil
}

// ChooseDirectory keeps asking until the answer is an existing directory or
// empty. End of input counts as empty.
func (t *Terminal) ChooseDirectory(prompt string) (string, bool, error) {
	for {
		t.prompt.Fprintf(t.out, "%s (empty to finish): ", strings.TrimSpace(prompt))
		line, err := t.readLine()
		if err == io.EOF {
			fmt.Fprintln(t.out)
			return "", false, nil
		}
		if err != nil {
			return "", false, err
		}
		if line == "" {
			return "", false, nil
		}

		path, err := filepath.Abs(line)
		if err != nil {
			return "", false, errors.Trace(err)
		}
		st, err := os.Stat(path)
		if err != nil || !st.IsDir() {
			t.warn.Fprintf(t.out, "%s is not a directory\n", path)
			continue
		}
		return path, true, nil
	}
}

func (t *Terminal) Confirm(title, prompt string) (bool, error) {
	if title != "" {
		t.title.Fprintln(t.out, title)
	}
	t.prompt.Fprintf(t.out, "%s [y/N]: ", strings.TrimSpace(prompt))
	line, err := t.readLine()
	if err == io.EOF {
		fmt.Fprintln(t.out)
		return false, nil
	}
	if err != nil {
		return false, err
	}
	ans := strings.ToLower(line)
	return ans == "y" || ans == "yes", nil
}

// Unattended refuses every question. The daemon uses it so a missing
// configuration fails instead of waiting on a terminal nobody watches.
type Unattended struct{}

func (Unattended) ChooseDirectory(string) (string, bool, error) {
	return "", false, echoerrors.Newf(echoerrors.NotConfigured, "interactive setup unavailable, run configure first")
}

func (Unattended) Confirm(string, string) (bool, error) {
	return false, nil
}
