package cleanup

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// ErrNotTerminal is returned when confirmation is needed but stdin is not
// interactive.
var ErrNotTerminal = errors.New("confirmation needs an interactive terminal; rerun with --force")

// Confirmer approves destructive steps.
type Confirmer interface {
	Confirm(prompt string) (bool, error)
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(prompt string) (bool, error)

// Confirm implements Confirmer.
func (f ConfirmFunc) Confirm(prompt string) (bool, error) { return f(prompt) }

// Force approves everything.
var Force Confirmer = ConfirmFunc(func(string) (bool, error) { return true, nil })

// Prompter asks on a terminal and accepts y or yes.
type Prompter struct {
	in  *os.File
	out io.Writer
	r   *bufio.Reader
}

// NewPrompter creates a prompter reading in and writing questions to out.
func NewPrompter(in *os.File, out io.Writer) *Prompter {
	return &Prompter{in: in, out: out, r: bufio.NewReader(in)}
}

// Confirm implements Confirmer.
func (p *Prompter) Confirm(prompt string) (bool, error) {
	if !term.IsTerminal(int(p.in.Fd())) {
		return false, ErrNotTerminal
	}
	fmt.Fprintf(p.out, "%s [y/N] ", prompt)
	line, err := p.r.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, fmt.Errorf("read answer: %w", err)
	}
	return parseAnswer(line), nil
}

func parseAnswer(line string) bool {
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}
