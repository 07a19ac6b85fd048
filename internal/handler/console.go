package handler

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	MsgSessionExpired = "Session expired. Please log in again: notes login"

	msgNotLoggedIn   = "Not logged in. Run: notes login"
	msgNoNotes       = "No notes yet. Create your first note with: notes add <text>"
	msgConfirmDelete = "Are you sure you want to delete this note? [y/N] "
)

var ErrNoInput = errors.New("no input")

// Console is the terminal a command reads from and writes to.
type Console struct {
	in  *bufio.Reader
	out io.Writer
	err io.Writer
}

// NewConsole creates a new Console.
func NewConsole(in io.Reader, out, errOut io.Writer) *Console {
	return &Console{
		in:  bufio.NewReader(in),
		out: out,
		err: errOut,
	}
}

// Printf writes to standard output.
func (c *Console) Printf(format string, args ...any) {
	fmt.Fprintf(c.out, format, args...)
}

// Println writes a line to standard output.
func (c *Console) Println(args ...any) {
	fmt.Fprintln(c.out, args...)
}

// Errorln writes a line to standard error.
func (c *Console) Errorln(args ...any) {
	fmt.Fprintln(c.err, args...)
}

// Prompt prints label and reads one line without its line ending.
func (c *Console) Prompt(label string) (string, error) {
	fmt.Fprint(c.out, label)

	line, err := c.in.ReadString('\n')
	if err != nil {
		if !errors.Is(err, io.EOF) {
			return "", err
		}
		if line == "" {
			return "", ErrNoInput
		}
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// Confirm asks question and reports whether the answer was yes. Anything
// else, including end of input, is a no.
func (c *Console) Confirm(question string) bool {
	answer, err := c.Prompt(question)
	if err != nil {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	}
	return false
}
