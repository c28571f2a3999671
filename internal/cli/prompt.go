package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// errEmptyInput is returned when a required answer is left blank.
var errEmptyInput = errors.New("input required")

// prompter asks questions on out and reads answers from in. Passwords are
// read without echo when in is a terminal.
type prompter struct {
	in     io.Reader
	reader *bufio.Reader
	out    io.Writer
}

// newPrompter creates a prompter. A nil in reads from stdin.
func newPrompter(in io.Reader, out io.Writer) *prompter {
	if in == nil {
		in = os.Stdin
	}
	if r, ok := in.(*bufio.Reader); ok {
		return &prompter{in: in, reader: r, out: out}
	}
	return &prompter{in: in, reader: bufio.NewReader(in), out: out}
}

// line prints label and returns the trimmed answer.
func (p *prompter) line(label string) (string, error) {
	fmt.Fprint(p.out, label)
	input, err := p.reader.ReadString('\n')
	if err != nil && (err != io.EOF || input == "") {
		return "", err
	}
	return strings.TrimSpace(input), nil
}

// required repeats line until the answer is non-empty or input runs out.
func (p *prompter) required(label string) (string, error) {
	for {
		answer, err := p.line(label)
		if err != nil {
			return "", err
		}
		if answer != "" {
			return answer, nil
		}
		fmt.Fprintln(p.out, "  Error: a value is required")
	}
}

// password reads a secret. On a terminal it is read without echo.
func (p *prompter) password(label string) (string, error) {
	if f, ok := p.in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(p.out, label)
		secret, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(p.out)
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		if len(secret) == 0 {
			return "", errEmptyInput
		}
		return string(secret), nil
	}
	secret, err := p.line(label)
	if err != nil {
		return "", err
	}
	if secret == "" {
		return "", errEmptyInput
	}
	return secret, nil
}

// confirm asks a yes/no question. Anything but y or yes is no.
func (p *prompter) confirm(label string) (bool, error) {
	answer, err := p.line(label + " [y/N]: ")
	if err != nil {
		return false, err
	}
	switch strings.ToLower(answer) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}
