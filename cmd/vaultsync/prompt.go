package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

var errNoInput = errors.New("no input")

// prompter reads answers from the terminal, hiding secrets, or line by line
// from any other reader so the commands can be scripted.
type prompter struct {
	in  io.Reader
	out io.Writer

	lines *bufio.Reader
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	return &prompter{in: in, out: out, lines: bufio.NewReader(in)}
}

// Secret asks for a value without echoing it. The caller owns the returned
// slice and should wipe it.
func (p *prompter) Secret(label string) ([]byte, error) {
	fmt.Fprintf(p.out, "%s: ", label)

	if fd, ok := p.terminal(); ok {
		secret, err := term.ReadPassword(fd)
		fmt.Fprintln(p.out)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", label, err)
		}
		if len(secret) == 0 {
			return nil, errNoInput
		}
		return secret, nil
	}

	line, err := p.readLine()
	if err != nil {
		return nil, err
	}
	return []byte(line), nil
}

// Line asks for a visible value.
func (p *prompter) Line(label string) (string, error) {
	fmt.Fprintf(p.out, "%s: ", label)
	return p.readLine()
}

// Confirm asks a yes/no question; anything but y or yes is no.
func (p *prompter) Confirm(label string) bool {
	answer, err := p.Line(label + " [y/N]")
	if err != nil {
		return false
	}
	answer = strings.ToLower(answer)
	return answer == "y" || answer == "yes"
}

func (p *prompter) readLine() (string, error) {
	line, err := p.lines.ReadString('\n')
	line = strings.TrimRight(line, "\r\n")
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		if errors.Is(err, io.EOF) {
			return "", errNoInput
		}
		return "", err
	}
	if line == "" {
		return "", errNoInput
	}
	return line, nil
}

func (p *prompter) terminal() (int, bool) {
	f, ok := p.in.(*os.File)
	if !ok {
		return 0, false
	}
	fd := int(f.Fd())
	return fd, term.IsTerminal(fd)
}
