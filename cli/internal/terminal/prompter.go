// Package terminal reads credentials and challenge answers from the controlling terminal.
package terminal

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/BDNK1/rotor/runtime"
	"golang.org/x/term"
)

// Prompter implements runtime.Prompter on an input/output pair. Secrets are read
// without echo when the input is a terminal.
type Prompter struct {
	in     *os.File
	out    io.Writer
	reader *bufio.Reader
}

var _ runtime.Prompter = (*Prompter)(nil)

func NewPrompter(in *os.File, out io.Writer) *Prompter {
	return &Prompter{
		in:     in,
		out:    out,
		reader: bufio.NewReader(in),
	}
}

func (p *Prompter) Prompt(ctx context.Context, message string, kind runtime.PromptKind) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	fmt.Fprintf(p.out, "%s: ", message)
	answer, err := p.readLine()
	if err != nil {
		return "", fmt.Errorf("read %s answer: %w", kind, err)
	}
	return strings.TrimSpace(answer), nil
}

// Secret reads a line without echoing it.
func (p *Prompter) Secret(label string) (string, error) {
	fmt.Fprintf(p.out, "%s: ", label)
	if !term.IsTerminal(int(p.in.Fd())) {
		return p.readLine()
	}
	b, err := term.ReadPassword(int(p.in.Fd()))
	fmt.Fprintln(p.out)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// NewPassword asks for a password twice and requires both entries to agree.
func (p *Prompter) NewPassword(label string) (string, error) {
	first, err := p.Secret(label)
	if err != nil {
		return "", err
	}
	if first == "" {
		return "", errors.New("password must not be empty")
	}
	second, err := p.Secret("Confirm " + strings.ToLower(label))
	if err != nil {
		return "", err
	}
	if first != second {
		return "", errors.New("passwords do not match")
	}
	return first, nil
}

func (p *Prompter) readLine() (string, error) {
	line, err := p.reader.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
