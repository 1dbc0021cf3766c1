package interactive

import (
	"bufio"
	"errors"
	"io"
	"sync"

	"github.com/chzyer/readline"
)

// LineReader yields one line of user input per call. ReadLine returns
// io.EOF once input is over, including after Close.
type LineReader interface {
	ReadLine() (string, error)
	Close() error
}

// TerminalReader edits input lines with readline. Inbound messages must be
// written through Stdout so the line being typed survives them.
type TerminalReader struct {
	rl *readline.Instance
}

func NewTerminalReader(identity string) (*TerminalReader, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          Prompt(identity),
		InterruptPrompt: "^C",
		EOFPrompt:       quitCommand,
	})
	if err != nil {
		return nil, err
	}
	return &TerminalReader{rl: rl}, nil
}

func (r *TerminalReader) Stdout() io.Writer {
	return r.rl.Stdout()
}

// ReadLine maps Ctrl+C on an empty line to the end of input.
func (r *TerminalReader) ReadLine() (string, error) {
	line, err := r.rl.Readline()
	if errors.Is(err, readline.ErrInterrupt) {
		return "", io.EOF
	}
	return line, err
}

func (r *TerminalReader) Close() error {
	return r.rl.Close()
}

// Prompter draws the prompt before a read and forgets it once the user
// submitted a line.
type Prompter interface {
	ShowPrompt()
	HidePrompt()
}

type noPrompt struct{}

func (noPrompt) ShowPrompt() {}
func (noPrompt) HidePrompt() {}

// PlainReader reads lines from a pipe or a file. The prompt is drawn by the
// Prompter, usually the Console, before every read.
type PlainReader struct {
	in       io.Reader
	scanner  *bufio.Scanner
	prompter Prompter
	mu       sync.Mutex
	closed   bool
}

func NewPlainReader(in io.Reader, prompter Prompter) *PlainReader {
	if prompter == nil {
		prompter = noPrompt{}
	}
	return &PlainReader{in: in, scanner: bufio.NewScanner(in), prompter: prompter}
}

func (r *PlainReader) ReadLine() (string, error) {
	if r.isClosed() {
		return "", io.EOF
	}
	r.prompter.ShowPrompt()
	if r.scanner.Scan() {
		r.prompter.HidePrompt()
		return r.scanner.Text(), nil
	}
	if err := r.scanner.Err(); err != nil && !r.isClosed() {
		return "", err
	}
	return "", io.EOF
}

// Close unblocks a pending read only when the underlying reader can be
// closed; a blocked read on a terminal stays blocked until the process ends.
func (r *PlainReader) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()
	if closer, ok := r.in.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

func (r *PlainReader) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}
