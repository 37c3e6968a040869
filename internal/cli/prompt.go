package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"
)

// ErrInputCancelled is returned when input is canceled by context.
var ErrInputCancelled = errors.New("input canceled")

// Prompter reads answers to prompts without blocking past context cancellation.
type Prompter struct {
	reader   *bufio.Reader
	writer   io.Writer
	secret   func() (string, error)
	readLock sync.Mutex
}

// NewPrompter creates a prompter reading from r and writing prompts to w.
// Secrets are read with terminal echo disabled when r is a terminal.
func NewPrompter(r io.Reader, w io.Writer) *Prompter {
	if r == nil {
		r = os.Stdin
	}
	if w == nil {
		w = os.Stderr
	}
	p := &Prompter{
		reader: bufio.NewReader(r),
		writer: w,
	}
	if f, ok := r.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		p.secret = func() (string, error) {
			b, err := term.ReadPassword(int(f.Fd()))
			_, _ = fmt.Fprintln(w)
			return string(b), err
		}
	}
	return p
}

// ReadLine reads one trimmed line, respecting context cancellation.
func (p *Prompter) ReadLine(ctx context.Context) (string, error) {
	type result struct {
		err   error
		value string
	}
	resultCh := make(chan result, 1)

	go func() {
		p.readLock.Lock()
		defer p.readLock.Unlock()

		value, err := p.reader.ReadString('\n')
		if errors.Is(err, io.EOF) && value != "" {
			err = nil
		}
		resultCh <- result{value: strings.TrimSpace(value), err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ErrInputCancelled
	case res := <-resultCh:
		return res.value, res.err
	}
}

// Ask writes label and reads the answer.
func (p *Prompter) Ask(ctx context.Context, label string) (string, error) {
	if _, err := fmt.Fprint(p.writer, FormatPrompt(label)); err != nil {
		return "", fmt.Errorf("failed to write prompt: %w", err)
	}
	return p.ReadLine(ctx)
}

// AskSecret is Ask without echoing the answer.
func (p *Prompter) AskSecret(ctx context.Context, label string) (string, error) {
	if p.secret == nil {
		return p.Ask(ctx, label)
	}
	if _, err := fmt.Fprint(p.writer, FormatPrompt(label)); err != nil {
		return "", fmt.Errorf("failed to write prompt: %w", err)
	}

	type result struct {
		err   error
		value string
	}
	resultCh := make(chan result, 1)
	go func() {
		value, err := p.secret()
		resultCh <- result{value: value, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ErrInputCancelled
	case res := <-resultCh:
		return res.value, res.err
	}
}

// Credentials fills in whichever of username and password is empty.
func (p *Prompter) Credentials(ctx context.Context, username, password string) (string, string, error) {
	var err error
	if username == "" {
		if username, err = p.Ask(ctx, "Username"); err != nil {
			return "", "", err
		}
	}
	if password == "" {
		if password, err = p.AskSecret(ctx, "Password"); err != nil {
			return "", "", err
		}
	}
	return username, password, nil
}
