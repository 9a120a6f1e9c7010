// Package confirm provides the yes/no strategies used to gate destructive steps.
package confirm

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// Confirmer answers a yes/no question.
type Confirmer interface {
	Confirm(ctx context.Context, question string) (bool, error)
}

// Prompt asks the operator on a terminal-like pair of streams.
// Only "y" (any case) is a yes; any other answer and EOF are a no.
type Prompt struct {
	in  *bufio.Reader
	out io.Writer
}

// NewPrompt returns a Prompt reading answers from in and writing questions to out.
func NewPrompt(in io.Reader, out io.Writer) *Prompt {
	return &Prompt{
		in:  bufio.NewReader(in),
		out: out,
	}
}

type answer struct {
	line string
	err  error
}

// Confirm writes question and waits for one line of input.
// It has no timeout; it only returns early when ctx is done.
func (p *Prompt) Confirm(ctx context.Context, question string) (bool, error) {
	if _, err := fmt.Fprintf(p.out, "%s (y/N): ", question); err != nil {
		return false, fmt.Errorf("write prompt: %w", err)
	}

	ch := make(chan answer, 1)
	go func() {
		line, err := p.in.ReadString('\n')
		ch <- answer{line: line, err: err}
	}()

	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case a := <-ch:
		if a.err != nil && a.err != io.EOF {
			return false, fmt.Errorf("read answer: %w", a.err)
		}
		return strings.EqualFold(strings.TrimSpace(a.line), "y"), nil
	}
}

// Static always gives the same answer. It is used for unattended runs.
type Static struct {
	Answer bool
}

// Confirm implements Confirmer.
func (s Static) Confirm(ctx context.Context, _ string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return s.Answer, nil
}

// check interfaces
var (
	_ Confirmer = (*Prompt)(nil)
	_ Confirmer = Static{}
)
