// Package permission models the runtime grant that guards access to the step counter.
package permission

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
)

// Permission names a runtime permission.
type Permission string

// ActivityRecognition guards step-counter access on platforms that require a runtime grant.
const ActivityRecognition Permission = "android.permission.ACTIVITY_RECOGNITION"

// Checker reports and requests permissions. Request resolves once per call; callers decide
// what a denial means.
type Checker interface {
	Granted(Permission) bool
	Request(context.Context, Permission) (bool, error)
}

// Static answers from a fixed configuration value. Request never changes the answer.
type Static struct {
	Grant bool
}

func (s Static) Granted(Permission) bool { return s.Grant }

func (s Static) Request(context.Context, Permission) (bool, error) { return s.Grant, nil }

// Prompt asks on a terminal and remembers the first answer for the rest of the session.
type Prompt struct {
	in  *bufio.Reader
	out io.Writer

	mu      sync.Mutex
	answers map[Permission]bool
}

// NewPrompt reads answers from in and writes questions to out.
func NewPrompt(in io.Reader, out io.Writer) *Prompt {
	return &Prompt{in: bufio.NewReader(in), out: out, answers: make(map[Permission]bool)}
}

func (p *Prompt) Granted(perm Permission) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.answers[perm]
}

// Request asks once per permission; later calls return the recorded answer. Anything other
// than y or yes is a denial.
func (p *Prompt) Request(ctx context.Context, perm Permission) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if granted, asked := p.answers[perm]; asked {
		return granted, nil
	}

	if _, err := fmt.Fprintf(p.out, "Allow access to %s? [y/N]: ", perm); err != nil {
		return false, fmt.Errorf("prompt for %s: %w", perm, err)
	}

	type result struct {
		line string
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		line, err := p.in.ReadString('\n')
		ch <- result{line, err}
	}()

	var res result
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case res = <-ch:
	}
	if res.err != nil && res.err != io.EOF {
		return false, fmt.Errorf("read answer for %s: %w", perm, res.err)
	}

	answer := strings.ToLower(strings.TrimSpace(res.line))
	granted := answer == "y" || answer == "yes"
	p.answers[perm] = granted
	return granted, nil
}
