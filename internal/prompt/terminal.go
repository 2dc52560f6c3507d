package prompt

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/chzyer/readline"
)

// Terminal prompts interactively on the serve TTY. Actions are picked by
// number or by name; an empty line, Ctrl+C, or Ctrl+D dismisses.
type Terminal struct {
	mu sync.Mutex // one prompt owns the TTY at a time
}

// NewTerminal creates a terminal prompter.
func NewTerminal() *Terminal {
	return &Terminal{}
}

// Prompt implements Prompter.
func (t *Terminal) Prompt(ctx context.Context, message string, actions []string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	fmt.Println()
	fmt.Println(message)
	for i, action := range actions {
		fmt.Printf("  [%d] %s\n", i+1, action)
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "choice> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "",
	})
	if err != nil {
		return "", fmt.Errorf("failed to create readline instance: %w", err)
	}
	defer rl.Close()

	type lineResult struct {
		line string
		err  error
	}
	lines := make(chan lineResult, 1)
	go func() {
		for {
			line, err := rl.Readline()
			lines <- lineResult{line, err}
			if err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case res := <-lines:
			if res.err == readline.ErrInterrupt || res.err == io.EOF {
				return "", nil
			}
			if res.err != nil {
				return "", fmt.Errorf("readline error: %w", res.err)
			}

			choice := strings.TrimSpace(res.line)
			if choice == "" {
				return "", nil
			}
			if n, err := strconv.Atoi(choice); err == nil && n >= 1 && n <= len(actions) {
				return actions[n-1], nil
			}
			for _, action := range actions {
				if strings.EqualFold(choice, action) {
					return action, nil
				}
			}
			fmt.Printf("pick 1-%d or an action name, empty line to dismiss\n", len(actions))
		}
	}
}
