package prompt

import (
	"context"
	"errors"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/streekit/streekeeper/internal/event"
	"github.com/streekit/streekeeper/internal/logging"
	"github.com/streekit/streekeeper/pkg/types"
)

var (
	// ErrNotFound is returned when resolving an unknown prompt ID.
	ErrNotFound = errors.New("prompt not found")
	// ErrAlreadyResolved is returned when resolving a prompt twice.
	ErrAlreadyResolved = errors.New("prompt already resolved")
	// ErrUnknownAction is returned when the answer is not one of the
	// prompt's offered actions.
	ErrUnknownAction = errors.New("unknown action")
)

// Queue parks prompts for headless serves. Each prompt blocks its caller
// until a control API client resolves it, a newer prompt supersedes it,
// or the context ends.
type Queue struct {
	mu      sync.Mutex
	pending map[string]*pendingPrompt
}

type pendingPrompt struct {
	info   types.PromptInfo
	answer chan string
	done   bool
}

// NewQueue creates an empty prompt queue.
func NewQueue() *Queue {
	return &Queue{pending: make(map[string]*pendingPrompt)}
}

// Prompt implements Prompter. It publishes a prompt.pending event and
// blocks until the prompt is answered, superseded, or ctx ends.
func (q *Queue) Prompt(ctx context.Context, message string, actions []string) (string, error) {
	info := types.PromptInfo{
		ID:        ulid.Make().String(),
		LaunchID:  LaunchIDFromContext(ctx),
		Message:   message,
		Actions:   actions,
		CreatedAt: time.Now().UnixMilli(),
	}
	p := &pendingPrompt{info: info, answer: make(chan string, 1)}

	q.mu.Lock()
	// A newer failure supersedes anything still waiting.
	for _, old := range q.pending {
		if !old.done {
			old.done = true
			close(old.answer)
		}
	}
	q.pending[info.ID] = p
	q.mu.Unlock()
	defer q.remove(info.ID)

	logging.Info().
		Str("prompt_id", info.ID).
		Str("message", message).
		Strs("actions", actions).
		Msg("recovery prompt pending")
	event.Publish(event.Event{Type: event.PromptPending, Data: event.PromptPendingData{Prompt: info}})

	select {
	case action, ok := <-p.answer:
		if !ok {
			// Superseded counts as a dismissal.
			return "", nil
		}
		return action, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Pending lists prompts awaiting resolution, oldest first.
func (q *Queue) Pending() []types.PromptInfo {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]types.PromptInfo, 0, len(q.pending))
	for _, p := range q.pending {
		if !p.done {
			out = append(out, p.info)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt < out[j].CreatedAt })
	return out
}

// Resolve answers a pending prompt. An empty action dismisses it; a
// non-empty action must be one of the prompt's offered labels.
func (q *Queue) Resolve(id, action string) error {
	q.mu.Lock()
	p, ok := q.pending[id]
	if !ok {
		q.mu.Unlock()
		return ErrNotFound
	}
	if p.done {
		q.mu.Unlock()
		return ErrAlreadyResolved
	}
	if action != "" && !slices.Contains(p.info.Actions, action) {
		q.mu.Unlock()
		return ErrUnknownAction
	}
	p.done = true
	q.mu.Unlock()

	p.answer <- action
	event.Publish(event.Event{Type: event.PromptResolved, Data: event.PromptResolvedData{ID: id, Action: action}})
	return nil
}

// remove drops a prompt from the map; called by the prompt's owner when
// it stops waiting.
func (q *Queue) remove(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.pending, id)
}
