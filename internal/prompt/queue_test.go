package prompt

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streekit/streekeeper/internal/event"
)

func waitForPending(t *testing.T, q *Queue, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return len(q.Pending()) == n
	}, 2*time.Second, 5*time.Millisecond, "expected %d pending prompts", n)
}

func TestQueuePromptResolve(t *testing.T) {
	t.Cleanup(event.Reset)
	q := NewQueue()

	type result struct {
		action string
		err    error
	}
	done := make(chan result, 1)
	go func() {
		action, err := q.Prompt(context.Background(), "server failed", []string{"Install Gem", "Restart"})
		done <- result{action, err}
	}()

	waitForPending(t, q, 1)
	info := q.Pending()[0]
	assert.Equal(t, "server failed", info.Message)
	assert.Equal(t, []string{"Install Gem", "Restart"}, info.Actions)

	require.NoError(t, q.Resolve(info.ID, "Restart"))

	res := <-done
	require.NoError(t, res.err)
	assert.Equal(t, "Restart", res.action)
	assert.Empty(t, q.Pending())
}

func TestQueuePromptDismiss(t *testing.T) {
	t.Cleanup(event.Reset)
	q := NewQueue()

	done := make(chan string, 1)
	go func() {
		action, _ := q.Prompt(context.Background(), "server failed", []string{"Restart"})
		done <- action
	}()

	waitForPending(t, q, 1)
	require.NoError(t, q.Resolve(q.Pending()[0].ID, ""))
	assert.Equal(t, "", <-done)
}

func TestQueueResolveUnknownID(t *testing.T) {
	q := NewQueue()
	assert.ErrorIs(t, q.Resolve("nope", "Restart"), ErrNotFound)
}

func TestQueueResolveUnknownAction(t *testing.T) {
	t.Cleanup(event.Reset)
	q := NewQueue()

	go q.Prompt(context.Background(), "server failed", []string{"Restart"})
	waitForPending(t, q, 1)

	id := q.Pending()[0].ID
	assert.ErrorIs(t, q.Resolve(id, "Reboot"), ErrUnknownAction)

	// Still answerable with a valid label.
	require.NoError(t, q.Resolve(id, "Restart"))
}

func TestQueueSupersede(t *testing.T) {
	t.Cleanup(event.Reset)
	q := NewQueue()

	first := make(chan string, 1)
	go func() {
		action, _ := q.Prompt(context.Background(), "first failure", []string{"Restart"})
		first <- action
	}()
	waitForPending(t, q, 1)

	go q.Prompt(context.Background(), "second failure", []string{"Restart"})

	// The older prompt is dismissed and only the newer one stays listed.
	assert.Equal(t, "", <-first)
	require.Eventually(t, func() bool {
		pending := q.Pending()
		return len(pending) == 1 && pending[0].Message == "second failure"
	}, 2*time.Second, 5*time.Millisecond)
}

func TestQueueContextCanceled(t *testing.T) {
	t.Cleanup(event.Reset)
	q := NewQueue()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := q.Prompt(ctx, "server failed", []string{"Restart"})
		done <- err
	}()

	waitForPending(t, q, 1)
	cancel()

	assert.ErrorIs(t, <-done, context.Canceled)
	require.Eventually(t, func() bool {
		return len(q.Pending()) == 0
	}, 2*time.Second, 5*time.Millisecond)
}

func TestQueueCarriesLaunchID(t *testing.T) {
	t.Cleanup(event.Reset)
	q := NewQueue()

	ctx := WithLaunchID(context.Background(), "01J5ABCDEF")
	go q.Prompt(ctx, "server failed", []string{"Restart"})

	waitForPending(t, q, 1)
	assert.Equal(t, "01J5ABCDEF", q.Pending()[0].LaunchID)
}

func TestLaunchIDFromContextMissing(t *testing.T) {
	assert.Equal(t, "", LaunchIDFromContext(context.Background()))
}
