// Package prompt surfaces recovery choices to the operator.
//
// The supervisor asks a Prompter after a failed launch; which follow-up
// each action triggers is the supervisor's business, not the prompter's.
// Two implementations exist: an interactive terminal chooser for
// foreground serves and a queue that parks prompts for resolution over
// the control API.
package prompt

import "context"

// Prompter presents a message with ordered action labels and returns the
// chosen label, or "" when the prompt is dismissed.
type Prompter interface {
	Prompt(ctx context.Context, message string, actions []string) (string, error)
}

// launchIDKey carries the launch ID a prompt belongs to.
type launchIDKey struct{}

// WithLaunchID attaches the launch ID of the failed start attempt, so
// prompters can correlate the prompt with lifecycle events.
func WithLaunchID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, launchIDKey{}, id)
}

// LaunchIDFromContext extracts the launch ID attached by WithLaunchID.
func LaunchIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(launchIDKey{}).(string)
	return id
}
