package supervisor

import (
	"context"
	"errors"
	"os"
	"os/exec"

	"github.com/streekit/streekeeper/internal/event"
	"github.com/streekit/streekeeper/internal/logging"
	"github.com/streekit/streekeeper/internal/prompt"
)

// FailureKind classifies a launch failure for recovery prompting.
type FailureKind string

const (
	// FailureNotFound means the resolved executable does not exist.
	FailureNotFound FailureKind = "not-found"
	// FailureOther covers every other spawn or handshake failure.
	FailureOther FailureKind = "other"
)

// Recovery prompt actions. The action strings double as button labels.
const (
	ActionRestart    = "Restart"
	ActionInstallGem = "Install Gem"
)

// Classify maps a launch error to its failure kind.
func Classify(err error) FailureKind {
	if errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) {
		return FailureNotFound
	}
	return FailureOther
}

func failureMessage(kind FailureKind) string {
	if kind == FailureNotFound {
		return "The stree executable could not be found. Install the syntax_tree gem or adjust the command path."
	}
	return "The syntax_tree language server failed to start."
}

func failureActions(kind FailureKind) []string {
	if kind == FailureNotFound {
		return []string{ActionInstallGem, ActionRestart}
	}
	return []string{ActionRestart}
}

// recover publishes the failure, prompts the operator, and runs the
// chosen remediation. Runs on its own goroutine so the prompt can wait
// indefinitely without blocking lifecycle operations.
func (s *Supervisor) recover(le *launchError) {
	kind := Classify(le.err)

	logging.Error().
		Str("launch_id", le.launchID).
		Str("kind", string(kind)).
		Err(le.err).
		Msg("language server failed to start")
	event.Publish(event.Event{Type: event.ServerFailed, Data: event.ServerFailedData{
		LaunchID: le.launchID,
		Error:    le.err.Error(),
		Kind:     string(kind),
	}})

	if s.prompter == nil {
		return
	}

	pctx := prompt.WithLaunchID(s.ctx, le.launchID)
	action, err := s.prompter.Prompt(pctx, failureMessage(kind), failureActions(kind))
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			logging.Warn().Err(err).Msg("recovery prompt failed")
		}
		return
	}

	switch action {
	case ActionRestart:
		if err := s.Start(s.ctx); err != nil {
			logging.Error().Err(err).Msg("restart after failure did not recover the server")
		}
	case ActionInstallGem:
		s.installAndStart(le.launchID)
	default:
		logging.Debug().Str("launch_id", le.launchID).Msg("recovery prompt dismissed")
	}
}

func (s *Supervisor) installAndStart(launchID string) {
	if s.installer == nil {
		logging.Warn().Msg("install requested but no installer is configured")
		return
	}
	if err := s.installer.Install(s.ctx); err != nil {
		logging.Error().Str("launch_id", launchID).Err(err).Msg("gem install failed")
		return
	}
	if err := s.Start(s.ctx); err != nil {
		logging.Error().Err(err).Msg("start after install did not recover the server")
	}
}
