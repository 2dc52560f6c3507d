// Package installer runs the gem install remediation offered by the
// recovery prompt and the `install` command.
package installer

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"

	"mvdan.cc/sh/v3/shell"

	"github.com/streekit/streekeeper/internal/event"
	"github.com/streekit/streekeeper/internal/logging"
)

// DefaultCommand is run when advanced.installCommand is not configured.
const DefaultCommand = "gem install syntax_tree"

// ErrBusy is returned when an install is requested while one is
// already running.
var ErrBusy = errors.New("an install is already running")

// Installer runs the install command in the workspace directory and
// streams its output into the diagnostics log. Only one install runs
// at a time.
type Installer struct {
	workspace string
	command   func() string

	mu      sync.Mutex
	running bool
}

// New returns an installer for the workspace. command supplies the
// configured install command at run time; nil or an empty result means
// DefaultCommand.
func New(workspace string, command func() string) *Installer {
	return &Installer{workspace: workspace, command: command}
}

// Command returns the shell words the installer will run, expanding
// environment variables and honoring quoting.
func (i *Installer) Command() ([]string, error) {
	raw := ""
	if i.command != nil {
		raw = i.command()
	}
	if strings.TrimSpace(raw) == "" {
		raw = DefaultCommand
	}

	words, err := shell.Fields(raw, os.Getenv)
	if err != nil {
		return nil, fmt.Errorf("failed to parse install command: %w", err)
	}
	if len(words) == 0 {
		return nil, fmt.Errorf("install command %q has no words", raw)
	}
	return words, nil
}

// Install runs the install command to completion. The command's stdout
// and stderr land in the diagnostics log line by line.
func (i *Installer) Install(ctx context.Context) error {
	i.mu.Lock()
	if i.running {
		i.mu.Unlock()
		return ErrBusy
	}
	i.running = true
	i.mu.Unlock()
	defer func() {
		i.mu.Lock()
		i.running = false
		i.mu.Unlock()
	}()

	words, err := i.Command()
	if err != nil {
		return err
	}

	logging.Info().Strs("command", words).Msg("running install command")
	event.Publish(event.Event{Type: event.InstallStarted, Data: event.InstallStartedData{
		Command: words,
	}})

	cmd := exec.CommandContext(ctx, words[0], words[1:]...)
	cmd.Dir = i.workspace

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return i.finish(fmt.Errorf("failed to create stdout pipe: %w", err))
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return i.finish(fmt.Errorf("failed to create stderr pipe: %w", err))
	}

	if err := cmd.Start(); err != nil {
		return i.finish(fmt.Errorf("failed to start install command: %w", err))
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		forwardOutput(stdout, logging.InfoLevel)
	}()
	go func() {
		defer wg.Done()
		forwardOutput(stderr, logging.WarnLevel)
	}()
	wg.Wait()

	if err := cmd.Wait(); err != nil {
		return i.finish(fmt.Errorf("install command failed: %w", err))
	}
	return i.finish(nil)
}

func (i *Installer) finish(err error) error {
	data := event.InstallFinishedData{OK: err == nil}
	if err != nil {
		data.Error = err.Error()
		logging.Error().Err(err).Msg("install failed")
	} else {
		logging.Info().Msg("install finished")
	}
	event.Publish(event.Event{Type: event.InstallFinished, Data: data})
	return err
}

func forwardOutput(r io.Reader, level logging.Level) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		logging.Logger.WithLevel(level).Str("component", "install").Msg(scanner.Text())
	}
}
