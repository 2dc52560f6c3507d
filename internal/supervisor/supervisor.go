// Package supervisor owns the lifecycle of the single syntax_tree
// language server instance: start, stop, restart, configuration-driven
// restarts, and recovery from launch failures.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/streekit/streekeeper/internal/config"
	"github.com/streekit/streekeeper/internal/event"
	"github.com/streekit/streekeeper/internal/logging"
	"github.com/streekit/streekeeper/internal/lsp"
	"github.com/streekit/streekeeper/internal/prompt"
	"github.com/streekit/streekeeper/pkg/types"
)

// State is the lifecycle state of the supervised server.
type State int32

const (
	StateIdle State = iota
	StateStarting
	StateRunning
	StateStopping
)

// String returns the lowercase state name used in logs and the API.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// Server is the supervisor's view of a live language server handle.
// *lsp.Client implements it; tests substitute fakes.
type Server interface {
	PID() int
	Invocation() lsp.Invocation
	Done() <-chan struct{}
	ExitError() error
	Shutdown(ctx context.Context) error
	Kill()
	Formatting(ctx context.Context, path string) ([]lsp.TextEdit, error)
	Visualize(ctx context.Context, path string) (string, error)
}

// Launcher spawns a Server from a resolved Invocation.
type Launcher func(ctx context.Context, inv lsp.Invocation, root string) (Server, error)

func defaultLauncher(ctx context.Context, inv lsp.Invocation, root string) (Server, error) {
	client, err := lsp.Spawn(ctx, inv, root)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// Installer runs the install remediation.
type Installer interface {
	Install(ctx context.Context) error
}

// Config wires a Supervisor's collaborators. Nil fields get working
// defaults; tests inject fakes.
type Config struct {
	// Workspace is the project directory used for resolution, the
	// bundle probe, and the server's root.
	Workspace string
	// Settings returns the snapshot for a start attempt. Defaults to
	// config.Load.
	Settings func(workspace string) (*types.Settings, error)
	// Resolver picks the executable. Defaults to lsp.NewResolver().
	Resolver *lsp.Resolver
	// Launcher spawns the server. Defaults to lsp.Spawn.
	Launcher Launcher
	// Prompter receives recovery prompts; nil disables prompting.
	Prompter prompt.Prompter
	// Installer runs the Install Gem remediation; nil disables it.
	Installer Installer
}

// Supervisor owns the single language server instance. Lifecycle
// operations are serialized behind one mutex; the state field is read
// lock-free.
type Supervisor struct {
	opMu sync.Mutex

	workspace string
	settings  func(workspace string) (*types.Settings, error)
	resolver  *lsp.Resolver
	launcher  Launcher
	prompter  prompt.Prompter
	installer Installer

	state atomic.Int32

	handleMu  sync.RWMutex
	handle    Server
	launchID  string
	snapshot  *types.Settings
	startedAt time.Time

	ctx    context.Context
	cancel context.CancelFunc
}

// New constructs a Supervisor in the Idle state.
func New(cfg Config) *Supervisor {
	if cfg.Settings == nil {
		cfg.Settings = config.Load
	}
	if cfg.Resolver == nil {
		cfg.Resolver = lsp.NewResolver()
	}
	if cfg.Launcher == nil {
		cfg.Launcher = defaultLauncher
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Supervisor{
		workspace: cfg.Workspace,
		settings:  cfg.Settings,
		resolver:  cfg.Resolver,
		launcher:  cfg.Launcher,
		prompter:  cfg.Prompter,
		installer: cfg.Installer,
		ctx:       ctx,
		cancel:    cancel,
	}
	s.state.Store(int32(StateIdle))
	return s
}

// State returns the current lifecycle state.
func (s *Supervisor) State() State {
	return State(s.state.Load())
}

func (s *Supervisor) setState(st State) {
	s.state.Store(int32(st))
}

// Workspace returns the supervised project directory.
func (s *Supervisor) Workspace() string {
	return s.workspace
}

// Server returns the live handle, or nil while not running. Dependent
// features must tolerate it disappearing at any time.
func (s *Supervisor) Server() Server {
	s.handleMu.RLock()
	defer s.handleMu.RUnlock()
	return s.handle
}

// Snapshot returns the settings of the live instance, or nil while not
// running.
func (s *Supervisor) Snapshot() *types.Settings {
	s.handleMu.RLock()
	defer s.handleMu.RUnlock()
	return s.snapshot
}

// Status reports the current state for the control API.
func (s *Supervisor) Status() types.Status {
	st := types.Status{State: s.State().String()}

	s.handleMu.RLock()
	defer s.handleMu.RUnlock()
	if s.handle != nil {
		inv := s.handle.Invocation()
		st.LaunchID = s.launchID
		st.PID = s.handle.PID()
		st.Command = inv.CommandLine()
		st.Source = string(inv.Source)
		st.StartedAt = s.startedAt.UnixMilli()
		st.Settings = s.snapshot
	}
	return st
}

// Start launches the server unless it is already starting or running.
// Launch failures transition back to Idle and hand off to the recovery
// prompt; the original error is returned either way.
func (s *Supervisor) Start(ctx context.Context) error {
	s.opMu.Lock()
	err := s.startLocked(ctx)
	s.opMu.Unlock()

	s.maybeRecover(err)
	return err
}

// Stop shuts the server down gracefully. A stop while Idle is a no-op.
func (s *Supervisor) Stop(ctx context.Context) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	return s.stopLocked(ctx, "stop")
}

// Restart stops the server if needed and starts it again. The stop
// completes fully before the start begins; there is never a window with
// two live handles.
func (s *Supervisor) Restart(ctx context.Context) error {
	s.opMu.Lock()
	logging.Info().Msg("restarting language server")
	err := s.stopLocked(ctx, "restart")
	if err == nil {
		err = s.startLocked(ctx)
	}
	s.opMu.Unlock()

	s.maybeRecover(err)
	return err
}

// Teardown forces a stop regardless of state and releases supervisor
// resources. Called at serve shutdown; a teardown while Idle only
// cancels outstanding recovery prompts.
func (s *Supervisor) Teardown(ctx context.Context) error {
	s.cancel()

	s.opMu.Lock()
	defer s.opMu.Unlock()
	return s.stopLocked(ctx, "teardown")
}

func (s *Supervisor) startLocked(ctx context.Context) error {
	if st := s.State(); st == StateStarting || st == StateRunning {
		logging.Debug().Str("state", st.String()).Msg("start ignored, server already up")
		return nil
	}

	settings, err := s.settings(s.workspace)
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}

	launchID := ulid.Make().String()
	args := lsp.BuildArgs(*settings)
	inv := s.resolver.Resolve(ctx, *settings, s.workspace, args)

	logging.Info().
		Str("launch_id", launchID).
		Strs("command", inv.CommandLine()).
		Str("source", string(inv.Source)).
		Msg("starting language server")

	s.setState(StateStarting)
	event.Publish(event.Event{Type: event.ServerStarting, Data: event.ServerStartingData{
		LaunchID: launchID,
		Command:  inv.CommandLine(),
		Source:   string(inv.Source),
	}})

	hctx, cancel := context.WithTimeout(ctx, handshakeTimeout(settings))
	defer cancel()

	srv, err := s.launcher(hctx, inv, s.workspace)
	if err != nil {
		s.setState(StateIdle)
		return &launchError{launchID: launchID, err: err}
	}

	startedAt := time.Now()
	s.handleMu.Lock()
	s.handle = srv
	s.launchID = launchID
	s.snapshot = settings
	s.startedAt = startedAt
	s.handleMu.Unlock()

	s.setState(StateRunning)
	go s.watch(srv, launchID)

	logging.Info().Str("launch_id", launchID).Int("pid", srv.PID()).Msg("language server running")
	event.Publish(event.Event{Type: event.ServerRunning, Data: event.ServerRunningData{
		LaunchID:  launchID,
		PID:       srv.PID(),
		StartedAt: startedAt.UnixMilli(),
	}})
	return nil
}

func (s *Supervisor) stopLocked(ctx context.Context, reason string) error {
	if s.State() == StateIdle {
		logging.Debug().Msg("stop ignored, server already idle")
		return nil
	}

	// The handle is released before shutdown begins so dependent
	// features stop using it immediately.
	s.handleMu.Lock()
	srv := s.handle
	launchID := s.launchID
	snapshot := s.snapshot
	s.handle = nil
	s.launchID = ""
	s.snapshot = nil
	s.startedAt = time.Time{}
	s.handleMu.Unlock()

	logging.Info().Str("launch_id", launchID).Str("reason", reason).Msg("stopping language server")
	s.setState(StateStopping)

	if srv != nil {
		sctx, cancel := context.WithTimeout(ctx, shutdownTimeout(snapshot))
		if err := srv.Shutdown(sctx); err != nil {
			logging.Warn().Err(err).Msg("graceful shutdown failed")
		}
		cancel()
	}

	s.setState(StateIdle)
	event.Publish(event.Event{Type: event.ServerStopped, Data: event.ServerStoppedData{
		LaunchID: launchID,
		Reason:   reason,
	}})
	return nil
}

// watch observes the server process and returns the supervisor to Idle
// if it exits outside a supervised stop.
func (s *Supervisor) watch(srv Server, launchID string) {
	<-srv.Done()

	s.opMu.Lock()
	defer s.opMu.Unlock()

	// Supervised stops clear the handle first; only an unexpected exit
	// still owns it here.
	s.handleMu.Lock()
	if s.handle != srv {
		s.handleMu.Unlock()
		return
	}
	s.handle = nil
	s.launchID = ""
	s.snapshot = nil
	s.startedAt = time.Time{}
	s.handleMu.Unlock()

	logging.Warn().Str("launch_id", launchID).Err(srv.ExitError()).Msg("language server exited unexpectedly")
	s.setState(StateIdle)
	event.Publish(event.Event{Type: event.ServerStopped, Data: event.ServerStoppedData{
		LaunchID: launchID,
		Reason:   "exit",
	}})
}

// launchError marks a failed spawn or handshake attempt, carrying the
// launch ID for recovery correlation.
type launchError struct {
	launchID string
	err      error
}

func (e *launchError) Error() string { return e.err.Error() }
func (e *launchError) Unwrap() error { return e.err }

// maybeRecover hands launch failures to the recovery prompt. Runs after
// the operation lock is released: the prompt can block indefinitely and
// its follow-up re-enters Start.
func (s *Supervisor) maybeRecover(err error) {
	var le *launchError
	if err == nil || !errors.As(err, &le) {
		return
	}
	go s.recover(le)
}

func handshakeTimeout(s *types.Settings) time.Duration {
	if s != nil && s.Advanced.HandshakeTimeout > 0 {
		return time.Duration(s.Advanced.HandshakeTimeout) * time.Millisecond
	}
	return time.Duration(config.DefaultHandshakeTimeout) * time.Millisecond
}

func shutdownTimeout(s *types.Settings) time.Duration {
	if s != nil && s.Advanced.ShutdownTimeout > 0 {
		return time.Duration(s.Advanced.ShutdownTimeout) * time.Millisecond
	}
	return time.Duration(config.DefaultShutdownTimeout) * time.Millisecond
}
