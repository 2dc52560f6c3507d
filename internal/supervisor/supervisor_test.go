package supervisor

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streekit/streekeeper/internal/event"
	"github.com/streekit/streekeeper/internal/lsp"
	"github.com/streekit/streekeeper/internal/prompt"
	"github.com/streekit/streekeeper/pkg/types"
)

type fakeServer struct {
	pid  int
	inv  lsp.Invocation
	done chan struct{}

	mu            sync.Mutex
	exitErr       error
	shutdownCalls int
	killed        bool
}

func newFakeServer(pid int, inv lsp.Invocation) *fakeServer {
	return &fakeServer{pid: pid, inv: inv, done: make(chan struct{})}
}

func (f *fakeServer) PID() int                   { return f.pid }
func (f *fakeServer) Invocation() lsp.Invocation { return f.inv }
func (f *fakeServer) Done() <-chan struct{}      { return f.done }

func (f *fakeServer) ExitError() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.exitErr
}

func (f *fakeServer) Shutdown(ctx context.Context) error {
	f.mu.Lock()
	f.shutdownCalls++
	f.mu.Unlock()
	f.exit(nil)
	return nil
}

func (f *fakeServer) Kill() {
	f.mu.Lock()
	f.killed = true
	f.mu.Unlock()
	f.exit(errors.New("killed"))
}

// exit closes the done channel once, simulating process exit.
func (f *fakeServer) exit(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	select {
	case <-f.done:
	default:
		f.exitErr = err
		close(f.done)
	}
}

func (f *fakeServer) shutdowns() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.shutdownCalls
}

func (f *fakeServer) Formatting(ctx context.Context, path string) ([]lsp.TextEdit, error) {
	return nil, nil
}

func (f *fakeServer) Visualize(ctx context.Context, path string) (string, error) {
	return "", nil
}

type fakeLauncher struct {
	mu       sync.Mutex
	failures int
	failErr  error
	launches []lsp.Invocation
	servers  []*fakeServer

	// prevExited records, per launch after the first, whether the
	// previous server had already exited when the launch happened.
	prevExited []bool
}

func (l *fakeLauncher) launch(ctx context.Context, inv lsp.Invocation, root string) (Server, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if n := len(l.servers); n > 0 {
		exited := false
		select {
		case <-l.servers[n-1].done:
			exited = true
		default:
		}
		l.prevExited = append(l.prevExited, exited)
	}

	l.launches = append(l.launches, inv)
	if l.failures > 0 {
		l.failures--
		err := l.failErr
		if err == nil {
			err = errors.New("spawn failed")
		}
		return nil, err
	}
	srv := newFakeServer(4200+len(l.servers), inv)
	l.servers = append(l.servers, srv)
	return srv, nil
}

func (l *fakeLauncher) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.launches)
}

func (l *fakeLauncher) server(i int) *fakeServer {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.servers[i]
}

type promptCall struct {
	launchID string
	message  string
	actions  []string
}

// scriptPrompter answers every prompt with a fixed action.
type scriptPrompter struct {
	answer string
	err    error

	mu    sync.Mutex
	calls []promptCall
}

func (p *scriptPrompter) Prompt(ctx context.Context, message string, actions []string) (string, error) {
	p.mu.Lock()
	p.calls = append(p.calls, promptCall{
		launchID: prompt.LaunchIDFromContext(ctx),
		message:  message,
		actions:  actions,
	})
	p.mu.Unlock()
	return p.answer, p.err
}

func (p *scriptPrompter) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

func (p *scriptPrompter) call(i int) promptCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[i]
}

type fakeInstaller struct {
	err error

	mu    sync.Mutex
	calls int
}

func (f *fakeInstaller) Install(ctx context.Context) error {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return f.err
}

func (f *fakeInstaller) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type eventRecorder struct {
	mu     sync.Mutex
	events []event.Event
}

func recordEvents(t *testing.T, eventTypes ...event.EventType) *eventRecorder {
	t.Helper()
	r := &eventRecorder{}
	for _, typ := range eventTypes {
		unsub := event.Subscribe(typ, func(e event.Event) {
			r.mu.Lock()
			r.events = append(r.events, e)
			r.mu.Unlock()
		})
		t.Cleanup(unsub)
	}
	return r
}

func (r *eventRecorder) typeCount(typ event.EventType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Type == typ {
			n++
		}
	}
	return n
}

func (r *eventRecorder) last(typ event.EventType) (event.Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].Type == typ {
			return r.events[i], true
		}
	}
	return event.Event{}, false
}

func testSettings() *types.Settings {
	return &types.Settings{
		Advanced: types.AdvancedSettings{
			HandshakeTimeout: 2000,
			ShutdownTimeout:  1000,
		},
	}
}

func newTestSupervisor(t *testing.T, cfg Config) *Supervisor {
	t.Helper()
	t.Cleanup(event.Reset)

	if cfg.Workspace == "" {
		cfg.Workspace = t.TempDir()
	}
	if cfg.Settings == nil {
		cfg.Settings = func(string) (*types.Settings, error) { return testSettings(), nil }
	}
	if cfg.Resolver == nil {
		// Probe executable that does not exist, so resolution always
		// lands on the global tier.
		cfg.Resolver = &lsp.Resolver{BundleExecutable: filepath.Join(t.TempDir(), "no-bundle")}
	}

	s := New(cfg)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = s.Teardown(ctx)
	})
	return s
}

func TestStartIdempotent(t *testing.T) {
	launcher := &fakeLauncher{}
	s := newTestSupervisor(t, Config{Launcher: launcher.launch})

	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, StateRunning, s.State())

	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, 1, launcher.count())
	assert.Equal(t, StateRunning, s.State())
}

func TestStartSettingsError(t *testing.T) {
	launcher := &fakeLauncher{}
	prompter := &scriptPrompter{}
	s := newTestSupervisor(t, Config{
		Launcher: launcher.launch,
		Prompter: prompter,
		Settings: func(string) (*types.Settings, error) {
			return nil, errors.New("bad jsonc")
		},
	})

	err := s.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load settings")
	assert.Equal(t, StateIdle, s.State())
	assert.Equal(t, 0, launcher.count())

	// Settings failures are not launch failures, so no recovery prompt.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, prompter.count())
}

func TestStartFailureReturnsToIdle(t *testing.T) {
	launcher := &fakeLauncher{failures: 1}
	prompter := &scriptPrompter{}
	s := newTestSupervisor(t, Config{Launcher: launcher.launch, Prompter: prompter})
	events := recordEvents(t, event.ServerFailed)

	err := s.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "spawn failed")
	assert.Equal(t, StateIdle, s.State())

	require.Eventually(t, func() bool {
		return events.typeCount(event.ServerFailed) == 1 && prompter.count() == 1
	}, time.Second, 10*time.Millisecond)

	failed, ok := events.last(event.ServerFailed)
	require.True(t, ok)
	data := failed.Data.(event.ServerFailedData)
	assert.Equal(t, string(FailureOther), data.Kind)
	assert.NotEmpty(t, data.LaunchID)

	call := prompter.call(0)
	assert.Equal(t, data.LaunchID, call.launchID)
	assert.Equal(t, []string{ActionRestart}, call.actions)
}

func TestStartNotFoundOffersInstall(t *testing.T) {
	launcher := &fakeLauncher{
		failures: 1,
		failErr:  fmt.Errorf("failed to start server: %w", exec.ErrNotFound),
	}
	prompter := &scriptPrompter{}
	s := newTestSupervisor(t, Config{Launcher: launcher.launch, Prompter: prompter})

	require.Error(t, s.Start(context.Background()))

	require.Eventually(t, func() bool {
		return prompter.count() == 1
	}, time.Second, 10*time.Millisecond)

	call := prompter.call(0)
	assert.Equal(t, []string{ActionInstallGem, ActionRestart}, call.actions)
	assert.Contains(t, call.message, "could not be found")
}

func TestPromptRestartRelaunches(t *testing.T) {
	launcher := &fakeLauncher{failures: 1}
	prompter := &scriptPrompter{answer: ActionRestart}
	s := newTestSupervisor(t, Config{Launcher: launcher.launch, Prompter: prompter})

	require.Error(t, s.Start(context.Background()))

	require.Eventually(t, func() bool {
		return s.State() == StateRunning
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, 2, launcher.count())
}

func TestInstallGemRunsInstallerThenStarts(t *testing.T) {
	launcher := &fakeLauncher{failures: 1, failErr: exec.ErrNotFound}
	prompter := &scriptPrompter{answer: ActionInstallGem}
	installer := &fakeInstaller{}
	s := newTestSupervisor(t, Config{
		Launcher:  launcher.launch,
		Prompter:  prompter,
		Installer: installer,
	})

	require.Error(t, s.Start(context.Background()))

	require.Eventually(t, func() bool {
		return s.State() == StateRunning
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, installer.count())
	assert.Equal(t, 2, launcher.count())
}

func TestInstallFailureDoesNotRelaunch(t *testing.T) {
	launcher := &fakeLauncher{failures: 1, failErr: exec.ErrNotFound}
	prompter := &scriptPrompter{answer: ActionInstallGem}
	installer := &fakeInstaller{err: errors.New("gem install exploded")}
	s := newTestSupervisor(t, Config{
		Launcher:  launcher.launch,
		Prompter:  prompter,
		Installer: installer,
	})

	require.Error(t, s.Start(context.Background()))

	require.Eventually(t, func() bool {
		return installer.count() == 1
	}, time.Second, 10*time.Millisecond)

	assert.Never(t, func() bool {
		return launcher.count() > 1
	}, 200*time.Millisecond, 25*time.Millisecond)
	assert.Equal(t, StateIdle, s.State())
}

func TestStopIdempotent(t *testing.T) {
	launcher := &fakeLauncher{}
	s := newTestSupervisor(t, Config{Launcher: launcher.launch})
	events := recordEvents(t, event.ServerStopped)

	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Stop(context.Background()))
	assert.Equal(t, StateIdle, s.State())
	assert.Equal(t, 1, launcher.server(0).shutdowns())

	require.NoError(t, s.Stop(context.Background()))
	assert.Equal(t, 1, launcher.server(0).shutdowns())

	require.Eventually(t, func() bool {
		return events.typeCount(event.ServerStopped) == 1
	}, time.Second, 10*time.Millisecond)
	stopped, _ := events.last(event.ServerStopped)
	assert.Equal(t, "stop", stopped.Data.(event.ServerStoppedData).Reason)
}

func TestRestartStopsBeforeStarting(t *testing.T) {
	launcher := &fakeLauncher{}
	s := newTestSupervisor(t, Config{Launcher: launcher.launch})

	require.NoError(t, s.Start(context.Background()))
	first := launcher.server(0)

	require.NoError(t, s.Restart(context.Background()))
	assert.Equal(t, StateRunning, s.State())
	assert.Equal(t, 2, launcher.count())
	assert.Equal(t, 1, first.shutdowns())

	// The old instance had fully exited before the new launch began.
	launcher.mu.Lock()
	prevExited := append([]bool(nil), launcher.prevExited...)
	launcher.mu.Unlock()
	assert.Equal(t, []bool{true}, prevExited)

	assert.Equal(t, launcher.server(1).PID(), s.Status().PID)
}

func TestRestartFromIdleStarts(t *testing.T) {
	launcher := &fakeLauncher{}
	s := newTestSupervisor(t, Config{Launcher: launcher.launch})

	require.NoError(t, s.Restart(context.Background()))
	assert.Equal(t, StateRunning, s.State())
	assert.Equal(t, 1, launcher.count())
}

func TestTeardownWhileRunning(t *testing.T) {
	launcher := &fakeLauncher{}
	s := newTestSupervisor(t, Config{Launcher: launcher.launch})
	events := recordEvents(t, event.ServerStopped)

	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Teardown(context.Background()))

	assert.Equal(t, StateIdle, s.State())
	assert.Equal(t, 1, launcher.server(0).shutdowns())

	require.Eventually(t, func() bool {
		return events.typeCount(event.ServerStopped) == 1
	}, time.Second, 10*time.Millisecond)
	stopped, _ := events.last(event.ServerStopped)
	assert.Equal(t, "teardown", stopped.Data.(event.ServerStoppedData).Reason)
}

func TestTeardownWhileIdle(t *testing.T) {
	s := newTestSupervisor(t, Config{Launcher: (&fakeLauncher{}).launch})
	require.NoError(t, s.Teardown(context.Background()))
	assert.Equal(t, StateIdle, s.State())
}

func TestUnexpectedExitReturnsToIdle(t *testing.T) {
	launcher := &fakeLauncher{}
	s := newTestSupervisor(t, Config{Launcher: launcher.launch})
	events := recordEvents(t, event.ServerStopped)

	require.NoError(t, s.Start(context.Background()))
	launcher.server(0).exit(errors.New("exit status 1"))

	require.Eventually(t, func() bool {
		return s.State() == StateIdle
	}, time.Second, 10*time.Millisecond)
	assert.Nil(t, s.Server())
	assert.Zero(t, s.Status().PID)

	require.Eventually(t, func() bool {
		return events.typeCount(event.ServerStopped) == 1
	}, time.Second, 10*time.Millisecond)
	stopped, _ := events.last(event.ServerStopped)
	assert.Equal(t, "exit", stopped.Data.(event.ServerStoppedData).Reason)

	// The supervisor can start a fresh instance afterwards.
	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, 2, launcher.count())
}

func TestStatusRunning(t *testing.T) {
	launcher := &fakeLauncher{}
	settings := testSettings()
	settings.SingleQuotes = true
	s := newTestSupervisor(t, Config{
		Launcher: launcher.launch,
		Settings: func(string) (*types.Settings, error) { return settings, nil },
	})

	require.NoError(t, s.Start(context.Background()))

	st := s.Status()
	assert.Equal(t, "running", st.State)
	assert.Len(t, st.LaunchID, 26)
	assert.Equal(t, launcher.server(0).PID(), st.PID)
	assert.Equal(t, []string{"stree", "lsp", "--plugins=single_quotes"}, st.Command)
	assert.Equal(t, "global", st.Source)
	assert.Greater(t, st.StartedAt, int64(0))
	require.NotNil(t, st.Settings)
	assert.True(t, st.Settings.SingleQuotes)
}

func TestStatusIdle(t *testing.T) {
	s := newTestSupervisor(t, Config{Launcher: (&fakeLauncher{}).launch})

	st := s.Status()
	assert.Equal(t, "idle", st.State)
	assert.Empty(t, st.LaunchID)
	assert.Zero(t, st.PID)
	assert.Nil(t, st.Settings)
}

func TestSnapshotPerLaunch(t *testing.T) {
	launcher := &fakeLauncher{}
	current := testSettings()
	s := newTestSupervisor(t, Config{
		Launcher: launcher.launch,
		Settings: func(string) (*types.Settings, error) {
			copied := *current
			return &copied, nil
		},
	})

	require.NoError(t, s.Start(context.Background()))
	require.NotNil(t, s.Snapshot())
	assert.False(t, s.Snapshot().TrailingComma)

	current.TrailingComma = true
	require.NoError(t, s.Restart(context.Background()))
	assert.True(t, s.Snapshot().TrailingComma)
}
