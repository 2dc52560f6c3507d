package testutil

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"

	"github.com/streekit/streekeeper/internal/lsp"
	"github.com/streekit/streekeeper/internal/supervisor"
)

// StubLauncher plays launch attempts according to the scenario's launch
// rules. Attempts beyond the scripted rules succeed.
type StubLauncher struct {
	scenario *Scenario

	mu       sync.Mutex
	attempts int
	servers  []*StubServer
}

// NewStubLauncher creates a launcher scripted by the scenario.
func NewStubLauncher(scenario *Scenario) *StubLauncher {
	return &StubLauncher{scenario: scenario}
}

// Launch implements supervisor.Launcher.
func (l *StubLauncher) Launch(ctx context.Context, inv lsp.Invocation, root string) (supervisor.Server, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var rule LaunchRule
	if l.attempts < len(l.scenario.Launches) {
		rule = l.scenario.Launches[l.attempts]
	}
	l.attempts++

	if rule.NotFound {
		return nil, fmt.Errorf("launch %s: %w", inv.Executable, exec.ErrNotFound)
	}
	if rule.Fail != "" {
		return nil, errors.New(rule.Fail)
	}

	pid := rule.PID
	if pid == 0 {
		pid = 40000 + l.attempts
	}
	srv := newStubServer(pid, inv, l.scenario)
	l.servers = append(l.servers, srv)
	return srv, nil
}

// Attempts returns how many launches were requested.
func (l *StubLauncher) Attempts() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.attempts
}

// Server returns the i-th launched stub server.
func (l *StubLauncher) Server(i int) *StubServer {
	l.mu.Lock()
	defer l.mu.Unlock()
	if i < 0 || i >= len(l.servers) {
		return nil
	}
	return l.servers[i]
}

// LastServer returns the most recently launched stub server.
func (l *StubLauncher) LastServer() *StubServer {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.servers) == 0 {
		return nil
	}
	return l.servers[len(l.servers)-1]
}

// StubServer stands in for a running language server. It answers
// feature requests from the scenario and can be crashed on demand.
type StubServer struct {
	pid      int
	inv      lsp.Invocation
	scenario *Scenario

	done chan struct{}
	once sync.Once

	mu      sync.Mutex
	exitErr error
}

func newStubServer(pid int, inv lsp.Invocation, scenario *Scenario) *StubServer {
	return &StubServer{pid: pid, inv: inv, scenario: scenario, done: make(chan struct{})}
}

func (s *StubServer) PID() int                   { return s.pid }
func (s *StubServer) Invocation() lsp.Invocation { return s.inv }
func (s *StubServer) Done() <-chan struct{}      { return s.done }

func (s *StubServer) ExitError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exitErr
}

func (s *StubServer) Shutdown(ctx context.Context) error {
	s.Exit(nil)
	return nil
}

func (s *StubServer) Kill() {
	s.Exit(errors.New("killed"))
}

// Exit simulates the server process ending. A non-nil err looks like a
// crash to the supervisor's watch goroutine.
func (s *StubServer) Exit(err error) {
	s.once.Do(func() {
		s.mu.Lock()
		s.exitErr = err
		s.mu.Unlock()
		close(s.done)
	})
}

// Formatting returns a whole-document edit when the scenario has
// formatted output for the file, nothing otherwise.
func (s *StubServer) Formatting(ctx context.Context, path string) ([]lsp.TextEdit, error) {
	for rel, formatted := range s.scenario.Format {
		if strings.HasSuffix(path, rel) {
			return []lsp.TextEdit{{
				Range: lsp.Range{
					Start: lsp.Position{Line: 0, Character: 0},
					End:   lsp.Position{Line: 1 << 30, Character: 0},
				},
				NewText: formatted,
			}}, nil
		}
	}
	return nil, nil
}

// Visualize returns the scenario's canned syntax tree.
func (s *StubServer) Visualize(ctx context.Context, path string) (string, error) {
	return s.scenario.Tree, nil
}

// StubInstaller records install requests.
type StubInstaller struct {
	mu    sync.Mutex
	calls int
	err   error
}

// Install implements supervisor.Installer.
func (s *StubInstaller) Install(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.err
}

// Calls returns how many installs were requested.
func (s *StubInstaller) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// FailWith makes subsequent installs return err.
func (s *StubInstaller) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}
