// Package testutil provides the harness the control API suite runs
// against: a real daemon (supervisor plus HTTP server) whose language
// server launches are scripted by YAML scenarios.
package testutil

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"

	"github.com/streekit/streekeeper/internal/control"
	"github.com/streekit/streekeeper/internal/event"
	"github.com/streekit/streekeeper/internal/logging"
	"github.com/streekit/streekeeper/internal/lsp"
	"github.com/streekit/streekeeper/internal/prompt"
	"github.com/streekit/streekeeper/internal/server"
	"github.com/streekit/streekeeper/internal/supervisor"
	"github.com/streekit/streekeeper/pkg/types"
)

// TestDaemon wraps a daemon instance for testing.
type TestDaemon struct {
	Server    *server.Server
	Sup       *supervisor.Supervisor
	Launcher  *StubLauncher
	Installer *StubInstaller
	Prompts   *prompt.Queue
	Scenario  *Scenario
	BaseURL   string
	WorkDir   string
	TempDir   string
}

// TestDaemonOption configures TestDaemon
type TestDaemonOption func(*testDaemonConfig)

type testDaemonConfig struct {
	workDir  string
	scenario *Scenario
	envFile  string
}

// WithWorkDir sets the workspace directory
func WithWorkDir(dir string) TestDaemonOption {
	return func(c *testDaemonConfig) {
		c.workDir = dir
	}
}

// WithScenario sets the scenario driving the stub language server
func WithScenario(s *Scenario) TestDaemonOption {
	return func(c *testDaemonConfig) {
		c.scenario = s
	}
}

// WithEnvFile sets the .env file to load
func WithEnvFile(path string) TestDaemonOption {
	return func(c *testDaemonConfig) {
		c.envFile = path
	}
}

// StartTestDaemon creates and starts a test daemon. The language server
// is not started; specs drive it through the control API.
func StartTestDaemon(opts ...TestDaemonOption) (*TestDaemon, error) {
	cfg := &testDaemonConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	// Load environment variables
	if cfg.envFile != "" {
		_ = godotenv.Load(cfg.envFile)
	} else {
		_ = godotenv.Load("../../.env")
		_ = godotenv.Load("../.env")
		_ = godotenv.Load(".env")
	}

	scenario := cfg.scenario
	if scenario == nil {
		scenario = DefaultScenario()
	}

	// Create temp directory for the workspace
	tempDir, err := os.MkdirTemp("", "streekeeper-test-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}

	workDir := cfg.workDir
	if workDir == "" {
		workDir = tempDir
	}

	// Write the scenario's workspace documents
	for _, doc := range scenario.Documents {
		path := filepath.Join(workDir, doc.Path)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			os.RemoveAll(tempDir)
			return nil, fmt.Errorf("failed to create document dir: %w", err)
		}
		if err := os.WriteFile(path, []byte(doc.Content), 0644); err != nil {
			os.RemoveAll(tempDir)
			return nil, fmt.Errorf("failed to write document: %w", err)
		}
	}

	// Keep logs off the test output; the ring still feeds GET /logs.
	logging.Init(logging.Config{
		Level:  logging.DebugLevel,
		Output: io.Discard,
	})

	// Isolate the event bus between daemons
	event.Reset()

	launcher := NewStubLauncher(scenario)
	installer := &StubInstaller{}
	prompts := prompt.NewQueue()

	// A bundle probe pointed at a nonexistent binary keeps resolution
	// deterministic: override when configured, global otherwise.
	resolver := &lsp.Resolver{
		BundleExecutable: filepath.Join(tempDir, "bundle-not-installed"),
	}

	sup := supervisor.New(supervisor.Config{
		Workspace: workDir,
		Settings: func(string) (*types.Settings, error) {
			return scenario.BuildSettings(), nil
		},
		Resolver:  resolver,
		Launcher:  launcher.Launch,
		Prompter:  prompts,
		Installer: installer,
	})

	// Find available port
	port, err := findAvailablePort()
	if err != nil {
		os.RemoveAll(tempDir)
		return nil, fmt.Errorf("failed to find available port: %w", err)
	}

	// Configure server
	serverConfig := server.DefaultConfig()
	serverConfig.Addr = fmt.Sprintf("127.0.0.1:%d", port)

	srv := server.New(serverConfig, sup, prompts)

	// Start server in background
	go func() {
		_ = srv.Start()
	}()

	// Wait for the daemon to answer health checks
	baseURL := fmt.Sprintf("http://127.0.0.1:%d", port)
	if err := waitForDaemon(baseURL, 10*time.Second); err != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
		os.RemoveAll(tempDir)
		return nil, fmt.Errorf("daemon failed to start: %w", err)
	}

	return &TestDaemon{
		Server:    srv,
		Sup:       sup,
		Launcher:  launcher,
		Installer: installer,
		Prompts:   prompts,
		Scenario:  scenario,
		BaseURL:   baseURL,
		WorkDir:   workDir,
		TempDir:   tempDir,
	}, nil
}

// Stop shuts down the test daemon and cleans up
func (td *TestDaemon) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if td.Sup != nil {
		_ = td.Sup.Teardown(ctx)
	}
	if td.Server != nil {
		if err := td.Server.Shutdown(ctx); err != nil {
			return err
		}
	}

	event.Reset()

	if td.TempDir != "" {
		os.RemoveAll(td.TempDir)
	}
	return nil
}

// Client returns a control client for this daemon
func (td *TestDaemon) Client() *control.Client {
	return control.New(td.BaseURL)
}

// DocumentPath returns the absolute path of a scenario document.
func (td *TestDaemon) DocumentPath(rel string) string {
	return filepath.Join(td.WorkDir, rel)
}

// WriteDocument writes an extra file into the workspace.
func (td *TestDaemon) WriteDocument(rel, content string) (string, error) {
	path := filepath.Join(td.WorkDir, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return "", err
	}
	return path, nil
}

// findAvailablePort finds an available TCP port
func findAvailablePort() (int, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer listener.Close()
	return listener.Addr().(*net.TCPAddr).Port, nil
}

// waitForDaemon waits for the daemon to be ready
func waitForDaemon(baseURL string, timeout time.Duration) error {
	client := control.New(baseURL)
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return client.WaitReady(ctx)
}
