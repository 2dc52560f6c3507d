package commands

import (
	"context"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/streekit/streekeeper/internal/config"
	"github.com/streekit/streekeeper/internal/event"
	"github.com/streekit/streekeeper/internal/installer"
	"github.com/streekit/streekeeper/internal/logging"
	"github.com/streekit/streekeeper/internal/prompt"
	"github.com/streekit/streekeeper/internal/server"
	"github.com/streekit/streekeeper/internal/supervisor"
	"github.com/streekit/streekeeper/pkg/types"
)

var (
	serveDir         string
	serveNoAutostart bool
	serveInteractive bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the streekeeper daemon",
	Long: `Start the daemon that supervises the stree language server for this
workspace and exposes the local control API.

Unless autostart is disabled (settings or --no-autostart), the language
server is launched right after the daemon comes up. Configuration files
are watched and the server restarts on changes.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveDir, "workspace", "", "Workspace directory (default: current directory)")
	serveCmd.Flags().BoolVar(&serveNoAutostart, "no-autostart", false, "Do not start the language server on boot")
	serveCmd.Flags().BoolVar(&serveInteractive, "interactive-prompts", false, "Answer recovery prompts on the terminal instead of the API")
}

func runServe(cmd *cobra.Command, args []string) error {
	// Determine workspace directory
	workDir, err := GetWorkDir(serveDir)
	if err != nil {
		return err
	}

	// Initialize paths
	paths := config.GetPaths()
	if err := paths.EnsurePaths(); err != nil {
		return err
	}

	// The daemon logs to a file plus the diagnostics ring; stderr only
	// with --print-logs.
	console := io.Writer(os.Stderr)
	if !printLogs {
		console = io.Discard
	}
	logging.Init(logging.Config{
		Level:     logging.ParseLevel(logLevel),
		Output:    console,
		Pretty:    true,
		LogToFile: true,
		LogDir:    paths.LogDir(),
	})
	defer logging.Close()

	logging.Info().
		Str("version", Version).
		Str("workspace", workDir).
		Msg("starting streekeeper daemon")

	// Recovery prompts go to the terminal in interactive mode, to the
	// API queue otherwise.
	var prompter prompt.Prompter
	var queue *prompt.Queue
	if serveInteractive {
		prompter = prompt.NewTerminal()
	} else {
		queue = prompt.NewQueue()
		prompter = queue
	}

	inst := installer.New(workDir, func() string {
		settings, err := config.Load(workDir)
		if err != nil {
			return ""
		}
		return settings.Advanced.InstallCommand
	})

	sup := supervisor.New(supervisor.Config{
		Workspace: workDir,
		Prompter:  prompter,
		Installer: inst,
	})

	// Restart on configuration changes so the server picks up new
	// plugin and print width settings.
	watcher, err := config.NewWatcher(workDir)
	if err != nil {
		logging.Warn().Err(err).Msg("config watcher unavailable")
	} else {
		watcher.Start()
		defer watcher.Stop()
	}
	unsubscribe := event.Subscribe(event.ConfigReloaded, func(event.Event) {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := sup.Restart(ctx); err != nil {
			logging.Warn().Err(err).Msg("restart after config change failed")
		}
	})
	defer unsubscribe()

	// Configure control API server
	serverConfig := server.DefaultConfig()
	if apiAddr != "" {
		serverConfig.Addr = apiAddr
	}
	srv := server.New(serverConfig, sup, queue)

	// Start server in goroutine
	errCh := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", srv.Addr()).Msg("control API listening")
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Launch the language server unless autostart is off.
	settings, err := config.Load(workDir)
	if err != nil {
		logging.Warn().Err(err).Msg("failed to load settings")
		settings = &types.Settings{}
	}
	if settings.AutostartEnabled() && !serveNoAutostart {
		startCtx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		if err := sup.Start(startCtx); err != nil {
			logging.Warn().Err(err).Msg("autostart failed")
		}
		cancel()
	}

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		logging.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-errCh:
		logging.Error().Err(err).Msg("control API failed")
		return err
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := sup.Teardown(shutdownCtx); err != nil {
		logging.Warn().Err(err).Msg("language server teardown error")
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Warn().Err(err).Msg("control API shutdown error")
	}

	logging.Info().Msg("daemon stopped")
	return nil
}
