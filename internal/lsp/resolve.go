package lsp

import (
	"context"
	"os"
	"os/exec"
	"strings"

	"github.com/streekit/streekeeper/internal/logging"
	"github.com/streekit/streekeeper/pkg/types"
)

// Source identifies the resolution tier that produced an Invocation.
type Source string

const (
	// SourceOverride is the user-configured command path.
	SourceOverride Source = "override"
	// SourceBundle is a project-local bundler installation.
	SourceBundle Source = "bundle"
	// SourceGlobal is the stree executable on PATH.
	SourceGlobal Source = "global"
)

// Invocation describes how to launch the language server.
type Invocation struct {
	Executable       string   `json:"executable"`
	Args             []string `json:"args"`
	WorkingDirectory string   `json:"workingDirectory,omitempty"`
	Source           Source   `json:"source"`
}

// CommandLine returns the full argv, executable first.
func (inv Invocation) CommandLine() []string {
	return append([]string{inv.Executable}, inv.Args...)
}

// Resolver chooses the executable for a start attempt. Tiers, in order:
// the configured command path, a project-local bundle, the global stree
// on PATH. Resolution never fails; a tier that cannot deliver falls
// through to the next one.
type Resolver struct {
	// BundleExecutable is the command probed for the project-local tier.
	// Empty means "bundle"; tests point it at a stub.
	BundleExecutable string

	// HomeDir substitutes ${userHome} in the command path override.
	// Empty means the current user's home directory.
	HomeDir string
}

// NewResolver returns a Resolver with default probe settings.
func NewResolver() *Resolver {
	return &Resolver{}
}

// Resolve picks the Invocation for the given settings, working directory,
// and server arguments.
func (r *Resolver) Resolve(ctx context.Context, s types.Settings, cwd string, args []string) Invocation {
	if inv, ok := r.resolveOverride(s.Advanced.CommandPath, cwd, args); ok {
		return inv
	}
	if inv, ok := r.resolveBundle(ctx, cwd, args); ok {
		return inv
	}
	return Invocation{Executable: "stree", Args: args, Source: SourceGlobal}
}

// resolveOverride checks the configured command path. A path that is set
// but unusable logs a warning and falls through; it never aborts the
// start.
func (r *Resolver) resolveOverride(path, cwd string, args []string) (Invocation, bool) {
	if path == "" {
		return Invocation{}, false
	}

	expanded := r.expand(path, cwd)
	info, err := os.Stat(expanded)
	if err != nil {
		logging.Warn().Str("path", expanded).Err(err).Msg("configured command path not found, falling back")
		return Invocation{}, false
	}
	if !info.Mode().IsRegular() {
		logging.Warn().Str("path", expanded).Msg("configured command path is not a regular file, falling back")
		return Invocation{}, false
	}

	return Invocation{Executable: expanded, Args: args, Source: SourceOverride}, true
}

// resolveBundle probes for a Gemfile-managed syntax_tree via
// `bundle show`. Any probe failure is swallowed and resolution moves on.
func (r *Resolver) resolveBundle(ctx context.Context, cwd string, args []string) (Invocation, bool) {
	bundle := r.BundleExecutable
	if bundle == "" {
		bundle = "bundle"
	}

	cmd := exec.CommandContext(ctx, bundle, "show", "syntax_tree")
	cmd.Dir = cwd
	if err := cmd.Run(); err != nil {
		return Invocation{}, false
	}

	return Invocation{
		Executable:       bundle,
		Args:             append([]string{"exec", "stree"}, args...),
		WorkingDirectory: cwd,
		Source:           SourceBundle,
	}, true
}

// expand substitutes the ${userHome}, ${pathSeparator} and ${cwd} tokens
// supported in the command path override.
func (r *Resolver) expand(path, cwd string) string {
	home := r.HomeDir
	if home == "" {
		home, _ = os.UserHomeDir()
	}
	return strings.NewReplacer(
		"${userHome}", home,
		"${pathSeparator}", string(os.PathSeparator),
		"${cwd}", cwd,
	).Replace(path)
}
