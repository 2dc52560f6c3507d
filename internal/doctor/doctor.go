// Package doctor runs the environment and configuration checks behind
// the `doctor` command.
package doctor

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/agnivade/levenshtein"

	"github.com/streekit/streekeeper/internal/config"
	"github.com/streekit/streekeeper/internal/lsp"
	"github.com/streekit/streekeeper/pkg/types"
)

// Plugin names covered by dedicated settings; additional plugins close
// to these are probably typos.
var builtinPlugins = []string{"single_quotes", "trailing_comma"}

// typoDistance is the maximum edit distance treated as "close".
const typoDistance = 2

// Doctor inspects the environment the supervisor will run in.
type Doctor struct {
	workspace string
	resolver  *lsp.Resolver
	settings  func(workspace string) (*types.Settings, error)
}

// New returns a doctor for the workspace.
func New(workspace string) *Doctor {
	return &Doctor{
		workspace: workspace,
		resolver:  lsp.NewResolver(),
		settings:  config.Load,
	}
}

// Run executes every check and returns the findings in a fixed order.
func (d *Doctor) Run(ctx context.Context) []types.CheckResult {
	checks := []func(context.Context) types.CheckResult{
		d.checkRuby,
		d.checkGem,
		d.checkBundler,
		d.checkConfig,
		d.checkStree,
		d.checkPlugins,
	}

	results := make([]types.CheckResult, 0, len(checks))
	for _, check := range checks {
		start := time.Now()
		res := check(ctx)
		res.Elapsed = time.Since(start).Milliseconds()
		results = append(results, res)
	}
	return results
}

func (d *Doctor) checkRuby(ctx context.Context) types.CheckResult {
	return checkOnPath("ruby", "fail", "install Ruby; the syntax_tree gem needs a Ruby runtime")
}

func (d *Doctor) checkGem(ctx context.Context) types.CheckResult {
	return checkOnPath("gem", "fail", "gem ships with Ruby; check the Ruby installation")
}

func (d *Doctor) checkBundler(ctx context.Context) types.CheckResult {
	return checkOnPath("bundle", "warn", "without bundler, Gemfile projects fall back to the global stree")
}

func checkOnPath(name, missingStatus, hint string) types.CheckResult {
	res := types.CheckResult{Name: name}
	path, err := exec.LookPath(name)
	if err != nil {
		res.Status = missingStatus
		res.Detail = fmt.Sprintf("%s not found on PATH", name)
		res.Hint = hint
		return res
	}
	res.Status = "ok"
	res.Detail = path
	return res
}

func (d *Doctor) checkConfig(ctx context.Context) types.CheckResult {
	res := types.CheckResult{Name: "config"}
	if _, err := d.settings(d.workspace); err != nil {
		res.Status = "fail"
		res.Detail = err.Error()
		res.Hint = "fix the configuration file and re-run"
		return res
	}
	res.Status = "ok"
	res.Detail = "configuration parses"
	return res
}

func (d *Doctor) checkStree(ctx context.Context) types.CheckResult {
	res := types.CheckResult{Name: "stree"}

	settings, err := d.settings(d.workspace)
	if err != nil {
		settings = &types.Settings{}
	}

	inv := d.resolver.Resolve(ctx, *settings, d.workspace, lsp.BuildArgs(*settings))
	res.Detail = fmt.Sprintf("%s via %s", strings.Join(inv.CommandLine(), " "), inv.Source)

	// Override and bundle invocations were already probed during
	// resolution; the global fallback still needs a PATH lookup.
	if inv.Source == lsp.SourceGlobal {
		if _, err := exec.LookPath(inv.Executable); err != nil {
			res.Status = "fail"
			res.Detail = fmt.Sprintf("%s not found on PATH", inv.Executable)
			res.Hint = "run `gem install syntax_tree` or set advanced.commandPath"
			return res
		}
	}
	res.Status = "ok"
	return res
}

func (d *Doctor) checkPlugins(ctx context.Context) types.CheckResult {
	res := types.CheckResult{Name: "plugins"}

	settings, err := d.settings(d.workspace)
	if err != nil {
		res.Status = "warn"
		res.Detail = "configuration did not load; plugin names not checked"
		return res
	}

	var findings []string
	for _, plugin := range settings.AdditionalPlugins {
		if suggestion, ok := suggestPlugin(plugin); ok {
			findings = append(findings, fmt.Sprintf("%q looks like a typo of %q", plugin, suggestion))
		}
	}

	if len(findings) > 0 {
		res.Status = "warn"
		res.Detail = strings.Join(findings, "; ")
		res.Hint = "the built-in plugins are enabled through singleQuotes and trailingComma"
		return res
	}
	res.Status = "ok"
	res.Detail = fmt.Sprintf("%d additional plugin(s)", len(settings.AdditionalPlugins))
	return res
}

// suggestPlugin reports the built-in plugin the name is suspiciously
// close to. Exact matches are not typos; they are merely redundant.
func suggestPlugin(name string) (string, bool) {
	for _, builtin := range builtinPlugins {
		if name == builtin {
			continue
		}
		if levenshtein.ComputeDistance(name, builtin) <= typoDistance {
			return builtin, true
		}
	}
	return "", false
}
