package lsp

import (
	"fmt"
	"strings"

	"github.com/streekit/streekeeper/pkg/types"
)

// BuildArgs translates a settings snapshot into the argument list for the
// syntax_tree language server. The subcommand token "lsp" always comes
// first, followed by a single --plugins flag when any plugin is enabled
// and --print-width when a width is set. Plugin names and the width are
// passed through untouched; the server decides what it accepts.
func BuildArgs(s types.Settings) []string {
	args := []string{"lsp"}

	var plugins []string
	seen := make(map[string]bool)
	add := func(name string) {
		if seen[name] {
			return
		}
		seen[name] = true
		plugins = append(plugins, name)
	}

	if s.SingleQuotes {
		add("single_quotes")
	}
	if s.TrailingComma {
		add("trailing_comma")
	}
	for _, p := range s.AdditionalPlugins {
		add(p)
	}

	if len(plugins) > 0 {
		args = append(args, "--plugins="+strings.Join(plugins, ","))
	}
	if s.PrintWidth > 0 {
		args = append(args, fmt.Sprintf("--print-width=%d", s.PrintWidth))
	}
	return args
}
