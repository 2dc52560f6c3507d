package types

// Settings is the configuration snapshot taken at each server start.
// It is built fresh per start attempt and never mutated afterwards, so a
// running server always reflects exactly the settings it was launched with.
type Settings struct {
	// Formatter toggles, each mapping to a Syntax Tree plugin
	SingleQuotes  bool `json:"singleQuotes,omitempty"`
	TrailingComma bool `json:"trailingComma,omitempty"`

	// Extra plugin names passed through verbatim (deduplicated, first
	// appearance wins)
	AdditionalPlugins []string `json:"additionalPlugins,omitempty"`

	// Maximum line width; 0 means unset
	PrintWidth int `json:"printWidth,omitempty"`

	// Start the server when the daemon comes up (default true)
	Autostart *bool `json:"autostart,omitempty"`

	Advanced AdvancedSettings `json:"advanced,omitempty"`
}

// AdvancedSettings is the "advanced" tier of the settings namespace.
type AdvancedSettings struct {
	// Explicit server executable path. Supports ${userHome},
	// ${pathSeparator} and ${cwd} substitution. Wins over bundle and
	// global resolution when it points at an existing regular file.
	CommandPath string `json:"commandPath,omitempty"`

	// Remediation command run on "Install Gem"; empty means
	// "gem install syntax_tree". Parsed with shell word rules, executed
	// directly (no shell).
	InstallCommand string `json:"installCommand,omitempty"`

	// Glob patterns for documents the visualizer accepts
	DocumentSelector []string `json:"documentSelector,omitempty"`

	// Timeouts in milliseconds; 0 means default (15000 / 5000)
	HandshakeTimeout int `json:"handshakeTimeout,omitempty"`
	ShutdownTimeout  int `json:"shutdownTimeout,omitempty"`
}

// AutostartEnabled reports whether the daemon should start the server on
// boot. Unset defaults to true.
func (s Settings) AutostartEnabled() bool {
	return s.Autostart == nil || *s.Autostart
}
