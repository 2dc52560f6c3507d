package types

// Status describes the supervisor as reported by GET /status.
type Status struct {
	// State is one of "idle", "starting", "running", "stopping".
	State string `json:"state"`

	// Launch attempt identity; empty while idle
	LaunchID string `json:"launchId,omitempty"`
	PID      int    `json:"pid,omitempty"`

	// Resolved command line of the live instance
	Command []string `json:"command,omitempty"`
	// Resolver tier that produced it: "override", "bundle" or "global"
	Source string `json:"source,omitempty"`

	// Unix ms of the successful handshake; 0 while not running
	StartedAt int64 `json:"startedAt,omitempty"`

	// Settings the live instance was launched with
	Settings *Settings `json:"settings,omitempty"`
}

// PromptInfo is a pending recovery prompt awaiting an operator choice.
type PromptInfo struct {
	ID        string   `json:"id"`
	LaunchID  string   `json:"launchId,omitempty"`
	Message   string   `json:"message"`
	Actions   []string `json:"actions"`
	CreatedAt int64    `json:"createdAt"`
}

// VisualizeResult carries the server's syntax tree rendering for one file.
type VisualizeResult struct {
	Path string `json:"path"`
	Tree string `json:"tree"`
}

// FormatResult is a formatting preview. The file on disk is not modified.
type FormatResult struct {
	Path    string `json:"path"`
	Changed bool   `json:"changed"`
	Diff    string `json:"diff,omitempty"`
}

// LogsResult is a slice of recent diagnostics log lines, oldest first.
type LogsResult struct {
	Lines []string `json:"lines"`
}

// CheckResult is one doctor finding.
type CheckResult struct {
	Name    string `json:"name"`
	Status  string `json:"status"` // "ok"|"warn"|"fail"
	Detail  string `json:"detail,omitempty"`
	Hint    string `json:"hint,omitempty"`
	Elapsed int64  `json:"elapsedMs,omitempty"`
}
