package event

import "github.com/streekit/streekeeper/pkg/types"

// ServerStartingData is the data for server.starting events.
type ServerStartingData struct {
	LaunchID string   `json:"launchId"`
	Command  []string `json:"command"`
	Source   string   `json:"source"` // resolver tier: "override"|"bundle"|"global"
}

// ServerRunningData is the data for server.running events.
type ServerRunningData struct {
	LaunchID  string `json:"launchId"`
	PID       int    `json:"pid"`
	StartedAt int64  `json:"startedAt"`
}

// ServerStoppedData is the data for server.stopped events.
type ServerStoppedData struct {
	LaunchID string `json:"launchId,omitempty"`
	Reason   string `json:"reason"` // "stop"|"restart"|"teardown"|"exit"
}

// ServerFailedData is the data for server.failed events.
type ServerFailedData struct {
	LaunchID string `json:"launchId"`
	Error    string `json:"error"`
	Kind     string `json:"kind"` // "not-found"|"other"
}

// PromptPendingData is the data for prompt.pending events.
type PromptPendingData struct {
	Prompt types.PromptInfo `json:"prompt"`
}

// PromptResolvedData is the data for prompt.resolved events.
type PromptResolvedData struct {
	ID     string `json:"id"`
	Action string `json:"action,omitempty"` // empty = dismissed
}

// ConfigReloadedData is the data for config.reloaded events.
type ConfigReloadedData struct {
	Path string `json:"path,omitempty"`
}

// InstallStartedData is the data for install.started events.
type InstallStartedData struct {
	Command []string `json:"command"`
}

// InstallFinishedData is the data for install.finished events.
type InstallFinishedData struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}
