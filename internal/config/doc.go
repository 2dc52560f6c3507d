// Package config provides configuration loading, merging, and path
// management for streekeeper.
//
// # Configuration Loading
//
// Load searches for and merges settings from multiple sources in priority
// order, later sources winning:
//
//  1. Built-in defaults
//  2. Global config (~/.streekeeper/config.json[c])
//  3. Global config (~/.config/streekeeper/config.json[c] - XDG compatible)
//  4. Project config (.streekeeper.json[c] in the workspace root)
//  5. STREEKEEPER_CONFIG file
//  6. STREEKEEPER_CONFIG_CONTENT inline JSON
//  7. STREEKEEPER_* environment variables
//
// Scalar keys are replaced by later tiers, including explicit false/zero
// (files are decoded into pointer fields so "set to false" and "not set"
// are distinguishable). additionalPlugins accumulate across tiers as a
// union with first appearance winning; documentSelector is replaced
// wholesale by the last tier that sets it.
//
// # Supported Formats
//
// Both JSON and JSONC (JSON with Comments) are accepted; comments are
// stripped with tidwall/jsonc before decoding.
//
// # Variable Interpolation
//
// Config files support two placeholder forms:
//   - {env:VAR_NAME} - expands to the environment variable's value
//   - {file:path} - expands to the file's contents, JSON-escaped; paths
//     may be absolute, relative to the config file, or ~/-prefixed
//
// # Environment Variable Overrides
//
//   - STREEKEEPER_SINGLE_QUOTES, STREEKEEPER_TRAILING_COMMA,
//     STREEKEEPER_AUTOSTART - booleans (strconv.ParseBool syntax)
//   - STREEKEEPER_ADDITIONAL_PLUGINS - comma-separated list
//   - STREEKEEPER_PRINT_WIDTH - integer
//   - STREEKEEPER_COMMAND_PATH, STREEKEEPER_INSTALL_COMMAND - strings
//   - STREEKEEPER_CONFIG - path to an extra config file
//   - STREEKEEPER_CONFIG_CONTENT - inline JSON settings
//   - STREEKEEPER_CONFIG_DIR - overrides the config directory location
//
// # Watching
//
// Watcher monitors the directories of every file Load consults and
// publishes one config.reloaded event per change burst, debounced so an
// editor's save storm (truncate + write + rename) triggers a single
// reload. The daemon responds to that event with a server restart.
//
// # Path Management
//
// Paths follows the XDG Base Directory Specification:
//   - Data: ~/.local/share/streekeeper (XDG_DATA_HOME)
//   - Config: ~/.config/streekeeper (XDG_CONFIG_HOME)
//   - Cache: ~/.cache/streekeeper (XDG_CACHE_HOME)
//   - State: ~/.local/state/streekeeper (XDG_STATE_HOME)
//
// On Windows these fall back to APPDATA.
package config
