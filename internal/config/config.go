package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/streekit/streekeeper/pkg/types"
	"github.com/tidwall/jsonc"
)

// Built-in defaults applied before any file or environment source.
const (
	DefaultHandshakeTimeout = 15000 // ms
	DefaultShutdownTimeout  = 5000  // ms
)

// DefaultDocumentSelector matches the Ruby sources the server understands.
var DefaultDocumentSelector = []string{"**/*.rb", "**/*.rake", "**/Rakefile", "**/Gemfile"}

// fileSettings mirrors types.Settings with pointer fields so merging can
// tell "false"/"0" apart from "not set in this file".
type fileSettings struct {
	SingleQuotes      *bool         `json:"singleQuotes"`
	TrailingComma     *bool         `json:"trailingComma"`
	AdditionalPlugins []string      `json:"additionalPlugins"`
	PrintWidth        *int          `json:"printWidth"`
	Autostart         *bool         `json:"autostart"`
	Advanced          *fileAdvanced `json:"advanced"`
}

type fileAdvanced struct {
	CommandPath      *string  `json:"commandPath"`
	InstallCommand   *string  `json:"installCommand"`
	DocumentSelector []string `json:"documentSelector"`
	HandshakeTimeout *int     `json:"handshakeTimeout"`
	ShutdownTimeout  *int     `json:"shutdownTimeout"`
}

// Load loads settings from multiple sources (priority order, later wins):
//  1. Built-in defaults
//  2. Global config (~/.streekeeper/)
//  3. Global config (~/.config/streekeeper/ - XDG compatible)
//  4. Project config (.streekeeper.json[c] in the workspace)
//  5. STREEKEEPER_CONFIG file
//  6. STREEKEEPER_CONFIG_CONTENT inline JSON
//  7. Environment variables
//
// additionalPlugins accumulate across tiers (union, first appearance
// wins); documentSelector is replaced by the last tier that sets it.
// Missing files are skipped; a file that exists but cannot be parsed is
// an error.
func Load(directory string) (*types.Settings, error) {
	settings := defaults()

	// Track loaded files to avoid duplicates
	loaded := make(map[string]bool)

	var loadErr error
	loadOnce := func(path string) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return
		}
		if loaded[absPath] {
			return
		}
		switch err := loadSettingsFile(path, settings); {
		case err == nil:
			loaded[absPath] = true
		case !errors.Is(err, os.ErrNotExist):
			if loadErr == nil {
				loadErr = fmt.Errorf("%s: %w", path, err)
			}
		}
	}

	// 2. Dotfile-style global config (~/.streekeeper/)
	home := os.Getenv("HOME")
	if home != "" {
		dotDir := filepath.Join(home, ".streekeeper")
		loadOnce(filepath.Join(dotDir, "config.json"))
		loadOnce(filepath.Join(dotDir, "config.jsonc"))
	}

	// 3. XDG-compatible global config (~/.config/streekeeper/)
	globalPath := GetPaths().Config
	loadOnce(filepath.Join(globalPath, "config.json"))
	loadOnce(filepath.Join(globalPath, "config.jsonc"))

	// 4. Project config
	if directory != "" {
		loadOnce(filepath.Join(directory, ".streekeeper.json"))
		loadOnce(filepath.Join(directory, ".streekeeper.jsonc"))
	}

	// 5. STREEKEEPER_CONFIG file override
	if configPath := os.Getenv("STREEKEEPER_CONFIG"); configPath != "" {
		loadOnce(configPath)
	}

	// 6. STREEKEEPER_CONFIG_CONTENT inline JSON
	if content := os.Getenv("STREEKEEPER_CONFIG_CONTENT"); content != "" {
		var fs fileSettings
		if err := json.Unmarshal([]byte(content), &fs); err != nil {
			if loadErr == nil {
				loadErr = fmt.Errorf("STREEKEEPER_CONFIG_CONTENT: %w", err)
			}
		} else {
			apply(settings, &fs)
		}
	}

	if loadErr != nil {
		return nil, loadErr
	}

	// 7. Environment variables (highest priority)
	applyEnvOverrides(settings)

	normalize(settings)
	return settings, nil
}

func defaults() *types.Settings {
	return &types.Settings{
		Advanced: types.AdvancedSettings{
			DocumentSelector: append([]string(nil), DefaultDocumentSelector...),
			HandshakeTimeout: DefaultHandshakeTimeout,
			ShutdownTimeout:  DefaultShutdownTimeout,
		},
	}
}

// loadSettingsFile loads a single config file with interpolation support.
func loadSettingsFile(path string, settings *types.Settings) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	// Strip JSONC comments using tidwall/jsonc
	data = jsonc.ToJSON(data)

	// Apply interpolation
	data = interpolate(data, filepath.Dir(path))

	var fs fileSettings
	if err := json.Unmarshal(data, &fs); err != nil {
		return err
	}

	apply(settings, &fs)
	return nil
}

// interpolate processes {env:VAR} and {file:path} placeholders.
func interpolate(data []byte, baseDir string) []byte {
	str := string(data)

	envPattern := regexp.MustCompile(`\{env:([^}]+)\}`)
	str = envPattern.ReplaceAllStringFunc(str, func(match string) string {
		varName := envPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})

	filePattern := regexp.MustCompile(`\{file:([^}]+)\}`)
	str = filePattern.ReplaceAllStringFunc(str, func(match string) string {
		filePath := filePattern.FindStringSubmatch(match)[1]

		if strings.HasPrefix(filePath, "~/") {
			home := os.Getenv("HOME")
			filePath = filepath.Join(home, filePath[2:])
		} else if !filepath.IsAbs(filePath) {
			filePath = filepath.Join(baseDir, filePath)
		}

		content, err := os.ReadFile(filePath)
		if err != nil {
			return match // Keep original if file not found
		}

		// Escape for JSON string
		escaped := strings.ReplaceAll(string(content), "\\", "\\\\")
		escaped = strings.ReplaceAll(escaped, "\"", "\\\"")
		escaped = strings.ReplaceAll(escaped, "\n", "\\n")
		escaped = strings.ReplaceAll(escaped, "\r", "\\r")
		escaped = strings.ReplaceAll(escaped, "\t", "\\t")

		return escaped
	})

	return []byte(str)
}

// apply merges one file layer into the accumulated settings.
func apply(target *types.Settings, src *fileSettings) {
	if src.SingleQuotes != nil {
		target.SingleQuotes = *src.SingleQuotes
	}
	if src.TrailingComma != nil {
		target.TrailingComma = *src.TrailingComma
	}
	if len(src.AdditionalPlugins) > 0 {
		target.AdditionalPlugins = append(target.AdditionalPlugins, src.AdditionalPlugins...)
	}
	if src.PrintWidth != nil {
		target.PrintWidth = *src.PrintWidth
	}
	if src.Autostart != nil {
		v := *src.Autostart
		target.Autostart = &v
	}
	if src.Advanced == nil {
		return
	}
	if src.Advanced.CommandPath != nil {
		target.Advanced.CommandPath = *src.Advanced.CommandPath
	}
	if src.Advanced.InstallCommand != nil {
		target.Advanced.InstallCommand = *src.Advanced.InstallCommand
	}
	if len(src.Advanced.DocumentSelector) > 0 {
		target.Advanced.DocumentSelector = append([]string(nil), src.Advanced.DocumentSelector...)
	}
	if src.Advanced.HandshakeTimeout != nil {
		target.Advanced.HandshakeTimeout = *src.Advanced.HandshakeTimeout
	}
	if src.Advanced.ShutdownTimeout != nil {
		target.Advanced.ShutdownTimeout = *src.Advanced.ShutdownTimeout
	}
}

// applyEnvOverrides applies environment variable overrides.
func applyEnvOverrides(settings *types.Settings) {
	if v, ok := envBool("STREEKEEPER_SINGLE_QUOTES"); ok {
		settings.SingleQuotes = v
	}
	if v, ok := envBool("STREEKEEPER_TRAILING_COMMA"); ok {
		settings.TrailingComma = v
	}
	if plugins := os.Getenv("STREEKEEPER_ADDITIONAL_PLUGINS"); plugins != "" {
		for _, p := range strings.Split(plugins, ",") {
			if p = strings.TrimSpace(p); p != "" {
				settings.AdditionalPlugins = append(settings.AdditionalPlugins, p)
			}
		}
	}
	if width := os.Getenv("STREEKEEPER_PRINT_WIDTH"); width != "" {
		if n, err := strconv.Atoi(width); err == nil {
			settings.PrintWidth = n
		}
	}
	if v, ok := envBool("STREEKEEPER_AUTOSTART"); ok {
		settings.Autostart = &v
	}
	if path := os.Getenv("STREEKEEPER_COMMAND_PATH"); path != "" {
		settings.Advanced.CommandPath = path
	}
	if cmd := os.Getenv("STREEKEEPER_INSTALL_COMMAND"); cmd != "" {
		settings.Advanced.InstallCommand = cmd
	}
}

func envBool(key string) (bool, bool) {
	v := os.Getenv(key)
	if v == "" {
		return false, false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, false
	}
	return b, true
}

// normalize deduplicates the plugin list (first appearance wins) and
// restores defaults for fields that ended up empty or nonsensical.
func normalize(settings *types.Settings) {
	if len(settings.AdditionalPlugins) > 1 {
		seen := make(map[string]bool, len(settings.AdditionalPlugins))
		deduped := settings.AdditionalPlugins[:0]
		for _, p := range settings.AdditionalPlugins {
			if p == "" || seen[p] {
				continue
			}
			seen[p] = true
			deduped = append(deduped, p)
		}
		settings.AdditionalPlugins = deduped
	}
	if len(settings.Advanced.DocumentSelector) == 0 {
		settings.Advanced.DocumentSelector = append([]string(nil), DefaultDocumentSelector...)
	}
	if settings.Advanced.HandshakeTimeout <= 0 {
		settings.Advanced.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if settings.Advanced.ShutdownTimeout <= 0 {
		settings.Advanced.ShutdownTimeout = DefaultShutdownTimeout
	}
}

// Save writes settings to a file as indented JSON.
func Save(settings *types.Settings, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// GetConfigDir returns the config directory to use.
// Prefers STREEKEEPER_CONFIG_DIR, then ~/.streekeeper, then
// ~/.config/streekeeper.
func GetConfigDir() string {
	if dir := os.Getenv("STREEKEEPER_CONFIG_DIR"); dir != "" {
		return dir
	}

	home := os.Getenv("HOME")
	if home != "" {
		dotDir := filepath.Join(home, ".streekeeper")
		if _, err := os.Stat(dotDir); err == nil {
			return dotDir
		}
	}

	return GetPaths().Config
}

// WatchTargets returns the config files Load consults for the given
// workspace, existing or not. The watcher monitors their directories.
func WatchTargets(directory string) []string {
	var targets []string
	if home := os.Getenv("HOME"); home != "" {
		targets = append(targets,
			filepath.Join(home, ".streekeeper", "config.json"),
			filepath.Join(home, ".streekeeper", "config.jsonc"),
		)
	}
	globalPath := GetPaths().Config
	targets = append(targets,
		filepath.Join(globalPath, "config.json"),
		filepath.Join(globalPath, "config.jsonc"),
	)
	if directory != "" {
		targets = append(targets,
			filepath.Join(directory, ".streekeeper.json"),
			filepath.Join(directory, ".streekeeper.jsonc"),
		)
	}
	if configPath := os.Getenv("STREEKEEPER_CONFIG"); configPath != "" {
		targets = append(targets, configPath)
	}
	return targets
}
