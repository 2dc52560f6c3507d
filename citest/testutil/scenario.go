package testutil

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/streekit/streekeeper/pkg/types"
)

// Scenario defines the YAML schema describing a test daemon's world:
// the settings it loads, how launch attempts behave, and the workspace
// documents plus the language server's canned answers for them.
type Scenario struct {
	Settings  ScenarioSettings  `yaml:"settings"`
	Launches  []LaunchRule      `yaml:"launches"`
	Documents []DocumentFixture `yaml:"documents"`
	Tree      string            `yaml:"tree"`
	Format    map[string]string `yaml:"format"`
}

// ScenarioSettings populates the settings snapshot handed to the
// supervisor on each start attempt.
type ScenarioSettings struct {
	SingleQuotes      bool     `yaml:"single_quotes"`
	TrailingComma     bool     `yaml:"trailing_comma"`
	AdditionalPlugins []string `yaml:"additional_plugins"`
	PrintWidth        int      `yaml:"print_width"`
	Autostart         *bool    `yaml:"autostart"`
	CommandPath       string   `yaml:"command_path"`
	InstallCommand    string   `yaml:"install_command"`
	DocumentSelector  []string `yaml:"document_selector"`
}

// LaunchRule scripts one launch attempt. Attempts beyond the list
// succeed; an empty list means every attempt succeeds.
type LaunchRule struct {
	Name string `yaml:"name"` // Optional rule name for debugging

	// NotFound fails the launch like a missing executable
	NotFound bool `yaml:"not_found"`
	// Fail fails the launch with this message
	Fail string `yaml:"fail"`
	// PID reported by a successful launch (auto-assigned if zero)
	PID int `yaml:"pid"`
}

// DocumentFixture is a workspace file written before the daemon starts.
type DocumentFixture struct {
	Path    string `yaml:"path"`
	Content string `yaml:"content"`
}

// DefaultScenario returns a scenario with a healthy launcher and one
// Ruby document the stub server can visualize and format.
func DefaultScenario() *Scenario {
	return &Scenario{
		Settings: ScenarioSettings{
			SingleQuotes: true,
		},
		Documents: []DocumentFixture{
			{Path: "app.rb", Content: "puts \"hello\"\n"},
		},
		Tree: "(program (statements ((command (ident \"puts\") (args)))))\n",
		Format: map[string]string{
			"app.rb": "puts 'hello'\n",
		},
	}
}

// BuildSettings converts the scenario settings into a fresh snapshot.
func (s *Scenario) BuildSettings() *types.Settings {
	settings := &types.Settings{
		SingleQuotes:      s.Settings.SingleQuotes,
		TrailingComma:     s.Settings.TrailingComma,
		AdditionalPlugins: append([]string(nil), s.Settings.AdditionalPlugins...),
		PrintWidth:        s.Settings.PrintWidth,
		Advanced: types.AdvancedSettings{
			CommandPath:      s.Settings.CommandPath,
			InstallCommand:   s.Settings.InstallCommand,
			DocumentSelector: append([]string(nil), s.Settings.DocumentSelector...),
		},
	}
	if s.Settings.Autostart != nil {
		v := *s.Settings.Autostart
		settings.Autostart = &v
	}
	return settings
}

// LoadScenario loads a scenario from a YAML file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var scenario Scenario
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return nil, err
	}
	return &scenario, nil
}

// LoadScenarioFromDir looks for scenario.yaml in the given directory.
func LoadScenarioFromDir(dir string) (*Scenario, error) {
	path := filepath.Join(dir, "scenario.yaml")
	if _, err := os.Stat(path); os.IsNotExist(err) {
		path = filepath.Join(dir, "scenario.yml")
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return nil, err
		}
	}
	return LoadScenario(path)
}

// SaveScenario saves a scenario to a YAML file.
func SaveScenario(scenario *Scenario, path string) error {
	data, err := yaml.Marshal(scenario)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
