package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultPort is the canonical viewer port. The Python side (ocp_vscode's
// show/set_port) assumes this unless reconfigured, so binding anywhere else
// triggers a user-facing warning during negotiation.
const DefaultPort = 3939

// DefaultWatchCommand is evaluated inside the paused frame on every debugger
// stop while watch mode is on.
const DefaultWatchCommand = "__import__('ocp_vscode').show_all()"

type Config struct {
	Server ServerConfig `yaml:"server"`
	Python PythonConfig `yaml:"python"`
	Watch  WatchConfig  `yaml:"watch"`
	Script ScriptConfig `yaml:"script"`
}

type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

type PythonConfig struct {
	// Interpreter is the path to the Python executable driving the CAD
	// session. Empty means "discover" (VIRTUAL_ENV, then PATH).
	Interpreter string `yaml:"interpreter"`
}

type WatchConfig struct {
	// OnLaunch sets the initial watch-mode state.
	OnLaunch bool `yaml:"on_launch"`
	// Command is the Python expression injected on every debugger pause.
	Command string `yaml:"command"`
}

type ScriptConfig struct {
	// Path is the CAD script the session renders. Starting the viewer
	// requires it to exist.
	Path string `yaml:"path"`
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port: DefaultPort,
			Host: "127.0.0.1",
		},
		Watch: WatchConfig{
			Command: DefaultWatchCommand,
		},
	}
}

// Load reads the YAML config at path, applying defaults for absent fields.
// A missing file is not an error: defaults are returned as-is.
func Load(path string) (*Config, error) {
	cfg := defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	if cfg.Watch.Command == "" {
		cfg.Watch.Command = DefaultWatchCommand
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultPort
	}

	return cfg, nil
}
