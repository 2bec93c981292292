package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ocp-viewer/bridge/internal/config"
	"github.com/ocp-viewer/bridge/internal/pyenv"
	"github.com/ocp-viewer/bridge/internal/registry"
)

var (
	checkConfig   string
	installConfig string
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check the installed ocp_vscode version against this bridge",
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := registryFor(checkConfig)
		if err != nil {
			return err
		}

		outcome, installed, err := reg.Verify(cmd.Context())
		if err != nil {
			return err
		}

		switch outcome {
		case registry.Match:
			cmd.Printf("%s %s matches the bridge\n", registry.Package, installed)
		case registry.Older:
			cmd.Printf("%s %s is older than expected %s; run 'bridge install'\n",
				registry.Package, installed, registry.ExpectedVersion)
		case registry.Missing:
			cmd.Printf("%s is not installed; run 'bridge install'\n", registry.Package)
		case registry.Newer:
			return fmt.Errorf("%s %s is newer than this bridge supports (%s); upgrade the bridge",
				registry.Package, installed, registry.ExpectedVersion)
		}
		return nil
	},
}

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Install the expected ocp_vscode version into the interpreter",
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := registryFor(installConfig)
		if err != nil {
			return err
		}
		if err := reg.Install(cmd.Context()); err != nil {
			return err
		}
		cmd.Printf("installed %s %s\n", registry.Package, registry.ExpectedVersion)
		return nil
	},
}

func init() {
	checkCmd.Flags().StringVar(&checkConfig, "config", "bridge.yaml", "Path to config file")
	installCmd.Flags().StringVar(&installConfig, "config", "bridge.yaml", "Path to config file")
}

func registryFor(configPath string) (*registry.PipRegistry, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	return registry.NewPipRegistry(pyenv.Resolve(cfg.Python.Interpreter)), nil
}
