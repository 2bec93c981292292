package main

import (
	"log"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "bridge",
	Short: "Live bridge between a Python CAD session and the OCP viewer",
	Long: `bridge receives model-render payloads from a Python CAD-modeling
session (ocp_vscode / build123d) and forwards them to browser viewer
panels. With watch mode on, every debugger pause re-triggers a render by
evaluating the configured watch command inside the paused frame.`,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the bridge version",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("bridge %s\n", version)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(installCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lmsgprefix)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
