package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ironwatch/site/internal/config"
)

// Version and BuildDate can be set at build time via ldflags.
var (
	Version   = "0.0.1"
	BuildDate = "unknown"
)

const serviceName = "site_server"

var configDir string

var rootCmd = &cobra.Command{
	Use:   serviceName,
	Short: "Ironwatch site server",
	Long: `Serves the Ironwatch site: CMS backed pages, the security request
form and the interactive town experience.

Running without a subcommand is the same as "serve".`,
	Version:       Version + " (" + BuildDate + ")",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return config.Load(configDir)
	},
	RunE: runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configDir, "config", "c", ".", "Directory containing "+config.FileName)

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(preloadCmd)
	rootCmd.AddCommand(scenesCmd)
	rootCmd.AddCommand(requestsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
