package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/harun/mindvault/internal/config"
	"github.com/spf13/cobra"
)

const version = "0.1.0"

var (
	cfgFile     string
	logLevel    string
	storagePath string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "mindvault",
	Short: "mindvault - hybrid memory store for agents",
	Long: `mindvault stores short text memories and retrieves the most relevant ones
for a query by combining keyword search with vector similarity.
It serves the memory tools to agents over MCP and can be used directly from the shell.`,
	Version:      version,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "mindvault version %s\n", color.CyanString("%s", version))
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.mindvault/config.json)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&storagePath, "storage-path", "", "memory storage directory (default is $HOME/.mindvault/storage)")

	// Version template
	rootCmd.SetVersionTemplate(`{{with .Name}}{{printf "%s " .}}{{end}}{{printf "version %s" .Version}}
`)

	rootCmd.AddCommand(versionCmd)
}

// newLoader returns a config loader honouring the global flags
func newLoader() *config.Loader {
	loader := config.NewLoader(cfgFile)
	loader.BindFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
	loader.BindFlag("storage_path", rootCmd.PersistentFlags().Lookup("storage-path"))
	return loader
}

// GetRootCmd returns the root command for testing
func GetRootCmd() *cobra.Command {
	return rootCmd
}

// GetVersion returns the current version
func GetVersion() string {
	return version
}
