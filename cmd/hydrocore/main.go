// Hydroponics Core - multi-tenant hydroponic systems and measurements API
//
// This is the main entry point for the hydrocore binary. It serves the
// HTTP API, optionally ingests sensor readings over MQTT and mirrors them
// into InfluxDB, and carries the operator commands for migrations and
// account creation.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	_ "github.com/nerrad567/hydroponics-core/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// configEnvVar names the environment variable that overrides the default
// config path when --config is not given.
const configEnvVar = "HYDRO_CONFIG"

func main() {
	// Cancels on Ctrl+C and SIGTERM so every subcommand shuts down cleanly.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd(os.Stdin, os.Stdout).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// cliOptions carries the persistent flags shared by all subcommands.
type cliOptions struct {
	configPath string
}

// resolveConfigPath picks the config file: flag, then HYDRO_CONFIG, then
// the default location.
func (o *cliOptions) resolveConfigPath() string {
	if o.configPath != "" {
		return o.configPath
	}
	if path := os.Getenv(configEnvVar); path != "" {
		return path
	}
	return defaultConfigPath
}

func newRootCmd(in io.Reader, out io.Writer) *cobra.Command {
	opts := &cliOptions{}

	root := &cobra.Command{
		Use:     "hydrocore",
		Short:   "Hydroponic systems and measurements API",
		Version: fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		// Errors are printed once by main.
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.SetIn(in)
	root.SetOut(out)
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "",
		"path to config file (default $"+configEnvVar+" or "+defaultConfigPath+")")

	root.AddCommand(
		newServeCmd(opts),
		newMigrateCmd(opts),
		newUserCmd(opts),
	)
	return root
}
