package cmd

import (
	"fmt"
	"io"

	"cosmossdk.io/log"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

const (
	flagConfig    = "config"
	flagLogLevel  = "log-level"
	flagLogFormat = "log-format"
)

// Version is set at build time
var Version = "v0.1.0"

// NewRootCmd creates a new root command for fracshared
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "fracshared",
		Short: "fracshare - fractional ownership settlement node",
		Long: `fracshared runs the fractional-ownership ledger: dividend pools,
signed share orders settled atomically, an advisory order book with a
matcher, and the HTTP and websocket API in front of them.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cmd.SetOut(cmd.OutOrStdout())
			cmd.SetErr(cmd.ErrOrStderr())
			return nil
		},
	}

	rootCmd.PersistentFlags().String(flagConfig, "", "Path to a JSON config file")
	rootCmd.PersistentFlags().String(flagLogLevel, "", "Log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().String(flagLogFormat, "", "Log format (json or plain)")

	rootCmd.AddCommand(
		ServeCmd(),
		KeygenCmd(),
		SignOrderCmd(),
		VersionCmd(),
	)
	return rootCmd
}

// loadConfig reads the config file and applies the persistent flags
func loadConfig(cmd *cobra.Command) (*Config, error) {
	path, _ := cmd.Flags().GetString(flagConfig)
	config, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	if level, _ := cmd.Flags().GetString(flagLogLevel); level != "" {
		config.LogLevel = level
	}
	if format, _ := cmd.Flags().GetString(flagLogFormat); format != "" {
		config.LogFormat = format
	}
	return config, nil
}

// newLogger builds the node logger from the configured level and format
func newLogger(out io.Writer, config *Config) (log.Logger, error) {
	level, err := zerolog.ParseLevel(config.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	opts := []log.Option{log.LevelOption(level)}
	if config.LogFormat == "json" {
		opts = append(opts, log.OutputJSONOption())
	}
	return log.NewLogger(out, opts...), nil
}

// VersionCmd returns a command to print the version
func VersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the application version",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Println("fracshare " + Version)
		},
	}
}
