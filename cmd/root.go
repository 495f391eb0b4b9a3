// Package cmd implements the otdissect command line.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/slonegd/otdissect/internal/config"
	"github.com/slonegd/otdissect/logger"
)

// Version is the release of the binary.
var Version = "0.1.0"

// configFile is the global --config flag. Empty means built-in defaults.
var configFile string

var rootCmd = &cobra.Command{
	Use:   "otdissect",
	Short: "Offline dissector for IEC 61850 MMS and ANSI C12.22 captures",
	Long: `otdissect reads pcap and pcapng captures and decodes the industrial protocols
they carry:

  - IEC 61850 MMS over TPKT/COTP/session/presentation/ACSE (TCP 102),
    with request/response correlation by invoke ID
  - ANSI C12.22 messages (TCP/UDP 1153), with the EPSEM security envelope
    and the C12.19 table commands

Settings come from the config file and OTDISSECT_* environment variables.`,
	Version:      Version,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "",
		"config file path (defaults and environment when empty)")

	rootCmd.AddCommand(dissectCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig reads the configuration and sets up logging.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := logger.Init(cfg.Log); err != nil {
		return nil, fmt.Errorf("failed to init logger: %w", err)
	}
	return cfg, nil
}

// exitWithError prints error message and exits with code 1
func exitWithError(msg string, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s: %v\n", msg, err)
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s\n", msg)
	}
	os.Exit(1)
}
