package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/slonegd/otdissect/c1222"
	"github.com/slonegd/otdissect/internal/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Validate a configuration file without reading any capture.

The key table named by c1222.key_file is loaded as well.

Examples:
  otdissect validate -f otdissect.yml`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := runValidate(validateConfigFile, cmd.OutOrStdout()); err != nil {
			fmt.Fprintf(os.Stderr, "INVALID: %v\n", err)
			os.Exit(1)
		}
	},
}

var validateConfigFile string

func init() {
	validateCmd.Flags().StringVarP(&validateConfigFile, "file", "f", "",
		"configuration file to validate (required)")
	validateCmd.MarkFlagRequired("file")
}

func runValidate(path string, out io.Writer) error {
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	keys, err := loadKeys(cfg.C1222)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "VALID: mms ports %v, c1222 ports %v, %d key(s), max depth %d\n",
		cfg.MMS.Ports, cfg.C1222.Ports, len(keys), cfg.Decoder.MaxDepth)
	return nil
}

// loadKeys reads the C12.22 key table. No key file means no keys.
func loadKeys(cfg config.C1222Config) (c1222.StaticKeyTable, error) {
	if cfg.KeyFile == "" {
		return nil, nil
	}
	f, err := os.Open(cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open key file: %w", err)
	}
	defer f.Close()

	keys, err := c1222.LoadKeyTable(f)
	if err != nil {
		return nil, fmt.Errorf("failed to load key file %s: %w", cfg.KeyFile, err)
	}
	return keys, nil
}
