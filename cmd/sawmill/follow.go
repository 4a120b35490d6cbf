package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var followCmd = &cobra.Command{
	Use:   "follow [flags] <file>",
	Short: "Extract fields from a log file as it grows",
	Long: `Watch a log file like 'tail -f', extracting fields from new lines as they
are appended. Lines are batched until the batch fills or the flush interval
passes. Truncation and rotation are followed.

Examples:
  sawmill follow /var/log/app.log
  sawmill follow --flush 500ms --output webhook --webhook-url http://collector/ingest app.log`,
	Args: cobra.ExactArgs(1),
	RunE: runFollow,
}

func init() {
	addInputFlags(followCmd.Flags())
	followCmd.Flags().Duration("flush", 2*time.Second, "maximum wait before a partial batch is processed")
	rootCmd.AddCommand(followCmd)
}

func runFollow(cmd *cobra.Command, args []string) error {
	path := args[0]
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("file does not exist: %s", path)
	}

	overrides := map[string]any{"input.follow": true, "input.path": path}
	if f := cmd.Flags().Lookup("flush"); f != nil && f.Changed {
		d, _ := cmd.Flags().GetDuration("flush")
		overrides["input.flush_interval"] = d
	}
	cfg, err := loadConfig(cmd.Flags(), overrides)
	if err != nil {
		return err
	}
	return run(cmd.Context(), cfg)
}
