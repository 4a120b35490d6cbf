package main

import (
	"github.com/spf13/cobra"
)

var parseCmd = &cobra.Command{
	Use:   "parse [flags] [file]",
	Short: "Extract fields from every line of a file or stdin",
	Long: `Read log lines from a file (or stdin when no file or "-" is given),
extract fields in batches, and write one record per line.

Examples:
  sawmill parse /var/log/syslog
  sawmill parse --format jsonl --column msg events.jsonl
  journalctl -o cat | sawmill parse --verbosity full`,
	Args: cobra.MaximumNArgs(1),
	RunE: runParse,
}

func init() {
	addInputFlags(parseCmd.Flags())
	parseCmd.Flags().Int("input-batch", 256, "documents per engine batch")
	rootCmd.AddCommand(parseCmd)
}

func runParse(cmd *cobra.Command, args []string) error {
	overrides := map[string]any{"input.follow": false}
	if len(args) == 1 {
		overrides["input.path"] = args[0]
	}
	if f := cmd.Flags().Lookup("input-batch"); f != nil && f.Changed {
		n, _ := cmd.Flags().GetInt("input-batch")
		overrides["input.batch_size"] = n
	}
	cfg, err := loadConfig(cmd.Flags(), overrides)
	if err != nil {
		return err
	}
	return run(cmd.Context(), cfg)
}
