package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/crimson-sun/sawmill/internal/config"
	"github.com/crimson-sun/sawmill/internal/engine"
	"github.com/crimson-sun/sawmill/internal/engine/labels"
)

var fieldsCmd = &cobra.Command{
	Use:   "fields",
	Short: "List the fields the model can extract",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		v := config.New(cfgFile)
		if err := bindFlags(v, cmd.Flags()); err != nil {
			return err
		}
		cfg, err := config.Load(v)
		if err != nil {
			return err
		}
		path := cfg.Engine.LabelsPath
		if path == "" {
			path = filepath.Join(cfg.Engine.ModelDir, engine.LabelsFile)
		}
		lm, err := labels.LoadMap(path)
		if err != nil {
			return err
		}
		for _, f := range lm.Fields() {
			fmt.Fprintln(cmd.OutOrStdout(), f)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(fieldsCmd)
}
