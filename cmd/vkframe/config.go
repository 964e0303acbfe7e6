package main

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/andewx/vkframe/config"
)

func newConfigCmd(root *rootOptions) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, root)
			if err != nil {
				return err
			}
			return writeConfig(cmd.OutOrStdout(), cfg, config.Format(format))
		},
	}
	cmd.Flags().StringVar(&format, "format", string(config.YAML), "output format (yaml or toml)")
	return cmd
}

func writeConfig(w io.Writer, cfg *config.Config, format config.Format) error {
	b, err := cfg.Encode(format)
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}
