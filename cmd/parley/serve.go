package main

import (
	"github.com/spf13/cobra"

	"github.com/parleychat/parley/pkg/server"
)

func newServeCmd() *cobra.Command {
	var (
		bind    string
		cfgPath string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a headless session server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := server.LoadConfig(cfgPath)
			if err != nil {
				return err
			}
			if bind != "" {
				cfg.Bind = bind
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return server.New(cfg).Run()
		},
	}

	cmd.Flags().StringVar(&bind, "bind", "", "listen address, e.g. :9000 (required unless set in config)")
	cmd.Flags().StringVar(&cfgPath, "config", "", "path to YAML config file")
	return cmd
}
