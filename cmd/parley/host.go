package main

import (
	"net"

	"github.com/spf13/cobra"

	"github.com/parleychat/parley/pkg/client"
	"github.com/parleychat/parley/pkg/server"
	"github.com/parleychat/parley/ui"
)

func newHostCmd() *cobra.Command {
	var (
		bind    string
		name    string
		cfgPath string
	)

	cmd := &cobra.Command{
		Use:   "host",
		Short: "Host a session and join it from this terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := server.LoadConfig(cfgPath)
			if err != nil {
				return err
			}
			if bind != "" {
				cfg.Bind = bind
			}
			// The TUI owns the terminal; keep periodic metrics dumps out
			// of it.
			cfg.MetricsInterval = 0
			if err := cfg.Validate(); err != nil {
				return err
			}

			srv := server.New(cfg)
			if err := srv.Start(); err != nil {
				return err
			}
			defer srv.Shutdown()

			engine := client.NewEngine()
			if err := engine.Connect(loopbackAddr(srv.Addr()), name); err != nil {
				return err
			}
			defer engine.Close()

			return ui.Run(engine)
		},
	}

	cmd.Flags().StringVar(&bind, "bind", "", "listen address, e.g. :9000 (required unless set in config)")
	cmd.Flags().StringVar(&name, "name", "", "username to join as")
	cmd.Flags().StringVar(&cfgPath, "config", "", "path to YAML config file")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

// loopbackAddr turns a listen address like ":9000" or "[::]:9000" into
// one the host's own client can dial.
func loopbackAddr(addr net.Addr) string {
	host, port, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	switch host {
	case "", "::", "0.0.0.0":
		host = "127.0.0.1"
	}
	return net.JoinHostPort(host, port)
}
