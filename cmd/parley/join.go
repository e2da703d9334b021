package main

import (
	"github.com/spf13/cobra"

	"github.com/parleychat/parley/pkg/client"
	"github.com/parleychat/parley/ui"
)

func newJoinCmd() *cobra.Command {
	var (
		addr string
		name string
	)

	cmd := &cobra.Command{
		Use:   "join",
		Short: "Join a hosted session",
		RunE: func(cmd *cobra.Command, args []string) error {
			engine := client.NewEngine()
			if err := engine.Connect(addr, name); err != nil {
				return err
			}
			defer engine.Close()

			return ui.Run(engine)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "session address, e.g. 192.168.1.10:9000")
	cmd.Flags().StringVar(&name, "name", "", "username to join as")
	_ = cmd.MarkFlagRequired("addr")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}
