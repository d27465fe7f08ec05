package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"msgport/internal/control"
)

func newPingCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check daemon liveness",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *control.Client) error {
				resp, err := client.Ping()
				if err != nil {
					return err
				}
				if !resp.Pong {
					return fmt.Errorf("daemon did not answer the ping")
				}
				fmt.Fprintf(cmd.OutOrStdout(), "pong (pid %d)\n", resp.PID)
				return nil
			})
		},
	}
}
