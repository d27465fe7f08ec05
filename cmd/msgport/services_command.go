package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"msgport/internal/control"
)

func newServicesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "services",
		Short: "List services registered with the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *control.Client) error {
				resp, err := client.Services()
				if err != nil {
					return err
				}
				stdout := cmd.OutOrStdout()
				if len(resp.Names) == 0 {
					fmt.Fprintln(stdout, "No services registered")
					return nil
				}
				rows := make([][]string, 0, len(resp.Names))
				for _, name := range resp.Names {
					rows = append(rows, []string{name, serviceLabel(name)})
				}
				fmt.Fprintln(stdout, renderTable([]string{"Service", "Label"}, rows))
				return nil
			})
		},
	}
}
