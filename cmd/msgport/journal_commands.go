package main

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"msgport/internal/control"
)

func newJournalCommand(ctx *commandContext) *cobra.Command {
	journalCmd := &cobra.Command{
		Use:   "journal",
		Short: "Inspect the delivery journal",
	}

	journalCmd.AddCommand(newJournalTailCommand(ctx))
	journalCmd.AddCommand(newJournalStatsCommand(ctx))
	journalCmd.AddCommand(newJournalPurgeCommand(ctx))

	return journalCmd
}

func newJournalTailCommand(ctx *commandContext) *cobra.Command {
	var service string
	var limit int

	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Show recent deliveries, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *control.Client) error {
				resp, err := client.JournalTail(service, limit)
				if err != nil {
					return err
				}
				stdout := cmd.OutOrStdout()
				if !resp.Enabled {
					fmt.Fprintln(stdout, "Journaling is disabled")
					return nil
				}
				if len(resp.Entries) == 0 {
					fmt.Fprintln(stdout, "Journal is empty")
					return nil
				}
				rows := make([][]string, 0, len(resp.Entries))
				for _, e := range resp.Entries {
					rows = append(rows, []string{
						e.At,
						e.Service,
						e.Direction,
						e.Kind,
						e.ObjectType,
						strconv.FormatInt(e.Bytes, 10),
						e.Peer,
					})
				}
				fmt.Fprintln(stdout, renderTable(
					[]string{"Time", "Service", "Direction", "Kind", "Object", "Bytes", "Peer"},
					rows,
					5,
				))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&service, "service", "s", "", "Filter by service name")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of entries")
	return cmd
}

func newJournalStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show per-service delivery totals",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *control.Client) error {
				resp, err := client.JournalStats()
				if err != nil {
					return err
				}
				stdout := cmd.OutOrStdout()
				if !resp.Enabled {
					fmt.Fprintln(stdout, "Journaling is disabled")
					return nil
				}
				if len(resp.Stats) == 0 {
					fmt.Fprintln(stdout, "Journal is empty")
					return nil
				}
				names := make([]string, 0, len(resp.Stats))
				for name := range resp.Stats {
					names = append(names, name)
				}
				sort.Strings(names)
				rows := make([][]string, 0, len(names))
				for _, name := range names {
					st := resp.Stats[name]
					rows = append(rows, []string{
						name,
						strconv.FormatInt(st.Total, 10),
						strconv.FormatInt(st.Inbound, 10),
						strconv.FormatInt(st.Outbound, 10),
						strconv.FormatInt(st.Bytes, 10),
					})
				}
				fmt.Fprintln(stdout, renderTable(
					[]string{"Service", "Total", "Inbound", "Outbound", "Bytes"},
					rows,
					1, 2, 3, 4,
				))
				return nil
			})
		},
	}
}

func newJournalPurgeCommand(ctx *commandContext) *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Remove journal entries older than the given age",
		RunE: func(cmd *cobra.Command, args []string) error {
			if days <= 0 {
				return fmt.Errorf("--days must be positive, got %d", days)
			}
			return ctx.withClient(func(client *control.Client) error {
				resp, err := client.JournalPurge(days)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d entries older than %d days\n", resp.Removed, days)
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&days, "days", "d", 0, "Age threshold in days")
	_ = cmd.MarkFlagRequired("days")
	return cmd
}
