package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"msgport/internal/daemonctl"
)

func newDaemonCommands(ctx *commandContext) []*cobra.Command {
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the msgport daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			exe, err := daemonExecutable()
			if err != nil {
				return err
			}

			result, err := daemonctl.EnsureStarted(
				ctx.controlSocketPath(),
				exe,
				daemonLaunchOptions(ctx),
				10*time.Second,
			)
			if err != nil {
				return err
			}

			if result.Launched {
				fmt.Fprintln(stdout, "Daemon not running, launching...")
			}
			switch result.State {
			case daemonctl.StartStateStarted:
				fmt.Fprintln(stdout, "Daemon started")
			case daemonctl.StartStateAlreadyRunning:
				fmt.Fprintln(stdout, "Daemon already running")
			}
			return nil
		},
	}

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the msgport daemon (completely terminates the process)",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			result, err := daemonctl.StopAndTerminate(ctx.configValue(), 5*time.Second)
			if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
				fmt.Fprintln(stdout, "Daemon is not running")
				return nil
			}
			if err != nil {
				return err
			}
			if !result.StopAcknowledged {
				fmt.Fprintln(stdout, "Stop request sent")
			}
			if result.ForcedKill && result.PID > 0 {
				fmt.Fprintf(stdout, "Stopping daemon process (pid %d)...\n", result.PID)
			}
			fmt.Fprintln(stdout, "Daemon stopped")
			return nil
		},
	}

	restartCmd := &cobra.Command{
		Use:   "restart",
		Short: "Restart the msgport daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			exe, err := daemonExecutable()
			if err != nil {
				return err
			}

			result, err := daemonctl.Restart(
				ctx.configValue(),
				exe,
				daemonLaunchOptions(ctx),
				5*time.Second,
				10*time.Second,
			)
			if err != nil {
				return err
			}

			if result.WasRunning {
				if result.Stop.ForcedKill && result.Stop.PID > 0 {
					fmt.Fprintf(stdout, "Stopping daemon process (pid %d)...\n", result.Stop.PID)
				}
				fmt.Fprintln(stdout, "Daemon stopped")
			}
			fmt.Fprintln(stdout, "Daemon restarted")
			return nil
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon and service status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(ctx, cmd)
		},
	}

	return []*cobra.Command{startCmd, stopCmd, restartCmd, statusCmd}
}

func runStatus(ctx *commandContext, cmd *cobra.Command) error {
	stdout := cmd.OutOrStdout()
	colorize := shouldColorize(stdout)

	for _, line := range renderSectionHeader("Daemon", colorize) {
		fmt.Fprintln(stdout, line)
	}

	client, err := ctx.dialClient()
	if err != nil {
		fmt.Fprintln(stdout, renderStatusLine("Msgport", statusWarn, "Not running (run `msgport start`)", colorize))
		cfg := ctx.configValue()
		if cfg != nil {
			fmt.Fprintln(stdout, renderStatusLine("Socket", statusInfo, cfg.SocketPath(), colorize))
			fmt.Fprintln(stdout, renderStatusLine("Journal", statusInfo, journalDetail(cfg.Journal.Enabled, cfg.JournalPath()), colorize))
		}
		return nil
	}
	defer client.Close()

	status, err := client.Status()
	if err != nil {
		return err
	}

	fmt.Fprintln(stdout, renderStatusLine("Msgport", statusOK, fmt.Sprintf("Running (pid %d, up %s)", status.PID, status.Uptime), colorize))
	fmt.Fprintln(stdout, renderStatusLine("Socket", statusOK, status.SocketPath, colorize))
	fmt.Fprintln(stdout, renderStatusLine("Control", statusOK, status.ControlPath, colorize))
	fmt.Fprintln(stdout, renderStatusLine("Sessions", statusInfo, strconv.Itoa(status.Sessions), colorize))
	fmt.Fprintln(stdout, renderStatusLine("Journal", statusInfo, journalDetail(status.JournalPath != "", status.JournalPath), colorize))
	fmt.Fprintln(stdout)

	for _, line := range renderSectionHeader("Services", colorize) {
		fmt.Fprintln(stdout, line)
	}
	if len(status.Services) == 0 {
		fmt.Fprintln(stdout, "No services registered")
		return nil
	}
	rows := make([][]string, 0, len(status.Services))
	for _, name := range status.Services {
		rows = append(rows, []string{name, serviceLabel(name)})
	}
	fmt.Fprintln(stdout, renderTable([]string{"Service", "Label"}, rows))
	return nil
}

func journalDetail(enabled bool, path string) string {
	if !enabled {
		return "Disabled"
	}
	if strings.TrimSpace(path) == "" {
		return "Enabled"
	}
	return path
}

func daemonExecutable() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("resolve executable: %w", err)
	}
	return exe, nil
}

func daemonLaunchOptions(ctx *commandContext) daemonctl.LaunchOptions {
	opts := daemonctl.LaunchOptions{}
	if ctx.configFlag != nil {
		if cfgPath := strings.TrimSpace(*ctx.configFlag); cfgPath != "" {
			opts.ConfigPath = cfgPath
		}
	}
	return opts
}
