package main

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon and project status",
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := ctx.client().Status(cmd.Context())
			if err != nil {
				return fmt.Errorf("daemon unreachable at %s: %w", ctx.serverAddress(), err)
			}
			if asJSON {
				return writeJSON(cmd, status)
			}

			rows := [][]string{
				{"Running", yesNo(status.Running)},
				{"PID", strconv.Itoa(status.PID)},
				{"Database", status.DatabasePath},
				{"Lock file", status.LockFilePath},
				{"Auth", yesNo(status.AuthEnabled)},
				{"Projects", strconv.Itoa(status.Summary.Projects)},
				{"Completed", strconv.Itoa(status.Summary.Completed)},
				{"Failed", strconv.Itoa(status.Summary.Failed)},
				{"Licenses", strconv.Itoa(status.Summary.Licenses)},
			}
			table := renderTable([]string{"Field", "Value"}, rows, []columnAlignment{alignLeft, alignLeft})
			fmt.Fprintln(cmd.OutOrStdout(), table)

			if len(status.Summary.ByStatus) > 0 {
				statusRows := make([][]string, 0, len(status.Summary.ByStatus))
				for name, count := range status.Summary.ByStatus {
					statusRows = append(statusRows, []string{name, strconv.Itoa(count)})
				}
				sort.Slice(statusRows, func(i, j int) bool { return statusRows[i][0] < statusRows[j][0] })
				table := renderTable([]string{"Status", "Count"}, statusRows, []columnAlignment{alignLeft, alignRight})
				fmt.Fprintln(cmd.OutOrStdout(), table)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit status as JSON")
	return cmd
}

func newHealthCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check model backend reachability",
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := ctx.client().Health(cmd.Context())
			if err != nil {
				return fmt.Errorf("daemon unreachable at %s: %w", ctx.serverAddress(), err)
			}
			names := make([]string, 0, len(report.Services))
			for name := range report.Services {
				names = append(names, name)
			}
			sort.Strings(names)
			rows := make([][]string, 0, len(names))
			for _, name := range names {
				rows = append(rows, []string{name, report.Services[name]})
			}
			out := cmd.OutOrStdout()
			if len(rows) > 0 {
				table := renderTable([]string{"Service", "State"}, rows, []columnAlignment{alignLeft, alignLeft})
				fmt.Fprintln(out, table)
			}
			if !report.Healthy {
				return fmt.Errorf("one or more services are unhealthy")
			}
			fmt.Fprintln(out, "All services healthy")
			return nil
		},
	}
}
