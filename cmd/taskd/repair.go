package main

import (
	"fmt"
	"log/slog"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func repairCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "repair",
		Short: "Restore missing task-tag associations from each task's tag list",
		RunE: func(cmd *cobra.Command, _ []string) error {
			taskID, _ := cmd.Flags().GetString("task")
			return withApp(cmd, func(a *app) error {
				added, err := a.svc.RepairAssociations(cmd.Context(), taskID)
				if err != nil {
					return err
				}
				a.logger.Info("repair finished", slog.String("task_id", taskID), slog.Int("added", added))
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "added %d association(s)\n", added)
				return err
			})
		},
	}
	cmd.Flags().StringP("task", "t", "", "repair a single task (default: all tasks)")
	cmd.Flags().String("db", "", "SQLite database path (overrides storage.path)")
	return cmd
}

func tagsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tags",
		Short: "List stored tags",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(a *app) error {
				tags, err := a.svc.Tags(cmd.Context())
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tNAME\tCREATED") //nolint:errcheck
				for _, t := range tags {
					fmt.Fprintf(tw, "%s\t%s\t%s\n", t.ID, t.Name, t.CreatedAt.Format("2006-01-02 15:04:05")) //nolint:errcheck
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().String("db", "", "SQLite database path (overrides storage.path)")
	return cmd
}

// withApp loads config, wires the app for the duration of fn and closes it.
// Logs go to stderr so command output stays clean.
func withApp(cmd *cobra.Command, fn func(*app) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	a, err := newApp(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}
