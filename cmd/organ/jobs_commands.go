package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"organ/internal/api"
	"organ/internal/daemonctl"
	"organ/internal/store"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	jobsCmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect and manage the processing queue",
	}

	jobsCmd.AddCommand(newJobsListCommand(ctx))
	jobsCmd.AddCommand(newJobsShowCommand(ctx))
	jobsCmd.AddCommand(newJobsClearCommand(ctx))
	jobsCmd.AddCommand(newJobsRetryCommand(ctx))
	jobsCmd.AddCommand(newJobsResetCommand(ctx))
	jobsCmd.AddCommand(newJobsHealthCommand(ctx))
	jobsCmd.AddCommand(newJobsHistoryCommand(ctx))

	return jobsCmd
}

// listJobs prefers the daemon API and falls back to the database when the
// daemon is offline.
func listJobs(cmd *cobra.Command, ctx *commandContext, statuses []string) ([]api.Job, error) {
	client, err := ctx.apiClient()
	if err != nil {
		return nil, err
	}
	if client != nil {
		jobs, err := client.Jobs(cmd.Context(), statuses...)
		if err == nil {
			return jobs, nil
		}
		if !daemonctl.IsAPIUnavailable(err) {
			return nil, err
		}
	}

	var jobs []api.Job
	err = ctx.withStore(func(st *store.Store) error {
		filters := make([]store.JobStatus, 0, len(statuses))
		for _, status := range statuses {
			if trimmed := strings.TrimSpace(status); trimmed != "" {
				filters = append(filters, store.JobStatus(trimmed))
			}
		}
		records, listErr := st.ListJobs(cmd.Context(), filters...)
		if listErr != nil {
			return listErr
		}
		jobs = api.FromJobs(records)
		return nil
	})
	return jobs, err
}

func newJobsListCommand(ctx *commandContext) *cobra.Command {
	var statuses []string
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queued jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			jobs, err := listJobs(cmd, ctx, statuses)
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd, api.JobListResponse{Jobs: jobs})
			}
			if len(jobs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
				return nil
			}
			rows := make([][]string, 0, len(jobs))
			for _, job := range jobs {
				detail := job.Progress.Message
				if job.ErrorMessage != "" {
					detail = job.ErrorMessage
				}
				if job.ReviewReason != "" {
					detail = job.ReviewReason
				}
				rows = append(rows, []string{
					strconv.FormatInt(job.ID, 10),
					job.SourceName,
					job.Backend,
					job.Status,
					fmt.Sprintf("%.0f%%", job.Progress.Percent),
					detail,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "File", "Backend", "Status", "Progress", "Detail"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&statuses, "status", nil, "Filter by job status (repeatable)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit jobs as JSON")
	return cmd
}

func newJobsShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one job in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(strings.TrimSpace(args[0]), 10, 64)
			if err != nil {
				return fmt.Errorf("invalid job id %q", args[0])
			}

			client, err := ctx.apiClient()
			if err != nil {
				return err
			}
			if client != nil {
				job, apiErr := client.Job(cmd.Context(), id)
				if apiErr == nil {
					if job == nil {
						return fmt.Errorf("job %d not found", id)
					}
					return writeJSON(cmd, api.JobResponse{Job: *job})
				}
				if !daemonctl.IsAPIUnavailable(apiErr) {
					return apiErr
				}
			}

			return ctx.withStore(func(st *store.Store) error {
				record, getErr := st.GetJob(cmd.Context(), id)
				if getErr != nil {
					return getErr
				}
				if record == nil {
					return fmt.Errorf("job %d not found", id)
				}
				return writeJSON(cmd, api.JobResponse{Job: api.FromJob(record)})
			})
		},
	}
}

func newJobsClearCommand(ctx *commandContext) *cobra.Command {
	var failedOnly bool
	var completedOnly bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove jobs from the queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				var removed int64
				var err error
				switch {
				case failedOnly:
					removed, err = st.ClearFailed(cmd.Context())
				case completedOnly:
					removed, err = st.ClearCompleted(cmd.Context())
				default:
					removed, err = st.ClearJobs(cmd.Context())
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d job(s)\n", removed)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&failedOnly, "failed", false, "Remove only failed jobs")
	cmd.Flags().BoolVar(&completedOnly, "completed", false, "Remove only completed jobs")
	cmd.MarkFlagsMutuallyExclusive("failed", "completed")
	return cmd
}

func newJobsRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry [id...]",
		Short: "Reset failed jobs back to pending",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]int64, 0, len(args))
			for _, arg := range args {
				id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
				if err != nil {
					return fmt.Errorf("invalid job id %q", arg)
				}
				ids = append(ids, id)
			}
			return ctx.withStore(func(st *store.Store) error {
				updated, err := st.RetryFailed(cmd.Context(), ids...)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Requeued %d job(s)\n", updated)
				return nil
			})
		},
	}
}

func newJobsResetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Reset stuck in-flight jobs back to pending",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				updated, err := st.ResetStuckProcessing(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Reset %d job(s)\n", updated)
				return nil
			})
		},
	}
}

func newJobsHealthCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Show queue and database diagnostics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				summary, err := st.Health(cmd.Context())
				if err != nil {
					return err
				}
				dbHealth, err := st.CheckHealth(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				fmt.Fprintln(out, renderStatusLine("Total", statusInfo, strconv.Itoa(summary.Total), colorize))
				fmt.Fprintln(out, renderStatusLine("Pending", statusInfo, strconv.Itoa(summary.Pending), colorize))
				fmt.Fprintln(out, renderStatusLine("Processing", statusInfo, strconv.Itoa(summary.Processing), colorize))
				fmt.Fprintln(out, renderStatusLine("Review", statusWarn, strconv.Itoa(summary.Review), colorize))
				fmt.Fprintln(out, renderStatusLine("Failed", statusError, strconv.Itoa(summary.Failed), colorize))
				fmt.Fprintln(out, renderStatusLine("Completed", statusOK, strconv.Itoa(summary.Completed), colorize))
				integrity := statusOK
				if !dbHealth.IntegrityCheck {
					integrity = statusError
				}
				fmt.Fprintln(out, renderStatusLine("Database", integrity, dbHealth.DBPath, colorize))
				return nil
			})
		},
	}
}

func newJobsHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent transfer history",
		RunE: func(cmd *cobra.Command, args []string) error {
			var records []api.HistoryRecord

			client, err := ctx.apiClient()
			if err != nil {
				return err
			}
			if client != nil {
				records, err = client.History(cmd.Context(), limit)
				if err != nil && !daemonctl.IsAPIUnavailable(err) {
					return err
				}
			}
			if records == nil {
				err = ctx.withStore(func(st *store.Store) error {
					raw, listErr := st.ListTransferHistory(cmd.Context(), limit)
					if listErr != nil {
						return listErr
					}
					records = api.FromTransferRecords(raw)
					return nil
				})
				if err != nil {
					return err
				}
			}

			if jsonOut {
				return writeJSON(cmd, api.HistoryResponse{Records: records})
			}
			if len(records) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No transfer history")
				return nil
			}
			rows := make([][]string, 0, len(records))
			for _, record := range records {
				rows = append(rows, []string{
					strconv.FormatInt(record.JobID, 10),
					record.SourcePath,
					record.TargetPath,
					record.Outcome,
					record.CreatedAt,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Job", "Source", "Target", "Outcome", "When"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum history entries")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit history as JSON")
	return cmd
}
