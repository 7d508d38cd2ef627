package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"organ/internal/media"
	"organ/internal/store"
	"organ/internal/transfer"
)

func parseBackend(value string) (media.Backend, error) {
	if strings.TrimSpace(value) == "" {
		return media.BackendLocal, nil
	}
	switch backend := media.ParseBackend(value); backend {
	case media.BackendLocal, media.BackendCloud, media.BackendWebDAV:
		return backend, nil
	default:
		return "", fmt.Errorf("unknown backend %q (use local, clouddrive, or webdav)", value)
	}
}

func newTransferCommand(ctx *commandContext) *cobra.Command {
	var (
		mediaTypeFlag  string
		backendFlag    string
		ruleOverride   string
		template       string
		versionTag     string
		keepExisting   bool
		dryRun         bool
		execute        bool
		replaceSeasons bool
		recurse        bool
		jsonOut        bool
	)

	cmd := &cobra.Command{
		Use:   "transfer <path>...",
		Short: "Recognize and file media, dry-run by default",
		Long: `Transfer recognizes the given files, routes them through the rule
engine, and reports the planned destinations. Nothing moves unless
--execute is set.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if dryRun && execute {
				return fmt.Errorf("--dry-run and --execute are mutually exclusive")
			}
			if replaceSeasons && !execute {
				return fmt.Errorf("--replace-seasons deletes existing season folders and requires --execute")
			}
			mediaType, err := parseMediaType(mediaTypeFlag)
			if err != nil {
				return err
			}
			backend, err := parseBackend(backendFlag)
			if err != nil {
				return err
			}
			files, err := collectVideoFiles(args, recurse)
			if err != nil {
				return err
			}
			if len(files) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No video files found")
				return nil
			}

			cfg := ctx.configValue()
			return ctx.withStore(func(st *store.Store) error {
				services, err := buildLocalServices(cfg, st, cliLogger(cfg))
				if err != nil {
					return err
				}
				items := services.recognizer.RecognizeBatch(cmd.Context(), files, mediaType)

				if !execute {
					report, err := services.transfer.DryRun(cmd.Context(), items, backend)
					if err != nil {
						return err
					}
					if jsonOut {
						return writeJSON(cmd, report)
					}
					renderDryRunReport(cmd, report)
					return nil
				}

				opts := transfer.Options{
					RuleOverride: ruleOverride,
					Template:     template,
					VersionTag:   versionTag,
					KeepExisting: keepExisting,
				}

				var result *transfer.Result
				if replaceSeasons {
					targetBase, err := seriesTargetBase(cmd, services, items, backend, ruleOverride)
					if err != nil {
						return err
					}
					result, err = services.transfer.TransferSeries(cmd.Context(), items, backend, targetBase, opts)
					if err != nil {
						return err
					}
				} else {
					result, err = services.transfer.Execute(cmd.Context(), items, backend, opts)
					if err != nil {
						return err
					}
				}
				if jsonOut {
					return writeJSON(cmd, result)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Transferred %d, skipped %d, failed %d\n",
					result.Transferred, result.Skipped, result.Failed)
				for _, itemErr := range result.Errors {
					fmt.Fprintf(cmd.OutOrStdout(), "  %s: %s\n", itemErr.File, itemErr.Error)
				}
				if !result.Success() {
					return fmt.Errorf("%d transfer(s) failed", result.Failed)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&mediaTypeFlag, "type", "t", "", "Media type hint (movie or tv)")
	cmd.Flags().StringVar(&backendFlag, "backend", "local", "Destination backend (local, cloud, webdav)")
	cmd.Flags().StringVar(&ruleOverride, "rule", "", "Route every file through the named rule")
	cmd.Flags().StringVar(&template, "template", "", "Naming template override")
	cmd.Flags().StringVar(&versionTag, "tag", "", "Version tag appended to generated names")
	cmd.Flags().BoolVar(&keepExisting, "keep-existing", false, "Skip files whose destination already exists")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report the plan without moving files (the default)")
	cmd.Flags().BoolVar(&execute, "execute", false, "Move files instead of reporting the plan")
	cmd.Flags().BoolVar(&replaceSeasons, "replace-seasons", false, "Replace whole season folders when filing a series")
	cmd.Flags().BoolVarP(&recurse, "recursive", "r", false, "Recurse into directories")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit the report as JSON")
	return cmd
}

// seriesTargetBase derives the library base directory for a season
// replacement, either from an explicit rule override or from the first
// item a routing rule accepts.
func seriesTargetBase(cmd *cobra.Command, services *localServices, items []*media.RecognitionResult, backend media.Backend, ruleOverride string) (string, error) {
	if ruleOverride != "" {
		rule, err := services.store.GetRule(cmd.Context(), ruleOverride)
		if err != nil {
			return "", err
		}
		if rule == nil {
			return "", fmt.Errorf("rule %s not found", ruleOverride)
		}
		return rule.TargetPath, nil
	}
	report, err := services.transfer.DryRun(cmd.Context(), items, backend)
	if err != nil {
		return "", err
	}
	for _, item := range report.Items {
		if item != nil && item.TargetPath != "" {
			return item.TargetPath, nil
		}
	}
	return "", fmt.Errorf("no routing rule matched; pass --rule to pick the series destination")
}

func renderDryRunReport(cmd *cobra.Command, report *transfer.Report) {
	out := cmd.OutOrStdout()
	rows := make([][]string, 0, len(report.Items))
	for _, item := range report.Items {
		if item == nil {
			continue
		}
		title := ""
		if item.Info != nil {
			title = item.Info.Title
		}
		rows = append(rows, []string{
			item.File.Name,
			title,
			string(item.Confidence),
			item.MatchedRuleName,
			item.TargetPath,
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"File", "Title", "Confidence", "Rule", "Destination"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
	))
	fmt.Fprintf(out, "%d file(s): %d high, %d medium, %d low confidence\n",
		report.Total, report.HighConfidence, report.MediumConfidence, report.LowConfidence)
	for _, itemErr := range report.Errors {
		fmt.Fprintf(out, "  %s: %s\n", itemErr.File, itemErr.Error)
	}
}
