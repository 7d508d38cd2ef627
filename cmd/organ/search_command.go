package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"organ/internal/language"
)

func newSearchCommand(ctx *commandContext) *cobra.Command {
	var mediaTypeFlag string
	var year int
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the TMDB catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mediaType, err := parseMediaType(mediaTypeFlag)
			if err != nil {
				return err
			}
			cfg := ctx.configValue()
			catalog, err := buildCatalog(cfg)
			if err != nil {
				return err
			}

			matches, err := catalog.Search(cmd.Context(), args[0], mediaType, year)
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd, matches)
			}
			if len(matches) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No matches")
				return nil
			}

			rows := make([][]string, 0, len(matches))
			for _, match := range matches {
				yearText := ""
				if match.Year > 0 {
					yearText = strconv.Itoa(match.Year)
				}
				rows = append(rows, []string{
					strconv.FormatInt(match.ID, 10),
					match.Title,
					yearText,
					string(match.MediaType),
					language.DisplayName(match.OriginalLanguage),
					truncate(match.Overview, 60),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"TMDB", "Title", "Year", "Type", "Language", "Overview"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignRight, alignLeft, alignLeft, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().StringVarP(&mediaTypeFlag, "type", "t", "", "Media type filter (movie or tv)")
	cmd.Flags().IntVarP(&year, "year", "y", 0, "Release year filter")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit matches as JSON")
	return cmd
}

func truncate(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit-1]) + "…"
}
