package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"organ/internal/media"
	"organ/internal/store"
)

// collectVideoFiles expands the given arguments into video FileInfo
// records. Directories are walked one level unless recurse is set.
func collectVideoFiles(args []string, recurse bool) ([]media.FileInfo, error) {
	var files []media.FileInfo
	add := func(path string, info os.FileInfo) {
		if info.IsDir() || !media.IsVideo(info.Name()) {
			return
		}
		files = append(files, media.FileInfo{
			Name:     info.Name(),
			Path:     path,
			Size:     info.Size(),
			Ext:      strings.ToLower(filepath.Ext(info.Name())),
			Modified: info.ModTime(),
			Backend:  media.BackendLocal,
		})
	}

	for _, arg := range args {
		abs, err := filepath.Abs(strings.TrimSpace(arg))
		if err != nil {
			return nil, fmt.Errorf("resolve path %q: %w", arg, err)
		}
		info, err := os.Stat(abs)
		if err != nil {
			return nil, fmt.Errorf("inspect path %q: %w", abs, err)
		}
		if !info.IsDir() {
			add(abs, info)
			continue
		}
		if recurse {
			walkErr := filepath.Walk(abs, func(path string, entry os.FileInfo, err error) error {
				if err != nil {
					return err
				}
				add(path, entry)
				return nil
			})
			if walkErr != nil {
				return nil, walkErr
			}
			continue
		}
		entries, err := os.ReadDir(abs)
		if err != nil {
			return nil, err
		}
		for _, entry := range entries {
			entryInfo, infoErr := entry.Info()
			if infoErr != nil {
				continue
			}
			add(filepath.Join(abs, entry.Name()), entryInfo)
		}
	}
	return files, nil
}

func parseMediaType(value string) (media.Type, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "auto", "unknown":
		return media.TypeUnknown, nil
	case "movie":
		return media.TypeMovie, nil
	case "tv", "series":
		return media.TypeTV, nil
	default:
		return media.TypeUnknown, fmt.Errorf("unknown media type %q (use movie or tv)", value)
	}
}

func newRecognizeCommand(ctx *commandContext) *cobra.Command {
	var mediaTypeFlag string
	var recurse bool
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "recognize <path>...",
		Short: "Recognize media files without transferring them",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mediaType, err := parseMediaType(mediaTypeFlag)
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
				results := services.recognizer.RecognizeBatch(cmd.Context(), files, mediaType)
				if jsonOut {
					return writeJSON(cmd, results)
				}

				rows := make([][]string, 0, len(results))
				for _, result := range results {
					title, year, kind, catalogID := "", "", "", ""
					if result.Info != nil {
						title = result.Info.Title
						if result.Info.Year > 0 {
							year = strconv.Itoa(result.Info.Year)
						}
						kind = string(result.Info.MediaType)
						if result.Info.TMDBID > 0 {
							catalogID = strconv.FormatInt(result.Info.TMDBID, 10)
						}
					}
					rows = append(rows, []string{
						result.File.Name,
						title,
						year,
						kind,
						string(result.Confidence),
						catalogID,
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"File", "Title", "Year", "Type", "Confidence", "TMDB"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft, alignRight},
				))
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&mediaTypeFlag, "type", "t", "", "Media type hint (movie or tv)")
	cmd.Flags().BoolVarP(&recurse, "recursive", "r", false, "Recurse into directories")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit results as JSON")
	return cmd
}
