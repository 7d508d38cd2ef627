package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"organ/internal/media"
	"organ/internal/recognizer"
	"organ/internal/store"
)

func newAddFileCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "add <path>",
		Short: "Queue a local video file for processing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			trimmed := strings.TrimSpace(args[0])
			if trimmed == "" {
				return errors.New("source path is required")
			}
			absPath, err := filepath.Abs(trimmed)
			if err != nil {
				return fmt.Errorf("resolve source path: %w", err)
			}
			info, err := os.Stat(absPath)
			if err != nil {
				return fmt.Errorf("stat source file: %w", err)
			}
			if info.IsDir() {
				return fmt.Errorf("source path %q is a directory", absPath)
			}
			if !media.IsVideo(info.Name()) {
				return fmt.Errorf("unsupported file extension %q", filepath.Ext(info.Name()))
			}

			return ctx.withStore(func(st *store.Store) error {
				file := media.FileInfo{
					Name:     info.Name(),
					Path:     absPath,
					Size:     info.Size(),
					Ext:      strings.ToLower(filepath.Ext(info.Name())),
					Modified: info.ModTime(),
					Backend:  media.BackendLocal,
				}
				job, err := st.NewJob(cmd.Context(), file, recognizer.Fingerprint(file.Name, file.Size))
				if err != nil {
					return fmt.Errorf("enqueue file: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Queued %s as job %d\n", file.Name, job.ID)
				return nil
			})
		},
	}
}
