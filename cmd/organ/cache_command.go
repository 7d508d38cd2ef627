package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"organ/internal/recognizer"
	"organ/internal/store"
)

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the recognition cache",
	}
	cmd.AddCommand(newCachePurgeCommand(ctx), newCacheForgetCommand(ctx))
	return cmd
}

func newCachePurgeCommand(ctx *commandContext) *cobra.Command {
	var ttlDays int

	cmd := &cobra.Command{
		Use:     "purge",
		Aliases: []string{"clear"},
		Short:   "Remove expired recognition cache entries",
		Long: `Purge removes cached recognitions older than the configured TTL.
Entries pinned by a user override are never purged.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			days := ttlDays
			if days <= 0 {
				days = ctx.configValue().Recognizer.CacheTTLDays
			}
			if days <= 0 {
				return fmt.Errorf("cache ttl is not configured; pass --ttl-days")
			}
			return ctx.withStore(func(st *store.Store) error {
				removed, err := st.PurgeExpiredRecognitions(cmd.Context(), time.Duration(days)*24*time.Hour)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Purged %d expired cache entries\n", removed)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&ttlDays, "ttl-days", 0, "Override the configured TTL in days")
	return cmd
}

func newCacheForgetCommand(ctx *commandContext) *cobra.Command {
	var size int64

	cmd := &cobra.Command{
		Use:   "forget <filename>",
		Short: "Drop the cached recognition for one file",
		Long: `Forget invalidates the cache entry for a filename so the next
recognition pass consults the catalog again. Pass --size when the file
is not reachable locally; otherwise the file is inspected for it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fileSize := size
			if fileSize <= 0 {
				files, err := collectVideoFiles(args, false)
				if err != nil || len(files) == 0 {
					return fmt.Errorf("cannot determine file size for %s; pass --size", args[0])
				}
				fileSize = files[0].Size
			}
			key := recognizer.Fingerprint(filepath.Base(args[0]), fileSize)
			return ctx.withStore(func(st *store.Store) error {
				if err := st.InvalidateRecognition(cmd.Context(), key); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Forgot cached recognition for %s\n", args[0])
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&size, "size", 0, "File size in bytes used for the cache key")
	return cmd
}
