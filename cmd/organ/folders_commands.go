package main

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"organ/internal/media"
	"organ/internal/store"
)

func newFoldersCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "folders",
		Short: "Manage monitored folders",
	}
	cmd.AddCommand(
		newFoldersListCommand(ctx),
		newFoldersAddCommand(ctx),
		newFoldersRemoveCommand(ctx),
		newFoldersEnableCommand(ctx, true),
		newFoldersEnableCommand(ctx, false),
	)
	return cmd
}

func newFoldersListCommand(ctx *commandContext) *cobra.Command {
	var enabledOnly bool
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List monitored folders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				folders, err := st.ListMonitoredFolders(cmd.Context(), enabledOnly)
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, folders)
				}
				if len(folders) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No monitored folders")
					return nil
				}
				rows := make([][]string, 0, len(folders))
				for _, folder := range folders {
					lastScan := "never"
					if folder.LastScanAt != nil {
						lastScan = folder.LastScanAt.Local().Format("2006-01-02 15:04")
					}
					rows = append(rows, []string{
						strconv.FormatInt(folder.ID, 10),
						folder.Path,
						string(folder.Backend),
						string(folder.MediaType),
						yesNo(folder.Recursive),
						yesNo(folder.Enabled),
						lastScan,
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "Path", "Backend", "Type", "Recursive", "Enabled", "Last Scan"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&enabledOnly, "enabled", false, "Show enabled folders only")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit folders as JSON")
	return cmd
}

func newFoldersAddCommand(ctx *commandContext) *cobra.Command {
	var (
		backendFlag   string
		mediaTypeFlag string
		recursive     bool
		disabled      bool
	)

	cmd := &cobra.Command{
		Use:   "add <path>",
		Short: "Monitor a folder for new media",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, err := parseBackend(backendFlag)
			if err != nil {
				return err
			}
			path := args[0]
			if backend == media.BackendLocal {
				path, err = filepath.Abs(path)
				if err != nil {
					return fmt.Errorf("resolve path: %w", err)
				}
			}
			folder := &store.MonitoredFolder{
				Path:      path,
				Backend:   backend,
				MediaType: media.ParseType(mediaTypeFlag),
				Recursive: recursive,
				Enabled:   !disabled,
			}
			return ctx.withStore(func(st *store.Store) error {
				created, err := st.AddMonitoredFolder(cmd.Context(), folder)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Monitoring %s (id %d)\n", created.Path, created.ID)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&backendFlag, "backend", "local", "Storage backend (local, clouddrive, webdav)")
	cmd.Flags().StringVarP(&mediaTypeFlag, "type", "t", "all", "Expected media type (movie, tv, all)")
	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "Scan subdirectories")
	cmd.Flags().BoolVar(&disabled, "disabled", false, "Add the folder disabled")
	return cmd
}

func parseFolderID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid folder id %q", arg)
	}
	return id, nil
}

func newFoldersRemoveCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"remove", "delete"},
		Short:   "Stop monitoring a folder",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseFolderID(args[0])
			if err != nil {
				return err
			}
			return ctx.withStore(func(st *store.Store) error {
				removed, err := st.RemoveMonitoredFolder(cmd.Context(), id)
				if err != nil {
					return err
				}
				if !removed {
					return fmt.Errorf("folder %d not found", id)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed folder %d\n", id)
				return nil
			})
		},
	}
	return cmd
}

func newFoldersEnableCommand(ctx *commandContext, enable bool) *cobra.Command {
	use, short, verb := "enable <id>", "Enable a monitored folder", "enabled"
	if !enable {
		use, short, verb = "disable <id>", "Disable a monitored folder", "disabled"
	}
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseFolderID(args[0])
			if err != nil {
				return err
			}
			return ctx.withStore(func(st *store.Store) error {
				if err := st.SetMonitoredFolderEnabled(cmd.Context(), id, enable); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Folder %d %s\n", id, verb)
				return nil
			})
		},
	}
	return cmd
}
