package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/sjawhar/gestalt-coach/internal/session"
	"github.com/sjawhar/gestalt-coach/internal/takeout"
)

func newTakeoutCmd(st *cliState) *cobra.Command {
	var owner, kindFlag string

	cmd := &cobra.Command{
		Use:   "takeout <index>",
		Short: "Export a saved session as markdown",
		Long: `Render the saved session at <index> (see "sessions list") as a journal
entry, a task list or an appointment note, write it to export_dir and upload
it to Google Drive when gdrive_folder_id is set.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid index %q", args[0])
			}
			kind, err := takeout.ParseKind(kindFlag)
			if err != nil {
				return err
			}

			store, err := st.openStore()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			saved, err := session.NewDocumentStore(store, session.StoreKey(owner)).LoadSavedSessions(cmd.Context())
			if err != nil {
				return fmt.Errorf("load saved sessions: %w", err)
			}
			if index < 0 || index >= len(saved) {
				return fmt.Errorf("%w: index %d of %d", session.ErrSessionNotFound, index, len(saved))
			}

			exporter := takeout.NewExporter(st.cfg.ExportDir, newUploader(cmd.Context(), st.cfg))
			item, err := exporter.Export(cmd.Context(), kind, saved[index])
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", item.Path)
			switch {
			case item.Link != "":
				fmt.Fprintf(cmd.OutOrStdout(), "uploaded to %s\n", item.Link)
			case item.Uploaded:
				fmt.Fprintln(cmd.OutOrStdout(), "uploaded to Google Drive")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "household id")
	cmd.Flags().StringVar(&kindFlag, "type", "journal", "takeout type: journal, task or appointment")
	return cmd
}
