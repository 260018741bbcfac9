package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sjawhar/gestalt-coach/internal/session"
	"github.com/sjawhar/gestalt-coach/internal/storage"
)

func newSessionsCmd(st *cliState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect saved play sessions",
	}
	cmd.AddCommand(newSessionsListCmd(st))
	return cmd
}

func newSessionsListCmd(st *cliState) *cobra.Command {
	var owner string
	var all bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List saved sessions",
		Long: `List the saved sessions of one household (--owner, default the shared one).

With --all, list every household that has saved sessions instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := st.openStore()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if all {
				return listHouseholds(cmd, store)
			}

			saved, err := session.NewDocumentStore(store, session.StoreKey(owner)).LoadSavedSessions(cmd.Context())
			if err != nil {
				return fmt.Errorf("load saved sessions: %w", err)
			}
			if len(saved) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No saved sessions.")
				return nil
			}
			printSavedSessions(cmd.OutOrStdout(), saved)
			return nil
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "household id")
	cmd.Flags().BoolVar(&all, "all", false, "list households instead of sessions")
	return cmd
}

func listHouseholds(cmd *cobra.Command, store *storage.SQLiteStore) error {
	docs, err := store.ListDocuments(cmd.Context(), session.DefaultStoreKey)
	if err != nil {
		return fmt.Errorf("list households: %w", err)
	}
	if len(docs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No saved sessions.")
		return nil
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "OWNER\tUPDATED")
	for _, d := range docs {
		owner := strings.TrimPrefix(strings.TrimPrefix(d.Key, session.DefaultStoreKey), ":")
		if owner == "" {
			owner = "(default)"
		}
		fmt.Fprintf(tw, "%s\t%s\n", owner, d.UpdatedAt.Local().Format("2006-01-02 15:04"))
	}
	return tw.Flush()
}

func printSavedSessions(w io.Writer, saved []session.SavedSession) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "INDEX\tNAME\tINTERACTIONS\tPUBLIC\tCREATED")
	for i, s := range saved {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%t\t%s\n",
			i, s.Metadata.Name, len(s.Interactions), s.Metadata.IsPublic,
			s.Metadata.CreatedAt.Local().Format("2006-01-02 15:04"))
	}
	_ = tw.Flush()
}
