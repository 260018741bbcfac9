package main

import (
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/sjawhar/gestalt-coach/internal/config"
	"github.com/sjawhar/gestalt-coach/internal/storage"
)

type cliState struct {
	configPath string
	cfg        config.Config
	warnings   []string
}

func newRootCmd() *cobra.Command {
	st := &cliState{}

	root := &cobra.Command{
		Use:   "gestalt-coach",
		Short: "Gestalt Language Coach server and tools",
		Long: `Gestalt Coach helps parents practise Gestalt Language Processing at home.

The serve command runs the web app: chat and voice coaching, play-session
recording with transcription and feedback, and saved sessions. The other
commands inspect and export saved sessions from the local database.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return st.load()
		},
	}
	root.PersistentFlags().StringVar(&st.configPath, "config", "gestalt-coach.yaml", "path to the YAML config file")

	root.AddCommand(
		newServeCmd(st),
		newSessionsCmd(st),
		newTakeoutCmd(st),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Args:  cobra.NoArgs,
			PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
				return nil
			},
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "gestalt-coach %s\ncommit: %s\n", version, commit)
			},
		},
	)
	return root
}

// load reads .env outside production, then the config file and environment.
func (st *cliState) load() error {
	if os.Getenv("APP_ENV") != "production" {
		if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
			log.Printf("warning: .env not loaded: %v", err)
		}
	}

	cfg, warnings, err := config.Load(st.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	st.cfg = cfg
	st.warnings = warnings
	return nil
}

func (st *cliState) openStore() (*storage.SQLiteStore, error) {
	store, err := storage.NewSQLiteStore(st.cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", st.cfg.DBPath, err)
	}
	return store, nil
}
