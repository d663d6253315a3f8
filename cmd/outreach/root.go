package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/beingsj/Linkedin-Outreach-Assistant/internal/config"
	"github.com/beingsj/Linkedin-Outreach-Assistant/internal/logging"
	"github.com/beingsj/Linkedin-Outreach-Assistant/internal/outreach"
	"github.com/beingsj/Linkedin-Outreach-Assistant/internal/store"
)

const appName = "outreach"

func newRootCmd(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:           appName,
		Short:         "LinkedIn outreach assistant",
		Long:          "Runs timed connect campaigns in a real Chrome session and keeps the outreach log, visit history, templates, tags and notes.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.Version = version
	cmd.SetVersionTemplate(appName + " version {{.Version}}\n")
	cmd.SetOut(os.Stdout)
	cmd.SetErr(os.Stderr)

	cmd.PersistentFlags().String("config", "config.yaml", "path to config file")
	cmd.PersistentFlags().Bool("json", false, "output in JSON format")

	cmd.AddCommand(
		newServeCmd(),
		newCampaignCmd(),
		newLogsCmd(),
		newVisitsCmd(),
		newClientsCmd(),
		newTemplatesCmd(),
		newTagsCmd(),
		newNotesCmd(),
		newPreviewCmd(),
	)
	return cmd
}

func loadConfig(cmd *cobra.Command) (*config.Config, string, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", fmt.Errorf("load config: %w", err)
	}
	return cfg, path, nil
}

func openStore(ctx context.Context, cfg *config.Config) (*store.Store, error) {
	st, err := store.Open(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, fmt.Errorf("migrate store: %w", err)
	}
	return st, nil
}

// env is what the offline subcommands share: the store and the records on it.
type env struct {
	cfg *config.Config
	st  *store.Store
	rec *outreach.Records
}

func openEnv(cmd *cobra.Command) (*env, error) {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	st, err := openStore(cmd.Context(), cfg)
	if err != nil {
		return nil, err
	}
	log := logging.NewWriter(cmd.ErrOrStderr(), cfg.Logging.Level)
	return &env{cfg: cfg, st: st, rec: outreach.New(st, log)}, nil
}

func (e *env) Close() { e.st.Close() }

func jsonOutput(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("json")
	return v
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
