package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cory-johannsen/tactics/internal/content"
	"github.com/cory-johannsen/tactics/internal/game/dice"
	"github.com/cory-johannsen/tactics/internal/observability"
	"github.com/cory-johannsen/tactics/internal/scenario"
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the loaded character templates and scenarios",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			bundle, err := content.Load(cfg.Content, dice.NewRoller(dice.CryptoSource(), logger),
				observability.NewEnforcer(cfg.Encounter, logger), logger)
			if err != nil {
				return err
			}
			defer bundle.Close()

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "templates:")
			for _, id := range bundle.TemplateIDs() {
				t := bundle.Templates[id]
				fmt.Fprintf(out, "  %-18s %-7s %s\n", id, t.Kind, t.Name)
			}
			scenarios, err := scenario.LoadDirectory(cfg.Content.ScenariosDir)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, "scenarios:")
			for _, s := range scenarios {
				fmt.Fprintf(out, "  %-18s %s\n", s.ID, s.Description)
			}
			return nil
		},
	}
}
