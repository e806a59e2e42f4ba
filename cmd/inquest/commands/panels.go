package commands

import (
	"github.com/spf13/cobra"

	"github.com/inquest-labs/inquest/internal/config"
)

var panelsInitPath string

var panelsCmd = &cobra.Command{
	Use:   "panels",
	Short: "Manage the panel set configuration",
}

var panelsInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default panel set configuration to a file",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.WritePanelSetsFile(panelsInitPath, config.DefaultPanelSets()); err != nil {
			return err
		}
		cmd.Printf("wrote default panel sets to %s\n", panelsInitPath)
		return nil
	},
}

var panelsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective panel sets",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPathFlag)
		if err != nil {
			return err
		}

		sets := config.DefaultPanelSets()
		if cfg.PanelSetsPath != "" {
			sets, err = config.LoadPanelSetsFile(cfg.PanelSetsPath)
			if err != nil {
				return err
			}
		}

		cmd.Println("standard:")
		for _, p := range sets.Standard {
			cmd.Printf("  %s: %v\n", p.Name, p.Tools)
		}
		cmd.Printf("fast:\n  %s: %v\n", sets.Fast.Name, sets.Fast.Tools)
		return nil
	},
}

func init() {
	panelsInitCmd.Flags().StringVar(&panelsInitPath, "out", "panels.yaml",
		"Destination path for the panel sets file")
	panelsCmd.AddCommand(panelsInitCmd)
	panelsCmd.AddCommand(panelsShowCmd)
}
