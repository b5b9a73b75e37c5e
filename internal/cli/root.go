// Package cli provides the command-line interface for weft.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bnema/weft/internal/config"
	"github.com/bnema/weft/internal/logging"
)

// NewRootCmd creates the root command for weft.
func NewRootCmd(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "weft [url]",
		Short: "Embedded webview demo shell",
		Long: `weft embeds a platform-native web view behind one Go API and ships this
small shell around it: navigate, inspect, and keep history.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Init(); err != nil {
				return fmt.Errorf("failed to initialize configuration: %w", err)
			}
			cfg := config.Get()
			log := logging.New(logging.Config{
				Level:  logging.ParseLevel(cfg.Logging.Level),
				Format: cfg.Logging.Format,
			})

			target := cfg.Browsing.Homepage
			if len(args) > 0 {
				target = args[0]
			}
			return runBrowse(cmd.Context(), log, cfg, target)
		},
	}

	rootCmd.Version = fmt.Sprintf("%s (commit %s, built %s)", version, commit, buildDate)

	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newHistoryCmd())
	rootCmd.AddCommand(newDoctorCmd())
	return rootCmd
}
