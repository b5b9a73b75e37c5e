package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/bnema/weft/internal/config"
	"github.com/bnema/weft/internal/history"
)

func newHistoryCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recently visited pages",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			entries, err := store.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			for _, e := range entries {
				title := e.Title
				if title == "" {
					title = "(untitled)"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  %s (%d visits)\n",
					e.LastVisited.Format("2006-01-02 15:04"), e.URL, title, e.VisitCount)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 25, "maximum number of entries to show")

	cmd.AddCommand(&cobra.Command{
		Use:   "prune",
		Short: "Apply the retention limits to stored history",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.Init(); err != nil {
				return err
			}
			cfg := config.Get()

			store, err := openStore()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			retention := time.Duration(cfg.History.RetentionPeriodDays) * 24 * time.Hour
			return store.Prune(cmd.Context(), cfg.History.MaxEntries, retention)
		},
	})

	return cmd
}

func openStore() (*history.Store, error) {
	if err := config.Init(); err != nil {
		return nil, err
	}
	return history.Open(config.Get().Database.Path)
}
