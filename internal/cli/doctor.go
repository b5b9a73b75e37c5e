package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bnema/weft/internal/config"
	"github.com/bnema/weft/pkg/webview"
)

// newDoctorCmd reports which engine this build selects and where weft keeps
// its files. It constructs a throwaway detached webview to read the real
// capability set instead of guessing from build tags.
func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Print engine and environment diagnostics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()

			dirs, err := config.GetXDGDirs()
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "config dir: %s\n", dirs.ConfigHome)
			fmt.Fprintf(out, "data dir:   %s\n", dirs.DataHome)
			fmt.Fprintf(out, "state dir:  %s\n", dirs.StateHome)

			cfg, err := webview.NewBuilder().Build()
			if err != nil {
				return err
			}
			view, err := webview.New(webview.NoWindow(), cfg)
			if err != nil {
				fmt.Fprintf(out, "engine:     unavailable (%v)\n", err)
				fmt.Fprintln(out, "the compiled-in engine needs a platform window; library embedding still works")
				return nil
			}
			defer view.Destroy()

			fmt.Fprintf(out, "engine:     %s\n", view.Backend())
			fmt.Fprintf(out, "caps:       %s\n", view.Capabilities().String())
			return nil
		},
	}
}
