package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Set at link time with -ldflags "-X github.com/dfryer1193/inkblog/internal/cli.Version=..."
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

func (c *CLI) newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the application version",
		// version needs no config
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "inkblog version %s (commit: %s, date: %s)\n", Version, Commit, Date)
		},
	}
}
