// Package cli implements the inkblog command line.
package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/dfryer1193/inkblog/internal/config"
	"github.com/dfryer1193/inkblog/internal/logging"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type CLI struct {
	rootCmd *cobra.Command
	cfgFile string
	cfg     *config.Config
}

func New() *CLI {
	c := &CLI{}

	rootCmd := &cobra.Command{
		Use:           "inkblog",
		Short:         "A self-hosted markdown blog",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.initializeConfig(cmd)
		},
	}
	rootCmd.SetVersionTemplate(fmt.Sprintf("{{.Name}} version {{.Version}} (commit: %s, date: %s)\n", Commit, Date))
	rootCmd.PersistentFlags().StringVar(&c.cfgFile, "config", "", "config file (default is ./blog.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (trace, debug, info, warn, error)")

	c.rootCmd = rootCmd
	rootCmd.AddCommand(c.newServeCmd())
	rootCmd.AddCommand(c.newBuildCmd())
	rootCmd.AddCommand(c.newVersionCmd())

	return c
}

// Execute runs the command line with ctx, which is cancelled to stop a running server
func (c *CLI) Execute(ctx context.Context) error {
	c.rootCmd.SetContext(ctx)
	return c.rootCmd.Execute()
}

// SetArgs sets the arguments for the root command
func (c *CLI) SetArgs(args []string) {
	c.rootCmd.SetArgs(args)
}

func (c *CLI) SetOutput(out, err io.Writer) {
	c.rootCmd.SetOut(out)
	c.rootCmd.SetErr(err)
}

func (c *CLI) initializeConfig(cmd *cobra.Command) error {
	v := viper.New()
	if err := v.BindPFlag("log.level", cmd.Flags().Lookup("log-level")); err != nil {
		return err
	}
	if f := cmd.Flags().Lookup("addr"); f != nil {
		if err := v.BindPFlag("server.addr", f); err != nil {
			return err
		}
	}
	if f := cmd.Flags().Lookup("watch"); f != nil {
		if err := v.BindPFlag("server.watch", f); err != nil {
			return err
		}
	}

	cfg, err := config.Load(v, c.cfgFile)
	if err != nil {
		return err
	}
	if err := logging.Setup(cfg.Log.Level, cfg.Log.Pretty); err != nil {
		return err
	}
	if used := v.ConfigFileUsed(); used != "" {
		log.Debug().Str("file", used).Msg("Loaded config file")
	}

	c.cfg = cfg
	return nil
}
