// Command configsync turns supabase-config.json into the relay's .env.local and
// the shared credentials.json, or checks that the configured project answers.
//
//	configsync [--dir D] [update|check]
package main

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gpng/edge-relay/services/deploylog"
	"github.com/gpng/edge-relay/services/logger"
	"github.com/spf13/cobra"
)

const checkTimeout = 10 * time.Second

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// options shared by every subcommand
type options struct {
	dir     string
	envFile string
	report  bool
	debug   bool
}

func (o *options) paths() paths {
	return paths{
		config:      filepath.Join(o.dir, "supabase-config.json"),
		env:         filepath.Join(o.dir, o.envFile),
		credentials: filepath.Join(o.dir, "credentials.json"),
	}
}

// run builds the logger and collector for one subcommand and prints the
// report afterwards when asked to
func (o *options) run(cmd *cobra.Command, fn func(p paths, log *deploylog.Collector) error) error {
	l := logger.New(o.debug)
	defer l.Sync()

	log := deploylog.New(l)
	err := fn(o.paths(), log)
	if o.report {
		if werr := log.WriteReport(cmd.OutOrStdout()); werr != nil && err == nil {
			err = werr
		}
	}
	return err
}

func newRootCmd() *cobra.Command {
	o := &options{}

	cmd := &cobra.Command{
		Use:           "configsync",
		Short:         "Sync Supabase settings into the relay's env and credentials files",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.run(cmd, func(p paths, log *deploylog.Collector) error {
				return update(p, log, time.Now())
			})
		},
	}

	cmd.PersistentFlags().StringVar(&o.dir, "dir", ".", "Project directory holding supabase-config.json.")
	cmd.PersistentFlags().StringVar(&o.envFile, "env", ".env.local", "Env file to write, relative to --dir.")
	cmd.PersistentFlags().BoolVar(&o.report, "report", false, "Print a JSON report of the run.")
	cmd.PersistentFlags().BoolVar(&o.debug, "debug", false, "Human readable logs.")

	cmd.AddCommand(newUpdateCmd(o))
	cmd.AddCommand(newCheckCmd(o))

	return cmd
}

func newUpdateCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "update",
		Short: "Write the env file and merge credentials.json from supabase-config.json",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.run(cmd, func(p paths, log *deploylog.Collector) error {
				return update(p, log, time.Now())
			})
		},
	}
}

func newCheckCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Query the analytics table through the Supabase REST API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), checkTimeout)
			defer cancel()
			return o.run(cmd, func(p paths, log *deploylog.Collector) error {
				return check(ctx, http.DefaultClient, p, log)
			})
		},
	}
}
