package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/goliatone/go-accelo-cache/pkg/di"
	"github.com/goliatone/go-accelo-cache/querycache"
	"github.com/spf13/cobra"
)

// app holds the state shared by the subcommands of one invocation.
type app struct {
	configPath string
	baseURL    string
	logLevel   string
	backend    string

	opts      []di.Option
	container *di.Container
}

// run executes the command line args and releases the container
// afterwards, also when the command failed.
func run(ctx context.Context, args []string, stdout, stderr io.Writer, opts ...di.Option) error {
	a := &app{opts: opts}
	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	return errors.Join(err, a.close())
}

func newRootCmd(a *app) *cobra.Command {

	root := &cobra.Command{
		Use:           "acceloctl",
		Short:         "Query Accelo contracts through the query cache",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.open()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "acceloctl.yaml", "path to the YAML configuration file")
	flags.StringVar(&a.baseURL, "base-url", "", "Accelo deployment URL, overrides accelo.base_url")
	flags.StringVar(&a.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	flags.StringVar(&a.backend, "backend", "", "cache backend (lru, sturdyc)")

	root.AddCommand(
		newContractsCmd(a),
		newContractCmd(a),
		newActiveCmd(a),
	)
	return root
}

func (a *app) open() error {
	cfg, err := di.LoadConfigOrDefault(a.configPath)
	if err != nil {
		return err
	}
	if a.baseURL != "" {
		cfg.Accelo.BaseURL = a.baseURL
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if a.backend != "" {
		cfg.Cache.Backend = querycache.Backend(a.backend)
	}

	a.container, err = di.NewContainer(cfg, a.opts...)
	return err
}

func (a *app) close() error {
	if a.container == nil {
		return nil
	}
	err := a.container.Close()
	a.container = nil
	return err
}

// report writes v as indented JSON followed by the miss count.
func (a *app) report(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return err
	}
	_, err := fmt.Fprintf(out, "cache misses: %d\n", a.container.Coordinator().MissCount())
	return err
}
