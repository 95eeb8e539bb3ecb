package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/syssam/neoql/config"
	"github.com/syssam/neoql/schema"
)

// options are the flags shared by all commands.
type options struct {
	config string
	schema string
	debug  bool
}

func newRootCommand() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "neoqlc",
		Short:         "Compile GraphQL operations into Cypher",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.config, "config", "", "config file (YAML)")
	root.PersistentFlags().StringVar(&opts.schema, "schema", "", "schema SDL file (overrides the config)")
	root.PersistentFlags().BoolVar(&opts.debug, "debug", false, "enable debug logging")
	root.AddCommand(
		newCheckCommand(opts),
		newCompileCommand(opts),
	)
	return root
}

// load reads the config and builds the schema it names.
func (o *options) load(cmd *cobra.Command) (*config.Config, *schema.Schema, *slog.Logger, error) {
	cfg, err := config.Load(o.config)
	if err != nil {
		return nil, nil, nil, err
	}
	if o.schema != "" {
		cfg.Schema = o.schema
	}
	level, err := cfg.Level()
	if err != nil {
		return nil, nil, nil, err
	}
	if o.debug {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	if cfg.Schema == "" {
		return nil, nil, nil, errNoSchema
	}
	s, err := schema.Load(cfg.Schema, schema.WithFeatures(cfg.Features))
	if err != nil {
		return nil, nil, nil, err
	}
	log.Debug("schema loaded", "path", cfg.Schema, "types", len(s.Types))
	return cfg, s, log, nil
}
