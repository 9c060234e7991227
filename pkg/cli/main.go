// Package cli builds the recordlockd command tree.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/nimburion/recordlock/pkg/config"
	"github.com/nimburion/recordlock/pkg/configschema"
	"github.com/nimburion/recordlock/pkg/locking"
	"github.com/nimburion/recordlock/pkg/observability/logger"
	"github.com/nimburion/recordlock/pkg/version"
)

// Options configures the root command.
type Options struct {
	Name        string
	Description string
	ConfigPath  string // default of --config-file
	EnvPrefix   string
	Out         io.Writer // stdout when nil

	// RunServer replaces Serve, mainly for tests.
	RunServer func(ctx context.Context, env *Environment) error
}

// Environment is what every command gets after flags are parsed.
type Environment struct {
	Config     *config.Config
	ConfigPath string
	Log        logger.Logger
}

// loadFunc reads the environment, applying the flags of the running command.
type loadFunc func(*pflag.FlagSet) (*Environment, error)

// NewRootCommand builds recordlockd. Without a subcommand it serves.
func NewRootCommand(opts Options) *cobra.Command {
	if opts.Name == "" {
		opts.Name = "recordlockd"
	}
	if opts.EnvPrefix == "" {
		opts.EnvPrefix = config.DefaultEnvPrefix
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.RunServer == nil {
		opts.RunServer = Serve
	}

	root := &cobra.Command{
		Use:           opts.Name,
		Short:         opts.Description,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(opts.Out)

	var configFile, secretsFile string
	pf := root.PersistentFlags()
	pf.StringVarP(&configFile, "config-file", "c", opts.ConfigPath, "YAML config file")
	pf.StringVar(&secretsFile, "secret-file", "", "secrets file merged over the config file (overrides "+opts.EnvPrefix+"_SECRETS_FILE)")
	config.RegisterFlags(pf)

	load := func(flags *pflag.FlagSet) (*Environment, error) {
		loader := config.NewLoader(configFile, opts.EnvPrefix).
			WithServiceName(opts.Name).
			WithSecretsFile(secretsFile).
			WithFlags(flags)
		return LoadEnvironment(loader)
	}

	serve := newServeCommand(load, opts.RunServer)
	root.RunE = serve.RunE
	root.AddCommand(
		serve,
		newPoliciesCommand(load),
		newVersionCommand(opts.Name),
		newConfigCommand(load, opts.Name),
		newMigrateCommand(load),
	)
	return root
}

// LoadEnvironment loads and validates configuration and builds the logger.
func LoadEnvironment(loader *config.Loader) (*Environment, error) {
	cfg := &config.Config{}
	if err := loader.Load(cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	log, err := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	log.Debug("effective configuration", "config", cfg.Redacted())

	return &Environment{
		Config:     cfg,
		ConfigPath: loader.Path(),
		Log:        log.With("service", cfg.Service.Name),
	}, nil
}

func newServeCommand(load loadFunc, run func(context.Context, *Environment) error) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the lock manager with its scheduler and management server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := load(cmd.Flags())
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, env)
		},
	}
}

func newPoliciesCommand(load loadFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "policies",
		Short: "Load lock policies from the configured source and print them as YAML",
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := load(cmd.Flags())
			if err != nil {
				return err
			}
			source, err := OpenPolicySource(cmd.Context(), env)
			if err != nil {
				return err
			}
			defer source.Close()

			resolver, err := locking.NewPolicyResolver(source)
			if err != nil {
				return err
			}
			if err := resolver.Reload(cmd.Context()); err != nil {
				return fmt.Errorf("load policies: %w", err)
			}

			doc := policyDocument{}
			for _, p := range resolver.Policies() {
				doc.Policies = append(doc.Policies, config.PolicyConfig{ObjectName: p.ObjectName, Enabled: p.Enabled, Timeout: p.Timeout})
			}
			return writeYAML(cmd.OutOrStdout(), doc)
		},
	}
}

// policyDocument is the YAML document printed by the policies command.
type policyDocument struct {
	Policies []config.PolicyConfig `yaml:"policies"`
}

func newVersionCommand(service string) *cobra.Command {
	var short bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := version.Current(service)
			out := cmd.OutOrStdout()
			if short {
				_, err := fmt.Fprintln(out, info.Version)
				return err
			}
			release := "yes"
			if !info.Release {
				release = "no (not a semantic version)"
			}
			_, err := fmt.Fprintf(out, "Service:    %s\nVersion:    %s\nCommit:     %s\nBuild Time: %s\nGo:         %s\nRelease:    %s\n",
				info.Service, info.Version, info.Commit, info.BuildTime, info.GoVersion, release)
			return err
		},
	}
	cmd.Flags().BoolVar(&short, "short", false, "print the version only")
	return cmd
}

func newConfigCommand(load loadFunc, service string) *cobra.Command {
	cmd := &cobra.Command{Use: "config", Short: "Inspect the configuration"}

	var showSecrets bool
	show := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as YAML",
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := load(cmd.Flags())
			if err != nil {
				return err
			}
			if showSecrets {
				return writeYAML(cmd.OutOrStdout(), env.Config)
			}
			return writeYAML(cmd.OutOrStdout(), env.Config.Redacted())
		},
	}
	show.Flags().BoolVar(&showSecrets, "show-secrets", false, "print connection URLs unmasked")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "validate",
			Short: "Load and validate the configuration",
			RunE: func(cmd *cobra.Command, _ []string) error {
				if _, err := load(cmd.Flags()); err != nil {
					return err
				}
				_, err := fmt.Fprintln(cmd.OutOrStdout(), "configuration is valid")
				return err
			},
		},
		show,
		&cobra.Command{
			Use:   "schema",
			Short: "Print the JSON Schema of the config file",
			RunE: func(cmd *cobra.Command, _ []string) error {
				schema, err := configschema.BuildSchema(service)
				if err != nil {
					return err
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(schema)
			},
		},
	)
	return cmd
}

func writeYAML(out io.Writer, v any) error {
	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}
	return enc.Close()
}

// Execute runs cmd and exits 1 on error.
func Execute(cmd *cobra.Command) {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
