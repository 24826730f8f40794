package solodeploy

import (
	"embed"
	"fmt"

	"github.com/arthur-debert/solodeploy/internal/version"
	"github.com/arthur-debert/solodeploy/pkg/attributes"
	"github.com/arthur-debert/solodeploy/pkg/cobrax/topics"
	"github.com/arthur-debert/solodeploy/pkg/config"
	"github.com/arthur-debert/solodeploy/pkg/inventory"
	"github.com/arthur-debert/solodeploy/pkg/logging"
	"github.com/arthur-debert/solodeploy/pkg/paths"
	"github.com/arthur-debert/solodeploy/pkg/solo"
	"github.com/arthur-debert/solodeploy/pkg/style"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

//go:embed topics
var topicsFS embed.FS

// globalOptions are the persistent flags shared by every command
type globalOptions struct {
	verbosity  int
	root       string
	configFile string
	hosts      []string
	roles      []string
	bootstrap  bool
	set        []string
}

// NewRootCmd creates and returns the root command
func NewRootCmd() *cobra.Command {
	initTemplateFormatting()

	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:     "solodeploy",
		Short:   MsgRootShort,
		Long:    MsgRootLong,
		Version: version.Version,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.SetupLogger(opts.verbosity)
			log.Debug().Str("command", cmd.Name()).Msg("Command started")
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = cmd.Help()
			return fmt.Errorf("no command specified")
		},
		SilenceUsage:      true,
		SilenceErrors:     true,
		DisableAutoGenTag: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.CountVarP(&opts.verbosity, "verbose", "v", MsgFlagVerbose)
	flags.StringVarP(&opts.configFile, "config", "c", "", MsgFlagConfig)
	flags.StringVar(&opts.root, "root", "", MsgFlagRoot)
	flags.StringSliceVar(&opts.hosts, "hosts", nil, MsgFlagHosts)
	flags.StringSliceVar(&opts.roles, "roles", nil, MsgFlagRoles)
	flags.BoolVar(&opts.bootstrap, "bootstrap", false, MsgFlagBootstrap)
	flags.StringArrayVar(&opts.set, "set", nil, MsgFlagSet)

	// The help command comes from the topics manager
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	rootCmd.AddGroup(&cobra.Group{
		ID:    "core",
		Title: "COMMANDS:",
	})
	rootCmd.AddGroup(&cobra.Group{
		ID:    "misc",
		Title: "MISC:",
	})

	rootCmd.SetUsageTemplate(MsgUsageTemplate)

	rootCmd.AddCommand(newSetupCmd(opts))
	rootCmd.AddCommand(newUpdateCmd(opts))
	rootCmd.AddCommand(newRunCmd(opts))
	rootCmd.AddCommand(newRunListCmd(opts))
	rootCmd.AddCommand(newVersionCmd(opts))
	rootCmd.AddCommand(newAttributesCmd(opts))
	rootCmd.AddCommand(newPurgeCmd(opts))
	rootCmd.AddCommand(newConfigCmd(opts))
	rootCmd.AddCommand(newTopicsCmd())
	rootCmd.AddCommand(newCompletionCmd())
	rootCmd.AddCommand(newBuildInfoCmd())

	if _, err := topics.Initialize(rootCmd, topicsFS, "topics", topics.Options{
		Extensions: []string{".txt", ".md"},
		Renderer:   topics.NewGlamourRenderer(),
	}); err != nil {
		log.Warn().Err(err).Msg("Help topics unavailable")
	}

	return rootCmd
}

// initPaths resolves the project root and warns when falling back to the
// working directory
func (o *globalOptions) initPaths(cmd *cobra.Command) (*paths.Paths, error) {
	p, err := paths.New(o.root)
	if err != nil {
		return nil, fmt.Errorf(MsgErrInitPaths, err)
	}
	if p.UsedFallback() && o.configFile == "" {
		fmt.Fprintf(cmd.ErrOrStderr(), MsgFallbackWarning, p.Root())
	}
	return p, nil
}

func (o *globalOptions) loadOptions(cmd *cobra.Command) (config.Options, error) {
	p, err := o.initPaths(cmd)
	if err != nil {
		return config.Options{}, err
	}
	overrides, err := config.ParseOverrides(o.set)
	if err != nil {
		return config.Options{}, err
	}
	return config.Options{Paths: p, File: o.configFile, Overrides: overrides}, nil
}

// newRunner loads the configuration and builds a runner for the selected hosts
func (o *globalOptions) newRunner(cmd *cobra.Command) (*solo.Runner, *config.Config, error) {
	loadOpts, err := o.loadOptions(cmd)
	if err != nil {
		return nil, nil, err
	}
	cfg, err := config.Load(loadOpts)
	if err != nil {
		return nil, nil, fmt.Errorf(MsgErrLoadConfig, err)
	}

	inv := inventory.FromConfig(cfg)
	hosts, err := inventory.Select(inv, o.hosts, o.roles)
	if err != nil {
		return nil, nil, fmt.Errorf(MsgErrSelectHosts, err)
	}

	transport, err := solo.NewTransport(cfg)
	if err != nil {
		return nil, nil, err
	}

	runner, err := solo.New(solo.Options{
		Config:    cfg,
		Transport: transport,
		Inventory: inv,
		Hosts:     hosts,
		Bootstrap: o.bootstrap,
	})
	if err != nil {
		_ = transport.Close()
		return nil, nil, err
	}

	log.Info().
		Str("root", cfg.ProjectRoot).
		Strs("hosts", runner.Hosts()).
		Bool("bootstrap", o.bootstrap || cfg.Bootstrap.Enabled).
		Msg("Runner ready")
	return runner, cfg, nil
}

type reportFunc func(cmd *cobra.Command, runner *solo.Runner, args []string) (*solo.Report, error)

// runReport executes fn and prints its report, even when some hosts failed
func (o *globalOptions) runReport(name string, verbose bool, fn reportFunc) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		runner, _, err := o.newRunner(cmd)
		if err != nil {
			return err
		}
		defer func() {
			if err := runner.Close(); err != nil {
				log.Warn().Err(err).Msg("Failed to close connections")
			}
		}()

		report, err := fn(cmd, runner, args)
		if report != nil {
			renderer := style.NewReportRenderer(cmd.OutOrStdout(), verbose || o.verbosity > 0)
			if werr := renderer.Write(report); werr != nil {
				log.Warn().Err(werr).Msg("Failed to print report")
			}
		}
		if err != nil {
			return fmt.Errorf(MsgErrCommand, name, err)
		}
		return nil
	}
}

func newSetupCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "setup",
		Short:   MsgSetupShort,
		Long:    MsgSetupLong,
		Args:    cobra.NoArgs,
		GroupID: "core",
		RunE: opts.runReport("setup", false, func(cmd *cobra.Command, runner *solo.Runner, args []string) (*solo.Report, error) {
			return runner.Setup(cmd.Context())
		}),
	}
}

func newUpdateCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "update",
		Short:   MsgUpdateShort,
		Long:    MsgUpdateLong,
		Args:    cobra.NoArgs,
		GroupID: "core",
		RunE: opts.runReport("update", false, func(cmd *cobra.Command, runner *solo.Runner, args []string) (*solo.Report, error) {
			return runner.Update(cmd.Context())
		}),
	}
}

func newRunCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "run",
		Short:   MsgRunShort,
		Long:    MsgRunLong,
		Example: MsgRunExample,
		Args:    cobra.NoArgs,
		GroupID: "core",
		RunE: opts.runReport("run", false, func(cmd *cobra.Command, runner *solo.Runner, args []string) (*solo.Report, error) {
			return runner.Run(cmd.Context())
		}),
	}
}

func newRunListCmd(opts *globalOptions) *cobra.Command {
	var noUpdate bool
	cmd := &cobra.Command{
		Use:     "run-list RECIPE...",
		Short:   MsgRunListShort,
		Long:    MsgRunListLong,
		Example: MsgRunListExample,
		Args:    cobra.MinimumNArgs(1),
		GroupID: "core",
		RunE: opts.runReport("run-list", false, func(cmd *cobra.Command, runner *solo.Runner, args []string) (*solo.Report, error) {
			return runner.RunList(cmd.Context(), args, !noUpdate)
		}),
	}
	cmd.Flags().BoolVar(&noUpdate, "no-update", false, MsgFlagNoUpdate)
	return cmd
}

func newVersionCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "version",
		Short:   MsgVersionShort,
		Args:    cobra.NoArgs,
		GroupID: "core",
		RunE: opts.runReport("version", true, func(cmd *cobra.Command, runner *solo.Runner, args []string) (*solo.Report, error) {
			return runner.Version(cmd.Context())
		}),
	}
}

func newPurgeCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "purge",
		Short:   MsgPurgeShort,
		Long:    MsgPurgeLong,
		Args:    cobra.NoArgs,
		GroupID: "core",
		RunE: opts.runReport("purge", false, func(cmd *cobra.Command, runner *solo.Runner, args []string) (*solo.Report, error) {
			return runner.Purge(cmd.Context())
		}),
	}
}

func newAttributesCmd(opts *globalOptions) *cobra.Command {
	var (
		hosts  []string
		roles  []string
		format string
	)

	cmd := &cobra.Command{
		Use:     "attributes",
		Short:   MsgAttributesShort,
		Long:    MsgAttributesLong,
		Example: MsgAttributesExample,
		Args:    cobra.NoArgs,
		GroupID: "core",
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "json" && format != "yaml" {
				return fmt.Errorf(MsgErrUnknownFormat, format)
			}

			runner, cfg, err := opts.newRunner(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = runner.Close() }()

			selected := hosts
			if len(hosts) == 0 && len(roles) == 0 {
				selected = runner.Hosts()
			}

			doc, err := runner.Attributes(cmd.Context(), selected, roles)
			if err != nil {
				return fmt.Errorf(MsgErrCommand, "attributes", err)
			}

			var out []byte
			if format == "yaml" {
				out, err = attributes.MarshalYAML(doc)
			} else {
				out, err = attributes.Marshal(doc, cfg.Attributes.PrettyJSON)
			}
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return err
		},
	}

	cmd.Flags().StringArrayVar(&hosts, "host", nil, MsgFlagHost)
	cmd.Flags().StringArrayVar(&roles, "role", nil, MsgFlagRole)
	cmd.Flags().StringVarP(&format, "format", "f", "json", MsgFlagFormat)
	return cmd
}

func newConfigCmd(opts *globalOptions) *cobra.Command {
	var effective bool

	cmd := &cobra.Command{
		Use:     "config",
		Short:   MsgConfigShort,
		Long:    MsgConfigLong,
		Args:    cobra.NoArgs,
		GroupID: "misc",
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				content string
				err     error
			)
			if effective {
				loadOpts, lerr := opts.loadOptions(cmd)
				if lerr != nil {
					return lerr
				}
				content, err = config.EffectiveContent(loadOpts)
			} else {
				content, err = config.GenerateConfigContent()
			}
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), content)
			return err
		},
	}

	cmd.Flags().BoolVar(&effective, "effective", false, MsgFlagEffective)
	return cmd
}

func newTopicsCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "topics",
		Short:   MsgTopicsShort,
		Long:    MsgTopicsLong,
		GroupID: "misc",
		RunE: func(cmd *cobra.Command, args []string) error {
			if helpCmd, _, err := cmd.Root().Find([]string{"help"}); err == nil {
				if helpCmd.RunE != nil {
					return helpCmd.RunE(helpCmd, []string{"topics"})
				} else if helpCmd.Run != nil {
					helpCmd.Run(helpCmd, []string{"topics"})
					return nil
				}
			}
			return fmt.Errorf("help command not found")
		},
	}
}

func newCompletionCmd() *cobra.Command {
	return &cobra.Command{
		Use:                   "completion [bash|zsh|fish|powershell]",
		Short:                 MsgCompletionShort,
		Long:                  MsgCompletionLong,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		GroupID:               "misc",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletionV2(out, true)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			}
			return nil
		},
	}
}

func newBuildInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "build-info",
		Short:   MsgBuildInfoShort,
		Args:    cobra.NoArgs,
		GroupID: "misc",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), MsgBuildInfoFormat, version.Version, version.Commit, version.Date)
			return err
		},
	}
}
