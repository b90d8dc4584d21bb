package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/dendrascience/vdo-manager/vdo"
	"github.com/dendrascience/vdo-manager/version"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// LogFieldBuild tags every log entry with the build information.
const LogFieldBuild = "build"

// RegistryFactory creates the operation registry once the log sink for the
// invocation is known.
type RegistryFactory func(logger *zap.Logger) vdo.Registry

// App holds everything one vdo invocation needs. Nothing in it changes once
// the command tree is built.
type App struct {
	Settings    Settings
	Commands    *vdo.CommandCatalog
	NewRegistry RegistryFactory
	NewLogger   LoggerFactory
	Stdout      io.Writer
	Stderr      io.Writer

	help *HelpRenderer
	// current is the command whose usage accompanies an error report.
	current *vdo.CommandSpec
}

// NewApp creates an App with the default catalogs, the zap log sink and
// standard streams.
func NewApp(settings Settings, newRegistry RegistryFactory) *App {
	commands := vdo.DefaultCommandCatalog(vdo.DefaultOptionCatalog())
	return &App{
		Settings:    settings,
		Commands:    commands,
		NewRegistry: newRegistry,
		NewLogger:   NewLogger,
		Stdout:      os.Stdout,
		Stderr:      os.Stderr,
		help:        NewHelpRenderer(settings, commands),
	}
}

func (a *App) renderer() *HelpRenderer {
	if a.help == nil {
		a.help = NewHelpRenderer(a.Settings, a.Commands)
	}
	return a.help
}

// NewRootCmd creates the root cobra command with one subcommand per catalog
// entry, in catalog order, plus the help command.
func (a *App) NewRootCmd() *cobra.Command {
	cobra.EnableCommandSorting = false

	rootCmd := &cobra.Command{
		Use:           a.Settings.ProgName,
		Short:         "Manage kernel VDO devices",
		Long:          description,
		Version:       version.GetFullVersion(),
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          a.rootArgs,
		RunE:          a.runRoot,

		SuggestionsMinimumDistance: 2,
	}
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.SetOut(a.Stdout)
	rootCmd.SetErr(a.Stderr)
	rootCmd.SetFlagErrorFunc(a.flagError)
	// fang replaces the help func, so -h/--help is handled by the commands.
	addHelpFlag(rootCmd.PersistentFlags())

	for _, spec := range a.Commands.Options().Globals() {
		addOption(rootCmd.PersistentFlags(), spec)
	}

	groupVolumes := "volumes"
	groupConfig := "config"
	rootCmd.AddGroup(&cobra.Group{ID: groupVolumes, Title: "Volume Commands"})
	rootCmd.AddGroup(&cobra.Group{ID: groupConfig, Title: "Configuration Commands"})

	for _, spec := range a.Commands.All() {
		sub := a.newCommandCmd(spec)
		sub.GroupID = groupVolumes
		if spec.Selector == vdo.SelectNone {
			sub.GroupID = groupConfig
		}
		rootCmd.AddCommand(sub)
	}

	rootCmd.SetHelpCommand(a.NewHelpCmd())
	rootCmd.SetHelpCommandGroupID(groupConfig)

	return rootCmd
}

// runRoot only runs when no command matched: zero names or several.
func (a *App) runRoot(cmd *cobra.Command, args []string) error {
	a.current = nil
	if helpRequested(cmd) {
		return a.renderer().Full(cmd.OutOrStdout())
	}
	return vdo.NewArgumentCountError(args, "exactly one command")
}

// rootArgs rejects a single unknown command name with suggestions; other
// counts fall through to runRoot.
func (a *App) rootArgs(cmd *cobra.Command, args []string) error {
	a.current = nil
	if len(args) == 1 && !helpRequested(cmd) {
		return vdo.NewUnknownCommandError(args[0], cmd.SuggestionsFor(args[0]))
	}
	return nil
}

func (a *App) newCommandCmd(spec *vdo.CommandSpec) *cobra.Command {
	c := &cobra.Command{
		Use:   spec.Name,
		Short: spec.Short,
		Long:  spec.Long,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 && !helpRequested(cmd) {
				return vdo.NewArgumentCountError(args, "no positional arguments after "+spec.Name)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			a.current = spec
			if helpRequested(cmd) {
				return a.renderer().Command(cmd.OutOrStdout(), spec.Name)
			}
			return a.run(cmd, spec)
		},
	}
	options := a.Commands.Options()
	for _, name := range a.Commands.Accepts(spec) {
		opt, err := options.Lookup(name)
		if err != nil || opt.Global {
			continue
		}
		addOption(c.Flags(), opt)
	}
	return c
}

// run is the path every command takes: normalize, check invariants, then
// dispatch to the operation.
func (a *App) run(cmd *cobra.Command, spec *vdo.CommandSpec) error {
	cfg := collect(cmd, a.Commands, spec)
	if err := vdo.CheckInvariants(a.Commands, cfg); err != nil {
		return err
	}

	logger, err := a.NewLogger(LogConfig{
		Name:   a.Settings.ProgName,
		File:   cfg.String(vdo.OptLogFile),
		Debug:  cfg.Bool(vdo.OptDebug),
		Stderr: cmd.ErrOrStderr(),
	})
	if err != nil {
		return vdo.NewSyntaxError(vdo.OptLogFile, cfg.String(vdo.OptLogFile), "cannot be opened: "+err.Error())
	}
	defer func() { _ = logger.Sync() }()
	logger = logger.With(zap.Object(LogFieldBuild, version.GetInfo()))

	dispatcher := vdo.NewDispatcher(a.Commands, a.NewRegistry(logger), logger, cmd.ErrOrStderr())
	return dispatcher.Dispatch(cmd.Context(), cfg)
}

func (a *App) flagError(cmd *cobra.Command, err error) error {
	a.current = nil
	if spec, lookupErr := a.Commands.Lookup(cmd.Name()); lookupErr == nil {
		a.current = spec
	}
	return flagError(cmd, err)
}

// HandleError reports err as one diagnostic line. Validation errors are
// preceded by the short usage of the command that failed.
func (a *App) HandleError(w io.Writer, _ fang.Styles, err error) {
	if !vdo.IsKind(err, vdo.OperationFailure) {
		usage := a.renderer().Usage()
		if a.current != nil {
			usage = a.renderer().CommandUsage(a.current)
		}
		fmt.Fprintln(w, usage)
	}
	fmt.Fprintf(w, "%s: error: %s\n", a.Settings.ProgName, vdo.Describe(err))
}

// Execute runs args without fang, reporting any error on Stderr. It
// returns the process exit status.
func (a *App) Execute(ctx context.Context, args []string) int {
	rootCmd := a.NewRootCmd()
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		a.HandleError(a.Stderr, fang.Styles{}, err)
	}
	return vdo.ExitCode(err)
}
