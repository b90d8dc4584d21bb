package cmd

import (
	"strconv"

	"github.com/dendrascience/vdo-manager/vdo"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// optionValue adapts an OptionSpec to pflag.Value. The parse error is kept
// so the flag-error hook can return the typed error instead of pflag's
// formatted string.
type optionValue struct {
	spec   *vdo.OptionSpec
	raw    string
	parsed any
	err    error
}

func (v *optionValue) String() string { return v.raw }

func (v *optionValue) Set(raw string) error {
	parsed, err := vdo.Parse(v.spec, raw)
	if err != nil {
		v.err = err
		return err
	}
	v.raw, v.parsed = raw, parsed
	return nil
}

// Type is shown as the value placeholder in flag usages; "bool" hides it.
func (v *optionValue) Type() string {
	if v.spec.Kind == vdo.KindFlag {
		return "bool"
	}
	if v.spec.Metavar != "" {
		return v.spec.Metavar
	}
	return v.spec.Kind.String()
}

const helpFlag = "help"

// helpValue backs -h/--help. It always reads as false so cobra never takes
// its own help path; the commands check requested and render help
// themselves.
type helpValue struct {
	requested bool
}

func (v *helpValue) String() string { return "false" }

func (v *helpValue) Set(raw string) error {
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return err
	}
	v.requested = v.requested || b
	return nil
}

func (v *helpValue) Type() string { return "bool" }

// addHelpFlag registers -h/--help on fs.
func addHelpFlag(fs *pflag.FlagSet) {
	f := fs.VarPF(&helpValue{}, helpFlag, "h", "show this help message and exit")
	f.NoOptDefVal = "true"
}

// helpRequested reports whether -h/--help was given to cmd.
func helpRequested(cmd *cobra.Command) bool {
	f := cmd.Flags().Lookup(helpFlag)
	if f == nil {
		return false
	}
	v, ok := f.Value.(*helpValue)
	return ok && v.requested
}

// addOption registers spec on fs.
func addOption(fs *pflag.FlagSet, spec *vdo.OptionSpec) {
	f := fs.VarPF(&optionValue{spec: spec, raw: spec.Default}, spec.Name, spec.Short, spec.Help)
	f.DefValue = spec.Default
	f.Hidden = spec.Hidden
	if spec.Kind == vdo.KindFlag {
		f.NoOptDefVal = "true"
	}
}

// flagError returns the typed error kept by the option that failed to
// parse, or a usage error for failures pflag detects itself.
func flagError(cmd *cobra.Command, err error) error {
	var stored error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if v, ok := f.Value.(*optionValue); ok && v.err != nil && stored == nil {
			stored = v.err
		}
	})
	if stored != nil {
		return stored
	}
	return vdo.NewUsageError(err)
}

// collect builds the normalized config for spec from the parsed flags of
// cmd. Options the command does not accept are never present.
func collect(cmd *cobra.Command, commands *vdo.CommandCatalog, spec *vdo.CommandSpec) *vdo.Config {
	options := commands.Options()
	cfg := vdo.NewConfig(spec.Name)
	for _, name := range commands.Accepts(spec) {
		f := cmd.Flags().Lookup(name)
		if f == nil {
			continue
		}
		v, ok := f.Value.(*optionValue)
		if !ok {
			continue
		}
		switch def, hasDefault := options.DefaultValue(name); {
		case f.Changed:
			cfg.Set(name, vdo.Value{Raw: v.raw, Parsed: v.parsed, Source: vdo.SourceSupplied})
		case hasDefault:
			cfg.Set(name, vdo.Value{Raw: v.spec.Default, Parsed: def, Source: vdo.SourceDefault})
		default:
			cfg.Set(name, vdo.Value{Source: vdo.SourceAbsent})
		}
	}
	return cfg
}
