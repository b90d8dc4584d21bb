package cmd

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/dendrascience/vdo-manager/vdo"
	"github.com/mitchellh/go-wordwrap"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const description = "Manages kernel VDO devices and related configuration information."

// HelpRenderer formats usage and help text from the catalogs.
type HelpRenderer struct {
	settings Settings
	commands *vdo.CommandCatalog
}

// NewHelpRenderer creates a renderer wrapping at settings.Width.
func NewHelpRenderer(settings Settings, commands *vdo.CommandCatalog) *HelpRenderer {
	return &HelpRenderer{settings: settings, commands: commands}
}

// wrap fills text to the configured width, indenting continuation lines.
func (h *HelpRenderer) wrap(text string, indent int) string {
	limit := max(h.settings.Width-indent, 1)
	lines := strings.Split(wordwrap.WrapString(text, uint(limit)), "\n")
	pad := strings.Repeat(" ", indent)
	for i := range lines {
		lines[i] = pad + lines[i]
	}
	return strings.Join(lines, "\n")
}

// hangingWrap wraps body after prefix; continuation lines line up under
// the first character of body.
func (h *HelpRenderer) hangingWrap(prefix, body string) string {
	limit := max(h.settings.Width-len(prefix), 1)
	lines := strings.Split(wordwrap.WrapString(body, uint(limit)), "\n")
	pad := strings.Repeat(" ", len(prefix))
	for i := range lines {
		if i == 0 {
			lines[i] = prefix + lines[i]
		} else {
			lines[i] = pad + lines[i]
		}
	}
	return strings.Join(lines, "\n")
}

// Usage is the global usage line: the program name and every command in
// catalog order, pipe-joined and wrapped at the pipes.
func (h *HelpRenderer) Usage() string {
	prefix := fmt.Sprintf("usage: %s [-h] [--version] {", h.settings.ProgName)
	wrapped := h.hangingWrap(prefix, strings.Join(h.commands.Names(), "| ")+"}")
	return strings.ReplaceAll(wrapped, "| ", "|")
}

// CommandUsage is the usage line of one command.
func (h *HelpRenderer) CommandUsage(spec *vdo.CommandSpec) string {
	var parts []string
	switch spec.Selector {
	case vdo.SelectName:
		parts = append(parts, h.placeholder(vdo.OptName))
	case vdo.SelectNameOrAll:
		parts = append(parts, "("+h.placeholder(vdo.OptName)+" | --"+vdo.OptAll+")")
	case vdo.SelectOptional:
		parts = append(parts, "["+h.placeholder(vdo.OptName)+" | --"+vdo.OptAll+"]")
	}
	for _, name := range spec.Required {
		parts = append(parts, h.placeholder(name))
	}
	if len(spec.Optional) > 0 || len(spec.Other) > 0 {
		parts = append(parts, "[options]")
	}
	prefix := fmt.Sprintf("usage: %s %s ", h.settings.ProgName, spec.Name)
	if len(parts) == 0 {
		return strings.TrimSpace(prefix)
	}
	return h.hangingWrap(prefix, strings.Join(parts, " "))
}

func (h *HelpRenderer) placeholder(name string) string {
	spec, err := h.commands.Options().Lookup(name)
	if err != nil || spec.Kind == vdo.KindFlag {
		return "--" + name
	}
	return fmt.Sprintf("--%s=<%s>", name, spec.Metavar)
}

// Full writes the global help: usage, description, the command table and
// the global options.
func (h *HelpRenderer) Full(w io.Writer) error {
	var b strings.Builder
	b.WriteString(h.Usage())
	b.WriteString("\n\n")
	b.WriteString(h.wrap(description, 0))
	b.WriteString("\n\nCommands:\n")
	if err := h.writeTable(&b); err != nil {
		return err
	}
	b.WriteString("\nGlobal options:\n")
	b.WriteString(h.flagUsages(h.globalNames(nil)))
	fmt.Fprintf(&b, "\nFor help on a command, run %q; %q lists all commands.\n",
		h.settings.ProgName+" help <command>", h.settings.ProgName+" help "+vdo.HelpCommands)
	_, err := io.WriteString(w, b.String())
	return err
}

// Commands writes the two-column table of command names and short
// descriptions.
func (h *HelpRenderer) Commands(w io.Writer) error {
	return h.writeTable(w)
}

func (h *HelpRenderer) writeTable(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, spec := range h.commands.All() {
		fmt.Fprintf(tw, "  %s\t%s\n", spec.Name, spec.Short)
	}
	return tw.Flush()
}

// Command writes the help of the named command. An unknown name is an
// error and nothing is written.
func (h *HelpRenderer) Command(w io.Writer, name string) error {
	spec, err := h.commands.Lookup(name)
	if err != nil {
		return err
	}
	var b strings.Builder
	b.WriteString(h.CommandUsage(spec))
	b.WriteString("\n\n")
	b.WriteString(h.wrap(spec.Short, 0))
	if spec.Long != "" {
		b.WriteString("\n\n")
		b.WriteString(h.wrap(spec.Long, 0))
	}
	b.WriteString("\n")

	primary := selectorNames(spec)
	primary = append(primary, spec.Required...)
	primary = append(primary, spec.Optional...)
	if len(primary) > 0 {
		b.WriteString("\nOptions:\n")
		b.WriteString(h.flagUsages(primary))
	}
	if len(spec.Other) > 0 {
		b.WriteString("\nOther options:\n")
		b.WriteString(h.flagUsages(spec.Other))
	}
	b.WriteString("\nGlobal options:\n")
	b.WriteString(h.flagUsages(h.globalNames(primary)))
	_, err = io.WriteString(w, b.String())
	return err
}

func selectorNames(spec *vdo.CommandSpec) []string {
	switch spec.Selector {
	case vdo.SelectName:
		return []string{vdo.OptName}
	case vdo.SelectNameOrAll, vdo.SelectOptional:
		return []string{vdo.OptName, vdo.OptAll}
	}
	return nil
}

// globalNames lists the global options not already in shown.
func (h *HelpRenderer) globalNames(shown []string) []string {
	var names []string
	for _, spec := range h.commands.Options().Globals() {
		if !slices.Contains(shown, spec.Name) {
			names = append(names, spec.Name)
		}
	}
	return names
}

// flagUsages renders the named options the way pflag renders a flag set.
func (h *HelpRenderer) flagUsages(names []string) string {
	fs := pflag.NewFlagSet("help", pflag.ContinueOnError)
	fs.SortFlags = false
	for _, name := range names {
		spec, err := h.commands.Options().Lookup(name)
		if err != nil {
			continue
		}
		addOption(fs, spec)
	}
	return fs.FlagUsagesWrapped(h.settings.Width)
}

// NewHelpCmd creates the help command. With no argument it prints the full
// help; "commands" prints the command table; a command name prints that
// command's help.
func (a *App) NewHelpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "help [command | " + vdo.HelpCommands + "]",
		Short: "Displays help for a command, or lists the commands.",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a.current = nil
			out := cmd.OutOrStdout()
			switch {
			case len(args) == 0:
				return a.renderer().Full(out)
			case len(args) > 1:
				return vdo.NewArgumentCountError(args, "at most one command name")
			case args[0] == vdo.HelpCommands:
				return a.renderer().Commands(out)
			}
			if _, err := a.Commands.Lookup(args[0]); err != nil {
				return vdo.NewUnknownCommandError(args[0], cmd.Root().SuggestionsFor(args[0]))
			}
			return a.renderer().Command(out, args[0])
		},
	}
}
