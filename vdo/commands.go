package vdo

import (
	"fmt"
	"slices"
)

// Command names, in catalog order.
const (
	CmdActivate             = "activate"
	CmdDeactivate           = "deactivate"
	CmdCreate               = "create"
	CmdRemove               = "remove"
	CmdStart                = "start"
	CmdStop                 = "stop"
	CmdStatus               = "status"
	CmdList                 = "list"
	CmdModify               = "modify"
	CmdChangeWritePolicy    = "changeWritePolicy"
	CmdEnableDeduplication  = "enableDeduplication"
	CmdDisableDeduplication = "disableDeduplication"
	CmdEnableCompression    = "enableCompression"
	CmdDisableCompression   = "disableCompression"
	CmdGrowLogical          = "growLogical"
	CmdGrowPhysical         = "growPhysical"
	CmdPrintConfigFile      = "printConfigFile"

	// CmdHelp is reserved and never appears in the catalog.
	CmdHelp = "help"
	// HelpCommands asks `help` for the command table.
	HelpCommands = "commands"
)

// Selector says how a command picks the volumes it acts on.
type Selector int

const (
	SelectNone      Selector = iota // no volume selection
	SelectOptional                  // --name or --all may narrow the output
	SelectName                      // exactly one volume, by --name
	SelectNameOrAll                 // --name or --all is required
)

// CommandSpec describes one subcommand.
type CommandSpec struct {
	Name     string
	Selector Selector
	Required []string
	Optional []string
	Other    []string // shown under "Other options"
	Short    string
	Long     string

	// ModifiesExisting marks commands that change a volume's current
	// settings; options left unsupplied keep their current value.
	ModifiesExisting bool
}

// CommandCatalog is the ordered set of subcommands.
type CommandCatalog struct {
	options *OptionCatalog
	specs   []*CommandSpec
	byName  map[string]*CommandSpec
}

// NewCommandCatalog checks that every option a command references exists in
// options and that names are unique.
func NewCommandCatalog(options *OptionCatalog, specs ...CommandSpec) (*CommandCatalog, error) {
	c := &CommandCatalog{
		options: options,
		byName:  make(map[string]*CommandSpec, len(specs)),
	}
	for i := range specs {
		spec := &specs[i]
		if spec.Name == CmdHelp {
			return nil, fmt.Errorf("command name %q is reserved", CmdHelp)
		}
		if _, dup := c.byName[spec.Name]; dup {
			return nil, fmt.Errorf("command %q declared twice", spec.Name)
		}
		for _, name := range slices.Concat(spec.Required, spec.Optional, spec.Other) {
			if !options.Has(name) {
				return nil, fmt.Errorf("command %q references %w", spec.Name, NewUnknownOptionError(name))
			}
		}
		c.specs = append(c.specs, spec)
		c.byName[spec.Name] = spec
	}
	return c, nil
}

// Lookup finds a command by exact name.
func (c *CommandCatalog) Lookup(name string) (*CommandSpec, error) {
	spec, ok := c.byName[name]
	if !ok {
		return nil, NewUnknownCommandError(name, nil)
	}
	return spec, nil
}

// Names returns the command names in catalog order.
func (c *CommandCatalog) Names() []string {
	names := make([]string, len(c.specs))
	for i, spec := range c.specs {
		names[i] = spec.Name
	}
	return names
}

// All returns the commands in catalog order.
func (c *CommandCatalog) All() []*CommandSpec {
	return c.specs
}

// Options returns the option catalog the commands were checked against.
func (c *CommandCatalog) Options() *OptionCatalog {
	return c.options
}

// Accepts lists every option name spec accepts, global options included.
func (c *CommandCatalog) Accepts(spec *CommandSpec) []string {
	var names []string
	for _, g := range c.options.Globals() {
		names = append(names, g.Name)
	}
	for _, name := range slices.Concat(spec.Required, spec.Optional, spec.Other) {
		if !slices.Contains(names, name) {
			names = append(names, name)
		}
	}
	return names
}

var (
	createOptions = []string{
		OptActivate, OptCompression, OptDeduplication, OptEmulate512, OptIndexMem, OptSparseIndex,
		OptLogicalSize, OptSlabSize, OptWritePolicy, OptForce,
	}
	tuningOptions = []string{
		OptBlockMapCacheSize, OptBlockMapPeriod, OptReadCache, OptReadCacheSize,
		OptAckThreads, OptBioRotation, OptBioThreads, OptCPUThreads,
		OptHashZoneThreads, OptLogicalThreads, OptPhysicalThreads,
	}
)

// DefaultCommandCatalog returns the vdo subcommands in display order.
func DefaultCommandCatalog(options *OptionCatalog) *CommandCatalog {
	c, err := NewCommandCatalog(options,
		CommandSpec{Name: CmdActivate, Selector: SelectNameOrAll,
			Short: "Activates one or all VDO volumes.",
			Long:  "Marks the volume(s) as activated so that they are started by a later start or at boot."},
		CommandSpec{Name: CmdDeactivate, Selector: SelectNameOrAll,
			Short: "Deactivates one or all VDO volumes.",
			Long:  "Marks the volume(s) as deactivated; deactivated volumes are not started."},
		CommandSpec{Name: CmdCreate, Selector: SelectName, Required: []string{OptDevice},
			Optional: createOptions, Other: append(slices.Clone(tuningOptions), OptLogLevel),
			Short: "Creates a VDO volume and its associated index and makes it available.",
			Long: "Creates a VDO volume on the given device, formats it and records it in the configuration file. " +
				"Fails if a volume with the same name already exists."},
		CommandSpec{Name: CmdRemove, Selector: SelectNameOrAll, Optional: []string{OptForce},
			Short: "Removes one or all VDO volumes and associated indexes.",
			Long:  "Stops the volume(s) if needed and removes them from the configuration file."},
		CommandSpec{Name: CmdStart, Selector: SelectNameOrAll, Optional: []string{OptForceRebuild},
			Short: "Starts one or all stopped, activated VDO volumes and associated services.",
			Long:  "Starts the named volume, or every activated volume with --all."},
		CommandSpec{Name: CmdStop, Selector: SelectNameOrAll, Optional: []string{OptForce},
			Short: "Stops one or all running VDO volumes and associated services.",
			Long:  "Stops the named volume, or every running volume with --all."},
		CommandSpec{Name: CmdStatus, Selector: SelectOptional,
			Short: "Reports VDO system and volume status in YAML format.",
			Long:  "Reports the status of the named volume, or of all volumes when no volume is named."},
		CommandSpec{Name: CmdList, Selector: SelectOptional,
			Short: "Displays a list of started VDO volumes.",
			Long:  "Lists started volumes; with --all, stopped volumes are listed as well."},
		CommandSpec{Name: CmdModify, Selector: SelectNameOrAll, Optional: tuningOptions, ModifiesExisting: true,
			Short: "Modifies configuration parameters of one or all VDO volumes.",
			Long: "Changes the given settings of the volume(s). Settings not given on the command line keep their " +
				"current value. Changes take effect the next time the volume is started."},
		CommandSpec{Name: CmdChangeWritePolicy, Selector: SelectNameOrAll, Required: []string{OptWritePolicy},
			ModifiesExisting: true,
			Short:            "Modifies the write policy of one or all running VDO volumes.",
			Long:             "Changes the write policy of the volume(s), applying it immediately to running volumes."},
		CommandSpec{Name: CmdEnableDeduplication, Selector: SelectNameOrAll,
			Short: "Enables deduplication on one or all VDO volumes.",
			Long:  "Turns deduplication on for the volume(s)."},
		CommandSpec{Name: CmdDisableDeduplication, Selector: SelectNameOrAll,
			Short: "Disables deduplication on one or all VDO volumes.",
			Long:  "Turns deduplication off for the volume(s)."},
		CommandSpec{Name: CmdEnableCompression, Selector: SelectNameOrAll,
			Short: "Enables compression on one or all VDO volumes.",
			Long:  "Turns compression on for the volume(s)."},
		CommandSpec{Name: CmdDisableCompression, Selector: SelectNameOrAll,
			Short: "Disables compression on one or all VDO volumes.",
			Long:  "Turns compression off for the volume(s)."},
		CommandSpec{Name: CmdGrowLogical, Selector: SelectName, Required: []string{OptLogicalSize}, ModifiesExisting: true,
			Short: "Grows the logical size of a VDO volume.",
			Long:  "Grows the logical size of the named volume. The new size must be larger than the current one."},
		CommandSpec{Name: CmdGrowPhysical, Selector: SelectName, ModifiesExisting: true,
			Short: "Grows the physical size of a VDO volume.",
			Long:  "Makes the volume use all of its backing device after the device has been enlarged."},
		CommandSpec{Name: CmdPrintConfigFile,
			Short: "Prints the configuration file to stdout.",
			Long:  "Prints the volume configuration file, as selected by --confFile."},
	)
	if err != nil {
		panic(err)
	}
	return c
}
