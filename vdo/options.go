package vdo

import (
	"fmt"
)

// Option names.
const (
	OptName         = "name"
	OptAll          = "all"
	OptConfFile     = "confFile"
	OptDebug        = "debug"
	OptLogFile      = "logfile"
	OptVerbose      = "verbose"
	OptNoRun        = "noRun"
	OptForce        = "force"
	OptForceRebuild = "forceRebuild"

	OptActivate          = "activate"
	OptCompression       = "compression"
	OptDeduplication     = "deduplication"
	OptDevice            = "device"
	OptEmulate512        = "emulate512"
	OptIndexMem          = "indexMem"
	OptSparseIndex       = "sparseIndex"
	OptLogicalSize       = "vdoLogicalSize"
	OptLogLevel          = "vdoLogLevel"
	OptSlabSize          = "vdoSlabSize"
	OptBlockMapCacheSize = "blockMapCacheSize"
	OptBlockMapPeriod    = "blockMapPeriod"
	OptReadCache         = "readCache"
	OptReadCacheSize     = "readCacheSize"
	OptAckThreads        = "vdoAckThreads"
	OptBioRotation       = "vdoBioRotationInterval"
	OptBioThreads        = "vdoBioThreads"
	OptCPUThreads        = "vdoCpuThreads"
	OptHashZoneThreads   = "vdoHashZoneThreads"
	OptLogicalThreads    = "vdoLogicalThreads"
	OptPhysicalThreads   = "vdoPhysicalThreads"
	OptWritePolicy       = "writePolicy"
)

// Choice values.
const (
	Enabled  = "enabled"
	Disabled = "disabled"
)

var (
	enabledDisabled = []string{Enabled, Disabled}
	writePolicies   = []string{"sync", "async"}
	logLevels       = []string{"critical", "error", "warning", "notice", "info", "debug"}
)

// DefaultConfFile is where the volume configuration lives unless --confFile
// says otherwise.
const DefaultConfFile = "/etc/vdoconf.yml"

// OptionSpec describes one command-line option. Only the fields relevant to
// Kind are consulted.
type OptionSpec struct {
	Name    string
	Short   string
	Kind    ValueKind
	Default string // raw default, parsed like user input; "" means none
	Help    string
	Metavar string
	Global  bool
	Hidden  bool

	Choices []string

	// KindThreadCount, KindBoundedInt, KindIndexMemory
	Min, Max int

	// KindSize
	Suffixes     SuffixTable
	DefaultUnit  byte
	MinSize      Size
	MaxSize      Size // 0 means unbounded
	MaxExclusive bool
	MultipleOf   Size
	PowerOfTwo   bool
}

// OptionCatalog is the closed set of options. It is immutable once built.
type OptionCatalog struct {
	specs    []*OptionSpec
	byName   map[string]*OptionSpec
	defaults map[string]any
}

// NewOptionCatalog indexes specs and parses every declared default through
// the option's own parser.
func NewOptionCatalog(specs ...OptionSpec) (*OptionCatalog, error) {
	c := &OptionCatalog{
		byName:   make(map[string]*OptionSpec, len(specs)),
		defaults: make(map[string]any),
	}
	for i := range specs {
		spec := &specs[i]
		if _, dup := c.byName[spec.Name]; dup {
			return nil, fmt.Errorf("option %q declared twice", spec.Name)
		}
		if _, ok := parsers[spec.Kind]; !ok {
			return nil, fmt.Errorf("option %q has no parser for kind %s", spec.Name, spec.Kind)
		}
		if spec.Default != "" {
			v, err := Parse(spec, spec.Default)
			if err != nil {
				return nil, fmt.Errorf("option %q default: %w", spec.Name, err)
			}
			c.defaults[spec.Name] = v
		}
		c.specs = append(c.specs, spec)
		c.byName[spec.Name] = spec
	}
	return c, nil
}

// Lookup returns the spec for name.
func (c *OptionCatalog) Lookup(name string) (*OptionSpec, error) {
	spec, ok := c.byName[name]
	if !ok {
		return nil, NewUnknownOptionError(name)
	}
	return spec, nil
}

// Has reports whether name is in the catalog.
func (c *OptionCatalog) Has(name string) bool {
	_, ok := c.byName[name]
	return ok
}

// DefaultValue returns the parsed default for name, if it declares one.
func (c *OptionCatalog) DefaultValue(name string) (any, bool) {
	v, ok := c.defaults[name]
	return v, ok
}

// All returns every spec in declaration order.
func (c *OptionCatalog) All() []*OptionSpec {
	return c.specs
}

// Globals returns the options every command accepts.
func (c *OptionCatalog) Globals() []*OptionSpec {
	var globals []*OptionSpec
	for _, spec := range c.specs {
		if spec.Global {
			globals = append(globals, spec)
		}
	}
	return globals
}

func threadOption(name string, min, max int, def, help string) OptionSpec {
	return OptionSpec{
		Name:    name,
		Kind:    KindThreadCount,
		Min:     min,
		Max:     max,
		Default: def,
		Metavar: "count",
		Help:    fmt.Sprintf("%s The value must be between %d and %d.", help, min, max),
	}
}

func toggleOption(name, def, help string) OptionSpec {
	return OptionSpec{
		Name:    name,
		Kind:    KindChoice,
		Choices: enabledDisabled,
		Default: def,
		Metavar: "enabled|disabled",
		Help:    help,
	}
}

// DefaultOptionCatalog returns every option the vdo command line accepts.
func DefaultOptionCatalog() *OptionCatalog {
	c, err := NewOptionCatalog(
		OptionSpec{Name: OptName, Short: "n", Kind: KindVolumeName, Global: true, Metavar: "volume",
			Help: "Operate on the VDO volume with this name."},
		OptionSpec{Name: OptAll, Short: "a", Kind: KindFlag, Global: true,
			Help: "Operate on all configured VDO volumes."},
		OptionSpec{Name: OptConfFile, Short: "f", Kind: KindText, Global: true, Default: DefaultConfFile, Metavar: "file",
			Help: "Use the specified volume configuration file."},
		OptionSpec{Name: OptDebug, Kind: KindFlag, Global: true, Hidden: true,
			Help: "Log debug messages and print failure traces to standard error."},
		OptionSpec{Name: OptLogFile, Kind: KindText, Global: true, Metavar: "pathname",
			Help: "Write log output to the specified file."},
		OptionSpec{Name: OptVerbose, Kind: KindFlag, Global: true,
			Help: "Print the external commands before executing them."},
		OptionSpec{Name: OptNoRun, Kind: KindFlag, Global: true,
			Help: "Print the external commands instead of executing them; the configuration file is not changed."},
		OptionSpec{Name: OptForce, Kind: KindFlag,
			Help: "Proceed even if the volume is in use or already formatted."},
		OptionSpec{Name: OptForceRebuild, Kind: KindFlag,
			Help: "Force an offline rebuild of a read-only volume before starting it."},

		toggleOption(OptActivate, Enabled,
			"Whether the volume is activated and started at boot."),
		toggleOption(OptCompression, Enabled,
			"Whether compression is enabled for the volume."),
		toggleOption(OptDeduplication, Enabled,
			"Whether deduplication is enabled for the volume."),
		OptionSpec{Name: OptDevice, Kind: KindDevicePath, Metavar: "devicepath",
			Help: "Absolute path of the backing storage device."},
		toggleOption(OptEmulate512, Disabled,
			"Whether the volume presents a 512-byte logical block size."),
		OptionSpec{Name: OptIndexMem, Kind: KindIndexMemory, Min: 1, Max: 1024, Default: "0.25", Metavar: "gigabytes",
			Help: "Memory for the deduplication index in gigabytes: 0.25, 0.5, 0.75 or 1 to 1024."},
		toggleOption(OptSparseIndex, Disabled,
			"Whether the deduplication index is sparse."),
		OptionSpec{Name: OptLogicalSize, Kind: KindSize, Suffixes: SectorSuffixes, DefaultUnit: 'M',
			MaxSize: 4 * Petabyte, MultipleOf: BlockSize, Metavar: "megabytes",
			Help: "Logical size of the volume; defaults to the device size. Optional suffix S, B, K, M, G, T or P; at most 4P."},
		OptionSpec{Name: OptLogLevel, Kind: KindChoice, Choices: logLevels, Default: "info", Metavar: "level",
			Help: "Log level of the kernel driver."},
		OptionSpec{Name: OptSlabSize, Kind: KindSize, Suffixes: BinarySuffixes, DefaultUnit: 'M',
			MinSize: 128 * Megabyte, MaxSize: 32 * Gigabyte, PowerOfTwo: true, Default: "2G", Metavar: "megabytes",
			Help: "Slab size; a power of two between 128M and 32G."},
		OptionSpec{Name: OptBlockMapCacheSize, Kind: KindSize, Suffixes: BinarySuffixes, DefaultUnit: 'M',
			MinSize: 128 * Megabyte, MaxSize: 16 * Terabyte, MaxExclusive: true, MultipleOf: BlockSize,
			Default: "128M", Metavar: "megabytes",
			Help: "Block map cache size; a multiple of 4096 bytes, at least 128M and less than 16T."},
		OptionSpec{Name: OptBlockMapPeriod, Kind: KindBoundedInt, Min: 1, Max: 16380, Default: "16380", Metavar: "period",
			Help: "Block map era length in journal blocks, between 1 and 16380."},
		toggleOption(OptReadCache, Disabled,
			"Whether the read cache is enabled."),
		OptionSpec{Name: OptReadCacheSize, Kind: KindSize, Suffixes: BinarySuffixes, DefaultUnit: 'M',
			MaxSize: 16 * Terabyte, MaxExclusive: true, MultipleOf: BlockSize, Default: "0", Metavar: "megabytes",
			Help: "Extra read cache size; a multiple of 4096 bytes, less than 16T."},
		threadOption(OptAckThreads, 0, 100, "1", "Threads used to acknowledge completed requests."),
		OptionSpec{Name: OptBioRotation, Kind: KindBoundedInt, Min: 1, Max: 1024, Default: "64", Metavar: "ios",
			Help: "Requests submitted to one bio thread before moving to the next, between 1 and 1024."},
		threadOption(OptBioThreads, 1, 100, "4", "Threads used to submit requests to the storage device."),
		threadOption(OptCPUThreads, 1, 100, "2", "Threads used for CPU-intensive work such as hashing."),
		threadOption(OptHashZoneThreads, 0, 100, "1", "Threads across which hash-based work is partitioned."),
		threadOption(OptLogicalThreads, 0, 100, "1", "Threads across which logical block work is partitioned."),
		threadOption(OptPhysicalThreads, 0, 100, "1", "Threads across which physical block work is partitioned."),
		OptionSpec{Name: OptWritePolicy, Kind: KindChoice, Choices: writePolicies, Default: "sync", Metavar: "sync|async",
			Help: "Write policy of the volume."},
	)
	if err != nil {
		panic(err)
	}
	return c
}
