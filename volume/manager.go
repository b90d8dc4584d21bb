package volume

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dendrascience/vdo-manager/vdo"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Log messages and field keys.
const (
	LogMsgConfigSaved   = "configuration saved"
	LogMsgConfigSkipped = "dry run, configuration not saved"
	LogMsgVolumeChanged = "volume changed"

	LogFieldPath   = "path"
	LogFieldVolume = "volume"
	LogFieldAction = "action"

	LogFieldPhysicalBlocks = "physical_blocks"
	LogFieldLogicalBlocks  = "logical_blocks"
)

// Manager implements every vdo subcommand against the configuration file
// and the device-mapper tools. It satisfies vdo.Registry.
type Manager struct {
	out      io.Writer
	logger   *zap.Logger
	fixed    Runner
	runner   Runner
	defaults vdo.Defaults
	ops      map[string]vdo.Operation
}

// Option configures a Manager.
type Option func(*Manager)

// WithRunner makes the manager use r regardless of --noRun and --verbose.
func WithRunner(r Runner) Option {
	return func(m *Manager) { m.fixed = r }
}

// WithLogger sets the logger; nil keeps the no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewManager creates a manager that reports to out.
func NewManager(out io.Writer, opts ...Option) *Manager {
	m := &Manager{out: out, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(m)
	}
	m.ops = map[string]vdo.Operation{
		vdo.CmdActivate:             m.activate,
		vdo.CmdDeactivate:           m.deactivate,
		vdo.CmdCreate:               m.create,
		vdo.CmdRemove:               m.remove,
		vdo.CmdStart:                m.start,
		vdo.CmdStop:                 m.stop,
		vdo.CmdStatus:               m.status,
		vdo.CmdList:                 m.list,
		vdo.CmdModify:               m.modify,
		vdo.CmdChangeWritePolicy:    m.changeWritePolicy,
		vdo.CmdEnableDeduplication:  m.setDeduplication(vdo.Enabled),
		vdo.CmdDisableDeduplication: m.setDeduplication(vdo.Disabled),
		vdo.CmdEnableCompression:    m.setCompression(vdo.Enabled),
		vdo.CmdDisableCompression:   m.setCompression(vdo.Disabled),
		vdo.CmdGrowLogical:          m.growLogical,
		vdo.CmdGrowPhysical:         m.growPhysical,
		vdo.CmdPrintConfigFile:      m.printConfigFile,
	}
	m.ApplyDefaults(vdo.Defaults{ConfFile: vdo.DefaultConfFile})
	return m
}

// Lookup returns the operation for command.
func (m *Manager) Lookup(command string) (vdo.Operation, bool) {
	op, ok := m.ops[command]
	return op, ok
}

// ApplyDefaults selects the runner and configuration file for the
// operations that follow.
func (m *Manager) ApplyDefaults(d vdo.Defaults) {
	if d.ConfFile == "" {
		d.ConfFile = vdo.DefaultConfFile
	}
	m.defaults = d
	switch {
	case m.fixed != nil:
		m.runner = m.fixed
	case d.DryRun:
		m.runner = PrintRunner{Out: m.out}
	default:
		m.runner = ExecRunner{Out: m.out, Verbose: d.Verbose}
	}
}

func (m *Manager) load() (*Config, error) {
	return LoadConfig(m.defaults.ConfFile)
}

func (m *Manager) save(conf *Config) error {
	if m.defaults.DryRun {
		m.logger.Debug(LogMsgConfigSkipped, zap.String(LogFieldPath, m.defaults.ConfFile))
		return nil
	}
	if err := conf.Save(m.defaults.ConfFile); err != nil {
		return err
	}
	m.logger.Debug(LogMsgConfigSaved, zap.String(LogFieldPath, m.defaults.ConfFile))
	return nil
}

func (m *Manager) run(ctx context.Context, argv ...string) error {
	return m.runner.Run(ctx, argv...)
}

// deviceSize asks blockdev for the size of device, rounded down to whole
// blocks. An empty answer, as under --noRun, is an unknown size of zero.
func (m *Manager) deviceSize(ctx context.Context, device string) (vdo.Size, error) {
	out, err := m.runner.Output(ctx, "blockdev", "--getsize64", device)
	if err != nil {
		return 0, err
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return 0, nil
	}
	n, err := strconv.ParseUint(out, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %q", ErrDeviceSize, device, out)
	}
	return vdo.Size(n) / vdo.BlockSize * vdo.BlockSize, nil
}

// selection returns the volumes a command acts on: all of them for --all or
// when no name is given, otherwise the named one.
func selection(conf *Config, cfg *vdo.Config) ([]string, error) {
	name := cfg.String(vdo.OptName)
	if cfg.Bool(vdo.OptAll) || name == "" {
		return conf.Names(), nil
	}
	if _, err := conf.Get(name); err != nil {
		return nil, err
	}
	return []string{name}, nil
}

// update applies fn to every selected volume and saves the result. With
// --all, a failure on one volume does not stop the others.
func (m *Manager) update(cfg *vdo.Config, fn func(name string, v *Volume) error) error {
	conf, err := m.load()
	if err != nil {
		return err
	}
	names, err := selection(conf, cfg)
	if err != nil {
		return err
	}
	var errs []error
	for _, name := range names {
		if err := fn(name, conf.Volumes[name]); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		m.logger.Debug(LogMsgVolumeChanged, zap.String(LogFieldVolume, name), zap.String(LogFieldAction, cfg.Command))
	}
	if err := m.save(conf); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// settings maps each volume option to the field it sets.
var settings = map[string]func(v *Volume, cfg *vdo.Config, option string){
	vdo.OptActivate:          func(v *Volume, c *vdo.Config, o string) { v.Activated = c.String(o) },
	vdo.OptCompression:       func(v *Volume, c *vdo.Config, o string) { v.Compression = c.String(o) },
	vdo.OptDeduplication:     func(v *Volume, c *vdo.Config, o string) { v.Deduplication = c.String(o) },
	vdo.OptEmulate512:        func(v *Volume, c *vdo.Config, o string) { v.Emulate512 = c.String(o) },
	vdo.OptIndexMem:          func(v *Volume, c *vdo.Config, o string) { v.IndexMemory = c.IndexMemory(o).String() },
	vdo.OptSparseIndex:       func(v *Volume, c *vdo.Config, o string) { v.SparseIndex = c.String(o) },
	vdo.OptLogicalSize:       func(v *Volume, c *vdo.Config, o string) { v.LogicalSize = c.Size(o) },
	vdo.OptLogLevel:          func(v *Volume, c *vdo.Config, o string) { v.LogLevel = c.String(o) },
	vdo.OptSlabSize:          func(v *Volume, c *vdo.Config, o string) { v.SlabSize = c.Size(o) },
	vdo.OptWritePolicy:       func(v *Volume, c *vdo.Config, o string) { v.WritePolicy = c.String(o) },
	vdo.OptBlockMapCacheSize: func(v *Volume, c *vdo.Config, o string) { v.BlockMapCacheSize = c.Size(o) },
	vdo.OptBlockMapPeriod:    func(v *Volume, c *vdo.Config, o string) { v.BlockMapPeriod = c.Int(o) },
	vdo.OptReadCache:         func(v *Volume, c *vdo.Config, o string) { v.ReadCache = c.String(o) },
	vdo.OptReadCacheSize:     func(v *Volume, c *vdo.Config, o string) { v.ReadCacheSize = c.Size(o) },
	vdo.OptAckThreads:        func(v *Volume, c *vdo.Config, o string) { v.AckThreads = c.Int(o) },
	vdo.OptBioRotation:       func(v *Volume, c *vdo.Config, o string) { v.BioRotationInterval = c.Int(o) },
	vdo.OptBioThreads:        func(v *Volume, c *vdo.Config, o string) { v.BioThreads = c.Int(o) },
	vdo.OptCPUThreads:        func(v *Volume, c *vdo.Config, o string) { v.CPUThreads = c.Int(o) },
	vdo.OptHashZoneThreads:   func(v *Volume, c *vdo.Config, o string) { v.HashZoneThreads = c.Int(o) },
	vdo.OptLogicalThreads:    func(v *Volume, c *vdo.Config, o string) { v.LogicalThreads = c.Int(o) },
	vdo.OptPhysicalThreads:   func(v *Volume, c *vdo.Config, o string) { v.PhysicalThreads = c.Int(o) },
}

// apply copies option values from cfg into v. With suppliedOnly, defaults
// are skipped so the volume keeps its current settings.
func apply(v *Volume, cfg *vdo.Config, suppliedOnly bool) {
	for option, set := range settings {
		if _, ok := cfg.Lookup(option); !ok {
			continue
		}
		if suppliedOnly && !cfg.Supplied(option) {
			continue
		}
		set(v, cfg, option)
	}
}

func onOff(setting string) string {
	if setting == vdo.Enabled {
		return "on"
	}
	return "off"
}

// table renders the device-mapper table line for v.
func table(name string, v *Volume) string {
	logicalBlockSize := 4096
	if v.Emulate512 == vdo.Enabled {
		logicalBlockSize = 512
	}
	return fmt.Sprintf("0 %d vdo V2 %s %d %d %d %d on %s %d %s %s maxDiscard 1 "+
		"ack %d bio %d bioRotationInterval %d cpu %d hash %d logical %d physical %d",
		uint64(v.LogicalSize/vdo.Sector), v.Device, v.PhysicalSize.Blocks(), logicalBlockSize,
		v.BlockMapCacheSize.Blocks(), v.BlockMapPeriod,
		onOff(v.ReadCache), v.ReadCacheSize.Blocks(), v.WritePolicy, name,
		v.AckThreads, v.BioThreads, v.BioRotationInterval, v.CPUThreads,
		v.HashZoneThreads, v.LogicalThreads, v.PhysicalThreads)
}

func (m *Manager) startVolume(ctx context.Context, name string, v *Volume, rebuild bool) error {
	fmt.Fprintf(m.out, "Starting VDO %s\n", name)
	if rebuild {
		if err := m.run(ctx, "vdoforcerebuild", v.Device); err != nil {
			return err
		}
	}
	if err := m.run(ctx, "dmsetup", "create", name, "--uuid", "VDO-"+v.UUID, "--table", table(name, v)); err != nil {
		return err
	}
	if err := m.run(ctx, "dmsetup", "message", name, "0", "compression", onOff(v.Compression)); err != nil {
		return err
	}
	if v.Deduplication == vdo.Disabled {
		if err := m.run(ctx, "dmsetup", "message", name, "0", "index-disable"); err != nil {
			return err
		}
	}
	v.Running = true
	return nil
}

func (m *Manager) stopVolume(ctx context.Context, name string, v *Volume, force bool) error {
	fmt.Fprintf(m.out, "Stopping VDO %s\n", name)
	argv := []string{"dmsetup", "remove"}
	if force {
		argv = append(argv, "--force")
	}
	if err := m.run(ctx, append(argv, name)...); err != nil {
		return err
	}
	v.Running = false
	return nil
}

func (m *Manager) activate(_ context.Context, cfg *vdo.Config) error {
	return m.update(cfg, func(name string, v *Volume) error {
		v.Activated = vdo.Enabled
		fmt.Fprintf(m.out, "VDO %s activated\n", name)
		return nil
	})
}

func (m *Manager) deactivate(_ context.Context, cfg *vdo.Config) error {
	return m.update(cfg, func(name string, v *Volume) error {
		v.Activated = vdo.Disabled
		fmt.Fprintf(m.out, "VDO %s deactivated\n", name)
		return nil
	})
}

func (m *Manager) create(ctx context.Context, cfg *vdo.Config) error {
	conf, err := m.load()
	if err != nil {
		return err
	}
	name := cfg.String(vdo.OptName)
	if _, exists := conf.Volumes[name]; exists {
		return fmt.Errorf("%w: %s", ErrVolumeExists, name)
	}
	device := cfg.String(vdo.OptDevice)
	force := cfg.Bool(vdo.OptForce)
	if other, used := conf.ByDevice(device); used && !force {
		return fmt.Errorf("%w: %s is used by %s", ErrDeviceInUse, device, other)
	}

	v := &Volume{UUID: uuid.NewString(), Device: device}
	apply(v, cfg, false)
	if v.PhysicalSize, err = m.deviceSize(ctx, device); err != nil {
		return err
	}

	fmt.Fprintf(m.out, "Creating VDO %s\n", name)
	argv := []string{"vdoformat"}
	if v.LogicalSize > 0 {
		argv = append(argv, "--logical-size="+v.LogicalSize.String())
	}
	argv = append(argv,
		"--slab-bits="+strconv.Itoa(GeometryOf(v).SlabBits()),
		"--uds-memory-size="+v.IndexMemory)
	if v.SparseIndex == vdo.Enabled {
		argv = append(argv, "--uds-sparse")
	}
	if force {
		argv = append(argv, "--force")
	}
	if err := m.run(ctx, append(argv, device)...); err != nil {
		return err
	}
	if v.LogicalSize == 0 {
		v.LogicalSize = v.PhysicalSize
	}
	m.logger.Debug(LogMsgVolumeChanged,
		zap.String(LogFieldVolume, name),
		zap.String(LogFieldAction, cfg.Command),
		zap.Uint64(LogFieldPhysicalBlocks, v.PhysicalSize.Blocks()),
		zap.Uint64(LogFieldLogicalBlocks, v.LogicalSize.Blocks()))

	conf.Volumes[name] = v
	if v.Activated == vdo.Enabled {
		if err := m.startVolume(ctx, name, v, false); err != nil {
			return err
		}
	}
	return m.save(conf)
}

func (m *Manager) remove(ctx context.Context, cfg *vdo.Config) error {
	conf, err := m.load()
	if err != nil {
		return err
	}
	names, err := selection(conf, cfg)
	if err != nil {
		return err
	}
	var errs []error
	for _, name := range names {
		v := conf.Volumes[name]
		if v.Running {
			if err := m.stopVolume(ctx, name, v, cfg.Bool(vdo.OptForce)); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				continue
			}
		}
		fmt.Fprintf(m.out, "Removing VDO %s\n", name)
		delete(conf.Volumes, name)
	}
	if err := m.save(conf); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (m *Manager) start(ctx context.Context, cfg *vdo.Config) error {
	all := cfg.Bool(vdo.OptAll)
	return m.update(cfg, func(name string, v *Volume) error {
		switch {
		case v.Running:
			fmt.Fprintf(m.out, "VDO %s already started\n", name)
			return nil
		case v.Activated != vdo.Enabled && all:
			return nil
		case v.Activated != vdo.Enabled:
			return ErrNotActivated
		}
		return m.startVolume(ctx, name, v, cfg.Bool(vdo.OptForceRebuild))
	})
}

func (m *Manager) stop(ctx context.Context, cfg *vdo.Config) error {
	return m.update(cfg, func(name string, v *Volume) error {
		if !v.Running {
			fmt.Fprintf(m.out, "VDO %s already stopped\n", name)
			return nil
		}
		return m.stopVolume(ctx, name, v, cfg.Bool(vdo.OptForce))
	})
}

type volumeStatus struct {
	Volume `yaml:",inline"`
	Config Geometry `yaml:"VDOConfig"`
}

type statusReport struct {
	System struct {
		Date string `yaml:"Date"`
		Node string `yaml:"Node"`
	} `yaml:"VDO status"`
	ConfigFile string                  `yaml:"Configuration file"`
	Volumes    map[string]volumeStatus `yaml:"VDOs"`
}

func (m *Manager) status(_ context.Context, cfg *vdo.Config) error {
	conf, err := m.load()
	if err != nil {
		return err
	}
	names, err := selection(conf, cfg)
	if err != nil {
		return err
	}
	var report statusReport
	report.System.Date = time.Now().Format(time.RFC3339)
	report.System.Node, _ = os.Hostname()
	report.ConfigFile = m.defaults.ConfFile
	report.Volumes = make(map[string]volumeStatus, len(names))
	for _, name := range names {
		v := conf.Volumes[name]
		report.Volumes[name] = volumeStatus{Volume: *v, Config: GeometryOf(v)}
	}
	enc := yaml.NewEncoder(m.out)
	enc.SetIndent(2)
	if err := enc.Encode(report); err != nil {
		return err
	}
	return enc.Close()
}

func (m *Manager) list(_ context.Context, cfg *vdo.Config) error {
	conf, err := m.load()
	if err != nil {
		return err
	}
	for _, name := range conf.Names() {
		if conf.Volumes[name].Running || cfg.Bool(vdo.OptAll) {
			fmt.Fprintln(m.out, name)
		}
	}
	return nil
}

func (m *Manager) modify(_ context.Context, cfg *vdo.Config) error {
	return m.update(cfg, func(name string, v *Volume) error {
		next := *v
		apply(&next, cfg, true)
		if err := vdo.CheckThreadGroup(next.HashZoneThreads, next.LogicalThreads, next.PhysicalThreads); err != nil {
			return err
		}
		*v = next
		if v.Running {
			fmt.Fprintf(m.out, "Note: changes to VDO %s take effect the next time it is started\n", name)
		}
		return nil
	})
}

func (m *Manager) changeWritePolicy(ctx context.Context, cfg *vdo.Config) error {
	policy := cfg.String(vdo.OptWritePolicy)
	return m.update(cfg, func(name string, v *Volume) error {
		if v.Running {
			if err := m.run(ctx, "dmsetup", "message", name, "0", "write-policy", policy); err != nil {
				return err
			}
		}
		v.WritePolicy = policy
		return nil
	})
}

func (m *Manager) setDeduplication(setting string) vdo.Operation {
	message := "index-enable"
	if setting == vdo.Disabled {
		message = "index-disable"
	}
	return func(ctx context.Context, cfg *vdo.Config) error {
		return m.update(cfg, func(name string, v *Volume) error {
			if v.Running {
				if err := m.run(ctx, "dmsetup", "message", name, "0", message); err != nil {
					return err
				}
			}
			v.Deduplication = setting
			return nil
		})
	}
}

func (m *Manager) setCompression(setting string) vdo.Operation {
	return func(ctx context.Context, cfg *vdo.Config) error {
		return m.update(cfg, func(name string, v *Volume) error {
			if v.Running {
				if err := m.run(ctx, "dmsetup", "message", name, "0", "compression", onOff(setting)); err != nil {
					return err
				}
			}
			v.Compression = setting
			return nil
		})
	}
}

func (m *Manager) reload(ctx context.Context, name string, v *Volume) error {
	if err := m.run(ctx, "dmsetup", "reload", name, "--table", table(name, v)); err != nil {
		return err
	}
	return m.run(ctx, "dmsetup", "resume", name)
}

func (m *Manager) growLogical(ctx context.Context, cfg *vdo.Config) error {
	size := cfg.Size(vdo.OptLogicalSize)
	return m.update(cfg, func(name string, v *Volume) error {
		if !v.Running {
			return ErrNotRunning
		}
		if v.LogicalSize != 0 && size <= v.LogicalSize {
			return fmt.Errorf("%w (%s <= %s)", ErrNotGrown, size, v.LogicalSize)
		}
		next := *v
		next.LogicalSize = size
		if err := m.reload(ctx, name, &next); err != nil {
			return err
		}
		*v = next
		return nil
	})
}

func (m *Manager) growPhysical(ctx context.Context, cfg *vdo.Config) error {
	return m.update(cfg, func(name string, v *Volume) error {
		if !v.Running {
			return ErrNotRunning
		}
		size, err := m.deviceSize(ctx, v.Device)
		if err != nil {
			return err
		}
		if size != 0 && size <= v.PhysicalSize {
			return fmt.Errorf("%w (%s <= %s)", ErrDeviceNotGrown, size, v.PhysicalSize)
		}
		next := *v
		if size != 0 {
			next.PhysicalSize = size
		}
		if err := m.run(ctx, "dmsetup", "message", name, "0", "prepareToGrowPhysical"); err != nil {
			return err
		}
		if err := m.reload(ctx, name, &next); err != nil {
			return err
		}
		if err := m.run(ctx, "dmsetup", "message", name, "0", "growPhysical"); err != nil {
			return err
		}
		*v = next
		return nil
	})
}

func (m *Manager) printConfigFile(_ context.Context, _ *vdo.Config) error {
	data, err := os.ReadFile(m.defaults.ConfFile)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrNoConfigFile, m.defaults.ConfFile)
	}
	if err != nil {
		return err
	}
	_, err = m.out.Write(data)
	return err
}
