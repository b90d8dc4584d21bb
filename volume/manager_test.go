package volume

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dendrascience/vdo-manager/vdo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var commands = vdo.DefaultCommandCatalog(vdo.DefaultOptionCatalog())

// testConfig builds the config the command line would produce for command
// with the supplied raw option values.
func testConfig(t *testing.T, command string, supplied map[string]string) *vdo.Config {
	t.Helper()
	spec, err := commands.Lookup(command)
	require.NoError(t, err)
	options := commands.Options()

	cfg := vdo.NewConfig(command)
	for _, name := range commands.Accepts(spec) {
		opt, err := options.Lookup(name)
		require.NoError(t, err)
		if raw, ok := supplied[name]; ok {
			v, err := vdo.Parse(opt, raw)
			require.NoError(t, err, name)
			cfg.Set(name, vdo.Value{Raw: raw, Parsed: v, Source: vdo.SourceSupplied})
		} else if def, ok := options.DefaultValue(name); ok {
			cfg.Set(name, vdo.Value{Raw: opt.Default, Parsed: def, Source: vdo.SourceDefault})
		}
	}
	require.NoError(t, vdo.CheckInvariants(commands, cfg))
	return cfg
}

type harness struct {
	t       *testing.T
	path    string
	out     bytes.Buffer
	runner  *RecordingRunner
	manager *Manager
}

func newHarness(t *testing.T) *harness {
	h := &harness{
		t:      t,
		path:   filepath.Join(t.TempDir(), "vdoconf.yml"),
		runner: &RecordingRunner{Outputs: map[string]string{
			"blockdev --getsize64 /dev/sdb": "107374182400",
			"blockdev --getsize64 /dev/sdc": "53687091200",
		}},
	}
	h.manager = NewManager(&h.out, WithRunner(h.runner), WithLogger(zaptest.NewLogger(t)))
	h.manager.ApplyDefaults(vdo.Defaults{ConfFile: h.path})
	return h
}

func (h *harness) run(command string, supplied map[string]string) error {
	h.t.Helper()
	op, ok := h.manager.Lookup(command)
	require.True(h.t, ok, command)
	return op(context.Background(), testConfig(h.t, command, supplied))
}

func (h *harness) volume(name string) *Volume {
	h.t.Helper()
	conf, err := LoadConfig(h.path)
	require.NoError(h.t, err)
	v, err := conf.Get(name)
	require.NoError(h.t, err)
	return v
}

// seed writes volumes straight into the configuration file.
func (h *harness) seed(volumes map[string]*Volume) {
	h.t.Helper()
	conf := NewConfig()
	for name, v := range volumes {
		conf.Volumes[name] = v
	}
	require.NoError(h.t, conf.Save(h.path))
}

func runningVolume(device string) *Volume {
	return &Volume{
		UUID: "uuid-" + filepath.Base(device), Device: device, Activated: vdo.Enabled, Running: true,
		WritePolicy: "sync", Compression: vdo.Enabled, Deduplication: vdo.Enabled,
		LogicalSize: vdo.Terabyte, SlabSize: 2 * vdo.Gigabyte, BlockMapCacheSize: 128 * vdo.Megabyte,
		BlockMapPeriod: 16380, BioThreads: 4, CPUThreads: 2, BioRotationInterval: 64, AckThreads: 1,
		HashZoneThreads: 1, LogicalThreads: 1, PhysicalThreads: 1,
	}
}

func TestManagerCoversEveryCommand(t *testing.T) {
	m := NewManager(&bytes.Buffer{})
	for _, name := range commands.Names() {
		_, ok := m.Lookup(name)
		assert.True(t, ok, name)
	}
}

func TestCreate(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.run(vdo.CmdCreate, map[string]string{
		vdo.OptName: "vdo1", vdo.OptDevice: "/dev/sdb", vdo.OptLogicalSize: "10G", vdo.OptSparseIndex: vdo.Enabled,
	}))

	require.Len(t, h.runner.Commands, 4)
	assert.Equal(t, "blockdev --getsize64 /dev/sdb", h.runner.Commands[0])
	assert.Equal(t, "vdoformat --logical-size=10G --slab-bits=19 --uds-memory-size=0.25 --uds-sparse /dev/sdb", h.runner.Commands[1])
	assert.True(t, strings.HasPrefix(h.runner.Commands[2], "dmsetup create vdo1 --uuid VDO-"))
	assert.Contains(t, h.runner.Commands[2], "--table 0 20971520 vdo V2 /dev/sdb 26214400 4096 ")
	assert.Contains(t, h.runner.Commands[2], "sync vdo1")
	assert.Equal(t, "dmsetup message vdo1 0 compression on", h.runner.Commands[3])
	assert.Contains(t, h.out.String(), "Creating VDO vdo1")

	v := h.volume("vdo1")
	assert.Equal(t, "/dev/sdb", v.Device)
	assert.True(t, v.Running)
	assert.NotEmpty(t, v.UUID)
	assert.Equal(t, 10*vdo.Gigabyte, v.LogicalSize)
	assert.Equal(t, 100*vdo.Gigabyte, v.PhysicalSize)
	assert.Equal(t, 2*vdo.Gigabyte, v.SlabSize)
	assert.Equal(t, "0.25", v.IndexMemory)
	assert.Equal(t, "info", v.LogLevel)
	assert.Equal(t, 4, v.BioThreads)

	t.Run("existing name", func(t *testing.T) {
		err := h.run(vdo.CmdCreate, map[string]string{vdo.OptName: "vdo1", vdo.OptDevice: "/dev/sdc"})
		assert.ErrorIs(t, err, ErrVolumeExists)
	})

	t.Run("device in use", func(t *testing.T) {
		err := h.run(vdo.CmdCreate, map[string]string{vdo.OptName: "vdo2", vdo.OptDevice: "/dev/sdb"})
		assert.ErrorIs(t, err, ErrDeviceInUse)
	})

	t.Run("device in use with force", func(t *testing.T) {
		err := h.run(vdo.CmdCreate, map[string]string{
			vdo.OptName: "vdo2", vdo.OptDevice: "/dev/sdb", vdo.OptForce: "true", vdo.OptActivate: vdo.Disabled,
		})
		require.NoError(t, err)
		assert.Contains(t, h.runner.Commands[len(h.runner.Commands)-1], "--force /dev/sdb")
		assert.False(t, h.volume("vdo2").Running)
	})
}

func TestCreateRecordsDeviceSize(t *testing.T) {
	h := newHarness(t)
	h.runner.Outputs["blockdev --getsize64 /dev/sdd"] = "10737418751\n"

	require.NoError(t, h.run(vdo.CmdCreate, map[string]string{vdo.OptName: "v", vdo.OptDevice: "/dev/sdd"}))
	v := h.volume("v")
	assert.Equal(t, 10*vdo.Gigabyte, v.PhysicalSize, "rounded down to whole blocks")
	assert.Equal(t, v.PhysicalSize, v.LogicalSize, "logical size defaults to the device size")
	assert.Equal(t, "vdoformat --slab-bits=19 --uds-memory-size=0.25 /dev/sdd", h.runner.Commands[1])
	assert.Contains(t, h.runner.Commands[2], "--table 0 20971520 vdo V2 /dev/sdd 2621440 4096 ")

	h.out.Reset()
	require.NoError(t, h.run(vdo.CmdStatus, map[string]string{vdo.OptName: "v"}))
	assert.Contains(t, h.out.String(), "logicalBlocks: 2621440")
	assert.Contains(t, h.out.String(), "physicalBlocks: 2621440")

	t.Run("unreadable size", func(t *testing.T) {
		h.runner.Outputs["blockdev --getsize64 /dev/sde"] = "lots"
		err := h.run(vdo.CmdCreate, map[string]string{vdo.OptName: "w", vdo.OptDevice: "/dev/sde"})
		assert.ErrorIs(t, err, ErrDeviceSize)
	})
}

func TestCreateDeduplicationDisabled(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.run(vdo.CmdCreate, map[string]string{
		vdo.OptName: "v", vdo.OptDevice: "/dev/sdb", vdo.OptDeduplication: vdo.Disabled, vdo.OptCompression: vdo.Disabled,
	}))
	assert.Contains(t, h.runner.Commands, "dmsetup message v 0 compression off")
	assert.Contains(t, h.runner.Commands, "dmsetup message v 0 index-disable")
}

func TestCreateRunnerFailure(t *testing.T) {
	h := newHarness(t)
	h.runner.Err = errors.New("vdoformat: exit status 1")

	err := h.run(vdo.CmdCreate, map[string]string{vdo.OptName: "v", vdo.OptDevice: "/dev/sdb"})
	assert.ErrorContains(t, err, "exit status 1")
	_, statErr := os.Stat(h.path)
	assert.True(t, os.IsNotExist(statErr), "nothing saved after a failed format")
}

func TestDryRunLeavesConfigUntouched(t *testing.T) {
	h := newHarness(t)
	h.manager.ApplyDefaults(vdo.Defaults{ConfFile: h.path, DryRun: true})

	require.NoError(t, h.run(vdo.CmdCreate, map[string]string{vdo.OptName: "v", vdo.OptDevice: "/dev/sdb"}))
	assert.NotEmpty(t, h.runner.Commands)
	_, err := os.Stat(h.path)
	assert.True(t, os.IsNotExist(err))
}

func TestDryRunPrintsCommands(t *testing.T) {
	var out bytes.Buffer
	m := NewManager(&out)
	m.ApplyDefaults(vdo.Defaults{ConfFile: filepath.Join(t.TempDir(), "vdoconf.yml"), DryRun: true})
	op, ok := m.Lookup(vdo.CmdCreate)
	require.True(t, ok)

	cfg := testConfig(t, vdo.CmdCreate, map[string]string{vdo.OptName: "v", vdo.OptDevice: "/dev/sdb"})
	require.NoError(t, op(context.Background(), cfg))
	assert.Contains(t, out.String(), "    vdoformat --slab-bits=19 --uds-memory-size=0.25 /dev/sdb\n")
	assert.Contains(t, out.String(), "    dmsetup create v --uuid VDO-")
}

func TestStartStop(t *testing.T) {
	h := newHarness(t)
	stopped := runningVolume("/dev/sdb")
	stopped.Running = false
	inactive := runningVolume("/dev/sdc")
	inactive.Running = false
	inactive.Activated = vdo.Disabled
	h.seed(map[string]*Volume{"a": stopped, "b": inactive, "c": runningVolume("/dev/sdd")})

	t.Run("start all skips deactivated volumes", func(t *testing.T) {
		require.NoError(t, h.run(vdo.CmdStart, map[string]string{vdo.OptAll: "true"}))
		assert.True(t, h.volume("a").Running)
		assert.False(t, h.volume("b").Running)
		assert.Contains(t, h.out.String(), "VDO c already started")
	})

	t.Run("start a deactivated volume by name", func(t *testing.T) {
		err := h.run(vdo.CmdStart, map[string]string{vdo.OptName: "b"})
		assert.ErrorIs(t, err, ErrNotActivated)
	})

	t.Run("start with rebuild", func(t *testing.T) {
		require.NoError(t, h.run(vdo.CmdActivate, map[string]string{vdo.OptName: "b"}))
		h.runner.Commands = nil
		require.NoError(t, h.run(vdo.CmdStart, map[string]string{vdo.OptName: "b", vdo.OptForceRebuild: "true"}))
		assert.Equal(t, "vdoforcerebuild /dev/sdc", h.runner.Commands[0])
		assert.True(t, h.volume("b").Running)
	})

	t.Run("stop with force", func(t *testing.T) {
		h.runner.Commands = nil
		require.NoError(t, h.run(vdo.CmdStop, map[string]string{vdo.OptName: "c", vdo.OptForce: "true"}))
		assert.Equal(t, []string{"dmsetup remove --force c"}, h.runner.Commands)
		assert.False(t, h.volume("c").Running)
	})

	t.Run("unknown volume", func(t *testing.T) {
		err := h.run(vdo.CmdStop, map[string]string{vdo.OptName: "zz"})
		assert.ErrorIs(t, err, ErrVolumeNotFound)
	})
}

func TestActivateDeactivate(t *testing.T) {
	h := newHarness(t)
	h.seed(map[string]*Volume{"a": runningVolume("/dev/sdb"), "b": runningVolume("/dev/sdc")})

	require.NoError(t, h.run(vdo.CmdDeactivate, map[string]string{vdo.OptAll: "true"}))
	assert.Equal(t, vdo.Disabled, h.volume("a").Activated)
	assert.Equal(t, vdo.Disabled, h.volume("b").Activated)

	require.NoError(t, h.run(vdo.CmdActivate, map[string]string{vdo.OptName: "a"}))
	assert.Equal(t, vdo.Enabled, h.volume("a").Activated)
	assert.Equal(t, vdo.Disabled, h.volume("b").Activated)
	assert.Empty(t, h.runner.Commands)
}

func TestRemove(t *testing.T) {
	h := newHarness(t)
	stopped := runningVolume("/dev/sdc")
	stopped.Running = false
	h.seed(map[string]*Volume{"a": runningVolume("/dev/sdb"), "b": stopped})

	require.NoError(t, h.run(vdo.CmdRemove, map[string]string{vdo.OptAll: "true"}))
	assert.Equal(t, []string{"dmsetup remove a"}, h.runner.Commands)

	conf, err := LoadConfig(h.path)
	require.NoError(t, err)
	assert.Empty(t, conf.Volumes)
}

func TestModify(t *testing.T) {
	h := newHarness(t)
	h.seed(map[string]*Volume{"a": runningVolume("/dev/sdb")})

	t.Run("supplied settings only", func(t *testing.T) {
		require.NoError(t, h.run(vdo.CmdModify, map[string]string{
			vdo.OptName: "a", vdo.OptBlockMapPeriod: "100", vdo.OptBlockMapCacheSize: "256M",
		}))
		v := h.volume("a")
		assert.Equal(t, 100, v.BlockMapPeriod)
		assert.Equal(t, 256*vdo.Megabyte, v.BlockMapCacheSize)
		assert.Equal(t, 4, v.BioThreads, "unsupplied settings keep their value")
		assert.Contains(t, h.out.String(), "next time it is started")
	})

	t.Run("thread group checked against current values", func(t *testing.T) {
		err := h.run(vdo.CmdModify, map[string]string{vdo.OptName: "a", vdo.OptLogicalThreads: "0"})
		require.Error(t, err)
		assert.True(t, vdo.IsKind(err, vdo.GroupConsistencyError))
		assert.Equal(t, 1, h.volume("a").LogicalThreads, "rejected change is not saved")
	})

	t.Run("whole group set to zero", func(t *testing.T) {
		require.NoError(t, h.run(vdo.CmdModify, map[string]string{
			vdo.OptName: "a", vdo.OptLogicalThreads: "0", vdo.OptHashZoneThreads: "0", vdo.OptPhysicalThreads: "0",
		}))
		v := h.volume("a")
		assert.Zero(t, v.LogicalThreads+v.HashZoneThreads+v.PhysicalThreads)
	})
}

func TestChangeWritePolicyAndToggles(t *testing.T) {
	h := newHarness(t)
	stopped := runningVolume("/dev/sdc")
	stopped.Running = false
	h.seed(map[string]*Volume{"a": runningVolume("/dev/sdb"), "b": stopped})

	require.NoError(t, h.run(vdo.CmdChangeWritePolicy, map[string]string{vdo.OptAll: "true", vdo.OptWritePolicy: "async"}))
	require.NoError(t, h.run(vdo.CmdDisableCompression, map[string]string{vdo.OptAll: "true"}))
	require.NoError(t, h.run(vdo.CmdDisableDeduplication, map[string]string{vdo.OptName: "a"}))
	require.NoError(t, h.run(vdo.CmdEnableDeduplication, map[string]string{vdo.OptName: "b"}))
	require.NoError(t, h.run(vdo.CmdEnableCompression, map[string]string{vdo.OptName: "b"}))

	assert.Equal(t, []string{
		"dmsetup message a 0 write-policy async",
		"dmsetup message a 0 compression off",
		"dmsetup message a 0 index-disable",
	}, h.runner.Commands, "stopped volumes are changed in the configuration only")

	a, b := h.volume("a"), h.volume("b")
	assert.Equal(t, "async", a.WritePolicy)
	assert.Equal(t, "async", b.WritePolicy)
	assert.Equal(t, vdo.Disabled, a.Compression)
	assert.Equal(t, vdo.Disabled, a.Deduplication)
	assert.Equal(t, vdo.Enabled, b.Compression)
	assert.Equal(t, vdo.Enabled, b.Deduplication)
}

func TestGrowLogical(t *testing.T) {
	h := newHarness(t)
	stopped := runningVolume("/dev/sdc")
	stopped.Running = false
	h.seed(map[string]*Volume{"a": runningVolume("/dev/sdb"), "b": stopped})

	err := h.run(vdo.CmdGrowLogical, map[string]string{vdo.OptName: "b", vdo.OptLogicalSize: "2T"})
	assert.ErrorIs(t, err, ErrNotRunning)

	err = h.run(vdo.CmdGrowLogical, map[string]string{vdo.OptName: "a", vdo.OptLogicalSize: "512G"})
	assert.ErrorIs(t, err, ErrNotGrown)
	assert.Empty(t, h.runner.Commands)

	require.NoError(t, h.run(vdo.CmdGrowLogical, map[string]string{vdo.OptName: "a", vdo.OptLogicalSize: "2T"}))
	require.Len(t, h.runner.Commands, 2)
	assert.True(t, strings.HasPrefix(h.runner.Commands[0], "dmsetup reload a --table 0 4294967296 vdo V2 /dev/sdb"))
	assert.Equal(t, "dmsetup resume a", h.runner.Commands[1])
	assert.Equal(t, 2*vdo.Terabyte, h.volume("a").LogicalSize)
}

func TestGrowPhysical(t *testing.T) {
	h := newHarness(t)
	h.seed(map[string]*Volume{"a": runningVolume("/dev/sdb")})

	require.NoError(t, h.run(vdo.CmdGrowPhysical, map[string]string{vdo.OptName: "a"}))
	require.Len(t, h.runner.Commands, 5)
	assert.Equal(t, "blockdev --getsize64 /dev/sdb", h.runner.Commands[0])
	assert.Equal(t, "dmsetup message a 0 prepareToGrowPhysical", h.runner.Commands[1])
	assert.Contains(t, h.runner.Commands[2], "/dev/sdb 26214400 4096 ")
	assert.Equal(t, "dmsetup message a 0 growPhysical", h.runner.Commands[4])
	assert.Equal(t, 100*vdo.Gigabyte, h.volume("a").PhysicalSize)

	h.runner.Commands = nil
	err := h.run(vdo.CmdGrowPhysical, map[string]string{vdo.OptName: "a"})
	assert.ErrorIs(t, err, ErrDeviceNotGrown)
	assert.Equal(t, []string{"blockdev --getsize64 /dev/sdb"}, h.runner.Commands)
}

func TestStatusAndList(t *testing.T) {
	h := newHarness(t)
	stopped := runningVolume("/dev/sdc")
	stopped.Running = false
	h.seed(map[string]*Volume{"a": runningVolume("/dev/sdb"), "b": stopped})

	require.NoError(t, h.run(vdo.CmdList, nil))
	assert.Equal(t, "a\n", h.out.String())

	h.out.Reset()
	require.NoError(t, h.run(vdo.CmdList, map[string]string{vdo.OptAll: "true"}))
	assert.Equal(t, "a\nb\n", h.out.String())

	h.out.Reset()
	require.NoError(t, h.run(vdo.CmdStatus, map[string]string{vdo.OptName: "a"}))
	status := h.out.String()
	assert.Contains(t, status, "VDO status:")
	assert.Contains(t, status, "Configuration file: "+h.path)
	assert.Contains(t, status, "VDOConfig:")
	assert.Contains(t, status, "slabJournalBlocks: 224")
	assert.Contains(t, status, "recoveryJournalSize: 32768")
	assert.Contains(t, status, "device: /dev/sdb")
	assert.NotContains(t, status, "/dev/sdc")
}

func TestPrintConfigFile(t *testing.T) {
	h := newHarness(t)

	err := h.run(vdo.CmdPrintConfigFile, nil)
	assert.ErrorIs(t, err, ErrNoConfigFile)

	h.seed(map[string]*Volume{"a": runningVolume("/dev/sdb")})
	require.NoError(t, h.run(vdo.CmdPrintConfigFile, nil))
	data, err := os.ReadFile(h.path)
	require.NoError(t, err)
	assert.Equal(t, string(data), h.out.String())
}
