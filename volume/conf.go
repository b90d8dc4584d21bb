package volume

import (
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"slices"

	"github.com/dendrascience/vdo-manager/vdo"
	"gopkg.in/yaml.v3"
)

// ConfigVersion is written to every configuration file.
const ConfigVersion = 1

// Volume is one VDO volume as recorded in the configuration file.
type Volume struct {
	UUID        string `yaml:"uuid"`
	Device      string `yaml:"device"`
	Activated   string `yaml:"activated"`
	Running     bool   `yaml:"running"`
	WritePolicy string `yaml:"writePolicy"`
	LogLevel    string `yaml:"logLevel"`

	Compression   string `yaml:"compression"`
	Deduplication string `yaml:"deduplication"`
	Emulate512    string `yaml:"emulate512"`
	IndexMemory   string `yaml:"indexMemory"`
	SparseIndex   string `yaml:"indexSparse"`

	LogicalSize       vdo.Size `yaml:"logicalSize"`
	PhysicalSize      vdo.Size `yaml:"physicalSize"`
	SlabSize          vdo.Size `yaml:"slabSize"`
	BlockMapCacheSize vdo.Size `yaml:"blockMapCacheSize"`
	BlockMapPeriod    int      `yaml:"blockMapPeriod"`
	ReadCache         string   `yaml:"readCache"`
	ReadCacheSize     vdo.Size `yaml:"readCacheSize"`

	AckThreads          int `yaml:"ackThreads"`
	BioRotationInterval int `yaml:"bioRotationInterval"`
	BioThreads          int `yaml:"bioThreads"`
	CPUThreads          int `yaml:"cpuThreads"`
	HashZoneThreads     int `yaml:"hashZoneThreads"`
	LogicalThreads      int `yaml:"logicalThreads"`
	PhysicalThreads     int `yaml:"physicalThreads"`
}

// Config is the volume configuration file.
type Config struct {
	Version int                `yaml:"version"`
	Volumes map[string]*Volume `yaml:"vdos"`
}

type configFile struct {
	Config Config `yaml:"config"`
}

// NewConfig returns an empty configuration.
func NewConfig() *Config {
	return &Config{Version: ConfigVersion, Volumes: make(map[string]*Volume)}
}

// LoadConfig reads path. A missing file yields an empty configuration.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return NewConfig(), nil
	}
	if err != nil {
		return nil, err
	}
	var f configFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if f.Config.Volumes == nil {
		f.Config.Volumes = make(map[string]*Volume)
	}
	if f.Config.Version == 0 {
		f.Config.Version = ConfigVersion
	}
	return &f.Config, nil
}

// Save writes the configuration to path through a temporary file in the same
// directory, so readers never see a partial file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(configFile{Config: *c})
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// Names returns the volume names, sorted.
func (c *Config) Names() []string {
	return slices.Sorted(maps.Keys(c.Volumes))
}

// Get returns the named volume.
func (c *Config) Get(name string) (*Volume, error) {
	v, ok := c.Volumes[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrVolumeNotFound, name)
	}
	return v, nil
}

// ByDevice returns the name of the volume using device, if any.
func (c *Config) ByDevice(device string) (string, bool) {
	for _, name := range c.Names() {
		if c.Volumes[name].Device == device {
			return name, true
		}
	}
	return "", false
}
