package volume

import (
	"github.com/dendrascience/vdo-manager/vdo"
)

// Fixed on-disk layout parameters.
const (
	RecoveryJournalBlocks = 32 * 1024
	SlabJournalBlocks     = 224
)

// Geometry is the layout summary of a volume, in blocks, as printed by
// status under "VDOConfig".
type Geometry struct {
	BlockSize           uint64 `yaml:"blockSize"`
	LogicalBlocks       uint64 `yaml:"logicalBlocks"`
	PhysicalBlocks      uint64 `yaml:"physicalBlocks"`
	SlabSize            uint64 `yaml:"slabSize"`
	RecoveryJournalSize uint64 `yaml:"recoveryJournalSize"`
	SlabJournalBlocks   uint64 `yaml:"slabJournalBlocks"`
}

// GeometryOf derives the layout of v. Sizes not yet known are zero.
func GeometryOf(v *Volume) Geometry {
	return Geometry{
		BlockSize:           uint64(vdo.BlockSize),
		LogicalBlocks:       v.LogicalSize.Blocks(),
		PhysicalBlocks:      v.PhysicalSize.Blocks(),
		SlabSize:            v.SlabSize.Blocks(),
		RecoveryJournalSize: RecoveryJournalBlocks,
		SlabJournalBlocks:   SlabJournalBlocks,
	}
}

// SlabBits is log2 of the slab size in blocks, as vdoformat expects it.
func (g Geometry) SlabBits() int {
	bits := 0
	for n := g.SlabSize; n > 1; n >>= 1 {
		bits++
	}
	return bits
}
