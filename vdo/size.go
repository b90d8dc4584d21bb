package vdo

import (
	"fmt"
	"math"
	"math/bits"
	"strconv"
	"strings"
)

// Size is a byte count.
type Size uint64

// Common sizes.
const (
	Sector   Size = 512
	Kilobyte Size = 1 << 10
	Megabyte Size = 1 << 20
	Gigabyte Size = 1 << 30
	Terabyte Size = 1 << 40
	Petabyte Size = 1 << 50

	// BlockSize is the VDO physical block size; most sizes must align to it.
	BlockSize Size = 4096
)

// Suffix is one unit letter of a suffix table.
type Suffix struct {
	Letter byte
	Bytes  Size
}

// SuffixTable lists the unit letters an option accepts, smallest first.
type SuffixTable []Suffix

var (
	// BinarySuffixes are the byte, kilobyte ... petabyte units in powers of 1024.
	BinarySuffixes = SuffixTable{
		{'B', 1},
		{'K', Kilobyte},
		{'M', Megabyte},
		{'G', Gigabyte},
		{'T', Terabyte},
		{'P', Petabyte},
	}

	// SectorSuffixes adds 512-byte sectors to the binary units.
	SectorSuffixes = SuffixTable{
		{'S', Sector},
		{'B', 1},
		{'K', Kilobyte},
		{'M', Megabyte},
		{'G', Gigabyte},
		{'T', Terabyte},
		{'P', Petabyte},
	}
)

// Find looks up a unit letter, ignoring case.
func (t SuffixTable) Find(letter byte) (Suffix, bool) {
	upper := strings.ToUpper(string(letter))[0]
	for _, s := range t {
		if s.Letter == upper {
			return s, true
		}
	}
	return Suffix{}, false
}

// Letters renders the table for error messages, e.g. "B, K, M, G, T, P".
func (t SuffixTable) Letters() string {
	letters := make([]string, len(t))
	for i, s := range t {
		letters[i] = string(s.Letter)
	}
	return strings.Join(letters, ", ")
}

// Format renders s in the given unit. ok is false if s is not an exact
// multiple of that unit.
func (s Size) Format(unit Suffix) (text string, ok bool) {
	if unit.Bytes == 0 || s%unit.Bytes != 0 {
		return "", false
	}
	return strconv.FormatUint(uint64(s/unit.Bytes), 10) + string(unit.Letter), true
}

// String renders s in the largest binary unit that divides it exactly.
func (s Size) String() string {
	if s == 0 {
		return "0"
	}
	for i := len(BinarySuffixes) - 1; i >= 0; i-- {
		if text, ok := s.Format(BinarySuffixes[i]); ok {
			return text
		}
	}
	return strconv.FormatUint(uint64(s), 10) + "B"
}

// Blocks returns s in 4 KiB blocks, rounding down.
func (s Size) Blocks() uint64 {
	return uint64(s / BlockSize)
}

// ParseSize reads a decimal magnitude with an optional unit suffix from
// table. A bare number is taken in defaultUnit.
func ParseSize(option, raw string, table SuffixTable, defaultUnit byte) (Size, error) {
	if strings.HasPrefix(raw, "-") {
		return 0, NewRangeError(option, raw, "sizes cannot be negative")
	}
	end := 0
	for end < len(raw) && raw[end] >= '0' && raw[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, NewSyntaxError(option, raw, "is not a size")
	}
	magnitude, err := strconv.ParseUint(raw[:end], 10, 64)
	if err != nil {
		return 0, NewRangeError(option, raw, "too large")
	}

	letter := defaultUnit
	switch rest := raw[end:]; len(rest) {
	case 0:
	case 1:
		letter = rest[0]
	default:
		return 0, NewSuffixError(option, raw, table)
	}
	unit, ok := table.Find(letter)
	if !ok {
		return 0, NewSuffixError(option, raw, table)
	}
	if magnitude > math.MaxUint64/uint64(unit.Bytes) {
		return 0, NewRangeError(option, raw, "too large")
	}
	return Size(magnitude) * unit.Bytes, nil
}

// checkSize applies the option's bounds, granularity and power-of-two rules.
func checkSize(spec *OptionSpec, raw string, size Size) error {
	if size < spec.MinSize || sizeAboveMax(spec, size) {
		return NewRangeError(spec.Name, raw, sizeBounds(spec))
	}
	if spec.MultipleOf > 0 && size%spec.MultipleOf != 0 {
		return NewMultipleOfError(spec.Name, raw, uint64(spec.MultipleOf))
	}
	if spec.PowerOfTwo && bits.OnesCount64(uint64(size)) != 1 {
		return NewRangeError(spec.Name, raw, "must be a power of two")
	}
	return nil
}

func sizeAboveMax(spec *OptionSpec, size Size) bool {
	if spec.MaxSize == 0 {
		return false
	}
	if spec.MaxExclusive {
		return size >= spec.MaxSize
	}
	return size > spec.MaxSize
}

func sizeBounds(spec *OptionSpec) string {
	switch {
	case spec.MaxSize == 0:
		return fmt.Sprintf("must be at least %s", spec.MinSize)
	case spec.MaxExclusive:
		return fmt.Sprintf("must be at least %s and less than %s", spec.MinSize, spec.MaxSize)
	default:
		return fmt.Sprintf("must be between %s and %s", spec.MinSize, spec.MaxSize)
	}
}
