package vdo

import (
	"fmt"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"unicode"
)

// ValueKind selects the parser used for an option's value.
type ValueKind int

const (
	KindFlag ValueKind = iota
	KindChoice
	KindSize
	KindThreadCount
	KindBoundedInt
	KindDevicePath
	KindVolumeName
	KindText
	KindIndexMemory
)

var kindNames = [...]string{
	KindFlag:        "flag",
	KindChoice:      "choice",
	KindSize:        "size",
	KindThreadCount: "thread count",
	KindBoundedInt:  "integer",
	KindDevicePath:  "device path",
	KindVolumeName:  "volume name",
	KindText:        "text",
	KindIndexMemory: "index memory",
}

func (k ValueKind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Parser converts one raw option string into a typed value.
type Parser func(spec *OptionSpec, raw string) (any, error)

var parsers = map[ValueKind]Parser{
	KindFlag:        parseFlag,
	KindChoice:      parseChoice,
	KindSize:        parseSizeOption,
	KindThreadCount: parseBoundedInt,
	KindBoundedInt:  parseBoundedInt,
	KindDevicePath:  parseDevicePath,
	KindVolumeName:  parseVolumeName,
	KindText:        parseText,
	KindIndexMemory: parseIndexMemory,
}

// Parse runs the parser registered for spec.Kind.
func Parse(spec *OptionSpec, raw string) (any, error) {
	parse, ok := parsers[spec.Kind]
	if !ok {
		return nil, NewUnknownOptionError(spec.Name)
	}
	return parse(spec, raw)
}

func parseFlag(spec *OptionSpec, raw string) (any, error) {
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, NewSyntaxError(spec.Name, raw, "is not a boolean")
	}
	return v, nil
}

func parseChoice(spec *OptionSpec, raw string) (any, error) {
	if !slices.Contains(spec.Choices, raw) {
		return nil, NewChoiceError(spec.Name, raw, spec.Choices)
	}
	return raw, nil
}

func parseSizeOption(spec *OptionSpec, raw string) (any, error) {
	size, err := ParseSize(spec.Name, raw, spec.Suffixes, spec.DefaultUnit)
	if err != nil {
		return nil, err
	}
	if err := checkSize(spec, raw, size); err != nil {
		return nil, err
	}
	return size, nil
}

func parseBoundedInt(spec *OptionSpec, raw string) (any, error) {
	bounds := fmt.Sprintf("must be an integer between %d and %d", spec.Min, spec.Max)
	if raw == "" || strings.TrimLeft(raw, "0123456789") != "" {
		return nil, NewRangeError(spec.Name, raw, bounds)
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < spec.Min || n > spec.Max {
		return nil, NewRangeError(spec.Name, raw, bounds)
	}
	return n, nil
}

func parseDevicePath(spec *OptionSpec, raw string) (any, error) {
	if raw == "" {
		return nil, NewSyntaxError(spec.Name, raw, "is not a device path")
	}
	if !filepath.IsAbs(raw) {
		return nil, NewSyntaxError(spec.Name, raw, "must be an absolute path")
	}
	return filepath.Clean(raw), nil
}

func parseVolumeName(spec *OptionSpec, raw string) (any, error) {
	switch {
	case raw == "":
		return nil, NewSyntaxError(spec.Name, raw, "is not a volume name")
	case strings.ContainsRune(raw, '/'):
		return nil, NewSyntaxError(spec.Name, raw, "must not contain '/'")
	case strings.IndexFunc(raw, unicode.IsSpace) >= 0:
		return nil, NewSyntaxError(spec.Name, raw, "must not contain whitespace")
	}
	return raw, nil
}

func parseText(spec *OptionSpec, raw string) (any, error) {
	if raw == "" {
		return nil, NewSyntaxError(spec.Name, raw, "must not be empty")
	}
	return raw, nil
}

// IndexMemory is the deduplication index size in gigabytes.
type IndexMemory float64

var indexFractions = []string{"0.25", "0.5", "0.75"}

// Bytes converts the index size to bytes.
func (m IndexMemory) Bytes() Size {
	return Size(float64(m) * float64(Gigabyte))
}

func (m IndexMemory) String() string {
	return strconv.FormatFloat(float64(m), 'f', -1, 64)
}

func parseIndexMemory(spec *OptionSpec, raw string) (any, error) {
	if strings.Contains(raw, ".") {
		if !slices.Contains(indexFractions, raw) {
			return nil, NewChoiceError(spec.Name, raw, append(slices.Clone(indexFractions), "1.."+strconv.Itoa(spec.Max)))
		}
		v, _ := strconv.ParseFloat(raw, 64)
		return IndexMemory(v), nil
	}
	n, err := parseBoundedInt(spec, raw)
	if err != nil {
		return nil, err
	}
	return IndexMemory(n.(int)), nil
}
