package cmd

import (
	"path/filepath"
	"strconv"
	"strings"
)

const (
	// DefaultWidth is used when COLUMNS is unset or not a number.
	DefaultWidth = 80
	widthMargin  = 2
	minWidth     = 40
)

// Settings holds the process-wide values that were module globals in older
// tools. They are read once at startup and never change afterwards.
type Settings struct {
	ProgName string
	Width    int
}

// SettingsFromEnv builds Settings from the program path and an environment
// lookup such as os.Getenv.
func SettingsFromEnv(arg0 string, getenv func(string) string) Settings {
	prog := filepath.Base(arg0)
	if prog == "" || prog == "." || prog == string(filepath.Separator) {
		prog = "vdo"
	}
	width := DefaultWidth
	if n, err := strconv.Atoi(strings.TrimSpace(getenv("COLUMNS"))); err == nil && n > 0 {
		width = n
	}
	return Settings{ProgName: prog, Width: max(width-widthMargin, minWidth)}
}
