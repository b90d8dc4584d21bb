package cmd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/dendrascience/vdo-manager/vdo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRenderer(width int) *HelpRenderer {
	return NewHelpRenderer(Settings{ProgName: "vdo", Width: width},
		vdo.DefaultCommandCatalog(vdo.DefaultOptionCatalog()))
}

func TestUsageWrapsAtPipes(t *testing.T) {
	for _, width := range []int{40, 60, 78, 200} {
		h := newTestRenderer(width)
		usage := h.Usage()
		lines := strings.Split(usage, "\n")

		indent := len("usage: vdo [-h] [--version] {")
		for i, line := range lines {
			assert.LessOrEqual(t, len(line), max(width, indent+len("disableDeduplication|")), "width %d line %d", width, i)
			if i > 0 {
				assert.Equal(t, strings.Repeat(" ", indent), line[:indent])
			}
		}

		joined := ""
		for i, line := range lines {
			if i == 0 {
				joined = line[indent:]
			} else {
				joined += line[indent:]
			}
		}
		assert.Equal(t, "{"+strings.Join(h.commands.Names(), "|")+"}", "{"+joined, "width %d", width)
	}
}

func TestUsageSingleLineWhenWide(t *testing.T) {
	h := newTestRenderer(500)
	assert.NotContains(t, h.Usage(), "\n")
}

func TestCommandUsage(t *testing.T) {
	h := newTestRenderer(200)
	tests := []struct {
		command  string
		expected string
	}{
		{vdo.CmdCreate, "usage: vdo create --name=<volume> --device=<devicepath> [options]"},
		{vdo.CmdGrowLogical, "usage: vdo growLogical --name=<volume> --vdoLogicalSize=<megabytes>"},
		{vdo.CmdStop, "usage: vdo stop (--name=<volume> | --all) [options]"},
		{vdo.CmdStatus, "usage: vdo status [--name=<volume> | --all]"},
		{vdo.CmdPrintConfigFile, "usage: vdo printConfigFile"},
		{vdo.CmdChangeWritePolicy, "usage: vdo changeWritePolicy (--name=<volume> | --all) --writePolicy=<sync|async>"},
	}

	for _, tt := range tests {
		t.Run(tt.command, func(t *testing.T) {
			spec, err := h.commands.Lookup(tt.command)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, h.CommandUsage(spec))
		})
	}
}

func TestCommandHelpOptionGroups(t *testing.T) {
	h := newTestRenderer(100)
	var b bytes.Buffer
	require.NoError(t, h.Command(&b, vdo.CmdCreate))
	out := b.String()

	options := strings.Index(out, "Options:")
	other := strings.Index(out, "Other options:")
	global := strings.Index(out, "Global options:")
	require.True(t, options > 0 && other > options && global > other, out)

	assert.Contains(t, out[options:other], "--device")
	assert.Contains(t, out[options:other], "--vdoSlabSize")
	assert.Contains(t, out[other:global], "--blockMapCacheSize")
	assert.Contains(t, out[other:global], "--vdoLogLevel")
	assert.Contains(t, out[global:], "--confFile")
	assert.NotContains(t, out[global:], "--name", "selector is listed with the command options")
	assert.Contains(t, out, "(default 2G)")
}

func TestCommandHelpUnknown(t *testing.T) {
	h := newTestRenderer(80)
	var b bytes.Buffer
	err := h.Command(&b, "frobnicate")
	assert.True(t, vdo.IsKind(err, vdo.UnknownCommandError))
	assert.Zero(t, b.Len())
}
