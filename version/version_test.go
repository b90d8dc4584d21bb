package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"
)

func TestInfoString(t *testing.T) {
	tests := []struct {
		name     string
		info     Info
		expected string
	}{
		{name: "no commit", info: Info{Version: "v1.2.0", Commit: unknown, Date: unknown}, expected: "v1.2.0"},
		{name: "short commit", info: Info{Version: "v1.2.0", Commit: "abc", Date: unknown}, expected: "v1.2.0"},
		{name: "commit only", info: Info{Version: "v1.2.0", Commit: "0123456789ab", Date: unknown}, expected: "v1.2.0 (0123456)"},
		{
			name:     "commit and date",
			info:     Info{Version: "v1.2.0", Commit: "0123456789ab", Date: "2026-01-02T03:04:05Z"},
			expected: "v1.2.0 (0123456, built 2026-01-02T03:04:05Z)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.info.String())
		})
	}
}

func TestLinkedValuesWin(t *testing.T) {
	saved := []string{Version, Commit, Date}
	t.Cleanup(func() { Version, Commit, Date = saved[0], saved[1], saved[2] })

	Version, Commit, Date = "v9.9.9", "feedfacecafe", "2026-10-18"
	info := GetInfo()
	assert.Equal(t, Info{Version: "v9.9.9", Commit: "feedfacecafe", Date: "2026-10-18", Package: Package}, info)
	assert.Equal(t, "v9.9.9 (feedfac, built 2026-10-18)", GetFullVersion())
}

func TestInfoMarshalLogObject(t *testing.T) {
	enc := zapcore.NewMapObjectEncoder()
	info := Info{Version: "v1", Commit: "c", Date: "d", Package: Package}
	assert.NoError(t, info.MarshalLogObject(enc))
	assert.Equal(t, map[string]any{"version": "v1", "commit": "c", "date": "d", "package": Package}, enc.Fields)
}
