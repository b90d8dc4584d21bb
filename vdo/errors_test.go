package vdo

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDescribe(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		kind     ErrorKind
		expected string
	}{
		{
			name:     "choice",
			err:      NewChoiceError(OptWritePolicy, "fast", writePolicies),
			kind:     ChoiceError,
			expected: `argument --writePolicy: invalid choice "fast" (choose from ["sync", "async"])`,
		},
		{
			name:     "suffix",
			err:      NewSuffixError(OptSlabSize, "2X", BinarySuffixes),
			kind:     SuffixError,
			expected: `argument --vdoSlabSize: "2X" has an invalid suffix; use one of B, K, M, G, T, P`,
		},
		{
			name:     "mutual exclusion",
			err:      NewMutualExclusionError(OptName, OptAll),
			kind:     MutualExclusionError,
			expected: "--name and --all cannot be used together",
		},
		{
			name:     "unknown command with suggestion",
			err:      NewUnknownCommandError("strat", []string{"start"}),
			kind:     UnknownCommandError,
			expected: `unknown command "strat"; did you mean start?`,
		},
		{
			name:     "argument count",
			err:      NewArgumentCountError([]string{"start", "stop"}, "exactly one command"),
			kind:     ArgumentCountError,
			expected: `expected exactly one command, got 2 argument(s) ["start", "stop"]`,
		},
		{
			name:     "missing option",
			err:      NewMissingOptionError(CmdCreate, OptDevice),
			kind:     MissingOptionError,
			expected: "create requires --device",
		},
		{
			name:     "usage",
			err:      NewUsageError(errors.New("unknown flag: --bogus")),
			kind:     UsageError,
			expected: "unknown flag: --bogus",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, KindOf(tt.err))
			assert.Equal(t, tt.expected, Describe(tt.err))
		})
	}
}

func TestDescribeForeignError(t *testing.T) {
	assert.Equal(t, "plain failure", Describe(errors.New("plain failure\nsecond line")))
	assert.Equal(t, ErrorKind(""), KindOf(errors.New("x")))
	assert.False(t, IsKind(nil, UsageError))
	assert.Empty(t, Describe(nil))
}
