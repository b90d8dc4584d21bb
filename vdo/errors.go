package vdo

import (
	"errors"
	"fmt"
	"strings"

	"github.com/itsatony/go-cuserr"
)

// ErrorKind tags every failure the validation layer can report.
type ErrorKind string

const (
	SuffixError           ErrorKind = "SuffixError"
	SyntaxError           ErrorKind = "SyntaxError"
	RangeError            ErrorKind = "RangeError"
	MultipleOfError       ErrorKind = "MultipleOfError"
	ChoiceError           ErrorKind = "ChoiceError"
	MutualExclusionError  ErrorKind = "MutualExclusionError"
	GroupConsistencyError ErrorKind = "GroupConsistencyError"
	MissingOptionError    ErrorKind = "MissingOptionError"
	UnknownCommandError   ErrorKind = "UnknownCommandError"
	ArgumentCountError    ErrorKind = "ArgumentCountError"
	UsageError            ErrorKind = "UsageError"
	InternalError         ErrorKind = "InternalError"
	OperationFailure      ErrorKind = "OperationFailure"
)

// Error codes, one per category.
const (
	ErrCodeValidation = "VDO_VALIDATION"
	ErrCodeUsage      = "VDO_USAGE"
	ErrCodeInternal   = "VDO_INTERNAL"
	ErrCodeOperation  = "VDO_OPERATION"
)

// Error messages. Specifics go in metadata.
const (
	ErrMsgBadSuffix        = "invalid size suffix"
	ErrMsgBadSyntax        = "invalid value"
	ErrMsgOutOfRange       = "value out of range"
	ErrMsgNotMultiple      = "value is not an exact multiple"
	ErrMsgBadChoice        = "invalid choice"
	ErrMsgMutualExclusion  = "options are mutually exclusive"
	ErrMsgGroupConsistency = "thread counts must be all zero or all positive"
	ErrMsgMissingOption    = "required option missing"
	ErrMsgUnknownCommand   = "unknown command"
	ErrMsgArgumentCount    = "wrong number of arguments"
	ErrMsgUsage            = "invalid usage"
	ErrMsgUnknownOption    = "option not in catalog"
	ErrMsgOperationFailed  = "operation failed"
)

// Metadata keys attached to every error.
const (
	MetaKeyKind    = "kind"
	MetaKeyOption  = "option"
	MetaKeyValue   = "value"
	MetaKeyDetail  = "detail"
	MetaKeyCommand = "command"
)

func newError(code string, kind ErrorKind, msg, option, detail string) *cuserr.CustomError {
	return cuserr.NewValidationError(code, msg).
		WithMetadata(MetaKeyKind, string(kind)).
		WithMetadata(MetaKeyOption, option).
		WithMetadata(MetaKeyDetail, detail)
}

// NewSuffixError reports a size whose unit suffix is not in the option's table.
func NewSuffixError(option, value string, table SuffixTable) error {
	return newError(ErrCodeValidation, SuffixError, ErrMsgBadSuffix, option,
		fmt.Sprintf("%q has an invalid suffix; use one of %s", value, table.Letters())).
		WithMetadata(MetaKeyValue, value)
}

// NewSyntaxError reports a value that cannot be read at all.
func NewSyntaxError(option, value, reason string) error {
	return newError(ErrCodeValidation, SyntaxError, ErrMsgBadSyntax, option,
		fmt.Sprintf("%q %s", value, reason)).
		WithMetadata(MetaKeyValue, value)
}

// NewRangeError reports a value outside the option's declared bounds.
func NewRangeError(option, value, bounds string) error {
	return newError(ErrCodeValidation, RangeError, ErrMsgOutOfRange, option,
		fmt.Sprintf("%q is out of range; %s", value, bounds)).
		WithMetadata(MetaKeyValue, value)
}

// NewMultipleOfError reports a value that violates the option's granularity.
func NewMultipleOfError(option, value string, multiple uint64) error {
	return newError(ErrCodeValidation, MultipleOfError, ErrMsgNotMultiple, option,
		fmt.Sprintf("%q must be a multiple of %d bytes", value, multiple)).
		WithMetadata(MetaKeyValue, value)
}

// NewChoiceError reports a value outside the option's choice set.
func NewChoiceError(option, value string, choices []string) error {
	return newError(ErrCodeValidation, ChoiceError, ErrMsgBadChoice, option,
		fmt.Sprintf("invalid choice %q (choose from %s)", value, quoteAll(choices))).
		WithMetadata(MetaKeyValue, value)
}

// NewMutualExclusionError reports two options that cannot be given together.
func NewMutualExclusionError(a, b string) error {
	return newError(ErrCodeValidation, MutualExclusionError, ErrMsgMutualExclusion, a+","+b,
		fmt.Sprintf("--%s and --%s cannot be used together", a, b))
}

// NewGroupConsistencyError reports a thread-count group with mixed zero and
// non-zero members.
func NewGroupConsistencyError(names []string) error {
	flags := make([]string, len(names))
	for i, n := range names {
		flags[i] = "--" + n
	}
	return newError(ErrCodeValidation, GroupConsistencyError, ErrMsgGroupConsistency, strings.Join(names, ","),
		fmt.Sprintf("%s must either all be zero or all be non-zero", strings.Join(flags, ", ")))
}

// NewMissingOptionError reports a required option that was not supplied.
func NewMissingOptionError(command, option string) error {
	return newError(ErrCodeUsage, MissingOptionError, ErrMsgMissingOption, option,
		fmt.Sprintf("%s requires --%s", command, option)).
		WithMetadata(MetaKeyCommand, command)
}

// NewUnknownCommandError reports a command name absent from the catalog.
func NewUnknownCommandError(name string, suggestions []string) error {
	detail := fmt.Sprintf("unknown command %q", name)
	if len(suggestions) > 0 {
		detail += "; did you mean " + strings.Join(suggestions, " or ") + "?"
	}
	return newError(ErrCodeUsage, UnknownCommandError, ErrMsgUnknownCommand, "", detail).
		WithMetadata(MetaKeyCommand, name)
}

// NewArgumentCountError reports a positional argument count other than the
// one a command expects.
func NewArgumentCountError(args []string, expected string) error {
	return newError(ErrCodeUsage, ArgumentCountError, ErrMsgArgumentCount, "",
		fmt.Sprintf("expected %s, got %d argument(s) %s", expected, len(args), quoteAll(args)))
}

// NewUsageError wraps a parser-level failure such as an unknown flag.
func NewUsageError(cause error) error {
	return cuserr.WrapStdError(cause, ErrCodeUsage, ErrMsgUsage).
		WithMetadata(MetaKeyKind, string(UsageError)).
		WithMetadata(MetaKeyDetail, cause.Error())
}

// NewOptionUsageError reports an option that a command does not support.
func NewOptionUsageError(command, option, reason string) error {
	return newError(ErrCodeUsage, UsageError, ErrMsgUsage, option,
		fmt.Sprintf("--%s %s for %s", option, reason, command)).
		WithMetadata(MetaKeyCommand, command)
}

// NewUnknownOptionError is a programming error: the catalogs are closed at
// build time, so a missing name never comes from the user.
func NewUnknownOptionError(name string) error {
	return cuserr.NewInternalError(ErrCodeInternal, nil).
		WithMetadata(MetaKeyKind, string(InternalError)).
		WithMetadata(MetaKeyOption, name).
		WithMetadata(MetaKeyDetail, fmt.Sprintf("%s: %q", ErrMsgUnknownOption, name))
}

// NewOperationFailure wraps an error raised by an external operation.
func NewOperationFailure(command string, cause error) error {
	return cuserr.WrapStdError(cause, ErrCodeOperation, ErrMsgOperationFailed).
		WithMetadata(MetaKeyKind, string(OperationFailure)).
		WithMetadata(MetaKeyCommand, command).
		WithMetadata(MetaKeyDetail, cause.Error())
}

func metadata(err error, key string) string {
	var customErr *cuserr.CustomError
	if !errors.As(err, &customErr) {
		return ""
	}
	v, _ := customErr.GetMetadata(key)
	return v
}

// KindOf returns the kind tagged on err, or "" if err was not produced here.
func KindOf(err error) ErrorKind {
	return ErrorKind(metadata(err, MetaKeyKind))
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}

// OptionOf returns the option name(s) an error refers to.
func OptionOf(err error) string {
	return metadata(err, MetaKeyOption)
}

// Describe renders err as a single diagnostic line.
func Describe(err error) string {
	if err == nil {
		return ""
	}
	detail := metadata(err, MetaKeyDetail)
	if detail == "" {
		return strings.TrimSpace(strings.SplitN(err.Error(), "\n", 2)[0])
	}
	option := OptionOf(err)
	switch KindOf(err) {
	case SuffixError, SyntaxError, RangeError, MultipleOfError, ChoiceError:
		if option != "" {
			return "argument --" + option + ": " + detail
		}
	}
	return detail
}

// ExitCode maps the outcome of an invocation to the process exit status.
func ExitCode(err error) int {
	if err != nil {
		return 2
	}
	return 0
}

func quoteAll(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = fmt.Sprintf("%q", v)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}
