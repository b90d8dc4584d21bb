// Package vdo validates and normalizes vdo command lines.
//
// The package holds the closed catalogs the command line is checked against
// and the rules applied to one invocation:
//
// Value Parsers:
//   - One Parser per ValueKind (flags, choices, sizes, thread counts, bounded
//     integers, device paths, volume names, free text, index memory)
//   - Sizes take an optional unit suffix from the option's SuffixTable and are
//     checked against bounds, block alignment and power-of-two rules
//
// Catalogs:
//   - OptionCatalog: every option, its parser, default and help text
//   - CommandCatalog: every subcommand in display order with the options it
//     accepts; built once and checked against the OptionCatalog
//
// Validation and dispatch:
//   - Config is the normalized invocation; each value remembers whether it
//     was supplied, defaulted or absent
//   - CheckInvariants applies the rules that span options (--name/--all
//     exclusion, required options, the thread-count group)
//   - Dispatcher hands the Config to the Operation registered for the command
//     and converts operation failures into OperationFailure errors
//
// Every error is a go-cuserr CustomError tagged with an ErrorKind; use KindOf
// and Describe to inspect and render it. Any error maps to exit status 2.
package vdo
