// Package cmd provides the command-line interface implementation for vdo.
//
// The cobra command tree is generated from the option and command catalogs
// in package vdo: global options become persistent flags on the root, each
// catalog command becomes a subcommand carrying the options it accepts, and
// every flag value is parsed by the catalog's own parser as it is set. A
// subcommand's RunE normalizes the parsed flags into a vdo.Config, runs the
// invariant checks and hands the config to the dispatcher.
//
// The help command and the help flag are rendered from the same catalogs by
// HelpRenderer. It uses pflag for option lists and go-wordwrap for wrapping.
//
// Settings carries the values read from the environment at startup.
package cmd
