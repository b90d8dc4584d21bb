// Package main provides the vdo command-line interface.
//
// vdo manages kernel VDO volumes: deduplicating, compressing block devices
// layered over a backing device. Every invocation names exactly one command
// and a set of options. The options are parsed and validated against the
// option catalog, cross-checked, and only then handed to the operation that
// carries out the command.
//
// Commands, in the order they are listed:
//   - activate, deactivate: mark volumes as started at boot or not
//   - create, remove: add or delete a volume
//   - start, stop: bring volumes up or down
//   - status, list: report on volumes
//   - modify, changeWritePolicy: change volume settings
//   - enableDeduplication, disableDeduplication, enableCompression, disableCompression
//   - growLogical, growPhysical: enlarge a volume
//   - printConfigFile: show the volume configuration file
//
// Run "vdo help <command>" for the options of a command. Every failure exits
// with status 2.
package main
