// Package volume implements the vdo commands against the YAML volume
// configuration file and the device-mapper tools.
//
// Manager satisfies vdo.Registry. Each operation loads the configuration,
// issues external commands (blockdev, vdoformat, vdoforcerebuild, dmsetup)
// through a Runner and saves the configuration unless running with --noRun.
package volume
