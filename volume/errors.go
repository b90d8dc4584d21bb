package volume

import "errors"

// Sentinel errors for package volume.
// These errors can be checked with errors.Is() for specific error handling.
var (
	// Configuration file errors
	ErrNoConfigFile = errors.New("configuration file does not exist")

	// Volume selection errors
	ErrVolumeNotFound = errors.New("VDO volume not found")
	ErrVolumeExists   = errors.New("VDO volume already exists")
	ErrDeviceInUse    = errors.New("device is already used by another VDO volume")

	// State errors
	ErrNotActivated = errors.New("VDO volume is not activated")
	ErrNotRunning   = errors.New("VDO volume is not running")
	ErrNotGrown     = errors.New("new logical size must be larger than the current size")

	// Backing device errors
	ErrDeviceNotGrown = errors.New("backing device has not grown")
	ErrDeviceSize     = errors.New("cannot determine backing device size")
)
